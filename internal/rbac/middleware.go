package rbac

import (
	"net/http"
	"strconv"
	"strings"

	"log/slog"

	"github.com/viperh/rolegate/internal/shared"
)

// DecisionMetrics counts authorization outcomes. Implemented by
// observability.Metrics.
type DecisionMetrics interface {
	ObserveDecision(check, outcome string)
}

// Middleware wires RBAC authorization helpers for HTTP handlers. Checks fail
// closed: a failed effective-permission computation denies the request, it is
// never read as "no permission required".
type Middleware struct {
	Evaluator *Evaluator
	Logger    *slog.Logger
	Metrics   DecisionMetrics
}

func (m Middleware) observe(check, outcome string) {
	if m.Metrics != nil {
		m.Metrics.ObserveDecision(check, outcome)
	}
}

// RequireAny ensures the current user has at least one of the required
// permissions. An empty requirement list passes every request through.
func (m Middleware) RequireAny(codes ...string) func(http.Handler) http.Handler {
	required := normalizeCodes(codes)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(required) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			userID, ok := m.currentUserID(r)
			if !ok {
				m.observe("any", "denied")
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			granted, err := m.Evaluator.CheckAnyAccess(r.Context(), userID, required)
			if err != nil {
				if m.Logger != nil {
					m.Logger.Error("rbac require any", slog.Any("error", err))
				}
				m.observe("any", "error")
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
			if granted {
				m.observe("any", "granted")
				next.ServeHTTP(w, r)
				return
			}
			m.observe("any", "denied")
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		})
	}
}

// RequireAll ensures the current user has all required permissions.
func (m Middleware) RequireAll(codes ...string) func(http.Handler) http.Handler {
	required := normalizeCodes(codes)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(required) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			userID, ok := m.currentUserID(r)
			if !ok {
				m.observe("all", "denied")
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			granted, err := m.Evaluator.CheckAccess(r.Context(), userID, required)
			if err != nil {
				if m.Logger != nil {
					m.Logger.Error("rbac require all", slog.Any("error", err))
				}
				m.observe("all", "error")
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
			if granted {
				m.observe("all", "granted")
				next.ServeHTTP(w, r)
				return
			}
			m.observe("all", "denied")
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		})
	}
}

func (m Middleware) currentUserID(r *http.Request) (int64, bool) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		return 0, false
	}
	raw := strings.TrimSpace(sess.User())
	if raw == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		if m.Logger != nil {
			m.Logger.Error("rbac parse user id", slog.String("value", raw))
		}
		return 0, false
	}
	return id, true
}

// normalizeCodes drops blank entries and duplicates. Codes are matched
// exactly; they are stable string keys, not case-folded names.
func normalizeCodes(codes []string) []string {
	unique := make(map[string]struct{}, len(codes))
	normalized := make([]string, 0, len(codes))
	for _, code := range codes {
		code = strings.TrimSpace(code)
		if code == "" {
			continue
		}
		if _, ok := unique[code]; ok {
			continue
		}
		unique[code] = struct{}{}
		normalized = append(normalized, code)
	}
	return normalized
}
