package rbac

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/viperh/rolegate/internal/platform/httpx"
	"github.com/viperh/rolegate/internal/shared"
)

// SelfHandler lets an authenticated user inspect their own access without
// holding any management permission.
type SelfHandler struct {
	logger    *slog.Logger
	evaluator *Evaluator
}

// NewSelfHandler constructs a SelfHandler.
func NewSelfHandler(logger *slog.Logger, evaluator *Evaluator) *SelfHandler {
	return &SelfHandler{logger: logger, evaluator: evaluator}
}

// MountRoutes registers self-inspection routes.
func (h *SelfHandler) MountRoutes(r chi.Router) {
	r.Get("/permissions", h.myPermissions)
	r.Get("/roles", h.myRoles)
}

func (h *SelfHandler) myPermissions(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.sessionUser(w, r)
	if !ok {
		return
	}
	codes, err := h.evaluator.GetUserPermissions(r.Context(), userID)
	if err != nil {
		h.logger.Error("resolve own permissions", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Server Error", "unexpected failure")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"permissions": codes.Codes()})
}

func (h *SelfHandler) myRoles(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.sessionUser(w, r)
	if !ok {
		return
	}
	roles, err := h.evaluator.GetUserRoles(r.Context(), userID)
	if err != nil {
		h.logger.Error("list own roles", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Server Error", "unexpected failure")
		return
	}
	out := make([]roleResponse, 0, len(roles))
	for _, role := range roles {
		out = append(out, toRoleResponse(role))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *SelfHandler) sessionUser(w http.ResponseWriter, r *http.Request) (int64, bool) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil || sess.User() == "" {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
		return 0, false
	}
	id, err := strconv.ParseInt(sess.User(), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "invalid session principal")
		return 0, false
	}
	return id, true
}
