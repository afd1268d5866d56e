package users_test

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viperh/rolegate/internal/rbac"
	"github.com/viperh/rolegate/internal/shared"
	"github.com/viperh/rolegate/internal/users"
	_ "github.com/viperh/rolegate/testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

type stubStore struct {
	roles     map[int64]*rbac.RoleNode
	userRoles map[int64][]int64
}

func newStubStore() *stubStore {
	return &stubStore{
		roles:     make(map[int64]*rbac.RoleNode),
		userRoles: make(map[int64][]int64),
	}
}

func (s *stubStore) addRole(id int64, name string, parent *int64, codes ...string) {
	s.roles[id] = &rbac.RoleNode{
		Role:            rbac.Role{ID: id, Name: name, ParentRoleID: parent},
		PermissionCodes: codes,
	}
}

func (s *stubStore) RoleNodeByID(ctx context.Context, id int64) (*rbac.RoleNode, error) {
	node, ok := s.roles[id]
	if !ok {
		return nil, rbac.ErrNotFound
	}
	return node, nil
}

func (s *stubStore) RolesForUser(ctx context.Context, userID int64) ([]rbac.Role, error) {
	var out []rbac.Role
	for _, roleID := range s.userRoles[userID] {
		if node, ok := s.roles[roleID]; ok {
			out = append(out, node.Role)
		}
	}
	return out, nil
}

type stubUserRepo struct {
	users map[int64]users.UserWithRoles
}

func (s *stubUserRepo) ListUsers(ctx context.Context, limit, offset int) ([]users.UserWithRoles, error) {
	var out []users.UserWithRoles
	for _, u := range s.users {
		out = append(out, u)
	}
	return out, nil
}

func (s *stubUserRepo) CountUsers(ctx context.Context) (int, error) {
	return len(s.users), nil
}

func (s *stubUserRepo) GetUser(ctx context.Context, id int64) (users.UserWithRoles, error) {
	u, ok := s.users[id]
	if !ok {
		return users.UserWithRoles{}, shared.ErrNotFound
	}
	return u, nil
}

type recordingAssigner struct {
	assigned   [][3]int64
	unassigned [][3]int64
	err        error
}

func (a *recordingAssigner) AssignRole(ctx context.Context, actorID, userID, roleID int64) error {
	if a.err != nil {
		return a.err
	}
	a.assigned = append(a.assigned, [3]int64{actorID, userID, roleID})
	return nil
}

func (a *recordingAssigner) UnassignRole(ctx context.Context, actorID, userID, roleID int64) error {
	if a.err != nil {
		return a.err
	}
	a.unassigned = append(a.unassigned, [3]int64{actorID, userID, roleID})
	return nil
}

// newUsersRouter builds the handler behind a session-loading middleware, with
// actor 99 holding manage_users.
func newUsersRouter(t *testing.T, repo users.Repository, assigner users.RoleAssigner, store *stubStore) chi.Router {
	t.Helper()
	adminRole := int64(100)
	if _, ok := store.roles[adminRole]; !ok {
		store.addRole(adminRole, "user-admin", nil, "manage_users")
	}
	store.userRoles[99] = append(store.userRoles[99], adminRole)

	evaluator := rbac.NewEvaluator(store, testLogger())
	mw := rbac.Middleware{Evaluator: evaluator, Logger: testLogger()}
	handler := users.NewHandler(testLogger(), users.NewService(repo, assigner), evaluator, mw)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	manager := shared.NewSessionManager(client, "test_session", "secret", time.Hour, false)

	router := chi.NewRouter()
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, err := manager.Load(r.Context(), r)
			require.NoError(t, err)
			sess.SetUser("99")
			next.ServeHTTP(w, r.WithContext(shared.ContextWithSession(r.Context(), sess)))
		})
	})
	handler.MountRoutes(router)
	return router
}

func TestAssignRolePassesActor(t *testing.T) {
	repo := &stubUserRepo{users: map[int64]users.UserWithRoles{
		7: {User: users.User{ID: 7, Email: "u@test.local"}},
	}}
	assigner := &recordingAssigner{}
	router := newUsersRouter(t, repo, assigner, newStubStore())

	req := httptest.NewRequest(http.MethodPost, "/7/roles", strings.NewReader(`{"role_id":3}`))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	require.Equal(t, http.StatusNoContent, res.Code, res.Body.String())
	require.Len(t, assigner.assigned, 1)
	assert.Equal(t, [3]int64{99, 7, 3}, assigner.assigned[0])
}

func TestAssignRoleUnknownUser(t *testing.T) {
	repo := &stubUserRepo{users: map[int64]users.UserWithRoles{}}
	assigner := &recordingAssigner{}
	router := newUsersRouter(t, repo, assigner, newStubStore())

	req := httptest.NewRequest(http.MethodPost, "/404/roles", strings.NewReader(`{"role_id":3}`))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	assert.Equal(t, http.StatusNotFound, res.Code)
	assert.Empty(t, assigner.assigned)
}

func TestAssignRoleConflict(t *testing.T) {
	repo := &stubUserRepo{users: map[int64]users.UserWithRoles{
		7: {User: users.User{ID: 7, Email: "u@test.local"}},
	}}
	assigner := &recordingAssigner{err: rbac.ErrDuplicate}
	router := newUsersRouter(t, repo, assigner, newStubStore())

	req := httptest.NewRequest(http.MethodPost, "/7/roles", strings.NewReader(`{"role_id":3}`))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	assert.Equal(t, http.StatusConflict, res.Code)
}

func TestUnassignRole(t *testing.T) {
	repo := &stubUserRepo{users: map[int64]users.UserWithRoles{
		7: {User: users.User{ID: 7, Email: "u@test.local"}},
	}}
	assigner := &recordingAssigner{}
	router := newUsersRouter(t, repo, assigner, newStubStore())

	req := httptest.NewRequest(http.MethodDelete, "/7/roles/3", nil)
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	require.Equal(t, http.StatusNoContent, res.Code)
	require.Len(t, assigner.unassigned, 1)
	assert.Equal(t, [3]int64{99, 7, 3}, assigner.unassigned[0])
}

func TestUserPermissionsReportsInherited(t *testing.T) {
	store := newStubStore()
	parent := int64(1)
	store.addRole(parent, "base", nil, "view_dashboard")
	store.addRole(2, "editor", &parent, "posts.edit")
	store.userRoles[7] = []int64{2}

	repo := &stubUserRepo{users: map[int64]users.UserWithRoles{
		7: {User: users.User{ID: 7, Email: "u@test.local"}, RoleNames: []string{"editor"}},
	}}
	router := newUsersRouter(t, repo, &recordingAssigner{}, store)

	req := httptest.NewRequest(http.MethodGet, "/7/permissions", nil)
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	require.Equal(t, http.StatusOK, res.Code)
	body := res.Body.String()
	assert.Contains(t, body, "posts.edit")
	assert.Contains(t, body, "view_dashboard")
}

func TestListUsersIncludesRoles(t *testing.T) {
	repo := &stubUserRepo{users: map[int64]users.UserWithRoles{
		7: {User: users.User{ID: 7, Email: "u@test.local"}, RoleNames: []string{"editor"}},
	}}
	router := newUsersRouter(t, repo, &recordingAssigner{}, newStubStore())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	require.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), `"editor"`)
	assert.Contains(t, res.Body.String(), `"total":1`)
}
