package rbac

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	roles     map[int64]*RoleNode
	userRoles map[int64][]int64

	roleErr error
	userErr error
	fetches map[int64]int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		roles:     make(map[int64]*RoleNode),
		userRoles: make(map[int64][]int64),
		fetches:   make(map[int64]int),
	}
}

func (f *fakeStore) addRole(id int64, name string, parent *int64, codes ...string) {
	f.roles[id] = &RoleNode{
		Role:            Role{ID: id, Name: name, ParentRoleID: parent},
		PermissionCodes: codes,
	}
}

func (f *fakeStore) assign(userID int64, roleIDs ...int64) {
	f.userRoles[userID] = append(f.userRoles[userID], roleIDs...)
}

func (f *fakeStore) RoleNodeByID(ctx context.Context, id int64) (*RoleNode, error) {
	if f.roleErr != nil {
		return nil, f.roleErr
	}
	f.fetches[id]++
	node, ok := f.roles[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *node
	return &copied, nil
}

func (f *fakeStore) RolesForUser(ctx context.Context, userID int64) ([]Role, error) {
	if f.userErr != nil {
		return nil, f.userErr
	}
	var roles []Role
	for _, id := range f.userRoles[userID] {
		if node, ok := f.roles[id]; ok {
			roles = append(roles, node.Role)
		}
	}
	return roles, nil
}

func ptr(v int64) *int64 { return &v }

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestResolvePermissionsDirectOnly(t *testing.T) {
	store := newFakeStore()
	store.addRole(1, "viewer", nil, "reports.view", "dashboard.view")

	resolver := NewResolver(store, testLogger())
	codes, err := resolver.ResolvePermissions(context.Background(), 1)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"reports.view", "dashboard.view"}, codes.Codes())
}

func TestResolvePermissionsSingleParentInheritance(t *testing.T) {
	store := newFakeStore()
	store.addRole(1, "parent", nil, "p1")
	store.addRole(2, "child", ptr(1), "p2")

	resolver := NewResolver(store, testLogger())
	codes, err := resolver.ResolvePermissions(context.Background(), 2)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"p1", "p2"}, codes.Codes())
}

func TestResolvePermissionsDeduplicatesAcrossChain(t *testing.T) {
	store := newFakeStore()
	store.addRole(1, "parent", nil, "shared", "parent.only")
	store.addRole(2, "child", ptr(1), "shared", "child.only")

	resolver := NewResolver(store, testLogger())
	codes, err := resolver.ResolvePermissions(context.Background(), 2)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"shared", "parent.only", "child.only"}, codes.Codes())
}

func TestResolvePermissionsCycleTerminates(t *testing.T) {
	store := newFakeStore()
	store.addRole(1, "a", ptr(2), "x")
	store.addRole(2, "b", ptr(1), "y")

	resolver := NewResolver(store, testLogger())
	codes, err := resolver.ResolvePermissions(context.Background(), 1)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"x", "y"}, codes.Codes())
	assert.Equal(t, 1, store.fetches[1], "each role fetched exactly once")
	assert.Equal(t, 1, store.fetches[2], "each role fetched exactly once")
}

func TestResolvePermissionsSelfCycleTerminates(t *testing.T) {
	store := newFakeStore()
	store.addRole(1, "loop", ptr(1), "x")

	resolver := NewResolver(store, testLogger())
	codes, err := resolver.ResolvePermissions(context.Background(), 1)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"x"}, codes.Codes())
}

func TestResolvePermissionsMissingRoleIsEmptyNotError(t *testing.T) {
	store := newFakeStore()

	resolver := NewResolver(store, testLogger())
	codes, err := resolver.ResolvePermissions(context.Background(), 404)
	require.NoError(t, err)
	assert.Empty(t, codes)
}

func TestResolvePermissionsMissingParentIsTolerated(t *testing.T) {
	store := newFakeStore()
	store.addRole(1, "orphaned", ptr(99), "p1")

	resolver := NewResolver(store, testLogger())
	codes, err := resolver.ResolvePermissions(context.Background(), 1)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"p1"}, codes.Codes())
}

func TestResolvePermissionsStoreErrorPropagates(t *testing.T) {
	store := newFakeStore()
	store.roleErr = errors.New("connection refused")

	resolver := NewResolver(store, testLogger())
	_, err := resolver.ResolvePermissions(context.Background(), 1)
	require.Error(t, err)
	assert.ErrorContains(t, err, "connection refused")
}
