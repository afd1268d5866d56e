package rbac

import (
	"context"
	"log/slog"
	"strconv"

	"golang.org/x/sync/singleflight"
)

// Evaluator answers access questions for a user by aggregating resolved
// permissions across every role directly assigned to that user. All methods
// are read-only and safe for concurrent use.
type Evaluator struct {
	store    Store
	resolver *Resolver
	group    singleflight.Group
}

// NewEvaluator constructs an Evaluator sharing the given store.
func NewEvaluator(store Store, logger *slog.Logger) *Evaluator {
	return &Evaluator{
		store:    store,
		resolver: NewResolver(store, logger),
	}
}

// Resolver exposes the underlying hierarchy resolver.
func (e *Evaluator) Resolver() *Resolver {
	return e.resolver
}

// GetUserPermissions returns the effective permission set for the user: the
// union of codes reachable from every directly assigned role. Concurrent
// calls for the same user are collapsed; the returned set must be treated as
// read-only.
func (e *Evaluator) GetUserPermissions(ctx context.Context, userID int64) (PermissionSet, error) {
	// The flight is shared across callers, so it runs detached from any one
	// caller's cancellation. Each waiter still honors its own context.
	flightCtx := context.WithoutCancel(ctx)
	ch := e.group.DoChan(strconv.FormatInt(userID, 10), func() (any, error) {
		return e.loadUserPermissions(flightCtx, userID)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(PermissionSet), nil
	}
}

func (e *Evaluator) loadUserPermissions(ctx context.Context, userID int64) (PermissionSet, error) {
	roles, err := e.store.RolesForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	codes := make(PermissionSet)
	visited := make(map[int64]struct{})
	for _, role := range roles {
		if err := e.resolver.resolveInto(ctx, role.ID, visited, codes); err != nil {
			return nil, err
		}
	}
	return codes, nil
}

// HasPermission reports whether the user's effective permission set contains
// code.
func (e *Evaluator) HasPermission(ctx context.Context, userID int64, code string) (bool, error) {
	perms, err := e.GetUserPermissions(ctx, userID)
	if err != nil {
		return false, err
	}
	return perms.Has(code), nil
}

// HasRole reports whether the user has a direct assignment to a role with the
// given name. Role membership does not follow the hierarchy, unlike
// permission inheritance.
func (e *Evaluator) HasRole(ctx context.Context, userID int64, roleName string) (bool, error) {
	roles, err := e.store.RolesForUser(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, role := range roles {
		if role.Name == roleName {
			return true, nil
		}
	}
	return false, nil
}

// CheckAccess reports whether the user holds every listed permission code.
// An empty list is vacuously satisfied.
func (e *Evaluator) CheckAccess(ctx context.Context, userID int64, codes []string) (bool, error) {
	if len(codes) == 0 {
		return true, nil
	}
	perms, err := e.GetUserPermissions(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, code := range codes {
		if !perms.Has(code) {
			return false, nil
		}
	}
	return true, nil
}

// CheckAnyAccess reports whether the user holds at least one of the listed
// permission codes. An empty list is vacuously satisfied: no requirement
// means allowed, so callers must pass a non-empty list when they mean to
// require something.
func (e *Evaluator) CheckAnyAccess(ctx context.Context, userID int64, codes []string) (bool, error) {
	if len(codes) == 0 {
		return true, nil
	}
	perms, err := e.GetUserPermissions(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, code := range codes {
		if perms.Has(code) {
			return true, nil
		}
	}
	return false, nil
}

// GetUserRoles returns the user's direct role assignments resolved to full
// Role records. No hierarchy walk is performed.
func (e *Evaluator) GetUserRoles(ctx context.Context, userID int64) ([]Role, error) {
	return e.store.RolesForUser(ctx, userID)
}
