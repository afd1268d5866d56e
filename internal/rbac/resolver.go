package rbac

import (
	"context"
	"errors"
	"log/slog"
)

// Resolver computes the effective permission set of a role by walking its
// single-parent hierarchy chain.
type Resolver struct {
	store  Store
	logger *slog.Logger
}

// NewResolver constructs a Resolver.
func NewResolver(store Store, logger *slog.Logger) *Resolver {
	return &Resolver{store: store, logger: logger}
}

// ResolvePermissions returns the permission codes granted by roleID and its
// parent chain. A role id that does not resolve to an existing role yields an
// empty set, not an error; store failures propagate unchanged.
func (r *Resolver) ResolvePermissions(ctx context.Context, roleID int64) (PermissionSet, error) {
	codes := make(PermissionSet)
	visited := make(map[int64]struct{})
	if err := r.resolveInto(ctx, roleID, visited, codes); err != nil {
		return nil, err
	}
	return codes, nil
}

// resolveInto walks the parent chain starting at rootID, adding direct
// permission codes of each role into codes. The visited set is shared across
// walks within one evaluation so a role contributes at most once; because a
// chain is linear, revisiting an id within the same walk means the stored
// hierarchy contains a cycle.
func (r *Resolver) resolveInto(ctx context.Context, rootID int64, visited map[int64]struct{}, codes PermissionSet) error {
	walked := make(map[int64]struct{})
	next := &rootID
	for next != nil {
		id := *next
		if _, seen := walked[id]; seen {
			// Data-integrity bug upstream; terminate with what was collected.
			if r.logger != nil {
				r.logger.Warn("role hierarchy cycle detected",
					slog.Int64("role_id", id),
					slog.Int64("root_role_id", rootID))
			}
			return nil
		}
		walked[id] = struct{}{}

		if _, seen := visited[id]; seen {
			// Already contributed through another walk.
			return nil
		}
		visited[id] = struct{}{}

		node, err := r.store.RoleNodeByID(ctx, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				// Role deleted concurrently: no permissions, not an error.
				return nil
			}
			return err
		}
		for _, code := range node.PermissionCodes {
			codes[code] = struct{}{}
		}
		next = node.ParentRoleID
	}
	return nil
}
