package rbac

import "context"

// Store defines the read operations hierarchy resolution depends on.
type Store interface {
	// RoleNodeByID fetches a role with its direct permission codes and parent
	// reference. Returns ErrNotFound when the role does not exist.
	RoleNodeByID(ctx context.Context, id int64) (*RoleNode, error)
	// RolesForUser returns every role directly assigned to the user.
	RolesForUser(ctx context.Context, userID int64) ([]Role, error)
}
