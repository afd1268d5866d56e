package rbac

import "errors"

var (
	// ErrNotFound indicates that the requested record does not exist.
	ErrNotFound = errors.New("rbac: not found")
	// ErrDuplicate indicates a unique key or assignment already exists.
	ErrDuplicate = errors.New("rbac: duplicate")
	// ErrRoleInUse rejects deleting a role that still has user assignments.
	ErrRoleInUse = errors.New("rbac: role has active user assignments")
	// ErrParentNotFound rejects referencing a parent role that does not exist.
	ErrParentNotFound = errors.New("rbac: parent role not found")
	// ErrSelfParent rejects a role naming itself as parent.
	ErrSelfParent = errors.New("rbac: role cannot be its own parent")
)
