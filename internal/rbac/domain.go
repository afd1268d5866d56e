package rbac

import "time"

// Permission represents an atomic capability keyed by a stable code.
type Permission struct {
	ID          int64
	Code        string
	Description string
	CreatedAt   time.Time
}

// Role represents a named permission grouping. A role may inherit from a
// single parent role; the store does not guarantee the parent chain is
// acyclic.
type Role struct {
	ID           int64
	Name         string
	Description  string
	ParentRoleID *int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// RoleNode is a role together with its directly granted permission codes,
// as loaded for hierarchy resolution.
type RoleNode struct {
	Role
	PermissionCodes []string
}

// RoleGrant ties a permission to a role.
type RoleGrant struct {
	RoleID       int64
	PermissionID int64
}

// UserRole links a user to a role and records who granted it and when.
// The audit fields are never consulted by resolution logic.
type UserRole struct {
	UserID       int64
	RoleID       int64
	AssignedByID *int64
	AssignedAt   time.Time
}

// PermissionSet is a deduplicated set of permission codes.
type PermissionSet map[string]struct{}

// Has reports whether the set contains code.
func (s PermissionSet) Has(code string) bool {
	_, ok := s[code]
	return ok
}

// Codes returns the set contents as a slice, order unspecified.
func (s PermissionSet) Codes() []string {
	codes := make([]string, 0, len(s))
	for code := range s {
		codes = append(codes, code)
	}
	return codes
}
