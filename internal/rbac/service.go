package rbac

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/viperh/rolegate/internal/shared"
)

// AuditRecorder persists audit trail entries for assignment changes.
type AuditRecorder interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service orchestrates RBAC mutations. Every operation is single-shot and
// permission-gated by the caller; none are composed transactionally across
// multiple assignment changes.
type Service struct {
	repo  Repository
	audit AuditRecorder
}

// NewService constructs a Service.
func NewService(repo Repository, audit AuditRecorder) *Service {
	return &Service{repo: repo, audit: audit}
}

// ListPermissions returns the permission catalog.
func (s *Service) ListPermissions(ctx context.Context) ([]Permission, error) {
	return s.repo.ListPermissions(ctx)
}

// CreatePermission inserts a new permission. A duplicate code is rejected
// with ErrDuplicate and causes no state change.
func (s *Service) CreatePermission(ctx context.Context, code, description string) (Permission, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return Permission{}, errors.New("rbac: permission code required")
	}
	return s.repo.CreatePermission(ctx, code, strings.TrimSpace(description))
}

// DeletePermission removes a permission and its role grants.
func (s *Service) DeletePermission(ctx context.Context, id int64) error {
	return s.repo.DeletePermission(ctx, id)
}

// ListRoles returns all roles.
func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	return s.repo.ListRoles(ctx)
}

// GetRole fetches a role by ID.
func (s *Service) GetRole(ctx context.Context, id int64) (Role, error) {
	return s.repo.GetRole(ctx, id)
}

// ListRolePermissions returns the permissions directly granted to a role.
func (s *Service) ListRolePermissions(ctx context.Context, roleID int64) ([]Permission, error) {
	return s.repo.ListRolePermissions(ctx, roleID)
}

// CreateRole inserts a new role. A referenced parent role must exist; that
// precondition surfaces as ErrParentNotFound rather than an empty result
// because the identifier was supplied deliberately by the caller.
func (s *Service) CreateRole(ctx context.Context, name, description string, parentRoleID *int64) (Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Role{}, errors.New("rbac: role name required")
	}
	if parentRoleID != nil {
		if err := s.requireParentRole(ctx, *parentRoleID); err != nil {
			return Role{}, err
		}
	}
	return s.repo.CreateRole(ctx, name, strings.TrimSpace(description), parentRoleID)
}

// UpdateRole updates an existing role. A role may not name itself as parent.
func (s *Service) UpdateRole(ctx context.Context, id int64, name, description string, parentRoleID *int64) (Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Role{}, errors.New("rbac: role name required")
	}
	if parentRoleID != nil {
		if *parentRoleID == id {
			return Role{}, ErrSelfParent
		}
		if err := s.requireParentRole(ctx, *parentRoleID); err != nil {
			return Role{}, err
		}
	}
	return s.repo.UpdateRole(ctx, id, name, strings.TrimSpace(description), parentRoleID)
}

// DeleteRole removes a role. Deletion is rejected with ErrRoleInUse while any
// user still holds the role, so active assignments never lose permissions by
// cascade.
func (s *Service) DeleteRole(ctx context.Context, id int64) error {
	assigned, err := s.repo.CountRoleAssignments(ctx, id)
	if err != nil {
		return err
	}
	if assigned > 0 {
		return ErrRoleInUse
	}
	return s.repo.DeleteRole(ctx, id)
}

// GrantPermission attaches a permission to a role. Granting a permission the
// role already has is rejected with ErrDuplicate and causes no state change.
func (s *Service) GrantPermission(ctx context.Context, roleID, permissionID int64) error {
	return s.repo.GrantPermission(ctx, roleID, permissionID)
}

// RevokePermission detaches a permission from a role.
func (s *Service) RevokePermission(ctx context.Context, roleID, permissionID int64) error {
	return s.repo.RevokePermission(ctx, roleID, permissionID)
}

// AssignRole assigns a role to a user, recording who granted it. Assigning a
// role the user already has is rejected with ErrDuplicate.
func (s *Service) AssignRole(ctx context.Context, actorID, userID, roleID int64) error {
	if err := s.requireRole(ctx, roleID); err != nil {
		return err
	}
	if err := s.repo.AssignRole(ctx, userID, roleID, actorID); err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "rbac.role.assign", userID, roleID)
	return nil
}

// UnassignRole removes a role from a user.
func (s *Service) UnassignRole(ctx context.Context, actorID, userID, roleID int64) error {
	if err := s.repo.UnassignRole(ctx, userID, roleID); err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "rbac.role.unassign", userID, roleID)
	return nil
}

func (s *Service) requireRole(ctx context.Context, id int64) error {
	exists, err := s.repo.RoleExists(ctx, id)
	if err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return nil
}

func (s *Service) requireParentRole(ctx context.Context, id int64) error {
	if err := s.requireRole(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrParentNotFound
		}
		return err
	}
	return nil
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, userID, roleID int64) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "user_role",
		EntityID: strconv.FormatInt(userID, 10) + ":" + strconv.FormatInt(roleID, 10),
		Meta: map[string]any{
			"user_id": userID,
			"role_id": roleID,
		},
	})
}
