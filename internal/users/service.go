package users

import (
	"context"

	"github.com/viperh/rolegate/internal/shared"
)

// RoleAssigner is the slice of the RBAC service the users module drives.
type RoleAssigner interface {
	AssignRole(ctx context.Context, actorID, userID, roleID int64) error
	UnassignRole(ctx context.Context, actorID, userID, roleID int64) error
}

// Service exposes user administration operations.
type Service struct {
	repo  Repository
	roles RoleAssigner
}

// NewService constructs a Service.
func NewService(repo Repository, roles RoleAssigner) *Service {
	return &Service{repo: repo, roles: roles}
}

// ListUsers returns a page of accounts with their direct role names.
func (s *Service) ListUsers(ctx context.Context, page, perPage int) ([]UserWithRoles, shared.Pagination, error) {
	total, err := s.repo.CountUsers(ctx)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	meta := shared.NewPagination(page, perPage, total)
	list, err := s.repo.ListUsers(ctx, meta.PerPage, (meta.Page-1)*meta.PerPage)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return list, meta, nil
}

// GetUser returns a single account with its direct role names.
func (s *Service) GetUser(ctx context.Context, id int64) (UserWithRoles, error) {
	return s.repo.GetUser(ctx, id)
}

// AssignRole grants a role to a user on behalf of the acting administrator.
func (s *Service) AssignRole(ctx context.Context, actorID, userID, roleID int64) error {
	if _, err := s.repo.GetUser(ctx, userID); err != nil {
		return err
	}
	return s.roles.AssignRole(ctx, actorID, userID, roleID)
}

// UnassignRole removes a role from a user.
func (s *Service) UnassignRole(ctx context.Context, actorID, userID, roleID int64) error {
	return s.roles.UnassignRole(ctx, actorID, userID, roleID)
}
