package rbac

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore provides PostgreSQL backed read access for hierarchy resolution.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore constructs a store.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// RoleNodeByID fetches a role with its direct permission codes.
func (s *PGStore) RoleNodeByID(ctx context.Context, id int64) (*RoleNode, error) {
	const query = `
		SELECT r.id, r.name, r.description, r.parent_role_id, r.created_at, r.updated_at,
		       COALESCE(array_agg(p.code ORDER BY p.code) FILTER (WHERE p.code IS NOT NULL), '{}')
		FROM roles r
		LEFT JOIN role_permissions rp ON rp.role_id = r.id
		LEFT JOIN permissions p ON p.id = rp.permission_id
		WHERE r.id = $1
		GROUP BY r.id`
	var node RoleNode
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&node.ID, &node.Name, &node.Description, &node.ParentRoleID,
		&node.CreatedAt, &node.UpdatedAt, &node.PermissionCodes,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &node, nil
}

// RolesForUser returns every role directly assigned to the user.
func (s *PGStore) RolesForUser(ctx context.Context, userID int64) ([]Role, error) {
	const query = `
		SELECT r.id, r.name, r.description, r.parent_role_id, r.created_at, r.updated_at
		FROM roles r
		JOIN user_roles ur ON ur.role_id = r.id
		WHERE ur.user_id = $1
		ORDER BY r.name`
	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var roles []Role
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.ID, &role.Name, &role.Description, &role.ParentRoleID, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return roles, nil
}

var _ Store = (*PGStore)(nil)
