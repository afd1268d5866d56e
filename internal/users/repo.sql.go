package users

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/viperh/rolegate/internal/shared"
)

// Repository defines read operations over user accounts.
type Repository interface {
	ListUsers(ctx context.Context, limit, offset int) ([]UserWithRoles, error)
	CountUsers(ctx context.Context) (int, error)
	GetUser(ctx context.Context, id int64) (UserWithRoles, error)
}

// PGRepository implements Repository on PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PGRepository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const userWithRolesQuery = `
	SELECT u.id, u.email, u.name, u.is_active, u.created_at,
	       COALESCE(array_agg(r.name ORDER BY r.name) FILTER (WHERE r.id IS NOT NULL), '{}') AS role_names
	FROM users u
	LEFT JOIN user_roles ur ON ur.user_id = u.id
	LEFT JOIN roles r ON r.id = ur.role_id`

// ListUsers returns a page of users with their directly assigned role names.
func (r *PGRepository) ListUsers(ctx context.Context, limit, offset int) ([]UserWithRoles, error) {
	rows, err := r.pool.Query(ctx, userWithRolesQuery+`
	GROUP BY u.id
	ORDER BY u.id
	LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []UserWithRoles
	for rows.Next() {
		var user UserWithRoles
		if err := rows.Scan(&user.ID, &user.Email, &user.Name, &user.IsActive, &user.CreatedAt, &user.RoleNames); err != nil {
			return nil, err
		}
		out = append(out, user)
	}
	return out, rows.Err()
}

// CountUsers returns the total number of user accounts.
func (r *PGRepository) CountUsers(ctx context.Context) (int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

// GetUser returns a single user with their directly assigned role names.
func (r *PGRepository) GetUser(ctx context.Context, id int64) (UserWithRoles, error) {
	var user UserWithRoles
	err := r.pool.QueryRow(ctx, userWithRolesQuery+`
	WHERE u.id = $1
	GROUP BY u.id`, id).Scan(&user.ID, &user.Email, &user.Name, &user.IsActive, &user.CreatedAt, &user.RoleNames)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return UserWithRoles{}, shared.ErrNotFound
		}
		return UserWithRoles{}, err
	}
	return user, nil
}

var _ Repository = (*PGRepository)(nil)
