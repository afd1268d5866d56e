package rbac

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapPgError(t *testing.T) {
	assert.NoError(t, mapPgError(nil))

	plain := errors.New("connection reset")
	assert.Same(t, plain, mapPgError(plain))

	dup := &pgconn.PgError{Code: "23505", ConstraintName: "permissions_code_key"}
	assert.ErrorIs(t, mapPgError(dup), ErrDuplicate)

	fk := &pgconn.PgError{Code: "23503", ConstraintName: "user_roles_user_id_fkey"}
	err := mapPgError(fmt.Errorf("insert: %w", fk))
	require.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "user_roles_user_id_fkey")
}

func TestMapPgErrorParentRoleConstraint(t *testing.T) {
	// A parent role deleted after the precondition check surfaces as the FK
	// violation; the caller must still see a rejected precondition, not 404.
	fk := &pgconn.PgError{Code: "23503", ConstraintName: "roles_parent_role_id_fkey"}
	err := mapPgError(fk)
	require.ErrorIs(t, err, ErrParentNotFound)
	assert.NotErrorIs(t, err, ErrNotFound)
}
