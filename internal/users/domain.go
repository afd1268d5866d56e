package users

import "time"

// User is the administrative projection of an account.
type User struct {
	ID        int64
	Email     string
	Name      string
	IsActive  bool
	CreatedAt time.Time
}

// UserWithRoles pairs a user with the names of their directly assigned roles.
type UserWithRoles struct {
	User
	RoleNames []string
}
