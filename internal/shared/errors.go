package shared

import "errors"

// Sentinels shared across packages. Domain packages declare their own
// sentinels (see rbac); these cover auth and the CSRF middleware.
var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials covers both unknown email and wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrCSRFTokenMissing rejects a mutating request without a token header.
	ErrCSRFTokenMissing = errors.New("csrf token missing")
	// ErrCSRFTokenMismatch rejects a token that fails verification.
	ErrCSRFTokenMismatch = errors.New("csrf token mismatch")
)
