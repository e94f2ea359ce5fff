package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUnauthenticated indicates that no principal with both an actor and a
	// tenant could be resolved from the session.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrMissingTenantScope is returned by tenant-scoped reads when the caller's
	// tenant cannot be resolved. Reads never fall back to all tenants.
	ErrMissingTenantScope = errors.New("missing tenant scope")
)
