package gate

import "errors"

var (
	// ErrMissingCredentials is returned when neither an access token nor a refresh cookie is present.
	ErrMissingCredentials = errors.New("missing credentials")

	// ErrInsufficientPrivileges is returned by the guard when the caller's role does not satisfy the route.
	ErrInsufficientPrivileges = errors.New("insufficient privileges")
)
