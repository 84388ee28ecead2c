package identity

import "errors"

// Sentinel error kinds (stable for errors.Is and for mapping to API status codes).
var (
	ErrInvalidInput = errors.New("invalid_input")
	ErrNotFound     = errors.New("not_found")
	ErrConflict     = errors.New("conflict")

	// ErrInvalidCredentials covers unknown identity and wrong password alike.
	ErrInvalidCredentials = errors.New("invalid_credentials")
	// ErrAccountInactive is returned for a deactivated user with valid credentials.
	ErrAccountInactive = errors.New("account_inactive")
)
