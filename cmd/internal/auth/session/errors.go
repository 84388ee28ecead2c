package session

import "errors"

var (
	// ErrInvalidToken is returned when an access token fails verification or validation.
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenExpired is returned for a well-formed, correctly signed token past its expiry.
	// It wraps ErrInvalidToken.
	ErrTokenExpired = expiredError{}

	// ErrSessionNotFound is returned when a session ID or refresh token matches no usable session.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionRevoked is returned when a token is bound to an invalidated or expired session.
	ErrSessionRevoked = errors.New("session revoked")

	// ErrRefreshTokenCollision is returned when a generated refresh token collides with a stored one.
	ErrRefreshTokenCollision = errors.New("refresh token collision")

	// ErrConfig is returned for invalid configuration.
	ErrConfig = errors.New("invalid config")
)

type expiredError struct{}

func (expiredError) Error() string { return "token expired" }

func (expiredError) Unwrap() error { return ErrInvalidToken }
