package password

import "errors"

// Public, stable errors for callers.
var (
	ErrPasswordTooShort = errors.New("password too short")
	ErrPasswordTooLong  = errors.New("password too long")
	ErrWeakPassword     = errors.New("weak password")
	ErrMissingCharClass = errors.New("password must include upper, lower, digit and special character")
	ErrLowVariety       = errors.New("password must have more character variety")
	ErrSequential       = errors.New("password is too sequential")
	ErrInvalidHash      = errors.New("invalid password hash")
	ErrConfig           = errors.New("invalid password config")
)

// IsPolicyError reports whether err is a password policy rejection
// (as opposed to an operational failure such as a broken RNG).
func IsPolicyError(err error) bool {
	return errors.Is(err, ErrPasswordTooShort) ||
		errors.Is(err, ErrPasswordTooLong) ||
		errors.Is(err, ErrWeakPassword) ||
		errors.Is(err, ErrMissingCharClass) ||
		errors.Is(err, ErrLowVariety) ||
		errors.Is(err, ErrSequential)
}
