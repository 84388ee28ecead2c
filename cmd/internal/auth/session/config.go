package session

import "time"

// MinSigningKeyBytes is the minimum HS256 key size.
const MinSigningKeyBytes = 32

// Config defines all runtime configuration for the session subsystem.
//
// It is loaded once at startup and injected; nothing in this package reads
// process-global state.
type Config struct {
	// Issuer is the value set in the "iss" claim of access tokens.
	Issuer string

	// AccessTokenTTL defines the lifetime of access tokens.
	AccessTokenTTL time.Duration

	// RefreshTokenTTL defines the lifetime of a remember-me session.
	RefreshTokenTTL time.Duration

	// RefreshTokenBytes defines the number of random bytes used
	// to generate opaque refresh tokens.
	RefreshTokenBytes int

	// RecentSessionsLimit bounds how many recent sessions the Detector inspects.
	RecentSessionsLimit int

	// SigningKey is the HS256 secret for access tokens.
	SigningKey []byte
}

// DefaultConfig returns the default policy. SigningKey must still be set.
func DefaultConfig() Config {
	return Config{
		Issuer:              "beetrack",
		AccessTokenTTL:      30 * time.Minute,
		RefreshTokenTTL:     30 * 24 * time.Hour,
		RefreshTokenBytes:   32,
		RecentSessionsLimit: 5,
	}
}

// Validate returns ErrConfig if any field is out of bounds.
func (c Config) Validate() error {
	switch {
	case len(c.SigningKey) < MinSigningKeyBytes:
		return ErrConfig
	case c.AccessTokenTTL <= 0:
		return ErrConfig
	case c.RefreshTokenTTL <= 0:
		return ErrConfig
	case c.RefreshTokenBytes < 32 || c.RefreshTokenBytes > 64:
		return ErrConfig
	case c.RecentSessionsLimit <= 0:
		return ErrConfig
	}
	return nil
}
