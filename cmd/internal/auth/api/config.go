package authapi

import (
	"time"

	"github.com/zrdt80/beetrack/cmd/internal/httpx"
)

// Config controls auth API behavior.
type Config struct {
	// TrustProxy honors X-Forwarded-For / X-Real-IP for client IPs.
	TrustProxy bool

	// MaxBodyBytes bounds JSON request bodies.
	MaxBodyBytes int64

	// RegisterPerMinute and LoginPerMinute cap requests per client IP; zero disables the limit.
	RegisterPerMinute int
	LoginPerMinute    int

	// RateWindow is the fixed window of both limits.
	RateWindow time.Duration

	// ListLimitMax caps the admin user listing page size.
	ListLimitMax int
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		MaxBodyBytes:      httpx.DefaultMaxBodyBytes,
		RegisterPerMinute: 3,
		LoginPerMinute:    5,
		RateWindow:        time.Minute,
		ListLimitMax:      500,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = d.MaxBodyBytes
	}
	if c.RegisterPerMinute < 0 {
		c.RegisterPerMinute = 0
	}
	if c.LoginPerMinute < 0 {
		c.LoginPerMinute = 0
	}
	if c.RateWindow <= 0 {
		c.RateWindow = d.RateWindow
	}
	if c.ListLimitMax <= 0 {
		c.ListLimitMax = d.ListLimitMax
	}
	return c
}
