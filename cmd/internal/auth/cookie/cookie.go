// Package cookie sets, reads and clears the refresh-token cookie.
package cookie

import (
	"net/http"
	"strings"
	"time"
)

// DefaultName is the refresh cookie name.
const DefaultName = "refresh_token"

// Config controls refresh cookie attributes.
type Config struct {
	Name     string
	Path     string
	Domain   string
	Secure   bool
	SameSite http.SameSite
	// MaxAge is the cookie lifetime; it matches the refresh TTL.
	MaxAge time.Duration
}

// DefaultConfig returns a Secure, HttpOnly, SameSite=Strict cookie on "/".
func DefaultConfig(maxAge time.Duration) Config {
	return Config{
		Name:     DefaultName,
		Path:     "/",
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   maxAge,
	}
}

func (c Config) name() string {
	if n := strings.TrimSpace(c.Name); n != "" {
		return n
	}
	return DefaultName
}

func (c Config) path() string {
	if c.Path == "" {
		return "/"
	}
	return c.Path
}

// Set writes the refresh cookie carrying value.
func (c Config) Set(w http.ResponseWriter, value string) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.name(),
		Value:    value,
		Path:     c.path(),
		Domain:   c.Domain,
		MaxAge:   int(c.MaxAge / time.Second),
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: c.SameSite,
	})
}

// Clear expires the refresh cookie.
func (c Config) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.name(),
		Value:    "",
		Path:     c.path(),
		Domain:   c.Domain,
		Expires:  time.Unix(0, 0).UTC(),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: c.SameSite,
	})
}

// Read returns the refresh cookie value, if present and non-empty.
func (c Config) Read(r *http.Request) (string, bool) {
	ck, err := r.Cookie(c.name())
	if err != nil {
		return "", false
	}
	v := strings.TrimSpace(ck.Value)
	if v == "" {
		return "", false
	}
	return v, true
}
