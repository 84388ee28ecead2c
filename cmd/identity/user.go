package identity

import (
	"strings"
	"time"
)

// Role is the closed set of authorization roles.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleWorker Role = "worker"
)

// ParseRole parses a role name (case-insensitive).
func ParseRole(s string) (Role, bool) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleAdmin:
		return RoleAdmin, true
	case RoleWorker:
		return RoleWorker, true
	default:
		return "", false
	}
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleWorker
}

// Satisfies reports whether a holder of r may act with the required role.
// Exact match: there is no role hierarchy.
func (r Role) Satisfies(required Role) bool {
	return r.Valid() && r == required
}

func (r Role) String() string { return string(r) }

// User is BeeTrack's canonical security principal.
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	Role         Role
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Subject is the value carried in the access token "sub" claim.
func (u User) Subject() string {
	return NormalizeEmail(u.Email)
}
