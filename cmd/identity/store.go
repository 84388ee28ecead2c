package identity

import (
	"context"
	"time"
)

// CreateUserInput describes a new user row. PasswordHash is an already-hashed digest.
type CreateUserInput struct {
	Username     string
	Email        string
	PasswordHash string
	Role         Role
	Now          time.Time
}

// UpdateUserInput is a partial update; nil fields are left unchanged.
type UpdateUserInput struct {
	Username     *string
	Email        *string
	PasswordHash *string
	Role         *Role
	IsActive     *bool
	Now          time.Time
}

// Empty reports whether the update changes nothing.
func (in UpdateUserInput) Empty() bool {
	return in.Username == nil && in.Email == nil && in.PasswordHash == nil && in.Role == nil && in.IsActive == nil
}

// Store is the user persistence boundary. Users are never hard-deleted.
//
// Lookups by username or email are case-insensitive and return a NotFoundError
// when no row matches.
type Store interface {
	CreateUser(ctx context.Context, in CreateUserInput) (User, error)
	GetUserByID(ctx context.Context, id string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	GetUserByUsername(ctx context.Context, username string) (User, error)
	ListUsers(ctx context.Context, limit, offset int) ([]User, error)
	UpdateUser(ctx context.Context, id string, in UpdateUserInput) (User, error)
}

const (
	defaultListLimit = 100
	maxListLimit     = 500
)

func clampList(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
