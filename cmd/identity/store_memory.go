package identity

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore is an in-process Store used when no database is configured and in tests.
type MemoryStore struct {
	mu    sync.RWMutex
	users map[string]User
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{users: make(map[string]User)}
}

// CreateUser inserts a new user, enforcing case-insensitive uniqueness.
func (s *MemoryStore) CreateUser(ctx context.Context, in CreateUserInput) (User, error) {
	const op = "identity.CreateUser"

	if err := ctx.Err(); err != nil {
		return User{}, err
	}

	username := strings.TrimSpace(in.Username)
	email := strings.TrimSpace(in.Email)
	if username == "" || email == "" {
		return User{}, invalid(op, "username and email are required")
	}
	if strings.TrimSpace(in.PasswordHash) == "" {
		return User{}, invalid(op, "password hash is required")
	}
	role := in.Role
	if role == "" {
		role = RoleWorker
	}
	if !role.Valid() {
		return User{}, invalid(op, "unknown role")
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	id, err := NewULID(now)
	if err != nil {
		return User{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if field := s.conflictLocked("", username, email); field != "" {
		return User{}, ConflictError{Op: op, Field: field}
	}

	u := User{
		ID:           id,
		Username:     username,
		Email:        email,
		PasswordHash: in.PasswordHash,
		Role:         role,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.users[id] = u
	return u, nil
}

// GetUserByID loads a user by ID.
func (s *MemoryStore) GetUserByID(_ context.Context, id string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[strings.TrimSpace(id)]
	if !ok {
		return User{}, NotFoundError{Op: "identity.GetUserByID", Resource: "user"}
	}
	return u, nil
}

// GetUserByEmail loads a user by normalized email.
func (s *MemoryStore) GetUserByEmail(_ context.Context, email string) (User, error) {
	norm := NormalizeEmail(email)

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if norm != "" && NormalizeEmail(u.Email) == norm {
			return u, nil
		}
	}
	return User{}, NotFoundError{Op: "identity.GetUserByEmail", Resource: "user"}
}

// GetUserByUsername loads a user by normalized username.
func (s *MemoryStore) GetUserByUsername(_ context.Context, username string) (User, error) {
	norm := NormalizeUsername(username)

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if norm != "" && NormalizeUsername(u.Username) == norm {
			return u, nil
		}
	}
	return User{}, NotFoundError{Op: "identity.GetUserByUsername", Resource: "user"}
}

// ListUsers returns users ordered by creation time.
func (s *MemoryStore) ListUsers(_ context.Context, limit, offset int) ([]User, error) {
	limit, offset = clampList(limit, offset)

	s.mu.RLock()
	all := make([]User, 0, len(s.users))
	for _, u := range s.users {
		all = append(all, u)
	}
	s.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID < all[j].ID
		}
		return all[i].CreatedAt.Before(all[j].CreatedAt)
	})

	if offset >= len(all) {
		return []User{}, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

// UpdateUser applies a partial update atomically.
func (s *MemoryStore) UpdateUser(_ context.Context, id string, in UpdateUserInput) (User, error) {
	const op = "identity.UpdateUser"

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[strings.TrimSpace(id)]
	if !ok {
		return User{}, NotFoundError{Op: op, Resource: "user"}
	}
	if in.Empty() {
		return u, nil
	}

	username := u.Username
	email := u.Email
	if in.Username != nil {
		username = strings.TrimSpace(*in.Username)
		if username == "" {
			return User{}, invalid(op, "username must not be empty")
		}
	}
	if in.Email != nil {
		email = strings.TrimSpace(*in.Email)
		if email == "" {
			return User{}, invalid(op, "email must not be empty")
		}
	}
	if field := s.conflictLocked(u.ID, username, email); field != "" {
		return User{}, ConflictError{Op: op, Field: field}
	}
	if in.Role != nil && !in.Role.Valid() {
		return User{}, invalid(op, "unknown role")
	}

	u.Username = username
	u.Email = email
	if in.PasswordHash != nil {
		u.PasswordHash = *in.PasswordHash
	}
	if in.Role != nil {
		u.Role = *in.Role
	}
	if in.IsActive != nil {
		u.IsActive = *in.IsActive
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	u.UpdatedAt = now

	s.users[u.ID] = u
	return u, nil
}

// conflictLocked returns the first conflicting field against users other than selfID.
func (s *MemoryStore) conflictLocked(selfID, username, email string) string {
	un := NormalizeUsername(username)
	en := NormalizeEmail(email)
	for id, u := range s.users {
		if id == selfID {
			continue
		}
		if NormalizeUsername(u.Username) == un {
			return "username"
		}
		if NormalizeEmail(u.Email) == en {
			return "email"
		}
	}
	return ""
}
