package session

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/zrdt80/beetrack/cmd/identity/ids"
)

// MemoryStore is a mutex-guarded Store used when no database is configured and in tests.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]Session
	byHash   map[string]string
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]Session),
		byHash:   make(map[string]string),
	}
}

// Create implements Store.
func (m *MemoryStore) Create(ctx context.Context, in NewSession) (Session, error) {
	if err := ctx.Err(); err != nil {
		return Session{}, err
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	id, err := ids.NewULID(now)
	if err != nil {
		return Session{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, dup := m.byHash[in.RefreshTokenHash]; dup {
		return Session{}, ErrRefreshTokenCollision
	}

	s := Session{
		ID:               id,
		UserID:           in.UserID,
		RefreshTokenHash: in.RefreshTokenHash,
		CreatedAt:        now,
		LastActivity:     now,
		ExpiresAt:        in.ExpiresAt,
		IsValid:          true,
		UserAgent:        in.UserAgent,
		IPAddress:        in.IPAddress,
		DeviceInfo:       defaultDeviceInfo(in.DeviceInfo, in.UserAgent),
	}
	m.sessions[id] = s
	m.byHash[in.RefreshTokenHash] = id
	return s, nil
}

// FindActiveByRefreshHash implements Store.
func (m *MemoryStore) FindActiveByRefreshHash(ctx context.Context, hash string, now time.Time) (Session, error) {
	if err := ctx.Err(); err != nil {
		return Session{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.byHash[hash]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	s := m.sessions[id]
	if !s.Active(now) {
		return Session{}, ErrSessionNotFound
	}
	return s, nil
}

// GetByID implements Store.
func (m *MemoryStore) GetByID(ctx context.Context, id string) (Session, error) {
	if err := ctx.Err(); err != nil {
		return Session{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[strings.TrimSpace(id)]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	return s, nil
}

// Touch implements Store.
func (m *MemoryStore) Touch(ctx context.Context, id string, now time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[id]; ok {
		s.LastActivity = now
		m.sessions[id] = s
	}
	return nil
}

// Invalidate implements Store.
func (m *MemoryStore) Invalidate(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return false, nil
	}
	s.IsValid = false
	m.sessions[id] = s
	return true, nil
}

// InvalidateAllForUser implements Store.
func (m *MemoryStore) InvalidateAllForUser(ctx context.Context, userID, exceptID string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for id, s := range m.sessions {
		if s.UserID != userID || !s.IsValid || (exceptID != "" && id == exceptID) {
			continue
		}
		s.IsValid = false
		m.sessions[id] = s
		n++
	}
	return n, nil
}

// ListValidForUser implements Store.
func (m *MemoryStore) ListValidForUser(ctx context.Context, userID string) ([]Session, error) {
	return m.RecentValidForUser(ctx, userID, 0)
}

// RecentValidForUser implements Store. A non-positive limit returns all valid sessions.
func (m *MemoryStore) RecentValidForUser(ctx context.Context, userID string, limit int) ([]Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	out := make([]Session, 0, 8)
	for _, s := range m.sessions {
		if s.UserID == userID && s.IsValid {
			out = append(out, s)
		}
	}
	m.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
