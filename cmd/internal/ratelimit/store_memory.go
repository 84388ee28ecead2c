package ratelimit

import (
	"context"
	"sync"
	"time"
)

type window struct {
	count   int64
	resetAt time.Time
}

// MemoryStore is a process-local WindowStore used when Redis is not configured.
type MemoryStore struct {
	mu      sync.Mutex
	now     func() time.Time
	windows map[string]window
}

// NewMemoryStore returns a MemoryStore. A nil clock uses time.Now.
func NewMemoryStore(now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{now: now, windows: make(map[string]window)}
}

// IncrementWindow implements WindowStore.
func (m *MemoryStore) IncrementWindow(ctx context.Context, key string, length time.Duration) (int64, time.Duration, error) {
	if err := ctx.Err(); err != nil {
		return 0, 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	w, ok := m.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = window{resetAt: now.Add(length)}
		m.sweep(now)
	}
	w.count++
	m.windows[key] = w
	return w.count, w.resetAt.Sub(now), nil
}

// sweep drops expired windows; callers hold mu.
func (m *MemoryStore) sweep(now time.Time) {
	for k, w := range m.windows {
		if !now.Before(w.resetAt) {
			delete(m.windows, k)
		}
	}
}
