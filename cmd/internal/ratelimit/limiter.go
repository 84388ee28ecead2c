// Package ratelimit implements fixed-window request limiting keyed by caller.
package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// WindowStore counts events in fixed windows.
type WindowStore interface {
	// IncrementWindow increments key, starting a window of the given length on the first hit.
	// It returns the new count and the time left in the window.
	IncrementWindow(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}

// Limiter allows at most limit events per window for each key.
type Limiter struct {
	store  WindowStore
	prefix string
	limit  int
	window time.Duration
}

// NewLimiter returns a Limiter. A non-positive limit disables limiting.
func NewLimiter(store WindowStore, prefix string, limit int, window time.Duration) *Limiter {
	if limit < 0 {
		limit = 0
	}
	if window <= 0 {
		window = time.Minute
	}
	return &Limiter{
		store:  store,
		prefix: strings.TrimSpace(prefix),
		limit:  limit,
		window: window,
	}
}

// Limit returns the configured events-per-window.
func (l *Limiter) Limit() int { return l.limit }

// Allow records one event for key. When the limit is exceeded it returns allowed=false
// and the whole seconds until the window resets.
func (l *Limiter) Allow(ctx context.Context, key string) (int64, bool, error) {
	if l.limit == 0 {
		return 0, true, nil
	}
	if l.store == nil {
		return 0, false, fmt.Errorf("rate limiter store is nil")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		key = "unknown"
	}

	count, ttl, err := l.store.IncrementWindow(ctx, "rate:"+l.prefix+":"+key, l.window)
	if err != nil {
		return 0, false, err
	}
	if count > int64(l.limit) {
		retry := ceilSeconds(ttl)
		if retry == 0 {
			retry = ceilSeconds(l.window)
		}
		return retry, false, nil
	}
	return 0, true, nil
}

func ceilSeconds(d time.Duration) int64 {
	if d <= 0 {
		return 0
	}
	sec := int64(d / time.Second)
	if d%time.Second != 0 {
		sec++
	}
	if sec <= 0 {
		sec = 1
	}
	return sec
}
