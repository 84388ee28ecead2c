package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
)

func TestLimiterRedisBlocksAfterLimit(t *testing.T) {
	mr, client := newMiniRedisClient(t)
	defer mr.Close()
	defer func() { _ = client.Close() }()

	limiter := NewLimiter(NewRedisStore(client), "login", 5, time.Minute)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		retryAfter, allowed, err := limiter.Allow(ctx, "10.0.0.1")
		if err != nil {
			t.Fatalf("allow #%d: %v", i+1, err)
		}
		if !allowed || retryAfter != 0 {
			t.Fatalf("unexpected result on allow #%d: allowed=%v retry_after=%d", i+1, allowed, retryAfter)
		}
	}

	retryAfter, allowed, err := limiter.Allow(ctx, "10.0.0.1")
	if err != nil {
		t.Fatalf("allow #6: %v", err)
	}
	if allowed {
		t.Fatalf("expected limiter block on sixth request")
	}
	if retryAfter <= 0 || retryAfter > 60 {
		t.Fatalf("expected retry_after in (0,60], got %d", retryAfter)
	}

	// Other callers are unaffected.
	if _, allowed, _ := limiter.Allow(ctx, "10.0.0.2"); !allowed {
		t.Fatalf("expected a different key to be allowed")
	}

	mr.FastForward(61 * time.Second)

	retryAfter, allowed, err = limiter.Allow(ctx, "10.0.0.1")
	if err != nil {
		t.Fatalf("allow after window: %v", err)
	}
	if !allowed || retryAfter != 0 {
		t.Fatalf("unexpected result after fast forward: allowed=%v retry_after=%d", allowed, retryAfter)
	}
}

func TestLimiterRedisError(t *testing.T) {
	mr, client := newMiniRedisClient(t)
	defer func() { _ = client.Close() }()
	mr.Close()

	limiter := NewLimiter(NewRedisStore(client), "register", 3, time.Minute)
	if _, _, err := limiter.Allow(context.Background(), "10.0.0.1"); err == nil {
		t.Fatalf("expected error from closed redis")
	}
}

func TestLimiterMemoryWindow(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	store := NewMemoryStore(func() time.Time { return now })
	limiter := NewLimiter(store, "register", 3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, allowed, err := limiter.Allow(ctx, "ip"); err != nil || !allowed {
			t.Fatalf("allow #%d: allowed=%v err=%v", i+1, allowed, err)
		}
	}

	now = now.Add(20*time.Second + 500*time.Millisecond)
	retryAfter, allowed, err := limiter.Allow(ctx, "ip")
	if err != nil || allowed {
		t.Fatalf("expected block: allowed=%v err=%v", allowed, err)
	}
	if retryAfter != 40 {
		t.Fatalf("expected retry_after=40, got %d", retryAfter)
	}

	now = now.Add(40 * time.Second)
	if _, allowed, _ := limiter.Allow(ctx, "ip"); !allowed {
		t.Fatalf("expected allow after window reset")
	}
}

func TestLimiterDisabled(t *testing.T) {
	limiter := NewLimiter(nil, "login", 0, time.Minute)
	for i := 0; i < 100; i++ {
		if _, allowed, err := limiter.Allow(context.Background(), "k"); err != nil || !allowed {
			t.Fatalf("disabled limiter must always allow")
		}
	}
}

func TestCeilSeconds(t *testing.T) {
	cases := map[time.Duration]int64{
		0:                       0,
		-time.Second:            0,
		time.Millisecond:        1,
		time.Second:             1,
		1500 * time.Millisecond: 2,
		time.Minute:             60,
	}
	for in, want := range cases {
		if got := ceilSeconds(in); got != want {
			t.Fatalf("ceilSeconds(%v)=%d want %d", in, got, want)
		}
	}
}

func newMiniRedisClient(t *testing.T) (*miniredis.Miniredis, *goredis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}

	client := goredis.NewClient(&goredis.Options{
		Addr: mr.Addr(),
	})

	return mr, client
}
