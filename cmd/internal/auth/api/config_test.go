package authapi

import (
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.RegisterPerMinute != 3 || cfg.LoginPerMinute != 5 {
		t.Fatalf("unexpected rate limits: register=%d login=%d", cfg.RegisterPerMinute, cfg.LoginPerMinute)
	}
	if cfg.RateWindow != time.Minute {
		t.Fatalf("unexpected window: %v", cfg.RateWindow)
	}
}

func TestConfigWithDefaults(t *testing.T) {
	cfg := Config{MaxBodyBytes: -1, LoginPerMinute: -3}.withDefaults()
	if cfg.MaxBodyBytes != 1<<20 {
		t.Fatalf("expected default body limit, got %d", cfg.MaxBodyBytes)
	}
	if cfg.LoginPerMinute != 0 {
		t.Fatalf("negative limit must clamp to 0 (disabled), got %d", cfg.LoginPerMinute)
	}
	if cfg.RateWindow != time.Minute || cfg.ListLimitMax != 500 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}
