package token

import (
	"strings"
	"testing"
)

func TestHasher_SHA256Fallback(t *testing.T) {
	h := NewHasher("   ")
	if h.HMACEnabled() {
		t.Fatalf("expected sha256 mode for blank key")
	}

	got := h.RefreshTokenHex("refresh-abc")
	if got != HashSHA256Hex("refresh-abc") {
		t.Fatalf("expected sha256 digest, got %q", got)
	}
	if len(got) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(got))
	}
}

func TestHasher_HMACMode(t *testing.T) {
	key := strings.Repeat("k", 32)
	h := NewHasher(key)
	if !h.HMACEnabled() {
		t.Fatalf("expected hmac mode")
	}

	got := h.RefreshTokenHex("refresh-abc")
	if got != HashHMACSHA256Hex("refresh-abc", []byte(key)) {
		t.Fatalf("hmac digest mismatch")
	}
	if got == HashSHA256Hex("refresh-abc") {
		t.Fatalf("hmac digest must differ from plain sha256")
	}
}

func TestNewRequiredHasher(t *testing.T) {
	if _, err := NewRequiredHasher("", MinHMACKeyBytes); err != ErrHMACKeyMissing {
		t.Fatalf("expected ErrHMACKeyMissing, got %v", err)
	}
	if _, err := NewRequiredHasher("short", MinHMACKeyBytes); err != ErrHMACKeyTooShort {
		t.Fatalf("expected ErrHMACKeyTooShort, got %v", err)
	}
	h, err := NewRequiredHasher(strings.Repeat("x", 40), MinHMACKeyBytes)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !h.HMACEnabled() {
		t.Fatalf("expected hmac mode")
	}
}

func TestEqualHex64(t *testing.T) {
	a := HashSHA256Hex("a")
	b := HashSHA256Hex("b")

	if !EqualHex64(a, a) {
		t.Fatalf("expected equal digests to match")
	}
	if EqualHex64(a, b) {
		t.Fatalf("expected different digests to mismatch")
	}
	if EqualHex64(a[:10], a[:10]) {
		t.Fatalf("expected short inputs to mismatch")
	}
}
