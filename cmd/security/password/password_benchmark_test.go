package password

import (
	"testing"

	"golang.org/x/crypto/bcrypt"
)

// BenchmarkHash_Fast tracks the cost of the parameters the unit tests run with.
func BenchmarkHash_Fast(b *testing.B) {
	cfg := fastConfig()

	for b.Loop() {
		if _, err := cfg.Hash(strongPassword); err != nil {
			b.Fatalf("Hash error: %v", err)
		}
	}
}

func BenchmarkNeedsRehash_OutdatedParams(b *testing.B) {
	digest, err := fastConfig().Hash(strongPassword)
	if err != nil {
		b.Fatalf("Hash error: %v", err)
	}
	cfg := DefaultConfig()

	for b.Loop() {
		if !cfg.NeedsRehash(digest) {
			b.Fatal("expected outdated digest to need a rehash")
		}
	}
}

func BenchmarkVerify_LegacyBcrypt(b *testing.B) {
	legacy, err := bcrypt.GenerateFromPassword([]byte(strongPassword), bcrypt.MinCost)
	if err != nil {
		b.Fatalf("bcrypt error: %v", err)
	}
	cfg := fastConfig()

	for b.Loop() {
		ok, err := cfg.Verify(string(legacy), strongPassword)
		if err != nil || !ok {
			b.Fatalf("Verify failed: ok=%v err=%v", ok, err)
		}
	}
}
