package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"
)

// MinHMACKeyBytes is the minimum accepted HMAC key size in enforced mode.
const MinHMACKeyBytes = 32

// HashSHA256Hex returns a SHA-256 hex digest of s.
func HashSHA256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// HashHMACSHA256Hex returns an HMAC-SHA256 hex digest of s using key.
func HashHMACSHA256Hex(s string, key []byte) string {
	m := hmac.New(sha256.New, key)
	_, _ = m.Write([]byte(s))
	return hex.EncodeToString(m.Sum(nil))
}

// Hasher hashes opaque refresh tokens for server-side storage.
// The zero value hashes with plain SHA-256.
type Hasher struct {
	key []byte
}

// NewHasher returns a Hasher keyed with key (trimmed). An empty key selects SHA-256 mode.
func NewHasher(key string) Hasher {
	k := strings.TrimSpace(key)
	if k == "" {
		return Hasher{}
	}
	return Hasher{key: []byte(k)}
}

// NewRequiredHasher is NewHasher in enforced-HMAC mode.
// It fails if the key is missing or shorter than minBytes.
func NewRequiredHasher(key string, minBytes int) (Hasher, error) {
	k := strings.TrimSpace(key)
	if k == "" {
		return Hasher{}, ErrHMACKeyMissing
	}
	// Measured in bytes (not runes): the key is used as raw bytes.
	if minBytes > 0 && len(k) < minBytes {
		return Hasher{}, ErrHMACKeyTooShort
	}
	return Hasher{key: []byte(k)}, nil
}

// HMACEnabled reports whether the hasher is in HMAC mode.
func (h Hasher) HMACEnabled() bool { return len(h.key) > 0 }

// RefreshTokenHex hashes a refresh token. Output is always 64 hex chars.
func (h Hasher) RefreshTokenHex(tokenPlain string) string {
	if len(h.key) == 0 {
		return HashSHA256Hex(tokenPlain)
	}
	return HashHMACSHA256Hex(tokenPlain, h.key)
}

// EqualHex64 compares two 64-char hex digests in constant time.
// Either side having another length is a mismatch.
func EqualHex64(a, b string) bool {
	if len(a) != 64 || len(b) != 64 {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
