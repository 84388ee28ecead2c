package session

import (
	"crypto/rand"
	"encoding/base64"
)

// maxRefreshTokenLen bounds accepted refresh cookie values (64 bytes encode to 86 chars).
const maxRefreshTokenLen = 512

// NewRefreshToken returns nBytes of crypto/rand entropy, base64url without padding.
func NewRefreshToken(nBytes int) (string, error) {
	if nBytes < 32 {
		nBytes = 32
	}
	b := make([]byte, nBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
