package app

import (
	"errors"
	"fmt"

	"github.com/zrdt80/beetrack/cmd/security/token"
)

// MinTokenHMACKeyBytes is the minimum HMAC-SHA256 key size under RequireTokenHMAC.
const MinTokenHMACKeyBytes = 32

// RefreshHasher builds the refresh-token hasher and enforces the HMAC policy at startup.
//
// With RequireTokenHMAC set, a missing or short key fails startup instead of
// falling back to plain SHA-256.
func RefreshHasher(cfg Config) (token.Hasher, error) {
	if !cfg.RequireTokenHMAC {
		return token.NewHasher(cfg.TokenHMACKey), nil
	}

	h, err := token.NewRequiredHasher(cfg.TokenHMACKey, MinTokenHMACKeyBytes)
	switch {
	case errors.Is(err, token.ErrHMACKeyMissing):
		return token.Hasher{}, fmt.Errorf("%w: BEETRACK_REQUIRE_TOKEN_HMAC=true but BEETRACK_TOKEN_HMAC_KEY is missing", ErrConfig)
	case errors.Is(err, token.ErrHMACKeyTooShort):
		return token.Hasher{}, fmt.Errorf("%w: BEETRACK_TOKEN_HMAC_KEY is too short (min %d bytes)", ErrConfig, MinTokenHMACKeyBytes)
	case err != nil:
		return token.Hasher{}, err
	}

	if !h.HMACEnabled() {
		return token.Hasher{}, fmt.Errorf("%w: token hasher is not in HMAC mode", ErrConfig)
	}
	return h, nil
}
