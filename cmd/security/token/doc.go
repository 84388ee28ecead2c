// Package token provides token hashing primitives for BeeTrack.
//
// It is the single source of truth for refresh-token hashing behavior.
//
// Design goals:
// - Default dev mode: SHA-256(token) when no HMAC key is configured.
// - Production-enforced mode: HMAC-SHA256(token, key) when policy requires it.
// - Stable 64-char hex output for storage and constant-time comparison.
//
// The key is injected at construction time (BEETRACK_TOKEN_HMAC_KEY in the
// server config); this package never reads the environment itself.
package token
