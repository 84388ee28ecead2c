// Package session implements BeeTrack's session model.
//
// A session row is created for every remember-me login and is the only thing a
// refresh token can resolve to. Sessions are never deleted: they are
// invalidated (is_valid true -> false) on logout, revocation, or use past
// expiry.
//
// Access tokens are HS256 JWTs carrying the user's subject and, when issued for
// a session, its ID. Refresh tokens are opaque random strings stored hashed by
// cmd/security/token.
package session
