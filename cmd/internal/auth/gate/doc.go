// Package gate resolves the caller of a protected request and enforces roles.
//
// The Authenticator accepts a bearer access token and falls back to the
// refresh cookie when the token is absent or expired. Revocation is checked
// against the session store on every request that carries a session-bound
// token.
package gate
