// Package identity implements BeeTrack's user identity and credential verification.
//
// It owns the User model and its roles, the user store boundary (Postgres and
// in-memory), and the Credential Verifier used by login. Password hashing is
// consumed through the Hasher capability so the store never sees plaintext.
package identity
