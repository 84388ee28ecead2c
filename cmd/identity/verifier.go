package identity

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Authenticate verifies identifier + password and returns the matching user.
//
// An identifier containing "@" is looked up by email, otherwise by username.
// Unknown identity and wrong password both yield ErrInvalidCredentials with the
// same shape; the unknown-identity path still runs one hash verification.
// Inactive users are returned as-is; callers reject them via CheckActive.
// Store failures are returned wrapped and are never reported as ErrInvalidCredentials.
func (s *Service) Authenticate(ctx context.Context, identifier, plain string) (User, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || plain == "" {
		_, _ = s.hasher.Verify(s.dummyHash, plain)
		return User{}, invalidCredentials()
	}

	var (
		u   User
		err error
	)
	if IsEmailIdentifier(identifier) {
		u, err = s.store.GetUserByEmail(ctx, identifier)
	} else {
		u, err = s.store.GetUserByUsername(ctx, identifier)
	}
	if err != nil {
		if IsNotFound(err) {
			_, _ = s.hasher.Verify(s.dummyHash, plain)
			return User{}, invalidCredentials()
		}
		return User{}, fmt.Errorf("identity.Authenticate: lookup: %w", err)
	}

	ok, err := s.hasher.Verify(u.PasswordHash, plain)
	if err != nil || !ok {
		// A malformed stored digest is indistinguishable from a wrong password to the caller.
		return User{}, invalidCredentials()
	}

	s.maybeRehash(ctx, u, plain)
	return u, nil
}

// CheckActive returns ErrAccountInactive for a deactivated user.
func CheckActive(u User) error {
	if !u.IsActive {
		return OpError{Op: "identity.CheckActive", Kind: ErrAccountInactive}
	}
	return nil
}

// maybeRehash upgrades outdated digests after a successful verification (best-effort).
func (s *Service) maybeRehash(ctx context.Context, u User, plain string) {
	rh, ok := s.hasher.(rehasher)
	if !ok || !rh.NeedsRehash(u.PasswordHash) {
		return
	}
	digest, err := s.hasher.Hash(plain)
	if err != nil {
		// Legacy passwords may predate the current policy; keep the old digest.
		return
	}
	if _, err := s.store.UpdateUser(ctx, u.ID, UpdateUserInput{PasswordHash: &digest, Now: s.now()}); err != nil {
		s.log.Warn("identity.rehash.fail", zap.String("user_id", u.ID), zap.Error(err))
	}
}

func invalidCredentials() error {
	return OpError{Op: "identity.Authenticate", Kind: ErrInvalidCredentials}
}
