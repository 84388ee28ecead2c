package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/zrdt80/beetrack/cmd/security/token"
)

// Service implements the high-level session operations for BeeTrack.
//
// It issues access tokens, creates remember-me sessions with opaque refresh
// tokens, resolves refresh tokens, and revokes sessions one at a time or per user.
type Service struct {
	cfg      Config
	tokens   AccessTokenManager
	store    Store
	hasher   token.Hasher
	detector *Detector
}

// Issued is the result of a remember-me login.
type Issued struct {
	Session      Session
	AccessToken  string
	AccessExp    time.Time
	RefreshToken string
	RefreshExp   time.Time
}

// Device describes the client that owns a new session.
type Device struct {
	UserAgent  string
	IP         string
	DeviceInfo string
}

// NewService constructs a Service. cfg must pass Validate.
func NewService(cfg Config, store Store, tokens AccessTokenManager, hasher token.Hasher) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if store == nil || tokens == nil {
		return nil, fmt.Errorf("%w: store and token manager are required", ErrConfig)
	}
	return &Service{
		cfg:      cfg,
		tokens:   tokens,
		store:    store,
		hasher:   hasher,
		detector: NewDetector(store, cfg.RecentSessionsLimit),
	}, nil
}

// Config returns the active configuration.
func (s *Service) Config() Config { return s.cfg }

// Store returns the underlying session store.
func (s *Service) Store() Store { return s.store }

// Detector returns the suspicious-activity detector bound to the store.
func (s *Service) Detector() *Detector { return s.detector }

// IssueAccessToken issues a short-lived access token; sessionID may be empty.
func (s *Service) IssueAccessToken(subject, sessionID string, now time.Time) (string, time.Time, error) {
	return s.tokens.Issue(subject, sessionID, now)
}

// VerifyAccessToken verifies signature and expiry only. Session state is checked by the gate.
func (s *Service) VerifyAccessToken(raw string, now time.Time) (AccessClaims, error) {
	return s.tokens.Verify(raw, now)
}

// IssueSession creates a session row and returns a session-bound access token
// plus the plaintext refresh token. Only the refresh token hash is persisted.
func (s *Service) IssueSession(ctx context.Context, now time.Time, userID, subject string, dev Device) (Issued, error) {
	refreshPlain, err := NewRefreshToken(s.cfg.RefreshTokenBytes)
	if err != nil {
		return Issued{}, fmt.Errorf("session: generate refresh token: %w", err)
	}

	refreshExp := now.Add(s.cfg.RefreshTokenTTL)

	sess, err := s.store.Create(ctx, NewSession{
		UserID:           userID,
		RefreshTokenHash: s.hasher.RefreshTokenHex(refreshPlain),
		Now:              now,
		ExpiresAt:        refreshExp,
		UserAgent:        dev.UserAgent,
		IPAddress:        dev.IP,
		DeviceInfo:       dev.DeviceInfo,
	})
	if err != nil {
		return Issued{}, err
	}

	accessToken, accessExp, err := s.tokens.Issue(subject, sess.ID, now)
	if err != nil {
		return Issued{}, err
	}

	return Issued{
		Session:      sess,
		AccessToken:  accessToken,
		AccessExp:    accessExp,
		RefreshToken: refreshPlain,
		RefreshExp:   refreshExp,
	}, nil
}

// LookupRefresh resolves a plaintext refresh token to its active session.
func (s *Service) LookupRefresh(ctx context.Context, refreshPlain string, now time.Time) (Session, error) {
	refreshPlain = strings.TrimSpace(refreshPlain)
	if refreshPlain == "" || len(refreshPlain) > maxRefreshTokenLen {
		return Session{}, ErrSessionNotFound
	}
	return s.store.FindActiveByRefreshHash(ctx, s.hasher.RefreshTokenHex(refreshPlain), now)
}

// Resolve checks a session bound to an access token for userID.
//
// A missing session is reported as (Session{}, false, nil) so tokens whose
// session row is gone remain usable. An expired session is invalidated as
// a side effect.
func (s *Service) Resolve(ctx context.Context, sessionID, userID string, now time.Time) (Session, bool, error) {
	sess, err := s.store.GetByID(ctx, sessionID)
	if errors.Is(err, ErrSessionNotFound) {
		return Session{}, false, nil
	}
	if err != nil {
		return Session{}, false, err
	}

	if sess.UserID != userID {
		return Session{}, true, ErrInvalidToken
	}
	if !sess.IsValid {
		return sess, true, ErrSessionRevoked
	}
	if !now.Before(sess.ExpiresAt) {
		if _, err := s.store.Invalidate(ctx, sess.ID); err != nil {
			return sess, true, err
		}
		sess.IsValid = false
		return sess, true, ErrSessionRevoked
	}

	if err := s.store.Touch(ctx, sess.ID, now); err != nil {
		return sess, true, err
	}
	sess.LastActivity = now
	return sess, true, nil
}

// GetSession loads a session by ID.
func (s *Service) GetSession(ctx context.Context, id string) (Session, error) {
	return s.store.GetByID(ctx, id)
}

// Touch records activity on a session.
func (s *Service) Touch(ctx context.Context, id string, now time.Time) error {
	return s.store.Touch(ctx, id, now)
}

// Invalidate revokes one session (idempotent).
func (s *Service) Invalidate(ctx context.Context, id string) (bool, error) {
	return s.store.Invalidate(ctx, id)
}

// InvalidateAll revokes every valid session of userID except exceptID.
func (s *Service) InvalidateAll(ctx context.Context, userID, exceptID string) (int64, error) {
	return s.store.InvalidateAllForUser(ctx, userID, exceptID)
}

// List returns the user's valid sessions, newest first.
func (s *Service) List(ctx context.Context, userID string) ([]Session, error) {
	return s.store.ListValidForUser(ctx, userID)
}
