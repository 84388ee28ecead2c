package gate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/zrdt80/beetrack/cmd/identity"
	"github.com/zrdt80/beetrack/cmd/internal/auth/session"
)

// Sessions is the session capability the gate depends on.
type Sessions interface {
	VerifyAccessToken(raw string, now time.Time) (session.AccessClaims, error)
	IssueAccessToken(subject, sessionID string, now time.Time) (string, time.Time, error)
	LookupRefresh(ctx context.Context, refreshPlain string, now time.Time) (session.Session, error)
	Resolve(ctx context.Context, sessionID, userID string, now time.Time) (session.Session, bool, error)
}

// Users loads users by token subject or session owner.
type Users interface {
	GetUserByEmail(ctx context.Context, email string) (identity.User, error)
	GetUserByID(ctx context.Context, id string) (identity.User, error)
}

// Credentials are the raw inputs of one request.
type Credentials struct {
	AccessToken  string
	RefreshToken string
}

// Principal is the authenticated caller.
type Principal struct {
	User      identity.User
	SessionID string

	// ReissuedToken is set when the request was authenticated through the refresh cookie.
	ReissuedToken string
	ReissuedExp   time.Time
}

// Authenticator implements the gate decision.
type Authenticator struct {
	sessions Sessions
	users    Users
}

// NewAuthenticator returns an Authenticator over sessions and users.
func NewAuthenticator(sessions Sessions, users Users) *Authenticator {
	return &Authenticator{sessions: sessions, users: users}
}

// Authenticate resolves creds to a Principal at now.
//
// Errors are ErrMissingCredentials, session.ErrInvalidToken,
// session.ErrSessionRevoked, identity.ErrAccountInactive, or a wrapped
// infrastructure error.
func (a *Authenticator) Authenticate(ctx context.Context, creds Credentials, now time.Time) (Principal, error) {
	access := strings.TrimSpace(creds.AccessToken)
	refresh := strings.TrimSpace(creds.RefreshToken)

	var (
		p         Principal
		user      identity.User
		sessionID string
		err       error
	)

	switch {
	case access != "":
		claims, verr := a.sessions.VerifyAccessToken(access, now)
		switch {
		case verr == nil:
			user, err = a.userBySubject(ctx, claims.Subject)
			if err != nil {
				return Principal{}, err
			}
			sessionID = claims.SessionID
		case errors.Is(verr, session.ErrTokenExpired) && refresh != "":
			p, user, err = a.fromRefresh(ctx, refresh, now)
			if err != nil {
				return Principal{}, err
			}
			sessionID = p.SessionID
		default:
			return Principal{}, session.ErrInvalidToken
		}
	case refresh != "":
		p, user, err = a.fromRefresh(ctx, refresh, now)
		if err != nil {
			return Principal{}, err
		}
		sessionID = p.SessionID
	default:
		return Principal{}, ErrMissingCredentials
	}

	if err := identity.CheckActive(user); err != nil {
		return Principal{}, err
	}

	if sessionID != "" {
		if _, _, err := a.sessions.Resolve(ctx, sessionID, user.ID, now); err != nil {
			if errors.Is(err, session.ErrInvalidToken) || errors.Is(err, session.ErrSessionRevoked) {
				return Principal{}, err
			}
			return Principal{}, fmt.Errorf("gate: resolve session: %w", err)
		}
	}

	p.User = user
	p.SessionID = sessionID
	return p, nil
}

func (a *Authenticator) userBySubject(ctx context.Context, subject string) (identity.User, error) {
	u, err := a.users.GetUserByEmail(ctx, subject)
	if identity.IsNotFound(err) {
		return identity.User{}, session.ErrInvalidToken
	}
	if err != nil {
		return identity.User{}, fmt.Errorf("gate: load user: %w", err)
	}
	return u, nil
}

func (a *Authenticator) fromRefresh(ctx context.Context, refresh string, now time.Time) (Principal, identity.User, error) {
	sess, err := a.sessions.LookupRefresh(ctx, refresh, now)
	if errors.Is(err, session.ErrSessionNotFound) {
		return Principal{}, identity.User{}, session.ErrInvalidToken
	}
	if err != nil {
		return Principal{}, identity.User{}, fmt.Errorf("gate: lookup refresh: %w", err)
	}

	u, err := a.users.GetUserByID(ctx, sess.UserID)
	if identity.IsNotFound(err) {
		return Principal{}, identity.User{}, session.ErrInvalidToken
	}
	if err != nil {
		return Principal{}, identity.User{}, fmt.Errorf("gate: load user: %w", err)
	}

	tok, exp, err := a.sessions.IssueAccessToken(u.Subject(), sess.ID, now)
	if err != nil {
		return Principal{}, identity.User{}, fmt.Errorf("gate: reissue access token: %w", err)
	}
	return Principal{SessionID: sess.ID, ReissuedToken: tok, ReissuedExp: exp}, u, nil
}

// Authorize reports ErrInsufficientPrivileges unless p's role satisfies required.
func Authorize(p Principal, required identity.Role) error {
	if !p.User.Role.Satisfies(required) {
		return ErrInsufficientPrivileges
	}
	return nil
}
