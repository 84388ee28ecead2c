package session

import (
	"errors"
	"fmt"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

// AccessClaims is the verified content of an access token.
type AccessClaims struct {
	// Subject is the normalized email of the user.
	Subject string
	// SessionID is empty for tokens not bound to a session.
	SessionID string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// AccessTokenManager issues and verifies access tokens.
type AccessTokenManager interface {
	Issue(subject, sessionID string, now time.Time) (token string, exp time.Time, err error)
	Verify(token string, now time.Time) (AccessClaims, error)
}

// JWTIssuer is an HS256 AccessTokenManager.
type JWTIssuer struct {
	key    []byte
	issuer string
	ttl    time.Duration
}

type accessClaims struct {
	SID string `json:"sid,omitempty"`
	jwt.RegisteredClaims
}

// NewJWTIssuer builds an issuer from cfg. The signing key must be at least MinSigningKeyBytes.
func NewJWTIssuer(cfg Config) (*JWTIssuer, error) {
	if len(cfg.SigningKey) < MinSigningKeyBytes {
		return nil, fmt.Errorf("%w: signing key must be at least %d bytes", ErrConfig, MinSigningKeyBytes)
	}
	if cfg.AccessTokenTTL <= 0 {
		return nil, fmt.Errorf("%w: access token ttl must be positive", ErrConfig)
	}
	key := make([]byte, len(cfg.SigningKey))
	copy(key, cfg.SigningKey)
	return &JWTIssuer{key: key, issuer: cfg.Issuer, ttl: cfg.AccessTokenTTL}, nil
}

// Issue signs a token for subject valid in [now, now+ttl).
func (j *JWTIssuer) Issue(subject, sessionID string, now time.Time) (string, time.Time, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return "", time.Time{}, fmt.Errorf("session: empty token subject")
	}

	// NumericDate has second precision; the returned exp must match the signed one.
	now = now.UTC().Truncate(time.Second)
	exp := now.Add(j.ttl)
	claims := accessClaims{
		SID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    j.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign access token: %w", err)
	}
	return signed, exp, nil
}

// Verify checks signature, algorithm, issuer and expiry at now.
// An expired token yields ErrTokenExpired; anything else wrong yields ErrInvalidToken.
func (j *JWTIssuer) Verify(raw string, now time.Time) (AccessClaims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || len(raw) > 4096 {
		return AccessClaims{}, ErrInvalidToken
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	}
	if j.issuer != "" {
		opts = append(opts, jwt.WithIssuer(j.issuer))
	}

	claims := &accessClaims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return j.key, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) && !errors.Is(err, jwt.ErrTokenSignatureInvalid) {
			return AccessClaims{}, ErrTokenExpired
		}
		return AccessClaims{}, ErrInvalidToken
	}
	if tok == nil || !tok.Valid || strings.TrimSpace(claims.Subject) == "" {
		return AccessClaims{}, ErrInvalidToken
	}

	out := AccessClaims{
		Subject:   claims.Subject,
		SessionID: claims.SID,
		ExpiresAt: claims.ExpiresAt.Time.UTC(),
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time.UTC()
	}
	return out, nil
}
