package session

import (
	"errors"
	"strings"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestIssuer(t *testing.T) *JWTIssuer {
	t.Helper()
	j, err := NewJWTIssuer(validConfig())
	require.NoError(t, err)
	return j
}

func TestJWTIssuer_RoundTrip(t *testing.T) {
	j := newTestIssuer(t)
	now := time.Unix(1_700_000_000, 0).UTC()

	tok, exp, err := j.Issue("alice@example.com", "01HSESSION0000000000000000", now)
	require.NoError(t, err)
	assert.Equal(t, now.Add(30*time.Minute), exp)

	claims, err := j.Verify(tok, now.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", claims.Subject)
	assert.Equal(t, "01HSESSION0000000000000000", claims.SessionID)
	assert.Equal(t, now, claims.IssuedAt)
	assert.Equal(t, exp, claims.ExpiresAt)
}

func TestJWTIssuer_NoSession(t *testing.T) {
	j := newTestIssuer(t)
	now := time.Unix(1_700_000_000, 0).UTC()

	tok, _, err := j.Issue("bob@example.com", "", now)
	require.NoError(t, err)

	claims, err := j.Verify(tok, now)
	require.NoError(t, err)
	assert.Empty(t, claims.SessionID)
}

func TestJWTIssuer_TTLBoundary(t *testing.T) {
	j := newTestIssuer(t)
	now := time.Unix(1_700_000_000, 0).UTC()
	tok, exp, err := j.Issue("alice@example.com", "", now)
	require.NoError(t, err)

	_, err = j.Verify(tok, exp.Add(-time.Second))
	require.NoError(t, err)

	_, err = j.Verify(tok, exp)
	require.ErrorIs(t, err, ErrTokenExpired)
	require.ErrorIs(t, err, ErrInvalidToken)

	_, err = j.Verify(tok, exp.Add(time.Hour))
	require.ErrorIs(t, err, ErrTokenExpired)
}

func TestJWTIssuer_SubSecondIssue(t *testing.T) {
	j := newTestIssuer(t)
	issued := time.Unix(1_700_000_000, 900_000_000).UTC()
	base := time.Unix(1_700_000_000, 0).UTC()

	tok, exp, err := j.Issue("alice@example.com", "", issued)
	require.NoError(t, err)
	assert.Equal(t, base.Add(30*time.Minute), exp)

	claims, err := j.Verify(tok, exp.Add(-200*time.Millisecond))
	require.NoError(t, err)
	assert.Equal(t, base, claims.IssuedAt)
	assert.Equal(t, exp, claims.ExpiresAt)

	_, err = j.Verify(tok, exp)
	require.ErrorIs(t, err, ErrTokenExpired)
}

func TestJWTIssuer_RejectsTamperedAndForeign(t *testing.T) {
	j := newTestIssuer(t)
	now := time.Unix(1_700_000_000, 0).UTC()
	tok, _, err := j.Issue("alice@example.com", "", now)
	require.NoError(t, err)

	parts := strings.Split(tok, ".")
	require.Len(t, parts, 3)
	tampered := parts[0] + "." + parts[1] + "." + strings.Repeat("A", len(parts[2]))
	_, err = j.Verify(tampered, now)
	assert.True(t, errors.Is(err, ErrInvalidToken))
	assert.False(t, errors.Is(err, ErrTokenExpired))

	otherCfg := validConfig()
	otherCfg.SigningKey = []byte(strings.Repeat("x", MinSigningKeyBytes))
	other, err := NewJWTIssuer(otherCfg)
	require.NoError(t, err)
	foreign, _, err := other.Issue("alice@example.com", "", now)
	require.NoError(t, err)
	_, err = j.Verify(foreign, now)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = j.Verify("not-a-jwt", now)
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, err = j.Verify("", now)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTIssuer_RejectsOtherAlgorithms(t *testing.T) {
	j := newTestIssuer(t)
	now := time.Unix(1_700_000_000, 0).UTC()

	claims := accessClaims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "alice@example.com",
		Issuer:    "beetrack",
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	}}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString(validConfig().SigningKey)
	require.NoError(t, err)

	_, err = j.Verify(raw, now)
	assert.ErrorIs(t, err, ErrInvalidToken)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = j.Verify(none, now)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewJWTIssuer_ShortKey(t *testing.T) {
	cfg := validConfig()
	cfg.SigningKey = []byte("too-short")
	_, err := NewJWTIssuer(cfg)
	assert.ErrorIs(t, err, ErrConfig)
}
