package gate

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zrdt80/beetrack/cmd/identity"
	"github.com/zrdt80/beetrack/cmd/internal/audit"
	"github.com/zrdt80/beetrack/cmd/internal/auth/cookie"
	"github.com/zrdt80/beetrack/cmd/internal/metrics"
)

func newTestMiddleware(f *fixture, rec *audit.MemoryRecorder, at time.Time) *Middleware {
	return NewMiddleware(f.auth, cookie.DefaultConfig(time.Hour),
		WithAudit(rec),
		WithMetrics(metrics.New()),
		WithClock(func() time.Time { return at }),
	)
}

func okHandler(t *testing.T, wantUser string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := PrincipalFrom(r.Context())
		require.True(t, ok)
		assert.Equal(t, wantUser, p.User.ID)
		w.WriteHeader(http.StatusNoContent)
	})
}

func errorCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return body.Error.Code
}

func TestMiddleware_Success(t *testing.T) {
	f := newFixture(t)
	rec := &audit.MemoryRecorder{}
	mw := newTestMiddleware(f, rec, t0)

	tok, _, err := f.sessions.IssueAccessToken(f.alice.Subject(), "", t0)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/users/me", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rr := httptest.NewRecorder()
	mw.Authenticate(okHandler(t, f.alice.ID)).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Empty(t, rr.Header().Get(HeaderAccessToken))
	events := rec.Find(audit.ActionGate)
	require.Len(t, events, 1)
	assert.Equal(t, audit.OutcomeSuccess, events[0].Outcome)
}

func TestMiddleware_MissingAndInvalid(t *testing.T) {
	f := newFixture(t)
	rec := &audit.MemoryRecorder{}
	mw := newTestMiddleware(f, rec, t0)
	h := mw.Authenticate(okHandler(t, ""))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/users/me", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "missing_credentials", errorCode(t, rr))

	req := httptest.NewRequest(http.MethodGet, "/users/me", nil)
	req.Header.Set("Authorization", "Bearer nope")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "invalid_token", errorCode(t, rr))

	failures := rec.Find(audit.ActionGate)
	require.Len(t, failures, 2)
	assert.Equal(t, audit.OutcomeFailure, failures[1].Outcome)
}

func TestMiddleware_SessionRevokedClearsCookie(t *testing.T) {
	f := newFixture(t)
	mw := newTestMiddleware(f, &audit.MemoryRecorder{}, t0.Add(time.Minute))
	issued := f.login(t, f.alice, t0)
	_, err := f.sessions.Invalidate(t.Context(), issued.Session.ID)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/users/me", nil)
	req.Header.Set("Authorization", "Bearer "+issued.AccessToken)
	rr := httptest.NewRecorder()
	mw.Authenticate(okHandler(t, "")).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "session_revoked", errorCode(t, rr))
	assert.Equal(t, "true", rr.Header().Get(HeaderSessionRevoked))
	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, cookie.DefaultName, cookies[0].Name)
	assert.Equal(t, -1, cookies[0].MaxAge)
}

func TestMiddleware_ReissuesFromCookie(t *testing.T) {
	f := newFixture(t)
	issued := f.login(t, f.alice, t0)
	mw := newTestMiddleware(f, &audit.MemoryRecorder{}, issued.AccessExp.Add(time.Minute))

	req := httptest.NewRequest(http.MethodGet, "/users/me", nil)
	req.Header.Set("Authorization", "Bearer "+issued.AccessToken)
	req.AddCookie(&http.Cookie{Name: cookie.DefaultName, Value: issued.RefreshToken})
	rr := httptest.NewRecorder()
	mw.Authenticate(okHandler(t, f.alice.ID)).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.NotEmpty(t, rr.Header().Get(HeaderAccessToken))
}

func TestMiddleware_InactiveIsForbidden(t *testing.T) {
	f := newFixture(t)
	mw := newTestMiddleware(f, &audit.MemoryRecorder{}, t0)

	off := false
	_, err := f.users.UpdateUser(t.Context(), f.alice.ID, identity.UpdateUserInput{IsActive: &off})
	require.NoError(t, err)
	tok, _, err := f.sessions.IssueAccessToken(f.alice.Subject(), "", t0)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/users/me", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rr := httptest.NewRecorder()
	mw.Authenticate(okHandler(t, "")).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, "account_inactive", errorCode(t, rr))
}

func TestMiddleware_StoreFailureIs500(t *testing.T) {
	f := newFixture(t)
	mw := NewMiddleware(NewAuthenticator(f.sessions, failingUsers{}), cookie.DefaultConfig(time.Hour),
		WithClock(func() time.Time { return t0 }))

	tok, _, err := f.sessions.IssueAccessToken(f.alice.Subject(), "", t0)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/users/me", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rr := httptest.NewRecorder()
	mw.Authenticate(okHandler(t, "")).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "server_error", errorCode(t, rr))
}

func TestMiddleware_RequireRole(t *testing.T) {
	f := newFixture(t)
	rec := &audit.MemoryRecorder{}
	mw := newTestMiddleware(f, rec, t0)

	workerTok, _, err := f.sessions.IssueAccessToken(f.alice.Subject(), "", t0)
	require.NoError(t, err)
	adminTok, _, err := f.sessions.IssueAccessToken(f.bob.Subject(), "", t0)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/users/", nil)
	req.Header.Set("Authorization", "Bearer "+workerTok)
	rr := httptest.NewRecorder()
	mw.RequireRole(identity.RoleAdmin)(okHandler(t, "")).ServeHTTP(rr, req)
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, "insufficient_privileges", errorCode(t, rr))
	assert.Len(t, rec.Find(audit.ActionGuard), 1)

	req = httptest.NewRequest(http.MethodGet, "/users/", nil)
	req.Header.Set("Authorization", "Bearer "+adminTok)
	rr = httptest.NewRecorder()
	mw.RequireRole(identity.RoleAdmin)(okHandler(t, f.bob.ID)).ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	guard := rec.Find(audit.ActionGuard)
	require.Len(t, guard, 2)
	assert.Equal(t, audit.OutcomeFailure, guard[0].Outcome)
	assert.Equal(t, f.alice.ID, guard[0].UserID)
	assert.Equal(t, audit.OutcomeSuccess, guard[1].Outcome)
	assert.Equal(t, f.bob.ID, guard[1].UserID)
	assert.Equal(t, "admin", guard[1].Meta["required"])

	// Authentication failures stay 401 behind the guard.
	rr = httptest.NewRecorder()
	mw.RequireRole(identity.RoleAdmin)(okHandler(t, "")).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/users/", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}
