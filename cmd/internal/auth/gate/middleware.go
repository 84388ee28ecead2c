package gate

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/zrdt80/beetrack/cmd/identity"
	"github.com/zrdt80/beetrack/cmd/internal/audit"
	"github.com/zrdt80/beetrack/cmd/internal/auth/cookie"
	"github.com/zrdt80/beetrack/cmd/internal/auth/session"
	"github.com/zrdt80/beetrack/cmd/internal/httpx"
	"github.com/zrdt80/beetrack/cmd/internal/metrics"
)

// Response headers set by the middleware.
const (
	HeaderAccessToken    = "X-Access-Token"
	HeaderSessionRevoked = "X-Session-Revoked"
)

type ctxKey struct{}

// WithPrincipal stores p in ctx.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

// PrincipalFrom returns the Principal stored by the middleware.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(ctxKey{}).(Principal)
	return p, ok
}

// Middleware adapts an Authenticator to net/http.
type Middleware struct {
	auth       *Authenticator
	cookie     cookie.Config
	audit      audit.Recorder
	metrics    *metrics.Metrics
	log        *zap.Logger
	trustProxy bool
	now        func() time.Time
}

// MiddlewareOption configures a Middleware.
type MiddlewareOption func(*Middleware)

// WithAudit sets the audit sink.
func WithAudit(r audit.Recorder) MiddlewareOption {
	return func(m *Middleware) {
		if r != nil {
			m.audit = r
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(mt *metrics.Metrics) MiddlewareOption {
	return func(m *Middleware) { m.metrics = mt }
}

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) MiddlewareOption {
	return func(m *Middleware) {
		if log != nil {
			m.log = log
		}
	}
}

// WithTrustProxy honors X-Forwarded-For when recording client IPs.
func WithTrustProxy(v bool) MiddlewareOption {
	return func(m *Middleware) { m.trustProxy = v }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) MiddlewareOption {
	return func(m *Middleware) {
		if now != nil {
			m.now = now
		}
	}
}

// NewMiddleware returns a Middleware reading the refresh cookie described by ck.
func NewMiddleware(auth *Authenticator, ck cookie.Config, opts ...MiddlewareOption) *Middleware {
	m := &Middleware{
		auth:   auth,
		cookie: ck,
		audit:  audit.Nop{},
		log:    zap.NewNop(),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

// Authenticate rejects requests without a valid caller and stores the Principal in the context.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		creds := Credentials{AccessToken: httpx.BearerToken(r)}
		if v, ok := m.cookie.Read(r); ok {
			creds.RefreshToken = v
		}

		p, err := m.auth.Authenticate(r.Context(), creds, m.now())
		if err != nil {
			m.reject(w, r, err)
			return
		}

		m.metrics.AuthDecision("gate", "success")
		m.audit.Record(r.Context(), audit.Event{
			Action:    audit.ActionGate,
			Outcome:   audit.OutcomeSuccess,
			UserID:    p.User.ID,
			SessionID: p.SessionID,
			IP:        httpx.ClientIPString(r, m.trustProxy),
			UserAgent: r.UserAgent(),
			Meta:      map[string]any{"path": r.URL.Path, "reissued": p.ReissuedToken != ""},
		})

		if p.ReissuedToken != "" {
			w.Header().Set(HeaderAccessToken, p.ReissuedToken)
		}
		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
	})
}

// RequireRole authenticates the caller and requires role.
func (m *Middleware) RequireRole(role identity.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		guarded := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, _ := PrincipalFrom(r.Context())
			if err := Authorize(p, role); err != nil {
				m.metrics.AuthDecision("guard", "insufficient_privileges")
				m.audit.Record(r.Context(), audit.Event{
					Action:    audit.ActionGuard,
					Outcome:   audit.OutcomeFailure,
					UserID:    p.User.ID,
					SessionID: p.SessionID,
					IP:        httpx.ClientIPString(r, m.trustProxy),
					UserAgent: r.UserAgent(),
					Meta:      map[string]any{"path": r.URL.Path, "required": role.String(), "role": p.User.Role.String()},
				})
				httpx.WriteError(w, http.StatusForbidden, "insufficient_privileges", "insufficient privileges")
				return
			}
			m.metrics.AuthDecision("guard", "success")
			m.audit.Record(r.Context(), audit.Event{
				Action:    audit.ActionGuard,
				Outcome:   audit.OutcomeSuccess,
				UserID:    p.User.ID,
				SessionID: p.SessionID,
				IP:        httpx.ClientIPString(r, m.trustProxy),
				UserAgent: r.UserAgent(),
				Meta:      map[string]any{"path": r.URL.Path, "required": role.String()},
			})
			next.ServeHTTP(w, r)
		})
		return m.Authenticate(guarded)
	}
}

func (m *Middleware) reject(w http.ResponseWriter, r *http.Request, err error) {
	status, code, msg := classify(err)

	m.metrics.AuthDecision("gate", code)
	m.audit.Record(r.Context(), audit.Event{
		Action:    audit.ActionGate,
		Outcome:   audit.OutcomeFailure,
		IP:        httpx.ClientIPString(r, m.trustProxy),
		UserAgent: r.UserAgent(),
		Meta:      map[string]any{"path": r.URL.Path, "reason": code},
	})

	switch code {
	case "session_revoked":
		w.Header().Set(HeaderSessionRevoked, "true")
		m.cookie.Clear(w)
	case "server_error":
		m.log.Error("auth.gate.fail", zap.Error(err), zap.String("path", r.URL.Path))
	}
	httpx.WriteError(w, status, code, msg)
}

func classify(err error) (status int, code, msg string) {
	switch {
	case errors.Is(err, ErrMissingCredentials):
		return http.StatusUnauthorized, "missing_credentials", "authentication required"
	case errors.Is(err, session.ErrSessionRevoked):
		return http.StatusUnauthorized, "session_revoked", "session has been revoked"
	case errors.Is(err, session.ErrInvalidToken):
		return http.StatusUnauthorized, "invalid_token", "invalid or expired token"
	case errors.Is(err, identity.ErrAccountInactive):
		return http.StatusForbidden, "account_inactive", "account is inactive"
	default:
		return http.StatusInternalServerError, "server_error", "internal error"
	}
}
