package authapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/zrdt80/beetrack/cmd/identity"
	"github.com/zrdt80/beetrack/cmd/internal/audit"
	"github.com/zrdt80/beetrack/cmd/internal/auth/cookie"
	"github.com/zrdt80/beetrack/cmd/internal/auth/gate"
	"github.com/zrdt80/beetrack/cmd/internal/auth/session"
	"github.com/zrdt80/beetrack/cmd/internal/metrics"
	"github.com/zrdt80/beetrack/cmd/internal/ratelimit"
)

// Deps are the collaborators of a Handler.
type Deps struct {
	Log      *zap.Logger
	Users    *identity.Service
	Sessions *session.Service
	Gate     *gate.Middleware
	Cookie   cookie.Config
	Audit    audit.Recorder
	Metrics  *metrics.Metrics

	// RateStore backs the register and login limits. Nil keeps counts in process memory.
	RateStore ratelimit.WindowStore

	// Now overrides the clock (tests).
	Now func() time.Time
}

// Handler wires the /users HTTP surface to identity and session services.
type Handler struct {
	log     *zap.Logger
	cfg     Config
	users   *identity.Service
	store   identity.Store
	sess    *session.Service
	gate    *gate.Middleware
	cookie  cookie.Config
	audit   audit.Recorder
	metrics *metrics.Metrics
	now     func() time.Time

	registerLimit *ratelimit.Limiter
	loginLimit    *ratelimit.Limiter
}

// NewHandler constructs a Handler.
func NewHandler(cfg Config, deps Deps) (*Handler, error) {
	if deps.Users == nil || deps.Sessions == nil || deps.Gate == nil {
		return nil, errors.New("authapi: users, sessions and gate are required")
	}
	cfg = cfg.withDefaults()

	h := &Handler{
		log:     deps.Log,
		cfg:     cfg,
		users:   deps.Users,
		store:   deps.Users.Store(),
		sess:    deps.Sessions,
		gate:    deps.Gate,
		cookie:  deps.Cookie,
		audit:   deps.Audit,
		metrics: deps.Metrics,
		now:     deps.Now,
	}
	if h.log == nil {
		h.log = zap.NewNop()
	}
	if h.audit == nil {
		h.audit = audit.Nop{}
	}
	if h.now == nil {
		h.now = func() time.Time { return time.Now().UTC() }
	}

	rates := deps.RateStore
	if rates == nil {
		rates = ratelimit.NewMemoryStore(nil)
	}
	h.registerLimit = ratelimit.NewLimiter(rates, "register", cfg.RegisterPerMinute, cfg.RateWindow)
	h.loginLimit = ratelimit.NewLimiter(rates, "login", cfg.LoginPerMinute, cfg.RateWindow)

	return h, nil
}

// Routes mounts the /users endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.With(h.rateLimited(h.registerLimit, "register")).Post("/register", h.handleRegister)
	r.With(h.rateLimited(h.loginLimit, "login")).Post("/login", h.handleLogin)
	r.With(h.rateLimited(h.loginLimit, "login")).Post("/login-with-remember", h.handleLogin)
	r.Post("/refresh-token", h.handleRefresh)

	r.Group(func(r chi.Router) {
		r.Use(h.gate.Authenticate)

		r.Post("/logout", h.handleLogout)
		r.Get("/me", h.handleMe)
		r.Put("/me", h.handleUpdateMe)
		r.Get("/sessions", h.handleListSessions)
		r.Delete("/sessions", h.handleRevokeAllSessions)
		r.Delete("/sessions/{id}", h.handleRevokeSession)
		r.Get("/{id}", h.handleGetUser)
	})

	r.Group(func(r chi.Router) {
		r.Use(h.gate.RequireRole(identity.RoleAdmin))

		r.Get("/", h.handleListUsers)
		r.Put("/{id}", h.handleAdminUpdate)
	})
}

// Router returns a standalone router with the /users endpoints at its root.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	h.Routes(r)
	return r
}

func principal(r *http.Request) gate.Principal {
	p, _ := gate.PrincipalFrom(r.Context())
	return p
}
