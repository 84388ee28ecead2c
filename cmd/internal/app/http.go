package app

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	authapi "github.com/zrdt80/beetrack/cmd/internal/auth/api"
	"github.com/zrdt80/beetrack/cmd/internal/httpx"
)

func newRouter(a *App, auth *authapi.Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(WithRequestLogging(a.log, a.metrics))
	r.Use(WithSecurityHeaders)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", a.handleReady)
	r.Method(http.MethodGet, "/metrics", a.metrics.Handler())

	r.Route("/users", auth.Routes)

	return r
}

func (a *App) handleReady(w http.ResponseWriter, r *http.Request) {
	if a.cfg.ReadinessRequireDB && a.pool == nil {
		httpx.WriteError(w, http.StatusServiceUnavailable, "not_ready", "db not configured")
		return
	}

	if a.pool != nil {
		if err := PingDB(r.Context(), a.pool, 2*time.Second); err != nil {
			a.log.Info("readyz.db.not_ready", zap.Error(err))
			httpx.WriteError(w, http.StatusServiceUnavailable, "not_ready", "db not ready")
			return
		}
	}
	if a.redis != nil {
		if err := a.redis.Ping(r.Context()).Err(); err != nil {
			a.log.Info("readyz.redis.not_ready", zap.Error(err))
			httpx.WriteError(w, http.StatusServiceUnavailable, "not_ready", "redis not ready")
			return
		}
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
