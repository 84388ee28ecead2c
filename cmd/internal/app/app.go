// Package app wires the BeeTrack auth server runtime: config, logging, storage and HTTP routes.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/zrdt80/beetrack/cmd/identity"
	"github.com/zrdt80/beetrack/cmd/internal/audit"
	authapi "github.com/zrdt80/beetrack/cmd/internal/auth/api"
	"github.com/zrdt80/beetrack/cmd/internal/auth/gate"
	"github.com/zrdt80/beetrack/cmd/internal/auth/session"
	"github.com/zrdt80/beetrack/cmd/internal/db"
	"github.com/zrdt80/beetrack/cmd/internal/metrics"
	"github.com/zrdt80/beetrack/cmd/internal/ratelimit"
	"github.com/zrdt80/beetrack/cmd/security/token"
)

// App is the BeeTrack server runtime. It owns the database pool and Redis client.
type App struct {
	cfg     Config
	log     *zap.Logger
	metrics *metrics.Metrics

	pool  *pgxpool.Pool
	redis *goredis.Client

	handler http.Handler
}

// New constructs a fully wired App.
//
// Without BEETRACK_DATABASE_URL users and sessions live in memory and audit
// events go to the log. Without BEETRACK_REDIS_ADDR rate-limit windows are
// process-local.
func New(ctx context.Context, cfg Config, log *zap.Logger) (*App, error) {
	if log == nil {
		log = zap.NewNop()
	}

	a := &App{cfg: cfg, log: log, metrics: metrics.New()}

	hasher, err := RefreshHasher(cfg)
	if err != nil {
		return nil, err
	}

	var (
		users    identity.Store
		sessions session.Store
		rec      audit.Recorder
	)

	if cfg.DatabaseURL == "" {
		log.Warn("db.disabled.inmemory_store")
		users = identity.NewMemoryStore()
		sessions = session.NewMemoryStore()
		rec = audit.NewLogRecorder(log)
	} else {
		if cfg.AutoMigrate {
			if err := db.Migrate(ctx, cfg.DatabaseURL); err != nil {
				return nil, err
			}
			log.Info("db.migrate.done")
		}

		pool, err := NewDBPool(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("db connect: %w", err)
		}
		a.pool = pool

		if users, err = identity.NewPostgresStore(pool); err != nil {
			a.close()
			return nil, err
		}
		if sessions, err = session.NewPostgresStore(pool, ""); err != nil {
			a.close()
			return nil, err
		}
		if rec, err = audit.NewPostgresRecorder(pool, log); err != nil {
			a.close()
			return nil, err
		}
		log.Info("db.enabled.postgres_store")
	}

	var rates ratelimit.WindowStore
	if cfg.RedisAddr != "" {
		a.redis = goredis.NewClient(&goredis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := a.redis.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			a.close()
			return nil, fmt.Errorf("redis connect: %w", err)
		}
		rates = ratelimit.NewRedisStore(a.redis)
		log.Info("ratelimit.redis.enabled", zap.String("addr", cfg.RedisAddr))
	} else {
		rates = ratelimit.NewMemoryStore(nil)
	}

	handler, err := a.buildAuth(users, sessions, rec, rates, hasher)
	if err != nil {
		a.close()
		return nil, err
	}
	a.handler = newRouter(a, handler)

	return a, nil
}

func (a *App) buildAuth(
	users identity.Store,
	sessions session.Store,
	rec audit.Recorder,
	rates ratelimit.WindowStore,
	hasher token.Hasher,
) (*authapi.Handler, error) {
	idsvc, err := identity.NewService(users, a.cfg.PasswordConfig(), identity.WithLogger(a.log))
	if err != nil {
		return nil, err
	}

	scfg := a.cfg.SessionConfig()
	issuer, err := session.NewJWTIssuer(scfg)
	if err != nil {
		return nil, err
	}
	svc, err := session.NewService(scfg, sessions, issuer, hasher)
	if err != nil {
		return nil, err
	}

	ck := a.cfg.CookieConfig()
	mw := gate.NewMiddleware(gate.NewAuthenticator(svc, users), ck,
		gate.WithAudit(rec),
		gate.WithMetrics(a.metrics),
		gate.WithLogger(a.log),
		gate.WithTrustProxy(a.cfg.TrustProxy),
	)

	return authapi.NewHandler(a.cfg.APIConfig(), authapi.Deps{
		Log:       a.log,
		Users:     idsvc,
		Sessions:  svc,
		Gate:      mw,
		Cookie:    ck,
		Audit:     rec,
		Metrics:   a.metrics,
		RateStore: rates,
	})
}

// Handler returns the root HTTP handler.
func (a *App) Handler() http.Handler { return a.handler }

// Run starts the HTTP server and blocks until ctx is cancelled or the server fails.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           a.handler,
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.WriteTimeout, 15*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
	}

	a.log.Info("server.start",
		zap.String("addr", a.cfg.HTTPAddr),
		zap.Bool("db_enabled", a.pool != nil),
		zap.Bool("redis_enabled", a.redis != nil),
	)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info("server.stop", zap.String("reason", "context_done"))
	case err := <-errCh:
		a.log.Error("server.fail", zap.Error(err))
		a.close()
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), nonZeroDuration(a.cfg.ShutdownTimeout, 10*time.Second))
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("server.shutdown.fail", zap.Error(err))
		a.close()
		return err
	}

	a.close()
	a.log.Info("server.stopped")
	return nil
}

// Close releases the database pool and Redis client.
func (a *App) Close() { a.close() }

func (a *App) close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.Warn("redis.close.fail", zap.Error(err))
		}
		a.redis = nil
	}
	if a.pool != nil {
		a.pool.Close()
		a.pool = nil
	}
}

func nonZeroDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func nonZeroInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
