package app

import (
	"context"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
)

// Run is the CLI entrypoint used by cmd/beetrack.
// It returns an error instead of calling os.Exit to keep defers effective.
func Run() error {
	cfg, err := LoadConfig()
	if err != nil {
		return err
	}

	log, err := NewLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := New(ctx, cfg, log)
	if err != nil {
		log.Error("app.init.fail", zap.Error(err))
		return err
	}

	return a.Run(ctx)
}
