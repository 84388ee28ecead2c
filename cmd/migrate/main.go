// Command migrate applies or reports the embedded BeeTrack schema migrations.
//
// Usage:
//
//	migrate [-dsn URL] up|status
//
// The DSN defaults to BEETRACK_DATABASE_URL.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/zrdt80/beetrack/cmd/internal/db"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string) error {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig()
	v.AutomaticEnv()

	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	dsn := fs.String("dsn", v.GetString("BEETRACK_DATABASE_URL"), "Postgres connection URL")
	timeout := fs.Duration("timeout", 2*time.Minute, "overall timeout")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *dsn == "" {
		return fmt.Errorf("migrate: BEETRACK_DATABASE_URL or -dsn is required")
	}

	log, err := zap.NewProduction()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	ctx, cancelTimeout := context.WithTimeout(ctx, *timeout)
	defer cancelTimeout()

	cmd := fs.Arg(0)
	if cmd == "" {
		cmd = "up"
	}

	switch cmd {
	case "up":
		if err := db.Migrate(ctx, *dsn); err != nil {
			log.Error("migrate.up.fail", zap.Error(err))
			return err
		}
		log.Info("migrate.up.done")
	case "status":
		version, err := db.Status(ctx, *dsn)
		if err != nil {
			log.Error("migrate.status.fail", zap.Error(err))
			return err
		}
		log.Info("migrate.status", zap.Int64("version", version))
	default:
		return fmt.Errorf("migrate: unknown command %q (want up or status)", cmd)
	}
	return nil
}
