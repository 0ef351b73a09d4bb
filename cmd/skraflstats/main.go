// skraflstats runs one nightly pipeline tick from cron: the stats
// aggregation window since the last successful run, then the top-100
// ratings rebuild. Interrupted runs resume on the next invocation.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/skrafl/server/internal/config"
	"github.com/skrafl/server/internal/stats"
	"github.com/skrafl/server/internal/store"
	"github.com/skrafl/server/internal/store/mongostore"
	"github.com/skrafl/server/internal/store/pgstore"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfgPath := "config/server.toml"
	if p := os.Getenv("SKRAFL_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var factory store.Factory
	switch cfg.Database.Backend {
	case config.BackendPostgres:
		db, err := pgstore.NewDB(ctx, cfg.Database, log)
		if err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		if err := pgstore.RunMigrations(ctx, db.Pool, log); err != nil {
			db.Close()
			return fmt.Errorf("migrations: %w", err)
		}
		factory = db
	case config.BackendMongo:
		st, err := mongostore.NewStore(ctx, cfg.Database, cfg.Redis, log)
		if err != nil {
			return fmt.Errorf("mongo: %w", err)
		}
		factory = st
	default:
		return fmt.Errorf("unknown backend %q", cfg.Database.Backend)
	}

	sm := store.NewSessionManager(factory, log)
	defer sm.Close()

	runner := stats.NewRunner(sm, stats.NewService(log), cfg.Nightly.Deadline, log)
	if err := runner.RunNightly(context.Background()); err != nil {
		return fmt.Errorf("nightly run: %w", err)
	}
	log.Info("nightly pipeline finished")
	return nil
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}
	zapCfg := zap.NewProductionConfig()
	if cfg.Format != "json" {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	return zapCfg.Build()
}
