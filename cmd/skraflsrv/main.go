package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/skrafl/server/internal/challenge"
	"github.com/skrafl/server/internal/chat"
	"github.com/skrafl/server/internal/config"
	"github.com/skrafl/server/internal/elo"
	"github.com/skrafl/server/internal/game"
	"github.com/skrafl/server/internal/locale"
	"github.com/skrafl/server/internal/stats"
	"github.com/skrafl/server/internal/store"
	"github.com/skrafl/server/internal/store/mongostore"
	"github.com/skrafl/server/internal/store/pgstore"
	"github.com/skrafl/server/internal/user"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// Services bundles the wired application services handed to the RPC
// layer.
type Services struct {
	Users      *user.Service
	Games      *game.Service
	Challenges *challenge.Service
	Chat       *chat.Service
	Stats      *stats.Service
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

	factory, err := openBackend(ctx, cfg, log)
	if err != nil {
		return err
	}
	sm := store.NewSessionManager(factory, log)
	defer sm.Close()

	reg, err := locale.LoadRegistry(cfg.Server.DefaultLocale)
	if err != nil {
		return fmt.Errorf("locale registry: %w", err)
	}
	log.Info("locale registry loaded", zap.Strings("locales", reg.Codes()))

	svcs := wireServices(reg, log)
	_ = svcs // handed to the RPC layer, wired separately

	runner := stats.NewRunner(sm, svcs.Stats, cfg.Nightly.Deadline, log)
	loopCtx, stopLoop := context.WithCancel(context.Background())
	defer stopLoop()
	go runner.Loop(loopCtx, cfg.Nightly.RunHourUTC)

	log.Info("server ready",
		zap.String("backend", cfg.Database.Backend),
		zap.String("bind", cfg.Server.BindAddress))

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-shutdownCh
	log.Info("shutting down", zap.String("signal", sig.String()))
	return nil
}

// openBackend selects and connects the persistence substrate, running
// migrations on the relational one.
func openBackend(ctx context.Context, cfg *config.Config, log *zap.Logger) (store.Factory, error) {
	switch cfg.Database.Backend {
	case config.BackendPostgres:
		db, err := pgstore.NewDB(ctx, cfg.Database, log)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		if err := pgstore.RunMigrations(ctx, db.Pool, log); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrations: %w", err)
		}
		return db, nil
	case config.BackendMongo:
		st, err := mongostore.NewStore(ctx, cfg.Database, cfg.Redis, log)
		if err != nil {
			return nil, fmt.Errorf("mongo: %w", err)
		}
		return st, nil
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Database.Backend)
	}
}

func wireServices(reg *locale.Registry, log *zap.Logger) *Services {
	// Robot move generation, word validation and push notifications are
	// provided by external collaborators; nil keeps those paths inert.
	var gen game.MoveGenerator
	var words game.WordValidator
	var notify game.Notifier

	eloSvc := elo.NewService(log)
	games := game.NewService(reg, gen, words, notify, eloSvc, log)
	return &Services{
		Users:      user.NewService(log),
		Games:      games,
		Challenges: challenge.NewService(games, notify, log),
		Chat:       chat.NewService(notify, log),
		Stats:      stats.NewService(log),
	}
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
