package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/alteredfree/altered-server-go/internal/config"
	"github.com/alteredfree/altered-server-go/internal/game"
	"github.com/alteredfree/altered-server-go/internal/server"
	"github.com/alteredfree/altered-server-go/internal/snapshot"
)

var (
	configPath = flag.String("config", "config/config.yaml", "path to configuration file")
	version    = "dev" // set via ldflags during build
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := initLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting Altered server",
		zap.String("version", version),
		zap.String("config", *configPath),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	store, closeStore, err := newStore(ctx, cfg.Storage, logger)
	if err != nil {
		logger.Fatal("failed to initialize snapshot store", zap.Error(err))
	}
	defer closeStore()
	logger.Info("snapshot store initialized", zap.String("backend", cfg.Storage.Backend))

	registry := game.NewRegistry(store, logger)
	if err := registry.RestoreAll(ctx); err != nil {
		logger.Warn("failed to restore persisted matches", zap.Error(err))
	}
	logger.Info("match registry initialized", zap.Int("matches", registry.Count()))

	validation := game.Validation{
		MaxNameLength: cfg.Validation.MaxNameLength,
		MinDeckSize:   cfg.Validation.MinDeckSize,
	}
	engine := game.NewEngine(store, validation, logger)
	logger.Info("game engine initialized")

	srv := server.NewServer(cfg.Server, engine, registry, logger)

	go func() {
		if serveErr := srv.ListenAndServe(); serveErr != nil {
			logger.Error("HTTP server error", zap.Error(serveErr))
		}
	}()

	logger.Info("Altered server initialized",
		zap.String("version", version),
		zap.String("address", cfg.Server.Address),
	)

	sig := <-sigChan
	logger.Info("received shutdown signal", zap.String("signal", sig.String()))

	logger.Info("shutting down gracefully...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}

	logger.Info("Altered server stopped")
}

// newStore builds the configured snapshot backend.
func newStore(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (snapshot.Store, func(), error) {
	switch cfg.Backend {
	case "file":
		store, err := snapshot.NewFileStore(cfg.Dir, logger)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {}, nil
	case "postgres":
		store, err := snapshot.NewPostgresStore(ctx, cfg.Postgres.DSN, logger)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	case "redis":
		store, err := snapshot.NewRedisStore(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { store.Close() }, nil
	case "memory":
		return snapshot.NewMemoryStore(), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// initLogger initializes the zap logger based on configuration
func initLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
