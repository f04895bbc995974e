package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/gi-tcg/gitcg-server-go/internal/catalog"
	"github.com/gi-tcg/gitcg-server-go/internal/config"
	"github.com/gi-tcg/gitcg-server-go/internal/game"
	"github.com/gi-tcg/gitcg-server-go/internal/logging"
	"github.com/gi-tcg/gitcg-server-go/internal/repository"
	"github.com/gi-tcg/gitcg-server-go/internal/server"
)

var (
	configPath = flag.String("config", "config/config.yaml", "path to configuration file")
	version    = "dev" // set via ldflags during build
)

func main() {
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting GI-TCG server",
		zap.String("version", version),
		zap.String("config", *configPath),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load card catalogues
	registry, err := catalog.LoadRegistry(ctx, cfg.Catalog.Files, logger)
	if err != nil {
		logger.Fatal("failed to load catalogues", zap.Error(err))
	}
	if _, err := registry.Data(cfg.Catalog.Version); err != nil {
		logger.Fatal("configured catalogue version is not loaded", zap.Error(err))
	}

	// Initialize game storage
	store, err := repository.Open(ctx, cfg.Storage, logger)
	switch {
	case errors.Is(err, repository.ErrDisabled):
		logger.Warn("game storage disabled; finished games are not persisted")
		store = nil
	case err != nil:
		logger.Fatal("failed to open game storage", zap.Error(err))
	default:
		defer store.Close()
		logger.Info("game storage initialized", zap.String("driver", cfg.Storage.Driver))
	}

	var recorder *game.ReplayRecorder
	if cfg.Replay.Enabled {
		recorder = game.NewReplayRecorder(logger, cfg.Replay.Directory)
		logger.Info("replay recording enabled", zap.String("directory", cfg.Replay.Directory))
	}

	srv := server.NewServer(cfg, registry, store, recorder, logger)

	logger.Info("GI-TCG server initialized",
		zap.String("version", version),
		zap.String("address", cfg.Server.Address),
		zap.Int("max_rooms", cfg.Server.MaxRooms),
		zap.Strings("catalogs", registry.Versions()),
	)

	if err := srv.Run(ctx); err != nil {
		logger.Error("server error", zap.Error(err))
	}
	logger.Info("GI-TCG server stopped")
}
