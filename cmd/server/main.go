package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/gametable/gametable-server-go/internal/catalog"
	"github.com/gametable/gametable-server-go/internal/config"
	"github.com/gametable/gametable-server-go/internal/game"
	"github.com/gametable/gametable-server-go/internal/metrics"
	"github.com/gametable/gametable-server-go/internal/repository"
	"github.com/gametable/gametable-server-go/internal/server"
	"github.com/gametable/gametable-server-go/internal/user"
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
	logger, err := initLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting GameTable server",
		zap.String("version", version),
		zap.String("config", *configPath),
	)

	// Create context that listens for termination signals
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Initialize database
	db, err := repository.NewDB(ctx, cfg.Database, logger)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	// Initialize repositories and user manager
	userRepo := repository.NewUserRepository(db)
	cardRepo := repository.NewCardRepository(db)

	userMgr := user.NewManager(userRepo, cfg.Storage.DataDir, logger)
	logger.Info("user manager initialized")

	// Initialize session registry
	registry := game.NewRegistry(cfg.Server.BroadcastBuffer, logger)
	logger.Info("session registry initialized",
		zap.Int("broadcast_buffer", cfg.Server.BroadcastBuffer),
	)

	// Initialize metrics
	m := metrics.New()

	// Start card catalog sync in the background
	if len(cfg.Catalog.Sets) > 0 {
		client := catalog.NewClient(cfg.Catalog.BaseURL, cfg.Catalog.RequestDelay, logger)
		syncer := catalog.NewSyncer(client, cardRepo, cfg.Storage.DataDir, logger)
		go syncer.SyncSets(ctx, cfg.Catalog.Sets)
		logger.Info("card catalog sync started",
			zap.Strings("sets", cfg.Catalog.Sets),
		)
	}

	srv := server.New(registry, userMgr, cardRepo, cfg.Storage, m, logger)
	httpServer := &http.Server{
		Addr:    cfg.Server.Address,
		Handler: srv.Routes(),
	}

	go func() {
		logger.Info("starting HTTP server", zap.String("address", cfg.Server.Address))
		if serveErr := httpServer.ListenAndServe(); serveErr != nil && serveErr != http.ErrServerClosed {
			logger.Error("HTTP server error", zap.Error(serveErr))
		}
	}()

	logger.Info("GameTable server initialized",
		zap.String("version", version),
		zap.String("address", cfg.Server.Address),
	)

	// Wait for termination signal
	sig := <-sigChan
	logger.Info("received shutdown signal", zap.String("signal", sig.String()))

	// Graceful shutdown
	logger.Info("shutting down gracefully...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	logger.Info("GameTable server stopped")
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
