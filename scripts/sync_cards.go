// Standalone card-catalog sync: fetches the named sets from Scryfall and
// loads them into the cards table and image directory without starting
// the full server.
//
// Usage: go run scripts/sync_cards.go [-config config/config.yaml] SET...
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/gametable/gametable-server-go/internal/catalog"
	"github.com/gametable/gametable-server-go/internal/config"
	"github.com/gametable/gametable-server-go/internal/repository"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to configuration file")
	flag.Parse()

	sets := flag.Args()
	if len(sets) == 0 {
		fmt.Fprintln(os.Stderr, "usage: sync_cards [-config path] SET...")
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	ctx := context.Background()
	db, err := repository.NewDB(ctx, cfg.Database, logger)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	cardRepo := repository.NewCardRepository(db)
	client := catalog.NewClient(cfg.Catalog.BaseURL, cfg.Catalog.RequestDelay, logger)
	syncer := catalog.NewSyncer(client, cardRepo, cfg.Storage.DataDir, logger)

	start := time.Now()
	syncer.SyncSets(ctx, sets)
	logger.Info("catalog sync finished",
		zap.Strings("sets", sets),
		zap.Duration("elapsed", time.Since(start)),
	)
}
