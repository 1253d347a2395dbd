package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/devanshpatel/filevault/internal/analyzer"
	"github.com/devanshpatel/filevault/internal/config"
	"github.com/devanshpatel/filevault/internal/extract"
	"github.com/devanshpatel/filevault/internal/objectstore/miniostore"
	"github.com/devanshpatel/filevault/internal/objectstore/s3store"
	"github.com/devanshpatel/filevault/internal/scanner"
	mongostore "github.com/devanshpatel/filevault/internal/storage/mongo"
	"github.com/devanshpatel/filevault/internal/workers"
)

// vault-worker runs the background pipeline without the HTTP surface, for
// deployments that split the request path from the workers.
func main() {
	// Load config
	cfg := config.MustLoad()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := mongostore.NewStore(ctx, cfg)
	if err != nil {
		log.Fatal("Failed to initialize metadata store:", err)
	}
	slog.Info("Connected to MongoDB")

	hot, err := miniostore.NewStore(cfg)
	if err != nil {
		log.Fatal("Failed to initialize hot tier:", err)
	}
	slog.Info("Connected to MinIO hot tier")

	cold, err := s3store.NewStore(ctx, cfg, logger)
	if err != nil {
		log.Fatal("Failed to initialize cold tier:", err)
	}

	var scan scanner.Scanner
	if cfg.ClamAV.Enabled {
		scan = scanner.NewClamAV(cfg.ClamAV.Address)
	}

	ai := analyzer.NewClient(cfg)

	syncWorker := workers.NewSyncWorker(store, hot, cold, scan,
		cfg.Workers.SyncInterval, cfg.Workers.CallTimeout, logger)
	analysisWorker := workers.NewAnalysisWorker(store, hot, extract.NewFileExtractor(), ai,
		cfg.Workers.AnalysisInterval, cfg.Workers.CallTimeout, logger)

	manager := workers.NewManager(syncWorker, analysisWorker, logger)
	if err := manager.Start(ctx); err != nil {
		log.Fatal("Failed to start background workers:", err)
	}

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	<-sigCh
	slog.Info("Received shutdown signal")
	cancel()

	manager.Stop()

	if err := store.Close(context.Background()); err != nil {
		slog.Error("failed to close metadata store", slog.String("error", err.Error()))
	}

	slog.Info("Workers stopped")
}
