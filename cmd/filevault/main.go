package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-redis/redis/v8"

	"github.com/devanshpatel/filevault/internal/analyzer"
	"github.com/devanshpatel/filevault/internal/cache"
	"github.com/devanshpatel/filevault/internal/config"
	"github.com/devanshpatel/filevault/internal/events"
	"github.com/devanshpatel/filevault/internal/extract"
	"github.com/devanshpatel/filevault/internal/http/handlers/files"
	"github.com/devanshpatel/filevault/internal/http/middleware"
	"github.com/devanshpatel/filevault/internal/objectstore/miniostore"
	"github.com/devanshpatel/filevault/internal/objectstore/s3store"
	"github.com/devanshpatel/filevault/internal/scanner"
	mongostore "github.com/devanshpatel/filevault/internal/storage/mongo"
	"github.com/devanshpatel/filevault/internal/workers"
)

func main() {
	// load config
	cfg := config.MustLoad()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	ctx := context.Background()

	// metadata store
	store, err := mongostore.NewStore(ctx, cfg)
	if err != nil {
		log.Fatal("Failed to initialize metadata store:", err)
	}
	slog.Info("Connected to MongoDB")

	// hot tier
	hot, err := miniostore.NewStore(cfg)
	if err != nil {
		log.Fatal("Failed to initialize hot tier:", err)
	}
	slog.Info("Connected to MinIO hot tier")

	// cold tier (may come back disabled without AWS credentials)
	cold, err := s3store.NewStore(ctx, cfg, logger)
	if err != nil {
		log.Fatal("Failed to initialize cold tier:", err)
	}

	// redis cache
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}
	slog.Info("Connected to Redis")

	// malware scanner
	var scan scanner.Scanner
	if cfg.ClamAV.Enabled {
		clam := scanner.NewClamAV(cfg.ClamAV.Address)
		if clam.Available() {
			slog.Info("Connected to ClamAV", slog.String("address", cfg.ClamAV.Address))
		} else {
			slog.Warn("ClamAV configured but not reachable", slog.String("address", cfg.ClamAV.Address))
		}
		scan = clam
	}

	// AI analyzer
	ai := analyzer.NewClient(cfg)
	if !ai.Available() {
		slog.Info("AI analyzer disabled (no API key)")
	}

	// background pipeline
	syncWorker := workers.NewSyncWorker(store, hot, cold, scan,
		cfg.Workers.SyncInterval, cfg.Workers.CallTimeout, logger)
	analysisWorker := workers.NewAnalysisWorker(store, hot, extract.NewFileExtractor(), ai,
		cfg.Workers.AnalysisInterval, cfg.Workers.CallTimeout, logger)

	manager := workers.NewManager(syncWorker, analysisWorker, logger)
	if err := manager.Start(ctx); err != nil {
		log.Fatal("Failed to start background workers:", err)
	}

	// http surface
	cacheService := cache.NewService(store, redisClient)
	audit := events.NewMongoRecorder(store.AuditCollection(), logger)
	handlers := files.NewHandlers(store, cacheService, hot, cold, scan, audit, logger)
	validate := validator.New()

	auth := middleware.AuthMiddleware(cfg.JWTSecret)
	rateLimits := middleware.NewRateLimitConfig(redisClient)

	router := http.NewServeMux()
	router.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	router.Handle("POST /upload",
		auth(rateLimits.RateLimitMiddleware("upload")(handlers.Upload())))
	router.Handle("GET /files", auth(handlers.List()))
	router.Handle("GET /files/{filename}", auth(handlers.Get()))
	router.Handle("PATCH /files/{filename}", auth(handlers.Update(validate)))
	router.Handle("DELETE /files/{filename}", auth(handlers.Delete()))
	router.Handle("POST /files/{filename}/reanalyze",
		auth(rateLimits.RateLimitMiddleware("reanalyze")(handlers.Reanalyze())))
	router.Handle("GET /files/{filename}/download", auth(handlers.Download()))
	router.Handle("POST /files/{filename}/refresh-urls", auth(handlers.RefreshURLs()))
	router.Handle("GET /stats", auth(handlers.Stats()))
	router.Handle("GET /search", auth(handlers.Search(validate)))

	server := http.Server{
		Addr:    cfg.HTTPServer.Address,
		Handler: router,
	}

	log.Println("server started on", cfg.HTTPServer.Address)

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		err := server.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			log.Fatalf("failed to start server: %s", err)
		}
	}()

	<-done

	slog.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("failed to gracefully shutdown server", slog.String("error", err.Error()))
	}

	manager.Stop()

	if err := store.Close(shutdownCtx); err != nil {
		slog.Error("failed to close metadata store", slog.String("error", err.Error()))
	}

	slog.Info("Server stopped")
}
