package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"bankruptcywatch/config"
	"bankruptcywatch/db"
	qhttp "bankruptcywatch/http"
	"bankruptcywatch/logging"
	"bankruptcywatch/monitoring"
	"bankruptcywatch/pipeline"
	"bankruptcywatch/session"
)

func main() {
	// 1. Load config
	cfg, err := config.Load(config.DefaultPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	// 2. Initialize database
	if err := db.InitDB(cfg.Database.Path); err != nil {
		logger.Fatal("failed to initialize database", zap.Error(err))
	}
	defer db.Close()
	logger.Info("database initialized", zap.String("path", cfg.Database.Path))

	// 3. Wire services
	p := pipeline.New(cfg.ML, logger)
	store, err := session.NewStore(cfg.Session.MaxSessions, p, logger)
	if err != nil {
		logger.Fatal("failed to create session store", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := monitoring.NewWebSocketHub(cfg.Http.AllowedOrigins, logger)
	go hub.Run(ctx)

	if watcher, err := config.Watch(cfg.Path, logger, func(c *config.Config) {
		p.SetLimits(c.ML.Limits)
	}); err != nil {
		logger.Warn("config hot reload disabled", zap.Error(err))
	} else {
		defer watcher.Close()
	}

	handlers := qhttp.NewHandlers(qhttp.Deps{
		Store:          store,
		Pipeline:       p,
		Ingester:       pipeline.NewDataIngester(pipeline.IngestionConfig{}, logger),
		Hub:            hub,
		Metrics:        monitoring.NewMetricsCollector(),
		Logger:         logger,
		MaxUploadBytes: cfg.Http.MaxUploadBytes,
		Persist:        true,
	})

	// 4. Start HTTP server
	server := qhttp.NewServer(cfg.Http, handlers, logger)
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	// 5. Handle graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
		logger.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			logger.Error("HTTP server failed", zap.Error(err))
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Stop(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}
	cancel()

	logger.Info("exiting")
}
