package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"catsync/internal/catalog"
	"catsync/internal/config"
	"catsync/internal/database"
	"catsync/internal/logger"
	"catsync/internal/queue"
	"catsync/internal/store"
	"catsync/internal/sync"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	// Initialize logger
	logger := logger.New(cfg.LogLevel)

	// Initialize database
	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("Failed to connect to database: %v", err)
	}

	// Wire the reconciler the worker drains jobs through
	st := store.New(db.DB, logger)
	api := catalog.NewClient(cfg.CatalogAPIURL, cfg.CatalogAccessToken, logger)
	eval := sync.NewEvaluator(cfg)
	cache := sync.NewIDCache(st, api, cfg.CatalogID, logger)
	rec := sync.NewReconciler(cfg, st, api, cache, eval, logger)

	// Initialize worker
	worker := queue.NewWorker(cfg, logger, db.DB, rec)

	// Start worker
	logger.Info("Starting worker...")
	go worker.Start()

	// Periodic healthcheck heartbeat resumes stalled jobs
	q := queue.New(db.DB, cfg.KafkaBrokers, logger)
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	go func() {
		for range ticker.C {
			q.HandleHealthcheck(context.Background())
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down worker...")
	worker.Stop()
}
