package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"restodir/backend/internal/config"
	"restodir/backend/internal/db"
	"restodir/backend/internal/locate"
	"restodir/backend/internal/logging"
	"restodir/backend/internal/repository"
	"restodir/backend/internal/search"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger, cleanup, err := logging.New(cfg.Logging, "worker")
	if err != nil {
		log.Fatalf("log error: %v", err)
	}
	defer func() {
		_ = cleanup()
	}()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("db error", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	locator, closeLocator, err := locate.NewFromConfig(cfg, logger)
	if err != nil {
		logger.Error("locator error", "error", err)
		os.Exit(1)
	}
	defer closeLocator()

	w := &worker{
		repo:    repository.New(pool),
		locator: locator,
		batch:   cfg.Worker.Batch,
		logger:  logger,
	}
	if cfg.Elastic.URL != "" {
		client, err := search.NewClient(cfg.Elastic.URL)
		if err != nil {
			logger.Error("elasticsearch error", "error", err)
			os.Exit(1)
		}
		places := search.NewPlaces(client, cfg.Elastic.Index, logger)
		if err := places.EnsureIndex(ctx); err != nil {
			logger.Error("ensure index error", "error", err)
			os.Exit(1)
		}
		w.index = places
	}

	logger.Info("worker_started", "interval", cfg.Worker.Interval.String(), "batch", cfg.Worker.Batch, "index", w.index != nil)
	ticker := time.NewTicker(cfg.Worker.Interval)
	defer ticker.Stop()
	for {
		w.tick(ctx)
		select {
		case <-ctx.Done():
			logger.Info("shutdown")
			return
		case <-ticker.C:
		}
	}
}
