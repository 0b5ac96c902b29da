package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"restodir/backend/internal/config"
	"restodir/backend/internal/db"
	"restodir/backend/internal/http/handlers"
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

	logger, cleanup, err := logging.New(cfg.Logging, "api")
	if err != nil {
		log.Fatalf("log error: %v", err)
	}
	defer func() {
		_ = cleanup()
	}()
	slog.SetDefault(logger)

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("db error", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	repo := repository.New(pool)

	locator, closeLocator, err := locate.NewFromConfig(cfg, logger)
	if err != nil {
		logger.Error("locator error", "error", err)
		os.Exit(1)
	}
	defer closeLocator()

	var places handlers.NearbyIndex
	if cfg.Elastic.URL != "" {
		client, err := search.NewClient(cfg.Elastic.URL)
		if err != nil {
			logger.Error("elasticsearch error", "error", err)
			os.Exit(1)
		}
		places = search.NewPlaces(client, cfg.Elastic.Index, logger)
	} else {
		logger.Warn("search_disabled", "reason", "ELASTIC_URL is not set")
	}

	h := handlers.New(repo, locator, places, logger)
	router := handlers.NewRouter(h, handlers.RouterConfig{
		JWTSecret:          cfg.JWTSecret,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		RequestTimeout:     30 * time.Second,
		Logger:             logger,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("api_listening", "addr", cfg.HTTPAddr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutdown")
	ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctxShutdown)
}
