package locate

import (
	"fmt"
	"log/slog"

	"restodir/backend/internal/cache"
	"restodir/backend/internal/config"
	"restodir/backend/internal/fetch"
	"restodir/backend/internal/geocode"
)

// NewFromConfig builds a Locator with the configured fetcher, geocoder and cache. The
// returned close function releases the cache connection.
func NewFromConfig(cfg *config.Config, logger *slog.Logger) (*Locator, func(), error) {
	if logger == nil {
		logger = slog.Default()
	}
	fetcher := fetch.New(logger, fetch.Config{
		Timeout:      cfg.Fetch.Timeout,
		Retries:      cfg.Fetch.Retries,
		RateLimitRPS: cfg.Fetch.RPS,
	})
	geocoder := geocode.NewClient(geocode.Config{
		Endpoint:     cfg.Geocoder.Endpoint,
		Timeout:      cfg.Geocoder.Timeout,
		CountryCodes: cfg.Geocoder.CountryCodes,
	})

	var store cache.Store
	closeFn := func() {}
	if cfg.Cache.ValkeyAddr != "" {
		vk, err := cache.NewValkey(cfg.Cache.ValkeyAddr)
		if err != nil {
			return nil, nil, fmt.Errorf("connect valkey: %w", err)
		}
		store = vk
		closeFn = vk.Close
	} else {
		logger.Info("cache_fallback", "backend", "memory")
		store = cache.NewMemory(0)
	}

	return New(Options{
		Fetcher:  fetcher,
		Geocoder: geocoder,
		Cache:    store,
		CacheTTL: cfg.Cache.TTL,
		Logger:   logger,
	}), closeFn, nil
}
