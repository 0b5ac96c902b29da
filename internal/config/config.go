package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Env                string
	HTTPAddr           string
	DatabaseURL        string
	JWTSecret          string
	RateLimitPerMinute int
	Cache              CacheConfig
	Elastic            ElasticConfig
	Geocoder           GeocoderConfig
	Fetch              FetchConfig
	Worker             WorkerConfig
	Logging            LoggingConfig
}

type CacheConfig struct {
	ValkeyAddr string
	TTL        time.Duration
}

type ElasticConfig struct {
	URL   string
	Index string
}

type GeocoderConfig struct {
	Endpoint     string
	Timeout      time.Duration
	CountryCodes string
}

type FetchConfig struct {
	Timeout time.Duration
	Retries int
	RPS     float64
}

type WorkerConfig struct {
	Interval time.Duration
	Batch    int
}

type LoggingConfig struct {
	Level  string
	Format string
	File   string
}

func Load() (*Config, error) {
	cfg := &Config{
		Env:                getenv("APP_ENV", "dev"),
		HTTPAddr:           getenv("HTTP_ADDR", ":8080"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		JWTSecret:          os.Getenv("JWT_SECRET"),
		RateLimitPerMinute: getenvInt("RATE_LIMIT_PER_MINUTE", 120),
		Cache: CacheConfig{
			ValkeyAddr: os.Getenv("VALKEY_ADDR"),
			TTL:        getenvDuration("CACHE_TTL", 24*time.Hour),
		},
		Elastic: ElasticConfig{
			URL:   os.Getenv("ELASTIC_URL"),
			Index: getenv("ELASTIC_INDEX", "places"),
		},
		Geocoder: GeocoderConfig{
			Endpoint:     os.Getenv("GEOCODER_ENDPOINT"),
			Timeout:      getenvDuration("GEOCODER_TIMEOUT", 6*time.Second),
			CountryCodes: os.Getenv("GEOCODER_COUNTRY_CODES"),
		},
		Fetch: FetchConfig{
			Timeout: getenvDuration("FETCH_TIMEOUT", 12*time.Second),
			Retries: getenvInt("FETCH_RETRIES", 2),
			RPS:     getenvFloat("FETCH_RPS", 1.5),
		},
		Worker: WorkerConfig{
			Interval: getenvDuration("WORKER_INTERVAL", time.Minute),
			Batch:    getenvInt("WORKER_BATCH", 50),
		},
		Logging: LoggingConfig{
			Level:  getenv("LOG_LEVEL", "info"),
			Format: getenv("LOG_FORMAT", "text"),
			File:   os.Getenv("LOG_FILE"),
		},
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.RateLimitPerMinute <= 0 {
		return nil, fmt.Errorf("RATE_LIMIT_PER_MINUTE must be positive")
	}
	if cfg.Worker.Batch <= 0 {
		cfg.Worker.Batch = 50
	}
	if cfg.Worker.Interval <= 0 {
		cfg.Worker.Interval = time.Minute
	}

	return cfg, nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parsed, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return parsed
}
