package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"restodir/backend/internal/http/middleware"
	"restodir/backend/internal/metrics"
	"restodir/backend/internal/rate"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

type RouterConfig struct {
	JWTSecret          string
	RateLimitPerMinute int
	RequestTimeout     time.Duration
	Logger             *slog.Logger
}

// NewRouter mounts every route on a chi router.
func NewRouter(h *Handler, cfg RouterConfig) http.Handler {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	var limiter *rate.WindowLimiter
	if cfg.RateLimitPerMinute > 0 {
		limiter = rate.NewWindowLimiter(cfg.RateLimitPerMinute, time.Minute)
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(cfg.Logger))
	r.Use(metrics.Middleware)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(cfg.RequestTimeout))
	r.Use(corsMiddleware)

	r.Get("/healthz", h.Health)
	r.Handle("/metrics", metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimit(limiter))
		r.Get("/maps/extract", h.ExtractMapURL)
		r.Get("/maps/embed", h.BuildMapEmbed)
		r.Get("/restaurants/nearby", h.NearbyRestaurants)
		r.Get("/restaurants/{id}/map", h.RestaurantMap)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthMiddleware(cfg.JWTSecret))
		r.Use(middleware.RequireAdmin)
		r.Post("/admin/restaurants/{id}/locate", h.AdminLocateRestaurant)
	})

	return r
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization,Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
