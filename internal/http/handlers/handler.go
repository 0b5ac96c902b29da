package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"reflect"
	"time"

	authmw "restodir/backend/internal/http/middleware"
	"restodir/backend/internal/locate"
	"restodir/backend/internal/mapurl"
	"restodir/backend/internal/models"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
)

// RestaurantStore is the slice of the repository the handlers use.
type RestaurantStore interface {
	GetRestaurant(ctx context.Context, id int64) (models.Restaurant, error)
	SetRestaurantLocation(ctx context.Context, id int64, coord mapurl.Coordinate) error
}

type MapLocator interface {
	Locate(ctx context.Context, r models.Restaurant) (locate.Location, error)
	Embed(ctx context.Context, r models.Restaurant, lang mapurl.Lang) mapurl.Embed
}

type NearbyIndex interface {
	Nearby(ctx context.Context, center mapurl.Coordinate, limit int) ([]models.NearbyRestaurant, error)
}

type Handler struct {
	repo      RestaurantStore
	locator   MapLocator
	places    NearbyIndex
	logger    *slog.Logger
	validator *validator.Validate
	timeout   time.Duration
}

// New wires the handlers. places may be nil when no search index is configured.
func New(repo RestaurantStore, locator MapLocator, places NearbyIndex, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	validate := validator.New()
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		if name := field.Tag.Get("query"); name != "" {
			return name
		}
		return field.Name
	})
	return &Handler{
		repo:      repo,
		locator:   locator,
		places:    places,
		logger:    logger,
		validator: validate,
		timeout:   5 * time.Second,
	}
}

func (h *Handler) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, h.timeout)
}

// withLocateTimeout leaves room for a short-link round trip and a geocoder call.
func (h *Handler) withLocateTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, 4*h.timeout)
}

func (h *Handler) loggerForRequest(r *http.Request) *slog.Logger {
	logger := h.logger
	if logger == nil {
		return slog.Default()
	}
	if reqID := chimw.GetReqID(r.Context()); reqID != "" {
		logger = logger.With("request_id", reqID)
	}
	if subject, ok := authmw.SubjectFromContext(r.Context()); ok && subject != "" {
		logger = logger.With("subject", subject)
	}
	return logger
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
