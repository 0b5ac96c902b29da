package main

import (
	"context"
	"errors"
	"log/slog"

	"restodir/backend/internal/locate"
	"restodir/backend/internal/mapurl"
	"restodir/backend/internal/models"
)

type restaurantStore interface {
	ListUnlocated(ctx context.Context, limit int) ([]models.Restaurant, error)
	ListLocated(ctx context.Context, afterID int64, limit int) ([]models.Restaurant, error)
	SetRestaurantLocation(ctx context.Context, id int64, coord mapurl.Coordinate) error
	TouchRestaurant(ctx context.Context, id int64) error
}

type restaurantLocator interface {
	Locate(ctx context.Context, r models.Restaurant) (locate.Location, error)
}

type placesIndexer interface {
	IndexRestaurants(ctx context.Context, items []models.Restaurant) (int, error)
}

type backfillStats struct {
	Located    int
	NotLocated int
	Failed     int
}

type syncStats struct {
	Pages   int
	Indexed int
}

type worker struct {
	repo    restaurantStore
	locator restaurantLocator
	index   placesIndexer
	batch   int
	logger  *slog.Logger
}

// backfill locates one batch of restaurants without coordinates. Restaurants that cannot
// be located are touched so the next batch moves on to others.
func (w *worker) backfill(ctx context.Context) (backfillStats, error) {
	var stats backfillStats
	items, err := w.repo.ListUnlocated(ctx, w.batch)
	if err != nil {
		return stats, err
	}
	for _, item := range items {
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}
		loc, err := w.locator.Locate(ctx, item)
		switch {
		case err == nil:
			if err := w.repo.SetRestaurantLocation(ctx, item.ID, loc.Coordinate); err != nil {
				stats.Failed++
				w.logger.Error("store_location_failed", "restaurant_id", item.ID, "error", err)
				continue
			}
			stats.Located++
			w.logger.Info("restaurant_located", "restaurant_id", item.ID, "source", loc.Source, "lat", loc.Coordinate.Latitude, "lng", loc.Coordinate.Longitude)
		case errors.Is(err, locate.ErrNotLocated):
			stats.NotLocated++
			w.logger.Warn("restaurant_not_located", "restaurant_id", item.ID)
			if err := w.repo.TouchRestaurant(ctx, item.ID); err != nil {
				w.logger.Warn("touch_restaurant_failed", "restaurant_id", item.ID, "error", err)
			}
		default:
			stats.Failed++
			w.logger.Error("locate_failed", "restaurant_id", item.ID, "error", err)
			if err := w.repo.TouchRestaurant(ctx, item.ID); err != nil {
				w.logger.Warn("touch_restaurant_failed", "restaurant_id", item.ID, "error", err)
			}
		}
	}
	return stats, nil
}

// syncIndex pages through every located restaurant and bulk-indexes it.
func (w *worker) syncIndex(ctx context.Context) (syncStats, error) {
	var stats syncStats
	if w.index == nil {
		return stats, nil
	}
	var afterID int64
	for {
		items, err := w.repo.ListLocated(ctx, afterID, w.batch)
		if err != nil {
			return stats, err
		}
		if len(items) == 0 {
			return stats, nil
		}
		n, err := w.index.IndexRestaurants(ctx, items)
		if err != nil {
			return stats, err
		}
		stats.Pages++
		stats.Indexed += n
		afterID = items[len(items)-1].ID
		if len(items) < w.batch {
			return stats, nil
		}
	}
}

func (w *worker) tick(ctx context.Context) {
	stats, err := w.backfill(ctx)
	if err != nil {
		w.logger.Error("backfill_error", "error", err)
	} else {
		w.logger.Info("backfill_done", "located", stats.Located, "not_located", stats.NotLocated, "failed", stats.Failed)
	}

	synced, err := w.syncIndex(ctx)
	if err != nil {
		w.logger.Error("index_sync_error", "error", err)
		return
	}
	if w.index != nil {
		w.logger.Info("index_sync_done", "pages", synced.Pages, "indexed", synced.Indexed)
	}
}
