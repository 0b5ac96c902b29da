package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"restodir/backend/internal/mapurl"
	"restodir/backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a restaurant does not exist. It wraps pgx.ErrNoRows.
var ErrNotFound = fmt.Errorf("restaurant not found: %w", pgx.ErrNoRows)

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const restaurantColumns = `id, name, address, google_maps_url, latitude, longitude, updated_at`

func (r *Repository) GetRestaurant(ctx context.Context, id int64) (models.Restaurant, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+restaurantColumns+` FROM restaurants WHERE id = $1`, id)
	out, err := scanRestaurant(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Restaurant{}, ErrNotFound
	}
	return out, err
}

// ListUnlocated returns restaurants missing either coordinate that still have something
// to locate them by, oldest update first.
func (r *Repository) ListUnlocated(ctx context.Context, limit int) ([]models.Restaurant, error) {
	rows, err := r.pool.Query(ctx, `
SELECT `+restaurantColumns+`
FROM restaurants
WHERE (latitude IS NULL OR longitude IS NULL)
	AND (COALESCE(google_maps_url, '') <> '' OR COALESCE(name, '') <> '')
ORDER BY updated_at ASC, id ASC
LIMIT $1;`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRestaurants(rows)
}

// ListLocated pages through restaurants with both coordinates set, by id.
func (r *Repository) ListLocated(ctx context.Context, afterID int64, limit int) ([]models.Restaurant, error) {
	rows, err := r.pool.Query(ctx, `
SELECT `+restaurantColumns+`
FROM restaurants
WHERE latitude IS NOT NULL AND longitude IS NOT NULL AND id > $1
ORDER BY id ASC
LIMIT $2;`, afterID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRestaurants(rows)
}

func (r *Repository) SetRestaurantLocation(ctx context.Context, id int64, coord mapurl.Coordinate) error {
	tag, err := r.pool.Exec(ctx, `
UPDATE restaurants
SET latitude = $2,
	longitude = $3,
	updated_at = now()
WHERE id = $1;`, id, coord.Latitude, coord.Longitude)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// TouchRestaurant bumps updated_at so a restaurant that could not be located moves to the
// back of the ListUnlocated queue.
func (r *Repository) TouchRestaurant(ctx context.Context, id int64) error {
	_, err := r.pool.Exec(ctx, `UPDATE restaurants SET updated_at = now() WHERE id = $1`, id)
	return err
}

func collectRestaurants(rows pgx.Rows) ([]models.Restaurant, error) {
	var out []models.Restaurant
	for rows.Next() {
		item, err := scanRestaurant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func scanRestaurant(row pgx.Row) (models.Restaurant, error) {
	var out models.Restaurant
	var name sql.NullString
	var address sql.NullString
	var mapsURL sql.NullString
	var lat sql.NullFloat64
	var lng sql.NullFloat64
	if err := row.Scan(&out.ID, &name, &address, &mapsURL, &lat, &lng, &out.UpdatedAt); err != nil {
		return models.Restaurant{}, err
	}
	out.Name = name.String
	out.Address = address.String
	out.GoogleMapsURL = mapsURL.String
	if lat.Valid {
		v := lat.Float64
		out.Latitude = &v
	}
	if lng.Valid {
		v := lng.Float64
		out.Longitude = &v
	}
	return out, nil
}
