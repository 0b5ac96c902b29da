package models

import "time"

// Restaurant is the slice of a directory listing the map features read. The table is
// owned by the directory backend; this service only reads it and fills in coordinates.
type Restaurant struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	Address       string    `json:"address,omitempty"`
	GoogleMapsURL string    `json:"googleMapsUrl,omitempty"`
	Latitude      *float64  `json:"latitude,omitempty"`
	Longitude     *float64  `json:"longitude,omitempty"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// HasCoordinates reports whether both stored coordinates are set.
func (r Restaurant) HasCoordinates() bool {
	return r.Latitude != nil && r.Longitude != nil
}

type NearbyRestaurant struct {
	ID         int64   `json:"id"`
	Name       string  `json:"name"`
	Address    string  `json:"address,omitempty"`
	Lat        float64 `json:"lat"`
	Lng        float64 `json:"lng"`
	DistanceKM float64 `json:"distanceKm"`
}
