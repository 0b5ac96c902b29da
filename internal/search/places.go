package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"restodir/backend/internal/mapurl"
	"restodir/backend/internal/metrics"
	"restodir/backend/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esutil"
)

const placesMapping = `{
	"mappings": {
		"properties": {
			"id":       {"type": "long"},
			"name":     {"type": "text"},
			"address":  {"type": "text"},
			"location": {"type": "geo_point"}
		}
	}
}`

// Places is the restaurant geo index.
type Places struct {
	client *elasticsearch.Client
	index  string
	logger *slog.Logger
}

type placeDocument struct {
	ID       int64    `json:"id"`
	Name     string   `json:"name"`
	Address  string   `json:"address"`
	Location geoPoint `json:"location"`
}

type geoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			Source placeDocument `json:"_source"`
			Sort   []float64     `json:"sort"`
		} `json:"hits"`
	} `json:"hits"`
}

// NewClient creates an Elasticsearch client for addr.
func NewClient(addr string) (*elasticsearch.Client, error) {
	return elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{addr},
	})
}

// NewPlaces wraps client for the named index.
func NewPlaces(client *elasticsearch.Client, index string, logger *slog.Logger) *Places {
	if logger == nil {
		logger = slog.Default()
	}
	if index == "" {
		index = "places"
	}
	return &Places{client: client, index: index, logger: logger}
}

// EnsureIndex creates the index with a geo_point mapping when it does not exist yet.
func (p *Places) EnsureIndex(ctx context.Context) error {
	exists, err := p.client.Indices.Exists([]string{p.index}, p.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("check index: %w", err)
	}
	defer exists.Body.Close()
	if exists.StatusCode == 200 {
		return nil
	}
	created, err := p.client.Indices.Create(
		p.index,
		p.client.Indices.Create.WithContext(ctx),
		p.client.Indices.Create.WithBody(strings.NewReader(placesMapping)),
	)
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	defer created.Body.Close()
	if created.IsError() {
		return fmt.Errorf("create index: %s", created.Status())
	}
	return nil
}

// IndexRestaurants bulk-indexes the restaurants that carry valid stored coordinates and
// returns how many the cluster accepted. Items rejected individually are logged and not
// counted.
func (p *Places) IndexRestaurants(ctx context.Context, items []models.Restaurant) (int, error) {
	bi, err := esutil.NewBulkIndexer(esutil.BulkIndexerConfig{
		Index:         p.index,
		Client:        p.client,
		NumWorkers:    2,
		FlushBytes:    1 << 20,
		FlushInterval: 5 * time.Second,
	})
	if err != nil {
		return 0, fmt.Errorf("create bulk indexer: %w", err)
	}

	for _, item := range items {
		doc, ok := newPlaceDocument(item)
		if !ok {
			continue
		}
		data, err := json.Marshal(doc)
		if err != nil {
			return 0, err
		}
		err = bi.Add(ctx, esutil.BulkIndexerItem{
			Action:     "index",
			DocumentID: strconv.FormatInt(doc.ID, 10),
			Body:       bytes.NewReader(data),
			OnSuccess: func(context.Context, esutil.BulkIndexerItem, esutil.BulkIndexerResponseItem) {
				metrics.IndexedTotal.WithLabelValues("success").Inc()
			},
			OnFailure: func(_ context.Context, item esutil.BulkIndexerItem, res esutil.BulkIndexerResponseItem, err error) {
				metrics.IndexedTotal.WithLabelValues("failure").Inc()
				if err != nil {
					p.logger.Warn("index_item_failed", "document_id", item.DocumentID, "error", err)
					return
				}
				p.logger.Warn("index_item_failed", "document_id", item.DocumentID, "type", res.Error.Type, "reason", res.Error.Reason)
			},
		})
		if err != nil {
			return 0, fmt.Errorf("queue document %d: %w", doc.ID, err)
		}
	}

	if err := bi.Close(ctx); err != nil {
		return 0, fmt.Errorf("flush bulk indexer: %w", err)
	}
	return int(bi.Stats().NumIndexed), nil
}

// Nearby returns up to limit indexed restaurants ordered by distance from center.
func (p *Places) Nearby(ctx context.Context, center mapurl.Coordinate, limit int) ([]models.NearbyRestaurant, error) {
	body, err := json.Marshal(nearbyQuery(center, limit))
	if err != nil {
		return nil, err
	}
	resp, err := p.client.Search(
		p.client.Search.WithContext(ctx),
		p.client.Search.WithIndex(p.index),
		p.client.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return nil, fmt.Errorf("search nearby: %w", err)
	}
	defer resp.Body.Close()
	if resp.IsError() {
		return nil, fmt.Errorf("search nearby: %s", resp.Status())
	}
	return decodeNearby(resp.Body)
}

func newPlaceDocument(r models.Restaurant) (placeDocument, bool) {
	coord, ok := mapurl.StoredCoordinate(r.Latitude, r.Longitude)
	if !ok {
		return placeDocument{}, false
	}
	return placeDocument{
		ID:       r.ID,
		Name:     r.Name,
		Address:  r.Address,
		Location: geoPoint{Lat: coord.Latitude, Lon: coord.Longitude},
	}, true
}

func nearbyQuery(center mapurl.Coordinate, limit int) map[string]interface{} {
	if limit <= 0 || limit > 50 {
		limit = 10
	}
	return map[string]interface{}{
		"size": limit,
		"query": map[string]interface{}{
			"match_all": map[string]interface{}{},
		},
		"sort": []map[string]interface{}{
			{
				"_geo_distance": map[string]interface{}{
					"location": map[string]interface{}{
						"lat": center.Latitude,
						"lon": center.Longitude,
					},
					"order":           "asc",
					"unit":            "km",
					"mode":            "min",
					"distance_type":   "arc",
					"ignore_unmapped": true,
				},
			},
		},
	}
}

func decodeNearby(r io.Reader) ([]models.NearbyRestaurant, error) {
	var payload searchResponse
	if err := json.NewDecoder(r).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	out := make([]models.NearbyRestaurant, 0, len(payload.Hits.Hits))
	for _, hit := range payload.Hits.Hits {
		item := models.NearbyRestaurant{
			ID:      hit.Source.ID,
			Name:    hit.Source.Name,
			Address: hit.Source.Address,
			Lat:     hit.Source.Location.Lat,
			Lng:     hit.Source.Location.Lon,
		}
		if len(hit.Sort) > 0 {
			item.DistanceKM = hit.Sort[0]
		}
		out = append(out, item)
	}
	return out, nil
}
