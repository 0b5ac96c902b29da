package locate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"restodir/backend/internal/cache"
	"restodir/backend/internal/fetch"
	"restodir/backend/internal/geocode"
	"restodir/backend/internal/mapurl"
	"restodir/backend/internal/metrics"
	"restodir/backend/internal/models"

	"github.com/PuerkitoBio/goquery"
)

// ErrNotLocated means no source produced coordinates for a restaurant.
var ErrNotLocated = errors.New("restaurant could not be located")

// Source says where a location came from.
type Source string

const (
	SourceStored   Source = "stored"
	SourceURL      Source = "url"
	SourceExpanded Source = "expanded_url"
	SourcePage     Source = "page"
	SourceGeocode  Source = "geocode"
)

// Location is a resolved coordinate and how it was found.
type Location struct {
	Coordinate mapurl.Coordinate `json:"coordinate"`
	Source     Source            `json:"source"`
	// Detail is the expanded URL or the geocoder query, when one was used.
	Detail string `json:"detail,omitempty"`
}

// Expansion is what a short link resolved to.
type Expansion struct {
	FinalURL       string             `json:"finalUrl"`
	PageCoordinate *mapurl.Coordinate `json:"pageCoordinate,omitempty"`
}

// Fetcher follows a URL and reports where it ended up.
type Fetcher interface {
	Get(ctx context.Context, rawURL string) (*fetch.Response, error)
}

// Geocoder turns a free-text query into candidate coordinates.
type Geocoder interface {
	Search(ctx context.Context, query string, lang mapurl.Lang, limit int) ([]geocode.Result, error)
}

// Options configures a Locator. Zero values pick defaults.
type Options struct {
	Fetcher  Fetcher
	Geocoder Geocoder
	Cache    cache.Store
	CacheTTL time.Duration
	// Lang is the language geocoder results are requested in.
	Lang   mapurl.Lang
	Logger *slog.Logger
}

// Locator turns a restaurant into coordinates. Only network-backed steps may fail; any
// Fetcher, Geocoder or Cache left nil simply skips its step.
type Locator struct {
	fetcher  Fetcher
	geocoder Geocoder
	cache    cache.Store
	cacheTTL time.Duration
	lang     mapurl.Lang
	logger   *slog.Logger
}

// New creates a Locator. CacheTTL defaults to 24h and Lang to English.
func New(opts Options) *Locator {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 24 * time.Hour
	}
	if !opts.Lang.Valid() {
		opts.Lang = mapurl.LangEN
	}
	return &Locator{
		fetcher:  opts.Fetcher,
		geocoder: opts.Geocoder,
		cache:    opts.Cache,
		cacheTTL: opts.CacheTTL,
		lang:     opts.Lang,
		logger:   opts.Logger,
	}
}

// Locate tries, in order: stored coordinates, coordinates in the map URL, the expanded
// short link and its page, then geocoding the place query or name.
func (l *Locator) Locate(ctx context.Context, r models.Restaurant) (Location, error) {
	loc, err := l.locate(ctx, r)
	switch {
	case err == nil:
		metrics.LocateTotal.WithLabelValues(string(loc.Source)).Inc()
	case errors.Is(err, ErrNotLocated):
		metrics.LocateTotal.WithLabelValues("not_located").Inc()
	default:
		metrics.LocateTotal.WithLabelValues("error").Inc()
	}
	return loc, err
}

func (l *Locator) locate(ctx context.Context, r models.Restaurant) (Location, error) {
	if c, ok := mapurl.StoredCoordinate(r.Latitude, r.Longitude); ok {
		return Location{Coordinate: c, Source: SourceStored}, nil
	}

	mapURL := strings.TrimSpace(r.GoogleMapsURL)
	if c, rule, ok := mapurl.ExtractCoordinatesRule(mapURL); ok {
		metrics.ExtractionsTotal.WithLabelValues(string(rule)).Inc()
		return Location{Coordinate: c, Source: SourceURL}, nil
	}
	metrics.ExtractionsTotal.WithLabelValues("none").Inc()

	if mapurl.IsShortLink(mapURL) && l.fetcher != nil {
		exp, err := l.Expand(ctx, mapURL)
		if err != nil {
			if ctx.Err() != nil {
				return Location{}, ctx.Err()
			}
			l.logger.Warn("short_link_expand_failed", "restaurant_id", r.ID, "url", mapURL, "error", err)
		} else {
			if c, ok := mapurl.ExtractCoordinates(exp.FinalURL); ok {
				return Location{Coordinate: c, Source: SourceExpanded, Detail: exp.FinalURL}, nil
			}
			if exp.PageCoordinate != nil {
				return Location{Coordinate: *exp.PageCoordinate, Source: SourcePage, Detail: exp.FinalURL}, nil
			}
			mapURL = exp.FinalURL
		}
	}

	query := geocodeQuery(r, mapURL)
	if query == "" || l.geocoder == nil {
		return Location{}, ErrNotLocated
	}
	c, ok, err := l.geocode(ctx, query)
	if err != nil {
		return Location{}, err
	}
	if !ok {
		return Location{}, ErrNotLocated
	}
	return Location{Coordinate: c, Source: SourceGeocode, Detail: query}, nil
}

// Embed builds the restaurant's map embed. When the stored link is a short link and the
// plain build could only fall back to a search, the link is expanded and the embed rebuilt
// from where it leads. Expansion failures keep the plain result.
func (l *Locator) Embed(ctx context.Context, r models.Restaurant, lang mapurl.Lang) mapurl.Embed {
	req := mapurl.EmbedRequest{
		MapURL:    r.GoogleMapsURL,
		Latitude:  r.Latitude,
		Longitude: r.Longitude,
		Name:      r.Name,
		Lang:      lang,
	}
	embed := mapurl.BuildEmbed(req)
	if embed.Kind == mapurl.EmbedStoredCoordinates || embed.Kind == mapurl.EmbedURLCoordinates {
		return embed
	}
	if l.fetcher == nil || !mapurl.IsShortLink(r.GoogleMapsURL) {
		return embed
	}
	exp, err := l.Expand(ctx, strings.TrimSpace(r.GoogleMapsURL))
	if err != nil {
		l.logger.Warn("short_link_expand_failed", "restaurant_id", r.ID, "url", r.GoogleMapsURL, "error", err)
		return embed
	}
	if _, ok := mapurl.ExtractCoordinates(exp.FinalURL); !ok && exp.PageCoordinate != nil {
		return mapurl.CoordinateEmbed(*exp.PageCoordinate, lang)
	}
	req.MapURL = exp.FinalURL
	return mapurl.BuildEmbed(req)
}

// Expand follows a short link and inspects the landing page for coordinates. Results are
// cached by link.
func (l *Locator) Expand(ctx context.Context, shortURL string) (Expansion, error) {
	if l.fetcher == nil {
		return Expansion{}, errors.New("fetcher is not configured")
	}
	key := "expand:" + shortURL
	if raw, ok := l.cacheGet(ctx, "expand", key); ok {
		var exp Expansion
		if err := json.Unmarshal([]byte(raw), &exp); err == nil && exp.FinalURL != "" {
			return exp, nil
		}
	}

	resp, err := l.fetcher.Get(ctx, shortURL)
	if resp == nil {
		if err == nil {
			err = errors.New("empty response")
		}
		return Expansion{}, fmt.Errorf("expand %s: %w", shortURL, err)
	}
	exp := Expansion{FinalURL: resp.FinalURL}
	if exp.FinalURL == "" {
		exp.FinalURL = shortURL
	}
	if err == nil && len(resp.Body) > 0 {
		if c, ok := coordinateFromPage(resp.Body); ok {
			exp.PageCoordinate = &c
		}
	}
	if exp.FinalURL == shortURL && exp.PageCoordinate == nil {
		if err == nil {
			err = errors.New("link did not redirect")
		}
		return Expansion{}, fmt.Errorf("expand %s: %w", shortURL, err)
	}

	if data, err := json.Marshal(exp); err == nil {
		l.cacheSet(ctx, key, string(data))
	}
	return exp, nil
}

func (l *Locator) geocode(ctx context.Context, query string) (mapurl.Coordinate, bool, error) {
	key := "geocode:" + string(l.lang) + ":" + strings.ToLower(query)
	if raw, ok := l.cacheGet(ctx, "geocode", key); ok {
		var c mapurl.Coordinate
		if err := json.Unmarshal([]byte(raw), &c); err == nil && c.Valid() {
			return c, true, nil
		}
	}
	results, err := l.geocoder.Search(ctx, query, l.lang, 1)
	if err != nil {
		return mapurl.Coordinate{}, false, fmt.Errorf("geocode %q: %w", query, err)
	}
	if len(results) == 0 {
		return mapurl.Coordinate{}, false, nil
	}
	c := results[0].Coordinate
	if data, err := json.Marshal(c); err == nil {
		l.cacheSet(ctx, key, string(data))
	}
	return c, true, nil
}

func (l *Locator) cacheGet(ctx context.Context, namespace, key string) (string, bool) {
	if l.cache == nil {
		return "", false
	}
	value, ok, err := l.cache.Get(ctx, key)
	if err != nil {
		l.logger.Warn("cache_get_failed", "key", key, "error", err)
		return "", false
	}
	result := "miss"
	if ok {
		result = "hit"
	}
	metrics.CacheLookupsTotal.WithLabelValues(namespace, result).Inc()
	return value, ok
}

func (l *Locator) cacheSet(ctx context.Context, key, value string) {
	if l.cache == nil {
		return
	}
	if err := l.cache.Set(ctx, key, value, l.cacheTTL); err != nil {
		l.logger.Warn("cache_set_failed", "key", key, "error", err)
	}
}

// geocodeQuery prefers the place named by the map URL, then the name and address.
func geocodeQuery(r models.Restaurant, mapURL string) string {
	if place, ok := mapurl.ExtractPlace(mapURL); ok {
		return mapurl.PlaceSearchQuery(r.Name, place)
	}
	parts := make([]string, 0, 2)
	for _, part := range []string{r.Name, r.Address} {
		if part = strings.TrimSpace(part); part != "" {
			parts = append(parts, part)
		}
	}
	return strings.Join(parts, ", ")
}

var pageCandidateSelectors = []struct {
	selector string
	attr     string
}{
	{selector: `link[rel="canonical"]`, attr: "href"},
	{selector: `meta[property="og:url"]`, attr: "content"},
	{selector: `meta[property="og:image"]`, attr: "content"},
	{selector: `meta[itemprop="image"]`, attr: "content"},
}

// coordinateFromPage looks through a landing page's canonical, og:url and preview image
// links for a coordinate.
func coordinateFromPage(body []byte) (mapurl.Coordinate, bool) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return mapurl.Coordinate{}, false
	}
	for _, candidate := range pageCandidateSelectors {
		var found mapurl.Coordinate
		var ok bool
		doc.Find(candidate.selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			value := strings.TrimSpace(s.AttrOr(candidate.attr, ""))
			if value == "" {
				return true
			}
			if found, ok = mapurl.ExtractCoordinates(value); ok {
				return false
			}
			found, ok = mapurl.ExtractStaticMapCenter(value)
			return !ok
		})
		if ok {
			return found, true
		}
	}
	return mapurl.Coordinate{}, false
}
