package locate

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"restodir/backend/internal/cache"
	"restodir/backend/internal/fetch"
	"restodir/backend/internal/geocode"
	"restodir/backend/internal/mapurl"
	"restodir/backend/internal/models"
)

type fakeFetcher struct {
	responses map[string]*fetch.Response
	errs      map[string]error
	calls     int
}

func (f *fakeFetcher) Get(_ context.Context, rawURL string) (*fetch.Response, error) {
	f.calls++
	if err, ok := f.errs[rawURL]; ok {
		return nil, err
	}
	if resp, ok := f.responses[rawURL]; ok {
		return resp, nil
	}
	return nil, errors.New("no fake response for " + rawURL)
}

type fakeGeocoder struct {
	results []geocode.Result
	err     error
	queries []string
}

func (g *fakeGeocoder) Search(_ context.Context, query string, _ mapurl.Lang, _ int) ([]geocode.Result, error) {
	g.queries = append(g.queries, query)
	return g.results, g.err
}

func floatPtr(v float64) *float64 { return &v }

func newTestLocator(f Fetcher, g Geocoder) *Locator {
	return New(Options{
		Fetcher:  f,
		Geocoder: g,
		Cache:    cache.NewMemory(100),
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func TestLocatePrefersStoredCoordinates(t *testing.T) {
	g := &fakeGeocoder{}
	l := newTestLocator(nil, g)
	loc, err := l.Locate(context.Background(), models.Restaurant{
		GoogleMapsURL: "https://www.google.com/maps/@1,2,17z",
		Latitude:      floatPtr(22.19),
		Longitude:     floatPtr(113.54),
	})
	if err != nil {
		t.Fatalf("locate: %v", err)
	}
	if loc.Source != SourceStored || loc.Coordinate != (mapurl.Coordinate{Latitude: 22.19, Longitude: 113.54}) {
		t.Fatalf("unexpected location %+v", loc)
	}
}

func TestLocateFromURLSkipsGeocoder(t *testing.T) {
	g := &fakeGeocoder{}
	l := newTestLocator(nil, g)
	loc, err := l.Locate(context.Background(), models.Restaurant{
		Name:          "Golden Dragon",
		GoogleMapsURL: "https://maps.google.com/?q=22.1,113.5",
	})
	if err != nil {
		t.Fatalf("locate: %v", err)
	}
	if loc.Source != SourceURL || loc.Coordinate.Latitude != 22.1 {
		t.Fatalf("unexpected location %+v", loc)
	}
	if len(g.queries) != 0 {
		t.Fatalf("geocoder must not be called, got %v", g.queries)
	}
}

func TestLocateExpandsShortLink(t *testing.T) {
	short := "https://maps.app.goo.gl/abc123"
	f := &fakeFetcher{responses: map[string]*fetch.Response{
		short: {Status: 200, FinalURL: "https://www.google.com/maps/place/Golden+Dragon/@22.1937,113.5399,17z"},
	}}
	l := newTestLocator(f, &fakeGeocoder{})

	loc, err := l.Locate(context.Background(), models.Restaurant{GoogleMapsURL: short})
	if err != nil {
		t.Fatalf("locate: %v", err)
	}
	if loc.Source != SourceExpanded || loc.Coordinate != (mapurl.Coordinate{Latitude: 22.1937, Longitude: 113.5399}) {
		t.Fatalf("unexpected location %+v", loc)
	}

	if _, err := l.Locate(context.Background(), models.Restaurant{GoogleMapsURL: short}); err != nil {
		t.Fatalf("second locate: %v", err)
	}
	if f.calls != 1 {
		t.Fatalf("expected cached expansion, fetcher called %d times", f.calls)
	}
}

func TestLocateReadsCoordinatesFromLandingPage(t *testing.T) {
	short := "https://maps.app.goo.gl/page"
	page := `<html><head>
<meta property="og:url" content="https://www.google.com/maps/place/Golden+Dragon">
<meta property="og:image" content="https://maps.google.com/maps/api/staticmap?center=22.2%2C113.55&amp;zoom=15">
</head></html>`
	f := &fakeFetcher{responses: map[string]*fetch.Response{
		short: {Status: 200, FinalURL: "https://www.google.com/maps/place/Golden+Dragon", Body: []byte(page)},
	}}
	l := newTestLocator(f, &fakeGeocoder{})

	loc, err := l.Locate(context.Background(), models.Restaurant{GoogleMapsURL: short})
	if err != nil {
		t.Fatalf("locate: %v", err)
	}
	if loc.Source != SourcePage || loc.Coordinate != (mapurl.Coordinate{Latitude: 22.2, Longitude: 113.55}) {
		t.Fatalf("unexpected location %+v", loc)
	}
}

func TestLocateGeocodesPlaceQuery(t *testing.T) {
	g := &fakeGeocoder{results: []geocode.Result{{Coordinate: mapurl.Coordinate{Latitude: 22.19, Longitude: 113.54}}}}
	l := newTestLocator(nil, g)

	r := models.Restaurant{Name: "Golden Dragon", GoogleMapsURL: "https://maps.google.com/?q=Rua+de+S.+Paulo"}
	loc, err := l.Locate(context.Background(), r)
	if err != nil {
		t.Fatalf("locate: %v", err)
	}
	if loc.Source != SourceGeocode || loc.Detail != "Golden Dragon, Rua de S. Paulo" {
		t.Fatalf("unexpected location %+v", loc)
	}

	if _, err := l.Locate(context.Background(), r); err != nil {
		t.Fatalf("second locate: %v", err)
	}
	if len(g.queries) != 1 {
		t.Fatalf("expected cached geocode, got %d calls", len(g.queries))
	}
}

func TestLocateFallsBackToNameWhenExpansionFails(t *testing.T) {
	short := "https://maps.app.goo.gl/broken"
	f := &fakeFetcher{errs: map[string]error{short: errors.New("connection refused")}}
	g := &fakeGeocoder{results: []geocode.Result{{Coordinate: mapurl.Coordinate{Latitude: 1, Longitude: 2}}}}
	l := newTestLocator(f, g)

	loc, err := l.Locate(context.Background(), models.Restaurant{Name: "Nam Ping", Address: "Macau", GoogleMapsURL: short})
	if err != nil {
		t.Fatalf("locate: %v", err)
	}
	if loc.Source != SourceGeocode || loc.Detail != "Nam Ping, Macau" {
		t.Fatalf("unexpected location %+v", loc)
	}
}

func TestLocateNotLocated(t *testing.T) {
	l := newTestLocator(nil, &fakeGeocoder{})
	_, err := l.Locate(context.Background(), models.Restaurant{Name: "Nowhere"})
	if !errors.Is(err, ErrNotLocated) {
		t.Fatalf("expected ErrNotLocated, got %v", err)
	}

	_, err = newTestLocator(nil, nil).Locate(context.Background(), models.Restaurant{})
	if !errors.Is(err, ErrNotLocated) {
		t.Fatalf("expected ErrNotLocated without inputs, got %v", err)
	}
}

func TestLocateReportsGeocoderError(t *testing.T) {
	l := newTestLocator(nil, &fakeGeocoder{err: errors.New("status 503")})
	_, err := l.Locate(context.Background(), models.Restaurant{Name: "Golden Dragon"})
	if err == nil || errors.Is(err, ErrNotLocated) {
		t.Fatalf("expected geocoder error, got %v", err)
	}
}

func TestEmbedExpandsShortLinkOnlyWhenNeeded(t *testing.T) {
	short := "https://maps.app.goo.gl/embed"
	f := &fakeFetcher{responses: map[string]*fetch.Response{
		short: {Status: 200, FinalURL: "https://www.google.com/maps/place/Golden+Dragon/@22.19,113.54,17z"},
	}}
	l := newTestLocator(f, nil)

	embed := l.Embed(context.Background(), models.Restaurant{Name: "Golden Dragon", GoogleMapsURL: short}, mapurl.LangEN)
	if embed.Kind != mapurl.EmbedURLCoordinates || embed.Query != "22.19,113.54" {
		t.Fatalf("unexpected embed %+v", embed)
	}

	stored := l.Embed(context.Background(), models.Restaurant{
		GoogleMapsURL: short,
		Latitude:      floatPtr(1),
		Longitude:     floatPtr(2),
	}, mapurl.LangEN)
	if stored.Kind != mapurl.EmbedStoredCoordinates {
		t.Fatalf("unexpected embed %+v", stored)
	}
	if f.calls != 1 {
		t.Fatalf("expected a single fetch, got %d", f.calls)
	}
}

func TestEmbedKeepsSearchWhenExpansionFails(t *testing.T) {
	short := "https://maps.app.goo.gl/down"
	f := &fakeFetcher{errs: map[string]error{short: errors.New("timeout")}}
	l := newTestLocator(f, nil)

	embed := l.Embed(context.Background(), models.Restaurant{Name: "Golden Dragon", GoogleMapsURL: short}, mapurl.LangPT)
	if embed.Kind != mapurl.EmbedNameSearch || embed.Query != "Golden Dragon" {
		t.Fatalf("unexpected embed %+v", embed)
	}
}

func TestCoordinateFromPageCanonical(t *testing.T) {
	page := []byte(`<link rel="canonical" href="https://www.google.com/maps/place/X/data=!3d22.3!4d113.6">`)
	c, ok := coordinateFromPage(page)
	if !ok || c != (mapurl.Coordinate{Latitude: 22.3, Longitude: 113.6}) {
		t.Fatalf("unexpected coordinate %+v %v", c, ok)
	}
	if _, ok := coordinateFromPage([]byte(`<html><body>nothing</body></html>`)); ok {
		t.Fatalf("expected no coordinate")
	}
}
