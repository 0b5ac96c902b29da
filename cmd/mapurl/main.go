package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"restodir/backend/internal/cache"
	"restodir/backend/internal/fetch"
	"restodir/backend/internal/geocode"
	"restodir/backend/internal/locate"
	"restodir/backend/internal/mapurl"
	"restodir/backend/internal/models"
)

type report struct {
	Input       string             `json:"input"`
	Link        mapurl.LinkKind    `json:"link"`
	Coordinates *mapurl.Coordinate `json:"coordinates,omitempty"`
	Rule        mapurl.Rule        `json:"rule,omitempty"`
	Place       string             `json:"place,omitempty"`
	Embed       mapurl.Embed       `json:"embed"`
	Location    *locate.Location   `json:"location,omitempty"`
	LocateError string             `json:"locateError,omitempty"`
}

func main() {
	langFlag := flag.String("lang", string(mapurl.LangEN), "embed language: zh|en|pt")
	nameFlag := flag.String("name", "", "restaurant name used for search fallbacks")
	resolveFlag := flag.Bool("resolve", false, "follow short links and geocode when the link has no coordinates")
	timeoutFlag := flag.Duration("timeout", 15*time.Second, "resolve timeout")
	flag.Parse()
	if flag.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "usage: mapurl [-lang en] [-name NAME] [-resolve] \"<google-maps-url>\"")
		os.Exit(2)
	}
	lang := mapurl.Lang(strings.TrimSpace(*langFlag))
	if !lang.Valid() {
		fmt.Fprintf(os.Stderr, "invalid lang: %s\n", lang)
		os.Exit(2)
	}

	restaurant := models.Restaurant{
		Name:          strings.TrimSpace(*nameFlag),
		GoogleMapsURL: strings.TrimSpace(flag.Arg(0)),
	}

	var locator *locate.Locator
	if *resolveFlag {
		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
		locator = locate.New(locate.Options{
			Fetcher:  fetch.New(logger, fetch.Config{Timeout: *timeoutFlag}),
			Geocoder: geocode.NewClient(geocode.Config{}),
			Cache:    cache.NewMemory(64),
			Lang:     lang,
			Logger:   logger,
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeoutFlag)
	defer cancel()
	if err := writeReport(os.Stdout, buildReport(ctx, restaurant, lang, locator)); err != nil {
		fmt.Fprintf(os.Stderr, "write error: %v\n", err)
		os.Exit(1)
	}
}

// buildReport describes what the link yields on its own and, with a locator, after
// resolving it.
func buildReport(ctx context.Context, r models.Restaurant, lang mapurl.Lang, locator *locate.Locator) report {
	out := report{
		Input: r.GoogleMapsURL,
		Link:  mapurl.Classify(r.GoogleMapsURL),
	}
	if c, rule, ok := mapurl.ExtractCoordinatesRule(r.GoogleMapsURL); ok {
		out.Coordinates = &c
		out.Rule = rule
	}
	if place, ok := mapurl.ExtractPlace(r.GoogleMapsURL); ok {
		out.Place = place
	}
	if locator == nil {
		out.Embed = mapurl.BuildEmbed(mapurl.EmbedRequest{MapURL: r.GoogleMapsURL, Name: r.Name, Lang: lang})
		return out
	}

	out.Embed = locator.Embed(ctx, r, lang)
	loc, err := locator.Locate(ctx, r)
	if err != nil {
		out.LocateError = err.Error()
		return out
	}
	out.Location = &loc
	return out
}

func writeReport(w io.Writer, r report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}
