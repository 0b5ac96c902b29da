package mapurl

import (
	"net/url"
	"strconv"
	"strings"
)

const embedBaseURL = "https://maps.google.com/maps"

const (
	coordinateZoom = 17
	searchZoom     = 16
)

// Lang is a page language supported by the directory.
type Lang string

const (
	LangZH Lang = "zh"
	LangEN Lang = "en"
	LangPT Lang = "pt"
)

// Valid reports whether l is one of the supported languages.
func (l Lang) Valid() bool {
	switch l {
	case LangZH, LangEN, LangPT:
		return true
	default:
		return false
	}
}

// Locale is the map UI locale for l. Unknown languages get English.
func (l Lang) Locale() string {
	switch l {
	case LangZH:
		return "zh-TW"
	case LangPT:
		return "pt-PT"
	default:
		return "en"
	}
}

// EmbedKind records which input produced an embed target.
type EmbedKind string

const (
	EmbedStoredCoordinates EmbedKind = "stored_coordinates"
	EmbedURLCoordinates    EmbedKind = "url_coordinates"
	EmbedURLPlace          EmbedKind = "url_place"
	EmbedNameSearch        EmbedKind = "name_search"
)

// EmbedRequest carries the restaurant fields an embed is built from.
type EmbedRequest struct {
	MapURL    string
	Latitude  *float64
	Longitude *float64
	Name      string
	Lang      Lang
}

// Embed is a frame-ready map URL.
type Embed struct {
	URL   string    `json:"url"`
	Kind  EmbedKind `json:"kind"`
	Query string    `json:"query"`
}

// BuildEmbed picks the most precise target available: stored coordinates, then
// coordinates in the map URL, then its place query, then the name alone. It never fails,
// but with no usable URL, coordinates or name the result is a name search with an empty
// Query, which callers should treat as nothing to show.
func BuildEmbed(req EmbedRequest) Embed {
	name := strings.TrimSpace(req.Name)
	if c, ok := StoredCoordinate(req.Latitude, req.Longitude); ok {
		return newEmbed(EmbedStoredCoordinates, c.String(), coordinateZoom, req.Lang)
	}
	if c, ok := ExtractCoordinates(req.MapURL); ok {
		return newEmbed(EmbedURLCoordinates, c.String(), coordinateZoom, req.Lang)
	}
	if place, ok := ExtractPlace(req.MapURL); ok {
		return newEmbed(EmbedURLPlace, PlaceSearchQuery(name, place), searchZoom, req.Lang)
	}
	return newEmbed(EmbedNameSearch, name, searchZoom, req.Lang)
}

// CoordinateEmbed targets c directly, for coordinates found outside the map URL itself.
func CoordinateEmbed(c Coordinate, lang Lang) Embed {
	return newEmbed(EmbedURLCoordinates, c.String(), coordinateZoom, lang)
}

// StoredCoordinate turns an optional lat/lng pair into a coordinate. Both values must be
// present and in range.
func StoredCoordinate(lat, lng *float64) (Coordinate, bool) {
	if lat == nil || lng == nil {
		return Coordinate{}, false
	}
	c := Coordinate{Latitude: *lat, Longitude: *lng}
	if !c.Valid() {
		return Coordinate{}, false
	}
	return c, true
}

// PlaceSearchQuery prefixes place with name unless place already mentions it.
func PlaceSearchQuery(name, place string) string {
	name = strings.TrimSpace(name)
	place = strings.TrimSpace(place)
	switch {
	case name == "":
		return place
	case place == "":
		return name
	case strings.Contains(strings.ToLower(place), strings.ToLower(name)):
		return place
	default:
		return name + ", " + place
	}
}

func newEmbed(kind EmbedKind, query string, zoom int, lang Lang) Embed {
	values := url.Values{}
	values.Set("q", query)
	values.Set("hl", lang.Locale())
	values.Set("z", strconv.Itoa(zoom))
	values.Set("output", "embed")
	return Embed{
		URL:   embedBaseURL + "?" + values.Encode(),
		Kind:  kind,
		Query: query,
	}
}
