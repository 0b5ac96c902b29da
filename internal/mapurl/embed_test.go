package mapurl

import (
	"net/url"
	"testing"
)

func floatPtr(v float64) *float64 { return &v }

func TestBuildEmbedPrecedence(t *testing.T) {
	tests := []struct {
		name      string
		req       EmbedRequest
		wantKind  EmbedKind
		wantQuery string
		wantZoom  string
	}{
		{
			name: "stored coordinates",
			req: EmbedRequest{
				MapURL:    "https://www.google.com/maps/@22.1,113.5,17z",
				Latitude:  floatPtr(22.19),
				Longitude: floatPtr(113.54),
				Name:      "Golden Dragon",
				Lang:      LangZH,
			},
			wantKind:  EmbedStoredCoordinates,
			wantQuery: "22.19,113.54",
			wantZoom:  "17",
		},
		{
			name: "out of range stored coordinates fall back to url",
			req: EmbedRequest{
				MapURL:    "https://www.google.com/maps/@22.1,113.5,17z",
				Latitude:  floatPtr(95),
				Longitude: floatPtr(113.54),
				Name:      "Golden Dragon",
			},
			wantKind:  EmbedURLCoordinates,
			wantQuery: "22.1,113.5",
			wantZoom:  "17",
		},
		{
			name: "half stored pair falls back to url",
			req: EmbedRequest{
				MapURL:   "https://maps.google.com/?q=22.1,113.5",
				Latitude: floatPtr(22.19),
				Name:     "Golden Dragon",
			},
			wantKind:  EmbedURLCoordinates,
			wantQuery: "22.1,113.5",
			wantZoom:  "17",
		},
		{
			name: "place combined with name",
			req: EmbedRequest{
				MapURL: "https://maps.google.com/?q=Rua+de+S.+Paulo+12",
				Name:   "Golden Dragon",
			},
			wantKind:  EmbedURLPlace,
			wantQuery: "Golden Dragon, Rua de S. Paulo 12",
			wantZoom:  "16",
		},
		{
			name: "place already naming the restaurant",
			req: EmbedRequest{
				MapURL: "https://www.google.com/maps/place/Golden+Dragon+Cafe/",
				Name:   "golden dragon",
			},
			wantKind:  EmbedURLPlace,
			wantQuery: "Golden Dragon Cafe",
			wantZoom:  "16",
		},
		{
			name: "name only",
			req: EmbedRequest{
				MapURL: "https://example.com",
				Name:   "  Golden Dragon  ",
			},
			wantKind:  EmbedNameSearch,
			wantQuery: "Golden Dragon",
			wantZoom:  "16",
		},
		{
			name:      "nothing at all",
			req:       EmbedRequest{},
			wantKind:  EmbedNameSearch,
			wantQuery: "",
			wantZoom:  "16",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BuildEmbed(tt.req)
			if got.Kind != tt.wantKind {
				t.Fatalf("unexpected kind: got=%s want=%s", got.Kind, tt.wantKind)
			}
			if got.Query != tt.wantQuery {
				t.Fatalf("unexpected query: got=%q want=%q", got.Query, tt.wantQuery)
			}
			parsed, err := url.Parse(got.URL)
			if err != nil {
				t.Fatalf("embed url does not parse: %v", err)
			}
			values := parsed.Query()
			if values.Get("q") != tt.wantQuery {
				t.Fatalf("unexpected q param: %q", values.Get("q"))
			}
			if values.Get("z") != tt.wantZoom {
				t.Fatalf("unexpected zoom: %q", values.Get("z"))
			}
			if values.Get("output") != "embed" {
				t.Fatalf("expected output=embed, got %q", values.Get("output"))
			}
		})
	}
}

func TestBuildEmbedWithNothingUsable(t *testing.T) {
	embed := BuildEmbed(EmbedRequest{MapURL: "https://example.com", Name: "  "})
	if embed.Kind != EmbedNameSearch || embed.Query != "" {
		t.Fatalf("expected empty name search, got %+v", embed)
	}
}

func TestBuildEmbedURLShape(t *testing.T) {
	got := BuildEmbed(EmbedRequest{Latitude: floatPtr(22.19), Longitude: floatPtr(113.54), Lang: LangZH})
	want := "https://maps.google.com/maps?hl=zh-TW&output=embed&q=22.19%2C113.54&z=17"
	if got.URL != want {
		t.Fatalf("expected %q, got %q", want, got.URL)
	}
}

func TestLangLocale(t *testing.T) {
	tests := map[Lang]string{
		LangZH: "zh-TW",
		LangEN: "en",
		LangPT: "pt-PT",
		"fr":   "en",
		"":     "en",
	}
	for lang, want := range tests {
		if got := lang.Locale(); got != want {
			t.Fatalf("Locale(%q) = %q, want %q", lang, got, want)
		}
	}
	if Lang("fr").Valid() {
		t.Fatalf("fr must not be a supported language")
	}
}

func TestPlaceSearchQuery(t *testing.T) {
	if got := PlaceSearchQuery("", "Macau"); got != "Macau" {
		t.Fatalf("unexpected query %q", got)
	}
	if got := PlaceSearchQuery("Golden Dragon", ""); got != "Golden Dragon" {
		t.Fatalf("unexpected query %q", got)
	}
}
