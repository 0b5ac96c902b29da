package mapurl

import (
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// LinkKind classifies a map link by host.
type LinkKind string

const (
	LinkUnknown    LinkKind = "unknown"
	LinkGoogleMaps LinkKind = "google_maps"
	LinkShort      LinkKind = "short"
)

// Classify reports what kind of map link raw is. Inputs that are not absolute http(s)
// URLs are LinkUnknown.
func Classify(raw string) LinkKind {
	u, ok := parseHTTPURL(raw)
	if !ok {
		return LinkUnknown
	}
	host := strings.ToLower(u.Hostname())
	switch {
	case host == "maps.app.goo.gl":
		return LinkShort
	case host == "goo.gl" && strings.HasPrefix(u.Path, "/maps"):
		return LinkShort
	}
	eTLD1, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		eTLD1 = host
	}
	label, _, _ := strings.Cut(eTLD1, ".")
	if label != "google" {
		return LinkUnknown
	}
	if strings.HasPrefix(host, "maps.") || strings.HasPrefix(u.Path, "/maps") {
		return LinkGoogleMaps
	}
	return LinkUnknown
}

// IsShortLink reports whether raw needs a redirect round-trip before it can be parsed.
func IsShortLink(raw string) bool {
	return Classify(raw) == LinkShort
}

func parseHTTPURL(raw string) (*url.URL, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, false
	}
	u, err := url.Parse(trimmed)
	if err != nil || u.Host == "" {
		return nil, false
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return nil, false
	}
	return u, true
}
