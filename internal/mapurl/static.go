package mapurl

import (
	"net/url"
	"strings"
)

// ExtractStaticMapCenter reads the point a static-map image URL is centered on. Map pages
// advertise one in og:image and itemprop=image, as center=lat,lng or markers=...|lat,lng.
func ExtractStaticMapCenter(raw string) (Coordinate, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.RawQuery == "" {
		return Coordinate{}, false
	}
	query := u.Query()
	for _, key := range []string{"center", "markers"} {
		for _, value := range query[key] {
			parts := strings.Split(value, "|")
			pair := strings.TrimSpace(parts[len(parts)-1])
			lat, lng, found := strings.Cut(pair, ",")
			if !found {
				continue
			}
			if c, ok := parsePair(strings.TrimSpace(lat), strings.TrimSpace(lng)); ok {
				return c, true
			}
		}
	}
	return Coordinate{}, false
}
