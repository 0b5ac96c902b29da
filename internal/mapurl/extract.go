package mapurl

import (
	"math"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// Coordinate is a validated WGS84 point.
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Valid reports whether both components are finite and inside their ranges.
func (c Coordinate) Valid() bool {
	if math.IsNaN(c.Latitude) || math.IsNaN(c.Longitude) {
		return false
	}
	return c.Latitude >= -90 && c.Latitude <= 90 &&
		c.Longitude >= -180 && c.Longitude <= 180
}

// String formats the coordinate as "lat,lng" with the shortest exact representation.
func (c Coordinate) String() string {
	return strconv.FormatFloat(c.Latitude, 'f', -1, 64) + "," + strconv.FormatFloat(c.Longitude, 'f', -1, 64)
}

// Rule names a coordinate pattern. Rules are tried in declaration order.
type Rule string

const (
	RuleViewCenter Rule = "view_center"
	RuleQuery      Rule = "query"
	RulePlace      Rule = "place"
	RuleDataTags   Rule = "data_tags"
)

const number = `([-+]?\d+(?:\.\d+)?)`

type coordinateRule struct {
	name Rule
	re   *regexp.Regexp
}

var coordinateRules = []coordinateRule{
	{name: RuleViewCenter, re: regexp.MustCompile(`@` + number + `,` + number)},
	{name: RuleQuery, re: regexp.MustCompile(`[?&]q=` + number + `,` + number)},
	{name: RulePlace, re: regexp.MustCompile(`place/` + number + `,` + number)},
	{name: RuleDataTags, re: regexp.MustCompile(`!3d` + number + `!4d` + number)},
}

var (
	placePathRE  = regexp.MustCompile(`/place/([^/@]+)`)
	placeQueryRE = regexp.MustCompile(`[?&]q=([^&]+)`)
)

// ExtractCoordinates returns the first coordinate pair that a rule both matches and
// validates. A rule whose numbers fail to parse or fall out of range does not stop the
// search; the next rule is tried.
func ExtractCoordinates(raw string) (Coordinate, bool) {
	c, _, ok := ExtractCoordinatesRule(raw)
	return c, ok
}

// ExtractCoordinatesRule is ExtractCoordinates that also reports which rule matched.
func ExtractCoordinatesRule(raw string) (Coordinate, Rule, bool) {
	if raw == "" {
		return Coordinate{}, "", false
	}
	for _, rule := range coordinateRules {
		m := rule.re.FindStringSubmatch(raw)
		if len(m) != 3 {
			continue
		}
		c, ok := parsePair(m[1], m[2])
		if !ok {
			continue
		}
		return c, rule.name, true
	}
	return Coordinate{}, "", false
}

// ExtractPlace returns the human-readable place query carried by a /place/<name> segment
// or, failing that, by the q= parameter.
func ExtractPlace(raw string) (string, bool) {
	if raw == "" {
		return "", false
	}
	for _, re := range []*regexp.Regexp{placePathRE, placeQueryRE} {
		m := re.FindStringSubmatch(raw)
		if len(m) != 2 {
			continue
		}
		if place, ok := decodePlace(m[1]); ok {
			return place, true
		}
	}
	return "", false
}

func parsePair(rawLat, rawLng string) (Coordinate, bool) {
	lat, err := strconv.ParseFloat(rawLat, 64)
	if err != nil {
		return Coordinate{}, false
	}
	lng, err := strconv.ParseFloat(rawLng, 64)
	if err != nil {
		return Coordinate{}, false
	}
	c := Coordinate{Latitude: lat, Longitude: lng}
	if !c.Valid() {
		return Coordinate{}, false
	}
	return c, true
}

// decodePlace percent-decodes first, then turns '+' into spaces, so an encoded %2B also
// ends up as a space.
func decodePlace(segment string) (string, bool) {
	decoded, err := url.PathUnescape(segment)
	if err != nil {
		return "", false
	}
	decoded = strings.TrimSpace(strings.ReplaceAll(decoded, "+", " "))
	if decoded == "" {
		return "", false
	}
	return decoded, true
}
