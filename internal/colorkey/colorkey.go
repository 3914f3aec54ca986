package colorkey

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"

	"golang.org/x/image/colornames"
)

// DefaultColor is used for markers whose catalog colour cannot be parsed.
const DefaultColor = "#ff3860"

const featureKeyPrefix = "marker:"

// Normalize turns a catalog colour into lowercase "#rrggbb".
// Accepted inputs: "#rgb", "#rrggbb", "#rrggbbaa" (alpha dropped) and CSS colour names.
func Normalize(raw string) (string, bool) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return "", false
	}

	if c, ok := colornames.Map[s]; ok {
		return hex(c), true
	}

	s = strings.TrimPrefix(s, "#")
	switch len(s) {
	case 3:
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]})
	case 6:
	case 8:
		s = s[:6]
	default:
		return "", false
	}
	if _, err := strconv.ParseUint(s, 16, 32); err != nil {
		return "", false
	}
	return "#" + s, true
}

// NormalizeOrDefault is Normalize with DefaultColor as the fallback.
func NormalizeOrDefault(raw string) string {
	if c, ok := Normalize(raw); ok {
		return c
	}
	return DefaultColor
}

func hex(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// FeatureKey is the identifier attached to an engine-native point feature.
func FeatureKey(id string) string {
	return featureKeyPrefix + id
}

// ParseFeatureKey recovers the marker id from a point feature identifier.
// Bare ids are accepted so both render tiers can route taps through one path.
func ParseFeatureKey(key string) (string, bool) {
	key = strings.TrimSpace(key)
	id := strings.TrimPrefix(key, featureKeyPrefix)
	if id == "" {
		return "", false
	}
	return id, true
}
