package geo

import (
	"math"

	"github.com/paulmach/orb"
)

const (
	maxLat = 90.0
	maxLng = 180.0
)

// LatLng is a WGS84 coordinate.
type LatLng struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lng float64 `json:"lng" yaml:"lng"`
}

// Valid reports whether the coordinate is finite and inside the WGS84 range.
func (p LatLng) Valid() bool {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lng) || math.IsInf(p.Lat, 0) || math.IsInf(p.Lng, 0) {
		return false
	}
	return p.Lat >= -maxLat && p.Lat <= maxLat && p.Lng >= -maxLng && p.Lng <= maxLng
}

// Point converts to an orb point (x=lng, y=lat).
func (p LatLng) Point() orb.Point {
	return orb.Point{p.Lng, p.Lat}
}

// Bounds is a lat/lng rectangle given by its north-east and south-west corners.
// SW.Lng > NE.Lng means the rectangle crosses the antimeridian.
type Bounds struct {
	NE LatLng `json:"ne" yaml:"ne"`
	SW LatLng `json:"sw" yaml:"sw"`
}

// Valid rejects non-finite corners and zero-area rectangles.
func (b Bounds) Valid() bool {
	if !b.NE.Valid() || !b.SW.Valid() {
		return false
	}
	if b.NE.Lat <= b.SW.Lat {
		return false
	}
	return b.NE.Lng != b.SW.Lng
}

func (b Bounds) crossesAntimeridian() bool {
	return b.SW.Lng > b.NE.Lng
}

// LatSpan is the height of the rectangle in degrees.
func (b Bounds) LatSpan() float64 {
	return b.NE.Lat - b.SW.Lat
}

// LngSpan is the width of the rectangle in degrees, accounting for the antimeridian.
func (b Bounds) LngSpan() float64 {
	span := b.NE.Lng - b.SW.Lng
	if span < 0 {
		span += 2 * maxLng
	}
	return span
}

// orbBounds splits the rectangle into one or two orb bounds that never wrap.
func (b Bounds) orbBounds() []orb.Bound {
	if !b.crossesAntimeridian() {
		return []orb.Bound{{
			Min: orb.Point{b.SW.Lng, b.SW.Lat},
			Max: orb.Point{b.NE.Lng, b.NE.Lat},
		}}
	}
	return []orb.Bound{
		{Min: orb.Point{b.SW.Lng, b.SW.Lat}, Max: orb.Point{maxLng, b.NE.Lat}},
		{Min: orb.Point{-maxLng, b.SW.Lat}, Max: orb.Point{b.NE.Lng, b.NE.Lat}},
	}
}

// Contains reports whether p lies inside or on the edge of the rectangle.
func (b Bounds) Contains(p LatLng) bool {
	if !p.Valid() {
		return false
	}
	pt := p.Point()
	for _, ob := range b.orbBounds() {
		if ob.Contains(pt) {
			return true
		}
	}
	return false
}

// Pad expands the rectangle by padPx screen pixels on every side, converted to
// degrees using the viewport's pixel size. Latitude is clamped to the poles and
// a longitude span that would cover the globe collapses to the full range.
func (b Bounds) Pad(padPx, widthPx, heightPx float64) Bounds {
	if padPx <= 0 || widthPx <= 0 || heightPx <= 0 {
		return b
	}
	latPad := padPx / heightPx * b.LatSpan()
	lngPad := padPx / widthPx * b.LngSpan()

	out := Bounds{
		NE: LatLng{Lat: math.Min(maxLat, b.NE.Lat+latPad)},
		SW: LatLng{Lat: math.Max(-maxLat, b.SW.Lat-latPad)},
	}
	if b.LngSpan()+2*lngPad >= 2*maxLng {
		out.SW.Lng = -maxLng
		out.NE.Lng = maxLng
		return out
	}
	out.SW.Lng = wrapLng(b.SW.Lng - lngPad)
	out.NE.Lng = wrapLng(b.NE.Lng + lngPad)
	return out
}

func wrapLng(lng float64) float64 {
	switch {
	case lng > maxLng:
		return lng - 2*maxLng
	case lng < -maxLng:
		return lng + 2*maxLng
	default:
		return lng
	}
}
