package geo

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// ScreenPoint is a position in viewport pixels, origin top-left, y growing down.
type ScreenPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Viewport is the visible map region together with its pixel size.
// Corners optionally carries the exact visible quad (NW, NE, SE, SW) when the
// host map is rotated or pitched; otherwise the bounds rectangle is exact.
type Viewport struct {
	Bounds   Bounds
	Zoom     float64
	WidthPx  float64
	HeightPx float64
	Corners  []LatLng
}

// HasPixels reports whether the host has laid the map out yet.
func (v Viewport) HasPixels() bool {
	return v.WidthPx > 0 && v.HeightPx > 0 &&
		!math.IsNaN(v.WidthPx) && !math.IsNaN(v.HeightPx) &&
		!math.IsInf(v.WidthPx, 0) && !math.IsInf(v.HeightPx, 0)
}

func mercatorY(lat float64) float64 {
	lat = math.Max(-85.05112878, math.Min(85.05112878, lat))
	rad := lat * math.Pi / 180
	return math.Log(math.Tan(math.Pi/4 + rad/2))
}

func inverseMercatorY(y float64) float64 {
	return (2*math.Atan(math.Exp(y)) - math.Pi/2) * 180 / math.Pi
}

// unwrapLng maps lng onto the continuous range starting at the west edge.
func (v Viewport) unwrapLng(lng float64) float64 {
	if v.Bounds.crossesAntimeridian() && lng < v.Bounds.SW.Lng {
		return lng + 2*maxLng
	}
	return lng
}

// Project converts a coordinate into viewport pixels.
func (v Viewport) Project(p LatLng) ScreenPoint {
	span := v.Bounds.LngSpan()
	top := mercatorY(v.Bounds.NE.Lat)
	bottom := mercatorY(v.Bounds.SW.Lat)
	var sp ScreenPoint
	if span > 0 {
		sp.X = (v.unwrapLng(p.Lng) - v.Bounds.SW.Lng) / span * v.WidthPx
	}
	if top != bottom {
		sp.Y = (top - mercatorY(p.Lat)) / (top - bottom) * v.HeightPx
	}
	return sp
}

// Unproject converts viewport pixels back to a coordinate.
func (v Viewport) Unproject(sp ScreenPoint) LatLng {
	top := mercatorY(v.Bounds.NE.Lat)
	bottom := mercatorY(v.Bounds.SW.Lat)
	var out LatLng
	if v.WidthPx > 0 {
		out.Lng = wrapLng(v.Bounds.SW.Lng + sp.X/v.WidthPx*v.Bounds.LngSpan())
	}
	if v.HeightPx > 0 {
		out.Lat = inverseMercatorY(top - sp.Y/v.HeightPx*(top-bottom))
	}
	return out
}

// Polygon is the exact (non-padded) visible area in unwrapped lng/lat space.
func (v Viewport) Polygon() orb.Polygon {
	if len(v.Corners) == 4 {
		ring := make(orb.Ring, 0, 5)
		for _, c := range v.Corners {
			ring = append(ring, orb.Point{v.unwrapLng(c.Lng), c.Lat})
		}
		ring = append(ring, ring[0])
		return orb.Polygon{ring}
	}
	west := v.Bounds.SW.Lng
	east := west + v.Bounds.LngSpan()
	north := v.Bounds.NE.Lat
	south := v.Bounds.SW.Lat
	return orb.Polygon{orb.Ring{
		{west, north},
		{east, north},
		{east, south},
		{west, south},
		{west, north},
	}}
}

// PolygonContains runs the edge-crossing test of the exact visible polygon for every point.
func (v Viewport) PolygonContains(poly orb.Polygon, pts ...LatLng) bool {
	if len(poly) == 0 {
		return false
	}
	for _, p := range pts {
		if !p.Valid() {
			return false
		}
		if !planar.PolygonContains(poly, orb.Point{v.unwrapLng(p.Lng), p.Lat}) {
			return false
		}
	}
	return true
}
