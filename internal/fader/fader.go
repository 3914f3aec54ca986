// Package fader controls opacity and interactivity of mounted full-tier
// markers. A marker is visible only while its whole art rectangle lies inside
// the exact (non-padded) viewport polygon.
//
// The fader only reads the full-render list it is given; it never changes
// which markers are mounted.
package fader

import (
	"time"

	"crave/map-core/internal/geo"
)

const (
	DefaultFade        = 150 * time.Millisecond
	DefaultArtWidthPx  = 36.0
	DefaultArtHeightPx = 44.0
)

type Options struct {
	Fade        time.Duration
	ArtWidthPx  float64
	ArtHeightPx float64
}

// Marker is a mounted full-tier marker, anchored at the bottom centre of its art.
type Marker struct {
	ID         string
	Coordinate geo.LatLng
}

type State struct {
	Visible     bool    `json:"visible"`
	Opacity     float64 `json:"opacity"`
	Interactive bool    `json:"interactive"`
}

type entry struct {
	opacity   float64
	visible   bool
	updatedAt time.Time
}

type Fader struct {
	opts   Options
	states map[string]*entry
}

func New(opts Options) *Fader {
	if opts.Fade < 0 {
		opts.Fade = 0
	}
	if opts.ArtWidthPx <= 0 {
		opts.ArtWidthPx = DefaultArtWidthPx
	}
	if opts.ArtHeightPx <= 0 {
		opts.ArtHeightPx = DefaultArtHeightPx
	}
	return &Fader{opts: opts, states: make(map[string]*entry)}
}

// Contained reports whether the art of a marker anchored at p fits inside the viewport polygon.
func (f *Fader) Contained(vp geo.Viewport, p geo.LatLng) bool {
	return vp.PolygonContains(vp.Polygon(), f.artCorners(vp, p)...)
}

func (f *Fader) artCorners(vp geo.Viewport, p geo.LatLng) []geo.LatLng {
	a := vp.Project(p)
	halfW := f.opts.ArtWidthPx / 2
	h := f.opts.ArtHeightPx
	return []geo.LatLng{
		vp.Unproject(geo.ScreenPoint{X: a.X - halfW, Y: a.Y - h}),
		vp.Unproject(geo.ScreenPoint{X: a.X + halfW, Y: a.Y - h}),
		vp.Unproject(geo.ScreenPoint{X: a.X + halfW, Y: a.Y}),
		vp.Unproject(geo.ScreenPoint{X: a.X - halfW, Y: a.Y}),
	}
}

// Update recomputes visibility for exactly the given markers and animates
// opacity toward 1 (contained) or 0 (not contained) at a rate of one full
// swing per Fade. Markers seen for the first time start at their target.
// State for ids no longer mounted is discarded.
func (f *Fader) Update(vp geo.Viewport, markers []Marker, now time.Time) map[string]State {
	out := make(map[string]State, len(markers))
	poly := vp.Polygon()
	mounted := make(map[string]struct{}, len(markers))

	for _, m := range markers {
		mounted[m.ID] = struct{}{}
		visible := vp.HasPixels() && vp.PolygonContains(poly, f.artCorners(vp, m.Coordinate)...)
		target := 0.0
		if visible {
			target = 1
		}

		e, ok := f.states[m.ID]
		if !ok {
			e = &entry{opacity: target}
			f.states[m.ID] = e
		} else {
			e.opacity = step(e.opacity, target, now.Sub(e.updatedAt), f.opts.Fade)
		}
		e.visible = visible
		e.updatedAt = now

		out[m.ID] = State{Visible: visible, Opacity: e.opacity, Interactive: visible}
	}

	for id := range f.states {
		if _, ok := mounted[id]; !ok {
			delete(f.states, id)
		}
	}
	return out
}

func step(current, target float64, elapsed, fade time.Duration) float64 {
	if fade <= 0 || elapsed >= fade {
		return target
	}
	if elapsed <= 0 {
		return current
	}
	delta := float64(elapsed) / float64(fade)
	if current < target {
		return min(target, current+delta)
	}
	return max(target, current-delta)
}
