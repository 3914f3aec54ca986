package camera

import (
	"math"
	"time"

	"crave/map-core/internal/geo"
)

const (
	DefaultThrottle    = 100 * time.Millisecond
	DefaultQuietPeriod = 250 * time.Millisecond
)

// Event is a raw viewport-changed notification from the host map engine.
// Pixel dimensions may be zero before the map is laid out.
type Event struct {
	Bounds   geo.Bounds
	Zoom     float64
	WidthPx  float64
	HeightPx float64
	Corners  []geo.LatLng
}

// Window is the throttled, authoritative camera sample consumed by the rest of the pipeline.
type Window struct {
	Viewport  geo.Viewport
	SampledAt time.Time
	IsMoving  bool
}

type Options struct {
	Throttle    time.Duration
	QuietPeriod time.Duration
}

// Stats are cumulative tracker counters.
type Stats struct {
	Received  uint64
	Rejected  uint64
	Dropped   uint64
	Emitted   uint64
	Unchanged uint64
}

// Tracker turns an arbitrary-frequency event stream into at most one Window
// per throttle interval. Only the newest event is kept; older unconsumed events
// are overwritten. It is not safe for concurrent use.
type Tracker struct {
	throttle time.Duration
	quiet    time.Duration

	pending     *Event
	lastEventAt time.Time
	moving      bool
	dirty       bool
	settle      bool

	latest    Window
	hasLatest bool
	lastEmit  time.Time
	emitted   bool

	stats Stats
}

func New(opts Options) *Tracker {
	th := opts.Throttle
	if th <= 0 {
		th = DefaultThrottle
	}
	q := opts.QuietPeriod
	if q <= 0 {
		q = DefaultQuietPeriod
	}
	return &Tracker{throttle: th, quiet: q}
}

func validEvent(ev Event) bool {
	if !ev.Bounds.Valid() {
		return false
	}
	if math.IsNaN(ev.Zoom) || math.IsInf(ev.Zoom, 0) {
		return false
	}
	return !math.IsNaN(ev.WidthPx) && !math.IsNaN(ev.HeightPx)
}

// Observe records a raw viewport change received at now. Malformed events are
// rejected and leave the previous window untouched.
func (t *Tracker) Observe(ev Event, now time.Time) bool {
	t.stats.Received++
	if !validEvent(ev) {
		t.stats.Rejected++
		return false
	}
	if t.pending != nil {
		t.stats.Dropped++
	}
	e := ev
	t.pending = &e
	t.lastEventAt = now
	t.moving = true
	t.dirty = true
	return true
}

// InteractionEnded requests one emission that bypasses the throttle so the
// settled bounds are always captured.
func (t *Tracker) InteractionEnded() {
	t.settle = true
}

// Idle clears the moving flag on explicit notification from the host.
func (t *Tracker) Idle() {
	if t.moving {
		t.moving = false
		t.dirty = true
	}
}

// Sample returns a new Window when one is due at now.
func (t *Tracker) Sample(now time.Time) (Window, bool) {
	if t.moving && !t.lastEventAt.IsZero() && now.Sub(t.lastEventAt) >= t.quiet {
		t.moving = false
		t.dirty = true
	}

	if t.settle {
		t.settle = false
		if t.pending != nil || t.hasLatest {
			return t.emit(now), true
		}
	}

	if !t.dirty {
		return Window{}, false
	}
	if t.pending == nil && !t.hasLatest {
		t.dirty = false
		return Window{}, false
	}
	if t.emitted && now.Sub(t.lastEmit) < t.throttle {
		return Window{}, false
	}
	return t.emit(now), true
}

func (t *Tracker) emit(now time.Time) Window {
	w := t.latest
	if t.pending != nil {
		w.Viewport = geo.Viewport{
			Bounds:   t.pending.Bounds,
			Zoom:     t.pending.Zoom,
			WidthPx:  t.pending.WidthPx,
			HeightPx: t.pending.HeightPx,
			Corners:  t.pending.Corners,
		}
		t.pending = nil
	} else {
		t.stats.Unchanged++
	}
	w.SampledAt = now
	w.IsMoving = t.moving

	t.latest = w
	t.hasLatest = true
	t.lastEmit = now
	t.emitted = true
	t.dirty = false
	t.stats.Emitted++
	return w
}

// Latest is the most recently emitted window.
func (t *Tracker) Latest() (Window, bool) {
	return t.latest, t.hasLatest
}

func (t *Tracker) Moving() bool {
	return t.moving
}

func (t *Tracker) Stats() Stats {
	return t.stats
}
