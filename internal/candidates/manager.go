package candidates

import (
	"sort"
	"time"

	"crave/map-core/internal/geo"
	"crave/map-core/internal/marker"
)

const (
	DefaultPadPx = 12.0
	DefaultHold  = 250 * time.Millisecond
)

type Options struct {
	PadPx float64
	Hold  time.Duration
}

// Result describes what a single Update changed.
type Result struct {
	Entered  int
	Held     int
	Released int
	Expired  int
}

// Manager owns the candidate set: ids inside the padded viewport, plus ids
// that left it less than Hold ago. Entering is immediate; leaving waits for
// the hold to expire. The zero hold time marks an id that is currently inside.
type Manager struct {
	padPx   float64
	hold    time.Duration
	members map[string]time.Time
}

func New(opts Options) *Manager {
	pad := opts.PadPx
	if pad < 0 {
		pad = 0
	}
	hold := opts.Hold
	if hold < 0 {
		hold = 0
	}
	return &Manager{
		padPx:   pad,
		hold:    hold,
		members: make(map[string]time.Time),
	}
}

// Update recomputes membership against vp. It returns ok=false and leaves the
// set untouched when the viewport has not been laid out or its bounds are unusable.
func (m *Manager) Update(vp geo.Viewport, entries []marker.Entry, now time.Time) (Result, bool) {
	if !vp.HasPixels() || !vp.Bounds.Valid() {
		return Result{}, false
	}

	padded := vp.Bounds.Pad(m.padPx, vp.WidthPx, vp.HeightPx)

	var res Result
	for _, e := range entries {
		expiresAt, present := m.members[e.ID]

		if padded.Contains(e.Coordinate) {
			if !present {
				res.Entered++
			} else if !expiresAt.IsZero() {
				res.Released++
			}
			m.members[e.ID] = time.Time{}
			continue
		}
		if !present {
			continue
		}

		if expiresAt.IsZero() {
			m.members[e.ID] = now.Add(m.hold)
			expiresAt = m.members[e.ID]
		}
		if !now.Before(expiresAt) {
			delete(m.members, e.ID)
			res.Expired++
			continue
		}
		res.Held++
	}
	return res, true
}

// Retain drops every member for which keep returns false. It is used when the
// catalog is replaced and an id no longer has data to render.
func (m *Manager) Retain(keep func(id string) bool) int {
	var dropped int
	for id := range m.members {
		if !keep(id) {
			delete(m.members, id)
			dropped++
		}
	}
	return dropped
}

func (m *Manager) Has(id string) bool {
	_, ok := m.members[id]
	return ok
}

// HoldExpiry returns the hold deadline of a member that left the padded bounds.
func (m *Manager) HoldExpiry(id string) (time.Time, bool) {
	t, ok := m.members[id]
	if !ok || t.IsZero() {
		return time.Time{}, false
	}
	return t, true
}

func (m *Manager) Len() int {
	return len(m.members)
}

// IDs returns the members in ascending id order.
func (m *Manager) IDs() []string {
	out := make([]string, 0, len(m.members))
	for id := range m.members {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// NextExpiry returns the earliest hold deadline among members that left the
// padded bounds. Members past it are only removed by the next Update.
func (m *Manager) NextExpiry() (time.Time, bool) {
	var next time.Time
	for _, t := range m.members {
		if t.IsZero() {
			continue
		}
		if next.IsZero() || t.Before(next) {
			next = t
		}
	}
	return next, !next.IsZero()
}
