package candidates

import (
	"testing"
	"time"

	"crave/map-core/internal/geo"
	"crave/map-core/internal/marker"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func at(ms int) time.Time {
	return t0.Add(time.Duration(ms) * time.Millisecond)
}

func viewportAt(lng float64) geo.Viewport {
	return geo.Viewport{
		Bounds: geo.Bounds{
			NE: geo.LatLng{Lat: 1, Lng: lng + 1},
			SW: geo.LatLng{Lat: 0, Lng: lng},
		},
		Zoom:     14,
		WidthPx:  100,
		HeightPx: 100,
	}
}

func entries() []marker.Entry {
	return []marker.Entry{
		{ID: "center", Coordinate: geo.LatLng{Lat: 0.5, Lng: 0.5}, Rank: 1},
		{ID: "padding", Coordinate: geo.LatLng{Lat: 0.5, Lng: 1.1}, Rank: 2},
		{ID: "far", Coordinate: geo.LatLng{Lat: 0.5, Lng: 5}, Rank: 3},
	}
}

func TestManager_EntersImmediatelyIncludingPadding(t *testing.T) {
	m := New(Options{PadPx: 12, Hold: 250 * time.Millisecond})
	res, ok := m.Update(viewportAt(0), entries(), at(0))
	if !ok {
		t.Fatalf("expected update to run")
	}
	if res.Entered != 2 || m.Len() != 2 {
		t.Fatalf("expected 2 members, got res=%+v len=%d", res, m.Len())
	}
	if !m.Has("padding") {
		t.Fatalf("expected marker inside the pixel padding to be a candidate")
	}
	if m.Has("far") {
		t.Fatalf("expected far marker to be excluded")
	}
}

func TestManager_GracePeriod(t *testing.T) {
	m := New(Options{PadPx: 12, Hold: 250 * time.Millisecond})
	m.Update(viewportAt(0), entries(), at(-100))

	// Pan away at t=0: both members leave the padded bounds.
	res, _ := m.Update(viewportAt(20), entries(), at(0))
	if res.Held != 2 || !m.Has("center") {
		t.Fatalf("expected members to be held, got %+v", res)
	}
	expiry, ok := m.HoldExpiry("center")
	if !ok || !expiry.Equal(at(250)) {
		t.Fatalf("expected hold expiry at 250ms, got %v ok=%v", expiry, ok)
	}

	// The hold deadline is set once, not pushed forward by later cycles.
	m.Update(viewportAt(20), entries(), at(100))
	if expiry, _ := m.HoldExpiry("center"); !expiry.Equal(at(250)) {
		t.Fatalf("expected hold expiry unchanged, got %v", expiry)
	}

	m.Update(viewportAt(20), entries(), at(249))
	if !m.Has("center") {
		t.Fatalf("expected center to remain before holdMs")
	}

	res, _ = m.Update(viewportAt(20), entries(), at(250))
	if m.Has("center") || res.Expired != 2 {
		t.Fatalf("expected members removed at holdMs, got %+v len=%d", res, m.Len())
	}
}

func TestManager_NextExpiryIsEarliestHold(t *testing.T) {
	m := New(Options{PadPx: 12, Hold: 250 * time.Millisecond})
	m.Update(viewportAt(0), entries(), at(0))
	if _, ok := m.NextExpiry(); ok {
		t.Fatalf("expected no pending hold while every member is inside")
	}

	// center leaves first, padding later.
	m.Update(viewportAt(0.7), entries(), at(100))
	m.Update(viewportAt(20), entries(), at(200))
	next, ok := m.NextExpiry()
	if !ok || !next.Equal(at(350)) {
		t.Fatalf("expected earliest hold at 350ms, got %v ok=%v", next, ok)
	}

	m.Update(viewportAt(20), entries(), at(350))
	if m.Has("center") {
		t.Fatalf("expected center released at its deadline")
	}
	if next, ok := m.NextExpiry(); !ok || !next.Equal(at(450)) {
		t.Fatalf("expected next hold at 450ms, got %v ok=%v", next, ok)
	}

	m.Update(viewportAt(20), entries(), at(450))
	if _, ok := m.NextExpiry(); ok || m.Len() != 0 {
		t.Fatalf("expected every hold released, len=%d", m.Len())
	}
}

func TestManager_ReentryClearsHold(t *testing.T) {
	m := New(Options{PadPx: 0, Hold: 250 * time.Millisecond})
	m.Update(viewportAt(0), entries(), at(0))
	m.Update(viewportAt(20), entries(), at(50))

	res, _ := m.Update(viewportAt(0), entries(), at(100))
	if res.Released != 1 {
		t.Fatalf("expected one released hold, got %+v", res)
	}
	if _, held := m.HoldExpiry("center"); held {
		t.Fatalf("expected hold cleared on re-entry")
	}

	m.Update(viewportAt(20), entries(), at(400))
	if !m.Has("center") {
		t.Fatalf("expected a fresh hold after leaving again")
	}
}

func TestManager_SkipsWithoutPixels(t *testing.T) {
	m := New(Options{PadPx: 12, Hold: 250 * time.Millisecond})
	m.Update(viewportAt(0), entries(), at(0))

	vp := viewportAt(20)
	vp.WidthPx = 0
	if _, ok := m.Update(vp, entries(), at(500)); ok {
		t.Fatalf("expected update to be skipped without pixel dimensions")
	}
	if m.Len() != 2 {
		t.Fatalf("expected previous candidate set retained, got %d", m.Len())
	}
}

func TestManager_Retain(t *testing.T) {
	m := New(Options{PadPx: 12})
	m.Update(viewportAt(0), entries(), at(0))
	dropped := m.Retain(func(id string) bool { return id == "center" })
	if dropped != 1 || m.Len() != 1 || !m.Has("center") {
		t.Fatalf("expected only center retained, dropped=%d ids=%v", dropped, m.IDs())
	}
}
