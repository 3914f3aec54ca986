package lod

import (
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"crave/map-core/internal/camera"
	"crave/map-core/internal/candidates"
	"crave/map-core/internal/colorkey"
	"crave/map-core/internal/fader"
	"crave/map-core/internal/geo"
	"crave/map-core/internal/marker"
	"crave/map-core/internal/tier"
	"crave/map-core/internal/transition"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func at(ms int) time.Time {
	return t0.Add(time.Duration(ms) * time.Millisecond)
}

func testOptions() Options {
	return Options{
		Camera:     camera.Options{Throttle: 100 * time.Millisecond, QuietPeriod: 250 * time.Millisecond},
		Candidates: candidates.Options{PadPx: 12, Hold: 250 * time.Millisecond},
		Tier: tier.Options{
			MaxFull:    25,
			ZoomEnter:  12,
			ZoomExit:   12.4,
			CountEnter: 180,
			CountExit:  150,
		},
		Transition: transition.Options{Duration: 200 * time.Millisecond},
		Fader:      fader.Options{Fade: 150 * time.Millisecond},
		Logger:     zerolog.Nop(),
	}
}

func viewEvent(zoom float64) camera.Event {
	return camera.Event{
		Bounds: geo.Bounds{
			NE: geo.LatLng{Lat: 0.1, Lng: 0.1},
			SW: geo.LatLng{Lat: 0, Lng: 0},
		},
		Zoom:     zoom,
		WidthPx:  1000,
		HeightPx: 1000,
	}
}

// entries returns n markers m001..mNNN ranked by their number, all well inside viewEvent.
func entries(n int) []marker.Entry {
	out := make([]marker.Entry, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, marker.Entry{
			ID: fmt.Sprintf("m%03d", i),
			Coordinate: geo.LatLng{
				Lat: 0.02 + float64(i%20)*0.003,
				Lng: 0.02 + float64(i/20)*0.003,
			},
			Rank:  i,
			Color: "#3366ff",
		})
	}
	return out
}

func newEngine(t *testing.T, n int, zoom float64) *Engine {
	t.Helper()
	e := New(testOptions())
	if rep := e.ReplaceCatalog(entries(n)); !rep.Clean() {
		t.Fatalf("expected clean catalog, got %+v", rep)
	}
	e.ViewportChanged(viewEvent(zoom), at(0))
	if !e.Tick(at(0)) {
		t.Fatalf("expected first tick to run a full cycle")
	}
	return e
}

func fullIDs(rs RenderSets) map[string]FullMarker {
	out := make(map[string]FullMarker, len(rs.Full))
	for _, m := range rs.Full {
		out[m.ID] = m
	}
	return out
}

func dotIDs(rs RenderSets) map[string]bool {
	out := make(map[string]bool, len(rs.Dots))
	for _, d := range rs.Dots {
		out[d.ID] = true
	}
	return out
}

func checkPartition(t *testing.T, e *Engine) {
	t.Helper()
	rs := e.Render()
	full := fullIDs(rs)
	dots := dotIDs(rs)
	if len(full) != len(rs.Full) || len(dots) != len(rs.Dots) {
		t.Fatalf("duplicate ids inside a render list")
	}
	for id := range full {
		if dots[id] {
			t.Fatalf("id %s rendered in both tiers", id)
		}
	}
	cands := e.CandidateIDs()
	if len(full)+len(dots) != len(cands) {
		t.Fatalf("expected %d rendered ids, got %d full + %d dots", len(cands), len(full), len(dots))
	}
	for _, id := range cands {
		if _, ok := full[id]; !ok && !dots[id] {
			t.Fatalf("candidate %s not rendered", id)
		}
	}
}

func TestEngine_PartitionsCandidatesWithinBudget(t *testing.T) {
	e := newEngine(t, 60, 15)

	checkPartition(t, e)
	rs := e.Render()
	if len(rs.Full) != 25 || len(rs.Dots) != 35 {
		t.Fatalf("expected 25 full and 35 dots, got %d/%d", len(rs.Full), len(rs.Dots))
	}
	full := fullIDs(rs)
	for i := 1; i <= 25; i++ {
		if _, ok := full[fmt.Sprintf("m%03d", i)]; !ok {
			t.Fatalf("expected top-ranked m%03d in the full tier", i)
		}
	}
	if rs.Full[0].ID != "m001" {
		t.Fatalf("expected full markers ordered by rank, first is %s", rs.Full[0].ID)
	}
	for _, d := range rs.Dots {
		if d.Key != colorkey.FeatureKey(d.ID) {
			t.Fatalf("expected feature key for %s, got %q", d.ID, d.Key)
		}
	}

	c := e.Counters()
	if c.CandidateCount != 60 || c.FullCount != 25 || c.DotCount != 35 || c.DotHeavy {
		t.Fatalf("unexpected counters %+v", c)
	}
}

func TestEngine_DotHeavyHidesUnselectedWidgets(t *testing.T) {
	e := newEngine(t, 300, 15)

	rs := e.Render()
	if len(rs.Full) != 0 || len(rs.Dots) != 300 {
		t.Fatalf("expected every marker as a dot in dot-heavy mode, got %d/%d", len(rs.Full), len(rs.Dots))
	}
	if !e.Counters().DotHeavy {
		t.Fatalf("expected dot-heavy mode for 300 candidates")
	}

	e.SetSelection("m040")
	if !e.Tick(at(50)) {
		t.Fatalf("expected selection change to trigger a cycle")
	}
	rs = e.Render()
	full := fullIDs(rs)
	m, ok := full["m040"]
	if !ok || !m.Selected {
		t.Fatalf("expected selected m040 in the full set, got %+v", rs.Full)
	}
	if len(rs.Full) != 1 {
		t.Fatalf("expected only the selected overflow, got %d full", len(rs.Full))
	}
	checkPartition(t, e)
}

func TestEngine_ForcedSelectionDisplacesWorstChosen(t *testing.T) {
	opts := testOptions()
	opts.Tier.DotHeavyMaxFull = 25
	e := New(opts)
	raw := entries(300)
	raw[39].IsSelected = true
	e.ReplaceCatalog(raw)
	e.ViewportChanged(viewEvent(15), at(0))
	e.Tick(at(0))

	if got := e.SelectedID(); got != "m040" {
		t.Fatalf("expected catalog selection fallback m040, got %q", got)
	}
	a := e.Assignment()
	if !a.Forced || a.Displaced != "m025" {
		t.Fatalf("expected m040 forced displacing m025, got forced=%v displaced=%q", a.Forced, a.Displaced)
	}
	full := fullIDs(e.Render())
	if len(full) != 25 {
		t.Fatalf("expected 25 full markers, got %d", len(full))
	}
	if _, ok := full["m040"]; !ok {
		t.Fatalf("expected m040 full")
	}
	if _, ok := full["m025"]; ok {
		t.Fatalf("expected m025 displaced to the dot tier")
	}
	checkPartition(t, e)
}

func TestEngine_PromotionAdvancesBetweenCycles(t *testing.T) {
	e := newEngine(t, 60, 15)
	// Quiet-period emission settles the camera.
	e.Tick(at(300))

	e.SetSelection("m040")
	if !e.Tick(at(1000)) {
		t.Fatalf("expected selection change to run a cycle")
	}
	full := fullIDs(e.Render())
	m, ok := full["m040"]
	if !ok || m.Phase != "promoting" || m.Progress != 0 {
		t.Fatalf("expected m040 promoting from 0, got %+v ok=%v", m, ok)
	}
	if dotIDs(e.Render())["m040"] {
		t.Fatalf("expected m040 out of the dot set once promotion starts")
	}
	if d, ok := full["m025"]; !ok || d.Phase != "demoting" {
		t.Fatalf("expected m025 demoting in the full set, got %+v ok=%v", d, ok)
	}
	checkPartition(t, e)

	if e.Tick(at(1100)) {
		t.Fatalf("expected a light frame without a camera emission")
	}
	m = fullIDs(e.Render())["m040"]
	if m.Phase != "promoting" || math.Abs(m.Progress-0.5) > 1e-9 {
		t.Fatalf("expected m040 halfway through promotion, got %+v", m)
	}
	if m.Visual.LabelVisible {
		t.Fatalf("expected label hidden at progress 0.5")
	}

	e.Tick(at(1201))
	rs := e.Render()
	m = fullIDs(rs)["m040"]
	if m.Phase != "steady" || m.Visual.Scale != 1 || !m.Visual.LabelVisible {
		t.Fatalf("expected m040 steady at full scale, got %+v", m)
	}
	if !dotIDs(rs)["m025"] {
		t.Fatalf("expected m025 settled as a dot")
	}
	if c := e.Counters(); c.FullCount != 25 || c.PromotingCount != 0 || c.DemotingCount != 0 {
		t.Fatalf("unexpected counters after settle %+v", c)
	}
	checkPartition(t, e)
}

func TestEngine_GracePeriodKeepsDepartedMarker(t *testing.T) {
	e := New(testOptions())
	e.ReplaceCatalog([]marker.Entry{{ID: "a", Coordinate: geo.LatLng{Lat: 0.05, Lng: 0.05}, Rank: 1}})
	e.ViewportChanged(viewEvent(15), at(0))
	e.Tick(at(0))
	e.Tick(at(300))

	away := viewEvent(15)
	away.Bounds = geo.Bounds{NE: geo.LatLng{Lat: 0.3, Lng: 0.1}, SW: geo.LatLng{Lat: 0.2, Lng: 0}}
	e.ViewportChanged(away, at(1000))
	if !e.Tick(at(1000)) {
		t.Fatalf("expected the pan to run a cycle")
	}

	rs := e.Render()
	m, ok := fullIDs(rs)["a"]
	if !ok {
		t.Fatalf("expected departed marker kept during the hold, got %+v", rs)
	}
	if m.Visibility.Visible || m.Visibility.Interactive {
		t.Fatalf("expected held marker outside the viewport to be hidden, got %+v", m.Visibility)
	}

	e.Tick(at(1100))
	if len(e.Render().Full) != 1 {
		t.Fatalf("expected marker still mounted before the hold expires")
	}

	// Quiet-period emission at 1250 coincides with the hold deadline.
	if !e.Tick(at(1250)) {
		t.Fatalf("expected quiet-period emission to run a cycle")
	}
	rs = e.Render()
	if len(rs.Full) != 0 || len(rs.Dots) != 0 || e.Counters().CandidateCount != 0 {
		t.Fatalf("expected marker released after the hold, got %+v", rs)
	}
}

func TestEngine_HoldExpiresAfterCameraSettles(t *testing.T) {
	e := New(testOptions())
	e.ReplaceCatalog([]marker.Entry{
		{ID: "a", Coordinate: geo.LatLng{Lat: 0.05, Lng: 0.05}, Rank: 1},
		{ID: "b", Coordinate: geo.LatLng{Lat: 0.25, Lng: 0.05}, Rank: 2},
	})
	e.ViewportChanged(viewEvent(15), at(0))
	e.Tick(at(0))
	e.Tick(at(300))

	// The pan's only raw event lands between frames; the frame at 1000 samples
	// it, so a's hold runs until 1250 while the quiet period ends at 1238.
	away := viewEvent(15)
	away.Bounds = geo.Bounds{NE: geo.LatLng{Lat: 0.3, Lng: 0.1}, SW: geo.LatLng{Lat: 0.2, Lng: 0}}
	e.ViewportChanged(away, at(988))

	released := -1
	for ms := 1000; ms <= 5000; ms += 16 {
		cycled := e.Tick(at(ms))
		if released >= 0 {
			continue
		}
		var present bool
		for _, id := range e.CandidateIDs() {
			present = present || id == "a"
		}
		if !present {
			if !cycled {
				t.Fatalf("expected a full cycle to release a at %dms", ms)
			}
			released = ms
		}
	}

	if released != 1256 {
		t.Fatalf("expected a released on the first frame after its hold, got %dms", released)
	}
	rs := e.Render()
	if _, ok := fullIDs(rs)["a"]; ok || dotIDs(rs)["a"] {
		t.Fatalf("expected a no longer rendered, got %+v", rs)
	}
	if _, ok := fullIDs(rs)["b"]; !ok {
		t.Fatalf("expected b rendered in the new view, got %+v", rs)
	}
	if e.Moving() {
		t.Fatalf("expected camera settled")
	}
}

func TestEngine_SkipsCyclesWithoutPixels(t *testing.T) {
	e := New(testOptions())
	e.ReplaceCatalog(entries(10))

	unsized := viewEvent(15)
	unsized.WidthPx, unsized.HeightPx = 0, 0
	e.ViewportChanged(unsized, at(0))
	if e.Tick(at(0)) {
		t.Fatalf("expected cycle without pixels to be skipped")
	}
	if rs := e.Render(); len(rs.Full)+len(rs.Dots) != 0 {
		t.Fatalf("expected nothing rendered before layout")
	}

	e.ViewportChanged(viewEvent(15), at(200))
	if !e.Tick(at(200)) {
		t.Fatalf("expected sized viewport to run a cycle")
	}
	before := e.Render()
	if len(before.Full) != 10 {
		t.Fatalf("expected 10 full markers, got %d", len(before.Full))
	}

	e.ViewportChanged(unsized, at(400))
	e.Tick(at(400))
	after := e.Render()
	if len(after.Full) != len(before.Full) || len(after.Dots) != len(before.Dots) {
		t.Fatalf("expected previous render retained, got %d/%d", len(after.Full), len(after.Dots))
	}
	if got := e.Counters().SkippedCycles; got != 2 {
		t.Fatalf("expected 2 skipped cycles, got %d", got)
	}
}

func TestEngine_CatalogReplacementDropsMissingIDs(t *testing.T) {
	e := newEngine(t, 30, 15)

	next := entries(30)[1:]
	e.ReplaceCatalog(next)
	if !e.Tick(at(20)) {
		t.Fatalf("expected catalog replacement to run a cycle")
	}
	rs := e.Render()
	if _, ok := fullIDs(rs)["m001"]; ok || dotIDs(rs)["m001"] {
		t.Fatalf("expected m001 gone after catalog replacement")
	}
	// m026 moves up into the budget and starts promoting.
	if m := fullIDs(rs)["m026"]; m.Phase != "promoting" {
		t.Fatalf("expected m026 promoting, got %+v", m)
	}
	checkPartition(t, e)
}

func TestEngine_TapDispatchesBothTiers(t *testing.T) {
	var got []string
	opts := testOptions()
	opts.OnSelect = func(id string) { got = append(got, id) }
	e := New(opts)
	e.ReplaceCatalog(entries(60))
	e.ViewportChanged(viewEvent(15), at(0))
	e.Tick(at(0))

	rs := e.Render()
	taps := []Selectable{rs.Full[0], rs.Dots[0], FeatureRef(rs.Dots[1].Key)}
	for _, s := range taps {
		if !e.Tap(s) {
			t.Fatalf("expected tap on %s to be accepted", s.SelectableID())
		}
	}
	if e.Tap(FeatureRef("marker:nope")) {
		t.Fatalf("expected tap on unknown id to be rejected")
	}

	want := []string{rs.Full[0].ID, rs.Dots[0].ID, rs.Dots[1].ID}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}
