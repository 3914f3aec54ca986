// Package lod ties the camera tracker, candidate set, tier classifier,
// transition machine and visibility fader into one context object. An Engine
// is single-threaded; the Driver owns it on a dedicated goroutine.
package lod

import (
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/zyedidia/generic/mapset"

	"crave/map-core/internal/camera"
	"crave/map-core/internal/candidates"
	"crave/map-core/internal/colorkey"
	"crave/map-core/internal/fader"
	"crave/map-core/internal/geo"
	"crave/map-core/internal/marker"
	"crave/map-core/internal/metrics"
	"crave/map-core/internal/tier"
	"crave/map-core/internal/transition"
)

type Options struct {
	Camera     camera.Options
	Candidates candidates.Options
	Tier       tier.Options
	Transition transition.Options
	Fader      fader.Options

	Logger   zerolog.Logger
	Metrics  *metrics.Metrics
	OnSelect SelectFunc
}

type Engine struct {
	log      zerolog.Logger
	metrics  *metrics.Metrics
	onSelect SelectFunc

	tracker    *camera.Tracker
	cands      *candidates.Manager
	classifier *tier.Classifier
	machine    *transition.Machine
	fader      *fader.Fader

	catalog  *marker.Catalog
	selected string
	dirty    bool

	viewport    geo.Viewport
	hasViewport bool
	ids         []string
	assignment  tier.Assignment

	render   RenderSets
	counters Counters

	reportedDrops uint64
}

func New(opts Options) *Engine {
	return &Engine{
		log:        opts.Logger,
		metrics:    opts.Metrics,
		onSelect:   opts.OnSelect,
		tracker:    camera.New(opts.Camera),
		cands:      candidates.New(opts.Candidates),
		classifier: tier.New(opts.Tier),
		machine:    transition.New(opts.Transition),
		fader:      fader.New(opts.Fader),
	}
}

// ReplaceCatalog swaps in a new marker catalog. Ids absent from the new
// catalog leave the candidate set immediately; the next Tick recomputes.
func (e *Engine) ReplaceCatalog(raw []marker.Entry) marker.Report {
	cat, rep := marker.NewCatalog(raw)
	if !rep.Clean() {
		e.log.Warn().
			Int("total", rep.Total).
			Int("accepted", rep.Accepted).
			Int("empty_ids", rep.EmptyIDs).
			Int("duplicate_ids", rep.DuplicateIDs).
			Int("invalid_coordinates", rep.InvalidCoordinates).
			Int("unknown_colors", rep.UnknownColors).
			Int("clamped_ranks", rep.ClampedRanks).
			Strs("samples", rep.Samples).
			Msg("catalog entries adjusted or rejected")
	}

	e.catalog = cat
	if dropped := e.cands.Retain(func(id string) bool {
		_, ok := cat.Lookup(id)
		return ok
	}); dropped > 0 {
		e.log.Debug().Int("dropped", dropped).Msg("candidates removed by catalog replacement")
	}
	e.ids = e.cands.IDs()
	e.dirty = true
	e.metrics.IncCatalogReplacement()
	return rep
}

// SetSelection marks id as the user's selection. An empty id falls back to
// the catalog's own selected entry.
func (e *Engine) SetSelection(id string) {
	if id == e.selected {
		return
	}
	e.selected = id
	e.dirty = true
}

func (e *Engine) ClearSelection() {
	e.SetSelection("")
}

// SelectedID is the effective selection: explicit first, then the catalog flag.
func (e *Engine) SelectedID() string {
	if e.selected != "" {
		if _, ok := e.catalog.Lookup(e.selected); ok {
			return e.selected
		}
	}
	return e.catalog.SelectedID()
}

func (e *Engine) ViewportChanged(ev camera.Event, now time.Time) bool {
	ok := e.tracker.Observe(ev, now)
	if !ok {
		e.log.Debug().Float64("zoom", ev.Zoom).Msg("camera event rejected")
	}
	return ok
}

func (e *Engine) InteractionEnded() {
	e.tracker.InteractionEnded()
}

func (e *Engine) Idle() {
	e.tracker.Idle()
}

// Tick runs one frame. A full cycle runs when the tracker emits a window,
// when the catalog or selection changed since the last cycle, or when a held
// candidate's grace period has run out; otherwise only transitions and
// visibility advance. It reports whether a full cycle ran.
func (e *Engine) Tick(now time.Time) bool {
	w, emitted := e.tracker.Sample(now)
	e.flushCameraDrops()

	switch {
	case emitted:
		return e.cycle(w.Viewport, now)
	case e.hasViewport && (e.dirty || e.holdExpired(now)):
		return e.cycle(e.viewport, now)
	default:
		e.advance(now)
		return false
	}
}

// holdExpired reports whether a candidate that left the padded bounds is due
// for removal. The camera may have settled before the deadline.
func (e *Engine) holdExpired(now time.Time) bool {
	next, ok := e.cands.NextExpiry()
	return ok && !now.Before(next)
}

func (e *Engine) flushCameraDrops() {
	st := e.tracker.Stats()
	if st.Dropped > e.reportedDrops {
		e.metrics.AddCameraDropped(st.Dropped - e.reportedDrops)
		e.reportedDrops = st.Dropped
	}
	e.counters.CameraDropped = st.Dropped
	e.counters.CameraRejected = st.Rejected
}

func (e *Engine) cycle(vp geo.Viewport, now time.Time) bool {
	start := time.Now()

	res, ok := e.cands.Update(vp, e.catalog.Entries(), now)
	if !ok {
		e.counters.SkippedCycles++
		e.metrics.IncCycleSkipped("no_pixels")
		e.log.Debug().
			Float64("width_px", vp.WidthPx).
			Float64("height_px", vp.HeightPx).
			Msg("lod cycle skipped, keeping previous state")
		e.advance(now)
		return false
	}

	e.viewport = vp
	e.hasViewport = true
	e.dirty = false
	e.ids = e.cands.IDs()

	cs := make([]tier.Candidate, 0, len(e.ids))
	for _, id := range e.ids {
		entry, _ := e.catalog.Lookup(id)
		cs = append(cs, tier.Candidate{ID: id, Rank: entry.Rank})
	}

	wasDotHeavy := e.assignment.DotHeavy
	e.assignment = e.classifier.Classify(cs, e.SelectedID(), vp.Zoom)
	if e.assignment.DotHeavy != wasDotHeavy {
		e.log.Debug().
			Bool("dot_heavy", e.assignment.DotHeavy).
			Float64("zoom", vp.Zoom).
			Int("candidates", len(cs)).
			Msg("tier mode changed")
	}
	if e.assignment.Forced {
		e.log.Debug().
			Str("selected", e.SelectedID()).
			Str("displaced", e.assignment.Displaced).
			Msg("selected marker forced into full tier")
	}

	ch := e.machine.Apply(e.assignment.Tiers, now)
	e.metrics.AddTransitions("started", ch.Started)
	e.metrics.AddTransitions("reversed", ch.Reversed)
	e.metrics.AddTransitions("completed", ch.Completed)

	e.assemble(now)

	elapsed := time.Since(start)
	e.counters.Cycles++
	e.counters.LastCycle = elapsed
	e.counters.LastCycleAt = now
	e.metrics.ObserveCycle(elapsed, metrics.CycleCounts{
		Candidates: e.counters.CandidateCount,
		Full:       e.counters.FullCount,
		Dots:       e.counters.DotCount,
		DotHeavy:   e.counters.DotHeavy,
	})

	e.log.Trace().
		Int("entered", res.Entered).
		Int("held", res.Held).
		Int("expired", res.Expired).
		Int("full", e.counters.FullCount).
		Int("dots", e.counters.DotCount).
		Dur("took", elapsed).
		Msg("lod cycle")
	return true
}

// advance completes due transitions and refreshes visuals and visibility
// without touching the candidate set or the tier assignment.
func (e *Engine) advance(now time.Time) {
	if n := e.machine.Advance(now); n > 0 {
		e.metrics.AddTransitions("completed", n)
	}
	if !e.hasViewport {
		return
	}
	e.assemble(now)
	e.metrics.SetCounts(metrics.CycleCounts{
		Candidates: e.counters.CandidateCount,
		Full:       e.counters.FullCount,
		Dots:       e.counters.DotCount,
		DotHeavy:   e.counters.DotHeavy,
	})
}

func (e *Engine) assemble(now time.Time) {
	sets := e.machine.Render(e.ids, now)
	selected := e.SelectedID()
	mounted := mapset.New[string]()

	full := make([]FullMarker, 0, len(sets.Full))
	fm := make([]fader.Marker, 0, len(sets.Full))
	var promoting, demoting int
	for _, st := range sets.Full {
		entry, ok := e.catalog.Lookup(st.ID)
		if !ok || mounted.Has(st.ID) {
			continue
		}
		mounted.Put(st.ID)
		switch st.Phase {
		case transition.Promoting:
			promoting++
		case transition.Demoting:
			demoting++
		}
		full = append(full, FullMarker{
			ID:         st.ID,
			Coordinate: entry.Coordinate,
			Rank:       entry.Rank,
			Color:      entry.Color,
			Selected:   st.ID == selected,
			Phase:      st.Phase.String(),
			Progress:   st.Progress,
			Visual:     st.Visual,
		})
		fm = append(fm, fader.Marker{ID: st.ID, Coordinate: entry.Coordinate})
	}

	vis := e.fader.Update(e.viewport, fm, now)
	for i := range full {
		full[i].Visibility = vis[full[i].ID]
	}
	sort.SliceStable(full, func(i, j int) bool {
		if full[i].Rank != full[j].Rank {
			return full[i].Rank < full[j].Rank
		}
		return full[i].ID < full[j].ID
	})

	dots := make([]DotFeature, 0, len(sets.Dots))
	for _, id := range sets.Dots {
		entry, ok := e.catalog.Lookup(id)
		if !ok {
			continue
		}
		// A mounted full marker never also renders as a dot.
		if mounted.Has(id) {
			e.log.Error().Str("id", id).Msg("id in both render tiers, keeping the full marker")
			continue
		}
		dots = append(dots, DotFeature{
			ID:         id,
			Key:        colorkey.FeatureKey(id),
			Coordinate: entry.Coordinate,
			Color:      entry.Color,
		})
	}

	e.render = RenderSets{Full: full, Dots: dots}
	e.counters.CandidateCount = len(e.ids)
	e.counters.FullCount = len(full)
	e.counters.DotCount = len(dots)
	e.counters.PromotingCount = promoting
	e.counters.DemotingCount = demoting
	e.counters.DotHeavy = e.assignment.DotHeavy
	e.counters.FullBudget = e.assignment.Budget
}

// Tap dispatches a tap on either tier to the selection callback. It reports
// false for ids that are not in the catalog.
func (e *Engine) Tap(s Selectable) bool {
	id := s.SelectableID()
	if _, ok := e.catalog.Lookup(id); !ok {
		e.log.Debug().Str("id", id).Msg("tap on unknown marker ignored")
		return false
	}
	if e.onSelect != nil {
		e.onSelect(id)
	}
	return true
}

// Render returns the render sets of the last cycle or frame. The slices are
// rebuilt every frame and must not be mutated by callers.
func (e *Engine) Render() RenderSets {
	return e.render
}

func (e *Engine) Counters() Counters {
	return e.counters
}

func (e *Engine) Assignment() tier.Assignment {
	return e.assignment
}

// CandidateIDs is the current candidate set in ascending id order.
func (e *Engine) CandidateIDs() []string {
	return e.ids
}

func (e *Engine) CatalogSize() int {
	return e.catalog.Len()
}

func (e *Engine) Moving() bool {
	return e.tracker.Moving()
}
