package transition

import (
	"time"

	"crave/map-core/internal/tier"
)

const (
	DefaultDuration      = 200 * time.Millisecond
	DefaultLabelRevealAt = 0.55
	DefaultMinScale      = 0.05
	DefaultArtHeightPx   = 44.0
)

// Phase is the animation phase of a marker.
type Phase uint8

const (
	Steady Phase = iota
	Promoting
	Demoting
)

func (p Phase) String() string {
	switch p {
	case Promoting:
		return "promoting"
	case Demoting:
		return "demoting"
	default:
		return "steady"
	}
}

// Record is an in-flight tier change. At most one exists per id.
type Record struct {
	Phase     Phase
	StartedAt time.Time
	Duration  time.Duration
}

// Progress is the elapsed fraction of the transition, clamped to [0, 1].
func (r Record) Progress(now time.Time) float64 {
	if r.Duration <= 0 {
		return 1
	}
	p := float64(now.Sub(r.StartedAt)) / float64(r.Duration)
	switch {
	case p < 0:
		return 0
	case p > 1:
		return 1
	default:
		return p
	}
}

func (r Record) done(now time.Time) bool {
	return now.Sub(r.StartedAt) >= r.Duration
}

// Target is the tier the id settles in when the record completes.
func (r Record) Target() tier.Tier {
	if r.Phase == Promoting {
		return tier.Full
	}
	return tier.Dot
}

type Options struct {
	Duration      time.Duration
	LabelRevealAt float64
	MinScale      float64
	ArtHeightPx   float64
}

// Changes counts what a single Apply did.
type Changes struct {
	Started   int
	Reversed  int
	Completed int
	Dropped   int
}

// State is the render-time view of one full-render id.
type State struct {
	ID       string
	Phase    Phase
	Progress float64
	Visual   Visual
}

// RenderSets is the per-cycle output: every candidate id is in exactly one of
// Full or Dots.
type RenderSets struct {
	Full []State
	Dots []string
}

// Machine tracks effective tiers and in-flight transitions, keyed by id.
// Records are created when an assignment differs from the effective tier and
// deleted when they complete.
type Machine struct {
	opts      Options
	effective map[string]tier.Tier
	records   map[string]*Record
}

func New(opts Options) *Machine {
	if opts.Duration < 0 {
		opts.Duration = 0
	}
	if opts.LabelRevealAt <= 0 || opts.LabelRevealAt > 1 {
		opts.LabelRevealAt = DefaultLabelRevealAt
	}
	if opts.MinScale <= 0 || opts.MinScale >= 1 {
		opts.MinScale = DefaultMinScale
	}
	if opts.ArtHeightPx <= 0 {
		opts.ArtHeightPx = DefaultArtHeightPx
	}
	return &Machine{
		opts:      opts,
		effective: make(map[string]tier.Tier),
		records:   make(map[string]*Record),
	}
}

// Advance completes every transition whose duration has elapsed at now.
func (m *Machine) Advance(now time.Time) int {
	var completed int
	for id, r := range m.records {
		if r.done(now) {
			m.effective[id] = r.Target()
			delete(m.records, id)
			completed++
		}
	}
	return completed
}

// Apply reconciles the machine with a fresh tier assignment. Ids missing from
// assign are no longer candidates and are forgotten. Ids seen for the first
// time settle directly in their assigned tier.
func (m *Machine) Apply(assign map[string]tier.Tier, now time.Time) Changes {
	var ch Changes
	ch.Completed = m.Advance(now)

	for id := range m.effective {
		if _, ok := assign[id]; !ok {
			delete(m.effective, id)
			delete(m.records, id)
			ch.Dropped++
		}
	}

	for id, target := range assign {
		if r, ok := m.records[id]; ok {
			if r.Target() != target {
				m.reverse(id, r, now)
				ch.Reversed++
			}
			continue
		}

		eff, known := m.effective[id]
		if !known {
			m.effective[id] = target
			continue
		}
		if eff == target {
			continue
		}

		phase := Demoting
		if target == tier.Full {
			phase = Promoting
		}
		m.records[id] = &Record{Phase: phase, StartedAt: now, Duration: m.opts.Duration}
		ch.Started++
	}
	return ch
}

// reverse flips an in-flight transition so it continues from the current
// visual fullness instead of restarting or snapping.
func (m *Machine) reverse(id string, r *Record, now time.Time) {
	p := r.Progress(now)
	remaining := time.Duration((1 - p) * float64(r.Duration))
	if r.Phase == Promoting {
		r.Phase = Demoting
		m.effective[id] = tier.Full
	} else {
		r.Phase = Promoting
		m.effective[id] = tier.Dot
	}
	r.StartedAt = now.Add(-remaining)
}

// Render derives the render sets for ids, which must be the current candidate set.
// Promoting and demoting ids render in the full set; steady ids render in their
// effective tier.
func (m *Machine) Render(ids []string, now time.Time) RenderSets {
	var out RenderSets
	for _, id := range ids {
		if r, ok := m.records[id]; ok {
			p := r.Progress(now)
			out.Full = append(out.Full, State{
				ID:       id,
				Phase:    r.Phase,
				Progress: p,
				Visual:   m.visual(r.Phase, p),
			})
			continue
		}
		if m.effective[id] == tier.Full {
			out.Full = append(out.Full, State{
				ID:       id,
				Phase:    Steady,
				Progress: 1,
				Visual:   m.visual(Steady, 1),
			})
			continue
		}
		out.Dots = append(out.Dots, id)
	}
	return out
}

// Record returns the in-flight transition for id.
func (m *Machine) Record(id string) (Record, bool) {
	r, ok := m.records[id]
	if !ok {
		return Record{}, false
	}
	return *r, true
}

// Effective returns the settled tier of id.
func (m *Machine) Effective(id string) (tier.Tier, bool) {
	t, ok := m.effective[id]
	return t, ok
}

// InFlight is the number of running transitions.
func (m *Machine) InFlight() int {
	return len(m.records)
}
