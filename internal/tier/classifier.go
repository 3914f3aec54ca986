package tier

import (
	"sort"
)

// Tier is the representation class of a marker.
type Tier uint8

const (
	Dot Tier = iota
	Full
)

func (t Tier) String() string {
	if t == Full {
		return "full"
	}
	return "dot"
}

const (
	DefaultZoomEnter  = 12.0
	DefaultZoomExit   = 12.4
	DefaultCountEnter = 180
	DefaultCountExit  = 150
	DefaultMaxFull    = 25
)

type Options struct {
	MaxFull         int
	DotHeavyMaxFull int
	ZoomEnter       float64
	ZoomExit        float64
	CountEnter      int
	CountExit       int
}

// Candidate is the ranking view of a candidate-set member.
type Candidate struct {
	ID   string
	Rank int
}

// Assignment is the tier partition produced by one classification.
type Assignment struct {
	Tiers map[string]Tier
	// Full lists the full-tier ids in (rank, id) order.
	Full     []string
	DotHeavy bool
	Budget   int
	// Forced is set when the selected id was not in the ranked budget.
	Forced bool
	// Displaced is the id dropped to make room for the selected id, if any.
	Displaced string
}

// Classifier partitions candidates into full and dot tiers. The only state it
// carries between cycles is the dot-heavy hysteresis flag.
type Classifier struct {
	opts     Options
	dotHeavy bool
}

func New(opts Options) *Classifier {
	if opts.MaxFull < 0 {
		opts.MaxFull = 0
	}
	if opts.DotHeavyMaxFull < 0 {
		opts.DotHeavyMaxFull = 0
	}
	return &Classifier{opts: opts}
}

// UpdateMode applies the hysteresis: density or zoom alone enters dot-heavy
// mode, both must agree to leave it.
func (c *Classifier) UpdateMode(zoom float64, count int) bool {
	if !c.dotHeavy {
		if zoom <= c.opts.ZoomEnter || count >= c.opts.CountEnter {
			c.dotHeavy = true
		}
		return c.dotHeavy
	}
	if zoom >= c.opts.ZoomExit && count <= c.opts.CountExit {
		c.dotHeavy = false
	}
	return c.dotHeavy
}

func (c *Classifier) DotHeavy() bool {
	return c.dotHeavy
}

// Budget is the full-tier budget for the current mode.
func (c *Classifier) Budget() int {
	if c.dotHeavy {
		return min(c.opts.DotHeavyMaxFull, c.opts.MaxFull)
	}
	return c.opts.MaxFull
}

func less(a, b Candidate) bool {
	if a.Rank != b.Rank {
		return a.Rank < b.Rank
	}
	return a.ID < b.ID
}

// Classify updates the mode from zoom and the candidate count, then assigns
// tiers. selectedID is forced into the full tier when it is a candidate; the
// worst-ranked chosen id is displaced in the same step. With a zero budget
// there is nothing to displace and the selected id is the single overflow.
func (c *Classifier) Classify(cands []Candidate, selectedID string, zoom float64) Assignment {
	c.UpdateMode(zoom, len(cands))
	budget := c.Budget()

	sorted := make([]Candidate, len(cands))
	copy(sorted, cands)
	sort.Slice(sorted, func(i, j int) bool { return less(sorted[i], sorted[j]) })

	n := min(budget, len(sorted))
	chosen := make([]Candidate, n, n+1)
	copy(chosen, sorted[:n])

	out := Assignment{
		Tiers:    make(map[string]Tier, len(sorted)),
		DotHeavy: c.dotHeavy,
		Budget:   budget,
	}

	if selectedID != "" {
		var sel *Candidate
		for i := range sorted {
			if sorted[i].ID == selectedID {
				sel = &sorted[i]
				break
			}
		}
		if sel != nil && !containsID(chosen, selectedID) {
			out.Forced = true
			if len(chosen) > 0 && len(chosen) >= budget {
				out.Displaced = chosen[len(chosen)-1].ID
				chosen = chosen[:len(chosen)-1]
			}
			chosen = append(chosen, *sel)
			sort.Slice(chosen, func(i, j int) bool { return less(chosen[i], chosen[j]) })
		}
	}

	for _, cand := range sorted {
		out.Tiers[cand.ID] = Dot
	}
	out.Full = make([]string, 0, len(chosen))
	for _, cand := range chosen {
		out.Tiers[cand.ID] = Full
		out.Full = append(out.Full, cand.ID)
	}
	return out
}

func containsID(cs []Candidate, id string) bool {
	for _, c := range cs {
		if c.ID == id {
			return true
		}
	}
	return false
}
