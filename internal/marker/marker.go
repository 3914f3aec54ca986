package marker

import (
	"math"
	"strings"

	"crave/map-core/internal/colorkey"
	"crave/map-core/internal/geo"
)

// WorstRank is assigned to entries that arrive without a usable rank.
const WorstRank = math.MaxInt32

const maxReportSamples = 5

// Entry is one ranked marker of the current result set.
type Entry struct {
	ID         string     `json:"id" yaml:"id"`
	Coordinate geo.LatLng `json:"coordinate" yaml:"coordinate"`
	Rank       int        `json:"rank" yaml:"rank"`
	Color      string     `json:"color" yaml:"color"`
	IsSelected bool       `json:"is_selected,omitempty" yaml:"is_selected"`
}

// Report summarises what was dropped or repaired while building a Catalog.
type Report struct {
	Total              int
	Accepted           int
	EmptyIDs           int
	DuplicateIDs       int
	InvalidCoordinates int
	UnknownColors      int
	ClampedRanks       int
	Samples            []string
}

// Clean reports whether every entry was accepted unchanged.
func (r Report) Clean() bool {
	return r.Accepted == r.Total && r.UnknownColors == 0 && r.ClampedRanks == 0
}

func (r *Report) sample(id string) {
	if id == "" || len(r.Samples) >= maxReportSamples {
		return
	}
	r.Samples = append(r.Samples, id)
}

// Catalog is an immutable, validated snapshot of the ranked markers.
type Catalog struct {
	entries  []Entry
	byID     map[string]int
	selected string
}

// NewCatalog validates raw entries. Entries with an empty id or an invalid
// coordinate are excluded, later duplicates of an id are dropped, colours are
// normalised and non-positive ranks are moved to the end of the ranking.
func NewCatalog(raw []Entry) (*Catalog, Report) {
	rep := Report{Total: len(raw)}
	c := &Catalog{
		entries: make([]Entry, 0, len(raw)),
		byID:    make(map[string]int, len(raw)),
	}

	for _, e := range raw {
		e.ID = strings.TrimSpace(e.ID)
		if e.ID == "" {
			rep.EmptyIDs++
			continue
		}
		if _, dup := c.byID[e.ID]; dup {
			rep.DuplicateIDs++
			rep.sample(e.ID)
			continue
		}
		if !e.Coordinate.Valid() {
			rep.InvalidCoordinates++
			rep.sample(e.ID)
			continue
		}
		if color, ok := colorkey.Normalize(e.Color); ok {
			e.Color = color
		} else {
			rep.UnknownColors++
			e.Color = colorkey.DefaultColor
		}
		if e.Rank <= 0 {
			rep.ClampedRanks++
			e.Rank = WorstRank
		}
		if e.IsSelected && c.selected == "" {
			c.selected = e.ID
		}

		c.byID[e.ID] = len(c.entries)
		c.entries = append(c.entries, e)
	}

	rep.Accepted = len(c.entries)
	return c, rep
}

// Entries returns the accepted entries in catalog order. Callers must not mutate them.
func (c *Catalog) Entries() []Entry {
	if c == nil {
		return nil
	}
	return c.entries
}

func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.entries)
}

func (c *Catalog) Lookup(id string) (Entry, bool) {
	if c == nil {
		return Entry{}, false
	}
	i, ok := c.byID[id]
	if !ok {
		return Entry{}, false
	}
	return c.entries[i], true
}

// SelectedID is the first entry flagged as selected by the ranking collaborator.
func (c *Catalog) SelectedID() string {
	if c == nil {
		return ""
	}
	return c.selected
}
