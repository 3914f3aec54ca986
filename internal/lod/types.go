package lod

import (
	"time"

	"crave/map-core/internal/colorkey"
	"crave/map-core/internal/fader"
	"crave/map-core/internal/geo"
	"crave/map-core/internal/transition"
)

// Selectable is anything the user can tap on the map. Both render tiers
// implement it so selection is dispatched through a single path.
type Selectable interface {
	SelectableID() string
}

// FullMarker is a marker mounted as an interactive widget.
type FullMarker struct {
	ID         string            `json:"id"`
	Coordinate geo.LatLng        `json:"coordinate"`
	Rank       int               `json:"rank"`
	Color      string            `json:"color"`
	Selected   bool              `json:"selected"`
	Phase      string            `json:"phase"`
	Progress   float64           `json:"progress"`
	Visual     transition.Visual `json:"visual"`
	Visibility fader.State       `json:"visibility"`
}

func (m FullMarker) SelectableID() string { return m.ID }

// DotFeature is a marker drawn as an engine-native point feature.
type DotFeature struct {
	ID         string     `json:"id"`
	Key        string     `json:"key"`
	Coordinate geo.LatLng `json:"coordinate"`
	Color      string     `json:"color"`
}

func (d DotFeature) SelectableID() string { return d.ID }

// FeatureRef is the raw identifier a map engine reports when one of its
// point features is tapped.
type FeatureRef string

func (r FeatureRef) SelectableID() string {
	id, _ := colorkey.ParseFeatureKey(string(r))
	return id
}

// RenderSets is the output of a cycle. An id never appears in both lists.
type RenderSets struct {
	Full []FullMarker `json:"full"`
	Dots []DotFeature `json:"dots"`
}

// Counters are the debug counters handed to instrumentation.
type Counters struct {
	CandidateCount int           `json:"candidate_count"`
	FullCount      int           `json:"full_count"`
	DotCount       int           `json:"dot_count"`
	PromotingCount int           `json:"promoting_count"`
	DemotingCount  int           `json:"demoting_count"`
	DotHeavy       bool          `json:"dot_heavy"`
	FullBudget     int           `json:"full_budget"`
	LastCycle      time.Duration `json:"last_cycle_ns"`
	LastCycleAt    time.Time     `json:"last_cycle_at"`
	Cycles         uint64        `json:"cycles"`
	SkippedCycles  uint64        `json:"skipped_cycles"`
	CameraDropped  uint64        `json:"camera_dropped"`
	CameraRejected uint64        `json:"camera_rejected"`
}

// SelectFunc receives the id of a tapped marker regardless of its tier.
type SelectFunc func(id string)
