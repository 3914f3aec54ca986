package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics exposes application metrics that are safe to scrape via Prometheus.
type Metrics struct {
	registry            *prometheus.Registry
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	lodCycles           prometheus.Counter
	lodCyclesSkipped    *prometheus.CounterVec
	lodCycleDuration    prometheus.Histogram
	lodCandidates       prometheus.Gauge
	lodFull             prometheus.Gauge
	lodDots             prometheus.Gauge
	lodDotHeavy         prometheus.Gauge
	lodTransitions      *prometheus.CounterVec
	cameraDropped       prometheus.Counter
	catalogReplacements prometheus.Counter
}

// CycleCounts are the debug counters published after every LOD cycle.
type CycleCounts struct {
	Candidates int
	Full       int
	Dots       int
	DotHeavy   bool
}

// New creates a fresh Metrics registry with HTTP and LOD metrics registered.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	httpRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "map_core",
		Name:      "http_requests_total",
		Help:      "Count of HTTP requests processed by map-core",
	}, []string{"method", "path", "status"})

	httpRequestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "map_core",
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests served by map-core",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	lodCycles := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "map_core",
		Name:      "lod_cycles_total",
		Help:      "Total number of LOD cycles computed",
	})

	lodCyclesSkipped := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "map_core",
		Name:      "lod_cycles_skipped_total",
		Help:      "LOD cycles skipped while retaining the last good state",
	}, []string{"reason"})

	lodCycleDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "map_core",
		Name:      "lod_cycle_duration_seconds",
		Help:      "Wall time spent computing one LOD cycle",
		Buckets:   []float64{0.00005, 0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025},
	})

	lodCandidates := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "map_core",
		Name:      "lod_candidates",
		Help:      "Size of the candidate set after the last cycle",
	})

	lodFull := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "map_core",
		Name:      "lod_full_markers",
		Help:      "Markers in the full-render set after the last cycle",
	})

	lodDots := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "map_core",
		Name:      "lod_dot_markers",
		Help:      "Markers in the dot-render set after the last cycle",
	})

	lodDotHeavy := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "map_core",
		Name:      "lod_dot_heavy_mode",
		Help:      "1 while the tier classifier is in dot-heavy mode",
	})

	lodTransitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "map_core",
		Name:      "lod_transitions_total",
		Help:      "Tier transitions by kind (started, reversed, completed)",
	}, []string{"kind"})

	cameraDropped := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "map_core",
		Name:      "camera_samples_dropped_total",
		Help:      "Raw camera events overwritten before they were sampled",
	})

	catalogReplacements := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "map_core",
		Name:      "catalog_replacements_total",
		Help:      "Number of times the marker catalog was replaced",
	})

	registry.MustRegister(
		httpRequests,
		httpRequestDuration,
		lodCycles,
		lodCyclesSkipped,
		lodCycleDuration,
		lodCandidates,
		lodFull,
		lodDots,
		lodDotHeavy,
		lodTransitions,
		cameraDropped,
		catalogReplacements,
	)

	return &Metrics{
		registry:            registry,
		httpRequests:        httpRequests,
		httpRequestDuration: httpRequestDuration,
		lodCycles:           lodCycles,
		lodCyclesSkipped:    lodCyclesSkipped,
		lodCycleDuration:    lodCycleDuration,
		lodCandidates:       lodCandidates,
		lodFull:             lodFull,
		lodDots:             lodDots,
		lodDotHeavy:         lodDotHeavy,
		lodTransitions:      lodTransitions,
		cameraDropped:       cameraDropped,
		catalogReplacements: catalogReplacements,
	}
}

// ObserveHTTPRequest records a single HTTP request/response cycle.
func (m *Metrics) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labels := prometheus.Labels{
		"method": method,
		"path":   path,
		"status": strconv.Itoa(status),
	}
	m.httpRequests.With(labels).Inc()
	m.httpRequestDuration.With(labels).Observe(duration.Seconds())
}

// ObserveCycle records a completed LOD cycle and its resulting counts.
func (m *Metrics) ObserveCycle(duration time.Duration, counts CycleCounts) {
	if m == nil {
		return
	}
	m.lodCycles.Inc()
	m.lodCycleDuration.Observe(duration.Seconds())
	m.SetCounts(counts)
}

// SetCounts updates the render gauges without counting a cycle.
func (m *Metrics) SetCounts(counts CycleCounts) {
	if m == nil {
		return
	}
	m.lodCandidates.Set(float64(counts.Candidates))
	m.lodFull.Set(float64(counts.Full))
	m.lodDots.Set(float64(counts.Dots))
	if counts.DotHeavy {
		m.lodDotHeavy.Set(1)
	} else {
		m.lodDotHeavy.Set(0)
	}
}

// IncCycleSkipped counts a cycle that kept the previous state.
func (m *Metrics) IncCycleSkipped(reason string) {
	if m == nil {
		return
	}
	m.lodCyclesSkipped.WithLabelValues(reason).Inc()
}

// AddTransitions counts tier transitions of one kind.
func (m *Metrics) AddTransitions(kind string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.lodTransitions.WithLabelValues(kind).Add(float64(n))
}

// AddCameraDropped counts raw camera events that were overwritten.
func (m *Metrics) AddCameraDropped(n uint64) {
	if m == nil || n == 0 {
		return
	}
	m.cameraDropped.Add(float64(n))
}

// IncCatalogReplacement counts a catalog replacement.
func (m *Metrics) IncCatalogReplacement() {
	if m == nil {
		return
	}
	m.catalogReplacements.Inc()
}

// Handler exposes the Prometheus registry over HTTP.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("metrics unavailable"))
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
