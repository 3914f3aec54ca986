package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"crave/map-core/internal/camera"
	"crave/map-core/internal/db"
	"crave/map-core/internal/lod"
	"crave/map-core/internal/marker"
	"crave/map-core/internal/metrics"
)

// Engine is the part of lod.Driver the HTTP surface drives.
type Engine interface {
	PublishViewport(ev camera.Event)
	PublishInteractionEnded()
	PublishIdle()
	ReplaceCatalog(entries []marker.Entry) bool
	SetSelection(id string) bool
	Tap(s lod.Selectable, result chan<- bool) bool
	Snapshot() lod.Snapshot
	Ready() bool
	MailboxDrops() uint64
}

type Handler struct {
	log     zerolog.Logger
	engine  Engine
	pool    *db.Pool
	metrics *metrics.Metrics
}

// NewHandler wires the HTTP surface. pool may be nil when no database backs the catalog.
func NewHandler(log zerolog.Logger, engine Engine, pool *db.Pool, m *metrics.Metrics) *Handler {
	return &Handler{log: log, engine: engine, pool: pool, metrics: m}
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(15 * time.Second))
	r.Use(h.accessLog)

	// Health
	r.Get("/healthz", h.handleHealthz)
	r.Get("/readyz", h.handleReadyZ)
	r.Method(http.MethodGet, "/metrics", h.metrics.Handler())

	// API
	r.Route("/api", func(r chi.Router) {
		r.Route("/v1", func(r chi.Router) {
			r.Route("/camera", func(r chi.Router) {
				r.Post("/", h.handleCamera)
				r.Post("/settle", h.handleCameraSettle)
				r.Post("/idle", h.handleCameraIdle)
			})

			r.Put("/catalog", h.handleReplaceCatalog)

			r.Route("/selection", func(r chi.Router) {
				r.Put("/", h.handleSetSelection)
				r.Delete("/", h.handleClearSelection)
			})

			r.Get("/render", h.handleRender)
			r.Post("/markers/{id}/select", h.handleSelectMarker)
			r.Get("/debug/counters", h.handleCounters)
		})
	})

	return r
}

func (h *Handler) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				path = pattern
			}
		}
		h.metrics.ObserveHTTPRequest(r.Method, path, ww.Status(), time.Since(start))

		// Camera events arrive at frame rate; keep them out of the info log.
		ev := h.log.Info()
		if r.URL.Path == "/api/v1/camera" {
			ev = h.log.Debug()
		}
		ev.
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Int64("duration_ms", time.Since(start).Milliseconds()).
			Msg("http_request")
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, code, msg string, details map[string]any) {
	resp := map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": msg,
		},
	}
	if details != nil {
		resp["error"].(map[string]any)["details"] = details
	}
	h.writeJSON(w, status, resp)
}

func decodeJSONStrict(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return errors.New("unexpected extra data after JSON body")
		}
		return err
	}
	return nil
}

func (h *Handler) handleHealthz(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handler) handleReadyZ(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if h.pool != nil {
		if err := h.pool.Ping(ctx); err != nil {
			h.writeError(w, http.StatusServiceUnavailable, "db_unavailable", "database not ready", map[string]any{"error": err.Error()})
			return
		}
	}

	if !h.engine.Ready() {
		h.writeError(w, http.StatusServiceUnavailable, "catalog_unavailable", "no catalog applied yet", nil)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"ready": true})
}
