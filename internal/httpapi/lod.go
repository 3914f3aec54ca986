package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"crave/map-core/internal/camera"
	"crave/map-core/internal/catalog"
	"crave/map-core/internal/geo"
	"crave/map-core/internal/lod"
)

const tapTimeout = 2 * time.Second

type cameraEvent struct {
	NE       geo.LatLng   `json:"ne"`
	SW       geo.LatLng   `json:"sw"`
	Zoom     *float64     `json:"zoom"`
	WidthPx  float64      `json:"width_px"`
	HeightPx float64      `json:"height_px"`
	Corners  []geo.LatLng `json:"corners,omitempty"`
}

type selectionRequest struct {
	ID string `json:"id"`
}

func (h *Handler) handleCamera(w http.ResponseWriter, r *http.Request) {
	var req cameraEvent
	if err := decodeJSONStrict(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid json body", map[string]any{"error": err.Error()})
		return
	}
	if req.Zoom == nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "zoom is required", nil)
		return
	}

	ev := camera.Event{
		Bounds:   geo.Bounds{NE: req.NE, SW: req.SW},
		Zoom:     *req.Zoom,
		WidthPx:  req.WidthPx,
		HeightPx: req.HeightPx,
		Corners:  req.Corners,
	}
	if !ev.Bounds.Valid() {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "bounds are malformed", map[string]any{
			"ne": req.NE,
			"sw": req.SW,
		})
		return
	}
	if len(req.Corners) != 0 && len(req.Corners) != 4 {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "corners must list exactly four points", nil)
		return
	}

	h.engine.PublishViewport(ev)
	h.writeJSON(w, http.StatusAccepted, map[string]any{"status": "accepted"})
}

func (h *Handler) handleCameraSettle(w http.ResponseWriter, r *http.Request) {
	h.engine.PublishInteractionEnded()
	h.writeJSON(w, http.StatusAccepted, map[string]any{"status": "accepted"})
}

func (h *Handler) handleCameraIdle(w http.ResponseWriter, r *http.Request) {
	h.engine.PublishIdle()
	h.writeJSON(w, http.StatusAccepted, map[string]any{"status": "accepted"})
}

func (h *Handler) handleReplaceCatalog(w http.ResponseWriter, r *http.Request) {
	var doc catalog.Document
	if err := decodeJSONStrict(r, &doc); err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid json body", map[string]any{"error": err.Error()})
		return
	}

	if !h.engine.ReplaceCatalog(doc.Markers) {
		h.writeError(w, http.StatusServiceUnavailable, "engine_busy", "command queue is full, retry", nil)
		return
	}
	h.writeJSON(w, http.StatusAccepted, map[string]any{
		"status":  "accepted",
		"markers": len(doc.Markers),
	})
}

func (h *Handler) handleSetSelection(w http.ResponseWriter, r *http.Request) {
	var req selectionRequest
	if err := decodeJSONStrict(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid json body", map[string]any{"error": err.Error()})
		return
	}
	id := strings.TrimSpace(req.ID)
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "id is required", nil)
		return
	}
	h.queueSelection(w, id)
}

func (h *Handler) handleClearSelection(w http.ResponseWriter, r *http.Request) {
	h.queueSelection(w, "")
}

func (h *Handler) queueSelection(w http.ResponseWriter, id string) {
	if !h.engine.SetSelection(id) {
		h.writeError(w, http.StatusServiceUnavailable, "engine_busy", "command queue is full, retry", nil)
		return
	}
	h.writeJSON(w, http.StatusAccepted, map[string]any{"status": "accepted"})
}

func (h *Handler) handleRender(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.engine.Snapshot())
}

func (h *Handler) handleCounters(w http.ResponseWriter, r *http.Request) {
	snap := h.engine.Snapshot()
	h.writeJSON(w, http.StatusOK, map[string]any{
		"counters":      snap.Counters,
		"mailbox_drops": h.engine.MailboxDrops(),
		"catalog_size":  snap.CatalogSize,
		"selected_id":   snap.SelectedID,
		"moving":        snap.Moving,
	})
}

// resolveSelectable finds id in the rendered snapshot so taps on either tier
// take the same path.
func resolveSelectable(snap lod.Snapshot, id string) (lod.Selectable, string, bool) {
	for _, m := range snap.Render.Full {
		if m.ID == id {
			return m, "full", true
		}
	}
	for _, d := range snap.Render.Dots {
		if d.ID == id || d.Key == id {
			return d, "dot", true
		}
	}
	return nil, "", false
}

func (h *Handler) handleSelectMarker(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	sel, tierName, ok := resolveSelectable(h.engine.Snapshot(), id)
	if !ok {
		h.writeError(w, http.StatusNotFound, "not_found", "marker is not rendered", map[string]any{"id": id})
		return
	}

	result := make(chan bool, 1)
	if !h.engine.Tap(sel, result) {
		h.writeError(w, http.StatusServiceUnavailable, "engine_busy", "command queue is full, retry", nil)
		return
	}

	ctx := r.Context()
	timer := time.NewTimer(tapTimeout)
	defer timer.Stop()

	select {
	case accepted := <-result:
		if !accepted {
			h.writeError(w, http.StatusNotFound, "not_found", "marker is no longer in the catalog", map[string]any{"id": id})
			return
		}
		h.writeJSON(w, http.StatusOK, map[string]any{"id": sel.SelectableID(), "tier": tierName})
	case <-timer.C:
		h.writeError(w, http.StatusGatewayTimeout, "engine_timeout", "tap was not processed in time", nil)
	case <-ctx.Done():
		h.writeError(w, http.StatusGatewayTimeout, "engine_timeout", "request cancelled", nil)
	}
}
