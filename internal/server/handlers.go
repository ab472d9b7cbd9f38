package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/shademap/shademap/internal/scheduler"
	"github.com/shademap/shademap/pkg/geo"
	"github.com/shademap/shademap/pkg/solar"
)

// Handlers contains all HTTP handlers for the server.
type Handlers struct {
	controller *Controller
}

// NewHandlers creates a new handlers instance.
func NewHandlers(ctrl *Controller) *Handlers {
	return &Handlers{controller: ctrl}
}

// ViewportRequest is the body of POST /api/viewport: the client's current
// view plus what changed to produce it.
type ViewportRequest struct {
	North   float64   `json:"north"`
	South   float64   `json:"south"`
	East    float64   `json:"east"`
	West    float64   `json:"west"`
	Zoom    float64   `json:"zoom"`
	Date    time.Time `json:"date"`
	Trigger string    `json:"trigger"`
}

func parseTrigger(s string) (scheduler.Trigger, error) {
	switch scheduler.Trigger(s) {
	case scheduler.TriggerMove, scheduler.TriggerZoom, scheduler.TriggerDate, scheduler.TriggerForce:
		return scheduler.Trigger(s), nil
	case "":
		return scheduler.TriggerMove, nil
	}
	return "", fmt.Errorf("unknown trigger %q", s)
}

// PostViewport accepts a viewport update and hands it to the scheduler. The
// response is always 202: debouncing means the computation, if any, happens
// later and arrives over the WebSocket.
func (h *Handlers) PostViewport(w http.ResponseWriter, req *http.Request) {
	var body ViewportRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	bounds := geo.BoundingBox{North: body.North, South: body.South, East: body.East, West: body.West}
	if !bounds.Valid() {
		writeError(w, http.StatusBadRequest, "invalid bounding box")
		return
	}

	trigger, err := parseTrigger(body.Trigger)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	date := body.Date
	if date.IsZero() {
		date = time.Now().UTC()
	}

	h.controller.scheduler.RequestCalculation(bounds, body.Zoom, date, trigger)

	calc := scheduler.NewCalcContext(bounds, body.Zoom, date)
	writeJSON(w, http.StatusAccepted, map[string]string{
		"status": "accepted",
		"key":    calc.Key,
	})
}

// GetShadows returns the latest completed computation as a GeoJSON
// FeatureCollection, or 404 before the first one completes.
func (h *Handlers) GetShadows(w http.ResponseWriter, req *http.Request) {
	result := h.controller.engine.LastResult()
	if result == nil {
		writeError(w, http.StatusNotFound, "no computation has completed yet")
		return
	}
	writeJSON(w, http.StatusOK, resultToFeatureCollection(result))
}

// GetSun computes the sun position for query parameters lat, lon, and an
// optional RFC 3339 time (default now).
func (h *Handlers) GetSun(w http.ResponseWriter, req *http.Request) {
	q := req.URL.Query()
	lat, err := strconv.ParseFloat(q.Get("lat"), 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "lat must be a number")
		return
	}
	lon, err := strconv.ParseFloat(q.Get("lon"), 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "lon must be a number")
		return
	}

	at := time.Now().UTC()
	if raw := q.Get("time"); raw != "" {
		at, err = time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "time must be RFC 3339")
			return
		}
	}

	pos := solar.PositionAt(at, lat, lon)
	resp := map[string]interface{}{
		"time":     at.UTC().Format(time.RFC3339),
		"altitude": pos.Altitude,
		"azimuth":  pos.Azimuth,
		"daylight": pos.Altitude > 0,
	}
	if sunrise, sunset, ok := solar.SunriseSunset(at, lat, lon); ok {
		resp["sunrise"] = sunrise.Format(time.RFC3339)
		resp["sunset"] = sunset.Format(time.RFC3339)
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetState reports what the scheduler is doing right now.
func (h *Handlers) GetState(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"state":       h.controller.scheduler.CurrentState(),
		"calculating": h.controller.scheduler.IsCalculating(),
		"subscribers": h.controller.hub.Subscribers(),
	})
}

// GetCacheStats reports tile cache occupancy and hit rates.
func (h *Handlers) GetCacheStats(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, h.controller.tiles.Stats())
}

// DeleteCache clears the tile cache and the scheduler's change-detection
// state, forcing the next viewport update to recompute from scratch.
func (h *Handlers) DeleteCache(w http.ResponseWriter, req *http.Request) {
	h.controller.tiles.Clear()
	h.controller.scheduler.Reset()
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

// GetHealth is a liveness probe.
func (h *Handlers) GetHealth(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
