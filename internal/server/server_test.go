package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shademap/shademap/internal/cache"
	"github.com/shademap/shademap/internal/engine"
	"github.com/shademap/shademap/internal/footprint"
	"github.com/shademap/shademap/internal/scheduler"
	"github.com/shademap/shademap/pkg/config"
	"github.com/shademap/shademap/pkg/geo"
)

type fixtureProvider struct {
	footprints []footprint.Footprint
}

func (p *fixtureProvider) QueryFootprints(_ context.Context, _ geo.BoundingBox) ([]footprint.Footprint, error) {
	return p.footprints, nil
}

func squareFootprint(id string, lat, lon, size float64) footprint.Footprint {
	half := size / 2
	return footprint.Footprint{
		ID:     id,
		Height: 20,
		Geometry: orb.Polygon{orb.Ring{
			{lon - half, lat - half},
			{lon + half, lat - half},
			{lon + half, lat + half},
			{lon - half, lat + half},
			{lon - half, lat - half},
		}},
	}
}

type serverHarness struct {
	ctrl   *Controller
	router http.Handler
	orch   *engine.Orchestrator
	sched  *scheduler.Scheduler
}

func newServerHarness(t *testing.T) *serverHarness {
	t.Helper()

	logger := zap.NewNop().Sugar()
	tiles := cache.New[[]footprint.Footprint](cache.Options{}, logger)
	t.Cleanup(tiles.Close)

	provider := &fixtureProvider{footprints: []footprint.Footprint{
		squareFootprint("b1", 0, 0, 0.0002),
	}}

	orch := engine.New(provider, nil, tiles, engine.Options{}, func(engine.Result) {}, nil, logger)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	sched := scheduler.New(ctx, orch.Compute, scheduler.Options{}, scheduler.NewRealClock(), logger)
	t.Cleanup(sched.Destroy)

	var wg sync.WaitGroup
	hub := NewHub(logger)
	t.Cleanup(hub.Close)
	ctrl := NewController(ctx, &wg, config.ServerConfig{ListenAddr: ":0"}, sched, orch, tiles, hub, logger)

	return &serverHarness{
		ctrl:   ctrl,
		router: ctrl.setupRouter(),
		orch:   orch,
		sched:  sched,
	}
}

func (h *serverHarness) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

func TestPostViewportAccepted(t *testing.T) {
	h := newServerHarness(t)

	rec := h.do(t, http.MethodPost, "/api/viewport", ViewportRequest{
		North: 0.01, South: -0.01, East: 0.01, West: -0.01,
		Zoom: 16, Date: time.Date(2025, 3, 20, 12, 0, 0, 0, time.UTC),
		Trigger: "move",
	})

	require.Equal(t, http.StatusAccepted, rec.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "accepted", resp["status"])
	assert.NotEmpty(t, resp["key"])
}

func TestPostViewportRejectsBadBounds(t *testing.T) {
	h := newServerHarness(t)

	rec := h.do(t, http.MethodPost, "/api/viewport", ViewportRequest{
		North: -1, South: 1, East: 0.01, West: -0.01, Zoom: 16,
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPostViewportRejectsUnknownTrigger(t *testing.T) {
	h := newServerHarness(t)

	rec := h.do(t, http.MethodPost, "/api/viewport", ViewportRequest{
		North: 0.01, South: -0.01, East: 0.01, West: -0.01,
		Zoom: 16, Trigger: "teleport",
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetShadowsBeforeFirstComputation(t *testing.T) {
	h := newServerHarness(t)

	rec := h.do(t, http.MethodGet, "/api/shadows", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetShadowsReturnsGeoJSON(t *testing.T) {
	h := newServerHarness(t)

	calc := scheduler.NewCalcContext(
		geo.BoundingBox{North: 0.01, South: -0.01, East: 0.01, West: -0.01},
		16,
		time.Date(2025, 3, 20, 12, 0, 0, 0, time.UTC),
	)
	require.NoError(t, h.orch.Compute(context.Background(), calc))

	rec := h.do(t, http.MethodGet, "/api/shadows", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var fc struct {
		Type     string `json:"type"`
		Features []struct {
			Type       string                 `json:"type"`
			Properties map[string]interface{} `json:"properties"`
		} `json:"features"`
		ShadowCount float64 `json:"shadowCount"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fc))
	assert.Equal(t, "FeatureCollection", fc.Type)
	require.Len(t, fc.Features, 1)
	assert.Equal(t, "b1", fc.Features[0].Properties["buildingId"])
	assert.Equal(t, float64(1), fc.ShadowCount)
}

func TestGetSun(t *testing.T) {
	h := newServerHarness(t)

	rec := h.do(t, http.MethodGet, "/api/sun?lat=0&lon=0&time=2025-03-20T12:00:00Z", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Greater(t, resp["altitude"].(float64), 80.0)
	assert.Equal(t, true, resp["daylight"])
}

func TestGetSunRejectsBadParams(t *testing.T) {
	h := newServerHarness(t)

	assert.Equal(t, http.StatusBadRequest, h.do(t, http.MethodGet, "/api/sun?lat=abc&lon=0", nil).Code)
	assert.Equal(t, http.StatusBadRequest, h.do(t, http.MethodGet, "/api/sun?lat=0&lon=0&time=yesterday", nil).Code)
}

func TestGetState(t *testing.T) {
	h := newServerHarness(t)

	rec := h.do(t, http.MethodGet, "/api/state", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "idle", resp["state"])
	assert.Equal(t, false, resp["calculating"])
}

func TestGetCacheStats(t *testing.T) {
	h := newServerHarness(t)

	rec := h.do(t, http.MethodGet, "/api/cache/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "fastSize"))
}

func TestDeleteCacheClears(t *testing.T) {
	h := newServerHarness(t)

	calc := scheduler.NewCalcContext(
		geo.BoundingBox{North: 0.01, South: -0.01, East: 0.01, West: -0.01},
		16,
		time.Date(2025, 3, 20, 12, 0, 0, 0, time.UTC),
	)
	require.NoError(t, h.orch.Compute(context.Background(), calc))

	rec := h.do(t, http.MethodDelete, "/api/cache", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	stats := h.do(t, http.MethodGet, "/api/cache/stats", nil)
	var parsed map[string]interface{}
	require.NoError(t, json.Unmarshal(stats.Body.Bytes(), &parsed))
	assert.Equal(t, float64(0), parsed["fastSize"])
	assert.Equal(t, float64(0), parsed["slowSize"])
}

func TestHealth(t *testing.T) {
	h := newServerHarness(t)
	assert.Equal(t, http.StatusOK, h.do(t, http.MethodGet, "/health", nil).Code)
}
