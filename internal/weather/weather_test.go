package weather

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestOpenMeteoSunlightFactor(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "cloud_cover", r.URL.Query().Get("current"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"current":{"cloud_cover":80}}`))
	}))
	defer srv.Close()

	p := NewOpenMeteoProvider(srv.URL, time.Second, zap.NewNop().Sugar())
	cond, err := p.CurrentWeather(context.Background(), 47.6, -122.3, time.Now())
	require.NoError(t, err)
	require.NotNil(t, cond.CloudCover)
	assert.InDelta(t, 0.8, *cond.CloudCover, 1e-9)
	assert.InDelta(t, 0.4, cond.SunlightFactor, 1e-9) // 1 - 0.75*0.8
}

func TestOpenMeteoFailureReturnsClear(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p := NewOpenMeteoProvider(srv.URL, time.Second, zap.NewNop().Sugar())
	cond, err := p.CurrentWeather(context.Background(), 0, 0, time.Now())
	assert.Error(t, err)
	assert.Equal(t, Clear, cond, "failures fall back to clear sky")
	assert.Equal(t, 1.0, cond.SunlightFactor)
}
