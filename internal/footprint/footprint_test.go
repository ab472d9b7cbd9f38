package footprint

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shademap/shademap/pkg/geo"
)

// squareAt builds a closed square footprint of the given side length in
// meters, centered at (lat, lon).
func squareAt(lat, lon, sideMeters float64) orb.Polygon {
	dLon, dLat := geo.OffsetDegrees(lat, sideMeters/2, sideMeters/2)
	return orb.Polygon{orb.Ring{
		{lon - dLon, lat - dLat},
		{lon + dLon, lat - dLat},
		{lon + dLon, lat + dLat},
		{lon - dLon, lat + dLat},
		{lon - dLon, lat - dLat},
	}}
}

func TestAreaM2Square(t *testing.T) {
	fp := Footprint{Geometry: squareAt(0, 0, 20)}
	assert.InDelta(t, 400, fp.AreaM2(), 5)
}

func TestAreaM2MultiPolygonSums(t *testing.T) {
	single := Footprint{Geometry: squareAt(0, 0, 20)}
	double := Footprint{Geometry: orb.MultiPolygon{
		squareAt(0, 0, 20),
		squareAt(0.01, 0.01, 20),
	}}
	assert.InDelta(t, 2*single.AreaM2(), double.AreaM2(), 1)
}

func TestEstimateHeight(t *testing.T) {
	base := Footprint{Geometry: squareAt(0, 0, 20)}

	tagged := base
	tagged.Height = 42
	assert.Equal(t, 42.0, tagged.EstimateHeight())

	leveled := base
	leveled.Levels = 4
	assert.InDelta(t, 14.0, leveled.EstimateHeight(), 1e-9)

	typed := base
	typed.Type = "office"
	assert.Equal(t, 30.0, typed.EstimateHeight())

	// Unknown everything: area heuristic, clamped to the minimum.
	assert.GreaterOrEqual(t, base.EstimateHeight(), MinHeight)

	skyscraper := base
	skyscraper.Height = 9000
	assert.Equal(t, MaxHeight, skyscraper.EstimateHeight())

	cellar := base
	cellar.Height = 0.5
	assert.Equal(t, MinHeight, cellar.EstimateHeight())
}

func TestImportanceOrdering(t *testing.T) {
	shed := Footprint{Geometry: squareAt(0, 0, 5), Type: "shed"}
	house := Footprint{Geometry: squareAt(0, 0, 12), Type: "house"}
	tower := Footprint{Geometry: squareAt(0, 0, 30), Type: "tower"}

	assert.Greater(t, tower.Importance(), house.Importance())
	assert.Greater(t, house.Importance(), shed.Importance())

	named := tower
	named.Name = "City Tower"
	assert.InDelta(t, tower.Importance()*1.5, named.Importance(), 1e-9)
}

func TestCentroid(t *testing.T) {
	fp := Footprint{Geometry: squareAt(10, 20, 50)}
	lat, lon := fp.Centroid()
	assert.InDelta(t, 10, lat, 1e-3)
	assert.InDelta(t, 20, lon, 1e-3)
}

func TestOverpassProviderParsesWays(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Contains(t, r.Form.Get("data"), `way["building"]`)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"elements":[
			{"type":"way","id":111,"tags":{"building":"office","name":"HQ","height":"45 m"},
			 "geometry":[{"lat":1.0,"lon":1.0},{"lat":1.0,"lon":1.001},{"lat":1.001,"lon":1.001},{"lat":1.001,"lon":1.0}]},
			{"type":"way","id":222,"tags":{"building":"yes","building:levels":"3"},
			 "geometry":[{"lat":1.0,"lon":1.0},{"lat":1.0,"lon":1.0005},{"lat":1.0005,"lon":1.0005},{"lat":1.0005,"lon":1.0}]},
			{"type":"way","id":333,"geometry":[{"lat":1.0,"lon":1.0}]},
			{"type":"node","id":444}
		]}`))
	}))
	defer srv.Close()

	p := NewOverpassProvider(srv.URL, 5*time.Second, zap.NewNop().Sugar())
	fps, err := p.QueryFootprints(context.Background(), geo.BoundingBox{North: 1.01, South: 0.99, East: 1.01, West: 0.99})
	require.NoError(t, err)
	require.Len(t, fps, 2, "malformed way and non-way element are skipped")

	assert.Equal(t, "way/111", fps[0].ID)
	assert.Equal(t, "office", fps[0].Type)
	assert.Equal(t, "HQ", fps[0].Name)
	assert.Equal(t, 45.0, fps[0].Height)

	assert.Equal(t, 3, fps[1].Levels)
	assert.Empty(t, fps[1].Type, `"building=yes" carries no type information`)

	// Rings come back closed.
	poly, ok := fps[0].Geometry.(orb.Polygon)
	require.True(t, ok)
	assert.Equal(t, poly[0][0], poly[0][len(poly[0])-1])
}

func TestOverpassProviderServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "too busy", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := NewOverpassProvider(srv.URL, time.Second, zap.NewNop().Sugar())
	_, err := p.QueryFootprints(context.Background(), geo.BoundingBox{North: 1, South: 0, East: 1, West: 0})
	assert.Error(t, err)
}

func TestParseHeightTag(t *testing.T) {
	assert.Equal(t, 12.0, parseHeightTag("12"))
	assert.Equal(t, 12.5, parseHeightTag("12.5 m"))
	assert.Equal(t, 8.0, parseHeightTag("8m"))
	assert.Zero(t, parseHeightTag("tall"))
	assert.Zero(t, parseHeightTag(""))
}
