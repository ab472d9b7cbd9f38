package shadow

import (
	"fmt"
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shademap/shademap/internal/footprint"
	"github.com/shademap/shademap/pkg/geo"
	"github.com/shademap/shademap/pkg/solar"
)

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

func TestProjectNoShadowAtOrBelowHorizon(t *testing.T) {
	fp := footprint.Footprint{ID: "b1", Geometry: squareAt(0, 0, 20), Height: 10}
	for _, alt := range []float64{0, -0.001, -30} {
		s, ok := Project(fp, solar.Position{Altitude: alt, Azimuth: 120})
		assert.False(t, ok, "altitude %v casts no shadow", alt)
		assert.Nil(t, s)
	}
}

func TestProjectLengthAt45Degrees(t *testing.T) {
	// tan(45) = 1, so a 10 m building casts a 10 m shadow.
	fp := footprint.Footprint{ID: "b1", Geometry: squareAt(0, 0, 20), Height: 10}
	s, ok := Project(fp, solar.Position{Altitude: 45, Azimuth: 180})
	require.True(t, ok)
	assert.InDelta(t, 10.0, s.Length, 1e-9)
	assert.Equal(t, "b1", s.BuildingID)
	assert.Equal(t, 45.0, s.SunAltitude)
}

func TestProjectDirectionOppositeSun(t *testing.T) {
	fp := footprint.Footprint{ID: "b1", Geometry: squareAt(0, 0, 20), Height: 10}

	// Sun due south (azimuth 180): shadow points due north, so the geometry
	// shifts toward positive latitude and longitude stays put.
	s, ok := Project(fp, solar.Position{Altitude: 45, Azimuth: 180})
	require.True(t, ok)
	orig := fp.Geometry.(orb.Polygon)[0]
	moved := s.Geometry.(orb.Polygon)[0]
	require.Len(t, moved, len(orig))
	for i := range orig {
		assert.Greater(t, moved[i][1], orig[i][1])
		assert.InDelta(t, orig[i][0], moved[i][0], 1e-12)
	}

	// Sun due east (azimuth 90): shadow points due west.
	s, ok = Project(fp, solar.Position{Altitude: 45, Azimuth: 90})
	require.True(t, ok)
	moved = s.Geometry.(orb.Polygon)[0]
	for i := range orig {
		assert.Less(t, moved[i][0], orig[i][0])
		assert.InDelta(t, orig[i][1], moved[i][1], 1e-9)
	}
}

func TestProjectOffsetMagnitude(t *testing.T) {
	fp := footprint.Footprint{ID: "b1", Geometry: squareAt(0, 0, 20), Height: 30}
	alt := 30.0
	s, ok := Project(fp, solar.Position{Altitude: alt, Azimuth: 225})
	require.True(t, ok)

	wantLength := 30 / math.Tan(alt*math.Pi/180)
	assert.InDelta(t, wantLength, s.Length, 1e-9)

	// The per-vertex displacement, converted back to meters, matches the
	// shadow length.
	orig := fp.Geometry.(orb.Polygon)[0][0]
	moved := s.Geometry.(orb.Polygon)[0][0]
	dxM := (moved[0] - orig[0]) * geo.MetersPerDegreeLon(0)
	dyM := (moved[1] - orig[1]) * geo.MetersPerDegreeLat
	assert.InDelta(t, wantLength, math.Hypot(dxM, dyM), 0.01)
}

func TestProjectMultiPolygon(t *testing.T) {
	fp := footprint.Footprint{
		ID: "b2",
		Geometry: orb.MultiPolygon{
			squareAt(0, 0, 20),
			squareAt(0.001, 0.001, 10),
		},
		Height: 10,
	}
	s, ok := Project(fp, solar.Position{Altitude: 45, Azimuth: 0})
	require.True(t, ok)
	mp, isMulti := s.Geometry.(orb.MultiPolygon)
	require.True(t, isMulti)
	assert.Len(t, mp, 2)
}

func TestTierForZoom(t *testing.T) {
	assert.Equal(t, 50, TierForZoom(DefaultTiers, 3).MaxCount)
	assert.Equal(t, 400, TierForZoom(DefaultTiers, 15.5).MaxCount)
	assert.Equal(t, 1500, TierForZoom(DefaultTiers, 19).MaxCount)
	assert.Equal(t, DefaultTiers[0], TierForZoom(nil, 15.5), "empty table falls back to the coarsest default")
}

func TestFilterByQualityFloorsAndCap(t *testing.T) {
	var fps []footprint.Footprint
	// 30 large office towers, 10 tiny sheds, 5 mid-size low buildings.
	for i := 0; i < 30; i++ {
		fps = append(fps, footprint.Footprint{
			ID: fmt.Sprintf("tower-%d", i), Geometry: squareAt(0, float64(i)*0.001, 40),
			Type: "office", Height: 50 + float64(i),
		})
	}
	for i := 0; i < 10; i++ {
		fps = append(fps, footprint.Footprint{
			ID: fmt.Sprintf("shed-%d", i), Geometry: squareAt(0, float64(i)*0.001, 4),
			Type: "shed",
		})
	}
	for i := 0; i < 5; i++ {
		fps = append(fps, footprint.Footprint{
			ID: fmt.Sprintf("low-%d", i), Geometry: squareAt(0.01, float64(i)*0.001, 40),
			Height: 4,
		})
	}

	tiers := []Tier{{MinZoom: 0, MinArea: 150, MinHeight: 10, MaxCount: 20, AllowSmallBuildings: false}}
	kept, stats := FilterByQuality(fps, 14, tiers)

	assert.Len(t, kept, 20, "cap honored")
	assert.Equal(t, 20, stats.Kept)
	assert.Equal(t, 10, stats.RemovedForSize)
	assert.Equal(t, 5, stats.RemovedForHeight)
	assert.Equal(t, 10, stats.RemovedForCap)
	assert.Greater(t, stats.MeanImportance, 0.0)

	for _, fp := range kept {
		assert.GreaterOrEqual(t, fp.AreaM2(), 150.0)
		assert.GreaterOrEqual(t, fp.EstimateHeight(), 10.0)
	}
}

func TestFilterByQualityOrdersByImportance(t *testing.T) {
	fps := []footprint.Footprint{
		{ID: "small", Geometry: squareAt(0, 0, 15), Height: 10},
		{ID: "big", Geometry: squareAt(0, 0.01, 50), Height: 100, Type: "tower"},
		{ID: "mid", Geometry: squareAt(0, 0.02, 30), Height: 30},
	}
	kept, _ := FilterByQuality(fps, 18, nil)
	require.Len(t, kept, 3)
	assert.Equal(t, "big", kept[0].ID)
	assert.Equal(t, "mid", kept[1].ID)
	assert.Equal(t, "small", kept[2].ID)
}

func TestFilterByQualitySmallBuildingFloor(t *testing.T) {
	fps := []footprint.Footprint{
		{ID: "tiny", Geometry: squareAt(0, 0, 8), Height: 30}, // 64 m^2
	}
	strict := []Tier{{MinZoom: 0, MinArea: 0, MinHeight: 0, MaxCount: 10, AllowSmallBuildings: false}}
	lenient := []Tier{{MinZoom: 0, MinArea: 0, MinHeight: 0, MaxCount: 10, AllowSmallBuildings: true}}

	kept, stats := FilterByQuality(fps, 14, strict)
	assert.Empty(t, kept)
	assert.Equal(t, 1, stats.RemovedForSize)

	kept, _ = FilterByQuality(fps, 14, lenient)
	assert.Len(t, kept, 1)
}
