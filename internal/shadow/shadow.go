// Package shadow turns building footprints and a sun position into projected
// shadow polygons, and filters footprints by zoom-dependent quality tiers so
// the amount of work per computation stays bounded.
package shadow

import (
	"math"
	"time"

	"github.com/paulmach/orb"

	"github.com/shademap/shademap/internal/footprint"
	"github.com/shademap/shademap/pkg/geo"
	"github.com/shademap/shademap/pkg/solar"
)

// Shadow is one building's projected shadow: the footprint rings translated
// by a sun-derived offset, with provenance for the UI layer.
//
// The model is a rigid translation of the footprint. It ignores wall slope,
// terrain, and mutual occlusion; that simplification is what keeps
// per-building cost constant, so it stays.
type Shadow struct {
	Geometry    orb.Geometry `json:"geometry"`
	BuildingID  string       `json:"buildingId"`
	Length      float64      `json:"shadowLength"` // meters
	SunAltitude float64      `json:"sunAltitude"`
	SunAzimuth  float64      `json:"sunAzimuth"`
	ComputedAt  time.Time    `json:"computedAt"`
}

// Project computes the shadow cast by a footprint under the given sun
// position. Returns (nil, false) when the sun is at or below the horizon.
func Project(fp footprint.Footprint, sun solar.Position) (*Shadow, bool) {
	if sun.Altitude <= 0 {
		return nil, false
	}

	height := fp.EstimateHeight()
	length := height / math.Tan(sun.Altitude*math.Pi/180)

	// The shadow falls opposite the sun.
	direction := math.Mod(sun.Azimuth+180, 360)
	dirRad := direction * math.Pi / 180
	eastMeters := length * math.Sin(dirRad)
	northMeters := length * math.Cos(dirRad)

	lat, _ := fp.Centroid()
	dLon, dLat := geo.OffsetDegrees(lat, eastMeters, northMeters)

	var translated orb.Geometry
	switch g := fp.Geometry.(type) {
	case orb.Polygon:
		translated = translatePolygon(g, dLon, dLat)
	case orb.MultiPolygon:
		out := make(orb.MultiPolygon, len(g))
		for i, p := range g {
			out[i] = translatePolygon(p, dLon, dLat)
		}
		translated = out
	default:
		return nil, false
	}

	return &Shadow{
		Geometry:    translated,
		BuildingID:  fp.ID,
		Length:      length,
		SunAltitude: sun.Altitude,
		SunAzimuth:  sun.Azimuth,
		ComputedAt:  time.Now().UTC(),
	}, true
}

func translatePolygon(p orb.Polygon, dLon, dLat float64) orb.Polygon {
	out := make(orb.Polygon, len(p))
	for i, ring := range p {
		newRing := make(orb.Ring, len(ring))
		for j, pt := range ring {
			newRing[j] = orb.Point{pt[0] + dLon, pt[1] + dLat}
		}
		out[i] = newRing
	}
	return out
}
