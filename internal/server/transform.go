package server

import (
	"time"

	"github.com/paulmach/orb/geojson"

	"github.com/shademap/shademap/internal/engine"
)

// resultToFeatureCollection renders a computation as GeoJSON: one feature
// per shadow, with the computation-wide values repeated in the collection's
// extra members so a client can style the layer from a single response.
func resultToFeatureCollection(r *engine.Result) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, s := range r.Shadows {
		f := geojson.NewFeature(s.Geometry)
		f.Properties = geojson.Properties{
			"buildingId":   s.BuildingID,
			"shadowLength": s.Length,
		}
		fc.Append(f)
	}
	fc.ExtraMembers = geojson.Properties{
		"computationId":  r.ComputationID,
		"date":           r.Date.UTC().Format(time.RFC3339),
		"zoom":           r.Zoom,
		"sunAltitude":    r.Sun.Altitude,
		"sunAzimuth":     r.Sun.Azimuth,
		"buildingCount":  r.BuildingCount,
		"shadowCount":    len(r.Shadows),
		"sunlightFactor": r.SunlightFactor,
		"opacity":        r.Opacity,
		"color":          r.Color,
		"durationMs":     r.Duration.Milliseconds(),
	}
	return fc
}
