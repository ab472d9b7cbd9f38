// Package geo provides geographic primitives shared across the engine:
// bounding boxes, degree/meter conversion, slippy-map tiles, and the
// quantized fingerprints used for change detection and cache addressing.
package geo

import (
	"fmt"
	"math"
	"time"
)

// MetersPerDegreeLat is the approximate north-south span of one degree of
// latitude. Longitude spans shrink with cos(latitude).
const MetersPerDegreeLat = 111320.0

// BoundingBox is a WGS84 viewport rectangle. A valid box has North > South
// and East > West; callers with a degenerate box (e.g. a single point) must
// pad it with PadDegenerate before use.
type BoundingBox struct {
	North float64 `json:"north"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
	West  float64 `json:"west"`
}

// Valid reports whether the box is non-degenerate with finite coordinates.
func (b BoundingBox) Valid() bool {
	for _, v := range []float64{b.North, b.South, b.East, b.West} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return b.North > b.South && b.East > b.West
}

// PadDegenerate returns a box guaranteed to be non-degenerate, expanding any
// collapsed dimension by eps degrees in both directions.
func (b BoundingBox) PadDegenerate(eps float64) BoundingBox {
	out := b
	if out.North <= out.South {
		mid := (out.North + out.South) / 2
		out.North = mid + eps
		out.South = mid - eps
	}
	if out.East <= out.West {
		mid := (out.East + out.West) / 2
		out.East = mid + eps
		out.West = mid - eps
	}
	return out
}

// Center returns the box's centroid as (lat, lon).
func (b BoundingBox) Center() (float64, float64) {
	return (b.North + b.South) / 2, (b.East + b.West) / 2
}

// CenterDistance returns the Euclidean distance in degrees between the
// centers of two boxes. Used for viewport-movement thresholds, where a cheap
// planar approximation is sufficient.
func (b BoundingBox) CenterDistance(o BoundingBox) float64 {
	lat1, lon1 := b.Center()
	lat2, lon2 := o.Center()
	return math.Hypot(lat2-lat1, lon2-lon1)
}

// Contains reports whether the point lies inside or on the box.
func (b BoundingBox) Contains(lat, lon float64) bool {
	return lat >= b.South && lat <= b.North && lon >= b.West && lon <= b.East
}

func (b BoundingBox) String() string {
	return fmt.Sprintf("bbox(n=%.6f s=%.6f e=%.6f w=%.6f)", b.North, b.South, b.East, b.West)
}

// MetersPerDegreeLon returns the east-west span of one degree of longitude
// at the given latitude.
func MetersPerDegreeLon(lat float64) float64 {
	return MetersPerDegreeLat * math.Cos(lat*math.Pi/180)
}

// OffsetDegrees converts an (east, north) offset in meters into (dLon, dLat)
// degrees at the given latitude.
func OffsetDegrees(lat, eastMeters, northMeters float64) (dLon, dLat float64) {
	perLon := MetersPerDegreeLon(lat)
	if perLon < 1 {
		// Degenerate near the poles; fall back to the equatorial span so the
		// offset stays finite.
		perLon = MetersPerDegreeLat
	}
	return eastMeters / perLon, northMeters / MetersPerDegreeLat
}

// CalculationKey builds the deterministic quantized fingerprint for a
// (bounds, zoom, time) triple: coordinates rounded to 4 decimal places
// (~11 m), zoom to 0.1, and the timestamp floored to the minute. Two inputs
// with equal keys are treated as the same computation.
func CalculationKey(b BoundingBox, zoom float64, t time.Time) string {
	return fmt.Sprintf("%.4f,%.4f,%.4f,%.4f|%.1f|%d",
		b.North, b.South, b.East, b.West,
		zoom,
		t.UTC().Truncate(time.Minute).Unix())
}
