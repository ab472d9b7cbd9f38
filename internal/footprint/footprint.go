// Package footprint defines the building-footprint model and the provider
// interface for fetching footprints, plus the height and importance
// heuristics used for level-of-detail decisions.
package footprint

import (
	"context"
	"math"
	"strconv"
	"strings"

	"github.com/paulmach/orb"

	"github.com/shademap/shademap/pkg/geo"
)

// Footprint is a building ground plan plus metadata. Geometry is either an
// orb.Polygon or an orb.MultiPolygon; consumers must handle both.
//
// Footprints come from a Provider and are treated as read-only there; the
// engine works on enriched copies (derived height, computed area and
// importance) and never mutates the provider's originals.
type Footprint struct {
	ID       string
	Geometry orb.Geometry
	Height   float64 // meters; 0 means unknown, derive with EstimateHeight
	Levels   int
	Type     string
	Name     string
}

// Provider answers footprint queries for a bounding box. Implementations may
// be live-remote (Overpass), cached, or fixtures in tests. Failures are
// recoverable: the caller degrades to zero footprints.
type Provider interface {
	QueryFootprints(ctx context.Context, bounds geo.BoundingBox) ([]Footprint, error)
}

const (
	// MinHeight and MaxHeight clamp derived building heights to a sane range.
	MinHeight = 3.0
	MaxHeight = 300.0

	metersPerLevel = 3.5
)

// typeHeights maps OSM building types to a default height in meters when
// neither an explicit height nor a level count is tagged. The numbers are
// tunable defaults, not survey data.
var typeHeights = map[string]float64{
	"house":       6,
	"detached":    6,
	"residential": 8,
	"terrace":     8,
	"retail":      8,
	"commercial":  15,
	"industrial":  10,
	"warehouse":   12,
	"apartments":  20,
	"office":      30,
	"hotel":       25,
	"church":      18,
	"cathedral":   30,
	"tower":       80,
	"skyscraper":  150,
	"garage":      3,
	"garages":     3,
	"shed":        3,
	"hut":         3,
}

// typeWeights bias the importance score so that tall landmark types survive
// level-of-detail filtering long before sheds and garages.
var typeWeights = map[string]float64{
	"skyscraper": 8,
	"tower":      5,
	"cathedral":  3,
	"office":     2,
	"apartments": 2,
	"hotel":      2,
	"church":     1.8,
	"commercial": 1.5,
	"industrial": 1.2,
	"warehouse":  1.2,
	"retail":     1,
	"garage":     0.2,
	"garages":    0.2,
	"shed":       0.2,
	"hut":        0.2,
}

const namedBoost = 1.5

// EstimateHeight derives a plausible height in meters for the footprint:
// the tagged height if present, otherwise levels x 3.5 m, otherwise a
// building-type default, otherwise an area-based guess. The result is always
// clamped to [MinHeight, MaxHeight].
func (f Footprint) EstimateHeight() float64 {
	h := f.Height
	if h <= 0 && f.Levels > 0 {
		h = float64(f.Levels) * metersPerLevel
	}
	if h <= 0 {
		if th, ok := typeHeights[f.Type]; ok {
			h = th
		}
	}
	if h <= 0 {
		// Larger footprints tend to be taller; a rough sublinear guess.
		h = math.Sqrt(f.AreaM2()) / 4
	}
	return clamp(h, MinHeight, MaxHeight)
}

// AreaM2 returns the footprint's area in square meters: the shoelace formula
// over each outer ring, evaluated in a local tangent plane at the ring's
// first vertex. MultiPolygon areas are summed.
func (f Footprint) AreaM2() float64 {
	switch g := f.Geometry.(type) {
	case orb.Polygon:
		return ringArea(outerRing(g))
	case orb.MultiPolygon:
		var total float64
		for _, p := range g {
			total += ringArea(outerRing(p))
		}
		return total
	default:
		return 0
	}
}

// Importance scores the footprint for level-of-detail ranking: larger,
// taller, landmark-typed, and named buildings score higher.
func (f Footprint) Importance() float64 {
	weight := 1.0
	if w, ok := typeWeights[f.Type]; ok {
		weight = w
	}
	score := math.Sqrt(f.AreaM2()) * f.EstimateHeight() * 0.1 * weight
	if f.Name != "" {
		score *= namedBoost
	}
	return score
}

// Centroid returns the arithmetic mean of the outer-ring vertices, which is
// accurate enough for sun-position and offset-conversion purposes.
func (f Footprint) Centroid() (lat, lon float64) {
	var ring orb.Ring
	switch g := f.Geometry.(type) {
	case orb.Polygon:
		ring = outerRing(g)
	case orb.MultiPolygon:
		if len(g) > 0 {
			ring = outerRing(g[0])
		}
	}
	if len(ring) == 0 {
		return 0, 0
	}
	var sumLat, sumLon float64
	for _, pt := range ring {
		sumLon += pt[0]
		sumLat += pt[1]
	}
	n := float64(len(ring))
	return sumLat / n, sumLon / n
}

func outerRing(p orb.Polygon) orb.Ring {
	if len(p) == 0 {
		return nil
	}
	return p[0]
}

func ringArea(ring orb.Ring) float64 {
	if len(ring) < 3 {
		return 0
	}
	refLat := ring[0][1]
	refLon := ring[0][0]
	perLon := geo.MetersPerDegreeLon(refLat)

	var sum float64
	for i := 0; i < len(ring); i++ {
		j := (i + 1) % len(ring)
		xi := (ring[i][0] - refLon) * perLon
		yi := (ring[i][1] - refLat) * geo.MetersPerDegreeLat
		xj := (ring[j][0] - refLon) * perLon
		yj := (ring[j][1] - refLat) * geo.MetersPerDegreeLat
		sum += xi*yj - xj*yi
	}
	return math.Abs(sum) / 2
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// parseHeightTag parses OSM height tags like "12", "12.5", "12 m", "12m".
// Returns 0 when the tag cannot be parsed.
func parseHeightTag(tag string) float64 {
	s := strings.TrimSpace(tag)
	s = strings.TrimSuffix(s, "m")
	s = strings.TrimSpace(s)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v <= 0 {
		return 0
	}
	return v
}
