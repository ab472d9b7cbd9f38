package shadow

import (
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/shademap/shademap/internal/footprint"
)

// Tier is one level-of-detail policy, selected by zoom. Buildings below the
// area/height floors are dropped, and at most MaxCount survive, ranked by
// importance. Opacity, Color, and Resolution are rendering hints passed
// through to the UI layer.
type Tier struct {
	MinZoom             float64
	MinArea             float64 // m^2
	MinHeight           float64 // meters
	MaxCount            int
	Opacity             float64
	Color               string
	Resolution          float64
	AllowSmallBuildings bool
}

// smallAreaFloor drops tiny structures at tiers that disallow small
// buildings, independent of the tier's own MinArea.
const smallAreaFloor = 100.0

// DefaultTiers is ordered by ascending MinZoom; TierForZoom picks the
// highest tier whose MinZoom does not exceed the viewport zoom. The numbers
// are tunable defaults balancing density against per-frame cost.
var DefaultTiers = []Tier{
	{MinZoom: 0, MinArea: 2000, MinHeight: 20, MaxCount: 50, Opacity: 0.25, Color: "#1a1a2e", Resolution: 0.001, AllowSmallBuildings: false},
	{MinZoom: 12, MinArea: 1000, MinHeight: 15, MaxCount: 100, Opacity: 0.30, Color: "#1a1a2e", Resolution: 0.0005, AllowSmallBuildings: false},
	{MinZoom: 14, MinArea: 500, MinHeight: 10, MaxCount: 200, Opacity: 0.35, Color: "#16213e", Resolution: 0.0002, AllowSmallBuildings: false},
	{MinZoom: 15, MinArea: 200, MinHeight: 5, MaxCount: 400, Opacity: 0.40, Color: "#16213e", Resolution: 0.0001, AllowSmallBuildings: true},
	{MinZoom: 16, MinArea: 100, MinHeight: 3, MaxCount: 800, Opacity: 0.45, Color: "#0f3460", Resolution: 0.00005, AllowSmallBuildings: true},
	{MinZoom: 17, MinArea: 0, MinHeight: 0, MaxCount: 1500, Opacity: 0.50, Color: "#0f3460", Resolution: 0.00002, AllowSmallBuildings: true},
}

// TierForZoom selects the applicable tier from an ordered tier table. An
// empty table falls back to the coarsest default tier.
func TierForZoom(tiers []Tier, zoom float64) Tier {
	if len(tiers) == 0 {
		return DefaultTiers[0]
	}
	selected := tiers[0]
	for _, tier := range tiers {
		if tier.MinZoom <= zoom {
			selected = tier
		}
	}
	return selected
}

// FilterStats reports what the quality filter did with a footprint batch.
type FilterStats struct {
	Kept             int     `json:"kept"`
	RemovedForSize   int     `json:"removedForSize"`
	RemovedForHeight int     `json:"removedForHeight"`
	RemovedForCap    int     `json:"removedForCap"`
	MeanImportance   float64 `json:"meanImportance"`
	StdevImportance  float64 `json:"stdevImportance"`
}

type scored struct {
	fp         footprint.Footprint
	area       float64
	height     float64
	importance float64
}

// FilterByQuality ranks footprints by importance and applies the tier's
// floors and cap. The returned slice holds copies ordered by descending
// importance; the input is never reordered or mutated.
func FilterByQuality(fps []footprint.Footprint, zoom float64, tiers []Tier) ([]footprint.Footprint, FilterStats) {
	if len(tiers) == 0 {
		tiers = DefaultTiers
	}
	tier := TierForZoom(tiers, zoom)

	var stats FilterStats
	candidates := make([]scored, 0, len(fps))
	for _, fp := range fps {
		s := scored{
			fp:     fp,
			area:   fp.AreaM2(),
			height: fp.EstimateHeight(),
		}
		if s.area < tier.MinArea || (!tier.AllowSmallBuildings && s.area < smallAreaFloor) {
			stats.RemovedForSize++
			continue
		}
		if s.height < tier.MinHeight {
			stats.RemovedForHeight++
			continue
		}
		s.importance = fp.Importance()
		candidates = append(candidates, s)
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].importance > candidates[j].importance
	})
	if tier.MaxCount > 0 && len(candidates) > tier.MaxCount {
		stats.RemovedForCap = len(candidates) - tier.MaxCount
		candidates = candidates[:tier.MaxCount]
	}

	kept := make([]footprint.Footprint, len(candidates))
	importances := make([]float64, len(candidates))
	for i, s := range candidates {
		kept[i] = s.fp
		importances[i] = s.importance
	}
	stats.Kept = len(kept)
	if len(importances) > 0 {
		stats.MeanImportance = stat.Mean(importances, nil)
		if len(importances) > 1 {
			stats.StdevImportance = stat.StdDev(importances, nil)
		}
	}
	return kept, stats
}
