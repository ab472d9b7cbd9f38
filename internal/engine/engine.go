// Package engine orchestrates one shadow computation end to end: footprints
// come from the tiered cache or the provider, the sun position is computed
// for the viewport center, footprints are filtered by zoom tier and
// projected into shadows, and the finished result is published to the
// viewport boundary.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shademap/shademap/internal/cache"
	"github.com/shademap/shademap/internal/footprint"
	"github.com/shademap/shademap/internal/scheduler"
	"github.com/shademap/shademap/internal/shadow"
	"github.com/shademap/shademap/internal/weather"
	"github.com/shademap/shademap/pkg/geo"
	"github.com/shademap/shademap/pkg/solar"
)

// Result is one completed computation, handed to the result callback and
// kept as the latest snapshot. Results are superseded whole, never merged.
type Result struct {
	ComputationID  string             `json:"computationId"`
	Bounds         geo.BoundingBox    `json:"bounds"`
	Zoom           float64            `json:"zoom"`
	Date           time.Time          `json:"date"`
	Sun            solar.Position     `json:"sun"`
	Shadows        []shadow.Shadow    `json:"shadows"`
	BuildingCount  int                `json:"buildingCount"`
	FilterStats    shadow.FilterStats `json:"filterStats"`
	SunlightFactor float64            `json:"sunlightFactor"`
	Opacity        float64            `json:"opacity"`
	Color          string             `json:"color"`
	Duration       time.Duration      `json:"-"`
}

// MarshalJSON emits the computation duration in milliseconds, matching the
// durationMs name; a raw time.Duration would serialize as nanoseconds.
func (r Result) MarshalJSON() ([]byte, error) {
	type plain Result
	return json.Marshal(struct {
		plain
		DurationMs int64 `json:"durationMs"`
	}{plain(r), r.Duration.Milliseconds()})
}

// ResultFunc receives each completed computation.
type ResultFunc func(Result)

// StatusFunc receives human-readable progress and error notices. These are
// informational only; they carry no data the Result does not.
type StatusFunc func(msg string)

// Options configures the orchestrator.
type Options struct {
	// FetchZoom is the tile level used for footprint fetching and caching
	// (default 15). Coarser levels mean fewer, larger provider queries.
	FetchZoom int
	// TileTTL bounds how long fetched footprint tiles stay cached
	// (default 30 minutes).
	TileTTL time.Duration
	// Tiers overrides the default quality-tier table.
	Tiers []shadow.Tier
}

// Orchestrator wires cache, providers, and geometry into the compute
// function driven by the scheduler.
type Orchestrator struct {
	footprints footprint.Provider
	weather    weather.Provider // nil disables attenuation
	tiles      *cache.Cache[[]footprint.Footprint]
	opts       Options
	logger     *zap.SugaredLogger
	onResult   ResultFunc
	onStatus   StatusFunc

	lastMu sync.RWMutex
	last   *Result
}

// New creates an Orchestrator. The weather provider may be nil; onStatus
// may be nil.
func New(
	footprints footprint.Provider,
	weatherProvider weather.Provider,
	tiles *cache.Cache[[]footprint.Footprint],
	opts Options,
	onResult ResultFunc,
	onStatus StatusFunc,
	logger *zap.SugaredLogger,
) *Orchestrator {
	if opts.FetchZoom <= 0 {
		opts.FetchZoom = 15
	}
	if opts.TileTTL <= 0 {
		opts.TileTTL = 30 * time.Minute
	}
	if onStatus == nil {
		onStatus = func(string) {}
	}
	return &Orchestrator{
		footprints: footprints,
		weather:    weatherProvider,
		tiles:      tiles,
		opts:       opts,
		logger:     logger,
		onResult:   onResult,
		onStatus:   onStatus,
	}
}

// Compute runs one computation for the given context. It satisfies
// scheduler.ComputeFunc. Provider failures degrade to partial or empty
// data; only unusable input or cancellation surface as an error, and every
// path publishes exactly one result.
func (o *Orchestrator) Compute(ctx context.Context, calc scheduler.CalcContext) error {
	start := time.Now()
	id := uuid.NewString()

	if !calc.Bounds.Valid() {
		o.onStatus("shadow computation skipped: invalid viewport")
		o.publish(o.emptyResult(id, calc, start))
		return fmt.Errorf("invalid bounds %s", calc.Bounds)
	}

	fps := o.fetchFootprints(ctx, calc.Bounds)
	if err := ctx.Err(); err != nil {
		o.publish(o.emptyResult(id, calc, start))
		return err
	}

	lat, lon := calc.Bounds.Center()
	sun := solar.PositionAt(calc.Date, lat, lon)

	conditions := weather.Clear
	if o.weather != nil {
		var err error
		conditions, err = o.weather.CurrentWeather(ctx, lat, lon, calc.Date)
		if err != nil {
			// Treat as clear sky; weather must never block shadows.
			o.logger.Debugf("weather lookup failed, assuming clear sky: %v", err)
			conditions = weather.Clear
		}
	}

	filtered, stats := shadow.FilterByQuality(fps, calc.Zoom, o.opts.Tiers)

	shadows := make([]shadow.Shadow, 0, len(filtered))
	if sun.Altitude > 0 {
		for _, fp := range filtered {
			if s, ok := shadow.Project(fp, sun); ok {
				shadows = append(shadows, *s)
			}
		}
	}

	tier := shadow.TierForZoom(o.tierTable(), calc.Zoom)
	result := Result{
		ComputationID:  id,
		Bounds:         calc.Bounds,
		Zoom:           calc.Zoom,
		Date:           calc.Date,
		Sun:            sun,
		Shadows:        shadows,
		BuildingCount:  len(fps),
		FilterStats:    stats,
		SunlightFactor: conditions.SunlightFactor,
		Opacity:        tier.Opacity * conditions.SunlightFactor,
		Color:          tier.Color,
		Duration:       time.Since(start),
	}
	o.publish(result)

	if sun.Altitude <= 0 {
		o.onStatus("sun below horizon, no shadows")
	} else {
		o.onStatus(fmt.Sprintf("computed %d shadows from %d buildings in %s",
			len(shadows), len(fps), result.Duration.Round(time.Millisecond)))
	}
	o.logger.Infow("shadow computation complete",
		"id", id,
		"buildings", len(fps),
		"kept", stats.Kept,
		"shadows", len(shadows),
		"sunAltitude", sun.Altitude,
		"duration", result.Duration,
	)
	return nil
}

// LastResult returns the most recently published result, or nil before the
// first computation completes.
func (o *Orchestrator) LastResult() *Result {
	o.lastMu.RLock()
	defer o.lastMu.RUnlock()
	return o.last
}

// fetchFootprints assembles footprints for the bounds from cached tiles,
// querying the provider only for missing ones. A failed tile query logs a
// warning and contributes zero footprints; panning shares tiles across
// overlapping viewports.
func (o *Orchestrator) fetchFootprints(ctx context.Context, bounds geo.BoundingBox) []footprint.Footprint {
	tiles := geo.CoveringTiles(bounds, o.opts.FetchZoom)

	seen := make(map[string]struct{})
	var all []footprint.Footprint
	for _, tile := range tiles {
		key := "tile:" + tile.String()
		fps, ok := o.tiles.Get(key)
		if !ok {
			var err error
			fps, err = o.footprints.QueryFootprints(ctx, tile.Bounds())
			if err != nil {
				o.logger.Warnf("footprint query failed for %s, treating as empty: %v", tile, err)
				o.onStatus("building data temporarily unavailable for part of the view")
				continue
			}
			if err := o.tiles.Set(key, fps, o.opts.TileTTL); err != nil {
				o.logger.Warnf("caching footprints for %s: %v", tile, err)
			}
		}
		for _, fp := range fps {
			if _, dup := seen[fp.ID]; dup {
				continue
			}
			seen[fp.ID] = struct{}{}
			all = append(all, fp)
		}
	}
	return all
}

func (o *Orchestrator) tierTable() []shadow.Tier {
	if len(o.opts.Tiers) > 0 {
		return o.opts.Tiers
	}
	return shadow.DefaultTiers
}

func (o *Orchestrator) emptyResult(id string, calc scheduler.CalcContext, start time.Time) Result {
	return Result{
		ComputationID:  id,
		Bounds:         calc.Bounds,
		Zoom:           calc.Zoom,
		Date:           calc.Date,
		Shadows:        []shadow.Shadow{},
		SunlightFactor: 1,
		Duration:       time.Since(start),
	}
}

func (o *Orchestrator) publish(r Result) {
	o.lastMu.Lock()
	o.last = &r
	o.lastMu.Unlock()
	o.onResult(r)
}
