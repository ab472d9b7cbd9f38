// Package app assembles the cache, providers, engine, scheduler, and HTTP
// server from configuration and runs them until shutdown.
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"go.uber.org/zap"

	"github.com/shademap/shademap/internal/cache"
	"github.com/shademap/shademap/internal/engine"
	"github.com/shademap/shademap/internal/footprint"
	"github.com/shademap/shademap/internal/log"
	"github.com/shademap/shademap/internal/scheduler"
	"github.com/shademap/shademap/internal/server"
	"github.com/shademap/shademap/internal/weather"
	"github.com/shademap/shademap/pkg/config"
)

// App represents the main application.
type App struct {
	cfg    *config.Config
	logger *zap.SugaredLogger
}

// New creates a new application instance.
func New(cfg *config.Config, logger *zap.SugaredLogger) *App {
	return &App{
		cfg:    cfg,
		logger: logger,
	}
}

// newStore builds the slow-tier persistence backend named by the
// configuration.
func newStore(cfg config.CacheConfig) (cache.Store, error) {
	switch cfg.Backend {
	case "sqlite":
		return cache.NewSQLiteStore(cfg.SQLitePath)
	case "redis":
		return cache.NewRedisStore(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	case "memory":
		return cache.NewMemoryStore(), nil
	}
	return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
}

// Run starts the application and blocks until shutdown.
func (a *App) Run(ctx context.Context) error {
	var wg sync.WaitGroup

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	store, err := newStore(a.cfg.Cache)
	if err != nil {
		return fmt.Errorf("initializing cache store: %w", err)
	}

	tiles := cache.New[[]footprint.Footprint](cache.Options{
		FastCapacity:         a.cfg.Cache.FastCapacity,
		SlowCapacity:         a.cfg.Cache.SlowCapacity,
		DefaultTTL:           a.cfg.Cache.DefaultTTL.Std(),
		CompressionThreshold: a.cfg.Cache.CompressionThreshold,
		CleanupInterval:      a.cfg.Cache.CleanupInterval.Std(),
		Store:                store,
	}, a.logger)

	footprints := footprint.NewOverpassProvider(
		a.cfg.Footprints.Endpoint,
		a.cfg.Footprints.Timeout.Std(),
		a.logger,
	)

	var weatherProvider weather.Provider
	if a.cfg.Weather.Enabled {
		weatherProvider = weather.NewOpenMeteoProvider(
			a.cfg.Weather.Endpoint,
			a.cfg.Weather.Timeout.Std(),
			a.logger,
		)
	}

	hub := server.NewHub(a.logger)

	orch := engine.New(
		footprints,
		weatherProvider,
		tiles,
		engine.Options{
			FetchZoom: a.cfg.Footprints.FetchZoom,
			TileTTL:   a.cfg.Footprints.TileTTL.Std(),
		},
		hub.BroadcastResult,
		hub.BroadcastStatus,
		a.logger,
	)

	sched := scheduler.New(ctx, orch.Compute, scheduler.Options{
		MoveDelay:              a.cfg.Scheduler.MoveDelay.Std(),
		ZoomDelay:              a.cfg.Scheduler.ZoomDelay.Std(),
		DateDelay:              a.cfg.Scheduler.DateDelay.Std(),
		MinMovement:            a.cfg.Scheduler.MinMovement,
		MinZoomChange:          a.cfg.Scheduler.MinZoomChange,
		MinDateChange:          a.cfg.Scheduler.MinDateChange.Std(),
		MaxCalculationInterval: a.cfg.Scheduler.MaxCalculationInterval.Std(),
		PendingRetryDelay:      a.cfg.Scheduler.PendingRetryDelay.Std(),
	}, scheduler.NewRealClock(), a.logger)

	ctrl := server.NewController(ctx, &wg, a.cfg.Server, sched, orch, tiles, hub, a.logger)
	if err := ctrl.StartServer(); err != nil {
		return fmt.Errorf("starting HTTP server: %w", err)
	}

	log.Info("Application started successfully")

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigs:
		log.Info("shutdown signal received, initiating graceful shutdown...")
	case <-ctx.Done():
		log.Info("context cancelled, shutting down...")
	}

	cancel()

	log.Info("waiting for all workers to terminate...")
	wg.Wait()

	sched.Destroy()
	tiles.Close()
	log.Info("shutdown complete")

	return nil
}
