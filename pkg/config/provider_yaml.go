package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// Load reads the YAML configuration at filename, layered over the defaults.
// A missing filename (empty string) returns the defaults unchanged.
func Load(filename string) (*Config, error) {
	cfg := Default()
	if filename == "" {
		return cfg, nil
	}

	raw, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", filename, err)
	}

	// Zero values from a sparse file fall back to the defaults.
	defaults := Default()
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = defaults.Server.ListenAddr
	}
	if cfg.Cache.FastCapacity == 0 {
		cfg.Cache.FastCapacity = defaults.Cache.FastCapacity
	}
	if cfg.Cache.SlowCapacity == 0 {
		cfg.Cache.SlowCapacity = defaults.Cache.SlowCapacity
	}
	if cfg.Cache.DefaultTTL == 0 {
		cfg.Cache.DefaultTTL = defaults.Cache.DefaultTTL
	}
	if cfg.Cache.CompressionThreshold == 0 {
		cfg.Cache.CompressionThreshold = defaults.Cache.CompressionThreshold
	}
	if cfg.Cache.CleanupInterval == 0 {
		cfg.Cache.CleanupInterval = defaults.Cache.CleanupInterval
	}
	if cfg.Cache.Backend == "" {
		cfg.Cache.Backend = defaults.Cache.Backend
	}
	if cfg.Cache.SQLitePath == "" {
		cfg.Cache.SQLitePath = defaults.Cache.SQLitePath
	}
	if cfg.Footprints.Timeout == 0 {
		cfg.Footprints.Timeout = defaults.Footprints.Timeout
	}
	if cfg.Footprints.FetchZoom == 0 {
		cfg.Footprints.FetchZoom = defaults.Footprints.FetchZoom
	}
	if cfg.Footprints.TileTTL == 0 {
		cfg.Footprints.TileTTL = defaults.Footprints.TileTTL
	}
	if cfg.Weather.Timeout == 0 {
		cfg.Weather.Timeout = defaults.Weather.Timeout
	}
	if cfg.Scheduler.MoveDelay == 0 {
		cfg.Scheduler.MoveDelay = defaults.Scheduler.MoveDelay
	}
	if cfg.Scheduler.ZoomDelay == 0 {
		cfg.Scheduler.ZoomDelay = defaults.Scheduler.ZoomDelay
	}
	if cfg.Scheduler.DateDelay == 0 {
		cfg.Scheduler.DateDelay = defaults.Scheduler.DateDelay
	}
	if cfg.Scheduler.MinMovement == 0 {
		cfg.Scheduler.MinMovement = defaults.Scheduler.MinMovement
	}
	if cfg.Scheduler.MinZoomChange == 0 {
		cfg.Scheduler.MinZoomChange = defaults.Scheduler.MinZoomChange
	}
	if cfg.Scheduler.MinDateChange == 0 {
		cfg.Scheduler.MinDateChange = defaults.Scheduler.MinDateChange
	}
	if cfg.Scheduler.MaxCalculationInterval == 0 {
		cfg.Scheduler.MaxCalculationInterval = defaults.Scheduler.MaxCalculationInterval
	}
	if cfg.Scheduler.PendingRetryDelay == 0 {
		cfg.Scheduler.PendingRetryDelay = defaults.Scheduler.PendingRetryDelay
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
