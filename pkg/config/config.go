// Package config defines the application configuration and its YAML file
// provider. All sections have working defaults; an empty file is a valid
// configuration.
package config

import (
	"fmt"
	"time"
)

// Duration wraps time.Duration so YAML values like "30s" or "5m" parse
// directly.
type Duration time.Duration

// UnmarshalYAML implements yaml.v2 unmarshaling for duration strings.
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var raw string
	if err := unmarshal(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the complete application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Logging    LoggingConfig    `yaml:"logging"`
	Cache      CacheConfig      `yaml:"cache"`
	Footprints FootprintsConfig `yaml:"footprints"`
	Weather    WeatherConfig    `yaml:"weather"`
	Scheduler  SchedulerConfig  `yaml:"scheduler"`
}

// ServerConfig controls the HTTP/WebSocket boundary.
type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

// LoggingConfig controls log verbosity and optional file output.
type LoggingConfig struct {
	Debug bool   `yaml:"debug"`
	File  string `yaml:"file"`
}

// CacheConfig tunes the tiered footprint cache. Backend selects the durable
// slow-tier store: "sqlite" (default), "redis", or "memory".
type CacheConfig struct {
	FastCapacity         int         `yaml:"fast_capacity"`
	SlowCapacity         int         `yaml:"slow_capacity"`
	DefaultTTL           Duration    `yaml:"default_ttl"`
	CompressionThreshold int         `yaml:"compression_threshold_bytes"`
	CleanupInterval      Duration    `yaml:"cleanup_interval"`
	Backend              string      `yaml:"backend"`
	SQLitePath           string      `yaml:"sqlite_path"`
	Redis                RedisConfig `yaml:"redis"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// FootprintsConfig configures the building-footprint provider.
type FootprintsConfig struct {
	Endpoint  string   `yaml:"endpoint"` // empty selects the public Overpass API
	Timeout   Duration `yaml:"timeout"`
	FetchZoom int      `yaml:"fetch_zoom"`
	TileTTL   Duration `yaml:"tile_ttl"`
}

// WeatherConfig configures optional cloud-cover attenuation.
type WeatherConfig struct {
	Enabled  bool     `yaml:"enabled"`
	Endpoint string   `yaml:"endpoint"`
	Timeout  Duration `yaml:"timeout"`
}

// SchedulerConfig tunes request gating.
type SchedulerConfig struct {
	MoveDelay              Duration `yaml:"move_delay"`
	ZoomDelay              Duration `yaml:"zoom_delay"`
	DateDelay              Duration `yaml:"date_delay"`
	MinMovement            float64  `yaml:"min_movement"`
	MinZoomChange          float64  `yaml:"min_zoom_change"`
	MinDateChange          Duration `yaml:"min_date_change"`
	MaxCalculationInterval Duration `yaml:"max_calculation_interval"`
	PendingRetryDelay      Duration `yaml:"pending_retry_delay"`
}

// Default returns a configuration with every field at its default.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddr: ":8080",
		},
		Cache: CacheConfig{
			FastCapacity:         100,
			SlowCapacity:         500,
			DefaultTTL:           Duration(30 * time.Minute),
			CompressionThreshold: 8 * 1024,
			CleanupInterval:      Duration(5 * time.Minute),
			Backend:              "sqlite",
			SQLitePath:           "shademap-cache.db",
		},
		Footprints: FootprintsConfig{
			Timeout:   Duration(25 * time.Second),
			FetchZoom: 15,
			TileTTL:   Duration(30 * time.Minute),
		},
		Weather: WeatherConfig{
			Timeout: Duration(10 * time.Second),
		},
		Scheduler: SchedulerConfig{
			MoveDelay:              Duration(300 * time.Millisecond),
			ZoomDelay:              Duration(400 * time.Millisecond),
			DateDelay:              Duration(150 * time.Millisecond),
			MinMovement:            0.0005,
			MinZoomChange:          0.25,
			MinDateChange:          Duration(time.Minute),
			MaxCalculationInterval: Duration(5 * time.Minute),
			PendingRetryDelay:      Duration(100 * time.Millisecond),
		},
	}
}

// Validate rejects configurations the application cannot run with.
func (c *Config) Validate() error {
	switch c.Cache.Backend {
	case "sqlite", "redis", "memory":
	default:
		return fmt.Errorf("unknown cache backend %q (want sqlite, redis, or memory)", c.Cache.Backend)
	}
	if c.Cache.Backend == "sqlite" && c.Cache.SQLitePath == "" {
		return fmt.Errorf("cache.sqlite_path required for the sqlite backend")
	}
	if c.Cache.Backend == "redis" && c.Cache.Redis.Addr == "" {
		return fmt.Errorf("cache.redis.addr required for the redis backend")
	}
	if c.Footprints.FetchZoom < 10 || c.Footprints.FetchZoom > 18 {
		return fmt.Errorf("footprints.fetch_zoom %d out of range [10, 18]", c.Footprints.FetchZoom)
	}
	if c.Server.ListenAddr == "" {
		return fmt.Errorf("server.listen_addr must not be empty")
	}
	return nil
}
