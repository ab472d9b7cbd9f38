package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/shademap/shademap/pkg/config"
)

func main() {
	cfgFile := flag.String("config", "config.yaml", "Path to YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration invalid: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Configuration OK: %s\n", *cfgFile)
	fmt.Printf("  Listen address:  %s\n", cfg.Server.ListenAddr)
	fmt.Printf("  Cache backend:   %s\n", cfg.Cache.Backend)
	fmt.Printf("  Cache tiers:     fast %d / slow %d, TTL %s\n",
		cfg.Cache.FastCapacity, cfg.Cache.SlowCapacity, cfg.Cache.DefaultTTL.Std())
	fmt.Printf("  Footprint zoom:  %d\n", cfg.Footprints.FetchZoom)
	fmt.Printf("  Weather enabled: %v\n", cfg.Weather.Enabled)
}
