package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/joho/godotenv"

	"github.com/shademap/shademap/internal/app"
	"github.com/shademap/shademap/internal/log"
	"github.com/shademap/shademap/pkg/config"
)

const version = "1.0-" + runtime.GOOS + "/" + runtime.GOARCH

func main() {
	cfgFile := flag.String("config", "", "Path to the YAML configuration file (empty runs with defaults)")
	debug := flag.Bool("debug", false, "Turn on debugging output")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("shademap %s\n", version)
		os.Exit(0)
	}

	// A .env file can carry deployment overrides; its absence is fine.
	godotenv.Load()

	cfg, err := loadConfig(*cfgFile)
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := log.Init(*debug || cfg.Logging.Debug, cfg.Logging.File); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	application := app.New(cfg, log.GetSugaredLogger())
	if err := application.Run(context.Background()); err != nil {
		log.Errorf("Application error: %v", err)
		os.Exit(1)
	}
}

func loadConfig(cfgFile string) (*config.Config, error) {
	if cfgFile == "" {
		if fromEnv := os.Getenv("SHADEMAP_CONFIG"); fromEnv != "" {
			cfgFile = fromEnv
		} else {
			return config.Load("")
		}
	}

	filename, err := filepath.Abs(cfgFile)
	if err != nil {
		return nil, err
	}
	return config.Load(filename)
}
