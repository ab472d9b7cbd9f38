package main

import (
	"flag"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/shademap/shademap/pkg/solar"
)

func main() {
	var (
		lat     = flag.Float64("lat", 0, "Latitude in decimal degrees (south negative)")
		lon     = flag.Float64("lon", 0, "Longitude in decimal degrees (west negative)")
		timeStr = flag.String("time", "", "UTC time to calculate for (RFC3339 format, e.g., 2024-01-15T12:00:00Z)")
	)
	flag.Parse()

	var t time.Time
	if *timeStr == "" {
		t = time.Now().UTC()
	} else {
		var err error
		t, err = time.Parse(time.RFC3339, *timeStr)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error parsing time: %v\n", err)
			os.Exit(1)
		}
	}

	pos := solar.PositionAt(t, *lat, *lon)

	fmt.Printf("Sun position for %s at (%.4f, %.4f)\n", t.Format(time.RFC3339), *lat, *lon)
	fmt.Printf("  Altitude: %.2f°\n", pos.Altitude)
	fmt.Printf("  Azimuth:  %.2f° (0° = north, clockwise)\n", pos.Azimuth)
	if pos.Altitude > 0 {
		length := 10.0 / math.Tan(pos.Altitude*math.Pi/180)
		fmt.Printf("  Shadow of a 10 m building: %.1f m toward %.2f°\n",
			length, math.Mod(pos.Azimuth+180, 360))
	} else {
		fmt.Println("  Sun is below the horizon; no shadows")
	}

	if sunrise, sunset, ok := solar.SunriseSunset(t, *lat, *lon); ok {
		fmt.Printf("  Sunrise:  %s UTC\n", sunrise.Format("15:04"))
		fmt.Printf("  Sunset:   %s UTC\n", sunset.Format("15:04"))
	} else {
		fmt.Println("  Polar day or night; sun does not cross the horizon")
	}
}
