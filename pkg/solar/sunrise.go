package solar

import (
	"math"
	"time"

	"github.com/soniakeys/meeus/v3/julian"
)

// SunriseSunset returns the UTC sunrise and sunset instants for the calendar
// day containing t (in UTC) at the given coordinates. ok is false during
// polar day or polar night, when the sun never crosses the horizon.
func SunriseSunset(t time.Time, lat, lon float64) (sunrise, sunset time.Time, ok bool) {
	noon := time.Date(t.UTC().Year(), t.UTC().Month(), t.UTC().Day(), 12, 0, 0, 0, time.UTC)
	jd := julian.TimeToJD(noon)
	T := (jd - 2451545.0) / 36525.0
	declRad, eqTimeMin := declinationAndEqTime(T)

	// cos of the hour angle where the sun sits on the horizon. Out-of-range
	// values mean the horizon is never crossed at this latitude and date.
	cosH := -math.Tan(degToRad(lat)) * math.Tan(declRad)
	if cosH < -1 || cosH > 1 {
		return time.Time{}, time.Time{}, false
	}
	haMin := radToDeg(math.Acos(cosH)) * 4 // 4 minutes of time per degree

	solarNoonMin := 720.0 - 4.0*lon - eqTimeMin
	midnight := noon.Add(-12 * time.Hour)
	sunrise = midnight.Add(time.Duration((solarNoonMin - haMin) * float64(time.Minute)))
	sunset = midnight.Add(time.Duration((solarNoonMin + haMin) * float64(time.Minute)))
	return sunrise, sunset, true
}
