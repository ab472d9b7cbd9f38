// Package solar computes the apparent position of the sun for a time and
// place. Position is pure and deterministic; it always returns a value and
// never errors, so callers only need to test Altitude for daylight.
package solar

import (
	"math"
	"time"

	"github.com/soniakeys/meeus/v3/julian"
)

// Position is the sun's apparent location in the sky.
//
// Altitude is degrees above the horizon; values at or below zero mean the
// sun is set and no shadow is cast. Azimuth uses the compass convention:
// 0 degrees = true north, increasing clockwise (east = 90), normalized to
// [0, 360). This is the only azimuth convention used anywhere in this
// module.
type Position struct {
	Altitude float64 `json:"altitude"`
	Azimuth  float64 `json:"azimuth"`
}

func degToRad(deg float64) float64 { return deg * math.Pi / 180.0 }
func radToDeg(rad float64) float64 { return rad * 180.0 / math.Pi }
func fixAngle(a float64) float64   { return a - 360.0*math.Floor(a/360.0) }

// declinationAndEqTime evaluates the NOAA solar equations at Julian
// centuries T: declination in radians and the equation of time in minutes.
func declinationAndEqTime(T float64) (declRad, eqTimeMin float64) {
	L0 := fixAngle(280.46646 + T*(36000.76983+T*0.0003032))
	M := fixAngle(357.52911 + T*(35999.05029-T*0.0001537))
	e := 0.016708634 - T*(0.000042037+T*0.0000001267)
	C := math.Sin(degToRad(M))*(1.914602-T*(0.004817+T*0.000014)) +
		math.Sin(degToRad(2*M))*(0.019993-T*0.000101) +
		math.Sin(degToRad(3*M))*0.000289
	sunLong := L0 + C
	omega := 125.04 - 1934.136*T
	lambda := sunLong - 0.00569 - 0.00478*math.Sin(degToRad(omega))
	eps0 := 23 + (26+(21.448-T*(46.815+T*(0.00059-T*0.001813)))/60)/60
	declRad = math.Asin(math.Sin(degToRad(eps0)) * math.Sin(degToRad(lambda)))

	y := math.Tan(degToRad(eps0)/2) * math.Tan(degToRad(eps0)/2)
	eqTimeMin = radToDeg(y*math.Sin(degToRad(2*L0))-
		2*e*math.Sin(degToRad(M))+
		4*e*y*math.Sin(degToRad(M))*math.Cos(degToRad(2*L0))-
		0.5*y*y*math.Sin(degToRad(4*L0))-
		1.25*e*e*math.Sin(degToRad(2*M))) * 4
	return declRad, eqTimeMin
}

// PositionAt returns the sun position for the given instant and WGS84
// coordinates, using NOAA solar equations (declination, equation of time,
// hour angle) over the meeus Julian day.
func PositionAt(t time.Time, lat, lon float64) Position {
	jd := julian.TimeToJD(t.UTC())
	T := (jd - 2451545.0) / 36525.0
	declRad, eqTimeMin := declinationAndEqTime(T)

	utc := t.UTC()
	utcMin := float64(utc.Hour()*60+utc.Minute()) + float64(utc.Second())/60.0
	// Wrap true solar time into one day so the hour angle stays within
	// [-180, 180] for any longitude and UTC hour; its sign carries the
	// east/west disambiguation below.
	tst := math.Mod(utcMin+4*lon+eqTimeMin, 1440)
	if tst < 0 {
		tst += 1440
	}
	ha := tst/4 - 180
	haRad := degToRad(ha)

	latRad := degToRad(lat)
	cosZen := math.Sin(latRad)*math.Sin(declRad) + math.Cos(latRad)*math.Cos(declRad)*math.Cos(haRad)
	if cosZen > 1 {
		cosZen = 1
	} else if cosZen < -1 {
		cosZen = -1
	}
	zenRad := math.Acos(cosZen)
	// Standard atmospheric refraction correction at the horizon.
	altitude := 90 - radToDeg(zenRad) + 0.5667

	var azimuth float64
	azDen := math.Cos(latRad) * math.Sin(zenRad)
	if math.Abs(azDen) > 1e-12 {
		azCos := (math.Sin(declRad) - math.Sin(latRad)*cosZen) / azDen
		if azCos > 1 {
			azCos = 1
		} else if azCos < -1 {
			azCos = -1
		}
		azimuth = radToDeg(math.Acos(azCos))
		if ha > 0 {
			azimuth = 360 - azimuth
		}
	}
	azimuth = fixAngle(azimuth)

	return Position{Altitude: altitude, Azimuth: azimuth}
}
