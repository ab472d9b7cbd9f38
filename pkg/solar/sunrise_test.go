package solar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func minutesUTC(t time.Time) float64 {
	return float64(t.UTC().Hour()*60+t.UTC().Minute()) + float64(t.UTC().Second())/60
}

func TestSunriseSunsetEquatorEquinox(t *testing.T) {
	day := time.Date(2025, 3, 20, 0, 0, 0, 0, time.UTC)

	sunrise, sunset, ok := SunriseSunset(day, 0, 0)
	require.True(t, ok)

	assert.InDelta(t, 6*60, minutesUTC(sunrise), 30)
	assert.InDelta(t, 18*60, minutesUTC(sunset), 30)
	assert.True(t, sunrise.Before(sunset))
}

func TestSunriseSunsetLondonSummer(t *testing.T) {
	day := time.Date(2025, 6, 21, 0, 0, 0, 0, time.UTC)

	sunrise, sunset, ok := SunriseSunset(day, 51.5, -0.1)
	require.True(t, ok)

	// Roughly 16.5 hours of daylight at the solstice.
	daylight := sunset.Sub(sunrise)
	assert.InDelta(t, 16.5, daylight.Hours(), 1)
}

func TestSunriseSunsetPolar(t *testing.T) {
	summer := time.Date(2025, 6, 21, 0, 0, 0, 0, time.UTC)
	_, _, ok := SunriseSunset(summer, 70, 25)
	assert.False(t, ok, "polar day should report no horizon crossing")

	winter := time.Date(2025, 12, 21, 0, 0, 0, 0, time.UTC)
	_, _, ok = SunriseSunset(winter, 70, 25)
	assert.False(t, ok, "polar night should report no horizon crossing")
}

func TestSunriseMatchesPosition(t *testing.T) {
	day := time.Date(2025, 3, 20, 0, 0, 0, 0, time.UTC)

	sunrise, sunset, ok := SunriseSunset(day, 47.6, -122.3)
	require.True(t, ok)

	// The position calculation should agree: near-zero altitude at the
	// crossings, clearly up in between. Refraction keeps the crossing
	// altitudes within about a degree of the horizon.
	assert.InDelta(t, 0, PositionAt(sunrise, 47.6, -122.3).Altitude, 1.5)
	assert.InDelta(t, 0, PositionAt(sunset, 47.6, -122.3).Altitude, 1.5)

	mid := sunrise.Add(sunset.Sub(sunrise) / 2)
	assert.Greater(t, PositionAt(mid, 47.6, -122.3).Altitude, 30.0)
}

func TestDayLengthReasonableAllYear(t *testing.T) {
	for doy := 0; doy < 365; doy += 7 {
		day := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, doy)
		sunrise, sunset, ok := SunriseSunset(day, 45, 0)
		require.True(t, ok, "no polar conditions at 45N")

		daylight := sunset.Sub(sunrise).Hours()
		assert.GreaterOrEqual(t, daylight, 4.0, "day %d", doy)
		assert.LessOrEqual(t, daylight, 20.0, "day %d", doy)
	}
}
