package suncalc

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	zurichLatitude  = 47.3769
	zurichLongitude = 8.5417
)

func zurichCalc(t *testing.T) *SunCalc {
	t.Helper()
	tz, err := time.LoadLocation("Europe/Zurich")
	require.NoError(t, err)
	return NewSunCalc(zurichLatitude, zurichLongitude, tz)
}

func TestNewSunCalc(t *testing.T) {
	sc := NewSunCalc(60.1699, 24.9384, nil)
	require.NotNil(t, sc)
	assert.InDelta(t, 60.1699, sc.observer.Latitude, 0)
	assert.InDelta(t, 24.9384, sc.observer.Longitude, 0)
	assert.Equal(t, time.Local, sc.tz)
}

func TestGetSunEventTimesZurichSolstice(t *testing.T) {
	sc := zurichCalc(t)
	tz := sc.tz

	times, err := sc.GetSunEventTimes(time.Date(2024, 6, 21, 0, 0, 0, 0, tz))
	require.NoError(t, err)

	tolerance := 10 * time.Minute
	assert.WithinDuration(t, time.Date(2024, 6, 21, 4, 51, 0, 0, tz), times.CivilDawn, tolerance)
	assert.WithinDuration(t, time.Date(2024, 6, 21, 5, 31, 0, 0, tz), times.Sunrise, tolerance)
	assert.WithinDuration(t, time.Date(2024, 6, 21, 21, 26, 0, 0, tz), times.Sunset, tolerance)
	assert.WithinDuration(t, time.Date(2024, 6, 21, 22, 5, 0, 0, tz), times.CivilDusk, tolerance)

	assert.Equal(t, tz, times.Sunrise.Location())
	assert.True(t, times.CivilDawn.Before(times.Sunrise))
	assert.True(t, times.Sunrise.Before(times.Sunset))
	assert.True(t, times.Sunset.Before(times.CivilDusk))
}

func TestGetSunEventTimesCachesPerLocalDate(t *testing.T) {
	sc := zurichCalc(t)

	morning := time.Date(2024, 3, 10, 1, 0, 0, 0, sc.tz)
	evening := time.Date(2024, 3, 10, 23, 30, 0, 0, sc.tz)

	first, err := sc.GetSunEventTimes(morning)
	require.NoError(t, err)
	second, err := sc.GetSunEventTimes(evening)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, sc.cache, 1)

	next, err := sc.GetSunEventTimes(morning.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.NotEqual(t, first.Sunrise, next.Sunrise)
	assert.Len(t, sc.cache, 2)
}

func TestGetSunEventTimesUsesLocalDate(t *testing.T) {
	sc := zurichCalc(t)

	// 23:30 UTC on the 9th is already the 10th in Zurich
	utcLate := time.Date(2024, 3, 9, 23, 30, 0, 0, time.UTC)
	times, err := sc.GetSunEventTimes(utcLate)
	require.NoError(t, err)
	assert.Equal(t, 10, times.Sunrise.Day())
}

func TestSunriseSunsetAndCivilTwilight(t *testing.T) {
	sc := zurichCalc(t)
	ctx := context.Background()
	date := time.Date(2024, 9, 22, 0, 0, 0, 0, sc.tz)

	sunrise, sunset, err := sc.SunriseSunset(ctx, date)
	require.NoError(t, err)
	dawn, dusk, err := sc.CivilTwilight(ctx, date)
	require.NoError(t, err)

	assert.True(t, dawn.Before(sunrise))
	assert.True(t, sunset.Before(dusk))
	// near the equinox day and night are close to twelve hours each
	assert.InDelta(t, 12.0, sunset.Sub(sunrise).Hours(), 0.5)

	viaGetter, err := sc.GetSunriseTime(date)
	require.NoError(t, err)
	assert.True(t, viaGetter.Equal(sunrise))
	viaGetter, err = sc.GetSunsetTime(date)
	require.NoError(t, err)
	assert.True(t, viaGetter.Equal(sunset))
}

func TestSunriseSunsetHonoursCancelledContext(t *testing.T) {
	sc := zurichCalc(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := sc.SunriseSunset(ctx, time.Now())
	require.ErrorIs(t, err, context.Canceled)
	_, _, err = sc.CivilTwilight(ctx, time.Now())
	require.ErrorIs(t, err, context.Canceled)
}
