package astro

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solarwindow/pvpoll/internal/ephemeris"
	"github.com/solarwindow/pvpoll/internal/logger"
)

func zurichCalculator(t *testing.T) *ephemeris.Calculator {
	t.Helper()
	tz, err := time.LoadLocation("Europe/Zurich")
	require.NoError(t, err)
	loc, err := ephemeris.NewLocation(47.3769, 8.5417)
	require.NoError(t, err)
	quiet := logger.NewSlogLogger(io.Discard, logger.LogLevelError, time.UTC)
	return ephemeris.NewCalculator(ephemeris.NewAnalyticProvider(), loc, tz, ephemeris.WithLogger(quiet))
}

func TestComputeSolstice(t *testing.T) {
	calc := zurichCalculator(t)
	day := time.Date(2024, 6, 21, 0, 0, 0, 0, calc.TimeZone())

	r := Compute(context.Background(), calc, nil, day)

	require.NotNil(t, r.SolarNoon)
	require.NoError(t, r.TwilightError)
	assert.InDelta(t, 66.06, r.MaxSun, 0.5)
	assert.True(t, r.CivilDawn.Before(r.SolarNoon.Time))
	assert.True(t, r.SolarNoon.Time.Before(r.CivilDusk))
	assert.True(t, r.Moonrise.IsZero(), "moon events need met.no")
	assert.NoError(t, r.MoonError)
}

func TestPrint(t *testing.T) {
	calc := zurichCalculator(t)
	day := time.Date(2024, 6, 21, 0, 0, 0, 0, calc.TimeZone())
	r := Compute(context.Background(), calc, nil, day)
	r.Moonrise = day.Add(22*time.Hour + 10*time.Minute)

	var out bytes.Buffer
	Print(&out, r)

	text := out.String()
	assert.Contains(t, text, "Astronomy for 2024-06-21 (Europe/Zurich)")
	assert.Contains(t, text, "solar noon")
	assert.Contains(t, text, "civil dawn")
	assert.Contains(t, text, "moon phase")
	assert.Contains(t, text, "moonrise        22:10:00")
	assert.Contains(t, text, "moonset         none")
}

func TestPrintPolarDay(t *testing.T) {
	var out bytes.Buffer
	Print(&out, Report{
		Date:          time.Date(2024, 6, 21, 0, 0, 0, 0, time.UTC),
		TwilightError: ephemeris.ErrNoCrossing,
	})
	assert.Contains(t, out.String(), "civil twilight  none")
	assert.Contains(t, out.String(), "solar noon      unavailable")
}
