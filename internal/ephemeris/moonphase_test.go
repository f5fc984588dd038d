package ephemeris

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMoonIlluminationKnownPhases(t *testing.T) {
	c := newTestCalculator(t, NewAnalyticProvider(), zurich, "UTC")

	newMoon := c.MoonPhase(time.Date(2024, 6, 6, 12, 38, 0, 0, time.UTC))
	assert.Less(t, newMoon.Illumination, 0.03)
	assert.Equal(t, PhaseNewMoon, newMoon.Name)

	firstQuarter := c.MoonPhase(time.Date(2024, 6, 14, 5, 18, 0, 0, time.UTC))
	assert.InDelta(t, 0.5, firstQuarter.Illumination, 0.05)
	assert.True(t, firstQuarter.Waxing)

	full := c.MoonPhase(time.Date(2024, 6, 22, 1, 8, 0, 0, time.UTC))
	assert.Greater(t, full.Illumination, 0.95)

	lastQuarter := c.MoonPhase(time.Date(2024, 6, 28, 21, 53, 0, 0, time.UTC))
	assert.InDelta(t, 0.5, lastQuarter.Illumination, 0.05)
	assert.False(t, lastQuarter.Waxing)
}

func TestPhaseName(t *testing.T) {
	tests := []struct {
		percent float64
		waxing  bool
		want    string
	}{
		{0, true, PhaseNewMoon},
		{2, false, PhaseNewMoon},
		{2.1, true, PhaseWaxingCrescent},
		{47.9, false, PhaseWaningCrescent},
		{48, true, PhaseFirstQuarter},
		{52, false, PhaseLastQuarter},
		{52.1, true, PhaseWaxingGibbous},
		{97.9, false, PhaseWaningGibbous},
		{98, true, PhaseFullMoon},
		{100, false, PhaseFullMoon},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, PhaseName(tt.percent, tt.waxing), "percent=%v waxing=%v", tt.percent, tt.waxing)
	}
}

func TestMoonPhasePercent(t *testing.T) {
	assert.InDelta(t, 42.0, MoonPhase{Illumination: 0.42}.Percent(), 1e-9)
}
