package ephemeris

import (
	"math"
	"time"
)

// MoonPhase describes the illuminated fraction of the moon and its trend
type MoonPhase struct {
	Illumination float64 // 0..1
	Waxing       bool
	Name         string
}

// Percent returns the illuminated fraction as a percentage
func (p MoonPhase) Percent() float64 {
	return p.Illumination * 100
}

// Phase names
const (
	PhaseNewMoon        = "New Moon"
	PhaseWaxingCrescent = "Waxing Crescent"
	PhaseFirstQuarter   = "First Quarter"
	PhaseWaxingGibbous  = "Waxing Gibbous"
	PhaseFullMoon       = "Full Moon"
	PhaseWaningGibbous  = "Waning Gibbous"
	PhaseLastQuarter    = "Last Quarter"
	PhaseWaningCrescent = "Waning Crescent"
)

// MoonIllumination returns the illuminated fraction at t from the sun-moon
// elongation: (1 - cos ψ) / 2.
func MoonIllumination(t time.Time) float64 {
	return (1 - math.Cos(elongation(daysSinceJ2000(t)))) / 2
}

// MoonPhase classifies the moon at t. The trend compares with the
// illumination one day later.
func (c *Calculator) MoonPhase(t time.Time) MoonPhase {
	now := MoonIllumination(t)
	next := MoonIllumination(t.Add(24 * time.Hour))
	waxing := next > now
	return MoonPhase{
		Illumination: now,
		Waxing:       waxing,
		Name:         PhaseName(now*100, waxing),
	}
}

// PhaseName names a phase from the illuminated percentage and trend
func PhaseName(percent float64, waxing bool) string {
	switch {
	case percent <= 2:
		return PhaseNewMoon
	case percent >= 98:
		return PhaseFullMoon
	case percent < 48:
		if waxing {
			return PhaseWaxingCrescent
		}
		return PhaseWaningCrescent
	case percent <= 52:
		if waxing {
			return PhaseFirstQuarter
		}
		return PhaseLastQuarter
	default:
		if waxing {
			return PhaseWaxingGibbous
		}
		return PhaseWaningGibbous
	}
}
