// Package phase partitions a calendar day into polling phases. A
// TwilightWindow is reconciled from two independent time sources, civil
// twilight from the ephemeris and sunrise/sunset from an external provider,
// and Classify maps an instant onto one of five phases.
package phase

import (
	"time"

	"github.com/solarwindow/pvpoll/internal/errors"
	"github.com/solarwindow/pvpoll/internal/logger"
)

// Phase is a named sub-interval of the day
type Phase int

const (
	Before Phase = iota
	DawnRamp
	Core
	DuskRamp
	After
)

func (p Phase) String() string {
	switch p {
	case Before:
		return "before-window"
	case DawnRamp:
		return "dawn-ramp"
	case Core:
		return "core"
	case DuskRamp:
		return "dusk-ramp"
	case After:
		return "after-window"
	default:
		return "unknown"
	}
}

// MarshalText renders the phase name in JSON and YAML
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText parses a phase name written by MarshalText
func (p *Phase) UnmarshalText(text []byte) error {
	for candidate := Before; candidate <= After; candidate++ {
		if candidate.String() == string(text) {
			*p = candidate
			return nil
		}
	}
	return errors.Newf("unknown phase %q", string(text)).
		Component("phase").
		Category(errors.CategoryParsing).
		Build()
}

// Polling reports whether the phase polls on its phase interval
func (p Phase) Polling() bool {
	return p == DawnRamp || p == Core || p == DuskRamp
}

// Source records where a window boundary came from
type Source string

const (
	SourceProvider Source = "provider" // answered by its own source
	SourceDerived  Source = "derived"  // approximated from the other source
	SourceFixed    Source = "fixed"    // fixed fallback time of day
)

// Sources records the origin of each boundary of a TwilightWindow
type Sources struct {
	CivilDawn Source `json:"civil_dawn"`
	Sunrise   Source `json:"sunrise"`
	Sunset    Source `json:"sunset"`
	CivilDusk Source `json:"civil_dusk"`
}

// TwilightWindow holds the four boundaries of a day in local time. A zero
// time means unknown while the window is being reconciled; a window returned
// by Model.ComputeWindow has all four set and ordered.
type TwilightWindow struct {
	Date      time.Time `json:"date"` // local midnight
	CivilDawn time.Time `json:"civil_dawn"`
	Sunrise   time.Time `json:"sunrise"`
	Sunset    time.Time `json:"sunset"`
	CivilDusk time.Time `json:"civil_dusk"`
	Degraded  bool      `json:"degraded"`
	Sources   Sources   `json:"sources"`
}

// Complete reports whether all four boundaries are known
func (w TwilightWindow) Complete() bool {
	return !w.CivilDawn.IsZero() && !w.Sunrise.IsZero() && !w.Sunset.IsZero() && !w.CivilDusk.IsZero()
}

// Ordered reports whether CivilDawn ≤ Sunrise ≤ Sunset ≤ CivilDusk
func (w TwilightWindow) Ordered() bool {
	return !w.Sunrise.Before(w.CivilDawn) && !w.Sunset.Before(w.Sunrise) && !w.CivilDusk.Before(w.Sunset)
}

// Duration returns the length of a polling phase, zero for Before and After
// and for inverted boundaries.
func (w TwilightWindow) Duration(p Phase) time.Duration {
	var d time.Duration
	switch p {
	case DawnRamp:
		d = w.Sunrise.Sub(w.CivilDawn)
	case Core:
		d = w.Sunset.Sub(w.Sunrise)
	case DuskRamp:
		d = w.CivilDusk.Sub(w.Sunset)
	}
	return max(d, 0)
}

// Classify places now within window. Every instant maps to exactly one
// phase: before dawn is Before, [dawn, sunrise) DawnRamp, [sunrise, sunset]
// Core, (sunset, dusk] DuskRamp and anything later After.
func Classify(now time.Time, w TwilightWindow) Phase {
	switch {
	case now.Before(w.CivilDawn):
		return Before
	case now.Before(w.Sunrise):
		return DawnRamp
	case !now.After(w.Sunset):
		return Core
	case !now.After(w.CivilDusk):
		return DuskRamp
	default:
		return After
	}
}

// GetLogger returns the phase module logger
func GetLogger() logger.Logger {
	return logger.Global().Module("phase")
}
