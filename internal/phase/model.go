package phase

import (
	"context"
	"time"

	"github.com/solarwindow/pvpoll/internal/ephemeris"
	"github.com/solarwindow/pvpoll/internal/errors"
	"github.com/solarwindow/pvpoll/internal/logger"
)

const (
	// RampApproximation separates civil twilight from sunrise or sunset when
	// one of them has to be derived from the other.
	RampApproximation = 30 * time.Minute

	fixedDawn    = 6 * time.Hour
	fixedSunrise = 6*time.Hour + 30*time.Minute
	fixedSunset  = 19*time.Hour + 30*time.Minute
	fixedDusk    = 20 * time.Hour
)

// clockTime returns the wall-clock time of day offset on the date of midnight,
// which differs from midnight.Add on DST transition days.
func clockTime(midnight time.Time, offset time.Duration) time.Time {
	y, m, d := midnight.Date()
	return time.Date(y, m, d, int(offset/time.Hour), int(offset%time.Hour/time.Minute), 0, 0, midnight.Location())
}

// TwilightSource answers civil dawn and dusk for the calendar day of date
type TwilightSource interface {
	CivilTwilight(ctx context.Context, date time.Time) (dawn, dusk time.Time, err error)
}

// SunriseSource answers sunrise and sunset for the calendar day of date
type SunriseSource interface {
	SunriseSunset(ctx context.Context, date time.Time) (sunrise, sunset time.Time, err error)
}

// EphemerisTwilight adapts an ephemeris calculator to TwilightSource
type EphemerisTwilight struct {
	Calculator *ephemeris.Calculator
}

// CivilTwilight implements TwilightSource
func (e EphemerisTwilight) CivilTwilight(ctx context.Context, date time.Time) (dawn, dusk time.Time, err error) {
	if err := ctx.Err(); err != nil {
		return time.Time{}, time.Time{}, err
	}
	return e.Calculator.CivilTwilight(date)
}

// TwilightChain asks each source in order and returns the first answer.
// Nil entries are skipped.
type TwilightChain []TwilightSource

// CivilTwilight implements TwilightSource
func (c TwilightChain) CivilTwilight(ctx context.Context, date time.Time) (dawn, dusk time.Time, err error) {
	var errs []error
	for _, src := range c {
		if src == nil {
			continue
		}
		dawn, dusk, err := src.CivilTwilight(ctx, date)
		if err == nil {
			return dawn, dusk, nil
		}
		errs = append(errs, err)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return time.Time{}, time.Time{}, ctxErr
		}
	}
	if len(errs) == 0 {
		return time.Time{}, time.Time{}, errors.Newf("no twilight source configured").
			Component("phase").
			Category(errors.CategoryConfiguration).
			Build()
	}
	return time.Time{}, time.Time{}, errors.Join(errs...)
}

// Model reconciles twilight windows. Either source may be nil.
type Model struct {
	twilight TwilightSource
	sunrise  SunriseSource
	tz       *time.Location
	log      logger.Logger
}

// NewModel returns a Model whose calendar days follow tz
func NewModel(twilight TwilightSource, sunrise SunriseSource, tz *time.Location) *Model {
	if tz == nil {
		tz = time.Local
	}
	return &Model{
		twilight: twilight,
		sunrise:  sunrise,
		tz:       tz,
		log:      GetLogger(),
	}
}

// WithLogger replaces the module logger
func (m *Model) WithLogger(l logger.Logger) *Model {
	m.log = l
	return m
}

// TimeZone returns the location defining calendar days
func (m *Model) TimeZone() *time.Location {
	return m.tz
}

// ComputeWindow builds the window for the calendar day containing date.
//
// Civil dawn and dusk come from the twilight source, falling back to
// sunrise-30m and sunset+30m. Sunrise and sunset come from the sunrise
// source, falling back to dawn+30m and dusk-30m. Boundaries neither source
// could supply take the fixed 06:00/06:30/19:30/20:00 local times, and
// out-of-order boundaries are clamped forward. Both cases mark the window
// Degraded. The only error is cancellation of ctx.
func (m *Model) ComputeWindow(ctx context.Context, date time.Time) (TwilightWindow, error) {
	y, mo, d := date.In(m.tz).Date()
	midnight := time.Date(y, mo, d, 0, 0, 0, 0, m.tz)
	w := TwilightWindow{Date: midnight}
	log := m.log.With(logger.String("date", midnight.Format(time.DateOnly)))

	if m.twilight != nil {
		dawn, dusk, err := m.twilight.CivilTwilight(ctx, midnight)
		if err != nil {
			log.Warn("civil twilight unavailable", logger.Error(err))
		} else {
			w.CivilDawn, w.CivilDusk = dawn.In(m.tz), dusk.In(m.tz)
		}
	}
	if m.sunrise != nil {
		rise, set, err := m.sunrise.SunriseSunset(ctx, midnight)
		if err != nil {
			log.Warn("sunrise/sunset unavailable", logger.Error(err))
		} else {
			w.Sunrise, w.Sunset = rise.In(m.tz), set.In(m.tz)
		}
	}

	if err := ctx.Err(); err != nil {
		return TwilightWindow{}, errors.New(err).
			Component("phase").
			Context("date", midnight.Format(time.DateOnly)).
			Build()
	}

	reconcile(&w)

	if !w.Complete() {
		fillFixed(&w, midnight)
		log.Warn("using fixed fallback window boundaries",
			logger.Time("civil_dawn", w.CivilDawn),
			logger.Time("civil_dusk", w.CivilDusk))
	}

	if !w.Ordered() {
		log.Warn("repairing non-monotonic window",
			logger.Time("civil_dawn", w.CivilDawn),
			logger.Time("sunrise", w.Sunrise),
			logger.Time("sunset", w.Sunset),
			logger.Time("civil_dusk", w.CivilDusk))
		repair(&w)
	}

	log.Debug("window computed",
		logger.Time("civil_dawn", w.CivilDawn),
		logger.Time("sunrise", w.Sunrise),
		logger.Time("sunset", w.Sunset),
		logger.Time("civil_dusk", w.CivilDusk),
		logger.Bool("degraded", w.Degraded))
	return w, nil
}

// reconcile fills unknown boundaries from the other source and records the
// origin of every known boundary.
func reconcile(w *TwilightWindow) {
	mark := func(t time.Time, s *Source) {
		if !t.IsZero() {
			*s = SourceProvider
		}
	}
	mark(w.CivilDawn, &w.Sources.CivilDawn)
	mark(w.Sunrise, &w.Sources.Sunrise)
	mark(w.Sunset, &w.Sources.Sunset)
	mark(w.CivilDusk, &w.Sources.CivilDusk)

	if w.CivilDawn.IsZero() && !w.Sunrise.IsZero() {
		w.CivilDawn = w.Sunrise.Add(-RampApproximation)
		w.Sources.CivilDawn = SourceDerived
	}
	if w.CivilDusk.IsZero() && !w.Sunset.IsZero() {
		w.CivilDusk = w.Sunset.Add(RampApproximation)
		w.Sources.CivilDusk = SourceDerived
	}
	if w.Sunrise.IsZero() && !w.CivilDawn.IsZero() {
		w.Sunrise = w.CivilDawn.Add(RampApproximation)
		w.Sources.Sunrise = SourceDerived
	}
	if w.Sunset.IsZero() && !w.CivilDusk.IsZero() {
		w.Sunset = w.CivilDusk.Add(-RampApproximation)
		w.Sources.Sunset = SourceDerived
	}
}

func fillFixed(w *TwilightWindow, midnight time.Time) {
	fill := func(t *time.Time, s *Source, offset time.Duration) {
		if t.IsZero() {
			*t = clockTime(midnight, offset)
			*s = SourceFixed
		}
	}
	fill(&w.CivilDawn, &w.Sources.CivilDawn, fixedDawn)
	fill(&w.Sunrise, &w.Sources.Sunrise, fixedSunrise)
	fill(&w.Sunset, &w.Sources.Sunset, fixedSunset)
	fill(&w.CivilDusk, &w.Sources.CivilDusk, fixedDusk)
	w.Degraded = true
}

func repair(w *TwilightWindow) {
	if w.Sunrise.Before(w.CivilDawn) {
		w.Sunrise = w.CivilDawn
	}
	if w.Sunset.Before(w.Sunrise) {
		w.Sunset = w.Sunrise
	}
	if w.CivilDusk.Before(w.Sunset) {
		w.CivilDusk = w.Sunset
	}
	w.Degraded = true
}
