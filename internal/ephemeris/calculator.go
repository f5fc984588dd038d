package ephemeris

import (
	"fmt"
	"math"
	"time"

	"github.com/solarwindow/pvpoll/internal/errors"
	"github.com/solarwindow/pvpoll/internal/logger"
)

const (
	// CivilTwilightElevation is the solar elevation bounding civil twilight
	CivilTwilightElevation = -6.0

	// BisectionIterations is fixed; 30 halvings of a 12h bracket resolve to ~40µs
	BisectionIterations = 30

	noonSampleStep  = 5 * time.Minute
	noonSampleStart = 11 * time.Hour
	noonSampleEnd   = 15 * time.Hour

	moonSampleStep = time.Hour

	// MinMaxElevation floors the reported daily maximum elevation
	MinMaxElevation = 10.0
	// FallbackMaxElevation is reported when the ephemeris cannot answer
	FallbackMaxElevation = 45.0
)

// Metrics receives calculator observations. Implemented by the metrics package.
type Metrics interface {
	ObserveCrossingSearch(kind string, duration time.Duration, err error)
	RecordElevationFailure(body string)
}

// Calculator derives event instants for one observer. Calendar days are
// interpreted in tz.
type Calculator struct {
	provider Provider
	location Location
	tz       *time.Location
	log      logger.Logger
	metrics  Metrics
}

// Option configures a Calculator
type Option func(*Calculator)

// WithLogger overrides the module logger
func WithLogger(l logger.Logger) Option {
	return func(c *Calculator) { c.log = l }
}

// WithMetrics attaches a metrics recorder
func WithMetrics(m Metrics) Option {
	return func(c *Calculator) { c.metrics = m }
}

// NewCalculator returns a Calculator for loc whose calendar days follow tz
func NewCalculator(provider Provider, loc Location, tz *time.Location, opts ...Option) *Calculator {
	if tz == nil {
		tz = time.Local
	}
	c := &Calculator{
		provider: provider,
		location: loc,
		tz:       tz,
		log:      GetLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Location returns the observer location
func (c *Calculator) Location() Location {
	return c.location
}

// TimeZone returns the location used for calendar days
func (c *Calculator) TimeZone() *time.Location {
	return c.tz
}

// Elevation returns the elevation of body at t, or 0 when the ephemeris
// cannot answer. The failure is logged, not returned.
func (c *Calculator) Elevation(body Body, t time.Time) float64 {
	elevation, err := c.provider.Elevation(body, t, c.location)
	if err != nil {
		c.log.Warn("elevation unavailable, using 0",
			logger.String("body", body.String()),
			logger.Time("at", t),
			logger.Error(err))
		if c.metrics != nil {
			c.metrics.RecordElevationFailure(body.String())
		}
		return 0
	}
	return elevation
}

// Sample returns the elevation of body at t together with the instant
func (c *Calculator) Sample(body Body, t time.Time) (Sample, error) {
	elevation, err := c.provider.Elevation(body, t, c.location)
	if err != nil {
		return Sample{}, err
	}
	return Sample{Body: body, Elevation: elevation, Time: t}, nil
}

// FindCrossing bisects [start, end] for the instant the solar elevation
// passes target, upward when rising is true and downward otherwise. It runs
// exactly BisectionIterations halvings and returns the midpoint of the final
// bracket. The endpoints must straddle the target in the requested
// direction, otherwise ErrNoCrossing is returned.
func (c *Calculator) FindCrossing(target float64, start, end time.Time, rising bool) (t time.Time, err error) {
	began := time.Now()
	defer func() {
		if c.metrics != nil {
			kind := "falling"
			if rising {
				kind = "rising"
			}
			c.metrics.ObserveCrossingSearch(kind, time.Since(began), err)
		}
	}()

	if !start.Before(end) {
		return time.Time{}, errors.Newf("invalid search interval %s..%s", start, end).
			Component("ephemeris").
			Category(errors.CategoryValidation).
			Build()
	}

	// crossed reports whether elevation e lies on the post-crossing side
	crossed := func(e float64) bool {
		if rising {
			return e >= target
		}
		return e <= target
	}

	startElev, err := c.provider.Elevation(Sun, start, c.location)
	if err != nil {
		return time.Time{}, fmt.Errorf("crossing search start: %w", err)
	}
	endElev, err := c.provider.Elevation(Sun, end, c.location)
	if err != nil {
		return time.Time{}, fmt.Errorf("crossing search end: %w", err)
	}
	if crossed(startElev) || !crossed(endElev) {
		return time.Time{}, fmt.Errorf("%w: %.2f° at %s, %.2f° at %s, target %.2f°",
			ErrNoCrossing, startElev, start.Format(time.RFC3339), endElev, end.Format(time.RFC3339), target)
	}

	lo, hi := start, end
	for range BisectionIterations {
		mid := lo.Add(hi.Sub(lo) / 2)
		elev, err := c.provider.Elevation(Sun, mid, c.location)
		if err != nil {
			return time.Time{}, fmt.Errorf("crossing search: %w", err)
		}
		if crossed(elev) {
			hi = mid
		} else {
			lo = mid
		}
	}

	return lo.Add(hi.Sub(lo) / 2), nil
}

// dayStart returns local midnight of the calendar day containing date
func (c *Calculator) dayStart(date time.Time) time.Time {
	y, m, d := date.In(c.tz).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, c.tz)
}

// CivilTwilight returns the civil dawn and dusk of the calendar day
// containing date. Dawn is the rising -6° crossing between local midnight and
// local noon, dusk the falling crossing between local noon and 23:59:59.
func (c *Calculator) CivilTwilight(date time.Time) (dawn, dusk time.Time, err error) {
	midnight := c.dayStart(date)
	noon := midnight.Add(12 * time.Hour)
	lastSecond := midnight.Add(24*time.Hour - time.Second)

	dawn, err = c.FindCrossing(CivilTwilightElevation, midnight, noon, true)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("civil dawn: %w", err)
	}
	dusk, err = c.FindCrossing(CivilTwilightElevation, noon, lastSecond, false)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("civil dusk: %w", err)
	}

	c.log.Debug("civil twilight computed",
		logger.Time("civil_dawn", dawn),
		logger.Time("civil_dusk", dusk))
	return dawn, dusk, nil
}

// SolarNoon samples solar elevation every five minutes from 11:00 up to, but
// excluding, 15:00 local time and returns the highest sample.
func (c *Calculator) SolarNoon(date time.Time) (Sample, error) {
	midnight := c.dayStart(date)
	return c.maxSample(Sun, midnight.Add(noonSampleStart), midnight.Add(noonSampleEnd), noonSampleStep)
}

func (c *Calculator) maxSample(body Body, from, to time.Time, step time.Duration) (Sample, error) {
	best := Sample{Body: body, Elevation: math.Inf(-1)}
	for t := from; t.Before(to); t = t.Add(step) {
		s, err := c.Sample(body, t)
		if err != nil {
			return Sample{}, err
		}
		if s.Elevation > best.Elevation {
			best = s
		}
	}
	if best.Time.IsZero() {
		return Sample{}, errors.Newf("empty sampling window %s..%s", from, to).
			Component("ephemeris").
			Category(errors.CategoryValidation).
			Build()
	}
	return best, nil
}

// MaxElevation returns the highest elevation of body on the calendar day of
// date, floored at MinMaxElevation. The sun is sampled around noon every five
// minutes, the moon hourly across the whole day. FallbackMaxElevation is
// returned when the ephemeris cannot answer.
func (c *Calculator) MaxElevation(body Body, date time.Time) float64 {
	midnight := c.dayStart(date)

	var (
		s   Sample
		err error
	)
	switch body {
	case Moon:
		s, err = c.maxSample(Moon, midnight, midnight.Add(24*time.Hour), moonSampleStep)
	default:
		s, err = c.maxSample(Sun, midnight.Add(noonSampleStart), midnight.Add(noonSampleEnd), noonSampleStep)
	}
	if err != nil {
		c.log.Warn("max elevation unavailable, using fallback",
			logger.String("body", body.String()),
			logger.Float64("fallback", FallbackMaxElevation),
			logger.Error(err))
		return FallbackMaxElevation
	}
	return math.Max(s.Elevation, MinMaxElevation)
}
