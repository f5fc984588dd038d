// Package suncalc computes sun event times locally with the astral
// algorithms. It is the offline sunrise source used when the remote API is
// unreachable.
package suncalc

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sj14/astral/pkg/astral"

	"github.com/solarwindow/pvpoll/internal/errors"
)

// SunEventTimes holds the calculated sun event times in local time
type SunEventTimes struct {
	CivilDawn time.Time
	Sunrise   time.Time
	Sunset    time.Time
	CivilDusk time.Time
}

// SunCalc handles caching and calculation of sun event times
type SunCalc struct {
	cache    map[string]SunEventTimes // keyed by local date
	lock     sync.RWMutex
	observer astral.Observer
	tz       *time.Location
}

// NewSunCalc creates a SunCalc for an observer whose calendar days and
// returned times are expressed in tz. A nil tz means time.Local.
func NewSunCalc(latitude, longitude float64, tz *time.Location) *SunCalc {
	if tz == nil {
		tz = time.Local
	}
	return &SunCalc{
		cache:    make(map[string]SunEventTimes),
		observer: astral.Observer{Latitude: latitude, Longitude: longitude},
		tz:       tz,
	}
}

// GetSunEventTimes returns the sun event times for the local calendar date
// of date, using the cache if available
func (sc *SunCalc) GetSunEventTimes(date time.Time) (SunEventTimes, error) {
	day := sc.localDay(date)
	key := day.Format(time.DateOnly)

	sc.lock.RLock()
	times, exists := sc.cache[key]
	sc.lock.RUnlock()
	if exists {
		return times, nil
	}

	times, err := sc.calculateSunEventTimes(day)
	if err != nil {
		return SunEventTimes{}, err
	}

	sc.lock.Lock()
	sc.cache[key] = times
	sc.lock.Unlock()

	return times, nil
}

func (sc *SunCalc) localDay(date time.Time) time.Time {
	y, m, d := date.In(sc.tz).Date()
	return time.Date(y, m, d, 12, 0, 0, 0, sc.tz)
}

// calculateSunEventTimes runs astral for one day. Polar day or night makes
// astral fail for the missing events.
func (sc *SunCalc) calculateSunEventTimes(day time.Time) (SunEventTimes, error) {
	civilDawn, err := astral.Dawn(sc.observer, day, astral.DepressionCivil)
	if err != nil {
		return SunEventTimes{}, sc.eventError("civil dawn", day, err)
	}
	sunrise, err := astral.Sunrise(sc.observer, day)
	if err != nil {
		return SunEventTimes{}, sc.eventError("sunrise", day, err)
	}
	sunset, err := astral.Sunset(sc.observer, day)
	if err != nil {
		return SunEventTimes{}, sc.eventError("sunset", day, err)
	}
	civilDusk, err := astral.Dusk(sc.observer, day, astral.DepressionCivil)
	if err != nil {
		return SunEventTimes{}, sc.eventError("civil dusk", day, err)
	}

	return SunEventTimes{
		CivilDawn: civilDawn.In(sc.tz),
		Sunrise:   sunrise.In(sc.tz),
		Sunset:    sunset.In(sc.tz),
		CivilDusk: civilDusk.In(sc.tz),
	}, nil
}

func (sc *SunCalc) eventError(event string, day time.Time, err error) error {
	return errors.New(fmt.Errorf("failed to calculate %s: %w", event, err)).
		Component("suncalc").
		Category(errors.CategoryEphemeris).
		Context("date", day.Format(time.DateOnly)).
		Build()
}

// SunriseSunset returns sunrise and sunset of the local date
func (sc *SunCalc) SunriseSunset(ctx context.Context, date time.Time) (sunrise, sunset time.Time, err error) {
	if err := ctx.Err(); err != nil {
		return time.Time{}, time.Time{}, err
	}
	times, err := sc.GetSunEventTimes(date)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return times.Sunrise, times.Sunset, nil
}

// CivilTwilight returns civil dawn and dusk of the local date
func (sc *SunCalc) CivilTwilight(ctx context.Context, date time.Time) (dawn, dusk time.Time, err error) {
	if err := ctx.Err(); err != nil {
		return time.Time{}, time.Time{}, err
	}
	times, err := sc.GetSunEventTimes(date)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return times.CivilDawn, times.CivilDusk, nil
}

// GetSunriseTime returns the sunrise time for a given date
func (sc *SunCalc) GetSunriseTime(date time.Time) (time.Time, error) {
	times, err := sc.GetSunEventTimes(date)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get sun event times: %w", err)
	}
	return times.Sunrise, nil
}

// GetSunsetTime returns the sunset time for a given date
func (sc *SunCalc) GetSunsetTime(date time.Time) (time.Time, error) {
	times, err := sc.GetSunEventTimes(date)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get sun event times: %w", err)
	}
	return times.Sunset, nil
}
