package sunrise

import (
	"context"
	"time"

	"github.com/solarwindow/pvpoll/internal/errors"
	"github.com/solarwindow/pvpoll/internal/logger"
)

// Source answers sunrise and sunset for the calendar day of date
type Source interface {
	SunriseSunset(ctx context.Context, date time.Time) (sunrise, sunset time.Time, err error)
}

// Named attaches a name to a Source for logging
type Named struct {
	Name string
	Source
}

// Chain asks each source in order and returns the first complete answer.
// A source that knows only one of the two events leaves the other to the
// sources after it.
type Chain struct {
	sources []Named
	log     logger.Logger
}

// NewChain returns a Chain over sources. Nil sources are skipped.
func NewChain(sources ...Named) *Chain {
	c := &Chain{log: GetLogger()}
	for _, s := range sources {
		if s.Source != nil {
			c.sources = append(c.sources, s)
		}
	}
	return c
}

// WithLogger replaces the module logger
func (c *Chain) WithLogger(l logger.Logger) *Chain {
	c.log = l
	return c
}

// SunriseSunset implements Source. Cancellation of ctx stops the chain.
func (c *Chain) SunriseSunset(ctx context.Context, date time.Time) (sunrise, sunset time.Time, err error) {
	var errs []error
	for i, s := range c.sources {
		rise, set, err := s.SunriseSunset(ctx, date)
		if err != nil {
			errs = append(errs, err)
			if ctxErr := ctx.Err(); ctxErr != nil {
				return time.Time{}, time.Time{}, ctxErr
			}
			c.log.Debug("sunrise source failed",
				logger.String("source", s.Name),
				logger.Error(err))
			continue
		}

		if i > 0 {
			c.log.Info("sunrise source fell back",
				logger.String("source", s.Name),
				logger.String("date", date.Format(time.DateOnly)),
				logger.Bool("partial", !sunrise.IsZero() || !sunset.IsZero()))
		}
		if sunrise.IsZero() {
			sunrise = rise
		}
		if sunset.IsZero() {
			sunset = set
		}
		if !sunrise.IsZero() && !sunset.IsZero() {
			return sunrise, sunset, nil
		}
	}

	if !sunrise.IsZero() || !sunset.IsZero() {
		return sunrise, sunset, nil
	}
	if len(c.sources) == 0 {
		return time.Time{}, time.Time{}, errors.Newf("no sunrise source configured").
			Component("sunrise").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if len(errs) == 0 {
		return time.Time{}, time.Time{}, ErrNoEvents
	}
	return time.Time{}, time.Time{}, errors.Join(errs...)
}
