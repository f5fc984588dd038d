// Package ephemeris computes solar and lunar elevation for a fixed observer
// and derives event instants from it: civil twilight crossings found by
// bisection, solar noon found by sampling, daily maximum elevation and the
// moon phase.
//
// Elevation comes from a pluggable Provider. The built-in AnalyticProvider
// uses low-precision series good to a few arcminutes for the sun and well
// under a degree for the moon, which is ample for scheduling decisions.
package ephemeris

import (
	"fmt"
	"time"

	"github.com/solarwindow/pvpoll/internal/errors"
	"github.com/solarwindow/pvpoll/internal/logger"
)

// Body is a celestial body whose elevation can be computed
type Body int

const (
	Sun Body = iota
	Moon
)

func (b Body) String() string {
	switch b {
	case Sun:
		return "sun"
	case Moon:
		return "moon"
	default:
		return fmt.Sprintf("body(%d)", int(b))
	}
}

// Location is the observer position in decimal degrees
type Location struct {
	Latitude  float64
	Longitude float64
}

// NewLocation validates and returns a Location
func NewLocation(lat, lon float64) (Location, error) {
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return Location{}, errors.Newf("invalid observer location %.4f,%.4f", lat, lon).
			Component("ephemeris").
			Category(errors.CategoryValidation).
			Build()
	}
	return Location{Latitude: lat, Longitude: lon}, nil
}

// Sample is a computed elevation of a body at an instant. It is never cached.
type Sample struct {
	Body      Body
	Elevation float64 // degrees above the horizon
	Time      time.Time
}

// Provider supplies topocentric elevation. Implementations return an error
// wrapping ErrUnavailable when the capability is missing at call time.
type Provider interface {
	Elevation(body Body, t time.Time, loc Location) (float64, error)
}

// Sentinel errors
var (
	// ErrUnavailable means the ephemeris capability could not answer right now.
	ErrUnavailable = errors.NewStd("ephemeris unavailable")
	// ErrNoCrossing means the search bracket does not straddle the target
	// elevation in the requested direction, as happens during polar day or night.
	ErrNoCrossing = errors.NewStd("no elevation crossing in search interval")
)

// GetLogger returns the ephemeris module logger
func GetLogger() logger.Logger {
	return logger.Global().Module("ephemeris")
}
