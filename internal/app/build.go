package app

import (
	"time"

	"github.com/solarwindow/pvpoll/internal/conf"
	"github.com/solarwindow/pvpoll/internal/ephemeris"
	"github.com/solarwindow/pvpoll/internal/httpclient"
	"github.com/solarwindow/pvpoll/internal/logger"
	"github.com/solarwindow/pvpoll/internal/observability/metrics"
	"github.com/solarwindow/pvpoll/internal/phase"
	"github.com/solarwindow/pvpoll/internal/suncalc"
	"github.com/solarwindow/pvpoll/internal/sunrise"
)

// Sources are the time sources a twilight window is reconciled from
type Sources struct {
	Location   *time.Location
	Calculator *ephemeris.Calculator
	Sunrise    phase.SunriseSource // nil when disabled
	MetNo      *sunrise.MetNo      // nil unless met.no is configured
	Astral     *suncalc.SunCalc
	Model      *phase.Model
}

// BuildCalculator returns the ephemeris calculator of the configured
// location. With a data file configured, elevation queries fail while the
// file is missing and m tracks availability.
func BuildCalculator(settings *conf.Settings, tz *time.Location, m *metrics.EphemerisMetrics) (*ephemeris.Calculator, error) {
	loc, err := ephemeris.NewLocation(settings.Location.Latitude, settings.Location.Longitude)
	if err != nil {
		return nil, err
	}

	var provider ephemeris.Provider = ephemeris.NewAnalyticProvider()
	if settings.Ephemeris.DataFile != "" {
		gated := ephemeris.NewFileGatedProvider(settings.Ephemeris.DataFile, provider)
		if m != nil {
			gated.OnAvailabilityChange = m.SetAvailable
			m.SetAvailable(gated.Available())
		}
		provider = gated
	}

	opts := []ephemeris.Option{}
	if m != nil {
		opts = append(opts, ephemeris.WithMetrics(m))
	}
	return ephemeris.NewCalculator(provider, loc, tz, opts...), nil
}

// BuildSources wires the ephemeris, the sunrise chain and the window model.
// client carries the met.no requests and may be nil when met.no is unused.
func BuildSources(settings *conf.Settings, client *httpclient.Client, m *metrics.EphemerisMetrics) (*Sources, error) {
	tz, err := settings.TimeLocation()
	if err != nil {
		return nil, err
	}
	calc, err := BuildCalculator(settings, tz, m)
	if err != nil {
		return nil, err
	}

	src := &Sources{
		Location:   tz,
		Calculator: calc,
		Astral:     suncalc.NewSunCalc(settings.Location.Latitude, settings.Location.Longitude, tz),
	}

	var chain []sunrise.Named
	switch settings.Sunrise.Provider {
	case "metno":
		src.MetNo = sunrise.NewMetNo(sunrise.Config{
			Latitude:  settings.Location.Latitude,
			Longitude: settings.Location.Longitude,
			Location:  tz,
			BaseURL:   settings.Sunrise.BaseURL,
			UserAgent: settings.Sunrise.UserAgent,
			Timeout:   settings.Sunrise.Timeout,
			CacheTTL:  settings.Sunrise.CacheTTL,
		}, client)
		chain = append(chain, sunrise.Named{Name: "metno", Source: src.MetNo})
		if settings.Sunrise.Fallback == "astral" {
			chain = append(chain, sunrise.Named{Name: "astral", Source: src.Astral})
		}
	case "astral":
		chain = append(chain, sunrise.Named{Name: "astral", Source: src.Astral})
	}
	if len(chain) > 0 {
		src.Sunrise = sunrise.NewChain(chain...)
	} else {
		GetLogger().Warn("no sunrise source configured, sunrise and sunset are derived from civil twilight")
	}

	var twilight phase.TwilightSource = phase.EphemerisTwilight{Calculator: calc}
	if settings.Sunrise.Provider == "astral" || settings.Sunrise.Fallback == "astral" {
		twilight = phase.TwilightChain{twilight, src.Astral}
	}
	src.Model = phase.NewModel(twilight, src.Sunrise, tz)
	return src, nil
}

// SetupLogging installs the global logger described by settings
func SetupLogging(settings *conf.Settings) (*logger.CentralLogger, error) {
	level := settings.Log.Level
	if settings.Debug {
		level = "debug"
	}
	cfg := &logger.LoggingConfig{
		DefaultLevel: level,
		Timezone:     settings.Location.Timezone,
		Console:      &logger.ConsoleOutput{Enabled: true, Level: level},
	}
	if settings.Log.File != "" {
		cfg.FileOutput = &logger.FileOutput{
			Enabled:    true,
			Path:       settings.Log.File,
			Level:      settings.Log.FileLevel,
			MaxSizeMB:  settings.Log.MaxSize,
			MaxBackups: settings.Log.MaxBackups,
			MaxAgeDays: settings.Log.MaxAge,
			Compress:   true,
		}
	}
	cl, err := logger.NewCentralLogger(cfg)
	if err != nil {
		return nil, err
	}
	logger.SetGlobal(cl)
	return cl, nil
}
