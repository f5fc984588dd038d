// Package sink delivers applied PV readings to their consumers. Every sink
// is called on the scheduling loop and returns without blocking.
package sink

import (
	"context"

	"github.com/solarwindow/pvpoll/internal/logger"
	"github.com/solarwindow/pvpoll/internal/pv"
)

// Sink receives every successfully applied reading
type Sink interface {
	OnMetricUpdate(ctx context.Context, m pv.Metrics)
}

// GetLogger returns the sink module logger
func GetLogger() logger.Logger {
	return logger.Global().Module("sink")
}

// Fanout forwards each reading to every sink in order
type Fanout []Sink

// OnMetricUpdate implements Sink
func (f Fanout) OnMetricUpdate(ctx context.Context, m pv.Metrics) {
	for _, s := range f {
		if s != nil {
			s.OnMetricUpdate(ctx, m)
		}
	}
}

// LogSink writes each reading to the log
type LogSink struct {
	log logger.Logger
}

// NewLogSink returns a LogSink on l, or on the module logger when l is nil
func NewLogSink(l logger.Logger) *LogSink {
	if l == nil {
		l = GetLogger()
	}
	return &LogSink{log: l}
}

// OnMetricUpdate implements Sink
func (s *LogSink) OnMetricUpdate(_ context.Context, m pv.Metrics) {
	fields := []logger.Field{
		logger.Float64("power_w", m.Power()),
		logger.Bool("producing", m.Producing()),
		logger.Time("fetched_at", m.FetchedAt),
	}
	if m.DailyEnergy != nil {
		fields = append(fields, logger.Float64("daily_energy_wh", *m.DailyEnergy))
	}
	s.log.Info("pv reading", fields...)
}
