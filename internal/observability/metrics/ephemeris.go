package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// EphemerisMetrics records elevation lookups and crossing searches. It
// implements ephemeris.Metrics.
type EphemerisMetrics struct {
	crossingDuration  *prometheus.HistogramVec
	crossingTotal     *prometheus.CounterVec
	elevationFailures *prometheus.CounterVec
	available         prometheus.Gauge
}

// NewEphemerisMetrics creates and registers the ephemeris metrics
func NewEphemerisMetrics(registry prometheus.Registerer) (*EphemerisMetrics, error) {
	m := &EphemerisMetrics{
		crossingDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pvpoll_crossing_search_duration_seconds",
			Help:    "Duration of elevation crossing searches",
			Buckets: prometheus.ExponentialBuckets(BucketStart1ms/10, BucketFactor2, BucketCount12),
		}, []string{"kind"}),
		crossingTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pvpoll_crossing_search_total",
			Help: "Crossing searches by kind and outcome",
		}, []string{"kind", "outcome"}),
		elevationFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pvpoll_elevation_failures_total",
			Help: "Elevation lookups that fell back to zero",
		}, []string{"body"}),
		available: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pvpoll_ephemeris_available",
			Help: "Whether the ephemeris can answer (1) or not (0)",
		}),
	}
	m.available.Set(1)
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

// ObserveCrossingSearch records one crossing search
func (m *EphemerisMetrics) ObserveCrossingSearch(kind string, duration time.Duration, err error) {
	outcome := LabelSuccess
	if err != nil {
		outcome = LabelError
	}
	m.crossingTotal.WithLabelValues(kind, outcome).Inc()
	m.crossingDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// RecordElevationFailure counts an elevation lookup that failed
func (m *EphemerisMetrics) RecordElevationFailure(body string) {
	m.elevationFailures.WithLabelValues(body).Inc()
}

// SetAvailable records ephemeris availability transitions
func (m *EphemerisMetrics) SetAvailable(available bool) {
	if available {
		m.available.Set(1)
		return
	}
	m.available.Set(0)
}

// Describe implements the prometheus.Collector interface.
func (m *EphemerisMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.crossingDuration.Describe(ch)
	m.crossingTotal.Describe(ch)
	m.elevationFailures.Describe(ch)
	m.available.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *EphemerisMetrics) Collect(ch chan<- prometheus.Metric) {
	m.crossingDuration.Collect(ch)
	m.crossingTotal.Collect(ch)
	m.elevationFailures.Collect(ch)
	m.available.Collect(ch)
}
