// Package observability assembles the Prometheus registry of pvpoll and
// serves it.
package observability

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/solarwindow/pvpoll/internal/observability/metrics"
)

// Metrics holds all the metric collectors for the application.
type Metrics struct {
	registry   *prometheus.Registry
	Scheduler  *metrics.SchedulerMetrics
	Ephemeris  *metrics.EphemerisMetrics
	HTTPClient *metrics.HTTPClientMetrics
	MQTT       *metrics.MQTTMetrics
}

// NewMetrics creates a registry with process and Go runtime collectors and
// every component collector.
func NewMetrics() (*Metrics, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	schedulerMetrics, err := metrics.NewSchedulerMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler metrics: %w", err)
	}
	ephemerisMetrics, err := metrics.NewEphemerisMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create ephemeris metrics: %w", err)
	}
	httpMetrics, err := metrics.NewHTTPClientMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP client metrics: %w", err)
	}
	mqttMetrics, err := metrics.NewMQTTMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create MQTT metrics: %w", err)
	}

	return &Metrics{
		registry:   registry,
		Scheduler:  schedulerMetrics,
		Ephemeris:  ephemerisMetrics,
		HTTPClient: httpMetrics,
		MQTT:       mqttMetrics,
	}, nil
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorLog:      promErrorLog{},
		ErrorHandling: promhttp.ContinueOnError,
	})
}

// promErrorLog routes promhttp errors to the module logger
type promErrorLog struct{}

func (promErrorLog) Println(v ...any) {
	GetLogger().Error(fmt.Sprint(v...))
}
