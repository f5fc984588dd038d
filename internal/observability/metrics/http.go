package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// HTTPClientMetrics records outbound API requests per remote host
type HTTPClientMetrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// NewHTTPClientMetrics creates and registers the outbound request metrics
func NewHTTPClientMetrics(registry prometheus.Registerer) (*HTTPClientMetrics, error) {
	m := &HTTPClientMetrics{
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pvpoll_http_client_requests_total",
			Help: "Outbound HTTP requests by host and status code",
		}, []string{"host", "code"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pvpoll_http_client_request_duration_seconds",
			Help:    "Duration of outbound HTTP requests",
			Buckets: prometheus.ExponentialBuckets(BucketStart10ms, BucketFactor2, BucketCount12),
		}, []string{"host"}),
	}
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

// ObserveResponse has the signature of the httpclient after-response hook.
// Transport errors are recorded with code "error".
func (m *HTTPClientMetrics) ObserveResponse(req *http.Request, resp *http.Response, err error, duration time.Duration) {
	code := LabelError
	if err == nil && resp != nil {
		code = strconv.Itoa(resp.StatusCode)
	}
	host := req.URL.Hostname()
	m.requestsTotal.WithLabelValues(host, code).Inc()
	m.requestDuration.WithLabelValues(host).Observe(duration.Seconds())
}

// Describe implements the prometheus.Collector interface.
func (m *HTTPClientMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.requestsTotal.Describe(ch)
	m.requestDuration.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *HTTPClientMetrics) Collect(ch chan<- prometheus.Metric) {
	m.requestsTotal.Collect(ch)
	m.requestDuration.Collect(ch)
}
