package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SchedulerMetrics records the polling scheduler. It implements the
// scheduler's Observer.
type SchedulerMetrics struct {
	fetchTotal      *prometheus.CounterVec
	fetchDuration   *prometheus.HistogramVec
	budgetIssued    prometheus.Gauge
	budgetRemaining prometheus.Gauge
	state           *prometheus.GaugeVec
	pausesTotal     prometheus.Counter

	mu           sync.Mutex
	currentState string
}

// NewSchedulerMetrics creates and registers the scheduler metrics
func NewSchedulerMetrics(registry prometheus.Registerer) (*SchedulerMetrics, error) {
	m := &SchedulerMetrics{
		fetchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pvpoll_fetch_total",
			Help: "Applied fetch results by outcome",
		}, []string{"outcome"}),
		fetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pvpoll_fetch_duration_seconds",
			Help:    "Duration of metric fetches",
			Buckets: prometheus.ExponentialBuckets(BucketStart10ms, BucketFactor2, BucketCount12),
		}, []string{"outcome"}),
		budgetIssued: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pvpoll_budget_issued",
			Help: "Queries counted against today's budget",
		}),
		budgetRemaining: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pvpoll_budget_remaining",
			Help: "Queries left in today's budget",
		}),
		state: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pvpoll_scheduler_state",
			Help: "Current scheduler state (1 for the active state)",
		}, []string{"state"}),
		pausesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pvpoll_failure_pauses_total",
			Help: "Pauses entered after consecutive fetch failures",
		}),
	}
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

// ObserveFetch records one applied fetch result
func (m *SchedulerMetrics) ObserveFetch(success bool, duration time.Duration) {
	outcome := LabelFailure
	if success {
		outcome = LabelSuccess
	}
	m.fetchTotal.WithLabelValues(outcome).Inc()
	m.fetchDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// SetState marks state as current
func (m *SchedulerMetrics) SetState(state string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.currentState != "" && m.currentState != state {
		m.state.WithLabelValues(m.currentState).Set(0)
	}
	m.state.WithLabelValues(state).Set(1)
	m.currentState = state
}

// SetBudget records today's budget consumption
func (m *SchedulerMetrics) SetBudget(issued, remaining int) {
	m.budgetIssued.Set(float64(issued))
	m.budgetRemaining.Set(float64(remaining))
}

// IncPause counts a failure pause
func (m *SchedulerMetrics) IncPause() {
	m.pausesTotal.Inc()
}

// Describe implements the prometheus.Collector interface.
func (m *SchedulerMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.fetchTotal.Describe(ch)
	m.fetchDuration.Describe(ch)
	m.budgetIssued.Describe(ch)
	m.budgetRemaining.Describe(ch)
	m.state.Describe(ch)
	m.pausesTotal.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *SchedulerMetrics) Collect(ch chan<- prometheus.Metric) {
	m.fetchTotal.Collect(ch)
	m.fetchDuration.Collect(ch)
	m.budgetIssued.Collect(ch)
	m.budgetRemaining.Collect(ch)
	m.state.Collect(ch)
	m.pausesTotal.Collect(ch)
}
