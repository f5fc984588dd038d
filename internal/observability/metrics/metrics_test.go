package metrics

import (
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func histogramCount(t *testing.T, registry *prometheus.Registry, name string) uint64 {
	t.Helper()
	families, err := registry.Gather()
	require.NoError(t, err)
	var total uint64
	for _, mf := range families {
		if mf.GetName() != name || mf.GetType() != dto.MetricType_HISTOGRAM {
			continue
		}
		for _, metric := range mf.GetMetric() {
			total += metric.GetHistogram().GetSampleCount()
		}
	}
	return total
}

func TestSchedulerMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	m, err := NewSchedulerMetrics(registry)
	require.NoError(t, err)

	m.ObserveFetch(true, 120*time.Millisecond)
	m.ObserveFetch(true, 80*time.Millisecond)
	m.ObserveFetch(false, 10*time.Second)

	assert.InDelta(t, 2.0, testutil.ToFloat64(m.fetchTotal.WithLabelValues(LabelSuccess)), 0)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.fetchTotal.WithLabelValues(LabelFailure)), 0)
	assert.Equal(t, uint64(3), histogramCount(t, registry, "pvpoll_fetch_duration_seconds"))

	m.SetBudget(12, 268)
	assert.InDelta(t, 12.0, testutil.ToFloat64(m.budgetIssued), 0)
	assert.InDelta(t, 268.0, testutil.ToFloat64(m.budgetRemaining), 0)

	m.IncPause()
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.pausesTotal), 0)
}

func TestSchedulerMetricsStateIsExclusive(t *testing.T) {
	m, err := NewSchedulerMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	m.SetState("waiting-for-window")
	m.SetState("active")
	m.SetState("active")

	assert.InDelta(t, 0.0, testutil.ToFloat64(m.state.WithLabelValues("waiting-for-window")), 0)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.state.WithLabelValues("active")), 0)
}

func TestDuplicateRegistrationFails(t *testing.T) {
	registry := prometheus.NewRegistry()
	_, err := NewSchedulerMetrics(registry)
	require.NoError(t, err)
	_, err = NewSchedulerMetrics(registry)
	require.Error(t, err)
}

func TestEphemerisMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	m, err := NewEphemerisMetrics(registry)
	require.NoError(t, err)

	assert.InDelta(t, 1.0, testutil.ToFloat64(m.available), 0)

	m.ObserveCrossingSearch(LabelDawnCrossing, 2*time.Millisecond, nil)
	m.ObserveCrossingSearch(LabelDuskCrossing, time.Millisecond, assert.AnError)
	m.RecordElevationFailure("moon")
	m.SetAvailable(false)

	assert.InDelta(t, 1.0, testutil.ToFloat64(m.crossingTotal.WithLabelValues(LabelDawnCrossing, LabelSuccess)), 0)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.crossingTotal.WithLabelValues(LabelDuskCrossing, LabelError)), 0)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.elevationFailures.WithLabelValues("moon")), 0)
	assert.InDelta(t, 0.0, testutil.ToFloat64(m.available), 0)
	assert.Equal(t, uint64(2), histogramCount(t, registry, "pvpoll_crossing_search_duration_seconds"))
}

func TestHTTPClientMetrics(t *testing.T) {
	m, err := NewHTTPClientMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	req := &http.Request{URL: &url.URL{Scheme: "https", Host: "api.met.no", Path: "/weatherapi/sunrise/3.0/sun"}}
	m.ObserveResponse(req, &http.Response{StatusCode: http.StatusOK}, nil, 50*time.Millisecond)
	m.ObserveResponse(req, nil, assert.AnError, time.Second)

	assert.InDelta(t, 1.0, testutil.ToFloat64(m.requestsTotal.WithLabelValues("api.met.no", "200")), 0)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.requestsTotal.WithLabelValues("api.met.no", LabelError)), 0)
}

func TestMQTTMetrics(t *testing.T) {
	m, err := NewMQTTMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	m.UpdateConnectionStatus(true)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.ConnectionStatus), 0)
	assert.Positive(t, testutil.ToFloat64(m.LastConnectTime))

	m.UpdateConnectionStatus(false)
	assert.InDelta(t, 0.0, testutil.ToFloat64(m.ConnectionStatus), 0)

	m.IncrementMessagesDelivered()
	m.IncrementErrors()
	m.IncrementReconnectAttempts()
	m.ObserveMessageSize(128)
	m.StartPublishTimer().ObserveDuration()

	assert.InDelta(t, 1.0, testutil.ToFloat64(m.MessagesDelivered), 0)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.Errors), 0)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.ReconnectAttempts), 0)
}
