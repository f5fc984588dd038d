package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsHandlerExposesCollectors(t *testing.T) {
	m, err := NewMetrics()
	require.NoError(t, err)

	m.Scheduler.SetState("active")
	m.Scheduler.ObserveFetch(true, 100*time.Millisecond)
	m.Ephemeris.SetAvailable(true)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `pvpoll_scheduler_state{state="active"} 1`)
	assert.Contains(t, body, `pvpoll_fetch_total{outcome="success"} 1`)
	assert.Contains(t, body, "pvpoll_ephemeris_available 1")
	assert.Contains(t, body, "go_goroutines")
}

func TestNewMetricsUsesPrivateRegistry(t *testing.T) {
	first, err := NewMetrics()
	require.NoError(t, err)
	second, err := NewMetrics()
	require.NoError(t, err)
	assert.NotSame(t, first.Registry(), second.Registry())
}
