package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/solarwindow/pvpoll/internal/logger"
	"github.com/solarwindow/pvpoll/internal/pv"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type countingSink struct {
	readings []pv.Metrics
}

func (c *countingSink) OnMetricUpdate(_ context.Context, m pv.Metrics) {
	c.readings = append(c.readings, m)
}

func TestFanout(t *testing.T) {
	a, b := &countingSink{}, &countingSink{}
	f := Fanout{a, nil, b}

	f.OnMetricUpdate(context.Background(), pv.Metrics{CurrentPower: pv.Float(10)})
	assert.Len(t, a.readings, 1)
	assert.Len(t, b.readings, 1)
}

func TestLogSink(t *testing.T) {
	var buf bytes.Buffer
	l := logger.NewSlogLogger(&buf, logger.LogLevelInfo, time.UTC)
	s := NewLogSink(l)

	s.OnMetricUpdate(context.Background(), pv.Metrics{CurrentPower: pv.Float(1234), DailyEnergy: pv.Float(5000)})
	out := buf.String()
	assert.Contains(t, out, "pv reading")
	assert.Contains(t, out, "1234")
	assert.Contains(t, out, "daily_energy_wh")
}

type fakePublisher struct {
	mu        sync.Mutex
	connected bool
	block     chan struct{}
	payloads  []string
	topics    []string
	published chan struct{}
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{connected: true, published: make(chan struct{}, 16)}
}

func (f *fakePublisher) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakePublisher) Publish(_ context.Context, topic, payload string) error {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	f.topics = append(f.topics, topic)
	f.payloads = append(f.payloads, payload)
	f.mu.Unlock()
	f.published <- struct{}{}
	return nil
}

func (f *fakePublisher) snapshot() (topics, payloads []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.topics...), append([]string(nil), f.payloads...)
}

func waitPublished(t *testing.T, f *fakePublisher) {
	t.Helper()
	select {
	case <-f.published:
	case <-time.After(2 * time.Second):
		t.Fatal("reading was not published")
	}
}

func TestMQTTSinkPublishesReading(t *testing.T) {
	pub := newFakePublisher()
	s := NewMQTTSink(pub, "pvpoll")
	s.Start()
	t.Cleanup(func() { require.NoError(t, s.Stop(context.Background())) })

	at := time.Date(2024, 6, 21, 12, 0, 0, 0, time.UTC)
	s.OnMetricUpdate(context.Background(), pv.Metrics{CurrentPower: pv.Float(2500), FetchedAt: at})
	waitPublished(t, pub)

	topics, payloads := pub.snapshot()
	require.Equal(t, []string{"pvpoll"}, topics)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(payloads[0]), &decoded))
	assert.InDelta(t, 2500.0, decoded["currentPower"], 0)
	assert.Equal(t, true, decoded["producing"])
	assert.Equal(t, "2024-06-21T12:00:00Z", decoded["timestamp"])
}

func TestMQTTSinkKeepsNewestPending(t *testing.T) {
	pub := newFakePublisher()
	pub.block = make(chan struct{})
	s := NewMQTTSink(pub, "pvpoll")
	s.Start()

	s.OnMetricUpdate(context.Background(), pv.Metrics{CurrentPower: pv.Float(1)})
	// wait until the worker took the first reading and blocks in Publish
	require.Eventually(t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.pending == nil
	}, 2*time.Second, 5*time.Millisecond)

	s.OnMetricUpdate(context.Background(), pv.Metrics{CurrentPower: pv.Float(2)})
	s.OnMetricUpdate(context.Background(), pv.Metrics{CurrentPower: pv.Float(3)})
	close(pub.block)

	waitPublished(t, pub)
	waitPublished(t, pub)
	require.NoError(t, s.Stop(context.Background()))

	_, payloads := pub.snapshot()
	require.Len(t, payloads, 2)
	assert.Contains(t, payloads[1], `"currentPower":3`)
	published, skipped, replaced := s.Stats()
	assert.Equal(t, 2, published)
	assert.Zero(t, skipped)
	assert.Equal(t, 1, replaced)
}

func TestMQTTSinkSkipsWhileDisconnected(t *testing.T) {
	pub := newFakePublisher()
	pub.connected = false
	s := NewMQTTSink(pub, "pvpoll")
	s.log = logger.NewSlogLogger(&bytes.Buffer{}, logger.LogLevelError, time.UTC)
	s.Start()

	s.OnMetricUpdate(context.Background(), pv.Metrics{})
	require.Eventually(t, func() bool {
		_, skipped, _ := s.Stats()
		return skipped == 1
	}, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, s.Stop(context.Background()))

	_, payloads := pub.snapshot()
	assert.Empty(t, payloads)
}

func TestMQTTSinkStopFlushesPending(t *testing.T) {
	pub := newFakePublisher()
	s := NewMQTTSink(pub, "pvpoll")
	// not started: the reading stays pending until Stop runs the worker once
	s.OnMetricUpdate(context.Background(), pv.Metrics{CurrentPower: pv.Float(7)})
	s.Start()
	require.NoError(t, s.Stop(context.Background()))

	_, payloads := pub.snapshot()
	require.Len(t, payloads, 1)
}
