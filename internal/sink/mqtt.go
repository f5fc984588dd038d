package sink

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/solarwindow/pvpoll/internal/errors"
	"github.com/solarwindow/pvpoll/internal/logger"
	"github.com/solarwindow/pvpoll/internal/mqtt"
	"github.com/solarwindow/pvpoll/internal/pv"
)

const defaultPublishTimeout = 10 * time.Second

// Publisher is the part of the MQTT client the sink needs
type Publisher interface {
	Publish(ctx context.Context, topic, payload string) error
	IsConnected() bool
}

// MQTTSink publishes readings from its own goroutine. Only the newest
// pending reading is kept: a reading arriving while the previous one is
// still queued replaces it.
type MQTTSink struct {
	client  Publisher
	topic   string
	timeout time.Duration
	log     logger.Logger

	mu      sync.Mutex
	pending *pv.Metrics
	wake    chan struct{}
	done    chan struct{}
	wg      sync.WaitGroup
	once    sync.Once

	published int
	skipped   int
	replaced  int
}

// NewMQTTSink returns a sink publishing to topic. Start must be called.
func NewMQTTSink(client Publisher, topic string) *MQTTSink {
	return &MQTTSink{
		client:  client,
		topic:   topic,
		timeout: defaultPublishTimeout,
		log:     GetLogger().With(logger.String("sink", "mqtt"), logger.String("topic", topic)),
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

// Start runs the publishing goroutine
func (s *MQTTSink) Start() {
	s.wg.Add(1)
	go s.run()
}

// Stop publishes a reading still pending and stops the goroutine, giving up
// when ctx expires.
func (s *MQTTSink) Stop(ctx context.Context) error {
	s.once.Do(func() { close(s.done) })
	finished := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(finished)
	}()
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// OnMetricUpdate implements Sink
func (s *MQTTSink) OnMetricUpdate(_ context.Context, m pv.Metrics) {
	reading := m.Clone()
	s.mu.Lock()
	if s.pending != nil {
		s.replaced++
	}
	s.pending = &reading
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Stats returns publish counters
func (s *MQTTSink) Stats() (published, skipped, replaced int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.published, s.skipped, s.replaced
}

func (s *MQTTSink) run() {
	defer s.wg.Done()
	for {
		select {
		case <-s.wake:
			s.flush()
		case <-s.done:
			s.flush()
			return
		}
	}
}

func (s *MQTTSink) take() *pv.Metrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.pending
	s.pending = nil
	return m
}

func (s *MQTTSink) flush() {
	m := s.take()
	if m == nil {
		return
	}
	if err := s.publish(*m); err != nil {
		s.mu.Lock()
		s.skipped++
		s.mu.Unlock()
		s.log.Warn("reading not published", logger.Error(err))
		return
	}
	s.mu.Lock()
	s.published++
	s.mu.Unlock()
}

func (s *MQTTSink) publish(m pv.Metrics) error {
	if !s.client.IsConnected() {
		return errors.Newf("MQTT client not connected").
			Component("sink").
			Category(errors.CategoryMQTTConnection).
			Context("operation", "mqtt_publish").
			Build()
	}

	payload, err := json.Marshal(mqtt.NewReadingDTO(m))
	if err != nil {
		return errors.New(err).
			Component("sink").
			Category(errors.CategoryMQTTPublish).
			Context("operation", "marshal_reading").
			Build()
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	return s.client.Publish(ctx, s.topic, string(payload))
}
