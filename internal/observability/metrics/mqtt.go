package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MQTTMetrics contains all Prometheus metrics related to MQTT operations.
type MQTTMetrics struct {
	ConnectionStatus  prometheus.Gauge
	MessagesDelivered prometheus.Counter
	Errors            prometheus.Counter
	ReconnectAttempts prometheus.Counter
	LastConnectTime   prometheus.Gauge
	MessageSize       prometheus.Histogram
	PublishLatency    prometheus.Histogram
}

// NewMQTTMetrics creates and registers the MQTT metrics
func NewMQTTMetrics(registry prometheus.Registerer) (*MQTTMetrics, error) {
	m := &MQTTMetrics{}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register MQTT metrics: %w", err)
	}
	return m, nil
}

func (m *MQTTMetrics) initMetrics() {
	m.ConnectionStatus = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "pvpoll_mqtt_connection_status",
		Help: "Current MQTT connection status (1 for connected, 0 for disconnected)",
	})
	m.MessagesDelivered = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pvpoll_mqtt_messages_delivered_total",
		Help: "Total number of MQTT messages successfully delivered",
	})
	m.Errors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pvpoll_mqtt_errors_total",
		Help: "Total number of MQTT errors encountered",
	})
	m.ReconnectAttempts = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pvpoll_mqtt_reconnect_attempts_total",
		Help: "Total number of MQTT reconnection attempts",
	})
	m.LastConnectTime = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "pvpoll_mqtt_last_connect_time_seconds",
		Help: "Timestamp of the last successful MQTT connection",
	})
	m.MessageSize = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "pvpoll_mqtt_message_size_bytes",
		Help:    "Size of MQTT messages in bytes",
		Buckets: prometheus.ExponentialBuckets(BucketStart64B, BucketFactor2, BucketCount10),
	})
	m.PublishLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "pvpoll_mqtt_publish_latency_seconds",
		Help:    "Latency of MQTT publish operations in seconds",
		Buckets: prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount10),
	})
}

// UpdateConnectionStatus updates the connection status and last connect time.
func (m *MQTTMetrics) UpdateConnectionStatus(connected bool) {
	if connected {
		m.ConnectionStatus.Set(1)
		m.LastConnectTime.SetToCurrentTime()
		return
	}
	m.ConnectionStatus.Set(0)
}

// IncrementMessagesDelivered counts a delivered message
func (m *MQTTMetrics) IncrementMessagesDelivered() {
	m.MessagesDelivered.Inc()
}

// IncrementErrors counts an MQTT error
func (m *MQTTMetrics) IncrementErrors() {
	m.Errors.Inc()
}

// IncrementReconnectAttempts counts a reconnection attempt
func (m *MQTTMetrics) IncrementReconnectAttempts() {
	m.ReconnectAttempts.Inc()
}

// ObserveMessageSize records the size of a message
func (m *MQTTMetrics) ObserveMessageSize(sizeBytes float64) {
	m.MessageSize.Observe(sizeBytes)
}

// StartPublishTimer starts a timer for measuring publish latency.
func (m *MQTTMetrics) StartPublishTimer() *PublishTimer {
	return &PublishTimer{startTime: time.Now(), metrics: m}
}

// PublishTimer measures publish latency.
type PublishTimer struct {
	startTime time.Time
	metrics   *MQTTMetrics
}

// ObserveDuration stops the timer and records the duration.
func (pt *PublishTimer) ObserveDuration() {
	pt.metrics.PublishLatency.Observe(time.Since(pt.startTime).Seconds())
}

// Collect implements the prometheus.Collector interface.
func (m *MQTTMetrics) Collect(ch chan<- prometheus.Metric) {
	ch <- m.ConnectionStatus
	ch <- m.MessagesDelivered
	ch <- m.Errors
	ch <- m.ReconnectAttempts
	ch <- m.LastConnectTime
	ch <- m.MessageSize
	ch <- m.PublishLatency
}

// Describe implements the prometheus.Collector interface.
func (m *MQTTMetrics) Describe(ch chan<- *prometheus.Desc) {
	ch <- m.ConnectionStatus.Desc()
	ch <- m.MessagesDelivered.Desc()
	ch <- m.Errors.Desc()
	ch <- m.ReconnectAttempts.Desc()
	ch <- m.LastConnectTime.Desc()
	ch <- m.MessageSize.Desc()
	ch <- m.PublishLatency.Desc()
}
