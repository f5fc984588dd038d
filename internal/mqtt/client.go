package mqtt

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/solarwindow/pvpoll/internal/errors"
	"github.com/solarwindow/pvpoll/internal/logger"
	"github.com/solarwindow/pvpoll/internal/observability/metrics"
)

// client implements Client on top of paho. Paho handles reconnection.
type client struct {
	config          Config
	metrics         *metrics.MQTTMetrics
	newPaho         func(*paho.ClientOptions) paho.Client
	log             logger.Logger
	mu              sync.Mutex
	internalClient  paho.Client
	lastConnAttempt time.Time
}

// NewClient creates an MQTT client. Zero durations in cfg take the defaults;
// m may be nil.
func NewClient(cfg Config, m *metrics.MQTTMetrics) Client {
	return newClient(cfg, m, paho.NewClient)
}

func newClient(cfg Config, m *metrics.MQTTMetrics, factory func(*paho.ClientOptions) paho.Client) *client {
	defaults := DefaultConfig()
	if cfg.ClientID == "" {
		cfg.ClientID = defaults.ClientID
	}
	if cfg.Topic == "" {
		cfg.Topic = defaults.Topic
	}
	if cfg.ReconnectCooldown <= 0 {
		cfg.ReconnectCooldown = defaults.ReconnectCooldown
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = defaults.ConnectTimeout
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = defaults.PublishTimeout
	}
	if cfg.DisconnectTimeout <= 0 {
		cfg.DisconnectTimeout = defaults.DisconnectTimeout
	}
	return &client{
		config:  cfg,
		metrics: m,
		newPaho: factory,
		log:     GetLogger().With(logger.String("broker", cfg.Broker)),
	}
}

// Connect resolves the broker host and connects. Attempts closer together
// than the reconnect cooldown are rejected.
func (c *client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if since := time.Since(c.lastConnAttempt); since < c.config.ReconnectCooldown {
		return errors.Newf("connection attempt too recent, last attempt was %v ago", since).
			Component("mqtt").
			Category(errors.CategoryMQTTConnection).
			Build()
	}
	c.lastConnAttempt = time.Now()

	u, err := url.Parse(c.config.Broker)
	if err != nil || u.Host == "" {
		return errors.Newf("invalid broker URL %q", c.config.Broker).
			Component("mqtt").
			Category(errors.CategoryConfiguration).
			Build()
	}

	host := u.Hostname()
	if net.ParseIP(host) == nil {
		if _, err := net.DefaultResolver.LookupHost(ctx, host); err != nil {
			return errors.New(fmt.Errorf("failed to resolve hostname %s: %w", host, err)).
				Component("mqtt").
				Category(errors.CategoryMQTTConnection).
				Build()
		}
	}

	opts := paho.NewClientOptions()
	opts.AddBroker(c.config.Broker)
	opts.SetClientID(c.config.ClientID)
	opts.SetUsername(c.config.Username)
	opts.SetPassword(c.config.Password)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(false)
	opts.SetWill(c.config.StatusTopic(), StatusOffline, 1, true)
	opts.SetOnConnectHandler(c.onConnect)
	opts.SetConnectionLostHandler(c.onConnectionLost)
	opts.SetReconnectingHandler(c.onReconnecting)

	c.internalClient = c.newPaho(opts)

	token := c.internalClient.Connect()
	if err := c.wait(ctx, token, c.config.ConnectTimeout); err != nil {
		c.incErrors()
		return errors.New(fmt.Errorf("connection error: %w", err)).
			Component("mqtt").
			Category(errors.CategoryMQTTConnection).
			Build()
	}

	c.log.Info("connected to MQTT broker")
	return nil
}

// wait blocks until token completes, ctx ends or timeout passes
func (c *client) wait(ctx context.Context, token paho.Token, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return fmt.Errorf("timeout after %v", timeout)
	}
}

// Publish sends a message using the configured retain flag
func (c *client) Publish(ctx context.Context, topic, payload string) error {
	return c.PublishWithRetain(ctx, topic, payload, c.config.Retain)
}

// PublishWithRetain sends a message at QoS 0
func (c *client) PublishWithRetain(ctx context.Context, topic, payload string, retain bool) error {
	c.mu.Lock()
	internal := c.internalClient
	c.mu.Unlock()

	if internal == nil || !internal.IsConnected() {
		return errors.Newf("not connected to MQTT broker").
			Component("mqtt").
			Category(errors.CategoryMQTTPublish).
			Context("topic", topic).
			Build()
	}

	var timer *metrics.PublishTimer
	if c.metrics != nil {
		timer = c.metrics.StartPublishTimer()
	}

	token := internal.Publish(topic, 0, retain, payload)
	if err := c.wait(ctx, token, c.config.PublishTimeout); err != nil {
		c.incErrors()
		return errors.New(fmt.Errorf("publish failed: %w", err)).
			Component("mqtt").
			Category(errors.CategoryMQTTPublish).
			Context("topic", topic).
			Build()
	}

	if c.metrics != nil {
		timer.ObserveDuration()
		c.metrics.IncrementMessagesDelivered()
		c.metrics.ObserveMessageSize(float64(len(payload)))
	}
	return nil
}

// IsConnected reports whether the broker connection is up
func (c *client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.internalClient != nil && c.internalClient.IsConnected()
}

// Disconnect publishes the offline status and closes the connection
func (c *client) Disconnect() {
	c.mu.Lock()
	internal := c.internalClient
	c.mu.Unlock()
	if internal == nil || !internal.IsConnected() {
		return
	}

	token := internal.Publish(c.config.StatusTopic(), 1, true, StatusOffline)
	token.WaitTimeout(c.config.DisconnectTimeout)
	internal.Disconnect(uint(c.config.DisconnectTimeout.Milliseconds()))
	c.updateStatus(false)
	c.log.Info("disconnected from MQTT broker")
}

func (c *client) onConnect(pc paho.Client) {
	c.updateStatus(true)
	// announce availability; the will clears it on an unclean disconnect
	pc.Publish(c.config.StatusTopic(), 1, true, StatusOnline)
}

func (c *client) onConnectionLost(_ paho.Client, err error) {
	c.log.Warn("connection to MQTT broker lost", logger.Error(err))
	c.updateStatus(false)
	c.incErrors()
}

func (c *client) onReconnecting(paho.Client, *paho.ClientOptions) {
	if c.metrics != nil {
		c.metrics.IncrementReconnectAttempts()
	}
}

func (c *client) updateStatus(connected bool) {
	if c.metrics != nil {
		c.metrics.UpdateConnectionStatus(connected)
	}
}

func (c *client) incErrors() {
	if c.metrics != nil {
		c.metrics.IncrementErrors()
	}
}
