// Package mqtt publishes PV readings and Home Assistant discovery messages
// to an MQTT broker.
package mqtt

import (
	"context"
	"time"

	"github.com/solarwindow/pvpoll/internal/logger"
)

// Client defines the MQTT client operations used by pvpoll.
type Client interface {
	// Connect attempts to connect to the MQTT broker.
	Connect(ctx context.Context) error

	// Publish sends a message to topic using the configured retain flag.
	Publish(ctx context.Context, topic, payload string) error

	// PublishWithRetain sends a message with an explicit retain flag.
	PublishWithRetain(ctx context.Context, topic, payload string, retain bool) error

	// IsConnected reports whether the broker connection is up.
	IsConnected() bool

	// Disconnect closes the connection to the MQTT broker.
	Disconnect()
}

// Config holds the configuration for the MQTT client.
type Config struct {
	Broker   string
	ClientID string
	Username string
	Password string
	Topic    string // base topic for readings
	Retain   bool   // retain readings at the broker

	ReconnectCooldown time.Duration
	ConnectTimeout    time.Duration
	PublishTimeout    time.Duration
	DisconnectTimeout time.Duration
}

// DefaultConfig returns a Config with reasonable default values
func DefaultConfig() Config {
	return Config{
		ClientID:          "pvpoll",
		Topic:             "pvpoll",
		ReconnectCooldown: 5 * time.Second,
		ConnectTimeout:    30 * time.Second,
		PublishTimeout:    10 * time.Second,
		DisconnectTimeout: 250 * time.Millisecond,
	}
}

// StatusTopic is where the availability of pvpoll is published
func (c Config) StatusTopic() string {
	return c.Topic + "/status"
}

// Availability payloads
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// GetLogger returns the mqtt module logger
func GetLogger() logger.Logger {
	return logger.Global().Module("mqtt")
}
