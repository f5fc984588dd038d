package mqtt

// Home Assistant MQTT discovery.
// See: https://www.home-assistant.io/integrations/mqtt/#mqtt-discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/solarwindow/pvpoll/internal/logger"
)

// Sensor type constants
const (
	SensorPower         = "power"
	SensorDailyEnergy   = "daily_energy"
	SensorMonthlyEnergy = "monthly_energy"
	SensorYearlyEnergy  = "yearly_energy"
)

const deviceIDPrefix = "pvpoll"

// AllSensorTypes lists all sensor types for iteration (e.g., during removal)
var AllSensorTypes = []string{
	SensorPower,
	SensorDailyEnergy,
	SensorMonthlyEnergy,
	SensorYearlyEnergy,
}

// Home Assistant requires IDs to contain only [a-zA-Z0-9_-].
var idSanitizer = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

// SanitizeID makes id usable in topics and entity IDs
func SanitizeID(id string) string {
	sanitized := idSanitizer.ReplaceAllString(id, "_")
	for strings.Contains(sanitized, "__") {
		sanitized = strings.ReplaceAll(sanitized, "__", "_")
	}
	sanitized = strings.Trim(sanitized, "_")
	if sanitized == "" {
		sanitized = "unknown"
	}
	return sanitized
}

// DiscoveryPayload represents a Home Assistant MQTT discovery message.
type DiscoveryPayload struct {
	Name                string           `json:"name"`
	UniqueID            string           `json:"unique_id"`
	StateTopic          string           `json:"state_topic"`
	ValueTemplate       string           `json:"value_template,omitempty"`
	UnitOfMeasurement   string           `json:"unit_of_measurement,omitempty"`
	DeviceClass         string           `json:"device_class,omitempty"`
	StateClass          string           `json:"state_class,omitempty"`
	Icon                string           `json:"icon,omitempty"`
	EntityCategory      string           `json:"entity_category,omitempty"`
	PayloadOn           string           `json:"payload_on,omitempty"`
	PayloadOff          string           `json:"payload_off,omitempty"`
	PayloadAvailable    string           `json:"payload_available,omitempty"`
	PayloadNotAvailable string           `json:"payload_not_available,omitempty"`
	AvailabilityTopic   string           `json:"availability_topic,omitempty"`
	Device              DiscoveryDevice  `json:"device"`
	Origin              *DiscoveryOrigin `json:"origin,omitempty"`
}

// DiscoveryDevice represents the device information in a discovery payload.
type DiscoveryDevice struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Manufacturer string   `json:"manufacturer"`
	Model        string   `json:"model"`
	SWVersion    string   `json:"sw_version,omitempty"`
}

// DiscoveryOrigin identifies the software creating the discovery message.
type DiscoveryOrigin struct {
	Name       string `json:"name"`
	SWVersion  string `json:"sw_version,omitempty"`
	SupportURL string `json:"support_url,omitempty"`
}

// DiscoveryConfig holds configuration for generating discovery payloads.
type DiscoveryConfig struct {
	DiscoveryPrefix string // default homeassistant
	BaseTopic       string // topic readings are published to
	DeviceName      string
	NodeID          string // typically the SolarEdge site id
	Version         string
}

// Publisher publishes Home Assistant discovery messages.
type Publisher struct {
	client Client
	config DiscoveryConfig
}

// NewDiscoveryPublisher creates a new discovery publisher.
func NewDiscoveryPublisher(client Client, config *DiscoveryConfig) *Publisher {
	cfg := *config
	if cfg.DiscoveryPrefix == "" {
		cfg.DiscoveryPrefix = "homeassistant"
	}
	if cfg.DeviceName == "" {
		cfg.DeviceName = "pvpoll"
	}
	return &Publisher{client: client, config: cfg}
}

type sensorSpec struct {
	kind        string
	name        string
	field       string
	unit        string
	deviceClass string
	stateClass  string
	icon        string
}

var sensorSpecs = []sensorSpec{
	{SensorPower, "Current Power", "currentPower", "W", "power", "measurement", "mdi:solar-power"},
	{SensorDailyEnergy, "Energy Today", "dailyEnergy", "Wh", "energy", "total_increasing", "mdi:solar-power-variant"},
	{SensorMonthlyEnergy, "Energy This Month", "monthlyEnergy", "Wh", "energy", "total_increasing", "mdi:calendar-month"},
	{SensorYearlyEnergy, "Energy This Year", "yearlyEnergy", "Wh", "energy", "total_increasing", "mdi:calendar"},
}

// PublishDiscovery publishes the availability sensor and one sensor per
// reading field. It continues past failures and returns the first error.
func (p *Publisher) PublishDiscovery(ctx context.Context) error {
	log := GetLogger()
	nodeID := SanitizeID(p.config.NodeID)
	log.Info("publishing Home Assistant discovery messages",
		logger.String("discovery_prefix", p.config.DiscoveryPrefix),
		logger.String("node_id", nodeID))

	device := DiscoveryDevice{
		Identifiers:  []string{p.deviceID(nodeID)},
		Name:         p.config.DeviceName,
		Manufacturer: "pvpoll",
		Model:        "PV Poller",
		SWVersion:    p.config.Version,
	}
	statusTopic := p.config.BaseTopic + "/status"

	if err := p.publishPayload(ctx, p.statusTopic(nodeID), &DiscoveryPayload{
		Name:           "Status",
		UniqueID:       p.deviceID(nodeID) + "_status",
		StateTopic:     statusTopic,
		DeviceClass:    "connectivity",
		EntityCategory: "diagnostic",
		PayloadOn:      StatusOnline,
		PayloadOff:     StatusOffline,
		Device:         device,
		Origin:         p.defaultOrigin(),
	}); err != nil {
		log.Error("failed to publish status discovery", logger.Error(err))
		return err
	}

	var firstErr error
	for _, spec := range sensorSpecs {
		payload := &DiscoveryPayload{
			Name:                spec.name,
			UniqueID:            fmt.Sprintf("%s_%s", p.deviceID(nodeID), spec.kind),
			StateTopic:          p.config.BaseTopic,
			ValueTemplate:       fmt.Sprintf("{{ value_json.%s if value_json.%s is not none else this.state }}", spec.field, spec.field),
			UnitOfMeasurement:   spec.unit,
			DeviceClass:         spec.deviceClass,
			StateClass:          spec.stateClass,
			Icon:                spec.icon,
			AvailabilityTopic:   statusTopic,
			PayloadAvailable:    StatusOnline,
			PayloadNotAvailable: StatusOffline,
			Device:              device,
			Origin:              p.defaultOrigin(),
		}
		if err := p.publishPayload(ctx, p.sensorTopic(nodeID, spec.kind), payload); err != nil {
			log.Error("failed to publish sensor discovery",
				logger.String("sensor", spec.kind),
				logger.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	if firstErr != nil {
		return fmt.Errorf("failed to publish discovery for one or more sensors: %w", firstErr)
	}
	return nil
}

// RemoveDiscovery publishes empty retained payloads to remove all entries
func (p *Publisher) RemoveDiscovery(ctx context.Context) {
	log := GetLogger()
	nodeID := SanitizeID(p.config.NodeID)

	if err := p.client.PublishWithRetain(ctx, p.statusTopic(nodeID), "", true); err != nil {
		log.Warn("failed to remove status discovery", logger.Error(err))
	}
	for _, kind := range AllSensorTypes {
		topic := p.sensorTopic(nodeID, kind)
		if err := p.client.PublishWithRetain(ctx, topic, "", true); err != nil {
			log.Warn("failed to remove sensor discovery",
				logger.String("topic", topic),
				logger.Error(err))
		}
	}
}

func (p *Publisher) publishPayload(ctx context.Context, topic string, payload *DiscoveryPayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal discovery payload: %w", err)
	}
	GetLogger().Debug("publishing discovery message",
		logger.String("topic", topic),
		logger.Int("payload_size", len(data)))

	// discovery messages must be retained
	return p.client.PublishWithRetain(ctx, topic, string(data), true)
}

func (p *Publisher) statusTopic(nodeID string) string {
	return fmt.Sprintf("%s/binary_sensor/%s/status/config", p.config.DiscoveryPrefix, nodeID)
}

func (p *Publisher) sensorTopic(nodeID, kind string) string {
	return fmt.Sprintf("%s/sensor/%s/%s_%s/config", p.config.DiscoveryPrefix, nodeID, nodeID, kind)
}

func (p *Publisher) defaultOrigin() *DiscoveryOrigin {
	return &DiscoveryOrigin{
		Name:       "pvpoll",
		SWVersion:  p.config.Version,
		SupportURL: "https://github.com/solarwindow/pvpoll",
	}
}

func (p *Publisher) deviceID(nodeID string) string {
	return fmt.Sprintf("%s_%s", deviceIDPrefix, nodeID)
}
