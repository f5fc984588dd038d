// Package conf loads pvpoll settings from config.yaml, defaults and the environment.
package conf

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/viper"

	"github.com/solarwindow/pvpoll/internal/errors"
	"github.com/solarwindow/pvpoll/internal/logger"
	"github.com/solarwindow/pvpoll/internal/secrets"
)

//go:embed config.yaml
var defaultConfigYAML []byte

// LocationSettings holds the observer position and the civil timezone used
// for calendar-day boundaries.
type LocationSettings struct {
	Latitude  float64 // decimal degrees, north positive
	Longitude float64 // decimal degrees, east positive
	Timezone  string  // IANA timezone name
}

// EphemerisSettings selects the elevation model.
type EphemerisSettings struct {
	Provider string // "analytic"
	DataFile string // optional data file gating availability, empty means always available
}

// SunriseSettings configures the sunrise/sunset source.
type SunriseSettings struct {
	Provider  string        // "metno", "astral" or "none"
	Fallback  string        // secondary source, "astral" or "none"
	BaseURL   string        // met.no sunrise API base
	UserAgent string        // met.no requires an identifying User-Agent
	Timeout   time.Duration // per request
	CacheTTL  time.Duration // per-date response cache
}

// SolarEdgeSettings configures the metric fetch client.
type SolarEdgeSettings struct {
	SiteID  string
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// BudgetSettings configures the daily query budget.
type BudgetSettings struct {
	Daily   int  // queries per calendar day
	Persist bool // keep the daily ledger in the database across restarts
}

// SchedulerSettings tunes the polling state machine.
type SchedulerSettings struct {
	FetchTimeout     time.Duration
	FollowupInterval time.Duration
	PauseDuration    time.Duration
	FailureThreshold int
	StartupFetch     bool
}

// MQTTSettings configures the MQTT metric sink.
type MQTTSettings struct {
	Enabled  bool
	Broker   string
	ClientID string
	Username string
	Password string
	Topic    string
	Retain   bool

	HomeAssistant HomeAssistantSettings
}

// HomeAssistantSettings configures MQTT discovery for Home Assistant.
type HomeAssistantSettings struct {
	Enabled         bool
	DiscoveryPrefix string
	DeviceName      string
}

// APISettings configures the status HTTP API.
type APISettings struct {
	Enabled bool
	Listen  string
}

// DatabaseSettings configures the sqlite ledger.
type DatabaseSettings struct {
	Path string
}

// NotificationSettings lists shoutrrr service URLs for operational alerts.
type NotificationSettings struct {
	URLs []string
}

// SentrySettings configures error telemetry.
type SentrySettings struct {
	Enabled bool
	DSN     string
}

// LogSettings configures logging outputs.
type LogSettings struct {
	Level      string
	File       string
	FileLevel  string
	MaxSize    int // MB before the file rotates, 0 disables rotation
	MaxBackups int
	MaxAge     int // days
}

// Settings is the root configuration.
type Settings struct {
	Debug        bool
	Location     LocationSettings
	Ephemeris    EphemerisSettings
	Sunrise      SunriseSettings
	SolarEdge    SolarEdgeSettings
	Budget       BudgetSettings
	Scheduler    SchedulerSettings
	MQTT         MQTTSettings
	API          APISettings
	Database     DatabaseSettings
	Notification NotificationSettings
	Sentry       SentrySettings
	Log          LogSettings
}

// GetLogger returns the conf module logger
func GetLogger() logger.Logger {
	return logger.Global().Module("conf")
}

var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Load reads configFile (or searches the default paths when empty), applies
// defaults and environment overrides, validates and stores the result.
func Load(configFile string) (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	if err := initViper(configFile); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	settings := &Settings{}
	if err := viper.Unmarshal(settings); err != nil {
		return nil, errors.New(err).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Context("operation", "unmarshal").
			Build()
	}

	if err := resolveSecrets(settings); err != nil {
		return nil, err
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsInstance = settings
	return settings, nil
}

func initViper(configFile string) error {
	setDefaultConfig()

	if err := bindEnvVars(); err != nil {
		return err
	}

	if configFile != "" {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return errors.New(err).
				Component("conf").
				Category(errors.CategoryConfiguration).
				Context("operation", "read_config").
				Context("path", configFile).
				Build()
		}
		return nil
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	paths, err := GetDefaultConfigPaths()
	if err != nil {
		return err
	}
	for _, path := range paths {
		viper.AddConfigPath(path)
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return createDefaultConfig(paths[0])
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}
	return nil
}

// createDefaultConfig writes the embedded config.yaml into dir and reads it back
func createDefaultConfig(dir string) error {
	configPath := filepath.Join(dir, "config.yaml")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("error creating directories for config file: %w", err)
	}
	if err := os.WriteFile(configPath, defaultConfigYAML, 0o600); err != nil {
		return fmt.Errorf("error writing default config file: %w", err)
	}
	GetLogger().Info("created default config file", logger.String("path", configPath))
	return viper.ReadInConfig()
}

// GetDefaultConfigPaths lists the config search directories, most specific first.
func GetDefaultConfigPaths() ([]string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, errors.New(err).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Context("operation", "get_home_directory").
			Build()
	}
	return []string{
		filepath.Join(homeDir, ".config", "pvpoll"),
		".",
		"/etc/pvpoll",
	}, nil
}

// resolveSecrets replaces ${VAR} and file: references in credential fields
func resolveSecrets(s *Settings) error {
	fields := map[string]*string{
		"solaredge.siteid": &s.SolarEdge.SiteID,
		"solaredge.apikey": &s.SolarEdge.APIKey,
		"mqtt.username":    &s.MQTT.Username,
		"mqtt.password":    &s.MQTT.Password,
		"sentry.dsn":       &s.Sentry.DSN,
	}
	for i := range s.Notification.URLs {
		fields[fmt.Sprintf("notification.urls[%d]", i)] = &s.Notification.URLs[i]
	}

	for key, field := range fields {
		value, err := secrets.Resolve(*field)
		if err != nil {
			return errors.New(err).
				Component("conf").
				Category(errors.CategoryConfiguration).
				Context("key", key).
				Build()
		}
		*field = value
	}
	return nil
}

// GetSettings returns the settings loaded by Load, or nil.
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// TimeLocation resolves the configured civil timezone.
func (s *Settings) TimeLocation() (*time.Location, error) {
	if s.Location.Timezone == "" || s.Location.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(s.Location.Timezone)
	if err != nil {
		return nil, errors.New(err).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Context("timezone", s.Location.Timezone).
			Build()
	}
	return loc, nil
}
