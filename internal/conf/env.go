// env.go - environment variable configuration and validation
package conf

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// envBinding holds metadata for an environment variable binding
type envBinding struct {
	ConfigKey string
	EnvVar    string
	Validate  func(string) error
}

func getEnvBindings() []envBinding {
	return []envBinding{
		{"location.latitude", "PVPOLL_LATITUDE", validateEnvLatitude},
		{"location.longitude", "PVPOLL_LONGITUDE", validateEnvLongitude},
		{"location.timezone", "PVPOLL_TIMEZONE", validateEnvTimezone},
		{"ephemeris.datafile", "PVPOLL_EPHEMERIS_FILE", nil},
		{"sunrise.provider", "PVPOLL_SUNRISE_PROVIDER", nil},
		{"solaredge.siteid", "SOLAREDGE_SITE_ID", nil},
		{"solaredge.apikey", "SOLAREDGE_API_KEY", nil},
		{"budget.daily", "PVPOLL_DAILY_BUDGET", validateEnvPositiveInt},
		{"budget.persist", "PVPOLL_BUDGET_PERSIST", validateEnvBool},
		{"scheduler.fetchtimeout", "PVPOLL_FETCH_TIMEOUT", validateEnvDuration},
		{"mqtt.enabled", "PVPOLL_MQTT_ENABLED", validateEnvBool},
		{"mqtt.broker", "PVPOLL_MQTT_BROKER", nil},
		{"mqtt.password", "PVPOLL_MQTT_PASSWORD", nil},
		{"api.listen", "PVPOLL_API_LISTEN", nil},
		{"sentry.dsn", "PVPOLL_SENTRY_DSN", nil},
		{"log.level", "PVPOLL_LOG_LEVEL", nil},
	}
}

// bindEnvVars binds every known environment variable and validates the set ones
func bindEnvVars() error {
	viper.SetEnvPrefix("PVPOLL")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	var warnings []string
	for _, binding := range getEnvBindings() {
		if err := viper.BindEnv(binding.ConfigKey, binding.EnvVar); err != nil {
			warnings = append(warnings, fmt.Sprintf("failed to bind %s: %v", binding.EnvVar, err))
			continue
		}
		if binding.Validate == nil {
			continue
		}
		if value := os.Getenv(binding.EnvVar); value != "" {
			if err := binding.Validate(value); err != nil {
				warnings = append(warnings, fmt.Sprintf("invalid %s value '%s': %v", binding.EnvVar, value, err))
			}
		}
	}

	if len(warnings) > 0 {
		return fmt.Errorf("environment variable issues:\n  - %s", strings.Join(warnings, "\n  - "))
	}
	return nil
}

func validateEnvBool(value string) error {
	if _, err := strconv.ParseBool(value); err != nil {
		return fmt.Errorf("must be true/false, 1/0, t/f")
	}
	return nil
}

func validateEnvLatitude(value string) error {
	lat, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("invalid latitude: %w", err)
	}
	if lat < -90 || lat > 90 {
		return fmt.Errorf("latitude must be between -90 and 90, got %g", lat)
	}
	return nil
}

func validateEnvLongitude(value string) error {
	lng, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("invalid longitude: %w", err)
	}
	if lng < -180 || lng > 180 {
		return fmt.Errorf("longitude must be between -180 and 180, got %g", lng)
	}
	return nil
}

func validateEnvTimezone(value string) error {
	if _, err := time.LoadLocation(value); err != nil {
		return fmt.Errorf("unknown timezone: %w", err)
	}
	return nil
}

func validateEnvPositiveInt(value string) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid integer: %w", err)
	}
	if n <= 0 {
		return fmt.Errorf("must be positive, got %d", n)
	}
	return nil
}

func validateEnvDuration(value string) error {
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("invalid duration: %w", err)
	}
	if d <= 0 {
		return fmt.Errorf("must be positive, got %s", d)
	}
	return nil
}
