// conf/validate.go settings validation
package conf

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/solarwindow/pvpoll/internal/errors"
)

// ValidationError collects every problem found in a settings tree
type ValidationError struct {
	Errors []string
}

func (ve ValidationError) Error() string {
	return fmt.Sprintf("validation errors: %s", strings.Join(ve.Errors, "; "))
}

var (
	sunriseProviders = []string{"metno", "astral", "none"}
	sunriseFallbacks = []string{"astral", "none", ""}
)

// ValidateSettings checks ranges and enumerations. Missing SolarEdge
// credentials are allowed here; the run command enforces them.
func ValidateSettings(s *Settings) error {
	var ve ValidationError

	if s.Location.Latitude < -90 || s.Location.Latitude > 90 {
		ve.Errors = append(ve.Errors, fmt.Sprintf("location.latitude must be between -90 and 90, got %g", s.Location.Latitude))
	}
	if s.Location.Longitude < -180 || s.Location.Longitude > 180 {
		ve.Errors = append(ve.Errors, fmt.Sprintf("location.longitude must be between -180 and 180, got %g", s.Location.Longitude))
	}
	if _, err := s.TimeLocation(); err != nil {
		ve.Errors = append(ve.Errors, fmt.Sprintf("location.timezone %q is not a known timezone", s.Location.Timezone))
	}

	if !slices.Contains(sunriseProviders, s.Sunrise.Provider) {
		ve.Errors = append(ve.Errors, fmt.Sprintf("sunrise.provider must be one of %v, got %q", sunriseProviders, s.Sunrise.Provider))
	}
	if !slices.Contains(sunriseFallbacks, s.Sunrise.Fallback) {
		ve.Errors = append(ve.Errors, fmt.Sprintf("sunrise.fallback must be astral or none, got %q", s.Sunrise.Fallback))
	}
	if s.Sunrise.Provider == "metno" && s.Sunrise.UserAgent == "" {
		ve.Errors = append(ve.Errors, "sunrise.useragent is required by the met.no API")
	}

	if s.Budget.Daily <= 0 {
		ve.Errors = append(ve.Errors, fmt.Sprintf("budget.daily must be positive, got %d", s.Budget.Daily))
	}

	checkPositive := func(name string, d time.Duration) {
		if d <= 0 {
			ve.Errors = append(ve.Errors, fmt.Sprintf("%s must be positive, got %s", name, d))
		}
	}
	checkPositive("scheduler.fetchtimeout", s.Scheduler.FetchTimeout)
	checkPositive("scheduler.followupinterval", s.Scheduler.FollowupInterval)
	checkPositive("scheduler.pauseduration", s.Scheduler.PauseDuration)
	if s.Scheduler.FailureThreshold <= 0 {
		ve.Errors = append(ve.Errors, fmt.Sprintf("scheduler.failurethreshold must be positive, got %d", s.Scheduler.FailureThreshold))
	}

	if s.MQTT.Enabled && (s.MQTT.Broker == "" || s.MQTT.Topic == "") {
		ve.Errors = append(ve.Errors, "mqtt.broker and mqtt.topic are required when mqtt is enabled")
	}
	if s.Sentry.Enabled && s.Sentry.DSN == "" {
		ve.Errors = append(ve.Errors, "sentry.dsn is required when sentry is enabled")
	}
	if s.Budget.Persist && s.Database.Path == "" {
		ve.Errors = append(ve.Errors, "database.path is required when budget.persist is enabled")
	}

	if len(ve.Errors) > 0 {
		return errors.New(ve).
			Component("conf").
			Category(errors.CategoryValidation).
			Context("error_count", len(ve.Errors)).
			Build()
	}
	return nil
}

// RequireSolarEdge reports whether the metric fetch credentials are present
func (s *Settings) RequireSolarEdge() error {
	if s.SolarEdge.SiteID == "" || s.SolarEdge.APIKey == "" {
		return errors.Newf("solaredge.siteid and solaredge.apikey must be set").
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}
	return nil
}
