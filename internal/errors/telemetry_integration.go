// Package errors - telemetry integration (optional)
package errors

import (
	"regexp"
	"sync/atomic"
)

// TelemetryReporter is an interface for reporting errors to telemetry systems
type TelemetryReporter interface {
	ReportError(err *EnhancedError)
	IsEnabled() bool
}

type reporterHolder struct {
	reporter TelemetryReporter
}

var globalTelemetryReporter atomic.Pointer[reporterHolder]

// SetTelemetryReporter sets the global telemetry reporter. Passing nil disables reporting.
func SetTelemetryReporter(reporter TelemetryReporter) {
	if reporter == nil {
		globalTelemetryReporter.Store(nil)
		return
	}
	globalTelemetryReporter.Store(&reporterHolder{reporter: reporter})
}

// GetTelemetryReporter returns the current telemetry reporter
func GetTelemetryReporter() TelemetryReporter {
	h := globalTelemetryReporter.Load()
	if h == nil {
		return nil
	}
	return h.reporter
}

func reportToTelemetry(ee *EnhancedError) {
	r := GetTelemetryReporter()
	if r == nil || !r.IsEnabled() || ee.IsReported() {
		return
	}
	r.ReportError(ee)
}

var (
	urlQueryRegex = regexp.MustCompile(`(https?://[^?\s]+)\?\S*`)
	apiKeyRegex   = regexp.MustCompile(`(?i)api[_-]?key[=:]\S+`)
	tokenRegex    = regexp.MustCompile(`(?i)(token|password|secret)[=:]\S+`)
)

// ScrubMessage removes query strings, API keys and secrets from a message
// before it leaves the process.
func ScrubMessage(message string) string {
	scrubbed := urlQueryRegex.ReplaceAllString(message, "$1?[REDACTED]")
	scrubbed = apiKeyRegex.ReplaceAllString(scrubbed, "[API_KEY_REDACTED]")
	return tokenRegex.ReplaceAllString(scrubbed, "$1=[REDACTED]")
}
