// Package telemetry reports enhanced errors to Sentry. Reporting is opt-in and
// every message is scrubbed of URLs, API keys and secrets before it is sent.
package telemetry

import (
	"fmt"
	"runtime"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/patrickmn/go-cache"

	"github.com/solarwindow/pvpoll/internal/errors"
	"github.com/solarwindow/pvpoll/internal/logger"
)

// DefaultDedupWindow suppresses repeats of the same error within this period
const DefaultDedupWindow = 5 * time.Minute

// Config configures the reporter
type Config struct {
	Enabled     bool
	DSN         string
	Release     string
	Environment string
	DedupWindow time.Duration
	// Transport replaces the HTTP transport, used by tests
	Transport sentry.Transport
}

// Reporter implements errors.TelemetryReporter on a private Sentry hub
type Reporter struct {
	hub     *sentry.Hub
	enabled bool
	seen    *cache.Cache
	log     logger.Logger
}

// GetLogger returns the telemetry module logger
func GetLogger() logger.Logger {
	return logger.Global().Module("telemetry")
}

// New returns a Reporter. A disabled config yields a Reporter that drops
// everything.
func New(cfg Config) (*Reporter, error) {
	r := &Reporter{log: GetLogger()}
	if !cfg.Enabled {
		r.log.Info("error telemetry is disabled (opt-in required)")
		return r, nil
	}
	if cfg.DSN == "" && cfg.Transport == nil {
		return nil, errors.Newf("sentry DSN is required when telemetry is enabled").
			Component("telemetry").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if cfg.DedupWindow <= 0 {
		cfg.DedupWindow = DefaultDedupWindow
	}
	if cfg.Environment == "" {
		cfg.Environment = "production"
	}

	client, err := sentry.NewClient(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Transport:        cfg.Transport,
		SampleRate:       1.0,
		AttachStacktrace: false,
		Environment:      cfg.Environment,
		Release:          cfg.Release,
		ServerName:       "",
		BeforeSend:       applyPrivacyFilters,
	})
	if err != nil {
		return nil, errors.New(err).
			Component("telemetry").
			Category(errors.CategoryConfiguration).
			Context("operation", "sentry_init").
			Build()
	}

	scope := sentry.NewScope()
	scope.SetTag("os", runtime.GOOS)
	scope.SetTag("arch", runtime.GOARCH)

	r.hub = sentry.NewHub(client, scope)
	r.enabled = true
	r.seen = cache.New(cfg.DedupWindow, 2*cfg.DedupWindow)
	r.log.Info("error telemetry enabled", logger.String("environment", cfg.Environment))
	return r, nil
}

// Install makes r the process-wide reporter for built errors
func (r *Reporter) Install() {
	errors.SetTelemetryReporter(r)
}

// IsEnabled implements errors.TelemetryReporter
func (r *Reporter) IsEnabled() bool {
	return r != nil && r.enabled
}

// ReportError implements errors.TelemetryReporter
func (r *Reporter) ReportError(ee *errors.EnhancedError) {
	if !r.IsEnabled() || ee == nil || ee.IsReported() {
		return
	}
	// transient failures the scheduler already handles are not worth an event
	if !reportable(ee.Category) {
		return
	}

	message := errors.ScrubMessage(fmt.Sprintf("[%s] %s", ee.Category, ee.Err.Error()))
	title := errorTitle(ee)
	if err := r.seen.Add(title+"|"+message, struct{}{}, cache.DefaultExpiration); err != nil {
		ee.MarkReported()
		return
	}

	level := errorLevel(ee.Category)
	r.hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("error_title", title)
		scope.SetTag("component", ee.Component)
		scope.SetTag("category", string(ee.Category))
		scope.SetTag("error_type", fmt.Sprintf("%T", ee.Err))
		for key, value := range ee.GetContext() {
			if s, ok := value.(string); ok {
				value = errors.ScrubMessage(s)
			}
			scope.SetContext(key, map[string]any{"value": value})
		}
		scope.SetLevel(level)
		scope.SetFingerprint([]string{title, ee.Component, string(ee.Category)})

		event := sentry.NewEvent()
		event.Message = message
		event.Level = level
		event.Exception = []sentry.Exception{{Type: title, Value: message}}
		r.hub.CaptureEvent(event)
	})
	ee.MarkReported()
}

// Flush waits up to timeout for queued events to be delivered
func (r *Reporter) Flush(timeout time.Duration) bool {
	if !r.IsEnabled() {
		return true
	}
	return r.hub.Flush(timeout)
}

// errorTitle names the error for grouping, from its component and operation
func errorTitle(ee *errors.EnhancedError) string {
	title := ee.Component
	if op, ok := ee.GetContext()["operation"].(string); ok && op != "" {
		title += "." + op
	}
	return title + " " + string(ee.Category)
}

func reportable(category errors.ErrorCategory) bool {
	switch category {
	case errors.CategoryCancellation, errors.CategoryValidation:
		return false
	default:
		return true
	}
}

func errorLevel(category errors.ErrorCategory) sentry.Level {
	switch category {
	case errors.CategoryNetwork, errors.CategoryHTTP, errors.CategoryTimeout,
		errors.CategoryMQTTConnection, errors.CategoryMQTTPublish, errors.CategoryNotification:
		return sentry.LevelWarning
	case errors.CategoryFileIO, errors.CategoryLimit:
		return sentry.LevelWarning
	default:
		return sentry.LevelError
	}
}

// applyPrivacyFilters strips user, host and runtime data from every event
func applyPrivacyFilters(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
	event.User = sentry.User{}
	event.ServerName = ""
	event.Message = errors.ScrubMessage(event.Message)
	for i := range event.Exception {
		event.Exception[i].Value = errors.ScrubMessage(event.Exception[i].Value)
	}
	if event.Contexts != nil {
		delete(event.Contexts, "device")
		delete(event.Contexts, "os")
		delete(event.Contexts, "runtime")
	}
	if event.Tags != nil {
		delete(event.Tags, "server_name")
		delete(event.Tags, "hostname")
	}
	return event
}
