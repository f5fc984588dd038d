// Package errors provides centralized error handling with optional telemetry integration
package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"maps"
	"sync"
	"time"
)

// ErrorCategory represents the type of error for better categorization
type ErrorCategory string

const (
	CategoryValidation     ErrorCategory = "validation"
	CategoryConfiguration  ErrorCategory = "configuration"
	CategoryNetwork        ErrorCategory = "network"
	CategoryHTTP           ErrorCategory = "http-request"
	CategoryTimeout        ErrorCategory = "timeout"
	CategoryCancellation   ErrorCategory = "cancellation"
	CategoryState          ErrorCategory = "state"
	CategoryLimit          ErrorCategory = "limit"
	CategoryNotFound       ErrorCategory = "not-found"
	CategoryEphemeris      ErrorCategory = "ephemeris"
	CategoryParsing        ErrorCategory = "response-parsing"
	CategoryDatabase       ErrorCategory = "database"
	CategoryFileIO         ErrorCategory = "file-io"
	CategoryMQTTConnection ErrorCategory = "mqtt-connection"
	CategoryMQTTPublish    ErrorCategory = "mqtt-publish"
	CategoryNotification   ErrorCategory = "notification"
	CategoryGeneric        ErrorCategory = "generic"
)

// Priority constants for error prioritization
const (
	PriorityLow      = "low"
	PriorityMedium   = "medium"
	PriorityHigh     = "high"
	PriorityCritical = "critical"
)

// ComponentUnknown is used when no component was provided.
const ComponentUnknown = "unknown"

// EnhancedError wraps an error with additional context and metadata
type EnhancedError struct {
	Err       error          // Original error
	Component string         // Component where error occurred
	Category  ErrorCategory  // Error category for grouping
	Priority  string         // Explicit priority override (optional)
	Context   map[string]any // Additional context data
	Timestamp time.Time      // When the error occurred

	mu       sync.RWMutex
	reported bool
}

// Error implements the error interface
func (ee *EnhancedError) Error() string {
	return ee.Err.Error()
}

// Unwrap implements the error unwrapping interface
func (ee *EnhancedError) Unwrap() error {
	return ee.Err
}

// Is matches another EnhancedError by category, otherwise defers to the wrapped error.
func (ee *EnhancedError) Is(target error) bool {
	if ee2, ok := target.(*EnhancedError); ok {
		return ee.Category == ee2.Category && ee.Err.Error() == ee2.Err.Error()
	}
	return Is(ee.Err, target)
}

// GetContext returns a copy of the error context
func (ee *EnhancedError) GetContext() map[string]any {
	ee.mu.RLock()
	defer ee.mu.RUnlock()

	if ee.Context == nil {
		return nil
	}
	contextCopy := make(map[string]any, len(ee.Context))
	maps.Copy(contextCopy, ee.Context)
	return contextCopy
}

// MarkReported marks this error as reported to telemetry
func (ee *EnhancedError) MarkReported() {
	ee.mu.Lock()
	defer ee.mu.Unlock()
	ee.reported = true
}

// IsReported returns whether this error has been reported
func (ee *EnhancedError) IsReported() bool {
	ee.mu.RLock()
	defer ee.mu.RUnlock()
	return ee.reported
}

// ErrorBuilder provides a fluent interface for creating enhanced errors
type ErrorBuilder struct {
	err       error
	component string
	category  ErrorCategory
	priority  string
	context   map[string]any
}

// New creates a new error with enhanced context
func New(err error) *ErrorBuilder {
	return &ErrorBuilder{err: err}
}

// Newf creates a new formatted error with enhanced context
func Newf(format string, args ...any) *ErrorBuilder {
	return New(fmt.Errorf(format, args...))
}

// Component sets the component name
func (eb *ErrorBuilder) Component(component string) *ErrorBuilder {
	eb.component = component
	return eb
}

// Category sets the error category
func (eb *ErrorBuilder) Category(category ErrorCategory) *ErrorBuilder {
	eb.category = category
	return eb
}

// Priority sets the explicit priority override. Unknown values fall back to medium.
func (eb *ErrorBuilder) Priority(priority string) *ErrorBuilder {
	switch priority {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		eb.priority = priority
	case "":
	default:
		eb.priority = PriorityMedium
	}
	return eb
}

// Context adds context data to the error
func (eb *ErrorBuilder) Context(key string, value any) *ErrorBuilder {
	if eb.context == nil {
		eb.context = make(map[string]any)
	}
	eb.context[key] = value
	return eb
}

// Timing adds operation timing context
func (eb *ErrorBuilder) Timing(operation string, duration time.Duration) *ErrorBuilder {
	eb.Context("operation", operation)
	return eb.Context("duration_ms", duration.Milliseconds())
}

// Build creates the EnhancedError and hands it to the telemetry reporter, if any
func (eb *ErrorBuilder) Build() *EnhancedError {
	if eb.err == nil {
		eb.err = stderrors.New("unspecified error")
	}
	if eb.component == "" {
		eb.component = ComponentUnknown
	}
	if eb.category == "" {
		eb.category = detectCategory(eb.err)
	}

	ee := &EnhancedError{
		Err:       eb.err,
		Component: eb.component,
		Category:  eb.category,
		Priority:  eb.priority,
		Context:   eb.context,
		Timestamp: time.Now(),
	}

	reportToTelemetry(ee)
	return ee
}

// detectCategory infers a category from well known error values
func detectCategory(err error) ErrorCategory {
	var ee *EnhancedError
	switch {
	case stderrors.As(err, &ee):
		return ee.Category
	case stderrors.Is(err, context.DeadlineExceeded):
		return CategoryTimeout
	case stderrors.Is(err, context.Canceled):
		return CategoryCancellation
	default:
		return CategoryGeneric
	}
}

// NewStd creates a standard library error. Use for sentinel values.
func NewStd(text string) error {
	return stderrors.New(text)
}

// Is wraps the standard library errors.Is
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As wraps the standard library errors.As
func As(err error, target any) bool {
	return stderrors.As(err, target)
}

// Unwrap wraps the standard library errors.Unwrap
func Unwrap(err error) error {
	return stderrors.Unwrap(err)
}

// Join wraps the standard library errors.Join
func Join(errs ...error) error {
	return stderrors.Join(errs...)
}

// IsCategory reports whether any EnhancedError in the chain carries the category
func IsCategory(err error, category ErrorCategory) bool {
	var ee *EnhancedError
	for err != nil {
		if !stderrors.As(err, &ee) {
			return false
		}
		if ee.Category == category {
			return true
		}
		err = ee.Err
	}
	return false
}

// IsNotFound reports whether err carries the not-found category
func IsNotFound(err error) bool {
	return IsCategory(err, CategoryNotFound)
}
