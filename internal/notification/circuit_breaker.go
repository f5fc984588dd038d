package notification

import (
	"context"
	"sync"
	"time"

	"github.com/solarwindow/pvpoll/internal/errors"
	"github.com/solarwindow/pvpoll/internal/logger"
)

// CircuitState is the state of a circuit breaker
type CircuitState int

const (
	// StateClosed lets every call through
	StateClosed CircuitState = iota
	// StateHalfOpen lets one probe call through
	StateHalfOpen
	// StateOpen rejects calls until the timeout elapses
	StateOpen
)

func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is returned while the breaker rejects calls
var ErrCircuitOpen = errors.NewStd("notification circuit breaker is open")

// CircuitBreakerConfig tunes the breaker; zero values select the defaults
type CircuitBreakerConfig struct {
	MaxFailures int           // consecutive failures before opening
	Timeout     time.Duration // open period before a probe is allowed
}

// DefaultCircuitBreakerConfig returns the default breaker configuration
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{MaxFailures: 3, Timeout: 5 * time.Minute}
}

// CircuitBreaker stops hammering a failing notification service
type CircuitBreaker struct {
	cfg CircuitBreakerConfig
	now func() time.Time

	mu        sync.Mutex
	state     CircuitState
	failures  int
	changedAt time.Time
	probing   bool
}

// NewCircuitBreaker returns a closed breaker
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	def := DefaultCircuitBreakerConfig()
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = def.MaxFailures
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	return &CircuitBreaker{cfg: cfg, now: time.Now, changedAt: time.Now()}
}

// Call runs fn when the breaker allows it and records the outcome.
// Cancellation is not counted as a failure.
func (cb *CircuitBreaker) Call(ctx context.Context, fn func(context.Context) error) error {
	if err := cb.before(); err != nil {
		return errors.New(err).
			Component("notification").
			Category(errors.CategoryLimit).
			Context("state", cb.State().String()).
			Build()
	}
	err := fn(ctx)
	cb.after(err)
	return err
}

func (cb *CircuitBreaker) before() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return nil
	case StateOpen:
		if cb.now().Sub(cb.changedAt) < cb.cfg.Timeout {
			return ErrCircuitOpen
		}
		cb.setState(StateHalfOpen)
		cb.probing = true
		return nil
	default:
		if cb.probing {
			return ErrCircuitOpen
		}
		cb.probing = true
		return nil
	}
}

func (cb *CircuitBreaker) after(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.probing = false
	if err == nil {
		cb.failures = 0
		cb.setState(StateClosed)
		return
	}
	if errors.Is(err, context.Canceled) {
		return
	}

	cb.failures++
	if cb.state == StateHalfOpen || cb.failures >= cb.cfg.MaxFailures {
		cb.setState(StateOpen)
	}
}

func (cb *CircuitBreaker) setState(state CircuitState) {
	if cb.state == state {
		return
	}
	GetLogger().Info("notification circuit breaker state transition",
		logger.String("old_state", cb.state.String()),
		logger.String("new_state", state.String()),
		logger.Int("consecutive_failures", cb.failures))
	cb.state = state
	cb.changedAt = cb.now()
}

// State returns the current state
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Failures returns the consecutive failure count
func (cb *CircuitBreaker) Failures() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failures
}
