// Package backoff tracks consecutive fetch failures and decides when the
// scheduler must pause instead of polling at its phase interval.
package backoff

import "time"

const (
	// DefaultThreshold is the number of consecutive failures that triggers a pause
	DefaultThreshold = 5
	// DefaultPause is the length of a forced pause
	DefaultPause = 15 * time.Minute
)

// Kind is the decision taken after a result
type Kind int

const (
	// Continue means poll at the normal interval
	Continue Kind = iota
	// Pause means wait Action.Delay before the next attempt
	Pause
)

func (k Kind) String() string {
	if k == Pause {
		return "pause"
	}
	return "continue"
}

// Action is the outcome of Policy.OnResult
type Action struct {
	Kind  Kind
	Delay time.Duration // set for Pause
}

// Policy counts consecutive failures. The counter resets only on success, so
// once the threshold is reached every further failure pauses again. A Policy
// is owned by one goroutine.
type Policy struct {
	threshold int
	pause     time.Duration
	failures  int
}

// New returns a Policy; non-positive arguments select the defaults
func New(threshold int, pause time.Duration) *Policy {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if pause <= 0 {
		pause = DefaultPause
	}
	return &Policy{threshold: threshold, pause: pause}
}

// OnResult records one fetch outcome
func (p *Policy) OnResult(success bool) Action {
	if success {
		p.failures = 0
		return Action{Kind: Continue}
	}
	p.failures++
	if p.failures >= p.threshold {
		return Action{Kind: Pause, Delay: p.pause}
	}
	return Action{Kind: Continue}
}

// ConsecutiveFailures returns the current failure streak
func (p *Policy) ConsecutiveFailures() int {
	return p.failures
}

// Threshold returns the failure count that triggers a pause
func (p *Policy) Threshold() int {
	return p.threshold
}
