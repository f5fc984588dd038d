package backoff

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFiveFailuresPauseOnce(t *testing.T) {
	p := New(0, 0)

	for i := range 4 {
		assert.Equal(t, Action{Kind: Continue}, p.OnResult(false), "failure %d", i+1)
	}
	assert.Equal(t, Action{Kind: Pause, Delay: 15 * time.Minute}, p.OnResult(false))
	assert.Equal(t, 5, p.ConsecutiveFailures())
}

func TestSuccessBeforeThresholdResets(t *testing.T) {
	p := New(5, 15*time.Minute)

	for range 4 {
		p.OnResult(false)
	}
	assert.Equal(t, Continue, p.OnResult(true).Kind)
	assert.Zero(t, p.ConsecutiveFailures())

	for range 4 {
		assert.Equal(t, Continue, p.OnResult(false).Kind)
	}
}

func TestFailuresPastThresholdKeepPausing(t *testing.T) {
	p := New(5, 15*time.Minute)
	for range 5 {
		p.OnResult(false)
	}

	assert.Equal(t, Pause, p.OnResult(false).Kind)
	assert.Equal(t, Pause, p.OnResult(false).Kind)
	assert.Equal(t, 7, p.ConsecutiveFailures())
}

func TestSuccessAfterPauseRearmsThreshold(t *testing.T) {
	p := New(5, 15*time.Minute)
	for range 5 {
		p.OnResult(false)
	}

	assert.Equal(t, Continue, p.OnResult(true).Kind)
	assert.Equal(t, Continue, p.OnResult(false).Kind, "first failure after recovery must not pause")
	assert.Equal(t, 1, p.ConsecutiveFailures())
}

func TestCustomThresholdAndPause(t *testing.T) {
	p := New(2, time.Minute)
	assert.Equal(t, 2, p.Threshold())

	p.OnResult(false)
	assert.Equal(t, Action{Kind: Pause, Delay: time.Minute}, p.OnResult(false))
	assert.Equal(t, "pause", Pause.String())
	assert.Equal(t, "continue", Continue.String())
}
