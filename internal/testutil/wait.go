// Package testutil holds helpers shared by package tests.
package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// Timeouts for asynchronous test operations
const (
	DefaultTestTimeout = 5 * time.Second
	ShortTestTimeout   = time.Second
)

// WaitFor returns the next value received on ch, failing the test after
// timeout
func WaitFor[T any](t *testing.T, ch <-chan T, timeout time.Duration, msg string) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(timeout):
		require.FailNow(t, msg)
		var zero T
		return zero
	}
}
