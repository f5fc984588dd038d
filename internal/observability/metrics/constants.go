// Package metrics provides the Prometheus collectors of pvpoll components.
package metrics

// Label values
const (
	LabelSuccess = "success"
	LabelFailure = "failure"
	LabelError   = "error"

	LabelDawnCrossing = "dawn"
	LabelDuskCrossing = "dusk"
)

// Histogram bucket configuration
const (
	// BucketStart1ms is the starting bucket for 1ms histograms (1ms to ~1s range).
	BucketStart1ms = 0.001
	// BucketStart10ms is the starting bucket for 10ms histograms (10ms to ~40s range).
	BucketStart10ms = 0.01
	// BucketStart64B is the starting bucket for 64 byte histograms.
	BucketStart64B = 64.0

	// BucketFactor2 is the common exponential growth factor of 2 for histogram buckets.
	BucketFactor2 = 2

	// BucketCount10 defines 10 exponential buckets.
	BucketCount10 = 10
	// BucketCount12 defines 12 exponential buckets.
	BucketCount12 = 12
)
