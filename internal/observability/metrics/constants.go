// Package metrics provides constants used across metric definitions.
package metrics

// Operation label values.
const (
	// OpPredict is one prediction upload.
	OpPredict = "predict"
	// OpCapture is a microphone capture from open to stop.
	OpCapture = "capture"
	// OpLocate is a one-shot position lookup.
	OpLocate = "locate"
	// OpHistorySave stores a result in the local history.
	OpHistorySave = "history_save"
	// OpHistoryQuery reads the local history.
	OpHistoryQuery = "history_query"
	// OpHistoryDelete removes a history entry.
	OpHistoryDelete = "history_delete"
)

// Status label values.
const (
	StatusSuccess   = "success"
	StatusError     = "error"
	StatusCancelled = "cancelled"
)

// Histogram bucket configuration constants.
const (
	// BucketStart1ms is the starting bucket for 1ms histograms (1ms to ~1s range).
	BucketStart1ms = 0.001
	// BucketStart10ms is the starting bucket for 10ms histograms (10ms to ~40s range).
	BucketStart10ms = 0.01
	// BucketStart100ms is the starting bucket for 100ms histograms (100ms to ~100s range).
	BucketStart100ms = 0.1
	// BucketStart100B is the starting bucket for 100 byte histograms.
	BucketStart100B = 100.0

	// BucketFactor2 is the common exponential growth factor of 2 for histogram buckets.
	BucketFactor2 = 2
	// BucketFactor10 is the exponential growth factor of 10 for larger ranges.
	BucketFactor10 = 10

	// BucketCount6 defines 6 exponential buckets.
	BucketCount6 = 6
	// BucketCount10 defines 10 exponential buckets.
	BucketCount10 = 10
	// BucketCount12 defines 12 exponential buckets.
	BucketCount12 = 12
)
