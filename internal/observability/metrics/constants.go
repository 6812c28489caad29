// Package metrics provides constants used across metric definitions.
package metrics

// Histogram bucket layout shared by the duration metrics.
const (
	// BucketStart1ms is the first bucket upper bound for fast operations.
	BucketStart1ms = 0.001
	// BucketStart100ms is the first bucket upper bound for ranking passes.
	BucketStart100ms = 0.1
	// BucketFactor2 doubles each subsequent bucket.
	BucketFactor2 = 2
	// BucketCount12 spans three orders of magnitude plus change.
	BucketCount12 = 12
	// BucketCount15 spans 1ms to roughly 16s.
	BucketCount15 = 15
)

// Status label values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
	StatusEmpty   = "empty"
	StatusTimeout = "timeout"
)

// Selection source label values.
const (
	SourceDiversity   = "diversity"
	SourceEntropyFill = "entropy_fill"
)

// Operation names recorded through the Recorder interface.
const (
	// OpRankingPass is one complete ranking pass.
	OpRankingPass = "ranking_pass"
	// OpFeatureExtract is feature extraction for one image.
	OpFeatureExtract = "feature_extract"
	// OpSelect is the in-memory selection step of a pass.
	OpSelect = "select"
	// OpReplaceRankings is the transactional ranking write.
	OpReplaceRankings = "replace_rankings"
	// OpPublish is an MQTT ranking-updated publish.
	OpPublish = "publish"
	// OpNotify is an operator notification.
	OpNotify = "notify"
)
