package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// ActiveLearningMetrics contains Prometheus metrics for ranking passes.
type ActiveLearningMetrics struct {
	registry *prometheus.Registry

	passesTotal        *prometheus.CounterVec
	passDuration       prometheus.Histogram
	poolSize           prometheus.Gauge
	selectedImages     prometheus.Gauge
	selectionTotal     *prometheus.CounterVec
	extractionFailures prometheus.Counter
	minorityClasses    prometheus.Gauge
	skippedTriggers    prometheus.Counter
	operationDuration  *prometheus.HistogramVec
	errorsTotal        *prometheus.CounterVec

	// collectors is a slice of all collectors for easier iteration
	collectors []prometheus.Collector
}

// NewActiveLearningMetrics creates and registers ranking metrics
func NewActiveLearningMetrics(registry *prometheus.Registry) (*ActiveLearningMetrics, error) {
	m := &ActiveLearningMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register active learning metrics: %w", err)
	}
	return m, nil
}

func (m *ActiveLearningMetrics) initMetrics() {
	m.passesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wildlens_ranking_passes_total",
			Help: "Total number of ranking passes by outcome",
		},
		[]string{"status"}, // success, empty, error, timeout
	)

	m.passDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "wildlens_ranking_pass_duration_seconds",
		Help:    "Wall time of complete ranking passes",
		Buckets: prometheus.ExponentialBuckets(BucketStart100ms, BucketFactor2, BucketCount12), // 100ms to ~3.4m
	})

	m.poolSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "wildlens_ranking_pool_size",
		Help: "Unlabeled images considered by the last ranking pass",
	})

	m.selectedImages = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "wildlens_ranking_selected_images",
		Help: "Images ranked by the last ranking pass",
	})

	m.selectionTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wildlens_ranking_selection_total",
			Help: "Ranked images by the step that selected them",
		},
		[]string{"source"}, // diversity, entropy_fill
	)

	m.extractionFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "wildlens_ranking_extraction_failures_total",
		Help: "Pool images excluded because feature extraction failed",
	})

	m.minorityClasses = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "wildlens_ranking_minority_classes",
		Help: "Minority classes tracked by the last ranking pass",
	})

	m.skippedTriggers = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "wildlens_ranking_skipped_triggers_total",
		Help: "Scheduler triggers skipped because a pass was still running",
	})

	m.operationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wildlens_ranking_operation_duration_seconds",
			Help:    "Duration of individual ranking pass steps",
			Buckets: prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount15),
		},
		[]string{"operation"},
	)

	m.errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wildlens_ranking_errors_total",
			Help: "Errors during ranking passes by step and category",
		},
		[]string{"operation", "error_type"},
	)

	m.collectors = []prometheus.Collector{
		m.passesTotal,
		m.passDuration,
		m.poolSize,
		m.selectedImages,
		m.selectionTotal,
		m.extractionFailures,
		m.minorityClasses,
		m.skippedTriggers,
		m.operationDuration,
		m.errorsTotal,
	}
}

// Describe implements the Collector interface
func (m *ActiveLearningMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, collector := range m.collectors {
		collector.Describe(ch)
	}
}

// Collect implements the Collector interface
func (m *ActiveLearningMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, collector := range m.collectors {
		collector.Collect(ch)
	}
}

// RecordSelection records pool and selection sizes of a completed pass
func (m *ActiveLearningMetrics) RecordSelection(pool, byDiversity, byEntropyFill, minorityClasses int) {
	m.poolSize.Set(float64(pool))
	m.selectedImages.Set(float64(byDiversity + byEntropyFill))
	m.selectionTotal.WithLabelValues(SourceDiversity).Add(float64(byDiversity))
	m.selectionTotal.WithLabelValues(SourceEntropyFill).Add(float64(byEntropyFill))
	m.minorityClasses.Set(float64(minorityClasses))
}

// RecordExtractionFailures adds n excluded images
func (m *ActiveLearningMetrics) RecordExtractionFailures(n int) {
	if n > 0 {
		m.extractionFailures.Add(float64(n))
	}
}

// RecordSkippedTrigger counts a trigger dropped while a pass was running
func (m *ActiveLearningMetrics) RecordSkippedTrigger() {
	m.skippedTriggers.Inc()
}

// RecordOperation implements Recorder; only pass outcomes are counted
func (m *ActiveLearningMetrics) RecordOperation(operation, status string) {
	if operation == OpRankingPass {
		m.passesTotal.WithLabelValues(status).Inc()
	}
}

// RecordDuration implements Recorder; whole passes go to the pass histogram
func (m *ActiveLearningMetrics) RecordDuration(operation string, seconds float64) {
	if operation == OpRankingPass {
		m.passDuration.Observe(seconds)
		return
	}
	m.operationDuration.WithLabelValues(operation).Observe(seconds)
}

// RecordError implements Recorder
func (m *ActiveLearningMetrics) RecordError(operation, errorType string) {
	m.errorsTotal.WithLabelValues(operation, errorType).Inc()
}
