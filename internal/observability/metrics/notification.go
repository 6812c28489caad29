package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Notification outcome label values beyond success and error.
const (
	StatusSuppressed = "suppressed" // dropped by the rate limit
	StatusRejected   = "rejected"   // refused by the open circuit breaker
)

// NotificationMetrics tracks operator notification delivery.
type NotificationMetrics struct {
	registry *prometheus.Registry

	deliveriesTotal  *prometheus.CounterVec
	deliveryDuration prometheus.Histogram
	circuitState     prometheus.Gauge

	collectors []prometheus.Collector
}

// NewNotificationMetrics creates and registers notification metrics.
func NewNotificationMetrics(registry *prometheus.Registry) (*NotificationMetrics, error) {
	m := &NotificationMetrics{registry: registry}
	m.deliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wildlens_notification_deliveries_total",
			Help: "Operator notification deliveries by outcome",
		},
		[]string{"status"},
	)
	m.deliveryDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "wildlens_notification_delivery_duration_seconds",
		Help:    "Time taken to deliver operator notifications",
		Buckets: prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount15),
	})
	m.circuitState = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "wildlens_notification_circuit_state",
		Help: "Notification circuit breaker state (0=closed, 1=half-open, 2=open)",
	})
	m.collectors = []prometheus.Collector{m.deliveriesTotal, m.deliveryDuration, m.circuitState}

	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register notification metrics: %w", err)
	}
	return m, nil
}

// Describe implements the Collector interface
func (m *NotificationMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, collector := range m.collectors {
		collector.Describe(ch)
	}
}

// Collect implements the Collector interface
func (m *NotificationMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, collector := range m.collectors {
		collector.Collect(ch)
	}
}

// RecordDelivery records one delivery attempt across all configured services.
func (m *NotificationMetrics) RecordDelivery(elapsed time.Duration, err error) {
	status := StatusSuccess
	if err != nil {
		status = StatusError
	}
	m.deliveriesTotal.WithLabelValues(status).Inc()
	m.deliveryDuration.Observe(elapsed.Seconds())
}

// RecordDropped counts a notification that was never sent, status is
// StatusSuppressed or StatusRejected.
func (m *NotificationMetrics) RecordDropped(status string) {
	m.deliveriesTotal.WithLabelValues(status).Inc()
}

// UpdateCircuitState sets the circuit breaker state gauge.
func (m *NotificationMetrics) UpdateCircuitState(state int) {
	m.circuitState.Set(float64(state))
}
