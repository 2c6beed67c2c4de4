package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/sentra-sec/sentra/pkg/constants"
)

// Metrics manages the Prometheus metrics exposed on /metrics. These mirror
// the engine's internal counters for operational dashboards; the engine's own
// status derivation reads its in-memory state, not Prometheus.
type Metrics struct {
	EventsProcessed   *prometheus.CounterVec
	ProcessingLatency *prometheus.HistogramVec
	RateLimitDenials  *prometheus.CounterVec
	AnomaliesDetected prometheus.Counter
	SessionsCreated   prometheus.Counter
	LockoutsActive    prometheus.Gauge
	EnclaveHealth     prometheus.Gauge
}

// NewMetrics creates and registers the Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		EventsProcessed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sentra_events_processed_total",
				Help: "Total number of security events processed.",
			},
			[]string{"type", "severity", "result"},
		),
		ProcessingLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sentra_event_processing_seconds",
				Help:    "Latency of the event processing pipeline.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"type"},
		),
		RateLimitDenials: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sentra_rate_limit_denials_total",
				Help: "Total number of rate limit denials.",
			},
			[]string{"class"},
		),
		AnomaliesDetected: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "sentra_anomalies_detected_total",
				Help: "Total number of behavioral anomalies detected.",
			},
		),
		SessionsCreated: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "sentra_sessions_created_total",
				Help: "Total number of sessions created.",
			},
		),
		LockoutsActive: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "sentra_lockouts_active",
				Help: "Number of principals currently locked out.",
			},
		),
		EnclaveHealth: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "sentra_enclave_health",
				Help: "Mean health score of registered secure enclaves.",
			},
		),
	}
}

// RecordEvent records one processed event and its pipeline latency.
func (m *Metrics) RecordEvent(eventType constants.EventType, severity constants.Severity, result string, duration time.Duration) {
	m.EventsProcessed.WithLabelValues(string(eventType), string(severity), result).Inc()
	m.ProcessingLatency.WithLabelValues(string(eventType)).Observe(duration.Seconds())
}

// RecordRateLimitDenial records a denied request for an operation class.
func (m *Metrics) RecordRateLimitDenial(class constants.RateLimitClass) {
	m.RateLimitDenials.WithLabelValues(string(class)).Inc()
}

// RecordAnomaly records one detected behavioral anomaly.
func (m *Metrics) RecordAnomaly() {
	m.AnomaliesDetected.Inc()
}

// RecordSessionCreated records one created session.
func (m *Metrics) RecordSessionCreated() {
	m.SessionsCreated.Inc()
}

// SetEnclaveHealth publishes the current mean enclave health.
func (m *Metrics) SetEnclaveHealth(score float64) {
	m.EnclaveHealth.Set(score)
}
