package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	apperrors "github.com/jwalitptl/dental-verify/pkg/errors"
)

// Metrics holds all application metrics
type Metrics struct {
	// Verification metrics
	Verifications       *prometheus.CounterVec
	AuditWriteFailures  prometheus.Counter
	RecomputeUpdated    prometheus.Counter
	RecomputeNearExpiry prometheus.Gauge
	RecomputeDuration   prometheus.Histogram

	// Backend metrics
	StoreOperations *prometheus.CounterVec
	StoreLatency    *prometheus.HistogramVec

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPLatency  *prometheus.HistogramVec
}

// NewMetrics creates all application metrics and registers them with reg.
// Tests pass prometheus.NewRegistry() so repeated construction does not
// collide with the default registry.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Verifications: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "verifications_total",
			Help:      "Total number of license verifications",
		}, []string{"method", "outcome"}),
		AuditWriteFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_write_failures_total",
			Help:      "Total number of verification attempts that could not be recorded",
		}),
		RecomputeUpdated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recompute_updated_total",
			Help:      "Total number of clinics whose status was changed by a recompute",
		}),
		RecomputeNearExpiry: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "recompute_near_expiry",
			Help:      "Clinics expiring within the warning window at the last recompute",
		}),
		RecomputeDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "recompute_duration_seconds",
			Help:      "Time spent recomputing license statuses",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}),

		StoreOperations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_operations_total",
			Help:      "Total number of requests made to a networked backend",
		}, []string{"backend", "operation", "status"}),
		StoreLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "store_operation_duration_seconds",
			Help:      "Duration of requests made to a networked backend",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"backend", "operation"}),

		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests served",
		}, []string{"method", "route", "status"}),
		HTTPLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// ObserveStore records one backend call. A nil receiver is a no-op so
// clients can run without metrics.
func (m *Metrics) ObserveStore(backend, operation, status string, started time.Time) {
	if m == nil {
		return
	}
	m.StoreOperations.WithLabelValues(backend, operation, status).Inc()
	m.StoreLatency.WithLabelValues(backend, operation).Observe(time.Since(started).Seconds())
}

func (m *Metrics) ObserveVerification(method, outcome string) {
	if m == nil {
		return
	}
	m.Verifications.WithLabelValues(method, outcome).Inc()
}

func (m *Metrics) AuditFailed() {
	if m == nil {
		return
	}
	m.AuditWriteFailures.Inc()
}

func (m *Metrics) ObserveRecompute(updated, nearExpiry int, started time.Time) {
	if m == nil {
		return
	}
	m.RecomputeUpdated.Add(float64(updated))
	m.RecomputeNearExpiry.Set(float64(nearExpiry))
	m.RecomputeDuration.Observe(time.Since(started).Seconds())
}

// StatusLabel buckets a call result for the status label.
func StatusLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case apperrors.IsNotFound(err):
		return "not_found"
	case apperrors.IsUnavailable(err):
		return "unavailable"
	default:
		return "error"
	}
}
