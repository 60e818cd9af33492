// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	JobsEnqueued  *prometheus.CounterVec
	JobsProcessed *prometheus.CounterVec
	JobDuration   *prometheus.HistogramVec

	// Notifications by outcome: sent, failed, skipped.
	Notifications *prometheus.CounterVec

	ConcurrencyRetries prometheus.Counter
}

// New registers the collectors on reg. The same registry backs /metrics.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "collab_http_requests_total",
			Help: "HTTP requests by method and status code",
		}, []string{"method", "status"}),

		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "collab_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),

		JobsEnqueued: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "collab_jobs_enqueued_total",
			Help: "Background jobs enqueued by kind",
		}, []string{"kind"}),

		JobsProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "collab_jobs_processed_total",
			Help: "Background jobs processed by kind and result",
		}, []string{"kind", "result"}),

		JobDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "collab_job_duration_seconds",
			Help:    "Background job handler latency in seconds",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"kind"}),

		Notifications: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "collab_notifications_total",
			Help: "Notification dispatch attempts by outcome",
		}, []string{"outcome"}),

		ConcurrencyRetries: factory.NewCounter(prometheus.CounterOpts{
			Name: "collab_concurrency_retries_total",
			Help: "Units of work retried after a concurrent update conflict",
		}),
	}
}

// NewNop returns collectors registered on a throwaway registry.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}

func (m *Metrics) ObserveHTTP(method string, status int, seconds float64) {
	m.HTTPRequests.WithLabelValues(method, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method).Observe(seconds)
}
