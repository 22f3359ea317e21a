// Package metrics provides Prometheus instrumentation for requests made to
// an ACME server.
//
// The following metrics are exposed:
// certmason_http_acme_client_request_count{scheme, host, path, method, status}
// certmason_http_acme_client_request_duration_seconds{scheme, host, path, method, status}
package metrics

import (
	"net/http"
	"time"

	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	// namespace is the namespace for certmason metric names.
	namespace = "certmason"
)

// Metrics is a registry of the collectors tracking ACME client activity.
// A single Metrics instance is shared by every component of one binary.
type Metrics struct {
	log logr.Logger

	registry *prometheus.Registry

	acmeClientRequestCount           *prometheus.CounterVec
	acmeClientRequestDurationSeconds *prometheus.SummaryVec
}

// New creates a Metrics instance with all collectors registered on a fresh
// registry.
func New(log logr.Logger) *Metrics {
	var (
		acmeClientRequestCount = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "acme_client_request_count",
				Help:      "The number of requests made by the ACME client.",
			},
			[]string{"scheme", "host", "path", "method", "status"},
		)

		acmeClientRequestDurationSeconds = prometheus.NewSummaryVec(
			prometheus.SummaryOpts{
				Namespace:  namespace,
				Subsystem:  "http",
				Name:       "acme_client_request_duration_seconds",
				Help:       "The HTTP request latencies in seconds for the ACME client.",
				Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
			},
			[]string{"scheme", "host", "path", "method", "status"},
		)
	)

	registry := prometheus.NewRegistry()
	registry.MustRegister(acmeClientRequestCount)
	registry.MustRegister(acmeClientRequestDurationSeconds)

	return &Metrics{
		log:                              log,
		registry:                         registry,
		acmeClientRequestCount:           acmeClientRequestCount,
		acmeClientRequestDurationSeconds: acmeClientRequestDurationSeconds,
	}
}

// IncrementACMERequestCount increases the ACME client request metric.
func (m *Metrics) IncrementACMERequestCount(labels ...string) {
	m.acmeClientRequestCount.WithLabelValues(labels...).Inc()
}

// ObserveACMERequestDuration adds the given duration to the ACME client
// request duration summary.
func (m *Metrics) ObserveACMERequestDuration(duration time.Duration, labels ...string) {
	m.acmeClientRequestDurationSeconds.WithLabelValues(labels...).Observe(duration.Seconds())
}

// Handler returns an http.Handler serving the registered collectors, for
// mounting on a metrics listener.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
