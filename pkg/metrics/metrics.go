package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Collector struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	InFlightGauge   prometheus.Gauge

	SessionsActive       prometheus.Gauge
	SessionsExpired      prometheus.Counter
	SubmissionsTotal     *prometheus.CounterVec
	IngestionsTotal      *prometheus.CounterVec
	UploadsTotal         *prometheus.CounterVec
	UploadsDiscarded     prometheus.Counter
	ExtractionDuration   prometheus.Histogram
	ExtractionBreaker    *prometheus.GaugeVec
	HandoffsTotal        *prometheus.CounterVec
	HandoffBufferDropped prometheus.Counter

	gatherer prometheus.Gatherer
}

// NewCollector registers on the default registry.
func NewCollector(serviceName string) *Collector {
	return NewCollectorWith(serviceName, prometheus.DefaultRegisterer, prometheus.DefaultGatherer)
}

// NewCollectorWith lets tests use a private registry so collectors can be
// created more than once per process.
func NewCollectorWith(serviceName string, reg prometheus.Registerer, g prometheus.Gatherer) *Collector {
	f := promauto.With(reg)

	return &Collector{
		RequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by method, path, and status code.",
		}, []string{"method", "path", "status"}),

		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: serviceName,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency distribution.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"method", "path", "status"}),

		InFlightGauge: f.NewGauge(prometheus.GaugeOpts{
			Namespace: serviceName,
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		}),

		SessionsActive: f.NewGauge(prometheus.GaugeOpts{
			Namespace: serviceName,
			Subsystem: "session",
			Name:      "active",
			Help:      "Sessions currently held in memory.",
		}),

		SessionsExpired: f.NewCounter(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "session",
			Name:      "expired_total",
			Help:      "Sessions closed by the idle sweeper.",
		}),

		SubmissionsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "registration",
			Name:      "submissions_total",
			Help:      "Registration submit attempts by outcome (accepted, invalid, rejected).",
		}, []string{"outcome"}),

		IngestionsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "registration",
			Name:      "image_ingestions_total",
			Help:      "Prescription image reads by trigger and outcome.",
		}, []string{"trigger", "outcome"}),

		UploadsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "dashboard",
			Name:      "uploads_total",
			Help:      "Extraction uploads by trigger and outcome.",
		}, []string{"trigger", "outcome"}),

		UploadsDiscarded: f.NewCounter(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "dashboard",
			Name:      "uploads_superseded_total",
			Help:      "Upload results discarded because a newer upload was already shown.",
		}),

		ExtractionDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: serviceName,
			Subsystem: "extraction",
			Name:      "request_duration_seconds",
			Help:      "Latency of calls to the extraction service.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),

		ExtractionBreaker: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: serviceName,
			Subsystem: "extraction",
			Name:      "breaker_state",
			Help:      "1 for the circuit breaker's current state, 0 otherwise.",
		}, []string{"state"}),

		HandoffsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "handoff",
			Name:      "delivered_total",
			Help:      "Completed registrations delivered per sink.",
		}, []string{"sink", "outcome"}),

		HandoffBufferDropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "handoff",
			Name:      "buffer_dropped_total",
			Help:      "Handoffs dropped due to full buffer. Alert if non-zero.",
		}),

		gatherer: g,
	}
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}
