package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors exported on /metrics.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	predictions        *prometheus.CounterVec
	validationFailures prometheus.Counter
	alerts             *prometheus.CounterVec
	plateDetections    *prometheus.CounterVec
	requestDuration    *prometheus.HistogramVec
}

// NewMetrics registers the Axle collectors, plus the Go runtime and process
// collectors, on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		predictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "axle_predictions_total",
			Help: "Scored predictions by resulting status.",
		}, []string{"status"}),
		validationFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "axle_validation_failures_total",
			Help: "Prediction requests rejected by input validation.",
		}),
		alerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "axle_alerts_total",
			Help: "Overload alert submissions by outcome.",
		}, []string{"outcome"}),
		plateDetections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "axle_plate_detections_total",
			Help: "Plate detection requests by outcome.",
		}, []string{"outcome"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "axle_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.predictions,
		m.validationFailures,
		m.alerts,
		m.plateDetections,
		m.requestDuration,
	)

	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObservePrediction counts a scored prediction.
func (m *Metrics) ObservePrediction(status string) {
	if m == nil {
		return
	}
	m.predictions.WithLabelValues(status).Inc()
}

// ObserveValidationFailure counts a rejected prediction request.
func (m *Metrics) ObserveValidationFailure() {
	if m == nil {
		return
	}
	m.validationFailures.Inc()
}

// ObserveAlert counts an alert submission outcome.
func (m *Metrics) ObserveAlert(outcome string) {
	if m == nil {
		return
	}
	m.alerts.WithLabelValues(outcome).Inc()
}

// ObservePlateDetection counts a plate detection outcome.
func (m *Metrics) ObservePlateDetection(outcome string) {
	if m == nil {
		return
	}
	m.plateDetections.WithLabelValues(outcome).Inc()
}

// ObserveRequest records the latency of one HTTP request.
func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())
}
