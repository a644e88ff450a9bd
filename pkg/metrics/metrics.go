// Package metrics defines the Prometheus metric collectors used by the geo
// indexer and exposes an HTTP handler for scraping.
package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	apperrors "github.com/Adithya-Monish-Kumar-K/Geo-Search-Index/pkg/errors"
)

// Metrics holds all Prometheus collectors for the indexer. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	DocsIndexedTotal     prometheus.Counter
	DocsDeindexedTotal   prometheus.Counter
	DocsSkippedTotal     prometheus.Counter
	OperationErrorsTotal *prometheus.CounterVec
	OperationLatency     *prometheus.HistogramVec
	EventsConsumedTotal  *prometheus.CounterVec
	EventRetriesTotal    *prometheus.CounterVec
	CircuitBreakerState  *prometheus.GaugeVec
}

// New creates all metrics and registers them with the default registry.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer creates all metrics and registers them with reg.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		DocsIndexedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "geoindex_docs_indexed_total",
				Help: "Total documents indexed.",
			},
		),
		DocsDeindexedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "geoindex_docs_deindexed_total",
				Help: "Total documents removed from the index.",
			},
		),
		DocsSkippedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "geoindex_docs_skipped_total",
				Help: "Documents ignored at index time because they have no name.",
			},
		),
		OperationErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "geoindex_operation_errors_total",
				Help: "Failed index operations by operation and error kind.",
			},
			[]string{"op", "kind"},
		),
		OperationLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "geoindex_operation_duration_seconds",
				Help:    "Index and deindex latency in seconds.",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"op"},
		),
		EventsConsumedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "geoindex_events_consumed_total",
				Help: "Document events consumed from Kafka by operation and result.",
			},
			[]string{"op", "result"},
		),
		EventRetriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "geoindex_event_retries_total",
				Help: "Backoff retries of document events by operation.",
			},
			[]string{"op"},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open).",
			},
			[]string{"name"},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.DocsIndexedTotal,
		m.DocsDeindexedTotal,
		m.DocsSkippedTotal,
		m.OperationErrorsTotal,
		m.OperationLatency,
		m.EventsConsumedTotal,
		m.EventRetriesTotal,
		m.CircuitBreakerState,
	)

	return m
}

// ObserveOperation records the latency and outcome of one index ("index")
// or deindex ("deindex") call.
func (m *Metrics) ObserveOperation(op string, start time.Time, err error) {
	if m == nil {
		return
	}
	m.OperationLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil {
		m.OperationErrorsTotal.WithLabelValues(op, errorKind(err)).Inc()
		return
	}
	switch op {
	case "index":
		m.DocsIndexedTotal.Inc()
	case "deindex":
		m.DocsDeindexedTotal.Inc()
	}
}

// DocumentSkipped counts a nameless document.
func (m *Metrics) DocumentSkipped() {
	if m == nil {
		return
	}
	m.DocsSkippedTotal.Inc()
}

// EventConsumed counts one Kafka event.
func (m *Metrics) EventConsumed(op, result string) {
	if m == nil {
		return
	}
	m.EventsConsumedTotal.WithLabelValues(op, result).Inc()
}

// EventRetried counts one backoff retry of a document event.
func (m *Metrics) EventRetried(op string) {
	if m == nil {
		return
	}
	m.EventRetriesTotal.WithLabelValues(op).Inc()
}

// SetBreakerState publishes a circuit breaker state.
func (m *Metrics) SetBreakerState(name string, state int) {
	if m == nil {
		return
	}
	m.CircuitBreakerState.WithLabelValues(name).Set(float64(state))
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, apperrors.ErrInvalidDocument):
		return "invalid_document"
	case errors.Is(err, apperrors.ErrStorageUnavailable):
		return "storage"
	case errors.Is(err, apperrors.ErrTimeout):
		return "timeout"
	default:
		return "other"
	}
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
