package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// HTTPMetrics holds the request counters and latency histograms shared by
// every service's HTTP surface.
type HTTPMetrics struct {
	RequestsTotal   *prometheus.CounterVec // labels: route, status
	RequestDuration *prometheus.HistogramVec
}

// NewHTTPMetrics creates and registers HTTP metrics under the given
// namespace with the default Prometheus registry.
func NewHTTPMetrics(namespace string) *HTTPMetrics {
	m := newHTTPMetrics(namespace)
	prometheus.MustRegister(m.RequestsTotal, m.RequestDuration)
	return m
}

// NewHTTPMetricsForTesting creates unregistered HTTP metrics so parallel
// tests do not trip "already registered" panics.
func NewHTTPMetricsForTesting() *HTTPMetrics {
	return newHTTPMetrics("test")
}

func newHTTPMetrics(namespace string) *HTTPMetrics {
	return &HTTPMetrics{
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"route", "status"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Request handling duration by route.",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		}, []string{"route"}),
	}
}

// IngestMetrics holds the counters and histograms for the measurement
// ingest loop.
type IngestMetrics struct {
	MessagesConsumed prometheus.Counter
	RowsStored       prometheus.Counter
	DecodeErrors     prometheus.Counter
	IngestRunning    prometheus.Gauge

	BatchSize     prometheus.Histogram
	BatchDuration prometheus.Histogram
}

// NewIngestMetrics creates and registers ingest metrics with the default
// Prometheus registry.
func NewIngestMetrics(namespace string) *IngestMetrics {
	m := newIngestMetrics(namespace)
	prometheus.MustRegister(
		m.MessagesConsumed,
		m.RowsStored,
		m.DecodeErrors,
		m.IngestRunning,
		m.BatchSize,
		m.BatchDuration,
	)
	return m
}

// NewIngestMetricsForTesting creates unregistered ingest metrics.
func NewIngestMetricsForTesting() *IngestMetrics {
	return newIngestMetrics("test")
}

func newIngestMetrics(namespace string) *IngestMetrics {
	return &IngestMetrics{
		MessagesConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_messages_consumed_total",
			Help:      "Total measurement messages read from the source topic.",
		}),
		RowsStored: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_rows_stored_total",
			Help:      "Total measurement rows appended to the store.",
		}),
		DecodeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_decode_errors_total",
			Help:      "Total messages skipped because they failed decoding or validation.",
		}),
		IngestRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ingest_running",
			Help:      "1 when the ingest loop is active, 0 when shut down.",
		}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ingest_batch_size",
			Help:      "Number of messages per consumed batch.",
			Buckets:   []float64{1, 5, 10, 20, 30, 40, 50, 75, 100},
		}),
		BatchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ingest_batch_duration_seconds",
			Help:      "Duration of a complete consume-validate-store cycle.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		}),
	}
}
