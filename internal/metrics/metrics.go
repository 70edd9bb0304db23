// Package metrics exposes Prometheus collectors for the stream, the sink and the HTTP surface.
package metrics

import (
	"errors"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "fraudstream"

var histogramBuckets = []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30}

// Stream records the activity of the publishing loop.
type Stream struct {
	batches       prometheus.Counter
	events        *prometheus.CounterVec
	failures      *prometheus.CounterVec
	lastBatchSize prometheus.Gauge
	running       prometheus.Gauge
	publish       prometheus.Histogram
}

// NewStream registers the loop collectors on reg. A nil reg uses the default registerer.
func NewStream(reg prometheus.Registerer) *Stream {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	return &Stream{
		batches: register(reg, prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_published_total",
			Help:      "Batches fully acknowledged by the broker.",
		})),
		events: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Events acknowledged by the broker, by class label.",
		}, []string{"class"})),
		failures: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "loop_failures_total",
			Help:      "Stream loop terminations, by failing stage.",
		}, []string{"stage"})),
		lastBatchSize: register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_batch_size",
			Help:      "Size of the most recently acknowledged batch.",
		})),
		running: register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stream_running",
			Help:      "1 while the stream loop is active.",
		})),
		publish: register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "publish_duration_seconds",
			Help:      "Time from first send to last acknowledgment of a batch.",
			Buckets:   histogramBuckets,
		})),
	}
}

// BatchPublished records one acknowledged batch.
func (s *Stream) BatchPublished(legit, fraud int, took time.Duration) {
	s.batches.Inc()
	s.events.WithLabelValues("0").Add(float64(legit))
	s.events.WithLabelValues("1").Add(float64(fraud))
	s.lastBatchSize.Set(float64(legit + fraud))
	s.publish.Observe(took.Seconds())
}

// LoopFailed records a loop termination in stage.
func (s *Stream) LoopFailed(stage string) {
	s.failures.WithLabelValues(stage).Inc()
}

// SetRunning mirrors the running flag.
func (s *Stream) SetRunning(running bool) {
	if running {
		s.running.Set(1)
		return
	}
	s.running.Set(0)
}

// Sink records parquet output.
type Sink struct {
	rows  *prometheus.CounterVec
	files *prometheus.CounterVec
}

// NewSink registers the sink collectors on reg. A nil reg uses the default registerer.
func NewSink(reg prometheus.Registerer) *Sink {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	return &Sink{
		rows: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_rows_written_total",
			Help:      "Rows written to parquet files, by grain.",
		}, []string{"grain"})),
		files: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_files_written_total",
			Help:      "Parquet files written, by grain.",
		}, []string{"grain"})),
	}
}

// FileWritten records one parquet file holding rows rows.
func (s *Sink) FileWritten(grain string, rows int) {
	s.files.WithLabelValues(grain).Inc()
	s.rows.WithLabelValues(grain).Add(float64(rows))
}

// HTTP records request counts and latencies.
type HTTP struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

// NewHTTP registers the request collectors on reg. A nil reg uses the default registerer.
func NewHTTP(reg prometheus.Registerer) *HTTP {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	return &HTTP{
		requests: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Count of processed HTTP requests.",
		}, []string{"method", "route", "status"})),
		latency: register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Latency distribution of HTTP handlers.",
			Buckets:   histogramBuckets,
		}, []string{"method", "route", "status"})),
	}
}

// Observe records one served request.
func (h *HTTP) Observe(method, route string, status int, took time.Duration) {
	labels := prometheus.Labels{"method": method, "route": route, "status": strconv.Itoa(status)}
	h.requests.With(labels).Inc()
	h.latency.With(labels).Observe(took.Seconds())
}

// register returns the collector already registered under the same descriptor when there is one.
func register[T prometheus.Collector](reg prometheus.Registerer, c T) T {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing
			}
		}
	}
	return c
}
