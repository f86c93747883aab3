package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "musicforge"

// Dispatcher holds the batch processing collectors.
type Dispatcher struct {
	registry prometheus.Gatherer

	JobsTotal         *prometheus.CounterVec
	JobDuration       *prometheus.HistogramVec
	JobsInFlight      prometheus.Gauge
	QueueDepth        prometheus.Gauge
	FallbacksTotal    prometheus.Counter
	MeasurementsTotal *prometheus.CounterVec
	BatchesTotal      prometheus.Counter
}

// New registers the collectors on reg. A nil reg selects a private registry.
func New(reg *prometheus.Registry) *Dispatcher {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)
	return &Dispatcher{
		registry: reg,
		JobsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "jobs_total",
				Help:      "Jobs that reached a terminal state, by status",
			},
			[]string{"status"},
		),
		JobDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "job_duration_seconds",
				Help:      "Wall time from Processing to a terminal state",
				Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
			},
			[]string{"format"},
		),
		JobsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "jobs_in_flight",
				Help:      "Jobs currently Processing",
			},
		),
		QueueDepth: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "queue_depth",
				Help:      "Jobs waiting for a worker",
			},
		),
		FallbacksTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "two_pass_fallbacks_total",
				Help:      "Two-pass jobs that fell back to one-pass normalization",
			},
		),
		MeasurementsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "loudness_measurements_total",
				Help:      "Loudness measurement passes, by result",
			},
			[]string{"result"},
		),
		BatchesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "batches_total",
				Help:      "Batches submitted to the dispatcher",
			},
		),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (d *Dispatcher) Handler() http.Handler {
	if d == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(d.registry, promhttp.HandlerOpts{})
}

// BatchSubmitted counts one submitted batch.
func (d *Dispatcher) BatchSubmitted() {
	if d == nil {
		return
	}
	d.BatchesTotal.Inc()
}

// Queued adjusts the queue depth by delta.
func (d *Dispatcher) Queued(delta int) {
	if d == nil {
		return
	}
	d.QueueDepth.Add(float64(delta))
}

// JobStarted marks one job Processing.
func (d *Dispatcher) JobStarted() {
	if d == nil {
		return
	}
	d.JobsInFlight.Inc()
}

// JobFinished records a terminal job. wasProcessing is false for jobs that
// ended straight from Queued.
func (d *Dispatcher) JobFinished(status, format string, elapsed time.Duration, wasProcessing bool) {
	if d == nil {
		return
	}
	d.JobsTotal.WithLabelValues(status).Inc()
	if wasProcessing {
		d.JobsInFlight.Dec()
		d.JobDuration.WithLabelValues(format).Observe(elapsed.Seconds())
	}
}

// Measured records a measurement pass result ("ok", "timeout", "parse").
func (d *Dispatcher) Measured(result string) {
	if d == nil {
		return
	}
	d.MeasurementsTotal.WithLabelValues(result).Inc()
}

// Fallback counts a two-pass job that encoded with one-pass normalization.
func (d *Dispatcher) Fallback() {
	if d == nil {
		return
	}
	d.FallbacksTotal.Inc()
}
