package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "imlp"

// Recorder collects pipeline and serving metrics.
// A nil *Recorder is valid and records nothing.
type Recorder struct {
	gatherer prometheus.Gatherer

	ingestTotal     *prometheus.CounterVec
	rowsWritten     *prometheus.CounterVec
	stageDuration   *prometheus.HistogramVec
	predictions     *prometheus.CounterVec
	inferenceErrors *prometheus.CounterVec
	httpLatency     *prometheus.HistogramVec
	publishTotal    *prometheus.CounterVec
}

// New registers the recorder's collectors on reg.
// Pass prometheus.NewRegistry() in tests to avoid duplicate registration.
func New(reg *prometheus.Registry) *Recorder {
	factory := promauto.With(reg)

	return &Recorder{
		gatherer: reg,
		ingestTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ingest_entities_total",
				Help:      "Ingestion outcomes per source and result",
			},
			[]string{"source", "result"},
		),
		rowsWritten: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rows_written_total",
				Help:      "Rows written per table",
			},
			[]string{"table"},
		),
		stageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "stage_duration_seconds",
				Help:      "Duration of pipeline stages",
				Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900},
			},
			[]string{"stage"},
		),
		predictions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "predictions_total",
				Help:      "Predictions served per class label",
			},
			[]string{"label"},
		),
		inferenceErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "inference_errors_total",
				Help:      "Inference failures per kind",
			},
			[]string{"kind"},
		),
		httpLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),
		publishTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_published_total",
				Help:      "Events published to the message bus",
			},
			[]string{"topic", "result"},
		),
	}
}

// Handler exposes the registry for scraping
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{})
}

// RecordIngest counts one entity outcome (result: success, failed, skipped)
func (r *Recorder) RecordIngest(source, result string) {
	if r == nil {
		return
	}
	r.ingestTotal.WithLabelValues(source, result).Inc()
}

// RecordRows adds n rows written to table
func (r *Recorder) RecordRows(table string, n int) {
	if r == nil || n <= 0 {
		return
	}
	r.rowsWritten.WithLabelValues(table).Add(float64(n))
}

// ObserveStage records how long a stage took
func (r *Recorder) ObserveStage(stage string, d time.Duration) {
	if r == nil {
		return
	}
	r.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// RecordPrediction counts a served prediction
func (r *Recorder) RecordPrediction(label string) {
	if r == nil {
		return
	}
	r.predictions.WithLabelValues(label).Inc()
}

// RecordInferenceError counts an inference failure
func (r *Recorder) RecordInferenceError(kind string) {
	if r == nil {
		return
	}
	r.inferenceErrors.WithLabelValues(kind).Inc()
}

// ObserveHTTP records request latency
func (r *Recorder) ObserveHTTP(method, path, status string, d time.Duration) {
	if r == nil {
		return
	}
	r.httpLatency.WithLabelValues(method, path, status).Observe(d.Seconds())
}

// RecordPublish counts a published event
func (r *Recorder) RecordPublish(topic string, err error) {
	if r == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	r.publishTotal.WithLabelValues(topic, result).Inc()
}
