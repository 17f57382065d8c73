// Package metrics records per-run counters in a private Prometheus registry
// that can be dumped for the node exporter textfile collector.
package metrics

import (
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Image outcomes
const (
	OutcomePublished = "published"
	OutcomeReused    = "reused"
	OutcomeDryRun    = "dry_run"
	OutcomeFailed    = "failed"
)

// Classification sources
const (
	SourceCache    = "cache"
	SourceModel    = "model"
	SourceFallback = "fallback"
)

// Recorder holds all metrics for one run
type Recorder struct {
	registry *prometheus.Registry

	ImagesTotal          *prometheus.CounterVec
	ClassificationsTotal *prometheus.CounterVec
	RetriesTotal         *prometheus.CounterVec
	ClassifyDuration     prometheus.Histogram
	LastRunTimestamp     prometheus.Gauge
}

func New() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		ImagesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mediaingest_images_total",
			Help: "Images processed, by terminal outcome.",
		}, []string{"outcome"}),
		ClassificationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mediaingest_classifications_total",
			Help: "Classification verdicts, by where they came from.",
		}, []string{"source"}),
		RetriesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mediaingest_retries_total",
			Help: "Retried remote calls, by label prefix.",
		}, []string{"operation"}),
		ClassifyDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "mediaingest_classify_duration_seconds",
			Help:    "Wall time of a classification including retries.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		}),
		LastRunTimestamp: factory.NewGauge(prometheus.GaugeOpts{
			Name: "mediaingest_last_run_timestamp_seconds",
			Help: "Unix time the run finished.",
		}),
	}
}

func (r *Recorder) IncImage(outcome string) {
	r.ImagesTotal.WithLabelValues(outcome).Inc()
}

func (r *Recorder) IncClassification(source string) {
	r.ClassificationsTotal.WithLabelValues(source).Inc()
}

func (r *Recorder) IncRetry(operation string) {
	r.RetriesTotal.WithLabelValues(operation).Inc()
}

// OnRetry matches retry.Policy.OnRetry; the first word of the label is the
// operation.
func (r *Recorder) OnRetry(label string, attempt int, delay time.Duration, err error) {
	operation := label
	if i := strings.IndexByte(label, ' '); i > 0 {
		operation = label[:i]
	}
	r.IncRetry(operation)
}

func (r *Recorder) ObserveClassify(d time.Duration) {
	r.ClassifyDuration.Observe(d.Seconds())
}

// Registry exposes the private registry for gathering
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// WriteTextfile stamps the finish time and writes every metric to path
func (r *Recorder) WriteTextfile(path string) error {
	r.LastRunTimestamp.SetToCurrentTime()
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
