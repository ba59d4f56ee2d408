// Package metrics records batch outcomes as Prometheus metrics.
//
// A batch run is short-lived, so nothing is served over HTTP. The recorder
// keeps its own registry and, when a path is configured, writes it in the
// text exposition format for node_exporter's textfile collector:
//
//	resizer run --metrics-file /var/lib/node_exporter/resizer.prom ~/Pictures
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"resizer/internal/processor"
)

// Recorder is a processor.Observer that turns outcomes into metrics.
type Recorder struct {
	registry *prometheus.Registry

	outcomes   *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	bytesSaved prometheus.Counter
	discovered prometheus.Gauge
	lastRun    prometheus.Gauge
	cancelled  prometheus.Gauge
}

var (
	_ processor.Observer        = (*Recorder)(nil)
	_ processor.OutcomeObserver = (*Recorder)(nil)
)

// NewRecorder registers the batch metrics on a fresh registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "resizer_outcomes_total",
			Help: "Files processed, by outcome.",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "resizer_item_duration_seconds",
			Help:    "Time spent transforming one file.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}, []string{"outcome"}),
		bytesSaved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "resizer_bytes_saved_total",
			Help: "Bytes reclaimed by replacing originals with resized outputs.",
		}),
		discovered: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "resizer_last_run_discovered_files",
			Help: "Candidate files found by the last run.",
		}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "resizer_last_run_timestamp_seconds",
			Help: "Unix time the last run finished.",
		}),
		cancelled: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "resizer_last_run_cancelled",
			Help: "1 when the last run was cancelled before completion.",
		}),
	}

	r.registry.MustRegister(r.outcomes, r.duration, r.bytesSaved, r.discovered, r.lastRun, r.cancelled)
	for _, kind := range []processor.Kind{processor.KindTransformed, processor.KindSkipped, processor.KindFailed} {
		r.outcomes.WithLabelValues(kind.String())
	}
	return r
}

// Registry exposes the underlying registry, mainly for tests.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

func (r *Recorder) OnLog(string) {}

func (r *Recorder) OnProgress(int, int) {}

func (r *Recorder) OnOutcome(res processor.Result) {
	kind := res.Kind.String()
	r.outcomes.WithLabelValues(kind).Inc()
	r.duration.WithLabelValues(kind).Observe(res.Duration.Seconds())
	if res.Kind == processor.KindTransformed && !res.Planned {
		if saved := res.BytesBefore - res.BytesAfter; saved > 0 {
			r.bytesSaved.Add(float64(saved))
		}
	}
}

func (r *Recorder) OnFinished(summary processor.Summary) {
	r.discovered.Set(float64(summary.Discovered))
	r.lastRun.SetToCurrentTime()
	if summary.Cancelled {
		r.cancelled.Set(1)
	} else {
		r.cancelled.Set(0)
	}
}

// WriteTextfile atomically writes the registry to path.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	return nil
}
