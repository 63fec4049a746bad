// Package metrics records provisioning step outcomes as Prometheus metrics.
// Runs are one-shot, so the registry is written to a node-exporter textfile
// instead of being scraped.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "llmhost"

// Recorder owns a private registry. A nil *Recorder records nothing.
type Recorder struct {
	reg          *prometheus.Registry
	stepTotal    *prometheus.CounterVec
	stepDuration *prometheus.HistogramVec
	parallel     prometheus.Gauge
	ramGiB       prometheus.Gauge
	pullsTotal   *prometheus.CounterVec
}

// New builds a Recorder with every collector registered.
func New() *Recorder {
	r := &Recorder{
		reg: prometheus.NewRegistry(),
		stepTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "step_total",
				Help:      "Provisioning steps by outcome",
			},
			[]string{"step", "outcome"},
		),
		stepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "step_duration_seconds",
				Help:      "Duration of provisioning steps in seconds",
				Buckets:   []float64{0.1, 1, 5, 15, 60, 300, 900, 3600},
			},
			[]string{"step"},
		),
		parallel: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tuning_parallel",
			Help:      "Parallel request setting written for the model runner",
		}),
		ramGiB: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "host",
			Name:      "ram_gib",
			Help:      "Detected total memory in whole GiB",
		}),
		pullsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "model_pulls_total",
				Help:      "Model pull attempts by outcome",
			},
			[]string{"outcome"},
		),
	}
	r.reg.MustRegister(r.stepTotal, r.stepDuration, r.parallel, r.ramGiB, r.pullsTotal)
	return r
}

// Registry exposes the underlying registry (tests, custom exporters).
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.reg
}

// ObserveStep counts a finished step and its duration.
func (r *Recorder) ObserveStep(step, outcome string, d time.Duration) {
	if r == nil {
		return
	}
	if outcome == "" {
		outcome = "unspecified"
	}
	r.stepTotal.WithLabelValues(step, outcome).Inc()
	r.stepDuration.WithLabelValues(step).Observe(d.Seconds())
}

// SetTuning records the derived parallel setting.
func (r *Recorder) SetTuning(parallel int) {
	if r == nil {
		return
	}
	r.parallel.Set(float64(parallel))
}

// SetRAM records detected memory.
func (r *Recorder) SetRAM(gib int) {
	if r == nil {
		return
	}
	r.ramGiB.Set(float64(gib))
}

// ObservePull counts one model pull.
func (r *Recorder) ObservePull(ok bool) {
	if r == nil {
		return
	}
	outcome := "success"
	if !ok {
		outcome = "failure"
	}
	r.pullsTotal.WithLabelValues(outcome).Inc()
}

// WriteTextfile writes every metric in text exposition format to path,
// replacing the file atomically.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil || path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("metrics textfile dir: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, r.reg); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
