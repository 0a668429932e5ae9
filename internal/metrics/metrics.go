// Package metrics exports sweep measurements in Prometheus text format.
package metrics

import (
	"fmt"
	"strconv"

	"github.com/cwbudde/gridbench/internal/bench"
	"github.com/prometheus/client_golang/prometheus"
)

// Recorder implements bench.Observer on a private registry.
type Recorder struct {
	registry     *prometheus.Registry
	trialSeconds *prometheus.HistogramVec
	avgSeconds   *prometheus.GaugeVec
	compiles     *prometheus.CounterVec
}

var _ bench.Observer = (*Recorder)(nil)

// NewRecorder creates a recorder with its own registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		trialSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gridbench_trial_seconds",
			Help:    "Device time of one mul dispatch",
			Buckets: prometheus.ExponentialBuckets(1e-6, 2, 20),
		}, []string{"precision", "size"}),
		avgSeconds: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gridbench_size_avg_seconds",
			Help: "Mean mul device time per problem size",
		}, []string{"precision", "size"}),
		compiles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gridbench_compiles_total",
			Help: "Program builds by result",
		}, []string{"result"}),
	}
	r.registry.MustRegister(r.trialSeconds, r.avgSeconds, r.compiles)
	return r
}

// Compiled counts a build outcome.
func (r *Recorder) Compiled(_ int, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.compiles.WithLabelValues(result).Inc()
}

// Measured records every trial of a size and its mean.
func (r *Recorder) Measured(prec bench.Precision, report bench.SizeReport) {
	size := strconv.Itoa(report.Size)
	hist := r.trialSeconds.WithLabelValues(prec.String(), size)
	for _, t := range report.Sample {
		hist.Observe(t)
	}
	r.avgSeconds.WithLabelValues(prec.String(), size).Set(report.Avg)
}

// Gatherer exposes the registry.
func (r *Recorder) Gatherer() prometheus.Gatherer {
	return r.registry
}

// WriteTextfile writes the registry to path in text exposition format.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	return nil
}
