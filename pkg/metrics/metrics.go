// Package metrics records scheme evaluations as prometheus metrics.
package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/chazu/blockscheme/pkg/scheme"
)

// OutcomeOK labels a successful run.
const OutcomeOK = "ok"

// Metrics holds the evaluation collectors on their own registry, so a
// process can keep several without clashing on the default one.
type Metrics struct {
	Registry *prometheus.Registry

	// RunsTotal counts evaluations by outcome: "ok" or the error code.
	RunsTotal *prometheus.CounterVec
	// RunActions tracks how many results each successful run produced.
	RunActions prometheus.Histogram
	// RunDuration tracks wall time spent in Run.
	RunDuration prometheus.Histogram
	// Blocks is the block count seen by the most recent run.
	Blocks prometheus.Gauge
}

// New creates the collectors and registers them.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		RunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "blockscheme_runs_total",
				Help: "Total number of scheme evaluations by outcome",
			},
			[]string{"outcome"},
		),
		RunActions: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "blockscheme_run_actions",
				Help:    "Number of results produced by a successful evaluation",
				Buckets: prometheus.ExponentialBuckets(1, 4, 6),
			},
		),
		RunDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "blockscheme_run_duration_seconds",
				Help:    "Time spent evaluating a scheme",
				Buckets: prometheus.ExponentialBuckets(0.00001, 10, 6),
			},
		),
		Blocks: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "blockscheme_blocks",
				Help: "Blocks in the scheme at the most recent evaluation",
			},
		),
	}
	m.Registry.MustRegister(m.RunsTotal, m.RunActions, m.RunDuration, m.Blocks)
	return m
}

// ObserveRun records one evaluation.
func (m *Metrics) ObserveRun(blocks, actions int, elapsed time.Duration, err error) {
	m.Blocks.Set(float64(blocks))
	m.RunDuration.Observe(elapsed.Seconds())
	outcome := Outcome(err)
	m.RunsTotal.WithLabelValues(outcome).Inc()
	if err == nil {
		m.RunActions.Observe(float64(actions))
	}
}

// Outcome returns the label value recorded for err.
func Outcome(err error) string {
	if err == nil {
		return OutcomeOK
	}
	code, ok := scheme.CodeOf(err)
	if !ok {
		return "error"
	}
	return strings.ReplaceAll(code.String(), " ", "_")
}

// WriteTextfile writes every collected metric to path in the text
// exposition format, for pickup by a node exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.Registry)
}
