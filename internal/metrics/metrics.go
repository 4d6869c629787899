// Package metrics records orchestration events as Prometheus metrics and
// exports them in the node exporter textfile format.
package metrics

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JaimeStill/plugpep/workflow"
)

const namespace = "plugpep"

// TextFile is the metrics export written into a run directory.
const TextFile = "metrics.prom"

// Collector implements workflow.Observer on a private registry.
type Collector struct {
	registry *prometheus.Registry
	runs     *prometheus.CounterVec
	steps    *prometheus.CounterVec
	skipped  *prometheus.CounterVec
	duration *prometheus.HistogramVec
	active   prometheus.Gauge
}

var _ workflow.Observer = (*Collector)(nil)

// New creates a collector with its metrics registered.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Workflow runs by terminal status.",
		}, []string{"status"}),
		steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "steps_total",
			Help:      "Executed steps by name and outcome.",
		}, []string{"step", "status"}),
		skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "steps_skipped_total",
			Help:      "Pending steps skipped because no handler was registered.",
		}, []string{"step"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "step_duration_seconds",
			Help:      "Step execution time.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"step"}),
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "runs_active",
			Help:      "Workflow runs currently executing.",
		}),
	}

	c.registry.MustRegister(c.runs, c.steps, c.skipped, c.duration, c.active)
	return c
}

// Registry returns the collector's registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collector) RunStarted(*workflow.State) {
	c.active.Inc()
}

func (c *Collector) StepFinished(_ *workflow.State, name workflow.StepName, status workflow.StepStatus, elapsed time.Duration) {
	c.steps.WithLabelValues(string(name), string(status)).Inc()
	c.duration.WithLabelValues(string(name)).Observe(elapsed.Seconds())
}

func (c *Collector) StepSkipped(_ *workflow.State, name workflow.StepName) {
	c.skipped.WithLabelValues(string(name)).Inc()
}

func (c *Collector) RunFinished(s *workflow.State) {
	c.active.Dec()
	c.runs.WithLabelValues(string(s.Orchestrator.WorkflowStatus)).Inc()
}

// WriteTextfile exports the registry to path atomically.
func (c *Collector) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, c.registry); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	return nil
}

// WriteRun exports the registry into the run directory of s and returns
// the written path.
func (c *Collector) WriteRun(s *workflow.State) (string, error) {
	path := filepath.Join(s.WorkflowDir, TextFile)
	return path, c.WriteTextfile(path)
}
