// Tracks per-process run metrics in a Prometheus registry:
// events by transport and action, message latency, runs by final state.

package sim

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/inference-sim/ipc-sim/sim/clock"
	"github.com/inference-sim/ipc-sim/sim/trace"
)

// Metrics aggregates counters over every run of a Runner. Each Metrics owns
// its registry, so several runners (or tests) never share series.
type Metrics struct {
	reg *prometheus.Registry

	Events  *prometheus.CounterVec   // transport, action
	Latency *prometheus.HistogramVec // transport; in units
	Runs    *prometheus.CounterVec   // transport, state
	Elapsed *prometheus.GaugeVec     // transport; last run, in units
}

// NewMetrics creates a metrics set on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		reg: reg,
		Events: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ipcsim_events_total",
				Help: "Transport events emitted, by transport and action",
			},
			[]string{"transport", "action"},
		),
		Latency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ipcsim_message_latency_units",
				Help:    "End-to-end message latency in simulation units",
				Buckets: []float64{.1, .25, .5, 1, 1.5, 2, 2.5, 3, 5, 10},
			},
			[]string{"transport"},
		),
		Runs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ipcsim_runs_total",
				Help: "Scenario runs, by transport and final state",
			},
			[]string{"transport", "state"},
		),
		Elapsed: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "ipcsim_run_elapsed_units",
				Help: "Duration of the last run in simulation units",
			},
			[]string{"transport"},
		),
	}
}

// Registry returns the registry holding the metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.reg
}

// eventHook returns an event log hook counting the events of one run.
func (m *Metrics) eventHook(kind Kind, unit clock.Unit) func(trace.Event) {
	return func(e trace.Event) {
		m.Events.WithLabelValues(string(kind), string(e.Action)).Inc()
		if e.Latency != nil {
			m.Latency.WithLabelValues(string(kind)).Observe(unit.Units(*e.Latency))
		}
	}
}

// RecordRun records the outcome of a finished run.
func (m *Metrics) RecordRun(res *RunResult) {
	m.Runs.WithLabelValues(string(res.Kind), res.State.String()).Inc()
	m.Elapsed.WithLabelValues(string(res.Kind)).Set(res.ElapsedUnits)
}

// WriteFile writes the registry to path in the Prometheus text format.
func (m *Metrics) WriteFile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.reg); err != nil {
		return fmt.Errorf("sim: write metrics %s: %w", path, err)
	}
	return nil
}
