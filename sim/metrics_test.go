package sim

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inference-sim/ipc-sim/sim/clock"
	"github.com/inference-sim/ipc-sim/sim/trace"
)

func TestMetrics_EventHookCountsActionsAndLatency(t *testing.T) {
	// GIVEN a hook for a pipe run with one-second units
	m := NewMetrics()
	hook := m.eventHook(KindPipe, clock.DefaultUnit)

	// WHEN three events are observed, two carrying a latency
	fast, slow := 500*time.Millisecond, 3*time.Second
	hook(trace.Event{Action: trace.ActionSent})
	hook(trace.Event{Action: trace.ActionReceived, Latency: &fast})
	hook(trace.Event{Action: trace.ActionBottleneck, Latency: &slow})

	// THEN each action is counted and both latencies are observed
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Events.WithLabelValues("pipe", "sent")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Events.WithLabelValues("pipe", "bottleneck")))
	var sample dto.Metric
	require.NoError(t, m.Latency.WithLabelValues("pipe").(prometheus.Histogram).Write(&sample))
	assert.Equal(t, uint64(2), sample.GetHistogram().GetSampleCount())
	assert.Equal(t, 3.5, sample.GetHistogram().GetSampleSum())
}

func TestMetrics_RecordRun(t *testing.T) {
	m := NewMetrics()
	m.RecordRun(&RunResult{Kind: KindQueue, State: Completed, ElapsedUnits: 7.2})
	m.RecordRun(&RunResult{Kind: KindQueue, State: Failed, ElapsedUnits: 0.1})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Runs.WithLabelValues("queue", "Completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Runs.WithLabelValues("queue", "Failed")))
	assert.Equal(t, 0.1, testutil.ToFloat64(m.Elapsed.WithLabelValues("queue")))
}

func TestMetrics_SeparateRegistries(t *testing.T) {
	a, b := NewMetrics(), NewMetrics()
	a.RecordRun(&RunResult{Kind: KindPipe, State: Completed})

	assert.Equal(t, 1.0, testutil.ToFloat64(a.Runs.WithLabelValues("pipe", "Completed")))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.Runs.WithLabelValues("pipe", "Completed")))
}

func TestMetrics_WriteFile(t *testing.T) {
	m := NewMetrics()
	m.RecordRun(&RunResult{Kind: KindShared, State: Completed, ElapsedUnits: 2})
	path := filepath.Join(t.TempDir(), "ipcsim.prom")

	require.NoError(t, m.WriteFile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.True(t, strings.Contains(text, `ipcsim_runs_total{state="Completed",transport="shm"} 1`), text)
	assert.Contains(t, text, "# HELP ipcsim_run_elapsed_units")
}

func TestMetrics_WriteFile_BadPath(t *testing.T) {
	m := NewMetrics()
	err := m.WriteFile(filepath.Join(t.TempDir(), "missing", "out.prom"))
	assert.Error(t, err)
}
