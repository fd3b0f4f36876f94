package sim

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/inference-sim/ipc-sim/sim/internal/testutil"
	"github.com/inference-sim/ipc-sim/sim/trace"
)

func TestState_String(t *testing.T) {
	assert.Equal(t, "Idle", Idle.String())
	assert.Equal(t, "Running", Running.String())
	assert.Equal(t, "Completed", Completed.String())
	assert.Equal(t, "Failed", Failed.String())
	assert.Equal(t, "State(9)", State(9).String())
}

func TestRunResult_Print(t *testing.T) {
	// GIVEN a pipe run with one bottleneck
	res := &RunResult{
		RunID:        "00000000-0000-0000-0000-000000000001",
		Kind:         KindPipe,
		Mode:         ModePipe,
		Title:        "Pipe",
		State:        Completed,
		Items:        5,
		Delivered:    5,
		Anomalies:    1,
		Elapsed:      7500 * time.Millisecond,
		ElapsedUnits: 7.5,
		Latencies:    []float64{1.5, 1.5, 1.5, 1.5, 2.5},
		Summary: &trace.Summary{
			Counts: map[trace.Action]int{
				trace.ActionSent:       5,
				trace.ActionReceived:   4,
				trace.ActionBottleneck: 1,
				trace.ActionDone:       2,
				trace.ActionStatus:     2,
			},
		},
	}

	// WHEN the summary is printed
	var buf bytes.Buffer
	res.Print(&buf)

	// THEN it matches the golden rendering
	testutil.AssertGolden(t, "run_summary", buf.Bytes())
}

func TestRunResult_Print_FailedRun(t *testing.T) {
	res := &RunResult{
		RunID: "x",
		Mode:  ModeShared,
		State: Failed,
		Err:   &ChannelCreationError{Kind: KindShared, Err: errors.New("no such directory")},
	}

	var buf bytes.Buffer
	res.Print(&buf)

	out := buf.String()
	assert.Contains(t, out, "State                : Failed")
	assert.Contains(t, out, "Error                : sim: create shm channel: no such directory")
	assert.NotContains(t, out, "Latency")
	assert.NotContains(t, out, "Events:")
}
