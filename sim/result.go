package sim

import (
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/inference-sim/ipc-sim/sim/trace"
)

// State is the lifecycle state of a Runner.
type State int

const (
	Idle State = iota
	Running
	Completed
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Running:
		return "Running"
	case Completed:
		return "Completed"
	case Failed:
		return "Failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// RunResult describes one finished run. It is read-only once returned.
type RunResult struct {
	RunID        string
	Kind         Kind
	Mode         Mode
	Title        string
	State        State
	Items        int // items the producer attempted
	Delivered    int // items the consumer observed
	Dropped      int
	Anomalies    int
	Elapsed      time.Duration
	ElapsedUnits float64
	Latencies    []float64 // message latencies in units, sorted
	Summary      *trace.Summary
	Events       []trace.Event
	Err          error // cause of a Failed run
}

// Print writes the run summary block to w.
func (r *RunResult) Print(w io.Writer) {
	fmt.Fprintln(w, "=== Run Summary ===")
	fmt.Fprintf(w, "Run ID               : %s\n", r.RunID)
	fmt.Fprintf(w, "Mode                 : %s\n", r.Mode)
	fmt.Fprintf(w, "State                : %s\n", r.State)
	fmt.Fprintf(w, "Items                : %d\n", r.Items)
	fmt.Fprintf(w, "Delivered            : %d\n", r.Delivered)
	fmt.Fprintf(w, "Dropped              : %d\n", r.Dropped)
	fmt.Fprintf(w, "Anomalies            : %d\n", r.Anomalies)
	fmt.Fprintf(w, "Elapsed              : %.3f units\n", r.ElapsedUnits)
	if len(r.Latencies) > 0 {
		fmt.Fprintf(w, "Mean Latency         : %.3f units\n", CalculateMean(r.Latencies))
		fmt.Fprintf(w, "P50 Latency          : %.3f units\n", CalculatePercentile(r.Latencies, 50))
		fmt.Fprintf(w, "P99 Latency          : %.3f units\n", CalculatePercentile(r.Latencies, 99))
		fmt.Fprintf(w, "Max Latency          : %.3f units\n", r.Latencies[len(r.Latencies)-1])
	}
	if r.Summary != nil && len(r.Summary.Counts) > 0 {
		actions := make([]string, 0, len(r.Summary.Counts))
		for a := range r.Summary.Counts {
			actions = append(actions, string(a))
		}
		slices.Sort(actions)
		fmt.Fprintln(w, "Events:")
		for _, a := range actions {
			fmt.Fprintf(w, "  %-18s : %d\n", a, r.Summary.Counts[trace.Action(a)])
		}
	}
	if r.Err != nil {
		fmt.Fprintf(w, "Error                : %v\n", r.Err)
	}
}
