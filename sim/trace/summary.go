package trace

import "time"

// Summary aggregates statistics from a run's events.
type Summary struct {
	TotalEvents  int
	Anomalies    int
	Counts       map[Action]int // action → number of events
	MeanLatency  time.Duration  // over events carrying a latency
	MaxLatency   time.Duration
	LatencyCount int
}

// Summarize computes aggregate statistics from events.
// Safe for nil or empty input (returns zero-value fields).
func Summarize(events []Event) *Summary {
	summary := &Summary{
		Counts: make(map[Action]int),
	}

	var total time.Duration
	for _, e := range events {
		summary.TotalEvents++
		summary.Counts[e.Action]++
		if e.Action.IsAnomaly() {
			summary.Anomalies++
		}
		if e.Latency != nil {
			summary.LatencyCount++
			total += *e.Latency
			if *e.Latency > summary.MaxLatency {
				summary.MaxLatency = *e.Latency
			}
		}
	}
	if summary.LatencyCount > 0 {
		summary.MeanLatency = total / time.Duration(summary.LatencyCount)
	}
	return summary
}

// Filter returns the events with the given action, in emission order.
func Filter(events []Event, action Action) []Event {
	out := make([]Event, 0)
	for _, e := range events {
		if e.Action == action {
			out = append(out, e)
		}
	}
	return out
}

// Payloads returns the payloads of events with the given action, in emission order.
func Payloads(events []Event, action Action) []string {
	out := make([]string, 0)
	for _, e := range Filter(events, action) {
		out = append(out, e.Payload)
	}
	return out
}
