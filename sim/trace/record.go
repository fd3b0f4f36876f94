// Package trace provides the append-only event log for transport runs.
// This package has no dependencies on sim/ or the transport packages; it stores pure data types.
package trace

import (
	"fmt"
	"time"
)

// Role identifies which side of a run emitted an event.
type Role string

const (
	RoleProducer Role = "producer"
	RoleConsumer Role = "consumer"
	RoleRunner   Role = "runner"
)

// Action classifies an event.
type Action string

const (
	ActionSent       Action = "sent"
	ActionReceived   Action = "received"
	ActionBlocked    Action = "blocked"
	ActionBottleneck Action = "bottleneck"
	ActionDropped    Action = "dropped"
	ActionRace       Action = "race"
	ActionTorn       Action = "torn"
	ActionUnderflow  Action = "underflow"
	ActionDone       Action = "done"
	ActionStatus     Action = "status"
)

// anomalyActions are the actions that count as anomalies in a run summary.
var anomalyActions = map[Action]bool{
	ActionBottleneck: true,
	ActionDropped:    true,
	ActionRace:       true,
	ActionTorn:       true,
	ActionUnderflow:  true,
}

// IsAnomaly reports whether the action marks an observed anomaly.
func (a Action) IsAnomaly() bool {
	return anomalyActions[a]
}

// Classification markers that external observers grep for in rendered lines.
const (
	MarkerBottleneck = "bottleneck"
	MarkerQueueFull  = "Queue full"
	MarkerRace       = "race"
	MarkerOverwrite  = "overwrite"
	MarkerNoLock     = "no lock"
)

// TimeLayout is the timestamp layout of rendered events.
const TimeLayout = "15:04:05.000"

// Event is a single timestamped entry of the run timeline.
// Events are immutable once emitted.
type Event struct {
	Seq     int64          // emission order within the log, starting at 1
	Role    Role           // producer, consumer or runner
	Actor   string         // display name, e.g. "Sender" or "Reader-NoLock"
	Action  Action         // classification of the event
	Payload string         // payload the event refers to (may be empty)
	Latency *time.Duration // end-to-end latency, nil when not measured
	Time    time.Time      // emission time
	Text    string         // human-readable description
}

// clone returns a copy that shares no memory with e.
func (e Event) clone() Event {
	if e.Latency != nil {
		latency := *e.Latency
		e.Latency = &latency
	}
	return e
}

// String renders the event as one output line.
func (e Event) String() string {
	return fmt.Sprintf("%s [%s] %s", e.Time.Format(TimeLayout), e.Actor, e.Text)
}
