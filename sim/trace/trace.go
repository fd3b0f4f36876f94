package trace

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/inference-sim/ipc-sim/sim/clock"
)

// Log collects the events of one run and writes each as a line to its output.
// It is safe for concurrent use by both workers of a run.
type Log struct {
	mu     sync.Mutex
	out    io.Writer
	clock  clock.Clock
	unit   clock.Unit
	seq    int64
	events []Event
	hooks  []func(Event)
	werr   error // first write error, reported once
}

// NewLog creates a Log writing rendered events to out. A nil out keeps events in memory only.
func NewLog(out io.Writer, c clock.Clock, unit clock.Unit) *Log {
	return &Log{
		out:    out,
		clock:  c,
		unit:   unit,
		events: make([]Event, 0),
	}
}

// AddHook registers fn to be called, in emission order, for every event.
// Hooks run with the log locked and must not emit.
func (l *Log) AddHook(fn func(Event)) {
	l.mu.Lock()
	l.hooks = append(l.hooks, fn)
	l.mu.Unlock()
}

// Unit returns the unit used to render durations.
func (l *Log) Unit() clock.Unit {
	return l.unit
}

// Emit stamps e with the next sequence number and the current time, stores it and writes it out.
func (l *Log) Emit(e Event) Event {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.seq++
	e.Seq = l.seq
	e.Time = l.clock.Now()
	e = e.clone()
	l.events = append(l.events, e.clone())

	if l.out != nil {
		if _, err := fmt.Fprintln(l.out, e.String()); err != nil && l.werr == nil {
			l.werr = err
			logrus.Warnf("event log: write failed: %v", err)
		}
	}
	logrus.WithFields(logrus.Fields{
		"seq":    e.Seq,
		"role":   e.Role,
		"action": e.Action,
	}).Debug(e.Text)

	for _, fn := range l.hooks {
		fn(e.clone())
	}
	return e
}

// Events returns a copy of all events emitted so far.
func (l *Log) Events() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Event, len(l.events))
	for i, e := range l.events {
		out[i] = e.clone()
	}
	return out
}

// Len returns the number of emitted events.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.events)
}

// Actor returns a Recorder that emits events on behalf of one named actor.
func (l *Log) Actor(role Role, name string) *Recorder {
	return &Recorder{log: l, role: role, name: name}
}

// Recorder emits events for a single actor. The marker-bearing helpers
// (Bottleneck, Blocked, QueueFull, Race) own their wording so the
// classification markers always appear in the rendered line.
type Recorder struct {
	log  *Log
	role Role
	name string
}

// Name returns the actor name.
func (r *Recorder) Name() string {
	return r.name
}

func (r *Recorder) emit(action Action, payload string, latency *time.Duration, text string) Event {
	return r.log.Emit(Event{
		Role:    r.role,
		Actor:   r.name,
		Action:  action,
		Payload: payload,
		Latency: latency,
		Text:    text,
	})
}

func (r *Recorder) units(d time.Duration) float64 {
	return r.log.unit.Units(d)
}

// Sent records a payload handed to the channel.
func (r *Recorder) Sent(payload, text string) Event {
	return r.emit(ActionSent, payload, nil, text)
}

// Received records a payload taken from the channel. latency may be nil.
func (r *Recorder) Received(payload string, latency *time.Duration, text string) Event {
	return r.emit(ActionReceived, payload, latency, text)
}

// Bottleneck records a message whose latency exceeded the threshold.
func (r *Recorder) Bottleneck(payload string, latency time.Duration) Event {
	text := fmt.Sprintf("Bottleneck detected! latency=%.3f for message '%s' (%s)", r.units(latency), payload, MarkerBottleneck)
	return r.emit(ActionBottleneck, payload, &latency, text)
}

// Blocked records a producer that found the channel full and has to wait.
func (r *Recorder) Blocked(payload string) Event {
	return r.emit(ActionBlocked, payload, nil, fmt.Sprintf("Queue full, blocked putting '%s'", payload))
}

// QueueFull records an item dropped because the channel stayed full for timeout.
func (r *Recorder) QueueFull(payload string, timeout time.Duration) Event {
	text := fmt.Sprintf("Queue full! couldn't put '%s' within %.3f", payload, r.units(timeout))
	return r.emit(ActionDropped, payload, nil, text)
}

// Dropped records items lost for a reason other than a full queue.
func (r *Recorder) Dropped(payload, text string) Event {
	return r.emit(ActionDropped, payload, nil, text)
}

// Race records an anomaly of an unsynchronized shared access.
func (r *Recorder) Race(payload, detail string) Event {
	return r.emit(ActionRace, payload, nil, raceText(detail))
}

// RaceSummary records the closing race report of an unsynchronized run.
// It is a status line, not an anomaly.
func (r *Recorder) RaceSummary(detail string) Event {
	return r.emit(ActionStatus, "", nil, raceText(detail))
}

func raceText(detail string) string {
	return fmt.Sprintf("%s: %s (%s)", MarkerRace, detail, MarkerNoLock)
}

// Torn records a value that no completed write produced.
func (r *Recorder) Torn(payload, detail string) Event {
	return r.emit(ActionTorn, payload, nil, fmt.Sprintf("torn read: %s", detail))
}

// Underflow records a stream that ended before the expected count.
func (r *Recorder) Underflow(got, want int) Event {
	text := fmt.Sprintf("stream ended early: received %d of %d message(s)", got, want)
	return r.emit(ActionUnderflow, "", nil, text)
}

// Done records the normal termination of the actor.
func (r *Recorder) Done(text string) Event {
	return r.emit(ActionDone, "", nil, text)
}

// Status records an informational line.
func (r *Recorder) Status(text string) Event {
	return r.emit(ActionStatus, "", nil, text)
}
