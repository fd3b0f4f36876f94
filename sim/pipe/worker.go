package pipe

import (
	"errors"
	"fmt"
	"time"

	"github.com/inference-sim/ipc-sim/sim/clock"
	"github.com/inference-sim/ipc-sim/sim/trace"
)

// DefaultThreshold is the latency, in units, above which a message is a bottleneck.
const DefaultThreshold = 2.0

// Params configures one pipe run. Delays and the threshold are in units.
type Params struct {
	Messages    []string // payloads in send order
	SenderDelay float64  // time each message spends in the sender before reaching the pipe
	Threshold   float64  // bottleneck threshold
	ExpectCount int      // messages the receiver waits for; 0 means len(Messages)
}

// DefaultParams returns the demo configuration: five messages with a 1.5 unit sender delay.
func DefaultParams() Params {
	return Params{
		Messages:    []string{"hello", "world", "IPC", "pipe", "end"},
		SenderDelay: 1.5,
		Threshold:   DefaultThreshold,
	}
}

// Expect returns the number of messages the receiver waits for.
func (p Params) Expect() int {
	if p.ExpectCount > 0 {
		return p.ExpectCount
	}
	return len(p.Messages)
}

// Validate checks the parameters.
func (p Params) Validate() error {
	if p.SenderDelay < 0 {
		return fmt.Errorf("sender delay must be >= 0, got %v", p.SenderDelay)
	}
	if p.Threshold <= 0 {
		return fmt.Errorf("threshold must be > 0, got %v", p.Threshold)
	}
	if p.ExpectCount < 0 {
		return fmt.Errorf("expected count must be >= 0, got %d", p.ExpectCount)
	}
	return nil
}

// Verdict is the latency classification of one received message.
type Verdict int

const (
	OnTime Verdict = iota
	Bottleneck
)

// Classify marks a message as a bottleneck iff its latency exceeds threshold.
func Classify(latency, threshold time.Duration) Verdict {
	if latency > threshold {
		return Bottleneck
	}
	return OnTime
}

// SenderStats describes what the sender did.
type SenderStats struct {
	Sent        int
	Undelivered int // messages not written because the receiver had gone
}

// Sender is the producer role of a pipe run.
type Sender struct {
	End    *SendEnd
	Params Params
	Clock  clock.Clock
	Unit   clock.Unit
	Rec    *trace.Recorder
}

// Run sends every message, then closes the send end.
func (s *Sender) Run() (SenderStats, error) {
	var stats SenderStats
	defer s.End.Close()

	delay := s.Unit.Duration(s.Params.SenderDelay)
	for i, payload := range s.Params.Messages {
		msg := Message{Payload: payload, CreatedAt: s.Clock.Now()}
		s.Clock.Sleep(delay)
		if err := s.End.Send(msg); err != nil {
			if errors.Is(err, ErrReceiverGone) {
				stats.Undelivered = len(s.Params.Messages) - i
				s.Rec.Dropped(payload, fmt.Sprintf("receiver closed the pipe, %d message(s) undelivered", stats.Undelivered))
				break
			}
			return stats, fmt.Errorf("pipe sender: %w", err)
		}
		stats.Sent++
		s.Rec.Sent(payload, fmt.Sprintf("sent: %s", payload))
	}

	if err := s.End.Close(); err != nil {
		return stats, fmt.Errorf("pipe sender: %w", err)
	}
	s.Rec.Done("done and closed pipe.")
	return stats, nil
}

// ReceiverStats describes what the receiver observed.
type ReceiverStats struct {
	Received    int
	Bottlenecks int
	EndedEarly  bool            // the stream ended before the expected count
	Payloads    []string        // received payloads in arrival order
	Latencies   []time.Duration // latency per received payload
}

// Receiver is the consumer role of a pipe run.
type Receiver struct {
	End    *RecvEnd
	Params Params
	Clock  clock.Clock
	Unit   clock.Unit
	Rec    *trace.Recorder
}

// Run receives until the expected count is reached or the stream ends.
// The count is checked before each receive, so once it is reached the
// receiver stops without waiting for the end of the stream.
func (r *Receiver) Run() (ReceiverStats, error) {
	stats := ReceiverStats{
		Payloads:  make([]string, 0),
		Latencies: make([]time.Duration, 0),
	}
	defer r.End.Close()

	want := r.Params.Expect()
	threshold := r.Unit.Duration(r.Params.Threshold)
	for stats.Received < want {
		msg, err := r.End.Receive()
		if errors.Is(err, ErrEndOfStream) {
			stats.EndedEarly = true
			r.Rec.Underflow(stats.Received, want)
			break
		}
		if err != nil {
			return stats, fmt.Errorf("pipe receiver: %w", err)
		}

		latency := r.Clock.Now().Sub(msg.CreatedAt)
		stats.Received++
		stats.Payloads = append(stats.Payloads, msg.Payload)
		stats.Latencies = append(stats.Latencies, latency)

		if Classify(latency, threshold) == Bottleneck {
			stats.Bottlenecks++
			r.Rec.Bottleneck(msg.Payload, latency)
			continue
		}
		r.Rec.Received(msg.Payload, &latency,
			fmt.Sprintf("received: %s (latency=%.3f)", msg.Payload, r.Unit.Units(latency)))
	}

	if err := r.End.Close(); err != nil {
		return stats, fmt.Errorf("pipe receiver: %w", err)
	}
	r.Rec.Done("done and closed pipe.")
	return stats, nil
}
