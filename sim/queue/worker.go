package queue

import (
	"errors"
	"fmt"
	"time"

	"github.com/inference-sim/ipc-sim/sim/clock"
	"github.com/inference-sim/ipc-sim/sim/trace"
)

// Params configures one queue run. Delays and the timeout are in units.
type Params struct {
	Items        []string // payloads in produce order
	Capacity     int      // queue capacity, >= 1
	ProduceDelay float64  // pause after each put attempt
	ConsumeDelay float64  // processing time per consumed item
	PutTimeout   float64  // longest wait for space before dropping an item
}

// DefaultParams returns the demo configuration: a fast producer of seven items
// against a slow consumer and a queue of three.
func DefaultParams() Params {
	return Params{
		Items:        GenerateItems(7),
		Capacity:     3,
		ProduceDelay: 0.1,
		ConsumeDelay: 1.0,
		PutTimeout:   1.0,
	}
}

// GenerateItems returns the payloads msg1..msgN. A negative n yields no items.
func GenerateItems(n int) []string {
	items := make([]string, 0, max(n, 0))
	for i := 1; i <= n; i++ {
		items = append(items, fmt.Sprintf("msg%d", i))
	}
	return items
}

// Validate checks the parameters.
func (p Params) Validate() error {
	if p.Capacity < 1 {
		return fmt.Errorf("%w (got %d)", ErrInvalidCapacity, p.Capacity)
	}
	if p.ProduceDelay < 0 || p.ConsumeDelay < 0 {
		return fmt.Errorf("delays must be >= 0, got produce=%v consume=%v", p.ProduceDelay, p.ConsumeDelay)
	}
	if p.PutTimeout < 0 {
		return fmt.Errorf("put timeout must be >= 0, got %v", p.PutTimeout)
	}
	return nil
}

// ProducerStats describes what the producer did.
type ProducerStats struct {
	Put      int           // items inserted
	Blocked  int           // put attempts that found the queue full
	Dropped  int           // items lost to ErrQueueFull
	Accepted []string      // inserted payloads in order
	MaxWait  time.Duration // longest wait of a blocked put that succeeded
}

// Producer is the producer role of a queue run.
type Producer struct {
	Queue  *Queue
	Params Params
	Clock  clock.Clock
	Unit   clock.Unit
	Rec    *trace.Recorder
}

// Run attempts every item, then queues the completion sentinel.
func (p *Producer) Run() (ProducerStats, error) {
	stats := ProducerStats{Accepted: make([]string, 0, len(p.Params.Items))}
	timeout := p.Unit.Duration(p.Params.PutTimeout)
	delay := p.Unit.Duration(p.Params.ProduceDelay)

	for _, payload := range p.Params.Items {
		if p.Queue.TryPut(payload) {
			stats.Put++
			stats.Accepted = append(stats.Accepted, payload)
			p.Rec.Sent(payload, fmt.Sprintf("put: %s", payload))
			p.Clock.Sleep(delay)
			continue
		}

		stats.Blocked++
		p.Rec.Blocked(payload)
		start := p.Clock.Now()
		err := p.Queue.Put(payload, timeout)
		waited := p.Clock.Now().Sub(start)
		switch {
		case errors.Is(err, ErrQueueFull):
			stats.Dropped++
			p.Rec.QueueFull(payload, timeout)
		case err != nil:
			return stats, fmt.Errorf("queue producer: %w", err)
		default:
			stats.Put++
			stats.Accepted = append(stats.Accepted, payload)
			stats.MaxWait = max(stats.MaxWait, waited)
			p.Rec.Sent(payload, fmt.Sprintf("put: %s (waited %.3f)", payload, p.Unit.Units(waited)))
		}
		p.Clock.Sleep(delay)
	}

	p.Rec.Done(fmt.Sprintf("done. %d put, %d dropped.", stats.Put, stats.Dropped))
	p.Queue.PutSentinel()
	return stats, nil
}

// ConsumerStats describes what the consumer observed.
type ConsumerStats struct {
	Received int
	Payloads []string // consumed payloads in order
}

// Consumer is the consumer role of a queue run.
type Consumer struct {
	Queue  *Queue
	Params Params
	Clock  clock.Clock
	Unit   clock.Unit
	Rec    *trace.Recorder
}

// Run consumes items until the sentinel arrives.
func (c *Consumer) Run() (ConsumerStats, error) {
	stats := ConsumerStats{Payloads: make([]string, 0)}
	delay := c.Unit.Duration(c.Params.ConsumeDelay)
	for {
		payload, ok := c.Queue.Get()
		if !ok {
			c.Rec.Done("received termination token. Exiting.")
			return stats, nil
		}
		c.Clock.Sleep(delay)
		stats.Received++
		stats.Payloads = append(stats.Payloads, payload)
		c.Rec.Received(payload, nil, fmt.Sprintf("got: %s", payload))
	}
}
