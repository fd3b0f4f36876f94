// Package queue implements the bounded FIFO transport: a fixed-capacity
// queue whose producer waits a bounded time for space and drops the item
// when none frees up, and whose consumer blocks until an item arrives.
package queue

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

var (
	// ErrQueueFull is returned by Put when no space freed up within the timeout.
	ErrQueueFull = errors.New("queue full")

	// ErrInvalidCapacity is returned by Open for a capacity below 1.
	ErrInvalidCapacity = errors.New("queue: capacity must be >= 1")
)

// item is one queue slot. The sentinel marks producer completion.
type item struct {
	payload  string
	sentinel bool
}

// Queue is a bounded FIFO for exactly one producer and one consumer.
type Queue struct {
	items     chan item
	closeOnce sync.Once
	abandoned int // data items left unconsumed at Close
}

// Open creates a queue holding at most capacity items.
func Open(capacity int) (*Queue, error) {
	if capacity < 1 {
		return nil, fmt.Errorf("%w (got %d)", ErrInvalidCapacity, capacity)
	}
	return &Queue{items: make(chan item, capacity)}, nil
}

// Cap returns the capacity.
func (q *Queue) Cap() int {
	return cap(q.items)
}

// Len returns the number of queued items.
func (q *Queue) Len() int {
	return len(q.items)
}

// TryPut inserts payload if there is space and reports whether it did.
func (q *Queue) TryPut(payload string) bool {
	select {
	case q.items <- item{payload: payload}:
		return true
	default:
		return false
	}
}

// Put waits up to timeout for space and inserts payload, or returns ErrQueueFull.
func (q *Queue) Put(payload string, timeout time.Duration) error {
	if q.TryPut(payload) {
		return nil
	}
	if timeout <= 0 {
		return ErrQueueFull
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case q.items <- item{payload: payload}:
		return nil
	case <-timer.C:
		return ErrQueueFull
	}
}

// PutSentinel blocks until the completion sentinel is queued.
func (q *Queue) PutSentinel() {
	q.items <- item{sentinel: true}
}

// Get blocks until an item is available. ok is false for the sentinel or a closed queue.
func (q *Queue) Get() (payload string, ok bool) {
	it, open := <-q.items
	if !open || it.sentinel {
		return "", false
	}
	return it.payload, true
}

// Close tears the queue down once both roles have finished. Later Gets
// report completion; a Put after Close panics.
func (q *Queue) Close() error {
	q.closeOnce.Do(func() {
		close(q.items)
		for it := range q.items {
			if !it.sentinel {
				q.abandoned++
			}
		}
	})
	return nil
}

// Abandoned returns the number of data items that were still queued at Close.
func (q *Queue) Abandoned() int {
	return q.abandoned
}
