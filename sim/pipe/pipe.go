// Package pipe implements the point-to-point pipe transport: an ordered,
// one-directional OS pipe carrying newline-delimited JSON frames, plus the
// sender and receiver roles that classify end-to-end latency.
package pipe

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"syscall"
	"time"
)

var (
	// ErrEndOfStream is returned by Receive once the sender closed the pipe.
	ErrEndOfStream = errors.New("pipe: end of stream")

	// ErrClosed is returned when sending on a closed send end.
	ErrClosed = errors.New("pipe: send end closed")

	// ErrReceiverGone is returned by Send when the receive end is closed.
	ErrReceiverGone = errors.New("pipe: receiver closed")
)

// Message is a payload together with its creation time.
type Message struct {
	Payload   string    `json:"payload"`
	CreatedAt time.Time `json:"created_at"`
}

// frame is the wire form of one pipe write. EOS marks the end-of-stream sentinel.
type frame struct {
	Message
	EOS bool `json:"eos,omitempty"`
}

// Open creates a pipe and returns its two ends.
func Open() (*SendEnd, *RecvEnd, error) {
	r, w, err := os.Pipe()
	if err != nil {
		return nil, nil, fmt.Errorf("pipe: open: %w", err)
	}
	return &SendEnd{f: w, enc: json.NewEncoder(w)}, &RecvEnd{f: r, dec: json.NewDecoder(r)}, nil
}

// SendEnd is the writing side of a pipe.
type SendEnd struct {
	mu     sync.Mutex
	f      *os.File
	enc    *json.Encoder
	closed bool
}

// Send writes msg to the pipe. It only waits when the kernel buffer is full.
func (s *SendEnd) Send(msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if err := s.enc.Encode(frame{Message: msg}); err != nil {
		if isBrokenPipe(err) {
			return ErrReceiverGone
		}
		return fmt.Errorf("pipe: send %q: %w", msg.Payload, err)
	}
	return nil
}

// Close writes the end-of-stream sentinel and closes the descriptor.
// Closing twice is a no-op.
func (s *SendEnd) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	var errv []error
	if err := s.enc.Encode(frame{EOS: true}); err != nil && !isBrokenPipe(err) {
		errv = append(errv, fmt.Errorf("pipe: write end-of-stream: %w", err))
	}
	if err := s.f.Close(); err != nil {
		errv = append(errv, fmt.Errorf("pipe: close send end: %w", err))
	}
	return errors.Join(errv...)
}

// RecvEnd is the reading side of a pipe.
type RecvEnd struct {
	mu     sync.Mutex
	f      *os.File
	dec    *json.Decoder
	eos    bool
	closed bool
}

// Receive blocks until the next message or the end of the stream.
func (r *RecvEnd) Receive() (Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.eos || r.closed {
		return Message{}, ErrEndOfStream
	}
	var fr frame
	if err := r.dec.Decode(&fr); err != nil {
		if errors.Is(err, io.EOF) {
			r.eos = true
			return Message{}, ErrEndOfStream
		}
		return Message{}, fmt.Errorf("pipe: receive: %w", err)
	}
	if fr.EOS {
		r.eos = true
		return Message{}, ErrEndOfStream
	}
	return fr.Message, nil
}

// Close closes the descriptor. Later sends fail with ErrReceiverGone.
// Closing twice is a no-op.
func (r *RecvEnd) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	if err := r.f.Close(); err != nil {
		return fmt.Errorf("pipe: close receive end: %w", err)
	}
	return nil
}

func isBrokenPipe(err error) bool {
	return errors.Is(err, syscall.EPIPE) || errors.Is(err, os.ErrClosed)
}
