package shm

import (
	"fmt"
	"strconv"
	"sync"

	"github.com/inference-sim/ipc-sim/sim/clock"
	"github.com/inference-sim/ipc-sim/sim/trace"
)

// Params configures one shared region run. Delays are in units.
type Params struct {
	SizeBytes  int
	Iterations int     // writes by the writer and reads by the reader
	WriteDelay float64 // pause after each write, outside the guard
	ReadDelay  float64 // pause after each read, outside the guard
	StartValue int64   // first value written; later writes count up from it
}

// DefaultParams returns the demo configuration for the given mode.
// The guarded writer starts at 1000, the unguarded one at 1.
func DefaultParams(guarded bool) Params {
	p := Params{
		SizeBytes:  CellSize,
		Iterations: 6,
		WriteDelay: 0.3,
		ReadDelay:  0.3,
		StartValue: 1,
	}
	if guarded {
		p.StartValue = 1000
	}
	return p
}

// Validate checks the parameters.
func (p Params) Validate() error {
	if p.SizeBytes < CellSize {
		return fmt.Errorf("size must be >= %d bytes, got %d", CellSize, p.SizeBytes)
	}
	if p.Iterations < 1 {
		return fmt.Errorf("iterations must be >= 1, got %d", p.Iterations)
	}
	if p.WriteDelay < 0 || p.ReadDelay < 0 {
		return fmt.Errorf("delays must be >= 0, got write=%v read=%v", p.WriteDelay, p.ReadDelay)
	}
	// 0 is the initial cell value and must stay distinguishable from writes.
	if p.StartValue <= 0 {
		return fmt.Errorf("start value must be > 0, got %d", p.StartValue)
	}
	return nil
}

// Value returns the value of write i.
func (p Params) Value(i int) int64 {
	return p.StartValue + int64(i)
}

// ReadKind classifies one read against the previous one.
type ReadKind int

const (
	ReadInitial   ReadKind = iota // the zero the region was created with
	ReadFresh                     // the write right after the previous read
	ReadStale                     // the same write as the previous read
	ReadOverwrite                 // later than the next write; the writes in between were never read
	ReadTorn                      // no completed write produced this value
)

func (k ReadKind) String() string {
	switch k {
	case ReadInitial:
		return "initial"
	case ReadFresh:
		return "fresh"
	case ReadStale:
		return "stale"
	case ReadOverwrite:
		return "overwrite"
	case ReadTorn:
		return "torn"
	default:
		return fmt.Sprintf("ReadKind(%d)", int(k))
	}
}

// Check is the outcome of CheckRead.
type Check struct {
	Kind  ReadKind
	Index int // write index of the value, -1 for the initial zero
	Lost  int // writes skipped since the previous read, for ReadOverwrite
}

// CheckRead classifies value given the write index of the previous read
// (-1 before any write was seen). The writer only counts up, so a value that
// goes backwards, or back to zero, was never the last completed write.
func CheckRead(prev int, value int64, p Params) Check {
	if value == 0 {
		if prev >= 0 {
			return Check{Kind: ReadTorn, Index: prev}
		}
		return Check{Kind: ReadInitial, Index: -1}
	}
	idx := value - p.StartValue
	if idx < 0 || idx >= int64(p.Iterations) || int(idx) < prev {
		return Check{Kind: ReadTorn, Index: prev}
	}
	i := int(idx)
	switch {
	case i == prev:
		return Check{Kind: ReadStale, Index: i}
	case i == prev+1:
		return Check{Kind: ReadFresh, Index: i}
	default:
		return Check{Kind: ReadOverwrite, Index: i, Lost: i - prev - 1}
	}
}

// WriterStats describes what the writer did.
type WriterStats struct {
	Written int
}

// Writer is the producer role of a shared region run.
// A nil Guard runs it unguarded.
type Writer struct {
	View   *View
	Guard  sync.Locker
	Params Params
	Clock  clock.Clock
	Unit   clock.Unit
	Rec    *trace.Recorder
}

// Run writes Iterations consecutive values.
func (w *Writer) Run() (WriterStats, error) {
	var stats WriterStats
	delay := w.Unit.Duration(w.Params.WriteDelay)
	for i := 0; i < w.Params.Iterations; i++ {
		value := w.Params.Value(i)
		if w.Guard != nil {
			w.View.WriteSynchronized(w.Guard, value)
		} else {
			w.View.WriteUnsynchronized(value)
		}
		stats.Written++
		w.Rec.Sent(strconv.FormatInt(value, 10), fmt.Sprintf("wrote %d", value))
		w.Clock.Sleep(delay)
	}
	w.Rec.Done("done.")
	return stats, nil
}

// ReaderStats describes what the reader observed.
type ReaderStats struct {
	Reads      int
	Values     []int64 // values in read order
	Stale      int
	Overwrites int
	LostWrites int
	Torn       int
}

// Races returns the number of reads classified as a race.
func (s ReaderStats) Races() int {
	return s.Stale + s.Overwrites
}

// Reader is the consumer role of a shared region run.
// A nil Guard runs it unguarded.
type Reader struct {
	View   *View
	Guard  sync.Locker
	Params Params
	Clock  clock.Clock
	Unit   clock.Unit
	Rec    *trace.Recorder
}

// Run reads Iterations times. Unguarded, stale and overwritten reads are
// reported as races and a closing summary is emitted. Torn reads are
// reported in both modes.
//
// A read equal to the previous one counts as stale whether or not the
// writer wrote in between, so equal write and read delays will report
// such repeats as races.
func (r *Reader) Run() (ReaderStats, error) {
	stats := ReaderStats{Values: make([]int64, 0, r.Params.Iterations)}
	guarded := r.Guard != nil
	delay := r.Unit.Duration(r.Params.ReadDelay)

	prev := -1
	for n := 0; n < r.Params.Iterations; n++ {
		var value int64
		if guarded {
			value = r.View.ReadSynchronized(r.Guard)
		} else {
			value = r.View.ReadUnsynchronized()
		}
		stats.Reads++
		stats.Values = append(stats.Values, value)
		payload := strconv.FormatInt(value, 10)

		c := CheckRead(prev, value, r.Params)
		switch {
		case c.Kind == ReadTorn:
			stats.Torn++
			r.Rec.Torn(payload, fmt.Sprintf("read %d, last completed write index was %d", value, prev))
		case c.Kind == ReadStale && !guarded:
			stats.Stale++
			r.Rec.Race(payload, fmt.Sprintf("stale read %d, same write as the previous read", value))
		case c.Kind == ReadOverwrite && !guarded:
			stats.Overwrites++
			stats.LostWrites += c.Lost
			r.Rec.Race(payload, fmt.Sprintf("%s: %d write(s) lost before read %d", trace.MarkerOverwrite, c.Lost, value))
		default:
			r.Rec.Received(payload, nil, fmt.Sprintf("read %d", value))
		}
		if c.Kind != ReadTorn {
			prev = c.Index
		}
		r.Clock.Sleep(delay)
	}

	if !guarded {
		unread := r.Params.Iterations - 1 - prev
		r.Rec.RaceSummary(fmt.Sprintf("%d read(s), %d stale, %d write(s) overwritten, %d never read",
			stats.Reads, stats.Stale, stats.LostWrites, unread))
	}
	r.Rec.Done("done.")
	return stats, nil
}
