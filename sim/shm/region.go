// Package shm implements the shared region transport: a named, fixed-size
// byte buffer whose first 8 bytes hold an int64, accessed by a writer and a
// reader either directly or under a mutual-exclusion guard.
package shm

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"unsafe"
)

// CellSize is the size of the shared integer cell in bytes.
const CellSize = 8

var (
	// ErrRegionTooSmall is returned by Create for sizes below CellSize.
	ErrRegionTooSmall = errors.New("shm: region smaller than one 8-byte cell")

	// ErrUnlinked is returned by Attach after the region name was removed.
	ErrUnlinked = errors.New("shm: region unlinked")

	// ErrDetached is returned when closing a view twice.
	ErrDetached = errors.New("shm: view detached")
)

// Region is the creator's handle on a named shared region.
// The creator owns the name and must Unlink it once every role is done.
type Region struct {
	mu       sync.Mutex
	name     string
	path     string // backing file, empty when heap-backed
	size     int
	view     *View  // creator mapping, used to zero-initialize the cell
	backing  []byte // heap backing on platforms without mmap
	unlinked bool
}

// Create allocates a region of size bytes named name under dir and zeroes its cell.
func Create(dir, name string, size int) (*Region, error) {
	if size < CellSize {
		return nil, fmt.Errorf("%w (size %d)", ErrRegionTooSmall, size)
	}
	r := &Region{name: name, size: size}
	if err := r.create(dir); err != nil {
		return nil, fmt.Errorf("shm: create %q: %w", name, err)
	}
	r.view.WriteUnsynchronized(0)
	return r, nil
}

// Name returns the region name.
func (r *Region) Name() string {
	return r.name
}

// Path returns the backing file path, or "" for a heap-backed region.
func (r *Region) Path() string {
	return r.path
}

// Size returns the region size in bytes.
func (r *Region) Size() int {
	return r.size
}

// Attach maps the region again and returns an independent view of it.
func (r *Region) Attach() (*View, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.unlinked {
		return nil, fmt.Errorf("shm: attach %q: %w", r.name, ErrUnlinked)
	}
	v, err := r.attach()
	if err != nil {
		return nil, fmt.Errorf("shm: attach %q: %w", r.name, err)
	}
	return v, nil
}

// Unlink removes the region name. Existing views stay valid until detached.
// Unlinking twice is a no-op.
func (r *Region) Unlink() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.unlinked {
		return nil
	}
	r.unlinked = true
	if err := r.unlink(); err != nil {
		return fmt.Errorf("shm: unlink %q: %w", r.name, err)
	}
	return nil
}

// Close detaches the creator view and unlinks the region.
func (r *Region) Close() error {
	var errv []error
	if err := r.view.Detach(); err != nil && !errors.Is(err, ErrDetached) {
		errv = append(errv, err)
	}
	if err := r.Unlink(); err != nil {
		errv = append(errv, err)
	}
	return errors.Join(errv...)
}

// View is one mapping of a region. A view is used by a single role.
type View struct {
	buf      []byte
	detach   func() error
	detached bool
}

// cell returns the aligned int64 at the start of the mapping.
// Mappings start on a page boundary and heap backings on a word boundary.
func (v *View) cell() *int64 {
	return (*int64)(unsafe.Pointer(&v.buf[0]))
}

// WriteUnsynchronized stores value with one aligned 64-bit store and no coordination.
func (v *View) WriteUnsynchronized(value int64) {
	atomic.StoreInt64(v.cell(), value)
}

// ReadUnsynchronized loads the cell with one aligned 64-bit load and no coordination.
func (v *View) ReadUnsynchronized() int64 {
	return atomic.LoadInt64(v.cell())
}

// WriteSynchronized encodes value into the cell while holding guard.
func (v *View) WriteSynchronized(guard sync.Locker, value int64) {
	guard.Lock()
	binary.NativeEndian.PutUint64(v.buf[:CellSize], uint64(value))
	guard.Unlock()
}

// ReadSynchronized decodes the cell while holding guard.
func (v *View) ReadSynchronized(guard sync.Locker) int64 {
	guard.Lock()
	value := int64(binary.NativeEndian.Uint64(v.buf[:CellSize]))
	guard.Unlock()
	return value
}

// Detach releases the mapping. The view must not be used afterwards.
func (v *View) Detach() error {
	if v.detached {
		return ErrDetached
	}
	v.detached = true
	if v.detach == nil {
		return nil
	}
	if err := v.detach(); err != nil {
		return fmt.Errorf("shm: detach: %w", err)
	}
	return nil
}
