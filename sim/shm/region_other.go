//go:build !unix

package shm

import (
	"os"
	"unsafe"
)

// DefaultDir returns the system temporary directory. Regions on this
// platform are heap-backed and the directory is not used.
func DefaultDir() string {
	return os.TempDir()
}

func (r *Region) create(string) error {
	words := make([]uint64, (r.size+CellSize-1)/CellSize)
	r.backing = unsafe.Slice((*byte)(unsafe.Pointer(&words[0])), r.size)
	r.view = &View{buf: r.backing}
	return nil
}

func (r *Region) attach() (*View, error) {
	return &View{buf: r.backing}, nil
}

func (r *Region) unlink() error {
	return nil
}
