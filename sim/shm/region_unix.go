//go:build unix

package shm

import (
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// DefaultDir returns the directory for region names: /dev/shm when present,
// the system temporary directory otherwise.
func DefaultDir() string {
	if fi, err := os.Stat("/dev/shm"); err == nil && fi.IsDir() {
		return "/dev/shm"
	}
	return os.TempDir()
}

func (r *Region) create(dir string) error {
	path := filepath.Join(dir, r.name)
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.Truncate(int64(r.size)); err != nil {
		_ = os.Remove(path)
		return err
	}
	buf, err := mapFile(f, r.size)
	if err != nil {
		_ = os.Remove(path)
		return err
	}
	r.path = path
	r.view = &View{buf: buf, detach: func() error { return unix.Munmap(buf) }}
	return nil
}

func (r *Region) attach() (*View, error) {
	f, err := os.OpenFile(r.path, os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf, err := mapFile(f, r.size)
	if err != nil {
		return nil, err
	}
	return &View{buf: buf, detach: func() error { return unix.Munmap(buf) }}, nil
}

func (r *Region) unlink() error {
	return os.Remove(r.path)
}

func mapFile(f *os.File, size int) ([]byte, error) {
	return unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
}
