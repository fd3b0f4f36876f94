package sim

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"

	"github.com/sirupsen/logrus"
)

// teardown releases the resources of one run in reverse acquisition order.
// Every release runs even when an earlier one fails.
//
// The zero value is ready to use.
type teardown struct {
	mu    sync.Mutex
	steps []teardownStep
}

type teardownStep struct {
	name    string
	release func() error
}

// add registers c under name.
func (t *teardown) add(name string, c io.Closer) {
	t.addFunc(name, c.Close)
}

// addFunc registers a release function under name.
func (t *teardown) addFunc(name string, fn func() error) {
	t.mu.Lock()
	t.steps = append(t.steps, teardownStep{name: name, release: fn})
	t.mu.Unlock()
}

// Close runs every registered release, last registered first, and returns
// the join of their errors. Closing again is a no-op.
func (t *teardown) Close() error {
	t.mu.Lock()
	steps := t.steps
	t.steps = nil
	t.mu.Unlock()

	var errv []error
	for _, s := range slices.Backward(steps) {
		if err := s.release(); err != nil {
			logrus.Warnf("teardown: %s: %v", s.name, err)
			errv = append(errv, fmt.Errorf("%s: %w", s.name, err))
			continue
		}
		logrus.Debugf("teardown: released %s", s.name)
	}
	return errors.Join(errv...)
}
