package sim

import (
	"fmt"
	"strings"

	"github.com/inference-sim/ipc-sim/sim/pipe"
	"github.com/inference-sim/ipc-sim/sim/queue"
	"github.com/inference-sim/ipc-sim/sim/shm"
)

// Kind is the transport a scenario exercises.
type Kind string

const (
	KindPipe   Kind = "pipe"
	KindQueue  Kind = "queue"
	KindShared Kind = "shm"
)

// Mode is the user-facing selector of a scenario.
type Mode string

const (
	ModePipe          Mode = "pipe"
	ModeQueue         Mode = "queue"
	ModeShared        Mode = "shm"
	ModeSharedNoGuard Mode = "shm-nolock"
)

// AllModes lists the modes in the order they run when none is selected.
var AllModes = []Mode{ModePipe, ModeQueue, ModeShared, ModeSharedNoGuard}

// validModes maps mode names to modes for ParseMode and IsValidMode.
var validModes = map[string]Mode{
	string(ModePipe):          ModePipe,
	string(ModeQueue):         ModeQueue,
	string(ModeShared):        ModeShared,
	string(ModeSharedNoGuard): ModeSharedNoGuard,
}

// IsValidMode returns true if name selects a scenario.
func IsValidMode(name string) bool {
	_, ok := validModes[name]
	return ok
}

// ParseMode resolves a mode name. The empty name selects every mode, in AllModes order.
func ParseMode(name string) ([]Mode, error) {
	if name == "" {
		return append([]Mode(nil), AllModes...), nil
	}
	m, ok := validModes[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unknown mode %q; valid modes: %s", name, strings.Join(ModeNames(), ", "))
	}
	return []Mode{m}, nil
}

// ModeNames returns the mode names in AllModes order.
func ModeNames() []string {
	names := make([]string, len(AllModes))
	for i, m := range AllModes {
		names[i] = string(m)
	}
	return names
}

// Scenario is one parametrized run of a transport. The set of scenarios is
// closed: PipeScenario, QueueScenario and SharedScenario.
type Scenario interface {
	Kind() Kind
	Mode() Mode
	// Title names the run in banner and finished lines.
	Title() string
	// Items is the number of items the producer attempts to transfer.
	Items() int
	Validate() error
	scenario()
}

// PipeScenario runs the pipe transport.
type PipeScenario struct {
	Params pipe.Params
}

func (PipeScenario) Kind() Kind        { return KindPipe }
func (PipeScenario) Mode() Mode        { return ModePipe }
func (PipeScenario) Title() string     { return "Pipe" }
func (s PipeScenario) Items() int      { return len(s.Params.Messages) }
func (s PipeScenario) Validate() error { return s.Params.Validate() }
func (PipeScenario) scenario()         {}

// QueueScenario runs the bounded queue transport.
type QueueScenario struct {
	Params queue.Params
}

func (QueueScenario) Kind() Kind        { return KindQueue }
func (QueueScenario) Mode() Mode        { return ModeQueue }
func (QueueScenario) Title() string     { return "Queue" }
func (s QueueScenario) Items() int      { return len(s.Params.Items) }
func (s QueueScenario) Validate() error { return s.Params.Validate() }
func (QueueScenario) scenario()         {}

// SharedScenario runs the shared region transport, guarded or not.
type SharedScenario struct {
	Params  shm.Params
	Guarded bool
}

func (SharedScenario) Kind() Kind { return KindShared }

func (s SharedScenario) Mode() Mode {
	if s.Guarded {
		return ModeShared
	}
	return ModeSharedNoGuard
}

func (s SharedScenario) Title() string {
	if s.Guarded {
		return "Shared Memory (lock)"
	}
	return "Shared Memory (no lock)"
}

func (s SharedScenario) Items() int      { return s.Params.Iterations }
func (s SharedScenario) Validate() error { return s.Params.Validate() }
func (SharedScenario) scenario()         {}

// DefaultScenario returns the demo scenario of mode.
func DefaultScenario(m Mode) (Scenario, error) {
	switch m {
	case ModePipe:
		return PipeScenario{Params: pipe.DefaultParams()}, nil
	case ModeQueue:
		return QueueScenario{Params: queue.DefaultParams()}, nil
	case ModeShared:
		return SharedScenario{Params: shm.DefaultParams(true), Guarded: true}, nil
	case ModeSharedNoGuard:
		return SharedScenario{Params: shm.DefaultParams(false)}, nil
	default:
		return nil, fmt.Errorf("unknown mode %q", m)
	}
}
