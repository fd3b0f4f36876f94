package sim

import (
	"errors"
	"fmt"
)

// ErrRunnerBusy is returned by Run while another run is in progress.
var ErrRunnerBusy = errors.New("sim: runner busy")

// ChannelCreationError reports a transport that could not be set up.
// The run that hit it ends Failed.
type ChannelCreationError struct {
	Kind Kind
	Err  error
}

func (e *ChannelCreationError) Error() string {
	return fmt.Sprintf("sim: create %s channel: %v", e.Kind, e.Err)
}

func (e *ChannelCreationError) Unwrap() error {
	return e.Err
}

// InvalidScenarioError reports parameters rejected before a run starts.
// The runner state is left unchanged.
type InvalidScenarioError struct {
	Mode Mode
	Err  error
}

func (e *InvalidScenarioError) Error() string {
	return fmt.Sprintf("sim: invalid %s scenario: %v", e.Mode, e.Err)
}

func (e *InvalidScenarioError) Unwrap() error {
	return e.Err
}
