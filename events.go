package scopesync

import (
	"time"

	"github.com/bft-labs/scopesync/internal/app"
	"github.com/bft-labs/scopesync/pkg/lifecycle"
)

// State is the run state of a Host.
type State int

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
	StateCrashed
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	return app.State(s).String()
}

// StateChangeEvent reports a host run state transition.
type StateChangeEvent struct {
	Previous State
	Current  State
	Reason   string
}

// PhaseChangeEvent reports a coordinator phase transition.
type PhaseChangeEvent struct {
	Previous lifecycle.Phase
	Current  lifecycle.Phase
	Reason   string
}

// CheckpointEvent reports the outcome of a checkpoint. Err is nil on success.
type CheckpointEvent struct {
	SnapshotID string
	SavedAt    time.Time
	Scopes     int
	Duration   time.Duration
	Err        error
}

// EventHandler receives host notifications.
type EventHandler interface {
	OnStateChange(event StateChangeEvent)
	OnPhaseChange(event PhaseChangeEvent)
	OnCheckpoint(event CheckpointEvent)
}

// BaseEventHandler implements EventHandler with no-ops. Embed it to handle a
// subset of events.
type BaseEventHandler struct{}

func (BaseEventHandler) OnStateChange(StateChangeEvent) {}
func (BaseEventHandler) OnPhaseChange(PhaseChangeEvent) {}
func (BaseEventHandler) OnCheckpoint(CheckpointEvent)   {}

// eventEmitterWrapper adapts EventHandler to the internal emitter interfaces.
type eventEmitterWrapper struct {
	handler EventHandler
}

func (e *eventEmitterWrapper) OnStateChange(previous, current app.State, reason string) {
	if e.handler == nil {
		return
	}
	e.handler.OnStateChange(StateChangeEvent{
		Previous: State(previous),
		Current:  State(current),
		Reason:   reason,
	})
}

func (e *eventEmitterWrapper) OnPhaseChange(previous, current lifecycle.Phase, reason string) {
	if e.handler == nil {
		return
	}
	e.handler.OnPhaseChange(PhaseChangeEvent{
		Previous: previous,
		Current:  current,
		Reason:   reason,
	})
}

func (e *eventEmitterWrapper) onCheckpoint(event CheckpointEvent) {
	if e.handler == nil {
		return
	}
	e.handler.OnCheckpoint(event)
}
