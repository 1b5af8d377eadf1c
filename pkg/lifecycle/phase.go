package lifecycle

import (
	"fmt"

	"github.com/bft-labs/scopesync/pkg/log"
)

// Phase is the coordinator's pass state.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseLoading
	PhaseSaving
)

// String returns a human-readable representation of the phase.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "Idle"
	case PhaseLoading:
		return "Loading"
	case PhaseSaving:
		return "Saving"
	default:
		return "Unknown"
	}
}

// EventEmitter is called when the coordinator phase changes.
type EventEmitter interface {
	OnPhaseChange(previous, current Phase, reason string)
}

// PhaseMachine validates and publishes phase transitions. It is not safe for
// concurrent use.
type PhaseMachine struct {
	phase   Phase
	logger  log.Logger
	emitter EventEmitter
}

// NewPhaseMachine creates a machine in PhaseIdle. Both arguments may be nil.
func NewPhaseMachine(logger log.Logger, emitter EventEmitter) *PhaseMachine {
	return &PhaseMachine{
		phase:   PhaseIdle,
		logger:  log.OrNoop(logger),
		emitter: emitter,
	}
}

// Phase returns the current phase.
func (m *PhaseMachine) Phase() Phase {
	return m.phase
}

// IsIdle reports whether no pass is running.
func (m *PhaseMachine) IsIdle() bool {
	return m.phase == PhaseIdle
}

// TransitionTo attempts to transition to a new phase.
// Returns ErrInvalidTransition if the transition is not valid.
func (m *PhaseMachine) TransitionTo(next Phase, reason string) error {
	prev := m.phase

	switch prev {
	case PhaseIdle:
		if next != PhaseLoading && next != PhaseSaving {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, prev, next)
		}
	case PhaseLoading, PhaseSaving:
		if next != PhaseIdle {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, prev, next)
		}
	default:
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, prev, next)
	}

	m.phase = next

	if m.emitter != nil {
		m.emitter.OnPhaseChange(prev, next, reason)
	}

	m.logger.Info("phase transition",
		log.String("from", prev.String()),
		log.String("to", next.String()),
		log.String("reason", reason),
	)

	return nil
}
