package app

import (
	"sync"

	"github.com/bft-labs/scopesync/internal/domain"
	"github.com/bft-labs/scopesync/pkg/log"
)

// State represents the run state of a host.
type State int

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
	StateCrashed
)

var stateNames = [...]string{
	StateStopped:  "Stopped",
	StateStarting: "Starting",
	StateRunning:  "Running",
	StateStopping: "Stopping",
	StateCrashed:  "Crashed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "Unknown"
	}
	return stateNames[s]
}

// transitions lists the states reachable from each state. A host only leaves
// a resting state (Stopped or Crashed) by starting again.
var transitions = map[State][]State{
	StateStopped:  {StateStarting},
	StateStarting: {StateRunning, StateStopping, StateCrashed},
	StateRunning:  {StateStopping, StateCrashed},
	StateStopping: {StateStopped, StateCrashed},
	StateCrashed:  {StateStarting},
}

func canTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// resting reports whether no run is in progress.
func (s State) resting() bool {
	return s == StateStopped || s == StateCrashed
}

// live reports whether the tree is open for use. Plugins initialize against
// it while the host is still starting.
func (s State) live() bool {
	return s == StateStarting || s == StateRunning
}

// EventEmitter is called when the run state changes.
type EventEmitter interface {
	OnStateChange(previous, current State, reason string)
}

// Lifecycle guards a host's run state. It is safe for concurrent use.
type Lifecycle struct {
	mu      sync.RWMutex
	state   State
	logger  log.Logger
	emitter EventEmitter
}

// NewLifecycle creates a lifecycle in StateStopped. Both arguments may be nil.
func NewLifecycle(logger log.Logger, emitter EventEmitter) *Lifecycle {
	return &Lifecycle{
		state:   StateStopped,
		logger:  log.OrNoop(logger),
		emitter: emitter,
	}
}

func (l *Lifecycle) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// TransitionTo moves to next if the table allows it. A rejected move from a
// resting state reports ErrNotRunning; from any other state ErrAlreadyRunning.
func (l *Lifecycle) TransitionTo(next State, reason string) error {
	l.mu.Lock()
	prev := l.state
	if !canTransition(prev, next) {
		l.mu.Unlock()
		if prev.resting() {
			return domain.ErrNotRunning
		}
		return domain.ErrAlreadyRunning
	}
	l.state = next
	l.mu.Unlock()

	if l.emitter != nil {
		l.emitter.OnStateChange(prev, next, reason)
	}
	l.logger.Info("run state changed",
		log.String("from", prev.String()),
		log.String("to", next.String()),
		log.String("reason", reason),
	)
	return nil
}

// CanStart reports whether Start may be called.
func (l *Lifecycle) CanStart() bool {
	return canTransition(l.State(), StateStarting)
}

// CanStop reports whether Stop may be called.
func (l *Lifecycle) CanStop() bool {
	return canTransition(l.State(), StateStopping)
}

// Accepting reports whether Do and Checkpoint may touch the tree.
func (l *Lifecycle) Accepting() bool {
	return l.State().live()
}
