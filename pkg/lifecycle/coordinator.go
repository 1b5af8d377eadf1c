package lifecycle

import (
	"time"

	"github.com/bft-labs/scopesync/pkg/log"
	"github.com/bft-labs/scopesync/pkg/metrics"
	"github.com/bft-labs/scopesync/pkg/state"
)

// Coordinator drives restore and save passes over one scope tree.
type Coordinator struct {
	root   *Scope
	byPath map[string]*Scope
	// scopes lists scopes in creation order. Destroyed scopes are removed
	// lazily so a running drain can keep iterating by index.
	scopes []*Scope

	store    *state.Store
	phase    *PhaseMachine
	logger   log.Logger
	recorder metrics.Recorder
}

// New creates a coordinator with an empty root scope in PhaseIdle.
func New(opts ...Option) *Coordinator {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	c := &Coordinator{
		byPath:   make(map[string]*Scope),
		store:    state.NewStore(nil),
		logger:   log.OrNoop(o.logger),
		recorder: metrics.OrNoop(o.recorder),
	}
	c.phase = NewPhaseMachine(c.logger, o.emitter)
	c.root = newScope(c, nil, "")
	c.index(c.root)
	return c
}

// Root returns the root scope.
func (c *Coordinator) Root() *Scope { return c.root }

// Phase returns the current phase.
func (c *Coordinator) Phase() Phase { return c.phase.Phase() }

// Store returns the store of the latest pass. Before the first pass it has no
// root.
func (c *Coordinator) Store() *state.Store { return c.store }

// IsDestroyed reports whether the root scope has been destroyed.
func (c *Coordinator) IsDestroyed() bool { return c.root.destroyed }

// Scope returns the live scope at path.
func (c *Coordinator) Scope(path string) (*Scope, bool) {
	s, ok := c.byPath[path]
	return s, ok
}

// Scopes returns the live scopes in creation order.
func (c *Coordinator) Scopes() []*Scope {
	out := make([]*Scope, 0, len(c.byPath))
	for _, s := range c.scopes {
		if !s.destroyed {
			out = append(out, s)
		}
	}
	return out
}

func (c *Coordinator) index(s *Scope) {
	c.byPath[s.path] = s
	c.scopes = append(c.scopes, s)
	c.recorder.SetLiveScopes(len(c.byPath))
}

func (c *Coordinator) unindex(s *Scope) {
	if c.byPath[s.path] == s {
		delete(c.byPath, s.path)
	}
	if c.Phase() != PhaseLoading {
		c.compact()
	}
	c.recorder.SetLiveScopes(len(c.byPath))
}

// compact drops destroyed scopes from the creation-ordered list.
func (c *Coordinator) compact() {
	live := c.scopes[:0]
	for _, s := range c.scopes {
		if !s.destroyed {
			live = append(live, s)
		}
	}
	for i := len(live); i < len(c.scopes); i++ {
		c.scopes[i] = nil
	}
	c.scopes = live
}

// checkIdle rejects a pass that cannot start now.
func (c *Coordinator) checkIdle(pass metrics.PassLabel) error {
	var err error
	switch {
	case c.root.destroyed:
		err = ErrCoordinatorDestroyed
	case !c.phase.IsIdle():
		err = ErrNotIdle
	default:
		return nil
	}
	c.recorder.IncPassOutcome(pass, metrics.OutcomeRejected)
	return err
}

// OnCreate restores from saved, which may be nil for a cold start. Every live
// listener is queued again and loaded with its fragment from saved.
func (c *Coordinator) OnCreate(saved state.Bundle) error {
	if err := c.checkIdle(metrics.PassLoad); err != nil {
		return err
	}

	c.store = state.NewStore(saved)
	for _, s := range c.scopes {
		if s.destroyed {
			continue
		}
		s.queue.reset(s.Listeners())
	}

	c.logger.Debug("restoring",
		log.Bool("cold_start", saved == nil),
		log.Int("scopes", len(c.byPath)),
	)
	return c.drain("restore")
}

// drain loads queued listeners in rounds until a round loads nothing.
// Scopes created during a round are visited later in the same round because
// they are appended to c.scopes.
func (c *Coordinator) drain(reason string) (err error) {
	if err := c.phase.TransitionTo(PhaseLoading, reason); err != nil {
		return err
	}

	start := time.Now()
	rounds := 0
	loads := 0
	defer func() {
		c.compact()
		c.recorder.ObservePassDuration(metrics.PassLoad, time.Since(start))
		c.recorder.ObserveDrainRounds(rounds)
		c.recorder.AddCallbacks(metrics.CallbackLoad, loads)

		done := "loaded"
		outcome := metrics.OutcomeSuccess
		if err != nil {
			done = "load failed"
			outcome = metrics.OutcomeFailed
			c.logger.Error("load pass failed", log.Err(err), log.Int("rounds", rounds))
		}
		c.recorder.IncPassOutcome(metrics.PassLoad, outcome)
		_ = c.phase.TransitionTo(PhaseIdle, done)
	}()

	for {
		rounds++
		loaded := 0
		for i := 0; i < len(c.scopes); i++ {
			s := c.scopes[i]
			for !s.destroyed {
				l, ok := s.queue.pop()
				if !ok {
					break
				}
				loaded++
				loads++
				if err := c.load(s, l); err != nil {
					return err
				}
			}
		}
		if loaded == 0 {
			return nil
		}
		c.compact()
	}
}

func (c *Coordinator) load(s *Scope, l Listener) error {
	key, _ := s.members.keyOf(l)
	fragment, _ := c.store.FragmentFor(s.path, key)
	if err := l.OnLoad(fragment); err != nil {
		return &ScopeError{Op: "load", Path: s.path, Key: key, Err: err}
	}
	return nil
}

// OnSave writes a fragment for every listener of every live scope into out.
// out becomes the store of the coordinator. Registering from inside OnSave
// fails; destroying the listener's own scope is permitted and stops the walk
// of that scope.
func (c *Coordinator) OnSave(out state.Bundle) (err error) {
	if err := c.checkIdle(metrics.PassSave); err != nil {
		return err
	}
	if out == nil {
		c.recorder.IncPassOutcome(metrics.PassSave, metrics.OutcomeRejected)
		return ErrNilBundle
	}
	if err := c.phase.TransitionTo(PhaseSaving, "save"); err != nil {
		return err
	}

	start := time.Now()
	saves := 0
	defer func() {
		c.recorder.ObservePassDuration(metrics.PassSave, time.Since(start))
		c.recorder.AddCallbacks(metrics.CallbackSave, saves)

		done := "saved"
		outcome := metrics.OutcomeSuccess
		if err != nil {
			done = "save failed"
			outcome = metrics.OutcomeFailed
			c.logger.Error("save pass failed", log.Err(err))
		}
		c.recorder.IncPassOutcome(metrics.PassSave, outcome)
		_ = c.phase.TransitionTo(PhaseIdle, done)
	}()

	c.store = state.NewStore(out)
	for _, s := range c.Scopes() {
		if s.destroyed {
			continue
		}
		for _, m := range s.members.listeners() {
			if s.destroyed {
				break
			}
			fragment := state.NewBundle()
			c.store.PutFragment(s.path, m.key, fragment)
			saves++
			if err := m.listener.OnSave(fragment); err != nil {
				return &ScopeError{Op: "save", Path: s.path, Key: m.key, Err: err}
			}
		}
	}
	return nil
}
