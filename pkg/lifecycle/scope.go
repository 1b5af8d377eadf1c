package lifecycle

import (
	"strings"

	"github.com/bft-labs/scopesync/pkg/log"
	"github.com/bft-labs/scopesync/pkg/metrics"
)

const (
	// RootPath is the path of every coordinator's root scope.
	RootPath = ""

	// Separator joins a parent path and a child name.
	Separator = "/"
)

// Scope is a node in the lifecycle tree. Scopes are created by the
// Coordinator (root) or by CreateChild and are never copied.
type Scope struct {
	name   string
	path   string
	parent *Scope
	coord  *Coordinator

	children   map[string]*Scope
	childOrder []*Scope

	members *registry
	queue   *loadQueue

	dying     bool
	destroyed bool
}

func newScope(coord *Coordinator, parent *Scope, name string) *Scope {
	path := RootPath
	if parent != nil {
		path = parent.path + Separator + name
	}
	return &Scope{
		name:     name,
		path:     path,
		parent:   parent,
		coord:    coord,
		children: make(map[string]*Scope),
		members:  newRegistry(),
		queue:    newLoadQueue(),
	}
}

// Name returns the scope's name within its parent ("" for the root).
func (s *Scope) Name() string { return s.name }

// Path returns the scope's full path.
func (s *Scope) Path() string { return s.path }

// Parent returns the parent scope, or nil for the root.
func (s *Scope) Parent() *Scope { return s.parent }

// Coordinator returns the coordinator that owns the tree.
func (s *Scope) Coordinator() *Coordinator { return s.coord }

// IsDestroyed reports whether Destroy has completed on this scope.
func (s *Scope) IsDestroyed() bool { return s.destroyed }

// Child returns the live child called name.
func (s *Scope) Child(name string) (*Scope, bool) {
	child, ok := s.children[name]
	return child, ok
}

// Children returns the live children in creation order.
func (s *Scope) Children() []*Scope {
	return append([]*Scope(nil), s.childOrder...)
}

// Listeners returns the registered listeners in registration order.
func (s *Scope) Listeners() []Listener {
	entries := s.members.listeners()
	out := make([]Listener, len(entries))
	for i, e := range entries {
		out[i] = e.listener
	}
	return out
}

// inert reports whether the scope can no longer accept members or children.
func (s *Scope) inert() bool {
	return s.destroyed || s.dying
}

// CreateChild creates a child scope at s.Path() + Separator + name.
func (s *Scope) CreateChild(name string) (*Scope, error) {
	if s.inert() {
		return nil, &ScopeError{Op: "create", Path: s.path, Err: ErrScopeDestroyed}
	}
	if strings.TrimSpace(name) == "" {
		return nil, &ScopeError{Op: "create", Path: s.path, Err: ErrBlankScopeName}
	}
	if strings.Contains(name, Separator) {
		return nil, &ScopeError{Op: "create", Path: s.path, Err: ErrInvalidScopeName}
	}
	if _, ok := s.children[name]; ok {
		return nil, &ScopeError{Op: "create", Path: s.path + Separator + name, Err: ErrDuplicateScope}
	}

	child := newScope(s.coord, s, name)
	s.children[name] = child
	s.childOrder = append(s.childOrder, child)
	s.coord.index(child)

	s.coord.logger.Debug("scope created", log.Path(child.path))
	return child, nil
}

// RequireChild returns the live child called name, creating it if needed.
func (s *Scope) RequireChild(name string) (*Scope, error) {
	if child, ok := s.children[name]; ok {
		return child, nil
	}
	return s.CreateChild(name)
}

// RegisterScoped adds m to the scope and calls m.OnEnterScope the first time.
// m receives OnExitScope when the scope is destroyed but never loads or saves.
func (s *Scope) RegisterScoped(m Scoped) error {
	if err := checkMember(m); err != nil {
		return &ScopeError{Op: "register", Path: s.path, Err: err}
	}
	if s.inert() {
		return &ScopeError{Op: "register", Path: s.path, Err: ErrScopeDestroyed}
	}
	if s.coord.Phase() == PhaseSaving {
		return &ScopeError{Op: "register", Path: s.path, Err: ErrRegisterDuringSave}
	}
	if _, ok := s.members.lookup(m); ok {
		return nil
	}
	s.members.add(&member{scoped: m})
	s.enter(m)
	return nil
}

// Register adds l to the scope and requests that it load.
//
// OnEnterScope fires the first time l is registered here. While the
// coordinator is Idle, l (and anything else pending) loads before Register
// returns. While Loading, l is queued for the running drain. While Saving,
// Register fails with ErrRegisterDuringSave. Registering an already loaded
// listener loads it again from the current store.
func (s *Scope) Register(l Listener) error {
	if err := checkMember(l); err != nil {
		return &ScopeError{Op: "register", Path: s.path, Err: err}
	}
	if s.inert() {
		return &ScopeError{Op: "register", Path: s.path, Err: ErrScopeDestroyed}
	}
	if s.coord.Phase() == PhaseSaving {
		return &ScopeError{Op: "register", Path: s.path, Key: l.Key(), Err: ErrRegisterDuringSave}
	}

	existing, known := s.members.lookup(l)
	if !known || existing.listener == nil {
		key := l.Key()
		if strings.TrimSpace(key) == "" {
			return &ScopeError{Op: "register", Path: s.path, Err: ErrBlankKey}
		}
		if owner, ok := s.members.keyOwner(key); ok && owner.scoped != Scoped(l) {
			return &ScopeError{Op: "register", Path: s.path, Key: key, Err: ErrDuplicateKey}
		}
		if known {
			s.members.promote(existing, l, key)
		} else {
			s.members.add(&member{scoped: l, listener: l, key: key})
			s.coord.logger.Debug("listener registered", log.Path(s.path), log.Key(key))
			s.enter(l)
		}
	}

	// OnEnterScope may have torn the scope down.
	if s.inert() {
		return nil
	}

	drainNow, err := s.queue.admit(l, s.coord.Phase())
	if err != nil {
		key, _ := s.members.keyOf(l)
		return &ScopeError{Op: "register", Path: s.path, Key: key, Err: err}
	}
	if drainNow {
		return s.coord.drain("register")
	}
	return nil
}

func (s *Scope) enter(m Scoped) {
	s.coord.recorder.AddCallbacks(metrics.CallbackEnter, 1)
	m.OnEnterScope(s)
}

// Destroy tears down the scope: children first in creation order, then
// OnExitScope for every member in registration order. Destroying a scope
// twice fails with ErrScopeDestroyed; calling Destroy while the scope is
// already being torn down is a no-op.
func (s *Scope) Destroy() error {
	if s.destroyed {
		return &ScopeError{Op: "destroy", Path: s.path, Err: ErrScopeDestroyed}
	}
	if s.dying {
		return nil
	}
	s.dying = true

	for _, child := range s.Children() {
		if !child.inert() {
			_ = child.Destroy()
		}
	}

	members := s.members.members()
	for _, m := range members {
		m.scoped.OnExitScope()
	}
	s.coord.recorder.AddCallbacks(metrics.CallbackExit, len(members))

	s.queue.clear()
	s.destroyed = true
	s.dying = false

	if s.parent != nil {
		s.parent.detach(s)
	}
	s.coord.unindex(s)

	s.coord.logger.Debug("scope destroyed",
		log.Path(s.path),
		log.Int("members", len(members)),
	)
	return nil
}

func (s *Scope) detach(child *Scope) {
	if s.children[child.name] == child {
		delete(s.children, child.name)
	}
	for i, c := range s.childOrder {
		if c == child {
			s.childOrder = append(s.childOrder[:i], s.childOrder[i+1:]...)
			break
		}
	}
}
