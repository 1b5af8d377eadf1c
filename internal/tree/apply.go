package tree

import (
	"errors"
	"fmt"
	"sort"

	"github.com/bft-labs/scopesync/internal/domain"
	"github.com/bft-labs/scopesync/pkg/lifecycle"
)

// ErrUnknownListener is returned by Tree.Set for an undeclared path or key.
var ErrUnknownListener = errors.New("tree: unknown listener")

// Tree is the result of applying a Definition: the value listeners it
// declares, by scope path and key.
type Tree struct {
	root      *lifecycle.Scope
	listeners map[string]map[string]*ValueListener
}

// Apply reconciles the live tree under root with def. Declared scopes are
// created when missing, declared listeners are registered (an existing
// ValueListener with the same key is reused) and live child scopes that def
// no longer declares are destroyed. Listeners the definition drops stay
// registered until their scope is destroyed.
//
// Registration happens parents first, so restored values are loaded before
// Apply returns when the coordinator is idle.
func Apply(root *lifecycle.Scope, def *Definition) (*Tree, error) {
	if root == nil || root.IsDestroyed() {
		return nil, fmt.Errorf("%w: root scope is not live", domain.ErrInvalidTree)
	}
	if def == nil {
		def = &Definition{}
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}

	t := &Tree{
		root:      root,
		listeners: make(map[string]map[string]*ValueListener),
	}
	if err := t.apply(root, def.Listeners, def.Scopes); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Tree) apply(scope *lifecycle.Scope, listeners []ListenerDef, scopes []ScopeDef) error {
	for _, ld := range listeners {
		l, err := t.register(scope, ld)
		if err != nil {
			return err
		}
		if t.listeners[scope.Path()] == nil {
			t.listeners[scope.Path()] = make(map[string]*ValueListener)
		}
		t.listeners[scope.Path()][ld.Key] = l
	}

	declared := make(map[string]bool, len(scopes))
	for _, sd := range scopes {
		declared[sd.Name] = true
		child, err := scope.RequireChild(sd.Name)
		if err != nil {
			return err
		}
		if err := t.apply(child, sd.Listeners, sd.Scopes); err != nil {
			return err
		}
	}

	for _, child := range scope.Children() {
		if declared[child.Name()] {
			continue
		}
		if err := child.Destroy(); err != nil {
			return err
		}
	}
	return nil
}

func (t *Tree) register(scope *lifecycle.Scope, ld ListenerDef) (*ValueListener, error) {
	for _, existing := range scope.Listeners() {
		if existing.Key() != ld.Key {
			continue
		}
		vl, ok := existing.(*ValueListener)
		if !ok {
			return nil, fmt.Errorf("%w: key %q in %s is held by another listener",
				domain.ErrInvalidTree, ld.Key, displayPath(scope.Path()))
		}
		vl.mergeDefaults(ld.Values)
		return vl, nil
	}

	l := NewValueListener(ld.Key, ld.Values)
	if err := scope.Register(l); err != nil {
		return nil, err
	}
	return l, nil
}

// Listener returns the value listener declared at path under key.
func (t *Tree) Listener(path, key string) (*ValueListener, bool) {
	l, ok := t.listeners[path][key]
	return l, ok
}

// Set assigns field on the listener declared at path under key.
func (t *Tree) Set(path, key, field string, value any) error {
	l, ok := t.Listener(path, key)
	if !ok {
		return fmt.Errorf("%w: %s[%s]", ErrUnknownListener, displayPath(path), key)
	}
	l.Set(field, value)
	return nil
}

// Paths returns the paths that carry declared listeners, sorted.
func (t *Tree) Paths() []string {
	paths := make([]string, 0, len(t.listeners))
	for p := range t.listeners {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Root returns the scope the tree was applied to.
func (t *Tree) Root() *lifecycle.Scope { return t.root }
