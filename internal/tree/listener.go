package tree

import (
	"github.com/bft-labs/scopesync/pkg/lifecycle"
	"github.com/bft-labs/scopesync/pkg/state"
)

// ValueListener persists a flat set of values. Restored values override the
// declared defaults.
type ValueListener struct {
	key      string
	defaults state.Bundle
	values   state.Bundle

	scope    *lifecycle.Scope
	restored bool
	exited   bool
}

// NewValueListener returns a listener for key seeded with defaults.
func NewValueListener(key string, defaults map[string]any) *ValueListener {
	d := state.Bundle(defaults).Clone()
	if d == nil {
		d = state.NewBundle()
	}
	return &ValueListener{
		key:      key,
		defaults: d,
		values:   d.Clone(),
	}
}

func (l *ValueListener) Key() string { return l.key }

func (l *ValueListener) OnEnterScope(scope *lifecycle.Scope) { l.scope = scope }

func (l *ValueListener) OnExitScope() { l.exited = true }

func (l *ValueListener) OnLoad(saved state.Bundle) error {
	l.values = l.defaults.Clone()
	l.restored = saved != nil
	for k, v := range saved.Clone() {
		l.values.Put(k, v)
	}
	return nil
}

func (l *ValueListener) OnSave(out state.Bundle) error {
	for k, v := range l.values.Clone() {
		out.Put(k, v)
	}
	return nil
}

// Get returns the current value of field.
func (l *ValueListener) Get(field string) (any, bool) {
	return l.values.Get(field)
}

// Set changes field. The change is persisted by the next save pass.
func (l *ValueListener) Set(field string, value any) {
	l.values.Put(field, value)
}

// Values returns a copy of the current values.
func (l *ValueListener) Values() state.Bundle {
	return l.values.Clone()
}

// Scope returns the scope the listener entered, or nil.
func (l *ValueListener) Scope() *lifecycle.Scope { return l.scope }

// Restored reports whether the last load found saved state.
func (l *ValueListener) Restored() bool { return l.restored }

// Exited reports whether the listener's scope has been destroyed.
func (l *ValueListener) Exited() bool { return l.exited }

// mergeDefaults adds fields declared in defaults that are not yet set.
func (l *ValueListener) mergeDefaults(defaults map[string]any) {
	for k, v := range state.Bundle(defaults).Clone() {
		if _, ok := l.defaults.Get(k); !ok {
			l.defaults.Put(k, v)
			if _, ok := l.values.Get(k); !ok {
				l.values.Put(k, v)
			}
		}
	}
}

var _ lifecycle.Listener = (*ValueListener)(nil)
