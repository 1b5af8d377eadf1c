package lifecycle

import (
	"reflect"

	"github.com/bft-labs/scopesync/pkg/state"
)

// Scoped is notified when it joins a scope and when that scope is destroyed.
type Scoped interface {
	// OnEnterScope is called once, synchronously, the first time the value is
	// registered on scope.
	OnEnterScope(scope *Scope)

	// OnExitScope is called once when the scope is destroyed.
	OnExitScope()
}

// Listener is a Scoped value that also persists a state fragment.
//
// Implementations must be comparable; registration uses interface equality
// for identity, so pointer receivers are the norm.
type Listener interface {
	Scoped

	// Key names the listener's fragment within its scope. It must be
	// non-blank and unique per scope. The value seen at first registration
	// is used for the lifetime of the membership.
	Key() string

	// OnLoad receives the listener's fragment, or nil when there is no prior
	// state.
	OnLoad(saved state.Bundle) error

	// OnSave writes the listener's state into out, a fresh bundle owned by
	// the save pass.
	OnSave(out state.Bundle) error
}

// ListenerFuncs adapts plain functions to Listener. Nil funcs are skipped.
// Register a *ListenerFuncs; the struct itself is not comparable.
type ListenerFuncs struct {
	Name  string
	Enter func(scope *Scope)
	Load  func(saved state.Bundle) error
	Save  func(out state.Bundle) error
	Exit  func()
}

func (f *ListenerFuncs) Key() string { return f.Name }

func (f *ListenerFuncs) OnEnterScope(scope *Scope) {
	if f.Enter != nil {
		f.Enter(scope)
	}
}

func (f *ListenerFuncs) OnLoad(saved state.Bundle) error {
	if f.Load == nil {
		return nil
	}
	return f.Load(saved)
}

func (f *ListenerFuncs) OnSave(out state.Bundle) error {
	if f.Save == nil {
		return nil
	}
	return f.Save(out)
}

func (f *ListenerFuncs) OnExitScope() {
	if f.Exit != nil {
		f.Exit()
	}
}

var _ Listener = (*ListenerFuncs)(nil)

// checkMember rejects nil and uncomparable members before they are used as
// map keys.
func checkMember(m Scoped) error {
	if m == nil {
		return ErrNilListener
	}
	v := reflect.ValueOf(m)
	switch v.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Func, reflect.Chan, reflect.Slice:
		if v.IsNil() {
			return ErrNilListener
		}
	}
	if !v.Type().Comparable() {
		return ErrUncomparableListener
	}
	return nil
}
