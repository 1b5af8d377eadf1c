package lifecycle

import (
	"fmt"
	"reflect"
	"time"

	"github.com/bft-labs/scopesync/pkg/metrics"
	"github.com/bft-labs/scopesync/pkg/state"
)

// testListener records every callback. Optional hooks run after recording.
type testListener struct {
	key   string
	trace *[]string

	scope      *Scope
	enters     int
	loads      int
	saves      int
	exits      int
	lastLoaded state.Bundle
	lastSaved  state.Bundle

	load func(saved state.Bundle) error
	save func(out state.Bundle) error
	exit func()
}

func newTestListener(key string) *testListener {
	return &testListener{key: key}
}

func (l *testListener) Key() string { return l.key }

func (l *testListener) OnEnterScope(scope *Scope) {
	l.scope = scope
	l.enters++
	l.record("enter")
}

func (l *testListener) OnLoad(saved state.Bundle) error {
	l.loads++
	l.lastLoaded = saved
	l.record("load")
	if saved != nil {
		if key, ok := saved.GetString("key"); ok && key != l.key {
			return fmt.Errorf("%s loaded fragment of %s", l.key, key)
		}
	}
	if l.load != nil {
		return l.load(saved)
	}
	return nil
}

func (l *testListener) OnSave(out state.Bundle) error {
	l.saves++
	l.lastSaved = out
	out.PutString("key", l.key)
	if l.save != nil {
		return l.save(out)
	}
	return nil
}

func (l *testListener) OnExitScope() {
	l.exits++
	l.record("exit")
	if l.exit != nil {
		l.exit()
	}
}

func (l *testListener) loaded() bool { return l.loads > 0 }

func (l *testListener) reset() {
	l.loads, l.saves, l.exits = 0, 0, 0
	l.lastLoaded, l.lastSaved = nil, nil
}

func (l *testListener) record(event string) {
	if l.trace != nil {
		*l.trace = append(*l.trace, event+":"+l.key)
	}
}

// countingScoped is a Scoped member that only counts notifications.
type countingScoped struct {
	scope  *Scope
	enters int
	exits  int
}

func (c *countingScoped) OnEnterScope(scope *Scope) {
	c.scope = scope
	c.enters++
}

func (c *countingScoped) OnExitScope() { c.exits++ }

// sliceListener has an uncomparable dynamic type.
type sliceListener struct {
	tags []string
}

func (sliceListener) Key() string               { return "slice" }
func (sliceListener) OnEnterScope(*Scope)       {}
func (sliceListener) OnLoad(state.Bundle) error { return nil }
func (sliceListener) OnSave(state.Bundle) error { return nil }
func (sliceListener) OnExitScope()              {}

// fakeRecorder tallies recorder calls.
type fakeRecorder struct {
	outcomes  map[string]int
	callbacks map[metrics.CallbackLabel]int
	rounds    []int
	live      int
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{
		outcomes:  make(map[string]int),
		callbacks: make(map[metrics.CallbackLabel]int),
	}
}

func (r *fakeRecorder) ObservePassDuration(metrics.PassLabel, time.Duration) {}

func (r *fakeRecorder) IncPassOutcome(pass metrics.PassLabel, outcome metrics.OutcomeLabel) {
	r.outcomes[string(pass)+"/"+string(outcome)]++
}

func (r *fakeRecorder) ObserveDrainRounds(rounds int) { r.rounds = append(r.rounds, rounds) }

func (r *fakeRecorder) AddCallbacks(cb metrics.CallbackLabel, n int) { r.callbacks[cb] += n }

func (r *fakeRecorder) SetLiveScopes(n int) { r.live = n }

// sameBundle reports whether a and b share storage.
func sameBundle(a, b state.Bundle) bool {
	if a == nil || b == nil {
		return false
	}
	return reflect.ValueOf(a).Pointer() == reflect.ValueOf(b).Pointer()
}
