package lifecycle

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bft-labs/scopesync/pkg/metrics"
	"github.com/bft-labs/scopesync/pkg/state"
)

// newProcess simulates a fresh process: a new coordinator with an "activity"
// scope under the root.
func newProcess(t *testing.T) (*Coordinator, *Scope) {
	t.Helper()
	c := New()
	activity, err := c.Root().CreateChild("activity")
	require.NoError(t, err)
	return c, activity
}

func TestCoordinator_LifeCycle(t *testing.T) {
	c, activity := newProcess(t)
	runLifecycle(t, c, activity)
}

func TestCoordinator_ChildLifeCycle(t *testing.T) {
	c, activity := newProcess(t)
	child, err := activity.CreateChild("child")
	require.NoError(t, err)
	runLifecycle(t, c, child)
}

func runLifecycle(t *testing.T, c *Coordinator, scope *Scope) {
	t.Helper()
	scoped := &countingScoped{}
	able := newTestListener("able")
	baker := newTestListener("baker")

	require.NoError(t, scope.RegisterScoped(scoped))
	require.NoError(t, scope.Register(able))
	require.NoError(t, scope.Register(baker))

	// Enter is called immediately.
	assert.Equal(t, 1, scoped.enters)
	assert.Same(t, scope, able.scope)
	assert.Same(t, scope, baker.scope)

	// Load is called immediately.
	assert.Equal(t, 1, able.loads)
	assert.Nil(t, able.lastLoaded)
	assert.Equal(t, 1, baker.loads)
	assert.Nil(t, baker.lastLoaded)
	able.reset()
	baker.reset()

	// Create loads all registrants.
	require.NoError(t, c.OnCreate(nil))
	assert.Equal(t, 1, able.loads)
	assert.Nil(t, able.lastLoaded)
	assert.Equal(t, 1, baker.loads)
	assert.Nil(t, baker.lastLoaded)
	able.reset()
	baker.reset()

	// Each listener gets its own fragment to write to.
	saved := state.NewBundle()
	require.NoError(t, c.OnSave(saved))
	require.NotNil(t, able.lastSaved)
	require.NotNil(t, baker.lastSaved)
	assert.False(t, sameBundle(able.lastSaved, baker.lastSaved))

	// Re-registering loads again, from what was just written.
	able.lastLoaded = nil
	require.NoError(t, scope.Register(able))
	assert.True(t, sameBundle(able.lastLoaded, able.lastSaved))

	// A new host instance appears.
	able.reset()
	baker.reset()
	require.NoError(t, c.OnSave(saved))
	require.NoError(t, c.OnCreate(saved.Clone()))
	require.NotNil(t, able.lastLoaded)
	key, _ := able.lastLoaded.GetString("key")
	assert.Equal(t, "able", key)

	assert.Equal(t, 1, scoped.enters)
	assert.Zero(t, scoped.exits)

	require.NoError(t, scope.Destroy())
	assert.Equal(t, 1, able.exits)
	assert.Equal(t, 1, baker.exits)
	assert.Equal(t, 1, scoped.exits)
}

func TestCoordinator_AbleOnRootPath(t *testing.T) {
	c := New()
	root := c.Root()
	require.NoError(t, c.OnCreate(nil))

	able := newTestListener("able")
	require.NoError(t, root.Register(able))
	assert.Equal(t, 1, able.loads)
	assert.Nil(t, able.lastLoaded)

	blob := state.NewBundle()
	require.NoError(t, c.OnSave(blob))

	assert.Equal(t, []string{""}, blob.Keys())
	fragment, ok := state.NewStore(blob).FragmentFor("", "able")
	require.True(t, ok)
	assert.True(t, sameBundle(fragment, able.lastSaved))

	require.NoError(t, root.Destroy())
	assert.Equal(t, 1, able.exits)
	assert.True(t, c.IsDestroyed())
}

func TestCoordinator_EnterPrecedesFirstLoad(t *testing.T) {
	var trace []string
	c, activity := newProcess(t)
	require.NoError(t, c.OnCreate(nil))

	l := newTestListener("able")
	l.trace = &trace
	require.NoError(t, activity.Register(l))

	assert.Equal(t, []string{"enter:able", "load:able"}, trace)
}

// fauxActivity registers a root listener and a child-scope listener the way
// a host component would on every start.
type fauxActivity struct {
	rootListener  *testListener
	childListener *testListener
	childScope    *Scope
}

func newFauxActivity() *fauxActivity {
	return &fauxActivity{
		rootListener:  newTestListener("core"),
		childListener: newTestListener("child"),
	}
}

func (a *fauxActivity) create(t *testing.T, c *Coordinator, activity *Scope, saved state.Bundle) {
	t.Helper()
	require.NoError(t, c.OnCreate(saved))
	require.NoError(t, activity.Register(a.rootListener))
	child, err := activity.RequireChild("child")
	require.NoError(t, err)
	a.childScope = child
	require.NoError(t, child.Register(a.childListener))
}

func TestCoordinator_ChildInfoSurvivesProcessDeath(t *testing.T) {
	c, activity := newProcess(t)
	faux := newFauxActivity()
	faux.create(t, c, activity, nil)

	saved := state.NewBundle()
	require.NoError(t, c.OnSave(saved))

	// Process death: a copy of the bundle, new scopes and listeners.
	saved = saved.Clone()
	c, activity = newProcess(t)
	faux = newFauxActivity()
	faux.create(t, c, activity, saved)

	assert.NotNil(t, faux.rootListener.lastLoaded)
	assert.NotNil(t, faux.childListener.lastLoaded)
}

func TestCoordinator_RegisterFromOnLoadBeforeCreate(t *testing.T) {
	c, activity := newProcess(t)
	inner := newTestListener("inner")
	outer := newTestListener("outer")
	outer.load = func(state.Bundle) error { return activity.Register(inner) }

	require.NoError(t, activity.Register(outer))

	// The nested register loaded before the outer call returned.
	assert.True(t, inner.loaded())

	// And it was registered: a create reloads it.
	inner.reset()
	require.NoError(t, c.OnCreate(nil))
	assert.True(t, inner.loaded())
}

func TestCoordinator_RegisterFromOnLoadAfterCreate(t *testing.T) {
	c, activity := newProcess(t)
	require.NoError(t, c.OnCreate(nil))

	inner := newTestListener("inner")
	outer := newTestListener("outer")
	outer.load = func(state.Bundle) error { return activity.Register(inner) }
	require.NoError(t, activity.Register(outer))

	assert.True(t, inner.loaded())

	inner.reset()
	saved := state.NewBundle()
	require.NoError(t, c.OnSave(saved))
	require.NoError(t, c.OnCreate(saved))
	assert.True(t, inner.loaded())
	assert.NotNil(t, inner.lastLoaded)
}

func TestCoordinator_CannotRegisterDuringOnSave(t *testing.T) {
	c, activity := newProcess(t)
	require.NoError(t, c.OnCreate(nil))

	inner := newTestListener("inner")
	var registerErr error
	outer := newTestListener("outer")
	outer.save = func(state.Bundle) error {
		registerErr = activity.Register(inner)
		return nil
	}
	require.NoError(t, activity.Register(outer))
	assert.False(t, inner.loaded())

	saved := state.NewBundle()
	require.NoError(t, c.OnSave(saved))

	assert.ErrorIs(t, registerErr, ErrRegisterDuringSave)
	assert.ErrorIs(t, registerErr, ErrIllegalState)
	assert.False(t, inner.loaded())
	assert.Zero(t, inner.enters, "a rejected registration does not enter")

	_, ok := state.NewStore(saved).FragmentFor("/activity", "inner")
	assert.False(t, ok, "fragment must stay unwritten")
	assert.Equal(t, PhaseIdle, c.Phase())
}

// reregisteringListener registers itself again from OnLoad until it has
// loaded twice.
type reregisteringListener struct {
	scope *Scope
	loads int
	limit int
}

func (r *reregisteringListener) Key() string               { return "key" }
func (r *reregisteringListener) OnEnterScope(scope *Scope) { r.scope = scope }
func (r *reregisteringListener) OnSave(state.Bundle) error { return errors.New("unexpected save") }
func (r *reregisteringListener) OnExitScope()              {}

func (r *reregisteringListener) OnLoad(state.Bundle) error {
	r.loads++
	if r.loads < r.limit {
		return r.scope.Register(r)
	}
	return nil
}

func TestCoordinator_ReregistrationBeforeCreate(t *testing.T) {
	c, activity := newProcess(t)
	l := &reregisteringListener{}
	require.NoError(t, activity.Register(l))

	require.NoError(t, c.OnCreate(state.NewBundle()))
	assert.Equal(t, 2, l.loads)
}

func TestCoordinator_ReregistrationAfterCreate(t *testing.T) {
	c, activity := newProcess(t)
	require.NoError(t, c.OnCreate(state.NewBundle()))

	l := &reregisteringListener{}
	require.NoError(t, activity.Register(l))
	assert.Equal(t, 1, l.loads)
}

func TestCoordinator_ReregistrationFromOnLoadLoadsAgainInSamePass(t *testing.T) {
	c, activity := newProcess(t)
	require.NoError(t, c.OnCreate(nil))

	l := &reregisteringListener{limit: 3}
	require.NoError(t, activity.Register(l))
	assert.Equal(t, 3, l.loads)
	assert.Equal(t, PhaseIdle, c.Phase())
}

func TestCoordinator_DestroyFromEarlyLoad(t *testing.T) {
	c, activity := newProcess(t)
	loads, destroys := 0, 0
	newDestroyer := func(key string) *ListenerFuncs {
		return &ListenerFuncs{
			Name: key,
			Load: func(state.Bundle) error {
				loads++
				if loads > 2 {
					return activity.Destroy()
				}
				return nil
			},
			Exit: func() { destroys++ },
		}
	}

	require.NoError(t, activity.Register(newDestroyer("k1")))
	require.NoError(t, activity.Register(newDestroyer("k2")))

	require.NoError(t, c.OnCreate(state.NewBundle()))

	assert.Equal(t, 3, loads)
	assert.Equal(t, 2, destroys)
	assert.Equal(t, PhaseIdle, c.Phase())
	assert.True(t, activity.IsDestroyed())
}

func TestCoordinator_DestroyFromOnSave(t *testing.T) {
	c, activity := newProcess(t)
	saves, destroys := 0, 0
	newDestroyer := func(key string) *ListenerFuncs {
		return &ListenerFuncs{
			Name: key,
			Save: func(state.Bundle) error {
				saves++
				return activity.Destroy()
			},
			Exit: func() { destroys++ },
		}
	}
	require.NoError(t, activity.Register(newDestroyer("k1")))
	require.NoError(t, activity.Register(newDestroyer("k2")))

	b := state.NewBundle()
	require.NoError(t, c.OnCreate(b))
	require.NoError(t, c.OnSave(b))

	assert.Equal(t, 2, destroys)
	assert.Equal(t, 1, saves)
	assert.Equal(t, PhaseIdle, c.Phase())
}

func TestCoordinator_CannotPassAfterRootDestroyed(t *testing.T) {
	c := New()
	require.NoError(t, c.Root().Destroy())

	err := c.OnCreate(nil)
	assert.ErrorIs(t, err, ErrCoordinatorDestroyed)
	assert.ErrorIs(t, err, ErrIllegalState)

	err = c.OnSave(state.NewBundle())
	assert.ErrorIs(t, err, ErrCoordinatorDestroyed)
}

func TestCoordinator_OnSaveRejectsNilBundle(t *testing.T) {
	c := New()
	err := c.OnSave(nil)
	assert.ErrorIs(t, err, ErrNilBundle)
	assert.ErrorIs(t, err, ErrConfiguration)
	assert.Equal(t, PhaseIdle, c.Phase())
}

func TestCoordinator_PassesRequireIdle(t *testing.T) {
	c, activity := newProcess(t)
	var createErr, saveErr error
	l := newTestListener("able")
	l.load = func(state.Bundle) error {
		createErr = c.OnCreate(nil)
		saveErr = c.OnSave(state.NewBundle())
		return nil
	}

	require.NoError(t, activity.Register(l))

	assert.ErrorIs(t, createErr, ErrNotIdle)
	assert.ErrorIs(t, saveErr, ErrNotIdle)
	assert.Equal(t, 1, l.loads)
}

func TestCoordinator_DeliversStateWhenRegisterAfterOnCreate(t *testing.T) {
	newTop := func(activity *Scope) (*testListener, *bool) {
		restored := new(bool)
		child := newTestListener("sNr")
		child.load = func(saved state.Bundle) error {
			fred, _ := saved.GetBool("fred")
			*restored = saved != nil && fred
			return nil
		}
		child.save = func(out state.Bundle) error {
			out.PutBool("fred", true)
			return nil
		}

		top := newTestListener("top")
		top.load = func(state.Bundle) error {
			childScope, err := activity.RequireChild("childBlueprint")
			if err != nil {
				return err
			}
			return childScope.Register(child)
		}
		return top, restored
	}

	c, activity := newProcess(t)
	originalTop, restored := newTop(activity)
	require.NoError(t, activity.Register(originalTop))
	assert.False(t, *restored)

	saved := state.NewBundle()
	require.NoError(t, c.OnSave(saved))

	c, activity = newProcess(t)
	require.NoError(t, c.OnCreate(saved))

	top, restored := newTop(activity)
	require.NoError(t, activity.Register(top))
	assert.True(t, *restored)
}

func TestCoordinator_DescendantsCreatedDuringLoadGetOneLoad(t *testing.T) {
	c, activity := newProcess(t)
	childListener := newTestListener("child")
	grandchildListener := newTestListener("grandChild")
	spawn := false

	outer := newTestListener("outer")
	outer.load = func(state.Bundle) error {
		if !spawn {
			return nil
		}
		childScope, err := activity.RequireChild("child scope")
		require.NoError(t, err)
		require.NoError(t, childScope.Register(childListener))
		// Loading is in progress, so registration only queues.
		assert.False(t, childListener.loaded())

		grandchildScope, err := childScope.RequireChild("grandchild scope")
		require.NoError(t, err)
		require.NoError(t, grandchildScope.Register(grandchildListener))
		assert.False(t, grandchildListener.loaded())
		return nil
	}
	require.NoError(t, activity.Register(outer))

	spawn = true
	require.NoError(t, c.OnCreate(nil))

	// But the load happens before the restore returns, exactly once.
	assert.Equal(t, 1, childListener.loads)
	assert.Equal(t, 1, grandchildListener.loads)
}

func TestCoordinator_PeersRegisteredDuringLoadCompleteInSamePass(t *testing.T) {
	var trace []string
	c, activity := newProcess(t)
	childScope, _ := activity.CreateChild("child scope")
	grandchildScope, _ := childScope.CreateChild("grandchild scope")

	peer := newTestListener("bro")
	peer.trace = &trace
	child := newTestListener("child")
	child.trace = &trace
	grandchild := newTestListener("grandchild")
	grandchild.trace = &trace

	outer := newTestListener("outer")
	outer.trace = &trace
	outer.load = func(state.Bundle) error {
		require.NoError(t, activity.Register(peer))
		require.NoError(t, childScope.Register(child))
		assert.False(t, child.loaded())
		require.NoError(t, grandchildScope.Register(grandchild))
		assert.False(t, grandchild.loaded())
		return nil
	}

	require.NoError(t, activity.Register(outer))

	assert.Equal(t, []string{
		"enter:outer", "load:outer",
		"enter:bro", "enter:child", "enter:grandchild",
		"load:bro", "load:child", "load:grandchild",
	}, trace)
	assert.Equal(t, PhaseIdle, c.Phase())
}

func TestCoordinator_AncestorsExistingAtPassStartLoadFirst(t *testing.T) {
	var trace []string
	c := New()
	parent, _ := c.Root().CreateChild("parent")
	existing, _ := parent.CreateChild("existing")

	late := newTestListener("late")
	late.trace = &trace
	lp := newTestListener("lp")
	lc := newTestListener("lc")
	require.NoError(t, parent.Register(lp))
	require.NoError(t, existing.Register(lc))
	lp.trace, lc.trace = &trace, &trace

	lp.load = func(state.Bundle) error {
		fresh, err := parent.RequireChild("fresh")
		if err != nil {
			return err
		}
		return fresh.Register(late)
	}

	require.NoError(t, c.OnCreate(nil))

	assert.Equal(t, []string{"load:lp", "enter:late", "load:lc", "load:late"}, trace)
}

func TestCoordinator_DescendantScopesCreatedDuringLoadAreNotStuck(t *testing.T) {
	c, activity := newProcess(t)
	outer := newTestListener("outer")
	outer.load = func(state.Bundle) error {
		child, err := activity.RequireChild("subscope")
		if err != nil {
			return err
		}
		_, err = child.RequireChild("subscope")
		return err
	}
	require.NoError(t, activity.Register(outer))

	assert.Equal(t, PhaseIdle, c.Phase())
	assert.NoError(t, c.OnSave(state.NewBundle()))
}

func TestCoordinator_ChildCreatedDuringMyLoadLoadsAfterMe(t *testing.T) {
	c, activity := newProcess(t)
	require.NoError(t, c.OnCreate(nil))
	childListener := newTestListener("childListener")

	root := newTestListener("root")
	root.load = func(state.Bundle) error {
		childScope, err := activity.RequireChild("childScope")
		require.NoError(t, err)
		require.NoError(t, childScope.Register(childListener))
		assert.False(t, childListener.loaded())
		return nil
	}
	require.NoError(t, activity.Register(root))

	assert.True(t, childListener.loaded())
}

func TestCoordinator_ChildScopeListenersLoadAfterParentListeners(t *testing.T) {
	var trace []string
	c, activity := newProcess(t)
	require.NoError(t, c.OnCreate(nil))

	service := newTestListener("service")
	childListener := newTestListener("childListener")
	root := newTestListener("root")
	root.load = func(state.Bundle) error {
		trace = append(trace, "root")
		childScope, err := activity.RequireChild("childScope")
		if err != nil {
			return err
		}
		if err := childScope.Register(childListener); err != nil {
			return err
		}
		return activity.Register(service)
	}
	service.load = func(state.Bundle) error {
		trace = append(trace, "service")
		return nil
	}
	childListener.load = func(state.Bundle) error {
		trace = append(trace, "child")
		return nil
	}

	require.NoError(t, activity.Register(root))
	assert.Equal(t, []string{"root", "service", "child"}, trace)
}

func TestCoordinator_DestroyDuringLoadNotifiesEveryListenerOnce(t *testing.T) {
	c, activity := newProcess(t)
	child, _ := activity.CreateChild("child")

	a := newTestListener("a")
	b := newTestListener("b")
	nested := newTestListener("nested")
	require.NoError(t, activity.Register(a))
	require.NoError(t, activity.Register(b))
	require.NoError(t, child.Register(nested))

	a.load = func(state.Bundle) error { return activity.Destroy() }
	a.reset()
	b.reset()
	nested.reset()

	require.NoError(t, c.OnCreate(nil))

	assert.Equal(t, 1, a.exits)
	assert.Equal(t, 1, b.exits)
	assert.Equal(t, 1, nested.exits)
	assert.Zero(t, b.loads, "b was queued behind the destroying listener")
	assert.Zero(t, nested.loads)
	assert.Equal(t, PhaseIdle, c.Phase())
	assert.Equal(t, []*Scope{c.Root()}, c.Scopes())
}

func TestCoordinator_LoadErrorAbortsDrain(t *testing.T) {
	c, activity := newProcess(t)
	boom := errors.New("boom")
	failing := newTestListener("failing")
	after := newTestListener("after")
	require.NoError(t, activity.Register(failing))
	require.NoError(t, activity.Register(after))
	failing.load = func(state.Bundle) error { return boom }
	after.reset()

	err := c.OnCreate(nil)
	require.ErrorIs(t, err, boom)
	var scopeErr *ScopeError
	require.ErrorAs(t, err, &scopeErr)
	assert.Equal(t, "load", scopeErr.Op)
	assert.Equal(t, "/activity", scopeErr.Path)
	assert.Equal(t, "failing", scopeErr.Key)
	assert.Equal(t, PhaseIdle, c.Phase())
	assert.Zero(t, after.loads)

	// The listener left in the queue loads on the next drain.
	failing.load = nil
	require.NoError(t, activity.Register(failing))
	assert.Equal(t, 1, after.loads)
}

func TestCoordinator_SaveErrorIsWrapped(t *testing.T) {
	c, activity := newProcess(t)
	boom := errors.New("boom")
	l := newTestListener("able")
	l.save = func(state.Bundle) error { return boom }
	require.NoError(t, activity.Register(l))

	err := c.OnSave(state.NewBundle())
	assert.ErrorIs(t, err, boom)
	var scopeErr *ScopeError
	require.ErrorAs(t, err, &scopeErr)
	assert.Equal(t, "save", scopeErr.Op)
	assert.Equal(t, PhaseIdle, c.Phase())
}

func TestCoordinator_SaveMergesIntoExistingBlob(t *testing.T) {
	c, activity := newProcess(t)
	require.NoError(t, activity.Register(newTestListener("able")))

	out := state.Bundle{
		"/gone":     map[string]any{"old": map[string]any{"v": 1}},
		"/activity": map[string]any{"sibling": map[string]any{"v": 2}},
	}
	require.NoError(t, c.OnSave(out))

	store := state.NewStore(out)
	_, ok := store.FragmentFor("/gone", "old")
	assert.True(t, ok)
	_, ok = store.FragmentFor("/activity", "sibling")
	assert.True(t, ok)
	_, ok = store.FragmentFor("/activity", "able")
	assert.True(t, ok)
	assert.True(t, sameBundle(out, c.Store().Root()), "out becomes the store root")
}

func TestCoordinator_EmitsPhaseChanges(t *testing.T) {
	emitter := &mockEmitter{}
	c := New(WithEventEmitter(emitter))
	require.NoError(t, c.Root().Register(newTestListener("able")))
	require.NoError(t, c.OnSave(state.NewBundle()))

	assert.Equal(t, []phaseChangeEvent{
		{PhaseIdle, PhaseLoading, "register"},
		{PhaseLoading, PhaseIdle, "loaded"},
		{PhaseIdle, PhaseSaving, "save"},
		{PhaseSaving, PhaseIdle, "saved"},
	}, emitter.events)
}

func TestCoordinator_RecordsMetrics(t *testing.T) {
	rec := newFakeRecorder()
	c := New(WithRecorder(rec))
	activity, _ := c.Root().CreateChild("activity")
	assert.Equal(t, 2, rec.live)

	require.NoError(t, activity.Register(newTestListener("able")))
	require.NoError(t, c.OnSave(state.NewBundle()))
	require.NoError(t, activity.Destroy())
	assert.Error(t, activity.Destroy())
	require.NoError(t, c.Root().Destroy())
	assert.Error(t, c.OnCreate(nil))

	assert.Equal(t, 1, rec.outcomes["load/success"])
	assert.Equal(t, 1, rec.outcomes["save/success"])
	assert.Equal(t, 1, rec.outcomes["load/rejected"])
	assert.Equal(t, 1, rec.callbacks[metrics.CallbackEnter])
	assert.Equal(t, 1, rec.callbacks[metrics.CallbackLoad])
	assert.Equal(t, 1, rec.callbacks[metrics.CallbackSave])
	assert.Equal(t, 1, rec.callbacks[metrics.CallbackExit])
	assert.Equal(t, []int{2}, rec.rounds)
	assert.Equal(t, 0, rec.live)
}

func TestCoordinator_LogsFailedPasses(t *testing.T) {
	logger := &captureLogger{}
	c := New(WithLogger(logger))
	l := newTestListener("able")
	l.save = func(state.Bundle) error { return errors.New("boom") }
	require.NoError(t, c.Root().Register(l))

	require.Error(t, c.OnSave(state.NewBundle()))
	assert.Equal(t, []string{"save pass failed"}, logger.errors)
}
