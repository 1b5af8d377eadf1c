// Package lifecycle coordinates load and save callbacks across a tree of
// scopes.
//
// A Coordinator owns one root Scope. Listeners registered on a scope receive
// OnEnterScope once, OnLoad whenever the coordinator restores state or the
// listener (re-)registers, OnSave during a save pass, and OnExitScope when the
// scope is destroyed.
//
// # Usage
//
//	coord := lifecycle.New(lifecycle.WithLogger(logger))
//	root := coord.Root()
//
//	if err := coord.OnCreate(saved); err != nil {
//	    return err
//	}
//
//	child, err := root.CreateChild("activity")
//	if err != nil {
//	    return err
//	}
//	if err := child.Register(presenter); err != nil {
//	    return err
//	}
//
//	out := state.NewBundle()
//	if err := coord.OnSave(out); err != nil {
//	    return err
//	}
//
// # Phases
//
// Valid phase transitions:
//   - Idle -> Loading -> Idle
//   - Idle -> Saving -> Idle
//
// Registering while Idle drains before Register returns. Registering while
// Loading queues the listener for the running drain. Registering while Saving
// fails with ErrRegisterDuringSave.
//
// # Ordering
//
// Loading runs in rounds over the live scopes in creation order. Listeners
// queued on scopes that existed when a round started finish before listeners
// on scopes created during that round, and peers queued on the same scope
// load in registration order.
//
// The core holds no locks. Callers serialize access from one goroutine.
//
// # Version
//
// Current version: 1.0.0
// Minimum compatible version: 1.0.0
//
// See version.go for version constants that can be used programmatically.
package lifecycle
