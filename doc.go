// Package scopesync embeds a scope-tree lifecycle coordinator behind a small
// host runtime.
//
// A [Host] owns one [lifecycle.Coordinator], a [state.Repository] holding the
// last snapshot, and optional plugins. Start restores the tree from the
// repository, Do runs tree mutations on the host's single logical thread,
// Checkpoint saves the tree and persists it, and Stop shuts plugins down,
// takes a final checkpoint and destroys the tree.
//
// # Basic Usage
//
//	host, err := scopesync.New(scopesync.Config{
//	    StatePath: "/var/lib/myapp/state.json",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	if err := host.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
//	err = host.Do(func(root *lifecycle.Scope) error {
//	    session, err := root.RequireChild("session")
//	    if err != nil {
//	        return err
//	    }
//	    return session.Register(presenter)
//	})
//
//	if err := host.Stop(ctx); err != nil {
//	    log.Printf("shutdown error: %v", err)
//	}
//
// # Event Handling
//
// Implement [EventHandler] (embedding [BaseEventHandler] for no-op defaults)
// and pass it via [WithEventHandler]. Events are called synchronously; phase
// events fire on the goroutine holding the tree, so handlers must not call
// back into the host.
//
// # Lifecycle States
//
// A Host can be in one of five states: [StateStopped], [StateStarting],
// [StateRunning], [StateStopping], or [StateCrashed]. Use [Host.Status] to
// query the current state.
//
// # Plugins
//
//	import "github.com/bft-labs/scopesync/plugins/treewatcher"
//
//	host, err := scopesync.New(cfg,
//	    treewatcher.WithTreeWatcher(treewatcher.DefaultConfig()),
//	)
//
// # Version
//
// Current version: 1.0.0
// Minimum compatible version: 1.0.0
//
// Use [ModuleVersions] to get versions of all sub-modules and
// [CompatibilityMatrix] to check minimum compatible versions.
package scopesync
