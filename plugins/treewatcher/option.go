package treewatcher

import "github.com/bft-labs/scopesync"

// WithTreeWatcher returns a scopesync Option that keeps the tree in step with
// the Config.TreePath definition.
//
// Usage:
//
//	h, err := scopesync.New(cfg,
//	    treewatcher.WithTreeWatcher(treewatcher.Config{
//	        DebounceDelay: 200 * time.Millisecond,
//	    }),
//	)
func WithTreeWatcher(cfg Config) scopesync.Option {
	return scopesync.WithPlugin(New(cfg))
}

// WithDefaultTreeWatcher returns a scopesync Option that enables tree
// watching with default settings.
func WithDefaultTreeWatcher() scopesync.Option {
	return WithTreeWatcher(DefaultConfig())
}
