package scopesync

import (
	"context"

	"github.com/bft-labs/scopesync/pkg/lifecycle"
	"github.com/bft-labs/scopesync/pkg/log"
	"github.com/bft-labs/scopesync/pkg/state"
)

// Plugin extends a Host. Plugins are initialized in registration order after
// the tree is restored and shut down in reverse order before the final
// checkpoint.
type Plugin interface {
	Name() string
	Initialize(ctx context.Context, cfg PluginConfig) error
	Shutdown(ctx context.Context) error
}

// Controller is the part of a Host that plugins drive.
type Controller interface {
	Do(fn func(root *lifecycle.Scope) error) error
	Checkpoint(ctx context.Context) (state.Meta, error)
}

// PluginConfig is passed to Plugin.Initialize.
type PluginConfig struct {
	StatePath string
	TreePath  string
	Logger    log.Logger
	Host      Controller
}
