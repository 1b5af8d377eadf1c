package scopesync

import (
	"github.com/bft-labs/scopesync/pkg/log"
	"github.com/bft-labs/scopesync/pkg/metrics"
	"github.com/bft-labs/scopesync/pkg/state"
)

// Option configures optional behavior of a Host.
type Option func(*options)

// options holds the optional configuration for a Host.
type options struct {
	logger       log.Logger
	repository   state.Repository
	recorder     metrics.Recorder
	eventHandler EventHandler
	plugins      []Plugin
}

// WithLogger sets a custom logger for structured logging.
// If not provided, a no-op logger is used (no output).
func WithLogger(logger log.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithRepository replaces the file repository derived from Config.StatePath.
func WithRepository(repo state.Repository) Option {
	return func(o *options) {
		o.repository = repo
	}
}

// WithRecorder sets the metrics recorder passed to the coordinator.
func WithRecorder(recorder metrics.Recorder) Option {
	return func(o *options) {
		o.recorder = recorder
	}
}

// WithEventHandler sets a handler for host events.
// If not provided, no events are emitted.
func WithEventHandler(handler EventHandler) Option {
	return func(o *options) {
		o.eventHandler = handler
	}
}

// WithPlugin registers a plugin to be initialized when the Host starts.
// Plugins are initialized in registration order and shut down in reverse order.
func WithPlugin(plugin Plugin) Option {
	return func(o *options) {
		o.plugins = append(o.plugins, plugin)
	}
}
