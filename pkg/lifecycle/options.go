package lifecycle

import (
	"github.com/bft-labs/scopesync/pkg/log"
	"github.com/bft-labs/scopesync/pkg/metrics"
)

// Option configures optional behavior of a Coordinator.
type Option func(*options)

type options struct {
	logger   log.Logger
	recorder metrics.Recorder
	emitter  EventEmitter
}

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(logger log.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithRecorder sets the metrics recorder. Defaults to a no-op recorder.
func WithRecorder(recorder metrics.Recorder) Option {
	return func(o *options) {
		o.recorder = recorder
	}
}

// WithEventEmitter sets the phase change emitter.
// Events are called synchronously from inside the pass.
func WithEventEmitter(emitter EventEmitter) Option {
	return func(o *options) {
		o.emitter = emitter
	}
}
