package scopesync

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bft-labs/scopesync/internal/app"
	"github.com/bft-labs/scopesync/internal/domain"
	"github.com/bft-labs/scopesync/pkg/lifecycle"
	"github.com/bft-labs/scopesync/pkg/log"
	"github.com/bft-labs/scopesync/pkg/metrics"
	"github.com/bft-labs/scopesync/pkg/state"
)

// Host runs one scope tree. Use New() to create an instance, then Start() to
// restore the tree.
type Host struct {
	config    Config
	lifecycle *app.Lifecycle
	repo      state.Repository
	logger    log.Logger
	recorder  metrics.Recorder
	emitter   *eventEmitterWrapper
	plugins   []Plugin

	// treeMu serializes every call into the coordinator.
	treeMu sync.Mutex
	coord  *lifecycle.Coordinator

	// saveMu serializes repository writes.
	saveMu sync.Mutex

	mu     sync.Mutex
	cancel context.CancelFunc
	meta   state.Meta
}

// New creates a new Host with the given configuration.
// The instance is created in StateStopped; call Start() to restore the tree.
// Returns an error if configuration is invalid.
func New(cfg Config, opts ...Option) (*Host, error) {
	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if err := validateModuleVersions(); err != nil {
		return nil, err
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	repo := o.repository
	if repo == nil {
		if cfg.StatePath == "" {
			return nil, fmt.Errorf("%w: state path is required", domain.ErrInvalidConfig)
		}
		fileRepo, err := state.NewFileRepository(cfg.StatePath)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrInvalidConfig, err)
		}
		repo = fileRepo
	}

	logger := log.OrNoop(o.logger)
	emitter := &eventEmitterWrapper{handler: o.eventHandler}

	return &Host{
		config:    cfg,
		lifecycle: app.NewLifecycle(logger, emitter),
		repo:      repo,
		logger:    logger,
		recorder:  metrics.OrNoop(o.recorder),
		emitter:   emitter,
		plugins:   o.plugins,
	}, nil
}

// Start loads the last snapshot, restores a fresh tree from it and
// initializes plugins. Returns ErrAlreadyRunning if the host is running.
func (h *Host) Start(ctx context.Context) error {
	if !h.lifecycle.CanStart() {
		return domain.ErrAlreadyRunning
	}

	if err := h.lifecycle.TransitionTo(app.StateStarting, "Start() called"); err != nil {
		return err
	}

	saved, meta, err := h.repo.Load(ctx)
	if err != nil {
		_ = h.lifecycle.TransitionTo(app.StateCrashed, "load failed")
		return fmt.Errorf("scopesync: load snapshot: %w", err)
	}

	h.treeMu.Lock()
	h.coord = lifecycle.New(
		lifecycle.WithLogger(h.logger),
		lifecycle.WithRecorder(h.recorder),
		lifecycle.WithEventEmitter(h.emitter),
	)
	err = h.coord.OnCreate(saved)
	h.treeMu.Unlock()
	if err != nil {
		_ = h.lifecycle.TransitionTo(app.StateCrashed, "restore failed")
		return fmt.Errorf("scopesync: restore: %w", err)
	}

	h.logger.Info("tree restored",
		log.String("snapshot_id", meta.SnapshotID),
		log.Bool("cold_start", saved == nil),
	)

	runCtx, cancel := context.WithCancel(ctx)
	h.mu.Lock()
	h.cancel = cancel
	h.meta = meta
	h.mu.Unlock()

	pluginCfg := PluginConfig{
		StatePath: h.config.StatePath,
		TreePath:  h.config.TreePath,
		Logger:    h.logger,
		Host:      h,
	}
	for i, p := range h.plugins {
		if err := p.Initialize(runCtx, pluginCfg); err != nil {
			h.logger.Error("plugin initialization failed",
				log.String("plugin", p.Name()),
				log.Err(err))
			cancel()
			h.shutdownPlugins(context.Background(), h.plugins[:i])
			_ = h.lifecycle.TransitionTo(app.StateCrashed, "plugin init failed: "+p.Name())
			return err
		}
		h.logger.Info("plugin initialized", log.String("plugin", p.Name()))
	}

	return h.lifecycle.TransitionTo(app.StateRunning, "started")
}

// Do runs fn with the root scope while holding the tree lock. fn must not
// call back into the Host.
func (h *Host) Do(fn func(root *lifecycle.Scope) error) error {
	if !h.lifecycle.Accepting() {
		return domain.ErrNotRunning
	}

	h.treeMu.Lock()
	defer h.treeMu.Unlock()
	if h.coord == nil {
		return domain.ErrNotRunning
	}
	return fn(h.coord.Root())
}

// Checkpoint saves the tree and persists the result through the repository.
func (h *Host) Checkpoint(ctx context.Context) (state.Meta, error) {
	if !h.lifecycle.Accepting() {
		return state.Meta{}, domain.ErrNotRunning
	}
	return h.checkpoint(ctx)
}

func (h *Host) checkpoint(ctx context.Context) (state.Meta, error) {
	start := time.Now()

	h.treeMu.Lock()
	if h.coord == nil {
		h.treeMu.Unlock()
		return state.Meta{}, domain.ErrNotRunning
	}
	out := state.NewBundle()
	err := h.coord.OnSave(out)
	scopes := len(h.coord.Scopes())
	// Listeners keep references into out; persist a private copy.
	snapshot := out.Clone()
	h.treeMu.Unlock()

	var meta state.Meta
	if err == nil {
		h.saveMu.Lock()
		meta, err = h.repo.Save(ctx, snapshot)
		h.saveMu.Unlock()
	}

	h.emitter.onCheckpoint(CheckpointEvent{
		SnapshotID: meta.SnapshotID,
		SavedAt:    meta.SavedAt,
		Scopes:     scopes,
		Duration:   time.Since(start),
		Err:        err,
	})

	if err != nil {
		h.logger.Error("checkpoint failed", log.Err(err))
		return state.Meta{}, fmt.Errorf("scopesync: checkpoint: %w", err)
	}

	h.mu.Lock()
	h.meta = meta
	h.mu.Unlock()

	h.logger.Info("checkpoint saved",
		log.String("snapshot_id", meta.SnapshotID),
		log.Int("scopes", scopes),
	)
	return meta, nil
}

// Stop shuts plugins down in reverse order, takes a final checkpoint (unless
// disabled) and destroys the tree. Returns ErrNotRunning if the host is not
// running.
func (h *Host) Stop(ctx context.Context) error {
	if !h.lifecycle.CanStop() {
		return domain.ErrNotRunning
	}

	if err := h.lifecycle.TransitionTo(app.StateStopping, "Stop() called"); err != nil {
		return err
	}

	h.mu.Lock()
	if h.cancel != nil {
		h.cancel()
	}
	h.mu.Unlock()

	h.shutdownPlugins(ctx, h.plugins)

	var err error
	if h.treeLive() && !h.config.SkipFinalCheckpoint {
		_, err = h.checkpoint(ctx)
	}

	h.treeMu.Lock()
	if h.coord != nil && !h.coord.IsDestroyed() {
		if destroyErr := h.coord.Root().Destroy(); destroyErr != nil && err == nil {
			err = destroyErr
		}
	}
	h.treeMu.Unlock()

	if err != nil {
		_ = h.lifecycle.TransitionTo(app.StateCrashed, err.Error())
		return err
	}
	return h.lifecycle.TransitionTo(app.StateStopped, "graceful shutdown")
}

func (h *Host) treeLive() bool {
	h.treeMu.Lock()
	defer h.treeMu.Unlock()
	return h.coord != nil && !h.coord.IsDestroyed()
}

func (h *Host) shutdownPlugins(ctx context.Context, plugins []Plugin) {
	for i := len(plugins) - 1; i >= 0; i-- {
		p := plugins[i]
		if err := p.Shutdown(ctx); err != nil {
			h.logger.Error("plugin shutdown failed",
				log.String("plugin", p.Name()),
				log.Err(err))
		} else {
			h.logger.Info("plugin shutdown complete", log.String("plugin", p.Name()))
		}
	}
}

// Status returns the current run state.
// Safe to call concurrently from any goroutine.
func (h *Host) Status() State {
	return State(h.lifecycle.State())
}

// LastSnapshot returns the metadata of the snapshot most recently loaded or
// saved.
func (h *Host) LastSnapshot() state.Meta {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.meta
}

var _ Controller = (*Host)(nil)
