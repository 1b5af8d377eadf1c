// Package treewatcher keeps a Host's scope tree in step with a TOML tree
// definition. It watches the definition file and, on every change, reloads
// it, reconciles the live tree and takes a checkpoint.
package treewatcher

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/bft-labs/scopesync"
	"github.com/bft-labs/scopesync/internal/domain"
	"github.com/bft-labs/scopesync/internal/tree"
	"github.com/bft-labs/scopesync/pkg/lifecycle"
	"github.com/bft-labs/scopesync/pkg/log"
	"github.com/bft-labs/scopesync/pkg/state"
)

// Plugin implements tree watching.
type Plugin struct {
	mu sync.RWMutex

	// Configuration
	retryInterval    time.Duration
	maxRetryInterval time.Duration
	debounceDelay    time.Duration
	onReload         func(meta state.Meta, err error)

	// Runtime state
	treePath string
	logger   log.Logger
	host     scopesync.Controller
	tree     *tree.Tree
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// Config holds configuration options for the tree watcher plugin.
type Config struct {
	// RetryInterval is the first delay before retrying a failed reload.
	// Default: 1 second
	RetryInterval time.Duration

	// MaxRetryInterval caps the retry delay.
	// Default: 30 seconds
	MaxRetryInterval time.Duration

	// DebounceDelay is the delay to wait after a file change before reloading.
	// Default: 100 milliseconds
	DebounceDelay time.Duration

	// OnReload, if set, is called after every reload attempt.
	OnReload func(meta state.Meta, err error)
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		RetryInterval:    time.Second,
		MaxRetryInterval: 30 * time.Second,
		DebounceDelay:    100 * time.Millisecond,
	}
}

// New creates a new tree watcher plugin with the given configuration.
func New(cfg Config) *Plugin {
	def := DefaultConfig()
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = def.RetryInterval
	}
	if cfg.MaxRetryInterval <= 0 {
		cfg.MaxRetryInterval = def.MaxRetryInterval
	}
	if cfg.DebounceDelay <= 0 {
		cfg.DebounceDelay = def.DebounceDelay
	}

	return &Plugin{
		retryInterval:    cfg.RetryInterval,
		maxRetryInterval: cfg.MaxRetryInterval,
		debounceDelay:    cfg.DebounceDelay,
		onReload:         cfg.OnReload,
	}
}

// Name returns the plugin identifier.
func (p *Plugin) Name() string {
	return "treewatcher"
}

// Initialize applies the tree definition once and starts watching it.
// An unreadable or invalid definition fails initialization.
func (p *Plugin) Initialize(ctx context.Context, cfg scopesync.PluginConfig) error {
	p.mu.Lock()
	p.logger = log.OrNoop(cfg.Logger)
	p.host = cfg.Host
	p.mu.Unlock()

	if cfg.TreePath == "" || cfg.Host == nil {
		p.logger.Warn("tree watcher disabled: tree path not configured")
		return nil
	}

	// fsnotify reports names under the watched directory as given.
	treePath, err := filepath.Abs(cfg.TreePath)
	if err != nil {
		return fmt.Errorf("treewatcher: resolve %s: %w", cfg.TreePath, err)
	}
	p.treePath = treePath

	if _, err := p.reload(ctx); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("treewatcher: create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(p.treePath)); err != nil {
		watcher.Close()
		return fmt.Errorf("treewatcher: watch %s: %w", filepath.Dir(p.treePath), err)
	}

	watchCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	p.logger.Info("tree watcher initialized", log.String("tree", p.treePath))

	p.wg.Add(1)
	go p.watchLoop(watchCtx, watcher)

	return nil
}

// Shutdown stops the watcher and waits for an in-flight reload.
func (p *Plugin) Shutdown(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
	return nil
}

// Tree returns the most recently applied tree, or nil. Listener values must
// only be touched from inside Host.Do.
func (p *Plugin) Tree() *tree.Tree {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.tree
}

func (p *Plugin) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	defer p.wg.Done()
	defer watcher.Close()

	var debounce *time.Timer
	var fire <-chan time.Time
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != p.treePath {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if debounce == nil {
				debounce = time.NewTimer(p.debounceDelay)
			} else {
				debounce.Reset(p.debounceDelay)
			}
			fire = debounce.C

		case <-fire:
			fire = nil
			p.reloadWithRetry(ctx)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			p.logger.Error("tree watcher error", log.Err(err))
		}
	}
}

// reloadWithRetry retries until success, an invalid definition or context
// cancellation. An invalid definition waits for the next file change.
func (p *Plugin) reloadWithRetry(ctx context.Context) {
	backoff := NewBackoff(p.retryInterval, p.maxRetryInterval)
	retryCount := 0

	for {
		_, err := p.reload(ctx)
		if err == nil {
			if retryCount > 0 {
				p.logger.Info("tree reloaded after retries", log.Int("retries", retryCount))
			}
			return
		}
		if errors.Is(err, domain.ErrInvalidTree) || errors.Is(err, domain.ErrNotRunning) {
			return
		}

		retryCount++
		p.logger.Warn("tree reload failed, retrying",
			log.Err(err),
			log.Duration("backoff", backoff.Current()))

		if backoff.Wait(ctx) != nil {
			p.logger.Info("tree watcher: stopping retry due to context cancellation")
			return
		}
	}
}

// reload reads the definition, applies it and checkpoints the result.
func (p *Plugin) reload(ctx context.Context) (meta state.Meta, err error) {
	defer func() {
		if err != nil {
			p.logger.Error("tree reload failed", log.String("tree", p.treePath), log.Err(err))
		}
		if p.onReload != nil {
			p.onReload(meta, err)
		}
	}()

	def, err := tree.Load(p.treePath)
	if err != nil {
		return state.Meta{}, err
	}

	var applied *tree.Tree
	err = p.host.Do(func(root *lifecycle.Scope) error {
		t, err := tree.Apply(root, def)
		applied = t
		return err
	})
	if err != nil {
		return state.Meta{}, fmt.Errorf("treewatcher: apply: %w", err)
	}

	p.mu.Lock()
	p.tree = applied
	p.mu.Unlock()

	meta, err = p.host.Checkpoint(ctx)
	if err != nil {
		return state.Meta{}, err
	}

	p.logger.Info("tree applied",
		log.String("tree", p.treePath),
		log.String("snapshot_id", meta.SnapshotID))
	return meta, nil
}
