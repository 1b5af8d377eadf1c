package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/bft-labs/scopesync"
	"github.com/bft-labs/scopesync/internal/tree"
	"github.com/bft-labs/scopesync/pkg/lifecycle"
	"github.com/bft-labs/scopesync/pkg/log"
	"github.com/bft-labs/scopesync/pkg/metrics"
	"github.com/bft-labs/scopesync/pkg/state"
	"github.com/bft-labs/scopesync/plugins/treewatcher"
)

func (c *cli) runCmd() *cobra.Command {
	var sets []string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Restore the tree, apply the definition and assignments, then checkpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			assignments := make([]tree.Assignment, 0, len(sets))
			for _, s := range sets {
				a, err := tree.ParseAssignment(s)
				if err != nil {
					return err
				}
				assignments = append(assignments, a)
			}

			var def *tree.Definition
			if c.cfg.TreePath != "" {
				d, err := tree.Load(c.cfg.TreePath)
				if err != nil {
					return err
				}
				def = d
			} else if len(assignments) > 0 {
				return errors.New("--set requires --tree")
			}

			lib := c.cfg.Library()
			// run checkpoints explicitly to report the snapshot ID.
			lib.SkipFinalCheckpoint = true
			host, err := scopesync.New(lib, scopesync.WithLogger(c.logger))
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if err := host.Start(ctx); err != nil {
				return fmt.Errorf("start: %w", err)
			}

			err = host.Do(func(root *lifecycle.Scope) error {
				if def == nil {
					return nil
				}
				t, err := tree.Apply(root, def)
				if err != nil {
					return err
				}
				for _, a := range assignments {
					if err := a.Apply(t); err != nil {
						return err
					}
				}
				return nil
			})
			if err != nil {
				_ = host.Stop(ctx)
				return err
			}

			meta, err := host.Checkpoint(ctx)
			if err != nil {
				_ = host.Stop(ctx)
				return err
			}
			if err := host.Stop(ctx); err != nil {
				return fmt.Errorf("stop: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), meta.SnapshotID)
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&sets, "set", nil, "assign a listener value as path:key.field=value (repeatable)")
	return cmd
}

func (c *cli) inspectCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Print the persisted snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := state.Format(format)
			if f != state.FormatJSON && f != state.FormatYAML {
				return fmt.Errorf("unsupported format %q (want json or yaml)", format)
			}

			repo, err := state.NewFileRepository(c.cfg.StatePath)
			if err != nil {
				return err
			}
			root, meta, err := repo.Load(cmd.Context())
			if err != nil {
				return err
			}
			if root == nil {
				return fmt.Errorf("no snapshot at %s", c.cfg.StatePath)
			}

			c.logger.Info("snapshot",
				log.String("snapshot_id", meta.SnapshotID),
				log.String("saved_at", meta.SavedAt.Format(time.RFC3339)),
				log.Int("scopes", len(state.NewStore(root).Paths())))

			data, err := state.Encode(root, f)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if _, err := out.Write(data); err != nil {
				return err
			}
			if len(data) > 0 && data[len(data)-1] != '\n' {
				fmt.Fprintln(out)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", string(state.FormatJSON), "output format (json or yaml)")
	return cmd
}

func (c *cli) watchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Keep the tree in step with the tree file until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := prom.NewRegistry()
			opts := []scopesync.Option{
				scopesync.WithLogger(c.logger),
				scopesync.WithRecorder(metrics.NewPrometheusRecorder(reg)),
				scopesync.WithEventHandler(&stateLogger{logger: c.logger}),
			}
			if c.cfg.TreePath != "" {
				opts = append(opts, treewatcher.WithTreeWatcher(treewatcher.Config{
					DebounceDelay: c.cfg.Debounce,
				}))
			} else {
				c.logger.Warn("no tree file configured; holding the restored tree only")
			}

			host, err := scopesync.New(c.cfg.Library(), opts...)
			if err != nil {
				return err
			}

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(sigCh)

			// Start and Stop outlive the signal so the final checkpoint can run.
			ctx := context.Background()
			if err := host.Start(ctx); err != nil {
				return fmt.Errorf("start: %w", err)
			}

			var srv *http.Server
			if c.cfg.MetricsAddr != "" {
				if srv, err = serveMetrics(c.cfg.MetricsAddr, reg, c.logger); err != nil {
					if stopErr := host.Stop(ctx); stopErr != nil {
						c.logger.Error("stop after metrics failure", log.Err(stopErr))
					}
					return err
				}
			}

			<-sigCh
			c.logger.Info("received signal, stopping...")

			if srv != nil {
				shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
				defer cancel()
				_ = srv.Shutdown(shutdownCtx)
			}

			if err := host.Stop(ctx); err != nil {
				return fmt.Errorf("stop: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&c.cfg.MetricsAddr, "metrics-addr", c.cfg.MetricsAddr, "serve Prometheus metrics on this address")
	cmd.Flags().DurationVar(&c.cfg.Debounce, "debounce", c.cfg.Debounce, "delay after a tree file change before reloading")
	return cmd
}

// serveMetrics binds addr before returning so a bad address fails the
// command, then serves /metrics in the background until Shutdown.
func serveMetrics(addr string, reg *prom.Registry, logger log.Logger) (*http.Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.HTTPHandler(reg))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", log.Err(err))
		}
	}()
	logger.Info("serving metrics", log.String("addr", ln.Addr().String()))
	return srv, nil
}

// stateLogger logs host state changes and checkpoints.
type stateLogger struct {
	scopesync.BaseEventHandler
	logger log.Logger
}

func (s *stateLogger) OnStateChange(event scopesync.StateChangeEvent) {
	s.logger.Info("state changed",
		log.String("from", event.Previous.String()),
		log.String("to", event.Current.String()),
		log.String("reason", event.Reason))
}

func (s *stateLogger) OnCheckpoint(event scopesync.CheckpointEvent) {
	if event.Err != nil {
		return
	}
	s.logger.Debug("checkpoint",
		log.String("snapshot_id", event.SnapshotID),
		log.Int("scopes", event.Scopes),
		log.Duration("took", event.Duration))
}
