package main

import (
	"fmt"
	"os"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/bft-labs/scopesync/internal/cliconfig"
	"github.com/bft-labs/scopesync/pkg/log"
)

const helpDescription = `
Keep a tree of lifecycle scopes and their persisted state across restarts.

Highlights:
  - Declare scopes and value listeners in a TOML tree file.
  - Every run restores the last snapshot, reconciles the tree and saves again.
  - watch keeps the tree in step with the file and exposes Prometheus metrics.
`

var exampleUsage = strings.TrimSpace(`
  scopesync run --tree tree.toml --set /session:cart.items=3
  scopesync inspect --format yaml
  scopesync watch --tree tree.toml --metrics-addr :9090
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

// cli carries the configuration shared by every subcommand.
type cli struct {
	cfg     cliconfig.Config
	cfgPath string
	logger  *log.ZerologAdapter
}

func newRootCmd() *cobra.Command {
	c := &cli{cfg: cliconfig.DefaultConfig()}

	root := &cobra.Command{
		Use:           "scopesync",
		Short:         "Persist a tree of lifecycle scopes across restarts",
		Long:          strings.TrimSpace(helpDescription),
		Example:       exampleUsage,
		Version:       fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.load(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&c.cfgPath, "config", "", "path to config file (default: $HOME/.scopesync/config.toml)")
	pf.StringVar(&c.cfg.StatePath, "state", c.cfg.StatePath, "snapshot file (.json, .yaml or .toml)")
	pf.StringVar(&c.cfg.TreePath, "tree", c.cfg.TreePath, "tree definition file (.toml)")
	pf.StringVar(&c.cfg.LogLevel, "log-level", c.cfg.LogLevel, "log level (debug, info, warn, error, disabled)")
	pf.BoolVar(&c.cfg.SkipFinalCheckpoint, "skip-final-checkpoint", c.cfg.SkipFinalCheckpoint, "do not save on shutdown")

	root.AddCommand(c.runCmd(), c.inspectCmd(), c.watchCmd())
	return root
}

// load applies the config file, then env (SCOPESYNC_*), under the flags the
// user set explicitly.
func (c *cli) load(cmd *cobra.Command) error {
	cfgFile := c.cfgPath
	if cfgFile == "" {
		cfgFile = cliconfig.DefaultConfigPath()
	}

	changed := map[string]bool{}
	cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

	if cfgFile != "" && cliconfig.FileExists(cfgFile) {
		fc, err := cliconfig.LoadFileConfig(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if err := cliconfig.ApplyFileConfig(&c.cfg, fc, changed); err != nil {
			return err
		}
	}

	if err := cliconfig.ApplyEnvConfig(&c.cfg, changed); err != nil {
		return err
	}

	if err := c.cfg.Validate(); err != nil {
		return err
	}

	logger, err := log.NewConsoleLogger(c.cfg.LogLevel)
	if err != nil {
		return err
	}
	c.logger = logger

	c.logger.Debug("configuration",
		log.String("state", c.cfg.StatePath),
		log.String("tree", c.cfg.TreePath),
		log.String("metrics_addr", c.cfg.MetricsAddr),
		log.Duration("debounce", c.cfg.Debounce))
	return nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "scopesync: %v\n", err)
		os.Exit(1)
	}
}
