package scopesync

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/bft-labs/scopesync/internal/domain"
	"github.com/bft-labs/scopesync/pkg/state"
)

// Config holds the host configuration.
type Config struct {
	// StatePath is the snapshot file. Its extension (.json, .yaml, .yml,
	// .toml) selects the encoding. Required unless WithRepository is used.
	StatePath string

	// TreePath is a tree definition file handed to plugins. Optional.
	TreePath string

	// SkipFinalCheckpoint disables the checkpoint Stop takes before
	// destroying the tree.
	SkipFinalCheckpoint bool
}

// SetDefaults normalizes paths.
func (c *Config) SetDefaults() {
	c.StatePath = cleanPath(c.StatePath)
	c.TreePath = cleanPath(c.TreePath)
}

// Validate checks the configuration. Errors wrap ErrInvalidConfig.
func (c Config) Validate() error {
	if c.StatePath != "" {
		if _, err := state.FormatForPath(c.StatePath); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrInvalidConfig, err)
		}
	}
	if c.TreePath != "" && !strings.EqualFold(filepath.Ext(c.TreePath), ".toml") {
		return fmt.Errorf("%w: tree definition %s must be a .toml file", domain.ErrInvalidConfig, c.TreePath)
	}
	return nil
}

func cleanPath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	return filepath.Clean(p)
}
