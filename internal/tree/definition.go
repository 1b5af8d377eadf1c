package tree

import (
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/bft-labs/scopesync/internal/domain"
	"github.com/bft-labs/scopesync/pkg/lifecycle"
)

// Definition is the decoded form of a tree file. Its top-level listeners
// belong to the root scope.
type Definition struct {
	Listeners []ListenerDef `toml:"listener"`
	Scopes    []ScopeDef    `toml:"scope"`
}

// ScopeDef declares one child scope and its subtree.
type ScopeDef struct {
	Name      string        `toml:"name"`
	Listeners []ListenerDef `toml:"listener"`
	Scopes    []ScopeDef    `toml:"scope"`
}

// ListenerDef declares a value listener and its default values.
type ListenerDef struct {
	Key    string         `toml:"key"`
	Values map[string]any `toml:"values"`
}

// Load reads and validates the definition at path.
func Load(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", domain.ErrInvalidTree, path, err)
	}
	return Parse(data)
}

// Parse decodes and validates a TOML definition.
func Parse(data []byte) (*Definition, error) {
	var def Definition
	if err := toml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidTree, err)
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &def, nil
}

// Validate checks names and keys. Errors wrap domain.ErrInvalidTree.
func (d *Definition) Validate() error {
	if err := validateListeners(lifecycle.RootPath, d.Listeners); err != nil {
		return err
	}
	return validateScopes(lifecycle.RootPath, d.Scopes)
}

// Paths returns every declared scope path, parents before children.
func (d *Definition) Paths() []string {
	paths := []string{lifecycle.RootPath}
	var walk func(parent string, scopes []ScopeDef)
	walk = func(parent string, scopes []ScopeDef) {
		for _, s := range scopes {
			path := parent + lifecycle.Separator + s.Name
			paths = append(paths, path)
			walk(path, s.Scopes)
		}
	}
	walk(lifecycle.RootPath, d.Scopes)
	return paths
}

func validateScopes(parent string, scopes []ScopeDef) error {
	seen := make(map[string]bool, len(scopes))
	for _, s := range scopes {
		name := strings.TrimSpace(s.Name)
		switch {
		case name == "":
			return fmt.Errorf("%w: blank scope name under %s", domain.ErrInvalidTree, displayPath(parent))
		case name != s.Name || strings.Contains(name, lifecycle.Separator):
			return fmt.Errorf("%w: invalid scope name %q under %s", domain.ErrInvalidTree, s.Name, displayPath(parent))
		case seen[name]:
			return fmt.Errorf("%w: duplicate scope %q under %s", domain.ErrInvalidTree, name, displayPath(parent))
		}
		seen[name] = true

		path := parent + lifecycle.Separator + name
		if err := validateListeners(path, s.Listeners); err != nil {
			return err
		}
		if err := validateScopes(path, s.Scopes); err != nil {
			return err
		}
	}
	return nil
}

func validateListeners(path string, listeners []ListenerDef) error {
	seen := make(map[string]bool, len(listeners))
	for _, l := range listeners {
		if strings.TrimSpace(l.Key) == "" {
			return fmt.Errorf("%w: blank listener key in %s", domain.ErrInvalidTree, displayPath(path))
		}
		if seen[l.Key] {
			return fmt.Errorf("%w: duplicate listener %q in %s", domain.ErrInvalidTree, l.Key, displayPath(path))
		}
		seen[l.Key] = true
	}
	return nil
}

func displayPath(path string) string {
	if path == lifecycle.RootPath {
		return "<root>"
	}
	return path
}
