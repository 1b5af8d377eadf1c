package cliconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bft-labs/scopesync"
	"github.com/bft-labs/scopesync/pkg/log"
)

// Config holds CLI configuration for scopesync.
type Config struct {
	StatePath string
	TreePath  string

	LogLevel    string
	MetricsAddr string

	Debounce            time.Duration
	SkipFinalCheckpoint bool
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		StatePath: DefaultStatePath(),
		LogLevel:  "info",
		Debounce:  100 * time.Millisecond,
	}
}

// DefaultStatePath returns ~/.scopesync/state.json if the user home
// directory is accessible.
func DefaultStatePath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".scopesync", "state.json")
	}
	return ""
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.StatePath == "" {
		return fmt.Errorf("state path is required")
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.Debounce <= 0 {
		return fmt.Errorf("debounce must be positive")
	}
	return nil
}

// Library converts the CLI configuration into a host configuration.
func (c *Config) Library() scopesync.Config {
	return scopesync.Config{
		StatePath:           c.StatePath,
		TreePath:            c.TreePath,
		SkipFinalCheckpoint: c.SkipFinalCheckpoint,
	}
}

// configSetter helps apply configuration values while respecting flag precedence.
// It only applies values if the corresponding flag hasn't been explicitly set.
type configSetter struct {
	changed map[string]bool
}

// newConfigSetter creates a new setter with the given changed flags map.
func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setDuration parses and sets a duration from string if valid and flag not changed.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// setBool sets a bool value from a pointer if not nil and flag not changed.
func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setBoolFromString parses a string to bool and sets the destination.
// Accepts "true", "1" as true, anything else as false.
// Used for environment variables that come as strings.
func (s *configSetter) setBoolFromString(flag, value string, dst *bool) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value == "true" || value == "1"
}
