package cliconfig

import "os"

// ApplyEnvConfig applies configuration from environment variables (SCOPESYNC_*).
// It respects flags that have been explicitly set (changed map).
// Returns error if any environment variable has an invalid format.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("state", os.Getenv("SCOPESYNC_STATE"), &cfg.StatePath)
	s.setString("tree", os.Getenv("SCOPESYNC_TREE"), &cfg.TreePath)
	s.setString("log-level", os.Getenv("SCOPESYNC_LOG_LEVEL"), &cfg.LogLevel)
	s.setString("metrics-addr", os.Getenv("SCOPESYNC_METRICS_ADDR"), &cfg.MetricsAddr)

	if err := s.setDuration("debounce", os.Getenv("SCOPESYNC_DEBOUNCE"), &cfg.Debounce); err != nil {
		return err
	}

	s.setBoolFromString("skip-final-checkpoint", os.Getenv("SCOPESYNC_SKIP_FINAL_CHECKPOINT"), &cfg.SkipFinalCheckpoint)

	return nil
}
