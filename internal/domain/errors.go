package domain

import "errors"

// Domain errors represent error conditions of the scopesync host.
// These errors are returned by the public API and can be checked with errors.Is.
var (
	// ErrAlreadyRunning is returned when Start() is called on a running host.
	ErrAlreadyRunning = errors.New("scopesync: already running")

	// ErrNotRunning is returned when Stop(), Do() or Checkpoint() is called on
	// a host that is not running.
	ErrNotRunning = errors.New("scopesync: not running")

	// ErrInvalidConfig is returned when configuration validation fails.
	ErrInvalidConfig = errors.New("scopesync: invalid configuration")

	// ErrInvalidTree is returned when a tree definition cannot be decoded or
	// applied.
	ErrInvalidTree = errors.New("scopesync: invalid tree definition")
)
