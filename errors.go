package scopesync

import "github.com/bft-labs/scopesync/internal/domain"

// Errors returned by the host. Check with errors.Is.
var (
	ErrAlreadyRunning = domain.ErrAlreadyRunning
	ErrNotRunning     = domain.ErrNotRunning
	ErrInvalidConfig  = domain.ErrInvalidConfig
)
