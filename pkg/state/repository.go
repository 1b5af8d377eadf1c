package state

import (
	"context"
	"time"
)

// Meta describes one persisted snapshot.
type Meta struct {
	SnapshotID string    `json:"snapshot_id,omitempty"`
	SavedAt    time.Time `json:"saved_at,omitempty"`
	Format     string    `json:"format,omitempty"`
}

// Repository persists whole root bundles for restore after process death.
type Repository interface {
	// Load retrieves the last saved root bundle.
	// Returns a nil bundle and nil error if nothing has been saved yet.
	Load(ctx context.Context) (Bundle, Meta, error)

	// Save persists root atomically and returns the metadata of the new snapshot.
	Save(ctx context.Context, root Bundle) (Meta, error)
}
