package state

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// snapshotFile is the on-disk envelope. Scopes are a list rather than a map
// because the root scope's path is the empty string, which not every format
// accepts as a key.
type snapshotFile struct {
	SnapshotID string        `json:"snapshot_id" yaml:"snapshot_id" toml:"snapshot_id"`
	SavedAt    time.Time     `json:"saved_at" yaml:"saved_at" toml:"saved_at"`
	Scopes     []scopeRecord `json:"scopes" yaml:"scopes" toml:"scopes"`
}

type scopeRecord struct {
	Path      string         `json:"path" yaml:"path" toml:"path"`
	Fragments map[string]any `json:"fragments" yaml:"fragments" toml:"fragments"`
}

// FileRepository implements Repository using a single snapshot file.
type FileRepository struct {
	path  string
	codec codec
	now   func() time.Time
}

// NewFileRepository creates a repository for the file at path. The encoding
// follows the file extension (see FormatForPath).
func NewFileRepository(path string) (*FileRepository, error) {
	format, err := FormatForPath(path)
	if err != nil {
		return nil, err
	}
	c, err := codecFor(format)
	if err != nil {
		return nil, err
	}
	return &FileRepository{path: path, codec: c, now: time.Now}, nil
}

// Load retrieves the last saved root bundle from disk.
// Returns a nil bundle and nil error if no snapshot file exists.
func (r *FileRepository) Load(ctx context.Context) (Bundle, Meta, error) {
	if err := ctx.Err(); err != nil {
		return nil, Meta{}, err
	}

	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, Meta{}, nil
		}
		return nil, Meta{}, fmt.Errorf("state: read %s: %w", r.path, err)
	}

	var file snapshotFile
	if err := r.codec.unmarshal(data, &file); err != nil {
		return nil, Meta{}, fmt.Errorf("state: decode %s: %w", r.path, err)
	}

	root := NewBundle()
	for _, rec := range file.Scopes {
		scope := NewBundle()
		for key, value := range rec.Fragments {
			fragment, ok := AsBundle(value)
			if !ok {
				return nil, Meta{}, fmt.Errorf("state: decode %s: fragment %q in scope %q is not a table", r.path, key, rec.Path)
			}
			scope.PutBundle(key, fragment)
		}
		root.PutBundle(rec.Path, scope)
	}

	return root, Meta{
		SnapshotID: file.SnapshotID,
		SavedAt:    file.SavedAt,
		Format:     string(r.codec.format()),
	}, nil
}

// Save persists root atomically.
// Uses atomic write (write to temp file, then rename) to prevent corruption.
func (r *FileRepository) Save(ctx context.Context, root Bundle) (Meta, error) {
	if err := ctx.Err(); err != nil {
		return Meta{}, err
	}

	file := snapshotFile{
		SnapshotID: uuid.NewString(),
		SavedAt:    r.now().UTC().Truncate(time.Millisecond),
	}
	store := NewStore(root)
	for _, path := range store.Paths() {
		scope, _ := store.ScopeBundle(path)
		file.Scopes = append(file.Scopes, scopeRecord{Path: path, Fragments: scope.Plain()})
	}

	data, err := r.codec.marshal(file)
	if err != nil {
		return Meta{}, fmt.Errorf("state: encode %s: %w", r.path, err)
	}

	if err := os.MkdirAll(filepath.Dir(r.path), 0o700); err != nil {
		return Meta{}, err
	}

	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return Meta{}, err
	}
	if err := os.Rename(tmp, r.path); err != nil {
		return Meta{}, err
	}

	return Meta{
		SnapshotID: file.SnapshotID,
		SavedAt:    file.SavedAt,
		Format:     string(r.codec.format()),
	}, nil
}

// Path returns the full path to the snapshot file.
func (r *FileRepository) Path() string {
	return r.path
}

var _ Repository = (*FileRepository)(nil)
