package state

import "sort"

// Store addresses a root bundle by scope path, then listener key. A Store
// over a nil root answers every lookup with "absent" and refuses writes.
type Store struct {
	root Bundle
}

// NewStore wraps root. The store reads and writes root in place.
func NewStore(root Bundle) *Store {
	return &Store{root: root}
}

// Root returns the wrapped root bundle (nil for a cold start).
func (s *Store) Root() Bundle {
	if s == nil {
		return nil
	}
	return s.root
}

// ScopeBundle returns the bundle holding every fragment of the scope at path.
func (s *Store) ScopeBundle(path string) (Bundle, bool) {
	if s == nil || s.root == nil {
		return nil, false
	}
	return s.root.GetBundle(path)
}

// FragmentFor returns the fragment stored for key within the scope at path.
func (s *Store) FragmentFor(path, key string) (Bundle, bool) {
	scope, ok := s.ScopeBundle(path)
	if !ok {
		return nil, false
	}
	return scope.GetBundle(key)
}

// PutFragment stores fragment for key within the scope at path, creating the
// scope bundle on demand. Other keys under the same path are left untouched.
// It reports false when the store has no root to write into.
func (s *Store) PutFragment(path, key string, fragment Bundle) bool {
	if s == nil || s.root == nil {
		return false
	}
	scope, ok := s.root.GetBundle(path)
	if !ok {
		scope = NewBundle()
	}
	// Re-store so a decoded map[string]any is replaced by its Bundle view.
	s.root.PutBundle(path, scope)
	scope.PutBundle(key, fragment)
	return true
}

// Paths returns the scope paths present in the root, sorted.
func (s *Store) Paths() []string {
	if s == nil || s.root == nil {
		return nil
	}
	paths := make([]string, 0, len(s.root))
	for path, v := range s.root {
		if _, ok := AsBundle(v); ok {
			paths = append(paths, path)
		}
	}
	sort.Strings(paths)
	return paths
}
