package state

import (
	"encoding/json"
	"math"
	"sort"
)

// Bundle is a nested, string-keyed value container. Nested containers are
// Bundles too; plain map[string]any values (as produced by decoders) are
// accepted wherever a Bundle is expected.
type Bundle map[string]any

// NewBundle returns an empty, writable Bundle.
func NewBundle() Bundle {
	return Bundle{}
}

// AsBundle converts v into a Bundle without copying. It reports false when v
// is not a string-keyed map.
func AsBundle(v any) (Bundle, bool) {
	switch m := v.(type) {
	case Bundle:
		return m, m != nil
	case map[string]any:
		return Bundle(m), m != nil
	default:
		return nil, false
	}
}

// Get returns the raw value stored under key.
func (b Bundle) Get(key string) (any, bool) {
	if b == nil {
		return nil, false
	}
	v, ok := b[key]
	return v, ok
}

// Put stores value under key.
func (b Bundle) Put(key string, value any) {
	b[key] = value
}

// Delete removes key.
func (b Bundle) Delete(key string) {
	delete(b, key)
}

// Len returns the number of top-level entries.
func (b Bundle) Len() int {
	return len(b)
}

// Keys returns the top-level keys in sorted order.
func (b Bundle) Keys() []string {
	keys := make([]string, 0, len(b))
	for k := range b {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// GetBundle returns the nested bundle under key.
func (b Bundle) GetBundle(key string) (Bundle, bool) {
	v, ok := b.Get(key)
	if !ok {
		return nil, false
	}
	return AsBundle(v)
}

// PutBundle stores a nested bundle under key.
func (b Bundle) PutBundle(key string, value Bundle) {
	b[key] = value
}

// GetString returns the string under key.
func (b Bundle) GetString(key string) (string, bool) {
	v, ok := b.Get(key)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// PutString stores a string under key.
func (b Bundle) PutString(key, value string) {
	b[key] = value
}

// GetBool returns the bool under key.
func (b Bundle) GetBool(key string) (bool, bool) {
	v, ok := b.Get(key)
	if !ok {
		return false, false
	}
	flag, ok := v.(bool)
	return flag, ok
}

// PutBool stores a bool under key.
func (b Bundle) PutBool(key string, value bool) {
	b[key] = value
}

// GetInt returns the integer under key. Decoded numbers (float64 from JSON,
// int64 from TOML, json.Number) are converted when they hold a whole value.
func (b Bundle) GetInt(key string) (int64, bool) {
	v, ok := b.Get(key)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case float64:
		if n != math.Trunc(n) || n < -(1<<63) || n >= 1<<63 {
			return 0, false
		}
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	default:
		return 0, false
	}
}

// PutInt stores an integer under key.
func (b Bundle) PutInt(key string, value int64) {
	b[key] = value
}

// GetFloat returns the number under key as a float64.
func (b Bundle) GetFloat(key string) (float64, bool) {
	v, ok := b.Get(key)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// Clone returns a deep copy of b. Nested maps become Bundles and slices are
// copied element by element.
func (b Bundle) Clone() Bundle {
	if b == nil {
		return nil
	}
	out := make(Bundle, len(b))
	for k, v := range b {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case Bundle:
		return t.Clone()
	case map[string]any:
		return Bundle(t).Clone()
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = cloneValue(t[i])
		}
		return out
	case []string:
		return append([]string(nil), t...)
	default:
		return v
	}
}

// Plain returns a deep copy of b using only map[string]any for nesting, which
// every encoder understands without custom type handling.
func (b Bundle) Plain() map[string]any {
	if b == nil {
		return nil
	}
	out := make(map[string]any, len(b))
	for k, v := range b {
		out[k] = plainValue(v)
	}
	return out
}

func plainValue(v any) any {
	switch t := v.(type) {
	case Bundle:
		return t.Plain()
	case map[string]any:
		return Bundle(t).Plain()
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = plainValue(t[i])
		}
		return out
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	default:
		return v
	}
}
