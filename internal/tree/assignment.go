package tree

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Assignment is a parsed "path:key.field=value" expression.
type Assignment struct {
	Path  string
	Key   string
	Field string
	Value any
}

// ParseAssignment parses "path:key.field=value". The path may be empty for
// the root scope. Values that parse as bool, int or finite float keep that
// type; anything else is a string.
func ParseAssignment(s string) (Assignment, error) {
	lhs, raw, ok := strings.Cut(s, "=")
	if !ok {
		return Assignment{}, fmt.Errorf("tree: assignment %q: missing '='", s)
	}
	path, target, ok := strings.Cut(lhs, ":")
	if !ok {
		return Assignment{}, fmt.Errorf("tree: assignment %q: missing ':'", s)
	}
	key, field, ok := strings.Cut(target, ".")
	if !ok || key == "" || field == "" {
		return Assignment{}, fmt.Errorf("tree: assignment %q: want key.field", s)
	}

	return Assignment{
		Path:  strings.TrimSuffix(path, "/"),
		Key:   key,
		Field: field,
		Value: parseValue(raw),
	}, nil
}

// Apply performs the assignment on t.
func (a Assignment) Apply(t *Tree) error {
	return t.Set(a.Path, a.Key, a.Field, a.Value)
}

func parseValue(raw string) any {
	switch raw {
	case "true":
		return true
	case "false":
		return false
	}
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return i
	}
	// NaN and Inf stay strings; no snapshot codec can encode them.
	if f, err := strconv.ParseFloat(raw, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		return f
	}
	return raw
}
