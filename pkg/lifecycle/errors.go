package lifecycle

import (
	"errors"
	"fmt"
)

// Error categories. Every error returned by this package matches exactly one
// of them with errors.Is.
var (
	// ErrConfiguration marks caller bugs such as blank keys or nil listeners.
	ErrConfiguration = errors.New("lifecycle: configuration error")

	// ErrIllegalState marks protocol violations such as registering during a
	// save pass or using a destroyed scope.
	ErrIllegalState = errors.New("lifecycle: illegal state")
)

// Configuration errors.
var (
	ErrNilListener          = fmt.Errorf("%w: nil listener", ErrConfiguration)
	ErrBlankKey             = fmt.Errorf("%w: listener key is blank", ErrConfiguration)
	ErrDuplicateKey         = fmt.Errorf("%w: listener key already used in scope", ErrConfiguration)
	ErrUncomparableListener = fmt.Errorf("%w: listener type is not comparable", ErrConfiguration)
	ErrBlankScopeName       = fmt.Errorf("%w: scope name is blank", ErrConfiguration)
	ErrInvalidScopeName     = fmt.Errorf("%w: scope name contains %q", ErrConfiguration, Separator)
	ErrDuplicateScope       = fmt.Errorf("%w: child scope already exists", ErrConfiguration)
	ErrNilBundle            = fmt.Errorf("%w: nil bundle", ErrConfiguration)
)

// Illegal state errors.
var (
	ErrRegisterDuringSave   = fmt.Errorf("%w: cannot register during save", ErrIllegalState)
	ErrScopeDestroyed       = fmt.Errorf("%w: scope is destroyed", ErrIllegalState)
	ErrCoordinatorDestroyed = fmt.Errorf("%w: root scope is destroyed", ErrIllegalState)
	ErrNotIdle              = fmt.Errorf("%w: coordinator is not idle", ErrIllegalState)
	ErrInvalidTransition    = fmt.Errorf("%w: invalid phase transition", ErrIllegalState)
)

// ScopeError records the scope and listener an operation failed on.
type ScopeError struct {
	Op   string // register, create, destroy, load, save
	Path string
	Key  string // empty when no listener is involved
	Err  error
}

func (e *ScopeError) Error() string {
	path := e.Path
	if path == RootPath {
		path = "<root>"
	}
	if e.Key == "" {
		return fmt.Sprintf("%s %s: %v", e.Op, path, e.Err)
	}
	return fmt.Sprintf("%s %s[%s]: %v", e.Op, path, e.Key, e.Err)
}

func (e *ScopeError) Unwrap() error {
	return e.Err
}
