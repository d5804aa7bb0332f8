package docbridge

import (
	"errors"
	"fmt"
)

var (
	// ErrPluginNotFound is returned when a named plugin is not registered.
	ErrPluginNotFound = errors.New("plugin not found")

	// ErrNotInitialized is returned when an operation requires an initialized
	// plugin but the plugin is in another state.
	ErrNotInitialized = errors.New("plugin not initialized")
)

// StructuralError marks a plugin Invalid: a missing dependency, a dependency
// cycle, or a config schema violation. Not retryable without a code or config
// change.
type StructuralError struct {
	Plugin string
	Reason string
}

func (e *StructuralError) Error() string {
	return fmt.Sprintf("plugin %s: %s", e.Plugin, e.Reason)
}

// InitError marks a plugin Failed: Init returned an error or panicked.
// Retryable via Manager.RetryFailed or Manager.Reload.
type InitError struct {
	Plugin string
	Err    error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("plugin %s: init failed: %v", e.Plugin, e.Err)
}

func (e *InitError) Unwrap() error { return e.Err }

func structuralf(name, format string, args ...any) *StructuralError {
	return &StructuralError{Plugin: name, Reason: fmt.Sprintf(format, args...)}
}
