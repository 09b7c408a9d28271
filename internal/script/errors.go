package script

import (
	"errors"
	"fmt"
)

var (
	// ErrStateClosed is returned when calling into a closed script state.
	ErrStateClosed = errors.New("script: lua state is closed")

	// ErrLoad is wrapped by every script load failure.
	ErrLoad = errors.New("script: load failed")

	// ErrHandlerFailed is wrapped by errors returned from Lua handlers.
	ErrHandlerFailed = errors.New("script: handler failed")
)

// LoadError reports a script that failed to load or register its routes.
type LoadError struct {
	Path string
	Err  error
}

// Error implements error.
func (e *LoadError) Error() string {
	return fmt.Sprintf("script %s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *LoadError) Unwrap() error {
	return e.Err
}

// Is reports ErrLoad as a match.
func (e *LoadError) Is(target error) bool {
	return target == ErrLoad
}

// HandlerError is returned when a Lua handler fails, either by raising an
// error or by returning nil plus a message.
type HandlerError struct {
	Script  string
	Action  string
	Message string
}

// Error implements error.
func (e *HandlerError) Error() string {
	return fmt.Sprintf("%s (%s): %s", e.Action, e.Script, e.Message)
}

// Unwrap returns ErrHandlerFailed.
func (e *HandlerError) Unwrap() error {
	return ErrHandlerFailed
}
