package app

import (
	"errors"
	"fmt"
)

// Application errors.
var (
	// ErrAlreadyRunning indicates Serve was called twice.
	ErrAlreadyRunning = errors.New("application already running")

	// ErrInitialization indicates an initialization failure.
	ErrInitialization = errors.New("initialization failed")

	// ErrSourceNotFound indicates a route source path that does not exist.
	ErrSourceNotFound = errors.New("route source not found")

	// ErrBadRequest indicates a serve request that could not be decoded.
	ErrBadRequest = errors.New("bad request")
)

// InitError reports a component that failed to initialize.
type InitError struct {
	Component string
	Err       error
}

func (e *InitError) Error() string {
	return "init " + e.Component + ": " + e.Err.Error()
}

func (e *InitError) Unwrap() error {
	return e.Err
}

// Is matches ErrInitialization as well as the wrapped error.
func (e *InitError) Is(target error) bool {
	return target == ErrInitialization
}

// OperationError represents an error that occurred while applying a route
// source.
type OperationError struct {
	Op     string // Operation name (e.g., "load script", "load manifest")
	Target string // Target of the operation, usually a path
	Err    error  // Underlying error
}

func (e *OperationError) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Op
	if e.Target != "" {
		msg = fmt.Sprintf("%s %s", e.Op, e.Target)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *OperationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
