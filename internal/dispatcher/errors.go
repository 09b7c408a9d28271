package dispatcher

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dshills/actionroute/internal/dispatcher/scope"
)

// Dispatcher errors.
var (
	// ErrInvalidDimension indicates a scope names a dimension that was not declared.
	ErrInvalidDimension = errors.New("dispatcher: invalid dimension")

	// ErrInvalidAction indicates an empty action name.
	ErrInvalidAction = errors.New("dispatcher: action name must be provided for dispatching")

	// ErrHandlerNotFound indicates no handler resolved for an action and scope.
	ErrHandlerNotFound = errors.New("dispatcher: handler not found")

	// ErrActionCancelled indicates the action was cancelled by a hook.
	ErrActionCancelled = errors.New("dispatcher: action cancelled by hook")

	// ErrNilHandler indicates a nil handler was registered.
	ErrNilHandler = errors.New("dispatcher: handler is nil")

	// ErrDimensionMismatch indicates a staged registry built over different
	// dimensions than the dispatcher's.
	ErrDimensionMismatch = errors.New("dispatcher: registry dimensions do not match")
)

// InvalidDimensionError reports a scope key outside the declared dimensions.
type InvalidDimensionError struct {
	Dimension string
	Available []string
}

func (e *InvalidDimensionError) Error() string {
	return fmt.Sprintf("dispatcher: invalid dimension %q, available dimensions: [%s]",
		e.Dimension, strings.Join(e.Available, ", "))
}

// Unwrap returns ErrInvalidDimension.
func (e *InvalidDimensionError) Unwrap() error {
	return ErrInvalidDimension
}

// HandlerNotFoundError reports an action that resolved to no handler.
// Scope holds the dimensions extracted from the dispatch context.
type HandlerNotFoundError struct {
	Action string
	Scope  scope.Scope
}

func (e *HandlerNotFoundError) Error() string {
	return fmt.Sprintf("dispatcher: no handler found for action %q with scope %s", e.Action, e.Scope)
}

// Unwrap returns ErrHandlerNotFound.
func (e *HandlerNotFoundError) Unwrap() error {
	return ErrHandlerNotFound
}
