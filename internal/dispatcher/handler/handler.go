// Package handler provides the handler contract for action dispatch.
package handler

import (
	"errors"
	"fmt"
)

// ErrNilFunc is returned by a HandlerFunc wrapping a nil function.
var ErrNilFunc = errors.New("handler: handler function is nil")

// Handler processes one dispatched action.
//
// The returned value is passed back to the dispatch caller unmodified, and so
// is the error: the dispatcher never wraps, retries or recovers handler
// failures.
type Handler interface {
	Handle(params Params) (any, error)
}

// Describer is implemented by handlers that can report where they came from
// (a script file, a manifest entry). Used for route listings and logs.
type Describer interface {
	Describe() string
}

// HandlerFunc is a function adapter for the Handler interface.
// Each call to NewHandlerFunc yields a distinct handler value, so registered
// handlers can be compared by identity.
type HandlerFunc struct {
	fn   func(params Params) (any, error)
	desc string
}

// NewHandlerFunc creates a HandlerFunc from a function.
func NewHandlerFunc(fn func(params Params) (any, error)) *HandlerFunc {
	return &HandlerFunc{fn: fn, desc: "func"}
}

// NewNamedHandlerFunc creates a HandlerFunc with a description.
func NewNamedHandlerFunc(desc string, fn func(params Params) (any, error)) *HandlerFunc {
	return &HandlerFunc{fn: fn, desc: desc}
}

// Handle implements Handler.
func (f *HandlerFunc) Handle(params Params) (any, error) {
	if f.fn == nil {
		return nil, ErrNilFunc
	}
	return f.fn(params)
}

// Describe implements Describer.
func (f *HandlerFunc) Describe() string {
	return f.desc
}

// Static returns a handler that always yields value.
func Static(desc string, value any) *HandlerFunc {
	return NewNamedHandlerFunc(desc, func(Params) (any, error) {
		return value, nil
	})
}

// Failing returns a handler that always fails with err.
func Failing(desc string, err error) *HandlerFunc {
	return NewNamedHandlerFunc(desc, func(Params) (any, error) {
		return nil, err
	})
}

// Describe returns a human readable description of h.
func Describe(h Handler) string {
	if h == nil {
		return "<nil>"
	}
	if d, ok := h.(Describer); ok {
		return d.Describe()
	}
	return fmt.Sprintf("%T", h)
}
