package hook

import (
	"slices"

	"github.com/dshills/actionroute/internal/dispatcher/scope"
)

// Hook is the base interface for all dispatch hooks.
type Hook interface {
	// Name identifies the hook within a Chain.
	Name() string

	// Priority orders the hook. Higher values run first before dispatch and
	// last after it.
	Priority() int
}

// PreDispatchHook runs after the handler is resolved and before it is
// invoked. Returning false cancels the dispatch.
type PreDispatchHook interface {
	Hook
	PreDispatch(inv *Invocation) bool
}

// PostDispatchHook observes the handler's result and error.
type PostDispatchHook interface {
	Hook
	PostDispatch(inv *Invocation, result any, err error)
}

// Match selects the dispatches a hook applies to. The zero Match selects
// every dispatch.
type Match struct {
	// Actions limits the hook to these action names.
	Actions []string

	// Scope requires each listed dimension to carry the given value in the
	// dispatch scope. A scope.Unset value requires the dimension to be unset.
	Scope scope.Scope
}

// Selects reports whether inv falls under m.
func (m Match) Selects(inv *Invocation) bool {
	if len(m.Actions) > 0 && !slices.Contains(m.Actions, inv.Action) {
		return false
	}
	for name, want := range m.Scope {
		if inv.Scope.Value(name) != want {
			return false
		}
	}
	return true
}

// Func is a hook assembled from plain functions. Either phase may be nil.
type Func struct {
	name     string
	priority int
	pre      func(inv *Invocation) bool
	post     func(inv *Invocation, result any, err error)
}

// Pre returns a hook that only runs before dispatch.
func Pre(name string, priority int, fn func(inv *Invocation) bool) *Func {
	return &Func{name: name, priority: priority, pre: fn}
}

// Post returns a hook that only runs after dispatch.
func Post(name string, priority int, fn func(inv *Invocation, result any, err error)) *Func {
	return &Func{name: name, priority: priority, post: fn}
}

// Around returns a hook running pre before dispatch and post after it.
func Around(name string, priority int, pre func(*Invocation) bool, post func(*Invocation, any, error)) *Func {
	return &Func{name: name, priority: priority, pre: pre, post: post}
}

// Name implements Hook.
func (f *Func) Name() string { return f.name }

// Priority implements Hook.
func (f *Func) Priority() int { return f.priority }

// PreDispatch implements PreDispatchHook.
func (f *Func) PreDispatch(inv *Invocation) bool {
	if f.pre == nil {
		return true
	}
	return f.pre(inv)
}

// PostDispatch implements PostDispatchHook.
func (f *Func) PostDispatch(inv *Invocation, result any, err error) {
	if f.post != nil {
		f.post(inv, result, err)
	}
}
