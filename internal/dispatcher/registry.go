package dispatcher

import (
	"sort"
	"sync"

	"github.com/dshills/actionroute/internal/dispatcher/handler"
	"github.com/dshills/actionroute/internal/dispatcher/scope"
)

// Invalidator is notified after every registry mutation.
type Invalidator interface {
	Invalidate()
}

// Route describes one registration.
type Route struct {
	Action  string
	Scope   scope.Scope // every dimension, unset ones mapped to scope.Unset
	Global  bool
	Handler handler.Handler
}

// node is one level of the registry tree. Internal nodes branch on the value
// of the dimension at their depth; leaves hold handlers by action name.
type node struct {
	children map[string]*node
	unset    *node
	handlers map[string]handler.Handler
}

// child returns the branch for value, which is the unset branch for scope.Unset.
func (n *node) child(value string) *node {
	if value == scope.Unset {
		return n.unset
	}
	return n.children[value]
}

// getOrCreate returns the branch for value, creating it if missing.
func (n *node) getOrCreate(value string) *node {
	if c := n.child(value); c != nil {
		return c
	}
	c := &node{}
	if value == scope.Unset {
		n.unset = c
		return c
	}
	if n.children == nil {
		n.children = make(map[string]*node)
	}
	n.children[value] = c
	return c
}

// remove drops the branch for value.
func (n *node) remove(value string) {
	if value == scope.Unset {
		n.unset = nil
		return
	}
	delete(n.children, value)
}

func (n *node) empty() bool {
	return len(n.children) == 0 && n.unset == nil && len(n.handlers) == 0
}

// Registry stores handlers in a tree keyed by dimension values, plus a flat
// table of global handlers that apply regardless of scope.
type Registry struct {
	mu      sync.RWMutex
	dims    scope.Dimensions
	root    *node
	globals map[string]handler.Handler
	count   int

	invalidator Invalidator
}

// NewRegistry creates an empty registry for the given dimensions.
func NewRegistry(dims scope.Dimensions) *Registry {
	return &Registry{
		dims:    dims,
		root:    &node{},
		globals: make(map[string]handler.Handler),
	}
}

// SetInvalidator sets the component notified after each mutation.
func (r *Registry) SetInvalidator(inv Invalidator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.invalidator = inv
}

// Dimensions returns the registry's dimension set.
func (r *Registry) Dimensions() scope.Dimensions {
	return r.dims
}

// validate checks the action, handler and scope keys of a registration.
func (r *Registry) validate(action string, h handler.Handler, s scope.Scope) error {
	if action == "" {
		return ErrInvalidAction
	}
	if h == nil {
		return ErrNilHandler
	}
	if name, ok := r.dims.Unknown(s); ok {
		return &InvalidDimensionError{Dimension: name, Available: r.dims.Names()}
	}
	return nil
}

// Register stores h for action at the path described by s. Dimensions missing
// from s take the unset branch. An existing handler at the same action and
// path is replaced.
func (r *Registry) Register(action string, h handler.Handler, s scope.Scope) error {
	if err := r.validate(action, h, s); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	n := r.root
	for _, name := range r.dims.Names() {
		n = n.getOrCreate(s.Value(name))
	}
	if n.handlers == nil {
		n.handlers = make(map[string]handler.Handler)
	}
	if _, exists := n.handlers[action]; !exists {
		r.count++
	}
	n.handlers[action] = h

	r.invalidateLocked()
	return nil
}

// RegisterGlobal stores h for action in the global table, replacing any
// existing global handler for it.
func (r *Registry) RegisterGlobal(action string, h handler.Handler) error {
	if err := r.validate(action, h, nil); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.globals[action]; !exists {
		r.count++
	}
	r.globals[action] = h

	r.invalidateLocked()
	return nil
}

// Unregister removes the handler registered for action at exactly the path
// described by s, pruning nodes left empty. It reports whether a handler was
// removed.
func (r *Registry) Unregister(action string, s scope.Scope) (bool, error) {
	if name, ok := r.dims.Unknown(s); ok {
		return false, &InvalidDimensionError{Dimension: name, Available: r.dims.Names()}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	names := r.dims.Names()
	path := make([]*node, 0, len(names)+1)
	n := r.root
	path = append(path, n)
	for _, name := range names {
		n = n.child(s.Value(name))
		if n == nil {
			return false, nil
		}
		path = append(path, n)
	}
	if _, ok := n.handlers[action]; !ok {
		return false, nil
	}
	delete(n.handlers, action)
	r.count--

	for i := len(names); i > 0 && path[i].empty(); i-- {
		path[i-1].remove(s.Value(names[i-1]))
	}

	r.invalidateLocked()
	return true, nil
}

// UnregisterGlobal removes the global handler for action.
func (r *Registry) UnregisterGlobal(action string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.globals[action]; !ok {
		return false
	}
	delete(r.globals, action)
	r.count--

	r.invalidateLocked()
	return true
}

// Global returns the global handler for action.
func (r *Registry) Global(action string) (handler.Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.globals[action]
	return h, ok
}

// Routes returns every registration. Globals come first; each group is
// ordered by action, then by scope values in dimension order.
func (r *Registry) Routes() []Route {
	r.mu.RLock()
	defer r.mu.RUnlock()

	routes := make([]Route, 0, r.count)
	for action, h := range r.globals {
		routes = append(routes, Route{
			Action:  action,
			Scope:   scope.Normalize(r.dims, nil),
			Global:  true,
			Handler: h,
		})
	}

	names := r.dims.Names()
	values := make([]string, len(names))
	var walk func(n *node, depth int)
	walk = func(n *node, depth int) {
		if depth == len(names) {
			for action, h := range n.handlers {
				s := make(scope.Scope, len(names))
				for i, name := range names {
					s[name] = values[i]
				}
				routes = append(routes, Route{Action: action, Scope: s, Handler: h})
			}
			return
		}
		if n.unset != nil {
			values[depth] = scope.Unset
			walk(n.unset, depth+1)
		}
		for v, c := range n.children {
			values[depth] = v
			walk(c, depth+1)
		}
	}
	walk(r.root, 0)

	sort.SliceStable(routes, func(i, j int) bool {
		a, b := routes[i], routes[j]
		if a.Global != b.Global {
			return a.Global
		}
		if a.Action != b.Action {
			return a.Action < b.Action
		}
		for _, name := range names {
			if a.Scope[name] != b.Scope[name] {
				return a.Scope[name] < b.Scope[name]
			}
		}
		return false
	})
	return routes
}

// Count returns the number of registrations, globals included.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.count
}

// Clear removes every registration.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.root = &node{}
	r.globals = make(map[string]handler.Handler)
	r.count = 0

	r.invalidateLocked()
}

func (r *Registry) invalidateLocked() {
	if r.invalidator != nil {
		r.invalidator.Invalidate()
	}
}
