package dispatcher

import (
	"github.com/dshills/actionroute/internal/dispatcher/handler"
	"github.com/dshills/actionroute/internal/dispatcher/scope"
)

// Router resolves an action and scope to the most specific handler in a
// Registry.
//
// Global handlers win outright. Otherwise the dimensions are walked in order,
// taking the branch for the supplied value when it exists and the unset
// branch when it does not. The walk follows a single path: once a concrete
// branch is chosen, a miss below it is not retried under the unset sibling.
type Router struct {
	registry *Registry
}

// NewRouter creates a router over r.
func NewRouter(r *Registry) *Router {
	return &Router{registry: r}
}

// Route finds the handler for action under s.
func (rt *Router) Route(action string, s scope.Scope) (handler.Handler, bool) {
	r := rt.registry
	r.mu.RLock()
	defer r.mu.RUnlock()

	if h, ok := r.globals[action]; ok {
		return h, true
	}

	n := r.root
	depth := r.dims.Len()
	if depth == 0 {
		h, ok := n.handlers[action]
		return h, ok
	}

	for i := 0; i < depth-1; i++ {
		var next *node
		if v := s.Value(r.dims.At(i)); v != scope.Unset {
			next = n.children[v]
		}
		if next == nil {
			next = n.unset
		}
		if next == nil {
			return nil, false
		}
		n = next
	}

	if leaf := n.child(s.Value(r.dims.At(depth - 1))); leaf != nil {
		if h, ok := leaf.handlers[action]; ok {
			return h, true
		}
	}
	if n.unset != nil {
		if h, ok := n.unset.handlers[action]; ok {
			return h, true
		}
	}
	return nil, false
}
