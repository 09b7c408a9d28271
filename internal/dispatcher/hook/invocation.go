package hook

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dshills/actionroute/internal/dispatcher/handler"
	"github.com/dshills/actionroute/internal/dispatcher/scope"
)

// Invocation describes one dispatch as seen by hooks.
type Invocation struct {
	// ID uniquely identifies this dispatch.
	ID string

	// Action is the dispatched action name.
	Action string

	// Scope is the scope extracted from the dispatch context.
	Scope scope.Scope

	// Params are the parameters the handler will receive.
	Params handler.Params

	// Handler is the resolved handler.
	Handler handler.Handler

	// Started is when the dispatch began.
	Started time.Time

	mu   sync.Mutex
	data map[string]any
}

// NewInvocation creates an invocation with a fresh ID.
func NewInvocation(action string, s scope.Scope, params handler.Params, h handler.Handler) *Invocation {
	return &Invocation{
		ID:      uuid.New().String(),
		Action:  action,
		Scope:   s,
		Params:  params,
		Handler: h,
		Started: time.Now(),
	}
}

// SetData stores hook-private data on the invocation.
func (inv *Invocation) SetData(key string, value any) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	if inv.data == nil {
		inv.data = make(map[string]any)
	}
	inv.data[key] = value
}

// GetData retrieves hook-private data.
func (inv *Invocation) GetData(key string) (any, bool) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	v, ok := inv.data[key]
	return v, ok
}
