package dispatcher

import (
	"github.com/dshills/actionroute/internal/dispatcher/hook"
)

// RegisterHook installs h for every dispatch. A hook with the same name is
// replaced. Hooks implementing neither dispatch phase are ignored.
func (d *Dispatcher) RegisterHook(h hook.Hook) {
	d.hooks.Add(h, hook.Match{})
}

// RegisterScopedHook installs h for the dispatches m selects. The dimensions
// named in m.Scope must be declared.
func (d *Dispatcher) RegisterScopedHook(h hook.Hook, m hook.Match) error {
	if name, ok := d.dims.Unknown(m.Scope); ok {
		return &InvalidDimensionError{Dimension: name, Available: d.dims.Names()}
	}
	d.hooks.Add(h, m)
	return nil
}

// UnregisterHook removes the hook with the given name.
func (d *Dispatcher) UnregisterHook(name string) bool {
	return d.hooks.Remove(name)
}

// Hooks returns the dispatcher's hook chain.
func (d *Dispatcher) Hooks() *hook.Chain {
	return d.hooks
}
