// Package execctx extracts routing dimensions from dispatch contexts.
//
// A dispatch context is any value the caller hands to the dispatcher. Its
// dimension values are discovered in this order:
//
//  1. Values implementing DimensionSource answer directly.
//  2. map[string]string and map[string]any contexts are read by key.
//  3. JSON contexts are read by top-level key.
//  4. Structs, and pointers to structs, are read by reflection.
//
// Dimensions a context does not expose are omitted from the extracted scope,
// so they resolve through the unset branch. Non-string values that are false,
// zero or empty count as not exposed; the empty string is unset by definition.
package execctx

import (
	"fmt"

	"github.com/dshills/actionroute/internal/dispatcher/scope"
)

// DimensionSource is implemented by contexts that expose dimension values
// themselves.
type DimensionSource interface {
	// DimensionValue returns the value of the named dimension and whether the
	// context exposes it.
	DimensionValue(name string) (string, bool)
}

// SourceFunc adapts a function to DimensionSource.
type SourceFunc func(name string) (string, bool)

// DimensionValue implements DimensionSource.
func (f SourceFunc) DimensionValue(name string) (string, bool) {
	return f(name)
}

// Map is a DimensionSource over a fixed set of values.
type Map map[string]string

// DimensionValue implements DimensionSource.
func (m Map) DimensionValue(name string) (string, bool) {
	v, ok := m[name]
	return v, ok
}

// Extract builds the scope of ctx over dims.
func Extract(ctx any, dims scope.Dimensions) scope.Scope {
	out := make(scope.Scope, dims.Len())
	if ctx == nil || dims.Len() == 0 {
		return out
	}

	lookup := sourceFor(ctx)
	if lookup == nil {
		return out
	}
	for _, name := range dims.Names() {
		if v, ok := lookup(name); ok {
			out[name] = v
		}
	}
	return out
}

// sourceFor returns the lookup function for ctx, or nil when ctx exposes
// nothing.
func sourceFor(ctx any) func(string) (string, bool) {
	switch c := ctx.(type) {
	case DimensionSource:
		return c.DimensionValue
	case map[string]string:
		return func(name string) (string, bool) {
			v, ok := c[name]
			return v, ok
		}
	case map[string]any:
		return func(name string) (string, bool) {
			v, ok := c[name]
			if !ok {
				return "", false
			}
			return format(v)
		}
	default:
		return structSource(ctx)
	}
}

// format renders a dimension value. Nil, false, zero and empty values of
// non-string kinds are reported as not exposed.
func format(v any) (string, bool) {
	switch x := v.(type) {
	case nil:
		return "", false
	case string:
		return x, true
	case bool:
		return "true", x
	}
	if isEmpty(v) {
		return "", false
	}
	return fmt.Sprint(v), true
}
