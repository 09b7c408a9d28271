// Package scope defines routing dimensions and the scope assignments used to
// register and resolve handlers.
//
// A Scope maps a subset of the declared dimension names to values. Dimensions
// missing from a Scope, or present with the empty value, are unset: during
// resolution the unset branch is the fallback taken when no value-specific
// branch exists.
package scope

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Unset is the value representing "no specific value supplied".
const Unset = ""

// Scope is a partial assignment of dimension names to values.
type Scope map[string]string

// Value returns the value assigned to name, or Unset.
func (s Scope) Value(name string) string {
	if s == nil {
		return Unset
	}
	return s[name]
}

// IsSet reports whether name carries a non-empty value.
func (s Scope) IsSet(name string) bool {
	return s.Value(name) != Unset
}

// Clone returns a copy of the scope. A nil scope clones to an empty one.
func (s Scope) Clone() Scope {
	out := make(Scope, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Keys returns the assigned names in sorted order.
func (s Scope) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// String renders the scope with sorted keys, e.g. "{environment=prod, role=admin}".
func (s Scope) String() string {
	var b strings.Builder
	b.WriteByte('{')
	for i, k := range s.Keys() {
		if i > 0 {
			b.WriteString(", ")
		}
		v := s[k]
		if v == Unset {
			v = "<unset>"
		}
		fmt.Fprintf(&b, "%s=%s", k, v)
	}
	b.WriteByte('}')
	return b.String()
}

// Normalize returns a scope holding every declared dimension, with dimensions
// absent from s mapped to Unset. Keys outside dims are dropped.
func Normalize(dims Dimensions, s Scope) Scope {
	out := make(Scope, dims.Len())
	for _, name := range dims.names {
		out[name] = s.Value(name)
	}
	return out
}

// Key builds the canonical cache key for an action and scope.
// The key covers every declared dimension in sorted name order, so scopes that
// differ only in omitted-versus-unset or in map iteration order share a key.
func Key(action string, dims Dimensions, s Scope) string {
	var b strings.Builder
	b.WriteString(strconv.Quote(action))
	for _, name := range dims.sorted {
		b.WriteByte('|')
		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(strconv.Quote(s.Value(name)))
	}
	return b.String()
}
