package scope

import (
	"fmt"
	"sort"
	"strings"
)

// Dimensions is an ordered set of unique dimension names. The order defines
// the depth at which each dimension is matched during resolution.
type Dimensions struct {
	names  []string
	sorted []string
	index  map[string]int
}

// Warning describes input that was dropped while building Dimensions.
type Warning struct {
	// Index is the position of the offending entry, or -1 for the whole input.
	Index int
	// Value is the offending input.
	Value any
	// Reason explains why it was dropped.
	Reason string
}

// String implements fmt.Stringer.
func (w Warning) String() string {
	if w.Index < 0 {
		return fmt.Sprintf("dimensions %v: %s", w.Value, w.Reason)
	}
	return fmt.Sprintf("dimension %d (%v): %s", w.Index, w.Value, w.Reason)
}

// NewDimensions builds a dimension set from names. Empty and duplicate names
// are dropped and reported as warnings; construction never fails.
func NewDimensions(names ...string) (Dimensions, []Warning) {
	d := Dimensions{index: make(map[string]int, len(names))}
	var warnings []Warning

	for i, name := range names {
		name = strings.TrimSpace(name)
		switch {
		case name == "":
			warnings = append(warnings, Warning{Index: i, Value: names[i], Reason: "empty name"})
			continue
		case d.Contains(name):
			warnings = append(warnings, Warning{Index: i, Value: name, Reason: "duplicate name"})
			continue
		}
		d.index[name] = len(d.names)
		d.names = append(d.names, name)
	}

	d.sorted = make([]string, len(d.names))
	copy(d.sorted, d.names)
	sort.Strings(d.sorted)

	return d, warnings
}

// MustDimensions builds a dimension set and panics on any warning.
// Intended for tests and static declarations.
func MustDimensions(names ...string) Dimensions {
	d, warnings := NewDimensions(names...)
	if len(warnings) > 0 {
		panic(fmt.Sprintf("scope: invalid dimensions: %v", warnings))
	}
	return d
}

// FromValue builds a dimension set from a loosely typed value, such as a
// decoded configuration entry. A value that is not a list yields an empty set
// with a warning; non-string list entries are dropped with a warning.
func FromValue(v any) (Dimensions, []Warning) {
	switch list := v.(type) {
	case nil:
		return NewDimensions()
	case Dimensions:
		return list, nil
	case []string:
		return NewDimensions(list...)
	case []any:
		var warnings []Warning
		names := make([]string, 0, len(list))
		for i, item := range list {
			s, ok := item.(string)
			if !ok {
				warnings = append(warnings, Warning{Index: i, Value: item, Reason: fmt.Sprintf("expected string, got %T", item)})
				continue
			}
			names = append(names, s)
		}
		d, more := NewDimensions(names...)
		return d, append(warnings, more...)
	default:
		d, _ := NewDimensions()
		return d, []Warning{{Index: -1, Value: v, Reason: fmt.Sprintf("expected a list, got %T; using no dimensions", v)}}
	}
}

// Names returns a copy of the dimension names in declared order.
func (d Dimensions) Names() []string {
	out := make([]string, len(d.names))
	copy(out, d.names)
	return out
}

// Len returns the number of dimensions.
func (d Dimensions) Len() int {
	return len(d.names)
}

// At returns the name of the dimension at depth i.
func (d Dimensions) At(i int) string {
	return d.names[i]
}

// Contains reports whether name is a declared dimension.
func (d Dimensions) Contains(name string) bool {
	_, ok := d.index[name]
	return ok
}

// Unknown returns the first key of s that is not a declared dimension, in
// sorted key order so the reported name is deterministic.
func (d Dimensions) Unknown(s Scope) (string, bool) {
	for _, k := range s.Keys() {
		if !d.Contains(k) {
			return k, true
		}
	}
	return "", false
}

// String implements fmt.Stringer.
func (d Dimensions) String() string {
	return "[" + strings.Join(d.names, ", ") + "]"
}
