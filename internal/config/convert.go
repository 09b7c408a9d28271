package config

import (
	"fmt"
	"math"
	"time"
)

// applier converts loosely typed map values, collecting warnings for values
// of the wrong type instead of failing.
type applier struct {
	warnings []Warning
}

func (a *applier) warn(path string, v any, msg string) {
	a.warnings = append(a.warnings, Warning{Path: path, Value: v, Message: msg})
}

func (a *applier) section(m map[string]any, key string) (map[string]any, bool) {
	v, ok := m[key]
	if !ok {
		return nil, false
	}
	s, ok := v.(map[string]any)
	if !ok {
		a.warn(key, v, fmt.Sprintf("expected a table, got %T", v))
		return nil, false
	}
	return s, true
}

func (a *applier) bool(m map[string]any, path, key string, dst *bool) {
	v, ok := m[key]
	if !ok {
		return
	}
	b, ok := v.(bool)
	if !ok {
		a.warn(path, v, fmt.Sprintf("expected a boolean, got %T", v))
		return
	}
	*dst = b
}

func (a *applier) int(m map[string]any, path, key string, dst *int) {
	v, ok := m[key]
	if !ok {
		return
	}
	switch n := v.(type) {
	case int64:
		*dst = int(n)
	case int:
		*dst = n
	case float64:
		if n != math.Trunc(n) {
			a.warn(path, v, "expected an integer")
			return
		}
		*dst = int(n)
	default:
		a.warn(path, v, fmt.Sprintf("expected an integer, got %T", v))
	}
}

func (a *applier) string(m map[string]any, path, key string, dst *string) {
	v, ok := m[key]
	if !ok {
		return
	}
	s, ok := v.(string)
	if !ok {
		a.warn(path, v, fmt.Sprintf("expected a string, got %T", v))
		return
	}
	*dst = s
}

// strings accepts a single string or a list of strings; non-string list
// entries are skipped.
func (a *applier) strings(m map[string]any, path, key string, dst *[]string) {
	v, ok := m[key]
	if !ok {
		return
	}
	switch list := v.(type) {
	case string:
		*dst = []string{list}
	case []any:
		out := make([]string, 0, len(list))
		for i, item := range list {
			s, ok := item.(string)
			if !ok {
				a.warn(fmt.Sprintf("%s[%d]", path, i), item, fmt.Sprintf("expected a string, got %T", item))
				continue
			}
			out = append(out, s)
		}
		*dst = out
	default:
		a.warn(path, v, fmt.Sprintf("expected a list of strings, got %T", v))
	}
}

// duration accepts a Go duration string or a number of milliseconds.
func (a *applier) duration(m map[string]any, path, key string, dst *time.Duration) {
	v, ok := m[key]
	if !ok {
		return
	}
	switch d := v.(type) {
	case string:
		parsed, err := time.ParseDuration(d)
		if err != nil {
			a.warn(path, v, err.Error())
			return
		}
		*dst = parsed
	case int64:
		*dst = time.Duration(d) * time.Millisecond
	case float64:
		*dst = time.Duration(d * float64(time.Millisecond))
	default:
		a.warn(path, v, fmt.Sprintf("expected a duration, got %T", v))
	}
}
