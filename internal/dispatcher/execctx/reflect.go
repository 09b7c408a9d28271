package execctx

import (
	"reflect"
	"strings"
	"sync"
)

// TagName is the struct tag naming the dimension a field exposes.
// A tag of "-" hides the field.
const TagName = "route"

// fieldIndex maps lower-cased dimension names and exact tag names to field
// indexes for one struct type.
type fieldIndex struct {
	tagged map[string][]int
	named  map[string][]int
}

var fieldCache sync.Map // reflect.Type -> *fieldIndex

func indexFor(t reflect.Type) *fieldIndex {
	if idx, ok := fieldCache.Load(t); ok {
		return idx.(*fieldIndex)
	}

	idx := &fieldIndex{
		tagged: make(map[string][]int),
		named:  make(map[string][]int),
	}
	for _, f := range reflect.VisibleFields(t) {
		if !f.IsExported() || f.Anonymous {
			continue
		}
		tag, hasTag := f.Tag.Lookup(TagName)
		if tag == "-" {
			continue
		}
		if hasTag && tag != "" {
			idx.tagged[tag] = f.Index
			continue
		}
		key := strings.ToLower(f.Name)
		if _, dup := idx.named[key]; !dup {
			idx.named[key] = f.Index
		}
	}

	actual, _ := fieldCache.LoadOrStore(t, idx)
	return actual.(*fieldIndex)
}

// structSource exposes the fields of a struct or pointer to struct.
func structSource(ctx any) func(string) (string, bool) {
	v := reflect.ValueOf(ctx)
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil
	}

	idx := indexFor(v.Type())
	return func(name string) (string, bool) {
		path, ok := idx.tagged[name]
		if !ok {
			path, ok = idx.named[strings.ToLower(name)]
		}
		if !ok {
			return "", false
		}
		f, err := v.FieldByIndexErr(path)
		if err != nil {
			return "", false
		}
		for f.Kind() == reflect.Pointer || f.Kind() == reflect.Interface {
			if f.IsNil() {
				return "", false
			}
			f = f.Elem()
		}
		return format(f.Interface())
	}
}

// isEmpty reports whether v is a zero number, or an empty container.
func isEmpty(v any) bool {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Array, reflect.Chan:
		return rv.Len() == 0
	case reflect.Pointer, reflect.Interface:
		return rv.IsNil()
	case reflect.Struct:
		return false
	}
	return rv.IsZero()
}
