package script

import (
	"fmt"
	"reflect"
	"strconv"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/actionroute/internal/dispatcher/execctx"
	"github.com/dshills/actionroute/internal/dispatcher/handler"
)

// paramsTable converts dispatch parameters to a Lua table. The dispatch
// context is converted only when it is a map or a JSON context; other
// context values are omitted.
func paramsTable(L *lua.LState, params handler.Params) *lua.LTable {
	t := L.NewTable()
	for k, v := range params {
		if k == handler.ContextKey {
			if lv, ok := contextValue(L, v); ok {
				t.RawSetString(k, lv)
			}
			continue
		}
		t.RawSetString(k, toLua(L, v))
	}
	return t
}

func contextValue(L *lua.LState, ctx any) (lua.LValue, bool) {
	switch c := ctx.(type) {
	case map[string]any, map[string]string, execctx.Map:
		return toLua(L, c), true
	case execctx.JSON:
		return toLua(L, c.Value()), true
	default:
		return lua.LNil, false
	}
}

// toLua converts a Go value to a Lua value. Values with no Lua counterpart
// become userdata.
func toLua(L *lua.LState, v any) lua.LValue {
	switch val := v.(type) {
	case nil:
		return lua.LNil
	case lua.LValue:
		return val
	case bool:
		return lua.LBool(val)
	case string:
		return lua.LString(val)
	case []byte:
		return lua.LString(val)
	case int:
		return lua.LNumber(val)
	case int64:
		return lua.LNumber(val)
	case float64:
		return lua.LNumber(val)
	case []any:
		t := L.NewTable()
		for i, item := range val {
			t.RawSetInt(i+1, toLua(L, item))
		}
		return t
	case map[string]any:
		t := L.NewTable()
		for k, item := range val {
			t.RawSetString(k, toLua(L, item))
		}
		return t
	case execctx.Map:
		t := L.NewTable()
		for k, item := range val {
			t.RawSetString(k, lua.LString(item))
		}
		return t
	case map[string]string:
		t := L.NewTable()
		for k, item := range val {
			t.RawSetString(k, lua.LString(item))
		}
		return t
	}
	return reflectToLua(L, v)
}

func reflectToLua(L *lua.LState, v any) lua.LValue {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return lua.LNumber(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return lua.LNumber(rv.Uint())
	case reflect.Float32, reflect.Float64:
		return lua.LNumber(rv.Float())
	case reflect.String:
		return lua.LString(rv.String())
	case reflect.Pointer:
		if rv.IsNil() {
			return lua.LNil
		}
	case reflect.Slice, reflect.Array:
		t := L.NewTable()
		for i := 0; i < rv.Len(); i++ {
			t.RawSetInt(i+1, toLua(L, rv.Index(i).Interface()))
		}
		return t
	case reflect.Map:
		t := L.NewTable()
		iter := rv.MapRange()
		for iter.Next() {
			t.RawSet(toLua(L, iter.Key().Interface()), toLua(L, iter.Value().Interface()))
		}
		return t
	}
	ud := L.NewUserData()
	ud.Value = v
	return ud
}

// toGo converts a Lua value to a Go value. Integral numbers become int64,
// array-like tables []any and other tables map[string]any.
func toGo(lv lua.LValue) any {
	return toGoVisited(lv, make(map[*lua.LTable]bool))
}

func toGoVisited(lv lua.LValue, visited map[*lua.LTable]bool) any {
	switch v := lv.(type) {
	case lua.LBool:
		return bool(v)
	case lua.LNumber:
		f := float64(v)
		if f == float64(int64(f)) {
			return int64(f)
		}
		return f
	case lua.LString:
		return string(v)
	case *lua.LTable:
		if visited[v] {
			return nil
		}
		visited[v] = true
		defer delete(visited, v)
		return tableToGo(v, visited)
	case *lua.LUserData:
		return v.Value
	default:
		return nil
	}
}

func tableToGo(t *lua.LTable, visited map[*lua.LTable]bool) any {
	n := t.Len()
	count := 0
	t.ForEach(func(_, _ lua.LValue) { count++ })

	if n > 0 && n == count {
		arr := make([]any, n)
		for i := 1; i <= n; i++ {
			arr[i-1] = toGoVisited(t.RawGetInt(i), visited)
		}
		return arr
	}

	m := make(map[string]any, count)
	t.ForEach(func(k, v lua.LValue) {
		m[tableKey(k)] = toGoVisited(v, visited)
	})
	return m
}

func tableKey(k lua.LValue) string {
	switch kv := k.(type) {
	case lua.LString:
		return string(kv)
	case lua.LNumber:
		f := float64(kv)
		if f == float64(int64(f)) {
			return strconv.FormatInt(int64(f), 10)
		}
		return strconv.FormatFloat(f, 'g', -1, 64)
	default:
		return fmt.Sprint(k)
	}
}
