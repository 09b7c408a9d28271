package script

import (
	lua "github.com/yuin/gopher-lua"
)

// ModuleName is the global and require name of the routing module.
const ModuleName = "route"

// unsafeGlobals can load code from disk or strings at runtime.
var unsafeGlobals = []string{
	"dofile",
	"loadfile",
	"load",
	"loadstring",
	"module",
}

// requirable lists the names require resolves. Everything else raises.
var requirable = map[string]bool{
	"string":   true,
	"table":    true,
	"math":     true,
	ModuleName: true,
}

// installSandbox removes code-loading globals and replaces require with a
// lookup restricted to already-opened modules.
func installSandbox(L *lua.LState) {
	for _, name := range unsafeGlobals {
		L.SetGlobal(name, lua.LNil)
	}

	L.SetGlobal("require", L.NewFunction(func(L *lua.LState) int {
		name := L.CheckString(1)
		if !requirable[name] {
			L.RaiseError("module %q is not available in route scripts", name)
			return 0
		}
		mod := L.GetGlobal(name)
		if mod == lua.LNil {
			L.RaiseError("module %q is not loaded", name)
			return 0
		}
		L.Push(mod)
		return 1
	}))
}
