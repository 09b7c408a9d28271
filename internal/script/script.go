package script

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-logr/logr"
	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/actionroute/internal/dispatcher/handler"
	"github.com/dshills/actionroute/internal/dispatcher/scope"
)

// Registrar receives the routes a script declares. *dispatcher.Dispatcher
// satisfies it.
type Registrar interface {
	Register(action string, h handler.Handler, s scope.Scope) error
	RegisterGlobal(action string, h handler.Handler) error
	Dimensions() scope.Dimensions
}

// Option configures script loading.
type Option func(*options)

type options struct {
	log     logr.Logger
	timeout time.Duration
}

// WithLogger sets the logger used for load messages and route.log.
func WithLogger(log logr.Logger) Option {
	return func(o *options) {
		o.log = log
	}
}

// WithTimeout bounds each load and handler call. Zero disables the deadline.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		o.timeout = d
	}
}

// Script is a loaded route script. Its handlers stay usable until Close.
type Script struct {
	name   string
	state  *State
	routes []pending
	loaded bool
	log    logr.Logger
}

// pending is a registration collected while the script runs. Registrations
// are applied only after the whole script succeeds.
type pending struct {
	action string
	scope  scope.Scope
	global bool
	h      *luaHandler
}

// LoadFile runs the script at path and registers its routes with r.
func LoadFile(path string, r Registrar, opts ...Option) (*Script, error) {
	return load(path, r, func(st *State) error { return st.DoFile(path) }, opts)
}

// LoadString runs code under name and registers its routes with r.
func LoadString(name, code string, r Registrar, opts ...Option) (*Script, error) {
	return load(name, r, func(st *State) error { return st.DoString(code) }, opts)
}

func load(name string, r Registrar, run func(*State) error, opts []Option) (*Script, error) {
	o := options{log: logr.Discard(), timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(&o)
	}

	sc := &Script{
		name:  name,
		state: NewState(o.timeout),
		log:   o.log.WithValues("script", filepath.Base(name)),
	}
	sc.installModule(r.Dimensions())

	if err := run(sc.state); err != nil {
		sc.Close()
		return nil, &LoadError{Path: name, Err: luaMessage(err)}
	}
	sc.state.mu.Lock()
	sc.loaded = true
	sc.state.mu.Unlock()

	for _, p := range sc.routes {
		var err error
		if p.global {
			err = r.RegisterGlobal(p.action, p.h)
		} else {
			err = r.Register(p.action, p.h, p.scope)
		}
		if err != nil {
			sc.Close()
			return nil, &LoadError{Path: name, Err: fmt.Errorf("register %q: %w", p.action, err)}
		}
	}

	sc.log.V(1).Info("loaded route script", "routes", len(sc.routes))
	return sc, nil
}

// Name returns the path or name the script was loaded from.
func (sc *Script) Name() string {
	return sc.name
}

// Routes returns the number of routes the script registered.
func (sc *Script) Routes() int {
	return len(sc.routes)
}

// Close releases the script's Lua state. Its handlers fail afterwards.
func (sc *Script) Close() {
	sc.state.Close()
}

// installModule exposes the route module as a global.
func (sc *Script) installModule(dims scope.Dimensions) {
	L := sc.state.L
	mod := L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"register": func(L *lua.LState) int {
			action := checkAction(L, 1)
			s := checkScope(L, 2, dims)
			fn := L.CheckFunction(3)
			sc.add(L, pending{action: action, scope: s, h: sc.newHandler(action, fn)})
			return 0
		},
		"global": func(L *lua.LState) int {
			action := checkAction(L, 1)
			fn := L.CheckFunction(2)
			sc.add(L, pending{action: action, global: true, h: sc.newHandler(action, fn)})
			return 0
		},
		"dimensions": func(L *lua.LState) int {
			t := L.NewTable()
			for i, name := range dims.Names() {
				t.RawSetInt(i+1, lua.LString(name))
			}
			L.Push(t)
			return 1
		},
		"log": func(L *lua.LState) int {
			parts := make([]string, 0, L.GetTop())
			for i := 1; i <= L.GetTop(); i++ {
				parts = append(parts, L.Get(i).String())
			}
			sc.log.Info(strings.Join(parts, " "))
			return 0
		},
	})
	L.SetGlobal(ModuleName, mod)
}

func (sc *Script) add(L *lua.LState, p pending) {
	if sc.loaded {
		L.RaiseError("routes can only be registered while the script loads")
		return
	}
	sc.routes = append(sc.routes, p)
	sc.log.V(2).Info("script route", "action", p.action, "scope", p.scope.String(), "global", p.global)
}

func checkAction(L *lua.LState, n int) string {
	action := L.CheckString(n)
	if action == "" {
		L.ArgError(n, "action name must not be empty")
	}
	return action
}

// checkScope reads a {dimension = value} table. Values are stringified;
// undeclared dimension names raise a Lua error.
func checkScope(L *lua.LState, n int, dims scope.Dimensions) scope.Scope {
	s := scope.Scope{}
	if L.Get(n) == lua.LNil {
		return s
	}
	t := L.CheckTable(n)
	t.ForEach(func(k, v lua.LValue) {
		name, ok := k.(lua.LString)
		if !ok {
			L.ArgError(n, fmt.Sprintf("scope keys must be strings, got %s", k.Type()))
		}
		switch v.(type) {
		case lua.LString, lua.LNumber, lua.LBool:
			s[string(name)] = v.String()
		default:
			L.ArgError(n, fmt.Sprintf("scope value for %q must be a string, got %s", string(name), v.Type()))
		}
	})
	if name, ok := dims.Unknown(s); ok {
		L.ArgError(n, fmt.Sprintf("invalid dimension %q (available: %v)", name, dims.Names()))
	}
	return s
}

// luaMessage strips the Lua stack trace from err.
func luaMessage(err error) error {
	var apiErr *lua.ApiError
	if errors.As(err, &apiErr) && apiErr.Object != nil {
		return errors.New(apiErr.Object.String())
	}
	return err
}
