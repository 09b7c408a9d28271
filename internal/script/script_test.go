package script_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/dshills/actionroute/internal/dispatcher"
	"github.com/dshills/actionroute/internal/dispatcher/execctx"
	"github.com/dshills/actionroute/internal/dispatcher/handler"
	"github.com/dshills/actionroute/internal/dispatcher/scope"
	"github.com/dshills/actionroute/internal/script"
)

const routesLua = `
route.register("create_user", {role = "admin"}, function(params)
  return "admin creating " .. params.username
end)
route.register("create_user", {}, function(params)
  return "guest creating " .. params.username
end)
route.global("ping", function(params) return "pong" end)
`

func newDispatcher(t *testing.T) *dispatcher.Dispatcher {
	t.Helper()
	return dispatcher.New(dispatcher.DefaultConfig().WithDimensions("role", "environment"))
}

func TestLoadStringRegistersRoutes(t *testing.T) {
	d := newDispatcher(t)
	sc, err := script.LoadString("routes.lua", routesLua, d)
	if err != nil {
		t.Fatalf("LoadString() error = %v", err)
	}
	defer sc.Close()

	if sc.Routes() != 3 || d.Count() != 3 {
		t.Fatalf("Routes() = %d, Count() = %d; want 3, 3", sc.Routes(), d.Count())
	}

	tests := []struct {
		ctx    any
		action string
		want   any
	}{
		{ctx: execctx.Map{"role": "admin"}, action: "create_user", want: "admin creating alice"},
		{ctx: execctx.Map{"role": "viewer"}, action: "create_user", want: "guest creating alice"},
		{ctx: nil, action: "ping", want: "pong"},
	}
	for _, tt := range tests {
		got, err := d.Dispatch(tt.ctx, tt.action, handler.Params{"username": "alice"})
		if err != nil {
			t.Fatalf("Dispatch(%s) error = %v", tt.action, err)
		}
		if got != tt.want {
			t.Errorf("Dispatch(%s, %v) = %v, want %v", tt.action, tt.ctx, got, tt.want)
		}
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "routes.lua")
	if err := os.WriteFile(path, []byte(routesLua), 0o644); err != nil {
		t.Fatal(err)
	}

	d := newDispatcher(t)
	sc, err := script.LoadFile(path, d)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	defer sc.Close()

	if sc.Name() != path {
		t.Errorf("Name() = %q, want %q", sc.Name(), path)
	}
	h, err := d.Handler("ping", nil)
	if err != nil {
		t.Fatalf("Handler(ping) error = %v", err)
	}
	if desc := handler.Describe(h); desc != "lua:"+path {
		t.Errorf("Describe() = %q", desc)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		code string
		want string
	}{
		{name: "syntax", code: `route.register(`, want: "routes.lua"},
		{name: "unknown dimension", code: `route.register("a", {zone = "eu"}, function() end)`, want: `invalid dimension "zone"`},
		{name: "empty action", code: `route.global("", function() end)`, want: "action name must not be empty"},
		{name: "nested scope value", code: `route.register("a", {role = {}}, function() end)`, want: "must be a string"},
		{name: "runtime error", code: `error("boom")`, want: "boom"},
		{name: "missing function", code: `route.global("a")`, want: "function expected"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newDispatcher(t)
			_, err := script.LoadString("routes.lua", tt.code, d)
			if err == nil {
				t.Fatal("LoadString() succeeded, want error")
			}
			if !errors.Is(err, script.ErrLoad) {
				t.Errorf("error %v does not match ErrLoad", err)
			}
			var le *script.LoadError
			if !errors.As(err, &le) || le.Path != "routes.lua" {
				t.Errorf("error %v is not a LoadError naming the script", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not contain %q", err, tt.want)
			}
		})
	}
}

func TestFailedLoadRegistersNothing(t *testing.T) {
	d := newDispatcher(t)
	_, err := script.LoadString("partial.lua", `
route.global("first", function() return 1 end)
route.register("second", {zone = "x"}, function() return 2 end)
`, d)
	if err == nil {
		t.Fatal("LoadString() succeeded, want error")
	}
	if d.Count() != 0 {
		t.Errorf("Count() = %d, want 0", d.Count())
	}
}

func TestSandbox(t *testing.T) {
	tests := []struct {
		name string
		code string
	}{
		{name: "dofile", code: `dofile("/etc/passwd")`},
		{name: "loadfile", code: `loadfile("x.lua")`},
		{name: "load", code: `load("return 1")`},
		{name: "io", code: `io.open("x")`},
		{name: "os", code: `os.exit(1)`},
		{name: "require os", code: `require("os")`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := script.LoadString("sandbox.lua", tt.code, newDispatcher(t))
			if err == nil {
				t.Errorf("%s was allowed in a route script", tt.name)
			}
		})
	}
}

func TestRequireAllowedModules(t *testing.T) {
	d := newDispatcher(t)
	sc, err := script.LoadString("require.lua", `
local r = require("route")
local s = require("string")
r.global("upper", function(p) return s.upper(p.word) end)
`, d)
	if err != nil {
		t.Fatalf("LoadString() error = %v", err)
	}
	defer sc.Close()

	got, err := d.Dispatch(nil, "upper", handler.Params{"word": "go"})
	if err != nil || got != "GO" {
		t.Errorf("Dispatch(upper) = %v, %v; want GO", got, err)
	}
}

func TestDimensions(t *testing.T) {
	d := newDispatcher(t)
	sc, err := script.LoadString("dims.lua", `
local names = route.dimensions()
route.global("dims", function() return names end)
`, d)
	if err != nil {
		t.Fatalf("LoadString() error = %v", err)
	}
	defer sc.Close()

	got, err := d.Dispatch(nil, "dims", nil)
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if diff := cmp.Diff([]any{"role", "environment"}, got); diff != "" {
		t.Errorf("dimensions mismatch (-want +got):\n%s", diff)
	}
}

func TestHandlerValues(t *testing.T) {
	d := newDispatcher(t)
	sc, err := script.LoadString("values.lua", `
route.global("echo", function(p) return p end)
route.global("number", function() return 42 end)
route.global("float", function() return 1.5 end)
route.global("table", function() return {name = "x", tags = {"a", "b"}} end)
route.global("nothing", function() end)
route.global("role", function(p) return p.context_object.role end)
`, d)
	if err != nil {
		t.Fatalf("LoadString() error = %v", err)
	}
	defer sc.Close()

	tests := []struct {
		action string
		ctx    any
		params handler.Params
		want   any
	}{
		{action: "number", want: int64(42)},
		{action: "float", want: 1.5},
		{action: "table", want: map[string]any{"name": "x", "tags": []any{"a", "b"}}},
		{action: "nothing", want: nil},
		{action: "role", ctx: map[string]any{"role": "admin"}, want: "admin"},
		{action: "role", ctx: execctx.JSON(`{"role":"ops"}`), want: "ops"},
		{
			action: "echo",
			ctx:    struct{ Role string }{Role: "hidden"},
			params: handler.Params{"n": 3, "ok": true},
			want:   map[string]any{"n": int64(3), "ok": true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.action, func(t *testing.T) {
			got, err := d.Dispatch(tt.ctx, tt.action, tt.params)
			if err != nil {
				t.Fatalf("Dispatch() error = %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("result mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestHandlerErrors(t *testing.T) {
	d := newDispatcher(t)
	sc, err := script.LoadString("errors.lua", `
route.global("soft", function() return nil, "not allowed" end)
route.global("hard", function() error("exploded") end)
`, d)
	if err != nil {
		t.Fatalf("LoadString() error = %v", err)
	}
	defer sc.Close()

	for action, want := range map[string]string{"soft": "not allowed", "hard": "exploded"} {
		_, err := d.Dispatch(nil, action, nil)
		if !errors.Is(err, script.ErrHandlerFailed) {
			t.Fatalf("Dispatch(%s) error = %v, want ErrHandlerFailed", action, err)
		}
		var he *script.HandlerError
		if !errors.As(err, &he) || he.Action != action {
			t.Fatalf("Dispatch(%s) error = %v, want HandlerError for the action", action, err)
		}
		if !strings.Contains(he.Message, want) {
			t.Errorf("Message = %q, want it to contain %q", he.Message, want)
		}
	}
}

func TestRegisterAfterLoadFails(t *testing.T) {
	d := newDispatcher(t)
	sc, err := script.LoadString("late.lua", `
route.global("late", function()
  route.global("other", function() end)
end)
`, d)
	if err != nil {
		t.Fatalf("LoadString() error = %v", err)
	}
	defer sc.Close()

	if _, err := d.Dispatch(nil, "late", nil); !errors.Is(err, script.ErrHandlerFailed) {
		t.Errorf("Dispatch(late) error = %v, want ErrHandlerFailed", err)
	}
	if _, err := d.Handler("other", nil); !errors.Is(err, dispatcher.ErrHandlerNotFound) {
		t.Errorf("late registration leaked: %v", err)
	}
}

func TestClosedScript(t *testing.T) {
	d := newDispatcher(t)
	sc, err := script.LoadString("closed.lua", `route.global("ping", function() return "pong" end)`, d)
	if err != nil {
		t.Fatalf("LoadString() error = %v", err)
	}
	sc.Close()
	sc.Close()

	if _, err := d.Dispatch(nil, "ping", nil); !errors.Is(err, script.ErrStateClosed) {
		t.Errorf("Dispatch() error = %v, want ErrStateClosed", err)
	}
}

func TestTimeout(t *testing.T) {
	d := newDispatcher(t)
	_, err := script.LoadString("loop.lua", `while true do end`, d, script.WithTimeout(50*time.Millisecond))
	if err == nil {
		t.Fatal("LoadString() succeeded for an endless loop")
	}
}

func TestConcurrentHandlers(t *testing.T) {
	d := newDispatcher(t)
	sc, err := script.LoadString("counter.lua", `
local n = 0
route.global("inc", function() n = n + 1; return n end)
`, d)
	if err != nil {
		t.Fatalf("LoadString() error = %v", err)
	}
	defer sc.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				if _, err := d.Dispatch(nil, "inc", nil); err != nil {
					t.Errorf("Dispatch() error = %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	got, err := d.Dispatch(nil, "inc", nil)
	if err != nil || got != int64(401) {
		t.Errorf("final count = %v, %v; want 401", got, err)
	}
}

func TestScopeValuesAreStringified(t *testing.T) {
	d := dispatcher.New(dispatcher.DefaultConfig().WithDimensions("version"))
	sc, err := script.LoadString("version.lua", `
route.register("migrate", {version = 2}, function() return "v2" end)
`, d)
	if err != nil {
		t.Fatalf("LoadString() error = %v", err)
	}
	defer sc.Close()

	h, err := d.Handler("migrate", scope.Scope{"version": "2"})
	if err != nil {
		t.Fatalf("Handler() error = %v", err)
	}
	if got, _ := h.Handle(nil); got != "v2" {
		t.Errorf("Handle() = %v, want v2", got)
	}
}
