package dispatcher_test

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/dshills/actionroute/internal/dispatcher"
	"github.com/dshills/actionroute/internal/dispatcher/handler"
	"github.com/dshills/actionroute/internal/dispatcher/hook"
	"github.com/dshills/actionroute/internal/dispatcher/scope"
)

type userContext struct {
	Role        string
	Environment string
}

var errBoom = errors.New("boom")

func newDispatcher(cache bool, dims ...string) *dispatcher.Dispatcher {
	config := dispatcher.DefaultConfig().WithDimensions(dims...)
	if cache {
		config = config.WithCache(0)
	}
	return dispatcher.New(config)
}

func TestNewWithDefaults(t *testing.T) {
	d := dispatcher.NewWithDefaults()

	if d.Dimensions().Len() != 0 {
		t.Errorf("expected no dimensions, got %v", d.Dimensions())
	}
	if d.CacheEnabled() {
		t.Error("cache should be disabled by default")
	}
	if _, ok := d.CacheInfo(); ok {
		t.Error("CacheInfo() should report false while disabled")
	}

	// Metrics should be nil by default
	if d.Metrics() != nil {
		t.Error("expected nil metrics by default")
	}
	if d.Hooks() == nil || d.Hooks().Len() != 0 {
		t.Error("expected an empty hook chain")
	}
}

func TestNewDropsMisconfiguredDimensions(t *testing.T) {
	d := dispatcher.New(dispatcher.DefaultConfig().WithDimensions("role", "", "role", "environment"))

	if diff := cmp.Diff([]string{"role", "environment"}, d.Dimensions().Names()); diff != "" {
		t.Errorf("dimensions mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"role", "environment"}, d.Config().Dimensions); diff != "" {
		t.Errorf("config dimensions mismatch (-want +got):\n%s", diff)
	}
}

func TestDispatchScenario(t *testing.T) {
	d := newDispatcher(false, "role", "environment")

	err := d.RegisterFunc("create_user", func(p handler.Params) (any, error) {
		return "Admin creating user: " + p.String("username"), nil
	}, scope.Scope{"role": "admin"})
	if err != nil {
		t.Fatalf("RegisterFunc() error = %v", err)
	}

	result, err := d.Dispatch(userContext{Role: "admin", Environment: "prod"}, "create_user", handler.Params{"username": "john"})
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if result != "Admin creating user: john" {
		t.Errorf("result = %v", result)
	}

	_, err = d.Dispatch(userContext{Role: "guest", Environment: "prod"}, "create_user", nil)
	var nf *dispatcher.HandlerNotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected HandlerNotFoundError, got %v", err)
	}
	if nf.Action != "create_user" {
		t.Errorf("Action = %q", nf.Action)
	}
	if diff := cmp.Diff(scope.Scope{"role": "guest", "environment": "prod"}, nf.Scope); diff != "" {
		t.Errorf("Scope mismatch (-want +got):\n%s", diff)
	}
}

func TestDispatchParams(t *testing.T) {
	d := newDispatcher(false, "role")

	var got handler.Params
	_ = d.RegisterGlobalFunc("inspect", func(p handler.Params) (any, error) {
		got = p
		return nil, nil
	})

	ctx := map[string]string{"role": "admin"}
	if _, err := d.Dispatch(ctx, "inspect", handler.Params{"username": "john"}); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if diff := cmp.Diff(handler.Params{handler.ContextKey: ctx, "username": "john"}, got); diff != "" {
		t.Errorf("params mismatch (-want +got):\n%s", diff)
	}

	// Explicit keys win over the context.
	_, _ = d.Dispatch(ctx, "inspect", handler.Params{handler.ContextKey: "override"})
	if got.Context() != "override" {
		t.Errorf("context_object = %v, want override", got.Context())
	}
}

func TestDispatchNoDimensions(t *testing.T) {
	d := newDispatcher(false)
	_ = d.RegisterFunc("ping", func(handler.Params) (any, error) { return "pong", nil }, nil)

	result, err := d.Dispatch(nil, "ping", nil)
	if err != nil || result != "pong" {
		t.Fatalf("Dispatch(ping) = %v, %v", result, err)
	}

	_, err = d.Dispatch(nil, "unknown", nil)
	var nf *dispatcher.HandlerNotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected HandlerNotFoundError, got %v", err)
	}
	if len(nf.Scope) != 0 {
		t.Errorf("expected empty scope, got %v", nf.Scope)
	}
	if !errors.Is(err, dispatcher.ErrHandlerNotFound) {
		t.Error("expected errors.Is(err, ErrHandlerNotFound)")
	}
}

func TestDispatchEmptyAction(t *testing.T) {
	d := newDispatcher(true, "role")
	d.RegisterHook(hook.Pre("never", 0, func(*hook.Invocation) bool {
		t.Error("hook ran for an empty action")
		return true
	}))

	// The empty name can never be registered, so it can never shadow the check.
	if err := d.RegisterGlobalFunc("", func(handler.Params) (any, error) { return "x", nil }); !errors.Is(err, dispatcher.ErrInvalidAction) {
		t.Fatalf("RegisterGlobalFunc(\"\") error = %v", err)
	}

	_, err := d.Dispatch(userContext{Role: "admin"}, "", nil)
	if !errors.Is(err, dispatcher.ErrInvalidAction) {
		t.Fatalf("expected ErrInvalidAction, got %v", err)
	}
	if err.Error() != "dispatcher: action name must be provided for dispatching" {
		t.Errorf("message = %q", err.Error())
	}

	stats, _ := d.CacheInfo()
	if stats.Misses != 0 || stats.Hits != 0 {
		t.Errorf("resolution ran for an empty action: %+v", stats)
	}
}

func TestDispatchPropagatesHandlerError(t *testing.T) {
	d := newDispatcher(false)
	_ = d.Register("fail", handler.Failing("fail", errBoom), nil)

	result, err := d.Dispatch(nil, "fail", nil)
	if err != errBoom {
		t.Errorf("expected handler error unmodified, got %v", err)
	}
	if result != nil {
		t.Errorf("result = %v, want nil", result)
	}
}

func TestLookupInvalidDimension(t *testing.T) {
	d := newDispatcher(true, "role")

	_, _, err := d.Lookup("create", scope.Scope{"region": "eu"})
	if !errors.Is(err, dispatcher.ErrInvalidDimension) {
		t.Fatalf("expected ErrInvalidDimension, got %v", err)
	}
	if _, err := d.Handler("create", scope.Scope{"region": "eu"}); !errors.Is(err, dispatcher.ErrInvalidDimension) {
		t.Errorf("Handler() error = %v", err)
	}
	if _, err := d.Handler("create", scope.Scope{"role": "admin"}); !errors.Is(err, dispatcher.ErrHandlerNotFound) {
		t.Errorf("Handler() error = %v, want ErrHandlerNotFound", err)
	}
}

// Resolution gives the same answer with and without the cache, including on
// repeated lookups served from the cache.
func TestCacheTransparency(t *testing.T) {
	register := func(d *dispatcher.Dispatcher) {
		_ = d.Register("create", named("admin-prod"), scope.Scope{"role": "admin", "environment": "prod"})
		_ = d.Register("create", named("admin-any"), scope.Scope{"role": "admin"})
		_ = d.Register("create", named("any-dev"), scope.Scope{"environment": "dev"})
		_ = d.Register("delete", named("admin-staging"), scope.Scope{"role": "admin", "environment": "staging"})
		_ = d.Register("delete", named("fallback"), nil)
		_ = d.RegisterGlobal("ping", named("pong"))
	}
	plain := newDispatcher(false, "role", "environment")
	cached := newDispatcher(true, "role", "environment")
	register(plain)
	register(cached)

	roles := []string{"", "admin", "guest"}
	envs := []string{"", "prod", "dev", "staging"}
	actions := []string{"create", "delete", "ping", "missing"}

	for pass := 0; pass < 2; pass++ {
		for _, action := range actions {
			for _, role := range roles {
				for _, env := range envs {
					s := scope.Scope{"role": role, "environment": env}
					want, wantOK, _ := plain.Lookup(action, s)
					got, gotOK, _ := cached.Lookup(action, s)
					if wantOK != gotOK || (wantOK && nameOf(t, want) != nameOf(t, got)) {
						t.Errorf("pass %d %s %v: cached (%v) differs from uncached (%v)", pass, action, s, gotOK, wantOK)
					}
				}
			}
		}
	}

	stats, ok := cached.CacheInfo()
	if !ok {
		t.Fatal("CacheInfo() reported disabled")
	}
	lookups := uint64(len(actions) * len(roles) * len(envs))
	if stats.Misses != lookups || stats.Hits != lookups {
		t.Errorf("stats = %+v, want %d hits and misses", stats, lookups)
	}
}

func TestCacheKeyNormalization(t *testing.T) {
	d := newDispatcher(true, "role", "environment")
	_ = d.Register("create", named("admin"), scope.Scope{"role": "admin"})

	_, _, _ = d.Lookup("create", scope.Scope{"role": "admin"})
	_, _, _ = d.Lookup("create", scope.Scope{"environment": "", "role": "admin"})

	stats, _ := d.CacheInfo()
	if stats.Hits != 1 || stats.Misses != 1 || stats.Size != 1 {
		t.Errorf("omitted and unset scopes should share an entry: %+v", stats)
	}
}

func TestCacheInvalidatedByEveryMutation(t *testing.T) {
	d := newDispatcher(true, "role")
	admin := scope.Scope{"role": "admin"}

	warm := func() {
		t.Helper()
		_, _, _ = d.Lookup("create", admin)
		_, _, _ = d.Lookup("missing", admin)
		if stats, _ := d.CacheInfo(); stats.Size == 0 {
			t.Fatal("cache did not fill")
		}
	}
	assertEmpty := func(op string) {
		t.Helper()
		stats, _ := d.CacheInfo()
		if stats.Size != 0 {
			t.Errorf("after %s: Size = %d, want 0", op, stats.Size)
		}
	}

	warm()
	_ = d.Register("create", named("a"), admin)
	assertEmpty("Register")

	warm()
	_ = d.RegisterGlobal("ping", named("p"))
	assertEmpty("RegisterGlobal")

	warm()
	_, _ = d.Unregister("create", admin)
	assertEmpty("Unregister")

	warm()
	d.UnregisterGlobal("ping")
	assertEmpty("UnregisterGlobal")

	warm()
	d.Clear()
	assertEmpty("Clear")

	warm()
	d.ClearCache()
	assertEmpty("ClearCache")
	if stats, _ := d.CacheInfo(); stats.Hits != 0 || stats.Misses != 0 {
		t.Errorf("ClearCache should reset counters: %+v", stats)
	}
}

func TestCacheSeesNewRegistrations(t *testing.T) {
	d := newDispatcher(true, "role")

	if _, found, _ := d.Lookup("create", scope.Scope{"role": "admin"}); found {
		t.Fatal("unexpected handler")
	}
	_ = d.Register("create", named("admin"), scope.Scope{"role": "admin"})

	h, found, _ := d.Lookup("create", scope.Scope{"role": "admin"})
	if !found || nameOf(t, h) != "admin" {
		t.Error("cached not-found survived a registration")
	}
}

func TestCacheToggle(t *testing.T) {
	d := newDispatcher(false, "role")
	_ = d.Register("create", named("a"), nil)

	d.EnableCache(8)
	_, _, _ = d.Lookup("create", nil)
	_, _, _ = d.Lookup("create", nil)

	stats, ok := d.CacheInfo()
	if !ok || stats.Capacity != 8 || stats.Hits != 1 || stats.Misses != 1 {
		t.Errorf("CacheInfo() = %+v, %v", stats, ok)
	}

	d.DisableCache()
	if d.CacheEnabled() {
		t.Error("cache still enabled")
	}
	if _, found, _ := d.Lookup("create", nil); !found {
		t.Error("lookup failed with cache disabled")
	}

	d.EnableCache(0)
	stats, _ = d.CacheInfo()
	if stats.Hits != 0 || stats.Misses != 0 || stats.Size != 0 || stats.Capacity != 8 {
		t.Errorf("re-enabled cache should start empty with the previous capacity: %+v", stats)
	}
}

func TestDispatchHooks(t *testing.T) {
	d := newDispatcher(false, "role")
	_ = d.RegisterFunc("create", func(p handler.Params) (any, error) {
		return "created by " + p.String("actor"), nil
	}, scope.Scope{"role": "admin"})

	var seen []string
	d.RegisterHook(hook.Pre("enrich", 10, func(inv *hook.Invocation) bool {
		seen = append(seen, "pre:"+inv.Scope.Value("role"))
		inv.Params["actor"] = "hook"
		return true
	}))
	d.RegisterHook(hook.Post("observe", 10, func(inv *hook.Invocation, result any, err error) {
		seen = append(seen, fmt.Sprintf("post:%v", result))
	}))

	result, err := d.Dispatch(map[string]string{"role": "admin"}, "create", nil)
	if err != nil || result != "created by hook" {
		t.Fatalf("Dispatch() = %v, %v", result, err)
	}
	if diff := cmp.Diff([]string{"pre:admin", "post:created by hook"}, seen); diff != "" {
		t.Errorf("hook calls mismatch (-want +got):\n%s", diff)
	}
}

func TestDispatchHookCancel(t *testing.T) {
	d := dispatcher.New(dispatcher.DefaultConfig().WithMetrics())
	called := false
	_ = d.RegisterFunc("delete", func(handler.Params) (any, error) {
		called = true
		return nil, nil
	}, nil)
	d.RegisterHook(hook.NewActionFilterHook("deny-delete", hook.PriorityFilter, func(inv *hook.Invocation) (bool, string) {
		return inv.Action != "delete", "deletes disabled"
	}))

	_, err := d.Dispatch(nil, "delete", nil)
	if !errors.Is(err, dispatcher.ErrActionCancelled) {
		t.Fatalf("expected ErrActionCancelled, got %v", err)
	}
	if called {
		t.Error("handler ran after cancellation")
	}
	if got := d.Metrics().Snapshot().TotalCancelled; got != 1 {
		t.Errorf("TotalCancelled = %d, want 1", got)
	}

	if !d.UnregisterHook("deny-delete") {
		t.Error("UnregisterHook() = false")
	}
	if _, err := d.Dispatch(nil, "delete", nil); err != nil || !called {
		t.Errorf("dispatch after unregistering hook: err = %v, called = %v", err, called)
	}
}

func TestDispatchScopedHook(t *testing.T) {
	d := newDispatcher(false, "role", "environment")
	_ = d.RegisterFunc("delete_user", func(handler.Params) (any, error) { return "deleted", nil }, nil)

	filter := hook.NewActionFilterHook("no-prod-deletes", hook.PriorityFilter, func(*hook.Invocation) (bool, string) {
		return false, "deletes disabled in prod"
	})
	m := hook.Match{Actions: []string{"delete_user"}, Scope: scope.Scope{"environment": "prod"}}
	if err := d.RegisterScopedHook(filter, m); err != nil {
		t.Fatalf("RegisterScopedHook() error = %v", err)
	}

	tests := []struct {
		name    string
		ctx     map[string]string
		wantErr error
	}{
		{name: "prod is filtered", ctx: map[string]string{"role": "admin", "environment": "prod"}, wantErr: dispatcher.ErrActionCancelled},
		{name: "staging passes", ctx: map[string]string{"role": "admin", "environment": "staging"}},
		{name: "unset environment passes", ctx: map[string]string{"role": "admin"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := d.Dispatch(tt.ctx, "delete_user", nil)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Dispatch() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	err := d.RegisterScopedHook(filter, hook.Match{Scope: scope.Scope{"region": "eu"}})
	if !errors.Is(err, dispatcher.ErrInvalidDimension) {
		t.Errorf("undeclared dimension in match: err = %v", err)
	}
}

func TestDispatchFalsyContextValueIsUnset(t *testing.T) {
	d := newDispatcher(false, "role", "environment")
	_ = d.RegisterFunc("create", func(handler.Params) (any, error) { return "any role in prod", nil },
		scope.Scope{"environment": "prod"})

	for _, role := range []any{0, false, 0.0, nil} {
		result, err := d.Dispatch(map[string]any{"role": role, "environment": "prod"}, "create", nil)
		if err != nil || result != "any role in prod" {
			t.Errorf("role %#v: Dispatch() = %v, %v", role, result, err)
		}
	}
}

func TestDispatchMetrics(t *testing.T) {
	d := dispatcher.New(dispatcher.DefaultConfig().WithMetrics())
	_ = d.RegisterGlobalFunc("ok", func(handler.Params) (any, error) { return 1, nil })
	_ = d.Register("fail", handler.Failing("fail", errBoom), nil)

	_, _ = d.Dispatch(nil, "ok", nil)
	_, _ = d.Dispatch(nil, "ok", nil)
	_, _ = d.Dispatch(nil, "fail", nil)
	_, _ = d.Dispatch(nil, "missing", nil)

	m := d.Metrics()
	if m.TotalDispatches() != 3 {
		t.Errorf("TotalDispatches() = %d, want 3", m.TotalDispatches())
	}
	if m.TotalErrors() != 1 {
		t.Errorf("TotalErrors() = %d, want 1", m.TotalErrors())
	}
	if m.TotalNotFound() != 1 {
		t.Errorf("TotalNotFound() = %d, want 1", m.TotalNotFound())
	}
	if stats := m.ActionStats("fail"); stats == nil || !stats.LastFailed || stats.ErrorRate() != 100 {
		t.Errorf("ActionStats(fail) = %+v", stats)
	}
	if top := m.TopActions(1); len(top) != 1 || top[0].Name != "ok" {
		t.Errorf("TopActions(1) = %+v", top)
	}
}

func TestRoutesAndCount(t *testing.T) {
	d := newDispatcher(false, "role")
	_ = d.Register("create", named("a"), scope.Scope{"role": "admin"})
	_ = d.RegisterGlobal("ping", named("p"))

	if d.Count() != 2 || len(d.Routes()) != 2 {
		t.Errorf("Count() = %d, Routes() = %d", d.Count(), len(d.Routes()))
	}
}

func TestConcurrentDispatchAndRegister(t *testing.T) {
	d := newDispatcher(true, "role")
	_ = d.Register("read", named("any"), nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				role := fmt.Sprintf("r%d", j%5)
				if _, err := d.Dispatch(map[string]string{"role": role}, "read", nil); err != nil {
					t.Errorf("Dispatch() error = %v", err)
					return
				}
				if i == 0 && j < 5 {
					_ = d.Register("read", named(role), scope.Scope{"role": role})
				}
			}
		}(i)
	}
	wg.Wait()

	// Every role registered above must now resolve to its own handler.
	for j := 0; j < 5; j++ {
		role := fmt.Sprintf("r%d", j)
		h, found, _ := d.Lookup("read", scope.Scope{"role": role})
		if !found || nameOf(t, h) != role {
			t.Errorf("role %s resolved to a stale handler", role)
		}
	}
}

func TestReplaceInstallsStagedRoutes(t *testing.T) {
	d := newDispatcher(true, "role")
	_ = d.RegisterFunc("create", func(handler.Params) (any, error) { return "old", nil }, scope.Scope{"role": "admin"})
	_ = d.RegisterGlobalFunc("retired", func(handler.Params) (any, error) { return "gone", nil })

	ctx := map[string]string{"role": "admin"}
	if result, _ := d.Dispatch(ctx, "create", nil); result != "old" {
		t.Fatalf("Dispatch() = %v before staging", result)
	}

	staged := d.Stage()
	_ = staged.Register("create", handler.Static("new", "new"), scope.Scope{"role": "admin"})
	if result, _ := d.Dispatch(ctx, "create", nil); result != "old" {
		t.Errorf("staged route visible before Replace: %v", result)
	}

	if err := d.Replace(staged); err != nil {
		t.Fatalf("Replace() error = %v", err)
	}
	if stats, _ := d.CacheInfo(); stats.Size != 0 {
		t.Errorf("cache size = %d after Replace, want 0", stats.Size)
	}
	if result, _ := d.Dispatch(ctx, "create", nil); result != "new" {
		t.Errorf("Dispatch() = %v after Replace, want new", result)
	}
	if _, err := d.Dispatch(ctx, "retired", nil); !errors.Is(err, dispatcher.ErrHandlerNotFound) {
		t.Errorf("replaced-away global: err = %v", err)
	}
	if d.Count() != 1 {
		t.Errorf("Count() = %d, want 1", d.Count())
	}

	// Later mutations still invalidate the cache of the installed registry.
	_, _ = d.Dispatch(ctx, "create", nil)
	_ = d.RegisterGlobalFunc("ping", func(handler.Params) (any, error) { return "pong", nil })
	if stats, _ := d.CacheInfo(); stats.Size != 0 {
		t.Errorf("cache size = %d after registering on the replaced registry", stats.Size)
	}
}

func TestReplaceRejectsOtherDimensions(t *testing.T) {
	d := newDispatcher(false, "role")
	other := dispatcher.NewRegistry(scope.MustDimensions("role", "environment"))
	if err := d.Replace(other); !errors.Is(err, dispatcher.ErrDimensionMismatch) {
		t.Errorf("Replace() error = %v, want ErrDimensionMismatch", err)
	}
}

func TestReplaceIsAtomicForConcurrentDispatch(t *testing.T) {
	d := newDispatcher(true, "role", "environment")
	build := func(gen int) *dispatcher.Registry {
		r := d.Stage()
		_ = r.Register("create", handler.Static("admin", gen), scope.Scope{"role": "admin"})
		_ = r.Register("create", handler.Static("fallback", -gen), nil)
		_ = r.RegisterGlobal("ping", handler.Static("ping", "pong"))
		return r
	}
	if err := d.Replace(build(1)); err != nil {
		t.Fatal(err)
	}

	stop := make(chan struct{})
	var wg sync.WaitGroup
	var failures sync.Map
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx := map[string]string{"role": "admin", "environment": "prod"}
			for {
				select {
				case <-stop:
					return
				default:
				}
				if result, err := d.Dispatch(ctx, "create", nil); err != nil {
					failures.Store(err.Error(), true)
				} else if n, _ := result.(int); n <= 0 {
					failures.Store(fmt.Sprintf("resolved fallback %v", result), true)
				}
			}
		}()
	}

	for gen := 2; gen < 200; gen++ {
		if err := d.Replace(build(gen)); err != nil {
			t.Fatal(err)
		}
	}
	close(stop)
	wg.Wait()

	failures.Range(func(k, _ any) bool {
		t.Errorf("dispatch during Replace: %v", k)
		return true
	})
}
