package dispatcher

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/go-logr/logr"

	"github.com/dshills/actionroute/internal/dispatcher/cache"
	"github.com/dshills/actionroute/internal/dispatcher/execctx"
	"github.com/dshills/actionroute/internal/dispatcher/handler"
	"github.com/dshills/actionroute/internal/dispatcher/hook"
	"github.com/dshills/actionroute/internal/dispatcher/scope"
)

// Dispatcher resolves actions to handlers and invokes them.
type Dispatcher struct {
	// mu orders registry mutations against cached lookups. Mutations and
	// cache invalidation happen under the write lock; lookups hold the read
	// lock across cache get, route and cache add.
	mu sync.RWMutex

	dims     scope.Dimensions
	registry *Registry
	router   *Router
	cache    *cache.Cache

	config  Config
	metrics *Metrics
	hooks   *hook.Chain
	log     logr.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the dispatcher logger.
func WithLogger(logger logr.Logger) Option {
	return func(d *Dispatcher) {
		d.log = logger
	}
}

// WithHookChain shares a hook chain between dispatchers.
func WithHookChain(c *hook.Chain) Option {
	return func(d *Dispatcher) {
		if c != nil {
			d.hooks = c
		}
	}
}

// New creates a new dispatcher with the given configuration.
// Misconfigured dimension names are dropped and logged.
func New(config Config, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		config: config,
		hooks:  hook.NewChain(),
		log:    logr.Discard(),
	}
	for _, opt := range opts {
		opt(d)
	}

	dims, warnings := scope.NewDimensions(config.Dimensions...)
	for _, w := range warnings {
		d.log.Info("ignoring misconfigured dimension", "index", w.Index, "value", w.Value, "reason", w.Reason)
	}
	d.dims = dims
	d.config.Dimensions = dims.Names()

	d.cache = cache.New(config.CacheEnabled, config.CacheCapacity)
	d.registry = NewRegistry(dims)
	d.registry.SetInvalidator(d.cache)
	d.router = NewRouter(d.registry)

	if config.EnableMetrics {
		d.metrics = NewMetrics()
	}

	d.log.V(1).Info("dispatcher created",
		"dimensions", dims.Names(),
		"cache", config.CacheEnabled,
		"metrics", config.EnableMetrics,
	)
	return d
}

// NewWithDefaults creates a new dispatcher with default configuration.
func NewWithDefaults() *Dispatcher {
	return New(DefaultConfig())
}

// Dimensions returns the dispatcher's dimension set.
func (d *Dispatcher) Dimensions() scope.Dimensions {
	return d.dims
}

// Register registers h for action under scope s.
func (d *Dispatcher) Register(action string, h handler.Handler, s scope.Scope) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.registry.Register(action, h, s); err != nil {
		return err
	}
	d.log.V(1).Info("registered handler", "action", action, "scope", s.String(), "handler", handler.Describe(h))
	return nil
}

// RegisterFunc registers a handler function for action under scope s.
func (d *Dispatcher) RegisterFunc(action string, fn func(handler.Params) (any, error), s scope.Scope) error {
	if fn == nil {
		return ErrNilHandler
	}
	return d.Register(action, handler.NewHandlerFunc(fn), s)
}

// RegisterGlobal registers h for action regardless of scope.
func (d *Dispatcher) RegisterGlobal(action string, h handler.Handler) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.registry.RegisterGlobal(action, h); err != nil {
		return err
	}
	d.log.V(1).Info("registered global handler", "action", action, "handler", handler.Describe(h))
	return nil
}

// RegisterGlobalFunc registers a global handler function.
func (d *Dispatcher) RegisterGlobalFunc(action string, fn func(handler.Params) (any, error)) error {
	if fn == nil {
		return ErrNilHandler
	}
	return d.RegisterGlobal(action, handler.NewHandlerFunc(fn))
}

// Unregister removes the handler registered for action at exactly scope s.
func (d *Dispatcher) Unregister(action string, s scope.Scope) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.registry.Unregister(action, s)
}

// UnregisterGlobal removes the global handler for action.
func (d *Dispatcher) UnregisterGlobal(action string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.registry.UnregisterGlobal(action)
}

// Clear removes every registration.
func (d *Dispatcher) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.registry.Clear()
	d.log.V(1).Info("cleared registrations")
}

// Stage returns an empty registry over the dispatcher's dimensions. Routes
// registered on it stay invisible to dispatches until Replace installs it.
func (d *Dispatcher) Stage() *Registry {
	return NewRegistry(d.dims)
}

// Replace installs r as the complete route set and drops every cached
// resolution, all under the write lock: a lookup sees either the previous
// routes or r, never a mix.
func (d *Dispatcher) Replace(r *Registry) error {
	if got, want := r.Dimensions().Names(), d.dims.Names(); !slices.Equal(got, want) {
		return fmt.Errorf("%w: staged %v, dispatcher %v", ErrDimensionMismatch, got, want)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.registry.SetInvalidator(nil)
	r.SetInvalidator(d.cache)
	d.registry = r
	d.router = NewRouter(r)
	d.cache.Invalidate()

	d.log.V(1).Info("replaced registrations", "routes", r.Count())
	return nil
}

// Lookup resolves action under s without invoking the handler. Keys of s must
// be declared dimensions; missing dimensions are unset.
func (d *Dispatcher) Lookup(action string, s scope.Scope) (handler.Handler, bool, error) {
	if name, ok := d.dims.Unknown(s); ok {
		return nil, false, &InvalidDimensionError{Dimension: name, Available: d.dims.Names()}
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	h, found := d.lookupLocked(action, s)
	return h, found, nil
}

// Handler resolves action under s, returning a *HandlerNotFoundError when
// nothing matches.
func (d *Dispatcher) Handler(action string, s scope.Scope) (handler.Handler, error) {
	h, found, err := d.Lookup(action, s)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, &HandlerNotFoundError{Action: action, Scope: s.Clone()}
	}
	return h, nil
}

// lookupLocked consults the cache and falls back to the router, caching
// misses as well as hits. Callers hold d.mu.
func (d *Dispatcher) lookupLocked(action string, s scope.Scope) (handler.Handler, bool) {
	if !d.cache.Enabled() {
		return d.router.Route(action, s)
	}

	key := scope.Key(action, d.dims, s)
	if e, ok := d.cache.Get(key); ok {
		return e.Handler, e.Found
	}

	h, found := d.router.Route(action, s)
	if found {
		d.cache.Add(key, cache.Entry{Handler: h, Found: true})
	} else {
		d.cache.Add(key, cache.NotFound)
	}
	return h, found
}

// Dispatch resolves action from the dimensions ctx exposes and invokes the
// handler with ctx under handler.ContextKey merged with extra. The handler's
// result and error are returned unmodified.
func (d *Dispatcher) Dispatch(ctx any, action string, extra handler.Params) (any, error) {
	if action == "" {
		return nil, ErrInvalidAction
	}
	startTime := time.Now()

	s := execctx.Extract(ctx, d.dims)
	h, found, err := d.Lookup(action, s)
	if err != nil {
		return nil, err
	}
	if !found {
		if d.metrics != nil {
			d.metrics.RecordNotFound(action)
		}
		d.log.V(1).Info("no handler", "action", action, "scope", s.String())
		return nil, &HandlerNotFoundError{Action: action, Scope: s}
	}

	params := handler.NewParams(ctx, extra)

	var inv *hook.Invocation
	if d.hooks.Len() > 0 {
		inv = hook.NewInvocation(action, s, params, h)
		if name, ok := d.hooks.Before(inv); !ok {
			if d.metrics != nil {
				d.metrics.RecordCancelled(action)
			}
			d.log.V(1).Info("dispatch cancelled by hook", "action", action, "hook", name, "id", inv.ID)
			return nil, ErrActionCancelled
		}
		params = inv.Params
	}

	result, err := h.Handle(params)

	if inv != nil {
		d.hooks.After(inv, result, err)
	}
	if d.metrics != nil {
		d.metrics.RecordDispatch(action, time.Since(startTime), err)
	}
	return result, err
}

// EnableCache enables the resolution cache. A positive capacity replaces the
// configured one. Enabling starts from an empty cache with zeroed counters.
func (d *Dispatcher) EnableCache(capacity int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cache.Enable(capacity)
}

// DisableCache disables the resolution cache and drops its entries.
func (d *Dispatcher) DisableCache() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cache.Disable()
}

// ClearCache drops every cached resolution and resets the counters.
func (d *Dispatcher) ClearCache() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cache.Invalidate()
}

// CacheEnabled reports whether the resolution cache is enabled.
func (d *Dispatcher) CacheEnabled() bool {
	return d.cache.Enabled()
}

// CacheInfo returns cache statistics. The boolean is false when the cache is
// disabled.
func (d *Dispatcher) CacheInfo() (cache.Stats, bool) {
	if !d.cache.Enabled() {
		return cache.Stats{}, false
	}
	return d.cache.Stats(), true
}

// Routes returns every registration.
func (d *Dispatcher) Routes() []Route {
	return d.current().Routes()
}

// Count returns the number of registrations.
func (d *Dispatcher) Count() int {
	return d.current().Count()
}

func (d *Dispatcher) current() *Registry {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.registry
}

// Metrics returns the metrics collector (may be nil if disabled).
func (d *Dispatcher) Metrics() *Metrics {
	return d.metrics
}

// Config returns the dispatcher configuration with the effective dimensions.
func (d *Dispatcher) Config() Config {
	return d.config
}
