// Package app wires configuration, logging, the dispatcher and route sources
// into a running actionroute instance.
package app

import (
	"io"
	"sync"
	"sync/atomic"

	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dshills/actionroute/internal/config"
	"github.com/dshills/actionroute/internal/dispatcher"
	"github.com/dshills/actionroute/internal/dispatcher/handler"
	"github.com/dshills/actionroute/internal/script"
)

// Application owns a dispatcher and the route sources loaded into it.
type Application struct {
	// mu serializes route (re)loads.
	mu sync.Mutex

	// live is held for reading across every dispatch made through the
	// application and for writing while a reload swaps route sets, so the
	// scripts behind a replaced route set are idle when they are closed.
	live sync.RWMutex

	config     config.Config
	warnings   []config.Warning
	log        logr.Logger
	dispatcher *dispatcher.Dispatcher
	metrics    *prometheus.Registry

	// scripts are the Lua states backing the current registrations.
	scripts []*script.Script

	running atomic.Bool
	opts    Options
}

// Options configures the application.
type Options struct {
	// ConfigPath is the TOML configuration file. Empty skips the file.
	ConfigPath string

	// Environment replaces the process environment for overrides.
	Environment map[string]string

	// Override is applied after file and environment, for CLI flags.
	Override func(*config.Config)

	// LogOutput receives log lines. Nil means stderr.
	LogOutput io.Writer

	// Logger replaces the configured logger when set.
	Logger *logr.Logger
}

// New loads configuration, builds the dispatcher and applies every route
// source.
func New(opts Options) (*Application, error) {
	app := &Application{opts: opts}
	if err := newBootstrapper(app).bootstrap(); err != nil {
		return nil, err
	}
	return app, nil
}

// Config returns the effective configuration.
func (app *Application) Config() config.Config {
	return app.config
}

// Warnings returns the configuration values ignored while loading.
func (app *Application) Warnings() []config.Warning {
	return app.warnings
}

// Dispatcher returns the application's dispatcher.
func (app *Application) Dispatcher() *dispatcher.Dispatcher {
	return app.dispatcher
}

// Logger returns the application logger.
func (app *Application) Logger() logr.Logger {
	return app.log
}

// MetricsRegistry returns the Prometheus registry exposing the dispatcher.
func (app *Application) MetricsRegistry() *prometheus.Registry {
	return app.metrics
}

// Close releases the Lua states of loaded scripts.
func (app *Application) Close() {
	app.mu.Lock()
	defer app.mu.Unlock()
	app.live.Lock()
	defer app.live.Unlock()
	app.closeScripts()
}

// Dispatch dispatches action through the application's dispatcher. A reload
// running at the same time never retires the handler it resolves.
func (app *Application) Dispatch(ctx any, action string, params handler.Params) (any, error) {
	app.live.RLock()
	defer app.live.RUnlock()
	return app.dispatcher.Dispatch(ctx, action, params)
}

func (app *Application) closeScripts() {
	for _, sc := range app.scripts {
		sc.Close()
	}
	app.scripts = nil
}
