package app

import (
	"github.com/dshills/actionroute/internal/config"
	"github.com/dshills/actionroute/internal/dispatcher"
	"github.com/dshills/actionroute/internal/dispatcher/hook"
	"github.com/dshills/actionroute/internal/logging"
	"github.com/dshills/actionroute/internal/telemetry"
)

// bootstrapper handles component initialization in dependency order.
type bootstrapper struct {
	app  *Application
	opts Options
}

// newBootstrapper creates a new bootstrapper for the application.
func newBootstrapper(app *Application) *bootstrapper {
	return &bootstrapper{app: app, opts: app.opts}
}

// bootstrap initializes all components. On failure, already-loaded scripts
// are closed.
func (b *bootstrapper) bootstrap() error {
	steps := []func() error{
		b.initConfig,
		b.initLogger,
		b.initDispatcher,
		b.initTelemetry,
		b.initRoutes,
	}
	for _, step := range steps {
		if err := step(); err != nil {
			b.app.closeScripts()
			return err
		}
	}
	return nil
}

// initConfig loads defaults, file, environment and overrides, then validates.
func (b *bootstrapper) initConfig() error {
	opts := []config.Option{config.WithPath(config.ExpandHome(b.opts.ConfigPath))}
	if b.opts.Environment != nil {
		opts = append(opts, config.WithEnvironment(b.opts.Environment))
	}

	cfg, warnings, err := config.Load(opts...)
	if err != nil {
		return &InitError{Component: "config", Err: err}
	}
	if b.opts.Override != nil {
		b.opts.Override(&cfg)
	}
	if err := cfg.Validate(); err != nil {
		return &InitError{Component: "config", Err: err}
	}

	b.app.config = cfg
	b.app.warnings = warnings
	return nil
}

// initLogger builds the logger and reports configuration warnings.
func (b *bootstrapper) initLogger() error {
	if b.opts.Logger != nil {
		b.app.log = *b.opts.Logger
	} else {
		log, err := logging.New(logging.Options{
			Level:  b.app.config.Logging.Level,
			Format: b.app.config.Logging.Format,
			Output: b.opts.LogOutput,
		})
		if err != nil {
			return &InitError{Component: "logging", Err: err}
		}
		b.app.log = log
	}

	for _, w := range b.app.warnings {
		b.app.log.Info("ignoring configuration value", "path", w.Path, "value", w.Value, "reason", w.Message)
	}
	return nil
}

// initDispatcher creates the dispatcher with an audit hook at debug level.
func (b *bootstrapper) initDispatcher() error {
	dc := b.app.config.Dispatcher
	cfg := dispatcher.DefaultConfig().WithDimensions(dc.Dimensions...)
	if dc.Cache.Enabled {
		cfg = cfg.WithCache(dc.Cache.Capacity)
	} else if dc.Cache.Capacity > 0 {
		cfg.CacheCapacity = dc.Cache.Capacity
	}
	if dc.Metrics || b.app.config.Telemetry.MetricsAddr != "" {
		cfg = cfg.WithMetrics()
	}

	log := b.app.log.WithName("dispatcher")
	d := dispatcher.New(cfg, dispatcher.WithLogger(log))
	if log.V(logging.DEBUG).Enabled() {
		d.RegisterHook(hook.NewAuditHook(log))
	}
	b.app.dispatcher = d
	return nil
}

// initTelemetry registers the dispatcher collector.
func (b *bootstrapper) initTelemetry() error {
	reg, err := telemetry.NewRegistry(b.app.dispatcher)
	if err != nil {
		return &InitError{Component: "telemetry", Err: err}
	}
	b.app.metrics = reg
	return nil
}

// initRoutes applies every configured route source.
func (b *bootstrapper) initRoutes() error {
	if err := b.app.Reload(); err != nil {
		return &InitError{Component: "routes", Err: err}
	}
	return nil
}
