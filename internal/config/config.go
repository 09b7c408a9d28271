package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/dshills/actionroute/internal/config/loader"
	"github.com/dshills/actionroute/internal/dispatcher/cache"
	"github.com/dshills/actionroute/internal/dispatcher/scope"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "ACTIONROUTE_"

// maxIncludeDepth bounds nested @include directives.
const maxIncludeDepth = 8

// Config is the complete application configuration.
type Config struct {
	Dispatcher DispatcherConfig `envPrefix:"DISPATCHER_"`
	Logging    LoggingConfig    `envPrefix:"LOG_"`
	Routes     RoutesConfig     `envPrefix:"ROUTES_"`
	Telemetry  TelemetryConfig  `envPrefix:"TELEMETRY_"`
}

// DispatcherConfig configures the dispatcher.
type DispatcherConfig struct {
	// Dimensions are the routing dimension names in traversal order.
	Dimensions []string `env:"DIMENSIONS" envSeparator:","`

	// Metrics enables dispatch statistics.
	Metrics bool `env:"METRICS"`

	Cache CacheConfig `envPrefix:"CACHE_"`
}

// CacheConfig configures the resolution cache.
type CacheConfig struct {
	Enabled  bool `env:"ENABLED"`
	Capacity int  `env:"CAPACITY"`
}

// LoggingConfig configures the logger.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `env:"LEVEL"`

	// Format is text or json.
	Format string `env:"FORMAT"`
}

// RoutesConfig lists route sources.
type RoutesConfig struct {
	// Scripts are Lua route script paths or glob patterns.
	Scripts []string `env:"SCRIPTS" envSeparator:","`

	// Manifests are YAML manifest paths or glob patterns.
	Manifests []string `env:"MANIFESTS" envSeparator:","`

	// Watch reloads routes when a source file changes.
	Watch bool `env:"WATCH"`

	// Debounce delays a reload until changes settle.
	Debounce time.Duration `env:"DEBOUNCE"`
}

// TelemetryConfig configures the metrics endpoint.
type TelemetryConfig struct {
	// MetricsAddr is the listen address of the /metrics endpoint.
	// Empty disables it.
	MetricsAddr string `env:"METRICS_ADDR"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Dispatcher: DispatcherConfig{
			Cache: CacheConfig{Capacity: cache.DefaultCapacity},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Routes: RoutesConfig{
			Debounce: 200 * time.Millisecond,
		},
	}
}

// Warning describes a configuration value that was ignored.
type Warning struct {
	Path    string
	Value   any
	Message string
}

// String implements fmt.Stringer.
func (w Warning) String() string {
	return fmt.Sprintf("%s: %s (value: %v)", w.Path, w.Message, w.Value)
}

type loadOptions struct {
	path    string
	fs      loader.FileSystem
	environ map[string]string
}

// Option configures Load.
type Option func(*loadOptions)

// WithPath sets the configuration file. A missing file is not an error.
func WithPath(path string) Option {
	return func(o *loadOptions) {
		o.path = path
	}
}

// WithFS reads files from fsys instead of the OS.
func WithFS(fsys loader.FileSystem) Option {
	return func(o *loadOptions) {
		o.fs = fsys
	}
}

// WithEnvironment reads overrides from environ instead of the process
// environment.
func WithEnvironment(environ map[string]string) Option {
	return func(o *loadOptions) {
		o.environ = environ
	}
}

// Load builds the configuration from defaults, the TOML file and environment
// overrides, in that order. Values of the wrong type in the file are ignored
// and reported as warnings.
func Load(opts ...Option) (Config, []Warning, error) {
	o := loadOptions{}
	for _, opt := range opts {
		opt(&o)
	}

	cfg := Default()
	var warnings []Warning

	if o.path != "" {
		data, err := loader.NewTOMLLoaderWithFS(o.fs, o.path).LoadWithIncludes(o.path, maxIncludeDepth)
		if err != nil {
			return cfg, nil, fmt.Errorf("loading config: %w", err)
		}
		warnings = cfg.Apply(data)
		cfg.Routes.resolve(filepath.Dir(o.path))
	}

	envOpts := env.Options{Prefix: EnvPrefix}
	if o.environ != nil {
		envOpts.Environment = o.environ
	}
	if err := env.ParseWithOptions(&cfg, envOpts); err != nil {
		return cfg, warnings, fmt.Errorf("%w: %w", ErrEnvironment, err)
	}

	return cfg, warnings, nil
}

// Apply overlays a decoded configuration map onto c.
func (c *Config) Apply(data map[string]any) []Warning {
	a := applier{}

	if d, ok := a.section(data, "dispatcher"); ok {
		if v, ok := d["dimensions"]; ok {
			dims, ws := scope.FromValue(v)
			for _, w := range ws {
				a.warn("dispatcher.dimensions", w.Value, w.Reason)
			}
			c.Dispatcher.Dimensions = dims.Names()
		}
		a.bool(d, "dispatcher.metrics", "metrics", &c.Dispatcher.Metrics)
		if cc, ok := a.section(d, "cache"); ok {
			a.bool(cc, "dispatcher.cache.enabled", "enabled", &c.Dispatcher.Cache.Enabled)
			a.int(cc, "dispatcher.cache.capacity", "capacity", &c.Dispatcher.Cache.Capacity)
		}
	}

	if l, ok := a.section(data, "logging"); ok {
		a.string(l, "logging.level", "level", &c.Logging.Level)
		a.string(l, "logging.format", "format", &c.Logging.Format)
	}

	if r, ok := a.section(data, "routes"); ok {
		a.strings(r, "routes.scripts", "scripts", &c.Routes.Scripts)
		a.strings(r, "routes.manifests", "manifests", &c.Routes.Manifests)
		a.bool(r, "routes.watch", "watch", &c.Routes.Watch)
		a.duration(r, "routes.debounce", "debounce", &c.Routes.Debounce)
	}

	if t, ok := a.section(data, "telemetry"); ok {
		a.string(t, "telemetry.metrics_addr", "metrics_addr", &c.Telemetry.MetricsAddr)
	}

	return a.warnings
}

// resolve makes relative route patterns relative to dir.
func (r *RoutesConfig) resolve(dir string) {
	for i, p := range r.Scripts {
		r.Scripts[i] = resolvePath(dir, p)
	}
	for i, p := range r.Manifests {
		r.Manifests[i] = resolvePath(dir, p)
	}
}

func resolvePath(dir, p string) string {
	if p == "" || filepath.IsAbs(p) || strings.HasPrefix(p, "~") {
		return p
	}
	return filepath.Join(dir, p)
}

// Validate checks the configuration for values that cannot be used.
func (c Config) Validate() error {
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return &ValidationError{Path: "logging.level", Value: c.Logging.Level, Message: "must be one of debug, info, warn, error"}
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		return &ValidationError{Path: "logging.format", Value: c.Logging.Format, Message: "must be text or json"}
	}
	if c.Dispatcher.Cache.Capacity < 0 {
		return &ValidationError{Path: "dispatcher.cache.capacity", Value: c.Dispatcher.Cache.Capacity, Message: "must not be negative"}
	}
	if c.Routes.Debounce < 0 {
		return &ValidationError{Path: "routes.debounce", Value: c.Routes.Debounce, Message: "must not be negative"}
	}
	if c.Routes.Watch && len(c.Routes.Scripts)+len(c.Routes.Manifests) == 0 {
		return &ValidationError{Path: "routes.watch", Value: true, Message: "requires at least one script or manifest"}
	}
	return nil
}

// ExpandHome replaces a leading "~" in p with the user's home directory.
func ExpandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}
