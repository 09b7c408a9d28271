// Package main is the entry point for the actionroute command.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/pflag"
	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
	"golang.org/x/term"

	"github.com/dshills/actionroute/internal/app"
	"github.com/dshills/actionroute/internal/config"
	"github.com/dshills/actionroute/internal/dispatcher/execctx"
	"github.com/dshills/actionroute/internal/dispatcher/handler"
	"github.com/dshills/actionroute/internal/dispatcher/scope"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// cliOptions holds the parsed command line.
type cliOptions struct {
	configPath  string
	logLevel    string
	dimensions  []string
	scripts     []string
	manifests   []string
	noCache     bool
	cacheSize   int
	showVersion bool
	showHelp    bool

	dims        []string
	params      []string
	contextJSON string

	args []string
	fs   *pflag.FlagSet
}

func parseFlags(args []string, stderr io.Writer) (*cliOptions, error) {
	o := &cliOptions{}
	fs := pflag.NewFlagSet("actionroute", pflag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.StringVarP(&o.configPath, "config", "c", "", "Path to configuration file")
	fs.StringVar(&o.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	fs.StringSliceVar(&o.dimensions, "dimensions", nil, "Routing dimensions in traversal order")
	fs.StringArrayVar(&o.scripts, "script", nil, "Lua route script path or glob (repeatable)")
	fs.StringArrayVar(&o.manifests, "manifest", nil, "YAML route manifest path or glob (repeatable)")
	fs.BoolVar(&o.noCache, "no-cache", false, "Disable the resolution cache")
	fs.IntVar(&o.cacheSize, "cache-size", 0, "Resolution cache capacity (enables the cache)")
	fs.BoolVarP(&o.showVersion, "version", "v", false, "Show version information")
	fs.BoolVarP(&o.showHelp, "help", "h", false, "Show help message")

	fs.StringArrayVarP(&o.dims, "dim", "d", nil, "dispatch: context dimension as name=value (repeatable)")
	fs.StringArrayVarP(&o.params, "param", "p", nil, "dispatch: parameter as key=value; JSON values are decoded (repeatable)")
	fs.StringVar(&o.contextJSON, "context-json", "", "dispatch: context as a JSON object")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "actionroute - multi-dimensional action router\n\n")
		fmt.Fprintf(stderr, "Usage:\n")
		fmt.Fprintf(stderr, "  actionroute [options] dispatch ACTION [-d dim=value ...] [-p key=value ...] [--context-json JSON]\n")
		fmt.Fprintf(stderr, "  actionroute [options] routes\n")
		fmt.Fprintf(stderr, "  actionroute [options] serve\n\n")
		fmt.Fprintf(stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(stderr, "\nExamples:\n")
		fmt.Fprintf(stderr, "  actionroute -c routes.toml dispatch create_user -d role=admin -p username=alice\n")
		fmt.Fprintf(stderr, "  actionroute --dimensions role --manifest 'routes/*.yaml' routes\n")
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	o.args = fs.Args()
	o.fs = fs
	return o, nil
}

// override applies the flags that were set on top of the loaded configuration.
func (o *cliOptions) override(c *config.Config) {
	if o.fs.Changed("log-level") {
		c.Logging.Level = o.logLevel
	}
	if o.fs.Changed("dimensions") {
		c.Dispatcher.Dimensions = o.dimensions
	}
	if o.fs.Changed("script") {
		c.Routes.Scripts = o.scripts
	}
	if o.fs.Changed("manifest") {
		c.Routes.Manifests = o.manifests
	}
	if o.fs.Changed("cache-size") {
		c.Dispatcher.Cache.Enabled = true
		c.Dispatcher.Cache.Capacity = o.cacheSize
	}
	if o.noCache {
		c.Dispatcher.Cache.Enabled = false
	}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	o, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}
	if o.showHelp {
		o.fs.Usage()
		return 0
	}
	if o.showVersion {
		fmt.Fprintf(stdout, "actionroute %s\n", version)
		fmt.Fprintf(stdout, "Commit: %s\n", commit)
		fmt.Fprintf(stdout, "Built: %s\n", date)
		return 0
	}
	if len(o.args) == 0 {
		o.fs.Usage()
		return 2
	}

	application, err := app.New(app.Options{
		ConfigPath: o.configPath,
		Override:   o.override,
		LogOutput:  stderr,
	})
	if err != nil {
		fmt.Fprintf(stderr, "Error: failed to initialize: %v\n", err)
		return 1
	}
	defer application.Close()

	switch cmd := o.args[0]; cmd {
	case "dispatch":
		return runDispatch(application, o, stdout, stderr)
	case "routes":
		return runRoutes(application, stdout)
	case "serve":
		if err := application.Serve(ctx, stdin, stdout); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		return 0
	default:
		fmt.Fprintf(stderr, "Error: unknown command %q\n", cmd)
		o.fs.Usage()
		return 2
	}
}

func runDispatch(application *app.Application, o *cliOptions, stdout, stderr io.Writer) int {
	if len(o.args) != 2 {
		fmt.Fprintf(stderr, "Error: dispatch takes exactly one ACTION\n")
		return 2
	}
	ctx, err := buildContext(o.dims, o.contextJSON)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	params, err := parseParams(o.params)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	req := app.Request{Action: o.args[1], Context: ctx, Params: params}
	result, err := application.Dispatch(req.Context, req.Action, req.Params)
	writeJSON(stdout, app.EncodeResponse(req, result, err))
	if err != nil {
		return 1
	}
	return 0
}

// buildContext combines --context-json and -d flags. Flags win over JSON keys.
func buildContext(dims []string, contextJSON string) (any, error) {
	var base execctx.JSON
	if contextJSON != "" {
		j, err := execctx.ParseJSON([]byte(contextJSON))
		if err != nil {
			return nil, fmt.Errorf("--context-json: %w", err)
		}
		base = j
	}
	if len(dims) == 0 {
		if base == nil {
			return nil, nil
		}
		return base, nil
	}

	ctx := map[string]any{}
	if base != nil {
		if m, ok := base.Value().(map[string]any); ok {
			ctx = m
		}
	}
	for _, kv := range dims {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("--dim %q: want name=value", kv)
		}
		ctx[name] = value
	}
	return ctx, nil
}

// parseParams decodes key=value pairs. Values that are valid JSON are decoded,
// anything else is kept as a string.
func parseParams(pairs []string) (handler.Params, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	params := make(handler.Params, len(pairs))
	for _, kv := range pairs {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("--param %q: want key=value", kv)
		}
		if gjson.Valid(value) {
			params[key] = gjson.Parse(value).Value()
		} else {
			params[key] = value
		}
	}
	return params, nil
}

func runRoutes(application *app.Application, stdout io.Writer) int {
	dims := application.Dispatcher().Dimensions()
	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ACTION\tSCOPE\tHANDLER")
	for _, r := range application.Dispatcher().Routes() {
		s := "*"
		if !r.Global {
			s = formatScope(dims, r.Scope)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Action, s, handler.Describe(r.Handler))
	}
	if err := tw.Flush(); err != nil {
		return 1
	}
	return 0
}

// formatScope renders a scope in dimension order, e.g. "role=admin environment=-".
func formatScope(dims scope.Dimensions, s scope.Scope) string {
	if dims.Len() == 0 {
		return "-"
	}
	parts := make([]string, 0, dims.Len())
	for _, name := range dims.Names() {
		v := s.Value(name)
		if v == scope.Unset {
			v = "-"
		}
		parts = append(parts, name+"="+v)
	}
	return strings.Join(parts, " ")
}

// writeJSON prints data, indented and colored when stdout is a terminal.
func writeJSON(w io.Writer, data []byte) {
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		data = pretty.Color(pretty.Pretty(data), nil)
	} else {
		data = append(data, '\n')
	}
	_, _ = w.Write(data)
}
