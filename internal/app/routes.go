package app

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dshills/actionroute/internal/config"
	"github.com/dshills/actionroute/internal/dispatcher"
	"github.com/dshills/actionroute/internal/manifest"
	"github.com/dshills/actionroute/internal/script"
)

// Source is one route file resolved from the configured patterns.
type Source struct {
	Path   string
	Script bool
}

// Sources expands the configured manifest and script patterns. Manifests
// come first so scripts can override their registrations. A pattern without
// glob characters must name an existing file.
func (app *Application) Sources() ([]Source, error) {
	var out []Source
	manifests, err := expand(app.config.Routes.Manifests)
	if err != nil {
		return nil, err
	}
	for _, p := range manifests {
		out = append(out, Source{Path: p})
	}

	scripts, err := expand(app.config.Routes.Scripts)
	if err != nil {
		return nil, err
	}
	for _, p := range scripts {
		out = append(out, Source{Path: p, Script: true})
	}
	return out, nil
}

func expand(patterns []string) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	for _, pattern := range patterns {
		pattern = config.ExpandHome(pattern)
		if !hasMeta(pattern) {
			if _, err := os.Stat(pattern); err != nil {
				return nil, &OperationError{Op: "stat", Target: pattern, Err: fmt.Errorf("%w: %w", ErrSourceNotFound, err)}
			}
			if !seen[pattern] {
				seen[pattern] = true
				out = append(out, pattern)
			}
			continue
		}

		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, &OperationError{Op: "glob", Target: pattern, Err: err}
		}
		sort.Strings(matches)
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				out = append(out, m)
			}
		}
	}
	return out, nil
}

func hasMeta(p string) bool {
	return strings.ContainsAny(p, `*?[\`)
}

// Patterns returns every configured source pattern with "~" expanded.
func (app *Application) Patterns() []string {
	r := app.config.Routes
	out := make([]string, 0, len(r.Manifests)+len(r.Scripts))
	for _, p := range append(append([]string(nil), r.Manifests...), r.Scripts...) {
		out = append(out, config.ExpandHome(p))
	}
	return out
}

// Reload loads every route source into a staged registry and installs it in
// place of the current routes in one step. Lookups never observe a partial
// route set. When a source fails, the staged routes are discarded, the
// current routes stay in service and the error is returned.
func (app *Application) Reload() error {
	app.mu.Lock()
	defer app.mu.Unlock()

	sources, err := app.Sources()
	if err != nil {
		app.log.Error(err, "route reload failed, keeping current routes")
		return err
	}

	staged := app.dispatcher.Stage()
	var scripts []*script.Script
	discard := func() {
		for _, sc := range scripts {
			sc.Close()
		}
	}
	for _, src := range sources {
		sc, err := app.apply(staged, src)
		if err != nil {
			discard()
			app.log.Error(err, "route reload failed, keeping current routes", "routes", app.dispatcher.Count())
			return err
		}
		if sc != nil {
			scripts = append(scripts, sc)
		}
	}

	app.live.Lock()
	err = app.dispatcher.Replace(staged)
	old := app.scripts
	if err == nil {
		app.scripts = scripts
	}
	app.live.Unlock()

	if err != nil {
		discard()
		return &OperationError{Op: "install routes", Err: err}
	}
	for _, sc := range old {
		sc.Close()
	}

	app.log.Info("routes loaded", "sources", len(sources), "routes", staged.Count())
	return nil
}

// apply loads one source into r. It returns the script backing the new
// handlers, or nil for a manifest.
func (app *Application) apply(r *dispatcher.Registry, src Source) (*script.Script, error) {
	if src.Script {
		sc, err := script.LoadFile(src.Path, r, script.WithLogger(app.log.WithName("script")))
		if err != nil {
			return nil, &OperationError{Op: "load script", Target: src.Path, Err: err}
		}
		app.log.V(1).Info("applied script", "path", src.Path, "routes", sc.Routes())
		return sc, nil
	}

	m, err := manifest.LoadFile(src.Path)
	if err == nil {
		err = m.Apply(r)
	}
	if err != nil {
		return nil, &OperationError{Op: "load manifest", Target: src.Path, Err: err}
	}
	app.log.V(1).Info("applied manifest", "path", src.Path, "routes", m.Len())
	return nil, nil
}
