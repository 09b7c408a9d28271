package app

import (
	"context"

	"github.com/dshills/actionroute/internal/watcher"
)

// Watch reloads routes whenever a file matching a configured source pattern
// changes, until ctx is done. Only the file name part of a pattern may hold
// glob characters; directories are watched as written.
func (app *Application) Watch(ctx context.Context) error {
	log := app.log.WithName("watcher")
	patterns := app.Patterns()

	w, err := watcher.NewFSNotifyWatcher(
		watcher.WithFilter(watcher.MatchPatterns(patterns...)),
		watcher.WithLogger(log),
	)
	if err != nil {
		return &OperationError{Op: "watch", Err: err}
	}
	defer w.Close()

	for _, dir := range watcher.Dirs(patterns...) {
		if hasMeta(dir) {
			log.Info("not watching directory pattern", "pattern", dir)
			continue
		}
		if err := w.Watch(dir); err != nil {
			return &OperationError{Op: "watch", Target: dir, Err: err}
		}
	}

	return watcher.Run(ctx, w, app.config.Routes.Debounce, log, func(batch []watcher.Event) {
		paths := make([]string, len(batch))
		for i, e := range batch {
			paths[i] = e.Path
		}
		log.Info("route sources changed", "files", paths)
		_ = app.Reload()
	})
}
