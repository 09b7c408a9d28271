// Package watcher reports changes to route source files.
//
// An FSNotifyWatcher watches the directories holding scripts and manifests and
// forwards the events whose path passes its filter. A Debouncer coalesces a
// burst of events, such as an editor's write-rename-chmod sequence, into a
// single batch so each burst triggers one reload.
package watcher

import (
	"errors"
	"path/filepath"
	"strings"
	"time"
)

// Common errors returned by watcher operations.
var (
	ErrWatcherClosed   = errors.New("watcher: watcher is closed")
	ErrAlreadyWatching = errors.New("watcher: path is already being watched")
	ErrNotWatching     = errors.New("watcher: path is not being watched")
	ErrPathNotExist    = errors.New("watcher: path does not exist")
)

// Op represents the type of file system operation.
type Op uint32

const (
	// OpCreate indicates a file was created.
	OpCreate Op = 1 << iota
	// OpWrite indicates a file was written to.
	OpWrite
	// OpRemove indicates a file was removed.
	OpRemove
	// OpRename indicates a file was renamed.
	OpRename
)

var opNames = []struct {
	op   Op
	name string
}{
	{OpCreate, "CREATE"},
	{OpWrite, "WRITE"},
	{OpRemove, "REMOVE"},
	{OpRename, "RENAME"},
}

// String returns a human-readable representation of the operation, with
// merged operations joined by "|".
func (op Op) String() string {
	var names []string
	for _, n := range opNames {
		if op.Has(n.op) {
			names = append(names, n.name)
		}
	}
	if len(names) == 0 {
		return "UNKNOWN"
	}
	return strings.Join(names, "|")
}

// Has returns true if the operation includes the given op.
func (op Op) Has(o Op) bool {
	return op&o == o
}

// Event represents a change to a watched file.
type Event struct {
	// Path is the absolute path of the affected file.
	Path string

	// Op is the operation that occurred.
	Op Op

	// Timestamp is when the event occurred.
	Timestamp time.Time
}

// Watcher monitors file system changes.
type Watcher interface {
	// Watch starts watching a directory or file.
	Watch(path string) error

	// Unwatch stops watching a path.
	Unwatch(path string) error

	// Events returns the channel of change events. It is closed by Close.
	Events() <-chan Event

	// Errors returns the channel of watcher errors. It is closed by Close.
	Errors() <-chan error

	// Close stops the watcher and releases resources.
	Close() error
}

// MatchPatterns returns a filter accepting events whose path matches one of
// the filepath.Match patterns. Relative patterns are made absolute first.
func MatchPatterns(patterns ...string) func(Event) bool {
	abs := make([]string, 0, len(patterns))
	for _, p := range patterns {
		if a, err := filepath.Abs(p); err == nil {
			abs = append(abs, a)
		}
	}
	return func(e Event) bool {
		for _, p := range abs {
			if ok, _ := filepath.Match(p, e.Path); ok {
				return true
			}
		}
		return false
	}
}

// Dirs returns the distinct directories holding the given path patterns, in
// first-seen order. These are the paths to Watch for the patterns.
func Dirs(patterns ...string) []string {
	seen := make(map[string]bool, len(patterns))
	var dirs []string
	for _, p := range patterns {
		dir, err := filepath.Abs(filepath.Dir(p))
		if err != nil || seen[dir] {
			continue
		}
		seen[dir] = true
		dirs = append(dirs, dir)
	}
	return dirs
}
