// Package logging builds the application logger: a logr.Logger backed by a
// log/slog handler.
//
// logr verbosity maps onto slog levels: V(0) is info, V(1) debug and V(2)
// trace, all visible at the "debug" level.
package logging

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/go-logr/logr"
)

// ErrUnknownLevel and ErrUnknownFormat report unusable options.
var (
	ErrUnknownLevel  = errors.New("logging: unknown level")
	ErrUnknownFormat = errors.New("logging: unknown format")
)

// Verbosity levels for logger.V.
const (
	DEBUG = 1
	TRACE = 2
)

// Options configures New.
type Options struct {
	// Level is one of debug, info, warn, error. Empty means info.
	Level string
	// Format is text or json. Empty means text.
	Format string
	// Output receives log lines. Nil means stderr.
	Output io.Writer
}

// ParseLevel maps a level name to a slog level.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return slog.Level(-TRACE), nil
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("%w: %q", ErrUnknownLevel, level)
	}
}

// New builds a logger from opts.
func New(opts Options) (logr.Logger, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return logr.Discard(), err
	}

	w := opts.Output
	if w == nil {
		w = os.Stderr
	}
	hopts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch strings.ToLower(opts.Format) {
	case "", "text":
		handler = slog.NewTextHandler(w, hopts)
	case "json":
		handler = slog.NewJSONHandler(w, hopts)
	default:
		return logr.Discard(), fmt.Errorf("%w: %q", ErrUnknownFormat, opts.Format)
	}

	return logr.FromSlogHandler(handler), nil
}
