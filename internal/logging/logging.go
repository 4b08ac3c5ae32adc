// Package logging configures structured logging for the engine and the TUI
// client. All loggers built here share one process-wide level var so the
// set-log-level operation and pushed loglevel events retarget every logger
// at runtime.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Level is the minimum severity that will be emitted.
type Level = slog.Level

const (
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
)

// Format selects the output encoding.
type Format int

const (
	// FormatText outputs human-readable text logs.
	FormatText Format = iota
	// FormatJSON outputs JSON-structured logs.
	FormatJSON
)

// Options configure New.
type Options struct {
	Level  Level
	Format Format

	// Output is "stderr", "stdout", or a file path. The TUI binary must log
	// to a file so log lines do not fight the terminal renderer.
	Output string

	// Component tags every record, e.g. "engine" or "tui".
	Component string
}

var level slog.LevelVar

// New builds a logger honoring opts, wired to the shared level var. The
// returned closer releases the log file when Output named one.
func New(opts Options) (*slog.Logger, func() error, error) {
	level.Set(opts.Level)

	var w io.Writer
	closer := func() error { return nil }
	switch opts.Output {
	case "", "stderr":
		w = os.Stderr
	case "stdout":
		w = os.Stdout
	default:
		if err := os.MkdirAll(filepath.Dir(opts.Output), 0o755); err != nil {
			return nil, nil, fmt.Errorf("create log dir: %w", err)
		}
		f, err := os.OpenFile(opts.Output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		w = f
		closer = f.Close
	}

	hopts := &slog.HandlerOptions{Level: &level}
	var handler slog.Handler
	switch opts.Format {
	case FormatJSON:
		handler = slog.NewJSONHandler(w, hopts)
	default:
		handler = slog.NewTextHandler(w, hopts)
	}
	if opts.Component != "" {
		handler = handler.WithAttrs([]slog.Attr{slog.String("component", opts.Component)})
	}
	return slog.New(handler), closer, nil
}

// SetLevel retargets every logger built by New.
func SetLevel(l Level) {
	level.Set(l)
}

// CurrentLevel reports the active minimum level.
func CurrentLevel() Level {
	return level.Level()
}

// SetLevelName parses and applies a level by name. Unknown names are an
// error and leave the level unchanged.
func SetLevelName(name string) error {
	l, err := ParseLevel(name)
	if err != nil {
		return err
	}
	level.Set(l)
	return nil
}

// ParseLevel parses a string into a log level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return LevelDebug, nil
	case "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level: %s", s)
	}
}

// LevelString returns the wire name of a log level.
func LevelString(l Level) string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}
