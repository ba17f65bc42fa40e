// Package logging builds the engine's structured logger, following the
// teacher's daemon logging pattern: a single slog.Logger threaded
// explicitly through daemon code (never a package-level global), backed
// by a lumberjack-rotated file when running as a daemon.
package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures the logger (spec SPEC_FULL.md §A.1).
type Options struct {
	Level   slog.Level
	Dir     string // empty means log to stderr only
	MaxSize int    // megabytes, passed straight to lumberjack
	MaxAge  int    // days
	Backups int
}

// New builds a Logger writing JSON lines to stderr when Dir is empty, or
// only to a rotated iomgrd.log file in Dir when set.
func New(opts Options) *slog.Logger {
	var w io.Writer = os.Stderr
	if opts.Dir != "" {
		w = &lumberjack.Logger{
			Filename:   filepath.Join(opts.Dir, "iomgrd.log"),
			MaxSize:    firstNonZero(opts.MaxSize, 100),
			MaxAge:     firstNonZero(opts.MaxAge, 28),
			MaxBackups: firstNonZero(opts.Backups, 5),
			Compress:   true,
		}
	}
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: opts.Level})
	return slog.New(handler)
}

func firstNonZero(v, def int) int {
	if v != 0 {
		return v
	}
	return def
}

// WithComponent returns a logger tagged with a component field, the way
// the engine labels log lines from Instance/Database/Table/daemon
// separately (spec §7: every logged IO/Internal/Fatal error carries
// enough context to find it again).
func WithComponent(base *slog.Logger, component string) *slog.Logger {
	return base.With("component", component)
}

// WithCorrelation tags a logger with the correlation UUID an ioerr.Error
// carries, so the operator can grep the log for the id echoed back to a
// client in a generic "internal error, see log" response.
func WithCorrelation(base *slog.Logger, uuid string) *slog.Logger {
	return base.With("correlation_id", uuid)
}
