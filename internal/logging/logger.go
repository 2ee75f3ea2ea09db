// Package logging holds the process logger of the bridge.
//
// The bridge runs inside a foreign host process, so it only writes to
// stderr and stays quiet (warn) unless COLBRIDGE_LOG_LEVEL says otherwise.
package logging

import (
	"io"
	"log/slog"
	"os"
	"sync/atomic"
)

var logger atomic.Pointer[slog.Logger]

func init() {
	logger.Store(New(os.Stderr, slog.LevelWarn))
}

// New builds a text logger writing to w at the given level.
func New(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// SetLogger replaces the process logger.
func SetLogger(l *slog.Logger) {
	if l != nil {
		logger.Store(l)
	}
}

// GetLogger returns the process logger.
func GetLogger() *slog.Logger {
	return logger.Load()
}

// WithComponent creates a logger with component context.
//
// Example:
//
//	log := logging.WithComponent("rt")
//	log.Debug("executor started", "workers", n)
func WithComponent(component string) *slog.Logger {
	return GetLogger().With("component", component)
}

// WithPath creates a logger scoped to one file location.
func WithPath(component, path string) *slog.Logger {
	return GetLogger().With("component", component, "path", path)
}

// WithStream creates a logger scoped to one streaming cursor.
func WithStream(path, streamID string) *slog.Logger {
	return GetLogger().With("component", "stream", "path", path, "stream", streamID)
}
