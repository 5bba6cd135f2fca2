// Package logging holds the logger shared by the ctburnin packages.
package logging

import (
	"log/slog"
	"sync/atomic"
)

// loggerPtr stores the active logger. By default all output is discarded.
var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(newNopLogger())
}

func newNopLogger() *slog.Logger { return slog.New(slog.DiscardHandler) }

// SetLogger configures the logger used by every ctburnin package.
// Pass nil to restore the silent default.
//
// Levels:
//   - [slog.LevelDebug]: per-slice and per-ROI detail
//   - [slog.LevelInfo]: run lifecycle (series loaded, run written)
//   - [slog.LevelWarn]: tolerated input problems (duplicate slice positions,
//     structure set referencing another study)
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)
}

// Logger returns the current logger.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}
