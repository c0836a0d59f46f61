package framing

import (
	"log/slog"

	"github.com/gogpu/framing/internal/logging"
)

// SetLogger configures the logger for framing and all its sub-packages.
// By default, framing produces no log output. Call SetLogger to enable logging.
//
// SetLogger is safe for concurrent use. Pass nil to restore the silent default.
//
// Log levels used by framing:
//   - [slog.LevelDebug]: uploads, readbacks, buffer lock refreshes
//   - [slog.LevelInfo]: device lifecycle (adapter selected)
//   - [slog.LevelWarn]: GPU work that could not be waited for on release
//
// Example:
//
//	framing.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	logging.Set(l)
}

// Logger returns the current logger used by framing.
//
// Logger is safe for concurrent use.
func Logger() *slog.Logger {
	return logging.Logger()
}
