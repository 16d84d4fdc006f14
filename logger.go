// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package workgraph

import (
	"log/slog"

	"github.com/gogpu/workgraph/internal/logging"
)

// SetLogger configures the logger for workgraph and all its sub-packages.
// By default, workgraph produces no log output. Call SetLogger to enable
// logging.
//
// SetLogger is safe for concurrent use: it stores the new logger atomically.
// Pass nil to disable logging (restore default silent behavior).
//
// Log levels used by workgraph:
//   - [slog.LevelDebug]: command recording, buffer sizes, fence values
//   - [slog.LevelInfo]: lifecycle events (device created, program built)
//   - [slog.LevelWarn]: device removal, debug layer messages, release problems
//
// Example:
//
//	// Enable debug-level logging for full diagnostics:
//	workgraph.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	logging.Set(l)
}

// Logger returns the current logger used by workgraph.
//
// Logger is safe for concurrent use.
func Logger() *slog.Logger {
	return logging.L()
}
