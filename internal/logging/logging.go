// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package logging holds the logger shared by every workgraph package.
//
// The root package exposes it as workgraph.SetLogger and workgraph.Logger.
// Sub-packages call L() so they never need to import the root package.
package logging

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// nopHandler is a slog.Handler that silently discards all log records.
// Enabled returns false so callers skip message formatting entirely.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

// Nop returns a logger that discards all output.
func Nop() *slog.Logger { return slog.New(nopHandler{}) }

// loggerPtr stores the active logger. Accessed atomically so that Set can be
// called concurrently with logging from any goroutine, including the
// software queue worker.
var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(Nop())
}

// L returns the current logger.
func L() *slog.Logger { return loggerPtr.Load() }

// Set replaces the current logger. Nil restores the silent default.
func Set(l *slog.Logger) {
	if l == nil {
		l = Nop()
	}
	loggerPtr.Store(l)
}
