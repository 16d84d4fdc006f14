// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package workgraph

import (
	"github.com/gogpu/workgraph/backend"
	"github.com/gogpu/workgraph/backend/debug"
)

// Defaults of a run.
const (
	// DefaultResultWords is the size of the result buffer in 32-bit words.
	DefaultResultWords = 65536

	// DefaultReadWords is how many result words a run returns.
	DefaultReadWords = 64
)

// Option configures a Runner.
//
// Example:
//
//	r := workgraph.NewRunner(
//	    workgraph.WithBackend("software"),
//	    workgraph.WithDebugLayer(true),
//	)
type Option func(*options)

type options struct {
	backendName string
	backend     backend.DeviceBackend
	debugLayer  bool
	debugOpts   []debug.Option
	profile     string
	resultWords int
	readWords   int
}

func defaultOptions() options {
	return options{
		resultWords: DefaultResultWords,
		readWords:   DefaultReadWords,
	}
}

// WithBackend selects a registered backend by name. Empty selects the
// default backend. It replaces an instance set with WithBackendInstance.
func WithBackend(name string) Option {
	return func(o *options) {
		o.backendName = name
		o.backend = nil
	}
}

// WithBackendInstance uses b instead of a registry lookup. Runner
// initializes it.
func WithBackendInstance(b backend.DeviceBackend) Option {
	return func(o *options) {
		o.backend = b
	}
}

// WithDebugLayer enables the validation layer before the device is created.
func WithDebugLayer(enabled bool, opts ...debug.Option) Option {
	return func(o *options) {
		o.debugLayer = enabled
		o.debugOpts = opts
	}
}

// WithProfile sets the target profile. Empty uses the compiler default.
func WithProfile(profile string) Option {
	return func(o *options) {
		o.profile = profile
	}
}

// WithResultWords sets the result buffer size in 32-bit words.
func WithResultWords(n int) Option {
	return func(o *options) {
		o.resultWords = n
	}
}

// WithReadWords sets how many leading result words Run returns. It is
// clamped to the result size.
func WithReadWords(n int) Option {
	return func(o *options) {
		o.readWords = n
	}
}
