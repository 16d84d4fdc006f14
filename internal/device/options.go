// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package device

import (
	"github.com/gogpu/workgraph/backend/debug"
	"github.com/gogpu/workgraph/gpucore"
)

// Option configures a Context.
type Option func(*options)

type options struct {
	debugLayer bool
	debugOpts  []debug.Option
	features   []gpucore.Feature
	label      string
}

func defaultOptions() options {
	return options{
		features: gpucore.WorkGraphFeatures(),
		label:    "workgraph",
	}
}

// WithDebugLayer enables the validation layer before the device is created.
func WithDebugLayer(opts ...debug.Option) Option {
	return func(o *options) {
		o.debugLayer = true
		o.debugOpts = opts
	}
}

// WithFeatures replaces the experimental features negotiated before device
// creation. The default is gpucore.WorkGraphFeatures.
func WithFeatures(features ...gpucore.Feature) Option {
	return func(o *options) {
		o.features = features
	}
}

// WithLabel sets the debug label of the command queue.
func WithLabel(label string) Option {
	return func(o *options) {
		o.label = label
	}
}
