// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package software

import "errors"

// Package errors for the software backend.
var (
	// ErrDeviceRemoved is the removal reason reported after RemoveDevice.
	ErrDeviceRemoved = errors.New("software: device removed")

	// ErrReleased is returned when using an object after Release.
	ErrReleased = errors.New("software: object already released")

	// ErrNoKernel is returned when a library exports a node entry point that
	// has no registered kernel.
	ErrNoKernel = errors.New("software: no node kernel registered")

	// ErrBackingMemory is returned when a graph is dispatched on backing
	// memory that was not initialized for its program.
	ErrBackingMemory = errors.New("software: backing memory not initialized for program")

	// ErrQueueOverflow is returned when a node queue in backing memory is full.
	ErrQueueOverflow = errors.New("software: node queue overflow")

	// ErrEmitLimit is returned when a thread group emits more records than
	// its output declares.
	ErrEmitLimit = errors.New("software: output record limit exceeded")

	// ErrOutOfBounds is returned when a kernel accesses a buffer out of range.
	ErrOutOfBounds = errors.New("software: buffer access out of bounds")
)
