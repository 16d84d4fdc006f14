// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package debug provides a validation layer for gpucore devices.
//
// The layer wraps a device and checks the command stream before it reaches
// the driver: resource state transitions, implicit promotion out of the
// common state, root signature and program ordering, backing memory
// initialization, and Map/Unmap pairing. Problems are reported as
// Violation values to an optional message callback and the package logger.
// A list that recorded an error-severity violation fails Close and cannot
// be executed.
//
// Enable the layer before the device is created:
//
//	b := debug.New(software.New(), debug.WithMessageFunc(func(v debug.Violation) {
//		log.Println(v)
//	}))
//	dev, err := b.CreateDevice()
//
// Resource states persist across command lists. Buffers do not decay back
// to the common state after execution.
package debug
