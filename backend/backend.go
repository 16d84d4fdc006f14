// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package backend

import (
	"errors"

	"github.com/gogpu/workgraph/gpucore"
)

// Common backend errors.
var (
	// ErrBackendNotAvailable is returned when a requested backend is not available.
	ErrBackendNotAvailable = errors.New("backend: not available")

	// ErrNotInitialized is returned when operations are called before Init.
	ErrNotInitialized = errors.New("backend: not initialized")
)

// Backend name constants.
const (
	// BackendSoftware is the name of the CPU work graph emulator.
	BackendSoftware = "software"
)

// DeviceBackend is the interface for device backends.
// It abstracts the device implementation so the runtime can run the same
// work graph on any backend that speaks the gpucore API.
//
// Backends must be registered via Register() and are selected via
// Get() or Default().
type DeviceBackend interface {
	// Name returns the backend identifier (e.g., "software").
	Name() string

	// Init initializes the backend.
	// This should be called before any device is created.
	Init() error

	// Close releases all backend resources.
	// Devices created by the backend must be released first.
	Close()

	// EnableExperimentalFeatures turns on experimental features for the
	// process. Use gpucore.EnableExperimentalFeatures rather than calling
	// it directly so the process-wide state stays consistent.
	EnableExperimentalFeatures(features []gpucore.Feature) error

	// CreateDevice creates a device on the backend's adapter.
	CreateDevice() (gpucore.Device, error)
}
