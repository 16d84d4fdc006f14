// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpucore

import "errors"

// Error taxonomy. Every failure surfaced by the runtime wraps exactly one of
// these so callers can classify it with errors.Is.
var (
	// ErrDeviceInit is returned when capability negotiation or the creation
	// of the device, queue, fence, allocator, or command list fails.
	ErrDeviceInit = errors.New("gpucore: device initialization failed")

	// ErrCompile is returned when source code could not be turned into bytecode.
	ErrCompile = errors.New("gpucore: shader compilation failed")

	// ErrSignatureBuild is returned when a binding signature is malformed or
	// rejected by the device.
	ErrSignatureBuild = errors.New("gpucore: binding signature build failed")

	// ErrProgramBuild is returned when the device rejects a work graph program.
	ErrProgramBuild = errors.New("gpucore: work graph program build failed")

	// ErrAllocation is returned when a GPU buffer cannot be created.
	ErrAllocation = errors.New("gpucore: allocation failed")

	// ErrDeviceLost is returned when a synchronous wait did not observe
	// completion. The device must be assumed unusable.
	ErrDeviceLost = errors.New("gpucore: device lost")

	// ErrNotBuilt is returned when a program query is made before the
	// program was successfully built.
	ErrNotBuilt = errors.New("gpucore: program not built")
)

// API errors returned by backends.
var (
	// ErrInvalidArgument is returned for malformed descriptors or parameters.
	ErrInvalidArgument = errors.New("gpucore: invalid argument")

	// ErrForeignObject is returned when an object created by one device is
	// passed to another.
	ErrForeignObject = errors.New("gpucore: object belongs to a different device")

	// ErrOutOfMemory is returned when the device cannot satisfy an allocation.
	ErrOutOfMemory = errors.New("gpucore: out of device memory")

	// ErrCommandListClosed is returned when recording into a closed list.
	ErrCommandListClosed = errors.New("gpucore: command list is closed")

	// ErrCommandListOpen is returned when an open list is executed or reset.
	ErrCommandListOpen = errors.New("gpucore: command list is still open")

	// ErrAllocatorInUse is returned when an allocator is reset while the GPU
	// may still be executing commands recorded into it.
	ErrAllocatorInUse = errors.New("gpucore: command allocator still in use by the GPU")

	// ErrNotMappable is returned when mapping a resource whose heap is not
	// CPU-visible.
	ErrNotMappable = errors.New("gpucore: resource heap is not CPU visible")

	// ErrUnknownProgram is returned when a state object has no program with
	// the requested name.
	ErrUnknownProgram = errors.New("gpucore: unknown program name")

	// ErrInvalidRootSignature is returned for malformed root signatures or blobs.
	ErrInvalidRootSignature = errors.New("gpucore: invalid root signature")

	// ErrFeatureNotSupported is returned when a backend cannot enable a
	// requested experimental feature (for example outside developer mode).
	ErrFeatureNotSupported = errors.New("gpucore: experimental feature not supported")

	// ErrFeaturesSealed is returned when new experimental features are
	// requested after a device was created.
	ErrFeaturesSealed = errors.New("gpucore: experimental features are sealed after device creation")

	// ErrFeatureNotEnabled is returned when an operation needs an
	// experimental feature that was not negotiated.
	ErrFeatureNotEnabled = errors.New("gpucore: experimental feature not enabled")
)
