// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package resource creates GPU buffers with explicit heap placement.
package resource

import (
	"errors"
	"fmt"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/gogpu/gputypes"

	"github.com/gogpu/workgraph/gpucore"
	"github.com/gogpu/workgraph/internal/logging"
)

// Buffer errors.
var (
	// ErrBufferReleased is returned when operating on a released buffer.
	ErrBufferReleased = errors.New("resource: buffer has been released")

	// ErrBufferAlreadyMapped is returned when mapping a mapped buffer.
	ErrBufferAlreadyMapped = errors.New("resource: buffer is already mapped")

	// ErrBufferNotMapped is returned when unmapping a buffer that is not mapped.
	ErrBufferNotMapped = errors.New("resource: buffer is not mapped")

	// ErrMapUsageMismatch is returned when mapping a buffer without MapRead
	// or MapWrite usage.
	ErrMapUsageMismatch = errors.New("resource: map requires MapRead or MapWrite usage")
)

// BufferMapState represents the mapping state of a buffer.
type BufferMapState int

const (
	// BufferMapStateUnmapped means the buffer is not mapped.
	BufferMapStateUnmapped BufferMapState = iota
	// BufferMapStateMapped means the buffer is mapped.
	BufferMapStateMapped
)

// String returns the string representation of BufferMapState.
func (s BufferMapState) String() string {
	switch s {
	case BufferMapStateUnmapped:
		return "Unmapped"
	case BufferMapStateMapped:
		return "Mapped"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// Buffer is a committed GPU buffer.
//
// Buffer is safe for concurrent use.
type Buffer struct {
	res   gpucore.Resource
	label string
	size  uint64
	heap  gpucore.HeapType
	usage gputypes.BufferUsage

	mu       sync.Mutex
	mapState BufferMapState
	released bool
}

// Label returns the debug label.
func (b *Buffer) Label() string { return b.label }

// Size returns the buffer size in bytes.
func (b *Buffer) Size() uint64 { return b.size }

// Heap returns where the buffer lives.
func (b *Buffer) Heap() gpucore.HeapType { return b.heap }

// Usage returns the usage flags the buffer was created with.
func (b *Buffer) Usage() gputypes.BufferUsage { return b.usage }

// Resource returns the underlying device resource.
func (b *Buffer) Resource() gpucore.Resource { return b.res }

// GPUVirtualAddress returns the device address. It is only meaningful for
// device-local buffers and is zero otherwise.
func (b *Buffer) GPUVirtualAddress() gpucore.GPUVirtualAddress {
	if b.heap != gpucore.HeapTypeDefault {
		return 0
	}
	return b.res.GPUVirtualAddress()
}

// Range returns the whole buffer as a GPU address range.
func (b *Buffer) Range() gpucore.GPUVirtualAddressRange {
	return gpucore.GPUVirtualAddressRange{StartAddress: b.GPUVirtualAddress(), SizeInBytes: b.size}
}

// MapState returns the current mapping state.
func (b *Buffer) MapState() BufferMapState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.mapState
}

// Map returns the CPU view of the buffer. Every successful Map must be
// paired with Unmap. The slice is invalid after Unmap.
func (b *Buffer) Map() ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.released {
		return nil, ErrBufferReleased
	}
	if b.mapState == BufferMapStateMapped {
		return nil, ErrBufferAlreadyMapped
	}
	if !b.usage.Contains(gputypes.BufferUsageMapRead) && !b.usage.Contains(gputypes.BufferUsageMapWrite) {
		return nil, ErrMapUsageMismatch
	}
	data, err := b.res.Map()
	if err != nil {
		return nil, fmt.Errorf("resource: map %q: %w", b.label, err)
	}
	b.mapState = BufferMapStateMapped
	return data, nil
}

// Unmap releases the CPU view obtained by Map.
func (b *Buffer) Unmap() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.released {
		return ErrBufferReleased
	}
	if b.mapState != BufferMapStateMapped {
		return ErrBufferNotMapped
	}
	b.res.Unmap()
	b.mapState = BufferMapStateUnmapped
	return nil
}

// Release destroys the buffer. A mapped buffer is unmapped first.
// Release is idempotent.
func (b *Buffer) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.released {
		return
	}
	if b.mapState == BufferMapStateMapped {
		logging.L().Warn("resource: releasing mapped buffer", "label", b.label)
		b.res.Unmap()
		b.mapState = BufferMapStateUnmapped
	}
	b.res.Release()
	b.released = true
	logging.L().Debug("resource: buffer released", "label", b.label, "size", humanize.IBytes(b.size))
}
