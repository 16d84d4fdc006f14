// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package resource

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/gogpu/gputypes"

	"github.com/gogpu/workgraph/gpucore"
	"github.com/gogpu/workgraph/internal/logging"
)

// Allocator creates buffers on one device.
type Allocator struct {
	dev gpucore.Device
}

// NewAllocator returns an allocator for dev.
func NewAllocator(dev gpucore.Device) *Allocator {
	return &Allocator{dev: dev}
}

// heapUsage lists the usages each heap can serve.
var heapUsage = map[gpucore.HeapType]gputypes.BufferUsage{
	gpucore.HeapTypeDefault:  gputypes.BufferUsageStorage | gputypes.BufferUsageCopySrc | gputypes.BufferUsageCopyDst,
	gpucore.HeapTypeUpload:   gputypes.BufferUsageMapWrite | gputypes.BufferUsageCopySrc,
	gpucore.HeapTypeReadback: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
}

// CreateBuffer creates a committed buffer of size bytes on heap.
//
// Storage usage makes the buffer writable through unordered access.
// Device-local and upload buffers start in the common state, readback
// buffers in the copy destination state. Every failure wraps
// gpucore.ErrAllocation.
func (a *Allocator) CreateBuffer(label string, size uint64, heap gpucore.HeapType, usage gputypes.BufferUsage) (*Buffer, error) {
	if size == 0 || size%gpucore.BufferAlignment != 0 {
		return nil, fmt.Errorf("%w: %q: size %d is not a positive multiple of %d",
			gpucore.ErrAllocation, label, size, gpucore.BufferAlignment)
	}
	allowed, ok := heapUsage[heap]
	if !ok {
		return nil, fmt.Errorf("%w: %q: unknown heap %v", gpucore.ErrAllocation, label, heap)
	}
	if usage == 0 {
		return nil, fmt.Errorf("%w: %q: no usage", gpucore.ErrAllocation, label)
	}
	if extra := usage &^ allowed; extra != 0 {
		return nil, fmt.Errorf("%w: %q: %v heap cannot serve usage %#x",
			gpucore.ErrAllocation, label, heap, uint64(extra))
	}

	var flags gpucore.ResourceFlags
	if usage.Contains(gputypes.BufferUsageStorage) {
		flags |= gpucore.ResourceFlagAllowUnorderedAccess
	}
	state := gpucore.ResourceStateCommon
	if heap == gpucore.HeapTypeReadback {
		state = gpucore.ResourceStateCopyDest
	}

	res, err := a.dev.CreateCommittedResource(heap, &gpucore.ResourceDesc{Label: label, Width: size, Flags: flags}, state)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", gpucore.ErrAllocation, label, err)
	}
	logging.L().Debug("resource: buffer created",
		"label", label,
		"heap", heap.String(),
		"size", humanize.IBytes(size),
		"state", state.String())
	return &Buffer{res: res, label: label, size: size, heap: heap, usage: usage}, nil
}
