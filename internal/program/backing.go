// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package program

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/gogpu/gputypes"

	"github.com/gogpu/workgraph/gpucore"
	"github.com/gogpu/workgraph/internal/logging"
	"github.com/gogpu/workgraph/internal/resource"
)

// BackingMemory is the device-local scratch buffer a work graph scheduler
// runs in. It remembers which programs it was initialized for.
//
// A graph dispatched on backing memory must ask for initialization the
// first time the memory is used by that program. Later dispatches reuse the
// contents left by the previous one.
type BackingMemory struct {
	buf         *resource.Buffer
	req         gpucore.WorkGraphMemoryRequirements
	initialized map[gpucore.ProgramIdentifier]bool
}

// AllocateBackingMemory allocates the maximum backing size of the named
// work graph, rounded up to the size granularity, as device-local memory
// the graph can write. A graph that needs no memory gets an empty range.
func (p *Program) AllocateBackingMemory(name string, alloc *resource.Allocator) (*BackingMemory, error) {
	g, err := p.lookup(name)
	if err != nil {
		return nil, err
	}
	m := &BackingMemory{req: g.req, initialized: make(map[gpucore.ProgramIdentifier]bool)}
	size := roundUp(roundUp(g.req.MaxSizeInBytes, g.req.SizeGranularityInBytes), gpucore.BufferAlignment)
	if size == 0 {
		logging.L().Debug("program: work graph needs no backing memory", "program", name)
		return m, nil
	}

	m.buf, err = alloc.CreateBuffer(name+" backing memory", size, gpucore.HeapTypeDefault, gputypes.BufferUsageStorage)
	if err != nil {
		return nil, err
	}
	logging.L().Info("program: backing memory allocated",
		"program", name,
		"size", humanize.IBytes(size),
		"va", fmt.Sprintf("%#x", uint64(m.buf.GPUVirtualAddress())))
	return m, nil
}

func roundUp(n, granularity uint64) uint64 {
	if granularity == 0 {
		return n
	}
	return (n + granularity - 1) / granularity * granularity
}

// Buffer returns the underlying buffer, or nil when the graph needs none.
func (m *BackingMemory) Buffer() *resource.Buffer { return m.buf }

// Requirement returns the requirement the memory was sized for.
func (m *BackingMemory) Requirement() gpucore.WorkGraphMemoryRequirements { return m.req }

// Range returns the device address range to pass to SetProgram.
func (m *BackingMemory) Range() gpucore.GPUVirtualAddressRange {
	if m.buf == nil {
		return gpucore.GPUVirtualAddressRange{}
	}
	return m.buf.Range()
}

// Initialized reports whether the memory holds valid scheduler state for id.
func (m *BackingMemory) Initialized(id gpucore.ProgramIdentifier) bool {
	return m.initialized[id]
}

// SetWorkGraph returns the SetProgram payload for id. The initialize flag is
// set until MarkInitialized confirms a dispatch on id retired.
func (m *BackingMemory) SetWorkGraph(id gpucore.ProgramIdentifier) gpucore.SetWorkGraphDesc {
	flags := gpucore.SetWorkGraphFlagNone
	if !m.initialized[id] {
		flags = gpucore.SetWorkGraphFlagInitialize
	}
	return gpucore.SetWorkGraphDesc{
		ProgramIdentifier: id,
		Flags:             flags,
		BackingMemory:     m.Range(),
	}
}

// MarkInitialized records that a dispatch on id retired. Another program's
// dispatch overwrites the scheduler state, so only id stays valid.
func (m *BackingMemory) MarkInitialized(id gpucore.ProgramIdentifier) {
	clear(m.initialized)
	m.initialized[id] = true
}

// Invalidate forgets every initialization, forcing the next dispatch to
// initialize again.
func (m *BackingMemory) Invalidate() {
	clear(m.initialized)
}

// Release frees the buffer.
func (m *BackingMemory) Release() {
	if m.buf != nil {
		m.buf.Release()
	}
	clear(m.initialized)
}
