// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package debug

import (
	"github.com/gogpu/workgraph/gpucore"
)

// CommandList validates commands and forwards them to the driver list.
//
// States and backing memory initializations recorded in a list become the
// device's view only when the list is executed.
type CommandList struct {
	dev   *Device
	inner gpucore.CommandList

	violation *Violation

	states   map[*Resource]gpucore.ResourceState
	inits    map[backingKey]bool
	rootSig  gpucore.RootSignature
	rootUAVs map[uint32]*Resource
	program  *gpucore.SetWorkGraphDesc
	backing  *Resource
}

var _ gpucore.CommandList = (*CommandList)(nil)

func (l *CommandList) reset() {
	l.violation = nil
	l.states = make(map[*Resource]gpucore.ResourceState)
	l.inits = make(map[backingKey]bool)
	l.rootSig = nil
	l.rootUAVs = make(map[uint32]*Resource)
	l.program = nil
	l.backing = nil
}

// report records a violation against the list. The first error-severity
// violation is returned by Close.
func (l *CommandList) report(sev Severity, cmd, format string, args ...any) {
	v := l.dev.report(sev, cmd, format, args...)
	if sev == SeverityError && l.violation == nil {
		l.violation = v
	}
}

// state returns the state r is in at this point of the list.
func (l *CommandList) state(r *Resource) gpucore.ResourceState {
	if s, ok := l.states[r]; ok {
		return s
	}
	l.dev.mu.Lock()
	defer l.dev.mu.Unlock()
	return r.state
}

// require checks r can be used in want, promoting it out of Common.
func (l *CommandList) require(cmd string, r *Resource, want gpucore.ResourceState) {
	switch s := l.state(r); s {
	case want:
	case gpucore.ResourceStateCommon:
		l.states[r] = want
	default:
		l.report(SeverityError, cmd, "resource %q is in state %v, want %v (missing barrier?)", r.label(), s, want)
	}
}

// Close implements gpucore.CommandList. A driver error wins over a
// validation error.
func (l *CommandList) Close() error {
	if err := l.inner.Close(); err != nil {
		return err
	}
	if l.violation != nil {
		return l.violation
	}
	return nil
}

// Reset implements gpucore.CommandList.
func (l *CommandList) Reset(allocator gpucore.CommandAllocator) error {
	if err := l.inner.Reset(allocator); err != nil {
		return err
	}
	l.reset()
	return nil
}

// SetComputeRootSignature implements gpucore.CommandList.
func (l *CommandList) SetComputeRootSignature(sig gpucore.RootSignature) {
	if sig == nil {
		l.report(SeverityError, "SetComputeRootSignature", "nil root signature")
	}
	l.rootSig = sig
	l.rootUAVs = make(map[uint32]*Resource)
	l.inner.SetComputeRootSignature(sig)
}

// SetComputeRootUnorderedAccessView implements gpucore.CommandList.
func (l *CommandList) SetComputeRootUnorderedAccessView(rootParameterIndex uint32, address gpucore.GPUVirtualAddress) {
	const cmd = "SetComputeRootUnorderedAccessView"
	switch {
	case l.rootSig == nil:
		l.report(SeverityError, cmd, "no root signature set")
	case int(rootParameterIndex) >= len(l.rootSig.Desc().Parameters):
		l.report(SeverityError, cmd, "root parameter %d is out of range", rootParameterIndex)
	default:
		r := l.dev.resourceAt(address)
		if r == nil {
			l.report(SeverityError, cmd, "address %#x is not inside a device-local resource", uint64(address))
			break
		}
		if !r.Desc().Flags.Contains(gpucore.ResourceFlagAllowUnorderedAccess) {
			l.report(SeverityError, cmd, "resource %q does not allow unordered access", r.label())
		}
		l.rootUAVs[rootParameterIndex] = r
	}
	l.inner.SetComputeRootUnorderedAccessView(rootParameterIndex, address)
}

// SetProgram implements gpucore.CommandList.
func (l *CommandList) SetProgram(desc *gpucore.SetProgramDesc) {
	const cmd = "SetProgram"
	if desc == nil {
		l.report(SeverityError, cmd, "nil descriptor")
		l.inner.SetProgram(desc)
		return
	}
	wg := desc.WorkGraph
	l.program = &wg
	l.backing = l.dev.resourceAt(wg.BackingMemory.StartAddress)
	if l.backing == nil {
		l.report(SeverityError, cmd, "backing memory %#x is not inside a device-local resource",
			uint64(wg.BackingMemory.StartAddress))
	}
	if wg.Flags&gpucore.SetWorkGraphFlagInitialize != 0 {
		key := backingKey{wg.ProgramIdentifier, wg.BackingMemory.StartAddress}
		l.dev.mu.Lock()
		again := l.dev.initialized[key]
		l.dev.mu.Unlock()
		if again || l.inits[key] {
			l.report(SeverityWarning, cmd, "backing memory %#x is initialized again for program %s",
				uint64(wg.BackingMemory.StartAddress), wg.ProgramIdentifier)
		}
		l.inits[key] = true
	}
	l.inner.SetProgram(desc)
}

// DispatchGraph implements gpucore.CommandList.
func (l *CommandList) DispatchGraph(desc *gpucore.DispatchGraphDesc) {
	const cmd = "DispatchGraph"
	switch {
	case l.program == nil:
		l.report(SeverityError, cmd, "no program set")
	default:
		if l.rootSig == nil {
			l.report(SeverityWarning, cmd, "no root signature set")
		}
		key := backingKey{l.program.ProgramIdentifier, l.program.BackingMemory.StartAddress}
		l.dev.mu.Lock()
		initialized := l.dev.initialized[key]
		l.dev.mu.Unlock()
		if !initialized && !l.inits[key] {
			l.report(SeverityError, cmd, "backing memory %#x was never initialized for program %s",
				uint64(key.start), key.program)
		}
		if l.backing != nil {
			l.require(cmd, l.backing, gpucore.ResourceStateUnorderedAccess)
		}
		for _, r := range l.rootUAVs {
			l.require(cmd, r, gpucore.ResourceStateUnorderedAccess)
		}
	}
	if desc != nil && desc.Mode == gpucore.DispatchModeNodeCPUInput && desc.NodeCPUInput.NumRecords == 0 {
		l.report(SeverityWarning, cmd, "dispatch with no input records")
	}
	l.inner.DispatchGraph(desc)
}

// ResourceBarrier implements gpucore.CommandList.
func (l *CommandList) ResourceBarrier(barriers ...gpucore.ResourceBarrier) {
	const cmd = "ResourceBarrier"
	out := make([]gpucore.ResourceBarrier, len(barriers))
	for i, b := range barriers {
		out[i] = b
		switch b.Type {
		case gpucore.BarrierTypeTransition:
			inner, r := unwrapResource(b.Transition.Resource)
			out[i].Transition.Resource = inner
			if r == nil {
				continue
			}
			if s := l.state(r); s != b.Transition.StateBefore {
				l.report(SeverityError, cmd, "barrier %d: resource %q is in state %v, not %v",
					i, r.label(), s, b.Transition.StateBefore)
			}
			l.states[r] = b.Transition.StateAfter
		case gpucore.BarrierTypeUAV:
			inner, r := unwrapResource(b.UAV.Resource)
			out[i].UAV.Resource = inner
			if r != nil && l.state(r) != gpucore.ResourceStateUnorderedAccess {
				l.report(SeverityWarning, cmd, "barrier %d: UAV barrier on %q in state %v",
					i, r.label(), l.state(r))
			}
		}
	}
	l.inner.ResourceBarrier(out...)
}

// CopyResource implements gpucore.CommandList.
func (l *CommandList) CopyResource(dst, src gpucore.Resource) {
	const cmd = "CopyResource"
	innerDst, d := unwrapResource(dst)
	innerSrc, s := unwrapResource(src)
	if s != nil {
		l.require(cmd, s, gpucore.ResourceStateCopySource)
	}
	if d != nil {
		l.require(cmd, d, gpucore.ResourceStateCopyDest)
		l.dev.mu.Lock()
		mapped := d.maps > 0
		l.dev.mu.Unlock()
		if mapped {
			l.report(SeverityWarning, cmd, "copy destination %q is mapped", d.label())
		}
	}
	l.inner.CopyResource(innerDst, innerSrc)
}

// Release implements gpucore.CommandList.
func (l *CommandList) Release() {
	l.inner.Release()
}

// commit applies the list's states and initializations to the device.
func (l *CommandList) commit() {
	l.dev.mu.Lock()
	defer l.dev.mu.Unlock()
	for r, s := range l.states {
		r.state = s
	}
	for k := range l.inits {
		l.dev.initialized[k] = true
	}
}
