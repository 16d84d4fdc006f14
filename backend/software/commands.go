// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package software

import (
	"encoding/binary"
	"fmt"

	"github.com/gogpu/workgraph/gpucore"
	"github.com/gogpu/workgraph/internal/logging"
)

// CommandList is a software gpucore.CommandList.
//
// Recording validates every command against the list's own state. The first
// failure is kept and returned by Close; a list with a recording error cannot
// be executed. A CommandList is not safe for concurrent use.
type CommandList struct {
	dev   *Device
	alloc *CommandAllocator
	open  bool
	err   error
	cmds  []command

	rootSig *RootSignature
	program *workGraph
}

var _ gpucore.CommandList = (*CommandList)(nil)

// command is one recorded command.
type command interface {
	name() string
	execute(ctx *execContext) error
}

// execContext is the state of one command list while it executes. Like the
// recording state, it does not carry over between lists.
type execContext struct {
	dev      *Device
	rootSig  *RootSignature
	rootArgs map[uint32]gpucore.GPUVirtualAddress
	graph    *workGraph
	backing  []byte
}

func (l *CommandList) fail(err error) {
	if l.err == nil {
		l.err = err
	}
}

// recordable reports whether commands can be appended.
func (l *CommandList) recordable(cmd string) bool {
	if !l.open {
		l.fail(fmt.Errorf("%s: %w", cmd, gpucore.ErrCommandListClosed))
		return false
	}
	return l.err == nil
}

// Close implements gpucore.CommandList.
func (l *CommandList) Close() error {
	if !l.open {
		return gpucore.ErrCommandListClosed
	}
	l.open = false
	l.alloc.end(l)
	return l.err
}

// Reset implements gpucore.CommandList.
func (l *CommandList) Reset(allocator gpucore.CommandAllocator) error {
	if l.open {
		return gpucore.ErrCommandListOpen
	}
	alloc, err := l.dev.ownAllocator(allocator)
	if err != nil {
		return err
	}
	if err := alloc.begin(l); err != nil {
		return err
	}
	l.alloc = alloc
	l.open = true
	l.err = nil
	l.cmds = nil
	l.rootSig = nil
	l.program = nil
	return nil
}

// Release implements gpucore.CommandList.
func (l *CommandList) Release() {
	if l.open && l.alloc != nil {
		l.alloc.end(l)
	}
	l.open = false
	l.cmds = nil
}

// SetComputeRootSignature implements gpucore.CommandList.
func (l *CommandList) SetComputeRootSignature(sig gpucore.RootSignature) {
	const cmd = "SetComputeRootSignature"
	if !l.recordable(cmd) {
		return
	}
	s, err := l.dev.ownRootSignature(sig)
	if err != nil {
		l.fail(fmt.Errorf("%s: %w", cmd, err))
		return
	}
	l.rootSig = s
	l.cmds = append(l.cmds, setRootSignatureCmd{sig: s})
}

// SetComputeRootUnorderedAccessView implements gpucore.CommandList.
func (l *CommandList) SetComputeRootUnorderedAccessView(rootParameterIndex uint32, address gpucore.GPUVirtualAddress) {
	const cmd = "SetComputeRootUnorderedAccessView"
	if !l.recordable(cmd) {
		return
	}
	if l.rootSig == nil {
		l.fail(fmt.Errorf("%s: %w: no root signature set", cmd, gpucore.ErrInvalidArgument))
		return
	}
	params := l.rootSig.desc.Parameters
	if int(rootParameterIndex) >= len(params) {
		l.fail(fmt.Errorf("%s: %w: root parameter %d of %d", cmd, gpucore.ErrInvalidArgument, rootParameterIndex, len(params)))
		return
	}
	if t := params[rootParameterIndex].Type; t != gpucore.RootParameterTypeUAV {
		l.fail(fmt.Errorf("%s: %w: root parameter %d is %v", cmd, gpucore.ErrInvalidArgument, rootParameterIndex, t))
		return
	}
	if address == 0 || address%gpucore.BufferAlignment != 0 {
		l.fail(fmt.Errorf("%s: %w: address %#x", cmd, gpucore.ErrInvalidArgument, uint64(address)))
		return
	}
	l.cmds = append(l.cmds, setRootUAVCmd{index: rootParameterIndex, address: address})
}

// SetProgram implements gpucore.CommandList.
func (l *CommandList) SetProgram(desc *gpucore.SetProgramDesc) {
	const cmd = "SetProgram"
	if !l.recordable(cmd) {
		return
	}
	if desc == nil || desc.Type != gpucore.ProgramTypeWorkGraph {
		l.fail(fmt.Errorf("%s: %w: only work graph programs are supported", cmd, gpucore.ErrInvalidArgument))
		return
	}
	wg := desc.WorkGraph
	g, err := l.dev.program(wg.ProgramIdentifier)
	if err != nil {
		l.fail(fmt.Errorf("%s: %w", cmd, err))
		return
	}
	if wg.BackingMemory.SizeInBytes < g.req.MinSizeInBytes {
		l.fail(fmt.Errorf("%s: %w: backing memory of %d bytes is below the minimum of %d",
			cmd, gpucore.ErrInvalidArgument, wg.BackingMemory.SizeInBytes, g.req.MinSizeInBytes))
		return
	}
	if wg.BackingMemory.StartAddress%8 != 0 {
		l.fail(fmt.Errorf("%s: %w: backing memory at %#x is not 8 byte aligned",
			cmd, gpucore.ErrInvalidArgument, uint64(wg.BackingMemory.StartAddress)))
		return
	}
	if _, err := l.dev.backing(wg.BackingMemory); err != nil {
		l.fail(fmt.Errorf("%s: %w", cmd, err))
		return
	}
	l.program = g
	l.cmds = append(l.cmds, setProgramCmd{graph: g, desc: wg})
}

// DispatchGraph implements gpucore.CommandList.
func (l *CommandList) DispatchGraph(desc *gpucore.DispatchGraphDesc) {
	const cmd = "DispatchGraph"
	if !l.recordable(cmd) {
		return
	}
	if desc == nil || desc.Mode != gpucore.DispatchModeNodeCPUInput {
		l.fail(fmt.Errorf("%s: %w: only CPU input dispatch is supported", cmd, gpucore.ErrInvalidArgument))
		return
	}
	g := l.program
	if g == nil {
		l.fail(fmt.Errorf("%s: %w: no program set", cmd, gpucore.ErrInvalidArgument))
		return
	}
	if g.rootSig != nil && l.rootSig != g.rootSig {
		l.fail(fmt.Errorf("%s: %w: compute root signature does not match the program's global root signature",
			cmd, gpucore.ErrInvalidArgument))
		return
	}
	in := desc.NodeCPUInput
	if int(in.EntrypointIndex) >= len(g.entries) {
		l.fail(fmt.Errorf("%s: %w: entry point %d of %d", cmd, gpucore.ErrInvalidArgument, in.EntrypointIndex, len(g.entries)))
		return
	}
	entry := g.entries[in.EntrypointIndex]
	if in.RecordStrideInBytes != entry.kernel.RecordSize {
		l.fail(fmt.Errorf("%s: %w: record stride %d does not match the %d byte record of %q",
			cmd, gpucore.ErrInvalidArgument, in.RecordStrideInBytes, entry.kernel.RecordSize, entry.name))
		return
	}
	total := uint64(in.NumRecords) * uint64(in.RecordStrideInBytes)
	if total > uint64(len(in.Records)) {
		l.fail(fmt.Errorf("%s: %w: %d records of %d bytes need %d bytes, got %d",
			cmd, gpucore.ErrInvalidArgument, in.NumRecords, in.RecordStrideInBytes, total, len(in.Records)))
		return
	}
	records := make([]byte, total)
	copy(records, in.Records)
	l.cmds = append(l.cmds, dispatchGraphCmd{
		graph:   g,
		entry:   entry,
		stride:  in.RecordStrideInBytes,
		count:   in.NumRecords,
		records: records,
	})
}

// ResourceBarrier implements gpucore.CommandList.
func (l *CommandList) ResourceBarrier(barriers ...gpucore.ResourceBarrier) {
	const cmd = "ResourceBarrier"
	if !l.recordable(cmd) {
		return
	}
	resources := make([]*Resource, 0, len(barriers))
	for i, b := range barriers {
		var r gpucore.Resource
		switch b.Type {
		case gpucore.BarrierTypeTransition:
			if b.Transition.StateBefore == b.Transition.StateAfter {
				l.fail(fmt.Errorf("%s: %w: barrier %d transitions to the same state %v",
					cmd, gpucore.ErrInvalidArgument, i, b.Transition.StateBefore))
				return
			}
			r = b.Transition.Resource
		case gpucore.BarrierTypeUAV:
			r = b.UAV.Resource
		default:
			l.fail(fmt.Errorf("%s: %w: barrier %d has type %d", cmd, gpucore.ErrInvalidArgument, i, b.Type))
			return
		}
		res, err := l.dev.ownResource(r)
		if err != nil {
			l.fail(fmt.Errorf("%s: barrier %d: %w", cmd, i, err))
			return
		}
		resources = append(resources, res)
	}
	l.cmds = append(l.cmds, barrierCmd{resources: resources})
}

// CopyResource implements gpucore.CommandList.
func (l *CommandList) CopyResource(dst, src gpucore.Resource) {
	const cmd = "CopyResource"
	if !l.recordable(cmd) {
		return
	}
	d, err := l.dev.ownResource(dst)
	if err != nil {
		l.fail(fmt.Errorf("%s: destination: %w", cmd, err))
		return
	}
	s, err := l.dev.ownResource(src)
	if err != nil {
		l.fail(fmt.Errorf("%s: source: %w", cmd, err))
		return
	}
	if d == s {
		l.fail(fmt.Errorf("%s: %w: source and destination are the same resource", cmd, gpucore.ErrInvalidArgument))
		return
	}
	if d.desc.Width != s.desc.Width {
		l.fail(fmt.Errorf("%s: %w: size mismatch %d != %d", cmd, gpucore.ErrInvalidArgument, d.desc.Width, s.desc.Width))
		return
	}
	if d.heap == gpucore.HeapTypeUpload {
		l.fail(fmt.Errorf("%s: %w: upload heap resources cannot be a copy destination", cmd, gpucore.ErrInvalidArgument))
		return
	}
	l.cmds = append(l.cmds, copyCmd{dst: d, src: s})
}

// backing resolves a backing memory range to its bytes.
func (d *Device) backing(rng gpucore.GPUVirtualAddressRange) ([]byte, error) {
	res, off, err := d.lookup(rng.StartAddress, rng.SizeInBytes)
	if err != nil {
		return nil, fmt.Errorf("backing memory: %w", err)
	}
	if res.heap != gpucore.HeapTypeDefault || !res.desc.Flags.Contains(gpucore.ResourceFlagAllowUnorderedAccess) {
		return nil, fmt.Errorf("%w: backing memory must be a device-local unordered access buffer", gpucore.ErrInvalidArgument)
	}
	return res.data[off : off+rng.SizeInBytes], nil
}

type setRootSignatureCmd struct {
	sig *RootSignature
}

func (setRootSignatureCmd) name() string { return "SetComputeRootSignature" }

func (c setRootSignatureCmd) execute(ctx *execContext) error {
	ctx.rootSig = c.sig
	ctx.rootArgs = make(map[uint32]gpucore.GPUVirtualAddress)
	return nil
}

type setRootUAVCmd struct {
	index   uint32
	address gpucore.GPUVirtualAddress
}

func (setRootUAVCmd) name() string { return "SetComputeRootUnorderedAccessView" }

func (c setRootUAVCmd) execute(ctx *execContext) error {
	if ctx.rootArgs == nil {
		ctx.rootArgs = make(map[uint32]gpucore.GPUVirtualAddress)
	}
	ctx.rootArgs[c.index] = c.address
	return nil
}

// Backing memory header.
const (
	backingMagic   = 0x4d424757 // "WGBM"
	backingVersion = 1
)

type setProgramCmd struct {
	graph *workGraph
	desc  gpucore.SetWorkGraphDesc
}

func (setProgramCmd) name() string { return "SetProgram" }

func (c setProgramCmd) execute(ctx *execContext) error {
	if _, err := ctx.dev.program(c.desc.ProgramIdentifier); err != nil {
		return err
	}
	mem, err := ctx.dev.backing(c.desc.BackingMemory)
	if err != nil {
		return err
	}
	ctx.graph = c.graph
	ctx.backing = mem

	if c.desc.Flags&gpucore.SetWorkGraphFlagInitialize != 0 {
		clear(mem)
		le := binary.LittleEndian
		le.PutUint32(mem[0:], backingMagic)
		le.PutUint32(mem[4:], backingVersion)
		for i, v := range c.graph.id.OpaqueData {
			le.PutUint64(mem[8+i*8:], v)
		}
		logging.L().Debug("software: backing memory initialized",
			"program", c.graph.name,
			"bytes", len(mem))
	}
	return nil
}

type dispatchGraphCmd struct {
	graph   *workGraph
	entry   *node
	stride  uint32
	count   uint32
	records []byte
}

func (dispatchGraphCmd) name() string { return "DispatchGraph" }

func (c dispatchGraphCmd) execute(ctx *execContext) error {
	mem := ctx.backing
	if ctx.graph != c.graph || mem == nil {
		return fmt.Errorf("%w: program changed between SetProgram and DispatchGraph", gpucore.ErrInvalidArgument)
	}
	le := binary.LittleEndian
	if le.Uint32(mem[0:]) != backingMagic || le.Uint32(mem[4:]) != backingVersion {
		return fmt.Errorf("%w: %q", ErrBackingMemory, c.graph.name)
	}
	for i, v := range c.graph.id.OpaqueData {
		if le.Uint64(mem[8+i*8:]) != v {
			return fmt.Errorf("%w: %q (initialized for another program)", ErrBackingMemory, c.graph.name)
		}
	}

	s := &scheduler{ctx: ctx, graph: c.graph, mem: mem}
	if err := s.run(c.entry, c.records, c.stride, c.count); err != nil {
		return err
	}
	le.PutUint32(mem[40:], le.Uint32(mem[40:])+1)
	logging.L().Debug("software: graph dispatched",
		"program", c.graph.name,
		"entry", c.entry.name,
		"records", c.count,
		"groups", s.groups,
		"threads", s.threads)
	return nil
}

type barrierCmd struct {
	resources []*Resource
}

func (barrierCmd) name() string { return "ResourceBarrier" }

// execute only checks liveness: host memory is always coherent.
func (c barrierCmd) execute(*execContext) error {
	for _, r := range c.resources {
		if err := r.alive(); err != nil {
			return err
		}
	}
	return nil
}

type copyCmd struct {
	dst, src *Resource
}

func (copyCmd) name() string { return "CopyResource" }

func (c copyCmd) execute(*execContext) error {
	if err := c.src.alive(); err != nil {
		return err
	}
	if err := c.dst.alive(); err != nil {
		return err
	}
	copy(c.dst.data, c.src.data)
	return nil
}
