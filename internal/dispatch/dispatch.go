// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package dispatch

import (
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"

	"github.com/gogpu/workgraph/gpucore"
	"github.com/gogpu/workgraph/internal/device"
	"github.com/gogpu/workgraph/internal/logging"
	"github.com/gogpu/workgraph/internal/program"
	"github.com/gogpu/workgraph/internal/resource"
)

// Phase errors.
var (
	// ErrDispatch is returned when recording or retiring a graph dispatch fails.
	ErrDispatch = errors.New("dispatch: graph dispatch failed")

	// ErrReadback is returned when copying or mapping the result fails.
	ErrReadback = errors.New("dispatch: readback failed")

	// ErrState is returned when a step is taken out of protocol order.
	ErrState = errors.New("dispatch: invalid state transition")
)

// ResultSlot is the signature slot the result buffer is bound to.
const ResultSlot = 0

// Request is one graph dispatch and the buffers it writes.
type Request struct {
	Program    *program.Program
	Name       string
	Entrypoint uint32
	Records    *RecordBatch
	Backing    *program.BackingMemory

	// Result is the device-local buffer the graph writes.
	Result *resource.Buffer

	// Readback is the CPU-readable mirror Result is copied into.
	Readback *resource.Buffer
}

// Orchestrator drives the dispatch protocol on one device context.
type Orchestrator struct {
	ctx   *device.Context
	state State
}

// New returns an orchestrator in StateIdle.
func New(ctx *device.Context) *Orchestrator {
	return &Orchestrator{ctx: ctx}
}

// State returns the current protocol state.
func (o *Orchestrator) State() State { return o.state }

func (o *Orchestrator) advance(to State) error {
	if o.state == StateLost {
		return fmt.Errorf("%w: %w", ErrState, o.ctx.Lost())
	}
	if !canTransition(o.state, to) {
		return fmt.Errorf("%w: %v -> %v", ErrState, o.state, to)
	}
	o.state = to
	return nil
}

// fail moves to StateLost after device loss, and back to StateIdle
// otherwise, so a rejected batch can be retried.
func (o *Orchestrator) fail(phase, err error) error {
	if o.ctx.Lost() != nil {
		o.state = StateLost
	} else {
		o.state = StateIdle
	}
	return fmt.Errorf("%w: %w", phase, err)
}

// Dispatch records and retires one graph dispatch.
func (o *Orchestrator) Dispatch(req *Request) error {
	if err := o.advance(StateRecording); err != nil {
		return err
	}
	id, err := o.record(req)
	if err != nil {
		return o.fail(ErrDispatch, err)
	}

	o.state = StateSubmitted
	if err := o.ctx.Flush(); err != nil {
		// The scheduler may have written part of its state.
		req.Backing.Invalidate()
		return o.fail(ErrDispatch, err)
	}
	o.state = StateRetired
	req.Backing.MarkInitialized(id)
	logging.L().Debug("dispatch: graph retired",
		"program", req.Name,
		"records", req.Records.Len(),
		"fence", o.ctx.FenceValue())
	return nil
}

func (o *Orchestrator) record(req *Request) (gpucore.ProgramIdentifier, error) {
	var id gpucore.ProgramIdentifier
	if req == nil || req.Program == nil || req.Backing == nil || req.Result == nil || req.Records == nil {
		return id, fmt.Errorf("%w: incomplete request", gpucore.ErrInvalidArgument)
	}
	id, err := req.Program.ResolveProgramIdentifier(req.Name)
	if err != nil {
		return id, err
	}
	entry, err := req.Program.Entrypoint(req.Name, req.Entrypoint)
	if err != nil {
		return id, err
	}
	if entry.RecordSize != req.Records.Stride() {
		return id, fmt.Errorf("%w: record stride %d, entry point %d takes %d-byte records",
			gpucore.ErrInvalidArgument, req.Records.Stride(), req.Entrypoint, entry.RecordSize)
	}
	list, err := o.ctx.CommandList()
	if err != nil {
		return id, err
	}

	list.SetComputeRootSignature(req.Program.Signature().Root())
	list.SetComputeRootUnorderedAccessView(ResultSlot, req.Result.GPUVirtualAddress())
	wg := req.Backing.SetWorkGraph(id)
	list.SetProgram(&gpucore.SetProgramDesc{Type: gpucore.ProgramTypeWorkGraph, WorkGraph: wg})
	list.DispatchGraph(&gpucore.DispatchGraphDesc{
		Mode: gpucore.DispatchModeNodeCPUInput,
		NodeCPUInput: gpucore.NodeCPUInput{
			EntrypointIndex:     req.Entrypoint,
			NumRecords:          uint32(req.Records.Len()),
			RecordStrideInBytes: req.Records.Stride(),
			Records:             req.Records.Bytes(),
		},
	})
	logging.L().Debug("dispatch: graph recorded",
		"program", req.Name,
		"initialize", wg.Flags&gpucore.SetWorkGraphFlagInitialize != 0,
		"backing", humanize.IBytes(wg.BackingMemory.SizeInBytes),
		"records", req.Records.Len())
	return id, nil
}

// Readback copies the result of the retired dispatch into the readback
// buffer, maps it, and passes the mapped bytes to fn. The bytes are only
// valid during fn. The buffer is unmapped on every path once mapped.
func (o *Orchestrator) Readback(req *Request, fn func(data []byte) error) (err error) {
	if err := o.advance(StateCopyRecording); err != nil {
		return err
	}
	if req == nil || req.Result == nil || req.Readback == nil {
		return o.fail(ErrReadback, fmt.Errorf("%w: incomplete request", gpucore.ErrInvalidArgument))
	}
	if req.Readback.Size() < req.Result.Size() {
		return o.fail(ErrReadback, fmt.Errorf("%w: readback buffer of %d bytes for %d-byte result",
			gpucore.ErrInvalidArgument, req.Readback.Size(), req.Result.Size()))
	}
	list, err := o.ctx.CommandList()
	if err != nil {
		return o.fail(ErrReadback, err)
	}

	result := req.Result.Resource()
	list.ResourceBarrier(gpucore.NewTransitionBarrier(result,
		gpucore.ResourceStateUnorderedAccess, gpucore.ResourceStateCopySource))
	list.CopyResource(req.Readback.Resource(), result)
	list.ResourceBarrier(gpucore.NewTransitionBarrier(result,
		gpucore.ResourceStateCopySource, gpucore.ResourceStateUnorderedAccess))

	o.state = StateCopySubmitted
	if err := o.ctx.Flush(); err != nil {
		return o.fail(ErrReadback, err)
	}
	o.state = StateCopyRetired

	data, err := req.Readback.Map()
	if err != nil {
		return o.fail(ErrReadback, err)
	}
	o.state = StateMapped
	defer func() {
		if uerr := req.Readback.Unmap(); uerr != nil && err == nil {
			err = o.fail(ErrReadback, uerr)
			return
		}
		if o.state == StateMapped {
			o.state = StateUnmapped
		}
	}()

	if fn != nil {
		if err := fn(data[:req.Result.Size()]); err != nil {
			o.state = StateUnmapped
			return fmt.Errorf("%w: %w", ErrReadback, err)
		}
	}
	return nil
}

// Run dispatches the graph and reads the result back.
func (o *Orchestrator) Run(req *Request, fn func(data []byte) error) error {
	if err := o.Dispatch(req); err != nil {
		return err
	}
	return o.Readback(req, fn)
}
