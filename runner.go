// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package workgraph

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"

	"github.com/gogpu/workgraph/backend"
	_ "github.com/gogpu/workgraph/backend/software" // always available
	"github.com/gogpu/workgraph/compiler"
	"github.com/gogpu/workgraph/gpucore"
	"github.com/gogpu/workgraph/internal/device"
	"github.com/gogpu/workgraph/internal/dispatch"
	"github.com/gogpu/workgraph/internal/logging"
	"github.com/gogpu/workgraph/internal/program"
	"github.com/gogpu/workgraph/internal/resource"
)

// Graph is the work graph a run compiles and dispatches.
type Graph struct {
	// SourceName names the source in diagnostics.
	SourceName string
	Source     []byte

	// Program is the work graph name in the state object.
	Program string

	// Entrypoint is the index of the entry node fed by Records.
	Entrypoint uint32

	// EntryNode, when set, names the entry node instead of Entrypoint.
	EntryNode string

	// RecordSize is the input record stride in bytes.
	RecordSize uint32

	// Records are the seed records as little-endian 32-bit fields.
	Records [][]uint32
}

// Result is the outcome of a successful run.
type Result struct {
	// Words are the leading words of the result buffer.
	Words []uint32

	Adapter      gpucore.AdapterInfo
	AdapterType  gpucontext.AdapterType
	Backing      gpucore.WorkGraphMemoryRequirements
	BytecodeSize int
	EntryPoints  []string

	// FenceValue is the fence value after the readback retired.
	FenceValue uint64
}

// Runner sequences one work graph run: compiler and device setup,
// compilation, signature and program build, allocation, dispatch, and
// readback. Each failure is reported as a *PhaseError.
//
// A Runner keeps its compiler between runs, so running the same source
// again reuses the compiled module.
type Runner struct {
	opts options

	mu   sync.Mutex
	comp *compiler.Compiler
}

// NewRunner creates a runner.
func NewRunner(opts ...Option) *Runner {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Runner{opts: o}
}

// Run executes g. Everything created is released before Run returns, in
// reverse order of creation.
func (r *Runner) Run(g *Graph) (*Result, error) {
	o := r.opts
	if err := validateGraph(g, o); err != nil {
		return nil, failed(PhaseConfig, err)
	}
	res := &Result{}

	comp, err := r.compiler()
	if err != nil {
		return nil, failed(PhaseCompilerInit, err)
	}

	b, err := r.openBackend()
	if err != nil {
		return nil, failed(PhaseDeviceInit, fmt.Errorf("%w: %w", gpucore.ErrDeviceInit, err))
	}
	defer b.Close()

	var dopts []device.Option
	if o.debugLayer {
		dopts = append(dopts, device.WithDebugLayer(o.debugOpts...))
	}
	ctx, err := device.New(b, dopts...)
	if err != nil {
		return nil, failed(PhaseDeviceInit, err)
	}
	defer ctx.Close()
	provider := ctx.Provider()
	res.Adapter = ctx.Adapter()
	res.AdapterType = provider.AdapterInfo().Type
	dev := ctx.Device()

	lib, err := comp.Compile(g.SourceName, g.Source, o.profile)
	if err != nil {
		return nil, failed(PhaseCompile, err)
	}
	res.BytecodeSize = lib.Len()
	res.EntryPoints = lib.EntryPoints

	sig, err := program.BuildBindingSignature(dev, program.OutputSlots())
	if err != nil {
		return nil, failed(PhaseSignature, err)
	}
	defer sig.Release()

	prog, err := program.BuildProgram(dev, lib.Library(), sig, g.Program)
	if err != nil {
		return nil, failed(PhaseProgram, err)
	}
	defer prog.Release()
	if res.Backing, err = prog.QueryMemoryRequirement(g.Program); err != nil {
		return nil, failed(PhaseProgram, err)
	}
	entry := g.Entrypoint
	if g.EntryNode != "" {
		e, err := prog.EntrypointByNode(g.Program, g.EntryNode)
		if err != nil {
			return nil, failed(PhaseProgram, err)
		}
		entry = e.Index
	}
	logging.L().Debug("workgraph: program built",
		"programs", prog.Names(),
		"entry", entry,
		"backing", res.Backing.MaxSizeInBytes)

	alloc := resource.NewAllocator(dev)
	backing, err := prog.AllocateBackingMemory(g.Program, alloc)
	if err != nil {
		return nil, failed(PhaseAllocation, err)
	}
	defer backing.Release()
	size := uint64(o.resultWords) * 4
	result, err := alloc.CreateBuffer("result", size, gpucore.HeapTypeDefault,
		gputypes.BufferUsageStorage|gputypes.BufferUsageCopySrc)
	if err != nil {
		return nil, failed(PhaseAllocation, err)
	}
	defer result.Release()
	readback, err := alloc.CreateBuffer("readback", size, gpucore.HeapTypeReadback,
		gputypes.BufferUsageMapRead|gputypes.BufferUsageCopyDst)
	if err != nil {
		return nil, failed(PhaseAllocation, err)
	}
	defer readback.Release()

	records := dispatch.NewRecordBatch(g.RecordSize)
	for i, rec := range g.Records {
		if err := records.Append(rec...); err != nil {
			return nil, failed(PhaseDispatch, fmt.Errorf("record %d: %w", i, err))
		}
	}
	req := &dispatch.Request{
		Program:    prog,
		Name:       g.Program,
		Entrypoint: entry,
		Records:    records,
		Backing:    backing,
		Result:     result,
		Readback:   readback,
	}
	orch := dispatch.New(ctx)
	if err := orch.Dispatch(req); err != nil {
		return nil, failed(PhaseDispatch, err)
	}

	n := min(o.readWords, o.resultWords)
	err = orch.Readback(req, func(data []byte) error {
		res.Words = dispatch.Uint32s(data[:n*4])
		return nil
	})
	if err != nil {
		return nil, failed(PhaseReadback, err)
	}
	shared, ok := provider.Device().(*device.SharedDevice)
	if !ok {
		return nil, failed(PhaseReadback, fmt.Errorf("unexpected provider device %T", provider.Device()))
	}
	if err := shared.Poll(true); err != nil {
		return nil, failed(PhaseReadback, err)
	}
	res.FenceValue = ctx.FenceValue()

	logging.L().Info("workgraph: run complete",
		"program", g.Program,
		"adapter", res.Adapter.Name,
		"records", len(g.Records),
		"fence", res.FenceValue)
	return res, nil
}

func (r *Runner) compiler() (*compiler.Compiler, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.comp != nil {
		return r.comp, nil
	}
	var copts []compiler.Option
	if r.opts.profile != "" {
		copts = append(copts, compiler.WithDefaultProfile(r.opts.profile))
	}
	comp, err := compiler.New(copts...)
	if err != nil {
		return nil, err
	}
	r.comp = comp
	return comp, nil
}

func (r *Runner) openBackend() (backend.DeviceBackend, error) {
	if b := r.opts.backend; b != nil {
		if err := b.Init(); err != nil {
			return nil, err
		}
		return b, nil
	}
	return backend.Open(r.opts.backendName)
}

func validateGraph(g *Graph, o options) error {
	switch {
	case g == nil:
		return errors.New("no graph")
	case g.Program == "":
		return errors.New("graph has no program name")
	case len(g.Source) == 0:
		return fmt.Errorf("graph %q has no source", g.Program)
	case g.RecordSize == 0 || g.RecordSize%4 != 0:
		return fmt.Errorf("record size %d is not a positive multiple of 4", g.RecordSize)
	case o.resultWords <= 0:
		return fmt.Errorf("result size %d words", o.resultWords)
	case o.readWords < 0:
		return fmt.Errorf("read size %d words", o.readWords)
	}
	return nil
}
