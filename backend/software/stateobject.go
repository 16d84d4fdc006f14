// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package software

import (
	"encoding/binary"
	"fmt"
	"slices"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/gogpu/workgraph/gpucore"
	"github.com/gogpu/workgraph/internal/logging"
	"github.com/gogpu/workgraph/internal/spirv"
)

// Backing memory layout constants.
const (
	backingHeaderSize  = 64
	queueHeaderSize    = 16
	backingGranularity = 256

	// MaxEntryBatch is how many entry records the scheduler stages at once
	// when the backing memory has MaxSizeInBytes.
	MaxEntryBatch = 256
)

// node is a node of a built work graph.
type node struct {
	name      string
	kernel    NodeKernel
	localSize [3]uint32
	depth     int
	outputs   []*edge
	entry     int // entry point index, -1 for internal nodes

	// queue is the offset of the node queue in backing memory; capacity is
	// in records. Entry nodes use the shared staging queue instead.
	queue    uint64
	capacity uint32
}

type edge struct {
	target     *node
	maxRecords uint32
}

func (n *node) threadsPerGroup() uint32 {
	return n.localSize[0] * n.localSize[1] * n.localSize[2]
}

func (n *node) output(target string) *edge {
	for _, e := range n.outputs {
		if e.target.name == target {
			return e
		}
	}
	return nil
}

// workGraph is one program of a state object.
type workGraph struct {
	so      *StateObject
	index   uint32
	name    string
	id      gpucore.ProgramIdentifier
	rootSig *RootSignature
	nodes   []*node
	entries []*node

	staging        uint64
	maxEntryStride uint32
	req            gpucore.WorkGraphMemoryRequirements
}

func (g *workGraph) node(name string) *node {
	for _, n := range g.nodes {
		if n.name == name {
			return n
		}
	}
	return nil
}

// StateObject is a built work graph state object.
type StateObject struct {
	dev    *Device
	seq    uint64
	graphs []*workGraph

	mu       sync.Mutex
	released bool
}

var _ gpucore.StateObject = (*StateObject)(nil)

// availableNode is a node exported by a library before graph assembly.
type availableNode struct {
	name      string
	kernel    NodeKernel
	localSize [3]uint32
}

// CreateStateObject implements gpucore.Device.
func (d *Device) CreateStateObject(desc *gpucore.StateObjectDesc) (gpucore.StateObject, error) {
	if err := d.checkAlive(); err != nil {
		return nil, err
	}
	if desc == nil || desc.Type != gpucore.StateObjectTypeExecutable {
		return nil, fmt.Errorf("%w: state object must be executable", gpucore.ErrInvalidArgument)
	}

	var (
		libs     []*gpucore.LibraryDesc
		graphs   []*gpucore.WorkGraphDesc
		rootSigs []*RootSignature
	)
	for i, sub := range desc.Subobjects {
		switch sub.Type {
		case gpucore.SubobjectTypeLibrary:
			lib, ok := sub.Desc.(*gpucore.LibraryDesc)
			if !ok || lib == nil {
				return nil, subobjectError(i, sub)
			}
			libs = append(libs, lib)
		case gpucore.SubobjectTypeWorkGraph:
			wg, ok := sub.Desc.(*gpucore.WorkGraphDesc)
			if !ok || wg == nil {
				return nil, subobjectError(i, sub)
			}
			graphs = append(graphs, wg)
		case gpucore.SubobjectTypeGlobalRootSignature:
			grs, ok := sub.Desc.(*gpucore.GlobalRootSignature)
			if !ok || grs == nil {
				return nil, subobjectError(i, sub)
			}
			sig, err := d.ownRootSignature(grs.RootSignature)
			if err != nil {
				return nil, fmt.Errorf("subobject %d: %w", i, err)
			}
			rootSigs = append(rootSigs, sig)
		default:
			return nil, subobjectError(i, sub)
		}
	}

	if len(graphs) > 0 && !d.featureEnabled(gpucore.FeatureStateObjectsExperiment) {
		return nil, fmt.Errorf("%w: %s is needed for work graphs",
			gpucore.ErrFeatureNotEnabled, gpucore.FeatureStateObjectsExperiment)
	}
	if len(libs) == 0 {
		return nil, fmt.Errorf("%w: state object has no library", gpucore.ErrInvalidArgument)
	}
	if len(rootSigs) > 1 {
		return nil, fmt.Errorf("%w: %d global root signatures", gpucore.ErrInvalidArgument, len(rootSigs))
	}
	var rootSig *RootSignature
	if len(rootSigs) == 1 {
		rootSig = rootSigs[0]
	}

	available, bindings, err := d.loadLibraries(libs, len(graphs) > 0)
	if err != nil {
		return nil, err
	}
	if err := checkBindings(bindings, rootSig); err != nil {
		return nil, err
	}

	d.mu.Lock()
	d.objects++
	so := &StateObject{dev: d, seq: d.objects}
	d.mu.Unlock()

	seen := make(map[string]bool, len(graphs))
	for i, wg := range graphs {
		if wg.ProgramName == "" || seen[wg.ProgramName] {
			return nil, fmt.Errorf("%w: work graph %d has an empty or duplicate program name %q",
				gpucore.ErrInvalidArgument, i, wg.ProgramName)
		}
		seen[wg.ProgramName] = true

		g, err := assembleGraph(wg, available)
		if err != nil {
			return nil, fmt.Errorf("work graph %q: %w", wg.ProgramName, err)
		}
		g.so = so
		g.index = uint32(i)
		g.rootSig = rootSig
		g.id = newProgramIdentifier(so.seq, g.index)
		g.layout()
		so.graphs = append(so.graphs, g)
	}

	d.mu.Lock()
	for _, g := range so.graphs {
		d.programs[g.id] = g
	}
	d.mu.Unlock()

	for _, g := range so.graphs {
		logging.L().Info("software: work graph built",
			"program", g.name,
			"nodes", len(g.nodes),
			"entrypoints", len(g.entries),
			"backing_min", humanize.IBytes(g.req.MinSizeInBytes),
			"backing_max", humanize.IBytes(g.req.MaxSizeInBytes))
	}
	return so, nil
}

func subobjectError(i int, sub gpucore.StateSubobject) error {
	return fmt.Errorf("%w: subobject %d of type %v has payload %T",
		gpucore.ErrInvalidArgument, i, sub.Type, sub.Desc)
}

// loadLibraries reflects every library and pairs node entry points with
// their kernels.
func (d *Device) loadLibraries(libs []*gpucore.LibraryDesc, workGraphs bool) ([]availableNode, []spirv.Binding, error) {
	var (
		nodes    []availableNode
		bindings []spirv.Binding
		names    = map[string]bool{}
	)
	for i, lib := range libs {
		profile, err := gpucore.ParseProfile(lib.Profile)
		if err != nil {
			return nil, nil, fmt.Errorf("library %d: %w", i, err)
		}
		if workGraphs && !profile.SupportsWorkGraphs() {
			return nil, nil, fmt.Errorf("%w: library %d profile %s cannot hold work graph nodes",
				gpucore.ErrInvalidArgument, i, profile)
		}
		if profile.Experimental() && !d.featureEnabled(gpucore.FeatureExperimentalShaderModels) {
			return nil, nil, fmt.Errorf("%w: %s is needed for profile %s",
				gpucore.ErrFeatureNotEnabled, gpucore.FeatureExperimentalShaderModels, profile)
		}

		mod, err := spirv.Reflect(lib.Bytecode)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: library %d: %w", gpucore.ErrInvalidArgument, i, err)
		}
		for _, export := range lib.Exports {
			if _, ok := mod.EntryPoint(export); !ok {
				return nil, nil, fmt.Errorf("%w: library %d does not export %q", gpucore.ErrInvalidArgument, i, export)
			}
		}

		for _, ep := range mod.EntryPoints {
			if ep.Model != spirv.ExecutionModelGLCompute {
				continue
			}
			if len(lib.Exports) > 0 && !slices.Contains(lib.Exports, ep.Name) {
				continue
			}
			if names[ep.Name] {
				return nil, nil, fmt.Errorf("%w: node %q is exported twice", gpucore.ErrInvalidArgument, ep.Name)
			}
			names[ep.Name] = true

			k, ok := lookupNode(ep.Name)
			if !ok {
				return nil, nil, fmt.Errorf("%w: %q", ErrNoKernel, ep.Name)
			}
			if err := k.validate(); err != nil {
				return nil, nil, fmt.Errorf("%w: node %q: %v", gpucore.ErrInvalidArgument, ep.Name, err)
			}
			size := ep.LocalSize
			if size == [3]uint32{} {
				size = [3]uint32{1, 1, 1}
			}
			if k.Launch == LaunchThread && size != [3]uint32{1, 1, 1} {
				return nil, nil, fmt.Errorf("%w: thread launch node %q has workgroup size %v",
					gpucore.ErrInvalidArgument, ep.Name, size)
			}
			nodes = append(nodes, availableNode{name: ep.Name, kernel: k, localSize: size})
		}
		bindings = append(bindings, mod.Bindings...)
	}
	return nodes, bindings, nil
}

// checkBindings verifies every shader binding is covered by a root
// parameter. Descriptor set maps to register space, binding to register.
func checkBindings(bindings []spirv.Binding, sig *RootSignature) error {
	if len(bindings) == 0 {
		return nil
	}
	if sig == nil {
		return fmt.Errorf("%w: library binds %d resources but there is no global root signature",
			gpucore.ErrInvalidArgument, len(bindings))
	}
	for _, b := range bindings {
		var want []gpucore.RootParameterType
		switch b.StorageClass {
		case spirv.StorageClassUniform:
			want = []gpucore.RootParameterType{gpucore.RootParameterTypeCBV, gpucore.RootParameterType32BitConstants}
		default:
			want = []gpucore.RootParameterType{gpucore.RootParameterTypeUAV, gpucore.RootParameterTypeSRV}
		}
		covered := false
		for _, p := range sig.desc.Parameters {
			if p.RegisterSpace == b.Set && p.ShaderRegister == b.Binding && slices.Contains(want, p.Type) {
				covered = true
				break
			}
		}
		if !covered {
			return fmt.Errorf("%w: binding %q (set %d, binding %d) has no matching root parameter",
				gpucore.ErrInvalidArgument, b.Name, b.Set, b.Binding)
		}
	}
	return nil
}

// assembleGraph selects the nodes of a work graph, links outputs, and
// orders the nodes by depth.
func assembleGraph(desc *gpucore.WorkGraphDesc, available []availableNode) (*workGraph, error) {
	byName := make(map[string]availableNode, len(available))
	for _, a := range available {
		byName[a.name] = a
	}

	include := make(map[string]bool)
	if desc.Flags&gpucore.WorkGraphFlagIncludeAllAvailableNodes != 0 {
		for _, a := range available {
			include[a.name] = true
		}
	}
	var stack []string
	for _, id := range desc.Entrypoints {
		if id.ArrayIndex != 0 {
			return nil, fmt.Errorf("%w: node arrays are not supported (%s[%d])",
				gpucore.ErrInvalidArgument, id.Name, id.ArrayIndex)
		}
		if _, ok := byName[id.Name]; !ok {
			return nil, fmt.Errorf("%w: entry node %q is not exported by any library", gpucore.ErrInvalidArgument, id.Name)
		}
		stack = append(stack, id.Name)
	}
	for name := range include {
		stack = append(stack, name)
	}
	for len(stack) > 0 {
		name := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		include[name] = true
		for _, o := range byName[name].kernel.Outputs {
			if _, ok := byName[o.Target]; !ok {
				return nil, fmt.Errorf("%w: node %q outputs to %q which is not in the graph",
					gpucore.ErrInvalidArgument, name, o.Target)
			}
			if !include[o.Target] {
				stack = append(stack, o.Target)
			}
		}
	}
	if len(include) == 0 {
		return nil, fmt.Errorf("%w: work graph has no nodes", gpucore.ErrInvalidArgument)
	}

	g := &workGraph{name: desc.ProgramName}
	nodes := make(map[string]*node, len(include))
	for _, a := range available {
		if include[a.name] {
			n := &node{name: a.name, kernel: a.kernel, localSize: a.localSize, entry: -1}
			nodes[a.name] = n
			g.nodes = append(g.nodes, n)
		}
	}
	incoming := make(map[*node]int)
	for _, n := range g.nodes {
		for _, o := range n.kernel.Outputs {
			t := nodes[o.Target]
			n.outputs = append(n.outputs, &edge{target: t, maxRecords: o.MaxRecords})
			incoming[t]++
		}
	}

	for _, n := range g.nodes {
		if incoming[n] == 0 {
			n.entry = len(g.entries)
			g.entries = append(g.entries, n)
		}
	}
	for _, id := range desc.Entrypoints {
		if n := nodes[id.Name]; n.entry < 0 {
			return nil, fmt.Errorf("%w: %q is declared as an entry point but other nodes output to it",
				gpucore.ErrInvalidArgument, id.Name)
		}
	}
	if len(g.entries) == 0 {
		return nil, fmt.Errorf("%w: work graph has no entry node", gpucore.ErrInvalidArgument)
	}

	if err := g.computeDepths(); err != nil {
		return nil, err
	}
	return g, nil
}

// computeDepths assigns every node its longest distance from an entry node
// and rejects cycles.
func (g *workGraph) computeDepths() error {
	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[*node]int, len(g.nodes))
	var visit func(n *node, depth int) error
	visit = func(n *node, depth int) error {
		if state[n] == visiting {
			return fmt.Errorf("%w: node %q is part of a cycle", gpucore.ErrInvalidArgument, n.name)
		}
		if state[n] == done && n.depth >= depth {
			return nil
		}
		state[n] = visiting
		if depth > n.depth {
			n.depth = depth
		}
		for _, e := range n.outputs {
			if err := visit(e.target, n.depth+1); err != nil {
				return err
			}
		}
		state[n] = done
		return nil
	}
	for _, n := range g.entries {
		if err := visit(n, 0); err != nil {
			return err
		}
	}
	for _, n := range g.nodes {
		if state[n] == unvisited {
			return fmt.Errorf("%w: node %q is unreachable from any entry node", gpucore.ErrInvalidArgument, n.name)
		}
	}
	return nil
}

// layout places the node queues in backing memory and derives the memory
// requirements. Every internal node queue holds the largest single-group
// emission of any producer. The entry staging queue holds one record at
// minimum and MaxEntryBatch records at maximum.
func (g *workGraph) layout() {
	off := uint64(backingHeaderSize)
	for _, n := range g.nodes {
		if n.entry >= 0 {
			if n.kernel.RecordSize > g.maxEntryStride {
				g.maxEntryStride = n.kernel.RecordSize
			}
			continue
		}
		var capacity uint32
		for _, p := range g.nodes {
			if e := p.output(n.name); e != nil && e.maxRecords > capacity {
				capacity = e.maxRecords
			}
		}
		n.queue = off
		n.capacity = capacity
		off += queueHeaderSize + alignUp(uint64(capacity)*uint64(n.kernel.RecordSize), queueHeaderSize)
	}
	g.staging = off
	stride := uint64(g.maxEntryStride)
	g.req = gpucore.WorkGraphMemoryRequirements{
		MinSizeInBytes:         alignUp(off+queueHeaderSize+stride, backingGranularity),
		MaxSizeInBytes:         alignUp(off+queueHeaderSize+MaxEntryBatch*stride, backingGranularity),
		SizeGranularityInBytes: backingGranularity,
	}
}

// newProgramIdentifier derives a unique identifier for a program.
func newProgramIdentifier(seq uint64, index uint32) gpucore.ProgramIdentifier {
	u := uuid.New()
	return gpucore.ProgramIdentifier{OpaqueData: [4]uint64{
		binary.LittleEndian.Uint64(u[0:8]),
		binary.LittleEndian.Uint64(u[8:16]),
		seq,
		uint64(index),
	}}
}

func (so *StateObject) graph(index uint32) (*workGraph, error) {
	so.mu.Lock()
	defer so.mu.Unlock()
	if so.released {
		return nil, fmt.Errorf("%w: state object", ErrReleased)
	}
	if int(index) >= len(so.graphs) {
		return nil, fmt.Errorf("%w: work graph index %d of %d", gpucore.ErrInvalidArgument, index, len(so.graphs))
	}
	return so.graphs[index], nil
}

func (so *StateObject) byName(name string) (*workGraph, error) {
	so.mu.Lock()
	defer so.mu.Unlock()
	if so.released {
		return nil, fmt.Errorf("%w: state object", ErrReleased)
	}
	for _, g := range so.graphs {
		if g.name == name {
			return g, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", gpucore.ErrUnknownProgram, name)
}

// ProgramIdentifier implements gpucore.StateObject.
func (so *StateObject) ProgramIdentifier(programName string) (gpucore.ProgramIdentifier, error) {
	g, err := so.byName(programName)
	if err != nil {
		return gpucore.ProgramIdentifier{}, err
	}
	return g.id, nil
}

// WorkGraphIndex implements gpucore.StateObject.
func (so *StateObject) WorkGraphIndex(programName string) (uint32, error) {
	g, err := so.byName(programName)
	if err != nil {
		return 0, err
	}
	return g.index, nil
}

// WorkGraphMemoryRequirements implements gpucore.StateObject.
func (so *StateObject) WorkGraphMemoryRequirements(index uint32) (gpucore.WorkGraphMemoryRequirements, error) {
	g, err := so.graph(index)
	if err != nil {
		return gpucore.WorkGraphMemoryRequirements{}, err
	}
	return g.req, nil
}

// NumEntrypoints implements gpucore.StateObject.
func (so *StateObject) NumEntrypoints(index uint32) (uint32, error) {
	g, err := so.graph(index)
	if err != nil {
		return 0, err
	}
	return uint32(len(g.entries)), nil
}

// EntrypointIndex implements gpucore.StateObject.
func (so *StateObject) EntrypointIndex(index uint32, id gpucore.NodeID) (uint32, error) {
	g, err := so.graph(index)
	if err != nil {
		return 0, err
	}
	if n := g.node(id.Name); n != nil && n.entry >= 0 && id.ArrayIndex == 0 {
		return uint32(n.entry), nil
	}
	return 0, fmt.Errorf("%w: %q is not an entry point of %q", gpucore.ErrInvalidArgument, id.Name, g.name)
}

// EntrypointRecordSizeInBytes implements gpucore.StateObject.
func (so *StateObject) EntrypointRecordSizeInBytes(index, entrypoint uint32) (uint32, error) {
	g, err := so.graph(index)
	if err != nil {
		return 0, err
	}
	if int(entrypoint) >= len(g.entries) {
		return 0, fmt.Errorf("%w: entry point %d of %d", gpucore.ErrInvalidArgument, entrypoint, len(g.entries))
	}
	return g.entries[entrypoint].kernel.RecordSize, nil
}

// Release implements gpucore.StateObject. Program identifiers of a released
// state object are no longer accepted by SetProgram.
func (so *StateObject) Release() {
	so.mu.Lock()
	if so.released {
		so.mu.Unlock()
		return
	}
	so.released = true
	graphs := so.graphs
	so.mu.Unlock()

	so.dev.mu.Lock()
	for _, g := range graphs {
		delete(so.dev.programs, g.id)
	}
	so.dev.mu.Unlock()
}

// program looks up a live work graph by identifier.
func (d *Device) program(id gpucore.ProgramIdentifier) (*workGraph, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	g, ok := d.programs[id]
	if !ok {
		return nil, fmt.Errorf("%w: program identifier %s", gpucore.ErrUnknownProgram, id)
	}
	return g, nil
}
