// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package program

import (
	"fmt"

	"github.com/gogpu/workgraph/gpucore"
	"github.com/gogpu/workgraph/internal/logging"
)

// Program is a built work graph state object. It may hold several named
// work graphs that share one library and one signature.
type Program struct {
	obj    gpucore.StateObject
	sig    *Signature
	graphs map[string]*graph
	names  []string
}

type graph struct {
	id    gpucore.ProgramIdentifier
	index uint32
	req   gpucore.WorkGraphMemoryRequirements
}

// BuildProgram creates one executable state object from a library, one
// work graph declaration per name with every available node included, and
// sig as the global signature. Every failure wraps gpucore.ErrProgramBuild.
func BuildProgram(dev gpucore.Device, lib *gpucore.LibraryDesc, sig *Signature, names ...string) (*Program, error) {
	if lib == nil || len(lib.Bytecode) == 0 {
		return nil, fmt.Errorf("%w: empty library", gpucore.ErrProgramBuild)
	}
	if sig == nil || sig.root == nil {
		return nil, fmt.Errorf("%w: no binding signature", gpucore.ErrProgramBuild)
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: no program name", gpucore.ErrProgramBuild)
	}

	desc := &gpucore.StateObjectDesc{Type: gpucore.StateObjectTypeExecutable}
	desc.Subobjects = append(desc.Subobjects, gpucore.StateSubobject{Type: gpucore.SubobjectTypeLibrary, Desc: lib})
	for _, name := range names {
		desc.Subobjects = append(desc.Subobjects, gpucore.StateSubobject{
			Type: gpucore.SubobjectTypeWorkGraph,
			Desc: &gpucore.WorkGraphDesc{
				ProgramName: name,
				Flags:       gpucore.WorkGraphFlagIncludeAllAvailableNodes,
			},
		})
	}
	desc.Subobjects = append(desc.Subobjects, gpucore.StateSubobject{
		Type: gpucore.SubobjectTypeGlobalRootSignature,
		Desc: &gpucore.GlobalRootSignature{RootSignature: sig.root},
	})

	obj, err := dev.CreateStateObject(desc)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", gpucore.ErrProgramBuild, err)
	}

	p := &Program{obj: obj, sig: sig, graphs: make(map[string]*graph, len(names)), names: names}
	for _, name := range names {
		g := &graph{}
		if g.id, err = obj.ProgramIdentifier(name); err == nil {
			if g.index, err = obj.WorkGraphIndex(name); err == nil {
				g.req, err = obj.WorkGraphMemoryRequirements(g.index)
			}
		}
		if err != nil {
			obj.Release()
			return nil, fmt.Errorf("%w: query %q: %w", gpucore.ErrProgramBuild, name, err)
		}
		p.graphs[name] = g
		logging.L().Info("program: work graph ready",
			"program", name,
			"index", g.index,
			"id", g.id,
			"backing_max", g.req.MaxSizeInBytes)
	}
	return p, nil
}

// lookup is the built-state guard shared by every query.
func (p *Program) lookup(name string) (*graph, error) {
	if p == nil || p.obj == nil {
		return nil, gpucore.ErrNotBuilt
	}
	g, ok := p.graphs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", gpucore.ErrUnknownProgram, name)
	}
	return g, nil
}

// Names returns the program names in declaration order.
func (p *Program) Names() []string {
	if p == nil {
		return nil
	}
	return p.names
}

// Signature returns the signature the program was built with.
func (p *Program) Signature() *Signature {
	if p == nil {
		return nil
	}
	return p.sig
}

// ResolveProgramIdentifier returns the runtime identifier of a work graph.
func (p *Program) ResolveProgramIdentifier(name string) (gpucore.ProgramIdentifier, error) {
	g, err := p.lookup(name)
	if err != nil {
		return gpucore.ProgramIdentifier{}, err
	}
	return g.id, nil
}

// QueryMemoryRequirement returns the backing memory a work graph needs.
func (p *Program) QueryMemoryRequirement(name string) (gpucore.WorkGraphMemoryRequirements, error) {
	g, err := p.lookup(name)
	if err != nil {
		return gpucore.WorkGraphMemoryRequirements{}, err
	}
	return g.req, nil
}

// Entrypoint describes one entry node of a work graph.
type Entrypoint struct {
	Index      uint32
	RecordSize uint32
}

// NumEntrypoints returns the number of entry nodes of a work graph.
func (p *Program) NumEntrypoints(name string) (uint32, error) {
	g, err := p.lookup(name)
	if err != nil {
		return 0, err
	}
	return p.obj.NumEntrypoints(g.index)
}

// Entrypoint returns the entry node at index.
func (p *Program) Entrypoint(name string, index uint32) (Entrypoint, error) {
	g, err := p.lookup(name)
	if err != nil {
		return Entrypoint{}, err
	}
	size, err := p.obj.EntrypointRecordSizeInBytes(g.index, index)
	if err != nil {
		return Entrypoint{}, err
	}
	return Entrypoint{Index: index, RecordSize: size}, nil
}

// EntrypointByNode returns the entry point fed by the named node.
func (p *Program) EntrypointByNode(name, node string) (Entrypoint, error) {
	g, err := p.lookup(name)
	if err != nil {
		return Entrypoint{}, err
	}
	index, err := p.obj.EntrypointIndex(g.index, gpucore.NodeID{Name: node})
	if err != nil {
		return Entrypoint{}, err
	}
	return p.Entrypoint(name, index)
}

// Release destroys the state object. Queries afterwards fail with
// gpucore.ErrNotBuilt. The signature is owned by the caller.
func (p *Program) Release() {
	if p == nil || p.obj == nil {
		return
	}
	p.obj.Release()
	p.obj = nil
}
