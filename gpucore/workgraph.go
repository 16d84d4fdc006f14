// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpucore

import "fmt"

// ProgramIdentifier is the opaque runtime handle of a program inside a
// state object. It is looked up once after the build and passed by value.
type ProgramIdentifier struct {
	OpaqueData [4]uint64
}

// IsZero reports whether the identifier is the zero (invalid) value.
func (id ProgramIdentifier) IsZero() bool {
	return id.OpaqueData == [4]uint64{}
}

// String returns a short hex form for logging.
func (id ProgramIdentifier) String() string {
	return fmt.Sprintf("%016x%016x", id.OpaqueData[0], id.OpaqueData[1])
}

// WorkGraphMemoryRequirements is the scratch memory a work graph needs.
type WorkGraphMemoryRequirements struct {
	MinSizeInBytes         uint64
	MaxSizeInBytes         uint64
	SizeGranularityInBytes uint64
}

// StateObjectType selects how a state object may be used.
type StateObjectType int

const (
	// StateObjectTypeExecutable state objects can be set on a command list.
	StateObjectTypeExecutable StateObjectType = iota
)

// SubobjectType identifies the payload of a StateSubobject.
type SubobjectType int

const (
	// SubobjectTypeLibrary carries a *LibraryDesc.
	SubobjectTypeLibrary SubobjectType = iota

	// SubobjectTypeWorkGraph carries a *WorkGraphDesc.
	SubobjectTypeWorkGraph

	// SubobjectTypeGlobalRootSignature carries a *GlobalRootSignature.
	SubobjectTypeGlobalRootSignature
)

// String returns the string representation of SubobjectType.
func (t SubobjectType) String() string {
	switch t {
	case SubobjectTypeLibrary:
		return "Library"
	case SubobjectTypeWorkGraph:
		return "WorkGraph"
	case SubobjectTypeGlobalRootSignature:
		return "GlobalRootSignature"
	default:
		return fmt.Sprintf("Unknown(%d)", int(t))
	}
}

// StateSubobject is one part of a StateObjectDesc.
type StateSubobject struct {
	Type SubobjectType
	Desc any
}

// LibraryDesc is a compiled shader library.
type LibraryDesc struct {
	// Bytecode is the SPIR-V module.
	Bytecode []byte

	// Profile is the target profile the library was compiled for
	// (for example "lib_6_8").
	Profile string

	// Exports restricts the exported entry points. Empty exports all.
	Exports []string
}

// WorkGraphFlags controls how nodes are gathered into a work graph.
type WorkGraphFlags uint32

const (
	// WorkGraphFlagNone includes only the listed entry points and the
	// nodes reachable from them.
	WorkGraphFlagNone WorkGraphFlags = 0

	// WorkGraphFlagIncludeAllAvailableNodes includes every node exported
	// by the libraries in the state object.
	WorkGraphFlagIncludeAllAvailableNodes WorkGraphFlags = 1 << 0
)

// NodeID names a node, optionally within a node array.
type NodeID struct {
	Name       string
	ArrayIndex uint32
}

// WorkGraphDesc declares a work graph program.
type WorkGraphDesc struct {
	ProgramName string
	Flags       WorkGraphFlags
	Entrypoints []NodeID
}

// GlobalRootSignature binds a root signature to every shader in a state object.
type GlobalRootSignature struct {
	RootSignature RootSignature
}

// StateObjectDesc describes a state object.
type StateObjectDesc struct {
	Type       StateObjectType
	Subobjects []StateSubobject
}

// ProgramType selects the program kind for SetProgram.
type ProgramType int

const (
	// ProgramTypeWorkGraph sets a work graph program.
	ProgramTypeWorkGraph ProgramType = iota
)

// SetWorkGraphFlags controls SetProgram for work graphs.
type SetWorkGraphFlags uint32

const (
	// SetWorkGraphFlagNone reuses the existing backing memory contents.
	SetWorkGraphFlagNone SetWorkGraphFlags = 0

	// SetWorkGraphFlagInitialize asks the device to initialize the backing
	// memory before the next graph dispatch.
	SetWorkGraphFlagInitialize SetWorkGraphFlags = 1 << 0
)

// SetWorkGraphDesc is the work graph part of SetProgramDesc.
type SetWorkGraphDesc struct {
	ProgramIdentifier ProgramIdentifier
	Flags             SetWorkGraphFlags
	BackingMemory     GPUVirtualAddressRange
}

// SetProgramDesc describes a SetProgram command.
type SetProgramDesc struct {
	Type      ProgramType
	WorkGraph SetWorkGraphDesc
}

// DispatchMode selects where a graph dispatch reads its input records.
type DispatchMode int

const (
	// DispatchModeNodeCPUInput reads the records of a single entry point
	// from CPU memory at record time.
	DispatchModeNodeCPUInput DispatchMode = iota
)

// NodeCPUInput holds the CPU-side seed records for one entry point.
type NodeCPUInput struct {
	EntrypointIndex     uint32
	NumRecords          uint32
	RecordStrideInBytes uint32

	// Records holds NumRecords records of RecordStrideInBytes bytes each.
	// The contents are copied when DispatchGraph is recorded.
	Records []byte
}

// DispatchGraphDesc describes a DispatchGraph command.
type DispatchGraphDesc struct {
	Mode         DispatchMode
	NodeCPUInput NodeCPUInput
}
