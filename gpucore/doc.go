// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package gpucore defines the backend-neutral GPU API used by workgraph.
//
// The API is an explicit, D3D12-shaped command model. A [Device] creates
// every other object; a [CommandList] records commands into memory owned by
// a [CommandAllocator]; a [CommandQueue] executes closed lists in order and
// signals a [Fence]; the CPU observes completion through an [Event] armed
// with [Fence.SetEventOnCompletion].
//
// # Work Graphs
//
// A work graph program is built as an executable [StateObject] from three
// subobjects:
//
//	+-------------------+   +------------------+   +----------------------+
//	|   LibraryDesc     |   |  WorkGraphDesc   |   | GlobalRootSignature  |
//	| (SPIR-V library)  |   | (program name,   |   | (serialized binding  |
//	|                   |   |  node policy)    |   |  layout)             |
//	+---------+---------+   +--------+---------+   +----------+-----------+
//	          |                      |                        |
//	          +----------------------+------------------------+
//	                                 |
//	                        Device.CreateStateObject
//	                                 |
//	           ProgramIdentifier + WorkGraphMemoryRequirements
//
// The memory requirement is only known after the state object exists, so
// backing memory is always allocated after the build. A dispatch is then
// recorded as SetProgram (identifier, backing range, Initialize flag)
// followed by DispatchGraph in CPU-input mode.
//
// # Capability Negotiation
//
// Work graphs depend on experimental device features. They are enabled
// through [EnableExperimentalFeatures], a process-wide, irreversible switch
// that must be flipped before the first device is created. Backends call
// [SealFeatures] from device creation, after which no new feature can be
// enabled.
//
// # Errors
//
// The error taxonomy shared by every layer lives in this package
// ([ErrDeviceInit], [ErrCompile], [ErrSignatureBuild], [ErrProgramBuild],
// [ErrAllocation], [ErrDeviceLost], [ErrNotBuilt]). Backends return the
// lower-level API errors; the layers above wrap them into the taxonomy.
package gpucore
