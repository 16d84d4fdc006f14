// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpucore

// Device creates and owns every other GPU object.
//
// Objects created by a device must be released before the device itself.
// Passing an object created by one device to another returns
// ErrForeignObject.
type Device interface {
	// Adapter describes the adapter the device was created on.
	Adapter() AdapterInfo

	// CreateFence creates a fence with the given initial value.
	CreateFence(initialValue uint64) (Fence, error)

	// CreateCommandAllocator creates the backing memory for command lists.
	CreateCommandAllocator(t CommandListType) (CommandAllocator, error)

	// CreateCommandQueue creates a queue that executes closed command lists
	// in submission order.
	CreateCommandQueue(desc *CommandQueueDesc) (CommandQueue, error)

	// CreateCommandList creates a command list that is open for recording
	// into allocator.
	CreateCommandList(t CommandListType, allocator CommandAllocator) (CommandList, error)

	// CreateRootSignature creates a root signature from a blob produced by
	// SerializeRootSignature.
	CreateRootSignature(blob []byte) (RootSignature, error)

	// CreateStateObject builds an executable state object.
	CreateStateObject(desc *StateObjectDesc) (StateObject, error)

	// CreateCommittedResource creates a buffer with its own heap.
	CreateCommittedResource(heap HeapType, desc *ResourceDesc, initialState ResourceState) (Resource, error)

	// RemovedReason returns nil while the device is healthy and the removal
	// cause once the device was lost.
	RemovedReason() error

	// Release destroys the device.
	Release()
}

// CommandQueue executes command lists and signals fences in order.
type CommandQueue interface {
	// ExecuteCommandLists submits closed lists for execution.
	ExecuteCommandLists(lists ...CommandList) error

	// Signal sets fence to value once all previously submitted work retired.
	Signal(fence Fence, value uint64) error

	// Release destroys the queue.
	Release()
}

// CommandAllocator owns the memory commands are recorded into.
//
// An allocator must not be reset while any list recorded into it may still
// be executing on the GPU.
type CommandAllocator interface {
	Reset() error
	Release()
}

// CommandList records GPU commands.
//
// Recording methods do not return errors: the first recording error is
// remembered and returned by Close, matching how explicit APIs report
// invalid command streams.
type CommandList interface {
	// Close ends recording. The list can then be executed.
	Close() error

	// Reset reopens a closed list for recording into allocator.
	Reset(allocator CommandAllocator) error

	// SetComputeRootSignature sets the root signature for compute and
	// graph commands.
	SetComputeRootSignature(sig RootSignature)

	// SetComputeRootUnorderedAccessView binds a raw buffer address to a
	// root UAV parameter.
	SetComputeRootUnorderedAccessView(rootParameterIndex uint32, address GPUVirtualAddress)

	// SetProgram sets the program for subsequent DispatchGraph commands.
	SetProgram(desc *SetProgramDesc)

	// DispatchGraph launches the current work graph.
	DispatchGraph(desc *DispatchGraphDesc)

	// ResourceBarrier records resource barriers.
	ResourceBarrier(barriers ...ResourceBarrier)

	// CopyResource copies the whole of src into dst.
	CopyResource(dst, src Resource)

	// Release destroys the list.
	Release()
}

// Fence is a monotonically increasing counter written by the GPU.
type Fence interface {
	// CompletedValue returns the last value the GPU signaled.
	CompletedValue() uint64

	// SetEventOnCompletion sets event once the fence reaches value.
	SetEventOnCompletion(value uint64, event *Event) error

	// Release destroys the fence.
	Release()
}

// Resource is a committed buffer.
type Resource interface {
	// GPUVirtualAddress returns the device address of the buffer. It is
	// only meaningful for device-local resources.
	GPUVirtualAddress() GPUVirtualAddress

	// Desc returns the creation descriptor.
	Desc() ResourceDesc

	// Heap returns the heap type the resource lives on.
	Heap() HeapType

	// Map returns the CPU view of a CPU-visible resource. Every successful
	// Map must be paired with Unmap.
	Map() ([]byte, error)

	// Unmap releases the CPU view obtained by Map.
	Unmap()

	// Release destroys the resource.
	Release()
}

// RootSignature describes how root-level resources are exposed to shaders.
type RootSignature interface {
	Desc() RootSignatureDesc
	Release()
}

// StateObject is an executable program container.
type StateObject interface {
	// ProgramIdentifier returns the runtime identifier of the named program.
	ProgramIdentifier(programName string) (ProgramIdentifier, error)

	// WorkGraphIndex returns the index of the named work graph.
	WorkGraphIndex(programName string) (uint32, error)

	// WorkGraphMemoryRequirements returns the backing memory the work
	// graph at index needs.
	WorkGraphMemoryRequirements(index uint32) (WorkGraphMemoryRequirements, error)

	// NumEntrypoints returns the number of entry nodes of a work graph.
	NumEntrypoints(index uint32) (uint32, error)

	// EntrypointIndex returns the entry point index of node.
	EntrypointIndex(index uint32, node NodeID) (uint32, error)

	// EntrypointRecordSizeInBytes returns the input record size of an
	// entry point.
	EntrypointRecordSizeInBytes(index, entrypoint uint32) (uint32, error)

	// Release destroys the state object.
	Release()
}
