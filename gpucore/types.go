// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpucore

import "fmt"

// GPUVirtualAddress is an address in the device's virtual address space.
// Zero is never a valid address.
type GPUVirtualAddress uint64

// GPUVirtualAddressRange is a contiguous range of device memory.
type GPUVirtualAddressRange struct {
	StartAddress GPUVirtualAddress
	SizeInBytes  uint64
}

// End returns the first address past the range.
func (r GPUVirtualAddressRange) End() GPUVirtualAddress {
	return r.StartAddress + GPUVirtualAddress(r.SizeInBytes)
}

// Contains reports whether [addr, addr+size) lies inside the range.
func (r GPUVirtualAddressRange) Contains(addr GPUVirtualAddress, size uint64) bool {
	if addr < r.StartAddress {
		return false
	}
	end := addr + GPUVirtualAddress(size)
	return end >= addr && end <= r.End()
}

// Alignment requirements.
const (
	// BufferAlignment is the size alignment of raw buffers in bytes.
	BufferAlignment = 4

	// PlacementAlignment is the alignment of every committed resource in the
	// virtual address space.
	PlacementAlignment = 64 << 10

	// FenceValueDeviceRemoved is the completed value a fence reports after
	// the device was removed.
	FenceValueDeviceRemoved = ^uint64(0)
)

// HeapType selects where a committed resource lives.
type HeapType int

const (
	// HeapTypeDefault is device-local memory, not CPU visible.
	HeapTypeDefault HeapType = iota + 1

	// HeapTypeUpload is CPU-writable memory readable by the device.
	HeapTypeUpload

	// HeapTypeReadback is device-writable memory readable by the CPU.
	HeapTypeReadback
)

// String returns the string representation of HeapType.
func (h HeapType) String() string {
	switch h {
	case HeapTypeDefault:
		return "Default"
	case HeapTypeUpload:
		return "Upload"
	case HeapTypeReadback:
		return "Readback"
	default:
		return fmt.Sprintf("Unknown(%d)", int(h))
	}
}

// CPUVisible reports whether resources on this heap can be mapped.
func (h HeapType) CPUVisible() bool {
	return h == HeapTypeUpload || h == HeapTypeReadback
}

// ResourceFlags is a bitmask of resource capabilities.
type ResourceFlags uint32

const (
	// ResourceFlagNone requests no extra capability.
	ResourceFlagNone ResourceFlags = 0

	// ResourceFlagAllowUnorderedAccess allows shader writes through a UAV.
	ResourceFlagAllowUnorderedAccess ResourceFlags = 1 << 0
)

// Contains reports whether all bits of other are set.
func (f ResourceFlags) Contains(other ResourceFlags) bool {
	return f&other == other
}

// ResourceState is the usage state a resource is in on the GPU timeline.
type ResourceState uint32

const (
	// ResourceStateCommon is the initial state of buffers; it may be
	// implicitly promoted on first use.
	ResourceStateCommon ResourceState = 0

	// ResourceStateUnorderedAccess allows shader reads and writes.
	ResourceStateUnorderedAccess ResourceState = 0x8

	// ResourceStateCopyDest allows the resource to be a copy destination.
	ResourceStateCopyDest ResourceState = 0x400

	// ResourceStateCopySource allows the resource to be a copy source.
	ResourceStateCopySource ResourceState = 0x800
)

// String returns the string representation of ResourceState.
func (s ResourceState) String() string {
	switch s {
	case ResourceStateCommon:
		return "Common"
	case ResourceStateUnorderedAccess:
		return "UnorderedAccess"
	case ResourceStateCopyDest:
		return "CopyDest"
	case ResourceStateCopySource:
		return "CopySource"
	default:
		return fmt.Sprintf("ResourceState(%#x)", uint32(s))
	}
}

// ResourceDesc describes a committed buffer resource.
type ResourceDesc struct {
	// Label is an optional debug name.
	Label string

	// Width is the buffer size in bytes.
	Width uint64

	// Flags are the resource capabilities.
	Flags ResourceFlags
}

// CommandListType selects the queue class a list or allocator belongs to.
type CommandListType int

const (
	// CommandListTypeDirect lists may record compute, copy, and graph commands.
	CommandListTypeDirect CommandListType = iota
)

// CommandQueueDesc describes a command queue.
type CommandQueueDesc struct {
	Type  CommandListType
	Label string
}

// BarrierType selects the kind of a ResourceBarrier.
type BarrierType int

const (
	// BarrierTypeTransition moves a resource between states.
	BarrierTypeTransition BarrierType = iota

	// BarrierTypeUAV orders UAV accesses to the same resource.
	BarrierTypeUAV
)

// TransitionBarrier describes a state transition.
type TransitionBarrier struct {
	Resource    Resource
	StateBefore ResourceState
	StateAfter  ResourceState
}

// UAVBarrier describes a UAV ordering barrier.
type UAVBarrier struct {
	Resource Resource
}

// ResourceBarrier is a single barrier recorded with CommandList.ResourceBarrier.
type ResourceBarrier struct {
	Type       BarrierType
	Transition TransitionBarrier
	UAV        UAVBarrier
}

// NewTransitionBarrier returns a transition barrier for r.
func NewTransitionBarrier(r Resource, before, after ResourceState) ResourceBarrier {
	return ResourceBarrier{
		Type: BarrierTypeTransition,
		Transition: TransitionBarrier{
			Resource:    r,
			StateBefore: before,
			StateAfter:  after,
		},
	}
}

// AdapterInfo identifies the adapter a device was created on.
type AdapterInfo struct {
	// Name is the human readable adapter name.
	Name string

	// LUID uniquely identifies the adapter for the lifetime of the process.
	LUID string

	// Backend is the backend registry name that created the device.
	Backend string

	// DedicatedMemory is the device-local memory budget in bytes.
	DedicatedMemory uint64
}
