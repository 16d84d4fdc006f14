// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package software

import (
	"fmt"
	"slices"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/gogpu/workgraph/backend"
	"github.com/gogpu/workgraph/gpucore"
	"github.com/gogpu/workgraph/internal/logging"
)

// vaBase is the first virtual address handed out. Keeping it far from zero
// makes a zero or truncated address fault instead of aliasing a buffer.
const vaBase gpucore.GPUVirtualAddress = 1 << 32

// Device is a software gpucore.Device.
type Device struct {
	info     gpucore.AdapterInfo
	features map[gpucore.Feature]bool
	faults   FaultFunc

	mu        sync.Mutex
	nextVA    gpucore.GPUVirtualAddress
	used      uint64
	budget    uint64
	resources []*Resource
	fences    []*Fence
	programs  map[gpucore.ProgramIdentifier]*workGraph
	objects   uint64
	removed   error
	released  bool
}

var _ gpucore.Device = (*Device)(nil)

func newDevice(o options, enabled []gpucore.Feature) *Device {
	features := make(map[gpucore.Feature]bool, len(enabled))
	for _, f := range enabled {
		features[f] = true
	}
	return &Device{
		info: gpucore.AdapterInfo{
			Name:            o.adapterName,
			LUID:            uuid.NewString(),
			Backend:         backend.BackendSoftware,
			DedicatedMemory: o.memoryBudget,
		},
		features: features,
		faults:   o.faults,
		nextVA:   vaBase,
		budget:   o.memoryBudget,
		programs: make(map[gpucore.ProgramIdentifier]*workGraph),
	}
}

// Adapter implements gpucore.Device.
func (d *Device) Adapter() gpucore.AdapterInfo { return d.info }

// MemoryUsage returns the bytes of device memory currently committed.
func (d *Device) MemoryUsage() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.used
}

// featureEnabled reports whether f was enabled when the device was created.
func (d *Device) featureEnabled(f gpucore.Feature) bool {
	return d.features[f]
}

// RemovedReason implements gpucore.Device.
func (d *Device) RemovedReason() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.removed
}

// RemoveDevice removes the device as if the driver had reset it.
// Pending and future fence waits complete with the removed sentinel.
func (d *Device) RemoveDevice() {
	d.remove(ErrDeviceRemoved)
}

// remove records the first removal reason and releases every fence waiter.
func (d *Device) remove(cause error) {
	d.mu.Lock()
	if d.removed != nil {
		d.mu.Unlock()
		return
	}
	d.removed = fmt.Errorf("%w: %w", gpucore.ErrDeviceLost, cause)
	fences := slices.Clone(d.fences)
	d.mu.Unlock()

	logging.L().Warn("software: device removed", "reason", cause)
	for _, f := range fences {
		f.signal(gpucore.FenceValueDeviceRemoved)
	}
}

// checkAlive returns an error if the device can no longer create objects.
func (d *Device) checkAlive() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.released {
		return fmt.Errorf("%w: device", ErrReleased)
	}
	return d.removed
}

// CreateFence implements gpucore.Device.
func (d *Device) CreateFence(initialValue uint64) (gpucore.Fence, error) {
	if err := d.checkAlive(); err != nil {
		return nil, err
	}
	f := &Fence{dev: d, value: initialValue}
	d.mu.Lock()
	d.fences = append(d.fences, f)
	d.mu.Unlock()
	return f, nil
}

// CreateCommandAllocator implements gpucore.Device.
func (d *Device) CreateCommandAllocator(t gpucore.CommandListType) (gpucore.CommandAllocator, error) {
	if err := d.checkAlive(); err != nil {
		return nil, err
	}
	if t != gpucore.CommandListTypeDirect {
		return nil, fmt.Errorf("%w: command list type %d", gpucore.ErrInvalidArgument, t)
	}
	return &CommandAllocator{dev: d}, nil
}

// CreateCommandQueue implements gpucore.Device.
func (d *Device) CreateCommandQueue(desc *gpucore.CommandQueueDesc) (gpucore.CommandQueue, error) {
	if err := d.checkAlive(); err != nil {
		return nil, err
	}
	if desc == nil || desc.Type != gpucore.CommandListTypeDirect {
		return nil, fmt.Errorf("%w: command queue descriptor", gpucore.ErrInvalidArgument)
	}
	return newCommandQueue(d, *desc), nil
}

// CreateCommandList implements gpucore.Device. The list is open.
func (d *Device) CreateCommandList(t gpucore.CommandListType, allocator gpucore.CommandAllocator) (gpucore.CommandList, error) {
	if err := d.checkAlive(); err != nil {
		return nil, err
	}
	if t != gpucore.CommandListTypeDirect {
		return nil, fmt.Errorf("%w: command list type %d", gpucore.ErrInvalidArgument, t)
	}
	l := &CommandList{dev: d}
	if err := l.Reset(allocator); err != nil {
		return nil, err
	}
	return l, nil
}

// CreateRootSignature implements gpucore.Device.
func (d *Device) CreateRootSignature(blob []byte) (gpucore.RootSignature, error) {
	if err := d.checkAlive(); err != nil {
		return nil, err
	}
	desc, err := gpucore.DeserializeRootSignature(blob)
	if err != nil {
		return nil, err
	}
	return &RootSignature{dev: d, desc: *desc}, nil
}

// CreateCommittedResource implements gpucore.Device.
func (d *Device) CreateCommittedResource(heap gpucore.HeapType, desc *gpucore.ResourceDesc, initialState gpucore.ResourceState) (gpucore.Resource, error) {
	if err := d.checkAlive(); err != nil {
		return nil, err
	}
	if desc == nil {
		return nil, fmt.Errorf("%w: nil resource descriptor", gpucore.ErrInvalidArgument)
	}
	switch heap {
	case gpucore.HeapTypeDefault, gpucore.HeapTypeUpload, gpucore.HeapTypeReadback:
	default:
		return nil, fmt.Errorf("%w: heap type %v", gpucore.ErrInvalidArgument, heap)
	}
	if desc.Width == 0 || desc.Width%gpucore.BufferAlignment != 0 {
		return nil, fmt.Errorf("%w: buffer width %d", gpucore.ErrInvalidArgument, desc.Width)
	}
	if desc.Flags.Contains(gpucore.ResourceFlagAllowUnorderedAccess) && heap != gpucore.HeapTypeDefault {
		return nil, fmt.Errorf("%w: unordered access on %v heap", gpucore.ErrInvalidArgument, heap)
	}
	switch initialState {
	case gpucore.ResourceStateCommon, gpucore.ResourceStateUnorderedAccess,
		gpucore.ResourceStateCopyDest, gpucore.ResourceStateCopySource:
	default:
		return nil, fmt.Errorf("%w: initial state %v", gpucore.ErrInvalidArgument, initialState)
	}

	size := alignUp(desc.Width, gpucore.PlacementAlignment)

	d.mu.Lock()
	if d.used+size > d.budget || d.used+size < d.used {
		used, budget := d.used, d.budget
		d.mu.Unlock()
		return nil, fmt.Errorf("%w: %s requested, %s of %s in use",
			gpucore.ErrOutOfMemory, humanize.IBytes(desc.Width), humanize.IBytes(used), humanize.IBytes(budget))
	}
	r := &Resource{
		dev:  d,
		desc: *desc,
		heap: heap,
		va:   d.nextVA,
		size: size,
		data: make([]byte, desc.Width),
	}
	d.nextVA += gpucore.GPUVirtualAddress(size)
	d.used += size
	d.resources = append(d.resources, r)
	d.mu.Unlock()

	logging.L().Debug("software: resource created",
		"label", desc.Label,
		"heap", heap,
		"size", humanize.IBytes(desc.Width),
		"va", fmt.Sprintf("%#x", uint64(r.va)))
	return r, nil
}

// lookup resolves [addr, addr+size) to a live resource and the byte offset
// of addr inside it.
func (d *Device) lookup(addr gpucore.GPUVirtualAddress, size uint64) (*Resource, uint64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, r := range d.resources {
		rng := gpucore.GPUVirtualAddressRange{StartAddress: r.va, SizeInBytes: r.desc.Width}
		if rng.Contains(addr, 0) && addr < rng.End() {
			if !rng.Contains(addr, size) {
				return nil, 0, fmt.Errorf("%w: range %#x+%d crosses the end of %q",
					ErrOutOfBounds, uint64(addr), size, r.desc.Label)
			}
			return r, uint64(addr - r.va), nil
		}
	}
	return nil, 0, fmt.Errorf("%w: address %#x is not mapped", ErrOutOfBounds, uint64(addr))
}

func (d *Device) releaseResource(r *Resource) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if i := slices.Index(d.resources, r); i >= 0 {
		d.resources = slices.Delete(d.resources, i, i+1)
		d.used -= r.size
	}
}

func (d *Device) releaseFence(f *Fence) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if i := slices.Index(d.fences, f); i >= 0 {
		d.fences = slices.Delete(d.fences, i, i+1)
	}
}

// Release implements gpucore.Device.
func (d *Device) Release() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.released {
		return
	}
	d.released = true
	if n := len(d.resources); n > 0 {
		logging.L().Warn("software: device released with live resources", "count", n)
	}
}

func alignUp(v, align uint64) uint64 {
	return (v + align - 1) &^ (align - 1)
}
