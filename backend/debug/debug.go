// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package debug

import (
	"fmt"
	"slices"
	"sync"

	"github.com/gogpu/workgraph/backend"
	"github.com/gogpu/workgraph/gpucore"
	"github.com/gogpu/workgraph/internal/logging"
)

// Option configures the validation layer.
type Option func(*options)

type options struct {
	onMessage MessageFunc
}

// WithMessageFunc installs a callback for every violation.
func WithMessageFunc(fn MessageFunc) Option {
	return func(o *options) {
		o.onMessage = fn
	}
}

// Backend wraps a device backend so every device it creates is validated.
type Backend struct {
	inner backend.DeviceBackend
	opts  []Option
}

var _ backend.DeviceBackend = (*Backend)(nil)

// New enables the validation layer on inner.
func New(inner backend.DeviceBackend, opts ...Option) *Backend {
	return &Backend{inner: inner, opts: opts}
}

// Name returns the name of the wrapped backend.
func (b *Backend) Name() string { return b.inner.Name() }

// Init initializes the wrapped backend.
func (b *Backend) Init() error { return b.inner.Init() }

// Close closes the wrapped backend.
func (b *Backend) Close() { b.inner.Close() }

// EnableExperimentalFeatures implements gpucore.FeatureEnabler.
func (b *Backend) EnableExperimentalFeatures(features []gpucore.Feature) error {
	return b.inner.EnableExperimentalFeatures(features)
}

// CreateDevice creates a device on the wrapped backend and wraps it.
func (b *Backend) CreateDevice() (gpucore.Device, error) {
	d, err := b.inner.CreateDevice()
	if err != nil {
		return nil, err
	}
	return Wrap(d, b.opts...), nil
}

// backingKey identifies backing memory initialized for a program.
type backingKey struct {
	program gpucore.ProgramIdentifier
	start   gpucore.GPUVirtualAddress
}

// Device is a validating gpucore.Device.
type Device struct {
	inner gpucore.Device
	opts  options

	mu          sync.Mutex
	resources   []*Resource
	initialized map[backingKey]bool
}

var _ gpucore.Device = (*Device)(nil)

// Wrap returns a validating view of dev. Objects created through the
// returned device must be used with it rather than with dev.
func Wrap(dev gpucore.Device, opts ...Option) *Device {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	logging.L().Info("debug: validation layer enabled", "adapter", dev.Adapter().Name)
	return &Device{inner: dev, opts: o, initialized: make(map[backingKey]bool)}
}

// Unwrap returns the wrapped device.
func (d *Device) Unwrap() gpucore.Device { return d.inner }

// report delivers a violation to the callback and the logger.
func (d *Device) report(sev Severity, cmd, format string, args ...any) *Violation {
	v := &Violation{Severity: sev, Command: cmd, Message: fmt.Sprintf(format, args...)}
	logging.L().Warn("debug: validation message",
		"severity", sev.String(),
		"command", cmd,
		"message", v.Message)
	if d.opts.onMessage != nil {
		d.opts.onMessage(*v)
	}
	return v
}

// Adapter implements gpucore.Device.
func (d *Device) Adapter() gpucore.AdapterInfo { return d.inner.Adapter() }

// CreateFence implements gpucore.Device.
func (d *Device) CreateFence(initialValue uint64) (gpucore.Fence, error) {
	return d.inner.CreateFence(initialValue)
}

// CreateCommandAllocator implements gpucore.Device.
func (d *Device) CreateCommandAllocator(t gpucore.CommandListType) (gpucore.CommandAllocator, error) {
	return d.inner.CreateCommandAllocator(t)
}

// CreateCommandQueue implements gpucore.Device.
func (d *Device) CreateCommandQueue(desc *gpucore.CommandQueueDesc) (gpucore.CommandQueue, error) {
	q, err := d.inner.CreateCommandQueue(desc)
	if err != nil {
		return nil, err
	}
	return &CommandQueue{dev: d, inner: q}, nil
}

// CreateCommandList implements gpucore.Device.
func (d *Device) CreateCommandList(t gpucore.CommandListType, allocator gpucore.CommandAllocator) (gpucore.CommandList, error) {
	l, err := d.inner.CreateCommandList(t, allocator)
	if err != nil {
		return nil, err
	}
	cl := &CommandList{dev: d, inner: l}
	cl.reset()
	return cl, nil
}

// CreateRootSignature implements gpucore.Device.
func (d *Device) CreateRootSignature(blob []byte) (gpucore.RootSignature, error) {
	return d.inner.CreateRootSignature(blob)
}

// CreateStateObject implements gpucore.Device.
func (d *Device) CreateStateObject(desc *gpucore.StateObjectDesc) (gpucore.StateObject, error) {
	return d.inner.CreateStateObject(desc)
}

// CreateCommittedResource implements gpucore.Device.
func (d *Device) CreateCommittedResource(heap gpucore.HeapType, desc *gpucore.ResourceDesc, initialState gpucore.ResourceState) (gpucore.Resource, error) {
	const cmd = "CreateCommittedResource"
	if heap == gpucore.HeapTypeReadback && initialState != gpucore.ResourceStateCopyDest {
		d.report(SeverityWarning, cmd, "readback heap resources should be created in CopyDest, got %v", initialState)
	}
	if heap == gpucore.HeapTypeDefault && desc != nil && initialState == gpucore.ResourceStateUnorderedAccess &&
		!desc.Flags.Contains(gpucore.ResourceFlagAllowUnorderedAccess) {
		d.report(SeverityWarning, cmd, "initial state UnorderedAccess without the unordered access flag")
	}
	r, err := d.inner.CreateCommittedResource(heap, desc, initialState)
	if err != nil {
		return nil, err
	}
	res := &Resource{dev: d, inner: r, state: initialState}
	d.mu.Lock()
	d.resources = append(d.resources, res)
	d.mu.Unlock()
	return res, nil
}

// RemovedReason implements gpucore.Device.
func (d *Device) RemovedReason() error { return d.inner.RemovedReason() }

// Release implements gpucore.Device. Resources that are still mapped are
// reported.
func (d *Device) Release() {
	d.mu.Lock()
	var mapped []string
	for _, r := range d.resources {
		if r.maps > 0 {
			mapped = append(mapped, r.label())
		}
	}
	d.mu.Unlock()
	if len(mapped) > 0 {
		d.report(SeverityWarning, "Release", "device released with mapped resources %v", mapped)
	}
	d.inner.Release()
}

// resourceAt returns the device-local resource containing addr.
func (d *Device) resourceAt(addr gpucore.GPUVirtualAddress) *Resource {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, r := range d.resources {
		if r.inner.Heap() != gpucore.HeapTypeDefault {
			continue
		}
		rng := gpucore.GPUVirtualAddressRange{StartAddress: r.inner.GPUVirtualAddress(), SizeInBytes: r.inner.Desc().Width}
		if addr >= rng.StartAddress && addr < rng.End() {
			return r
		}
	}
	return nil
}

func (d *Device) forget(r *Resource) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if i := slices.Index(d.resources, r); i >= 0 {
		d.resources = slices.Delete(d.resources, i, i+1)
	}
}
