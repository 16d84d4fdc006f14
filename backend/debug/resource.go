// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package debug

import (
	"github.com/gogpu/workgraph/gpucore"
)

// Resource is a committed resource with a tracked state.
type Resource struct {
	dev   *Device
	inner gpucore.Resource

	// guarded by dev.mu
	state gpucore.ResourceState
	maps  int
}

var _ gpucore.Resource = (*Resource)(nil)

// GPUVirtualAddress implements gpucore.Resource.
func (r *Resource) GPUVirtualAddress() gpucore.GPUVirtualAddress { return r.inner.GPUVirtualAddress() }

// Desc implements gpucore.Resource.
func (r *Resource) Desc() gpucore.ResourceDesc { return r.inner.Desc() }

// Heap implements gpucore.Resource.
func (r *Resource) Heap() gpucore.HeapType { return r.inner.Heap() }

// State returns the state the resource is in after the last executed list.
func (r *Resource) State() gpucore.ResourceState {
	r.dev.mu.Lock()
	defer r.dev.mu.Unlock()
	return r.state
}

// Map implements gpucore.Resource.
func (r *Resource) Map() ([]byte, error) {
	data, err := r.inner.Map()
	if err != nil {
		return nil, err
	}
	r.dev.mu.Lock()
	r.maps++
	r.dev.mu.Unlock()
	return data, nil
}

// Unmap implements gpucore.Resource. Unmapping a resource that is not
// mapped is reported and ignored.
func (r *Resource) Unmap() {
	r.dev.mu.Lock()
	if r.maps == 0 {
		r.dev.mu.Unlock()
		r.dev.report(SeverityError, "Unmap", "resource %q is not mapped", r.label())
		return
	}
	r.maps--
	r.dev.mu.Unlock()
	r.inner.Unmap()
}

// Release implements gpucore.Resource.
func (r *Resource) Release() {
	r.dev.mu.Lock()
	maps := r.maps
	r.dev.mu.Unlock()
	if maps > 0 {
		r.dev.report(SeverityWarning, "Release", "resource %q released while mapped %d times", r.label(), maps)
	}
	r.dev.forget(r)
	r.inner.Release()
}

func (r *Resource) label() string {
	if l := r.inner.Desc().Label; l != "" {
		return l
	}
	return r.inner.Heap().String() + " buffer"
}

// unwrapResource returns the resource the driver knows about.
func unwrapResource(r gpucore.Resource) (gpucore.Resource, *Resource) {
	if dr, ok := r.(*Resource); ok {
		return dr.inner, dr
	}
	return r, nil
}
