// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package software

import (
	"fmt"
	"sync"

	"github.com/gogpu/workgraph/gpucore"
	"github.com/gogpu/workgraph/internal/logging"
)

// Resource is a committed buffer backed by host memory.
type Resource struct {
	dev  *Device
	desc gpucore.ResourceDesc
	heap gpucore.HeapType
	va   gpucore.GPUVirtualAddress
	size uint64
	data []byte

	mu       sync.Mutex
	mapCount int
	released bool
}

var _ gpucore.Resource = (*Resource)(nil)

// GPUVirtualAddress implements gpucore.Resource.
func (r *Resource) GPUVirtualAddress() gpucore.GPUVirtualAddress { return r.va }

// Desc implements gpucore.Resource.
func (r *Resource) Desc() gpucore.ResourceDesc { return r.desc }

// Heap implements gpucore.Resource.
func (r *Resource) Heap() gpucore.HeapType { return r.heap }

// Map implements gpucore.Resource.
func (r *Resource) Map() ([]byte, error) {
	if !r.heap.CPUVisible() {
		return nil, fmt.Errorf("%w: %v heap", gpucore.ErrNotMappable, r.heap)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released {
		return nil, fmt.Errorf("%w: resource %q", ErrReleased, r.desc.Label)
	}
	r.mapCount++
	return r.data, nil
}

// Unmap implements gpucore.Resource.
func (r *Resource) Unmap() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.mapCount == 0 {
		logging.L().Warn("software: unmap without map", "label", r.desc.Label)
		return
	}
	r.mapCount--
}

// MapCount returns the number of outstanding Map calls.
func (r *Resource) MapCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mapCount
}

// Release implements gpucore.Resource.
func (r *Resource) Release() {
	r.mu.Lock()
	if r.released {
		r.mu.Unlock()
		return
	}
	r.released = true
	r.mu.Unlock()
	r.dev.releaseResource(r)
}

func (r *Resource) alive() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released {
		return fmt.Errorf("%w: resource %q", ErrReleased, r.desc.Label)
	}
	return nil
}

// RootSignature is a deserialized root signature.
type RootSignature struct {
	dev  *Device
	desc gpucore.RootSignatureDesc
}

// Desc implements gpucore.RootSignature.
func (s *RootSignature) Desc() gpucore.RootSignatureDesc { return s.desc }

// Release implements gpucore.RootSignature.
func (s *RootSignature) Release() {}

// ownResource converts r to a resource of d.
func (d *Device) ownResource(r gpucore.Resource) (*Resource, error) {
	if r == nil {
		return nil, fmt.Errorf("%w: nil resource", gpucore.ErrInvalidArgument)
	}
	res, ok := r.(*Resource)
	if !ok || res.dev != d {
		return nil, gpucore.ErrForeignObject
	}
	return res, nil
}

// ownRootSignature converts s to a root signature of d.
func (d *Device) ownRootSignature(s gpucore.RootSignature) (*RootSignature, error) {
	if s == nil {
		return nil, fmt.Errorf("%w: nil root signature", gpucore.ErrInvalidArgument)
	}
	sig, ok := s.(*RootSignature)
	if !ok || sig.dev != d {
		return nil, gpucore.ErrForeignObject
	}
	return sig, nil
}
