// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package program

import (
	"errors"
	"testing"

	"github.com/gogpu/workgraph/gpucore"
	"github.com/gogpu/workgraph/internal/resource"
)

func TestAllocateBackingMemory(t *testing.T) {
	dev := newDevice(t)
	p := buildProgram(t, dev, "main")
	m, err := p.AllocateBackingMemory("main", resource.NewAllocator(dev))
	if err != nil {
		t.Fatalf("AllocateBackingMemory() error = %v", err)
	}
	defer m.Release()

	req := m.Requirement()
	buf := m.Buffer()
	if buf == nil {
		t.Fatal("Buffer() = nil")
	}
	if buf.Size() < req.MaxSizeInBytes {
		t.Errorf("Size() = %d, want at least %d", buf.Size(), req.MaxSizeInBytes)
	}
	if g := req.SizeGranularityInBytes; g != 0 && buf.Size()%g != 0 {
		t.Errorf("Size() = %d is not a multiple of %d", buf.Size(), g)
	}
	if buf.Heap() != gpucore.HeapTypeDefault {
		t.Errorf("Heap() = %v, want Default", buf.Heap())
	}
	if !buf.Resource().Desc().Flags.Contains(gpucore.ResourceFlagAllowUnorderedAccess) {
		t.Error("backing memory is not UAV writable")
	}
	r := m.Range()
	if r.StartAddress == 0 || r.SizeInBytes != buf.Size() {
		t.Errorf("Range() = %+v", r)
	}
}

func TestAllocateBackingMemoryOutOfMemory(t *testing.T) {
	dev := newDevice(t)
	p := buildProgram(t, dev, "main")
	p.graphs["main"].req.MaxSizeInBytes = 1 << 62

	_, err := p.AllocateBackingMemory("main", resource.NewAllocator(dev))
	if !errors.Is(err, gpucore.ErrAllocation) {
		t.Fatalf("AllocateBackingMemory() error = %v, want ErrAllocation", err)
	}
}

func TestBackingMemoryInitializeFlag(t *testing.T) {
	dev := newDevice(t)
	p := buildProgram(t, dev, "main", "second")
	m, err := p.AllocateBackingMemory("main", resource.NewAllocator(dev))
	if err != nil {
		t.Fatalf("AllocateBackingMemory() error = %v", err)
	}
	defer m.Release()
	main, _ := p.ResolveProgramIdentifier("main")
	second, _ := p.ResolveProgramIdentifier("second")

	initialize := func(id gpucore.ProgramIdentifier) bool {
		return m.SetWorkGraph(id).Flags&gpucore.SetWorkGraphFlagInitialize != 0
	}

	if !initialize(main) {
		t.Fatal("first use does not initialize")
	}
	if !initialize(main) {
		t.Fatal("initialize flag cleared before any dispatch retired")
	}
	m.MarkInitialized(main)
	if initialize(main) {
		t.Error("second use initializes again")
	}
	if !initialize(second) {
		t.Error("other program does not initialize")
	}

	m.MarkInitialized(second)
	if !initialize(main) {
		t.Error("program reused after another program overwrote the memory")
	}

	m.MarkInitialized(main)
	m.Invalidate()
	if !initialize(main) {
		t.Error("Invalidate() kept the initialization")
	}
	if got := m.SetWorkGraph(main); got.ProgramIdentifier != main || got.BackingMemory != m.Range() {
		t.Errorf("SetWorkGraph() = %+v", got)
	}
}

func TestRoundUp(t *testing.T) {
	tests := []struct {
		n, g, want uint64
	}{
		{0, 0, 0},
		{10, 0, 10},
		{10, 4, 12},
		{12, 4, 12},
		{1, 256, 256},
	}
	for _, tt := range tests {
		if got := roundUp(tt.n, tt.g); got != tt.want {
			t.Errorf("roundUp(%d, %d) = %d, want %d", tt.n, tt.g, got, tt.want)
		}
	}
}
