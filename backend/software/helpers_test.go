// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package software

import (
	"encoding/binary"
	"testing"

	"github.com/gogpu/workgraph/gpucore"
	"github.com/gogpu/workgraph/internal/spirv/spirvtest"
)

// newTestDevice enables the work graph features and creates a device.
func newTestDevice(t *testing.T, opts ...Option) *Device {
	t.Helper()
	gpucore.ResetFeatures()
	t.Cleanup(gpucore.ResetFeatures)

	b := New(opts...)
	if err := b.Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if err := gpucore.EnableExperimentalFeatures(b, gpucore.WorkGraphFeatures()...); err != nil {
		t.Fatalf("EnableExperimentalFeatures() error = %v", err)
	}
	d, err := b.NewDevice()
	if err != nil {
		t.Fatalf("NewDevice() error = %v", err)
	}
	t.Cleanup(d.Release)
	return d
}

// testStream is a queue, allocator, list, and fence driven synchronously.
type testStream struct {
	t     *testing.T
	dev   *Device
	queue gpucore.CommandQueue
	alloc gpucore.CommandAllocator
	list  gpucore.CommandList
	fence gpucore.Fence
	value uint64
}

func newTestStream(t *testing.T, d *Device) *testStream {
	t.Helper()
	q, err := d.CreateCommandQueue(&gpucore.CommandQueueDesc{Type: gpucore.CommandListTypeDirect, Label: t.Name()})
	if err != nil {
		t.Fatalf("CreateCommandQueue() error = %v", err)
	}
	a, err := d.CreateCommandAllocator(gpucore.CommandListTypeDirect)
	if err != nil {
		t.Fatalf("CreateCommandAllocator() error = %v", err)
	}
	l, err := d.CreateCommandList(gpucore.CommandListTypeDirect, a)
	if err != nil {
		t.Fatalf("CreateCommandList() error = %v", err)
	}
	f, err := d.CreateFence(0)
	if err != nil {
		t.Fatalf("CreateFence() error = %v", err)
	}
	s := &testStream{t: t, dev: d, queue: q, alloc: a, list: l, fence: f}
	t.Cleanup(func() {
		q.Release()
		f.Release()
		l.Release()
		a.Release()
	})
	return s
}

// flush closes, submits, and waits for the list, then reopens it.
// It returns the wait result instead of failing so tests can inspect loss.
func (s *testStream) flush() (gpucore.WaitResult, error) {
	s.t.Helper()
	if err := s.list.Close(); err != nil {
		return gpucore.WaitAbandoned, err
	}
	if err := s.queue.ExecuteCommandLists(s.list); err != nil {
		return gpucore.WaitAbandoned, err
	}
	s.value++
	if err := s.queue.Signal(s.fence, s.value); err != nil {
		return gpucore.WaitAbandoned, err
	}
	ev := gpucore.NewEvent()
	defer ev.Close()
	if err := s.fence.SetEventOnCompletion(s.value, ev); err != nil {
		return gpucore.WaitAbandoned, err
	}
	res, err := ev.Wait()
	if err != nil || s.fence.CompletedValue() == gpucore.FenceValueDeviceRemoved {
		return res, err
	}
	if err := s.alloc.Reset(); err != nil {
		s.t.Fatalf("allocator Reset() error = %v", err)
	}
	if err := s.list.Reset(s.alloc); err != nil {
		s.t.Fatalf("list Reset() error = %v", err)
	}
	return res, nil
}

// mustFlush flushes and fails the test unless the batch retired cleanly.
func (s *testStream) mustFlush() {
	s.t.Helper()
	if _, err := s.flush(); err != nil {
		s.t.Fatalf("flush() error = %v", err)
	}
	if err := s.dev.RemovedReason(); err != nil {
		s.t.Fatalf("device removed: %v", err)
	}
}

// testGraph is the two-node graph: a broadcasting entry node with a
// 2-thread group fans each record out to four thread-launch writes.
type testGraph struct {
	first, second string
	library       []byte
}

func registerTestGraph(t *testing.T) testGraph {
	t.Helper()
	g := testGraph{first: t.Name() + "/First", second: t.Name() + "/Second"}

	RegisterNode(g.first, NodeKernel{
		Launch:          LaunchBroadcasting,
		RecordSize:      20,
		GridFromRecord:  true,
		MaxDispatchGrid: [3]uint32{16, 1, 1},
		Outputs:         []NodeOutput{{Target: g.second, MaxRecords: 2}},
		Run: func(inv *Invocation) error {
			rec := make([]byte, 8)
			binary.LittleEndian.PutUint32(rec[0:], inv.Uint32(12)*4+inv.DispatchThreadID[0])
			binary.LittleEndian.PutUint32(rec[4:], inv.Uint32(16))
			return inv.Emit(g.second, rec)
		},
	})
	RegisterNode(g.second, NodeKernel{
		Launch:     LaunchThread,
		RecordSize: 8,
		Run: func(inv *Invocation) error {
			out, err := inv.UAV(0, 0)
			if err != nil {
				return err
			}
			return out.Store(inv.Uint32(0)*4, inv.Uint32(4))
		},
	})
	t.Cleanup(func() {
		UnregisterNode(g.first)
		UnregisterNode(g.second)
	})

	g.library = spirvtest.Module{
		Entries: []spirvtest.Entry{
			{Name: g.first, LocalSize: [3]uint32{2, 1, 1}},
			{Name: g.second},
		},
		Bindings: []spirvtest.Binding{{Name: "output", Set: 0, Binding: 0}},
	}.Bytes()
	return g
}

func testRootSignature(t *testing.T, d *Device) gpucore.RootSignature {
	t.Helper()
	blob, err := gpucore.SerializeRootSignature(&gpucore.RootSignatureDesc{
		Version: gpucore.RootSignatureVersion1_1,
		Parameters: []gpucore.RootParameter{{
			Type:       gpucore.RootParameterTypeUAV,
			Flags:      gpucore.RootDescriptorFlagDataVolatile,
			Visibility: gpucore.ShaderVisibilityAll,
		}},
	})
	if err != nil {
		t.Fatalf("SerializeRootSignature() error = %v", err)
	}
	sig, err := d.CreateRootSignature(blob)
	if err != nil {
		t.Fatalf("CreateRootSignature() error = %v", err)
	}
	return sig
}

func workGraphDesc(library []byte, program string, sig gpucore.RootSignature) *gpucore.StateObjectDesc {
	return &gpucore.StateObjectDesc{
		Type: gpucore.StateObjectTypeExecutable,
		Subobjects: []gpucore.StateSubobject{
			{Type: gpucore.SubobjectTypeLibrary, Desc: &gpucore.LibraryDesc{Bytecode: library, Profile: "lib_6_8"}},
			{Type: gpucore.SubobjectTypeWorkGraph, Desc: &gpucore.WorkGraphDesc{
				ProgramName: program,
				Flags:       gpucore.WorkGraphFlagIncludeAllAvailableNodes,
			}},
			{Type: gpucore.SubobjectTypeGlobalRootSignature, Desc: &gpucore.GlobalRootSignature{RootSignature: sig}},
		},
	}
}

func createBuffer(t *testing.T, d *Device, heap gpucore.HeapType, size uint64, flags gpucore.ResourceFlags) gpucore.Resource {
	t.Helper()
	r, err := d.CreateCommittedResource(heap, &gpucore.ResourceDesc{Label: t.Name(), Width: size, Flags: flags}, gpucore.ResourceStateCommon)
	if err != nil {
		t.Fatalf("CreateCommittedResource(%v, %d) error = %v", heap, size, err)
	}
	t.Cleanup(r.Release)
	return r
}

// seedRecords encodes {grid, index, value} records.
func seedRecords(recs ...[5]uint32) []byte {
	out := make([]byte, 0, len(recs)*20)
	for _, r := range recs {
		for _, v := range r {
			out = binary.LittleEndian.AppendUint32(out, v)
		}
	}
	return out
}
