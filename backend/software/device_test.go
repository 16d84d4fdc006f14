// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package software

import (
	"errors"
	"testing"

	"github.com/gogpu/workgraph/backend"
	"github.com/gogpu/workgraph/gpucore"
)

func TestBackendRegistered(t *testing.T) {
	if !backend.IsRegistered(backend.BackendSoftware) {
		t.Fatal("software backend is not registered")
	}
	if b := backend.Get(backend.BackendSoftware); b == nil || b.Name() != backend.BackendSoftware {
		t.Errorf("Get(software) = %v", b)
	}
}

func TestNewDeviceBeforeInit(t *testing.T) {
	if _, err := New().NewDevice(); !errors.Is(err, backend.ErrNotInitialized) {
		t.Errorf("NewDevice() before Init error = %v, want ErrNotInitialized", err)
	}
}

func TestDeveloperModeOff(t *testing.T) {
	gpucore.ResetFeatures()
	t.Cleanup(gpucore.ResetFeatures)

	b := New(WithDeveloperMode(false))
	err := gpucore.EnableExperimentalFeatures(b, gpucore.WorkGraphFeatures()...)
	if !errors.Is(err, gpucore.ErrFeatureNotSupported) {
		t.Fatalf("EnableExperimentalFeatures() error = %v, want ErrFeatureNotSupported", err)
	}
	if gpucore.FeatureEnabled(gpucore.FeatureStateObjectsExperiment) {
		t.Error("feature recorded although the backend refused it")
	}
}

func TestFeaturesSealedByDevice(t *testing.T) {
	gpucore.ResetFeatures()
	t.Cleanup(gpucore.ResetFeatures)

	b := New()
	if err := b.Init(); err != nil {
		t.Fatal(err)
	}
	d, err := b.NewDevice()
	if err != nil {
		t.Fatal(err)
	}
	defer d.Release()

	err = gpucore.EnableExperimentalFeatures(b, gpucore.FeatureStateObjectsExperiment)
	if !errors.Is(err, gpucore.ErrFeaturesSealed) {
		t.Errorf("EnableExperimentalFeatures() after device creation error = %v, want ErrFeaturesSealed", err)
	}
}

func TestAdapterInfo(t *testing.T) {
	d := newTestDevice(t, WithAdapterName("Test Adapter"), WithMemoryBudget(1<<20))
	info := d.Adapter()
	if info.Name != "Test Adapter" {
		t.Errorf("Name = %q", info.Name)
	}
	if info.Backend != backend.BackendSoftware {
		t.Errorf("Backend = %q", info.Backend)
	}
	if info.LUID == "" {
		t.Error("LUID is empty")
	}
	if info.DedicatedMemory != 1<<20 {
		t.Errorf("DedicatedMemory = %d", info.DedicatedMemory)
	}
}

func TestCreateCommittedResource(t *testing.T) {
	d := newTestDevice(t, WithMemoryBudget(4*gpucore.PlacementAlignment))

	tests := []struct {
		name  string
		heap  gpucore.HeapType
		width uint64
		flags gpucore.ResourceFlags
		want  error
	}{
		{"zero width", gpucore.HeapTypeDefault, 0, 0, gpucore.ErrInvalidArgument},
		{"unaligned width", gpucore.HeapTypeDefault, 6, 0, gpucore.ErrInvalidArgument},
		{"bad heap", gpucore.HeapType(99), 16, 0, gpucore.ErrInvalidArgument},
		{"uav on readback", gpucore.HeapTypeReadback, 16, gpucore.ResourceFlagAllowUnorderedAccess, gpucore.ErrInvalidArgument},
		{"over budget", gpucore.HeapTypeDefault, 5 * gpucore.PlacementAlignment, 0, gpucore.ErrOutOfMemory},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := d.CreateCommittedResource(tt.heap, &gpucore.ResourceDesc{Width: tt.width, Flags: tt.flags}, gpucore.ResourceStateCommon)
			if !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}

	a := createBuffer(t, d, gpucore.HeapTypeDefault, 16, gpucore.ResourceFlagAllowUnorderedAccess)
	b := createBuffer(t, d, gpucore.HeapTypeReadback, 16, 0)
	if a.GPUVirtualAddress()%gpucore.PlacementAlignment != 0 || b.GPUVirtualAddress()%gpucore.PlacementAlignment != 0 {
		t.Errorf("addresses %#x and %#x are not placement aligned", a.GPUVirtualAddress(), b.GPUVirtualAddress())
	}
	if a.GPUVirtualAddress() == b.GPUVirtualAddress() {
		t.Error("resources share an address")
	}
	if got := d.MemoryUsage(); got != 2*gpucore.PlacementAlignment {
		t.Errorf("MemoryUsage() = %d, want %d", got, 2*gpucore.PlacementAlignment)
	}

	if _, err := a.Map(); !errors.Is(err, gpucore.ErrNotMappable) {
		t.Errorf("Map() on default heap error = %v, want ErrNotMappable", err)
	}
	data, err := b.Map()
	if err != nil {
		t.Fatalf("Map() on readback heap error = %v", err)
	}
	if len(data) != 16 {
		t.Errorf("len(Map()) = %d, want 16", len(data))
	}
	if got := b.(*Resource).MapCount(); got != 1 {
		t.Errorf("MapCount() = %d, want 1", got)
	}
	b.Unmap()
	if got := b.(*Resource).MapCount(); got != 0 {
		t.Errorf("MapCount() after Unmap = %d, want 0", got)
	}

	a.Release()
	if got := d.MemoryUsage(); got != gpucore.PlacementAlignment {
		t.Errorf("MemoryUsage() after Release = %d, want %d", got, gpucore.PlacementAlignment)
	}
}

func TestFenceSignalOrder(t *testing.T) {
	d := newTestDevice(t)
	s := newTestStream(t, d)

	for want := uint64(1); want <= 5; want++ {
		res, err := s.flush()
		if err != nil || res != gpucore.WaitSignaled {
			t.Fatalf("flush %d = %v, %v", want, res, err)
		}
		if got := s.fence.CompletedValue(); got != want {
			t.Errorf("CompletedValue() after flush %d = %d", want, got)
		}
	}
}

func TestSetEventOnCompletionReached(t *testing.T) {
	d := newTestDevice(t)
	f, err := d.CreateFence(7)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Release()

	ev := gpucore.NewEvent()
	defer ev.Close()
	if err := f.SetEventOnCompletion(3, ev); err != nil {
		t.Fatal(err)
	}
	if res, err := ev.Wait(); res != gpucore.WaitSignaled || err != nil {
		t.Errorf("Wait() = %v, %v, want signaled", res, err)
	}
	if err := f.SetEventOnCompletion(1, nil); !errors.Is(err, gpucore.ErrInvalidArgument) {
		t.Errorf("SetEventOnCompletion(nil) error = %v", err)
	}
}

func TestAllocatorResetWhileInFlight(t *testing.T) {
	release := make(chan struct{})
	d := newTestDevice(t, WithFaults(func(cmd string) error {
		if cmd == "ResourceBarrier" {
			<-release
		}
		return nil
	}))
	s := newTestStream(t, d)
	buf := createBuffer(t, d, gpucore.HeapTypeDefault, 16, gpucore.ResourceFlagAllowUnorderedAccess)

	s.list.ResourceBarrier(gpucore.ResourceBarrier{Type: gpucore.BarrierTypeUAV, UAV: gpucore.UAVBarrier{Resource: buf}})
	if err := s.list.Close(); err != nil {
		t.Fatal(err)
	}
	if err := s.queue.ExecuteCommandLists(s.list); err != nil {
		t.Fatal(err)
	}

	if err := s.alloc.Reset(); !errors.Is(err, gpucore.ErrAllocatorInUse) {
		t.Errorf("Reset() while executing error = %v, want ErrAllocatorInUse", err)
	}

	close(release)
	if err := s.queue.Signal(s.fence, 1); err != nil {
		t.Fatal(err)
	}
	ev := gpucore.NewEvent()
	defer ev.Close()
	if err := s.fence.SetEventOnCompletion(1, ev); err != nil {
		t.Fatal(err)
	}
	if _, err := ev.Wait(); err != nil {
		t.Fatal(err)
	}
	if err := s.alloc.Reset(); err != nil {
		t.Errorf("Reset() after retirement error = %v", err)
	}
}

func TestCommandListStates(t *testing.T) {
	d := newTestDevice(t)
	s := newTestStream(t, d)

	if err := s.list.Reset(s.alloc); !errors.Is(err, gpucore.ErrCommandListOpen) {
		t.Errorf("Reset() of open list error = %v, want ErrCommandListOpen", err)
	}
	if err := s.queue.ExecuteCommandLists(s.list); !errors.Is(err, gpucore.ErrCommandListOpen) {
		t.Errorf("ExecuteCommandLists(open) error = %v, want ErrCommandListOpen", err)
	}
	if err := s.alloc.Reset(); !errors.Is(err, gpucore.ErrCommandListOpen) {
		t.Errorf("allocator Reset() while recording error = %v, want ErrCommandListOpen", err)
	}
	if err := s.list.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := s.list.Close(); !errors.Is(err, gpucore.ErrCommandListClosed) {
		t.Errorf("second Close() error = %v, want ErrCommandListClosed", err)
	}
}

func TestRecordingErrorReturnedByClose(t *testing.T) {
	d := newTestDevice(t)
	s := newTestStream(t, d)

	// No root signature set yet.
	s.list.SetComputeRootUnorderedAccessView(0, 1<<32)
	s.list.DispatchGraph(&gpucore.DispatchGraphDesc{})

	err := s.list.Close()
	if !errors.Is(err, gpucore.ErrInvalidArgument) {
		t.Fatalf("Close() error = %v, want ErrInvalidArgument", err)
	}
	if err := s.queue.ExecuteCommandLists(s.list); !errors.Is(err, gpucore.ErrInvalidArgument) {
		t.Errorf("ExecuteCommandLists() of failed list error = %v", err)
	}
}

func TestForeignObjects(t *testing.T) {
	d1 := newTestDevice(t)
	b := New()
	if err := b.Init(); err != nil {
		t.Fatal(err)
	}
	d2, err := b.NewDevice()
	if err != nil {
		t.Fatal(err)
	}
	defer d2.Release()

	alloc, err := d2.CreateCommandAllocator(gpucore.CommandListTypeDirect)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := d1.CreateCommandList(gpucore.CommandListTypeDirect, alloc); !errors.Is(err, gpucore.ErrForeignObject) {
		t.Errorf("CreateCommandList(foreign allocator) error = %v, want ErrForeignObject", err)
	}

	s := newTestStream(t, d1)
	foreign := createBuffer(t, d2, gpucore.HeapTypeReadback, 16, 0)
	local := createBuffer(t, d1, gpucore.HeapTypeDefault, 16, 0)
	s.list.CopyResource(foreign, local)
	if err := s.list.Close(); !errors.Is(err, gpucore.ErrForeignObject) {
		t.Errorf("Close() after foreign copy error = %v, want ErrForeignObject", err)
	}
}

func TestCopyResource(t *testing.T) {
	d := newTestDevice(t)
	s := newTestStream(t, d)

	upload := createBuffer(t, d, gpucore.HeapTypeUpload, 16, 0)
	device := createBuffer(t, d, gpucore.HeapTypeDefault, 16, 0)
	readback := createBuffer(t, d, gpucore.HeapTypeReadback, 16, 0)

	src, err := upload.Map()
	if err != nil {
		t.Fatal(err)
	}
	for i := range src {
		src[i] = byte(i + 1)
	}
	upload.Unmap()

	s.list.CopyResource(device, upload)
	s.list.CopyResource(readback, device)
	s.mustFlush()

	got, err := readback.Map()
	if err != nil {
		t.Fatal(err)
	}
	defer readback.Unmap()
	for i, b := range got {
		if b != byte(i+1) {
			t.Fatalf("readback[%d] = %d, want %d", i, b, i+1)
		}
	}
}

func TestRemoveDevice(t *testing.T) {
	d := newTestDevice(t)
	s := newTestStream(t, d)

	ev := gpucore.NewEvent()
	defer ev.Close()
	if err := s.fence.SetEventOnCompletion(10, ev); err != nil {
		t.Fatal(err)
	}

	d.RemoveDevice()

	if res, err := ev.Wait(); res != gpucore.WaitSignaled || err != nil {
		t.Errorf("pending Wait() = %v, %v, want signaled by removal", res, err)
	}
	if got := s.fence.CompletedValue(); got != gpucore.FenceValueDeviceRemoved {
		t.Errorf("CompletedValue() = %#x, want removed sentinel", got)
	}
	reason := d.RemovedReason()
	if !errors.Is(reason, gpucore.ErrDeviceLost) || !errors.Is(reason, ErrDeviceRemoved) {
		t.Errorf("RemovedReason() = %v", reason)
	}
	if err := s.queue.Signal(s.fence, 1); !errors.Is(err, gpucore.ErrDeviceLost) {
		t.Errorf("Signal() after removal error = %v, want ErrDeviceLost", err)
	}
	if _, err := d.CreateFence(0); !errors.Is(err, gpucore.ErrDeviceLost) {
		t.Errorf("CreateFence() after removal error = %v, want ErrDeviceLost", err)
	}
}

func TestFenceReleaseAbandonsWaiters(t *testing.T) {
	d := newTestDevice(t)
	f, err := d.CreateFence(0)
	if err != nil {
		t.Fatal(err)
	}
	ev := gpucore.NewEvent()
	defer ev.Close()
	if err := f.SetEventOnCompletion(1, ev); err != nil {
		t.Fatal(err)
	}
	f.Release()
	if res, err := ev.Wait(); res != gpucore.WaitAbandoned || !errors.Is(err, gpucore.ErrDeviceLost) {
		t.Errorf("Wait() = %v, %v, want abandoned", res, err)
	}
}
