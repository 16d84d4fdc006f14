// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package debug

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/gogpu/workgraph/backend/software"
	"github.com/gogpu/workgraph/gpucore"
	"github.com/gogpu/workgraph/internal/spirv/spirvtest"
)

const program = "Fill"

// harness is a validated software device with a one-node graph that
// stores record.value at word record.index of u0.
type harness struct {
	t        *testing.T
	dev      *Device
	messages []Violation

	queue gpucore.CommandQueue
	alloc gpucore.CommandAllocator
	list  gpucore.CommandList
	fence gpucore.Fence
	value uint64

	sig      gpucore.RootSignature
	id       gpucore.ProgramIdentifier
	req      gpucore.WorkGraphMemoryRequirements
	backing  gpucore.Resource
	result   gpucore.Resource
	readback gpucore.Resource
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{t: t}

	node := t.Name() + "/Fill"
	software.RegisterNode(node, software.NodeKernel{
		Launch:     software.LaunchThread,
		RecordSize: 8,
		Run: func(inv *software.Invocation) error {
			out, err := inv.UAV(0, 0)
			if err != nil {
				return err
			}
			return out.Store(inv.Uint32(0)*4, inv.Uint32(4))
		},
	})
	t.Cleanup(func() { software.UnregisterNode(node) })

	gpucore.ResetFeatures()
	t.Cleanup(gpucore.ResetFeatures)
	b := New(software.New(), WithMessageFunc(func(v Violation) {
		h.messages = append(h.messages, v)
	}))
	if err := b.Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if err := gpucore.EnableExperimentalFeatures(b, gpucore.WorkGraphFeatures()...); err != nil {
		t.Fatalf("EnableExperimentalFeatures() error = %v", err)
	}
	dev, err := b.CreateDevice()
	if err != nil {
		t.Fatalf("CreateDevice() error = %v", err)
	}
	h.dev = dev.(*Device)

	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatal(err)
		}
	}
	h.queue, err = h.dev.CreateCommandQueue(&gpucore.CommandQueueDesc{Type: gpucore.CommandListTypeDirect})
	must(err)
	h.alloc, err = h.dev.CreateCommandAllocator(gpucore.CommandListTypeDirect)
	must(err)
	h.list, err = h.dev.CreateCommandList(gpucore.CommandListTypeDirect, h.alloc)
	must(err)
	h.fence, err = h.dev.CreateFence(0)
	must(err)

	blob, err := gpucore.SerializeRootSignature(&gpucore.RootSignatureDesc{
		Version:    gpucore.RootSignatureVersion1_1,
		Parameters: []gpucore.RootParameter{{Type: gpucore.RootParameterTypeUAV, Flags: gpucore.RootDescriptorFlagDataVolatile}},
	})
	must(err)
	h.sig, err = h.dev.CreateRootSignature(blob)
	must(err)

	lib := spirvtest.Module{
		Entries:  []spirvtest.Entry{{Name: node}},
		Bindings: []spirvtest.Binding{{Name: "output", Set: 0, Binding: 0}},
	}.Bytes()
	so, err := h.dev.CreateStateObject(&gpucore.StateObjectDesc{
		Subobjects: []gpucore.StateSubobject{
			{Type: gpucore.SubobjectTypeLibrary, Desc: &gpucore.LibraryDesc{Bytecode: lib, Profile: "lib_6_8"}},
			{Type: gpucore.SubobjectTypeWorkGraph, Desc: &gpucore.WorkGraphDesc{
				ProgramName: program,
				Flags:       gpucore.WorkGraphFlagIncludeAllAvailableNodes,
			}},
			{Type: gpucore.SubobjectTypeGlobalRootSignature, Desc: &gpucore.GlobalRootSignature{RootSignature: h.sig}},
		},
	})
	must(err)
	h.id, err = so.ProgramIdentifier(program)
	must(err)
	h.req, err = so.WorkGraphMemoryRequirements(0)
	must(err)

	create := func(heap gpucore.HeapType, size uint64, flags gpucore.ResourceFlags, state gpucore.ResourceState) gpucore.Resource {
		r, err := h.dev.CreateCommittedResource(heap, &gpucore.ResourceDesc{Label: heap.String(), Width: size, Flags: flags}, state)
		must(err)
		return r
	}
	uav := gpucore.ResourceFlagAllowUnorderedAccess
	h.backing = create(gpucore.HeapTypeDefault, h.req.MaxSizeInBytes, uav, gpucore.ResourceStateCommon)
	h.result = create(gpucore.HeapTypeDefault, 16*4, uav, gpucore.ResourceStateCommon)
	h.readback = create(gpucore.HeapTypeReadback, 16*4, 0, gpucore.ResourceStateCopyDest)

	t.Cleanup(func() {
		h.queue.Release()
		h.backing.Release()
		h.result.Release()
		h.readback.Release()
		so.Release()
		h.sig.Release()
		h.list.Release()
		h.alloc.Release()
		h.fence.Release()
		h.dev.Release()
	})
	return h
}

// flush executes the list and waits for it.
func (h *harness) flush() error {
	h.t.Helper()
	if err := h.list.Close(); err != nil {
		return err
	}
	if err := h.queue.ExecuteCommandLists(h.list); err != nil {
		return err
	}
	h.value++
	if err := h.queue.Signal(h.fence, h.value); err != nil {
		return err
	}
	ev := gpucore.NewEvent()
	defer ev.Close()
	if err := h.fence.SetEventOnCompletion(h.value, ev); err != nil {
		return err
	}
	if _, err := ev.Wait(); err != nil {
		return err
	}
	if err := h.dev.RemovedReason(); err != nil {
		return err
	}
	if err := h.alloc.Reset(); err != nil {
		return err
	}
	return h.list.Reset(h.alloc)
}

func (h *harness) dispatch(flags gpucore.SetWorkGraphFlags, index, value uint32) {
	h.list.SetComputeRootSignature(h.sig)
	h.list.SetComputeRootUnorderedAccessView(0, h.result.GPUVirtualAddress())
	h.list.SetProgram(&gpucore.SetProgramDesc{
		Type: gpucore.ProgramTypeWorkGraph,
		WorkGraph: gpucore.SetWorkGraphDesc{
			ProgramIdentifier: h.id,
			Flags:             flags,
			BackingMemory: gpucore.GPUVirtualAddressRange{
				StartAddress: h.backing.GPUVirtualAddress(),
				SizeInBytes:  h.req.MaxSizeInBytes,
			},
		},
	})
	rec := binary.LittleEndian.AppendUint32(nil, index)
	rec = binary.LittleEndian.AppendUint32(rec, value)
	h.list.DispatchGraph(&gpucore.DispatchGraphDesc{
		Mode:         gpucore.DispatchModeNodeCPUInput,
		NodeCPUInput: gpucore.NodeCPUInput{NumRecords: 1, RecordStrideInBytes: 8, Records: rec},
	})
}

func (h *harness) errorsFor(cmd string) []Violation {
	var out []Violation
	for _, m := range h.messages {
		if m.Severity == SeverityError && m.Command == cmd {
			out = append(out, m)
		}
	}
	return out
}

func wantViolation(t *testing.T, err error, cmd string) {
	t.Helper()
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("error = %v, want ErrValidation", err)
	}
	var v *Violation
	if !errors.As(err, &v) || v.Command != cmd {
		t.Fatalf("violation = %+v, want command %s", v, cmd)
	}
}

func TestCopyAfterBarrier(t *testing.T) {
	h := newHarness(t)
	h.dispatch(gpucore.SetWorkGraphFlagInitialize, 2, 42)
	if err := h.flush(); err != nil {
		t.Fatalf("dispatch flush error = %v", err)
	}
	if got := h.result.(*Resource).State(); got != gpucore.ResourceStateUnorderedAccess {
		t.Errorf("result state after dispatch = %v, want UnorderedAccess", got)
	}

	h.list.ResourceBarrier(gpucore.NewTransitionBarrier(h.result,
		gpucore.ResourceStateUnorderedAccess, gpucore.ResourceStateCopySource))
	h.list.CopyResource(h.readback, h.result)
	if err := h.flush(); err != nil {
		t.Fatalf("copy flush error = %v", err)
	}

	data, err := h.readback.Map()
	if err != nil {
		t.Fatalf("Map() error = %v", err)
	}
	got := binary.LittleEndian.Uint32(data[8:])
	h.readback.Unmap()
	if got != 42 {
		t.Errorf("result[2] = %d, want 42", got)
	}
	if len(h.messages) != 0 {
		t.Errorf("unexpected messages: %v", h.messages)
	}
}

func TestCopyWithoutBarrier(t *testing.T) {
	h := newHarness(t)
	h.dispatch(gpucore.SetWorkGraphFlagInitialize, 0, 1)
	if err := h.flush(); err != nil {
		t.Fatalf("dispatch flush error = %v", err)
	}

	h.list.CopyResource(h.readback, h.result)
	err := h.list.Close()
	wantViolation(t, err, "CopyResource")
	if len(h.errorsFor("CopyResource")) != 1 {
		t.Errorf("messages = %v, want one CopyResource error", h.messages)
	}

	if err := h.queue.ExecuteCommandLists(h.list); !errors.Is(err, ErrValidation) {
		t.Errorf("ExecuteCommandLists() error = %v, want ErrValidation", err)
	}
}

func TestBarrierStateMismatch(t *testing.T) {
	h := newHarness(t)
	h.list.ResourceBarrier(gpucore.NewTransitionBarrier(h.result,
		gpucore.ResourceStateUnorderedAccess, gpucore.ResourceStateCopySource))
	wantViolation(t, h.list.Close(), "ResourceBarrier")
}

func TestStatesCommitOnlyOnExecute(t *testing.T) {
	h := newHarness(t)
	h.list.ResourceBarrier(gpucore.NewTransitionBarrier(h.result,
		gpucore.ResourceStateCommon, gpucore.ResourceStateCopySource))
	if got := h.result.(*Resource).State(); got != gpucore.ResourceStateCommon {
		t.Errorf("State() before execute = %v, want Common", got)
	}
	if err := h.flush(); err != nil {
		t.Fatal(err)
	}
	if got := h.result.(*Resource).State(); got != gpucore.ResourceStateCopySource {
		t.Errorf("State() after execute = %v, want CopySource", got)
	}
}

func TestDispatchWithoutProgram(t *testing.T) {
	h := newHarness(t)
	h.list.DispatchGraph(&gpucore.DispatchGraphDesc{Mode: gpucore.DispatchModeNodeCPUInput})
	if err := h.list.Close(); err == nil {
		t.Fatal("Close() succeeded")
	}
	if len(h.errorsFor("DispatchGraph")) == 0 {
		t.Errorf("messages = %v, want a DispatchGraph error", h.messages)
	}
}

func TestRootUAVWithoutSignature(t *testing.T) {
	h := newHarness(t)
	h.list.SetComputeRootUnorderedAccessView(0, h.result.GPUVirtualAddress())
	_ = h.list.Close()
	if len(h.errorsFor("SetComputeRootUnorderedAccessView")) == 0 {
		t.Errorf("messages = %v, want a root UAV error", h.messages)
	}
}

func TestBackingMemoryNotInitialized(t *testing.T) {
	h := newHarness(t)
	h.dispatch(gpucore.SetWorkGraphFlagNone, 0, 1)
	wantViolation(t, h.list.Close(), "DispatchGraph")
	if err := h.dev.RemovedReason(); err != nil {
		t.Errorf("RemovedReason() = %v, the list must not reach the device", err)
	}
}

func TestBackingMemoryInitializedOnce(t *testing.T) {
	h := newHarness(t)
	h.dispatch(gpucore.SetWorkGraphFlagInitialize, 0, 1)
	if err := h.flush(); err != nil {
		t.Fatal(err)
	}
	h.dispatch(gpucore.SetWorkGraphFlagNone, 1, 2)
	if err := h.flush(); err != nil {
		t.Fatalf("second dispatch without Initialize error = %v", err)
	}

	h.dispatch(gpucore.SetWorkGraphFlagInitialize, 2, 3)
	if err := h.flush(); err != nil {
		t.Fatal(err)
	}
	var warned bool
	for _, m := range h.messages {
		if m.Severity == SeverityWarning && m.Command == "SetProgram" {
			warned = true
		}
	}
	if !warned {
		t.Errorf("messages = %v, want a re-initialization warning", h.messages)
	}
}

func TestUnmapWithoutMap(t *testing.T) {
	h := newHarness(t)
	h.readback.Unmap()
	if len(h.errorsFor("Unmap")) != 1 {
		t.Errorf("messages = %v, want one Unmap error", h.messages)
	}
}

func TestReadbackCreatedInCommon(t *testing.T) {
	h := newHarness(t)
	r, err := h.dev.CreateCommittedResource(gpucore.HeapTypeReadback,
		&gpucore.ResourceDesc{Width: 16}, gpucore.ResourceStateCommon)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Release()
	if len(h.messages) != 1 || h.messages[0].Severity != SeverityWarning {
		t.Errorf("messages = %v, want one warning", h.messages)
	}
}

func TestViolationString(t *testing.T) {
	v := &Violation{Severity: SeverityError, Command: "CopyResource", Message: "boom"}
	if got, want := v.Error(), "debug: Error: CopyResource: boom"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if got := Severity(7).String(); got != "Unknown(7)" {
		t.Errorf("String() = %q", got)
	}
}
