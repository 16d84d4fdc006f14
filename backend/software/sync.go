// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package software

import (
	"fmt"
	"sync"

	"github.com/gogpu/workgraph/gpucore"
)

// Fence is a software gpucore.Fence. It is signaled by the queue worker.
type Fence struct {
	dev *Device

	mu       sync.Mutex
	value    uint64
	waiters  []fenceWaiter
	released bool
}

type fenceWaiter struct {
	value uint64
	event *gpucore.Event
}

var _ gpucore.Fence = (*Fence)(nil)

// CompletedValue implements gpucore.Fence.
func (f *Fence) CompletedValue() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.value
}

// SetEventOnCompletion implements gpucore.Fence. The event is set at once if
// the fence already reached value.
func (f *Fence) SetEventOnCompletion(value uint64, event *gpucore.Event) error {
	if event == nil {
		return fmt.Errorf("%w: nil event", gpucore.ErrInvalidArgument)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.released {
		return fmt.Errorf("%w: fence", ErrReleased)
	}
	if f.value >= value {
		event.Set()
		return nil
	}
	f.waiters = append(f.waiters, fenceWaiter{value: value, event: event})
	return nil
}

// signal moves the fence to value and wakes waiters it satisfies.
// A fence of a removed device stays at the removed sentinel.
func (f *Fence) signal(value uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.value == gpucore.FenceValueDeviceRemoved {
		return
	}
	f.value = value
	kept := f.waiters[:0]
	for _, w := range f.waiters {
		if w.value <= value {
			w.event.Set()
			continue
		}
		kept = append(kept, w)
	}
	f.waiters = kept
}

// Release implements gpucore.Fence. Waiters that can no longer be satisfied
// are abandoned.
func (f *Fence) Release() {
	f.mu.Lock()
	if f.released {
		f.mu.Unlock()
		return
	}
	f.released = true
	waiters := f.waiters
	f.waiters = nil
	f.mu.Unlock()

	for _, w := range waiters {
		w.event.Abandon(fmt.Errorf("%w: fence released before value %d", gpucore.ErrDeviceLost, w.value))
	}
	f.dev.releaseFence(f)
}

// CommandAllocator is a software gpucore.CommandAllocator.
//
// It counts submissions that have not retired yet so that resetting it too
// early is caught instead of corrupting in-flight commands.
type CommandAllocator struct {
	dev *Device

	mu        sync.Mutex
	inFlight  int
	recording *CommandList
	resets    uint64
	released  bool
}

var _ gpucore.CommandAllocator = (*CommandAllocator)(nil)

// Reset implements gpucore.CommandAllocator.
func (a *CommandAllocator) Reset() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.released {
		return fmt.Errorf("%w: command allocator", ErrReleased)
	}
	if a.inFlight > 0 {
		return fmt.Errorf("%w: %d submissions pending", gpucore.ErrAllocatorInUse, a.inFlight)
	}
	if a.recording != nil {
		return gpucore.ErrCommandListOpen
	}
	a.resets++
	return nil
}

// Resets returns how many times Reset succeeded.
func (a *CommandAllocator) Resets() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.resets
}

// Release implements gpucore.CommandAllocator.
func (a *CommandAllocator) Release() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.released = true
}

// begin attaches a list that starts recording into the allocator.
func (a *CommandAllocator) begin(l *CommandList) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.released {
		return fmt.Errorf("%w: command allocator", ErrReleased)
	}
	if a.recording != nil && a.recording != l {
		return fmt.Errorf("%w: allocator already has a recording list", gpucore.ErrCommandListOpen)
	}
	a.recording = l
	return nil
}

func (a *CommandAllocator) end(l *CommandList) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.recording == l {
		a.recording = nil
	}
}

func (a *CommandAllocator) submit() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.inFlight++
}

func (a *CommandAllocator) retire() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.inFlight--
}

// ownAllocator converts a to an allocator of d.
func (d *Device) ownAllocator(a gpucore.CommandAllocator) (*CommandAllocator, error) {
	if a == nil {
		return nil, fmt.Errorf("%w: nil command allocator", gpucore.ErrInvalidArgument)
	}
	alloc, ok := a.(*CommandAllocator)
	if !ok || alloc.dev != d {
		return nil, gpucore.ErrForeignObject
	}
	return alloc, nil
}

// ownFence converts f to a fence of d.
func (d *Device) ownFence(f gpucore.Fence) (*Fence, error) {
	if f == nil {
		return nil, fmt.Errorf("%w: nil fence", gpucore.ErrInvalidArgument)
	}
	fence, ok := f.(*Fence)
	if !ok || fence.dev != d {
		return nil, gpucore.ErrForeignObject
	}
	return fence, nil
}
