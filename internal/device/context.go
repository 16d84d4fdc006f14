// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package device

import (
	"errors"
	"fmt"

	"github.com/gogpu/workgraph/backend"
	"github.com/gogpu/workgraph/backend/debug"
	"github.com/gogpu/workgraph/gpucore"
	"github.com/gogpu/workgraph/internal/logging"
)

// ErrClosed is returned when using a closed context.
var ErrClosed = errors.New("device: context is closed")

// Context exclusively owns a device and its command stream.
//
// Context is not safe for concurrent use. At most one fence value is
// pending at any time.
type Context struct {
	dev   gpucore.Device
	queue gpucore.CommandQueue
	alloc gpucore.CommandAllocator
	list  gpucore.CommandList
	fence gpucore.Fence
	event *gpucore.Event

	fenceValue uint64
	lost       error
	closed     bool

	// wait blocks on the completion event. Tests replace it.
	wait func(*gpucore.Event) (gpucore.WaitResult, error)
}

// New negotiates experimental features on b, creates a device, and builds
// the command stream. b must be initialized. Every failure wraps
// gpucore.ErrDeviceInit and releases what was already created.
func New(b backend.DeviceBackend, opts ...Option) (*Context, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if b == nil {
		return nil, fmt.Errorf("%w: no backend", gpucore.ErrDeviceInit)
	}
	if o.debugLayer {
		b = debug.New(b, o.debugOpts...)
	}

	if err := gpucore.EnableExperimentalFeatures(b, o.features...); err != nil {
		return nil, fmt.Errorf("%w: enable experimental features: %w", gpucore.ErrDeviceInit, err)
	}

	c := &Context{wait: (*gpucore.Event).Wait}
	var err error
	if c.dev, err = b.CreateDevice(); err != nil {
		return nil, fmt.Errorf("%w: create device: %w", gpucore.ErrDeviceInit, err)
	}
	fail := func(what string, err error) (*Context, error) {
		c.Close()
		return nil, fmt.Errorf("%w: %s: %w", gpucore.ErrDeviceInit, what, err)
	}
	if c.fence, err = c.dev.CreateFence(0); err != nil {
		return fail("create fence", err)
	}
	if c.alloc, err = c.dev.CreateCommandAllocator(gpucore.CommandListTypeDirect); err != nil {
		return fail("create command allocator", err)
	}
	desc := &gpucore.CommandQueueDesc{Type: gpucore.CommandListTypeDirect, Label: o.label}
	if c.queue, err = c.dev.CreateCommandQueue(desc); err != nil {
		return fail("create command queue", err)
	}
	if c.list, err = c.dev.CreateCommandList(gpucore.CommandListTypeDirect, c.alloc); err != nil {
		return fail("create command list", err)
	}
	c.event = gpucore.NewEvent()

	info := c.dev.Adapter()
	logging.L().Info("device: context created",
		"backend", b.Name(),
		"adapter", info.Name,
		"debug", o.debugLayer,
		"features", len(o.features))
	return c, nil
}

// Device returns the device.
func (c *Context) Device() gpucore.Device { return c.dev }

// Adapter describes the adapter the device runs on.
func (c *Context) Adapter() gpucore.AdapterInfo { return c.dev.Adapter() }

// FenceValue returns the fence value of the last completed flush.
func (c *Context) FenceValue() uint64 { return c.fenceValue }

// Lost returns the latched device loss, or nil.
func (c *Context) Lost() error { return c.lost }

// CommandList returns the open command list. It fails once the device is
// lost or the context is closed.
func (c *Context) CommandList() (gpucore.CommandList, error) {
	if err := c.usable(); err != nil {
		return nil, err
	}
	return c.list, nil
}

func (c *Context) usable() error {
	if c.closed {
		return ErrClosed
	}
	return c.lost
}

// Flush submits the recorded commands and blocks until the GPU retired
// them. The allocator and list are reset only after the wait succeeded.
//
// A list that fails to close or is refused by the queue is discarded and
// reopened; the error is returned and the context stays usable. A wait that
// does not observe completion latches gpucore.ErrDeviceLost.
func (c *Context) Flush() error {
	if err := c.usable(); err != nil {
		return err
	}

	if err := c.list.Close(); err != nil {
		return c.discard(fmt.Errorf("device: close command list: %w", err))
	}
	if err := c.queue.ExecuteCommandLists(c.list); err != nil {
		return c.discard(fmt.Errorf("device: execute command list: %w", err))
	}

	next := c.fenceValue + 1
	if err := c.queue.Signal(c.fence, next); err != nil {
		return c.markLost(fmt.Errorf("signal fence %d: %w", next, err))
	}
	if err := c.fence.SetEventOnCompletion(next, c.event); err != nil {
		return c.markLost(fmt.Errorf("arm event for fence %d: %w", next, err))
	}
	res, err := c.wait(c.event)
	if err != nil || res != gpucore.WaitSignaled {
		return c.markLost(fmt.Errorf("wait for fence %d: %v: %w", next, res, err))
	}
	if done := c.fence.CompletedValue(); done == gpucore.FenceValueDeviceRemoved || done < next {
		return c.markLost(fmt.Errorf("fence completed at %#x, want %d", done, next))
	}
	if reason := c.dev.RemovedReason(); reason != nil {
		return c.markLost(reason)
	}
	c.fenceValue = next

	if err := c.alloc.Reset(); err != nil {
		return c.markLost(fmt.Errorf("reset command allocator: %w", err))
	}
	if err := c.list.Reset(c.alloc); err != nil {
		return c.markLost(fmt.Errorf("reset command list: %w", err))
	}
	logging.L().Debug("device: flushed", "fence", next)
	return nil
}

// discard reopens the list after a batch that never reached the GPU.
func (c *Context) discard(cause error) error {
	if err := c.alloc.Reset(); err != nil {
		return c.markLost(errors.Join(cause, err))
	}
	if err := c.list.Reset(c.alloc); err != nil {
		return c.markLost(errors.Join(cause, err))
	}
	return cause
}

func (c *Context) markLost(cause error) error {
	if c.lost == nil {
		if errors.Is(cause, gpucore.ErrDeviceLost) {
			c.lost = cause
		} else {
			c.lost = fmt.Errorf("%w: %w", gpucore.ErrDeviceLost, cause)
		}
		logging.L().Warn("device: device lost", "error", c.lost)
	}
	return c.lost
}

// WaitIdle blocks until the last signaled fence value completed.
func (c *Context) WaitIdle() error {
	if err := c.usable(); err != nil {
		return err
	}
	if c.fence.CompletedValue() >= c.fenceValue {
		return nil
	}
	if err := c.fence.SetEventOnCompletion(c.fenceValue, c.event); err != nil {
		return c.markLost(err)
	}
	if res, err := c.wait(c.event); err != nil || res != gpucore.WaitSignaled {
		return c.markLost(fmt.Errorf("wait idle: %v: %w", res, err))
	}
	return nil
}

// Close releases the command stream and the device in reverse order of
// creation. Close is idempotent.
func (c *Context) Close() {
	if c.closed {
		return
	}
	c.closed = true
	if c.fence != nil {
		c.fence.Release()
	}
	if c.list != nil {
		c.list.Release()
	}
	if c.alloc != nil {
		c.alloc.Release()
	}
	if c.queue != nil {
		c.queue.Release()
	}
	if c.dev != nil {
		c.dev.Release()
	}
	if c.event != nil {
		c.event.Close()
	}
	logging.L().Debug("device: context closed", "fence", c.fenceValue)
}
