// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package device

import (
	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"

	"github.com/gogpu/workgraph/backend"
	"github.com/gogpu/workgraph/gpucore"
)

// Provider exposes a Context as a gpucontext.DeviceProvider so gogpu hosts
// can share the device. The provider does not own the context.
//
// The gpucontext members are type tokens. Hosts that need the device
// type-assert it:
//
//	dev, ok := p.Device().(*device.SharedDevice)
type Provider struct {
	dev *SharedDevice
}

var _ gpucontext.DeviceProvider = (*Provider)(nil)

// Provider returns the provider view of the context.
func (c *Context) Provider() *Provider {
	return &Provider{dev: &SharedDevice{ctx: c}}
}

// Device returns a *SharedDevice.
func (p *Provider) Device() gpucontext.Device { return p.dev }

// Queue returns the context's gpucore.CommandQueue.
func (p *Provider) Queue() gpucontext.Queue { return p.dev.ctx.queue }

// Adapter returns the context's gpucore.AdapterInfo.
func (p *Provider) Adapter() gpucontext.Adapter { return p.dev.ctx.Adapter() }

// AdapterInfo reports the adapter name and kind.
func (p *Provider) AdapterInfo() gpucontext.AdapterInfo {
	info := p.dev.ctx.Adapter()
	return gpucontext.AdapterInfo{Name: info.Name, Type: adapterType(info)}
}

// SurfaceFormat is undefined: the context is compute-only.
func (p *Provider) SurfaceFormat() gputypes.TextureFormat {
	return gputypes.TextureFormatUndefined
}

func adapterType(info gpucore.AdapterInfo) gpucontext.AdapterType {
	if info.Backend == backend.BackendSoftware {
		return gpucontext.AdapterTypeSoftware
	}
	return gpucontext.AdapterTypeUnknown
}

// SharedDevice is the device handed out by Provider.
type SharedDevice struct {
	ctx *Context
}

// Context returns the owning context.
func (d *SharedDevice) Context() *Context { return d.ctx }

// Poll with wait blocks until all submitted work has retired.
func (d *SharedDevice) Poll(wait bool) error {
	if !wait {
		return d.ctx.usable()
	}
	return d.ctx.WaitIdle()
}

// Destroy closes the owning context.
func (d *SharedDevice) Destroy() { d.ctx.Close() }
