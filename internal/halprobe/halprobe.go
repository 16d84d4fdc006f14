// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

// Package halprobe lists the host GPU adapters visible through the wgpu HAL.
//
// The probe is diagnostic only: work graphs run on the software device, and
// the listing tells users which real adapters a hardware backend could use.
package halprobe

import (
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	// Import Vulkan backend so it registers via init().
	_ "github.com/gogpu/wgpu/hal/vulkan"

	"github.com/gogpu/workgraph/internal/logging"
)

// ErrUnavailable is returned when no HAL backend could be probed.
var ErrUnavailable = errors.New("halprobe: no HAL backend available")

// Adapter describes one host adapter.
type Adapter struct {
	Backend    gputypes.Backend
	Name       string
	DeviceType gputypes.DeviceType
}

// Kind returns a short device type name.
func (a Adapter) Kind() string {
	switch a.DeviceType {
	case gputypes.DeviceTypeDiscreteGPU:
		return "discrete"
	case gputypes.DeviceTypeIntegratedGPU:
		return "integrated"
	default:
		return "other"
	}
}

// instanceCreator is the part of a HAL backend the probe needs.
type instanceCreator interface {
	CreateInstance(desc *hal.InstanceDescriptor) (hal.Instance, error)
}

// Probe enumerates adapters on each registered backend. Backends that are
// not compiled in or fail to start are skipped; ErrUnavailable is returned
// only when none could be probed.
func Probe(backends ...gputypes.Backend) ([]Adapter, error) {
	if len(backends) == 0 {
		backends = []gputypes.Backend{gputypes.BackendVulkan}
	}
	var (
		out    []Adapter
		probed int
		errs   []error
	)
	for _, b := range backends {
		api, ok := hal.GetBackend(b)
		if !ok {
			continue
		}
		adapters, err := probe(b, api)
		if err != nil {
			logging.L().Debug("halprobe: backend failed", "backend", b, "error", err)
			errs = append(errs, err)
			continue
		}
		probed++
		out = append(out, adapters...)
	}
	if probed == 0 {
		return nil, errors.Join(append([]error{ErrUnavailable}, errs...)...)
	}
	return out, nil
}

func probe(backend gputypes.Backend, api instanceCreator) ([]Adapter, error) {
	instance, err := api.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("halprobe: create instance: %w", err)
	}
	defer instance.Destroy()

	exposed := instance.EnumerateAdapters(nil)
	out := make([]Adapter, 0, len(exposed))
	for _, e := range exposed {
		out = append(out, Adapter{Backend: backend, Name: e.Info.Name, DeviceType: e.Info.DeviceType})
	}
	logging.L().Debug("halprobe: adapters enumerated", "backend", backend, "count", len(out))
	return out, nil
}
