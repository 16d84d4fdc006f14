// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package software

import (
	"fmt"
	"sync"

	"github.com/dustin/go-humanize"

	"github.com/gogpu/workgraph/backend"
	"github.com/gogpu/workgraph/gpucore"
	"github.com/gogpu/workgraph/internal/logging"
)

// DefaultMemoryBudget is the device-local memory of a software device.
const DefaultMemoryBudget = 512 << 20

// DefaultAdapterName is the adapter name reported by software devices.
const DefaultAdapterName = "Software Work Graph Adapter"

// FaultFunc is called before each command executes. A non-nil error fails
// the command and removes the device.
type FaultFunc func(command string) error

// Option configures a Backend.
type Option func(*options)

type options struct {
	adapterName   string
	memoryBudget  uint64
	developerMode bool
	faults        FaultFunc
}

func defaultOptions() options {
	return options{
		adapterName:   DefaultAdapterName,
		memoryBudget:  DefaultMemoryBudget,
		developerMode: true,
	}
}

// WithMemoryBudget sets the device-local memory budget in bytes.
func WithMemoryBudget(bytes uint64) Option {
	return func(o *options) {
		o.memoryBudget = bytes
	}
}

// WithAdapterName sets the reported adapter name.
func WithAdapterName(name string) Option {
	return func(o *options) {
		o.adapterName = name
	}
}

// WithDeveloperMode controls whether experimental features can be enabled.
// It is on by default. With it off, EnableExperimentalFeatures fails with
// gpucore.ErrFeatureNotSupported, like a driver outside developer mode.
func WithDeveloperMode(enabled bool) Option {
	return func(o *options) {
		o.developerMode = enabled
	}
}

// WithFaults installs a fault injector on every device the backend creates.
func WithFaults(f FaultFunc) Option {
	return func(o *options) {
		o.faults = f
	}
}

// init registers the software backend on package import.
func init() {
	backend.Register(backend.BackendSoftware, func() backend.DeviceBackend {
		return New()
	})
}

// Backend is the software device backend.
type Backend struct {
	mu          sync.Mutex
	opts        options
	initialized bool
}

// New creates a software backend.
func New(opts ...Option) *Backend {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Backend{opts: o}
}

// Name returns the backend identifier.
func (b *Backend) Name() string {
	return backend.BackendSoftware
}

// Init initializes the backend.
func (b *Backend) Init() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.initialized = true
	return nil
}

// Close releases all backend resources.
func (b *Backend) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.initialized = false
}

var supportedFeatures = map[gpucore.Feature]bool{
	gpucore.FeatureExperimentalShaderModels: true,
	gpucore.FeatureStateObjectsExperiment:   true,
}

// EnableExperimentalFeatures implements gpucore.FeatureEnabler.
func (b *Backend) EnableExperimentalFeatures(features []gpucore.Feature) error {
	if !b.opts.developerMode {
		return fmt.Errorf("%w: developer mode is off", gpucore.ErrFeatureNotSupported)
	}
	for _, f := range features {
		if !supportedFeatures[f] {
			return fmt.Errorf("%w: %s", gpucore.ErrFeatureNotSupported, f)
		}
	}
	return nil
}

// CreateDevice implements backend.DeviceBackend.
func (b *Backend) CreateDevice() (gpucore.Device, error) {
	d, err := b.NewDevice()
	if err != nil {
		return nil, err
	}
	return d, nil
}

// NewDevice creates a software device. Creating a device seals the
// process-wide experimental feature set.
func (b *Backend) NewDevice() (*Device, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.initialized {
		return nil, backend.ErrNotInitialized
	}
	if b.opts.memoryBudget == 0 {
		return nil, fmt.Errorf("%w: zero memory budget", gpucore.ErrInvalidArgument)
	}

	d := newDevice(b.opts, gpucore.SealFeatures())
	logging.L().Info("software: device created",
		"adapter", d.info.Name,
		"luid", d.info.LUID,
		"memory", humanize.IBytes(d.info.DedicatedMemory))
	return d, nil
}
