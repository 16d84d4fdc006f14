// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package backend

import (
	"slices"
	"strings"
	"sync"
)

// BackendFactory creates a new backend instance.
type BackendFactory func() DeviceBackend

// registry holds registered backends.
var (
	registryMu sync.RWMutex
	backends   = make(map[string]BackendFactory)
	// Priority order for backend selection (first available wins).
	backendPriority = []string{BackendSoftware}
)

// Register registers a backend factory with the given name.
// This is typically called from init() functions in backend packages.
// If a backend with the same name is already registered, it will be replaced.
func Register(name string, factory BackendFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	backends[name] = factory
}

// Unregister removes a backend from the registry.
// This is useful for testing.
func Unregister(name string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(backends, name)
}

// Available returns the sorted names of registered backends.
func Available() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// IsRegistered checks if a backend with the given name is registered.
func IsRegistered(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := backends[name]
	return ok
}

// Get returns a backend instance by name.
// Returns nil if the backend is not registered.
func Get(name string) DeviceBackend {
	registryMu.RLock()
	defer registryMu.RUnlock()

	factory, ok := backends[name]
	if !ok {
		return nil
	}
	return factory()
}

// Default returns the best available backend based on priority.
// Backends outside the priority list are tried in name order.
// Returns nil if no backends are registered.
func Default() DeviceBackend {
	registryMu.RLock()
	defer registryMu.RUnlock()

	for _, name := range backendPriority {
		if factory, ok := backends[name]; ok {
			if b := factory(); b != nil {
				return b
			}
		}
	}

	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		if b := backends[name](); b != nil {
			return b
		}
	}
	return nil
}

// Open returns the named backend, initialized. An empty name selects
// Default().
func Open(name string) (DeviceBackend, error) {
	var b DeviceBackend
	if name == "" {
		b = Default()
	} else {
		b = Get(name)
	}
	if b == nil {
		if name == "" {
			return nil, ErrBackendNotAvailable
		}
		return nil, &NotAvailableError{Name: name, Available: Available()}
	}

	if err := b.Init(); err != nil {
		return nil, err
	}
	return b, nil
}

// NotAvailableError reports a backend name that is not registered.
type NotAvailableError struct {
	Name      string
	Available []string
}

func (e *NotAvailableError) Error() string {
	registered := "none"
	if len(e.Available) > 0 {
		registered = strings.Join(e.Available, ", ")
	}
	return "backend: " + e.Name + " not available (registered: " + registered + ")"
}

// Unwrap makes errors.Is(err, ErrBackendNotAvailable) hold.
func (e *NotAvailableError) Unwrap() error { return ErrBackendNotAvailable }
