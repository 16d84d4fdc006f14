// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpucore

import (
	"fmt"
	"slices"
	"sync"
)

// Feature identifies an experimental device capability.
type Feature string

// Experimental features used by work graphs.
const (
	// FeatureExperimentalShaderModels unlocks shader models that are not
	// yet released (work graph libraries need 6.8).
	FeatureExperimentalShaderModels Feature = "76f5573e-f13a-40f5-b297-81ce9e18933f"

	// FeatureStateObjectsExperiment unlocks work graph state objects.
	FeatureStateObjectsExperiment Feature = "398a7fd6-a15a-42c1-9605-4bd9999a61af"
)

// WorkGraphFeatures returns the features a work graph device needs.
func WorkGraphFeatures() []Feature {
	return []Feature{FeatureExperimentalShaderModels, FeatureStateObjectsExperiment}
}

// String returns a readable feature name.
func (f Feature) String() string {
	switch f {
	case FeatureExperimentalShaderModels:
		return "ExperimentalShaderModels"
	case FeatureStateObjectsExperiment:
		return "StateObjectsExperiment"
	default:
		return string(f)
	}
}

// FeatureEnabler is implemented by backends that can turn on experimental
// features for the process.
type FeatureEnabler interface {
	EnableExperimentalFeatures(features []Feature) error
}

// capabilities is the process-wide experimental feature state.
var capabilities struct {
	mu      sync.Mutex
	enabled map[Feature]bool
	sealed  bool
}

// EnableExperimentalFeatures enables features for the whole process.
//
// It must be called before the first device is created. Requesting features
// that are already enabled is a no-op, even after sealing; requesting a new
// feature after a device exists returns ErrFeaturesSealed. If the enabler
// refuses, no feature is recorded.
func EnableExperimentalFeatures(enabler FeatureEnabler, features ...Feature) error {
	capabilities.mu.Lock()
	defer capabilities.mu.Unlock()

	var missing []Feature
	for _, f := range features {
		if !capabilities.enabled[f] && !slices.Contains(missing, f) {
			missing = append(missing, f)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	if capabilities.sealed {
		return fmt.Errorf("%w: %v", ErrFeaturesSealed, missing)
	}
	if enabler == nil {
		return fmt.Errorf("%w: no backend to enable %v", ErrFeatureNotSupported, missing)
	}
	if err := enabler.EnableExperimentalFeatures(missing); err != nil {
		return err
	}
	if capabilities.enabled == nil {
		capabilities.enabled = make(map[Feature]bool)
	}
	for _, f := range missing {
		capabilities.enabled[f] = true
	}
	return nil
}

// FeatureEnabled reports whether f was enabled for the process.
func FeatureEnabled(f Feature) bool {
	capabilities.mu.Lock()
	defer capabilities.mu.Unlock()
	return capabilities.enabled[f]
}

// SealFeatures marks the feature set as final and returns it. Backends call
// it when a device is created.
func SealFeatures() []Feature {
	capabilities.mu.Lock()
	defer capabilities.mu.Unlock()
	capabilities.sealed = true
	out := make([]Feature, 0, len(capabilities.enabled))
	for f := range capabilities.enabled {
		out = append(out, f)
	}
	slices.Sort(out)
	return out
}

// RequireFeatures returns ErrFeatureNotEnabled if any feature is missing.
func RequireFeatures(features ...Feature) error {
	capabilities.mu.Lock()
	defer capabilities.mu.Unlock()
	for _, f := range features {
		if !capabilities.enabled[f] {
			return fmt.Errorf("%w: %s", ErrFeatureNotEnabled, f)
		}
	}
	return nil
}

// ResetFeatures clears the process-wide feature state.
// This is intended for tests that create devices with different settings.
func ResetFeatures() {
	capabilities.mu.Lock()
	defer capabilities.mu.Unlock()
	capabilities.enabled = nil
	capabilities.sealed = false
}
