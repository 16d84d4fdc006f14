// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package workgraph

import "github.com/gogpu/workgraph/gpucore"

// Error taxonomy. Every error returned by Runner wraps one of these; use
// errors.Is to classify it.
var (
	ErrDeviceInit     = gpucore.ErrDeviceInit
	ErrCompile        = gpucore.ErrCompile
	ErrSignatureBuild = gpucore.ErrSignatureBuild
	ErrProgramBuild   = gpucore.ErrProgramBuild
	ErrAllocation     = gpucore.ErrAllocation
	ErrDeviceLost     = gpucore.ErrDeviceLost
	ErrNotBuilt       = gpucore.ErrNotBuilt
)
