// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package software implements a work graph capable gpucore device on the CPU.
//
// The device keeps the contracts of an explicit GPU API: command lists are
// recorded and closed, queues execute them in order on a worker goroutine,
// fences are signaled only after a batch retired, and allocators cannot be
// reset while their commands may still run. Work graphs run through a
// scheduler whose node queues live in the caller's backing memory, so the
// backing allocation and its Initialize flag matter exactly as on hardware.
//
// # Node Kernels
//
// Shader libraries are SPIR-V. The device reflects their entry points and
// resource bindings but does not interpret function bodies. Instead, every
// node entry point is paired with a Go kernel registered under the same name:
//
//	software.RegisterNode("SecondNode", software.NodeKernel{
//		Launch:     software.LaunchThread,
//		RecordSize: 8,
//		Run: func(inv *software.Invocation) error {
//			out, err := inv.UAV(0, 0)
//			if err != nil {
//				return err
//			}
//			return out.Store(inv.Uint32(0)*4, inv.Uint32(4))
//		},
//	})
//
// # Scheduling
//
// Entry records are staged into backing memory. Each thread group of a node
// may emit up to MaxRecords records per output; after every group the
// scheduler drains all deeper nodes before continuing, deepest node first.
// This bounds every node queue by a single group's output, which is what
// WorkGraphMemoryRequirements reports.
//
// # Faults
//
// A command that fails during execution removes the device, as a GPU page
// fault or TDR would. The fence of every queue jumps to
// gpucore.FenceValueDeviceRemoved and RemovedReason reports the cause.
// WithFaults injects such failures for tests.
package software
