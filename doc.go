// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package workgraph builds, dispatches, and reads back GPU work graphs.
//
// # Overview
//
// A work graph is a device-resident graph of shader nodes. The GPU
// schedules node launches itself: a node writes records into the input
// queues of its successors without any CPU round trip. The host only
// builds the program, provides scratch (backing) memory for the device
// scheduler, seeds the entry node with records, and waits.
//
// # Quick Start
//
//	import (
//	    "github.com/gogpu/workgraph"
//	    "github.com/gogpu/workgraph/examples/simplegraph"
//	)
//
//	g := &workgraph.Graph{
//	    SourceName: simplegraph.SourceName,
//	    Source:     simplegraph.Source,
//	    Program:    simplegraph.ProgramName,
//	    RecordSize: simplegraph.RecordSize,
//	}
//	for _, r := range simplegraph.DefaultRecords() {
//	    g.Records = append(g.Records, r.Fields())
//	}
//	res, err := workgraph.NewRunner(workgraph.WithDebugLayer(true)).Run(g)
//	if err != nil {
//	    os.Exit(workgraph.ExitCode(err))
//	}
//
// # Architecture
//
// The runtime is layered the way an explicit GPU API is:
//
//   - gpucore: backend-neutral device API (queues, lists, fences, state objects)
//   - backend: registry of device backends; backend/software runs work
//     graphs on the CPU, backend/debug validates any device
//   - compiler: WGSL to SPIR-V with target profile checks
//   - internal/device: one device, one queue, one list, synchronous flush
//   - internal/program: binding signature, program object, backing memory
//   - internal/dispatch: the ordered dispatch and readback protocol
//
// Everything is synchronous. At most one batch of GPU work is in flight,
// and every wait blocks until the device retired the batch or was lost.
//
// # Errors
//
// Failures wrap one of the sentinel errors (ErrDeviceInit, ErrCompile,
// ErrSignatureBuild, ErrProgramBuild, ErrAllocation, ErrDeviceLost,
// ErrNotBuilt). Runner reports them as *PhaseError, whose phase is also the
// process exit code.
//
// # Logging
//
// workgraph is silent by default. Use SetLogger to route diagnostics to a
// log/slog handler.
package workgraph
