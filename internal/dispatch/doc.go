// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package dispatch issues a work graph and reads its result back.
//
// The protocol is strictly ordered. Dispatch binds the signature and the
// result buffer, sets the program with its backing memory, records the
// graph launch with CPU input records, and flushes. Readback transitions
// the result to a copy source, copies it into a CPU-readable buffer,
// flushes again, and maps the copy for the caller. Unmap runs on every
// path once Map succeeded.
//
// An Orchestrator checks every step against its State, so a readback
// without a retired dispatch, or a second dispatch while a copy is pending,
// fails instead of reading stale data.
package dispatch
