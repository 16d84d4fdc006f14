// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package backend provides a pluggable device backend abstraction.
//
// Work graphs are built and dispatched through the backend-neutral gpucore
// API. A backend turns that API into actual execution. The software backend
// (package backend/software) emulates a work graph capable device on the CPU
// and is always available.
//
// # Backend Registration
//
// Backends are registered via init() functions and selected at runtime.
// Importing a backend package registers it:
//
//	import _ "github.com/gogpu/workgraph/backend/software"
//
// # Backend Selection
//
// Use Default() to get the best available backend, Get() to request a
// specific backend by name, or Open() to do either and call Init:
//
//	b, err := backend.Open("software")
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer b.Close()
//
// # Available Backends
//
// - "software": CPU work graph emulator (always available)
package backend
