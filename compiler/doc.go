// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package compiler turns WGSL node libraries into device bytecode.
//
// Sources are compiled with naga to SPIR-V. Each compilation targets a
// profile of the form <stage>_<major>_<minor>; work graph libraries use
// "lib_6_8" or newer. The profile travels with the bytecode so the device
// can check it when the program is built.
//
// Source files may carry a UTF-8 or UTF-16 byte order mark; they are
// decoded to UTF-8 before compilation.
//
// Example:
//
//	c, err := compiler.New()
//	if err != nil {
//		return err
//	}
//	prog, err := c.CompileFile("graph.wgsl", "lib_6_8")
//	var ce *compiler.CompileError
//	if errors.As(err, &ce) {
//		fmt.Fprintln(os.Stderr, ce.Diagnostics)
//	}
package compiler
