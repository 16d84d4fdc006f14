// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package spirvtest assembles minimal SPIR-V modules for tests.
//
// The modules carry only the interface the runtime reflects (entry points,
// workgroup sizes, and bindings). They have no function bodies and are not
// valid input for a real driver.
package spirvtest

import (
	"encoding/binary"

	"github.com/gogpu/workgraph/internal/spirv"
)

// Entry is a compute entry point.
type Entry struct {
	Name      string
	LocalSize [3]uint32
}

// Binding is a storage buffer variable.
type Binding struct {
	Name    string
	Set     uint32
	Binding uint32
}

// Module describes the module to assemble.
type Module struct {
	Entries  []Entry
	Bindings []Binding
}

const (
	opCapability  = 17
	opMemoryModel = 14
	opTypeInt     = 21
	opTypePointer = 32
)

// Bytes assembles the module into little-endian SPIR-V.
func (m Module) Bytes() []byte {
	var (
		code   []uint32
		nextID uint32 = 1
	)
	newID := func() uint32 {
		id := nextID
		nextID++
		return id
	}
	emit := func(op uint32, operands ...uint32) {
		code = append(code, uint32(len(operands)+1)<<16|op)
		code = append(code, operands...)
	}

	emit(opCapability, 1)
	emit(opMemoryModel, 0, 1)

	funcIDs := make([]uint32, len(m.Entries))
	for i, e := range m.Entries {
		funcIDs[i] = newID()
		operands := append([]uint32{uint32(spirv.ExecutionModelGLCompute), funcIDs[i]}, stringWords(e.Name)...)
		emit(spirv.OpEntryPoint, operands...)
	}
	for i, e := range m.Entries {
		size := e.LocalSize
		if size == [3]uint32{} {
			size = [3]uint32{1, 1, 1}
		}
		emit(spirv.OpExecutionMode, funcIDs[i], spirv.ExecutionModeLocalSize, size[0], size[1], size[2])
	}

	varIDs := make([]uint32, len(m.Bindings))
	for i, b := range m.Bindings {
		varIDs[i] = newID()
		if b.Name != "" {
			emit(spirv.OpName, append([]uint32{varIDs[i]}, stringWords(b.Name)...)...)
		}
	}
	for i, b := range m.Bindings {
		emit(spirv.OpDecorate, varIDs[i], spirv.DecorationDescriptorSet, b.Set)
		emit(spirv.OpDecorate, varIDs[i], spirv.DecorationBinding, b.Binding)
	}

	if len(m.Bindings) > 0 {
		intID, ptrID := newID(), newID()
		emit(opTypeInt, intID, 32, 0)
		emit(opTypePointer, ptrID, uint32(spirv.StorageClassStorageBuffer), intID)
		for _, id := range varIDs {
			emit(spirv.OpVariable, ptrID, id, uint32(spirv.StorageClassStorageBuffer))
		}
	}

	header := []uint32{spirv.Magic, 0x00010300, 0, nextID, 0}
	words := append(header, code...)
	out := make([]byte, len(words)*4)
	for i, w := range words {
		binary.LittleEndian.PutUint32(out[i*4:], w)
	}
	return out
}

// stringWords encodes s as a nul-terminated literal string.
func stringWords(s string) []uint32 {
	b := append([]byte(s), 0)
	for len(b)%4 != 0 {
		b = append(b, 0)
	}
	words := make([]uint32, len(b)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(b[i*4:])
	}
	return words
}
