// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package spirv reads the parts of a SPIR-V module the work graph runtime
// needs: entry points, their workgroup sizes, and resource bindings.
//
// It is not a validator. Instructions it does not understand are skipped.
package spirv

import (
	"cmp"
	"encoding/binary"
	"errors"
	"fmt"
	"slices"
)

// Magic is the SPIR-V magic number in host word order.
const Magic = 0x07230203

// Opcodes used by the reflector.
const (
	OpName          = 5
	OpEntryPoint    = 15
	OpExecutionMode = 16
	OpVariable      = 59
	OpDecorate      = 71
)

// Decorations used by the reflector.
const (
	DecorationBinding       = 33
	DecorationDescriptorSet = 34
)

// ExecutionModeLocalSize is the workgroup size execution mode.
const ExecutionModeLocalSize = 17

// ExecutionModel is the shader stage of an entry point.
type ExecutionModel uint32

const (
	ExecutionModelVertex    ExecutionModel = 0
	ExecutionModelFragment  ExecutionModel = 4
	ExecutionModelGLCompute ExecutionModel = 5
)

// String returns the string representation of ExecutionModel.
func (m ExecutionModel) String() string {
	switch m {
	case ExecutionModelVertex:
		return "Vertex"
	case ExecutionModelFragment:
		return "Fragment"
	case ExecutionModelGLCompute:
		return "GLCompute"
	default:
		return fmt.Sprintf("Unknown(%d)", uint32(m))
	}
}

// StorageClass is where a variable lives.
type StorageClass uint32

const (
	StorageClassUniformConstant StorageClass = 0
	StorageClassUniform         StorageClass = 2
	StorageClassPrivate         StorageClass = 6
	StorageClassStorageBuffer   StorageClass = 12
)

// Errors returned by Reflect.
var (
	ErrNotSPIRV  = errors.New("spirv: not a SPIR-V module")
	ErrTruncated = errors.New("spirv: truncated instruction stream")
)

// EntryPoint is an OpEntryPoint with its workgroup size, if declared.
type EntryPoint struct {
	Name      string
	Model     ExecutionModel
	LocalSize [3]uint32
}

// Binding is a variable decorated with a descriptor set and binding.
type Binding struct {
	Name         string
	Set          uint32
	Binding      uint32
	StorageClass StorageClass
}

// Module is the reflected interface of a SPIR-V module.
type Module struct {
	Version     uint32
	EntryPoints []EntryPoint
	Bindings    []Binding
}

// EntryPoint returns the entry point with the given name.
func (m *Module) EntryPoint(name string) (EntryPoint, bool) {
	for _, ep := range m.EntryPoints {
		if ep.Name == name {
			return ep, true
		}
	}
	return EntryPoint{}, false
}

// Words converts little-endian SPIR-V bytes to words.
func Words(code []byte) ([]uint32, error) {
	if len(code) < 20 || len(code)%4 != 0 {
		return nil, fmt.Errorf("%w: %d bytes", ErrNotSPIRV, len(code))
	}
	words := make([]uint32, len(code)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(code[i*4:])
	}
	if words[0] != Magic {
		return nil, fmt.Errorf("%w: magic %#08x", ErrNotSPIRV, words[0])
	}
	return words, nil
}

// Reflect parses a SPIR-V binary.
func Reflect(code []byte) (*Module, error) {
	words, err := Words(code)
	if err != nil {
		return nil, err
	}

	m := &Module{Version: words[1]}
	var (
		entryIDs  = map[uint32]int{}
		names     = map[uint32]string{}
		sets      = map[uint32]uint32{}
		bindings  = map[uint32]uint32{}
		varClass  = map[uint32]StorageClass{}
		decorated = map[uint32]bool{}
		bindOrder []uint32
	)

	for pos := 5; pos < len(words); {
		count := int(words[pos] >> 16)
		op := words[pos] & 0xffff
		if count == 0 || pos+count > len(words) {
			return nil, fmt.Errorf("%w at word %d", ErrTruncated, pos)
		}
		operands := words[pos+1 : pos+count]

		switch op {
		case OpName:
			if len(operands) >= 2 {
				names[operands[0]], _ = literalString(operands[1:])
			}
		case OpEntryPoint:
			if len(operands) < 3 {
				return nil, fmt.Errorf("%w: OpEntryPoint at word %d", ErrTruncated, pos)
			}
			name, _ := literalString(operands[2:])
			entryIDs[operands[1]] = len(m.EntryPoints)
			m.EntryPoints = append(m.EntryPoints, EntryPoint{
				Name:  name,
				Model: ExecutionModel(operands[0]),
			})
		case OpExecutionMode:
			if len(operands) >= 5 && operands[1] == ExecutionModeLocalSize {
				if i, ok := entryIDs[operands[0]]; ok {
					m.EntryPoints[i].LocalSize = [3]uint32{operands[2], operands[3], operands[4]}
				}
			}
		case OpVariable:
			if len(operands) >= 3 {
				varClass[operands[1]] = StorageClass(operands[2])
			}
		case OpDecorate:
			if len(operands) < 3 {
				break
			}
			id, deco := operands[0], operands[1]
			if deco != DecorationBinding && deco != DecorationDescriptorSet {
				break
			}
			if !decorated[id] {
				decorated[id] = true
				bindOrder = append(bindOrder, id)
			}
			if deco == DecorationBinding {
				bindings[id] = operands[2]
			} else {
				sets[id] = operands[2]
			}
		}
		pos += count
	}

	for _, id := range bindOrder {
		b, ok := bindings[id]
		if !ok {
			continue
		}
		m.Bindings = append(m.Bindings, Binding{
			Name:         names[id],
			Set:          sets[id],
			Binding:      b,
			StorageClass: varClass[id],
		})
	}
	slices.SortStableFunc(m.Bindings, func(a, b Binding) int {
		if c := cmp.Compare(a.Set, b.Set); c != 0 {
			return c
		}
		return cmp.Compare(a.Binding, b.Binding)
	})
	return m, nil
}

// literalString decodes a nul-terminated SPIR-V literal string and returns
// it together with the number of words it occupied.
func literalString(words []uint32) (string, int) {
	var buf []byte
	for i, w := range words {
		for shift := 0; shift < 32; shift += 8 {
			c := byte(w >> shift)
			if c == 0 {
				return string(buf), i + 1
			}
			buf = append(buf, c)
		}
	}
	return string(buf), len(words)
}
