// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package program turns compiled bytecode into an executable work graph
// program and manages the backing memory its scheduler needs.
package program

import (
	"fmt"

	"github.com/gogpu/workgraph/gpucore"
	"github.com/gogpu/workgraph/internal/logging"
)

// Slot is one binding slot of a signature.
type Slot struct {
	Kind           gpucore.RootParameterType
	Register       uint32
	Space          uint32
	Flags          gpucore.RootDescriptorFlags
	Visibility     gpucore.ShaderVisibility
	Num32BitValues uint32
}

// OutputSlots returns the single slot the sample graph writes through: a
// raw UAV at u0 in space 0, visible to every stage, with volatile data.
func OutputSlots() []Slot {
	return []Slot{{
		Kind:       gpucore.RootParameterTypeUAV,
		Flags:      gpucore.RootDescriptorFlagDataVolatile,
		Visibility: gpucore.ShaderVisibilityAll,
	}}
}

// Signature is a built binding signature. It is immutable and shared by the
// program and every dispatch.
type Signature struct {
	desc gpucore.RootSignatureDesc
	root gpucore.RootSignature
}

// BuildBindingSignature validates slots, serializes them, and creates the
// device signature. Every failure wraps gpucore.ErrSignatureBuild.
func BuildBindingSignature(dev gpucore.Device, slots []Slot) (*Signature, error) {
	desc := gpucore.RootSignatureDesc{
		Version:    gpucore.RootSignatureVersion1_2,
		Parameters: make([]gpucore.RootParameter, len(slots)),
	}
	for i, s := range slots {
		desc.Parameters[i] = gpucore.RootParameter{
			Type:           s.Kind,
			ShaderRegister: s.Register,
			RegisterSpace:  s.Space,
			Flags:          s.Flags,
			Num32BitValues: s.Num32BitValues,
			Visibility:     s.Visibility,
		}
	}

	blob, err := gpucore.SerializeRootSignature(&desc)
	if err != nil {
		return nil, fmt.Errorf("%w: serialize: %w", gpucore.ErrSignatureBuild, err)
	}
	root, err := dev.CreateRootSignature(blob)
	if err != nil {
		return nil, fmt.Errorf("%w: create: %w", gpucore.ErrSignatureBuild, err)
	}
	logging.L().Debug("program: binding signature built", "slots", len(slots), "blob", len(blob))
	return &Signature{desc: desc, root: root}, nil
}

// Root returns the device object.
func (s *Signature) Root() gpucore.RootSignature { return s.root }

// NumSlots returns the number of binding slots.
func (s *Signature) NumSlots() int { return len(s.desc.Parameters) }

// Release destroys the device object.
func (s *Signature) Release() {
	if s.root != nil {
		s.root.Release()
		s.root = nil
	}
}
