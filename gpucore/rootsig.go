// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpucore

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
)

// RootSignatureVersion is the root signature format version.
type RootSignatureVersion uint32

// Root signature versions. Work graphs need at least 1.1 for descriptor flags.
const (
	RootSignatureVersion1_0 RootSignatureVersion = 1
	RootSignatureVersion1_1 RootSignatureVersion = 2
	RootSignatureVersion1_2 RootSignatureVersion = 3
)

// RootParameterType is the kind of a root parameter.
type RootParameterType uint32

const (
	// RootParameterType32BitConstants is inline constants.
	RootParameterType32BitConstants RootParameterType = iota + 1

	// RootParameterTypeCBV is a raw constant buffer address.
	RootParameterTypeCBV

	// RootParameterTypeSRV is a raw read-only buffer address.
	RootParameterTypeSRV

	// RootParameterTypeUAV is a raw read-write buffer address.
	RootParameterTypeUAV
)

// String returns the string representation of RootParameterType.
func (t RootParameterType) String() string {
	switch t {
	case RootParameterType32BitConstants:
		return "32BitConstants"
	case RootParameterTypeCBV:
		return "CBV"
	case RootParameterTypeSRV:
		return "SRV"
	case RootParameterTypeUAV:
		return "UAV"
	default:
		return fmt.Sprintf("Unknown(%d)", uint32(t))
	}
}

// registerClass groups parameter types that share a register namespace.
func (t RootParameterType) registerClass() byte {
	switch t {
	case RootParameterType32BitConstants, RootParameterTypeCBV:
		return 'b'
	case RootParameterTypeSRV:
		return 't'
	default:
		return 'u'
	}
}

// ShaderVisibility selects which shader stages see a root parameter.
type ShaderVisibility uint32

const (
	ShaderVisibilityAll ShaderVisibility = iota
	ShaderVisibilityVertex
	ShaderVisibilityHull
	ShaderVisibilityDomain
	ShaderVisibilityGeometry
	ShaderVisibilityPixel
	ShaderVisibilityAmplification
	ShaderVisibilityMesh
)

// RootDescriptorFlags describe how the data behind a root descriptor may change.
type RootDescriptorFlags uint32

const (
	RootDescriptorFlagNone                        RootDescriptorFlags = 0
	RootDescriptorFlagDataVolatile                RootDescriptorFlags = 0x2
	RootDescriptorFlagDataStaticWhileSetAtExecute RootDescriptorFlags = 0x4
	RootDescriptorFlagDataStatic                  RootDescriptorFlags = 0x8
)

// RootSignatureFlags are global root signature options.
type RootSignatureFlags uint32

// RootSignatureFlagNone selects default behavior.
const RootSignatureFlagNone RootSignatureFlags = 0

// RootParameter is one root signature slot.
type RootParameter struct {
	Type           RootParameterType
	ShaderRegister uint32
	RegisterSpace  uint32
	Flags          RootDescriptorFlags
	Num32BitValues uint32
	Visibility     ShaderVisibility
}

// cost returns the number of root DWORDs the parameter occupies.
func (p RootParameter) cost() uint32 {
	if p.Type == RootParameterType32BitConstants {
		return p.Num32BitValues
	}
	return 2
}

// RootSignatureDesc describes a root signature.
type RootSignatureDesc struct {
	Version    RootSignatureVersion
	Flags      RootSignatureFlags
	Parameters []RootParameter
}

// MaxRootCost is the size of the root argument space in DWORDs.
const MaxRootCost = 64

var rootSignatureMagic = [4]byte{'W', 'G', 'R', 'S'}

// Validate checks the descriptor the way the serializer does.
func (d *RootSignatureDesc) Validate() error {
	if d == nil {
		return fmt.Errorf("%w: nil descriptor", ErrInvalidRootSignature)
	}
	if d.Version < RootSignatureVersion1_0 || d.Version > RootSignatureVersion1_2 {
		return fmt.Errorf("%w: unsupported version %d", ErrInvalidRootSignature, d.Version)
	}
	type slot struct {
		class    byte
		register uint32
		space    uint32
	}
	seen := make(map[slot]int, len(d.Parameters))
	var total uint32
	for i, p := range d.Parameters {
		switch p.Type {
		case RootParameterType32BitConstants:
			if p.Num32BitValues == 0 {
				return fmt.Errorf("%w: parameter %d: constants need a value count", ErrInvalidRootSignature, i)
			}
			if p.Flags != RootDescriptorFlagNone {
				return fmt.Errorf("%w: parameter %d: descriptor flags on constants", ErrInvalidRootSignature, i)
			}
		case RootParameterTypeCBV, RootParameterTypeSRV, RootParameterTypeUAV:
			if p.Flags != RootDescriptorFlagNone && d.Version < RootSignatureVersion1_1 {
				return fmt.Errorf("%w: parameter %d: descriptor flags need version 1.1", ErrInvalidRootSignature, i)
			}
			if p.Flags&^(RootDescriptorFlagDataVolatile|RootDescriptorFlagDataStaticWhileSetAtExecute|RootDescriptorFlagDataStatic) != 0 {
				return fmt.Errorf("%w: parameter %d: unknown descriptor flags %#x", ErrInvalidRootSignature, i, uint32(p.Flags))
			}
			if bitsSet(uint32(p.Flags)) > 1 {
				return fmt.Errorf("%w: parameter %d: conflicting descriptor flags %#x", ErrInvalidRootSignature, i, uint32(p.Flags))
			}
		default:
			return fmt.Errorf("%w: parameter %d: unknown type %d", ErrInvalidRootSignature, i, uint32(p.Type))
		}
		if p.Visibility > ShaderVisibilityMesh {
			return fmt.Errorf("%w: parameter %d: unknown visibility %d", ErrInvalidRootSignature, i, uint32(p.Visibility))
		}
		key := slot{p.Type.registerClass(), p.ShaderRegister, p.RegisterSpace}
		if prev, dup := seen[key]; dup {
			return fmt.Errorf("%w: parameters %d and %d both bind %c%d space%d",
				ErrInvalidRootSignature, prev, i, key.class, key.register, key.space)
		}
		seen[key] = i
		total += p.cost()
	}
	if total > MaxRootCost {
		return fmt.Errorf("%w: root cost %d exceeds %d DWORDs", ErrInvalidRootSignature, total, MaxRootCost)
	}
	return nil
}

func bitsSet(v uint32) int {
	n := 0
	for ; v != 0; v &= v - 1 {
		n++
	}
	return n
}

// SerializeRootSignature validates desc and encodes it into the blob
// accepted by Device.CreateRootSignature.
//
// Layout (little-endian): magic, version, flags, count, count x 6 uint32
// parameter fields, CRC-32 of everything before it.
func SerializeRootSignature(desc *RootSignatureDesc) ([]byte, error) {
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.Write(rootSignatureMagic[:])
	header := []uint32{uint32(desc.Version), uint32(desc.Flags), uint32(len(desc.Parameters))}
	for _, p := range desc.Parameters {
		header = append(header,
			uint32(p.Type), p.ShaderRegister, p.RegisterSpace,
			uint32(p.Flags), p.Num32BitValues, uint32(p.Visibility))
	}
	if err := binary.Write(&buf, binary.LittleEndian, header); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRootSignature, err)
	}
	sum := crc32.ChecksumIEEE(buf.Bytes())
	if err := binary.Write(&buf, binary.LittleEndian, sum); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRootSignature, err)
	}
	return buf.Bytes(), nil
}

// DeserializeRootSignature decodes and validates a serialized root signature.
func DeserializeRootSignature(blob []byte) (*RootSignatureDesc, error) {
	const headerSize = 4 + 3*4
	if len(blob) < headerSize+4 {
		return nil, fmt.Errorf("%w: blob too short (%d bytes)", ErrInvalidRootSignature, len(blob))
	}
	if !bytes.Equal(blob[:4], rootSignatureMagic[:]) {
		return nil, fmt.Errorf("%w: bad magic", ErrInvalidRootSignature)
	}
	body, tail := blob[:len(blob)-4], blob[len(blob)-4:]
	if crc32.ChecksumIEEE(body) != binary.LittleEndian.Uint32(tail) {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrInvalidRootSignature)
	}

	le := binary.LittleEndian
	desc := &RootSignatureDesc{
		Version: RootSignatureVersion(le.Uint32(body[4:])),
		Flags:   RootSignatureFlags(le.Uint32(body[8:])),
	}
	count := le.Uint32(body[12:])
	if uint64(len(body)-headerSize) != uint64(count)*6*4 {
		return nil, fmt.Errorf("%w: %d parameters do not fit %d bytes", ErrInvalidRootSignature, count, len(body)-headerSize)
	}
	desc.Parameters = make([]RootParameter, count)
	for i := range desc.Parameters {
		f := body[headerSize+i*24:]
		desc.Parameters[i] = RootParameter{
			Type:           RootParameterType(le.Uint32(f[0:])),
			ShaderRegister: le.Uint32(f[4:]),
			RegisterSpace:  le.Uint32(f[8:]),
			Flags:          RootDescriptorFlags(le.Uint32(f[12:])),
			Num32BitValues: le.Uint32(f[16:]),
			Visibility:     ShaderVisibility(le.Uint32(f[20:])),
		}
	}
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	return desc, nil
}
