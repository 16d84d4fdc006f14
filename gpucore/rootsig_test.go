// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpucore

import (
	"errors"
	"testing"
)

func workGraphSignature() *RootSignatureDesc {
	return &RootSignatureDesc{
		Version: RootSignatureVersion1_2,
		Parameters: []RootParameter{{
			Type:       RootParameterTypeUAV,
			Flags:      RootDescriptorFlagDataVolatile,
			Visibility: ShaderVisibilityAll,
		}},
	}
}

func TestSerializeRootSignatureRoundTrip(t *testing.T) {
	desc := workGraphSignature()
	desc.Parameters = append(desc.Parameters, RootParameter{
		Type:           RootParameterType32BitConstants,
		ShaderRegister: 0,
		Num32BitValues: 4,
	})

	blob, err := SerializeRootSignature(desc)
	if err != nil {
		t.Fatalf("SerializeRootSignature() error = %v", err)
	}
	if string(blob[:4]) != "WGRS" {
		t.Errorf("magic = %q", blob[:4])
	}
	got, err := DeserializeRootSignature(blob)
	if err != nil {
		t.Fatalf("DeserializeRootSignature() error = %v", err)
	}
	if got.Version != desc.Version || len(got.Parameters) != 2 {
		t.Fatalf("got %+v", got)
	}
	for i := range desc.Parameters {
		if got.Parameters[i] != desc.Parameters[i] {
			t.Errorf("parameter %d = %+v, want %+v", i, got.Parameters[i], desc.Parameters[i])
		}
	}
}

func TestRootSignatureValidate(t *testing.T) {
	uav := RootParameter{Type: RootParameterTypeUAV}
	tests := []struct {
		name string
		desc *RootSignatureDesc
	}{
		{"nil", nil},
		{"version", &RootSignatureDesc{Version: 9}},
		{"flags need 1.1", &RootSignatureDesc{
			Version:    RootSignatureVersion1_0,
			Parameters: []RootParameter{{Type: RootParameterTypeUAV, Flags: RootDescriptorFlagDataVolatile}},
		}},
		{"conflicting flags", &RootSignatureDesc{
			Version: RootSignatureVersion1_1,
			Parameters: []RootParameter{{
				Type:  RootParameterTypeUAV,
				Flags: RootDescriptorFlagDataVolatile | RootDescriptorFlagDataStatic,
			}},
		}},
		{"unknown flags", &RootSignatureDesc{
			Version:    RootSignatureVersion1_1,
			Parameters: []RootParameter{{Type: RootParameterTypeUAV, Flags: 0x100}},
		}},
		{"duplicate register", &RootSignatureDesc{Version: RootSignatureVersion1_1, Parameters: []RootParameter{uav, uav}}},
		{"constants without count", &RootSignatureDesc{
			Version:    RootSignatureVersion1_1,
			Parameters: []RootParameter{{Type: RootParameterType32BitConstants}},
		}},
		{"unknown type", &RootSignatureDesc{Version: RootSignatureVersion1_1, Parameters: []RootParameter{{Type: 42}}}},
		{"visibility", &RootSignatureDesc{
			Version:    RootSignatureVersion1_1,
			Parameters: []RootParameter{{Type: RootParameterTypeSRV, Visibility: 99}},
		}},
		{"cost", &RootSignatureDesc{
			Version:    RootSignatureVersion1_1,
			Parameters: []RootParameter{{Type: RootParameterType32BitConstants, Num32BitValues: MaxRootCost + 1}},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := SerializeRootSignature(tt.desc); !errors.Is(err, ErrInvalidRootSignature) {
				t.Errorf("SerializeRootSignature() error = %v, want ErrInvalidRootSignature", err)
			}
		})
	}
}

func TestRootSignatureSameRegisterDifferentClass(t *testing.T) {
	desc := &RootSignatureDesc{
		Version: RootSignatureVersion1_1,
		Parameters: []RootParameter{
			{Type: RootParameterTypeUAV},
			{Type: RootParameterTypeSRV},
			{Type: RootParameterTypeUAV, RegisterSpace: 1},
		},
	}
	if err := desc.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestDeserializeRootSignatureCorrupt(t *testing.T) {
	blob, err := SerializeRootSignature(workGraphSignature())
	if err != nil {
		t.Fatal(err)
	}

	flipped := append([]byte(nil), blob...)
	flipped[8] ^= 0xff
	badMagic := append([]byte(nil), blob...)
	badMagic[0] = 'X'

	for name, b := range map[string][]byte{
		"short":     blob[:10],
		"checksum":  flipped,
		"bad magic": badMagic,
		"truncated": blob[:len(blob)-8],
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := DeserializeRootSignature(b); !errors.Is(err, ErrInvalidRootSignature) {
				t.Errorf("DeserializeRootSignature() error = %v", err)
			}
		})
	}
}

func TestRootParameterTypeString(t *testing.T) {
	if got := RootParameterTypeUAV.String(); got != "UAV" {
		t.Errorf("String() = %q", got)
	}
	if got := RootParameterType(99).String(); got != "Unknown(99)" {
		t.Errorf("String() = %q", got)
	}
}
