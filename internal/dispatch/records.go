// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package dispatch

import (
	"encoding/binary"
	"fmt"

	"github.com/gogpu/workgraph/gpucore"
)

// RecordBatch is a packed array of fixed-size input records.
type RecordBatch struct {
	stride uint32
	data   []byte
}

// NewRecordBatch returns an empty batch of stride-byte records.
func NewRecordBatch(stride uint32) *RecordBatch {
	return &RecordBatch{stride: stride}
}

// Stride returns the record size in bytes.
func (b *RecordBatch) Stride() uint32 { return b.stride }

// Len returns the number of records.
func (b *RecordBatch) Len() int {
	if b.stride == 0 {
		return 0
	}
	return len(b.data) / int(b.stride)
}

// Bytes returns the packed records.
func (b *RecordBatch) Bytes() []byte { return b.data }

// Append adds one record from little-endian 32-bit fields.
func (b *RecordBatch) Append(fields ...uint32) error {
	if uint64(len(fields))*4 != uint64(b.stride) {
		return fmt.Errorf("%w: record of %d fields does not fill stride %d",
			gpucore.ErrInvalidArgument, len(fields), b.stride)
	}
	rec := make([]byte, 0, b.stride)
	for _, f := range fields {
		rec = binary.LittleEndian.AppendUint32(rec, f)
	}
	return b.AppendBytes(rec)
}

// AppendBytes adds one raw record.
func (b *RecordBatch) AppendBytes(rec []byte) error {
	if b.stride == 0 || len(rec) != int(b.stride) {
		return fmt.Errorf("%w: record of %d bytes, stride %d", gpucore.ErrInvalidArgument, len(rec), b.stride)
	}
	b.data = append(b.data, rec...)
	return nil
}

// Uint32s decodes little-endian words. Trailing bytes are ignored.
func Uint32s(data []byte) []uint32 {
	out := make([]uint32, len(data)/4)
	for i := range out {
		out[i] = binary.LittleEndian.Uint32(data[i*4:])
	}
	return out
}
