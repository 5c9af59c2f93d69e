// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package tensorcmp compares dense tensors element by element with absolute
// and relative thresholds.
//
// Payloads use little-endian byte order. Sub-byte types (u1, i4, u4) pack
// elements from the low bits of each byte upward.
package tensorcmp

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/x448/float16"

	"github.com/AleutianAI/graphcmp/services/graphcmp/ir"
)

// Tensor is a dense tensor with a static shape.
type Tensor struct {
	ElementType ir.ElementType `json:"element_type"`
	Shape       []int64        `json:"shape"`
	Data        []byte         `json:"data"`
}

// Len returns the element count implied by the shape.
func (t Tensor) Len() int {
	n := int64(1)
	for _, d := range t.Shape {
		n *= d
	}
	return int(n)
}

// String formats the tensor header, e.g. "f32[2,3]".
func (t Tensor) String() string {
	return t.ElementType.String() + ir.StaticShape(t.Shape...).String()
}

// Values decodes every element to float64.
func (t Tensor) Values() ([]float64, error) {
	n := t.Len()
	if t.ElementType == ir.Dynamic {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, t.ElementType)
	}
	if need := t.ElementType.PackedSize(int64(n)); int64(len(t.Data)) < need {
		return nil, fmt.Errorf("%w: %s needs %d bytes, got %d", ErrShortBuffer, t, need, len(t.Data))
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = decode(t.ElementType, t.Data, i)
	}
	return out, nil
}

// FromValues encodes values as a tensor of the given type and shape.
// Values are converted the way a cast would: floats round for f16/bf16,
// integers truncate toward zero and wrap.
func FromValues(et ir.ElementType, shape []int64, values []float64) (Tensor, error) {
	t := Tensor{ElementType: et, Shape: append([]int64(nil), shape...)}
	if et == ir.Dynamic {
		return Tensor{}, fmt.Errorf("%w: %s", ErrUnsupportedType, et)
	}
	if t.Len() != len(values) {
		return Tensor{}, fmt.Errorf("%w: shape %v holds %d elements, got %d values", ErrSizeMismatch, shape, t.Len(), len(values))
	}
	t.Data = make([]byte, et.PackedSize(int64(len(values))))
	for i, v := range values {
		encode(et, t.Data, i, v)
	}
	return t, nil
}

func decode(et ir.ElementType, data []byte, i int) float64 {
	le := binary.LittleEndian
	switch et {
	case ir.Boolean:
		if data[i] != 0 {
			return 1
		}
		return 0
	case ir.BF16:
		return float64(math.Float32frombits(uint32(le.Uint16(data[2*i:])) << 16))
	case ir.F16:
		return float64(float16.Frombits(le.Uint16(data[2*i:])).Float32())
	case ir.F32:
		return float64(math.Float32frombits(le.Uint32(data[4*i:])))
	case ir.F64:
		return math.Float64frombits(le.Uint64(data[8*i:]))
	case ir.I4:
		v := nibble(data, i)
		if v&0x8 != 0 {
			return float64(int8(v | 0xF0))
		}
		return float64(v)
	case ir.U4:
		return float64(nibble(data, i))
	case ir.U1:
		return float64((data[i/8] >> (i % 8)) & 1)
	case ir.I8:
		return float64(int8(data[i]))
	case ir.U8:
		return float64(data[i])
	case ir.I16:
		return float64(int16(le.Uint16(data[2*i:])))
	case ir.U16:
		return float64(le.Uint16(data[2*i:]))
	case ir.I32:
		return float64(int32(le.Uint32(data[4*i:])))
	case ir.U32:
		return float64(le.Uint32(data[4*i:]))
	case ir.I64:
		return float64(int64(le.Uint64(data[8*i:])))
	case ir.U64:
		return float64(le.Uint64(data[8*i:]))
	default:
		return math.NaN()
	}
}

func nibble(data []byte, i int) byte {
	b := data[i/2]
	if i%2 == 1 {
		return b >> 4
	}
	return b & 0x0F
}

func setNibble(data []byte, i int, v byte) {
	v &= 0x0F
	if i%2 == 1 {
		data[i/2] = data[i/2]&0x0F | v<<4
		return
	}
	data[i/2] = data[i/2]&0xF0 | v
}

func encode(et ir.ElementType, data []byte, i int, v float64) {
	le := binary.LittleEndian
	switch et {
	case ir.Boolean:
		if v != 0 {
			data[i] = 1
		}
	case ir.BF16:
		le.PutUint16(data[2*i:], bf16Bits(float32(v)))
	case ir.F16:
		le.PutUint16(data[2*i:], float16.Fromfloat32(float32(v)).Bits())
	case ir.F32:
		le.PutUint32(data[4*i:], math.Float32bits(float32(v)))
	case ir.F64:
		le.PutUint64(data[8*i:], math.Float64bits(v))
	case ir.I4, ir.U4:
		setNibble(data, i, byte(int64(v)))
	case ir.U1:
		if v != 0 {
			data[i/8] |= 1 << (i % 8)
		}
	case ir.I8, ir.U8:
		data[i] = byte(int64(v))
	case ir.I16, ir.U16:
		le.PutUint16(data[2*i:], uint16(int64(v)))
	case ir.I32, ir.U32:
		le.PutUint32(data[4*i:], uint32(int64(v)))
	case ir.I64:
		le.PutUint64(data[8*i:], uint64(int64(v)))
	case ir.U64:
		le.PutUint64(data[8*i:], uint64(v))
	}
}

// bf16Bits rounds f to the nearest bfloat16, ties to even.
func bf16Bits(f float32) uint16 {
	if math.IsNaN(float64(f)) {
		return 0x7FC0
	}
	bits := math.Float32bits(f)
	bits += 0x7FFF + (bits>>16)&1
	return uint16(bits >> 16)
}
