// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ir

import (
	"fmt"
	"strings"
)

// =============================================================================
// Element Types
// =============================================================================

// ElementType is the scalar type of a tensor element.
type ElementType int

const (
	// Dynamic means the element type is not known until execution.
	Dynamic ElementType = iota
	Boolean
	BF16
	F16
	F32
	F64
	I4
	I8
	I16
	I32
	I64
	U1
	U4
	U8
	U16
	U32
	U64
)

var elementTypeNames = map[ElementType]string{
	Dynamic: "dynamic",
	Boolean: "boolean",
	BF16:    "bf16",
	F16:     "f16",
	F32:     "f32",
	F64:     "f64",
	I4:      "i4",
	I8:      "i8",
	I16:     "i16",
	I32:     "i32",
	I64:     "i64",
	U1:      "u1",
	U4:      "u4",
	U8:      "u8",
	U16:     "u16",
	U32:     "u32",
	U64:     "u64",
}

var elementTypeBits = map[ElementType]int{
	Boolean: 8,
	BF16:    16,
	F16:     16,
	F32:     32,
	F64:     64,
	I4:      4,
	I8:      8,
	I16:     16,
	I32:     32,
	I64:     64,
	U1:      1,
	U4:      4,
	U8:      8,
	U16:     16,
	U32:     32,
	U64:     64,
}

// String returns the lowercase name of the element type.
func (t ElementType) String() string {
	if name, ok := elementTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("element_type(%d)", int(t))
}

// Bitwidth returns the number of bits one element occupies. Dynamic is 0.
func (t ElementType) Bitwidth() int {
	return elementTypeBits[t]
}

// IsFloat reports whether the element type is a floating point type.
func (t ElementType) IsFloat() bool {
	switch t {
	case BF16, F16, F32, F64:
		return true
	}
	return false
}

// IsSigned reports whether the element type is a signed integer type.
func (t ElementType) IsSigned() bool {
	switch t {
	case I4, I8, I16, I32, I64:
		return true
	}
	return false
}

// PackedSize returns the number of bytes needed to store count elements.
//
// Sub-byte types (u1, i4, u4) are packed, so the size rounds up to the
// nearest whole byte.
func (t ElementType) PackedSize(count int64) int64 {
	bits := int64(t.Bitwidth())
	return (count*bits + 7) / 8
}

// ParseElementType converts a name such as "f32" to an ElementType.
func ParseElementType(name string) (ElementType, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for t, n := range elementTypeNames {
		if n == name {
			return t, nil
		}
	}
	return Dynamic, fmt.Errorf("%w: %q", ErrUnknownElementType, name)
}

// =============================================================================
// Node Kinds
// =============================================================================

// NodeKind tags the role a node plays in its graph.
//
// The comparator dispatches on the kind tag rather than on the operation
// name: Op covers every ordinary operation, while the remaining kinds carry
// extra structure (constant payloads, variables, nested bodies).
type NodeKind int

const (
	KindOp NodeKind = iota
	KindParameter
	KindResult
	KindConstant
	KindAssign
	KindReadValue
	KindIf
	KindLoop
	KindTensorIterator
)

var nodeKindNames = map[NodeKind]string{
	KindOp:             "op",
	KindParameter:      "parameter",
	KindResult:         "result",
	KindConstant:       "constant",
	KindAssign:         "assign",
	KindReadValue:      "read_value",
	KindIf:             "if",
	KindLoop:           "loop",
	KindTensorIterator: "tensor_iterator",
}

// String returns the snake_case name of the kind.
func (k NodeKind) String() string {
	if name, ok := nodeKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// IsControlFlow reports whether nodes of this kind own nested bodies.
func (k NodeKind) IsControlFlow() bool {
	return k == KindIf || k == KindLoop || k == KindTensorIterator
}

// ParseNodeKind converts a snake_case name to a NodeKind.
func ParseNodeKind(name string) (NodeKind, bool) {
	for k, n := range nodeKindNames {
		if n == name {
			return k, true
		}
	}
	return KindOp, false
}

// =============================================================================
// Type Identity
// =============================================================================

// relaxedPrefix marks wrapper types that stand in for a base operation with
// backend-specific precision.
const relaxedPrefix = "TypeRelaxed"

// TypeInfo is the identity of an operation type.
//
// Two types are identical when Name and Version match. A relaxed wrapper
// (Name starting with "TypeRelaxed") carries its wrapped operation in Base.
type TypeInfo struct {
	Name    string
	Version string
	Base    *TypeInfo
}

// NewType returns a TypeInfo with the given name and version.
func NewType(name, version string) TypeInfo {
	return TypeInfo{Name: name, Version: version}
}

// Relaxed wraps base in a relaxed wrapper type.
func Relaxed(base TypeInfo) TypeInfo {
	b := base
	return TypeInfo{Name: relaxedPrefix + "<" + base.Name + ">", Version: base.Version, Base: &b}
}

// IsRelaxed reports whether the type is a relaxed wrapper.
func (t TypeInfo) IsRelaxed() bool {
	return strings.HasPrefix(t.Name, relaxedPrefix)
}

// BaseName returns the wrapped operation name for relaxed wrappers and the
// plain name otherwise.
func (t TypeInfo) BaseName() string {
	if t.IsRelaxed() && t.Base != nil {
		return t.Base.Name
	}
	return t.Name
}

// String formats the type as "Name/Version".
func (t TypeInfo) String() string {
	if t.Version == "" {
		return t.Name
	}
	return t.Name + "/" + t.Version
}

// SameIdentity compares two types the way the comparator does: exact
// (name, version) equality, or base-name equality when either side is
// relaxed.
func SameIdentity(a, b TypeInfo) bool {
	if a.IsRelaxed() || b.IsRelaxed() {
		return a.BaseName() == b.BaseName()
	}
	return a.Name == b.Name && a.Version == b.Version
}
