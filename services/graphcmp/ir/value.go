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
	"bytes"
	"encoding/hex"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

// ValueKind tags the variant held by a Value.
type ValueKind int

const (
	ValueUnknown ValueKind = iota
	ValueScalar
	ValueShape
	ValueDimension
	ValueBlob
	ValueGraph
	ValueInputDescriptions
	ValueOutputDescriptions
	ValueSpecialPorts
	ValueVariable
	ValueMetadata
	ValueIncomparable
)

var valueKindNames = map[ValueKind]string{
	ValueUnknown:            "unknown",
	ValueScalar:             "scalar",
	ValueShape:              "shape",
	ValueDimension:          "dimension",
	ValueBlob:               "blob",
	ValueGraph:              "graph",
	ValueInputDescriptions:  "input_descriptions",
	ValueOutputDescriptions: "output_descriptions",
	ValueSpecialPorts:       "special_ports",
	ValueVariable:           "variable",
	ValueMetadata:           "metadata",
	ValueIncomparable:       "incomparable",
}

// String returns the snake_case name of the kind.
func (k ValueKind) String() string {
	if name, ok := valueKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("value_kind(%d)", int(k))
}

// Value is an attribute or runtime-info payload.
//
// The set of implementations is closed: Scalar, ShapeValue, DimensionValue,
// Blob, GraphValue, InputDescriptions, OutputDescriptions, SpecialPortsValue,
// VariableValue, Metadata, Incomparable and Unknown. Unknown carries payloads
// of kinds this package does not model so that callers can degrade instead
// of failing.
type Value interface {
	Kind() ValueKind
	String() string
	value()
}

// Attribute is one named attribute declared by a node.
type Attribute struct {
	Name  string
	Value Value
}

// RuntimeInfo holds per-node or per-port runtime metadata.
type RuntimeInfo map[string]Value

// Keys returns the keys in sorted order.
func (r RuntimeInfo) Keys() []string {
	return slices.Sorted(maps.Keys(r))
}

// =============================================================================
// Scalar
// =============================================================================

// Scalar holds a primitive value or a list of primitives.
//
// Supported payloads are bool, int64, float64, string and slices of those.
type Scalar struct {
	v any
}

func Bool(v bool) Scalar          { return Scalar{v: v} }
func Int(v int64) Scalar          { return Scalar{v: v} }
func Float(v float64) Scalar      { return Scalar{v: v} }
func String(v string) Scalar      { return Scalar{v: v} }
func Ints(v ...int64) Scalar      { return Scalar{v: slices.Clone(v)} }
func Floats(v ...float64) Scalar  { return Scalar{v: slices.Clone(v)} }
func Strings(v ...string) Scalar  { return Scalar{v: slices.Clone(v)} }
func Bools(v ...bool) Scalar      { return Scalar{v: slices.Clone(v)} }
func (Scalar) Kind() ValueKind    { return ValueScalar }
func (Scalar) value()             {}
func (s Scalar) Interface() any   { return s.v }
func (s Scalar) String() string   { return fmt.Sprint(s.v) }
func (s Scalar) TypeName() string { return fmt.Sprintf("%T", s.v) }

// Equal compares payloads structurally. NaN equals NaN and nil lists equal
// empty lists.
func (s Scalar) Equal(o Scalar) bool {
	return cmp.Equal(s.v, o.v, cmpopts.EquateNaNs(), cmpopts.EquateEmpty())
}

// =============================================================================
// Shapes
// =============================================================================

// ShapeValue is a shape-typed attribute. Attribute shapes compare exactly.
type ShapeValue struct {
	Shape Shape
}

func (ShapeValue) Kind() ValueKind           { return ValueShape }
func (ShapeValue) value()                    {}
func (s ShapeValue) String() string          { return s.Shape.String() }
func (s ShapeValue) Equal(o ShapeValue) bool { return s.Shape.Equal(o.Shape) }

// DimensionValue is a dimension-typed attribute.
type DimensionValue struct {
	Dim Dimension
}

func (DimensionValue) Kind() ValueKind               { return ValueDimension }
func (DimensionValue) value()                        {}
func (d DimensionValue) String() string              { return d.Dim.String() }
func (d DimensionValue) Equal(o DimensionValue) bool { return d.Dim.Equal(o.Dim) }

// =============================================================================
// Blob
// =============================================================================

// Blob is an opaque memory buffer compared byte for byte.
type Blob struct {
	Data []byte
}

func (Blob) Kind() ValueKind     { return ValueBlob }
func (Blob) value()              {}
func (b Blob) Equal(o Blob) bool { return bytes.Equal(b.Data, o.Data) }

// String renders at most 16 bytes in hex.
func (b Blob) String() string {
	const limit = 16
	if len(b.Data) <= limit {
		return fmt.Sprintf("blob(%d)[%s]", len(b.Data), hex.EncodeToString(b.Data))
	}
	return fmt.Sprintf("blob(%d)[%s...]", len(b.Data), hex.EncodeToString(b.Data[:limit]))
}

// =============================================================================
// Nested graph
// =============================================================================

// GraphValue is an attribute holding a complete nested graph. Equality is
// decided by the comparator, not by this package.
type GraphValue struct {
	Graph *Graph
}

func (GraphValue) Kind() ValueKind { return ValueGraph }
func (GraphValue) value()          {}
func (g GraphValue) String() string {
	if g.Graph == nil {
		return "graph(nil)"
	}
	return fmt.Sprintf("graph(%s, %d nodes)", g.Graph.Name, g.Graph.Len())
}

// =============================================================================
// Port descriptions
// =============================================================================

// InputDescriptions is an attribute holding input port-mapping descriptors.
type InputDescriptions []InputDescription

func (InputDescriptions) Kind() ValueKind { return ValueInputDescriptions }
func (InputDescriptions) value()          {}
func (d InputDescriptions) String() string {
	parts := make([]string, len(d))
	for i, x := range d {
		parts[i] = x.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// OutputDescriptions is an attribute holding output port-mapping descriptors.
type OutputDescriptions []OutputDescription

func (OutputDescriptions) Kind() ValueKind { return ValueOutputDescriptions }
func (OutputDescriptions) value()          {}
func (d OutputDescriptions) String() string {
	parts := make([]string, len(d))
	for i, x := range d {
		parts[i] = x.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// SpecialPortsValue marks which body parameter receives the current
// iteration index and which body result carries the loop condition.
// Either index is -1 when absent.
type SpecialPortsValue struct {
	Ports SpecialPorts
}

func (SpecialPortsValue) Kind() ValueKind  { return ValueSpecialPorts }
func (SpecialPortsValue) value()           {}
func (s SpecialPortsValue) String() string { return s.Ports.String() }

// =============================================================================
// Variables and metadata
// =============================================================================

// VariableValue references a stateful variable shared across invocations.
type VariableValue struct {
	ID          string
	ElementType ElementType
	Shape       Shape
}

func (VariableValue) Kind() ValueKind { return ValueVariable }
func (VariableValue) value()          {}
func (v VariableValue) String() string {
	return fmt.Sprintf("variable(%s, %s, %s)", v.ID, v.ElementType, v.Shape)
}
func (v VariableValue) Equal(o VariableValue) bool {
	return v.ID == o.ID && v.ElementType == o.ElementType && v.Shape.Equal(o.Shape)
}

// Metadata is a framework-specific key/value bag.
type Metadata map[string]string

func (Metadata) Kind() ValueKind         { return ValueMetadata }
func (Metadata) value()                  {}
func (m Metadata) Equal(o Metadata) bool { return maps.Equal(m, o) }
func (m Metadata) String() string {
	keys := slices.Sorted(maps.Keys(m))
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + m[k]
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// =============================================================================
// Values without equality
// =============================================================================

// Incomparable is a known payload with no defined equality. Comparisons
// involving it are skipped.
type Incomparable struct {
	TypeName string
	Repr     string
}

func (Incomparable) Kind() ValueKind  { return ValueIncomparable }
func (Incomparable) value()           {}
func (i Incomparable) String() string { return i.TypeName + "(" + i.Repr + ")" }

// Unknown is a payload of a kind this package does not model.
type Unknown struct {
	TypeName string
	Raw      []byte
}

func (Unknown) Kind() ValueKind  { return ValueUnknown }
func (Unknown) value()           {}
func (u Unknown) String() string { return fmt.Sprintf("%s(%d bytes)", u.TypeName, len(u.Raw)) }
