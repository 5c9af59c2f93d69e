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
	"strconv"
	"strings"
)

// Unbounded is the upper bound of a dimension with no maximum.
const Unbounded int64 = -1

// Dimension is a closed interval [Min, Max] of possible lengths.
//
// A static dimension has Min == Max. Max == Unbounded means no upper bound.
type Dimension struct {
	Min int64
	Max int64
}

// Dim returns a static dimension of length n.
func Dim(n int64) Dimension {
	return Dimension{Min: n, Max: n}
}

// DynamicDim returns a fully dynamic dimension.
func DynamicDim() Dimension {
	return Dimension{Min: 0, Max: Unbounded}
}

// BoundedDim returns the dimension interval [lo, hi].
func BoundedDim(lo, hi int64) Dimension {
	return Dimension{Min: lo, Max: hi}
}

// IsStatic reports whether the dimension has exactly one possible length.
func (d Dimension) IsStatic() bool {
	return d.Max != Unbounded && d.Min == d.Max
}

// Length returns the static length. It is only meaningful when IsStatic.
func (d Dimension) Length() int64 {
	return d.Min
}

// SameScheme reports whether both dimensions are dynamic, or both are static
// with the same length.
func (d Dimension) SameScheme(o Dimension) bool {
	if d.IsStatic() && o.IsStatic() {
		return d.Min == o.Min
	}
	return !d.IsStatic() && !o.IsStatic()
}

// Equal reports exact interval equality.
func (d Dimension) Equal(o Dimension) bool {
	return d.Min == o.Min && d.Max == o.Max
}

// String formats the dimension as "3", "?", "2..", or "1..8".
func (d Dimension) String() string {
	switch {
	case d.IsStatic():
		return strconv.FormatInt(d.Min, 10)
	case d.Max == Unbounded && d.Min == 0:
		return "?"
	case d.Max == Unbounded:
		return strconv.FormatInt(d.Min, 10) + ".."
	default:
		return strconv.FormatInt(d.Min, 10) + ".." + strconv.FormatInt(d.Max, 10)
	}
}

// Shape is a tensor shape whose rank and dimensions may be dynamic.
//
// The zero value is a static scalar shape (rank 0). Use DynamicRank for a
// shape whose rank is unknown.
type Shape struct {
	Dims        []Dimension
	RankDynamic bool
}

// StaticShape returns a shape with the given static dimensions.
func StaticShape(dims ...int64) Shape {
	out := make([]Dimension, len(dims))
	for i, d := range dims {
		out[i] = Dim(d)
	}
	return Shape{Dims: out}
}

// NewShape returns a shape from explicit dimensions.
func NewShape(dims ...Dimension) Shape {
	return Shape{Dims: append([]Dimension(nil), dims...)}
}

// DynamicRank returns a shape with unknown rank.
func DynamicRank() Shape {
	return Shape{RankDynamic: true}
}

// Rank returns the number of dimensions, or -1 for dynamic rank.
func (s Shape) Rank() int {
	if s.RankDynamic {
		return -1
	}
	return len(s.Dims)
}

// IsStatic reports whether the rank and every dimension are static.
func (s Shape) IsStatic() bool {
	if s.RankDynamic {
		return false
	}
	for _, d := range s.Dims {
		if !d.IsStatic() {
			return false
		}
	}
	return true
}

// IsDynamic is the negation of IsStatic.
func (s Shape) IsDynamic() bool {
	return !s.IsStatic()
}

// ElementCount returns the product of static dimensions. The result is
// meaningless for dynamic shapes.
func (s Shape) ElementCount() int64 {
	n := int64(1)
	for _, d := range s.Dims {
		n *= d.Length()
	}
	return n
}

// SameScheme reports whether two shapes are compatible for wiring checks:
// both with dynamic rank, or equal rank with every dimension pair either
// equal and static or dynamic in both.
func (s Shape) SameScheme(o Shape) bool {
	if s.RankDynamic || o.RankDynamic {
		return s.RankDynamic && o.RankDynamic
	}
	if len(s.Dims) != len(o.Dims) {
		return false
	}
	for i := range s.Dims {
		if !s.Dims[i].SameScheme(o.Dims[i]) {
			return false
		}
	}
	return true
}

// Equal reports exact structural equality, including dimension bounds.
func (s Shape) Equal(o Shape) bool {
	if s.RankDynamic != o.RankDynamic || len(s.Dims) != len(o.Dims) {
		return false
	}
	for i := range s.Dims {
		if !s.Dims[i].Equal(o.Dims[i]) {
			return false
		}
	}
	return true
}

// String formats the shape as "[2,?,1..8]" or "?" for dynamic rank.
func (s Shape) String() string {
	if s.RankDynamic {
		return "?"
	}
	parts := make([]string, len(s.Dims))
	for i, d := range s.Dims {
		parts[i] = d.String()
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// ParseShape parses the text produced by Shape.String.
//
// Example:
//
//	ParseShape("[2,?,1..8]") // rank 3, middle dim dynamic, last bounded
//	ParseShape("?")          // dynamic rank
func ParseShape(text string) (Shape, error) {
	text = strings.TrimSpace(text)
	if text == "?" || text == "..." {
		return DynamicRank(), nil
	}
	if !strings.HasPrefix(text, "[") || !strings.HasSuffix(text, "]") {
		return Shape{}, fmt.Errorf("%w: %q", ErrInvalidShape, text)
	}
	body := strings.TrimSpace(text[1 : len(text)-1])
	if body == "" {
		return Shape{Dims: []Dimension{}}, nil
	}
	fields := strings.Split(body, ",")
	dims := make([]Dimension, 0, len(fields))
	for _, f := range fields {
		d, err := ParseDimension(f)
		if err != nil {
			return Shape{}, fmt.Errorf("%w: %q: %v", ErrInvalidShape, text, err)
		}
		dims = append(dims, d)
	}
	return Shape{Dims: dims}, nil
}

// ParseDimension parses "3", "?", "-1", "2..", or "1..8".
func ParseDimension(text string) (Dimension, error) {
	text = strings.TrimSpace(text)
	if text == "?" || text == "-1" {
		return DynamicDim(), nil
	}
	if lo, hi, ok := strings.Cut(text, ".."); ok {
		lower, err := strconv.ParseInt(strings.TrimSpace(lo), 10, 64)
		if err != nil {
			return Dimension{}, err
		}
		if strings.TrimSpace(hi) == "" {
			return BoundedDim(lower, Unbounded), nil
		}
		upper, err := strconv.ParseInt(strings.TrimSpace(hi), 10, 64)
		if err != nil {
			return Dimension{}, err
		}
		if upper < lower {
			return Dimension{}, fmt.Errorf("upper bound %d below lower bound %d", upper, lower)
		}
		return BoundedDim(lower, upper), nil
	}
	n, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return Dimension{}, err
	}
	if n < 0 {
		return Dimension{}, fmt.Errorf("negative dimension %d", n)
	}
	return Dim(n), nil
}

// Compatible reports whether the two dimensions admit a common length.
func (d Dimension) Compatible(o Dimension) bool {
	lo := max(d.Min, o.Min)
	if d.Max != Unbounded && lo > d.Max {
		return false
	}
	if o.Max != Unbounded && lo > o.Max {
		return false
	}
	return true
}

// Compatible reports whether some static shape satisfies both shapes.
func (s Shape) Compatible(o Shape) bool {
	if s.RankDynamic || o.RankDynamic {
		return true
	}
	if len(s.Dims) != len(o.Dims) {
		return false
	}
	for i := range s.Dims {
		if !s.Dims[i].Compatible(o.Dims[i]) {
			return false
		}
	}
	return true
}
