// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package compare

import (
	"fmt"
	"strings"

	"github.com/AleutianAI/graphcmp/services/graphcmp/ir"
)

// AttributeVisitor receives every attribute a node declares, in order.
type AttributeVisitor interface {
	OnAttribute(name string, value ir.Value)
}

// VisitAttributes feeds the declared attributes of n to v.
func VisitAttributes(n *ir.Node, v AttributeVisitor) {
	for _, a := range n.Attributes {
		v.OnAttribute(a.Name, a.Value)
	}
}

// attributeReader is the read pass: it records the reference node's
// attributes by name.
type attributeReader struct {
	values map[string]ir.Value
}

func newAttributeReader() *attributeReader {
	return &attributeReader{values: make(map[string]ir.Value)}
}

func (r *attributeReader) OnAttribute(name string, value ir.Value) {
	r.values[name] = value
}

// attributeComparer is the compare pass: it checks each attribute of the
// subject node against the recorded reference value.
type attributeComparer struct {
	s       *session
	ref     *attributeReader
	visited int
	errs    []string
}

func (c *attributeComparer) OnAttribute(name string, value ir.Value) {
	c.visited++
	ref, ok := c.ref.values[name]
	if !ok {
		c.errs = append(c.errs, fmt.Sprintf("missing attribute name: '%s'", name))
		return
	}

	switch c.s.valuesEqual(ref, value) {
	case verdictEqual, verdictSkipped:
	case verdictNoEquality:
		c.s.warn(fmt.Sprintf("[drop comparison of '%s' which has no defined equality]", name))
	case verdictUnknown:
		c.errs = append(c.errs, fmt.Sprintf("attribute of unhandled kind: '%s' (%s vs %s)", name, ref, value))
	case verdictMismatch:
		c.errs = append(c.errs, fmt.Sprintf("mismatch in value: '%s' : %s vs %s", name, ref, value))
	}
}

// compareAttributes runs both passes and returns the joined diagnostics, or
// "" when every attribute matches.
func (s *session) compareAttributes(n1, n2 *ir.Node) string {
	reader := newAttributeReader()
	VisitAttributes(n1, reader)

	cmp := &attributeComparer{s: s, ref: reader}
	VisitAttributes(n2, cmp)

	if cmp.visited != len(reader.values) {
		cmp.errs = append(cmp.errs, fmt.Sprintf("number of attributes is different: %d vs %d",
			len(reader.values), cmp.visited))
	}
	return strings.Join(cmp.errs, "; ")
}

// verdict is the outcome of comparing two values.
type verdict int

const (
	verdictEqual verdict = iota
	verdictMismatch
	// verdictSkipped marks kinds compared elsewhere (special body ports).
	verdictSkipped
	// verdictNoEquality marks values with no defined equality.
	verdictNoEquality
	// verdictUnknown marks values of a kind the comparator does not model.
	verdictUnknown
)

// valuesEqual dispatches on the reference value's variant. Nested graphs
// recurse into a full walk that shares this session.
func (s *session) valuesEqual(ref, got ir.Value) verdict {
	if _, ok := got.(ir.Incomparable); ok {
		return verdictNoEquality
	}
	if _, ok := got.(ir.Unknown); ok {
		return verdictUnknown
	}

	switch r := ref.(type) {
	case ir.Scalar:
		return verdictOf(func(g ir.Scalar) bool { return r.Equal(g) }, got)
	case ir.ShapeValue:
		return verdictOf(func(g ir.ShapeValue) bool { return r.Equal(g) }, got)
	case ir.DimensionValue:
		return verdictOf(func(g ir.DimensionValue) bool { return r.Equal(g) }, got)
	case ir.Blob:
		return verdictOf(func(g ir.Blob) bool { return r.Equal(g) }, got)
	case ir.VariableValue:
		return verdictOf(func(g ir.VariableValue) bool { return r.Equal(g) }, got)
	case ir.Metadata:
		return verdictOf(func(g ir.Metadata) bool { return r.Equal(g) }, got)
	case ir.InputDescriptions:
		return verdictOf(func(g ir.InputDescriptions) bool {
			return isPermutation(r, g, func(x, y ir.InputDescription) bool { return x.Equal(y) })
		}, got)
	case ir.OutputDescriptions:
		return verdictOf(func(g ir.OutputDescriptions) bool {
			return isPermutation(r, g, func(x, y ir.OutputDescription) bool { return x.Equal(y) })
		}, got)
	case ir.SpecialPortsValue:
		return verdictSkipped
	case ir.GraphValue:
		return verdictOf(func(g ir.GraphValue) bool {
			if r.Graph == nil || g.Graph == nil {
				return r.Graph == g.Graph
			}
			return s.compareGraphs(r.Graph, g.Graph).Valid
		}, got)
	case ir.Incomparable:
		return verdictNoEquality
	default:
		return verdictUnknown
	}
}

// verdictOf applies eq when got has the same variant as the reference.
func verdictOf[T ir.Value](eq func(T) bool, got ir.Value) verdict {
	g, ok := got.(T)
	if !ok || !eq(g) {
		return verdictMismatch
	}
	return verdictEqual
}

// isPermutation reports whether b is a reordering of a under eq. eq must be
// an equivalence relation, which makes greedy matching exact.
func isPermutation[T any](a, b []T, eq func(x, y T) bool) bool {
	if len(a) != len(b) {
		return false
	}
	used := make([]bool, len(b))
next:
	for _, x := range a {
		for j, y := range b {
			if !used[j] && eq(x, y) {
				used[j] = true
				continue next
			}
		}
		return false
	}
	return true
}
