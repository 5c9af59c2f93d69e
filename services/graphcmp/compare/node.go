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
	"bytes"
	"fmt"
	"slices"
	"strings"

	"github.com/AleutianAI/graphcmp/services/graphcmp/ir"
	"github.com/AleutianAI/graphcmp/services/graphcmp/policy"
)

// compareNode compares one matched pair. Checks run in a fixed order and
// the first failing one is returned. Attribute failures, including those of
// nested bodies, are recorded in w.soft instead.
func (w *walk) compareNode(n1, n2 *ir.Node) Result {
	pol := w.s.policy

	if !ir.SameIdentity(n1.Type, n2.Type) {
		return Failf(KindStructural, "Nodes type info mismatch: %s != %s for nodes %s and %s",
			n1.Type, n2.Type, n1.Name, n2.Name)
	}
	if len(n1.ControlDeps) != len(n2.ControlDeps) {
		return Failf(KindStructural, "Number of dependencies is different: %d for %s, %d for %s",
			len(n1.ControlDeps), n1, len(n2.ControlDeps), n2)
	}
	if len(n1.Inputs) != len(n2.Inputs) {
		return Failf(KindStructural, "Number of inputs is different: %d for %s and %d for %s",
			len(n1.Inputs), n1, len(n2.Inputs), n2)
	}
	if len(n1.Outputs) != len(n2.Outputs) {
		return Failf(KindStructural, "Number of outputs is different: %d for %s and %d for %s",
			len(n1.Outputs), n1, len(n2.Outputs), n2)
	}

	if n1.OwnsSubgraph() && n2.OwnsSubgraph() {
		res := w.s.compareSubgraphs(w.a, n1, w.b, n2)
		switch {
		case res.Kind == KindAttribute:
			w.soft = append(w.soft, res.Message)
		case !res.Valid:
			return res
		}
	} else {
		for i := range n1.Inputs {
			if res := w.compareInput(n1, n2, i); !res.Valid {
				return res
			}
		}
		for i := range n1.Outputs {
			if res := w.compareOutput(n1, n2, i); !res.Valid {
				return res
			}
		}
	}

	if pol.Has(policy.RuntimeKeys) {
		if diff := w.s.compareRuntimeInfo(n1.RuntimeInfo, n2.RuntimeInfo); diff != "" {
			return Failf(KindStructural, "Different runtime info detected\n\t%s and %s: %s", n1, n2, diff)
		}
	}

	if pol.Has(policy.Attributes) {
		if diag := w.s.compareAttributes(n1, n2); diag != "" {
			w.soft = append(w.soft, fmt.Sprintf(
				"Comparison of attributes failed for nodes %s, %s [cmp status: %s]", n1, n2, diag))
		}
	}
	return OK("")
}

func (w *walk) compareInput(n1, n2 *ir.Node, i int) Result {
	pol := w.s.policy
	p1, ok1 := w.a.SourcePort(n1, i)
	p2, ok2 := w.b.SourcePort(n2, i)
	if !ok1 || !ok2 {
		return Failf(KindStructural, "Missing producer for input %d of %s or %s", i, n1, n2)
	}

	if pol.Has(policy.Precisions) && p1.ElementType != p2.ElementType {
		return Failf(KindStructural, "Different element type detected\n\t%s Input(%d) %s and\n\t%s Input(%d) %s",
			n1, i, p1.ElementType, n2, i, p2.ElementType)
	}
	if !p1.Shape.SameScheme(p2.Shape) {
		return Failf(KindStructural, "Different shape detected\n\t%s Input(%d) %s and\n\t%s Input(%d) %s",
			n1, i, p1.Shape, n2, i, p2.Shape)
	}
	src1, src2 := n1.Inputs[i].Source.Index, n2.Inputs[i].Source.Index
	if src1 != src2 {
		return Failf(KindStructural, "Different ports detected\n\t%s Input(%d) connected to parent port %d and\n\t%s Input(%d) connected to parent port %d",
			n1, i, src1, n2, i, src2)
	}

	if pol.Has(policy.ConstValues) {
		c1, c2 := w.a.Producer(n1, i), w.b.Producer(n2, i)
		if c1.Kind == ir.KindConstant && c2.Kind == ir.KindConstant && !sameConstant(c1.Constant, c2.Constant) {
			return Failf(KindStructural, "Different Constant values detected\n\t%s Input(%d) and\n\t%s Input(%d)",
				n1, i, n2, i)
		}
	}

	if pol.Has(policy.RuntimeKeys) {
		if diff := w.s.compareRuntimeInfo(n1.Inputs[i].RuntimeInfo, n2.Inputs[i].RuntimeInfo); diff != "" {
			return Failf(KindStructural, "Different runtime info detected\n\t%s Input(%d) and\n\t%s Input(%d): %s",
				n1, i, n2, i, diff)
		}
	}
	return OK("")
}

func (w *walk) compareOutput(n1, n2 *ir.Node, i int) Result {
	pol := w.s.policy
	o1, o2 := n1.Outputs[i], n2.Outputs[i]

	if pol.Has(policy.TensorNames) && !sameNameSet(o1.Names, o2.Names) {
		return Failf(KindStructural, "Output tensors names %q and %q are different for nodes: %s and %s",
			joinNames(o1.Names), joinNames(o2.Names), n1.Name, n2.Name)
	}
	if !o1.Shape.SameScheme(o2.Shape) {
		return Failf(KindStructural, "Different shape detected\n\t%s Output(%d) %s and\n\t%s Output(%d) %s",
			n1, i, o1.Shape, n2, i, o2.Shape)
	}
	if pol.Has(policy.RuntimeKeys) {
		if diff := w.s.compareRuntimeInfo(o1.RuntimeInfo, o2.RuntimeInfo); diff != "" {
			return Failf(KindStructural, "Different runtime info detected\n\t%s Output(%d) and\n\t%s Output(%d): %s",
				n1, i, n2, i, diff)
		}
	}
	return OK("")
}

// sameConstant compares element type, shape and the packed payload. For
// sub-byte element types the padding bits of the last byte are ignored;
// elements are packed starting from the low bits.
func sameConstant(a, b *ir.ConstantData) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.ElementType != b.ElementType || !a.Shape.Equal(b.Shape) {
		return false
	}
	if a.Shape.IsDynamic() {
		return bytes.Equal(a.Data, b.Data)
	}
	count := a.Shape.ElementCount()
	size := a.ElementType.PackedSize(count)
	if int64(len(a.Data)) < size || int64(len(b.Data)) < size {
		return false
	}
	if size == 0 {
		return true
	}
	tailBits := (count * int64(a.ElementType.Bitwidth())) % 8
	if tailBits == 0 {
		return bytes.Equal(a.Data[:size], b.Data[:size])
	}
	if !bytes.Equal(a.Data[:size-1], b.Data[:size-1]) {
		return false
	}
	mask := byte(1<<tailBits) - 1
	return a.Data[size-1]&mask == b.Data[size-1]&mask
}

func sameNameSet(a, b []string) bool {
	x := slices.Compact(slices.Sorted(slices.Values(a)))
	y := slices.Compact(slices.Sorted(slices.Values(b)))
	return slices.Equal(x, y)
}

func joinNames(names []string) string {
	sorted := slices.Compact(slices.Sorted(slices.Values(names)))
	return strings.Join(sorted, ", ")
}

// opsetKey records the operation set a node was converted from. It is
// ignored when comparing runtime info.
const opsetKey = "opset"

// compareRuntimeInfo returns a description of the first differing key, or
// "" when the maps agree. Values without defined equality, including values
// of unknown kind, count as equal.
func (s *session) compareRuntimeInfo(a, b ir.RuntimeInfo) string {
	for _, key := range a.Keys() {
		if key == opsetKey {
			continue
		}
		bv, ok := b[key]
		if !ok {
			return fmt.Sprintf("key %q is missing", key)
		}
		if s.valuesEqual(a[key], bv) == verdictMismatch {
			return fmt.Sprintf("key %q: %s vs %s", key, a[key], bv)
		}
	}
	for _, key := range b.Keys() {
		if key == opsetKey {
			continue
		}
		if _, ok := a[key]; !ok {
			return fmt.Sprintf("key %q is missing", key)
		}
	}
	return ""
}
