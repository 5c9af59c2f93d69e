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
	"slices"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/graphcmp/services/graphcmp/ir"
)

var (
	addType     = ir.NewType("Add", "opset1")
	mulType     = ir.NewType("Multiply", "opset1")
	reluType    = ir.NewType("Relu", "opset1")
	splitType   = ir.NewType("Split", "opset1")
	softmaxType = ir.NewType("Softmax", "opset8")
)

func f32(dims ...int64) ir.Port {
	return ir.Port{ElementType: ir.F32, Shape: ir.StaticShape(dims...)}
}

func mustBuild(t *testing.T, b *ir.Builder) *ir.Graph {
	t.Helper()
	g, err := b.Build()
	require.NoError(t, err)
	return g
}

// addSpec parameterizes the two-parameter Add graph.
type addSpec struct {
	typ         ir.TypeInfo
	et          ir.ElementType
	shape       ir.Shape
	name        string
	names       []string
	attrs       []ir.Attribute
	runtimeInfo ir.RuntimeInfo
}

func buildAdd(t *testing.T, spec addSpec) *ir.Graph {
	t.Helper()
	if spec.typ.Name == "" {
		spec.typ = addType
	}
	if spec.shape.Dims == nil && !spec.shape.RankDynamic {
		spec.shape = ir.StaticShape(2, 3)
	}
	if spec.name == "" {
		spec.name = "sum"
	}
	if spec.et == ir.Dynamic {
		spec.et = ir.F32
	}
	b := ir.NewBuilder("add")
	x := b.Parameter("x", spec.et, spec.shape)
	y := b.Parameter("y", spec.et, spec.shape)
	sum := b.Add(ir.NodeSpec{
		Name:        spec.name,
		Type:        spec.typ,
		Inputs:      []ir.Output{x, y},
		Outputs:     []ir.Port{{ElementType: spec.et, Shape: spec.shape, Names: spec.names}},
		Attributes:  spec.attrs,
		RuntimeInfo: spec.runtimeInfo,
	})
	b.Result("out", ir.Out(sum, 0))
	return mustBuild(t, b)
}

// loopSpec parameterizes the loop fixture.
type loopSpec struct {
	iterations int64
	// sliceWidth adds a sliced input and concatenated output of the given
	// outer width along axis 1 with part size 2. Zero disables them.
	sliceWidth int64
	// reorder reverses the declared input descriptors.
	reorder bool
	// noCurrentIteration drops the current-iteration special port.
	noCurrentIteration bool
}

// buildLoopBody returns a body with parameters (cur, a, b, s) and results
// (cond, a+a, b+b, s).
func buildLoopBody(t *testing.T) *ir.Graph {
	t.Helper()
	b := ir.NewBuilder("body")
	b.Parameter("cur", ir.I64, ir.StaticShape())
	a := b.Parameter("a", ir.F32, ir.StaticShape(1, 3))
	bb := b.Parameter("b", ir.F32, ir.StaticShape(1, 3))
	s := b.Parameter("s", ir.F32, ir.StaticShape(1, 2))
	cond := b.Constant("cond", ir.Boolean, ir.StaticShape(), []byte{1})
	a2 := b.Op(addType, "a2", []ir.Output{a, a}, f32(1, 3))
	b2 := b.Op(addType, "b2", []ir.Output{bb, bb}, f32(1, 3))
	b.Result("cond_out", cond)
	b.Result("a_out", ir.Out(a2, 0))
	b.Result("b_out", ir.Out(b2, 0))
	b.Result("s_out", s)
	return mustBuild(t, b)
}

func buildLoop(t *testing.T, spec loopSpec) *ir.Graph {
	t.Helper()
	b := ir.NewBuilder("loop")
	a := b.Parameter("A", ir.F32, ir.StaticShape(1, 3))
	bb := b.Parameter("B", ir.F32, ir.StaticShape(1, 3))
	inputs := []ir.Output{a, bb}
	outputs := []ir.Port{f32(1, 3), f32(1, 3)}
	ins := []ir.InputDescription{
		&ir.MergedInput{InputPorts: ir.InputPorts{Input: 0, Parameter: 1}, Result: 1},
		&ir.MergedInput{InputPorts: ir.InputPorts{Input: 1, Parameter: 2}, Result: 2},
	}
	outs := []ir.OutputDescription{
		&ir.BodyOutput{OutputPorts: ir.OutputPorts{Output: 0, Result: 1}, Iteration: -1},
		&ir.BodyOutput{OutputPorts: ir.OutputPorts{Output: 1, Result: 2}, Iteration: -1},
	}
	if spec.sliceWidth > 0 {
		s := b.Parameter("S", ir.F32, ir.StaticShape(1, spec.sliceWidth))
		inputs = append(inputs, s)
		outputs = append(outputs, f32(1, spec.sliceWidth))
		ins = append(ins, &ir.SliceInput{
			InputPorts: ir.InputPorts{Input: 2, Parameter: 3},
			Start:      0, Stride: 1, PartSize: 2, End: -1, Axis: 1,
		})
		outs = append(outs, &ir.ConcatOutput{
			OutputPorts: ir.OutputPorts{Output: 2, Result: 3},
			Start:       0, Stride: 1, PartSize: 2, End: -1, Axis: 1,
		})
	}
	if spec.reorder {
		slices.Reverse(ins)
	}
	special := ir.SpecialPorts{CurrentIteration: 0, BodyCondition: 0}
	if spec.noCurrentIteration {
		special.CurrentIteration = -1
	}
	body := &ir.Body{Graph: buildLoopBody(t), Inputs: ins, Outputs: outs}
	loop := b.Loop("loop", inputs, outputs, body, spec.iterations, special)
	for i := range outputs {
		b.Result(fmt.Sprintf("out%d", i), ir.Out(loop, i))
	}
	return mustBuild(t, b)
}

// buildBranch returns a single-operation graph: Softmax(p) with the given
// axis attribute.
func buildBranch(t *testing.T, name string, axis int64) *ir.Graph {
	t.Helper()
	b := ir.NewBuilder(name)
	p := b.Parameter("p", ir.F32, ir.StaticShape(2, 3))
	op := b.Add(ir.NodeSpec{
		Name:       "softmax",
		Type:       softmaxType,
		Inputs:     []ir.Output{p},
		Outputs:    []ir.Port{f32(2, 3)},
		Attributes: []ir.Attribute{{Name: "axis", Value: ir.Int(axis)}},
	})
	b.Result("r", ir.Out(op, 0))
	return mustBuild(t, b)
}

func branchBody(t *testing.T, name string, axis int64) *ir.Body {
	return &ir.Body{
		Graph:   buildBranch(t, name, axis),
		Inputs:  []ir.InputDescription{&ir.InvariantInput{InputPorts: ir.InputPorts{Input: 1, Parameter: 0}}},
		Outputs: []ir.OutputDescription{&ir.BodyOutput{OutputPorts: ir.OutputPorts{Output: 0, Result: 0}, Iteration: -1}},
	}
}

// buildIf returns If(cond, x) whose branches apply Softmax with the given
// axes.
func buildIf(t *testing.T, thenAxis, elseAxis int64) *ir.Graph {
	t.Helper()
	return buildIfWithBodies(t, branchBody(t, "then", thenAxis), branchBody(t, "else", elseAxis))
}

func buildIfWithBodies(t *testing.T, then, els *ir.Body) *ir.Graph {
	t.Helper()
	b := ir.NewBuilder("cond")
	cond := b.Parameter("cond", ir.Boolean, ir.StaticShape())
	x := b.Parameter("x", ir.F32, ir.StaticShape(2, 3))
	n := b.If("if", []ir.Output{cond, x}, []ir.Port{f32(2, 3)}, then, els)
	b.Result("out", ir.Out(n, 0))
	return mustBuild(t, b)
}

// buildStateful returns a graph with one ReadValue/Assign pair per id.
func buildStateful(t *testing.T, ids ...string) *ir.Graph {
	t.Helper()
	b := ir.NewBuilder("state")
	x := b.Parameter("x", ir.F32, ir.StaticShape(2))
	for i, id := range ids {
		rv := b.ReadValue("rv_"+id, id, x)
		b.Assign(fmt.Sprintf("assign%d", i), id, rv)
	}
	b.Result("out", x)
	return mustBuild(t, b)
}

// buildConst returns Add(x, c) where c is a constant with the given payload.
func buildConst(t *testing.T, et ir.ElementType, shape ir.Shape, data []byte) *ir.Graph {
	t.Helper()
	b := ir.NewBuilder("const")
	x := b.Parameter("x", et, shape)
	c := b.Constant("c", et, shape, data)
	sum := b.Op(addType, "sum", []ir.Output{x, c}, ir.Port{ElementType: et, Shape: shape})
	b.Result("out", ir.Out(sum, 0))
	return mustBuild(t, b)
}
