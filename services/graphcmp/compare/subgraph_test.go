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
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/graphcmp/services/graphcmp/ir"
	"github.com/AleutianAI/graphcmp/services/graphcmp/policy"
)

func checkConsistency(t *testing.T, g *ir.Graph) Result {
	t.Helper()
	return New(policy.Default()).CheckConsistency(context.Background(), g)
}

// =============================================================================
// Loops
// =============================================================================

func TestCompare_LoopIterations(t *testing.T) {
	a := buildLoop(t, loopSpec{iterations: 3})
	b := buildLoop(t, loopSpec{iterations: 4})

	res := Compare(a, b, policy.Default())
	assert.False(t, res.Valid)
	assert.Equal(t, KindStructural, res.Kind)
	assert.Contains(t, res.Message, "different number of iterations")
}

func TestCompare_SliceScaling(t *testing.T) {
	t.Run("consistent", func(t *testing.T) {
		g := buildLoop(t, loopSpec{iterations: 4, sliceWidth: 8})
		assert.True(t, checkConsistency(t, g).Valid)
		assert.True(t, Compare(g, g, policy.Default()).Valid)
	})

	t.Run("whole dimension not scaled by iterations", func(t *testing.T) {
		g := buildLoop(t, loopSpec{iterations: 4, sliceWidth: 6})

		res := checkConsistency(t, g)
		assert.False(t, res.Valid)
		assert.Equal(t, KindInternal, res.Kind)
		assert.Contains(t, res.Message, "inputs and parameters mismatch")

		res = Compare(g, g, policy.Default())
		assert.False(t, res.Valid)
		assert.Equal(t, KindInternal, res.Kind)
		assert.ErrorIs(t, res.Err(), ErrInternal)
	})
}

func TestCompare_BackEdgeOrderIsIrrelevant(t *testing.T) {
	for _, width := range []int64{0, 8} {
		a := buildLoop(t, loopSpec{iterations: 4, sliceWidth: width})
		b := buildLoop(t, loopSpec{iterations: 4, sliceWidth: width, reorder: true})

		res := Compare(a, b, policy.All())
		assert.True(t, res.Valid, res.Message)
	}
}

func TestCompare_SpecialPorts(t *testing.T) {
	a := buildLoop(t, loopSpec{iterations: 2})
	b := buildLoop(t, loopSpec{iterations: 2, noCurrentIteration: true})

	res := Compare(a, b, policy.Default())
	assert.False(t, res.Valid)
	assert.Equal(t, KindStructural, res.Kind)
	assert.Contains(t, res.Message, "different Special Body Ports")
}

func TestCheckConsistency_LoopPorts(t *testing.T) {
	build := func(ins []ir.InputDescription, special ir.SpecialPorts) *ir.Graph {
		b := ir.NewBuilder("loop")
		a := b.Parameter("A", ir.F32, ir.StaticShape(1, 3))
		body := &ir.Body{
			Graph:   buildLoopBody(t),
			Inputs:  ins,
			Outputs: []ir.OutputDescription{&ir.BodyOutput{OutputPorts: ir.OutputPorts{Output: 0, Result: 1}, Iteration: -1}},
		}
		loop := b.Loop("loop", []ir.Output{a}, []ir.Port{f32(1, 3)}, body, 2, special)
		b.Result("out", ir.Out(loop, 0))
		return mustBuild(t, b)
	}
	special := ir.SpecialPorts{CurrentIteration: 0, BodyCondition: 0}

	t.Run("back edge to incompatible result", func(t *testing.T) {
		g := build([]ir.InputDescription{
			&ir.MergedInput{InputPorts: ir.InputPorts{Input: 0, Parameter: 1}, Result: 0},
		}, special)
		res := checkConsistency(t, g)
		assert.Equal(t, KindInternal, res.Kind)
		assert.Contains(t, res.Message, "back edges mismatch")
	})

	t.Run("missing body condition", func(t *testing.T) {
		g := build([]ir.InputDescription{
			&ir.MergedInput{InputPorts: ir.InputPorts{Input: 0, Parameter: 1}, Result: 1},
		}, ir.SpecialPorts{CurrentIteration: 0, BodyCondition: -1})
		res := checkConsistency(t, g)
		assert.Equal(t, KindInternal, res.Kind)
		assert.Contains(t, res.Message, "has no body condition output")
	})

	t.Run("invariant with wrong shape", func(t *testing.T) {
		g := build([]ir.InputDescription{
			&ir.InvariantInput{InputPorts: ir.InputPorts{Input: 0, Parameter: 3}},
		}, special)
		res := checkConsistency(t, g)
		assert.Equal(t, KindInternal, res.Kind)
		assert.Contains(t, res.Message, "inputs and parameters mismatch")
	})
}

func TestCompare_TensorIterator(t *testing.T) {
	build := func(iterations int64) *ir.Graph {
		b := ir.NewBuilder("ti")
		s := b.Parameter("S", ir.F32, ir.StaticShape(1, 2*iterations))
		body := &ir.Body{
			Graph: buildLoopBody(t),
			Inputs: []ir.InputDescription{&ir.SliceInput{
				InputPorts: ir.InputPorts{Input: 0, Parameter: 3},
				Stride:     1, PartSize: 2, End: -1, Axis: -1,
			}},
			Outputs: []ir.OutputDescription{&ir.ConcatOutput{
				OutputPorts: ir.OutputPorts{Output: 0, Result: 3},
				Stride:      1, PartSize: 2, End: -1, Axis: -1,
			}},
		}
		ti := b.TensorIterator("ti", []ir.Output{s}, []ir.Port{f32(1, 2*iterations)}, body, iterations)
		b.Result("out", ir.Out(ti, 0))
		return mustBuild(t, b)
	}

	g := build(5)
	assert.True(t, checkConsistency(t, g).Valid)
	res := Compare(g, build(5), policy.All())
	assert.True(t, res.Valid, res.Message)
}

// =============================================================================
// Conditionals
// =============================================================================

func TestCompare_IfBranchAttribute(t *testing.T) {
	a := buildIf(t, 1, 1)
	b := buildIf(t, 1, 0)

	assert.True(t, Compare(a, b, policy.Default()).Valid)

	res := Compare(a, b, policy.New(policy.Attributes))
	assert.False(t, res.Valid)
	assert.Equal(t, KindAttribute, res.Kind)
	assert.Contains(t, res.Message, "SubGraph 1 of if")
	assert.Contains(t, res.Message, "'axis'")
	assert.ErrorIs(t, res.Err(), ErrAttribute)
}

func TestCompare_BrokenBranchBeforeCrossSideChecks(t *testing.T) {
	// The else branch binds the Boolean condition into an f32[2,3] parameter.
	broken := branchBody(t, "else", 1)
	broken.Inputs = []ir.InputDescription{&ir.InvariantInput{InputPorts: ir.InputPorts{Input: 0, Parameter: 0}}}
	a := buildIfWithBodies(t, branchBody(t, "then", 1), broken)

	// The then branch differs from a's in its output iteration only.
	other := branchBody(t, "then", 1)
	other.Outputs = []ir.OutputDescription{&ir.BodyOutput{OutputPorts: ir.OutputPorts{Output: 0, Result: 0}, Iteration: 0}}
	b := buildIfWithBodies(t, other, branchBody(t, "else", 1))

	for _, tc := range []struct {
		name string
		x, y *ir.Graph
	}{
		{"broken first", a, b},
		{"broken second", b, a},
	} {
		t.Run(tc.name, func(t *testing.T) {
			res := Compare(tc.x, tc.y, policy.Default())
			require.False(t, res.Valid)
			assert.Equal(t, KindInternal, res.Kind)
			assert.Contains(t, res.Message, "inputs and parameters mismatch")
		})
	}
}

func TestCompare_BodyAttributesJoinOuterDiagnostics(t *testing.T) {
	build := func(alpha, thenAxis int64) *ir.Graph {
		b := ir.NewBuilder("cond")
		cond := b.Parameter("cond", ir.Boolean, ir.StaticShape())
		x := b.Parameter("x", ir.F32, ir.StaticShape(2, 3))
		n := b.If("if", []ir.Output{cond, x}, []ir.Port{f32(2, 3)},
			branchBody(t, "then", thenAxis), branchBody(t, "else", 1))
		relu := b.Add(ir.NodeSpec{
			Name:       "relu",
			Type:       reluType,
			Inputs:     []ir.Output{ir.Out(n, 0)},
			Outputs:    []ir.Port{f32(2, 3)},
			Attributes: []ir.Attribute{attr("alpha", ir.Int(alpha))},
		})
		b.Result("out", ir.Out(relu, 0))
		return mustBuild(t, b)
	}

	res := Compare(build(1, 1), build(2, 0), policy.New(policy.Attributes))
	require.False(t, res.Valid)
	assert.Equal(t, KindAttribute, res.Kind)
	assert.Contains(t, res.Message, "'alpha'")
	assert.Contains(t, res.Message, "'axis'")
	assert.Less(t, strings.Index(res.Message, "'alpha'"), strings.Index(res.Message, "'axis'"))
}

func TestCompare_IfRejectsSlice(t *testing.T) {
	sliced := branchBody(t, "then", 1)
	sliced.Inputs = []ir.InputDescription{&ir.SliceInput{
		InputPorts: ir.InputPorts{Input: 1, Parameter: 0},
		Stride:     1, PartSize: 2, End: -1, Axis: 0,
	}}
	g := buildIfWithBodies(t, sliced, branchBody(t, "else", 1))

	res := checkConsistency(t, g)
	assert.Equal(t, KindInternal, res.Kind)
	assert.Contains(t, res.Message, "non-iterating")

	res = Compare(g, g, policy.Default())
	assert.Equal(t, KindInternal, res.Kind)
}

func TestCompare_DifferentInputDescription(t *testing.T) {
	merged := branchBody(t, "then", 1)
	merged.Inputs = []ir.InputDescription{
		&ir.MergedInput{InputPorts: ir.InputPorts{Input: 1, Parameter: 0}, Result: 0},
	}
	a := buildIf(t, 1, 1)
	b := buildIfWithBodies(t, merged, branchBody(t, "else", 1))

	res := Compare(a, b, policy.Default())
	assert.False(t, res.Valid)
	assert.Equal(t, KindStructural, res.Kind)
	assert.Contains(t, res.Message, "different SubGraph InputDescription")
}

func TestCompare_NoInputInSubgraph(t *testing.T) {
	empty := func(name string) *ir.Body {
		b := ir.NewBuilder(name)
		c := b.Constant("c", ir.F32, ir.StaticShape(2, 3), make([]byte, 24))
		b.Result("r", c)
		return &ir.Body{
			Graph:   mustBuild(t, b),
			Outputs: []ir.OutputDescription{&ir.BodyOutput{OutputPorts: ir.OutputPorts{Output: 0, Result: 0}, Iteration: -1}},
		}
	}
	g := buildIfWithBodies(t, empty("then"), empty("else"))

	assert.True(t, checkConsistency(t, g).Valid)

	res := Compare(g, g, policy.Default())
	assert.False(t, res.Valid)
	assert.Equal(t, KindContract, res.Kind)
	assert.Contains(t, res.Message, "no input in subgraph")
}

func TestCompare_UnrecognizedControlFlow(t *testing.T) {
	body := func() *ir.Body {
		bb := ir.NewBuilder("body")
		p := bb.Parameter("p", ir.F32, ir.StaticShape(2, 3))
		bb.Result("r", p)
		return &ir.Body{
			Graph:   mustBuild(t, bb),
			Inputs:  []ir.InputDescription{&ir.InvariantInput{InputPorts: ir.InputPorts{Input: 0, Parameter: 0}}},
			Outputs: []ir.OutputDescription{&ir.BodyOutput{OutputPorts: ir.OutputPorts{Output: 0, Result: 0}, Iteration: -1}},
		}
	}
	b := ir.NewBuilder("custom")
	x := b.Parameter("x", ir.F32, ir.StaticShape(2, 3))
	n := b.Add(ir.NodeSpec{
		Name:    "custom",
		Type:    ir.NewType("CustomScope", "ext"),
		Kind:    ir.KindOp,
		Inputs:  []ir.Output{x},
		Outputs: []ir.Port{f32(2, 3)},
		ControlFlow: &ir.ControlFlow{
			Bodies:       []*ir.Body{body()},
			SpecialPorts: ir.NoSpecialPorts(),
		},
	})
	b.Result("out", ir.Out(n, 0))
	g := mustBuild(t, b)

	res := Compare(g, g, policy.Default())
	require.False(t, res.Valid)
	assert.Equal(t, KindInternal, res.Kind)
	assert.Contains(t, res.Message, "not a recognized control-flow kind")

	assert.Equal(t, KindInternal, checkConsistency(t, g).Kind)
}

// =============================================================================
// Scaled bindings
// =============================================================================

func TestCheckScaled(t *testing.T) {
	sig := func(dims ...int64) portSig {
		return portSig{ElementType: ir.F32, Shape: ir.StaticShape(dims...)}
	}
	dynamic := portSig{ElementType: ir.F32, Shape: ir.DynamicRank()}

	tests := []struct {
		name        string
		whole, part portSig
		axis        int64
		wantErr     string
	}{
		{name: "scaled", whole: sig(1, 8), part: sig(1, 2), axis: 1},
		{name: "negative axis", whole: sig(1, 8), part: sig(1, 2), axis: -1},
		{name: "both dynamic", whole: dynamic, part: dynamic, axis: 1},
		{name: "whole not scaled", whole: sig(1, 6), part: sig(1, 2), axis: 1, wantErr: "iterations"},
		{name: "part size", whole: sig(1, 8), part: sig(1, 3), axis: 1, wantErr: "part size"},
		{name: "other dimension", whole: sig(2, 8), part: sig(1, 2), axis: 1, wantErr: "dimension 0"},
		{name: "one dynamic", whole: dynamic, part: sig(1, 2), axis: 1, wantErr: "not both static"},
		{name: "rank", whole: sig(8), part: sig(1, 2), axis: 0, wantErr: "rank"},
		{name: "axis out of range", whole: sig(1, 8), part: sig(1, 2), axis: 2, wantErr: "out of range"},
		{
			name:    "element type",
			whole:   portSig{ElementType: ir.F16, Shape: ir.StaticShape(1, 8)},
			part:    sig(1, 2),
			axis:    1,
			wantErr: "type",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkScaled(tt.whole, tt.part, tt.axis, 2, 4, "input", "parameter")
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
