// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package accuracy

import (
	"context"
	"fmt"
	"math"

	"github.com/AleutianAI/graphcmp/services/graphcmp/ir"
	"github.com/AleutianAI/graphcmp/services/graphcmp/tensorcmp"
)

var unaryOps = map[string]func(float64) float64{
	"Relu":     func(x float64) float64 { return math.Max(x, 0) },
	"Negative": func(x float64) float64 { return -x },
	"Abs":      math.Abs,
	"Sqrt":     math.Sqrt,
	"Exp":      math.Exp,
}

var binaryOps = map[string]func(float64, float64) float64{
	"Add":      func(x, y float64) float64 { return x + y },
	"Subtract": func(x, y float64) float64 { return x - y },
	"Multiply": func(x, y float64) float64 { return x * y },
	"Divide":   func(x, y float64) float64 { return x / y },
	"Maximum":  math.Max,
	"Minimum":  math.Min,
}

// Elementwise evaluates graphs made of parameters, constants, results and
// the unary and binary elementwise operations above. Binary operands must
// have the same element count, or one of them a single element. Every
// intermediate value is rounded to its port's element type.
type Elementwise struct{}

// Execute implements Executor.
func (Elementwise) Execute(ctx context.Context, g *ir.Graph, inputs []tensorcmp.Tensor) ([]tensorcmp.Tensor, error) {
	if len(inputs) != len(g.Parameters) {
		return nil, fmt.Errorf("%w: %d inputs for %d parameters", ErrParameterMismatch, len(inputs), len(g.Parameters))
	}
	ev := &evaluator{
		g:        g,
		values:   make(map[ir.NodeID][]float64, g.Len()),
		visiting: make(map[ir.NodeID]bool),
	}
	for i, id := range g.Parameters {
		vals, err := inputs[i].Values()
		if err != nil {
			return nil, fmt.Errorf("input %d: %w", i, err)
		}
		ev.values[id] = vals
	}

	out := make([]tensorcmp.Tensor, len(g.Results))
	for i, id := range g.Results {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n := g.Node(id)
		vals, err := ev.eval(n)
		if err != nil {
			return nil, err
		}
		port := n.Outputs[0]
		if out[i], err = tensorcmp.FromValues(port.ElementType, StaticDims(port.Shape), vals); err != nil {
			return nil, fmt.Errorf("result %s: %w", n, err)
		}
	}
	return out, nil
}

type evaluator struct {
	g        *ir.Graph
	values   map[ir.NodeID][]float64
	visiting map[ir.NodeID]bool
}

func (e *evaluator) eval(n *ir.Node) ([]float64, error) {
	if vals, ok := e.values[n.ID]; ok {
		return vals, nil
	}
	if e.visiting[n.ID] {
		return nil, fmt.Errorf("%w: cycle through %s", ErrUnsupportedOperation, n)
	}
	e.visiting[n.ID] = true
	defer delete(e.visiting, n.ID)

	args := make([][]float64, len(n.Inputs))
	for i, in := range n.Inputs {
		if in.Source.Index != 0 {
			return nil, fmt.Errorf("%w: %s reads output %d of a multi-output node", ErrUnsupportedOperation, n, in.Source.Index)
		}
		vals, err := e.eval(e.g.Node(in.Source.Node))
		if err != nil {
			return nil, err
		}
		args[i] = vals
	}

	vals, err := e.apply(n, args)
	if err != nil {
		return nil, err
	}
	if len(n.Outputs) != 1 {
		return nil, fmt.Errorf("%w: %s has %d outputs", ErrUnsupportedOperation, n, len(n.Outputs))
	}
	if vals, err = roundTo(n.Outputs[0], vals); err != nil {
		return nil, fmt.Errorf("%s: %w", n, err)
	}
	e.values[n.ID] = vals
	return vals, nil
}

func (e *evaluator) apply(n *ir.Node, args [][]float64) ([]float64, error) {
	switch n.Kind {
	case ir.KindConstant:
		c := n.Constant
		return tensorcmp.Tensor{ElementType: c.ElementType, Shape: StaticDims(c.Shape), Data: c.Data}.Values()
	case ir.KindResult:
		return args[0], nil
	case ir.KindParameter:
		return nil, fmt.Errorf("%w: parameter %s is not bound", ErrUnsupportedOperation, n)
	}

	name := n.Type.BaseName()
	if f, ok := unaryOps[name]; ok && len(args) == 1 {
		out := make([]float64, len(args[0]))
		for i, x := range args[0] {
			out[i] = f(x)
		}
		return out, nil
	}
	if f, ok := binaryOps[name]; ok && len(args) == 2 {
		return broadcast(f, args[0], args[1], n)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedOperation, n)
}

func broadcast(f func(float64, float64) float64, x, y []float64, n *ir.Node) ([]float64, error) {
	size := max(len(x), len(y))
	if (len(x) != size && len(x) != 1) || (len(y) != size && len(y) != 1) {
		return nil, fmt.Errorf("%w: %s operands have %d and %d elements", tensorcmp.ErrSizeMismatch, n, len(x), len(y))
	}
	at := func(v []float64, i int) float64 {
		if len(v) == 1 {
			return v[0]
		}
		return v[i]
	}
	out := make([]float64, size)
	for i := range out {
		out[i] = f(at(x, i), at(y, i))
	}
	return out, nil
}

// roundTo passes values through the port's element type.
func roundTo(p ir.Port, vals []float64) ([]float64, error) {
	if p.ElementType == ir.F64 || p.ElementType == ir.Dynamic {
		return vals, nil
	}
	t, err := tensorcmp.FromValues(p.ElementType, []int64{int64(len(vals))}, vals)
	if err != nil {
		return nil, err
	}
	return t.Values()
}
