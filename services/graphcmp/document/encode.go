// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package document

import (
	"encoding/base64"
	"fmt"
	"maps"
	"slices"
	"strconv"

	"github.com/AleutianAI/graphcmp/services/graphcmp/ir"
)

// FromGraph converts a graph into its document form.
//
// Description:
//
//	Nodes are written in arena order and inputs by producer name, so
//	FromGraph followed by Build reproduces the graph. Sinks other than
//	Assign nodes are listed in Sinks.
//
// Outputs:
//
//	*Graph - The document.
//	error - ErrDuplicateNode when two nodes share a name, or ErrInvalidValue
//	for a value the document format cannot carry.
func FromGraph(g *ir.Graph) (*Graph, error) {
	names := make(map[string]bool, g.Len())
	for _, n := range g.Nodes() {
		if names[n.Name] {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateNode, n.Name)
		}
		names[n.Name] = true
	}

	doc := &Graph{Name: g.Name, Nodes: make([]Node, 0, g.Len())}
	for _, n := range g.Nodes() {
		dn, err := fromNode(g, n)
		if err != nil {
			return nil, fmt.Errorf("node %q: %w", n.Name, err)
		}
		doc.Nodes = append(doc.Nodes, dn)
	}
	for _, id := range g.Sinks {
		if n := g.Node(id); n.Kind != ir.KindAssign {
			doc.Sinks = append(doc.Sinks, n.Name)
		}
	}
	return doc, nil
}

func fromNode(g *ir.Graph, n *ir.Node) (Node, error) {
	dn := Node{Name: n.Name, Type: n.Type.Name, Version: n.Type.Version}
	if n.Type.IsRelaxed() && n.Type.Base != nil {
		dn.Type, dn.Version, dn.Relaxed = n.Type.Base.Name, n.Type.Base.Version, true
	}
	if kind, ok := wellKnownKinds[dn.Type]; (!ok && n.Kind != ir.KindOp) || (ok && kind != n.Kind) {
		dn.Kind = n.Kind.String()
	}

	for _, in := range n.Inputs {
		src := g.Node(in.Source.Node)
		ref := src.Name
		if in.Source.Index != 0 {
			ref += ":" + strconv.Itoa(in.Source.Index)
		}
		ri, err := fromRuntimeInfo(in.RuntimeInfo)
		if err != nil {
			return dn, err
		}
		dn.Inputs = append(dn.Inputs, Input{Source: ref, RuntimeInfo: ri})
	}
	for _, p := range n.Outputs {
		ri, err := fromRuntimeInfo(p.RuntimeInfo)
		if err != nil {
			return dn, err
		}
		dn.Outputs = append(dn.Outputs, Port{
			ElementType: p.ElementType.String(),
			Shape:       p.Shape.String(),
			Names:       p.Names,
			RuntimeInfo: ri,
		})
	}
	for _, a := range n.Attributes {
		v, err := fromValue(a.Value)
		if err != nil {
			return dn, fmt.Errorf("attribute %q: %w", a.Name, err)
		}
		dn.Attributes = append(dn.Attributes, Attribute{Name: a.Name, Value: v})
	}
	for _, id := range n.ControlDeps {
		dn.ControlDeps = append(dn.ControlDeps, g.Node(id).Name)
	}
	var err error
	if dn.RuntimeInfo, err = fromRuntimeInfo(n.RuntimeInfo); err != nil {
		return dn, err
	}

	if c := n.Constant; c != nil {
		dn.Constant = &Constant{
			ElementType: c.ElementType.String(),
			Shape:       c.Shape.String(),
			Data:        base64.StdEncoding.EncodeToString(c.Data),
		}
	}
	if n.Variable != nil {
		dn.Variable = n.Variable.ID
	}
	if cf := n.ControlFlow; cf != nil {
		dn.Iterations = cf.Iterations
		if cf.SpecialPorts != ir.NoSpecialPorts() {
			dn.SpecialPorts = &SpecialPorts{
				CurrentIteration: cf.SpecialPorts.CurrentIteration,
				BodyCondition:    cf.SpecialPorts.BodyCondition,
			}
		}
		for i, body := range cf.Bodies {
			db, err := fromBody(body)
			if err != nil {
				return dn, fmt.Errorf("body %d: %w", i, err)
			}
			dn.Bodies = append(dn.Bodies, db)
		}
	}
	return dn, nil
}

func fromBody(b *ir.Body) (Body, error) {
	g, err := FromGraph(b.Graph)
	if err != nil {
		return Body{}, err
	}
	out := Body{Graph: *g}
	for _, d := range b.Inputs {
		out.Inputs = append(out.Inputs, fromInputDescription(d))
	}
	for _, d := range b.Outputs {
		out.Outputs = append(out.Outputs, fromOutputDescription(d))
	}
	return out, nil
}

func fromInputDescription(d ir.InputDescription) InputDescription {
	out := InputDescription{Input: d.InputIndex(), Parameter: d.ParameterIndex()}
	switch x := d.(type) {
	case *ir.InvariantInput:
		out.Kind = "invariant"
	case *ir.MergedInput:
		out.Kind = "merged"
		out.Result = x.Result
	case *ir.SliceInput:
		out.Kind = "slice"
		out.Start, out.Stride, out.PartSize, out.End, out.Axis = x.Start, x.Stride, x.PartSize, x.End, x.Axis
	}
	return out
}

func fromOutputDescription(d ir.OutputDescription) OutputDescription {
	out := OutputDescription{Output: d.OutputIndex(), Result: d.ResultIndex()}
	switch x := d.(type) {
	case *ir.BodyOutput:
		out.Kind = "body"
		out.Iteration = x.Iteration
	case *ir.ConcatOutput:
		out.Kind = "concat"
		out.Start, out.Stride, out.PartSize, out.End, out.Axis = x.Start, x.Stride, x.PartSize, x.End, x.Axis
	}
	return out
}

func fromRuntimeInfo(ri ir.RuntimeInfo) (map[string]Value, error) {
	if len(ri) == 0 {
		return nil, nil
	}
	out := make(map[string]Value, len(ri))
	for _, k := range slices.Sorted(maps.Keys(ri)) {
		v, err := fromValue(ri[k])
		if err != nil {
			return nil, fmt.Errorf("runtime info %q: %w", k, err)
		}
		out[k] = v
	}
	return out, nil
}

func fromValue(v ir.Value) (Value, error) {
	switch x := v.(type) {
	case ir.Scalar:
		return fromScalar(x)
	case ir.ShapeValue:
		s := x.Shape.String()
		return Value{Shape: &s}, nil
	case ir.DimensionValue:
		s := x.Dim.String()
		return Value{Dimension: &s}, nil
	case ir.Blob:
		s := base64.StdEncoding.EncodeToString(x.Data)
		return Value{Blob: &s}, nil
	case ir.GraphValue:
		if x.Graph == nil {
			return Value{}, fmt.Errorf("%w: nil graph", ErrInvalidValue)
		}
		g, err := FromGraph(x.Graph)
		if err != nil {
			return Value{}, err
		}
		return Value{Graph: g}, nil
	case ir.InputDescriptions:
		out := make([]InputDescription, len(x))
		for i, d := range x {
			out[i] = fromInputDescription(d)
		}
		return Value{InputDescriptions: &out}, nil
	case ir.OutputDescriptions:
		out := make([]OutputDescription, len(x))
		for i, d := range x {
			out[i] = fromOutputDescription(d)
		}
		return Value{OutputDescriptions: &out}, nil
	case ir.SpecialPortsValue:
		return Value{SpecialPorts: &SpecialPorts{
			CurrentIteration: x.Ports.CurrentIteration,
			BodyCondition:    x.Ports.BodyCondition,
		}}, nil
	case ir.VariableValue:
		return Value{Variable: &Variable{
			ID:          x.ID,
			ElementType: x.ElementType.String(),
			Shape:       x.Shape.String(),
		}}, nil
	case ir.Metadata:
		m := map[string]string(x)
		return Value{Metadata: &m}, nil
	case ir.Incomparable:
		return Value{Incomparable: &Opaque{TypeName: x.TypeName, Repr: x.Repr}}, nil
	case ir.Unknown:
		return Value{Unknown: &Opaque{TypeName: x.TypeName, Repr: string(x.Raw)}}, nil
	default:
		return Value{}, fmt.Errorf("%w: %T", ErrInvalidValue, v)
	}
}

func fromScalar(s ir.Scalar) (Value, error) {
	switch x := s.Interface().(type) {
	case bool:
		return Value{Bool: &x}, nil
	case int64:
		return Value{Int: &x}, nil
	case float64:
		return Value{Float: &x}, nil
	case string:
		return Value{String: &x}, nil
	case []bool:
		return Value{Bools: &x}, nil
	case []int64:
		return Value{Ints: &x}, nil
	case []float64:
		return Value{Floats: &x}, nil
	case []string:
		return Value{Strings: &x}, nil
	default:
		return Value{}, fmt.Errorf("%w: scalar of type %T", ErrInvalidValue, x)
	}
}
