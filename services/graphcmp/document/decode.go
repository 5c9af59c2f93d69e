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
	"strconv"
	"strings"

	"github.com/AleutianAI/graphcmp/services/graphcmp/ir"
	"github.com/AleutianAI/graphcmp/services/graphcmp/tensorcmp"
)

// wellKnown maps operation names to their kind and default version.
var wellKnown = map[string]ir.TypeInfo{
	ir.ParameterType.Name:      ir.ParameterType,
	ir.ConstantType.Name:       ir.ConstantType,
	ir.ResultType.Name:         ir.ResultType,
	ir.AssignType.Name:         ir.AssignType,
	ir.ReadValueType.Name:      ir.ReadValueType,
	ir.IfType.Name:             ir.IfType,
	ir.LoopType.Name:           ir.LoopType,
	ir.TensorIteratorType.Name: ir.TensorIteratorType,
}

var wellKnownKinds = map[string]ir.NodeKind{
	ir.ParameterType.Name:      ir.KindParameter,
	ir.ConstantType.Name:       ir.KindConstant,
	ir.ResultType.Name:         ir.KindResult,
	ir.AssignType.Name:         ir.KindAssign,
	ir.ReadValueType.Name:      ir.KindReadValue,
	ir.IfType.Name:             ir.KindIf,
	ir.LoopType.Name:           ir.KindLoop,
	ir.TensorIteratorType.Name: ir.KindTensorIterator,
}

// Build converts the document to a frozen graph.
//
// Description:
//
//	Nodes are added in document order, so node i of the document becomes
//	NodeID i. Inputs may reference nodes declared later. Result, Assign and
//	ReadValue nodes without declared outputs take their input's port type.
//
// Inputs:
//
//	opts - Builder options applied to this graph and every nested body.
//
// Outputs:
//
//	*ir.Graph - The validated graph.
//	error - A *DecodeError for malformed fields, or a builder validation error.
func (d *Graph) Build(opts ...ir.BuilderOption) (*ir.Graph, error) {
	ids := make(map[string]ir.NodeID, len(d.Nodes))
	for i, n := range d.Nodes {
		if _, dup := ids[n.Name]; dup {
			return nil, at(fmt.Sprintf("nodes[%d]", i), fmt.Errorf("%w: %q", ErrDuplicateNode, n.Name))
		}
		ids[n.Name] = ir.NodeID(i)
	}

	b := ir.NewBuilder(d.Name, opts...)
	for i := range d.Nodes {
		spec, err := d.Nodes[i].spec(ids, opts)
		if err != nil {
			return nil, at(fmt.Sprintf("nodes[%d]", i), err)
		}
		b.Add(spec)
	}
	if err := b.Err(); err != nil {
		return nil, err
	}

	for i := range d.Nodes {
		deriveImplicitPorts(b, b.Node(ir.NodeID(i)))
	}
	for i, name := range d.Sinks {
		id, ok := ids[name]
		if !ok {
			return nil, at(fmt.Sprintf("sinks[%d]", i), fmt.Errorf("%w: %q", ErrUnknownNode, name))
		}
		b.AddSink(id)
	}
	return b.Build()
}

// deriveImplicitPorts fills in ports and variable identities that follow
// from the first input.
func deriveImplicitPorts(b *ir.Builder, n *ir.Node) {
	switch n.Kind {
	case ir.KindResult, ir.KindAssign, ir.KindReadValue:
	default:
		return
	}
	if len(n.Inputs) == 0 {
		return
	}
	src := b.Port(n.Inputs[0].Source)
	if len(n.Outputs) == 0 {
		n.Outputs = []ir.Port{{ElementType: src.ElementType, Shape: src.Shape}}
	}
	if n.Variable != nil {
		n.Variable.ElementType = src.ElementType
		n.Variable.Shape = src.Shape
	}
}

func (n *Node) spec(ids map[string]ir.NodeID, opts []ir.BuilderOption) (ir.NodeSpec, error) {
	typ := ir.NewType(n.Type, n.Version)
	if known, ok := wellKnown[n.Type]; ok && n.Version == "" {
		typ = known
	}
	kind, ok := wellKnownKinds[n.Type]
	if !ok {
		kind = ir.KindOp
	}
	if n.Kind != "" {
		if kind, ok = ir.ParseNodeKind(n.Kind); !ok {
			return ir.NodeSpec{}, at("kind", fmt.Errorf("%w: %q", ErrInvalidValue, n.Kind))
		}
	}
	if n.Relaxed {
		typ = ir.Relaxed(typ)
	}

	spec := ir.NodeSpec{Name: n.Name, Type: typ, Kind: kind}

	hasInputInfo := false
	for _, in := range n.Inputs {
		hasInputInfo = hasInputInfo || len(in.RuntimeInfo) > 0
	}
	if hasInputInfo {
		spec.InputRuntimeInfo = make([]ir.RuntimeInfo, len(n.Inputs))
	}
	for i, in := range n.Inputs {
		src, err := resolve(ids, in.Source)
		if err != nil {
			return spec, at(fmt.Sprintf("inputs[%d]", i), err)
		}
		spec.Inputs = append(spec.Inputs, src)
		if hasInputInfo {
			if spec.InputRuntimeInfo[i], err = runtimeInfo(in.RuntimeInfo, opts); err != nil {
				return spec, at(fmt.Sprintf("inputs[%d].runtime_info", i), err)
			}
		}
	}

	for i, p := range n.Outputs {
		port, err := p.port(opts)
		if err != nil {
			return spec, at(fmt.Sprintf("outputs[%d]", i), err)
		}
		spec.Outputs = append(spec.Outputs, port)
	}

	for i, a := range n.Attributes {
		v, err := a.Value.value(opts)
		if err != nil {
			return spec, at(fmt.Sprintf("attributes[%d]", i), err)
		}
		spec.Attributes = append(spec.Attributes, ir.Attribute{Name: a.Name, Value: v})
	}

	for i, dep := range n.ControlDeps {
		id, ok := ids[dep]
		if !ok {
			return spec, at(fmt.Sprintf("control_deps[%d]", i), fmt.Errorf("%w: %q", ErrUnknownNode, dep))
		}
		spec.ControlDeps = append(spec.ControlDeps, id)
	}

	var err error
	if spec.RuntimeInfo, err = runtimeInfo(n.RuntimeInfo, opts); err != nil {
		return spec, at("runtime_info", err)
	}

	if n.Constant != nil {
		if spec.Constant, err = n.Constant.data(); err != nil {
			return spec, at("constant", err)
		}
		if len(spec.Outputs) == 0 {
			spec.Outputs = []ir.Port{{ElementType: spec.Constant.ElementType, Shape: spec.Constant.Shape}}
		}
	}

	if n.Variable != "" {
		spec.Variable = &ir.VariableValue{ID: n.Variable}
	}

	if len(n.Bodies) > 0 {
		cf := &ir.ControlFlow{Iterations: n.Iterations, SpecialPorts: ir.NoSpecialPorts()}
		if kind == ir.KindIf && cf.Iterations == 0 {
			cf.Iterations = 1
		}
		if n.SpecialPorts != nil {
			cf.SpecialPorts = ir.SpecialPorts{
				CurrentIteration: n.SpecialPorts.CurrentIteration,
				BodyCondition:    n.SpecialPorts.BodyCondition,
			}
		}
		for i := range n.Bodies {
			body, err := n.Bodies[i].body(opts)
			if err != nil {
				return spec, at(fmt.Sprintf("bodies[%d]", i), err)
			}
			cf.Bodies = append(cf.Bodies, body)
		}
		spec.ControlFlow = cf
	}
	return spec, nil
}

// resolve parses "name" or "name:index". An exact name match wins over the
// indexed form so names containing ':' still resolve.
func resolve(ids map[string]ir.NodeID, ref string) (ir.Output, error) {
	if id, ok := ids[ref]; ok {
		return ir.Out(id, 0), nil
	}
	if name, idx, ok := cutLast(ref, ':'); ok {
		if id, found := ids[name]; found {
			i, err := strconv.Atoi(idx)
			if err != nil || i < 0 {
				return ir.Output{}, fmt.Errorf("%w: output index in %q", ErrInvalidValue, ref)
			}
			return ir.Out(id, i), nil
		}
	}
	return ir.Output{}, fmt.Errorf("%w: %q", ErrUnknownNode, ref)
}

func cutLast(s string, sep byte) (before, after string, found bool) {
	if i := strings.LastIndexByte(s, sep); i >= 0 {
		return s[:i], s[i+1:], true
	}
	return s, "", false
}

func parseElementType(name string) (ir.ElementType, error) {
	if name == "" {
		return ir.Dynamic, nil
	}
	return ir.ParseElementType(name)
}

// parseShape treats an empty shape as dynamic rank.
func parseShape(text string) (ir.Shape, error) {
	if text == "" {
		return ir.DynamicRank(), nil
	}
	return ir.ParseShape(text)
}

func (p Port) port(opts []ir.BuilderOption) (ir.Port, error) {
	et, err := parseElementType(p.ElementType)
	if err != nil {
		return ir.Port{}, err
	}
	shape, err := parseShape(p.Shape)
	if err != nil {
		return ir.Port{}, err
	}
	ri, err := runtimeInfo(p.RuntimeInfo, opts)
	if err != nil {
		return ir.Port{}, at("runtime_info", err)
	}
	return ir.Port{ElementType: et, Shape: shape, Names: p.Names, RuntimeInfo: ri}, nil
}

func (c *Constant) data() (*ir.ConstantData, error) {
	et, err := ir.ParseElementType(c.ElementType)
	if err != nil {
		return nil, err
	}
	shape, err := ir.ParseShape(c.Shape)
	if err != nil {
		return nil, err
	}
	out := &ir.ConstantData{ElementType: et, Shape: shape}
	switch {
	case c.Data != "" && c.Values != nil:
		return nil, fmt.Errorf("%w: both data and values are set", ErrInvalidValue)
	case c.Values != nil:
		if !shape.IsStatic() {
			return nil, fmt.Errorf("%w: values need a static shape, got %s", ErrInvalidValue, shape)
		}
		dims := make([]int64, len(shape.Dims))
		for i, d := range shape.Dims {
			dims[i] = d.Length()
		}
		t, err := tensorcmp.FromValues(et, dims, c.Values)
		if err != nil {
			return nil, err
		}
		out.Data = t.Data
	default:
		if out.Data, err = base64.StdEncoding.DecodeString(c.Data); err != nil {
			return nil, fmt.Errorf("%w: data: %v", ErrInvalidValue, err)
		}
	}
	return out, nil
}

func runtimeInfo(docs map[string]Value, opts []ir.BuilderOption) (ir.RuntimeInfo, error) {
	if len(docs) == 0 {
		return nil, nil
	}
	out := make(ir.RuntimeInfo, len(docs))
	for k, d := range docs {
		v, err := d.value(opts)
		if err != nil {
			return nil, at(k, err)
		}
		out[k] = v
	}
	return out, nil
}

func (b *Body) body(opts []ir.BuilderOption) (*ir.Body, error) {
	g, err := b.Graph.Build(opts...)
	if err != nil {
		return nil, at("graph", err)
	}
	out := &ir.Body{Graph: g}
	for i, d := range b.Inputs {
		desc, err := d.description()
		if err != nil {
			return nil, at(fmt.Sprintf("inputs[%d]", i), err)
		}
		out.Inputs = append(out.Inputs, desc)
	}
	for i, d := range b.Outputs {
		desc, err := d.description()
		if err != nil {
			return nil, at(fmt.Sprintf("outputs[%d]", i), err)
		}
		out.Outputs = append(out.Outputs, desc)
	}
	return out, nil
}

func (d InputDescription) description() (ir.InputDescription, error) {
	ports := ir.InputPorts{Input: d.Input, Parameter: d.Parameter}
	switch d.Kind {
	case "invariant":
		return &ir.InvariantInput{InputPorts: ports}, nil
	case "merged":
		return &ir.MergedInput{InputPorts: ports, Result: d.Result}, nil
	case "slice":
		return &ir.SliceInput{
			InputPorts: ports,
			Start:      d.Start, Stride: d.Stride, PartSize: d.PartSize, End: d.End, Axis: d.Axis,
		}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDescriptor, d.Kind)
	}
}

func (d OutputDescription) description() (ir.OutputDescription, error) {
	ports := ir.OutputPorts{Output: d.Output, Result: d.Result}
	switch d.Kind {
	case "body":
		return &ir.BodyOutput{OutputPorts: ports, Iteration: d.Iteration}, nil
	case "concat":
		return &ir.ConcatOutput{
			OutputPorts: ports,
			Start:       d.Start, Stride: d.Stride, PartSize: d.PartSize, End: d.End, Axis: d.Axis,
		}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDescriptor, d.Kind)
	}
}

// value converts the document value to its ir variant.
func (v Value) value(opts []ir.BuilderOption) (ir.Value, error) {
	var out []ir.Value
	add := func(x ir.Value) { out = append(out, x) }

	if v.Bool != nil {
		add(ir.Bool(*v.Bool))
	}
	if v.Int != nil {
		add(ir.Int(*v.Int))
	}
	if v.Float != nil {
		add(ir.Float(*v.Float))
	}
	if v.String != nil {
		add(ir.String(*v.String))
	}
	if v.Bools != nil {
		add(ir.Bools(*v.Bools...))
	}
	if v.Ints != nil {
		add(ir.Ints(*v.Ints...))
	}
	if v.Floats != nil {
		add(ir.Floats(*v.Floats...))
	}
	if v.Strings != nil {
		add(ir.Strings(*v.Strings...))
	}
	if v.Shape != nil {
		s, err := ir.ParseShape(*v.Shape)
		if err != nil {
			return nil, err
		}
		add(ir.ShapeValue{Shape: s})
	}
	if v.Dimension != nil {
		d, err := ir.ParseDimension(*v.Dimension)
		if err != nil {
			return nil, fmt.Errorf("%w: dimension: %v", ErrInvalidValue, err)
		}
		add(ir.DimensionValue{Dim: d})
	}
	if v.Blob != nil {
		data, err := base64.StdEncoding.DecodeString(*v.Blob)
		if err != nil {
			return nil, fmt.Errorf("%w: blob: %v", ErrInvalidValue, err)
		}
		add(ir.Blob{Data: data})
	}
	if v.Graph != nil {
		g, err := v.Graph.Build(opts...)
		if err != nil {
			return nil, at("graph", err)
		}
		add(ir.GraphValue{Graph: g})
	}
	if v.InputDescriptions != nil {
		descs := make(ir.InputDescriptions, 0, len(*v.InputDescriptions))
		for i, d := range *v.InputDescriptions {
			desc, err := d.description()
			if err != nil {
				return nil, at(fmt.Sprintf("input_descriptions[%d]", i), err)
			}
			descs = append(descs, desc)
		}
		add(descs)
	}
	if v.OutputDescriptions != nil {
		descs := make(ir.OutputDescriptions, 0, len(*v.OutputDescriptions))
		for i, d := range *v.OutputDescriptions {
			desc, err := d.description()
			if err != nil {
				return nil, at(fmt.Sprintf("output_descriptions[%d]", i), err)
			}
			descs = append(descs, desc)
		}
		add(descs)
	}
	if v.SpecialPorts != nil {
		add(ir.SpecialPortsValue{Ports: ir.SpecialPorts{
			CurrentIteration: v.SpecialPorts.CurrentIteration,
			BodyCondition:    v.SpecialPorts.BodyCondition,
		}})
	}
	if v.Variable != nil {
		et, err := parseElementType(v.Variable.ElementType)
		if err != nil {
			return nil, err
		}
		shape, err := parseShape(v.Variable.Shape)
		if err != nil {
			return nil, err
		}
		add(ir.VariableValue{ID: v.Variable.ID, ElementType: et, Shape: shape})
	}
	if v.Metadata != nil {
		add(ir.Metadata(*v.Metadata))
	}
	if v.Incomparable != nil {
		add(ir.Incomparable{TypeName: v.Incomparable.TypeName, Repr: v.Incomparable.Repr})
	}
	if v.Unknown != nil {
		add(ir.Unknown{TypeName: v.Unknown.TypeName, Raw: []byte(v.Unknown.Repr)})
	}

	if len(out) != 1 {
		return nil, fmt.Errorf("%w: exactly one variant must be set, got %d", ErrInvalidValue, len(out))
	}
	return out[0], nil
}
