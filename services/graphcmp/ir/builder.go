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
	"slices"
)

// Well-known operation types used by the builder helpers.
var (
	ParameterType      = NewType("Parameter", "opset1")
	ConstantType       = NewType("Constant", "opset1")
	ResultType         = NewType("Result", "opset1")
	AssignType         = NewType("Assign", "opset6")
	ReadValueType      = NewType("ReadValue", "opset6")
	IfType             = NewType("If", "opset8")
	LoopType           = NewType("Loop", "opset5")
	TensorIteratorType = NewType("TensorIterator", "opset1")
)

// NodeSpec describes a node to add with Builder.Add.
type NodeSpec struct {
	Name        string
	Type        TypeInfo
	Kind        NodeKind
	Inputs      []Output
	Outputs     []Port
	Attributes  []Attribute
	ControlDeps []NodeID
	RuntimeInfo RuntimeInfo
	// InputRuntimeInfo is optional and, when set, has one entry per input.
	InputRuntimeInfo []RuntimeInfo
	Constant         *ConstantData
	Variable         *VariableValue
	ControlFlow      *ControlFlow
}

// BuilderOptions configures a Builder.
type BuilderOptions struct {
	// MaxNodes limits arena size. Zero means unlimited.
	MaxNodes int
}

// BuilderOption mutates BuilderOptions.
type BuilderOption func(*BuilderOptions)

// WithMaxNodes caps the number of nodes a builder accepts.
func WithMaxNodes(n int) BuilderOption {
	return func(o *BuilderOptions) { o.MaxNodes = n }
}

// Builder assembles a Graph.
//
// Errors are sticky: the first failure is remembered, later calls become
// no-ops and Build returns the error. This keeps construction code linear.
//
// Example:
//
//	b := ir.NewBuilder("add")
//	x := b.Parameter("x", ir.F32, ir.StaticShape(2, 3))
//	y := b.Parameter("y", ir.F32, ir.StaticShape(2, 3))
//	sum := b.Op(ir.NewType("Add", "opset1"), "sum", []ir.Output{x, y},
//	    ir.Port{ElementType: ir.F32, Shape: ir.StaticShape(2, 3)})
//	b.Result("out", ir.Out(sum, 0))
//	g, err := b.Build()
type Builder struct {
	g      *Graph
	opts   BuilderOptions
	err    error
	frozen bool
}

// NewBuilder creates a builder for a graph with the given name.
func NewBuilder(name string, opts ...BuilderOption) *Builder {
	o := BuilderOptions{}
	for _, fn := range opts {
		fn(&o)
	}
	return &Builder{g: &Graph{Name: name}, opts: o}
}

// Err returns the first error recorded by the builder.
func (b *Builder) Err() error {
	return b.err
}

func (b *Builder) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}

// Add appends a node and returns its handle. It returns InvalidNode after
// the first error. Parameter and Result nodes are registered in declaration
// order; Assign nodes are registered as sinks.
func (b *Builder) Add(spec NodeSpec) NodeID {
	if b.frozen {
		b.fail(ErrGraphFrozen)
	}
	if b.err != nil {
		return InvalidNode
	}
	if b.opts.MaxNodes > 0 && len(b.g.nodes) >= b.opts.MaxNodes {
		b.fail(fmt.Errorf("%w: limit %d", ErrMaxNodesExceeded, b.opts.MaxNodes))
		return InvalidNode
	}
	if spec.InputRuntimeInfo != nil && len(spec.InputRuntimeInfo) != len(spec.Inputs) {
		b.fail(fmt.Errorf("node %q: %d input runtime infos for %d inputs",
			spec.Name, len(spec.InputRuntimeInfo), len(spec.Inputs)))
		return InvalidNode
	}

	id := NodeID(len(b.g.nodes))
	n := &Node{
		ID:          id,
		Name:        spec.Name,
		Type:        spec.Type,
		Kind:        spec.Kind,
		Outputs:     slices.Clone(spec.Outputs),
		Attributes:  slices.Clone(spec.Attributes),
		ControlDeps: slices.Clone(spec.ControlDeps),
		RuntimeInfo: spec.RuntimeInfo,
		Constant:    spec.Constant,
		Variable:    spec.Variable,
		ControlFlow: spec.ControlFlow,
	}
	n.Inputs = make([]Input, len(spec.Inputs))
	for i, src := range spec.Inputs {
		n.Inputs[i].Source = src
		if spec.InputRuntimeInfo != nil {
			n.Inputs[i].RuntimeInfo = spec.InputRuntimeInfo[i]
		}
	}
	b.g.nodes = append(b.g.nodes, n)

	switch spec.Kind {
	case KindParameter:
		b.g.Parameters = append(b.g.Parameters, id)
	case KindResult:
		b.g.Results = append(b.g.Results, id)
	case KindAssign:
		b.g.Sinks = append(b.g.Sinks, id)
	}
	return id
}

// Out returns the output port reference (id, index).
func Out(id NodeID, index int) Output {
	return Output{Node: id, Index: index}
}

// Port returns the output port behind o, or a zero Port when invalid.
func (b *Builder) Port(o Output) Port {
	n := b.g.Node(o.Node)
	if n == nil || o.Index < 0 || o.Index >= len(n.Outputs) {
		return Port{}
	}
	return n.Outputs[o.Index]
}

// Node returns a node added so far.
func (b *Builder) Node(id NodeID) *Node {
	return b.g.Node(id)
}

// Parameter adds a graph parameter and returns its single output.
func (b *Builder) Parameter(name string, et ElementType, shape Shape, names ...string) Output {
	id := b.Add(NodeSpec{
		Name:    name,
		Type:    ParameterType,
		Kind:    KindParameter,
		Outputs: []Port{{ElementType: et, Shape: shape, Names: names}},
	})
	return Out(id, 0)
}

// Constant adds a constant node holding data.
func (b *Builder) Constant(name string, et ElementType, shape Shape, data []byte) Output {
	id := b.Add(NodeSpec{
		Name:     name,
		Type:     ConstantType,
		Kind:     KindConstant,
		Outputs:  []Port{{ElementType: et, Shape: shape}},
		Constant: &ConstantData{ElementType: et, Shape: shape, Data: slices.Clone(data)},
	})
	return Out(id, 0)
}

// Op adds an ordinary operation with the given outputs.
func (b *Builder) Op(typ TypeInfo, name string, inputs []Output, outputs ...Port) NodeID {
	return b.Add(NodeSpec{
		Name:    name,
		Type:    typ,
		Kind:    KindOp,
		Inputs:  inputs,
		Outputs: outputs,
	})
}

// Result adds a graph result fed by src.
func (b *Builder) Result(name string, src Output) NodeID {
	p := b.Port(src)
	return b.Add(NodeSpec{
		Name:    name,
		Type:    ResultType,
		Kind:    KindResult,
		Inputs:  []Output{src},
		Outputs: []Port{{ElementType: p.ElementType, Shape: p.Shape}},
	})
}

// Assign adds a stateful sink writing src into the variable variableID.
func (b *Builder) Assign(name, variableID string, src Output) NodeID {
	p := b.Port(src)
	v := &VariableValue{ID: variableID, ElementType: p.ElementType, Shape: p.Shape}
	return b.Add(NodeSpec{
		Name:       name,
		Type:       AssignType,
		Kind:       KindAssign,
		Inputs:     []Output{src},
		Outputs:    []Port{{ElementType: p.ElementType, Shape: p.Shape}},
		Attributes: []Attribute{{Name: "variable_id", Value: String(variableID)}},
		Variable:   v,
	})
}

// ReadValue adds a node reading the variable variableID, initialised by init.
func (b *Builder) ReadValue(name, variableID string, init Output) Output {
	p := b.Port(init)
	v := &VariableValue{ID: variableID, ElementType: p.ElementType, Shape: p.Shape}
	id := b.Add(NodeSpec{
		Name:       name,
		Type:       ReadValueType,
		Kind:       KindReadValue,
		Inputs:     []Output{init},
		Outputs:    []Port{{ElementType: p.ElementType, Shape: p.Shape}},
		Attributes: []Attribute{{Name: "variable_id", Value: String(variableID)}},
		Variable:   v,
	})
	return Out(id, 0)
}

// AddSink registers an existing node as a stateful sink.
func (b *Builder) AddSink(id NodeID) {
	if b.g.Node(id) == nil {
		b.fail(fmt.Errorf("%w: sink %d", ErrNodeNotFound, id))
		return
	}
	b.g.Sinks = append(b.g.Sinks, id)
}

// If adds a conditional owning then and else bodies. inputs[0] is the
// condition.
func (b *Builder) If(name string, inputs []Output, outputs []Port, then, els *Body) NodeID {
	return b.Add(NodeSpec{
		Name:    name,
		Type:    IfType,
		Kind:    KindIf,
		Inputs:  inputs,
		Outputs: outputs,
		ControlFlow: &ControlFlow{
			Bodies:       []*Body{then, els},
			Iterations:   1,
			SpecialPorts: NoSpecialPorts(),
		},
	})
}

// Loop adds a loop owning body, executed iterations times.
func (b *Builder) Loop(name string, inputs []Output, outputs []Port, body *Body, iterations int64, special SpecialPorts) NodeID {
	return b.Add(NodeSpec{
		Name:    name,
		Type:    LoopType,
		Kind:    KindLoop,
		Inputs:  inputs,
		Outputs: outputs,
		ControlFlow: &ControlFlow{
			Bodies:       []*Body{body},
			Iterations:   iterations,
			SpecialPorts: special,
		},
	})
}

// TensorIterator adds an iterator owning body, executed iterations times.
func (b *Builder) TensorIterator(name string, inputs []Output, outputs []Port, body *Body, iterations int64) NodeID {
	return b.Add(NodeSpec{
		Name:    name,
		Type:    TensorIteratorType,
		Kind:    KindTensorIterator,
		Inputs:  inputs,
		Outputs: outputs,
		ControlFlow: &ControlFlow{
			Bodies:       []*Body{body},
			Iterations:   iterations,
			SpecialPorts: NoSpecialPorts(),
		},
	})
}

// Build validates and freezes the graph.
//
// Description:
//
//	Checks that every input references an existing output port, control
//	dependencies exist, attribute names are unique per node, constant
//	payloads are large enough, and every port-mapping descriptor points
//	inside its body. After Build the builder rejects further changes.
//
// Outputs:
//
//	*Graph - The frozen graph.
//	error - The first construction or validation error.
func (b *Builder) Build() (*Graph, error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.frozen {
		return nil, ErrGraphFrozen
	}
	if err := Validate(b.g); err != nil {
		return nil, err
	}
	b.frozen = true
	return b.g, nil
}

// Validate checks the structural integrity of a graph.
func Validate(g *Graph) error {
	for _, n := range g.nodes {
		if err := validateNode(g, n); err != nil {
			return fmt.Errorf("graph %q: node %q: %w", g.Name, n.Name, err)
		}
	}
	for _, ids := range [][]NodeID{g.Parameters, g.Results, g.Sinks} {
		for _, id := range ids {
			if g.Node(id) == nil {
				return fmt.Errorf("graph %q: %w: %d", g.Name, ErrNodeNotFound, id)
			}
		}
	}
	return nil
}

func validateNode(g *Graph, n *Node) error {
	for i, in := range n.Inputs {
		p := g.Node(in.Source.Node)
		if p == nil {
			return fmt.Errorf("input %d: %w: %d", i, ErrNodeNotFound, in.Source.Node)
		}
		if in.Source.Index < 0 || in.Source.Index >= len(p.Outputs) {
			return fmt.Errorf("input %d: %w: %s has %d outputs", i, ErrPortOutOfRange, in.Source, len(p.Outputs))
		}
	}
	for _, dep := range n.ControlDeps {
		if g.Node(dep) == nil {
			return fmt.Errorf("control dependency: %w: %d", ErrNodeNotFound, dep)
		}
	}
	seen := make(map[string]bool, len(n.Attributes))
	for _, a := range n.Attributes {
		if seen[a.Name] {
			return fmt.Errorf("%w: %q", ErrDuplicateAttribute, a.Name)
		}
		seen[a.Name] = true
	}
	if c := n.Constant; c != nil && c.Shape.IsStatic() {
		if need := c.ElementType.PackedSize(c.Shape.ElementCount()); int64(len(c.Data)) < need {
			return fmt.Errorf("%w: %d bytes, need %d", ErrInvalidConstant, len(c.Data), need)
		}
	}
	if n.Kind.IsControlFlow() && !n.OwnsSubgraph() {
		return fmt.Errorf("%w: %s node without body", ErrInvalidDescriptor, n.Kind)
	}
	if n.ControlFlow != nil {
		for bi, body := range n.ControlFlow.Bodies {
			if err := validateBody(n, body); err != nil {
				return fmt.Errorf("body %d: %w", bi, err)
			}
		}
	}
	return nil
}

func validateBody(n *Node, body *Body) error {
	if body == nil || body.Graph == nil {
		return fmt.Errorf("%w: missing body graph", ErrInvalidDescriptor)
	}
	bg := body.Graph
	for _, d := range body.Inputs {
		if d.InputIndex() < 0 || d.InputIndex() >= len(n.Inputs) {
			return fmt.Errorf("%w: %s: input index out of range", ErrInvalidDescriptor, d)
		}
		if d.ParameterIndex() < 0 || d.ParameterIndex() >= len(bg.Parameters) {
			return fmt.Errorf("%w: %s: parameter index out of range", ErrInvalidDescriptor, d)
		}
		if m, ok := d.(*MergedInput); ok && (m.Result < 0 || m.Result >= len(bg.Results)) {
			return fmt.Errorf("%w: %s: back-edge result out of range", ErrInvalidDescriptor, d)
		}
	}
	for _, d := range body.Outputs {
		if d.OutputIndex() < 0 || d.OutputIndex() >= len(n.Outputs) {
			return fmt.Errorf("%w: %s: output index out of range", ErrInvalidDescriptor, d)
		}
		if d.ResultIndex() < 0 || d.ResultIndex() >= len(bg.Results) {
			return fmt.Errorf("%w: %s: result index out of range", ErrInvalidDescriptor, d)
		}
	}
	sp := n.ControlFlow.SpecialPorts
	if sp.CurrentIteration >= len(bg.Parameters) || sp.BodyCondition >= len(bg.Results) {
		return fmt.Errorf("%w: %s out of range", ErrInvalidDescriptor, sp)
	}
	return nil
}
