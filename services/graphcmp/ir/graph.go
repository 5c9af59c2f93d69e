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

// NodeID addresses a node inside one graph arena.
type NodeID int

// InvalidNode is the zero handle returned when a lookup fails.
const InvalidNode NodeID = -1

// Output identifies one output port of a node in the same arena.
type Output struct {
	Node  NodeID
	Index int
}

// String formats the port as "node:index".
func (o Output) String() string {
	return fmt.Sprintf("%d:%d", o.Node, o.Index)
}

// Input is one input port, bound to exactly one producing output.
type Input struct {
	Source      Output
	RuntimeInfo RuntimeInfo
}

// Port is one output port of a node.
type Port struct {
	ElementType ElementType
	Shape       Shape
	// Names is the set of tensor names. Order is not significant.
	Names       []string
	RuntimeInfo RuntimeInfo
}

// HasName reports whether name is one of the port's tensor names.
func (p Port) HasName(name string) bool {
	return slices.Contains(p.Names, name)
}

// ConstantData is the payload of a Constant node.
type ConstantData struct {
	ElementType ElementType
	Shape       Shape
	Data        []byte
}

// Body is one nested graph owned by a control-flow node together with the
// descriptors that connect it to the owner's inputs and outputs.
type Body struct {
	Graph   *Graph
	Inputs  []InputDescription
	Outputs []OutputDescription
}

// ControlFlow is the nested structure of an If, Loop or TensorIterator.
//
// If owns two bodies (then, else). Loop and TensorIterator own one.
type ControlFlow struct {
	Bodies []*Body
	// Iterations is the trip count of a Loop or TensorIterator. -1 when
	// unknown. Ignored for If.
	Iterations   int64
	SpecialPorts SpecialPorts
}

// Node is an operation instance inside a graph arena.
type Node struct {
	ID          NodeID
	Name        string
	Type        TypeInfo
	Kind        NodeKind
	Inputs      []Input
	Outputs     []Port
	Attributes  []Attribute
	ControlDeps []NodeID
	RuntimeInfo RuntimeInfo

	// Constant is set for KindConstant.
	Constant *ConstantData
	// Variable is set for KindAssign and KindReadValue.
	Variable *VariableValue
	// ControlFlow is set for control-flow kinds.
	ControlFlow *ControlFlow
}

// OwnsSubgraph reports whether the node owns nested bodies.
func (n *Node) OwnsSubgraph() bool {
	return n.ControlFlow != nil && len(n.ControlFlow.Bodies) > 0
}

// IsVariableSink reports whether the node writes a stateful variable.
func (n *Node) IsVariableSink() bool {
	return n.Kind == KindAssign && n.Variable != nil
}

// Attribute returns the value declared under name.
func (n *Node) Attribute(name string) (Value, bool) {
	for _, a := range n.Attributes {
		if a.Name == name {
			return a.Value, true
		}
	}
	return nil, false
}

// String formats the node as "name (Type/version)".
func (n *Node) String() string {
	return fmt.Sprintf("%s (%s)", n.Name, n.Type)
}

// Graph is an arena of nodes with designated parameters, results and
// stateful sinks.
type Graph struct {
	Name       string
	nodes      []*Node
	Parameters []NodeID
	Results    []NodeID
	Sinks      []NodeID
}

// Len returns the number of nodes in the arena.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// Node returns the node with the given handle, or nil when out of range.
func (g *Graph) Node(id NodeID) *Node {
	if id < 0 || int(id) >= len(g.nodes) {
		return nil
	}
	return g.nodes[id]
}

// Nodes returns all nodes in arena order.
func (g *Graph) Nodes() []*Node {
	return slices.Clone(g.nodes)
}

// Producer returns the node feeding input i of n.
func (g *Graph) Producer(n *Node, i int) *Node {
	if i < 0 || i >= len(n.Inputs) {
		return nil
	}
	return g.Node(n.Inputs[i].Source.Node)
}

// SourcePort returns the output port feeding input i of n.
func (g *Graph) SourcePort(n *Node, i int) (Port, bool) {
	p := g.Producer(n, i)
	if p == nil {
		return Port{}, false
	}
	idx := n.Inputs[i].Source.Index
	if idx < 0 || idx >= len(p.Outputs) {
		return Port{}, false
	}
	return p.Outputs[idx], true
}

// Parameter returns the i-th parameter node.
func (g *Graph) Parameter(i int) *Node {
	if i < 0 || i >= len(g.Parameters) {
		return nil
	}
	return g.Node(g.Parameters[i])
}

// Result returns the i-th result node.
func (g *Graph) Result(i int) *Node {
	if i < 0 || i >= len(g.Results) {
		return nil
	}
	return g.Node(g.Results[i])
}

// IsDynamic reports whether any parameter has a dynamic shape or element
// type.
func (g *Graph) IsDynamic() bool {
	for _, id := range g.Parameters {
		n := g.Node(id)
		for _, p := range n.Outputs {
			if p.Shape.IsDynamic() || p.ElementType == Dynamic {
				return true
			}
		}
	}
	return false
}
