// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package document defines the YAML/JSON wire format for graphs and converts
// it to and from ir.Graph.
//
// A document lists nodes in order. Inputs reference producers by name, with
// an optional output index ("split:1"). Node names must be unique within one
// graph; bodies of control-flow nodes are nested documents with their own
// namespace.
//
//	name: add
//	nodes:
//	  - {name: x, type: Parameter, outputs: [{element_type: f32, shape: "[2,3]"}]}
//	  - {name: y, type: Parameter, outputs: [{element_type: f32, shape: "[2,3]"}]}
//	  - name: sum
//	    type: Add
//	    version: opset1
//	    inputs: [x, y]
//	    outputs: [{element_type: f32, shape: "[2,3]", names: [sum]}]
//	    attributes:
//	      - {name: auto_broadcast, value: {string: numpy}}
//	  - {name: out, type: Result, inputs: [sum]}
//
// Result, Assign and ReadValue nodes without declared outputs take the type
// and shape of their first input.
package document

import (
	"encoding/json"
	"strings"

	"gopkg.in/yaml.v3"
)

// Graph is a graph document.
type Graph struct {
	Name  string `yaml:"name" json:"name"`
	Nodes []Node `yaml:"nodes" json:"nodes"`
	// Sinks names nodes registered as sinks in addition to every Assign.
	Sinks []string `yaml:"sinks,omitempty" json:"sinks,omitempty"`
}

// Node is one node of a graph document.
type Node struct {
	Name    string `yaml:"name" json:"name"`
	Type    string `yaml:"type" json:"type"`
	Version string `yaml:"version,omitempty" json:"version,omitempty"`
	// Relaxed wraps Type in a relaxed wrapper type.
	Relaxed bool `yaml:"relaxed,omitempty" json:"relaxed,omitempty"`
	// Kind overrides the kind inferred from Type.
	Kind        string           `yaml:"kind,omitempty" json:"kind,omitempty"`
	Inputs      []Input          `yaml:"inputs,omitempty" json:"inputs,omitempty"`
	Outputs     []Port           `yaml:"outputs,omitempty" json:"outputs,omitempty"`
	Attributes  []Attribute      `yaml:"attributes,omitempty" json:"attributes,omitempty"`
	ControlDeps []string         `yaml:"control_deps,omitempty" json:"control_deps,omitempty"`
	RuntimeInfo map[string]Value `yaml:"runtime_info,omitempty" json:"runtime_info,omitempty"`
	Constant    *Constant        `yaml:"constant,omitempty" json:"constant,omitempty"`
	// Variable is the variable id of Assign and ReadValue nodes.
	Variable     string        `yaml:"variable,omitempty" json:"variable,omitempty"`
	Iterations   int64         `yaml:"iterations,omitempty" json:"iterations,omitempty"`
	SpecialPorts *SpecialPorts `yaml:"special_ports,omitempty" json:"special_ports,omitempty"`
	Bodies       []Body        `yaml:"bodies,omitempty" json:"bodies,omitempty"`
}

// Input references a producer output. It is written as a plain string
// unless it carries runtime info.
type Input struct {
	Source      string           `yaml:"source" json:"source"`
	RuntimeInfo map[string]Value `yaml:"runtime_info,omitempty" json:"runtime_info,omitempty"`
}

type inputFields Input

// UnmarshalYAML accepts "name", "name:index" or a mapping.
func (in *Input) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		*in = Input{Source: node.Value}
		return nil
	}
	var f inputFields
	if err := node.Decode(&f); err != nil {
		return err
	}
	*in = Input(f)
	return nil
}

// MarshalYAML writes the short form when possible.
func (in Input) MarshalYAML() (any, error) {
	if len(in.RuntimeInfo) == 0 {
		return in.Source, nil
	}
	return inputFields(in), nil
}

// UnmarshalJSON accepts a string or an object.
func (in *Input) UnmarshalJSON(data []byte) error {
	if strings.HasPrefix(strings.TrimSpace(string(data)), `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*in = Input{Source: s}
		return nil
	}
	var f inputFields
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*in = Input(f)
	return nil
}

// MarshalJSON writes the short form when possible.
func (in Input) MarshalJSON() ([]byte, error) {
	if len(in.RuntimeInfo) == 0 {
		return json.Marshal(in.Source)
	}
	return json.Marshal(inputFields(in))
}

// Port describes one output port.
type Port struct {
	ElementType string           `yaml:"element_type" json:"element_type"`
	Shape       string           `yaml:"shape" json:"shape"`
	Names       []string         `yaml:"names,omitempty" json:"names,omitempty"`
	RuntimeInfo map[string]Value `yaml:"runtime_info,omitempty" json:"runtime_info,omitempty"`
}

// Constant is a constant payload, given either as base64 Data or as Values
// encoded to ElementType.
type Constant struct {
	ElementType string    `yaml:"element_type" json:"element_type"`
	Shape       string    `yaml:"shape" json:"shape"`
	Data        string    `yaml:"data,omitempty" json:"data,omitempty"`
	Values      []float64 `yaml:"values,omitempty" json:"values,omitempty"`
}

// Attribute is one named attribute.
type Attribute struct {
	Name  string `yaml:"name" json:"name"`
	Value Value  `yaml:"value" json:"value"`
}

// Value is an attribute or runtime-info value. Exactly one field is set.
// List fields are pointers so an empty list stays distinguishable from an
// unset field.
type Value struct {
	Bool               *bool                `yaml:"bool,omitempty" json:"bool,omitempty"`
	Int                *int64               `yaml:"int,omitempty" json:"int,omitempty"`
	Float              *float64             `yaml:"float,omitempty" json:"float,omitempty"`
	String             *string              `yaml:"string,omitempty" json:"string,omitempty"`
	Bools              *[]bool              `yaml:"bools,omitempty" json:"bools,omitempty"`
	Ints               *[]int64             `yaml:"ints,omitempty" json:"ints,omitempty"`
	Floats             *[]float64           `yaml:"floats,omitempty" json:"floats,omitempty"`
	Strings            *[]string            `yaml:"strings,omitempty" json:"strings,omitempty"`
	Shape              *string              `yaml:"shape,omitempty" json:"shape,omitempty"`
	Dimension          *string              `yaml:"dimension,omitempty" json:"dimension,omitempty"`
	Blob               *string              `yaml:"blob,omitempty" json:"blob,omitempty"`
	Graph              *Graph               `yaml:"graph,omitempty" json:"graph,omitempty"`
	InputDescriptions  *[]InputDescription  `yaml:"input_descriptions,omitempty" json:"input_descriptions,omitempty"`
	OutputDescriptions *[]OutputDescription `yaml:"output_descriptions,omitempty" json:"output_descriptions,omitempty"`
	SpecialPorts       *SpecialPorts        `yaml:"special_ports,omitempty" json:"special_ports,omitempty"`
	Variable           *Variable            `yaml:"variable,omitempty" json:"variable,omitempty"`
	Metadata           *map[string]string   `yaml:"metadata,omitempty" json:"metadata,omitempty"`
	Incomparable       *Opaque              `yaml:"incomparable,omitempty" json:"incomparable,omitempty"`
	Unknown            *Opaque              `yaml:"unknown,omitempty" json:"unknown,omitempty"`
}

// Variable is a stateful variable identity.
type Variable struct {
	ID          string `yaml:"id" json:"id"`
	ElementType string `yaml:"element_type" json:"element_type"`
	Shape       string `yaml:"shape" json:"shape"`
}

// Opaque is a value the comparator cannot inspect.
type Opaque struct {
	TypeName string `yaml:"type" json:"type"`
	Repr     string `yaml:"repr,omitempty" json:"repr,omitempty"`
}

// Body is one nested body of a control-flow node.
type Body struct {
	Graph   Graph               `yaml:"graph" json:"graph"`
	Inputs  []InputDescription  `yaml:"inputs,omitempty" json:"inputs,omitempty"`
	Outputs []OutputDescription `yaml:"outputs,omitempty" json:"outputs,omitempty"`
}

// InputDescription binds an outer input to a body parameter.
// Kind is "invariant", "merged" or "slice".
type InputDescription struct {
	Kind      string `yaml:"kind" json:"kind"`
	Input     int    `yaml:"input" json:"input"`
	Parameter int    `yaml:"parameter" json:"parameter"`
	// Result is the back-edge result of a merged input.
	Result   int   `yaml:"result,omitempty" json:"result,omitempty"`
	Start    int64 `yaml:"start,omitempty" json:"start,omitempty"`
	Stride   int64 `yaml:"stride,omitempty" json:"stride,omitempty"`
	PartSize int64 `yaml:"part_size,omitempty" json:"part_size,omitempty"`
	End      int64 `yaml:"end,omitempty" json:"end,omitempty"`
	Axis     int64 `yaml:"axis,omitempty" json:"axis,omitempty"`
}

// OutputDescription binds a body result to an outer output.
// Kind is "body" or "concat".
type OutputDescription struct {
	Kind      string `yaml:"kind" json:"kind"`
	Output    int    `yaml:"output" json:"output"`
	Result    int    `yaml:"result" json:"result"`
	Iteration int64  `yaml:"iteration" json:"iteration"`
	Start     int64  `yaml:"start,omitempty" json:"start,omitempty"`
	Stride    int64  `yaml:"stride,omitempty" json:"stride,omitempty"`
	PartSize  int64  `yaml:"part_size,omitempty" json:"part_size,omitempty"`
	End       int64  `yaml:"end,omitempty" json:"end,omitempty"`
	Axis      int64  `yaml:"axis,omitempty" json:"axis,omitempty"`
}

// SpecialPorts are the loop-only body ports. -1 means absent.
type SpecialPorts struct {
	CurrentIteration int `yaml:"current_iteration" json:"current_iteration"`
	BodyCondition    int `yaml:"body_condition" json:"body_condition"`
}
