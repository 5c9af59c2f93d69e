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

import "fmt"

// =============================================================================
// Input descriptors
// =============================================================================

// InputDescription binds an outer input of a control-flow node to a body
// parameter.
//
// Implementations: *InvariantInput, *MergedInput, *SliceInput.
type InputDescription interface {
	// InputIndex is the index of the outer node input.
	InputIndex() int
	// ParameterIndex is the index into the body graph's Parameters.
	ParameterIndex() int
	// Equal reports strict equality, including both indices.
	Equal(InputDescription) bool
	// SameParams reports equality of the variant and its numeric
	// parameters, ignoring indices.
	SameParams(InputDescription) bool
	String() string
	inputDescription()
}

// InputPorts holds the indices shared by all input descriptors.
type InputPorts struct {
	Input     int
	Parameter int
}

func (p InputPorts) InputIndex() int     { return p.Input }
func (p InputPorts) ParameterIndex() int { return p.Parameter }

// InvariantInput passes the outer value unchanged to the parameter on every
// iteration.
type InvariantInput struct {
	InputPorts
}

func (*InvariantInput) inputDescription() {}

func (d *InvariantInput) Equal(o InputDescription) bool {
	x, ok := o.(*InvariantInput)
	return ok && d.InputPorts == x.InputPorts
}

func (d *InvariantInput) SameParams(o InputDescription) bool {
	_, ok := o.(*InvariantInput)
	return ok
}

func (d *InvariantInput) String() string {
	return fmt.Sprintf("invariant(in=%d, param=%d)", d.Input, d.Parameter)
}

// MergedInput seeds the parameter from the outer value on the first
// iteration and from body result Result on every later one.
type MergedInput struct {
	InputPorts
	Result int
}

func (*MergedInput) inputDescription() {}

func (d *MergedInput) Equal(o InputDescription) bool {
	x, ok := o.(*MergedInput)
	return ok && d.InputPorts == x.InputPorts && d.Result == x.Result
}

func (d *MergedInput) SameParams(o InputDescription) bool {
	_, ok := o.(*MergedInput)
	return ok
}

func (d *MergedInput) String() string {
	return fmt.Sprintf("merged(in=%d, param=%d, result=%d)", d.Input, d.Parameter, d.Result)
}

// SliceInput feeds one chunk of the outer value along Axis per iteration.
type SliceInput struct {
	InputPorts
	Start    int64
	Stride   int64
	PartSize int64
	End      int64
	Axis     int64
}

func (*SliceInput) inputDescription() {}

func (d *SliceInput) Equal(o InputDescription) bool {
	x, ok := o.(*SliceInput)
	return ok && d.InputPorts == x.InputPorts && d.SameParams(x)
}

func (d *SliceInput) SameParams(o InputDescription) bool {
	x, ok := o.(*SliceInput)
	return ok && d.Start == x.Start && d.Stride == x.Stride &&
		d.PartSize == x.PartSize && d.End == x.End && d.Axis == x.Axis
}

func (d *SliceInput) String() string {
	return fmt.Sprintf("slice(in=%d, param=%d, start=%d, stride=%d, part=%d, end=%d, axis=%d)",
		d.Input, d.Parameter, d.Start, d.Stride, d.PartSize, d.End, d.Axis)
}

// =============================================================================
// Output descriptors
// =============================================================================

// OutputDescription binds a body result to an outer output of a
// control-flow node.
//
// Implementations: *BodyOutput, *ConcatOutput.
type OutputDescription interface {
	// OutputIndex is the index of the outer node output.
	OutputIndex() int
	// ResultIndex is the index into the body graph's Results.
	ResultIndex() int
	Equal(OutputDescription) bool
	SameParams(OutputDescription) bool
	String() string
	outputDescription()
}

// OutputPorts holds the indices shared by all output descriptors.
type OutputPorts struct {
	Output int
	Result int
}

func (p OutputPorts) OutputIndex() int { return p.Output }
func (p OutputPorts) ResultIndex() int { return p.Result }

// BodyOutput takes the value of the result at one iteration. Iteration -1
// means the last one.
type BodyOutput struct {
	OutputPorts
	Iteration int64
}

func (*BodyOutput) outputDescription() {}

func (d *BodyOutput) Equal(o OutputDescription) bool {
	x, ok := o.(*BodyOutput)
	return ok && d.OutputPorts == x.OutputPorts && d.Iteration == x.Iteration
}

func (d *BodyOutput) SameParams(o OutputDescription) bool {
	x, ok := o.(*BodyOutput)
	return ok && d.Iteration == x.Iteration
}

func (d *BodyOutput) String() string {
	return fmt.Sprintf("body(out=%d, result=%d, iteration=%d)", d.Output, d.Result, d.Iteration)
}

// ConcatOutput concatenates the result across all iterations along Axis.
type ConcatOutput struct {
	OutputPorts
	Start    int64
	Stride   int64
	PartSize int64
	End      int64
	Axis     int64
}

func (*ConcatOutput) outputDescription() {}

func (d *ConcatOutput) Equal(o OutputDescription) bool {
	x, ok := o.(*ConcatOutput)
	return ok && d.OutputPorts == x.OutputPorts && d.SameParams(x)
}

func (d *ConcatOutput) SameParams(o OutputDescription) bool {
	x, ok := o.(*ConcatOutput)
	return ok && d.Start == x.Start && d.Stride == x.Stride &&
		d.PartSize == x.PartSize && d.End == x.End && d.Axis == x.Axis
}

func (d *ConcatOutput) String() string {
	return fmt.Sprintf("concat(out=%d, result=%d, start=%d, stride=%d, part=%d, end=%d, axis=%d)",
		d.Output, d.Result, d.Start, d.Stride, d.PartSize, d.End, d.Axis)
}

// =============================================================================
// Special body ports
// =============================================================================

// SpecialPorts designates loop-specific body ports. -1 means absent.
type SpecialPorts struct {
	CurrentIteration int
	BodyCondition    int
}

// NoSpecialPorts returns SpecialPorts with both indices absent.
func NoSpecialPorts() SpecialPorts {
	return SpecialPorts{CurrentIteration: -1, BodyCondition: -1}
}

func (s SpecialPorts) String() string {
	return fmt.Sprintf("special(current_iteration=%d, condition=%d)", s.CurrentIteration, s.BodyCondition)
}
