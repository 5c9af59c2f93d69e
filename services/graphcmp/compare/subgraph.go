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
	"strings"

	"github.com/AleutianAI/graphcmp/services/graphcmp/ir"
)

// =============================================================================
// Port-mapping triples
// =============================================================================

// portSig is the interface signature of a port: element type and shape.
type portSig struct {
	ElementType ir.ElementType
	Shape       ir.Shape
}

func sigOf(p ir.Port) portSig {
	return portSig{ElementType: p.ElementType, Shape: p.Shape}
}

func (p portSig) equal(o portSig) bool {
	return p.ElementType == o.ElementType && p.Shape.Equal(o.Shape)
}

func (p portSig) String() string {
	return p.ElementType.String() + p.Shape.String()
}

// inputTriple binds an outer input, a body parameter and their descriptor.
type inputTriple struct {
	desc  ir.InputDescription
	outer portSig
	param portSig
}

// outputTriple binds a body result, an outer output and their descriptor.
type outputTriple struct {
	desc   ir.OutputDescription
	result portSig
	outer  portSig
}

// backEdge is the (parameter, result) pair implied by a merged input.
type backEdge struct {
	param  portSig
	result portSig
}

// bodyPorts holds everything extracted from one body on one side.
type bodyPorts struct {
	inputs    []inputTriple
	outputs   []outputTriple
	backEdges []backEdge
}

// iterationCount returns the trip count and whether the node iterates.
// Unrecognized control-flow kinds are rejected instead of compared.
func iterationCount(n *ir.Node) (count int64, iterating bool, err error) {
	switch n.Kind {
	case ir.KindIf:
		return 1, false, nil
	case ir.KindLoop, ir.KindTensorIterator:
		return n.ControlFlow.Iterations, true, nil
	default:
		return 0, false, fmt.Errorf("node %s of kind %s owns a body but is not a recognized control-flow kind", n, n.Kind)
	}
}

// =============================================================================
// Subgraph matcher
// =============================================================================

// compareSubgraphs matches two control-flow nodes: iteration count, the
// single-side consistency of every body on both sides, then per body the
// descriptor sets, back-edges, loop special ports, and finally the body
// graphs themselves. Attribute failures inside bodies are collected across
// all bodies and returned together as one KindAttribute result.
func (s *session) compareSubgraphs(ga *ir.Graph, n1 *ir.Node, gb *ir.Graph, n2 *ir.Node) Result {
	it1, iterating1, err := iterationCount(n1)
	if err != nil {
		return Failf(KindInternal, "%v", err)
	}
	it2, iterating2, err := iterationCount(n2)
	if err != nil {
		return Failf(KindInternal, "%v", err)
	}

	ports1, res := s.extractBodies(ga, n1, it1, iterating1)
	if !res.Valid {
		return res
	}
	ports2, res := s.extractBodies(gb, n2, it2, iterating2)
	if !res.Valid {
		return res
	}

	if it1 != it2 || iterating1 != iterating2 {
		return Failf(KindStructural, "different number of iterations: %d for %s and %d for %s", it1, n1, it2, n2)
	}
	bodies1, bodies2 := n1.ControlFlow.Bodies, n2.ControlFlow.Bodies
	if len(bodies1) != len(bodies2) {
		return Failf(KindStructural, "different number of bodies: %d for %s and %d for %s",
			len(bodies1), n1, len(bodies2), n2)
	}

	var soft []string
	for bi := range bodies1 {
		p1, p2 := ports1[bi], ports2[bi]
		if len(p1.inputs) == 0 || len(p2.inputs) == 0 {
			return Failf(KindContract, "no input in subgraph %d of %s or %s", bi, n1, n2)
		}
		if len(p1.outputs) == 0 || len(p2.outputs) == 0 {
			return Failf(KindContract, "no output in subgraph %d of %s or %s", bi, n1, n2)
		}

		if !isPermutation(p1.inputs, p2.inputs, func(x, y inputTriple) bool {
			return x.desc.SameParams(y.desc) && x.param.equal(y.param)
		}) {
			return Failf(KindStructural, "different SubGraph InputDescription in body %d of %s and %s", bi, n1, n2)
		}
		if !isPermutation(p1.outputs, p2.outputs, func(x, y outputTriple) bool {
			return x.desc.SameParams(y.desc) && x.result.equal(y.result)
		}) {
			return Failf(KindStructural, "different SubGraph OutputDescription in body %d of %s and %s", bi, n1, n2)
		}
		if !isPermutation(p1.backEdges, p2.backEdges, func(x, y backEdge) bool {
			return x.param.equal(y.param) && x.result.equal(y.result)
		}) {
			return Failf(KindStructural, "different SubGraph BackEdges in body %d of %s and %s", bi, n1, n2)
		}

		if n1.Kind == ir.KindLoop {
			if res := compareSpecialPorts(n1, bodies1[bi], n2, bodies2[bi]); !res.Valid {
				return res
			}
		}

		res := s.compareGraphs(bodies1[bi].Graph, bodies2[bi].Graph)
		if res.Valid {
			continue
		}
		res.Message = fmt.Sprintf("SubGraph %d of %s and %s:\n%s", bi, n1, n2, res.Message)
		if res.Kind != KindAttribute {
			return res
		}
		soft = append(soft, res.Message)
	}
	if len(soft) > 0 {
		return Failf(KindAttribute, "%s", strings.Join(soft, "\n"))
	}
	return OK("")
}

// extractBodies runs extractBody on every body of n, then the single-side
// checks of the nodes nested in each body.
func (s *session) extractBodies(g *ir.Graph, n *ir.Node, iterations int64, iterating bool) ([]bodyPorts, Result) {
	bodies := n.ControlFlow.Bodies
	ports := make([]bodyPorts, len(bodies))
	for i, body := range bodies {
		p, res := extractBody(g, n, body, iterations, iterating)
		if !res.Valid {
			return nil, res
		}
		ports[i] = p
	}
	for _, body := range bodies {
		if res := s.checkGraph(body.Graph); !res.Valid {
			return nil, res
		}
	}
	return ports, OK("")
}

// extractBody builds the triples of one body and checks each against its
// descriptor. Every failure here is an internal-consistency error of a
// single graph.
func extractBody(g *ir.Graph, n *ir.Node, body *ir.Body, iterations int64, iterating bool) (bodyPorts, Result) {
	var out bodyPorts
	bg := body.Graph

	for _, d := range body.Inputs {
		outer, ok := g.SourcePort(n, d.InputIndex())
		param := bg.Parameter(d.ParameterIndex())
		if !ok || param == nil || len(param.Outputs) == 0 {
			return out, Failf(KindInternal, "inputs and parameters mismatch: %s of %s references a missing port", d, n)
		}
		t := inputTriple{desc: d, outer: sigOf(outer), param: sigOf(param.Outputs[0])}
		if err := checkInputTriple(t, iterations, iterating); err != nil {
			return out, Failf(KindInternal, "inputs and parameters mismatch: %s of %s: %v", d, n, err)
		}
		out.inputs = append(out.inputs, t)

		if m, ok := d.(*ir.MergedInput); ok {
			res := bg.Result(m.Result)
			if res == nil || len(res.Outputs) == 0 {
				return out, Failf(KindInternal, "back edges mismatch: %s of %s references a missing result", d, n)
			}
			e := backEdge{param: t.param, result: sigOf(res.Outputs[0])}
			if e.param.ElementType != e.result.ElementType || !e.param.Shape.Compatible(e.result.Shape) {
				return out, Failf(KindInternal, "back edges mismatch: %s of %s: parameter %s, result %s",
					d, n, e.param, e.result)
			}
			out.backEdges = append(out.backEdges, e)
		}
	}

	for _, d := range body.Outputs {
		res := bg.Result(d.ResultIndex())
		if res == nil || len(res.Outputs) == 0 || d.OutputIndex() < 0 || d.OutputIndex() >= len(n.Outputs) {
			return out, Failf(KindInternal, "outputs and results mismatch: %s of %s references a missing port", d, n)
		}
		t := outputTriple{desc: d, result: sigOf(res.Outputs[0]), outer: sigOf(n.Outputs[d.OutputIndex()])}
		if err := checkOutputTriple(t, iterations, iterating); err != nil {
			return out, Failf(KindInternal, "outputs and results mismatch: %s of %s: %v", d, n, err)
		}
		out.outputs = append(out.outputs, t)
	}

	if n.Kind == ir.KindLoop {
		sp := n.ControlFlow.SpecialPorts
		if sp.BodyCondition < 0 || bg.Result(sp.BodyCondition) == nil {
			return out, Failf(KindInternal, "loop %s has no body condition output", n)
		}
		if sp.CurrentIteration >= 0 && bg.Parameter(sp.CurrentIteration) == nil {
			return out, Failf(KindInternal, "loop %s current iteration input %d is out of range", n, sp.CurrentIteration)
		}
	}
	return out, OK("")
}

// checkInputTriple validates a parameter against its outer input.
func checkInputTriple(t inputTriple, iterations int64, iterating bool) error {
	switch d := t.desc.(type) {
	case *ir.SliceInput:
		if !iterating {
			return fmt.Errorf("slice descriptor on a non-iterating node")
		}
		return checkScaled(t.outer, t.param, d.Axis, d.PartSize, iterations, "input", "parameter")
	case *ir.MergedInput, *ir.InvariantInput:
		if !t.outer.equal(t.param) {
			return fmt.Errorf("input %s does not match parameter %s", t.outer, t.param)
		}
		return nil
	default:
		return fmt.Errorf("unsupported input descriptor %T", d)
	}
}

// checkOutputTriple validates a body result against its outer output.
func checkOutputTriple(t outputTriple, iterations int64, iterating bool) error {
	switch d := t.desc.(type) {
	case *ir.ConcatOutput:
		if !iterating {
			return fmt.Errorf("concat descriptor on a non-iterating node")
		}
		return checkScaled(t.outer, t.result, d.Axis, d.PartSize, iterations, "output", "result")
	case *ir.BodyOutput:
		if !t.outer.equal(t.result) {
			return fmt.Errorf("output %s does not match result %s", t.outer, t.result)
		}
		return nil
	default:
		return fmt.Errorf("unsupported output descriptor %T", d)
	}
}

// checkScaled validates a slice or concat binding: the whole tensor equals
// the part along axis scaled by the iteration count, the part's axis
// dimension equals partSize, and every other dimension matches.
func checkScaled(whole, part portSig, axis, partSize, iterations int64, wholeName, partName string) error {
	if whole.ElementType != part.ElementType {
		return fmt.Errorf("%s type %s differs from %s type %s", wholeName, whole.ElementType, partName, part.ElementType)
	}
	wd, pd := whole.Shape.IsDynamic(), part.Shape.IsDynamic()
	if wd && pd {
		return nil
	}
	if wd != pd {
		return fmt.Errorf("%s %s and %s %s are not both static", wholeName, whole.Shape, partName, part.Shape)
	}
	rank := int64(len(whole.Shape.Dims))
	if rank != int64(len(part.Shape.Dims)) {
		return fmt.Errorf("%s rank %d differs from %s rank %d", wholeName, rank, partName, len(part.Shape.Dims))
	}
	if axis < 0 {
		axis += rank
	}
	if axis < 0 || axis >= rank {
		return fmt.Errorf("axis %d out of range for rank %d", axis, rank)
	}
	for i := range rank {
		w, p := whole.Shape.Dims[i].Length(), part.Shape.Dims[i].Length()
		if i != axis {
			if w != p {
				return fmt.Errorf("dimension %d: %s %d vs %s %d", i, wholeName, w, partName, p)
			}
			continue
		}
		if p != partSize {
			return fmt.Errorf("axis %d: %s dimension %d differs from part size %d", i, partName, p, partSize)
		}
		if w != partSize*iterations {
			return fmt.Errorf("axis %d: %s dimension %d differs from part size %d x %d iterations",
				i, wholeName, w, partSize, iterations)
		}
	}
	return nil
}

// compareSpecialPorts compares the loop-only body ports of two loops.
func compareSpecialPorts(n1 *ir.Node, b1 *ir.Body, n2 *ir.Node, b2 *ir.Body) Result {
	sp1, sp2 := n1.ControlFlow.SpecialPorts, n2.ControlFlow.SpecialPorts
	if (sp1.CurrentIteration >= 0) != (sp2.CurrentIteration >= 0) {
		return Failf(KindStructural, "different Special Body Ports: current iteration input %d for %s and %d for %s",
			sp1.CurrentIteration, n1, sp2.CurrentIteration, n2)
	}
	if sp1.CurrentIteration >= 0 {
		p1 := sigOf(b1.Graph.Parameter(sp1.CurrentIteration).Outputs[0])
		p2 := sigOf(b2.Graph.Parameter(sp2.CurrentIteration).Outputs[0])
		if !p1.equal(p2) {
			return Failf(KindStructural, "different Special Body Ports: current iteration input %s vs %s", p1, p2)
		}
	}
	c1 := sigOf(b1.Graph.Result(sp1.BodyCondition).Outputs[0])
	c2 := sigOf(b2.Graph.Result(sp2.BodyCondition).Outputs[0])
	if !c1.equal(c2) {
		return Failf(KindStructural, "different Special Body Ports: condition output %s vs %s", c1, c2)
	}
	return OK("")
}

// =============================================================================
// Single-graph consistency
// =============================================================================

// checkGraph runs the single-side port-mapping checks on every control-flow
// node of g and its bodies.
func (s *session) checkGraph(g *ir.Graph) Result {
	for _, n := range g.Nodes() {
		if !n.OwnsSubgraph() {
			continue
		}
		it, iterating, err := iterationCount(n)
		if err != nil {
			return Failf(KindInternal, "%v", err)
		}
		for _, body := range n.ControlFlow.Bodies {
			if _, res := extractBody(g, n, body, it, iterating); !res.Valid {
				return res
			}
			if res := s.checkGraph(body.Graph); !res.Valid {
				return res
			}
		}
	}
	return OK("")
}
