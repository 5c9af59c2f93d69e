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
	"slices"
	"strings"

	"github.com/AleutianAI/graphcmp/services/graphcmp/ir"
	"github.com/AleutianAI/graphcmp/services/graphcmp/policy"
)

// nodePair is one worklist entry.
type nodePair struct {
	a, b *ir.Node
}

// walk is the state of one graph-pair traversal.
type walk struct {
	s       *session
	a, b    *ir.Graph
	visited map[ir.NodeID]bool
	// soft holds attribute diagnostics. They do not stop the walk.
	soft []string
}

// compareGraphs walks one pair of graphs. Nested bodies and graph-valued
// attributes call it again with a fresh visited set.
func (s *session) compareGraphs(a, b *ir.Graph) Result {
	w := &walk{s: s, a: a, b: b, visited: make(map[ir.NodeID]bool)}
	return w.run()
}

func (w *walk) run() Result {
	a, b := w.a, w.b
	if len(a.Results) != len(b.Results) {
		return Failf(KindContract, "Number of results is different: %d and %d", len(a.Results), len(b.Results))
	}
	if len(a.Sinks) != len(b.Sinks) {
		return Failf(KindContract, "Number of sinks is different: %d and %d", len(a.Sinks), len(b.Sinks))
	}

	resultsA, resultsB := orderedResults(a, b)
	queue := make([]nodePair, 0, len(resultsA)+len(a.Sinks))
	for i := range resultsA {
		ra, rb := resultsA[i], resultsB[i]
		if w.s.policy.Has(policy.Names) {
			pa, pb := a.Producer(ra, 0), b.Producer(rb, 0)
			if pa != nil && pb != nil && pa.Name != pb.Name {
				return Failf(KindStructural, "Different output node names: %s and %s", pa.Name, pb.Name)
			}
		}
		queue = append(queue, nodePair{ra, rb})
	}

	sinkPairs, res := pairSinks(a, b)
	if !res.Valid {
		return res
	}
	queue = append(queue, sinkPairs...)

	for _, p := range queue {
		w.visited[p.a.ID] = true
	}

	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]

		w.s.pairs++
		if res := w.compareNode(p.a, p.b); !res.Valid {
			return res
		}

		for i := range p.a.Inputs {
			pa := a.Producer(p.a, i)
			if pa == nil || w.visited[pa.ID] {
				continue
			}
			pb := b.Producer(p.b, i)
			if pb == nil {
				return Failf(KindStructural, "Missing producer for input %d of %s", i, p.b)
			}
			w.visited[pa.ID] = true
			queue = append(queue, nodePair{pa, pb})
		}
	}

	if len(w.soft) > 0 {
		return Failf(KindAttribute, "%s", strings.Join(w.soft, "\n"))
	}
	return OK(strings.Join(w.s.warnings, "\n"))
}

// orderedResults pairs results positionally after sorting. Results are
// sorted by their own name unless some result is fed by a tensor with
// several names, in which case friendly names are unreliable and both lists
// are sorted by the producing node's name instead.
func orderedResults(a, b *ir.Graph) ([]*ir.Node, []*ir.Node) {
	byProducer := hasAliasedResult(a) || hasAliasedResult(b)
	return sortedResults(a, byProducer), sortedResults(b, byProducer)
}

func hasAliasedResult(g *ir.Graph) bool {
	for _, id := range g.Results {
		if port, ok := g.SourcePort(g.Node(id), 0); ok && len(port.Names) > 1 {
			return true
		}
	}
	return false
}

func sortedResults(g *ir.Graph, byProducer bool) []*ir.Node {
	nodes := make([]*ir.Node, len(g.Results))
	for i, id := range g.Results {
		nodes[i] = g.Node(id)
	}
	key := func(n *ir.Node) string {
		if byProducer {
			if p := g.Producer(n, 0); p != nil {
				return p.Name
			}
		}
		return n.Name
	}
	slices.SortStableFunc(nodes, func(x, y *ir.Node) int {
		return strings.Compare(key(x), key(y))
	})
	return nodes
}

// pairSinks matches stateful sinks across graphs.
//
// A single sink per side is paired directly. With several, every sink must
// write a variable and is matched by identical variable id first, then by
// substring containment of the ids among sinks not yet matched. Containment
// tolerates decorated ids but is ambiguous when one id is contained in two
// others; the first unmatched candidate in sink order wins.
func pairSinks(a, b *ir.Graph) ([]nodePair, Result) {
	if len(a.Sinks) == 0 {
		return nil, OK("")
	}
	if len(a.Sinks) == 1 {
		return []nodePair{{a.Node(a.Sinks[0]), b.Node(b.Sinks[0])}}, OK("")
	}

	candidates := make([]*ir.Node, 0, len(b.Sinks))
	for _, id := range b.Sinks {
		n := b.Node(id)
		if !n.IsVariableSink() {
			return nil, Failf(KindContract, "Sink node %s is not a variable", n)
		}
		candidates = append(candidates, n)
	}

	used := make([]bool, len(candidates))
	pairs := make([]nodePair, 0, len(a.Sinks))
	for _, id := range a.Sinks {
		n := a.Node(id)
		if !n.IsVariableSink() {
			return nil, Failf(KindContract, "Sink node %s is not a variable", n)
		}
		match := findSink(n.Variable.ID, candidates, used, func(x, y string) bool { return x == y })
		if match < 0 {
			match = findSink(n.Variable.ID, candidates, used, func(x, y string) bool {
				return strings.Contains(x, y) || strings.Contains(y, x)
			})
		}
		if match < 0 {
			return nil, Failf(KindContract, "No suitable sink is found for %s", n)
		}
		used[match] = true
		pairs = append(pairs, nodePair{n, candidates[match]})
	}
	return pairs, OK("")
}

func findSink(id string, candidates []*ir.Node, used []bool, related func(x, y string) bool) int {
	for i, c := range candidates {
		if !used[i] && related(id, c.Variable.ID) {
			return i
		}
	}
	return -1
}
