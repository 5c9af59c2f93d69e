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
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/AleutianAI/graphcmp/services/graphcmp/ir"
	"github.com/AleutianAI/graphcmp/services/graphcmp/policy"
)

// Comparator compares graph pairs under a fixed policy.
//
// Thread Safety: Safe for concurrent use.
type Comparator struct {
	policy policy.Policy
	logger *slog.Logger
}

// Option configures a Comparator.
type Option func(*Comparator)

// WithLogger sets the logger used for debug traces and warnings.
func WithLogger(l *slog.Logger) Option {
	return func(c *Comparator) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates a comparator for the given policy.
//
// Example:
//
//	c := compare.New(policy.New(policy.Precisions, policy.Attributes))
//	res := c.Compare(ctx, reference, candidate)
//	if !res.Valid {
//	    return res.Err()
//	}
func New(p policy.Policy, opts ...Option) *Comparator {
	c := &Comparator{policy: p, logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Policy returns the comparator's policy.
func (c *Comparator) Policy() policy.Policy {
	return c.policy
}

// Compare is a shorthand for New(p).Compare(context.Background(), a, b).
func Compare(a, b *ir.Graph, p policy.Policy) Result {
	return New(p).Compare(context.Background(), a, b)
}

// Compare decides whether a and b are equivalent.
//
// Description:
//
//	Anchors both graphs at their results and stateful sinks, walks matched
//	producer pairs backward and compares each pair once. The context is used
//	for tracing only: a started comparison always runs to a verdict.
//
// Inputs:
//
//	ctx - Parent context for the comparison span.
//	a - Reference graph.
//	b - Candidate graph.
//
// Outputs:
//
//	Result - Valid, or the first structural cause, or all attribute
//	diagnostics.
//
// Thread Safety: Safe for concurrent use on graphs that are not being
// mutated.
func (c *Comparator) Compare(ctx context.Context, a, b *ir.Graph) Result {
	ctx, span := startCompareSpan(ctx, c.policy, a, b)
	defer span.End()
	start := time.Now()

	var res Result
	if a == nil || b == nil {
		res = Failf(KindContract, "cannot compare nil graph")
	} else {
		s := c.newSession()
		res = s.compareGraphs(a, b)
		res.NodePairs = s.pairs
	}

	setCompareSpanResult(span, res)
	recordCompareMetrics(ctx, time.Since(start), res)
	if !res.Valid {
		c.logger.Debug("graphs differ",
			"kind", res.Kind.String(),
			"node_pairs", res.NodePairs,
			"message", firstLine(res.Message))
	}
	return res
}

// CheckConsistency validates every control-flow node of g on its own.
//
// Description:
//
//	Runs the single-side port-mapping checks of the subgraph matcher
//	(descriptor kinds, slice and concat scaling, back-edge compatibility,
//	loop special ports) on g and all nested bodies, with no second graph.
//
// Outputs:
//
//	Result - Valid, or an internal-consistency failure.
func (c *Comparator) CheckConsistency(ctx context.Context, g *ir.Graph) Result {
	_, span := tracer.Start(ctx, "Comparator.CheckConsistency")
	defer span.End()
	if g == nil {
		return Failf(KindContract, "cannot check nil graph")
	}
	res := c.newSession().checkGraph(g)
	span.SetAttributes(attribute.Bool("graphcmp.valid", res.Valid))
	return res
}

// session is the traversal state of one top-level comparison. Nested
// walks share the counters and warnings but keep their own visited sets.
type session struct {
	policy   policy.Policy
	logger   *slog.Logger
	pairs    int
	warnings []string
}

func (c *Comparator) newSession() *session {
	return &session{policy: c.policy, logger: c.logger}
}

func (s *session) warn(msg string) {
	s.warnings = append(s.warnings, msg)
	s.logger.Warn("comparison warning", "detail", msg)
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}
