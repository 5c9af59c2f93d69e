// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package accuracy runs two graphs on identical random inputs and compares
// their outputs numerically.
//
// Execution is delegated to an Executor. Elementwise is a small reference
// executor for graphs made of parameters, constants and elementwise
// arithmetic.
package accuracy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/graphcmp/services/graphcmp/ir"
	"github.com/AleutianAI/graphcmp/services/graphcmp/tensorcmp"
)

var tracer = otel.Tracer("aleutian.graphcmp.accuracy")

var (
	// ErrNoExecutor indicates an accuracy check was requested without an
	// executor.
	ErrNoExecutor = errors.New("no executor configured")

	// ErrParameterMismatch indicates the graphs cannot be fed the same inputs.
	ErrParameterMismatch = errors.New("parameters differ")

	// ErrOutputMismatch indicates the graphs produced different output counts.
	ErrOutputMismatch = errors.New("output counts differ")

	// ErrUnsupportedOperation indicates the executor cannot evaluate a node.
	ErrUnsupportedOperation = errors.New("unsupported operation")
)

// Executor runs a graph on one input tensor per parameter and returns one
// tensor per result, both in declaration order.
type Executor interface {
	Execute(ctx context.Context, g *ir.Graph, inputs []tensorcmp.Tensor) ([]tensorcmp.Tensor, error)
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, g *ir.Graph, inputs []tensorcmp.Tensor) ([]tensorcmp.Tensor, error)

// Execute calls f.
func (f ExecutorFunc) Execute(ctx context.Context, g *ir.Graph, inputs []tensorcmp.Tensor) ([]tensorcmp.Tensor, error) {
	return f(ctx, g, inputs)
}

// Config holds the thresholds and input seed of a check.
type Config struct {
	// AbsThreshold is the absolute threshold. Disabled when <= 0.
	AbsThreshold float64 `yaml:"abs_threshold" json:"abs_threshold"`
	// RelThreshold is the relative threshold.
	RelThreshold float64 `yaml:"rel_threshold" json:"rel_threshold" validate:"gte=0"`
	// Seed makes generated inputs reproducible.
	Seed uint64 `yaml:"seed" json:"seed"`
}

// DefaultConfig returns a relative threshold of 1e-4 and seed 1.
func DefaultConfig() Config {
	return Config{RelThreshold: 1e-4, Seed: 1}
}

// Report summarizes a finished check.
type Report struct {
	Skipped bool   `json:"skipped"`
	Reason  string `json:"reason,omitempty"`
	Outputs int    `json:"outputs"`
}

// Check runs ref and cur on the same generated inputs and compares outputs.
//
// Description:
//
//	Graphs with a dynamic parameter are skipped. Otherwise one input tensor
//	is generated per parameter from cfg.Seed, encoded for each graph's
//	parameter type, and both graphs run concurrently. Outputs are compared
//	pairwise in result order with tensorcmp.Compare.
//
// Inputs:
//
//	ctx - Cancels execution.
//	exec - Graph executor.
//	ref - Reference graph.
//	cur - Candidate graph.
//	cfg - Thresholds and seed.
//
// Outputs:
//
//	Report - Outputs compared, or Skipped with a reason.
//	error - Execution failure, count mismatch, or the first output mismatch.
//
// Thread Safety: Safe for concurrent use if exec is.
func Check(ctx context.Context, exec Executor, ref, cur *ir.Graph, cfg Config) (Report, error) {
	ctx, span := tracer.Start(ctx, "accuracy.Check")
	defer span.End()

	if exec == nil {
		return Report{}, ErrNoExecutor
	}
	if ref.IsDynamic() || cur.IsDynamic() {
		span.SetAttributes(attribute.Bool("accuracy.skipped", true))
		return Report{Skipped: true, Reason: "graph has dynamic parameters"}, nil
	}

	refIn, curIn, err := GenerateInputs(ref, cur, cfg.Seed)
	if err != nil {
		return Report{}, err
	}

	var refOut, curOut []tensorcmp.Tensor
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		out, err := exec.Execute(gctx, ref, refIn)
		if err != nil {
			return fmt.Errorf("reference %q: %w", ref.Name, err)
		}
		refOut = out
		return nil
	})
	g.Go(func() error {
		out, err := exec.Execute(gctx, cur, curIn)
		if err != nil {
			return fmt.Errorf("candidate %q: %w", cur.Name, err)
		}
		curOut = out
		return nil
	})
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "execution failed")
		return Report{}, err
	}

	if len(refOut) != len(curOut) {
		return Report{}, fmt.Errorf("%w: %d and %d", ErrOutputMismatch, len(refOut), len(curOut))
	}
	for i := range refOut {
		if err := tensorcmp.Compare(refOut[i], curOut[i], cfg.AbsThreshold, cfg.RelThreshold); err != nil {
			span.SetStatus(codes.Error, "output mismatch")
			slog.Debug("accuracy mismatch", "output", i, "error", err)
			return Report{Outputs: len(refOut)}, fmt.Errorf("output %d: %w", i, err)
		}
	}
	span.SetAttributes(attribute.Int("accuracy.outputs", len(refOut)))
	return Report{Outputs: len(refOut)}, nil
}

// GenerateInputs returns one tensor per parameter for each graph.
//
// Values depend only on seed and the parameter index: floats are uniform in
// [0, 10), integers in [0, 10), booleans and u1 in {0, 1}. The same values
// are encoded for the reference and candidate parameter types, so both
// graphs see the same data even when precisions differ.
func GenerateInputs(ref, cur *ir.Graph, seed uint64) ([]tensorcmp.Tensor, []tensorcmp.Tensor, error) {
	if len(ref.Parameters) != len(cur.Parameters) {
		return nil, nil, fmt.Errorf("%w: %d and %d parameters", ErrParameterMismatch, len(ref.Parameters), len(cur.Parameters))
	}
	refIn := make([]tensorcmp.Tensor, len(ref.Parameters))
	curIn := make([]tensorcmp.Tensor, len(cur.Parameters))
	for i := range ref.Parameters {
		rp, cp := ref.Parameter(i).Outputs[0], cur.Parameter(i).Outputs[0]
		if rp.Shape.ElementCount() != cp.Shape.ElementCount() {
			return nil, nil, fmt.Errorf("%w: parameter %d has shape %s and %s", ErrParameterMismatch, i, rp.Shape, cp.Shape)
		}

		rng := rand.New(rand.NewPCG(seed, uint64(i)))
		values := make([]float64, rp.Shape.ElementCount())
		for j := range values {
			values[j] = randomValue(rng, rp.ElementType)
		}

		var err error
		if refIn[i], err = tensorcmp.FromValues(rp.ElementType, StaticDims(rp.Shape), values); err != nil {
			return nil, nil, fmt.Errorf("parameter %d: %w", i, err)
		}
		if curIn[i], err = tensorcmp.FromValues(cp.ElementType, StaticDims(cp.Shape), values); err != nil {
			return nil, nil, fmt.Errorf("parameter %d: %w", i, err)
		}
	}
	return refIn, curIn, nil
}

func randomValue(rng *rand.Rand, et ir.ElementType) float64 {
	switch {
	case et == ir.Boolean || et == ir.U1:
		return float64(rng.IntN(2))
	case et.IsFloat():
		return rng.Float64() * 10
	default:
		return float64(rng.IntN(10))
	}
}

// StaticDims returns the dimension lengths of a static shape.
func StaticDims(s ir.Shape) []int64 {
	dims := make([]int64, len(s.Dims))
	for i, d := range s.Dims {
		dims[i] = d.Length()
	}
	return dims
}
