// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package graphcmp is the graph comparison service.
//
// Service wraps the comparator with configured limits, policy resolution
// and the optional accuracy check. Handlers expose it over HTTP:
//
//	POST /v1/graphcmp/compare        - Compare one graph pair
//	POST /v1/graphcmp/compare/batch  - Compare many pairs concurrently
//	GET  /v1/graphcmp/policy         - List comparison flags
//	GET  /v1/graphcmp/health         - Health check
//	GET  /metrics                    - Prometheus metrics
package graphcmp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/graphcmp/services/graphcmp/accuracy"
	"github.com/AleutianAI/graphcmp/services/graphcmp/compare"
	"github.com/AleutianAI/graphcmp/services/graphcmp/config"
	"github.com/AleutianAI/graphcmp/services/graphcmp/document"
	"github.com/AleutianAI/graphcmp/services/graphcmp/ir"
	"github.com/AleutianAI/graphcmp/services/graphcmp/policy"
	"github.com/AleutianAI/graphcmp/services/graphcmp/telemetry"
	"github.com/AleutianAI/graphcmp/services/graphcmp/tensorcmp"
)

// ServiceVersion is the graphcmp service version.
const ServiceVersion = "0.1.0"

const tracerName = "aleutian.graphcmp.service"

// =============================================================================
// Configuration
// =============================================================================

// ServiceConfig holds the limits and defaults of a Service.
type ServiceConfig struct {
	// Policy is used when a request names no checks.
	Policy policy.Policy

	// Accuracy holds the default thresholds and seed of the accuracy check.
	Accuracy accuracy.Config

	// MaxNodes caps each built graph. Zero means unlimited.
	MaxNodes int

	// MaxBatch caps the pairs of one batch. Zero means unlimited.
	MaxBatch int

	// Concurrency bounds the pairs compared at once.
	Concurrency int
}

// DefaultServiceConfig returns the service defaults of config.Default.
func DefaultServiceConfig() ServiceConfig {
	cfg, _ := ServiceConfigFrom(config.Default())
	return cfg
}

// ServiceConfigFrom extracts the service settings from a loaded
// configuration.
func ServiceConfigFrom(c config.Config) (ServiceConfig, error) {
	p, err := c.Compare.Policy()
	if err != nil {
		return ServiceConfig{}, fmt.Errorf("%w: %w", ErrInvalidChecks, err)
	}
	return ServiceConfig{
		Policy:      p,
		Accuracy:    c.Accuracy,
		MaxNodes:    c.Server.MaxNodes,
		MaxBatch:    c.Server.MaxBatch,
		Concurrency: c.Server.Concurrency,
	}, nil
}

// =============================================================================
// Verdicts
// =============================================================================

// Verdict is the outcome of comparing one pair.
type Verdict struct {
	// Match is true when the structural result is valid and the accuracy
	// check, if requested, passed.
	Match    bool             `json:"match"`
	Result   compare.Result   `json:"result"`
	Accuracy *AccuracyVerdict `json:"accuracy,omitempty"`
}

// AccuracyVerdict is the outcome of the accuracy check.
type AccuracyVerdict struct {
	accuracy.Report
	Passed bool   `json:"passed"`
	Error  string `json:"error,omitempty"`
}

// PairVerdict is the outcome of one batch pair. Error is set when the pair
// could not reach a verdict.
type PairVerdict struct {
	ID      string  `json:"id"`
	Verdict Verdict `json:"verdict"`
	Error   string  `json:"error,omitempty"`
}

// =============================================================================
// Service
// =============================================================================

// Service compares graphs under a configured policy.
//
// Thread Safety: Safe for concurrent use.
type Service struct {
	cfg      ServiceConfig
	executor accuracy.Executor
	logger   *slog.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithExecutor sets the executor used by the accuracy check. The default
// is accuracy.Elementwise.
func WithExecutor(e accuracy.Executor) ServiceOption {
	return func(s *Service) {
		if e != nil {
			s.executor = e
		}
	}
}

// WithServiceLogger sets the logger passed to every comparator.
func WithServiceLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewService creates a Service.
func NewService(cfg ServiceConfig, opts ...ServiceOption) *Service {
	s := &Service{cfg: cfg, executor: accuracy.Elementwise{}, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Config returns the service configuration.
func (s *Service) Config() ServiceConfig {
	return s.cfg
}

// ResolvePolicy parses request checks, falling back to the configured
// policy when none are given.
func (s *Service) ResolvePolicy(checks []string) (policy.Policy, error) {
	if len(checks) == 0 {
		return s.cfg.Policy, nil
	}
	p, err := policy.Parse(checks...)
	if err != nil {
		return policy.Policy{}, fmt.Errorf("%w: %w", ErrInvalidChecks, err)
	}
	return p, nil
}

// BuildGraph converts a document into a graph under the node limit.
func (s *Service) BuildGraph(doc *document.Graph) (*ir.Graph, error) {
	var opts []ir.BuilderOption
	if s.cfg.MaxNodes > 0 {
		opts = append(opts, ir.WithMaxNodes(s.cfg.MaxNodes))
	}
	g, err := doc.Build(opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidGraph, err)
	}
	return g, nil
}

// CompareOption adjusts a single comparison.
type CompareOption func(*compareSettings)

type compareSettings struct {
	accuracy accuracy.Config
}

// WithAccuracyConfig overrides the accuracy thresholds and seed.
func WithAccuracyConfig(cfg accuracy.Config) CompareOption {
	return func(cs *compareSettings) { cs.accuracy = cfg }
}

// Compare compares ref and cand under p.
//
// Description:
//
//	Runs the structural comparison and, when p has policy.Accuracy and the
//	graphs match, the accuracy check. Mismatching outputs turn the verdict
//	into a mismatch; they are not errors.
//
// Inputs:
//
//	ctx - Tracing and cancellation of the accuracy check.
//	ref - Reference graph.
//	cand - Candidate graph.
//	p - Comparison policy.
//
// Outputs:
//
//	Verdict - The outcome.
//	error - ErrAccuracyCheck wrapping the cause when the accuracy check
//	could not run, or the context error.
func (s *Service) Compare(ctx context.Context, ref, cand *ir.Graph, p policy.Policy, opts ...CompareOption) (Verdict, error) {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "Service.Compare")
	defer span.End()
	span.SetAttributes(attribute.String("graphcmp.policy", p.String()))

	settings := s.settings(opts)
	res := compare.New(p, compare.WithLogger(s.logger)).Compare(ctx, ref, cand)
	v := Verdict{Match: res.Valid, Result: res}
	if !res.Valid || !p.Has(policy.Accuracy) {
		return v, nil
	}

	av, err := s.checkAccuracy(ctx, ref, cand, settings.accuracy)
	if err != nil {
		telemetry.RecordError(span, err)
		return v, err
	}
	v.Accuracy = av
	v.Match = av.Passed
	return v, nil
}

// CompareBatch compares pairs concurrently under p.
//
// Description:
//
//	Structural comparison runs through compare.Comparator.CompareBatch with
//	the configured concurrency. Pairs that match and request the accuracy
//	check are then checked with the same bound. An accuracy check that
//	cannot run marks only its own pair.
//
// Outputs:
//
//	[]PairVerdict - One entry per pair, in input order.
//	error - ErrEmptyBatch, ErrBatchTooLarge, or the context error.
func (s *Service) CompareBatch(ctx context.Context, pairs []compare.Pair, p policy.Policy, opts ...CompareOption) ([]PairVerdict, error) {
	if len(pairs) == 0 {
		return nil, ErrEmptyBatch
	}
	if s.cfg.MaxBatch > 0 && len(pairs) > s.cfg.MaxBatch {
		return nil, fmt.Errorf("%w: %d pairs, limit %d", ErrBatchTooLarge, len(pairs), s.cfg.MaxBatch)
	}

	ctx, span := telemetry.StartSpan(ctx, tracerName, "Service.CompareBatch")
	defer span.End()
	span.SetAttributes(
		attribute.String("graphcmp.policy", p.String()),
		attribute.Int("graphcmp.batch_size", len(pairs)),
	)

	start := time.Now()
	results, err := compare.New(p, compare.WithLogger(s.logger)).CompareBatch(ctx, pairs, s.cfg.Concurrency)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	out := make([]PairVerdict, len(results))
	for i, r := range results {
		out[i] = PairVerdict{ID: r.ID, Verdict: Verdict{Match: r.Result.Valid, Result: r.Result}}
	}

	if p.Has(policy.Accuracy) {
		settings := s.settings(opts)
		g, gctx := errgroup.WithContext(ctx)
		if s.cfg.Concurrency > 0 {
			g.SetLimit(s.cfg.Concurrency)
		}
		for i := range out {
			if !out[i].Verdict.Match {
				continue
			}
			g.Go(func() error {
				av, err := s.checkAccuracy(gctx, pairs[i].Reference, pairs[i].Candidate, settings.accuracy)
				if err != nil {
					if ctxErr := gctx.Err(); ctxErr != nil {
						return ctxErr
					}
					out[i].Error = err.Error()
					out[i].Verdict.Match = false
					return nil
				}
				out[i].Verdict.Accuracy = av
				out[i].Verdict.Match = av.Passed
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			telemetry.RecordError(span, err)
			return nil, err
		}
	}

	s.logger.Debug("batch compared", "pairs", len(pairs), "duration", time.Since(start))
	telemetry.SetSpanOK(span)
	return out, nil
}

func (s *Service) settings(opts []CompareOption) compareSettings {
	cs := compareSettings{accuracy: s.cfg.Accuracy}
	for _, opt := range opts {
		opt(&cs)
	}
	return cs
}

// checkAccuracy runs the accuracy check and separates output mismatches,
// which are verdicts, from failures to run.
func (s *Service) checkAccuracy(ctx context.Context, ref, cand *ir.Graph, cfg accuracy.Config) (*AccuracyVerdict, error) {
	report, err := accuracy.Check(ctx, s.executor, ref, cand, cfg)
	switch {
	case err == nil:
		return &AccuracyVerdict{Report: report, Passed: true}, nil
	case isOutputMismatch(err):
		return &AccuracyVerdict{Report: report, Error: err.Error()}, nil
	case ctx.Err() != nil:
		return nil, ctx.Err()
	default:
		return nil, fmt.Errorf("%w: %w", ErrAccuracyCheck, err)
	}
}

func isOutputMismatch(err error) bool {
	return errors.Is(err, tensorcmp.ErrValueMismatch) ||
		errors.Is(err, tensorcmp.ErrSizeMismatch) ||
		errors.Is(err, accuracy.ErrOutputMismatch) ||
		errors.Is(err, accuracy.ErrParameterMismatch)
}

// =============================================================================
// Flag descriptions
// =============================================================================

var flagDescriptions = map[policy.Flag]string{
	policy.Names:       "paired results come from nodes with the same name",
	policy.Precisions:  "input element types match",
	policy.ConstValues: "constant payloads are byte-identical",
	policy.TensorNames: "output tensor name sets match",
	policy.RuntimeKeys: "runtime metadata on nodes and ports matches",
	policy.Attributes:  "declared node attributes match",
	policy.Accuracy:    "both graphs produce the same outputs on random inputs",
}

// FlagDescription returns a one-line description of f.
func FlagDescription(f policy.Flag) string {
	return flagDescriptions[f]
}
