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
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/graphcmp/services/graphcmp/ir"
	"github.com/AleutianAI/graphcmp/services/graphcmp/policy"
)

// Package-level tracer and meter for comparisons.
var (
	tracer = otel.Tracer("aleutian.graphcmp")
	meter  = otel.Meter("aleutian.graphcmp")
)

// Metrics for comparison operations.
var (
	compareLatency metric.Float64Histogram
	compareTotal   metric.Int64Counter
	nodePairs      metric.Int64Histogram
	batchSize      metric.Int64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		compareLatency, err = meter.Float64Histogram(
			"graphcmp_compare_duration_seconds",
			metric.WithDescription("Duration of graph comparisons"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		compareTotal, err = meter.Int64Counter(
			"graphcmp_compare_total",
			metric.WithDescription("Total number of graph comparisons by verdict"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		nodePairs, err = meter.Int64Histogram(
			"graphcmp_node_pairs",
			metric.WithDescription("Node pairs compared per comparison"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		batchSize, err = meter.Int64Histogram(
			"graphcmp_batch_size",
			metric.WithDescription("Graph pairs per batch comparison"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// recordCompareMetrics records metrics for one comparison.
func recordCompareMetrics(ctx context.Context, duration time.Duration, res Result) {
	if err := initMetrics(); err != nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.Bool("valid", res.Valid),
		attribute.String("kind", res.Kind.String()),
	)
	compareLatency.Record(ctx, duration.Seconds(), attrs)
	compareTotal.Add(ctx, 1, attrs)
	nodePairs.Record(ctx, int64(res.NodePairs))
}

// recordBatchMetrics records the size of a batch.
func recordBatchMetrics(ctx context.Context, size int) {
	if err := initMetrics(); err != nil {
		return
	}
	batchSize.Record(ctx, int64(size))
}

// startCompareSpan creates a span for one comparison.
func startCompareSpan(ctx context.Context, p policy.Policy, a, b *ir.Graph) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{attribute.String("graphcmp.policy", p.String())}
	if a != nil {
		attrs = append(attrs, attribute.String("graphcmp.reference", a.Name), attribute.Int("graphcmp.reference_nodes", a.Len()))
	}
	if b != nil {
		attrs = append(attrs, attribute.String("graphcmp.candidate", b.Name), attribute.Int("graphcmp.candidate_nodes", b.Len()))
	}
	return tracer.Start(ctx, "Comparator.Compare", trace.WithAttributes(attrs...))
}

// setCompareSpanResult sets the verdict attributes on a comparison span.
func setCompareSpanResult(span trace.Span, res Result) {
	span.SetAttributes(
		attribute.Bool("graphcmp.valid", res.Valid),
		attribute.String("graphcmp.kind", res.Kind.String()),
		attribute.Int("graphcmp.node_pairs", res.NodePairs),
	)
	if res.Valid {
		span.SetStatus(codes.Ok, "")
	} else {
		span.SetStatus(codes.Error, firstLine(res.Message))
	}
}
