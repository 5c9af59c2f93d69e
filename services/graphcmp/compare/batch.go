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
	"runtime"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/graphcmp/services/graphcmp/ir"
)

// Pair is one comparison in a batch.
type Pair struct {
	// ID labels the pair in the output. Generated when empty.
	ID        string
	Reference *ir.Graph
	Candidate *ir.Graph
}

// PairResult is the verdict for one Pair.
type PairResult struct {
	ID     string `json:"id"`
	Result Result `json:"result"`
}

// CompareBatch compares independent pairs concurrently.
//
// Description:
//
//	Runs up to limit comparisons at once (GOMAXPROCS when limit <= 0).
//	Pairs must not share graphs that are being mutated. Cancelling ctx stops
//	pairs that have not started yet; started pairs run to a verdict.
//
// Inputs:
//
//	ctx - Cancellation for pairs not yet started.
//	pairs - Graph pairs to compare.
//	limit - Maximum concurrent comparisons.
//
// Outputs:
//
//	[]PairResult - One entry per pair, in input order.
//	error - ctx.Err() if the batch was cancelled before all pairs started.
//
// Thread Safety: Safe for concurrent use.
func (c *Comparator) CompareBatch(ctx context.Context, pairs []Pair, limit int) ([]PairResult, error) {
	ctx, span := tracer.Start(ctx, "Comparator.CompareBatch")
	defer span.End()
	recordBatchMetrics(ctx, len(pairs))

	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}
	out := make([]PairResult, len(pairs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, p := range pairs {
		id := p.ID
		if id == "" {
			id = uuid.NewString()
		}
		out[i].ID = id
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out[i].Result = c.Compare(gctx, p.Reference, p.Candidate)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return out, err
	}
	return out, nil
}
