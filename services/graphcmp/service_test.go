// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graphcmp

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/graphcmp/services/graphcmp/accuracy"
	"github.com/AleutianAI/graphcmp/services/graphcmp/compare"
	"github.com/AleutianAI/graphcmp/services/graphcmp/config"
	"github.com/AleutianAI/graphcmp/services/graphcmp/ir"
	"github.com/AleutianAI/graphcmp/services/graphcmp/policy"
	"github.com/AleutianAI/graphcmp/services/graphcmp/tensorcmp"
)

var errExecutorDown = errors.New("executor down")

func TestServiceConfigFrom(t *testing.T) {
	cfg := config.Default()
	cfg.Compare.Checks = []string{"names", "attributes"}
	cfg.Server.MaxNodes = 100

	sc, err := ServiceConfigFrom(cfg)
	require.NoError(t, err)
	assert.Equal(t, policy.New(policy.Names, policy.Attributes), sc.Policy)
	assert.Equal(t, 100, sc.MaxNodes)
	assert.Equal(t, 64, sc.MaxBatch)
	assert.Equal(t, 4, sc.Concurrency)
	assert.Equal(t, accuracy.DefaultConfig(), sc.Accuracy)

	cfg.Compare.Checks = []string{"bogus"}
	_, err = ServiceConfigFrom(cfg)
	assert.ErrorIs(t, err, ErrInvalidChecks)
}

func TestService_ResolvePolicy(t *testing.T) {
	svc := NewService(ServiceConfig{Policy: policy.New(policy.Precisions)})

	p, err := svc.ResolvePolicy(nil)
	require.NoError(t, err)
	assert.Equal(t, policy.New(policy.Precisions), p)

	p, err = svc.ResolvePolicy([]string{"names,tensor-names"})
	require.NoError(t, err)
	assert.Equal(t, policy.New(policy.Names, policy.TensorNames), p)

	_, err = svc.ResolvePolicy([]string{"bogus"})
	assert.ErrorIs(t, err, ErrInvalidChecks)
	assert.ErrorIs(t, err, policy.ErrUnknownFlag)
}

func TestService_BuildGraph_NodeLimit(t *testing.T) {
	svc := NewService(ServiceConfig{MaxNodes: 2})
	_, err := svc.BuildGraph(addConstDoc(t, "a", 1))
	assert.ErrorIs(t, err, ErrInvalidGraph)
	assert.ErrorIs(t, err, ir.ErrMaxNodesExceeded)

	svc = NewService(ServiceConfig{MaxNodes: 4})
	g, err := svc.BuildGraph(addConstDoc(t, "a", 1))
	require.NoError(t, err)
	assert.Equal(t, 4, g.Len())
}

func TestService_Compare(t *testing.T) {
	ref := mustBuild(t, addConstDoc(t, "ref", 1))
	same := mustBuild(t, addConstDoc(t, "same", 1))
	shifted := mustBuild(t, addConstDoc(t, "shifted", 2))

	tests := []struct {
		name      string
		cand      *ir.Graph
		policy    policy.Policy
		match     bool
		valid     bool
		accuracy  bool
		accPassed bool
	}{
		{"structural only", shifted, policy.Default(), true, true, false, false},
		{"const values", shifted, policy.New(policy.ConstValues), false, false, false, false},
		{"accuracy passes", same, policy.New(policy.Accuracy), true, true, true, true},
		{"accuracy mismatch", shifted, policy.New(policy.Accuracy), false, true, true, false},
		{"structural mismatch skips accuracy", shifted, policy.New(policy.ConstValues, policy.Accuracy), false, false, false, false},
	}

	svc := NewService(DefaultServiceConfig())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := svc.Compare(context.Background(), ref, tt.cand, tt.policy)
			require.NoError(t, err)
			assert.Equal(t, tt.match, v.Match)
			assert.Equal(t, tt.valid, v.Result.Valid)
			if !tt.accuracy {
				assert.Nil(t, v.Accuracy)
				return
			}
			require.NotNil(t, v.Accuracy)
			assert.Equal(t, tt.accPassed, v.Accuracy.Passed)
			assert.Equal(t, 1, v.Accuracy.Outputs)
			if !tt.accPassed {
				assert.NotEmpty(t, v.Accuracy.Error)
			}
		})
	}
}

func TestService_Compare_AccuracyThresholdOverride(t *testing.T) {
	ref := mustBuild(t, addConstDoc(t, "ref", 1))
	cand := mustBuild(t, addConstDoc(t, "cand", 1.5))
	svc := NewService(DefaultServiceConfig())

	v, err := svc.Compare(context.Background(), ref, cand, policy.New(policy.Accuracy),
		WithAccuracyConfig(accuracy.Config{RelThreshold: 0.5, Seed: 7}))
	require.NoError(t, err)
	assert.True(t, v.Match)
	require.NotNil(t, v.Accuracy)
	assert.True(t, v.Accuracy.Passed)
}

func TestService_Compare_AccuracyCannotRun(t *testing.T) {
	g := mustBuild(t, unaryDoc(t, "Softmax"))
	svc := NewService(DefaultServiceConfig())

	v, err := svc.Compare(context.Background(), g, g, policy.New(policy.Accuracy))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAccuracyCheck)
	assert.ErrorIs(t, err, accuracy.ErrUnsupportedOperation)
	assert.True(t, v.Result.Valid)

	failing := accuracy.ExecutorFunc(func(context.Context, *ir.Graph, []tensorcmp.Tensor) ([]tensorcmp.Tensor, error) {
		return nil, errExecutorDown
	})
	svc = NewService(DefaultServiceConfig(), WithExecutor(failing))
	_, err = svc.Compare(context.Background(), g, g, policy.New(policy.Accuracy))
	assert.ErrorIs(t, err, ErrAccuracyCheck)
	assert.ErrorIs(t, err, errExecutorDown)
}

func TestService_CompareBatch_Limits(t *testing.T) {
	svc := NewService(ServiceConfig{MaxBatch: 1})
	_, err := svc.CompareBatch(context.Background(), nil, policy.Default())
	assert.ErrorIs(t, err, ErrEmptyBatch)

	g := mustBuild(t, addConstDoc(t, "a", 1))
	pairs := []compare.Pair{{Reference: g, Candidate: g}, {Reference: g, Candidate: g}}
	_, err = svc.CompareBatch(context.Background(), pairs, policy.Default())
	assert.ErrorIs(t, err, ErrBatchTooLarge)
}

func TestService_CompareBatch(t *testing.T) {
	ref := mustBuild(t, addConstDoc(t, "ref", 1))
	same := mustBuild(t, addConstDoc(t, "same", 1))
	shifted := mustBuild(t, addConstDoc(t, "shifted", 2))
	broken := mustBuild(t, addConstDoc(t, "broken", 1))
	softmax := mustBuild(t, unaryDoc(t, "Softmax"))
	relu := mustBuild(t, unaryDoc(t, "Relu"))

	exec := accuracy.ExecutorFunc(func(ctx context.Context, g *ir.Graph, in []tensorcmp.Tensor) ([]tensorcmp.Tensor, error) {
		if g.Name == "broken" {
			return nil, errExecutorDown
		}
		return accuracy.Elementwise{}.Execute(ctx, g, in)
	})
	svc := NewService(ServiceConfig{Concurrency: 2}, WithExecutor(exec))

	pairs := []compare.Pair{
		{ID: "same", Reference: ref, Candidate: same},
		{ID: "shifted", Reference: ref, Candidate: shifted},
		{ID: "broken", Reference: ref, Candidate: broken},
		{ID: "structural", Reference: softmax, Candidate: relu},
		{Reference: ref, Candidate: ref},
	}
	out, err := svc.CompareBatch(context.Background(), pairs, policy.New(policy.Accuracy))
	require.NoError(t, err)
	require.Len(t, out, len(pairs))

	assert.Equal(t, "same", out[0].ID)
	assert.True(t, out[0].Verdict.Match)
	require.NotNil(t, out[0].Verdict.Accuracy)
	assert.True(t, out[0].Verdict.Accuracy.Passed)

	assert.False(t, out[1].Verdict.Match)
	assert.True(t, out[1].Verdict.Result.Valid)
	require.NotNil(t, out[1].Verdict.Accuracy)
	assert.False(t, out[1].Verdict.Accuracy.Passed)

	assert.False(t, out[2].Verdict.Match)
	assert.Contains(t, out[2].Error, errExecutorDown.Error())

	assert.False(t, out[3].Verdict.Match)
	assert.Equal(t, compare.KindStructural, out[3].Verdict.Result.Kind)
	assert.Nil(t, out[3].Verdict.Accuracy)

	assert.NotEmpty(t, out[4].ID)
	assert.True(t, out[4].Verdict.Match)

	matched, mismatched, failed := Tally(out)
	assert.Equal(t, 2, matched)
	assert.Equal(t, 2, mismatched)
	assert.Equal(t, 1, failed)
}

func TestService_CompareBatch_Cancelled(t *testing.T) {
	g := mustBuild(t, addConstDoc(t, "a", 1))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	svc := NewService(ServiceConfig{Concurrency: 1})
	_, err := svc.CompareBatch(ctx, []compare.Pair{{Reference: g, Candidate: g}}, policy.Default())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFlagDescription(t *testing.T) {
	for _, name := range policy.FlagNames() {
		f, err := policy.ParseFlag(name)
		require.NoError(t, err)
		assert.NotEmpty(t, FlagDescription(f), name)
	}
}
