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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/graphcmp/services/graphcmp/policy"
)

func TestCompareBatch(t *testing.T) {
	add := buildAdd(t, addSpec{})
	mul := buildAdd(t, addSpec{typ: mulType})
	loop := buildLoop(t, loopSpec{iterations: 4, sliceWidth: 8})

	pairs := []Pair{
		{ID: "same", Reference: add, Candidate: buildAdd(t, addSpec{})},
		{ID: "different", Reference: add, Candidate: mul},
		{Reference: loop, Candidate: buildLoop(t, loopSpec{iterations: 4, sliceWidth: 8, reorder: true})},
		{ID: "nil", Reference: add},
	}

	c := New(policy.All())
	out, err := c.CompareBatch(context.Background(), pairs, 2)
	require.NoError(t, err)
	require.Len(t, out, len(pairs))

	assert.Equal(t, "same", out[0].ID)
	assert.True(t, out[0].Result.Valid, out[0].Result.Message)

	assert.Equal(t, "different", out[1].ID)
	assert.False(t, out[1].Result.Valid)
	assert.Equal(t, KindStructural, out[1].Result.Kind)

	assert.NotEmpty(t, out[2].ID)
	assert.True(t, out[2].Result.Valid, out[2].Result.Message)

	assert.Equal(t, KindContract, out[3].Result.Kind)
}

func TestCompareBatch_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	g := buildAdd(t, addSpec{})
	_, err := New(policy.Default()).CompareBatch(ctx, []Pair{{Reference: g, Candidate: g}}, 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCompareBatch_Empty(t *testing.T) {
	out, err := New(policy.Default()).CompareBatch(context.Background(), nil, 0)
	require.NoError(t, err)
	assert.Empty(t, out)
}
