// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_HasNoOptionalChecks(t *testing.T) {
	p := Default()
	for _, of := range orderedFlags {
		assert.False(t, p.Has(of.flag), of.name)
	}
	assert.Equal(t, "default", p.String())
}

func TestPolicy_WithIsCopy(t *testing.T) {
	base := New(Precisions)
	extended := base.With(Attributes)

	assert.False(t, base.Has(Attributes))
	assert.True(t, extended.Has(Attributes))
	assert.True(t, extended.Has(Precisions))
	assert.False(t, extended.Without(Precisions).Has(Precisions))
}

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		input []string
		want  Policy
	}{
		{"empty", nil, Default()},
		{"single", []string{"names"}, New(Names)},
		{"comma list", []string{"precisions, tensor-names"}, New(Precisions, TensorNames)},
		{"multiple args", []string{"attributes", "CONST_VALUES"}, New(Attributes, ConstValues)},
		{"all", []string{"all"}, All()},
		{"default keyword", []string{"default"}, Default()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.input...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParse_UnknownFlag(t *testing.T) {
	_, err := Parse("names,bogus")
	assert.ErrorIs(t, err, ErrUnknownFlag)
}

func TestPolicy_String(t *testing.T) {
	p := New(Attributes, Names)
	assert.Equal(t, "names,attributes", p.String())

	again, err := Parse(p.String())
	require.NoError(t, err)
	assert.Equal(t, p, again)
}

func TestAll_ExcludesAccuracy(t *testing.T) {
	assert.False(t, All().Has(Accuracy))
	assert.Len(t, FlagNames(), 7)
}
