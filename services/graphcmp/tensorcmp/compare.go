// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package tensorcmp

import (
	"fmt"
	"math"
)

// Compare checks actual against expected element by element.
//
// Description:
//
//	For each element the absolute difference is checked first: when
//	absThreshold > 0 and the difference exceeds it, the comparison fails.
//	A difference within relThreshold passes outright. Otherwise the
//	relative difference |a-e| / max(|a|,|e|) must be within relThreshold.
//	An element that is NaN on exactly one side fails; NaN on both sides
//	passes.
//
// Inputs:
//
//	expected - Reference tensor.
//	actual - Tensor under test. Its element type may differ.
//	absThreshold - Absolute threshold. Disabled when <= 0.
//	relThreshold - Relative threshold.
//
// Outputs:
//
//	error - nil on success, ErrSizeMismatch when element counts differ, or a
//	*MismatchError for the first failing element.
func Compare(expected, actual Tensor, absThreshold, relThreshold float64) error {
	if expected.Len() != actual.Len() {
		return fmt.Errorf("%w: expected %s, actual %s", ErrSizeMismatch, expected, actual)
	}
	want, err := expected.Values()
	if err != nil {
		return fmt.Errorf("expected: %w", err)
	}
	got, err := actual.Values()
	if err != nil {
		return fmt.Errorf("actual: %w", err)
	}
	return CompareValues(want, got, absThreshold, relThreshold)
}

// CompareValues applies the Compare rules to decoded values.
func CompareValues(expected, actual []float64, absThreshold, relThreshold float64) error {
	if len(expected) != len(actual) {
		return fmt.Errorf("%w: %d and %d elements", ErrSizeMismatch, len(expected), len(actual))
	}
	for i, ref := range expected {
		res := actual[i]
		diff := math.Abs(res - ref)
		if absThreshold > 0 && diff > absThreshold {
			return &MismatchError{Index: i, Expected: ref, Actual: res, Threshold: absThreshold, Absolute: true}
		}
		if diff <= relThreshold {
			continue
		}
		largest := math.Max(math.Abs(res), math.Abs(ref))
		rel := diff / largest
		if largest == 0 || rel > relThreshold || math.IsNaN(res) != math.IsNaN(ref) {
			return &MismatchError{Index: i, Expected: ref, Actual: res, Threshold: relThreshold}
		}
	}
	return nil
}
