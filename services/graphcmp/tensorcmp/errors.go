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
	"errors"
	"fmt"
)

var (
	// ErrSizeMismatch indicates the tensors hold different element counts.
	ErrSizeMismatch = errors.New("tensor sizes differ")

	// ErrShortBuffer indicates the payload is smaller than the shape requires.
	ErrShortBuffer = errors.New("tensor payload too short")

	// ErrUnsupportedType indicates an element type with no numeric decoding.
	ErrUnsupportedType = errors.New("unsupported element type")

	// ErrValueMismatch indicates a value outside the comparison thresholds.
	ErrValueMismatch = errors.New("tensor values differ")
)

// MismatchError describes the first element outside the thresholds.
type MismatchError struct {
	Index     int
	Expected  float64
	Actual    float64
	Threshold float64
	// Absolute is true when the absolute threshold was exceeded, false for
	// the relative check.
	Absolute bool
}

// Error implements error.
func (e *MismatchError) Error() string {
	check := "Relative"
	label := "threshold"
	if e.Absolute {
		check = "Absolute"
		label = "absolute threshold"
	}
	return fmt.Sprintf("%s comparison of values expected: %g and actual: %g at index %d with %s %g failed",
		check, e.Expected, e.Actual, e.Index, label, e.Threshold)
}

// Unwrap returns ErrValueMismatch.
func (e *MismatchError) Unwrap() error {
	return ErrValueMismatch
}
