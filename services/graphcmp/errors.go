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

import "errors"

var (
	// ErrEmptyBatch indicates a batch request with no pairs.
	ErrEmptyBatch = errors.New("batch has no pairs")

	// ErrBatchTooLarge indicates a batch exceeding the configured limit.
	ErrBatchTooLarge = errors.New("batch exceeds the pair limit")

	// ErrInvalidChecks indicates an unknown policy flag in a request.
	ErrInvalidChecks = errors.New("invalid checks")

	// ErrInvalidGraph indicates a graph document that failed to build.
	ErrInvalidGraph = errors.New("invalid graph")

	// ErrAccuracyCheck indicates the accuracy check could not run to a
	// verdict, as opposed to producing mismatching outputs.
	ErrAccuracyCheck = errors.New("accuracy check failed")
)
