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
	"github.com/AleutianAI/graphcmp/services/graphcmp/accuracy"
	"github.com/AleutianAI/graphcmp/services/graphcmp/document"
)

// =============================================================================
// Requests
// =============================================================================

// CompareRequest is the body of POST /v1/graphcmp/compare.
type CompareRequest struct {
	// Reference is the graph the candidate is checked against.
	Reference *document.Graph `json:"reference" binding:"required"`

	// Candidate is the graph under test.
	Candidate *document.Graph `json:"candidate" binding:"required"`

	// Checks are policy flag names, "all" or "default". Empty uses the
	// service policy.
	Checks []string `json:"checks,omitempty"`

	// Accuracy overrides the accuracy thresholds and seed.
	Accuracy *accuracy.Config `json:"accuracy,omitempty"`
}

// BatchPair is one pair of a batch request.
type BatchPair struct {
	// ID labels the pair. Generated when empty.
	ID        string          `json:"id,omitempty"`
	Reference *document.Graph `json:"reference" binding:"required"`
	Candidate *document.Graph `json:"candidate" binding:"required"`
}

// BatchRequest is the body of POST /v1/graphcmp/compare/batch.
type BatchRequest struct {
	Pairs    []BatchPair      `json:"pairs" binding:"required,min=1,dive"`
	Checks   []string         `json:"checks,omitempty"`
	Accuracy *accuracy.Config `json:"accuracy,omitempty"`
}

// =============================================================================
// Responses
// =============================================================================

// CompareResponse is the response of POST /v1/graphcmp/compare.
type CompareResponse struct {
	RequestID string `json:"request_id"`
	Policy    string `json:"policy"`
	Verdict
	DurationMs int64 `json:"duration_ms"`
}

// BatchResponse is the response of POST /v1/graphcmp/compare/batch.
type BatchResponse struct {
	RequestID  string        `json:"request_id"`
	Policy     string        `json:"policy"`
	Results    []PairVerdict `json:"results"`
	Matched    int           `json:"matched"`
	Mismatched int           `json:"mismatched"`
	Failed     int           `json:"failed"`
	DurationMs int64         `json:"duration_ms"`
}

// FlagInfo describes one comparison flag.
type FlagInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	// Default reports whether the service policy enables the flag.
	Default bool `json:"default"`
}

// PolicyResponse is the response of GET /v1/graphcmp/policy.
type PolicyResponse struct {
	Default string     `json:"default"`
	Flags   []FlagInfo `json:"flags"`
}

// HealthResponse is the response of GET /v1/graphcmp/health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the error message.
	Error string `json:"error"`

	// Code is the error code (optional).
	Code string `json:"code,omitempty"`

	// Details provides additional error context (optional).
	Details string `json:"details,omitempty"`
}

// Tally counts matched, mismatched and failed pairs.
func Tally(results []PairVerdict) (matched, mismatched, failed int) {
	for _, r := range results {
		switch {
		case r.Error != "":
			failed++
		case r.Verdict.Match:
			matched++
		default:
			mismatched++
		}
	}
	return matched, mismatched, failed
}
