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
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/AleutianAI/graphcmp/pkg/validation"
	"github.com/AleutianAI/graphcmp/services/graphcmp/accuracy"
	"github.com/AleutianAI/graphcmp/services/graphcmp/compare"
	"github.com/AleutianAI/graphcmp/services/graphcmp/ir"
	"github.com/AleutianAI/graphcmp/services/graphcmp/policy"
	"github.com/AleutianAI/graphcmp/services/graphcmp/telemetry"
)

// Handlers contains the HTTP handlers for graphcmp.
type Handlers struct {
	svc *Service
}

// NewHandlers creates handlers for the given service.
func NewHandlers(svc *Service) *Handlers {
	return &Handlers{svc: svc}
}

// HandleCompare handles POST /v1/graphcmp/compare.
//
// Description:
//
//	Builds both graph documents and compares them under the requested
//	checks. A mismatch is a successful response with match=false.
//
// Request Body:
//
//	CompareRequest
//
// Response:
//
//	200 OK: CompareResponse
//	400 Bad Request: Malformed body or unknown check
//	413 Request Entity Too Large: Body or graph over the limit
//	422 Unprocessable Entity: Graph document does not build
//	500 Internal Server Error: Accuracy check could not run
func (h *Handlers) HandleCompare(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := telemetry.LoggerWithTrace(c.Request.Context(), slog.With("request_id", requestID, "handler", "HandleCompare"))
	start := time.Now()

	var req CompareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, logger, err)
		return
	}

	p, err := h.svc.ResolvePolicy(req.Checks)
	if err != nil {
		writeError(c, logger, err)
		return
	}
	ref, err := h.svc.BuildGraph(req.Reference)
	if err != nil {
		writeError(c, logger, fmt.Errorf("reference: %w", err))
		return
	}
	cand, err := h.svc.BuildGraph(req.Candidate)
	if err != nil {
		writeError(c, logger, fmt.Errorf("candidate: %w", err))
		return
	}

	verdict, err := h.svc.Compare(c.Request.Context(), ref, cand, p, accuracyOptions(req.Accuracy)...)
	if err != nil {
		writeError(c, logger, err)
		return
	}

	logger.Info("Compared graphs",
		"reference", ref.Name,
		"candidate", cand.Name,
		"policy", p.String(),
		"match", verdict.Match,
		"kind", verdict.Result.Kind.String(),
	)
	c.JSON(http.StatusOK, CompareResponse{
		RequestID:  requestID,
		Policy:     p.String(),
		Verdict:    verdict,
		DurationMs: time.Since(start).Milliseconds(),
	})
}

// HandleCompareBatch handles POST /v1/graphcmp/compare/batch.
//
// Description:
//
//	Builds every pair, then compares them concurrently. Results keep the
//	request order. A pair whose accuracy check cannot run is reported as
//	failed without failing the request.
//
// Request Body:
//
//	BatchRequest
//
// Response:
//
//	200 OK: BatchResponse
//	400 Bad Request: Malformed body, unknown check or invalid pair id
//	413 Request Entity Too Large: Body, graph or batch over the limit
//	422 Unprocessable Entity: A graph document does not build
func (h *Handlers) HandleCompareBatch(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := telemetry.LoggerWithTrace(c.Request.Context(), slog.With("request_id", requestID, "handler", "HandleCompareBatch"))
	start := time.Now()

	var req BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, logger, err)
		return
	}

	p, err := h.svc.ResolvePolicy(req.Checks)
	if err != nil {
		writeError(c, logger, err)
		return
	}

	pairs := make([]compare.Pair, len(req.Pairs))
	for i, bp := range req.Pairs {
		if bp.ID != "" {
			if err := validation.ValidateLabel(bp.ID); err != nil {
				logger.Warn("Invalid pair id", "index", i, "error", err)
				c.JSON(http.StatusBadRequest, ErrorResponse{
					Error:   "Invalid pair id",
					Code:    "INVALID_PAIR_ID",
					Details: fmt.Sprintf("pairs[%d].id: %v", i, err),
				})
				return
			}
		}
		ref, err := h.svc.BuildGraph(bp.Reference)
		if err != nil {
			writeError(c, logger, fmt.Errorf("pairs[%d].reference: %w", i, err))
			return
		}
		cand, err := h.svc.BuildGraph(bp.Candidate)
		if err != nil {
			writeError(c, logger, fmt.Errorf("pairs[%d].candidate: %w", i, err))
			return
		}
		pairs[i] = compare.Pair{ID: bp.ID, Reference: ref, Candidate: cand}
	}

	results, err := h.svc.CompareBatch(c.Request.Context(), pairs, p, accuracyOptions(req.Accuracy)...)
	if err != nil {
		writeError(c, logger, err)
		return
	}

	matched, mismatched, failed := Tally(results)
	logger.Info("Compared batch",
		"pairs", len(results),
		"policy", p.String(),
		"matched", matched,
		"mismatched", mismatched,
		"failed", failed,
	)
	c.JSON(http.StatusOK, BatchResponse{
		RequestID:  requestID,
		Policy:     p.String(),
		Results:    results,
		Matched:    matched,
		Mismatched: mismatched,
		Failed:     failed,
		DurationMs: time.Since(start).Milliseconds(),
	})
}

// HandlePolicy handles GET /v1/graphcmp/policy.
func (h *Handlers) HandlePolicy(c *gin.Context) {
	def := h.svc.Config().Policy
	names := policy.FlagNames()
	flags := make([]FlagInfo, 0, len(names))
	for _, name := range names {
		f, err := policy.ParseFlag(name)
		if err != nil {
			continue
		}
		flags = append(flags, FlagInfo{Name: name, Description: FlagDescription(f), Default: def.Has(f)})
	}
	c.JSON(http.StatusOK, PolicyResponse{Default: def.String(), Flags: flags})
}

// HandleHealth handles GET /v1/graphcmp/health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:  "healthy",
		Version: ServiceVersion,
	})
}

// =============================================================================
// Helpers
// =============================================================================

// getOrCreateRequestID returns X-Request-ID, generating one when absent or
// malformed, and echoes it on the response.
func getOrCreateRequestID(c *gin.Context) string {
	requestID := c.GetHeader("X-Request-ID")
	if validation.ValidateRequestID(requestID) != nil {
		requestID = uuid.NewString()
	}
	c.Header("X-Request-ID", requestID)
	return requestID
}

func accuracyOptions(cfg *accuracy.Config) []CompareOption {
	if cfg == nil {
		return nil
	}
	return []CompareOption{WithAccuracyConfig(*cfg)}
}

func writeBindError(c *gin.Context, logger *slog.Logger, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		logger.Warn("Request body too large", "limit", tooLarge.Limit)
		c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{
			Error: "Request body too large",
			Code:  "BODY_TOO_LARGE",
		})
		return
	}
	logger.Warn("Invalid request body", "error", err)
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error:   "Invalid request body",
		Code:    "INVALID_REQUEST",
		Details: err.Error(),
	})
}

// writeError maps service errors to status codes.
func writeError(c *gin.Context, logger *slog.Logger, err error) {
	status, code, msg := http.StatusInternalServerError, "INTERNAL_ERROR", "Comparison failed"
	switch {
	case errors.Is(err, ErrInvalidChecks):
		status, code, msg = http.StatusBadRequest, "INVALID_CHECKS", "Unknown comparison check"
	case errors.Is(err, ErrEmptyBatch):
		status, code, msg = http.StatusBadRequest, "EMPTY_BATCH", "Batch has no pairs"
	case errors.Is(err, ErrBatchTooLarge):
		status, code, msg = http.StatusRequestEntityTooLarge, "BATCH_TOO_LARGE", "Batch exceeds the pair limit"
	case errors.Is(err, ir.ErrMaxNodesExceeded):
		status, code, msg = http.StatusRequestEntityTooLarge, "GRAPH_TOO_LARGE", "Graph exceeds the node limit"
	case errors.Is(err, ErrInvalidGraph):
		status, code, msg = http.StatusUnprocessableEntity, "INVALID_GRAPH", "Invalid graph document"
	case errors.Is(err, accuracy.ErrUnsupportedOperation):
		status, code, msg = http.StatusUnprocessableEntity, "ACCURACY_UNSUPPORTED", "Accuracy check cannot evaluate the graph"
	case errors.Is(err, ErrAccuracyCheck):
		code, msg = "ACCURACY_FAILED", "Accuracy check failed"
	}

	if status >= http.StatusInternalServerError {
		logger.Error(msg, "error", err)
	} else {
		logger.Warn(msg, "error", err)
	}
	c.JSON(status, ErrorResponse{Error: msg, Code: code, Details: err.Error()})
}
