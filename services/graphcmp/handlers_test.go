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
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/graphcmp/services/graphcmp/compare"
	"github.com/AleutianAI/graphcmp/services/graphcmp/document"
	"github.com/AleutianAI/graphcmp/services/graphcmp/policy"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func setupTestRouter(svc *Service) *gin.Engine {
	router := gin.New()
	handlers := NewHandlers(svc)
	v1 := router.Group("/v1")
	RegisterRoutes(v1, handlers)
	return router
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestHandlers_HandleHealth(t *testing.T) {
	router := setupTestRouter(NewService(DefaultServiceConfig()))
	w := doJSON(t, router, http.MethodGet, "/v1/graphcmp/health", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, ServiceVersion, resp.Version)
}

func TestHandlers_HandlePolicy(t *testing.T) {
	router := setupTestRouter(NewService(ServiceConfig{Policy: policy.New(policy.Attributes)}))
	w := doJSON(t, router, http.MethodGet, "/v1/graphcmp/policy", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp PolicyResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "attributes", resp.Default)
	require.Len(t, resp.Flags, len(policy.FlagNames()))
	for _, f := range resp.Flags {
		assert.NotEmpty(t, f.Description)
		assert.Equal(t, f.Name == "attributes", f.Default, f.Name)
	}
}

func TestHandlers_HandleCompare(t *testing.T) {
	router := setupTestRouter(NewService(DefaultServiceConfig()))

	t.Run("match", func(t *testing.T) {
		body := CompareRequest{Reference: addConstDoc(t, "ref", 1), Candidate: addConstDoc(t, "cand", 1)}
		var buf bytes.Buffer
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
		req := httptest.NewRequest(http.MethodPost, "/v1/graphcmp/compare", &buf)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Request-ID", "req-123")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, "req-123", w.Header().Get("X-Request-ID"))

		var resp CompareResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "req-123", resp.RequestID)
		assert.Equal(t, "default", resp.Policy)
		assert.True(t, resp.Match)
		assert.True(t, resp.Result.Valid)
		assert.Positive(t, resp.Result.NodePairs)
	})

	t.Run("mismatch", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, "/v1/graphcmp/compare", CompareRequest{
			Reference: addConstDoc(t, "ref", 1),
			Candidate: addConstDoc(t, "cand", 2),
			Checks:    []string{"const_values"},
		})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

		var resp CompareResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "const_values", resp.Policy)
		assert.False(t, resp.Match)
		assert.Equal(t, compare.KindStructural, resp.Result.Kind)
		assert.NotEmpty(t, resp.Result.Message)
	})

	t.Run("accuracy", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, "/v1/graphcmp/compare", CompareRequest{
			Reference: addConstDoc(t, "ref", 1),
			Candidate: addConstDoc(t, "cand", 2),
			Checks:    []string{"accuracy"},
		})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var resp CompareResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.False(t, resp.Match)
		assert.True(t, resp.Result.Valid)
		require.NotNil(t, resp.Accuracy)
		assert.False(t, resp.Accuracy.Passed)
	})
}

func TestHandlers_HandleCompare_Errors(t *testing.T) {
	svc := NewService(ServiceConfig{MaxNodes: 4})
	router := setupTestRouter(svc)

	badGraph := &document.Graph{Name: "bad", Nodes: []document.Node{
		{Name: "out", Type: "Result", Inputs: []document.Input{{Source: "missing"}}},
	}}
	big := addConstDoc(t, "big", 1)
	big.Nodes = append(big.Nodes, document.Node{Name: "out2", Type: "Result", Inputs: []document.Input{{Source: "sum"}}})

	tests := []struct {
		name   string
		body   any
		status int
		code   string
	}{
		{"malformed", "not an object", http.StatusBadRequest, "INVALID_REQUEST"},
		{"missing candidate", CompareRequest{Reference: addConstDoc(t, "ref", 1)}, http.StatusBadRequest, "INVALID_REQUEST"},
		{"unknown check", CompareRequest{
			Reference: addConstDoc(t, "ref", 1), Candidate: addConstDoc(t, "cand", 1), Checks: []string{"bogus"},
		}, http.StatusBadRequest, "INVALID_CHECKS"},
		{"invalid graph", CompareRequest{Reference: addConstDoc(t, "ref", 1), Candidate: badGraph}, http.StatusUnprocessableEntity, "INVALID_GRAPH"},
		{"too many nodes", CompareRequest{Reference: big, Candidate: addConstDoc(t, "cand", 1)}, http.StatusRequestEntityTooLarge, "GRAPH_TOO_LARGE"},
		{"accuracy unsupported", CompareRequest{
			Reference: unaryDoc(t, "Softmax"), Candidate: unaryDoc(t, "Softmax"), Checks: []string{"accuracy"},
		}, http.StatusUnprocessableEntity, "ACCURACY_UNSUPPORTED"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, router, http.MethodPost, "/v1/graphcmp/compare", tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			assert.Equal(t, tt.code, decodeError(t, w).Code)
		})
	}
}

func TestHandlers_HandleCompareBatch(t *testing.T) {
	router := setupTestRouter(NewService(ServiceConfig{Concurrency: 2, MaxBatch: 3}))

	w := doJSON(t, router, http.MethodPost, "/v1/graphcmp/compare/batch", BatchRequest{
		Pairs: []BatchPair{
			{ID: "a", Reference: addConstDoc(t, "ref", 1), Candidate: addConstDoc(t, "cand", 1)},
			{ID: "b", Reference: unaryDoc(t, "Relu"), Candidate: unaryDoc(t, "Abs")},
		},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp BatchResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "a", resp.Results[0].ID)
	assert.True(t, resp.Results[0].Verdict.Match)
	assert.Equal(t, "b", resp.Results[1].ID)
	assert.False(t, resp.Results[1].Verdict.Match)
	assert.Equal(t, 1, resp.Matched)
	assert.Equal(t, 1, resp.Mismatched)
	assert.Equal(t, 0, resp.Failed)
}

func TestHandlers_HandleCompareBatch_Errors(t *testing.T) {
	router := setupTestRouter(NewService(ServiceConfig{MaxBatch: 1}))
	pair := BatchPair{Reference: addConstDoc(t, "ref", 1), Candidate: addConstDoc(t, "cand", 1)}

	w := doJSON(t, router, http.MethodPost, "/v1/graphcmp/compare/batch", BatchRequest{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_REQUEST", decodeError(t, w).Code)

	w = doJSON(t, router, http.MethodPost, "/v1/graphcmp/compare/batch", BatchRequest{Pairs: []BatchPair{pair, pair}})
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Equal(t, "BATCH_TOO_LARGE", decodeError(t, w).Code)

	bad := BatchPair{Reference: pair.Reference, Candidate: &document.Graph{Name: "bad", Nodes: []document.Node{
		{Name: "x", Type: "Parameter", Outputs: []document.Port{{ElementType: "f99", Shape: "[1]"}}},
	}}}
	w = doJSON(t, router, http.MethodPost, "/v1/graphcmp/compare/batch", BatchRequest{Pairs: []BatchPair{bad}})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	resp := decodeError(t, w)
	assert.Equal(t, "INVALID_GRAPH", resp.Code)
	assert.True(t, strings.HasPrefix(resp.Details, "pairs[0].candidate"), resp.Details)
}

func TestNewRouter_Middleware(t *testing.T) {
	svc := NewService(DefaultServiceConfig())

	t.Run("body limit", func(t *testing.T) {
		router := NewRouter(svc, RouterConfig{MaxBodyBytes: 64})
		w := doJSON(t, router, http.MethodPost, "/v1/graphcmp/compare", CompareRequest{
			Reference: addConstDoc(t, "ref", 1), Candidate: addConstDoc(t, "cand", 1),
		})
		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
		assert.Equal(t, "BODY_TOO_LARGE", decodeError(t, w).Code)
	})

	t.Run("rate limit", func(t *testing.T) {
		router := NewRouter(svc, RouterConfig{RateLimit: 0.001, Burst: 1})
		w := doJSON(t, router, http.MethodGet, "/v1/graphcmp/health", nil)
		assert.Equal(t, http.StatusOK, w.Code)

		w = doJSON(t, router, http.MethodGet, "/v1/graphcmp/health", nil)
		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.Equal(t, "RATE_LIMITED", decodeError(t, w).Code)
		assert.NotEmpty(t, w.Header().Get("Retry-After"))
	})

	t.Run("unlimited", func(t *testing.T) {
		router := NewRouter(svc, RouterConfig{})
		for range 5 {
			w := doJSON(t, router, http.MethodGet, "/v1/graphcmp/health", nil)
			assert.Equal(t, http.StatusOK, w.Code)
		}
	})
}

func TestHandlers_RequestIDValidation(t *testing.T) {
	router := setupTestRouter(NewService(DefaultServiceConfig()))

	body, err := json.Marshal(CompareRequest{Reference: addConstDoc(t, "ref", 1), Candidate: addConstDoc(t, "cand", 1)})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/v1/graphcmp/compare", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", "bad id")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	got := w.Header().Get("X-Request-ID")
	assert.NotEmpty(t, got)
	assert.NotEqual(t, "bad id", got)
}

func TestHandlers_HandleCompareBatch_InvalidPairID(t *testing.T) {
	router := setupTestRouter(NewService(DefaultServiceConfig()))
	w := doJSON(t, router, http.MethodPost, "/v1/graphcmp/compare/batch", BatchRequest{
		Pairs: []BatchPair{{ID: "a\nb", Reference: addConstDoc(t, "ref", 1), Candidate: addConstDoc(t, "cand", 1)}},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_PAIR_ID", decodeError(t, w).Code)
}
