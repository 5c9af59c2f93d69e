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
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimit rejects requests beyond the limiter's rate with 429.
//
// Description:
//
//	One token bucket is shared by every client. Rejected responses carry
//	Retry-After with the whole seconds until the next token.
func RateLimit(limiter *rate.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		r := limiter.Reserve()
		if !r.OK() {
			abortRateLimited(c, time.Second)
			return
		}
		if delay := r.Delay(); delay > 0 {
			r.Cancel()
			abortRateLimited(c, delay)
			return
		}
		c.Next()
	}
}

func abortRateLimited(c *gin.Context, delay time.Duration) {
	secs := int(math.Ceil(delay.Seconds()))
	c.Header("Retry-After", strconv.Itoa(max(secs, 1)))
	c.AbortWithStatusJSON(http.StatusTooManyRequests, ErrorResponse{
		Error: "Rate limit exceeded",
		Code:  "RATE_LIMITED",
	})
}

// MaxBodyBytes caps request bodies at n bytes. Reads past the cap fail with
// *http.MaxBytesError.
func MaxBodyBytes(n int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, n)
		}
		c.Next()
	}
}
