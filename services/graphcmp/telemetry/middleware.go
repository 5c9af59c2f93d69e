// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package telemetry

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// httpMetrics holds the HTTP server instruments.
type httpMetrics struct {
	requests metric.Int64Counter
	duration metric.Float64Histogram
	active   metric.Int64UpDownCounter
}

var (
	httpMetricsOnce sync.Once
	httpInstruments *httpMetrics
)

func initHTTPMetrics() {
	httpMetricsOnce.Do(func() {
		meter := otel.Meter("aleutian.graphcmp.http")
		m := &httpMetrics{}
		var err error
		if m.requests, err = meter.Int64Counter(
			"graphcmp_http_requests_total",
			metric.WithDescription("Total HTTP requests by method, route and status"),
		); err != nil {
			return
		}
		if m.duration, err = meter.Float64Histogram(
			"graphcmp_http_request_duration_seconds",
			metric.WithDescription("HTTP request duration"),
			metric.WithUnit("s"),
		); err != nil {
			return
		}
		if m.active, err = meter.Int64UpDownCounter(
			"graphcmp_http_active_requests",
			metric.WithDescription("Requests currently being served"),
		); err != nil {
			return
		}
		httpInstruments = m
	})
}

// GinMetrics returns middleware recording request count, duration and
// in-flight requests. Routes are labelled by their template, so path
// parameters do not explode cardinality.
//
// Thread Safety: Safe for concurrent use.
func GinMetrics() gin.HandlerFunc {
	initHTTPMetrics()
	return func(c *gin.Context) {
		m := httpInstruments
		if m == nil {
			c.Next()
			return
		}
		ctx := c.Request.Context()
		start := time.Now()
		m.active.Add(ctx, 1)
		defer m.active.Add(ctx, -1)

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		attrs := metric.WithAttributes(
			attribute.String("method", c.Request.Method),
			attribute.String("route", route),
			attribute.String("status", strconv.Itoa(c.Writer.Status())),
		)
		m.requests.Add(ctx, 1, attrs)
		m.duration.Record(ctx, time.Since(start).Seconds(), attrs)
	}
}
