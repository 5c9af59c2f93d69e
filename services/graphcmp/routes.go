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
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/time/rate"

	"github.com/AleutianAI/graphcmp/services/graphcmp/config"
	"github.com/AleutianAI/graphcmp/services/graphcmp/telemetry"
)

// RegisterRoutes registers all graphcmp routes with the router.
//
// Description:
//
//	Registers all /v1/graphcmp/* endpoints with the given Gin router group.
//	The router group should already have any required middleware applied.
//
// Inputs:
//
//	rg - Gin router group (typically /v1)
//	handlers - The handlers instance
//
// Endpoints:
//
//	POST /v1/graphcmp/compare - Compare one graph pair
//	POST /v1/graphcmp/compare/batch - Compare many pairs
//	GET  /v1/graphcmp/policy - List comparison flags
//	GET  /v1/graphcmp/health - Health check
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	graphcmp := rg.Group("/graphcmp")
	{
		graphcmp.POST("/compare", handlers.HandleCompare)
		graphcmp.POST("/compare/batch", handlers.HandleCompareBatch)
		graphcmp.GET("/policy", handlers.HandlePolicy)
		graphcmp.GET("/health", handlers.HandleHealth)
	}
}

// RouterConfig holds the middleware settings of NewRouter.
type RouterConfig struct {
	// ServiceName names the otelgin server spans.
	ServiceName string

	// RateLimit is requests per second. Zero disables limiting.
	RateLimit float64
	Burst     int

	// MaxBodyBytes caps request bodies. Zero disables the cap.
	MaxBodyBytes int64
}

// RouterConfigFrom extracts the router settings from a loaded configuration.
func RouterConfigFrom(c config.Config) RouterConfig {
	return RouterConfig{
		ServiceName:  c.Telemetry.ServiceName,
		RateLimit:    c.Server.RateLimit,
		Burst:        c.Server.Burst,
		MaxBodyBytes: c.Server.MaxBodyBytes,
	}
}

// NewRouter builds the HTTP engine for svc.
//
// Description:
//
//	Installs recovery, tracing, HTTP metrics, rate limiting and the body
//	cap, in that order, then the /v1 routes. /metrics is served when the
//	Prometheus exporter is active and bypasses the rate limiter.
func NewRouter(svc *Service, cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	if h := telemetry.MetricsHandler(); h != nil {
		router.GET("/metrics", gin.WrapH(h))
	}

	name := cfg.ServiceName
	if name == "" {
		name = "graphcmp"
	}
	v1 := router.Group("/v1")
	v1.Use(otelgin.Middleware(name), telemetry.GinMetrics())
	if cfg.RateLimit > 0 {
		burst := max(cfg.Burst, 1)
		v1.Use(RateLimit(rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)))
	}
	if cfg.MaxBodyBytes > 0 {
		v1.Use(MaxBodyBytes(cfg.MaxBodyBytes))
	}

	RegisterRoutes(v1, NewHandlers(svc))
	return router
}
