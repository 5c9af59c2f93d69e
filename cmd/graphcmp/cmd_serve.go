// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/graphcmp/services/graphcmp"
	"github.com/AleutianAI/graphcmp/services/graphcmp/telemetry"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(a *app) *cobra.Command {
	var (
		addr  string
		debug bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP comparison service",
		Long: `Start the HTTP comparison service.

Endpoints:
  POST /v1/graphcmp/compare
  POST /v1/graphcmp/compare/batch
  GET  /v1/graphcmp/policy
  GET  /v1/graphcmp/health
  GET  /metrics

Example:
  curl -X POST http://localhost:8090/v1/graphcmp/compare \
    -H "Content-Type: application/json" \
    -d '{"reference": {...}, "candidate": {...}, "checks": ["attributes"]}'`,
		Args: exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr != "" {
				a.cfg.Server.Addr = addr
			}
			if debug {
				gin.SetMode(gin.DebugMode)
			} else {
				gin.SetMode(gin.ReleaseMode)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			ln, err := net.Listen("tcp", a.cfg.Server.Addr)
			if err != nil {
				return exitWith(ExitError, fmt.Errorf("listen: %w", err))
			}
			if err := a.serve(ctx, ln); err != nil {
				return exitWith(ExitError, err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides config)")
	cmd.Flags().BoolVar(&debug, "debug", false, "Enable gin debug mode")
	return cmd
}

// serve runs the HTTP service on ln until ctx is done, then shuts down
// gracefully.
func (a *app) serve(ctx context.Context, ln net.Listener) error {
	shutdownTelemetry, err := telemetry.Init(ctx, a.cfg.Telemetry)
	if err != nil {
		_ = ln.Close()
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTelemetry(sctx); err != nil {
			a.logger.Warn("Telemetry shutdown failed", "error", err)
		}
	}()

	router := graphcmp.NewRouter(a.svc, graphcmp.RouterConfigFrom(a.cfg))
	srv := &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	a.logger.Info("Starting graphcmp server",
		"addr", ln.Addr().String(),
		"version", graphcmp.ServiceVersion,
		"policy", a.svc.Config().Policy.String(),
	)

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Info("Shutting down graphcmp server")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
