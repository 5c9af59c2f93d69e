// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package telemetry wires OpenTelemetry tracing and metrics for graphcmp.
//
// The comparator, accuracy check and HTTP service use the OTel APIs
// directly through otel.Tracer and otel.Meter. Init installs the providers
// and exporters behind those globals; without Init every span and
// instrument is a no-op.
//
// # Backends
//
// Traces go to an OTLP collector (default) or stdout. Metrics go to a
// Prometheus registry (default), exposed by MetricsHandler, or stdout.
// Either signal can be disabled with "none".
//
// # Usage
//
//	shutdown, err := telemetry.Init(ctx, cfg.Telemetry)
//	if err != nil {
//	    return fmt.Errorf("init telemetry: %w", err)
//	}
//	defer shutdown(context.Background())
//
// # Environment Variables
//
//   - GRAPHCMP_ENV: environment name (default: development)
//   - OTEL_TRACES_EXPORTER: otlp, stdout, or none (default: none)
//   - OTEL_METRICS_EXPORTER: prometheus, stdout, or none (default: prometheus)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OTLP endpoint (default: localhost:4317)
//
// # Thread Safety
//
// All exported functions are safe for concurrent use after Init returns.
package telemetry
