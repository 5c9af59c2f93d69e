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
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/graphcmp/pkg/logging"
	"github.com/AleutianAI/graphcmp/pkg/ux"
	"github.com/AleutianAI/graphcmp/services/graphcmp"
	"github.com/AleutianAI/graphcmp/services/graphcmp/config"
	"github.com/AleutianAI/graphcmp/services/graphcmp/document"
	"github.com/AleutianAI/graphcmp/services/graphcmp/ir"
)

// app holds the state shared by every subcommand.
type app struct {
	stdout io.Writer
	stderr io.Writer

	// Persistent flags.
	configPath string
	jsonOutput bool
	outputMode string
	logLevel   string

	// Set by PersistentPreRunE.
	cfg     config.Config
	logger  *logging.Logger
	svc     *graphcmp.Service
	printer *ux.Printer
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:   "graphcmp",
		Short: "Compare computation graphs for equivalence",
		Long: `graphcmp decides whether two computation graphs are structurally and
semantically equivalent. Graphs are YAML or JSON documents.

Checks beyond the always-on structural comparison are enabled with --check:
names, precisions, const_values, tensor_names, runtime_keys, attributes and
accuracy, or "all".`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.logger != nil {
				_ = a.logger.Close()
			}
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	flags := root.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "Path to a YAML configuration file")
	flags.BoolVar(&a.jsonOutput, "json", false, "Output as JSON")
	flags.StringVar(&a.outputMode, "output", "", "Output style: rich, plain or machine (default: detect)")
	flags.StringVar(&a.logLevel, "log-level", "", "Log level: debug, info, warn or error (overrides config)")

	root.AddCommand(
		newCompareCmd(a),
		newBatchCmd(a),
		newServeCmd(a),
		newPolicyCmd(a),
		newVersionCmd(a),
	)
	return root
}

// setup loads configuration and builds the logger, service and printer.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return exitWith(ExitBadArgs, err)
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}
	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return exitWith(ExitBadArgs, err)
	}
	a.cfg = cfg

	a.logger = logging.New(logging.Config{
		Level:   level,
		LogDir:  cfg.Logging.Dir,
		Service: cfg.Telemetry.ServiceName,
		JSON:    cfg.Logging.JSON,
		Output:  a.stderr,
	})
	slog.SetDefault(a.logger.Slog())

	sc, err := graphcmp.ServiceConfigFrom(cfg)
	if err != nil {
		return exitWith(ExitBadArgs, err)
	}
	a.svc = graphcmp.NewService(sc, graphcmp.WithServiceLogger(a.logger.Slog()))

	mode := ux.ParseMode(a.outputMode)
	if a.outputMode == "" {
		mode = ux.ModePlain
		if f, ok := a.stdout.(*os.File); ok {
			mode = ux.DetectMode(f)
		}
	}
	a.printer = ux.NewPrinter(a.stdout, mode)
	return nil
}

// loadGraph reads a graph document and builds it under the service limits.
func (a *app) loadGraph(path string) (*ir.Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read graph: %w", err)
	}
	doc, err := document.Decode(data, document.FormatForPath(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	g, err := a.svc.BuildGraph(doc)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return g, nil
}

func (a *app) writeJSON(v any) error {
	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// exactArgs is cobra.ExactArgs with the bad-arguments exit code.
func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.ExactArgs(n)(cmd, args); err != nil {
			return exitWith(ExitBadArgs, err)
		}
		return nil
	}
}
