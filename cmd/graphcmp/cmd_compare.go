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
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/graphcmp/services/graphcmp"
	"github.com/AleutianAI/graphcmp/services/graphcmp/policy"
)

type compareFlags struct {
	checks       []string
	relThreshold float64
	absThreshold float64
	seed         uint64
}

// compareOutput is the JSON form of one comparison.
type compareOutput struct {
	Reference string `json:"reference"`
	Candidate string `json:"candidate"`
	Policy    string `json:"policy"`
	graphcmp.Verdict
}

func newCompareCmd(a *app) *cobra.Command {
	f := &compareFlags{}
	cmd := &cobra.Command{
		Use:   "compare REFERENCE CANDIDATE",
		Short: "Compare two graph documents",
		Long: `Compare a candidate graph against a reference graph.

Examples:
  graphcmp compare ref.yaml cand.yaml
  graphcmp compare ref.yaml cand.json --check all
  graphcmp compare ref.yaml cand.yaml --check precisions,accuracy --rel-threshold 1e-3

Exit Codes:
  0 = Equivalent
  1 = Different
  2 = Error`,
		Args: exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runCompare(cmd, f, args[0], args[1])
		},
	}
	addCheckFlags(cmd, f)
	return cmd
}

// addCheckFlags registers the policy and accuracy flags shared by compare
// and batch.
func addCheckFlags(cmd *cobra.Command, f *compareFlags) {
	cmd.Flags().StringSliceVar(&f.checks, "check", nil,
		"Checks to enable: "+strings.Join(policy.FlagNames(), ", ")+", all or default (default from config)")
	cmd.Flags().Float64Var(&f.relThreshold, "rel-threshold", -1,
		"Relative threshold of the accuracy check (default from config)")
	cmd.Flags().Float64Var(&f.absThreshold, "abs-threshold", -1,
		"Absolute threshold of the accuracy check (default from config)")
	cmd.Flags().Uint64Var(&f.seed, "seed", 0,
		"Seed of the accuracy check inputs (default from config)")
}

// options resolves the policy and accuracy overrides.
func (a *app) options(cmd *cobra.Command, f *compareFlags) (policy.Policy, []graphcmp.CompareOption, error) {
	p, err := a.svc.ResolvePolicy(f.checks)
	if err != nil {
		return policy.Policy{}, nil, exitWith(ExitBadArgs, err)
	}
	acc := a.cfg.Accuracy
	changed := false
	if cmd.Flags().Changed("rel-threshold") {
		if f.relThreshold < 0 {
			return policy.Policy{}, nil, exitWith(ExitBadArgs, errors.New("--rel-threshold must be >= 0"))
		}
		acc.RelThreshold, changed = f.relThreshold, true
	}
	if cmd.Flags().Changed("abs-threshold") {
		acc.AbsThreshold, changed = f.absThreshold, true
	}
	if cmd.Flags().Changed("seed") {
		acc.Seed, changed = f.seed, true
	}
	if !changed {
		return p, nil, nil
	}
	return p, []graphcmp.CompareOption{graphcmp.WithAccuracyConfig(acc)}, nil
}

func (a *app) runCompare(cmd *cobra.Command, f *compareFlags, refPath, candPath string) error {
	p, opts, err := a.options(cmd, f)
	if err != nil {
		return err
	}
	ref, err := a.loadGraph(refPath)
	if err != nil {
		return exitWith(ExitError, err)
	}
	cand, err := a.loadGraph(candPath)
	if err != nil {
		return exitWith(ExitError, err)
	}

	v, err := a.svc.Compare(cmd.Context(), ref, cand, p, opts...)
	if err != nil {
		return exitWith(ExitError, err)
	}

	if a.jsonOutput {
		if err := a.writeJSON(compareOutput{Reference: refPath, Candidate: candPath, Policy: p.String(), Verdict: v}); err != nil {
			return exitWith(ExitError, err)
		}
	} else {
		a.printVerdict(fmt.Sprintf("%s ↔ %s", filepath.Base(refPath), filepath.Base(candPath)), v, "")
	}

	if !v.Match {
		return exitWith(ExitMismatch, nil)
	}
	return nil
}

// printVerdict prints one verdict. A non-empty failure marks a pair that
// could not reach a verdict.
func (a *app) printVerdict(subject string, v graphcmp.Verdict, failure string) {
	switch {
	case failure != "":
		a.printer.Verdict(false, subject, "error", failure)
	case !v.Result.Valid:
		a.printer.Verdict(false, subject, v.Result.Kind.String(), v.Result.Message)
	case v.Accuracy != nil && !v.Accuracy.Passed:
		a.printer.Verdict(false, subject, "accuracy", v.Accuracy.Error)
	default:
		a.printer.Verdict(true, subject, "", "")
		if v.Result.Message != "" {
			a.printer.Warning(v.Result.Message)
		}
		if v.Accuracy != nil && v.Accuracy.Skipped {
			a.printer.Info("accuracy check skipped: " + v.Accuracy.Reason)
		}
	}
}
