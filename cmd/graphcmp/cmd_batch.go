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
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/graphcmp/pkg/validation"
	"github.com/AleutianAI/graphcmp/services/graphcmp"
	"github.com/AleutianAI/graphcmp/services/graphcmp/compare"
)

// Manifest lists the pairs of a batch run. Relative graph paths resolve
// against the manifest's directory.
//
//	checks: [attributes, names]
//	pairs:
//	  - {id: add, reference: ref/add.yaml, candidate: cand/add.yaml}
type Manifest struct {
	// Checks apply when --check is not given.
	Checks []string       `yaml:"checks"`
	Pairs  []ManifestPair `yaml:"pairs"`
}

// ManifestPair is one entry of a Manifest.
type ManifestPair struct {
	ID        string `yaml:"id"`
	Reference string `yaml:"reference"`
	Candidate string `yaml:"candidate"`
}

// ErrInvalidManifest indicates a manifest that does not decode or names no
// pairs.
var ErrInvalidManifest = errors.New("invalid manifest")

// LoadManifest reads a manifest and resolves its paths.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var m Manifest
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidManifest, err)
	}
	if len(m.Pairs) == 0 {
		return nil, fmt.Errorf("%w: no pairs", ErrInvalidManifest)
	}

	dir := filepath.Dir(path)
	for i := range m.Pairs {
		p := &m.Pairs[i]
		if p.Reference == "" || p.Candidate == "" {
			return nil, fmt.Errorf("%w: pairs[%d] needs reference and candidate", ErrInvalidManifest, i)
		}
		if p.ID == "" {
			p.ID = fmt.Sprintf("%s ↔ %s", filepath.Base(p.Reference), filepath.Base(p.Candidate))
		}
		if err := validation.ValidateLabel(p.ID); err != nil {
			return nil, fmt.Errorf("%w: pairs[%d].id: %w", ErrInvalidManifest, i, err)
		}
		p.Reference = resolvePath(dir, p.Reference)
		p.Candidate = resolvePath(dir, p.Candidate)
	}
	return &m, nil
}

func resolvePath(dir, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}

// batchOutput is the JSON form of a batch run.
type batchOutput struct {
	Policy     string                 `json:"policy"`
	Results    []graphcmp.PairVerdict `json:"results"`
	Matched    int                    `json:"matched"`
	Mismatched int                    `json:"mismatched"`
	Failed     int                    `json:"failed"`
}

func newBatchCmd(a *app) *cobra.Command {
	f := &compareFlags{}
	cmd := &cobra.Command{
		Use:   "batch MANIFEST",
		Short: "Compare the graph pairs listed in a manifest",
		Long: `Compare every pair listed in a YAML manifest concurrently.

Manifest:
  checks: [attributes]
  pairs:
    - {id: add, reference: ref/add.yaml, candidate: cand/add.yaml}

Exit Codes:
  0 = Every pair is equivalent
  1 = At least one pair differs
  2 = A pair could not be compared`,
		Args: exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runBatch(cmd, f, args[0])
		},
	}
	addCheckFlags(cmd, f)
	return cmd
}

func (a *app) runBatch(cmd *cobra.Command, f *compareFlags, manifestPath string) error {
	m, err := LoadManifest(manifestPath)
	if err != nil {
		return exitWith(ExitBadArgs, err)
	}
	if len(f.checks) == 0 {
		f.checks = m.Checks
	}
	p, opts, err := a.options(cmd, f)
	if err != nil {
		return err
	}

	pairs := make([]compare.Pair, len(m.Pairs))
	for i, mp := range m.Pairs {
		ref, err := a.loadGraph(mp.Reference)
		if err != nil {
			return exitWith(ExitError, fmt.Errorf("pair %s: %w", mp.ID, err))
		}
		cand, err := a.loadGraph(mp.Candidate)
		if err != nil {
			return exitWith(ExitError, fmt.Errorf("pair %s: %w", mp.ID, err))
		}
		pairs[i] = compare.Pair{ID: mp.ID, Reference: ref, Candidate: cand}
	}

	results, err := a.svc.CompareBatch(cmd.Context(), pairs, p, opts...)
	if err != nil {
		return exitWith(ExitError, err)
	}
	matched, mismatched, failed := graphcmp.Tally(results)

	if a.jsonOutput {
		out := batchOutput{Policy: p.String(), Results: results, Matched: matched, Mismatched: mismatched, Failed: failed}
		if err := a.writeJSON(out); err != nil {
			return exitWith(ExitError, err)
		}
	} else {
		a.printer.Title(fmt.Sprintf("Batch of %d pairs (%s)", len(results), p))
		for _, r := range results {
			a.printVerdict(r.ID, r.Verdict, r.Error)
		}
		a.printer.Summary(matched, mismatched, failed)
	}

	switch {
	case failed > 0:
		return exitWith(ExitError, nil)
	case mismatched > 0:
		return exitWith(ExitMismatch, nil)
	}
	return nil
}
