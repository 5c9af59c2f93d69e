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
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/graphcmp/services/graphcmp"
	"github.com/AleutianAI/graphcmp/services/graphcmp/policy"
)

func newPolicyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "policy",
		Short: "List comparison checks and the configured default",
		Args:  exactArgs(0),
		RunE: func(*cobra.Command, []string) error {
			def := a.svc.Config().Policy
			flags := make([]graphcmp.FlagInfo, 0, len(policy.FlagNames()))
			for _, name := range policy.FlagNames() {
				f, err := policy.ParseFlag(name)
				if err != nil {
					return exitWith(ExitError, err)
				}
				flags = append(flags, graphcmp.FlagInfo{Name: name, Description: graphcmp.FlagDescription(f), Default: def.Has(f)})
			}

			if a.jsonOutput {
				if err := a.writeJSON(graphcmp.PolicyResponse{Default: def.String(), Flags: flags}); err != nil {
					return exitWith(ExitError, err)
				}
				return nil
			}
			a.printer.Title("Comparison checks")
			for _, f := range flags {
				a.printer.Flag(f.Name, f.Default, f.Description)
			}
			return nil
		},
	}
}

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  exactArgs(0),
		RunE: func(*cobra.Command, []string) error {
			if a.jsonOutput {
				if err := a.writeJSON(map[string]string{
					"version": version,
					"service": graphcmp.ServiceVersion,
					"go":      runtime.Version(),
				}); err != nil {
					return exitWith(ExitError, err)
				}
				return nil
			}
			fmt.Fprintf(a.stdout, "graphcmp %s (service %s, %s)\n", version, graphcmp.ServiceVersion, runtime.Version())
			return nil
		},
	}
}
