// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command graphcmp compares computation graphs for structural and semantic
// equivalence.
//
//	graphcmp compare reference.yaml candidate.yaml --check attributes,names
//	graphcmp batch manifest.yaml
//	graphcmp serve --config graphcmp.yaml
//	graphcmp policy
//
// Exit Codes:
//
//	0 = Graphs are equivalent
//	1 = At least one pair differs
//	2 = Error (unreadable graph, failed accuracy check, server failure)
//	3 = Invalid arguments or configuration
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// Exit codes.
const (
	ExitSuccess  = 0
	ExitMismatch = 1
	ExitError    = 2
	ExitBadArgs  = 3
)

// CommandError carries the process exit code of a failed command.
//
// Commands wrap every runtime failure in a CommandError. Errors reaching
// main without one come from cobra's argument and flag parsing.
type CommandError struct {
	// Code is the process exit code.
	Code int

	// Wrapped is the underlying error. Nil for a silent exit, such as a
	// mismatch that was already reported.
	Wrapped error
}

// Error returns a formatted error message.
func (e *CommandError) Error() string {
	if e.Wrapped == nil {
		return fmt.Sprintf("exit %d", e.Code)
	}
	return e.Wrapped.Error()
}

// Unwrap returns the underlying error.
func (e *CommandError) Unwrap() error {
	return e.Wrapped
}

func exitWith(code int, err error) *CommandError {
	return &CommandError{Code: code, Wrapped: err}
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the command line and returns the exit code.
func run(args []string, stdout, stderr io.Writer) int {
	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)
	err := root.Execute()
	if err == nil {
		return ExitSuccess
	}

	var exitErr *CommandError
	if !errors.As(err, &exitErr) {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return ExitBadArgs
	}
	if exitErr.Wrapped != nil {
		fmt.Fprintf(stderr, "Error: %v\n", exitErr.Wrapped)
	}
	return exitErr.Code
}
