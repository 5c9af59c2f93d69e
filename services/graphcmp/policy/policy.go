// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package policy defines the set of checks a graph comparison runs.
//
// Structural and shape checks always run. Every other check is gated by a
// Flag. A Policy is an immutable value: methods that change it return a
// copy, so one Policy can be shared across goroutines.
package policy

import (
	"errors"
	"fmt"
	"strings"
)

// Flag is one independently toggled comparison check.
type Flag uint32

const (
	// Names requires paired results to be produced by nodes with the same
	// name.
	Names Flag = 1 << iota

	// Precisions compares element types of node inputs.
	Precisions

	// ConstValues compares constant payloads byte for byte.
	ConstValues

	// TensorNames compares the tensor name set of every output.
	TensorNames

	// RuntimeKeys compares runtime metadata on nodes and ports.
	RuntimeKeys

	// Attributes compares declared node attributes.
	Attributes

	// Accuracy runs both graphs on random inputs after a structural match.
	// The comparator ignores it; the service layer acts on it.
	Accuracy
)

// ErrUnknownFlag is returned by Parse for unrecognized flag names.
var ErrUnknownFlag = errors.New("unknown comparison flag")

// orderedFlags lists flags in declaration order for String and All.
var orderedFlags = []struct {
	flag Flag
	name string
}{
	{Names, "names"},
	{Precisions, "precisions"},
	{ConstValues, "const_values"},
	{TensorNames, "tensor_names"},
	{RuntimeKeys, "runtime_keys"},
	{Attributes, "attributes"},
	{Accuracy, "accuracy"},
}

// String returns the snake_case name of a single flag.
func (f Flag) String() string {
	for _, of := range orderedFlags {
		if of.flag == f {
			return of.name
		}
	}
	return fmt.Sprintf("flag(%#x)", uint32(f))
}

// Policy is an immutable set of enabled flags.
type Policy struct {
	flags Flag
}

// Default returns the policy with only the always-on structural checks.
func Default() Policy {
	return Policy{}
}

// New returns a policy with the given flags enabled.
func New(flags ...Flag) Policy {
	var p Policy
	for _, f := range flags {
		p.flags |= f
	}
	return p
}

// All returns a policy with every flag enabled except Accuracy, which needs
// an executor.
func All() Policy {
	return New(Names, Precisions, ConstValues, TensorNames, RuntimeKeys, Attributes)
}

// Has reports whether f is enabled.
func (p Policy) Has(f Flag) bool {
	return p.flags&f == f
}

// With returns a copy with f enabled.
func (p Policy) With(f Flag) Policy {
	return Policy{flags: p.flags | f}
}

// Without returns a copy with f disabled.
func (p Policy) Without(f Flag) Policy {
	return Policy{flags: p.flags &^ f}
}

// Flags returns the enabled flags in declaration order.
func (p Policy) Flags() []Flag {
	var out []Flag
	for _, of := range orderedFlags {
		if p.Has(of.flag) {
			out = append(out, of.flag)
		}
	}
	return out
}

// String returns a comma-separated list of enabled flags, or "default".
func (p Policy) String() string {
	flags := p.Flags()
	if len(flags) == 0 {
		return "default"
	}
	names := make([]string, len(flags))
	for i, f := range flags {
		names[i] = f.String()
	}
	return strings.Join(names, ",")
}

// FlagNames returns the names of every known flag.
func FlagNames() []string {
	names := make([]string, len(orderedFlags))
	for i, of := range orderedFlags {
		names[i] = of.name
	}
	return names
}

// ParseFlag converts a flag name to a Flag. Matching ignores case and
// accepts '-' in place of '_'.
func ParseFlag(name string) (Flag, error) {
	key := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "-", "_")
	for _, of := range orderedFlags {
		if of.name == key {
			return of.flag, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownFlag, name)
}

// Parse builds a policy from flag names. Each entry may itself be a
// comma-separated list. "all" enables All(); "default" and "" are ignored.
//
// Example:
//
//	p, err := policy.Parse("precisions,tensor-names", "attributes")
func Parse(names ...string) (Policy, error) {
	var p Policy
	for _, entry := range names {
		for _, name := range strings.Split(entry, ",") {
			name = strings.TrimSpace(name)
			switch strings.ToLower(name) {
			case "", "default":
				continue
			case "all":
				p.flags |= All().flags
				continue
			}
			f, err := ParseFlag(name)
			if err != nil {
				return Policy{}, err
			}
			p.flags |= f
		}
	}
	return p, nil
}
