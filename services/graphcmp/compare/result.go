// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package compare

import (
	"errors"
	"fmt"
)

// Sentinel errors, one per mismatch category. Result.Err wraps them so that
// callers can branch with errors.Is.
var (
	// ErrContract means an input violated a precondition the comparator does
	// not reconcile (count mismatch, empty subgraph, unsupported sink).
	ErrContract = errors.New("input contract violated")

	// ErrStructural means the graphs differ in type identity, arity, shape,
	// wiring or subgraph descriptors.
	ErrStructural = errors.New("structural mismatch")

	// ErrAttribute means one or more attribute comparisons failed.
	ErrAttribute = errors.New("attribute mismatch")

	// ErrInternal means one side is internally inconsistent, independent of
	// the other graph.
	ErrInternal = errors.New("internally inconsistent graph")
)

// Kind classifies a failed comparison.
type Kind int

const (
	KindNone Kind = iota
	KindContract
	KindStructural
	KindAttribute
	KindInternal
)

var kindNames = map[Kind]string{
	KindNone:       "none",
	KindContract:   "contract",
	KindStructural: "structural",
	KindAttribute:  "attribute",
	KindInternal:   "internal",
}

// String returns the lowercase name of the kind.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// MarshalText encodes the kind by name.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText decodes a kind name.
func (k *Kind) UnmarshalText(text []byte) error {
	for kind, name := range kindNames {
		if name == string(text) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown result kind %q", text)
}

// sentinel returns the error matching the kind.
func (k Kind) sentinel() error {
	switch k {
	case KindContract:
		return ErrContract
	case KindStructural:
		return ErrStructural
	case KindAttribute:
		return ErrAttribute
	case KindInternal:
		return ErrInternal
	default:
		return nil
	}
}

// Result is the verdict of one comparison.
//
// A valid Result may still carry a Message with non-fatal warnings. An
// invalid Result carries the first structural cause, or every accumulated
// attribute diagnostic.
type Result struct {
	Valid   bool   `json:"valid"`
	Message string `json:"message,omitempty"`
	Kind    Kind   `json:"kind"`
	// NodePairs counts the node pairs compared before the verdict.
	NodePairs int `json:"node_pairs"`
}

// OK returns a valid result with an optional diagnostic message.
func OK(message string) Result {
	return Result{Valid: true, Message: message}
}

// Failf returns an invalid result of the given kind.
func Failf(kind Kind, format string, args ...any) Result {
	return Result{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Err converts an invalid result into an error wrapping the kind's sentinel.
// It returns nil for valid results.
func (r Result) Err() error {
	if r.Valid {
		return nil
	}
	return &MismatchError{Kind: r.Kind, Message: r.Message}
}

// MismatchError is the error form of an invalid Result.
type MismatchError struct {
	Kind    Kind
	Message string
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *MismatchError) Unwrap() error {
	return e.Kind.sentinel()
}
