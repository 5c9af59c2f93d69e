// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validation provides input validation for client-supplied
// identifiers.
//
// Request and pair identifiers are echoed in response headers, written to
// logs and attached to spans. Validating them prevents header splitting and
// log forging through control characters.
package validation

import (
	"errors"
	"fmt"
	"regexp"
	"unicode"
	"unicode/utf8"
)

// MaxLabelLength caps pair labels in bytes.
const MaxLabelLength = 256

// requestIDPattern matches UUIDs and other opaque tokens.
// Allows: letters, digits, dots, underscores, colons, hyphens.
// Max length: 128 characters.
var requestIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._:\-]{0,127}$`)

var (
	// ErrEmpty indicates an empty identifier.
	ErrEmpty = errors.New("identifier cannot be empty")

	// ErrInvalidIdentifier indicates an identifier with disallowed content.
	ErrInvalidIdentifier = errors.New("invalid identifier")
)

// ValidateRequestID validates an X-Request-ID value.
//
// Valid request IDs:
//   - 1-128 characters
//   - Letters, digits, '.', '_', ':' and '-'
//   - Starting with a letter or digit
//
// Example:
//
//	if err := validation.ValidateRequestID(id); err != nil {
//	    id = uuid.NewString()
//	}
func ValidateRequestID(id string) error {
	if id == "" {
		return ErrEmpty
	}
	if !requestIDPattern.MatchString(id) {
		return fmt.Errorf("%w: request id %q", ErrInvalidIdentifier, id)
	}
	return nil
}

// ValidateLabel validates a free-form label such as a batch pair ID.
// Labels may hold any printable UTF-8 text up to MaxLabelLength bytes.
func ValidateLabel(label string) error {
	if label == "" {
		return ErrEmpty
	}
	if len(label) > MaxLabelLength {
		return fmt.Errorf("%w: label longer than %d bytes", ErrInvalidIdentifier, MaxLabelLength)
	}
	if !utf8.ValidString(label) {
		return fmt.Errorf("%w: label is not valid UTF-8", ErrInvalidIdentifier)
	}
	for _, r := range label {
		if unicode.IsControl(r) {
			return fmt.Errorf("%w: label contains control character %U", ErrInvalidIdentifier, r)
		}
	}
	return nil
}
