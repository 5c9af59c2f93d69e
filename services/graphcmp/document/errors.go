// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package document

import "errors"

var (
	// ErrDuplicateNode indicates two nodes of one graph share a name.
	ErrDuplicateNode = errors.New("duplicate node name")

	// ErrUnknownNode indicates a reference to a node name that does not exist.
	ErrUnknownNode = errors.New("unknown node")

	// ErrInvalidValue indicates a malformed field.
	ErrInvalidValue = errors.New("invalid value")

	// ErrUnknownDescriptor indicates an unrecognized port-mapping kind.
	ErrUnknownDescriptor = errors.New("unknown descriptor kind")

	// ErrUnsupportedFormat indicates a document format other than YAML or JSON.
	ErrUnsupportedFormat = errors.New("unsupported document format")
)

// DecodeError locates a decoding failure inside a document.
type DecodeError struct {
	// Path is the dotted location, e.g. "nodes[3].attributes[0]".
	Path string
	Err  error
}

// Error implements error.
func (e *DecodeError) Error() string {
	return e.Path + ": " + e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *DecodeError) Unwrap() error {
	return e.Err
}

// at prefixes err with path, merging nested DecodeErrors into one path.
func at(path string, err error) error {
	if de, ok := err.(*DecodeError); ok {
		return &DecodeError{Path: path + "." + de.Path, Err: de.Err}
	}
	return &DecodeError{Path: path, Err: err}
}
