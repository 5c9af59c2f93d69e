// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ir

import "errors"

// Sentinel errors for graph construction.
var (
	// ErrGraphFrozen is returned when a builder is used after Build().
	ErrGraphFrozen = errors.New("graph is frozen and cannot be modified")

	// ErrNodeNotFound is returned when wiring references a node that does
	// not exist in the arena.
	ErrNodeNotFound = errors.New("node not found")

	// ErrPortOutOfRange is returned when wiring references an output index
	// the producing node does not have.
	ErrPortOutOfRange = errors.New("output port out of range")

	// ErrInvalidDescriptor is returned when a port-mapping descriptor
	// references a parameter or result index outside its body graph.
	ErrInvalidDescriptor = errors.New("invalid port-mapping descriptor")

	// ErrInvalidShape is returned when shape text cannot be parsed.
	ErrInvalidShape = errors.New("invalid shape")

	// ErrUnknownElementType is returned when an element type name is not
	// recognized.
	ErrUnknownElementType = errors.New("unknown element type")

	// ErrInvalidConstant is returned when a constant payload is shorter
	// than its element type and shape require.
	ErrInvalidConstant = errors.New("invalid constant payload")

	// ErrMaxNodesExceeded is returned when a builder exceeds its node limit.
	ErrMaxNodesExceeded = errors.New("maximum node count exceeded")

	// ErrDuplicateAttribute is returned when a node declares the same
	// attribute name twice.
	ErrDuplicateAttribute = errors.New("duplicate attribute name")
)
