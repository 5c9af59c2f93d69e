// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ir defines the in-memory representation of attributed computation
// graphs consumed by the comparator.
//
// # Architecture
//
// Each graph is an arena of nodes addressed by NodeID. Input wiring is a
// (NodeID, output index) pair, so no node ever holds a pointer to another.
// A control-flow node (If, Loop, TensorIterator) owns one or more Body values,
// each with its own Graph arena and its port-mapping descriptors:
//
//	 Graph (root)
//	 ┌─────────────────────────────────────────────┐
//	 │ Parameter ──┐                               │
//	 │ Parameter ──┼──► Loop ──► Result            │
//	 │             │     │                         │
//	 │             │     └── Body ┌──────────────┐ │
//	 │             │              │ Graph (body) │ │
//	 │             │              └──────────────┘ │
//	 └─────────────────────────────────────────────┘
//
// # Lifecycle
//
//  1. Create a Builder with NewBuilder(name)
//  2. Add parameters, operations, constants, results and sinks
//  3. Call Build() to validate and freeze the graph
//  4. Read the frozen graph from any number of goroutines
//
// # Thread Safety
//
// Builder is NOT safe for concurrent use. A Graph returned by Build is
// read-only and safe for concurrent reads.
package ir
