// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package compare decides whether two attributed computation graphs are
// equivalent under a comparison policy.
//
// # Architecture
//
//	Compare(a, b)
//	    │
//	    ▼
//	┌──────────────┐  pairs   ┌──────────────┐  both own bodies  ┌─────────────────┐
//	│ graph walker │ ───────► │ node compare │ ────────────────► │ subgraph matcher│
//	│ (worklist)   │          │              │                   │                 │
//	└──────────────┘          └──────┬───────┘                   └───────┬─────────┘
//	       ▲                         │ attributes                        │ bodies
//	       │                         ▼                                   │
//	       │                  ┌──────────────┐                           │
//	       └──────────────────│ attr visitor │◄──────────────────────────┘
//	         nested graphs    └──────────────┘
//
// The walker anchors both graphs at their results and stateful sinks, then
// walks producer pairs backward in input order. Each node pair is compared
// once. The first structural difference aborts the walk. Attribute
// mismatches accumulate and turn the verdict invalid once the walk ends.
//
// # Thread Safety
//
// Comparator is immutable and safe for concurrent use. Each call allocates
// its own traversal state. Graphs must not be mutated during a call.
package compare
