// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graphcmp

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/graphcmp/services/graphcmp/document"
	"github.com/AleutianAI/graphcmp/services/graphcmp/ir"
)

// addConstDoc is x + c over a [2,3] f32 parameter.
func addConstDoc(t *testing.T, name string, c float64) *document.Graph {
	t.Helper()
	src := fmt.Sprintf(`
name: %s
nodes:
  - {name: x, type: Parameter, outputs: [{element_type: f32, shape: "[2,3]"}]}
  - {name: c, type: Constant, constant: {element_type: f32, shape: "[1]", values: [%g]}}
  - name: sum
    type: Add
    version: opset1
    inputs: [x, c]
    outputs: [{element_type: f32, shape: "[2,3]", names: [sum]}]
  - {name: out, type: Result, inputs: [sum]}
`, name, c)
	doc, err := document.Decode([]byte(src), document.FormatYAML)
	require.NoError(t, err)
	return doc
}

// unaryDoc is op(x) over a [4] f32 parameter.
func unaryDoc(t *testing.T, op string) *document.Graph {
	t.Helper()
	src := fmt.Sprintf(`
name: unary
nodes:
  - {name: x, type: Parameter, outputs: [{element_type: f32, shape: "[4]"}]}
  - {name: act, type: %s, version: opset1, inputs: [x], outputs: [{element_type: f32, shape: "[4]"}]}
  - {name: out, type: Result, inputs: [act]}
`, op)
	doc, err := document.Decode([]byte(src), document.FormatYAML)
	require.NoError(t, err)
	return doc
}

func mustBuild(t *testing.T, doc *document.Graph) *ir.Graph {
	t.Helper()
	g, err := doc.Build()
	require.NoError(t, err)
	return g
}
