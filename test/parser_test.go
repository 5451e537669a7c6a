// Copyright (c) 2025 The TinyCompile Contributors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.
package test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/juusokasperi/tinyCompile/ast"
	"github.com/juusokasperi/tinyCompile/diag"
)

func parse(t *testing.T, source string) (*ast.TranslationUnit, *diag.Context, bool) {
	t.Helper()
	sink := diag.NewContextTo(&strings.Builder{})
	unit, ok := ast.ParseFile("test.c", []byte(source), sink)
	return unit, sink, ok
}

func TestParseSimpleFunction(t *testing.T) {
	unit, sink, ok := parse(t, `int main() { return 0; }`)
	require.True(t, ok)
	require.False(t, sink.HasErrors())
	require.Len(t, unit.Funcs, 1)
	assert.Equal(t, "main", unit.Funcs[0].Name)
	assert.False(t, unit.Funcs[0].IsPrototype)
}

func TestParsePrototype(t *testing.T) {
	unit, _, ok := parse(t, `int add(int a, int b);`)
	require.True(t, ok)
	require.Len(t, unit.Funcs, 1)
	assert.True(t, unit.Funcs[0].IsPrototype)
	assert.Len(t, unit.Funcs[0].Params, 2)
}

func TestParseRecoversAtStatementBoundary(t *testing.T) {
	// Both bad statements should be reported, not just the first.
	_, sink, ok := parse(t, `
	int main() {
		int x = ;
		int y = 1;
		return @;
	}`)
	require.False(t, ok)
	assert.GreaterOrEqual(t, sink.ErrorCount(), 2)
}

func TestParseRejectsShortCircuit(t *testing.T) {
	_, sink, ok := parse(t, `int main() { return 1 && 2; }`)
	require.False(t, ok)
	require.True(t, sink.HasErrors())
	found := false
	for _, d := range sink.Diagnostics() {
		if strings.Contains(d.Message, "not supported") {
			found = true
		}
	}
	assert.True(t, found, "expected a 'not supported' diagnostic for &&")
}

func TestParseDepthLimit(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("int main() { return ")
	for i := 0; i < ast.MaxExpressionDepth+8; i++ {
		sb.WriteString("(")
	}
	sb.WriteString("1")
	for i := 0; i < ast.MaxExpressionDepth+8; i++ {
		sb.WriteString(")")
	}
	sb.WriteString("; }")
	_, sink, ok := parse(t, sb.String())
	require.False(t, ok)
	assert.True(t, sink.HasErrors())
}

func TestParseUnterminatedBlockComment(t *testing.T) {
	_, sink, _ := parse(t, `int main() { return 0; } /* dangling`)
	require.True(t, sink.HasErrors())
}

func TestParseIllegalCharacter(t *testing.T) {
	_, sink, _ := parse(t, `int main() { return 0$; }`)
	require.True(t, sink.HasErrors())
}

func TestParseComments(t *testing.T) {
	unit, sink, ok := parse(t, `
	// line comment
	int main() { /* block */ return 0; } // trailing`)
	require.True(t, ok)
	require.False(t, sink.HasErrors())
	require.Len(t, unit.Funcs, 1)
}

// TestPrintReparseShape round-trips a unit through the source printer
// and checks the re-parsed tree has the same shape.
func TestPrintReparseShape(t *testing.T) {
	source := `
	int fact(int n) { if (n <= 1) return 1; return n * fact(n-1); }
	int helper(int a, int b);
	int main() {
		int x = 3 + 4 * 5;
		while (x > 0) { x = x - 1; }
		if (x == 0) return fact(6);
		else return ~x | 1;
	}`
	unit, sink, ok := parse(t, source)
	require.True(t, ok, "initial parse failed")
	require.False(t, sink.HasErrors())

	printed := ast.EmitSource(unit)
	unit2, sink2, ok2 := parse(t, printed)
	require.True(t, ok2, "re-parse failed:\n%s", printed)
	require.False(t, sink2.HasErrors())

	assert.Equal(t, shapeOf(unit), shapeOf(unit2), "printed form:\n%s", printed)
}

// shapeOf flattens a tree to node labels in visit order.
func shapeOf(unit *ast.TranslationUnit) []string {
	var shape []string
	walker := &ast.AstWalker{Func: func(node ast.AstNode, _ ast.AstNode, depth int) {
		shape = append(shape, node.String())
	}}
	walker.WalkAst(unit, unit, 0)
	return shape
}
