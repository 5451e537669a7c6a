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
package diag

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWarningsDoNotGate(t *testing.T) {
	ctx := NewContextTo(&strings.Builder{})
	ctx.Warning(Semantic, "a.c", 1, 1, "narrowing")
	assert.False(t, ctx.HasErrors())
	assert.Equal(t, 1, ctx.WarningCount())
	assert.Equal(t, 0, ctx.ErrorCount())
}

func TestErrorsAccumulate(t *testing.T) {
	ctx := NewContextTo(&strings.Builder{})
	ctx.LexerError("a.c", 1, 2, "illegal character")
	ctx.ParserError("a.c", 3, 4, "expected ';'")
	ctx.SemanticError("b.c", 5, 6, "undeclared identifier 'x'")
	assert.True(t, ctx.HasErrors())
	assert.False(t, ctx.HasFatal())
	assert.Equal(t, 3, ctx.ErrorCount())
}

func TestFatal(t *testing.T) {
	ctx := NewContextTo(&strings.Builder{})
	ctx.Fatal("", 0, 0, "mprotect failed")
	assert.True(t, ctx.HasFatal())
	assert.True(t, ctx.HasErrors())
}

func TestPrintFormat(t *testing.T) {
	var sb strings.Builder
	ctx := NewContextTo(&sb)
	ctx.SemanticError("main.c", 7, 12, "undeclared identifier 'y'")
	ctx.PrintAll()
	assert.Contains(t, sb.String(), "main.c:7:12: semantic error: undeclared identifier 'y'")
}
