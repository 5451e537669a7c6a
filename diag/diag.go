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
	"fmt"
	"io"
	"os"

	"github.com/samber/lo"
)

type Category int

const (
	Lexer Category = iota
	Parser
	Semantic
	Codegen
	System
)

type Level int

const (
	LevelWarning Level = iota
	LevelError
	LevelFatal
)

type Diagnostic struct {
	Category Category
	Level    Level
	Message  string
	Filename string
	Line     int
	Column   int
}

// Context collects diagnostics across all phases. Recording an error
// never aborts; the pipeline gates on HasErrors between phases so the
// user sees as much as possible per run.
type Context struct {
	diags []Diagnostic
	out   io.Writer
}

func NewContext() *Context {
	return &Context{out: os.Stderr}
}

// NewContextTo directs output to w instead of stderr. Used by tests.
func NewContextTo(w io.Writer) *Context {
	return &Context{out: w}
}

func (c Category) String() string {
	switch c {
	case Lexer:
		return "lexer"
	case Parser:
		return "parser"
	case Semantic:
		return "semantic"
	case Codegen:
		return "codegen"
	case System:
		return "system"
	}
	return "unknown"
}

func (l Level) String() string {
	switch l {
	case LevelWarning:
		return "warning"
	case LevelError:
		return "error"
	case LevelFatal:
		return "fatal"
	}
	return "unknown"
}

func (ctx *Context) Add(cat Category, level Level, filename string, line, col int, format string, args ...interface{}) {
	ctx.diags = append(ctx.diags, Diagnostic{
		Category: cat,
		Level:    level,
		Message:  fmt.Sprintf(format, args...),
		Filename: filename,
		Line:     line,
		Column:   col,
	})
}

func (ctx *Context) LexerError(filename string, line, col int, format string, args ...interface{}) {
	ctx.Add(Lexer, LevelError, filename, line, col, format, args...)
}

func (ctx *Context) ParserError(filename string, line, col int, format string, args ...interface{}) {
	ctx.Add(Parser, LevelError, filename, line, col, format, args...)
}

func (ctx *Context) SemanticError(filename string, line, col int, format string, args ...interface{}) {
	ctx.Add(Semantic, LevelError, filename, line, col, format, args...)
}

func (ctx *Context) CodegenError(filename string, line, col int, format string, args ...interface{}) {
	ctx.Add(Codegen, LevelError, filename, line, col, format, args...)
}

func (ctx *Context) Warning(cat Category, filename string, line, col int, format string, args ...interface{}) {
	ctx.Add(cat, LevelWarning, filename, line, col, format, args...)
}

func (ctx *Context) Fatal(filename string, line, col int, format string, args ...interface{}) {
	ctx.Add(System, LevelFatal, filename, line, col, format, args...)
}

// HasErrors reports whether any Error or Fatal diagnostic was recorded.
// Warnings do not gate phases.
func (ctx *Context) HasErrors() bool {
	return lo.SomeBy(ctx.diags, func(d Diagnostic) bool {
		return d.Level >= LevelError
	})
}

func (ctx *Context) HasFatal() bool {
	return lo.SomeBy(ctx.diags, func(d Diagnostic) bool {
		return d.Level == LevelFatal
	})
}

func (ctx *Context) ErrorCount() int {
	return lo.CountBy(ctx.diags, func(d Diagnostic) bool {
		return d.Level >= LevelError
	})
}

func (ctx *Context) WarningCount() int {
	return lo.CountBy(ctx.diags, func(d Diagnostic) bool {
		return d.Level == LevelWarning
	})
}

func (ctx *Context) Diagnostics() []Diagnostic {
	return ctx.diags
}

func (ctx *Context) PrintAll() {
	for _, d := range ctx.diags {
		if d.Filename != "" {
			fmt.Fprintf(ctx.out, "%s:%d:%d: %s %s: %s\n",
				d.Filename, d.Line, d.Column, d.Category, d.Level, d.Message)
		} else {
			fmt.Fprintf(ctx.out, "%s %s: %s\n", d.Category, d.Level, d.Message)
		}
	}
}
