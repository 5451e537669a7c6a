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
package compile

import (
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"

	"github.com/juusokasperi/tinyCompile/ast"
	"github.com/juusokasperi/tinyCompile/compile/codegen"
	"github.com/juusokasperi/tinyCompile/compile/ir"
	"github.com/juusokasperi/tinyCompile/diag"
	"github.com/juusokasperi/tinyCompile/platform"
)

const (
	MaxSourceFiles = 64
	MaxFileSize    = 10 << 20 // 10 MiB

	// CodeArenaSize is a generous upper bound for all emitted code;
	// the arena is a single mapping so addresses never move.
	CodeArenaSize = 16 << 20
)

const (
	DebugPrintLexicalToken = false
	DebugPrintAst          = false
	DebugPrintTypedAst     = false
	DebugPrintIR           = false
)

// CompilationUnit is one source file moving through the phases.
type CompilationUnit struct {
	File     *platform.FileMap
	Ast      *ast.TranslationUnit
	ParsedOk bool
}

// CompilationContext drives the phases over every unit. Control flow
// is strictly phased: each phase completes for all units, the error
// sink is checked, then the next phase starts.
type CompilationContext struct {
	Units     []*CompilationUnit
	Errors    *diag.Context
	Global    *ast.GlobalScope
	Resources *platform.Tracker
}

func NewCompilationContext(errors *diag.Context, resources *platform.Tracker) *CompilationContext {
	return &CompilationContext{
		Errors:    errors,
		Global:    ast.NewGlobalScope(),
		Resources: resources,
	}
}

// AddFile validates and maps one input file.
func (ctx *CompilationContext) AddFile(path string) bool {
	if len(ctx.Units) >= MaxSourceFiles {
		ctx.Errors.Fatal(path, 0, 0, "too many input files (max %d)", MaxSourceFiles)
		return false
	}
	if !strings.HasSuffix(path, ".c") {
		ctx.Errors.Fatal(path, 0, 0, "input file must end in .c")
		return false
	}
	st, err := os.Stat(path)
	if err != nil {
		ctx.Errors.Fatal(path, 0, 0, "%v", err)
		return false
	}
	if !st.Mode().IsRegular() {
		ctx.Errors.Fatal(path, 0, 0, "not a regular file")
		return false
	}
	if st.Size() > MaxFileSize {
		ctx.Errors.Fatal(path, 0, 0, "file too large (%d bytes, max %d)", st.Size(), MaxFileSize)
		return false
	}
	file, err := platform.MapFile(path)
	if err != nil {
		ctx.Errors.Fatal(path, 0, 0, "%v", err)
		return false
	}
	ctx.Resources.TrackFile(file)
	ctx.Units = append(ctx.Units, &CompilationUnit{File: file})
	fmt.Printf("Added file: %s (%d bytes)\n", path, st.Size())
	return true
}

// ParseAll lexes and parses every unit.
func (ctx *CompilationContext) ParseAll() bool {
	allOk := true
	for _, unit := range ctx.Units {
		fmt.Printf("Parsing %s...\n", unit.File.Name)
		if DebugPrintLexicalToken {
			ast.PrintTokenized(unit.File.Name, unit.File.Data, ctx.Errors)
		}
		root, ok := ast.ParseFile(unit.File.Name, unit.File.Data, ctx.Errors)
		unit.Ast = root
		unit.ParsedOk = ok
		if !ok {
			allOk = false
		}
		if DebugPrintAst {
			ast.PrintAst(root, false)
		}
	}
	return allOk
}

// AnalyzeAll collects every function declaration first, so cross-unit
// calls resolve regardless of file order, then checks the bodies.
func (ctx *CompilationContext) AnalyzeAll() bool {
	allOk := true
	fmt.Println("Pass 1: Collecting function declarations..")
	for _, unit := range ctx.Units {
		if !unit.ParsedOk {
			continue
		}
		for _, fn := range unit.Ast.Funcs {
			if !ctx.Global.Declare(fn, unit.File.Name, ctx.Errors) {
				allOk = false
			}
		}
	}

	fmt.Println("Pass 2: Analyzing function bodies..")
	for _, unit := range ctx.Units {
		if !unit.ParsedOk {
			continue
		}
		fmt.Printf("Analyzing %s...\n", unit.File.Name)
		if !ast.Analyze(unit.Ast, ctx.Global, unit.File.Name, ctx.Errors) {
			allOk = false
		}
		if DebugPrintTypedAst {
			ast.PrintAst(unit.Ast, true)
		}
	}
	return allOk
}

// CompileAll lowers every function definition to IR and runs the
// two-pass machine-code builder. One symbol table serves the whole
// run; IR generation unwinds its scope changes before returning.
func (ctx *CompilationContext) CompileAll(jit *codegen.Context) bool {
	allOk := true
	symtab := ir.NewSymbolTable()
	for _, unit := range ctx.Units {
		if !unit.ParsedOk {
			continue
		}
		for _, decl := range unit.Ast.Funcs {
			if decl.IsPrototype {
				continue
			}
			fn := ir.Generate(decl, symtab, unit.File.Name, ctx.Errors)
			if fn == nil {
				allOk = false
				continue
			}
			if DebugPrintIR {
				ir.Print(fn)
			}
			if !jit.CompileFunction(fn) {
				allOk = false
			}
		}
	}
	return allOk
}

// HasEntryPoint reports whether any unit defines main.
func (ctx *CompilationContext) HasEntryPoint() bool {
	for _, unit := range ctx.Units {
		if unit.Ast == nil {
			continue
		}
		for _, fn := range unit.Ast.Funcs {
			if fn.Name == "main" && !fn.IsPrototype {
				return true
			}
		}
	}
	return false
}

// -----------------------------------------------------------------------------
// In-process convenience entry points

// BuildAndLink drives the back half of the pipeline: JIT every
// function, patch the call sites, flip the arena executable and locate
// main. The returned address is ready for platform.Invoke.
func (ctx *CompilationContext) BuildAndLink() (uintptr, error) {
	arena, err := platform.NewCodeArena(CodeArenaSize)
	if err != nil {
		return 0, err
	}
	ctx.Resources.TrackArena(arena)

	jit := codegen.NewContext(arena, ctx.Errors)
	if !ctx.CompileAll(jit) || ctx.Errors.HasErrors() {
		return 0, errors.New("code generation failed")
	}
	if !jit.LinkAll() {
		return 0, errors.New("linking failed")
	}
	if err := arena.MakeExecutable(); err != nil {
		ctx.Errors.Fatal("", 0, 0, "failed to set executable permissions: %v", err)
		return 0, err
	}
	entry := jit.Lookup("main")
	if entry == nil {
		ctx.Errors.Fatal("", 0, 0, "no 'main' function found")
		return 0, errors.New("no entry point")
	}
	return entry.Addr, nil
}

// CompileText compiles source text in-process and runs its main.
// The test suites are built on this.
func CompileText(source string) (int64, *diag.Context, error) {
	sink := diag.NewContext()
	resources := &platform.Tracker{}
	defer resources.ReleaseAll()

	ctx := NewCompilationContext(sink, resources)
	unit := &CompilationUnit{File: &platform.FileMap{Name: "<text>", Data: []byte(source)}}
	ctx.Units = append(ctx.Units, unit)

	root, ok := ast.ParseFile(unit.File.Name, unit.File.Data, sink)
	unit.Ast = root
	unit.ParsedOk = ok
	if !ok || sink.HasErrors() {
		return 0, sink, errors.New("parse failed")
	}
	if !ctx.AnalyzeAllQuiet() || sink.HasErrors() {
		return 0, sink, errors.New("semantic analysis failed")
	}
	entry, err := ctx.BuildAndLink()
	if err != nil {
		return 0, sink, err
	}
	return platform.Invoke(entry), sink, nil
}

// AnalyzeAllQuiet is AnalyzeAll without the phase chatter.
func (ctx *CompilationContext) AnalyzeAllQuiet() bool {
	allOk := true
	for _, unit := range ctx.Units {
		if !unit.ParsedOk {
			continue
		}
		for _, fn := range unit.Ast.Funcs {
			if !ctx.Global.Declare(fn, unit.File.Name, ctx.Errors) {
				allOk = false
			}
		}
	}
	for _, unit := range ctx.Units {
		if !unit.ParsedOk {
			continue
		}
		if !ast.Analyze(unit.Ast, ctx.Global, unit.File.Name, ctx.Errors) {
			allOk = false
		}
	}
	return allOk
}
