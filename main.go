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
package main

import (
	"fmt"
	"os"

	"github.com/juusokasperi/tinyCompile/compile"
	"github.com/juusokasperi/tinyCompile/diag"
	"github.com/juusokasperi/tinyCompile/platform"
)

func printPhase(n int, name string) {
	fmt.Printf("\n=== Phase %d: %s ===\n", n, name)
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	errors := diag.NewContext()
	resources := &platform.Tracker{}
	defer resources.ReleaseAll()
	defer func() {
		if errors.HasErrors() || errors.HasFatal() {
			errors.PrintAll()
		}
	}()

	if len(args) == 0 {
		fmt.Println("Usage: tinyCompile <file1.c> [file2.c ...]")
		errors.Fatal("", 0, 0, "no input files")
		return 1
	}
	if !platform.JITSupported() {
		errors.Fatal("", 0, 0, "unsupported platform (need x86-64 on a POSIX system)")
		return 1
	}

	printPhase(1, "INITIALIZATION")
	ctx := compile.NewCompilationContext(errors, resources)
	for _, path := range args {
		if !ctx.AddFile(path) {
			return 1
		}
	}

	printPhase(2, "PARSING")
	if !ctx.ParseAll() || errors.HasErrors() {
		fmt.Fprintln(os.Stderr, "  > parsing failed")
		return 1
	}

	printPhase(3, "SEMANTICS")
	if !ctx.AnalyzeAll() || errors.HasErrors() {
		fmt.Fprintln(os.Stderr, "  > semantic analysis failed")
		return 1
	}

	printPhase(4, "JIT")
	entry, err := ctx.BuildAndLink()
	if err != nil {
		fmt.Fprintf(os.Stderr, "  > %v\n", err)
		return 1
	}

	printPhase(5, "EXECUTION")
	result := platform.Invoke(entry)
	fmt.Println("  -----------------------------------------")
	fmt.Printf("   RETURN CODE >> %d\n", result)
	fmt.Println("  -----------------------------------------")
	return int(result)
}
