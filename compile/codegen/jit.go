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
package codegen

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/samber/lo"

	"github.com/juusokasperi/tinyCompile/compile/ir"
	"github.com/juusokasperi/tinyCompile/diag"
	"github.com/juusokasperi/tinyCompile/platform"
	"github.com/juusokasperi/tinyCompile/utils"
)

const (
	MaxCallSites = 1024

	// callTargetPlaceholder fills the imm64 of "mov rax, imm64" until
	// the linker writes the real address. No byte of it may survive
	// into the final executable region.
	callTargetPlaceholder = 0xDEADBEEFDEADBEEF
)

// CompiledFunction is one registry entry used for link resolution and
// entry dispatch.
type CompiledFunction struct {
	Name string
	Code []byte
	Addr uintptr
	Size int
}

// CallSite is a patch slot inside emitted code: the 8 bytes after a
// "mov rax, imm64" opcode, waiting for the target's code address.
type CallSite struct {
	Loc        []byte
	TargetName string
	Caller     string
}

// Context accumulates compiled functions and unresolved call sites
// across the whole program, then links them in place.
type Context struct {
	arena    *platform.CodeArena
	errors   *diag.Context
	Registry []*CompiledFunction
	sites    []CallSite
}

func NewContext(arena *platform.CodeArena, errors *diag.Context) *Context {
	return &Context{arena: arena, errors: errors}
}

func (ctx *Context) recordCallSite(loc []byte, target string, caller *ir.Function) {
	if len(ctx.sites) >= MaxCallSites {
		ctx.errors.CodegenError(caller.Filename, 0, 0,
			"call site limit exceeded (max %d)", MaxCallSites)
		return
	}
	ctx.sites = append(ctx.sites, CallSite{Loc: loc, TargetName: target, Caller: caller.Name})
}

// CompileFunction runs the two-pass builder for one IR function:
// pass 1 sizes every instruction, the exact byte count is allocated
// from the executable arena, and pass 2 emits into it. A size mismatch
// is a bug in an encoder and aborts rather than corrupt memory.
func (ctx *Context) CompileFunction(f *ir.Function) bool {
	f.Validate()

	enc := newEncoder(f, ctx)

	// Pass 1: size. The allocator assigns every Location here, locking
	// the frame layout before a single byte is written.
	size := enc.run(nil)
	if enc.patches != nil {
		ctx.errors.CodegenError(f.Filename, 0, 0,
			"function '%s' has unresolved jump targets", f.Name)
		return false
	}
	spills := enc.alloc.SpillCount()

	buf := ctx.arena.Alloc(size, 16)
	if buf == nil {
		ctx.errors.Fatal(f.Filename, 0, 0,
			"code arena exhausted while compiling '%s' (%d bytes)", f.Name, size)
		return false
	}

	// Pass 2: emit. Resetting and replaying reproduces the exact same
	// allocator decisions, so only frameBytes needs carrying over.
	enc.frameBytes = frameBytes(f.StackCount + spills)
	written := enc.run(buf)

	if written != size || enc.alloc.SpillCount() != spills || enc.patches != nil {
		fmt.Fprintf(os.Stderr, "== encoder mismatch in %s (sized %d, wrote %d) ==\n%s",
			f.Name, size, written, f.String())
		utils.Assert(false, "sizing pass disagrees with emission pass for '%s'", f.Name)
	}

	ctx.Registry = append(ctx.Registry, &CompiledFunction{
		Name: f.Name,
		Code: buf,
		Addr: ctx.arena.Addr(buf),
		Size: size,
	})
	return true
}

// frameBytes rounds the frame up to an odd slot count. The prologue
// leaves rsp at entry%16 after six pushes, so an odd multiple of eight
// below that realigns every later call site.
func frameBytes(slots int) int {
	if slots%2 == 0 {
		slots++
	}
	return slots * WordSize
}

// LinkAll writes the resolved code address of every call site. Must
// run before the arena flips to RX.
func (ctx *Context) LinkAll() bool {
	ok := true
	for _, site := range ctx.sites {
		target, found := lo.Find(ctx.Registry, func(c *CompiledFunction) bool {
			return c.Name == site.TargetName
		})
		if !found {
			ctx.errors.CodegenError("", 0, 0,
				"undefined reference to '%s' (called from '%s')",
				site.TargetName, site.Caller)
			ok = false
			continue
		}
		binary.LittleEndian.PutUint64(site.Loc, uint64(target.Addr))
	}
	return ok
}

// Lookup finds a compiled function by name.
func (ctx *Context) Lookup(name string) *CompiledFunction {
	fn, found := lo.Find(ctx.Registry, func(c *CompiledFunction) bool {
		return c.Name == name
	})
	if !found {
		return nil
	}
	return fn
}
