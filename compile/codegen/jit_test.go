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
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/juusokasperi/tinyCompile/compile/ir"
	"github.com/juusokasperi/tinyCompile/diag"
	"github.com/juusokasperi/tinyCompile/platform"
)

func newTestContext(t *testing.T) (*Context, *platform.CodeArena, *diag.Context) {
	t.Helper()
	if !platform.JITSupported() {
		t.Skip("JIT not supported on this platform")
	}
	arena, err := platform.NewCodeArena(1 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { arena.Free() })
	sink := diag.NewContextTo(&strings.Builder{})
	return NewContext(arena, sink), arena, sink
}

// irReturnConst builds "func name() { return value }".
func irReturnConst(t *testing.T, sink *diag.Context, name string, value int64) *ir.Function {
	t.Helper()
	f := ir.NewFunction(name, "test.c", sink)
	v := f.AllocVreg()
	require.NotZero(t, v)
	f.Emit(ir.Instruction{Op: ir.OpConst, Dest: v, Imm: value})
	f.Emit(ir.Instruction{Op: ir.OpRet, Src1: v})
	return f
}

func TestCompileReturnConstant(t *testing.T) {
	ctx, arena, sink := newTestContext(t)
	f := irReturnConst(t, sink, "ret0", 0)
	require.True(t, ctx.CompileFunction(f))

	entry := ctx.Lookup("ret0")
	require.NotNil(t, entry)
	assert.Equal(t, entry.Size, len(entry.Code))
	assert.LessOrEqual(t, entry.Size, 64, "trivial function blew up")

	require.True(t, ctx.LinkAll())
	require.NoError(t, arena.MakeExecutable())
	assert.Equal(t, int64(0), platform.Invoke(entry.Addr))
}

func TestSizePredictionIsExact(t *testing.T) {
	// CompileFunction aborts on any pass-1/pass-2 disagreement, so a
	// varied function compiling at all is the assertion; the registry
	// size matching the allocation closes the loop.
	ctx, _, sink := newTestContext(t)
	f := ir.NewFunction("mix", "test.c", sink)
	v1 := f.AllocVreg()
	v2 := f.AllocVreg()
	v3 := f.AllocVreg()
	slot := f.AllocStackSlot()
	l0 := f.AllocLabel()
	f.Emit(ir.Instruction{Op: ir.OpConst, Dest: v1, Imm: 10})
	f.Emit(ir.Instruction{Op: ir.OpStore, Dest: slot, Src1: v1})
	f.Emit(ir.Instruction{Op: ir.OpLoad, Dest: v2, Src1: slot})
	f.Emit(ir.Instruction{Op: ir.OpJnz, Src1: v2, Label: l0})
	f.Emit(ir.Instruction{Op: ir.OpConst, Dest: v3, Imm: 99})
	f.Emit(ir.Instruction{Op: ir.OpRet, Src1: v3})
	f.Emit(ir.Instruction{Op: ir.OpLabel, Label: l0})
	f.Emit(ir.Instruction{Op: ir.OpRet, Src1: v2})

	require.True(t, ctx.CompileFunction(f))
	entry := ctx.Lookup("mix")
	require.NotNil(t, entry)
	assert.Equal(t, len(entry.Code), entry.Size)
}

func TestForwardJumpPatched(t *testing.T) {
	ctx, arena, sink := newTestContext(t)
	f := ir.NewFunction("fwd", "test.c", sink)
	v1 := f.AllocVreg()
	v2 := f.AllocVreg()
	l0 := f.AllocLabel()
	f.Emit(ir.Instruction{Op: ir.OpConst, Dest: v1, Imm: 7})
	f.Emit(ir.Instruction{Op: ir.OpJmp, Label: l0})
	f.Emit(ir.Instruction{Op: ir.OpConst, Dest: v2, Imm: 9})
	f.Emit(ir.Instruction{Op: ir.OpRet, Src1: v2})
	f.Emit(ir.Instruction{Op: ir.OpLabel, Label: l0})
	f.Emit(ir.Instruction{Op: ir.OpRet, Src1: v1})

	require.True(t, ctx.CompileFunction(f))
	require.True(t, ctx.LinkAll())
	require.NoError(t, arena.MakeExecutable())
	assert.Equal(t, int64(7), platform.Invoke(ctx.Lookup("fwd").Addr))
}

func TestLinkResolvesCallSites(t *testing.T) {
	ctx, arena, sink := newTestContext(t)
	callee := irReturnConst(t, sink, "callee", 21)
	require.True(t, ctx.CompileFunction(callee))

	caller := ir.NewFunction("caller", "test.c", sink)
	v1 := caller.AllocVreg()
	v2 := caller.AllocVreg()
	v3 := caller.AllocVreg()
	caller.Emit(ir.Instruction{Op: ir.OpCall, Dest: v1, FuncName: "callee"})
	caller.Emit(ir.Instruction{Op: ir.OpConst, Dest: v2, Imm: 2})
	caller.Emit(ir.Instruction{Op: ir.OpMul, Dest: v3, Src1: v1, Src2: v2})
	caller.Emit(ir.Instruction{Op: ir.OpRet, Src1: v3})
	require.True(t, ctx.CompileFunction(caller))

	// Before linking, the placeholder is in the emitted bytes.
	sentinel := []byte{0xEF, 0xBE, 0xAD, 0xDE, 0xEF, 0xBE, 0xAD, 0xDE}
	require.True(t, bytes.Contains(ctx.Lookup("caller").Code, sentinel))

	require.True(t, ctx.LinkAll())

	// After linking, no byte of the sentinel survives anywhere.
	assert.False(t, bytes.Contains(arena.Bytes(), sentinel))

	require.NoError(t, arena.MakeExecutable())
	assert.Equal(t, int64(42), platform.Invoke(ctx.Lookup("caller").Addr))
}

func TestLinkUnresolvedSymbol(t *testing.T) {
	ctx, _, sink := newTestContext(t)
	caller := ir.NewFunction("caller", "test.c", sink)
	v1 := caller.AllocVreg()
	caller.Emit(ir.Instruction{Op: ir.OpCall, Dest: v1, FuncName: "ghost"})
	caller.Emit(ir.Instruction{Op: ir.OpRet, Src1: v1})
	require.True(t, ctx.CompileFunction(caller))

	assert.False(t, ctx.LinkAll())
	assert.True(t, sink.HasErrors())
}

func TestFrameBytesKeepsAlignment(t *testing.T) {
	// Odd slot counts keep rsp ≡ 0 (mod 16) at calls: six pushes plus
	// the return address leave entry-48-8 ≡ 8 (mod 16), and an odd
	// multiple of 8 closes the gap.
	for slots := 0; slots < 9; slots++ {
		fb := frameBytes(slots)
		assert.Equal(t, 8, fb%16, "frameBytes(%d) = %d", slots, fb)
		assert.GreaterOrEqual(t, fb, slots*8)
	}
}

func TestRegistryLookup(t *testing.T) {
	ctx, _, sink := newTestContext(t)
	require.True(t, ctx.CompileFunction(irReturnConst(t, sink, "a", 1)))
	require.True(t, ctx.CompileFunction(irReturnConst(t, sink, "b", 2)))
	assert.NotNil(t, ctx.Lookup("a"))
	assert.NotNil(t, ctx.Lookup("b"))
	assert.Nil(t, ctx.Lookup("c"))
	assert.NotEqual(t, ctx.Lookup("a").Addr, ctx.Lookup("b").Addr)
}
