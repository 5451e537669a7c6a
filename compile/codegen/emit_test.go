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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/arch/x86/x86asm"
)

// emitInto runs fn against a sizing buffer and an emission buffer and
// checks both agree byte-exactly, which is the two-pass invariant at
// the helper level.
func emitInto(t *testing.T, fn func(*Buffer)) []byte {
	t.Helper()
	sizing := NewBuffer(nil)
	fn(sizing)
	buf := make([]byte, sizing.Len())
	emission := NewBuffer(buf)
	fn(emission)
	require.Equal(t, sizing.Len(), emission.Len(), "sizing disagrees with emission")
	return buf
}

// disasm decodes the whole byte string in 64-bit mode.
func disasm(t *testing.T, code []byte) []x86asm.Inst {
	t.Helper()
	var insts []x86asm.Inst
	for len(code) > 0 {
		inst, err := x86asm.Decode(code, 64)
		require.NoError(t, err, "undecodable bytes: % x", code)
		insts = append(insts, inst)
		code = code[inst.Len:]
	}
	return insts
}

func single(t *testing.T, fn func(*Buffer)) x86asm.Inst {
	t.Helper()
	insts := disasm(t, emitInto(t, fn))
	require.Len(t, insts, 1)
	return insts[0]
}

func TestMovRegReg(t *testing.T) {
	inst := single(t, func(b *Buffer) { b.MovRegReg(RBX, RAX) })
	assert.Equal(t, x86asm.MOV, inst.Op)
	assert.Equal(t, x86asm.RBX, inst.Args[0])
	assert.Equal(t, x86asm.RAX, inst.Args[1])
}

func TestMovRegRegExtended(t *testing.T) {
	inst := single(t, func(b *Buffer) { b.MovRegReg(R12, R15) })
	assert.Equal(t, x86asm.MOV, inst.Op)
	assert.Equal(t, x86asm.R12, inst.Args[0])
	assert.Equal(t, x86asm.R15, inst.Args[1])
}

func TestMovRegImm64(t *testing.T) {
	inst := single(t, func(b *Buffer) { b.MovRegImm64(RAX, 0x1122334455667788) })
	assert.Equal(t, x86asm.MOV, inst.Op)
	assert.Equal(t, x86asm.RAX, inst.Args[0])
	assert.Equal(t, x86asm.Imm(0x1122334455667788), inst.Args[1])
	assert.Equal(t, 10, inst.Len)
}

func TestMovStoreLoadRBP(t *testing.T) {
	store := single(t, func(b *Buffer) { b.MovStoreRBP(-48, R13) })
	assert.Equal(t, x86asm.MOV, store.Op)
	mem, ok := store.Args[0].(x86asm.Mem)
	require.True(t, ok)
	assert.Equal(t, x86asm.RBP, mem.Base)
	assert.Equal(t, int64(-48), mem.Disp)
	assert.Equal(t, x86asm.R13, store.Args[1])

	load := single(t, func(b *Buffer) { b.MovLoadRBP(RDX, 16) })
	assert.Equal(t, x86asm.MOV, load.Op)
	assert.Equal(t, x86asm.RDX, load.Args[0])
	mem, ok = load.Args[1].(x86asm.Mem)
	require.True(t, ok)
	assert.Equal(t, x86asm.RBP, mem.Base)
	assert.Equal(t, int64(16), mem.Disp)
}

func TestALUOps(t *testing.T) {
	cases := []struct {
		opcode byte
		want   x86asm.Op
	}{
		{aluAdd, x86asm.ADD},
		{aluSub, x86asm.SUB},
		{aluAnd, x86asm.AND},
		{aluOr, x86asm.OR},
		{aluXor, x86asm.XOR},
		{aluCmp, x86asm.CMP},
	}
	for _, tc := range cases {
		inst := single(t, func(b *Buffer) { b.ALU(tc.opcode, RAX, RDX) })
		assert.Equal(t, tc.want, inst.Op)
		assert.Equal(t, x86asm.RAX, inst.Args[0])
		assert.Equal(t, x86asm.RDX, inst.Args[1])
	}
}

func TestIMul(t *testing.T) {
	inst := single(t, func(b *Buffer) { b.IMul(RAX, R12) })
	assert.Equal(t, x86asm.IMUL, inst.Op)
	assert.Equal(t, x86asm.RAX, inst.Args[0])
	assert.Equal(t, x86asm.R12, inst.Args[1])
}

func TestCqoIdiv(t *testing.T) {
	insts := disasm(t, emitInto(t, func(b *Buffer) {
		b.Cqo()
		b.IDiv(RCX)
	}))
	require.Len(t, insts, 2)
	assert.Equal(t, x86asm.CQO, insts[0].Op)
	assert.Equal(t, x86asm.IDIV, insts[1].Op)
	assert.Equal(t, x86asm.RCX, insts[1].Args[0])
}

func TestNegNot(t *testing.T) {
	neg := single(t, func(b *Buffer) { b.Neg(RAX) })
	assert.Equal(t, x86asm.NEG, neg.Op)
	not := single(t, func(b *Buffer) { b.Not(RAX) })
	assert.Equal(t, x86asm.NOT, not.Op)
}

func TestSetccMovzx(t *testing.T) {
	insts := disasm(t, emitInto(t, func(b *Buffer) {
		b.TestRegReg(RAX, RAX)
		b.Setcc(CondE, RAX)
		b.Movzx(RAX, RAX)
	}))
	require.Len(t, insts, 3)
	assert.Equal(t, x86asm.TEST, insts[0].Op)
	assert.Equal(t, x86asm.SETE, insts[1].Op)
	assert.Equal(t, x86asm.AL, insts[1].Args[0])
	assert.Equal(t, x86asm.MOVZX, insts[2].Op)
}

func TestSetccConditions(t *testing.T) {
	cases := []struct {
		cc   Cond
		want x86asm.Op
	}{
		{CondE, x86asm.SETE},
		{CondNE, x86asm.SETNE},
		{CondL, x86asm.SETL},
		{CondLE, x86asm.SETLE},
		{CondG, x86asm.SETG},
		{CondGE, x86asm.SETGE},
	}
	for _, tc := range cases {
		inst := single(t, func(b *Buffer) { b.Setcc(tc.cc, RAX) })
		assert.Equal(t, tc.want, inst.Op)
	}
}

func TestShiftCL(t *testing.T) {
	shl := single(t, func(b *Buffer) { b.ShiftCL(shiftExtShl, RAX) })
	assert.Equal(t, x86asm.SHL, shl.Op)
	sar := single(t, func(b *Buffer) { b.ShiftCL(shiftExtSar, RAX) })
	assert.Equal(t, x86asm.SAR, sar.Op)
	assert.Equal(t, x86asm.CL, sar.Args[1])
}

func TestPushPop(t *testing.T) {
	push := single(t, func(b *Buffer) { b.Push(RBX) })
	assert.Equal(t, x86asm.PUSH, push.Op)
	assert.Equal(t, 1, push.Len)

	pushExt := single(t, func(b *Buffer) { b.Push(R15) })
	assert.Equal(t, x86asm.PUSH, pushExt.Op)
	assert.Equal(t, x86asm.R15, pushExt.Args[0])
	assert.Equal(t, 2, pushExt.Len)

	pop := single(t, func(b *Buffer) { b.Pop(R12) })
	assert.Equal(t, x86asm.POP, pop.Op)
	assert.Equal(t, x86asm.R12, pop.Args[0])
}

func TestRSPAdjust(t *testing.T) {
	sub := single(t, func(b *Buffer) { b.SubRSPImm32(40) })
	assert.Equal(t, x86asm.SUB, sub.Op)
	assert.Equal(t, x86asm.RSP, sub.Args[0])
	assert.Equal(t, x86asm.Imm(40), sub.Args[1])

	add := single(t, func(b *Buffer) { b.AddRSPImm32(24) })
	assert.Equal(t, x86asm.ADD, add.Op)
	assert.Equal(t, x86asm.Imm(24), add.Args[1])
}

func TestLeaRspRbp(t *testing.T) {
	inst := single(t, func(b *Buffer) { b.LeaRspRbpDisp(-40) })
	assert.Equal(t, x86asm.LEA, inst.Op)
	assert.Equal(t, x86asm.RSP, inst.Args[0])
	mem, ok := inst.Args[1].(x86asm.Mem)
	require.True(t, ok)
	assert.Equal(t, x86asm.RBP, mem.Base)
	assert.Equal(t, int64(-40), mem.Disp)
}

func TestCallRaxRet(t *testing.T) {
	insts := disasm(t, emitInto(t, func(b *Buffer) {
		b.CallRax()
		b.Ret()
	}))
	require.Len(t, insts, 2)
	assert.Equal(t, x86asm.CALL, insts[0].Op)
	assert.Equal(t, x86asm.RAX, insts[0].Args[0])
	assert.Equal(t, x86asm.RET, insts[1].Op)
}

func TestJumps(t *testing.T) {
	jmp := single(t, func(b *Buffer) { b.Jmp32(0x11223344) })
	assert.Equal(t, x86asm.JMP, jmp.Op)
	assert.Equal(t, 5, jmp.Len)

	je := single(t, func(b *Buffer) { b.Jcc32(CondE, -8) })
	assert.Equal(t, x86asm.JE, je.Op)
	assert.Equal(t, 6, je.Len)

	jne := single(t, func(b *Buffer) { b.Jcc32(CondNE, 16) })
	assert.Equal(t, x86asm.JNE, jne.Op)
}

func TestPatchU32(t *testing.T) {
	var off int
	code := emitInto(t, func(b *Buffer) {
		off = b.Jmp32(0)
		b.Ret()
		b.PatchU32(off, 0x7F)
	})
	insts := disasm(t, code)
	assert.Equal(t, x86asm.JMP, insts[0].Op)
	rel, ok := insts[0].Args[0].(x86asm.Rel)
	require.True(t, ok)
	assert.Equal(t, x86asm.Rel(0x7F), rel)
}

func TestSizingNeverWrites(t *testing.T) {
	b := NewBuffer(nil)
	b.MovRegImm64(RAX, 1)
	b.Push(RBX)
	b.Ret()
	assert.True(t, b.Sizing())
	assert.Equal(t, 10+1+1, b.Len())
}
