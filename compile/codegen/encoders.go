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
	"github.com/juusokasperi/tinyCompile/compile/ir"
	"github.com/juusokasperi/tinyCompile/utils"
)

// -----------------------------------------------------------------------------
// Per-opcode encoders
//
// Every encoder runs twice: once against a sizing Buffer and once
// against the real one. State deltas (pending args, patch list, label
// table, allocator bindings) happen in both runs and replay
// identically because the builder resets the encoder between passes.

type encoderFunc func(*encoder, *ir.Instruction)

var encoders = [ir.OpcodeCount]encoderFunc{
	ir.OpAdd:    encodeBin,
	ir.OpSub:    encodeBin,
	ir.OpMul:    encodeMul,
	ir.OpDiv:    encodeDiv,
	ir.OpAnd:    encodeBin,
	ir.OpOr:     encodeBin,
	ir.OpXor:    encodeBin,
	ir.OpShl:    encodeShift,
	ir.OpShr:    encodeShift,
	ir.OpCmpEq:  encodeCmp,
	ir.OpCmpNe:  encodeCmp,
	ir.OpCmpLt:  encodeCmp,
	ir.OpCmpLe:  encodeCmp,
	ir.OpCmpGt:  encodeCmp,
	ir.OpCmpGe:  encodeCmp,
	ir.OpNeg:    encodeNeg,
	ir.OpNot:    encodeNot,
	ir.OpBitNot: encodeBitNot,
	ir.OpRet:    encodeRet,
	ir.OpMov:    encodeMov,
	ir.OpConst:  encodeConst,
	ir.OpCall:   encodeCall,
	ir.OpArg:    encodeArg,
	ir.OpJmp:    encodeJmp,
	ir.OpJz:     encodeBranch,
	ir.OpJnz:    encodeBranch,
	ir.OpLabel:  encodeLabel,
	ir.OpLoad:   encodeLoad,
	ir.OpStore:  encodeStore,
}

var aluOpcodes = map[ir.Opcode]byte{
	ir.OpAdd: aluAdd,
	ir.OpSub: aluSub,
	ir.OpAnd: aluAnd,
	ir.OpOr:  aluOr,
	ir.OpXor: aluXor,
}

var cmpConds = map[ir.Opcode]Cond{
	ir.OpCmpEq: CondE,
	ir.OpCmpNe: CondNE,
	ir.OpCmpLt: CondL,
	ir.OpCmpLe: CondLE,
	ir.OpCmpGt: CondG,
	ir.OpCmpGe: CondGE,
}

// patchRecord remembers a forward jump whose rel32 field waits for its
// label. Prepended on emit, unlinked when the label is defined.
type patchRecord struct {
	label   int
	dispOff int
	next    *patchRecord
}

type encoder struct {
	fn    *ir.Function
	ctx   *Context
	b     *Buffer
	alloc *Allocator

	pending []int // vregs buffered by ARG for the next CALL
	patches *patchRecord
	labels  map[int]int

	// frameBytes is zero during sizing; the builder sets the real
	// value before the emission pass (the sub rsp encoding has the
	// same size either way).
	frameBytes int
}

func newEncoder(fn *ir.Function, ctx *Context) *encoder {
	return &encoder{fn: fn, ctx: ctx}
}

// run executes one full pass over the function. buf == nil sizes, a
// real slice emits. Returns the byte count.
func (e *encoder) run(buf []byte) int {
	e.b = NewBuffer(buf)
	e.alloc = NewAllocator(e.fn.StackCount)
	e.pending = e.pending[:0]
	e.patches = nil
	e.labels = make(map[int]int, e.fn.LabelCount)

	e.emitPrologue()
	e.fn.ForEach(func(inst *ir.Instruction) {
		encoders[inst.Op](e, inst)
	})
	return e.b.Len()
}

// -----------------------------------------------------------------------------
// Location plumbing

// loadLocation materializes loc into dst.
func (e *encoder) loadLocation(dst X86Reg, loc Location) {
	switch loc.Kind {
	case LocRegister:
		if loc.Reg != dst {
			e.b.MovRegReg(dst, loc.Reg)
		}
	case LocStack:
		e.b.MovLoadRBP(dst, loc.Offset)
	case LocConst:
		e.b.MovRegImm64(dst, uint64(loc.Imm))
	default:
		utils.ShouldNotReachHere()
	}
}

// storeLocation moves src into loc.
func (e *encoder) storeLocation(loc Location, src X86Reg) {
	switch loc.Kind {
	case LocRegister:
		if loc.Reg != src {
			e.b.MovRegReg(loc.Reg, src)
		}
	case LocStack:
		e.b.MovStoreRBP(loc.Offset, src)
	default:
		utils.ShouldNotReachHere()
	}
}

// loadBinaryOperands puts src1 in rax and returns a register holding
// src2, borrowing tmp when src2 is not register-resident.
func (e *encoder) loadBinaryOperands(src1, src2 Location, tmp X86Reg) X86Reg {
	e.loadLocation(RAX, src1)
	if src2.Kind == LocRegister {
		return src2.Reg
	}
	e.loadLocation(tmp, src2)
	return tmp
}

// -----------------------------------------------------------------------------
// Prologue / epilogue

// emitPrologue establishes the frame and binds parameters:
//
//	push rbp; mov rbp, rsp
//	push rbx; push r12 .. push r15
//	sub rsp, frameBytes
//	mov <param loc>, <abi reg>   (first six)
//	mov rax, [rbp+16+8k]; mov <param loc>, rax   (seventh on)
//
// frameBytes is an odd slot count times eight: together with the six
// pushes above and the return address that keeps rsp ≡ 0 (mod 16) at
// every later call.
func (e *encoder) emitPrologue() {
	b := e.b
	b.Push(RBP)
	b.MovRegReg(RBP, RSP)
	for _, reg := range allocPool {
		b.Push(reg)
	}
	b.SubRSPImm32(uint32(e.frameBytes))

	for i := 0; i < e.fn.ParamCount; i++ {
		loc := e.alloc.Get(i + 1)
		if i < SysVMaxRegArgs {
			switch loc.Kind {
			case LocRegister:
				if loc.Reg != argRegisters[i] {
					b.MovRegReg(loc.Reg, argRegisters[i])
				}
			case LocStack:
				b.MovStoreRBP(loc.Offset, argRegisters[i])
			default:
				utils.ShouldNotReachHere()
			}
		} else {
			b.MovLoadRBP(RAX, StackArgDisp(i))
			e.storeLocation(loc, RAX)
		}
	}
}

// encodeRet loads the return value and unwinds the frame. Every ret
// carries the full epilogue; there is no shared exit block.
func encodeRet(e *encoder, inst *ir.Instruction) {
	e.loadLocation(RAX, e.alloc.Get(inst.Src1))
	b := e.b
	b.LeaRspRbpDisp(-int32(CalleeSavedSize))
	for i := len(allocPool) - 1; i >= 0; i-- {
		b.Pop(allocPool[i])
	}
	b.Pop(RBP)
	b.Ret()
}

// -----------------------------------------------------------------------------
// ALU and moves

func encodeBin(e *encoder, inst *ir.Instruction) {
	dest := e.alloc.Get(inst.Dest)
	src1 := e.alloc.Get(inst.Src1)
	src2 := e.alloc.Get(inst.Src2)
	right := e.loadBinaryOperands(src1, src2, RDX)
	e.b.ALU(aluOpcodes[inst.Op], RAX, right)
	e.storeLocation(dest, RAX)
}

func encodeMul(e *encoder, inst *ir.Instruction) {
	dest := e.alloc.Get(inst.Dest)
	src1 := e.alloc.Get(inst.Src1)
	src2 := e.alloc.Get(inst.Src2)
	right := e.loadBinaryOperands(src1, src2, RDX)
	e.b.IMul(RAX, right)
	e.storeLocation(dest, RAX)
}

// encodeDiv: idiv wants the dividend in rdx:rax, so cqo runs after the
// load and the divisor must stay clear of rdx (rcx is the fallback).
func encodeDiv(e *encoder, inst *ir.Instruction) {
	dest := e.alloc.Get(inst.Dest)
	src1 := e.alloc.Get(inst.Src1)
	src2 := e.alloc.Get(inst.Src2)
	e.loadLocation(RAX, src1)
	e.b.Cqo()
	divisor := RCX
	if src2.Kind == LocRegister {
		divisor = src2.Reg
	} else {
		e.loadLocation(RCX, src2)
	}
	e.b.IDiv(divisor)
	e.storeLocation(dest, RAX)
}

func encodeShift(e *encoder, inst *ir.Instruction) {
	dest := e.alloc.Get(inst.Dest)
	src1 := e.alloc.Get(inst.Src1)
	src2 := e.alloc.Get(inst.Src2)
	e.loadLocation(RAX, src1)
	e.loadLocation(RCX, src2)
	ext := byte(shiftExtShl)
	if inst.Op == ir.OpShr {
		// Right shift on the value path is arithmetic.
		ext = shiftExtSar
	}
	e.b.ShiftCL(ext, RAX)
	e.storeLocation(dest, RAX)
}

func encodeCmp(e *encoder, inst *ir.Instruction) {
	dest := e.alloc.Get(inst.Dest)
	src1 := e.alloc.Get(inst.Src1)
	src2 := e.alloc.Get(inst.Src2)
	right := e.loadBinaryOperands(src1, src2, RDX)
	e.b.ALU(aluCmp, RAX, right)
	e.b.Setcc(cmpConds[inst.Op], RAX)
	e.b.Movzx(RAX, RAX)
	e.storeLocation(dest, RAX)
}

func encodeNeg(e *encoder, inst *ir.Instruction) {
	dest := e.alloc.Get(inst.Dest)
	e.loadLocation(RAX, e.alloc.Get(inst.Src1))
	e.b.Neg(RAX)
	e.storeLocation(dest, RAX)
}

// encodeNot lowers logical not to a zero test.
func encodeNot(e *encoder, inst *ir.Instruction) {
	dest := e.alloc.Get(inst.Dest)
	e.loadLocation(RAX, e.alloc.Get(inst.Src1))
	e.b.TestRegReg(RAX, RAX)
	e.b.Setcc(CondE, RAX)
	e.b.Movzx(RAX, RAX)
	e.storeLocation(dest, RAX)
}

func encodeBitNot(e *encoder, inst *ir.Instruction) {
	dest := e.alloc.Get(inst.Dest)
	e.loadLocation(RAX, e.alloc.Get(inst.Src1))
	e.b.Not(RAX)
	e.storeLocation(dest, RAX)
}

func encodeMov(e *encoder, inst *ir.Instruction) {
	dest := e.alloc.Get(inst.Dest)
	e.loadLocation(RAX, e.alloc.Get(inst.Src1))
	e.storeLocation(dest, RAX)
}

func encodeConst(e *encoder, inst *ir.Instruction) {
	dest := e.alloc.Get(inst.Dest)
	e.b.MovRegImm64(RAX, uint64(inst.Imm))
	e.storeLocation(dest, RAX)
}

// -----------------------------------------------------------------------------
// Stack-resident locals

func encodeLoad(e *encoder, inst *ir.Instruction) {
	dest := e.alloc.Get(inst.Dest)
	e.b.MovLoadRBP(RAX, LocalSlotDisp(inst.Src1))
	e.storeLocation(dest, RAX)
}

func encodeStore(e *encoder, inst *ir.Instruction) {
	src := e.alloc.Get(inst.Src1)
	e.loadLocation(RAX, src)
	e.b.MovStoreRBP(LocalSlotDisp(inst.Dest), RAX)
}

// -----------------------------------------------------------------------------
// Calls

func encodeArg(e *encoder, inst *ir.Instruction) {
	e.pending = append(e.pending, inst.Src1)
}

// encodeCall assembles one System V call from the buffered ARGs:
//
//  1. split args into register (first six) and stack portions
//  2. pad rsp by 8 when the stack portion is odd, keeping the call
//     site 16-byte aligned
//  3. push stack args in reverse declared order, so [rbp+16] in the
//     callee is argument 7
//  4. push register args in reverse, then pop into the ABI registers
//     in forward order — the detour avoids clobbering an argument
//     whose current home is an ABI register an earlier argument needs
//  5. mov rax, imm64 with a placeholder target, recording the patch
//  6. call rax, then drop the pad and stack args
//  7. store rax into the destination
func encodeCall(e *encoder, inst *ir.Instruction) {
	b := e.b
	n := len(e.pending)
	regArgs := n
	if regArgs > SysVMaxRegArgs {
		regArgs = SysVMaxRegArgs
	}
	stackArgs := n - regArgs

	pad := stackArgs%2 != 0
	if pad {
		b.SubRSPImm32(WordSize)
	}
	for i := n - 1; i >= SysVMaxRegArgs; i-- {
		e.pushLocation(e.alloc.Get(e.pending[i]))
	}
	for i := regArgs - 1; i >= 0; i-- {
		e.pushLocation(e.alloc.Get(e.pending[i]))
	}
	for i := 0; i < regArgs; i++ {
		b.Pop(argRegisters[i])
	}

	b.MovRegImm64(RAX, callTargetPlaceholder)
	if !b.Sizing() {
		e.ctx.recordCallSite(b.Slice(b.Len()-WordSize, WordSize), inst.FuncName, e.fn)
	}
	b.CallRax()

	if cleanup := (stackArgs + boolToInt(pad)) * WordSize; cleanup > 0 {
		b.AddRSPImm32(uint32(cleanup))
	}
	e.storeLocation(e.alloc.Get(inst.Dest), RAX)
	e.pending = e.pending[:0]
}

func (e *encoder) pushLocation(loc Location) {
	if loc.Kind == LocRegister {
		e.b.Push(loc.Reg)
		return
	}
	e.loadLocation(RAX, loc)
	e.b.Push(RAX)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// -----------------------------------------------------------------------------
// Branches and labels

func encodeJmp(e *encoder, inst *ir.Instruction) {
	if target, ok := e.labels[inst.Label]; ok {
		dispOff := e.b.Len() + 1
		e.b.Jmp32(int32(target - (dispOff + 4)))
		return
	}
	dispOff := e.b.Jmp32(0)
	e.patches = &patchRecord{label: inst.Label, dispOff: dispOff, next: e.patches}
}

func encodeBranch(e *encoder, inst *ir.Instruction) {
	cc := CondE // jz
	if inst.Op == ir.OpJnz {
		cc = CondNE
	}
	e.loadLocation(RAX, e.alloc.Get(inst.Src1))
	e.b.TestRegReg(RAX, RAX)
	if target, ok := e.labels[inst.Label]; ok {
		dispOff := e.b.Len() + 2
		e.b.Jcc32(cc, int32(target-(dispOff+4)))
		return
	}
	dispOff := e.b.Jcc32(cc, 0)
	e.patches = &patchRecord{label: inst.Label, dispOff: dispOff, next: e.patches}
}

// encodeLabel writes no bytes: it records the offset and resolves
// every outstanding forward jump to this label.
func encodeLabel(e *encoder, inst *ir.Instruction) {
	target := e.b.Len()
	e.labels[inst.Label] = target
	for prev, p := (*patchRecord)(nil), e.patches; p != nil; {
		if p.label != inst.Label {
			prev, p = p, p.next
			continue
		}
		e.b.PatchU32(p.dispOff, uint32(int32(target-(p.dispOff+4))))
		if prev == nil {
			e.patches = p.next
		} else {
			prev.next = p.next
		}
		p = p.next
	}
}
