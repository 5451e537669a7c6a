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

// X86Reg is the hardware encoding of a general-purpose register.
// Values ≥ 8 need a REX extension bit.
type X86Reg byte

const (
	RAX X86Reg = 0
	RCX X86Reg = 1
	RDX X86Reg = 2
	RBX X86Reg = 3
	RSP X86Reg = 4
	RBP X86Reg = 5
	RSI X86Reg = 6
	RDI X86Reg = 7
	R8  X86Reg = 8
	R9  X86Reg = 9
	R10 X86Reg = 10
	R11 X86Reg = 11
	R12 X86Reg = 12
	R13 X86Reg = 13
	R14 X86Reg = 14
	R15 X86Reg = 15
)

var regNames = [16]string{
	"rax", "rcx", "rdx", "rbx", "rsp", "rbp", "rsi", "rdi",
	"r8", "r9", "r10", "r11", "r12", "r13", "r14", "r15",
}

func (r X86Reg) String() string { return regNames[r] }

// argRegisters is the System V AMD64 integer argument order.
var argRegisters = [6]X86Reg{RDI, RSI, RDX, RCX, R8, R9}

// allocPool is the set handed out by the register allocator. Callee-
// saved only: every cross-call live value survives calls without
// liveness analysis or per-call save/restore.
var allocPool = [5]X86Reg{RBX, R12, R13, R14, R15}

const (
	SysVMaxRegArgs  = 6
	CalleeSavedSize = len(allocPool) * WordSize
	WordSize        = 8
)
