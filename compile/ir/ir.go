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
package ir

import (
	"github.com/juusokasperi/tinyCompile/ast"
	"github.com/juusokasperi/tinyCompile/diag"
	"github.com/juusokasperi/tinyCompile/utils"
)

const (
	ChunkSize           = 64
	MaxVregsPerFunction = 65536
	MaxLabels           = 512
)

// -----------------------------------------------------------------------------
// Linear three-address IR
//
// Values live in virtual registers in SSA-like single-assignment form;
// user-declared locals live in stack slots behind explicit Load/Store,
// which keeps the generator a single top-down walk with no phi merging.
// Vreg id 0 is a sentinel meaning "generation failed" and is never
// assigned to a real value.

type Opcode int

const (
	OpAdd Opcode = iota
	OpSub
	OpMul
	OpDiv
	OpAnd
	OpOr
	OpXor
	OpShl
	OpShr

	OpCmpEq
	OpCmpNe
	OpCmpLt
	OpCmpLe
	OpCmpGt
	OpCmpGe

	OpNeg
	OpNot
	OpBitNot
	OpRet
	OpMov

	OpConst

	OpCall
	OpArg

	OpJmp
	OpJz
	OpJnz
	OpLabel

	OpLoad
	OpStore

	OpcodeCount
)

type Format int

const (
	FmtBin    Format = iota // dest = src1 op src2
	FmtCmp                  // dest = (src1 rel src2) ? 1 : 0
	FmtUnary                // dest = op src1, or ret src1
	FmtImm                  // dest = imm
	FmtCall                 // dest = call func_name
	FmtArg                  // arg imm = src1
	FmtJump                 // jmp label
	FmtBranch               // op src1, label
	FmtLabel                // label:
	FmtLoad                 // dest = load [src1]
	FmtStore                // store [dest] = src1
)

type opcodeInfo struct {
	name   string
	format Format
}

var opcodeTable = [OpcodeCount]opcodeInfo{
	OpAdd:    {"add", FmtBin},
	OpSub:    {"sub", FmtBin},
	OpMul:    {"mul", FmtBin},
	OpDiv:    {"div", FmtBin},
	OpAnd:    {"and", FmtBin},
	OpOr:     {"or", FmtBin},
	OpXor:    {"xor", FmtBin},
	OpShl:    {"shl", FmtBin},
	OpShr:    {"shr", FmtBin},
	OpCmpEq:  {"cmpeq", FmtCmp},
	OpCmpNe:  {"cmpne", FmtCmp},
	OpCmpLt:  {"cmplt", FmtCmp},
	OpCmpLe:  {"cmple", FmtCmp},
	OpCmpGt:  {"cmpgt", FmtCmp},
	OpCmpGe:  {"cmpge", FmtCmp},
	OpNeg:    {"neg", FmtUnary},
	OpNot:    {"not", FmtUnary},
	OpBitNot: {"bitnot", FmtUnary},
	OpRet:    {"ret", FmtUnary},
	OpMov:    {"mov", FmtUnary},
	OpConst:  {"const", FmtImm},
	OpCall:   {"call", FmtCall},
	OpArg:    {"arg", FmtArg},
	OpJmp:    {"jmp", FmtJump},
	OpJz:     {"jz", FmtBranch},
	OpJnz:    {"jnz", FmtBranch},
	OpLabel:  {"label", FmtLabel},
	OpLoad:   {"load", FmtLoad},
	OpStore:  {"store", FmtStore},
}

func (op Opcode) Name() string { return opcodeTable[op].name }

func (op Opcode) Format() Format { return opcodeTable[op].format }

// Instruction is one IR record. Dest/Src1/Src2 are vreg ids, except
// that Load carries its stack slot in Src1 and Store carries its stack
// slot in Dest.
type Instruction struct {
	Op       Opcode
	Type     ast.DataType
	Dest     int
	Src1     int
	Src2     int
	Imm      int64
	FuncName string
	Label    int
}

// Chunk is a fixed-size block in the singly linked instruction list.
type Chunk struct {
	Next         *Chunk
	Instructions [ChunkSize]Instruction
	Count        int
}

// Function owns the IR of one source function.
type Function struct {
	Name       string
	ParamCount int
	Head       *Chunk
	Tail       *Chunk
	TotalCount int

	// VregCount is the next free vreg id; 0 stays reserved.
	VregCount  int
	StackCount int
	LabelCount int

	Filename string
	Errors   *diag.Context
}

func NewFunction(name string, filename string, errors *diag.Context) *Function {
	return &Function{
		Name:      name,
		VregCount: 1,
		Filename:  filename,
		Errors:    errors,
	}
}

func (f *Function) Emit(inst Instruction) {
	if f.Tail == nil || f.Tail.Count >= ChunkSize {
		chunk := &Chunk{}
		if f.Tail != nil {
			f.Tail.Next = chunk
		} else {
			f.Head = chunk
		}
		f.Tail = chunk
	}
	f.Tail.Instructions[f.Tail.Count] = inst
	f.Tail.Count++
	f.TotalCount++
}

// AllocVreg returns the next virtual register id, or the sentinel 0
// after recording a codegen error on overflow.
func (f *Function) AllocVreg() int {
	if f.VregCount >= MaxVregsPerFunction {
		f.Errors.CodegenError(f.Filename, 0, 0,
			"function '%s' exceeds virtual register limit (%d)",
			f.Name, MaxVregsPerFunction)
		return 0
	}
	v := f.VregCount
	f.VregCount++
	return v
}

// AllocStackSlot reserves a frame slot for one named local. Slots are
// never reused within a function.
func (f *Function) AllocStackSlot() int {
	s := f.StackCount
	f.StackCount++
	return s
}

// AllocLabel returns a fresh label id, or -1 after recording an error.
func (f *Function) AllocLabel() int {
	if f.LabelCount >= MaxLabels {
		f.Errors.CodegenError(f.Filename, 0, 0,
			"function '%s' exceeds label limit (%d)", f.Name, MaxLabels)
		return -1
	}
	l := f.LabelCount
	f.LabelCount++
	return l
}

// ForEach visits every instruction in program order.
func (f *Function) ForEach(fn func(*Instruction)) {
	for chunk := f.Head; chunk != nil; chunk = chunk.Next {
		for i := 0; i < chunk.Count; i++ {
			fn(&chunk.Instructions[i])
		}
	}
}

// LastOpcode returns the opcode of the final instruction, or -1 for an
// empty function.
func (f *Function) LastOpcode() Opcode {
	if f.Tail == nil || f.Tail.Count == 0 {
		return -1
	}
	return f.Tail.Instructions[f.Tail.Count-1].Op
}

// Validate checks the structural invariants the encoders rely on: the
// vreg operands of binary, compare, unary and const instructions are
// in range, every branch target is defined, and no ARG is left without
// a later CALL.
func (f *Function) Validate() {
	defined := make(map[int]bool, f.LabelCount)
	f.ForEach(func(inst *Instruction) {
		if inst.Op == OpLabel {
			defined[inst.Label] = true
		}
	})
	pendingArgs := 0
	f.ForEach(func(inst *Instruction) {
		checkVreg := func(v int) {
			utils.Assert(v >= 0 && v < f.VregCount,
				"%s: vreg %d out of range [0, %d)", f.Name, v, f.VregCount)
		}
		switch inst.Op.Format() {
		case FmtBin, FmtCmp:
			checkVreg(inst.Dest)
			checkVreg(inst.Src1)
			checkVreg(inst.Src2)
		case FmtUnary:
			checkVreg(inst.Src1)
		case FmtImm:
			checkVreg(inst.Dest)
		case FmtJump, FmtBranch:
			utils.Assert(defined[inst.Label],
				"%s: branch to undefined label L%d", f.Name, inst.Label)
		}
		switch inst.Op {
		case OpArg:
			pendingArgs++
		case OpCall:
			pendingArgs = 0
		}
	})
	utils.Assert(pendingArgs == 0, "%s: trailing ARGs without a CALL", f.Name)
}
