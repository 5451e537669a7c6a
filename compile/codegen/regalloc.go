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
	"fmt"

	"github.com/juusokasperi/tinyCompile/utils"
)

// -----------------------------------------------------------------------------
// First-fit linear register allocation
//
// Every virtual register is bound on first query: the lowest free
// callee-saved register if one is left, otherwise the next spill slot
// in the frame. No liveness, no ranges, no second chances; the win is
// that the assignment is a pure function of query order, so the sizing
// pass and the emission pass reproduce it exactly by resetting and
// replaying.

type LocationKind int

const (
	LocNone LocationKind = iota
	LocRegister
	LocStack
	LocConst
)

// Location is where a value lives: a physical register, an
// rbp-relative frame slot, or an immediate.
type Location struct {
	Kind   LocationKind
	Reg    X86Reg
	Offset int32 // rbp-relative, LocStack only
	Imm    int64 // LocConst only
}

func RegLoc(r X86Reg) Location   { return Location{Kind: LocRegister, Reg: r} }
func StackLoc(off int32) Location { return Location{Kind: LocStack, Offset: off} }
func ConstLoc(imm int64) Location { return Location{Kind: LocConst, Imm: imm} }

func (l Location) String() string {
	switch l.Kind {
	case LocRegister:
		return l.Reg.String()
	case LocStack:
		return fmt.Sprintf("[rbp%+d]", l.Offset)
	case LocConst:
		return fmt.Sprintf("$%d", l.Imm)
	}
	return "<none>"
}

// Frame layout, rbp-relative. The prologue pushes rbp plus the five
// callee-saved registers, so locals start below rbp-40.
//
//	| arg 8          | rbp+24
//	| arg 7          | rbp+16
//	| return address | rbp+8
//	| saved rbp      | rbp
//	| rbx .. r15     | rbp-8 .. rbp-40
//	| local slots    | rbp-48 ..
//	| spill slots    | below the locals

// LocalSlotDisp returns the frame displacement of stack-resident local i.
func LocalSlotDisp(i int) int32 {
	return -int32(CalleeSavedSize + (i+1)*WordSize)
}

// StackArgDisp returns the callee-side displacement of parameter i
// (i ≥ 6), which the caller pushed above its return address.
func StackArgDisp(i int) int32 {
	return int32(16 + (i-SysVMaxRegArgs)*WordSize)
}

type Allocator struct {
	locations  map[int]Location
	free       [len(allocPool)]bool
	stackCount int // locals come first in the frame; spills follow
	spillCount int
}

func NewAllocator(stackCount int) *Allocator {
	a := &Allocator{
		locations:  make(map[int]Location),
		stackCount: stackCount,
	}
	for i := range a.free {
		a.free[i] = true
	}
	return a
}

// Get binds vreg on first query and returns the same Location forever
// after.
func (a *Allocator) Get(vreg int) Location {
	utils.Assert(vreg != 0, "query for the sentinel vreg")
	if loc, ok := a.locations[vreg]; ok {
		return loc
	}
	loc := a.assign()
	a.locations[vreg] = loc
	return loc
}

func (a *Allocator) assign() Location {
	for i := range a.free {
		if a.free[i] {
			a.free[i] = false
			return RegLoc(allocPool[i])
		}
	}
	disp := -int32(CalleeSavedSize + a.stackCount*WordSize + (a.spillCount+1)*WordSize)
	a.spillCount++
	return StackLoc(disp)
}

func (a *Allocator) SpillCount() int {
	return a.spillCount
}

// FrameSlots is the number of 8-byte slots the frame must reserve for
// locals plus spills.
func (a *Allocator) FrameSlots() int {
	return a.stackCount + a.spillCount
}
