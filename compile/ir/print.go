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
	"fmt"
	"strings"
)

func (inst *Instruction) String() string {
	switch inst.Op.Format() {
	case FmtBin, FmtCmp:
		return fmt.Sprintf("v%d = %s v%d, v%d", inst.Dest, inst.Op.Name(), inst.Src1, inst.Src2)
	case FmtUnary:
		if inst.Op == OpRet {
			return fmt.Sprintf("ret v%d", inst.Src1)
		}
		if inst.Op == OpMov {
			return fmt.Sprintf("v%d = mov v%d", inst.Dest, inst.Src1)
		}
		return fmt.Sprintf("v%d = %s v%d", inst.Dest, inst.Op.Name(), inst.Src1)
	case FmtImm:
		return fmt.Sprintf("v%d = const %d", inst.Dest, inst.Imm)
	case FmtCall:
		return fmt.Sprintf("v%d = call %s", inst.Dest, inst.FuncName)
	case FmtArg:
		return fmt.Sprintf("arg %d = v%d", inst.Imm, inst.Src1)
	case FmtJump:
		return fmt.Sprintf("jmp L%d", inst.Label)
	case FmtBranch:
		return fmt.Sprintf("%s v%d, L%d", inst.Op.Name(), inst.Src1, inst.Label)
	case FmtLabel:
		return fmt.Sprintf("L%d:", inst.Label)
	case FmtLoad:
		return fmt.Sprintf("v%d = load [s%d]", inst.Dest, inst.Src1)
	case FmtStore:
		return fmt.Sprintf("store [s%d] = v%d", inst.Dest, inst.Src1)
	}
	return "<unknown>"
}

func (f *Function) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "func %s (vregs=%d stack=%d labels=%d)\n",
		f.Name, f.VregCount, f.StackCount, f.LabelCount)
	f.ForEach(func(inst *Instruction) {
		if inst.Op == OpLabel {
			fmt.Fprintf(&sb, "%s\n", inst)
		} else {
			fmt.Fprintf(&sb, "  %s\n", inst)
		}
	})
	return sb.String()
}

// Print dumps the function's IR to stdout, used behind a debug flag.
func Print(f *Function) {
	fmt.Print(f.String())
}
