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

// generator walks one checked function. It trusts the analyzer: names
// resolve, calls match arity, operand types are compatible.
type generator struct {
	fn     *Function
	symtab *SymbolTable
	failed bool
}

// Generate lowers one function to linear IR. Returns nil when
// generation failed; the error is already in the sink and no partial
// IR reaches the registry.
func Generate(decl *ast.FuncDecl, symtab *SymbolTable, filename string, errors *diag.Context) *Function {
	utils.Assert(!decl.IsPrototype, "cannot generate IR for a prototype")

	g := &generator{
		fn:     NewFunction(decl.Name, filename, errors),
		symtab: symtab,
	}
	g.fn.ParamCount = len(decl.Params)

	snapshot := symtab.Snapshot()
	defer symtab.Restore(snapshot)

	// Parameters stay register-resident: the prologue moves the ABI
	// registers into these vregs.
	for _, param := range decl.Params {
		vreg := g.fn.AllocVreg()
		if vreg == 0 {
			return nil
		}
		if !symtab.Add(param.Name, vreg, false) {
			errors.CodegenError(filename, decl.Line, decl.Column,
				"symbol table overflow in '%s'", decl.Name)
			return nil
		}
	}

	for _, stmt := range decl.Body.Stmts {
		g.genStatement(stmt)
	}
	if g.failed {
		return nil
	}

	// A function that can fall off the end still needs an epilogue.
	if g.fn.LastOpcode() != OpRet {
		zero := g.fn.AllocVreg()
		if zero == 0 {
			return nil
		}
		g.fn.Emit(Instruction{Op: OpConst, Dest: zero, Imm: 0})
		g.fn.Emit(Instruction{Op: OpRet, Src1: zero})
	}
	return g.fn
}

// -----------------------------------------------------------------------------
// Statements

func (g *generator) genStatement(node ast.AstStmt) {
	if node == nil || g.failed {
		return
	}
	switch v := node.(type) {
	case *ast.VarDeclStmt:
		// Mutable locals route through memory; a fresh stack slot
		// keeps address identity across assignments.
		slot := g.fn.AllocStackSlot()
		var init int
		if v.Init != nil {
			init = g.genExpression(v.Init)
		} else {
			init = g.fn.AllocVreg()
			if init != 0 {
				g.fn.Emit(Instruction{Op: OpConst, Dest: init, Imm: 0})
			}
		}
		if init == 0 {
			g.failed = true
			return
		}
		g.fn.Emit(Instruction{Op: OpStore, Type: v.DeclType, Dest: slot, Src1: init})
		if !g.symtab.Add(v.Name, slot, true) {
			g.fn.Errors.CodegenError(g.fn.Filename, v.Line, v.Column,
				"symbol table overflow in '%s'", g.fn.Name)
			g.failed = true
		}
	case *ast.AssignStmt:
		sym := g.symtab.Lookup(v.Name)
		if sym == nil {
			utils.ShouldNotReachHere()
		}
		value := g.genExpression(v.Value)
		if value == 0 {
			g.failed = true
			return
		}
		if sym.IsStack {
			g.fn.Emit(Instruction{Op: OpStore, Dest: sym.Index, Src1: value})
		} else {
			g.fn.Emit(Instruction{Op: OpMov, Dest: sym.Index, Src1: value})
		}
	case *ast.ReturnStmt:
		var value int
		if v.Expr != nil {
			value = g.genExpression(v.Expr)
		} else {
			value = g.fn.AllocVreg()
			if value != 0 {
				g.fn.Emit(Instruction{Op: OpConst, Dest: value, Imm: 0})
			}
		}
		if value == 0 {
			g.failed = true
			return
		}
		g.fn.Emit(Instruction{Op: OpRet, Src1: value})
	case *ast.IfStmt:
		g.genIf(v)
	case *ast.WhileStmt:
		g.genWhile(v)
	case *ast.BlockStmt:
		snapshot := g.symtab.Snapshot()
		for _, stmt := range v.Stmts {
			g.genStatement(stmt)
		}
		g.symtab.Restore(snapshot)
	case *ast.ExprStmt:
		if g.genExpression(v.Expr) == 0 {
			g.failed = true
		}
	default:
		utils.Unimplement()
	}
}

// genIf lowers both arms:
//
//	c = eval(cond)
//	jz c, L_else
//	<then>
//	jmp L_end
//	L_else:
//	<else>
//	L_end:
//
// Without an else arm, the jmp and L_else disappear and jz targets
// L_end directly.
func (g *generator) genIf(v *ast.IfStmt) {
	cond := g.genExpression(v.Cond)
	if cond == 0 {
		g.failed = true
		return
	}
	endLabel := g.fn.AllocLabel()
	if endLabel < 0 {
		g.failed = true
		return
	}
	if v.Else == nil {
		g.fn.Emit(Instruction{Op: OpJz, Src1: cond, Label: endLabel})
		g.genStatement(v.Then)
		g.fn.Emit(Instruction{Op: OpLabel, Label: endLabel})
		return
	}
	elseLabel := g.fn.AllocLabel()
	if elseLabel < 0 {
		g.failed = true
		return
	}
	g.fn.Emit(Instruction{Op: OpJz, Src1: cond, Label: elseLabel})
	g.genStatement(v.Then)
	g.fn.Emit(Instruction{Op: OpJmp, Label: endLabel})
	g.fn.Emit(Instruction{Op: OpLabel, Label: elseLabel})
	g.genStatement(v.Else)
	g.fn.Emit(Instruction{Op: OpLabel, Label: endLabel})
}

// genWhile:
//
//	L_top:
//	c = eval(cond)
//	jz c, L_end
//	<body>
//	jmp L_top
//	L_end:
func (g *generator) genWhile(v *ast.WhileStmt) {
	topLabel := g.fn.AllocLabel()
	endLabel := g.fn.AllocLabel()
	if topLabel < 0 || endLabel < 0 {
		g.failed = true
		return
	}
	g.fn.Emit(Instruction{Op: OpLabel, Label: topLabel})
	cond := g.genExpression(v.Cond)
	if cond == 0 {
		g.failed = true
		return
	}
	g.fn.Emit(Instruction{Op: OpJz, Src1: cond, Label: endLabel})
	g.genStatement(v.Body)
	g.fn.Emit(Instruction{Op: OpJmp, Label: topLabel})
	g.fn.Emit(Instruction{Op: OpLabel, Label: endLabel})
}

// -----------------------------------------------------------------------------
// Expressions

// genExpression returns the vreg holding the value, or the sentinel 0
// after an error has been recorded.
func (g *generator) genExpression(node ast.AstExpr) int {
	if node == nil {
		return 0
	}
	switch v := node.(type) {
	case *ast.NumberExpr:
		dest := g.fn.AllocVreg()
		if dest == 0 {
			return 0
		}
		g.fn.Emit(Instruction{Op: OpConst, Type: v.GetType(), Dest: dest, Imm: v.Value})
		return dest
	case *ast.VarExpr:
		sym := g.symtab.Lookup(v.Name)
		if sym == nil {
			utils.ShouldNotReachHere()
		}
		if !sym.IsStack {
			return sym.Index
		}
		dest := g.fn.AllocVreg()
		if dest == 0 {
			return 0
		}
		g.fn.Emit(Instruction{Op: OpLoad, Type: v.GetType(), Dest: dest, Src1: sym.Index})
		return dest
	case *ast.UnaryExpr:
		operand := g.genExpression(v.Operand)
		if operand == 0 {
			return 0
		}
		dest := g.fn.AllocVreg()
		if dest == 0 {
			return 0
		}
		var op Opcode
		switch v.Opt {
		case ast.TK_MINUS:
			op = OpNeg
		case ast.TK_LOGNOT:
			op = OpNot
		case ast.TK_BITNOT:
			op = OpBitNot
		default:
			utils.ShouldNotReachHere()
		}
		g.fn.Emit(Instruction{Op: op, Type: v.GetType(), Dest: dest, Src1: operand})
		return dest
	case *ast.BinaryExpr:
		// Left before right: evaluation order is observable through
		// calls with side effects.
		left := g.genExpression(v.Left)
		if left == 0 {
			return 0
		}
		right := g.genExpression(v.Right)
		if right == 0 {
			return 0
		}
		dest := g.fn.AllocVreg()
		if dest == 0 {
			return 0
		}
		g.fn.Emit(Instruction{
			Op:   binaryOpcode(v.Opt),
			Type: v.GetType(),
			Dest: dest,
			Src1: left,
			Src2: right,
		})
		return dest
	case *ast.CallExpr:
		args := make([]int, len(v.Args))
		for i, arg := range v.Args {
			args[i] = g.genExpression(arg)
			if args[i] == 0 {
				return 0
			}
		}
		for i, arg := range args {
			g.fn.Emit(Instruction{Op: OpArg, Imm: int64(i), Src1: arg})
		}
		dest := g.fn.AllocVreg()
		if dest == 0 {
			return 0
		}
		g.fn.Emit(Instruction{Op: OpCall, Type: v.GetType(), Dest: dest, FuncName: v.Name})
		return dest
	default:
		utils.Unimplement()
	}
	return 0
}

func binaryOpcode(opt ast.TokenKind) Opcode {
	switch opt {
	case ast.TK_PLUS:
		return OpAdd
	case ast.TK_MINUS:
		return OpSub
	case ast.TK_TIMES:
		return OpMul
	case ast.TK_DIV:
		return OpDiv
	case ast.TK_BITAND:
		return OpAnd
	case ast.TK_BITOR:
		return OpOr
	case ast.TK_BITXOR:
		return OpXor
	case ast.TK_LSHIFT:
		return OpShl
	case ast.TK_RSHIFT:
		return OpShr
	case ast.TK_EQ:
		return OpCmpEq
	case ast.TK_NE:
		return OpCmpNe
	case ast.TK_LT:
		return OpCmpLt
	case ast.TK_LE:
		return OpCmpLe
	case ast.TK_GT:
		return OpCmpGt
	case ast.TK_GE:
		return OpCmpGe
	}
	utils.ShouldNotReachHere()
	return 0
}
