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
package ast

import (
	"fmt"
	"strings"

	"github.com/juusokasperi/tinyCompile/utils"
)

// EmitSource renders the unit back to compilable source. Expressions
// come out fully parenthesized, so printing and re-parsing yields a
// tree of the same shape.
func EmitSource(unit *TranslationUnit) string {
	var sb strings.Builder
	for i, fn := range unit.Funcs {
		if i > 0 {
			sb.WriteByte('\n')
		}
		emitFunc(&sb, fn)
	}
	return sb.String()
}

func emitFunc(sb *strings.Builder, fn *FuncDecl) {
	fmt.Fprintf(sb, "%v %s(", fn.RetType, fn.Name)
	for i, param := range fn.Params {
		if i > 0 {
			sb.WriteString(", ")
		}
		if param.Name == "" {
			fmt.Fprintf(sb, "%v", param.Type)
		} else {
			fmt.Fprintf(sb, "%v %s", param.Type, param.Name)
		}
	}
	sb.WriteString(")")
	if fn.IsPrototype {
		sb.WriteString(";\n")
		return
	}
	sb.WriteByte(' ')
	emitBlock(sb, fn.Body, 0)
}

func emitBlock(sb *strings.Builder, block *BlockStmt, depth int) {
	sb.WriteString("{\n")
	for _, stmt := range block.Stmts {
		emitStmt(sb, stmt, depth+1)
	}
	indent(sb, depth)
	sb.WriteString("}\n")
}

func indent(sb *strings.Builder, depth int) {
	for i := 0; i < depth; i++ {
		sb.WriteString("    ")
	}
}

func emitStmt(sb *strings.Builder, node AstStmt, depth int) {
	switch v := node.(type) {
	case *VarDeclStmt:
		indent(sb, depth)
		if v.Init != nil {
			fmt.Fprintf(sb, "%v %s = %s;\n", v.DeclType, v.Name, exprString(v.Init))
		} else {
			fmt.Fprintf(sb, "%v %s;\n", v.DeclType, v.Name)
		}
	case *AssignStmt:
		indent(sb, depth)
		fmt.Fprintf(sb, "%s = %s;\n", v.Name, exprString(v.Value))
	case *ReturnStmt:
		indent(sb, depth)
		if v.Expr != nil {
			fmt.Fprintf(sb, "return %s;\n", exprString(v.Expr))
		} else {
			sb.WriteString("return;\n")
		}
	case *IfStmt:
		indent(sb, depth)
		fmt.Fprintf(sb, "if (%s) ", exprString(v.Cond))
		emitBody(sb, v.Then, depth)
		if v.Else != nil {
			indent(sb, depth)
			sb.WriteString("else ")
			emitBody(sb, v.Else, depth)
		}
	case *WhileStmt:
		indent(sb, depth)
		fmt.Fprintf(sb, "while (%s) ", exprString(v.Cond))
		emitBody(sb, v.Body, depth)
	case *BlockStmt:
		indent(sb, depth)
		emitBlock(sb, v, depth)
	case *ExprStmt:
		indent(sb, depth)
		fmt.Fprintf(sb, "%s;\n", exprString(v.Expr))
	default:
		utils.Unimplement()
	}
}

// emitBody keeps single statements on their own line and blocks inline
// after the control keyword.
func emitBody(sb *strings.Builder, node AstStmt, depth int) {
	if block, ok := node.(*BlockStmt); ok {
		emitBlock(sb, block, depth)
		return
	}
	sb.WriteByte('\n')
	emitStmt(sb, node, depth+1)
}

func exprString(node AstExpr) string {
	switch v := node.(type) {
	case *NumberExpr:
		return v.Text
	case *VarExpr:
		return v.Name
	case *UnaryExpr:
		return fmt.Sprintf("%v(%s)", v.Opt, exprString(v.Operand))
	case *BinaryExpr:
		return fmt.Sprintf("(%s %v %s)",
			exprString(v.Left), v.Opt, exprString(v.Right))
	case *CallExpr:
		args := make([]string, len(v.Args))
		for i, arg := range v.Args {
			args[i] = exprString(arg)
		}
		return fmt.Sprintf("%s(%s)", v.Name, strings.Join(args, ", "))
	default:
		utils.Unimplement()
	}
	return ""
}
