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

	"github.com/juusokasperi/tinyCompile/utils"
)

// -----------------------------------------------------------------------------
// Ast Root Interfaces

type AstNode interface {
	String() string
	Pos() (line, column int)
}

type AstExpr interface {
	AstNode
	GetType() DataType
	SetType(DataType)
}

type AstStmt interface {
	AstNode
}

// Node carries source position; every AST node embeds it.
type Node struct {
	Line   int
	Column int
}

func (n *Node) Pos() (int, int) { return n.Line, n.Column }

// Expr carries the type resolved by the semantic analyzer. TypeVoid
// until analysis runs.
type Expr struct {
	Node
	Type DataType
}

func (e *Expr) GetType() DataType  { return e.Type }
func (e *Expr) SetType(t DataType) { e.Type = t }

// -----------------------------------------------------------------------------
// Expressions

type NumberExpr struct {
	Expr
	Text  string // literal spelling, views into the mapped source
	Value int64  // filled in by the analyzer after range checking
}

type VarExpr struct {
	Expr
	Name string
}

type UnaryExpr struct {
	Expr
	Opt     TokenKind // TK_MINUS, TK_LOGNOT or TK_BITNOT
	Operand AstExpr
}

type BinaryExpr struct {
	Expr
	Opt   TokenKind
	Left  AstExpr
	Right AstExpr
}

type CallExpr struct {
	Expr
	Name string
	Args []AstExpr
}

func (n *NumberExpr) String() string { return fmt.Sprintf("NumberExpr{%v}", n.Text) }
func (v *VarExpr) String() string    { return fmt.Sprintf("VarExpr{%v}", v.Name) }
func (u *UnaryExpr) String() string  { return fmt.Sprintf("UnaryExpr{%v}", u.Opt) }
func (b *BinaryExpr) String() string { return fmt.Sprintf("BinaryExpr{%v}", b.Opt) }
func (c *CallExpr) String() string   { return fmt.Sprintf("CallExpr{%v}", c.Name) }

// -----------------------------------------------------------------------------
// Statements

type VarDeclStmt struct {
	Node
	Name     string
	DeclType DataType
	Init     AstExpr // nil means zero initialization
}

type AssignStmt struct {
	Node
	Name  string
	Value AstExpr
}

type ReturnStmt struct {
	Node
	Expr AstExpr // nil for a bare return
}

type IfStmt struct {
	Node
	Cond AstExpr
	Then AstStmt
	Else AstStmt // nil if absent
}

type WhileStmt struct {
	Node
	Cond AstExpr
	Body AstStmt
}

type BlockStmt struct {
	Node
	Stmts []AstStmt
}

type ExprStmt struct {
	Node
	Expr AstExpr
}

func (s *VarDeclStmt) String() string { return fmt.Sprintf("VarDeclStmt{%v %v}", s.DeclType, s.Name) }
func (s *AssignStmt) String() string  { return fmt.Sprintf("AssignStmt{%v}", s.Name) }
func (s *ReturnStmt) String() string  { return "ReturnStmt" }
func (s *IfStmt) String() string      { return "IfStmt" }
func (s *WhileStmt) String() string   { return "WhileStmt" }
func (s *BlockStmt) String() string   { return fmt.Sprintf("BlockStmt{%d}", len(s.Stmts)) }
func (s *ExprStmt) String() string    { return "ExprStmt" }

// -----------------------------------------------------------------------------
// Declarations

type Parameter struct {
	Name string
	Type DataType
}

type FuncDecl struct {
	Node
	Name        string
	RetType     DataType
	Params      []Parameter
	Body        *BlockStmt // nil for a prototype
	IsPrototype bool
}

// TranslationUnit is the root produced by parsing one source file.
type TranslationUnit struct {
	Node
	Source string
	Funcs  []*FuncDecl
}

func (f *FuncDecl) String() string {
	if f.IsPrototype {
		return fmt.Sprintf("FuncDecl{%v@prototype}", f.Name)
	}
	return fmt.Sprintf("FuncDecl{%v}", f.Name)
}

func (t *TranslationUnit) String() string { return "TranslationUnit" }

// -----------------------------------------------------------------------------
// Utils for ast manipulation

type AstWalker struct {
	// apply when visiting a node
	Func func(AstNode, AstNode, int)
}

// WalkAst walks the AST in depth-first order, calling Func for each node.
func (walker *AstWalker) WalkAst(node AstNode, prev AstNode, depth int) {
	if node == nil {
		return
	}
	walker.Func(node, prev, depth)
	switch v := node.(type) {
	case *NumberExpr, *VarExpr:
		// Donothing
	case *UnaryExpr:
		walker.WalkAst(v.Operand, v, depth+1)
	case *BinaryExpr:
		walker.WalkAst(v.Left, v, depth+1)
		walker.WalkAst(v.Right, v, depth+1)
	case *CallExpr:
		for _, arg := range v.Args {
			walker.WalkAst(arg, v, depth+1)
		}
	case *VarDeclStmt:
		walker.WalkAst(v.Init, v, depth+1)
	case *AssignStmt:
		walker.WalkAst(v.Value, v, depth+1)
	case *ReturnStmt:
		walker.WalkAst(v.Expr, v, depth+1)
	case *IfStmt:
		walker.WalkAst(v.Cond, v, depth+1)
		walker.WalkAst(v.Then, v, depth+1)
		walker.WalkAst(v.Else, v, depth+1)
	case *WhileStmt:
		walker.WalkAst(v.Cond, v, depth+1)
		walker.WalkAst(v.Body, v, depth+1)
	case *BlockStmt:
		for _, elem := range v.Stmts {
			walker.WalkAst(elem, v, depth+1)
		}
	case *ExprStmt:
		walker.WalkAst(v.Expr, v, depth+1)
	case *FuncDecl:
		if v.Body != nil {
			walker.WalkAst(v.Body, v, depth+1)
		}
	case *TranslationUnit:
		for _, elem := range v.Funcs {
			walker.WalkAst(elem, v, depth+1)
		}
	default:
		utils.Unimplement()
	}
}

func PrintAst(root AstNode, showTypes bool) {
	printer := func(node AstNode, _ AstNode, indent int) {
		if node == nil {
			return
		}
		for i := 0; i < indent; i++ {
			print("..")
		}
		str := node.String()
		if showTypes {
			if expr, ok := node.(AstExpr); ok {
				str += fmt.Sprintf(" :: %v", expr.GetType())
			}
		}
		println(str)
	}
	walker := &AstWalker{Func: printer}
	walker.WalkAst(root, root, 0)
}
