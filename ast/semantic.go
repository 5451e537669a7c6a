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
	"strconv"

	"github.com/juusokasperi/tinyCompile/diag"
)

const MaxFunctionCount = 256

// FunctionInfo is one entry of the whole-program function table. The
// IR generator and the call encoders trust param order and count from
// here.
type FunctionInfo struct {
	Name        string
	RetType     DataType
	Params      []Parameter
	Line        int
	Filename    string
	IsPrototype bool
}

// GlobalScope is the function table shared by every translation unit.
// Declarations from all files land here before any body is analyzed,
// so cross-unit calls resolve regardless of file order.
type GlobalScope struct {
	funcs []*FunctionInfo
}

func NewGlobalScope() *GlobalScope {
	return &GlobalScope{}
}

func (g *GlobalScope) Lookup(name string) *FunctionInfo {
	for _, fn := range g.funcs {
		if fn.Name == name {
			return fn
		}
	}
	return nil
}

// Declare records a function definition or prototype. A definition
// upgrades an earlier prototype; a second definition or a conflicting
// signature is an error.
func (g *GlobalScope) Declare(fn *FuncDecl, filename string, errors *diag.Context) bool {
	existing := g.Lookup(fn.Name)
	if existing != nil {
		if len(existing.Params) != len(fn.Params) || existing.RetType != fn.RetType {
			errors.SemanticError(filename, fn.Line, fn.Column,
				"conflicting types for '%s' (previous declaration at %s:%d)",
				fn.Name, existing.Filename, existing.Line)
			return false
		}
		if existing.IsPrototype {
			if !fn.IsPrototype {
				existing.IsPrototype = false
				existing.Line = fn.Line
				existing.Filename = filename
				existing.Params = fn.Params
			}
			return true
		}
		if !fn.IsPrototype {
			errors.SemanticError(filename, fn.Line, fn.Column,
				"redefinition of '%s' (previous definition at %s:%d)",
				fn.Name, existing.Filename, existing.Line)
			return false
		}
		return true
	}
	if len(g.funcs) >= MaxFunctionCount {
		errors.SemanticError(filename, fn.Line, fn.Column,
			"too many functions (max %d)", MaxFunctionCount)
		return false
	}
	g.funcs = append(g.funcs, &FunctionInfo{
		Name:        fn.Name,
		RetType:     fn.RetType,
		Params:      fn.Params,
		Line:        fn.Line,
		Filename:    filename,
		IsPrototype: fn.IsPrototype,
	})
	return true
}

// -----------------------------------------------------------------------------
// Per-function analysis

type varInfo struct {
	name string
	typ  DataType
	line int
}

type scope struct {
	parent *scope
	vars   []varInfo
}

type analyzer struct {
	filename string
	errors   *diag.Context
	global   *GlobalScope
	current  *scope
	retType  DataType
}

func (a *analyzer) enterScope() {
	a.current = &scope{parent: a.current}
}

func (a *analyzer) exitScope() {
	if a.current != nil {
		a.current = a.current.parent
	}
}

func (a *analyzer) lookup(name string) *varInfo {
	for s := a.current; s != nil; s = s.parent {
		for i := range s.vars {
			if s.vars[i].name == name {
				return &s.vars[i]
			}
		}
	}
	return nil
}

func (a *analyzer) declare(name string, typ DataType, line, col int) bool {
	s := a.current
	for i := range s.vars {
		if s.vars[i].name == name {
			a.errors.SemanticError(a.filename, line, col,
				"variable '%s' already declared in this scope (first declared at line %d)",
				name, s.vars[i].line)
			return false
		}
	}
	s.vars = append(s.vars, varInfo{name: name, typ: typ, line: line})
	return true
}

// Analyze runs name resolution and type checking for every function in
// the unit. The function table must already contain all declarations.
func Analyze(unit *TranslationUnit, global *GlobalScope, filename string, errors *diag.Context) bool {
	ok := true
	for _, fn := range unit.Funcs {
		if fn.IsPrototype {
			continue
		}
		a := &analyzer{
			filename: filename,
			errors:   errors,
			global:   global,
			retType:  fn.RetType,
		}
		a.enterScope()
		for _, param := range fn.Params {
			if param.Name == "" {
				a.errors.SemanticError(filename, fn.Line, fn.Column,
					"parameter name omitted in definition of '%s'", fn.Name)
				ok = false
				continue
			}
			if !a.declare(param.Name, param.Type, fn.Line, fn.Column) {
				ok = false
			}
		}
		if fn.Body != nil {
			for _, stmt := range fn.Body.Stmts {
				if !a.analyzeStatement(stmt) {
					ok = false
				}
			}
		}
		a.exitScope()
	}
	return ok && !errors.HasErrors()
}

func (a *analyzer) analyzeStatement(node AstStmt) bool {
	if node == nil {
		return true
	}
	switch v := node.(type) {
	case *VarDeclStmt:
		initOk := true
		if v.Init != nil {
			initOk = a.analyzeExpression(v.Init)
			if initOk {
				a.checkAssignable(v.Init, v.DeclType, v.Line, v.Column)
			}
		}
		declOk := a.declare(v.Name, v.DeclType, v.Line, v.Column)
		return initOk && declOk
	case *AssignStmt:
		target := a.lookup(v.Name)
		if target == nil {
			a.errors.SemanticError(a.filename, v.Line, v.Column,
				"assignment to undeclared variable '%s'", v.Name)
			return false
		}
		if !a.analyzeExpression(v.Value) {
			return false
		}
		a.checkAssignable(v.Value, target.typ, v.Line, v.Column)
		return true
	case *ReturnStmt:
		if v.Expr != nil {
			if a.retType.IsVoid() {
				a.errors.SemanticError(a.filename, v.Line, v.Column,
					"void function should not return a value")
				return false
			}
			if !a.analyzeExpression(v.Expr) {
				return false
			}
			a.checkAssignable(v.Expr, a.retType, v.Line, v.Column)
			return true
		}
		if !a.retType.IsVoid() {
			a.errors.SemanticError(a.filename, v.Line, v.Column,
				"non-void function must return a value")
			return false
		}
		return true
	case *IfStmt:
		condOk := a.analyzeCondition(v.Cond)
		thenOk := a.analyzeStatement(v.Then)
		elseOk := a.analyzeStatement(v.Else)
		return condOk && thenOk && elseOk
	case *WhileStmt:
		condOk := a.analyzeCondition(v.Cond)
		bodyOk := a.analyzeStatement(v.Body)
		return condOk && bodyOk
	case *BlockStmt:
		a.enterScope()
		allOk := true
		for _, stmt := range v.Stmts {
			if !a.analyzeStatement(stmt) {
				allOk = false
			}
		}
		a.exitScope()
		return allOk
	case *ExprStmt:
		return a.analyzeExpression(v.Expr)
	}
	return true
}

func (a *analyzer) analyzeCondition(cond AstExpr) bool {
	if cond == nil {
		return true
	}
	if !a.analyzeExpression(cond) {
		return false
	}
	if !cond.GetType().IsInteger() {
		line, col := cond.Pos()
		a.errors.SemanticError(a.filename, line, col,
			"condition must have integer type, got '%v'", cond.GetType())
		return false
	}
	return true
}

func (a *analyzer) analyzeExpression(node AstExpr) bool {
	if node == nil {
		return true
	}
	switch v := node.(type) {
	case *NumberExpr:
		val, err := strconv.ParseInt(v.Text, 10, 64)
		if err != nil {
			a.errors.SemanticError(a.filename, v.Line, v.Column,
				"integer literal '%s' out of range", v.Text)
			return false
		}
		v.Value = val
		// Literals that fit take the default int type; wider ones
		// promote to 64 bits.
		if FitsIn(val, TypeInt32) {
			v.SetType(TypeInt32)
		} else {
			v.SetType(TypeInt64)
		}
		return true
	case *VarExpr:
		info := a.lookup(v.Name)
		if info == nil {
			a.errors.SemanticError(a.filename, v.Line, v.Column,
				"undeclared identifier '%s'", v.Name)
			return false
		}
		v.SetType(info.typ)
		return true
	case *UnaryExpr:
		if !a.analyzeExpression(v.Operand) {
			return false
		}
		operandType := v.Operand.GetType()
		if !operandType.IsInteger() {
			a.errors.SemanticError(a.filename, v.Line, v.Column,
				"operand of '%v' must have integer type, got '%v'", v.Opt, operandType)
			return false
		}
		v.SetType(operandType)
		return true
	case *BinaryExpr:
		leftOk := a.analyzeExpression(v.Left)
		rightOk := a.analyzeExpression(v.Right)
		if !leftOk || !rightOk {
			return false
		}
		lt, rt := v.Left.GetType(), v.Right.GetType()
		if !lt.IsInteger() || !rt.IsInteger() {
			a.errors.SemanticError(a.filename, v.Line, v.Column,
				"operands of '%v' must have integer type ('%v' and '%v')", v.Opt, lt, rt)
			return false
		}
		if v.Opt.isComparison() {
			v.SetType(TypeInt32)
		} else {
			v.SetType(Promote(lt, rt))
		}
		return true
	case *CallExpr:
		fn := a.global.Lookup(v.Name)
		if fn == nil {
			// Implicit function declarations are rejected outright.
			a.errors.SemanticError(a.filename, v.Line, v.Column,
				"call to undeclared function '%s'", v.Name)
			return false
		}
		if len(v.Args) != len(fn.Params) {
			a.errors.SemanticError(a.filename, v.Line, v.Column,
				"function '%s' expects %d arguments, got %d",
				v.Name, len(fn.Params), len(v.Args))
			return false
		}
		allOk := true
		for i, arg := range v.Args {
			if !a.analyzeExpression(arg) {
				allOk = false
				continue
			}
			a.checkAssignable(arg, fn.Params[i].Type, v.Line, v.Column)
		}
		v.SetType(fn.RetType)
		return allOk
	}
	return true
}

func (t TokenKind) isComparison() bool {
	switch t {
	case TK_EQ, TK_NE, TK_LT, TK_LE, TK_GT, TK_GE:
		return true
	}
	return false
}

// checkAssignable verifies value can flow into a slot of type target.
// Narrowing a constant that still fits is a warning and narrowing a
// constant that does not fit is an error; narrowing any other
// expression is a warning. Widening is always fine.
func (a *analyzer) checkAssignable(value AstExpr, target DataType, line, col int) {
	from := value.GetType()
	if !target.IsInteger() {
		a.errors.SemanticError(a.filename, line, col,
			"cannot assign to '%v'", target)
		return
	}
	if from.Bits() <= target.Bits() {
		return
	}
	if num, ok := value.(*NumberExpr); ok {
		if FitsIn(num.Value, target) {
			a.errors.Warning(diag.Semantic, a.filename, line, col,
				"implicit conversion from '%v' to '%v' (value %d fits)",
				from, target, num.Value)
			return
		}
		a.errors.SemanticError(a.filename, line, col,
			"constant %d does not fit in '%v'", num.Value, target)
		return
	}
	a.errors.Warning(diag.Semantic, a.filename, line, col,
		"implicit narrowing conversion from '%v' to '%v'", from, target)
}
