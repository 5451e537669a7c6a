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
	"github.com/juusokasperi/tinyCompile/diag"
)

const (
	MaxParamsPerFunction = 32
	MaxBlockStatements   = 512
	MaxExpressionDepth   = 128
)

// Precedence levels, lowest binds loosest.
type Precedence int

const (
	PrecNone Precedence = iota
	PrecAssignment
	PrecBitOr
	PrecBitXor
	PrecBitAnd
	PrecEquality
	PrecComparison
	PrecShift
	PrecTerm
	PrecFactor
	PrecUnary
	PrecCall
)

func tokenPrecedence(kind TokenKind) Precedence {
	switch kind {
	case TK_BITOR:
		return PrecBitOr
	case TK_BITXOR:
		return PrecBitXor
	case TK_BITAND:
		return PrecBitAnd
	case TK_EQ, TK_NE:
		return PrecEquality
	case TK_LT, TK_LE, TK_GT, TK_GE:
		return PrecComparison
	case TK_LSHIFT, TK_RSHIFT:
		return PrecShift
	case TK_PLUS, TK_MINUS:
		return PrecTerm
	case TK_TIMES, TK_DIV:
		return PrecFactor
	case TK_LPAREN:
		return PrecCall
	case TK_LOGAND, TK_LOGOR:
		// Recognized so the parser can reject them with a real
		// diagnostic instead of "expect expression".
		return PrecEquality
	default:
		return PrecNone
	}
}

type Parser struct {
	lexer     *Lexer
	fileName  string
	current   Token
	next      Token
	errors    *diag.Context
	panicMode bool
	hadError  bool
	exprDepth int
}

func NewParser(fileName string, src []byte, errors *diag.Context) *Parser {
	p := &Parser{
		lexer:    NewLexer(fileName, src, errors),
		fileName: fileName,
		errors:   errors,
	}
	// Prime the one-token lookahead.
	p.advance()
	return p
}

// ParseFile parses a whole translation unit: a sequence of function
// definitions and prototypes. Returns the unit and whether it parsed
// without errors.
func ParseFile(fileName string, src []byte, errors *diag.Context) (*TranslationUnit, bool) {
	p := NewParser(fileName, src, errors)
	unit := &TranslationUnit{Source: fileName}
	for !p.check(TK_EOF) {
		before := p.next
		fn := p.parseFunction()
		if fn != nil {
			unit.Funcs = append(unit.Funcs, fn)
			continue
		}
		p.synchronize()
		// Guarantee progress even when the boundary token itself is
		// what the parser choked on.
		if p.next == before {
			p.advance()
		}
	}
	return unit, !p.hadError
}

// -----------------------------------------------------------------------------
// Token plumbing

func (p *Parser) advance() {
	p.current = p.next
	for {
		p.next = p.lexer.NextToken()
		// Error tokens already produced a lexer diagnostic.
		if p.next.Kind != TK_ERROR {
			break
		}
		p.hadError = true
	}
}

func (p *Parser) check(kind TokenKind) bool {
	return p.next.Kind == kind
}

func (p *Parser) match(kind TokenKind) bool {
	if p.check(kind) {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) consume(kind TokenKind, message string) bool {
	if p.check(kind) {
		p.advance()
		p.panicMode = false
		return true
	}
	p.error("%s (got %v)", message, p.next.Kind)
	return false
}

func (p *Parser) error(format string, args ...interface{}) {
	p.hadError = true
	if p.panicMode {
		return
	}
	p.panicMode = true
	p.errors.ParserError(p.fileName, p.next.Line, p.next.Column, format, args...)
}

// synchronize skips tokens until a statement boundary: past a ';', or
// up to a token that can start a statement.
func (p *Parser) synchronize() {
	p.panicMode = false
	for p.next.Kind != TK_EOF {
		if p.current.Kind == TK_SEMICOLON {
			return
		}
		switch p.next.Kind {
		case KW_IF, KW_WHILE, KW_RETURN, KW_TYPE, TK_LBRACE:
			return
		}
		p.advance()
	}
}

// -----------------------------------------------------------------------------
// Declarations

func (p *Parser) parseType() DataType {
	if p.check(KW_TYPE) {
		p.advance()
		return TypeFromName(p.current.Text)
	}
	p.error("expected type specifier (e.g. 'int', 'char', 'void')")
	return TypeVoid
}

// function = type ident '(' params ')' (block | ';')
func (p *Parser) parseFunction() *FuncDecl {
	retType := p.parseType()
	if p.panicMode {
		return nil
	}
	fn := &FuncDecl{RetType: retType}
	fn.Line, fn.Column = p.next.Line, p.next.Column
	if !p.consume(TK_IDENT, "expected function name") {
		return nil
	}
	fn.Name = p.current.Text

	if !p.consume(TK_LPAREN, "expected '(' after function name") {
		return nil
	}
	fn.Params = p.parseParams()

	if p.match(TK_SEMICOLON) {
		fn.IsPrototype = true
		return fn
	}
	fn.Body = p.parseBlock()
	if fn.Body == nil {
		return nil
	}
	return fn
}

func (p *Parser) parseParams() []Parameter {
	params := make([]Parameter, 0)
	if p.match(TK_RPAREN) {
		return params
	}
	for {
		if len(params) >= MaxParamsPerFunction {
			p.error("too many parameters (max %d)", MaxParamsPerFunction)
			p.synchronize()
			return params
		}
		paramType := p.parseType()
		// Prototype parameters may be unnamed.
		name := ""
		if p.match(TK_IDENT) {
			name = p.current.Text
		}
		params = append(params, Parameter{Name: name, Type: paramType})
		if !p.match(TK_COMMA) {
			break
		}
	}
	p.consume(TK_RPAREN, "expected ')' after parameters")
	return params
}

// -----------------------------------------------------------------------------
// Statements

func (p *Parser) parseBlock() *BlockStmt {
	if !p.consume(TK_LBRACE, "expected '{'") {
		return nil
	}
	block := &BlockStmt{}
	block.Line, block.Column = p.current.Line, p.current.Column
	for !p.check(TK_RBRACE) && !p.check(TK_EOF) {
		if len(block.Stmts) >= MaxBlockStatements {
			p.error("too many statements in block (max %d)", MaxBlockStatements)
			p.synchronize()
			break
		}
		stmt := p.parseStatement()
		if stmt != nil {
			block.Stmts = append(block.Stmts, stmt)
		}
		if p.panicMode {
			p.synchronize()
		}
	}
	p.consume(TK_RBRACE, "expected '}' after block")
	return block
}

func (p *Parser) parseStatement() AstStmt {
	switch p.next.Kind {
	case KW_RETURN:
		return p.parseReturnStmt()
	case KW_IF:
		return p.parseIfStmt()
	case KW_WHILE:
		return p.parseWhileStmt()
	case KW_TYPE:
		return p.parseVarDecl()
	case TK_LBRACE:
		return p.parseBlock()
	default:
		return p.parseSimpleStmt()
	}
}

func (p *Parser) parseReturnStmt() AstStmt {
	p.advance()
	stmt := &ReturnStmt{}
	stmt.Line, stmt.Column = p.current.Line, p.current.Column
	if !p.check(TK_SEMICOLON) {
		stmt.Expr = p.parseExpression(PrecNone)
	}
	p.consume(TK_SEMICOLON, "expected ';' after return")
	return stmt
}

func (p *Parser) parseIfStmt() AstStmt {
	p.advance()
	stmt := &IfStmt{}
	stmt.Line, stmt.Column = p.current.Line, p.current.Column
	p.consume(TK_LPAREN, "expected '(' after 'if'")
	stmt.Cond = p.parseExpression(PrecNone)
	p.consume(TK_RPAREN, "expected ')' after condition")
	stmt.Then = p.parseStatement()
	if p.match(KW_ELSE) {
		stmt.Else = p.parseStatement()
	}
	return stmt
}

func (p *Parser) parseWhileStmt() AstStmt {
	p.advance()
	stmt := &WhileStmt{}
	stmt.Line, stmt.Column = p.current.Line, p.current.Column
	p.consume(TK_LPAREN, "expected '(' after 'while'")
	stmt.Cond = p.parseExpression(PrecNone)
	p.consume(TK_RPAREN, "expected ')' after condition")
	stmt.Body = p.parseStatement()
	return stmt
}

func (p *Parser) parseVarDecl() AstStmt {
	declType := p.parseType()
	stmt := &VarDeclStmt{DeclType: declType}
	if !p.consume(TK_IDENT, "expected variable name") {
		return nil
	}
	stmt.Name = p.current.Text
	stmt.Line, stmt.Column = p.current.Line, p.current.Column
	if p.match(TK_ASSIGN) {
		stmt.Init = p.parseExpression(PrecNone)
	}
	p.consume(TK_SEMICOLON, "expected ';' after declaration")
	return stmt
}

// parseSimpleStmt handles assignments and bare expression statements.
func (p *Parser) parseSimpleStmt() AstStmt {
	expr := p.parseExpression(PrecNone)
	if expr == nil {
		// parseExpression already reported; skip the offender.
		p.advance()
		return nil
	}
	if p.match(TK_ASSIGN) {
		target, ok := expr.(*VarExpr)
		if !ok {
			p.error("invalid assignment target")
			return nil
		}
		stmt := &AssignStmt{Name: target.Name, Value: p.parseExpression(PrecNone)}
		stmt.Line, stmt.Column = target.Line, target.Column
		p.consume(TK_SEMICOLON, "expected ';' after assignment")
		return stmt
	}
	stmt := &ExprStmt{Expr: expr}
	stmt.Line, stmt.Column = expr.Pos()
	p.consume(TK_SEMICOLON, "expected ';' after expression")
	return stmt
}

// -----------------------------------------------------------------------------
// Expressions (Pratt)

func (p *Parser) parseExpression(prec Precedence) AstExpr {
	if p.exprDepth >= MaxExpressionDepth {
		p.error("expression too deeply nested (max %d)", MaxExpressionDepth)
		return nil
	}
	p.exprDepth++
	defer func() { p.exprDepth-- }()

	left := p.parsePrefix()
	if left == nil {
		return nil
	}
	for prec < tokenPrecedence(p.next.Kind) {
		p.advance()
		left = p.parseInfix(left)
		if left == nil {
			return nil
		}
	}
	return left
}

func (p *Parser) parsePrefix() AstExpr {
	switch p.next.Kind {
	case LIT_INT:
		p.advance()
		expr := &NumberExpr{Text: p.current.Text}
		expr.Line, expr.Column = p.current.Line, p.current.Column
		return expr
	case TK_IDENT:
		p.advance()
		expr := &VarExpr{Name: p.current.Text}
		expr.Line, expr.Column = p.current.Line, p.current.Column
		return expr
	case TK_MINUS, TK_LOGNOT, TK_BITNOT:
		p.advance()
		expr := &UnaryExpr{Opt: p.current.Kind}
		expr.Line, expr.Column = p.current.Line, p.current.Column
		expr.Operand = p.parseExpression(PrecUnary)
		if expr.Operand == nil {
			return nil
		}
		return expr
	case TK_LPAREN:
		p.advance()
		expr := p.parseExpression(PrecNone)
		p.consume(TK_RPAREN, "expected ')' after expression")
		return expr
	default:
		p.error("expect expression")
		return nil
	}
}

func (p *Parser) parseInfix(left AstExpr) AstExpr {
	opt := p.current.Kind
	switch opt {
	case TK_LOGAND, TK_LOGOR:
		p.error("short-circuit '%v' is not supported", opt)
		return nil
	case TK_LPAREN:
		return p.parseCall(left)
	case TK_PLUS, TK_MINUS, TK_TIMES, TK_DIV,
		TK_EQ, TK_NE, TK_LT, TK_LE, TK_GT, TK_GE,
		TK_BITAND, TK_BITOR, TK_BITXOR, TK_LSHIFT, TK_RSHIFT:
		expr := &BinaryExpr{Opt: opt, Left: left}
		expr.Line, expr.Column = p.current.Line, p.current.Column
		expr.Right = p.parseExpression(tokenPrecedence(opt))
		if expr.Right == nil {
			return nil
		}
		return expr
	default:
		p.error("invalid binary operator '%v'", opt)
		return nil
	}
}

func (p *Parser) parseCall(callee AstExpr) AstExpr {
	target, ok := callee.(*VarExpr)
	if !ok {
		p.error("can only call functions")
		return nil
	}
	expr := &CallExpr{Name: target.Name}
	expr.Line, expr.Column = target.Line, target.Column
	if !p.check(TK_RPAREN) {
		for {
			if len(expr.Args) >= MaxParamsPerFunction {
				p.error("too many arguments (max %d)", MaxParamsPerFunction)
				p.synchronize()
				break
			}
			arg := p.parseExpression(PrecAssignment)
			if arg == nil {
				p.synchronize()
				break
			}
			expr.Args = append(expr.Args, arg)
			if !p.match(TK_COMMA) {
				break
			}
		}
	}
	p.consume(TK_RPAREN, "expected ')' after arguments")
	return expr
}
