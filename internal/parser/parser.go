// Package parser implements the plc recursive descent parser. Each grammar
// production has its own method; the first error aborts parsing.
package parser

import (
	"fmt"
	"math/big"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/plc-lang/plc/internal/ast"
	"github.com/plc-lang/plc/internal/errors"
	"github.com/plc-lang/plc/internal/lexer"
)

// keywords are Identifier tokens that never name a variable, function or type
var keywords = map[string]bool{
	"LET": true, "DEF": true, "DO": true, "END": true,
	"IF": true, "ELSE": true, "FOR": true, "IN": true,
	"WHILE": true, "RETURN": true, "TRUE": true, "FALSE": true,
	"NIL": true, "AND": true, "OR": true,
}

// IsKeyword reports whether word is reserved
func IsKeyword(word string) bool { return keywords[word] }

// Parser holds the token stream and the read position
type Parser struct {
	tokens []lexer.Token
	index  int
}

// New creates a parser over tokens
func New(tokens []lexer.Token) *Parser {
	return &Parser{tokens: tokens}
}

// ParseSource parses a whole program
func ParseSource(tokens []lexer.Token) (*ast.Source, error) {
	return New(tokens).ParseSource()
}

// ===== Token stream helpers =====

func (p *Parser) has(offset int) bool {
	return p.index+offset < len(p.tokens)
}

func (p *Parser) get(offset int) lexer.Token {
	return p.tokens[p.index+offset]
}

// peek reports whether the upcoming tokens match patterns without consuming
// them. A pattern is a lexer.Kind or a literal string. The Identifier kind
// does not match keywords.
func (p *Parser) peek(patterns ...any) bool {
	for i, pattern := range patterns {
		if !p.has(i) {
			return false
		}
		tok := p.get(i)
		switch pattern := pattern.(type) {
		case lexer.Kind:
			if tok.Kind != pattern {
				return false
			}
			if pattern == lexer.Identifier && keywords[tok.Literal] {
				return false
			}
		case string:
			if tok.Literal != pattern {
				return false
			}
		default:
			panic(fmt.Sprintf("parser: invalid pattern %T", pattern))
		}
	}
	return true
}

// match is peek followed by consuming the matched tokens
func (p *Parser) match(patterns ...any) bool {
	if !p.peek(patterns...) {
		return false
	}
	p.index += len(patterns)
	return true
}

// previous returns the last consumed token
func (p *Parser) previous() lexer.Token {
	return p.get(-1)
}

// errorOffset is the offset of the unexpected token, or the end of the last
// token when the input is exhausted.
func (p *Parser) errorOffset() int {
	if p.has(0) {
		return p.get(0).Offset
	}
	if p.index > 0 {
		return p.previous().End()
	}
	return 0
}

func (p *Parser) errorf(format string, args ...any) error {
	return errors.Syntax(fmt.Sprintf(format, args...), p.errorOffset())
}

// expect consumes literal or fails with "expected <literal>"
func (p *Parser) expect(literal string) error {
	if !p.match(literal) {
		return p.errorf("expected '%s'%s", literal, p.found())
	}
	return nil
}

// expectIdentifier consumes a name token and returns its literal
func (p *Parser) expectIdentifier(what string) (string, error) {
	if !p.match(lexer.Identifier) {
		return "", p.errorf("expected %s%s", what, p.found())
	}
	return p.previous().Literal, nil
}

func (p *Parser) found() string {
	if !p.has(0) {
		return " at end of input"
	}
	return fmt.Sprintf(", found '%s'", p.get(0).Literal)
}

// ===== Declarations =====

// ParseSource parses `field* method*`
func (p *Parser) ParseSource() (*ast.Source, error) {
	src := &ast.Source{}
	for p.has(0) {
		switch {
		case p.peek("LET"):
			if len(src.Methods) > 0 {
				return nil, p.errorf("field declarations must precede method declarations")
			}
			field, err := p.parseField()
			if err != nil {
				return nil, err
			}
			src.Fields = append(src.Fields, field)
		case p.peek("DEF"):
			method, err := p.parseMethod()
			if err != nil {
				return nil, err
			}
			src.Methods = append(src.Methods, method)
		default:
			return nil, p.errorf("expected 'LET' or 'DEF'%s", p.found())
		}
	}
	return src, nil
}

// parseField parses `LET name ':' Type ('=' expr)? ';'`
func (p *Parser) parseField() (*ast.Field, error) {
	field := &ast.Field{Offset: p.get(0).Offset}
	p.match("LET")

	var err error
	if field.Name, err = p.expectIdentifier("field name"); err != nil {
		return nil, err
	}
	if !p.match(":") {
		return nil, p.errorf("expected ':' and a type for field %s", field.Name)
	}
	if field.TypeName, err = p.expectIdentifier("type name"); err != nil {
		return nil, err
	}
	field.TypeNameOffset = p.previous().Offset
	if p.match("=") {
		if field.Value, err = p.parseExpression(); err != nil {
			return nil, err
		}
	}
	if err := p.expect(";"); err != nil {
		return nil, err
	}
	return field, nil
}

// parseMethod parses
// `DEF name '(' (param (',' param)*)? ')' (':' Type)? DO stmt* END`
func (p *Parser) parseMethod() (*ast.Method, error) {
	method := &ast.Method{Offset: p.get(0).Offset}
	p.match("DEF")

	var err error
	if method.Name, err = p.expectIdentifier("method name"); err != nil {
		return nil, err
	}
	if err := p.expect("("); err != nil {
		return nil, err
	}
	if !p.match(")") {
		for {
			name, err := p.expectIdentifier("parameter name")
			if err != nil {
				return nil, err
			}
			if !p.match(":") {
				return nil, p.errorf("expected ':' and a type for parameter %s", name)
			}
			typeName, err := p.expectIdentifier("type name")
			if err != nil {
				return nil, err
			}
			method.Parameters = append(method.Parameters, name)
			method.ParameterTypeNames = append(method.ParameterTypeNames, typeName)
			method.ParameterTypeOffsets = append(method.ParameterTypeOffsets, p.previous().Offset)

			if p.match(")") {
				break
			}
			if err := p.expect(","); err != nil {
				return nil, err
			}
		}
	}
	if p.match(":") {
		if method.ReturnTypeName, err = p.expectIdentifier("return type name"); err != nil {
			return nil, err
		}
		method.ReturnTypeOffset = p.previous().Offset
	}
	if err := p.expect("DO"); err != nil {
		return nil, err
	}
	if method.Statements, err = p.parseBlock("END"); err != nil {
		return nil, err
	}
	p.match("END")
	return method, nil
}

// parseBlock parses statements up to (not including) one of terminators
func (p *Parser) parseBlock(terminators ...string) ([]ast.Stmt, error) {
	var stmts []ast.Stmt
	for {
		if !p.has(0) {
			return nil, p.errorf("expected '%s' at end of input", strings.Join(terminators, "' or '"))
		}
		for _, t := range terminators {
			if p.peek(t) {
				return stmts, nil
			}
		}
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, stmt)
	}
}

// ===== Statements =====

func (p *Parser) parseStatement() (ast.Stmt, error) {
	switch {
	case p.peek("LET"):
		return p.parseDeclarationStatement()
	case p.peek("IF"):
		return p.parseIfStatement()
	case p.peek("FOR"):
		return p.parseForStatement()
	case p.peek("WHILE"):
		return p.parseWhileStatement()
	case p.peek("RETURN"):
		return p.parseReturnStatement()
	default:
		return p.parseExpressionOrAssignment()
	}
}

// parseDeclarationStatement parses `LET name (':' Type)? ('=' expr)? ';'`
func (p *Parser) parseDeclarationStatement() (*ast.DeclarationStmt, error) {
	stmt := &ast.DeclarationStmt{Offset: p.get(0).Offset}
	p.match("LET")

	var err error
	if stmt.Name, err = p.expectIdentifier("variable name"); err != nil {
		return nil, err
	}
	if p.match(":") {
		if stmt.TypeName, err = p.expectIdentifier("type name"); err != nil {
			return nil, err
		}
		stmt.TypeNameOffset = p.previous().Offset
	}
	if p.match("=") {
		if stmt.Value, err = p.parseExpression(); err != nil {
			return nil, err
		}
	}
	if err := p.expect(";"); err != nil {
		return nil, err
	}
	return stmt, nil
}

// parseExpressionOrAssignment parses `expr ('=' expr)? ';'`
func (p *Parser) parseExpressionOrAssignment() (ast.Stmt, error) {
	offset := p.get(0).Offset
	left, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if p.match("=") {
		value, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if err := p.expect(";"); err != nil {
			return nil, err
		}
		return &ast.AssignmentStmt{Offset: offset, Receiver: left, Value: value}, nil
	}
	if err := p.expect(";"); err != nil {
		return nil, err
	}
	return &ast.ExpressionStmt{Offset: offset, Expression: left}, nil
}

// parseIfStatement parses `IF expr DO stmt* (ELSE stmt*)? END`
func (p *Parser) parseIfStatement() (*ast.IfStmt, error) {
	stmt := &ast.IfStmt{Offset: p.get(0).Offset}
	p.match("IF")

	var err error
	if stmt.Condition, err = p.parseExpression(); err != nil {
		return nil, err
	}
	if err := p.expect("DO"); err != nil {
		return nil, err
	}
	if stmt.Then, err = p.parseBlock("ELSE", "END"); err != nil {
		return nil, err
	}
	if p.match("ELSE") {
		if stmt.Else, err = p.parseBlock("END"); err != nil {
			return nil, err
		}
	}
	p.match("END")
	return stmt, nil
}

// parseForStatement parses `FOR name IN expr DO stmt* END`
func (p *Parser) parseForStatement() (*ast.ForStmt, error) {
	stmt := &ast.ForStmt{Offset: p.get(0).Offset}
	p.match("FOR")

	var err error
	if stmt.Name, err = p.expectIdentifier("loop variable name"); err != nil {
		return nil, err
	}
	if err := p.expect("IN"); err != nil {
		return nil, err
	}
	if stmt.Value, err = p.parseExpression(); err != nil {
		return nil, err
	}
	if err := p.expect("DO"); err != nil {
		return nil, err
	}
	if stmt.Statements, err = p.parseBlock("END"); err != nil {
		return nil, err
	}
	p.match("END")
	return stmt, nil
}

// parseWhileStatement parses `WHILE expr DO stmt* END`
func (p *Parser) parseWhileStatement() (*ast.WhileStmt, error) {
	stmt := &ast.WhileStmt{Offset: p.get(0).Offset}
	p.match("WHILE")

	var err error
	if stmt.Condition, err = p.parseExpression(); err != nil {
		return nil, err
	}
	if err := p.expect("DO"); err != nil {
		return nil, err
	}
	if stmt.Statements, err = p.parseBlock("END"); err != nil {
		return nil, err
	}
	p.match("END")
	return stmt, nil
}

// parseReturnStatement parses `RETURN expr ';'`
func (p *Parser) parseReturnStatement() (*ast.ReturnStmt, error) {
	stmt := &ast.ReturnStmt{Offset: p.get(0).Offset}
	p.match("RETURN")

	var err error
	if stmt.Value, err = p.parseExpression(); err != nil {
		return nil, err
	}
	if err := p.expect(";"); err != nil {
		return nil, err
	}
	return stmt, nil
}

// ===== Expressions =====

var (
	logicalOperators        = []string{"AND", "OR"}
	comparisonOperators     = []string{"<", "<=", ">", ">=", "==", "!="}
	additiveOperators       = []string{"+", "-"}
	multiplicativeOperators = []string{"*", "/"}
)

func (p *Parser) parseExpression() (ast.Expr, error) {
	return p.parseLogicalExpression()
}

func (p *Parser) parseLogicalExpression() (ast.Expr, error) {
	return p.parseBinary(logicalOperators, p.parseComparisonExpression)
}

func (p *Parser) parseComparisonExpression() (ast.Expr, error) {
	return p.parseBinary(comparisonOperators, p.parseAdditiveExpression)
}

func (p *Parser) parseAdditiveExpression() (ast.Expr, error) {
	return p.parseBinary(additiveOperators, p.parseMultiplicativeExpression)
}

func (p *Parser) parseMultiplicativeExpression() (ast.Expr, error) {
	return p.parseBinary(multiplicativeOperators, p.parseSecondaryExpression)
}

// parseBinary parses one left-associative precedence level:
// `operand (op operand)*`
func (p *Parser) parseBinary(operators []string, operand func() (ast.Expr, error)) (ast.Expr, error) {
	left, err := operand()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := p.matchAny(operators)
		if !ok {
			return left, nil
		}
		right, err := operand()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryExpr{
			Offset:         left.Pos(),
			Operator:       op.Literal,
			OperatorOffset: op.Offset,
			Left:           left,
			Right:          right,
		}
	}
}

func (p *Parser) matchAny(literals []string) (lexer.Token, bool) {
	for _, lit := range literals {
		if p.match(lit) {
			return p.previous(), true
		}
	}
	return lexer.Token{}, false
}

// parseSecondaryExpression parses `primary ('.' name ('(' args ')')?)*`
func (p *Parser) parseSecondaryExpression() (ast.Expr, error) {
	expr, err := p.parsePrimaryExpression()
	if err != nil {
		return nil, err
	}
	for p.match(".") {
		if !p.match(lexer.Identifier) {
			return nil, p.errorf("expected a field or method name after '.'%s", p.found())
		}
		name := p.previous()
		if p.match("(") {
			args, err := p.parseArguments()
			if err != nil {
				return nil, err
			}
			expr = &ast.CallExpr{Offset: expr.Pos(), Receiver: expr, Name: name.Literal, NameOffset: name.Offset, Arguments: args}
		} else {
			expr = &ast.AccessExpr{Offset: expr.Pos(), Receiver: expr, Name: name.Literal, NameOffset: name.Offset}
		}
	}
	return expr, nil
}

// parseArguments parses `(expr (',' expr)*)? ')'` after the opening paren
func (p *Parser) parseArguments() ([]ast.Expr, error) {
	var args []ast.Expr
	if p.match(")") {
		return args, nil
	}
	for {
		arg, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)

		if p.match(")") {
			return args, nil
		}
		if err := p.expect(","); err != nil {
			return nil, err
		}
		if p.peek(")") {
			return nil, p.errorf("expected an argument after ','")
		}
	}
}

func (p *Parser) parsePrimaryExpression() (ast.Expr, error) {
	if !p.has(0) {
		return nil, p.errorf("expected an expression at end of input")
	}
	tok := p.get(0)

	switch {
	case p.match("NIL"):
		return &ast.LiteralExpr{Offset: tok.Offset, Value: nil}, nil
	case p.match("TRUE"):
		return &ast.LiteralExpr{Offset: tok.Offset, Value: true}, nil
	case p.match("FALSE"):
		return &ast.LiteralExpr{Offset: tok.Offset, Value: false}, nil
	case p.match(lexer.Integer):
		v, ok := new(big.Int).SetString(strings.TrimPrefix(tok.Literal, "+"), 10)
		if !ok {
			return nil, errors.Syntax(fmt.Sprintf("malformed integer literal %s", tok.Literal), tok.Offset)
		}
		return &ast.LiteralExpr{Offset: tok.Offset, Value: v}, nil
	case p.match(lexer.Decimal):
		v, err := decimal.NewFromString(strings.TrimPrefix(tok.Literal, "+"))
		if err != nil {
			return nil, errors.Syntax(fmt.Sprintf("malformed decimal literal %s", tok.Literal), tok.Offset)
		}
		return &ast.LiteralExpr{Offset: tok.Offset, Value: v}, nil
	case p.match(lexer.String):
		s, err := unescape(tok)
		if err != nil {
			return nil, err
		}
		return &ast.LiteralExpr{Offset: tok.Offset, Value: s}, nil
	case p.match(lexer.Character):
		s, err := unescape(tok)
		if err != nil {
			return nil, err
		}
		r, size := utf8.DecodeRuneInString(s)
		if size == 0 || size != len(s) {
			return nil, errors.Syntax("character literal must hold exactly one character", tok.Offset)
		}
		return &ast.LiteralExpr{Offset: tok.Offset, Value: r}, nil
	case p.match("("):
		inner, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if err := p.expect(")"); err != nil {
			return nil, err
		}
		return &ast.GroupExpr{Offset: tok.Offset, Expression: inner}, nil
	case p.match(lexer.Identifier):
		if p.match("(") {
			args, err := p.parseArguments()
			if err != nil {
				return nil, err
			}
			return &ast.CallExpr{Offset: tok.Offset, Name: tok.Literal, NameOffset: tok.Offset, Arguments: args}, nil
		}
		return &ast.AccessExpr{Offset: tok.Offset, Name: tok.Literal, NameOffset: tok.Offset}, nil
	default:
		return nil, p.errorf("expected an expression, found '%s'", tok.Literal)
	}
}

// unescape strips the quotes of a string or character token and resolves
// \b \n \r \t \' \" \\ escapes.
func unescape(tok lexer.Token) (string, error) {
	lit := tok.Literal
	if len(lit) < 2 {
		return "", errors.Syntax("malformed literal", tok.Offset)
	}
	body := lit[1 : len(lit)-1]
	if !strings.ContainsRune(body, '\\') {
		return body, nil
	}

	var b strings.Builder
	b.Grow(len(body))
	for i := 0; i < len(body); i++ {
		c := body[i]
		if c != '\\' {
			b.WriteByte(c)
			continue
		}
		i++
		if i >= len(body) {
			return "", errors.Syntax("dangling escape", tok.Offset+utf8.RuneCountInString(lit[:1+i]))
		}
		switch body[i] {
		case 'b':
			b.WriteByte('\b')
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case 't':
			b.WriteByte('\t')
		case '\'', '"', '\\':
			b.WriteByte(body[i])
		default:
			return "", errors.Syntax(fmt.Sprintf("invalid escape sequence \\%c", body[i]), tok.Offset+utf8.RuneCountInString(lit[:i]))
		}
	}
	return b.String(), nil
}
