// Package ast defines the syntax tree produced by the parser and annotated by
// the analyzer.
//
// Statements and expressions are closed sets: Stmt and Expr carry unexported
// marker methods, so every pass handles them with one exhaustive type switch.
// Resolution slots (variable, function, static type) start empty and are
// filled exactly once; filling a bound slot panics.
package ast

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/plc-lang/plc/internal/environment"
)

// Node is implemented by every syntax tree node
type Node interface {
	// Pos returns the byte offset where the node starts in the source
	Pos() int
	// String returns a compact source-like rendering of the node
	String() string
}

// Stmt is a statement node
type Stmt interface {
	Node
	stmtNode()
}

// Expr is an expression node with a static type slot
type Expr interface {
	Node
	exprNode()
	Type() *environment.Type
	SetType(t *environment.Type)
}

// ===== Resolution slots =====

// VariableSlot holds the Variable an analyzer bound to a node
type VariableSlot struct {
	variable *environment.Variable
}

// Variable returns the bound variable or nil
func (s *VariableSlot) Variable() *environment.Variable { return s.variable }

// SetVariable binds the slot. It panics if the slot is already bound.
func (s *VariableSlot) SetVariable(v *environment.Variable) {
	if s.variable != nil {
		panic(fmt.Sprintf("ast: variable slot already bound to %s", s.variable.Name))
	}
	s.variable = v
}

// FunctionSlot holds the Function an analyzer bound to a node
type FunctionSlot struct {
	function *environment.Function
}

// Function returns the bound function or nil
func (s *FunctionSlot) Function() *environment.Function { return s.function }

// SetFunction binds the slot. It panics if the slot is already bound.
func (s *FunctionSlot) SetFunction(f *environment.Function) {
	if s.function != nil {
		panic(fmt.Sprintf("ast: function slot already bound to %s/%d", s.function.Name, s.function.Arity))
	}
	s.function = f
}

// TypeSlot holds the static type of an expression
type TypeSlot struct {
	typ *environment.Type
}

// Type returns the static type or nil before analysis
func (s *TypeSlot) Type() *environment.Type { return s.typ }

// SetType binds the slot. It panics if the slot is already bound.
func (s *TypeSlot) SetType(t *environment.Type) {
	if s.typ != nil {
		panic(fmt.Sprintf("ast: type slot already bound to %s", s.typ))
	}
	s.typ = t
}

// ===== Program structure =====

// Source is a whole program: field declarations followed by methods
type Source struct {
	Fields  []*Field
	Methods []*Method
}

func (s *Source) Pos() int {
	switch {
	case len(s.Fields) > 0:
		return s.Fields[0].Offset
	case len(s.Methods) > 0:
		return s.Methods[0].Offset
	}
	return 0
}

func (s *Source) String() string {
	var parts []string
	for _, f := range s.Fields {
		parts = append(parts, f.String())
	}
	for _, m := range s.Methods {
		parts = append(parts, m.String())
	}
	return strings.Join(parts, "\n")
}

// Field is a global `LET name: Type [= value];`
type Field struct {
	Offset         int    // offset of LET
	Name           string // field name
	TypeName       string // declared type name, always present
	TypeNameOffset int    // offset of TypeName
	Value          Expr   // initializer, nil if absent
	VariableSlot
}

func (f *Field) Pos() int { return f.Offset }
func (f *Field) String() string {
	if f.Value != nil {
		return fmt.Sprintf("LET %s: %s = %s;", f.Name, f.TypeName, f.Value)
	}
	return fmt.Sprintf("LET %s: %s;", f.Name, f.TypeName)
}

// Method is `DEF name(p: T, ...) [: R] DO ... END`
type Method struct {
	Offset               int      // offset of DEF
	Name                 string   // method name
	Parameters           []string // parameter names
	ParameterTypeNames   []string // parameter type names, same length as Parameters
	ParameterTypeOffsets []int    // offsets of the parameter type names
	ReturnTypeName       string   // declared return type, empty if absent
	ReturnTypeOffset     int      // offset of ReturnTypeName
	Statements           []Stmt   // body
	FunctionSlot
}

func (m *Method) Pos() int { return m.Offset }

// ParameterTypePos returns the offset of the i-th parameter type name, or
// the method's offset when it was not recorded.
func (m *Method) ParameterTypePos(i int) int {
	if i < len(m.ParameterTypeOffsets) {
		return m.ParameterTypeOffsets[i]
	}
	return m.Offset
}

// ReturnTypePos returns the offset of the return type name, or the method's
// offset when it was not recorded.
func (m *Method) ReturnTypePos() int {
	if m.ReturnTypeName != "" && m.ReturnTypeOffset > m.Offset {
		return m.ReturnTypeOffset
	}
	return m.Offset
}

func (m *Method) String() string {
	params := make([]string, len(m.Parameters))
	for i, p := range m.Parameters {
		params[i] = p + ": " + m.ParameterTypeNames[i]
	}
	ret := ""
	if m.ReturnTypeName != "" {
		ret = ": " + m.ReturnTypeName
	}
	return fmt.Sprintf("DEF %s(%s)%s DO %s END", m.Name, strings.Join(params, ", "), ret, joinStmts(m.Statements))
}

// ===== Statements =====

// ExpressionStmt is an expression evaluated for effect
type ExpressionStmt struct {
	Offset     int
	Expression Expr
}

// DeclarationStmt is a local `LET name[: Type] [= value];`
type DeclarationStmt struct {
	Offset         int
	Name           string
	TypeName       string // empty if absent
	TypeNameOffset int    // offset of TypeName
	Value          Expr   // nil if absent
	VariableSlot
}

// AssignmentStmt is `receiver = value;`
type AssignmentStmt struct {
	Offset   int
	Receiver Expr
	Value    Expr
}

// IfStmt is `IF cond DO then [ELSE else] END`
type IfStmt struct {
	Offset    int
	Condition Expr
	Then      []Stmt
	Else      []Stmt
}

// ForStmt is `FOR name IN value DO body END`
type ForStmt struct {
	Offset     int
	Name       string
	Value      Expr
	Statements []Stmt
}

// WhileStmt is `WHILE cond DO body END`
type WhileStmt struct {
	Offset     int
	Condition  Expr
	Statements []Stmt
}

// ReturnStmt is `RETURN value;`
type ReturnStmt struct {
	Offset int
	Value  Expr
}

func (*ExpressionStmt) stmtNode()  {}
func (*DeclarationStmt) stmtNode() {}
func (*AssignmentStmt) stmtNode()  {}
func (*IfStmt) stmtNode()          {}
func (*ForStmt) stmtNode()         {}
func (*WhileStmt) stmtNode()       {}
func (*ReturnStmt) stmtNode()      {}

func (s *ExpressionStmt) Pos() int  { return s.Offset }
func (s *DeclarationStmt) Pos() int { return s.Offset }
func (s *AssignmentStmt) Pos() int  { return s.Offset }
func (s *IfStmt) Pos() int          { return s.Offset }
func (s *ForStmt) Pos() int         { return s.Offset }
func (s *WhileStmt) Pos() int       { return s.Offset }
func (s *ReturnStmt) Pos() int      { return s.Offset }

func (s *ExpressionStmt) String() string { return s.Expression.String() + ";" }

func (s *DeclarationStmt) String() string {
	var b strings.Builder
	b.WriteString("LET " + s.Name)
	if s.TypeName != "" {
		b.WriteString(": " + s.TypeName)
	}
	if s.Value != nil {
		b.WriteString(" = " + s.Value.String())
	}
	b.WriteString(";")
	return b.String()
}

func (s *AssignmentStmt) String() string {
	return fmt.Sprintf("%s = %s;", s.Receiver, s.Value)
}

func (s *IfStmt) String() string {
	if len(s.Else) > 0 {
		return fmt.Sprintf("IF %s DO %s ELSE %s END", s.Condition, joinStmts(s.Then), joinStmts(s.Else))
	}
	return fmt.Sprintf("IF %s DO %s END", s.Condition, joinStmts(s.Then))
}

func (s *ForStmt) String() string {
	return fmt.Sprintf("FOR %s IN %s DO %s END", s.Name, s.Value, joinStmts(s.Statements))
}

func (s *WhileStmt) String() string {
	return fmt.Sprintf("WHILE %s DO %s END", s.Condition, joinStmts(s.Statements))
}

func (s *ReturnStmt) String() string { return fmt.Sprintf("RETURN %s;", s.Value) }

func joinStmts(stmts []Stmt) string {
	parts := make([]string, len(stmts))
	for i, s := range stmts {
		parts[i] = s.String()
	}
	return strings.Join(parts, " ")
}

// ===== Expressions =====

// LiteralExpr holds nil, bool, rune, string, *big.Int or decimal.Decimal
type LiteralExpr struct {
	Offset int
	Value  any
	TypeSlot
}

// GroupExpr is a parenthesized expression
type GroupExpr struct {
	Offset     int
	Expression Expr
	TypeSlot
}

// BinaryExpr is `left op right`. Offset is the start of Left.
type BinaryExpr struct {
	Offset         int
	Operator       string
	OperatorOffset int
	Left           Expr
	Right          Expr
	TypeSlot
}

// AccessExpr reads a variable, or a field when Receiver is set
type AccessExpr struct {
	Offset     int
	Receiver   Expr // nil for a bare name
	Name       string
	NameOffset int
	VariableSlot
	TypeSlot
}

// CallExpr calls a function, or a method when Receiver is set
type CallExpr struct {
	Offset     int
	Receiver   Expr // nil for a free function call
	Name       string
	NameOffset int
	Arguments  []Expr
	FunctionSlot
	TypeSlot
}

func (*LiteralExpr) exprNode() {}
func (*GroupExpr) exprNode()   {}
func (*BinaryExpr) exprNode()  {}
func (*AccessExpr) exprNode()  {}
func (*CallExpr) exprNode()    {}

func (e *LiteralExpr) Pos() int { return e.Offset }
func (e *GroupExpr) Pos() int   { return e.Offset }
func (e *BinaryExpr) Pos() int  { return e.Offset }
func (e *AccessExpr) Pos() int  { return e.Offset }
func (e *CallExpr) Pos() int    { return e.Offset }

func (e *LiteralExpr) String() string {
	switch v := e.Value.(type) {
	case nil:
		return "NIL"
	case bool:
		if v {
			return "TRUE"
		}
		return "FALSE"
	case rune:
		return strconv.QuoteRune(v)
	case string:
		return strconv.Quote(v)
	case *big.Int:
		return v.String()
	case decimal.Decimal:
		return environment.FormatDecimal(v)
	}
	return fmt.Sprint(e.Value)
}

func (e *GroupExpr) String() string { return "(" + e.Expression.String() + ")" }

func (e *BinaryExpr) String() string {
	return fmt.Sprintf("[%s %s %s]", e.Left, e.Operator, e.Right)
}

func (e *AccessExpr) String() string {
	if e.Receiver != nil {
		return e.Receiver.String() + "." + e.Name
	}
	return e.Name
}

func (e *CallExpr) String() string {
	args := make([]string, len(e.Arguments))
	for i, a := range e.Arguments {
		args[i] = a.String()
	}
	call := fmt.Sprintf("%s(%s)", e.Name, strings.Join(args, ", "))
	if e.Receiver != nil {
		return e.Receiver.String() + "." + call
	}
	return call
}
