// Package analyzer type-checks a parsed program and fills the resolution
// slots of its syntax tree. The first violation aborts analysis.
package analyzer

import (
	stderrors "errors"
	"fmt"
	"math"
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/plc-lang/plc/internal/ast"
	"github.com/plc-lang/plc/internal/environment"
	"github.com/plc-lang/plc/internal/errors"
)

// Analyzer checks one program. An Analyzer is single-use and not safe for
// concurrent use.
type Analyzer struct {
	global *environment.Scope
}

// New creates an analyzer whose global frame is a child of parent. The global
// frame gains print(Any) -> Nil unless parent already provides it.
func New(parent *environment.Scope) *Analyzer {
	global := environment.NewScope(parent)
	if _, ok := global.LookupFunction("print", 1); !ok {
		_ = global.DefineFunction(environment.NewFunction("print", "System.out.println",
			[]*environment.Type{environment.Any}, environment.Nil, nil))
	}
	return &Analyzer{global: global}
}

// Scope returns the global frame holding the program's fields and methods
func (a *Analyzer) Scope() *environment.Scope { return a.global }

// Analyze validates src and binds every variable, function and type slot.
// The program must define main/0 returning a type assignable to Integer.
func (a *Analyzer) Analyze(src *ast.Source) error {
	for _, field := range src.Fields {
		if err := a.visitField(field, a.global); err != nil {
			return err
		}
	}
	for _, method := range src.Methods {
		if err := a.visitMethod(method, a.global); err != nil {
			return err
		}
	}
	return a.checkMain(src)
}

func (a *Analyzer) checkMain(src *ast.Source) error {
	entry, ok := a.global.LookupFunction("main", 0)
	if !ok {
		return errors.Semantic(errors.CodeMissingMain,
			"the program must define a method main() with no parameters", src.Pos(), nil)
	}
	offset := src.Pos()
	for _, m := range src.Methods {
		if m.Function() == entry {
			offset = m.Offset
		}
	}
	return require(environment.Integer, entry.ReturnType, offset)
}

// ===== Declarations =====

func (a *Analyzer) visitField(field *ast.Field, scope *environment.Scope) error {
	typ, err := resolveType(field.TypeName, typeNamePos(field.TypeNameOffset, field.Offset))
	if err != nil {
		return err
	}
	if field.Value != nil {
		if err := a.visitExpr(field.Value, scope); err != nil {
			return err
		}
		if err := require(typ, field.Value.Type(), field.Value.Pos()); err != nil {
			return err
		}
	}
	v, err := scope.DefineVariable(field.Name, typ, environment.NilValue)
	if err != nil {
		return redefinition(err, "field", field.Name, field.Offset)
	}
	field.SetVariable(v)
	return nil
}

func (a *Analyzer) visitMethod(method *ast.Method, scope *environment.Scope) error {
	params := make([]*environment.Type, len(method.ParameterTypeNames))
	for i, name := range method.ParameterTypeNames {
		typ, err := resolveType(name, method.ParameterTypePos(i))
		if err != nil {
			return err
		}
		params[i] = typ
	}
	returns := environment.Nil
	if method.ReturnTypeName != "" {
		typ, err := resolveType(method.ReturnTypeName, method.ReturnTypePos())
		if err != nil {
			return err
		}
		returns = typ
	}

	fn := environment.NewFunction(method.Name, method.Name, params, returns, nil)
	if err := scope.DefineFunction(fn); err != nil {
		return redefinition(err, "method", fmt.Sprintf("%s/%d", method.Name, fn.Arity), method.Offset)
	}
	method.SetFunction(fn)

	body := scope.Child()
	for i, name := range method.Parameters {
		if _, err := body.DefineVariable(name, params[i], environment.NilValue); err != nil {
			return redefinition(err, "parameter", name, method.Offset)
		}
	}
	if err := a.visitBlock(method.Statements, body); err != nil {
		return err
	}

	if returns == environment.Nil {
		return nil
	}
	for _, stmt := range method.Statements {
		if ret, ok := stmt.(*ast.ReturnStmt); ok {
			if err := require(returns, ret.Value.Type(), ret.Value.Pos()); err != nil {
				return err
			}
		}
	}
	return nil
}

// ===== Statements =====

func (a *Analyzer) visitBlock(stmts []ast.Stmt, scope *environment.Scope) error {
	for _, stmt := range stmts {
		if err := a.visitStmt(stmt, scope); err != nil {
			return err
		}
	}
	return nil
}

func (a *Analyzer) visitStmt(stmt ast.Stmt, scope *environment.Scope) error {
	switch s := stmt.(type) {
	case *ast.ExpressionStmt:
		if _, ok := s.Expression.(*ast.CallExpr); !ok {
			return errors.Semantic(errors.CodeInvalidStatement,
				"only a function or method call can be used as a statement", s.Offset, nil)
		}
		return a.visitExpr(s.Expression, scope)

	case *ast.DeclarationStmt:
		return a.visitDeclaration(s, scope)

	case *ast.AssignmentStmt:
		if _, ok := s.Receiver.(*ast.AccessExpr); !ok {
			return errors.Semantic(errors.CodeInvalidAssignment,
				"the left side of an assignment must be a variable or field", s.Offset, nil)
		}
		if err := a.visitExpr(s.Receiver, scope); err != nil {
			return err
		}
		if err := a.visitExpr(s.Value, scope); err != nil {
			return err
		}
		return require(s.Receiver.Type(), s.Value.Type(), s.Value.Pos())

	case *ast.IfStmt:
		if err := a.visitCondition(s.Condition, scope); err != nil {
			return err
		}
		if len(s.Then) == 0 {
			return errors.Semantic(errors.CodeEmptyBlock, "an IF statement needs at least one statement", s.Offset, nil)
		}
		if err := a.visitBlock(s.Then, scope.Child()); err != nil {
			return err
		}
		return a.visitBlock(s.Else, scope.Child())

	case *ast.ForStmt:
		if err := a.visitExpr(s.Value, scope); err != nil {
			return err
		}
		if s.Value.Type() != environment.IntegerIterable {
			return errors.TypeMismatch(errors.CategorySemantic,
				environment.IntegerIterable.Name(), s.Value.Type().Name(), s.Value.Pos())
		}
		if len(s.Statements) == 0 {
			return errors.Semantic(errors.CodeEmptyBlock, "a FOR statement needs at least one statement", s.Offset, nil)
		}
		body := scope.Child()
		if _, err := body.DefineVariable(s.Name, environment.Integer, environment.NilValue); err != nil {
			return redefinition(err, "variable", s.Name, s.Offset)
		}
		return a.visitBlock(s.Statements, body)

	case *ast.WhileStmt:
		if err := a.visitCondition(s.Condition, scope); err != nil {
			return err
		}
		return a.visitBlock(s.Statements, scope.Child())

	case *ast.ReturnStmt:
		return a.visitExpr(s.Value, scope)

	default:
		panic(fmt.Sprintf("analyzer: unexpected statement %T", stmt))
	}
}

func (a *Analyzer) visitDeclaration(s *ast.DeclarationStmt, scope *environment.Scope) error {
	if s.TypeName == "" && s.Value == nil {
		return errors.Semantic(errors.CodeMissingDeclarationType,
			fmt.Sprintf("the declaration of %s needs a type or an initial value", s.Name), s.Offset,
			map[string]interface{}{"name": s.Name})
	}

	var typ *environment.Type
	if s.TypeName != "" {
		declared, err := resolveType(s.TypeName, typeNamePos(s.TypeNameOffset, s.Offset))
		if err != nil {
			return err
		}
		typ = declared
	}
	if s.Value != nil {
		if err := a.visitExpr(s.Value, scope); err != nil {
			return err
		}
		if typ == nil {
			typ = s.Value.Type()
		} else if err := require(typ, s.Value.Type(), s.Value.Pos()); err != nil {
			return err
		}
	}

	v, err := scope.DefineVariable(s.Name, typ, environment.NilValue)
	if err != nil {
		return redefinition(err, "variable", s.Name, s.Offset)
	}
	s.SetVariable(v)
	return nil
}

func (a *Analyzer) visitCondition(cond ast.Expr, scope *environment.Scope) error {
	if err := a.visitExpr(cond, scope); err != nil {
		return err
	}
	return require(environment.Boolean, cond.Type(), cond.Pos())
}

// ===== Expressions =====

func (a *Analyzer) visitExpr(expr ast.Expr, scope *environment.Scope) error {
	switch e := expr.(type) {
	case *ast.LiteralExpr:
		return visitLiteral(e)

	case *ast.GroupExpr:
		if _, ok := e.Expression.(*ast.BinaryExpr); !ok {
			return errors.Semantic(errors.CodeInvalidGroup,
				"parentheses may only enclose a binary expression", e.Offset, nil)
		}
		if err := a.visitExpr(e.Expression, scope); err != nil {
			return err
		}
		e.SetType(e.Expression.Type())
		return nil

	case *ast.BinaryExpr:
		return a.visitBinary(e, scope)

	case *ast.AccessExpr:
		if e.Receiver != nil {
			if err := a.visitExpr(e.Receiver, scope); err != nil {
				return err
			}
			field, ok := e.Receiver.Type().Field(e.Name)
			if !ok {
				return errors.Undefined(errors.CategorySemantic, errors.CodeUndefinedField,
					"field", e.Receiver.Type().Name()+"."+e.Name, e.NameOffset)
			}
			e.SetVariable(field)
			e.SetType(field.Type)
			return nil
		}
		v, ok := scope.LookupVariable(e.Name)
		if !ok {
			return errors.Undefined(errors.CategorySemantic, errors.CodeUndefinedVariable, "variable", e.Name, e.NameOffset)
		}
		e.SetVariable(v)
		e.SetType(v.Type)
		return nil

	case *ast.CallExpr:
		return a.visitCall(e, scope)

	default:
		panic(fmt.Sprintf("analyzer: unexpected expression %T", expr))
	}
}

func visitLiteral(e *ast.LiteralExpr) error {
	switch v := e.Value.(type) {
	case nil:
		e.SetType(environment.Nil)
	case bool:
		e.SetType(environment.Boolean)
	case rune:
		e.SetType(environment.Character)
	case string:
		e.SetType(environment.String)
	case *big.Int:
		if v.BitLen() > 32 {
			return errors.Semantic(errors.CodeLiteralOutOfRange,
				fmt.Sprintf("the integer literal %s does not fit in 32 bits", v), e.Offset,
				map[string]interface{}{"literal": v.String()})
		}
		e.SetType(environment.Integer)
	case decimal.Decimal:
		if f, _ := v.Float64(); math.IsInf(f, 0) {
			return errors.Semantic(errors.CodeLiteralOutOfRange,
				fmt.Sprintf("the decimal literal %s is out of range", v), e.Offset,
				map[string]interface{}{"literal": v.String()})
		}
		e.SetType(environment.Decimal)
	default:
		panic(fmt.Sprintf("analyzer: unexpected literal %T", e.Value))
	}
	return nil
}

func (a *Analyzer) visitBinary(e *ast.BinaryExpr, scope *environment.Scope) error {
	if err := a.visitExpr(e.Left, scope); err != nil {
		return err
	}
	if err := a.visitExpr(e.Right, scope); err != nil {
		return err
	}
	left, right := e.Left.Type(), e.Right.Type()

	switch e.Operator {
	case "AND", "OR":
		if err := require(environment.Boolean, left, e.Left.Pos()); err != nil {
			return err
		}
		if err := require(environment.Boolean, right, e.Right.Pos()); err != nil {
			return err
		}
		e.SetType(environment.Boolean)

	case "<", "<=", ">", ">=", "==", "!=":
		if err := require(environment.Comparable, left, e.Left.Pos()); err != nil {
			return err
		}
		if err := require(environment.Comparable, right, e.Right.Pos()); err != nil {
			return err
		}
		if left != right {
			return errors.TypeMismatch(errors.CategorySemantic, left.Name(), right.Name(), e.OperatorOffset)
		}
		e.SetType(environment.Boolean)

	case "+", "-", "*", "/":
		if e.Operator == "+" && (left == environment.String || right == environment.String) {
			e.SetType(environment.String)
			return nil
		}
		if left != environment.Integer && left != environment.Decimal {
			return errors.TypeMismatch(errors.CategorySemantic, "Integer or Decimal", left.Name(), e.Left.Pos())
		}
		if right != left {
			return errors.TypeMismatch(errors.CategorySemantic, left.Name(), right.Name(), e.OperatorOffset)
		}
		e.SetType(left)

	default:
		return errors.Semantic(errors.CodeTypeMismatch,
			fmt.Sprintf("unknown binary operator %s", e.Operator), e.OperatorOffset, nil)
	}
	return nil
}

func (a *Analyzer) visitCall(e *ast.CallExpr, scope *environment.Scope) error {
	for _, arg := range e.Arguments {
		if err := a.visitExpr(arg, scope); err != nil {
			return err
		}
	}

	var (
		fn    *environment.Function
		first int // index of the first explicit argument in ParameterTypes
	)
	if e.Receiver != nil {
		if err := a.visitExpr(e.Receiver, scope); err != nil {
			return err
		}
		m, ok := e.Receiver.Type().Method(e.Name, len(e.Arguments))
		if !ok {
			return errors.Undefined(errors.CategorySemantic, errors.CodeUndefinedMethod, "method",
				fmt.Sprintf("%s.%s/%d", e.Receiver.Type().Name(), e.Name, len(e.Arguments)), e.NameOffset)
		}
		fn, first = m, 1
	} else {
		f, ok := scope.LookupFunction(e.Name, len(e.Arguments))
		if !ok {
			return errors.Undefined(errors.CategorySemantic, errors.CodeUndefinedFunction, "function",
				fmt.Sprintf("%s/%d", e.Name, len(e.Arguments)), e.NameOffset)
		}
		fn = f
	}

	for i, arg := range e.Arguments {
		if first+i >= len(fn.ParameterTypes) {
			break
		}
		if err := require(fn.ParameterTypes[first+i], arg.Type(), arg.Pos()); err != nil {
			return err
		}
	}

	returns := fn.ReturnType
	if returns == nil {
		returns = environment.Any
	}
	e.SetFunction(fn)
	e.SetType(returns)
	return nil
}

// ===== Helpers =====

// typeNamePos prefers the recorded type name offset; nodes built without
// one report at the declaration itself.
func typeNamePos(typeName, declaration int) int {
	if typeName > declaration {
		return typeName
	}
	return declaration
}

func resolveType(name string, offset int) (*environment.Type, error) {
	typ, ok := environment.LookupType(name)
	if !ok {
		return nil, errors.Semantic(errors.CodeUnknownType,
			fmt.Sprintf("the type %s is not defined", name), offset,
			map[string]interface{}{"name": name})
	}
	return typ, nil
}

func require(target, value *environment.Type, offset int) error {
	if err := environment.RequireAssignable(target, value); err != nil {
		return errors.WithOffset(err, offset)
	}
	return nil
}

func redefinition(err error, kind, name string, offset int) error {
	if !stderrors.Is(err, environment.ErrRedefinition) {
		return err
	}
	return errors.Semantic(errors.CodeRedefinition,
		fmt.Sprintf("the %s %s is already defined in this scope", kind, name), offset,
		map[string]interface{}{"name": name})
}
