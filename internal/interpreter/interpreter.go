// Package interpreter evaluates a parsed program by walking its syntax tree.
// It does not depend on analyzer annotations: every check is repeated
// dynamically against runtime values.
package interpreter

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"

	"github.com/plc-lang/plc/internal/ast"
	"github.com/plc-lang/plc/internal/environment"
	"github.com/plc-lang/plc/internal/errors"
)

// DefaultMaxDepth bounds nested method calls
const DefaultMaxDepth = 4096

// completion is the outcome of executing a statement: either normal, or
// returning a value to the nearest call boundary.
type completion struct {
	returning bool
	value     environment.Value
}

var normal = completion{}

func returning(v environment.Value) completion {
	return completion{returning: true, value: v}
}

// Interpreter runs one program. An Interpreter is single-use and not safe
// for concurrent use.
type Interpreter struct {
	global   *environment.Scope
	depth    int
	maxDepth int
}

// New creates an interpreter whose global frame is a child of parent. The
// global frame gains a print/1 writing to stdout unless parent provides one.
func New(parent *environment.Scope) *Interpreter {
	global := environment.NewScope(parent)
	if _, ok := global.LookupFunction("print", 1); !ok {
		_ = global.DefineFunction(environment.PrintFunction(os.Stdout))
	}
	return &Interpreter{global: global, maxDepth: DefaultMaxDepth}
}

// SetMaxDepth changes the call depth limit; n <= 0 restores the default
func (in *Interpreter) SetMaxDepth(n int) {
	if n <= 0 {
		n = DefaultMaxDepth
	}
	in.maxDepth = n
}

// Scope returns the global frame
func (in *Interpreter) Scope() *environment.Scope { return in.global }

// Run defines every field and method in the global frame, then invokes
// main() and returns its result. Cancelling ctx stops the program at the
// next loop iteration or call.
func (in *Interpreter) Run(ctx context.Context, src *ast.Source) (environment.Value, error) {
	for _, field := range src.Fields {
		value := environment.Value(environment.NilValue)
		if field.Value != nil {
			v, err := in.eval(ctx, field.Value, in.global)
			if err != nil {
				return nil, err
			}
			value = v
		}
		if _, err := in.global.DefineVariable(field.Name, environment.Any, value); err != nil {
			return nil, redefinition(err, field.Name, field.Offset)
		}
	}
	for _, method := range src.Methods {
		if err := in.defineMethod(ctx, method, in.global); err != nil {
			return nil, err
		}
	}

	entry, ok := in.global.LookupFunction("main", 0)
	if !ok {
		return nil, errors.Undefined(errors.CategoryRuntime, errors.CodeUndefinedFunction, "function", "main/0", src.Pos())
	}
	return entry.Invoke(nil)
}

// defineMethod binds a closure over scope, the frame the method is declared
// in. Each call runs in a fresh child of that frame.
func (in *Interpreter) defineMethod(ctx context.Context, method *ast.Method, scope *environment.Scope) error {
	closure := scope
	impl := func(args []environment.Value) (environment.Value, error) {
		if err := ctx.Err(); err != nil {
			return nil, cancelled(err, method.Offset)
		}
		if in.depth >= in.maxDepth {
			return nil, errors.Runtime(errors.CodeStackOverflow,
				fmt.Sprintf("call depth exceeded %d in %s", in.maxDepth, method.Name), method.Offset, nil)
		}
		in.depth++
		defer func() { in.depth-- }()

		frame := closure.Child()
		for i, name := range method.Parameters {
			if _, err := frame.DefineVariable(name, environment.Any, args[i]); err != nil {
				return nil, redefinition(err, name, method.Offset)
			}
		}
		c, err := in.execBlock(ctx, method.Statements, frame)
		if err != nil {
			return nil, err
		}
		if c.returning {
			return c.value, nil
		}
		return environment.NilValue, nil
	}

	fn := environment.NewNativeFunction(method.Name, len(method.Parameters), impl)
	if err := scope.DefineFunction(fn); err != nil {
		return redefinition(err, method.Name, method.Offset)
	}
	return nil
}

// ===== Statements =====

func (in *Interpreter) execBlock(ctx context.Context, stmts []ast.Stmt, scope *environment.Scope) (completion, error) {
	for _, stmt := range stmts {
		c, err := in.exec(ctx, stmt, scope)
		if err != nil || c.returning {
			return c, err
		}
	}
	return normal, nil
}

func (in *Interpreter) exec(ctx context.Context, stmt ast.Stmt, scope *environment.Scope) (completion, error) {
	switch s := stmt.(type) {
	case *ast.ExpressionStmt:
		_, err := in.eval(ctx, s.Expression, scope)
		return normal, err

	case *ast.DeclarationStmt:
		value := environment.Value(environment.NilValue)
		if s.Value != nil {
			v, err := in.eval(ctx, s.Value, scope)
			if err != nil {
				return normal, err
			}
			value = v
		}
		if _, err := scope.DefineVariable(s.Name, environment.Any, value); err != nil {
			return normal, redefinition(err, s.Name, s.Offset)
		}
		return normal, nil

	case *ast.AssignmentStmt:
		return normal, in.assign(ctx, s, scope)

	case *ast.IfStmt:
		cond, err := in.evalBoolean(ctx, s.Condition, scope)
		if err != nil {
			return normal, err
		}
		if cond {
			return in.execBlock(ctx, s.Then, scope.Child())
		}
		return in.execBlock(ctx, s.Else, scope.Child())

	case *ast.ForStmt:
		return in.execFor(ctx, s, scope)

	case *ast.WhileStmt:
		for {
			if err := ctx.Err(); err != nil {
				return normal, cancelled(err, s.Offset)
			}
			cond, err := in.evalBoolean(ctx, s.Condition, scope)
			if err != nil || !cond {
				return normal, err
			}
			c, err := in.execBlock(ctx, s.Statements, scope.Child())
			if err != nil || c.returning {
				return c, err
			}
		}

	case *ast.ReturnStmt:
		v, err := in.eval(ctx, s.Value, scope)
		if err != nil {
			return normal, err
		}
		return returning(v), nil

	default:
		panic(fmt.Sprintf("interpreter: unexpected statement %T", stmt))
	}
}

func (in *Interpreter) assign(ctx context.Context, s *ast.AssignmentStmt, scope *environment.Scope) error {
	target, ok := s.Receiver.(*ast.AccessExpr)
	if !ok {
		return errors.Runtime(errors.CodeInvalidAssignment,
			"the left side of an assignment must be a variable or field", s.Offset, nil)
	}

	if target.Receiver != nil {
		receiver, err := in.eval(ctx, target.Receiver, scope)
		if err != nil {
			return err
		}
		value, err := in.eval(ctx, s.Value, scope)
		if err != nil {
			return err
		}
		return errors.WithOffset(environment.SetField(receiver, target.Name, value), target.NameOffset)
	}

	v, ok := scope.LookupVariable(target.Name)
	if !ok {
		return errors.Undefined(errors.CategoryRuntime, errors.CodeUndefinedVariable, "variable", target.Name, target.NameOffset)
	}
	value, err := in.eval(ctx, s.Value, scope)
	if err != nil {
		return err
	}
	v.SetValue(value)
	return nil
}

// execFor binds a fresh loop Variable in a fresh frame per iteration so
// closures never share the loop binding.
func (in *Interpreter) execFor(ctx context.Context, s *ast.ForStmt, scope *environment.Scope) (completion, error) {
	v, err := in.eval(ctx, s.Value, scope)
	if err != nil {
		return normal, err
	}
	iterable, ok := environment.PayloadOf[environment.Iterable](v)
	if !ok {
		return normal, errors.TypeMismatch(errors.CategoryRuntime,
			environment.IntegerIterable.Name(), environment.KindName(v), s.Value.Pos())
	}

	for item := range iterable.All() {
		if err := ctx.Err(); err != nil {
			return normal, cancelled(err, s.Offset)
		}
		frame := scope.Child()
		if _, err := frame.DefineVariable(s.Name, environment.Integer, item); err != nil {
			return normal, redefinition(err, s.Name, s.Offset)
		}
		c, err := in.execBlock(ctx, s.Statements, frame)
		if err != nil || c.returning {
			return c, err
		}
	}
	return normal, nil
}

// ===== Expressions =====

func (in *Interpreter) eval(ctx context.Context, expr ast.Expr, scope *environment.Scope) (environment.Value, error) {
	switch e := expr.(type) {
	case *ast.LiteralExpr:
		return environment.NewPrimitive(e.Value), nil

	case *ast.GroupExpr:
		return in.eval(ctx, e.Expression, scope)

	case *ast.BinaryExpr:
		return in.evalBinary(ctx, e, scope)

	case *ast.AccessExpr:
		if e.Receiver != nil {
			receiver, err := in.eval(ctx, e.Receiver, scope)
			if err != nil {
				return nil, err
			}
			v, err := environment.GetField(receiver, e.Name)
			return v, errors.WithOffset(err, e.NameOffset)
		}
		v, ok := scope.LookupVariable(e.Name)
		if !ok {
			return nil, errors.Undefined(errors.CategoryRuntime, errors.CodeUndefinedVariable, "variable", e.Name, e.NameOffset)
		}
		return v.Value(), nil

	case *ast.CallExpr:
		return in.evalCall(ctx, e, scope)

	default:
		panic(fmt.Sprintf("interpreter: unexpected expression %T", expr))
	}
}

func (in *Interpreter) evalCall(ctx context.Context, e *ast.CallExpr, scope *environment.Scope) (environment.Value, error) {
	args := make([]environment.Value, len(e.Arguments))
	for i, arg := range e.Arguments {
		v, err := in.eval(ctx, arg, scope)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}

	if e.Receiver != nil {
		receiver, err := in.eval(ctx, e.Receiver, scope)
		if err != nil {
			return nil, err
		}
		v, err := environment.CallMethod(receiver, e.Name, args)
		return v, errors.WithOffset(err, e.NameOffset)
	}

	fn, ok := scope.LookupFunction(e.Name, len(args))
	if !ok {
		return nil, errors.Undefined(errors.CategoryRuntime, errors.CodeUndefinedFunction, "function",
			fmt.Sprintf("%s/%d", e.Name, len(args)), e.NameOffset)
	}
	v, err := fn.Invoke(args)
	return v, errors.WithOffset(err, e.NameOffset)
}

func (in *Interpreter) evalBoolean(ctx context.Context, expr ast.Expr, scope *environment.Scope) (bool, error) {
	v, err := in.eval(ctx, expr, scope)
	if err != nil {
		return false, err
	}
	b, ok := environment.PayloadOf[bool](v)
	if !ok {
		return false, errors.TypeMismatch(errors.CategoryRuntime, environment.Boolean.Name(), environment.KindName(v), expr.Pos())
	}
	return b, nil
}

// ===== Helpers =====

func cancelled(cause error, offset int) error {
	return errors.Runtime(errors.CodeCancelled,
		fmt.Sprintf("execution cancelled: %v", cause), offset,
		map[string]interface{}{"cause": cause.Error()})
}

func redefinition(err error, name string, offset int) error {
	if !stderrors.Is(err, environment.ErrRedefinition) {
		return err
	}
	return errors.Runtime(errors.CodeRedefinition,
		fmt.Sprintf("%s is already defined in this scope", name), offset,
		map[string]interface{}{"name": name})
}
