package interpreter

import (
	"context"
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/plc-lang/plc/internal/ast"
	"github.com/plc-lang/plc/internal/environment"
	"github.com/plc-lang/plc/internal/errors"
)

func (in *Interpreter) evalBinary(ctx context.Context, e *ast.BinaryExpr, scope *environment.Scope) (environment.Value, error) {
	switch e.Operator {
	case "AND", "OR":
		left, err := in.evalBoolean(ctx, e.Left, scope)
		if err != nil {
			return nil, err
		}
		// short circuit
		if (e.Operator == "AND") != left {
			return environment.Bool(left), nil
		}
		right, err := in.evalBoolean(ctx, e.Right, scope)
		if err != nil {
			return nil, err
		}
		return environment.Bool(right), nil
	}

	left, err := in.eval(ctx, e.Left, scope)
	if err != nil {
		return nil, err
	}
	right, err := in.eval(ctx, e.Right, scope)
	if err != nil {
		return nil, err
	}

	switch e.Operator {
	case "==":
		return environment.Bool(environment.Equal(left, right)), nil
	case "!=":
		return environment.Bool(!environment.Equal(left, right)), nil
	case "<", "<=", ">", ">=":
		cmp, err := environment.Compare(left, right)
		if err != nil {
			return nil, errors.WithOffset(err, e.OperatorOffset)
		}
		return environment.Bool(compareResult(e.Operator, cmp)), nil
	case "+":
		if isString(left) || isString(right) {
			return environment.NewPrimitive(left.String() + right.String()), nil
		}
		return arithmetic(e, left, right)
	case "-", "*", "/":
		return arithmetic(e, left, right)
	default:
		return nil, errors.Runtime(errors.CodeTypeMismatch, "unknown binary operator "+e.Operator, e.OperatorOffset, nil)
	}
}

func compareResult(op string, cmp int) bool {
	switch op {
	case "<":
		return cmp < 0
	case "<=":
		return cmp <= 0
	case ">":
		return cmp > 0
	default:
		return cmp >= 0
	}
}

func isString(v environment.Value) bool {
	_, ok := environment.PayloadOf[string](v)
	return ok
}

// arithmetic applies + - * / to two Integers or two Decimals
func arithmetic(e *ast.BinaryExpr, left, right environment.Value) (environment.Value, error) {
	if x, ok := environment.PayloadOf[*big.Int](left); ok {
		y, ok := environment.PayloadOf[*big.Int](right)
		if !ok {
			return nil, errors.TypeMismatch(errors.CategoryRuntime,
				environment.Integer.Name(), environment.KindName(right), e.OperatorOffset)
		}
		return integerOp(e, x, y)
	}
	if x, ok := environment.PayloadOf[decimal.Decimal](left); ok {
		y, ok := environment.PayloadOf[decimal.Decimal](right)
		if !ok {
			return nil, errors.TypeMismatch(errors.CategoryRuntime,
				environment.Decimal.Name(), environment.KindName(right), e.OperatorOffset)
		}
		return decimalOp(e, x, y)
	}
	return nil, errors.TypeMismatch(errors.CategoryRuntime,
		"Integer or Decimal", environment.KindName(left), e.Left.Pos())
}

func integerOp(e *ast.BinaryExpr, x, y *big.Int) (environment.Value, error) {
	z := new(big.Int)
	switch e.Operator {
	case "+":
		z.Add(x, y)
	case "-":
		z.Sub(x, y)
	case "*":
		z.Mul(x, y)
	case "/":
		if y.Sign() == 0 {
			return nil, errors.DivisionByZero(e.OperatorOffset)
		}
		z.Quo(x, y)
	}
	return environment.NewPrimitive(z), nil
}

func decimalOp(e *ast.BinaryExpr, x, y decimal.Decimal) (environment.Value, error) {
	switch e.Operator {
	case "+":
		return environment.NewPrimitive(x.Add(y)), nil
	case "-":
		return environment.NewPrimitive(x.Sub(y)), nil
	case "*":
		return environment.NewPrimitive(x.Mul(y)), nil
	default:
		if y.IsZero() {
			return nil, errors.DivisionByZero(e.OperatorOffset)
		}
		return environment.NewPrimitive(DivideHalfEven(x, y)), nil
	}
}

// DivideHalfEven divides x by y keeping the scale of x and rounding the last
// digit half to even. y must not be zero.
func DivideHalfEven(x, y decimal.Decimal) decimal.Decimal {
	scale := -x.Exponent()
	if scale < 0 {
		scale = 0
	}

	q, r := x.QuoRem(y, scale)
	if r.IsZero() {
		return q.Round(scale)
	}

	unit := decimal.New(1, -scale)
	twice := r.Abs().Add(r.Abs())
	cmp := twice.Cmp(y.Abs().Mul(unit))
	odd := q.Shift(scale).BigInt().Bit(0) == 1
	if cmp > 0 || (cmp == 0 && odd) {
		if x.Sign()*y.Sign() < 0 {
			q = q.Sub(unit)
		} else {
			q = q.Add(unit)
		}
	}
	return q.Round(scale)
}
