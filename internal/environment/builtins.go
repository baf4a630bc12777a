package environment

import (
	"fmt"
	"io"
	"math/big"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/plc-lang/plc/internal/errors"
)

func init() {
	for _, t := range []*Type{Nil, Boolean, Integer, Decimal, Character, String, IntegerIterable} {
		t.defineMethod("toString", nil, String, func(args []Value) (Value, error) {
			return NewPrimitive(args[0].String()), nil
		})
	}

	String.defineMethod("length", nil, Integer, func(args []Value) (Value, error) {
		s := args[0].(Primitive).payload.(string)
		return NewPrimitive(utf8.RuneCountInString(s)), nil
	})
	String.defineMethod("charAt", []*Type{Integer}, Character, func(args []Value) (Value, error) {
		s := []rune(args[0].(Primitive).payload.(string))
		idx, err := requireInteger(args[1])
		if err != nil {
			return nil, err
		}
		if !idx.IsInt64() || idx.Int64() < 0 || idx.Int64() >= int64(len(s)) {
			return nil, errors.Runtime(errors.CodeIndexOutOfRange,
				fmt.Sprintf("index %s out of range for length %d", idx, len(s)),
				errors.NoOffset, map[string]interface{}{"index": idx.String(), "length": len(s)})
		}
		return NewPrimitive(s[idx.Int64()]), nil
	})
	String.defineMethod("contains", []*Type{String}, Boolean, func(args []Value) (Value, error) {
		s := args[0].(Primitive).payload.(string)
		sub, ok := PayloadOf[string](args[1])
		if !ok {
			return nil, errors.TypeMismatch(errors.CategoryRuntime, String.Name(), KindName(args[1]), errors.NoOffset)
		}
		return Bool(strings.Contains(s, sub)), nil
	})

	Integer.defineMethod("abs", nil, Integer, func(args []Value) (Value, error) {
		return NewPrimitive(new(big.Int).Abs(args[0].(Primitive).payload.(*big.Int))), nil
	})
	Decimal.defineMethod("abs", nil, Decimal, func(args []Value) (Value, error) {
		return NewPrimitive(args[0].(Primitive).payload.(decimal.Decimal).Abs()), nil
	})
}

// NewBuiltinScope is the bootstrap factory for the root scope handed to the
// analyzer and the interpreter. print writes to out (discarded when nil).
func NewBuiltinScope(out io.Writer) *Scope {
	if out == nil {
		out = io.Discard
	}
	s := NewScope(nil)
	_ = s.DefineFunction(PrintFunction(out))
	_ = s.DefineFunction(NewFunction("range", "range", []*Type{Integer, Integer}, IntegerIterable,
		func(args []Value) (Value, error) {
			start, err := requireInteger(args[0])
			if err != nil {
				return nil, err
			}
			end, err := requireInteger(args[1])
			if err != nil {
				return nil, err
			}
			return NewPrimitive(IntegerRange{Start: start, End: end}), nil
		}))
	return s
}

// PrintFunction returns print(Any) -> Nil writing one line per call to out
func PrintFunction(out io.Writer) *Function {
	return NewFunction("print", "System.out.println", []*Type{Any}, Nil, func(args []Value) (Value, error) {
		if _, err := fmt.Fprintln(out, args[0].String()); err != nil {
			return nil, err
		}
		return NilValue, nil
	})
}

func requireInteger(v Value) (*big.Int, error) {
	i, ok := PayloadOf[*big.Int](v)
	if !ok {
		return nil, errors.TypeMismatch(errors.CategoryRuntime, Integer.Name(), KindName(v), errors.NoOffset)
	}
	return i, nil
}

// PayloadOf extracts a primitive payload of type T
func PayloadOf[T any](v Value) (T, bool) {
	var zero T
	p, ok := v.(Primitive)
	if !ok {
		return zero, false
	}
	t, ok := p.payload.(T)
	return t, ok
}
