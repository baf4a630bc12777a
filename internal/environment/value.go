package environment

import (
	"fmt"
	"iter"
	"maps"
	"math/big"
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/plc-lang/plc/internal/errors"
)

// Value is a runtime value: either a Primitive wrapping a native payload or
// a Structured object with its own fields and methods.
type Value interface {
	String() string
	isValue()
}

// Iterable is a native payload that a FOR loop can walk
type Iterable interface {
	All() iter.Seq[Value]
}

// Primitive wraps one of: nil, bool, rune, string, *big.Int,
// decimal.Decimal or an Iterable.
type Primitive struct {
	payload any
}

func (Primitive) isValue() {}

// NilValue is the single Nil value
var NilValue = Primitive{}

// Boolean values
var (
	True  = Primitive{payload: true}
	False = Primitive{payload: false}
)

// NewPrimitive wraps a native payload, normalising integer kinds to *big.Int.
// It panics on an unsupported payload, which is a programming error.
func NewPrimitive(payload any) Primitive {
	switch p := payload.(type) {
	case nil, bool, rune, string, decimal.Decimal, Iterable:
		return Primitive{payload: p}
	case *big.Int:
		return Primitive{payload: new(big.Int).Set(p)}
	case int:
		return Primitive{payload: big.NewInt(int64(p))}
	case int64:
		return Primitive{payload: big.NewInt(p)}
	default:
		panic(fmt.Sprintf("environment: unsupported primitive payload %T", payload))
	}
}

// Bool returns the Boolean value for b
func Bool(b bool) Primitive {
	if b {
		return True
	}
	return False
}

// Payload returns the native payload
func (p Primitive) Payload() any { return p.payload }

// String renders the value the way print shows it
func (p Primitive) String() string {
	switch v := p.payload.(type) {
	case nil:
		return "NIL"
	case bool:
		if v {
			return "true"
		}
		return "false"
	case rune:
		return string(v)
	case string:
		return v
	case *big.Int:
		return v.String()
	case decimal.Decimal:
		return FormatDecimal(v)
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

// FormatDecimal prints d keeping its scale, so 1.50 stays 1.50
func FormatDecimal(d decimal.Decimal) string {
	if exp := d.Exponent(); exp < 0 {
		return d.StringFixed(-exp)
	}
	return d.String()
}

// IntegerRange is the half-open integer sequence produced by range()
type IntegerRange struct {
	Start *big.Int
	End   *big.Int
}

// All yields Start, Start+1, ..., End-1
func (r IntegerRange) All() iter.Seq[Value] {
	return func(yield func(Value) bool) {
		one := big.NewInt(1)
		for i := new(big.Int).Set(r.Start); i.Cmp(r.End) < 0; i.Add(i, one) {
			if !yield(NewPrimitive(i)) {
				return
			}
		}
	}
}

// String implements fmt.Stringer
func (r IntegerRange) String() string {
	return fmt.Sprintf("range(%s, %s)", r.Start, r.End)
}

// Structured is a host object exposing fields and methods by name
type Structured struct {
	typeName string
	fields   map[string]*Variable
	methods  map[functionKey]*Function
}

func (*Structured) isValue() {}

// NewStructured creates an empty object; typeName is used in messages
func NewStructured(typeName string) *Structured {
	return &Structured{
		typeName: typeName,
		fields:   make(map[string]*Variable),
		methods:  make(map[functionKey]*Function),
	}
}

// DefineField adds a field holding value
func (s *Structured) DefineField(name string, value Value) {
	s.fields[name] = NewVariable(name, Any, value)
}

// DefineMethod adds a method; arity excludes the receiver
func (s *Structured) DefineMethod(name string, arity int, impl Implementation) {
	s.methods[functionKey{name, arity}] = NewNativeFunction(name, arity, impl)
}

// String implements fmt.Stringer; field names are listed in sorted order
func (s *Structured) String() string {
	names := slices.Sorted(maps.Keys(s.fields))
	return fmt.Sprintf("%s{%s}", s.typeName, strings.Join(names, ", "))
}

// KindName names the runtime representation of v for error messages
func KindName(v Value) string {
	switch v := v.(type) {
	case Primitive:
		switch v.payload.(type) {
		case nil:
			return Nil.Name()
		case bool:
			return Boolean.Name()
		case rune:
			return Character.Name()
		case string:
			return String.Name()
		case *big.Int:
			return Integer.Name()
		case decimal.Decimal:
			return Decimal.Name()
		case Iterable:
			return IntegerIterable.Name()
		}
	case *Structured:
		return v.typeName
	}
	return fmt.Sprintf("%T", v)
}

// TypeOf returns the built-in type describing a primitive value, or Any for
// structured objects.
func TypeOf(v Value) *Type {
	if p, ok := v.(Primitive); ok {
		switch p.payload.(type) {
		case nil:
			return Nil
		case bool:
			return Boolean
		case rune:
			return Character
		case string:
			return String
		case *big.Int:
			return Integer
		case decimal.Decimal:
			return Decimal
		case Iterable:
			return IntegerIterable
		}
	}
	return Any
}

// GetField reads a field of a structured receiver. Primitives have no fields.
func GetField(receiver Value, name string) (Value, error) {
	v, err := lookupField(receiver, name)
	if err != nil {
		return nil, err
	}
	return v.Value(), nil
}

// SetField writes a field of a structured receiver
func SetField(receiver Value, name string, value Value) error {
	v, err := lookupField(receiver, name)
	if err != nil {
		return err
	}
	v.SetValue(value)
	return nil
}

func lookupField(receiver Value, name string) (*Variable, error) {
	if s, ok := receiver.(*Structured); ok {
		if v, ok := s.fields[name]; ok {
			return v, nil
		}
	}
	return nil, errors.Undefined(errors.CategoryRuntime, errors.CodeUndefinedField,
		"field", KindName(receiver)+"."+name, errors.NoOffset)
}

// CallMethod dispatches name/len(args) on the receiver's tag: primitives use
// their built-in type's method table, structured values their own.
func CallMethod(receiver Value, name string, args []Value) (Value, error) {
	var fn *Function
	switch r := receiver.(type) {
	case Primitive:
		fn, _ = TypeOf(r).Method(name, len(args))
	case *Structured:
		fn = r.methods[functionKey{name, len(args)}]
	}
	if fn == nil {
		return nil, errors.Undefined(errors.CategoryRuntime, errors.CodeUndefinedMethod,
			"method", fmt.Sprintf("%s.%s/%d", KindName(receiver), name, len(args)), errors.NoOffset)
	}
	return fn.Invoke(append([]Value{receiver}, args...))
}

// Equal reports value equality. Values of different representations are
// never equal; Decimals compare numerically; Structured values by identity.
func Equal(a, b Value) bool {
	pa, okA := a.(Primitive)
	pb, okB := b.(Primitive)
	if !okA || !okB {
		return a == b
	}
	switch x := pa.payload.(type) {
	case nil:
		return pb.payload == nil
	case *big.Int:
		y, ok := pb.payload.(*big.Int)
		return ok && x.Cmp(y) == 0
	case decimal.Decimal:
		y, ok := pb.payload.(decimal.Decimal)
		return ok && x.Equal(y)
	case IntegerRange:
		y, ok := pb.payload.(IntegerRange)
		return ok && x.Start.Cmp(y.Start) == 0 && x.End.Cmp(y.End) == 0
	case bool, rune, string:
		return pa.payload == pb.payload
	default:
		return false
	}
}

// Compare performs a three-way comparison of two comparable values with the
// same representation.
func Compare(a, b Value) (int, error) {
	pa, okA := a.(Primitive)
	pb, okB := b.(Primitive)
	if okA && okB {
		switch x := pa.payload.(type) {
		case *big.Int:
			if y, ok := pb.payload.(*big.Int); ok {
				return x.Cmp(y), nil
			}
		case decimal.Decimal:
			if y, ok := pb.payload.(decimal.Decimal); ok {
				return x.Cmp(y), nil
			}
		case rune:
			if y, ok := pb.payload.(rune); ok {
				return compareOrdered(x, y), nil
			}
		case string:
			if y, ok := pb.payload.(string); ok {
				return strings.Compare(x, y), nil
			}
		default:
			return 0, errors.TypeMismatch(errors.CategoryRuntime, Comparable.Name(), KindName(a), errors.NoOffset)
		}
	}
	if !okA {
		return 0, errors.TypeMismatch(errors.CategoryRuntime, Comparable.Name(), KindName(a), errors.NoOffset)
	}
	return 0, errors.TypeMismatch(errors.CategoryRuntime, KindName(a), KindName(b), errors.NoOffset)
}

func compareOrdered(x, y rune) int {
	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	}
	return 0
}
