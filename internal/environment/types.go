// Package environment holds the binding model shared by the analyzer and the
// interpreter: the fixed set of built-in types, variables, functions, scopes
// and runtime values.
package environment

import (
	"github.com/plc-lang/plc/internal/errors"
)

// Type is one of the fixed built-in types. Types are compared by identity.
type Type struct {
	name    string
	jvmName string
	fields  map[string]*Variable
	methods map[functionKey]*Function
}

func newType(name, jvmName string) *Type {
	return &Type{
		name:    name,
		jvmName: jvmName,
		fields:  make(map[string]*Variable),
		methods: make(map[functionKey]*Function),
	}
}

// Built-in types.
var (
	Any             = newType("Any", "Object")
	Nil             = newType("Nil", "Void")
	Comparable      = newType("Comparable", "Comparable")
	Boolean         = newType("Boolean", "boolean")
	Integer         = newType("Integer", "int")
	Decimal         = newType("Decimal", "double")
	Character       = newType("Character", "char")
	String          = newType("String", "String")
	IntegerIterable = newType("IntegerIterable", "Iterable<Integer>")
)

var typesByName = map[string]*Type{
	Any.name:             Any,
	Nil.name:             Nil,
	Comparable.name:      Comparable,
	Boolean.name:         Boolean,
	Integer.name:         Integer,
	Decimal.name:         Decimal,
	Character.name:       Character,
	String.name:          String,
	IntegerIterable.name: IntegerIterable,
}

// LookupType resolves a type name written in source
func LookupType(name string) (*Type, bool) {
	t, ok := typesByName[name]
	return t, ok
}

// Name returns the source-level name of the type
func (t *Type) Name() string { return t.name }

// JVMName returns the name used by the Java generator
func (t *Type) JVMName() string { return t.jvmName }

// String implements fmt.Stringer
func (t *Type) String() string { return t.name }

// Field resolves a field by name. Built-in types have no fields.
func (t *Type) Field(name string) (*Variable, bool) {
	v, ok := t.fields[name]
	return v, ok
}

// Method resolves a method by name and argument count. The receiver is not
// counted in arity but occupies ParameterTypes[0].
func (t *Type) Method(name string, arity int) (*Function, bool) {
	f, ok := t.methods[functionKey{name, arity}]
	return f, ok
}

func (t *Type) defineMethod(name string, params []*Type, returns *Type, impl Implementation) {
	f := &Function{
		Name:           name,
		JVMName:        name,
		ParameterTypes: append([]*Type{t}, params...),
		ReturnType:     returns,
		Arity:          len(params),
		impl:           impl,
	}
	t.methods[functionKey{name, f.Arity}] = f
}

// IsComparable reports whether t satisfies the Comparable supertype
func IsComparable(t *Type) bool {
	switch t {
	case Integer, Decimal, Character, String:
		return true
	}
	return false
}

// RequireAssignable succeeds if a value of static type value may be stored
// where target is expected: identical types, target Any, or target Comparable
// with a comparable value type.
func RequireAssignable(target, value *Type) error {
	if target == value || target == Any {
		return nil
	}
	if target == Comparable && IsComparable(value) {
		return nil
	}
	return errors.TypeMismatch(errors.CategorySemantic, target.Name(), value.Name(), errors.NoOffset)
}
