package environment

import (
	stderrors "errors"
	"fmt"
)

// ErrRedefinition is returned when a name is defined twice in one frame
var ErrRedefinition = stderrors.New("already defined in this scope")

type functionKey struct {
	name  string
	arity int
}

// Implementation is the native body of a Function. For methods args[0] is
// the receiver.
type Implementation func(args []Value) (Value, error)

// Variable is a named, typed value cell. Every closure that captured the
// scope holding a Variable shares the same *Variable.
type Variable struct {
	Name    string
	JVMName string
	Type    *Type
	value   Value
}

// NewVariable creates a variable cell
func NewVariable(name string, typ *Type, value Value) *Variable {
	if value == nil {
		value = NilValue
	}
	return &Variable{Name: name, JVMName: name, Type: typ, value: value}
}

// Value returns the current contents of the cell
func (v *Variable) Value() Value { return v.value }

// SetValue mutates the cell in place
func (v *Variable) SetValue(value Value) { v.value = value }

// Function is a callable signature plus an optional implementation. The
// analyzer defines functions without implementations; the interpreter defines
// them without types.
type Function struct {
	Name           string
	JVMName        string
	ParameterTypes []*Type
	ReturnType     *Type
	Arity          int

	impl Implementation
}

// NewFunction creates a typed function. Arity is the parameter count.
func NewFunction(name, jvmName string, params []*Type, returns *Type, impl Implementation) *Function {
	return &Function{
		Name:           name,
		JVMName:        jvmName,
		ParameterTypes: params,
		ReturnType:     returns,
		Arity:          len(params),
		impl:           impl,
	}
}

// NewNativeFunction creates an untyped function of the given arity
func NewNativeFunction(name string, arity int, impl Implementation) *Function {
	return &Function{Name: name, JVMName: name, Arity: arity, impl: impl}
}

// Invoke calls the implementation
func (f *Function) Invoke(args []Value) (Value, error) {
	if f.impl == nil {
		return nil, fmt.Errorf("function %s/%d has no implementation", f.Name, f.Arity)
	}
	return f.impl(args)
}

// Scope is one frame of a lexical environment. Variables and functions live
// in separate namespaces; lookups walk the parent chain.
type Scope struct {
	parent    *Scope
	variables map[string]*Variable
	functions map[functionKey]*Function
}

// NewScope creates a frame whose parent may be nil
func NewScope(parent *Scope) *Scope {
	return &Scope{
		parent:    parent,
		variables: make(map[string]*Variable),
		functions: make(map[functionKey]*Function),
	}
}

// Parent returns the enclosing frame
func (s *Scope) Parent() *Scope { return s.parent }

// Child creates a new frame nested in s
func (s *Scope) Child() *Scope { return NewScope(s) }

// DefineVariable creates and binds a variable in this frame
func (s *Scope) DefineVariable(name string, typ *Type, value Value) (*Variable, error) {
	if _, ok := s.variables[name]; ok {
		return nil, fmt.Errorf("variable %s: %w", name, ErrRedefinition)
	}
	v := NewVariable(name, typ, value)
	s.variables[name] = v
	return v, nil
}

// LookupVariable finds the nearest variable with the given name
func (s *Scope) LookupVariable(name string) (*Variable, bool) {
	for scope := s; scope != nil; scope = scope.parent {
		if v, ok := scope.variables[name]; ok {
			return v, true
		}
	}
	return nil, false
}

// DefineFunction binds f under (name, arity) in this frame
func (s *Scope) DefineFunction(f *Function) error {
	key := functionKey{f.Name, f.Arity}
	if _, ok := s.functions[key]; ok {
		return fmt.Errorf("function %s/%d: %w", f.Name, f.Arity, ErrRedefinition)
	}
	s.functions[key] = f
	return nil
}

// LookupFunction finds the nearest function with the given name and arity
func (s *Scope) LookupFunction(name string, arity int) (*Function, bool) {
	key := functionKey{name, arity}
	for scope := s; scope != nil; scope = scope.parent {
		if f, ok := scope.functions[key]; ok {
			return f, true
		}
	}
	return nil, false
}
