package environment

import (
	stderrors "errors"
	"testing"
)

func TestScopeLookupWalksParents(t *testing.T) {
	root := NewScope(nil)
	if _, err := root.DefineVariable("x", Integer, NewPrimitive(1)); err != nil {
		t.Fatalf("DefineVariable: %v", err)
	}

	child := root.Child().Child()
	v, ok := child.LookupVariable("x")
	if !ok {
		t.Fatal("x should be visible from a nested scope")
	}
	if v.Type != Integer {
		t.Errorf("x type = %s, want Integer", v.Type)
	}

	if _, ok := root.LookupVariable("y"); ok {
		t.Error("y should not resolve")
	}
	if child.Parent().Parent() != root {
		t.Error("Parent chain broken")
	}
}

func TestScopeShadowingAndRedefinition(t *testing.T) {
	root := NewScope(nil)
	outer, _ := root.DefineVariable("x", Integer, NewPrimitive(1))

	if _, err := root.DefineVariable("x", String, NewPrimitive("a")); !stderrors.Is(err, ErrRedefinition) {
		t.Errorf("redefinition in the same frame: err = %v, want ErrRedefinition", err)
	}

	child := root.Child()
	inner, err := child.DefineVariable("x", String, NewPrimitive("a"))
	if err != nil {
		t.Fatalf("shadowing in a child frame should succeed: %v", err)
	}
	if got, _ := child.LookupVariable("x"); got != inner {
		t.Error("child lookup should find the shadowing variable")
	}
	if got, _ := root.LookupVariable("x"); got != outer {
		t.Error("root lookup should still find the outer variable")
	}
}

func TestScopeFunctionsKeyedByArity(t *testing.T) {
	s := NewScope(nil)
	one := NewNativeFunction("f", 1, nil)
	two := NewNativeFunction("f", 2, nil)
	if err := s.DefineFunction(one); err != nil {
		t.Fatal(err)
	}
	if err := s.DefineFunction(two); err != nil {
		t.Fatalf("overloading by arity should be allowed: %v", err)
	}
	if err := s.DefineFunction(NewNativeFunction("f", 1, nil)); !stderrors.Is(err, ErrRedefinition) {
		t.Errorf("err = %v, want ErrRedefinition", err)
	}

	child := s.Child()
	if got, _ := child.LookupFunction("f", 2); got != two {
		t.Error("LookupFunction(f, 2) returned the wrong overload")
	}
	if _, ok := child.LookupFunction("f", 3); ok {
		t.Error("LookupFunction(f, 3) should fail")
	}
	if _, ok := child.LookupVariable("f"); ok {
		t.Error("functions and variables are separate namespaces")
	}
}

func TestVariableAliasing(t *testing.T) {
	s := NewScope(nil)
	v, _ := s.DefineVariable("counter", Integer, NewPrimitive(0))
	alias, _ := s.Child().LookupVariable("counter")

	alias.SetValue(NewPrimitive(5))
	if !Equal(v.Value(), NewPrimitive(5)) {
		t.Errorf("mutation through an alias should be visible, got %s", v.Value())
	}
}

func TestFunctionInvokeWithoutImplementation(t *testing.T) {
	f := NewFunction("main", "main", nil, Integer, nil)
	if _, err := f.Invoke(nil); err == nil {
		t.Error("invoking a signature-only function should fail")
	}
}
