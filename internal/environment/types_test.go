package environment

import (
	"testing"

	"github.com/plc-lang/plc/internal/errors"
)

var allTypes = []*Type{Any, Nil, Comparable, Boolean, Integer, Decimal, Character, String, IntegerIterable}

func TestRequireAssignableReflexive(t *testing.T) {
	for _, typ := range allTypes {
		if err := RequireAssignable(typ, typ); err != nil {
			t.Errorf("RequireAssignable(%s, %s) = %v, want nil", typ, typ, err)
		}
	}
}

func TestRequireAssignableAny(t *testing.T) {
	for _, typ := range allTypes {
		if err := RequireAssignable(Any, typ); err != nil {
			t.Errorf("RequireAssignable(Any, %s) = %v, want nil", typ, err)
		}
	}
}

func TestRequireAssignableComparable(t *testing.T) {
	comparable := map[*Type]bool{
		Integer:    true,
		Decimal:    true,
		Character:  true,
		String:     true,
		Comparable: true, // reflexive
	}
	for _, typ := range allTypes {
		err := RequireAssignable(Comparable, typ)
		if comparable[typ] && err != nil {
			t.Errorf("RequireAssignable(Comparable, %s) = %v, want nil", typ, err)
		}
		if !comparable[typ] && err == nil {
			t.Errorf("RequireAssignable(Comparable, %s) succeeded, want error", typ)
		}
	}
}

func TestRequireAssignableMismatch(t *testing.T) {
	tests := []struct {
		target *Type
		value  *Type
	}{
		{Integer, Decimal},
		{String, Character},
		{Boolean, Any},
		{Integer, Comparable},
		{Nil, Integer},
		{IntegerIterable, Integer},
	}

	for _, tt := range tests {
		err := RequireAssignable(tt.target, tt.value)
		if err == nil {
			t.Errorf("RequireAssignable(%s, %s) succeeded, want error", tt.target, tt.value)
			continue
		}
		if errors.CodeOf(err) != errors.CodeTypeMismatch {
			t.Errorf("code = %s, want TYPE_MISMATCH", errors.CodeOf(err))
		}
		if errors.CategoryOf(err) != errors.CategorySemantic {
			t.Errorf("category = %s, want SEMANTIC", errors.CategoryOf(err))
		}
	}
}

func TestLookupType(t *testing.T) {
	for _, typ := range allTypes {
		got, ok := LookupType(typ.Name())
		if !ok || got != typ {
			t.Errorf("LookupType(%q) = %v, %v", typ.Name(), got, ok)
		}
	}
	if _, ok := LookupType("integer"); ok {
		t.Error("type names are case sensitive")
	}
}

func TestBuiltinTypeTables(t *testing.T) {
	for _, typ := range allTypes {
		if _, ok := typ.Field("length"); ok {
			t.Errorf("%s should have an empty field table", typ)
		}
	}

	m, ok := String.Method("charAt", 1)
	if !ok {
		t.Fatal("String.charAt/1 not found")
	}
	if len(m.ParameterTypes) != 2 || m.ParameterTypes[0] != String || m.ParameterTypes[1] != Integer {
		t.Errorf("charAt parameter types = %v, want [String Integer]", m.ParameterTypes)
	}
	if m.ReturnType != Character {
		t.Errorf("charAt return type = %s, want Character", m.ReturnType)
	}
	if _, ok := String.Method("charAt", 0); ok {
		t.Error("methods are keyed by arity")
	}
	if _, ok := Any.Method("toString", 0); ok {
		t.Error("Any has no methods")
	}
}
