package parser

import (
	"math/big"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/plc-lang/plc/internal/ast"
	"github.com/plc-lang/plc/internal/errors"
	"github.com/plc-lang/plc/internal/lexer"
)

func parse(t *testing.T, input string) (*ast.Source, error) {
	t.Helper()
	tokens, err := lexer.Lex(input)
	if err != nil {
		t.Fatalf("Lex(%q): %v", input, err)
	}
	return ParseSource(tokens)
}

func mustParse(t *testing.T, input string) *ast.Source {
	t.Helper()
	src, err := parse(t, input)
	if err != nil {
		t.Fatalf("ParseSource(%q): %v", input, err)
	}
	return src
}

// returnExpr parses `DEF main() DO RETURN <expr>; END` and returns the value
func returnExpr(t *testing.T, expr string) ast.Expr {
	t.Helper()
	src := mustParse(t, "DEF main() DO RETURN "+expr+"; END")
	ret, ok := src.Methods[0].Statements[0].(*ast.ReturnStmt)
	if !ok {
		t.Fatalf("expected a return statement, got %T", src.Methods[0].Statements[0])
	}
	return ret.Value
}

func TestParseScenarios(t *testing.T) {
	programs := []string{
		"LET x: Integer = 5; DEF main(): Integer DO RETURN x; END",
		"DEF main(): Integer DO RETURN 1 + 2; END",
		"DEF main(): Integer DO RETURN 1 + 1.0; END",
		"LET i: Integer = 0; DEF main(): Integer DO WHILE i < 3 DO i = i + 1; END RETURN i; END",
		"DEF main(): Integer DO RETURN 1 / 0; END",
		"",
	}
	for _, input := range programs {
		if _, err := parse(t, input); err != nil {
			t.Errorf("ParseSource(%q): %v", input, err)
		}
	}
}

func TestPrecedenceAndAssociativity(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"1 + 2 * 3", "[1 + [2 * 3]]"},
		{"1 * 2 + 3", "[[1 * 2] + 3]"},
		{"1 - 2 - 3", "[[1 - 2] - 3]"},
		{"8 / 4 / 2", "[[8 / 4] / 2]"},
		{"a < b == c", "[[a < b] == c]"},
		{"a <= b != c >= d", "[[[a <= b] != c] >= d]"},
		{"TRUE AND FALSE OR x", "[[TRUE AND FALSE] OR x]"},
		{"a OR b == c", "[a OR [b == c]]"},
		{"(1 + 2) * 3", "[([1 + 2]) * 3]"},
		{"5-1", "[5 - 1]"},
		{"x - -1", "[x - -1]"},
		{"obj.field.method(1, 2).x", "obj.field.method(1, 2).x"},
		{"f()", "f()"},
		{"f(a, g(b))", "f(a, g(b))"},
		{"s.length() + 1", "[s.length() + 1]"},
		{"NIL", "NIL"},
		{`"a\tb"`, `"a\tb"`},
		{`'\''`, `'\''`},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := returnExpr(t, tt.input).String(); got != tt.want {
				t.Errorf("parsed %q as %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}

func TestLiteralPayloads(t *testing.T) {
	if v := returnExpr(t, "2147483648").(*ast.LiteralExpr).Value.(*big.Int); v.Cmp(big.NewInt(2147483648)) != 0 {
		t.Errorf("integer literal = %s", v)
	}
	if v := returnExpr(t, "1.50").(*ast.LiteralExpr).Value.(decimal.Decimal); v.String() != "1.5" || v.Exponent() != -2 {
		t.Errorf("decimal literal = %s (exp %d), want scale 2", v, v.Exponent())
	}
	if v := returnExpr(t, `"a\\b\"c"`).(*ast.LiteralExpr).Value.(string); v != `a\b"c` {
		t.Errorf("string literal = %q", v)
	}
	if v := returnExpr(t, `'\n'`).(*ast.LiteralExpr).Value.(rune); v != '\n' {
		t.Errorf("character literal = %q", v)
	}
	if v := returnExpr(t, `'é'`).(*ast.LiteralExpr).Value.(rune); v != 'é' {
		t.Errorf("character literal = %q", v)
	}

	src := mustParse(t, "LET x: Integer = +5; LET y: Integer = -5;")
	if v := src.Fields[0].Value.(*ast.LiteralExpr).Value.(*big.Int); v.Int64() != 5 {
		t.Errorf("+5 parsed as %s", v)
	}
	if v := src.Fields[1].Value.(*ast.LiteralExpr).Value.(*big.Int); v.Int64() != -5 {
		t.Errorf("-5 parsed as %s", v)
	}
}

func TestDeclarations(t *testing.T) {
	src := mustParse(t, `
LET count: Integer;
LET name: String = "plc";
DEF f(a: Integer, b: String): Decimal DO END
DEF g() DO print(1); END`)

	if len(src.Fields) != 2 || len(src.Methods) != 2 {
		t.Fatalf("got %d fields and %d methods", len(src.Fields), len(src.Methods))
	}
	if f := src.Fields[0]; f.Name != "count" || f.TypeName != "Integer" || f.Value != nil {
		t.Errorf("field 0 = %s", f)
	}
	if f := src.Fields[1]; f.Offset != 21 || f.Value == nil {
		t.Errorf("field 1 = %s at %d", f, f.Offset)
	}

	f := src.Methods[0]
	if len(f.Parameters) != 2 || f.Parameters[0] != "a" || f.Parameters[1] != "b" {
		t.Errorf("parameters = %v", f.Parameters)
	}
	if len(f.ParameterTypeNames) != 2 || f.ParameterTypeNames[0] != "Integer" || f.ParameterTypeNames[1] != "String" {
		t.Errorf("parameter types = %v", f.ParameterTypeNames)
	}
	if f.ReturnTypeName != "Decimal" || len(f.Statements) != 0 {
		t.Errorf("method f = %s", f)
	}
	if g := src.Methods[1]; g.ReturnTypeName != "" || len(g.Statements) != 1 {
		t.Errorf("method g = %s", g)
	}
}

func TestStatements(t *testing.T) {
	src := mustParse(t, `DEF main() DO
    LET a;
    LET b: Integer;
    LET c = 1;
    a = b;
    obj.field = 2;
    print(a);
    IF a DO RETURN 1; ELSE RETURN 2; END
    IF a DO f(); END
    FOR i IN range(0, 3) DO print(i); END
    WHILE TRUE DO END
    RETURN NIL;
END`)

	want := []string{
		"LET a;",
		"LET b: Integer;",
		"LET c = 1;",
		"a = b;",
		"obj.field = 2;",
		"print(a);",
		"IF a DO RETURN 1; ELSE RETURN 2; END",
		"IF a DO f(); END",
		"FOR i IN range(0, 3) DO print(i); END",
		"WHILE TRUE DO  END",
		"RETURN NIL;",
	}

	stmts := src.Methods[0].Statements
	if len(stmts) != len(want) {
		t.Fatalf("got %d statements, want %d", len(stmts), len(want))
	}
	for i, s := range stmts {
		if got := s.String(); got != want[i] {
			t.Errorf("statement %d = %q, want %q", i, got, want[i])
		}
	}

	if _, ok := stmts[3].(*ast.AssignmentStmt); !ok {
		t.Errorf("statement 3 is %T, want *ast.AssignmentStmt", stmts[3])
	}
	if _, ok := stmts[5].(*ast.ExpressionStmt); !ok {
		t.Errorf("statement 5 is %T, want *ast.ExpressionStmt", stmts[5])
	}
	if ifStmt := stmts[7].(*ast.IfStmt); ifStmt.Else != nil {
		t.Errorf("missing ELSE should leave an empty else branch, got %v", ifStmt.Else)
	}
}

func TestNodeOffsets(t *testing.T) {
	//            0         1         2         3
	//            0123456789012345678901234567890123456
	src := mustParse(t, "DEF main() DO RETURN a.b(1) * 2; END")
	ret := src.Methods[0].Statements[0].(*ast.ReturnStmt)
	if ret.Offset != 14 {
		t.Errorf("return offset = %d, want 14", ret.Offset)
	}
	bin := ret.Value.(*ast.BinaryExpr)
	if bin.Offset != 21 || bin.OperatorOffset != 28 {
		t.Errorf("binary offsets = %d/%d, want 21/28", bin.Offset, bin.OperatorOffset)
	}
	call := bin.Left.(*ast.CallExpr)
	if call.Offset != 21 || call.NameOffset != 23 {
		t.Errorf("call offsets = %d/%d, want 21/23", call.Offset, call.NameOffset)
	}
}

func TestSyntaxErrors(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		offset int
	}{
		{"missing semicolon at end", "LET x: Integer = 1", 18},
		{"field without type", "LET x = 1;", 6},
		{"field after method", "DEF main() DO RETURN 1; END LET x: Integer;", 28},
		{"trailing comma in parameters", "DEF f(a: Integer,) DO END", 17},
		{"parameter without type", "DEF f(a) DO END", 7},
		{"trailing comma in arguments", "DEF main() DO f(1,); END", 18},
		{"dot without name", "DEF main() DO x.; END", 16},
		{"missing END", "DEF main() DO RETURN 1;", 23},
		{"missing DO", "DEF main() DO IF TRUE RETURN 1; END END", 22},
		{"missing IN", "DEF main() DO FOR i range(0, 1) DO END END", 20},
		{"missing close paren", "DEF main() DO RETURN (1 + 2; END", 27},
		{"top level statement", "RETURN 1;", 0},
		{"keyword as name", "LET END: Integer;", 4},
		{"empty expression", "DEF main() DO RETURN ; END", 21},
		{"dangling operator", "DEF main() DO RETURN 1 +", 24},
		{"offsets count characters", `DEF main(): Integer DO print("héllo"); RETURN 1 END`, 48},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parse(t, tt.input)
			if err == nil {
				t.Fatalf("ParseSource(%q) succeeded, want a syntax error", tt.input)
			}
			e, ok := errors.As(err)
			if !ok || e.Category != errors.CategorySyntax {
				t.Fatalf("error %v is not a syntax error", err)
			}
			if e.Offset != tt.offset {
				t.Errorf("offset = %d, want %d (%v)", e.Offset, tt.offset, err)
			}
		})
	}
}

func TestKeywordIsNotIdentifier(t *testing.T) {
	for _, word := range []string{"LET", "DEF", "AND", "NIL"} {
		if !IsKeyword(word) {
			t.Errorf("IsKeyword(%q) = false", word)
		}
	}
	if IsKeyword("let") || IsKeyword("main") {
		t.Error("keywords are upper case only")
	}
}

func TestTypeNameOffsets(t *testing.T) {
	src := mustParse(t, "LET x: Integer; DEF f(a: Integer, b: String): Decimal DO LET y: Boolean; END")

	if got := src.Fields[0].TypeNameOffset; got != 7 {
		t.Errorf("field type offset = %d, want 7", got)
	}
	m := src.Methods[0]
	if len(m.ParameterTypeOffsets) != 2 || m.ParameterTypeOffsets[0] != 25 || m.ParameterTypeOffsets[1] != 37 {
		t.Errorf("parameter type offsets = %v, want [25 37]", m.ParameterTypeOffsets)
	}
	if m.ReturnTypeOffset != 46 || m.ReturnTypePos() != 46 {
		t.Errorf("return type offset = %d, want 46", m.ReturnTypeOffset)
	}
	decl := m.Statements[0].(*ast.DeclarationStmt)
	if decl.TypeNameOffset != 64 {
		t.Errorf("declaration type offset = %d, want 64", decl.TypeNameOffset)
	}
}
