package generator

import (
	"bytes"
	"strings"
	"testing"

	"github.com/plc-lang/plc/internal/analyzer"
	"github.com/plc-lang/plc/internal/ast"
	"github.com/plc-lang/plc/internal/environment"
	"github.com/plc-lang/plc/internal/lexer"
	"github.com/plc-lang/plc/internal/parser"
)

func parse(t *testing.T, input string) *ast.Source {
	t.Helper()
	tokens, err := lexer.Lex(input)
	if err != nil {
		t.Fatalf("Lex: %v", err)
	}
	src, err := parser.ParseSource(tokens)
	if err != nil {
		t.Fatalf("ParseSource: %v", err)
	}
	return src
}

func analyzed(t *testing.T, input string) *ast.Source {
	t.Helper()
	src := parse(t, input)
	if err := analyzer.New(environment.NewBuiltinScope(nil)).Analyze(src); err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	return src
}

func lines(s ...string) string {
	return strings.Join(s, "\n")
}

func TestGenerate(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			"fields and statements",
			`LET x: Integer = 5;
			DEF main(): Integer DO
			    print("hi" + x);
			    IF x > 1 AND TRUE DO x = x - 1; ELSE RETURN 0; END
			    FOR i IN range(0, 2) DO print(i); END
			    WHILE FALSE DO END
			    LET c: Character = '\n';
			    RETURN x;
			END`,
			lines(
				"public class Main {",
				"",
				"    int x = 5;",
				"",
				"    public static void main(String[] args) {",
				"        System.exit(new Main().main());",
				"    }",
				"",
				"    int main() {",
				`        System.out.println("hi" + x);`,
				"        if (x > 1 && true) {",
				"            x = x - 1;",
				"        } else {",
				"            return 0;",
				"        }",
				"        for (int i : range(0, 2)) {",
				"            System.out.println(i);",
				"        }",
				"        while (false) {}",
				`        char c = '\n';`,
				"        return x;",
				"    }",
				"",
				"}",
			),
		},
		{
			"no fields",
			`DEF f(a: Integer, b: String): Decimal DO RETURN (1.50 + 1.0); END
			DEF g() DO END
			DEF main(): Integer DO g(); RETURN "ab".length(); END`,
			lines(
				"public class Main {",
				"",
				"    public static void main(String[] args) {",
				"        System.exit(new Main().main());",
				"    }",
				"",
				"    double f(int a, String b) {",
				"        return (1.50 + 1.0);",
				"    }",
				"",
				"    Void g() {}",
				"",
				"    int main() {",
				"        g();",
				`        return "ab".length();`,
				"    }",
				"",
				"}",
			),
		},
		{
			"literals",
			`LET s: String = "q\"\\";
			LET n: Any = NIL;
			LET b: Boolean = FALSE OR TRUE;
			DEF main(): Integer DO RETURN 0; END`,
			lines(
				"public class Main {",
				"",
				`    String s = "q\"\\";`,
				"    Object n = null;",
				"    boolean b = false || true;",
				"",
				"    public static void main(String[] args) {",
				"        System.exit(new Main().main());",
				"    }",
				"",
				"    int main() {",
				"        return 0;",
				"    }",
				"",
				"}",
			),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			if err := New(&out).Generate(analyzed(t, tt.input)); err != nil {
				t.Fatalf("Generate: %v", err)
			}
			if out.String() != tt.want {
				t.Errorf("Generate printed\n%s\nwant\n%s", out.String(), tt.want)
			}
		})
	}
}

func TestGenerateRequiresAnalysis(t *testing.T) {
	var out bytes.Buffer
	err := New(&out).Generate(parse(t, "DEF main(): Integer DO RETURN 0; END"))
	if err == nil {
		t.Fatal("Generate accepted an unanalyzed tree")
	}
	if out.Len() != 0 {
		t.Errorf("Generate wrote %q before failing", out.String())
	}
}

func TestIndentSize(t *testing.T) {
	var out bytes.Buffer
	src := analyzed(t, "DEF main(): Integer DO RETURN 0; END")
	if err := NewWithOptions(&out, Options{IndentSize: 2}).Generate(src); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !strings.Contains(out.String(), "\n    System.exit(new Main().main());") {
		t.Errorf("two-space layout not applied:\n%s", out.String())
	}
}
