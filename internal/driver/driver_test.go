package driver

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/plc-lang/plc/internal/cli"
	"github.com/plc-lang/plc/internal/errors"
)

func TestScenarios(t *testing.T) {
	tests := []struct {
		name     string
		source   string
		result   string
		category errors.ErrorCategory
		code     string
	}{
		{"A field read", "LET x: Integer = 5; DEF main(): Integer DO RETURN x; END", "5", "", ""},
		{"B integer addition", "DEF main(): Integer DO RETURN 1 + 2; END", "3", "", ""},
		{"C mixed addition", "DEF main(): Integer DO RETURN 1 + 1.0; END", "", errors.CategorySemantic, errors.CodeTypeMismatch},
		{"D while loop", "LET i: Integer = 0; DEF main(): Integer DO WHILE i < 3 DO i = i + 1; END RETURN i; END", "3", "", ""},
		{"E division by zero", "DEF main(): Integer DO RETURN 1 / 0; END", "", errors.CategoryRuntime, errors.CodeDivisionByZero},
		{"lex error", `DEF main(): Integer DO RETURN "abc; END`, "", errors.CategorySyntax, errors.CodeSyntax},
		{"parse error", "DEF main(): Integer DO RETURN 1 END", "", errors.CategorySyntax, errors.CodeSyntax},
		{"missing main", "LET x: Integer;", "", errors.CategorySemantic, errors.CodeMissingMain},
		{"main returns string", `DEF main(): String DO RETURN "s"; END`, "", errors.CategorySemantic, errors.CodeTypeMismatch},
		{"32-bit literal boundary", "DEF main(): Integer DO RETURN 4294967295; END", "4294967295", "", ""},
		{"33-bit literal", "DEF main(): Integer DO RETURN 4294967296; END", "", errors.CategorySemantic, errors.CodeLiteralOutOfRange},
		{"decimal half even", "DEF main(): Integer DO print(2.5 / 2.0); RETURN 0; END", "0", "", ""},
	}

	d := New(nil, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := d.Run(context.Background(), "test.plc", tt.source, nil)
			if tt.code == "" {
				if err != nil {
					t.Fatalf("Run: %v", err)
				}
				if v.String() != tt.result {
					t.Errorf("result = %s, want %s", v, tt.result)
				}
				return
			}
			if err == nil {
				t.Fatalf("Run succeeded with %s, want %s %s", v, tt.category, tt.code)
			}
			if errors.CategoryOf(err) != tt.category || errors.CodeOf(err) != tt.code {
				t.Errorf("error = %v, want %s %s", err, tt.category, tt.code)
			}
			if !strings.HasPrefix(err.Error(), "test.plc: ") {
				t.Errorf("error %q lacks the file name", err)
			}
			if _, ok := Cause(err).(*errors.Error); !ok {
				t.Errorf("Cause(%v) = %T, want *errors.Error", err, Cause(err))
			}
		})
	}
}

func TestPrintOutput(t *testing.T) {
	var out bytes.Buffer
	_, err := New(nil, nil).Run(context.Background(), "p.plc", `DEF main(): Integer DO
    FOR i IN range(0, 3) DO print("i=" + i); END
    print(1.0 / 3.0);
    RETURN 0;
END`, &out)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if want := "i=0\ni=1\ni=2\n0.3\n"; out.String() != want {
		t.Errorf("output = %q, want %q", out.String(), want)
	}
}

func TestLanguageGate(t *testing.T) {
	cfg := cli.DefaultConfig()
	cfg.Language = ">= 2.0.0"
	d := New(cfg, nil)

	// the gate runs before parsing, so even invalid source reports it
	_, err := d.Run(context.Background(), "x.plc", "not a program", nil)
	if err == nil || !strings.Contains(err.Error(), "does not satisfy") {
		t.Fatalf("Run() error = %v, want language gate failure", err)
	}
	if errors.CategoryOf(err) != "" {
		t.Errorf("language gate error has category %s", errors.CategoryOf(err))
	}
	if _, err := d.RunFiles(context.Background(), nil); err == nil {
		t.Error("RunFiles ignored the language gate")
	}

	cfg.Language = "~1.0"
	if err := New(cfg, nil).CheckLanguage(); err != nil {
		t.Errorf("~1.0 rejected: %v", err)
	}
}

func TestTimeout(t *testing.T) {
	cfg := cli.DefaultConfig()
	cfg.Timeout = cli.Duration(20 * time.Millisecond)
	_, err := New(cfg, nil).Run(context.Background(), "loop.plc",
		"DEF main(): Integer DO WHILE TRUE DO END RETURN 0; END", nil)
	if errors.CodeOf(err) != errors.CodeCancelled {
		t.Fatalf("Run() error = %v, want CANCELLED", err)
	}
}

func TestStackOverflow(t *testing.T) {
	d := New(nil, nil)
	d.SetMaxDepth(32)
	_, err := d.Run(context.Background(), "rec.plc",
		"DEF f(n: Integer): Integer DO RETURN f(n + 1); END DEF main(): Integer DO RETURN f(0); END", nil)
	if errors.CodeOf(err) != errors.CodeStackOverflow {
		t.Fatalf("Run() error = %v, want STACK_OVERFLOW", err)
	}
}

func TestGenerate(t *testing.T) {
	var out bytes.Buffer
	d := New(nil, nil)
	if err := d.Generate("g.plc", "DEF main(): Integer DO RETURN 0; END", &out); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !strings.Contains(out.String(), "    int main() {\n        return 0;\n    }") {
		t.Errorf("unexpected Java:\n%s", out.String())
	}

	out.Reset()
	err := d.Generate("g.plc", "DEF main(): Integer DO RETURN y; END", &out)
	if errors.CodeOf(err) != errors.CodeUndefinedVariable || out.Len() != 0 {
		t.Errorf("Generate() = %v with output %q", err, out.String())
	}
}

func TestRunFiles(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) string {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
		return path
	}

	paths := []string{
		write("a.plc", `DEF main(): Integer DO print("a"); RETURN 1; END`),
		write("b.plc", "DEF main(): Integer DO RETURN 1 / 0; END"),
		filepath.Join(dir, "missing.plc"),
	}
	for i := 0; i < 8; i++ {
		paths = append(paths, write(filepath.Base(t.Name())+string(rune('c'+i))+".plc",
			"DEF fib(n: Integer): Integer DO IF n < 2 DO RETURN n; END RETURN fib(n - 1) + fib(n - 2); END "+
				"DEF main(): Integer DO RETURN fib(15); END"))
	}

	cfg := cli.DefaultConfig()
	cfg.Jobs = 2
	var logs bytes.Buffer
	results, err := New(cfg, cli.NewLoggerTo(&logs, true, false)).RunFiles(context.Background(), paths)
	if err != nil {
		t.Fatalf("RunFiles: %v", err)
	}
	if len(results) != len(paths) {
		t.Fatalf("got %d results for %d files", len(results), len(paths))
	}

	if r := results[0]; r.Err != nil || r.Value.String() != "1" || r.Output != "a\n" {
		t.Errorf("a.plc = %+v", r)
	}
	if r := results[1]; errors.CodeOf(r.Err) != errors.CodeDivisionByZero || r.Source == "" {
		t.Errorf("b.plc = %+v", r)
	}
	if r := results[2]; r.Err == nil || !os.IsNotExist(Cause(r.Err)) {
		t.Errorf("missing.plc = %+v", r)
	}
	for i, r := range results[3:] {
		if r.File != paths[i+3] || r.Err != nil || r.Value.String() != "610" {
			t.Errorf("result %d = %+v", i+3, r)
		}
	}
	if !strings.Contains(logs.String(), "ran 11 files, 2 failed") {
		t.Errorf("summary not logged:\n%s", logs.String())
	}
	if got := Describe(results[0]); got != paths[0]+": 1" {
		t.Errorf("Describe() = %q", got)
	}
}

func TestRunFilesCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	path := filepath.Join(t.TempDir(), "p.plc")
	if err := os.WriteFile(path, []byte("DEF main(): Integer DO RETURN 0; END"), 0644); err != nil {
		t.Fatal(err)
	}
	results, err := New(nil, nil).RunFiles(ctx, []string{path})
	// either the semaphore observed the cancelled context or the program did
	if err == nil && errors.CodeOf(results[0].Err) != errors.CodeCancelled {
		t.Errorf("RunFiles on a cancelled context = %+v, %v", results, err)
	}
}
