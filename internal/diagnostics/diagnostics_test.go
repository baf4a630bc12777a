package diagnostics

import (
	stderrors "errors"
	"strings"
	"testing"

	"github.com/plc-lang/plc/internal/errors"
	"github.com/plc-lang/plc/internal/position"
)

func TestRender(t *testing.T) {
	file := position.NewSourceFile("prog.plc", "LET x: Integer;\nDEF main() DO\n\tRETURN y;\nEND")
	plain := position.NewSourceFile("", "LET x = 1;")

	tests := []struct {
		name string
		file *position.SourceFile
		err  error
		want string
	}{
		{
			"middle line with tab",
			file,
			errors.Undefined(errors.CategorySemantic, errors.CodeUndefinedVariable, "variable", "y", 38),
			"SEMANTIC ERROR (UNDEFINED_VARIABLE) in prog.plc at 3:9: the variable y is not defined\n" +
				"\n" +
				"   2 | DEF main() DO\n" +
				"   3 | \tRETURN y;\n" +
				"     | \t       ^\n" +
				"   4 | END\n",
		},
		{
			"first line",
			plain,
			errors.Syntax("expected :", 6),
			"SYNTAX ERROR at 1:7: expected :\n" +
				"\n" +
				"   1 | LET x = 1;\n" +
				"     |       ^\n",
		},
		{
			"end of input",
			plain,
			errors.Syntax("expected DEF", 10),
			"SYNTAX ERROR at 1:11: expected DEF\n" +
				"\n" +
				"   1 | LET x = 1;\n" +
				"     |           ^\n",
		},
		{
			"no offset",
			file,
			errors.Semantic(errors.CodeMissingMain, "no main/0 method", errors.NoOffset, nil),
			"SEMANTIC ERROR (MISSING_MAIN): no main/0 method\n",
		},
		{
			"foreign error",
			file,
			stderrors.New("read prog.plc: permission denied"),
			"ERROR: read prog.plc: permission denied\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Render(tt.file, tt.err, false); got != tt.want {
				t.Errorf("Render() =\n%q\nwant\n%q", got, tt.want)
			}
		})
	}
}

func TestRenderColor(t *testing.T) {
	file := position.NewSourceFile("", "DEF main() DO RETURN 1 / 0; END")
	got := Render(file, errors.DivisionByZero(23), true)
	if !strings.HasPrefix(got, "\x1b[1;31mRUNTIME ERROR (DIVISION_BY_ZERO) at 1:24") {
		t.Errorf("header not colored: %q", got)
	}
	if !strings.Contains(got, "\x1b[31m^\x1b[0m") {
		t.Errorf("caret not colored: %q", got)
	}
	if Render(file, nil, true) != "" {
		t.Error("Render(nil) is not empty")
	}
}

func TestFromError(t *testing.T) {
	file := position.NewSourceFile("", "a\nbc")
	d := FromError(file, errors.TypeMismatch(errors.CategoryRuntime, "Integer", "String", 3))
	if d.Line != 2 || d.Column != 2 || d.Offset != 3 || d.Code != errors.CodeTypeMismatch {
		t.Errorf("FromError() = %+v", d)
	}
	if d := FromError(nil, errors.Syntax("x", 0)); d.Positioned() {
		t.Errorf("diagnostic without a file is positioned: %+v", d)
	}
}
