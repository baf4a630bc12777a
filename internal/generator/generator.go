// Package generator prints an analyzed program as the source of a Java class
// named Main.
package generator

import (
	"fmt"
	"io"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/plc-lang/plc/internal/ast"
	"github.com/plc-lang/plc/internal/environment"
)

// Options controls the printed layout
type Options struct {
	// IndentSize is the number of spaces per nesting level
	IndentSize int
}

// DefaultOptions returns the standard four-space layout
func DefaultOptions() Options {
	return Options{IndentSize: 4}
}

// Generator writes Java source for one program
type Generator struct {
	w       io.Writer
	options Options
	indent  int
	buffer  strings.Builder
}

// New creates a generator writing to w with the default options
func New(w io.Writer) *Generator {
	return NewWithOptions(w, DefaultOptions())
}

// NewWithOptions creates a generator with explicit options
func NewWithOptions(w io.Writer, options Options) *Generator {
	if options.IndentSize <= 0 {
		options.IndentSize = DefaultOptions().IndentSize
	}
	return &Generator{w: w, options: options}
}

// Generate prints src. Every resolution slot must be bound, which holds for
// any program the analyzer accepted. Nothing is written on error.
func (g *Generator) Generate(src *ast.Source) error {
	if n := ast.Unbound(src); n != nil {
		return fmt.Errorf("generator: %T at offset %d is not analyzed: %s", n, n.Pos(), n)
	}

	g.buffer.Reset()
	g.indent = 0
	g.source(src)

	_, err := io.WriteString(g.w, g.buffer.String())
	return err
}

func (g *Generator) print(parts ...any) {
	for _, part := range parts {
		switch p := part.(type) {
		case ast.Stmt:
			g.stmt(p)
		case ast.Expr:
			g.expr(p)
		case string:
			g.buffer.WriteString(p)
		default:
			fmt.Fprint(&g.buffer, p)
		}
	}
}

func (g *Generator) newline(indent int) {
	g.buffer.WriteByte('\n')
	g.buffer.WriteString(strings.Repeat(" ", indent*g.options.IndentSize))
}

// ===== Declarations =====

func (g *Generator) source(src *ast.Source) {
	g.print("public class Main {")
	g.newline(0)

	if len(src.Fields) > 0 {
		g.indent++
		for _, field := range src.Fields {
			g.newline(g.indent)
			g.field(field)
		}
		g.indent--
		g.newline(g.indent)
	}

	g.indent++
	g.newline(g.indent)
	g.print("public static void main(String[] args) {")
	g.indent++
	g.newline(g.indent)
	g.print("System.exit(new Main().main());")
	g.indent--
	g.newline(g.indent)
	g.print("}")
	g.indent--
	g.newline(g.indent)

	for _, method := range src.Methods {
		g.indent++
		g.newline(g.indent)
		g.method(method)
		g.indent--
		g.newline(g.indent)
	}

	g.newline(0)
	g.print("}")
}

func (g *Generator) field(field *ast.Field) {
	v := field.Variable()
	g.print(v.Type.JVMName(), " ", v.JVMName)
	if field.Value != nil {
		g.print(" = ", field.Value)
	}
	g.print(";")
}

func (g *Generator) method(method *ast.Method) {
	fn := method.Function()
	g.print(fn.ReturnType.JVMName(), " ", fn.JVMName, "(")
	for i, name := range method.Parameters {
		if i > 0 {
			g.print(", ")
		}
		g.print(fn.ParameterTypes[i].JVMName(), " ", name)
	}
	g.print(") {")
	g.block(method.Statements)
	g.print("}")
}

// block prints statements one per line, one level deeper than the
// enclosing line. An empty block prints nothing.
func (g *Generator) block(stmts []ast.Stmt) {
	if len(stmts) == 0 {
		return
	}
	g.indent++
	for _, stmt := range stmts {
		g.newline(g.indent)
		g.print(stmt)
	}
	g.indent--
	g.newline(g.indent)
}

// ===== Statements =====

func (g *Generator) stmt(stmt ast.Stmt) {
	switch s := stmt.(type) {
	case *ast.ExpressionStmt:
		g.print(s.Expression, ";")

	case *ast.DeclarationStmt:
		g.print(s.Variable().Type.JVMName(), " ", s.Variable().JVMName)
		if s.Value != nil {
			g.print(" = ", s.Value)
		}
		g.print(";")

	case *ast.AssignmentStmt:
		g.print(s.Receiver, " = ", s.Value, ";")

	case *ast.IfStmt:
		g.print("if (", s.Condition, ") {")
		g.block(s.Then)
		g.print("}")
		if len(s.Else) > 0 {
			g.print(" else {")
			g.block(s.Else)
			g.print("}")
		}

	case *ast.ForStmt:
		g.print("for (int ", s.Name, " : ", s.Value, ") {")
		g.block(s.Statements)
		g.print("}")

	case *ast.WhileStmt:
		g.print("while (", s.Condition, ") {")
		g.block(s.Statements)
		g.print("}")

	case *ast.ReturnStmt:
		g.print("return ", s.Value, ";")

	default:
		panic(fmt.Sprintf("generator: unexpected statement %T", stmt))
	}
}

// ===== Expressions =====

func (g *Generator) expr(expr ast.Expr) {
	switch e := expr.(type) {
	case *ast.LiteralExpr:
		g.literal(e.Value)

	case *ast.GroupExpr:
		g.print("(", e.Expression, ")")

	case *ast.BinaryExpr:
		g.print(e.Left)
		switch e.Operator {
		case "AND":
			g.print(" && ")
		case "OR":
			g.print(" || ")
		default:
			g.print(" ", e.Operator, " ")
		}
		g.print(e.Right)

	case *ast.AccessExpr:
		if e.Receiver != nil {
			g.print(e.Receiver, ".")
		}
		g.print(e.Variable().JVMName)

	case *ast.CallExpr:
		if e.Receiver != nil {
			g.print(e.Receiver, ".")
		}
		g.print(e.Function().JVMName, "(")
		for i, arg := range e.Arguments {
			if i > 0 {
				g.print(", ")
			}
			g.print(arg)
		}
		g.print(")")

	default:
		panic(fmt.Sprintf("generator: unexpected expression %T", expr))
	}
}

func (g *Generator) literal(value any) {
	switch v := value.(type) {
	case nil:
		g.print("null")
	case bool:
		g.print(fmt.Sprint(v))
	case rune:
		g.print("'", escape(string(v), '\''), "'")
	case string:
		g.print(`"`, escape(v, '"'), `"`)
	case *big.Int:
		g.print(v.String())
	case decimal.Decimal:
		g.print(environment.FormatDecimal(v))
	default:
		panic(fmt.Sprintf("generator: unexpected literal %T", value))
	}
}

// escape reverses the escapes the lexer accepts. Only the quote that
// delimits the literal is escaped.
func escape(s string, quote rune) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '\b':
			b.WriteString(`\b`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		case '\\':
			b.WriteString(`\\`)
		case quote:
			b.WriteByte('\\')
			b.WriteRune(r)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
