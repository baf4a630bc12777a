package driver

import (
	"context"
	"io"
	"strings"

	pkgerrors "github.com/pkg/errors"

	"github.com/plc-lang/plc/internal/lexer"
	"github.com/plc-lang/plc/internal/position"
)

// sessionName labels errors from interactive input
const sessionName = "repl"

// Session accumulates declarations entered interactively. Every entry that
// is not a declaration runs as the body of a fresh main against everything
// declared so far, so field values do not carry over between entries.
type Session struct {
	driver  *Driver
	fields  []string
	methods []string
}

// NewSession starts an empty interactive session
func (d *Driver) NewSession() *Session {
	return &Session{driver: d}
}

// Reset forgets every declaration
func (s *Session) Reset() {
	s.fields = nil
	s.methods = nil
}

// Declarations returns the number of accepted field and method entries
func (s *Session) Declarations() (fields, methods int) {
	return len(s.fields), len(s.methods)
}

// Complete reports whether input can be evaluated as is, that is every DO
// has its END. Input that does not lex is complete so its error surfaces.
func Complete(input string) bool {
	tokens, err := lexer.Lex(input)
	if err != nil {
		return true
	}
	depth := 0
	for _, tok := range tokens {
		if tok.Kind != lexer.Identifier {
			continue
		}
		switch tok.Literal {
		case "DO":
			depth++
		case "END":
			depth--
		}
	}
	return depth <= 0
}

// Eval handles one entry. Declarations are checked together with the
// session and kept on success. Statements are run, and a bare expression is
// printed. It returns the program text that was checked so callers can
// render diagnostics against it.
func (s *Session) Eval(ctx context.Context, input string, out io.Writer) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", nil
	}

	tokens, err := lexer.Lex(input)
	if err != nil {
		return input, pkgerrors.Wrapf(err, "%s: lex", sessionName)
	}

	switch tokens[0].Literal {
	case "LET", "DEF":
		return s.declare(input)
	}

	body := input
	if !strings.HasSuffix(body, ";") && !strings.HasSuffix(body, "END") {
		body = "print(" + body + ");"
	}
	program := s.program(s.fields, s.methods, body)
	_, err = s.driver.Run(ctx, sessionName, program, out)
	return program, err
}

func (s *Session) declare(input string) (string, error) {
	src, err := s.driver.Parse(sessionName, input)
	if err != nil {
		return input, err
	}
	for _, m := range src.Methods {
		if m.Name == "main" && len(m.Parameters) == 0 {
			return input, pkgerrors.New("main/0 is generated for each entry and cannot be declared")
		}
	}

	fields, methods := s.fields, s.methods
	switch {
	case len(src.Methods) == 0:
		fields = append(fields[:len(fields):len(fields)], input)
	case len(src.Fields) == 0:
		methods = append(methods[:len(methods):len(methods)], input)
	default:
		split := position.NewSourceFile(sessionName, input).ByteOffset(src.Methods[0].Offset)
		fields = append(fields[:len(fields):len(fields)], input[:split])
		methods = append(methods[:len(methods):len(methods)], input[split:])
	}

	program := s.program(fields, methods, "")
	if _, err := s.driver.Check(sessionName, program); err != nil {
		return program, err
	}
	s.fields, s.methods = fields, methods
	return program, nil
}

func (s *Session) program(fields, methods []string, body string) string {
	var b strings.Builder
	for _, f := range fields {
		b.WriteString(f)
		b.WriteString("\n")
	}
	for _, m := range methods {
		b.WriteString(m)
		b.WriteString("\n")
	}
	b.WriteString("DEF main(): Integer DO\n")
	if body != "" {
		b.WriteString(body)
		b.WriteString("\n")
	}
	b.WriteString("RETURN 0;\nEND\n")
	return b.String()
}

// Java writes the Java translation of the session's declarations
func (s *Session) Java(w io.Writer) error {
	return s.driver.Generate(sessionName, s.program(s.fields, s.methods, ""), w)
}
