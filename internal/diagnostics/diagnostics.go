// Package diagnostics renders positioned errors as source snippets with a
// caret under the offending character.
package diagnostics

import (
	"fmt"
	"strings"

	"github.com/plc-lang/plc/internal/errors"
	"github.com/plc-lang/plc/internal/position"
)

// Diagnostic is an error resolved against its source file
type Diagnostic struct {
	Category errors.ErrorCategory `json:"category,omitempty"`
	Code     string               `json:"code,omitempty"`
	Message  string               `json:"message"`
	Offset   int                  `json:"offset"`
	Line     int                  `json:"line,omitempty"`
	Column   int                  `json:"column,omitempty"`

	pos position.Position
}

// FromError resolves err against file. Errors that are not categorised keep
// only their message and offset -1.
func FromError(file *position.SourceFile, err error) Diagnostic {
	e, ok := errors.As(err)
	if !ok {
		return Diagnostic{Message: err.Error(), Offset: errors.NoOffset}
	}

	d := Diagnostic{
		Category: e.Category,
		Code:     e.Code,
		Message:  e.Message,
		Offset:   e.Offset,
	}
	if e.Offset >= 0 && file != nil {
		d.pos = file.PositionFromOffset(e.Offset)
		d.Line = d.pos.Line
		d.Column = d.pos.Column
	}
	return d
}

// Positioned reports whether the diagnostic points into the source
func (d Diagnostic) Positioned() bool { return d.pos.IsValid() }

// Header returns the one-line summary, e.g. "SYNTAX ERROR at 3:12: expected ;"
func (d Diagnostic) Header() string {
	var b strings.Builder
	if d.Category == "" {
		b.WriteString("ERROR")
	} else {
		fmt.Fprintf(&b, "%s ERROR", d.Category)
	}
	if d.Code != "" && d.Code != string(d.Category) {
		fmt.Fprintf(&b, " (%s)", d.Code)
	}
	if d.pos.Filename != "" {
		fmt.Fprintf(&b, " in %s", d.pos.Filename)
	}
	if d.Positioned() {
		fmt.Fprintf(&b, " at %d:%d", d.pos.Line, d.pos.Column)
	}
	fmt.Fprintf(&b, ": %s", d.Message)
	return b.String()
}

// Render formats err with a context window of one line before and after the
// error line. color adds ANSI escapes for terminals.
func Render(file *position.SourceFile, err error, color bool) string {
	if err == nil {
		return ""
	}
	d := FromError(file, err)
	p := palette(color)

	var b strings.Builder
	b.WriteString(p.header(d.Header()))
	b.WriteString("\n")
	if !d.Positioned() {
		return b.String()
	}

	b.WriteString("\n")
	line := d.pos.Line
	if line > 1 {
		fmt.Fprintf(&b, "%s %s\n", p.gutter(fmt.Sprintf("%4d |", line-1)), file.GetLine(line-1))
	}
	text := file.GetLine(line)
	fmt.Fprintf(&b, "%s %s\n", p.gutter(fmt.Sprintf("%4d |", line)), text)
	fmt.Fprintf(&b, "%s %s%s\n", p.gutter("     |"), caretPadding(text, d.pos.Column), p.caret("^"))
	if line < file.LineCount() {
		fmt.Fprintf(&b, "%s %s\n", p.gutter(fmt.Sprintf("%4d |", line+1)), file.GetLine(line+1))
	}
	return b.String()
}

// caretPadding reproduces the whitespace before column so the caret lines up
// under tab-indented text.
func caretPadding(text string, column int) string {
	var b strings.Builder
	col := 1
	for _, r := range text {
		if col >= column {
			break
		}
		if r == '\t' {
			b.WriteByte('\t')
		} else {
			b.WriteByte(' ')
		}
		col++
	}
	for ; col < column; col++ {
		b.WriteByte(' ')
	}
	return b.String()
}

type colors struct {
	enabled bool
}

func palette(enabled bool) colors { return colors{enabled: enabled} }

func (c colors) wrap(code, s string) string {
	if !c.enabled {
		return s
	}
	return code + s + "\x1b[0m"
}

func (c colors) header(s string) string { return c.wrap("\x1b[1;31m", s) }
func (c colors) gutter(s string) string { return c.wrap("\x1b[90m", s) }
func (c colors) caret(s string) string  { return c.wrap("\x1b[31m", s) }
