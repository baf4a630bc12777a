// Package position maps the character offsets carried by tokens and errors
// back to line/column positions for diagnostic rendering.
package position

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"
)

// Position represents a single point in source code
type Position struct {
	Filename string // Source file name
	Line     int    // 1-based line number
	Column   int    // 1-based column number, counted in characters
	Offset   int    // 0-based character offset in source
}

// IsValid returns true if the position is valid
func (p Position) IsValid() bool {
	return p.Line > 0 && p.Column > 0 && p.Offset >= 0
}

// String returns a string representation of the position
func (p Position) String() string {
	if p.Filename != "" {
		return fmt.Sprintf("%s:%d:%d", filepath.Base(p.Filename), p.Line, p.Column)
	}
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// SourceFile represents a source file with content and position tracking
type SourceFile struct {
	Filename string // File path
	Content  string // Source code content

	lineStarts []int // byte offset of each line
	charStarts []int // character offset of each line
	length     int   // content length in characters
}

// NewSourceFile creates a new source file from content
func NewSourceFile(filename, content string) *SourceFile {
	starts, chars := []int{0}, []int{0}
	n := 0
	for i, r := range content {
		n++
		if r == '\n' {
			starts = append(starts, i+1)
			chars = append(chars, n)
		}
	}
	return &SourceFile{
		Filename:   filename,
		Content:    content,
		lineStarts: starts,
		charStarts: chars,
		length:     n,
	}
}

// LineCount returns the number of lines, counting a trailing partial line
func (sf *SourceFile) LineCount() int {
	return len(sf.lineStarts)
}

// GetLine returns the specified line (1-based) without its terminator,
// or the empty string if the line does not exist.
func (sf *SourceFile) GetLine(lineNum int) string {
	if lineNum < 1 || lineNum > len(sf.lineStarts) {
		return ""
	}
	start := sf.lineStarts[lineNum-1]
	end := len(sf.Content)
	if lineNum < len(sf.lineStarts) {
		end = sf.lineStarts[lineNum] - 1
	}
	return strings.TrimSuffix(sf.Content[start:end], "\r")
}

// PositionFromOffset converts a character offset to a Position. Offsets past
// the end of the content are clamped to the end, which is where errors
// reported "at end of input" point.
func (sf *SourceFile) PositionFromOffset(offset int) Position {
	if offset < 0 {
		return Position{}
	}
	if offset > sf.length {
		offset = sf.length
	}

	// charStarts is sorted; find the last start <= offset.
	idx := sort.Search(len(sf.charStarts), func(i int) bool {
		return sf.charStarts[i] > offset
	}) - 1

	return Position{
		Filename: sf.Filename,
		Line:     idx + 1,
		Column:   offset - sf.charStarts[idx] + 1,
		Offset:   offset,
	}
}

// OffsetFromPosition converts a Position back to a character offset, or -1
// if the position lies outside the file.
func (sf *SourceFile) OffsetFromPosition(pos Position) int {
	if pos.Line < 1 || pos.Line > len(sf.charStarts) || pos.Column < 1 {
		return -1
	}
	if pos.Column > utf8.RuneCountInString(sf.GetLine(pos.Line))+1 {
		return -1
	}
	return sf.charStarts[pos.Line-1] + pos.Column - 1
}

// ByteOffset converts a character offset to a byte offset into Content,
// clamping to the content bounds.
func (sf *SourceFile) ByteOffset(offset int) int {
	if offset <= 0 {
		return 0
	}
	if offset >= sf.length {
		return len(sf.Content)
	}
	idx := sort.Search(len(sf.charStarts), func(i int) bool {
		return sf.charStarts[i] > offset
	}) - 1
	b := sf.lineStarts[idx]
	for n := offset - sf.charStarts[idx]; n > 0; n-- {
		_, size := utf8.DecodeRuneInString(sf.Content[b:])
		b += size
	}
	return b
}
