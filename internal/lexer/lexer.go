// Package lexer implements the plc lexical analyzer. It turns source text
// into the flat token stream consumed by the parser.
package lexer

import (
	"fmt"
	"unicode/utf8"

	"github.com/plc-lang/plc/internal/errors"
)

// Kind represents the kind of a token
type Kind int

const (
	Identifier Kind = iota
	Integer
	Decimal
	String
	Character
	Operator
)

var kindNames = map[Kind]string{
	Identifier: "IDENTIFIER",
	Integer:    "INTEGER",
	Decimal:    "DECIMAL",
	String:     "STRING",
	Character:  "CHARACTER",
	Operator:   "OPERATOR",
}

// String returns a string representation of the token kind
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN(%d)", int(k))
}

// Token is a single lexical token. Keywords are Identifier tokens and are
// recognised by their literal text. String and Character literals keep their
// quotes and escapes; the parser unescapes them.
type Token struct {
	Kind    Kind
	Literal string
	Offset  int // character offset of the first character in the source
}

// End returns the offset just past the token
func (t Token) End() int {
	return t.Offset + utf8.RuneCountInString(t.Literal)
}

// String returns a string representation of the token
func (t Token) String() string {
	return fmt.Sprintf("%s(%q)@%d", t.Kind, t.Literal, t.Offset)
}

// Lexer scans one source string
type Lexer struct {
	input        string
	position     int  // start of the current character
	readPosition int  // next character to read
	ch           byte // current character, 0 at end of input

	// byte position and character count of the last offset conversion
	countedBytes int
	countedChars int

	tokens []Token
}

// New creates a new lexer instance
func New(input string) *Lexer {
	l := &Lexer{input: input}
	l.readChar()
	return l
}

// Lex tokenizes input in one call
func Lex(input string) ([]Token, error) {
	return New(input).Tokens()
}

// Tokens scans the whole input. The first malformed token aborts scanning.
func (l *Lexer) Tokens() ([]Token, error) {
	for {
		l.skipWhitespace()
		if l.atEnd() {
			return l.tokens, nil
		}
		tok, err := l.nextToken()
		if err != nil {
			return nil, err
		}
		l.tokens = append(l.tokens, tok)
	}
}

// offset converts a byte position in the input to the character offset
// carried by tokens and errors. Positions arrive in increasing order, so
// counting resumes from the previous conversion.
func (l *Lexer) offset(pos int) int {
	if pos < l.countedBytes {
		l.countedBytes, l.countedChars = 0, 0
	}
	if pos > len(l.input) {
		pos = len(l.input)
	}
	l.countedChars += utf8.RuneCountInString(l.input[l.countedBytes:pos])
	l.countedBytes = pos
	return l.countedChars
}

func (l *Lexer) atEnd() bool {
	return l.position >= len(l.input)
}

// readChar reads the next character and advances position
func (l *Lexer) readChar() {
	if l.readPosition >= len(l.input) {
		l.ch = 0
	} else {
		l.ch = l.input[l.readPosition]
	}
	l.position = l.readPosition
	l.readPosition++
}

// peekChar returns the next character without advancing position
func (l *Lexer) peekChar() byte {
	if l.readPosition >= len(l.input) {
		return 0
	}
	return l.input[l.readPosition]
}

func (l *Lexer) skipWhitespace() {
	for !l.atEnd() && isWhitespace(l.ch) {
		l.readChar()
	}
}

func (l *Lexer) nextToken() (Token, error) {
	start := l.position

	switch {
	case isLetter(l.ch) || l.ch == '_':
		return l.readIdentifier(), nil
	case isDigit(l.ch):
		return l.readNumber(start)
	case (l.ch == '+' || l.ch == '-') && isDigit(l.peekChar()) && !l.previousEndsOperand():
		return l.readNumber(start)
	case l.ch == '\'':
		return l.readCharacter()
	case l.ch == '"':
		return l.readString()
	default:
		return l.readOperator(), nil
	}
}

// previousEndsOperand reports whether the last token can end an operand, in
// which case a following sign is a binary operator rather than part of a
// number literal.
func (l *Lexer) previousEndsOperand() bool {
	if len(l.tokens) == 0 {
		return false
	}
	prev := l.tokens[len(l.tokens)-1]
	switch prev.Kind {
	case Integer, Decimal, String, Character:
		return true
	case Identifier:
		return !isKeywordOperator(prev.Literal)
	default:
		return prev.Literal == ")"
	}
}

func (l *Lexer) readIdentifier() Token {
	start := l.position
	for isAlphaNumeric(l.ch) || l.ch == '_' || l.ch == '-' {
		l.readChar()
	}
	return Token{Kind: Identifier, Literal: l.input[start:l.position], Offset: l.offset(start)}
}

func (l *Lexer) readNumber(start int) (Token, error) {
	if l.ch == '+' || l.ch == '-' {
		l.readChar()
	}
	for isDigit(l.ch) {
		l.readChar()
	}
	kind := Integer
	if l.ch == '.' && isDigit(l.peekChar()) {
		kind = Decimal
		l.readChar()
		for isDigit(l.ch) {
			l.readChar()
		}
	}
	return Token{Kind: kind, Literal: l.input[start:l.position], Offset: l.offset(start)}, nil
}

func (l *Lexer) readCharacter() (Token, error) {
	start := l.position
	l.readChar() // opening quote

	switch {
	case l.atEnd() || l.ch == '\n' || l.ch == '\r':
		return Token{}, errors.Syntax("unterminated character literal", l.offset(l.position))
	case l.ch == '\'':
		return Token{}, errors.Syntax("empty character literal", l.offset(l.position))
	case l.ch == '\\':
		if err := l.readEscape(); err != nil {
			return Token{}, err
		}
	default:
		_, size := utf8.DecodeRuneInString(l.input[l.position:])
		for i := 0; i < size; i++ {
			l.readChar()
		}
	}

	if l.ch != '\'' || l.atEnd() {
		return Token{}, errors.Syntax("unterminated character literal", l.offset(l.position))
	}
	l.readChar()
	return Token{Kind: Character, Literal: l.input[start:l.position], Offset: l.offset(start)}, nil
}

func (l *Lexer) readString() (Token, error) {
	start := l.position
	l.readChar() // opening quote

	for {
		switch {
		case l.atEnd() || l.ch == '\n' || l.ch == '\r':
			return Token{}, errors.Syntax("unterminated string literal", l.offset(l.position))
		case l.ch == '"':
			l.readChar()
			return Token{Kind: String, Literal: l.input[start:l.position], Offset: l.offset(start)}, nil
		case l.ch == '\\':
			if err := l.readEscape(); err != nil {
				return Token{}, err
			}
		default:
			l.readChar()
		}
	}
}

// readEscape consumes a backslash escape; only \b \n \r \t \' \" \\ are valid
func (l *Lexer) readEscape() error {
	at := l.position
	l.readChar()
	switch l.ch {
	case 'b', 'n', 'r', 't', '\'', '"', '\\':
		l.readChar()
		return nil
	default:
		return errors.Syntax("invalid escape sequence", l.offset(at))
	}
}

func (l *Lexer) readOperator() Token {
	start := l.position
	if (l.ch == '<' || l.ch == '>' || l.ch == '!' || l.ch == '=') && l.peekChar() == '=' {
		l.readChar()
		l.readChar()
		return Token{Kind: Operator, Literal: l.input[start:l.position], Offset: l.offset(start)}
	}
	_, size := utf8.DecodeRuneInString(l.input[start:])
	for i := 0; i < size; i++ {
		l.readChar()
	}
	return Token{Kind: Operator, Literal: l.input[start:l.position], Offset: l.offset(start)}
}

// isKeywordOperator reports identifiers that behave like operators or
// statement keywords, after which a signed number may start.
func isKeywordOperator(ident string) bool {
	switch ident {
	case "AND", "OR", "RETURN", "IN", "DO", "IF", "WHILE", "ELSE", "END":
		return true
	}
	return false
}

func isWhitespace(ch byte) bool {
	return ch == ' ' || ch == '\b' || ch == '\n' || ch == '\r' || ch == '\t'
}

func isLetter(ch byte) bool {
	return ('a' <= ch && ch <= 'z') || ('A' <= ch && ch <= 'Z')
}

func isDigit(ch byte) bool {
	return '0' <= ch && ch <= '9'
}

func isAlphaNumeric(ch byte) bool {
	return isLetter(ch) || isDigit(ch)
}
