// Package errors provides the categorised error type shared by the lexer,
// parser, analyzer and interpreter.
package errors

import (
	stderrors "errors"
	"fmt"
	"sort"
	"strings"
)

// ErrorCategory represents the pass that produced an error
type ErrorCategory string

const (
	CategorySyntax   ErrorCategory = "SYNTAX"
	CategorySemantic ErrorCategory = "SEMANTIC"
	CategoryRuntime  ErrorCategory = "RUNTIME"
)

// Error codes. Syntax errors all share CodeSyntax; semantic and runtime
// errors reuse the name-resolution codes where the failure is the same.
const (
	CodeSyntax                 = "SYNTAX"
	CodeUnknownType            = "UNKNOWN_TYPE"
	CodeTypeMismatch           = "TYPE_MISMATCH"
	CodeUndefinedVariable      = "UNDEFINED_VARIABLE"
	CodeUndefinedFunction      = "UNDEFINED_FUNCTION"
	CodeUndefinedField         = "UNDEFINED_FIELD"
	CodeUndefinedMethod        = "UNDEFINED_METHOD"
	CodeInvalidStatement       = "INVALID_STATEMENT"
	CodeInvalidAssignment      = "INVALID_ASSIGNMENT"
	CodeInvalidGroup           = "INVALID_GROUP"
	CodeEmptyBlock             = "EMPTY_BLOCK"
	CodeMissingDeclarationType = "MISSING_DECLARATION_TYPE"
	CodeLiteralOutOfRange      = "LITERAL_OUT_OF_RANGE"
	CodeRedefinition           = "REDEFINITION"
	CodeMissingMain            = "MISSING_MAIN"
	CodeDivisionByZero         = "DIVISION_BY_ZERO"
	CodeIndexOutOfRange        = "INDEX_OUT_OF_RANGE"
	CodeCancelled              = "CANCELLED"
	CodeStackOverflow          = "STACK_OVERFLOW"
)

// NoOffset marks an error that has no meaningful source position
const NoOffset = -1

// Error provides a consistent error format across all passes
type Error struct {
	Category ErrorCategory
	Code     string
	Message  string
	Offset   int
	Context  map[string]interface{}
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder
	if e.Code == "" || e.Code == string(e.Category) {
		fmt.Fprintf(&b, "[%s] %s", e.Category, e.Message)
	} else {
		fmt.Fprintf(&b, "[%s:%s] %s", e.Category, e.Code, e.Message)
	}
	if e.Offset >= 0 {
		fmt.Fprintf(&b, " (offset %d)", e.Offset)
	}
	return b.String()
}

// ContextString renders the context map in a stable key order.
func (e *Error) ContextString() string {
	if len(e.Context) == 0 {
		return ""
	}
	keys := make([]string, 0, len(e.Context))
	for k := range e.Context {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, e.Context[k]))
	}
	return strings.Join(parts, " ")
}

// New creates a new categorised error
func New(category ErrorCategory, code, message string, offset int, context map[string]interface{}) *Error {
	return &Error{
		Category: category,
		Code:     code,
		Message:  message,
		Offset:   offset,
		Context:  context,
	}
}

// Syntax creates a parse or lex error at the given character offset
func Syntax(message string, offset int) *Error {
	return New(CategorySyntax, CodeSyntax, message, offset, nil)
}

// Semantic creates an analysis error
func Semantic(code, message string, offset int, context map[string]interface{}) *Error {
	return New(CategorySemantic, code, message, offset, context)
}

// Runtime creates an interpreter error
func Runtime(code, message string, offset int, context map[string]interface{}) *Error {
	return New(CategoryRuntime, code, message, offset, context)
}

// TypeMismatch reports a value of the wrong type in the given category
func TypeMismatch(category ErrorCategory, expected, actual string, offset int) *Error {
	return New(category, CodeTypeMismatch,
		fmt.Sprintf("expected %s, received %s", expected, actual),
		offset,
		map[string]interface{}{"expected": expected, "actual": actual})
}

// Undefined reports an unresolved name; kind selects the code
func Undefined(category ErrorCategory, code, kind, name string, offset int) *Error {
	return New(category, code,
		fmt.Sprintf("the %s %s is not defined", kind, name),
		offset,
		map[string]interface{}{"name": name})
}

// DivisionByZero reports an arithmetic error
func DivisionByZero(offset int) *Error {
	return Runtime(CodeDivisionByZero, "cannot divide by zero", offset, nil)
}

// WithOffset fills in the offset of an error that was created without one.
// Errors that already carry an offset are returned unchanged.
func WithOffset(err error, offset int) error {
	var e *Error
	if stderrors.As(err, &e) && e.Offset < 0 {
		e.Offset = offset
	}
	return err
}

// As extracts the *Error carried by err, if any
func As(err error) (*Error, bool) {
	var e *Error
	if stderrors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// CategoryOf returns the category of err or "" when err is not an *Error
func CategoryOf(err error) ErrorCategory {
	if e, ok := As(err); ok {
		return e.Category
	}
	return ""
}

// CodeOf returns the code of err or "" when err is not an *Error
func CodeOf(err error) string {
	if e, ok := As(err); ok {
		return e.Code
	}
	return ""
}
