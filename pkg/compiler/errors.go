// sieve/pkg/compiler/errors.go

package compiler

import (
	"fmt"

	"rgehrsitz/sieve/pkg/types"
)

// ErrorKind classifies filter-expression compile-time errors. All of
// them represent rejectable user input detected during parsing; none of
// them indicate a process fault.
type ErrorKind int

const (
	ErrLex ErrorKind = iota
	ErrSyntax
	ErrTypeMismatch
	ErrUnknownField
	ErrInvalidLiteral
	ErrUnsupportedOperator
)

func (k ErrorKind) String() string {
	switch k {
	case ErrLex:
		return "lex error"
	case ErrSyntax:
		return "syntax error"
	case ErrTypeMismatch:
		return "type mismatch"
	case ErrUnknownField:
		return "unknown field"
	case ErrInvalidLiteral:
		return "invalid literal"
	case ErrUnsupportedOperator:
		return "unsupported operator"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// ParseError is the typed error returned for any lexing, grammar, type
// or literal failure. Pos is the byte offset into the expression text.
type ParseError struct {
	Kind ErrorKind
	Pos  int
	Msg  string

	// Expected and Actual are set for type mismatches between two
	// concrete types.
	Expected types.Type
	Actual   types.Type
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s at offset %d: %s", e.Kind, e.Pos, e.Msg)
}

func newLexError(pos int, format string, args ...interface{}) *ParseError {
	return &ParseError{Kind: ErrLex, Pos: pos, Msg: fmt.Sprintf(format, args...)}
}

func newSyntaxError(pos int, format string, args ...interface{}) *ParseError {
	return &ParseError{Kind: ErrSyntax, Pos: pos, Msg: fmt.Sprintf(format, args...)}
}

func newTypeMismatch(pos int, expected, actual types.Type) *ParseError {
	return &ParseError{
		Kind:     ErrTypeMismatch,
		Pos:      pos,
		Msg:      fmt.Sprintf("expected value of type %s, but got %s", expected, actual),
		Expected: expected,
		Actual:   actual,
	}
}

func newOperatorMismatch(pos int, op string, ty types.Type) *ParseError {
	return &ParseError{
		Kind: ErrTypeMismatch,
		Pos:  pos,
		Msg:  fmt.Sprintf("operator %q is not applicable to type %s", op, ty),
	}
}

func newUnknownField(pos int, name string) *ParseError {
	return &ParseError{Kind: ErrUnknownField, Pos: pos, Msg: fmt.Sprintf("unknown field %q", name)}
}

func newInvalidLiteral(pos int, format string, args ...interface{}) *ParseError {
	return &ParseError{Kind: ErrInvalidLiteral, Pos: pos, Msg: fmt.Sprintf(format, args...)}
}

func newUnsupportedOperator(pos int, op string) *ParseError {
	return &ParseError{
		Kind: ErrUnsupportedOperator,
		Pos:  pos,
		Msg:  fmt.Sprintf("operator %q is disabled by configuration", op),
	}
}
