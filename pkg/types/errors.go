// sieve/pkg/types/errors.go

package types

import "fmt"

// TypeMismatchError reports a value whose runtime type differs from the
// type expected at that position.
type TypeMismatchError struct {
	Expected Type
	Actual   Type
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("expected value of type %s, but got %s", e.Expected, e.Actual)
}

// DuplicateFieldError reports a repeated field name during scheme
// construction.
type DuplicateFieldError struct {
	Name string
}

func (e *DuplicateFieldError) Error() string {
	return fmt.Sprintf("duplicate field %q in scheme", e.Name)
}

// UnknownFieldError reports a reference to a field name absent from the
// scheme.
type UnknownFieldError struct {
	Name string
}

func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("unknown field %q", e.Name)
}

// FieldBindingError reports a context binding whose value type differs
// from the scheme's declared type for that field. It indicates a caller
// programming error, not a filter-authoring error.
type FieldBindingError struct {
	Field    string
	Expected Type
	Actual   Type
}

func (e *FieldBindingError) Error() string {
	return fmt.Sprintf("field %q binding: expected value of type %s, but got %s", e.Field, e.Expected, e.Actual)
}

// MissingFieldError reports a field that a compiled filter referenced
// during evaluation but that was never bound in the execution context.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("field %q was referenced but not bound in the execution context", e.Field)
}
