// sieve/pkg/types/context.go

package types

// ExecutionContext binds field names to runtime values for a single
// evaluation. It acts as a map in its public API but stores values in
// index-based slots so that a compiled filter reads them in constant
// time. A context is built fresh per evaluation, never shared between
// goroutines, and discarded afterward.
type ExecutionContext struct {
	scheme *Scheme
	values []Value
}

// NewExecutionContext creates an empty context associated with a
// scheme. The scheme is used to resolve field names and check binding
// types.
func NewExecutionContext(scheme *Scheme) *ExecutionContext {
	return &ExecutionContext{
		scheme: scheme,
		values: make([]Value, scheme.FieldCount()),
	}
}

// Scheme returns the associated scheme.
func (c *ExecutionContext) Scheme() *Scheme { return c.scheme }

// SetFieldValue binds a runtime value to a field name. It fails with an
// UnknownFieldError for names outside the scheme and a
// FieldBindingError when the value's type differs from the declared
// type. Only fields a filter actually references need to be bound.
func (c *ExecutionContext) SetFieldValue(name string, value Value) error {
	field, ok := c.scheme.Field(name)
	if !ok {
		return &UnknownFieldError{Name: name}
	}
	if !value.Type().Equal(field.Type()) {
		return &FieldBindingError{
			Field:    name,
			Expected: field.Type(),
			Actual:   value.Type(),
		}
	}
	c.values[field.Index()] = value
	return nil
}

// FieldValue resolves a field reference lazily at evaluation time. A
// referenced-but-unbound field fails with a MissingFieldError; fields
// never reached by a particular filter are allowed to stay unbound.
func (c *ExecutionContext) FieldValue(field Field) (Value, error) {
	v := c.values[field.Index()]
	if v == nil {
		return nil, &MissingFieldError{Field: field.Name()}
	}
	return v, nil
}
