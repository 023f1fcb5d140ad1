// sieve/pkg/types/scheme.go

package types

import "encoding/json"

// FieldDef is one (name, type) pair supplied by the caller when
// building a scheme. The JSON form is used for portable rule-set
// distribution.
type FieldDef struct {
	Name string `json:"name"`
	Type Type   `json:"type"`
}

// Field is a resolved reference into a scheme: the declared type plus a
// stable index used for constant-time value access during execution.
type Field struct {
	name  string
	index int
	ty    Type
}

func (f Field) Name() string { return f.name }
func (f Field) Index() int   { return f.index }
func (f Field) Type() Type   { return f.ty }

// Scheme is an ordered, immutable registry mapping field names to
// types. It is built once at startup and shared by pointer across
// every parser invocation and execution context; nothing mutates it
// after construction, so concurrent readers need no locking.
type Scheme struct {
	fields []FieldDef
	index  map[string]int
}

// NewScheme builds a scheme from ordered field definitions. It fails
// with a DuplicateFieldError if a name repeats.
func NewScheme(fields ...FieldDef) (*Scheme, error) {
	s := &Scheme{
		fields: make([]FieldDef, len(fields)),
		index:  make(map[string]int, len(fields)),
	}
	copy(s.fields, fields)
	for i, fd := range fields {
		if _, ok := s.index[fd.Name]; ok {
			return nil, &DuplicateFieldError{Name: fd.Name}
		}
		s.index[fd.Name] = i
	}
	return s, nil
}

// Field resolves a field name to its declared type and index. Used
// during parsing; evaluation trusts the already-resolved references.
func (s *Scheme) Field(name string) (Field, bool) {
	i, ok := s.index[name]
	if !ok {
		return Field{}, false
	}
	return Field{name: name, index: i, ty: s.fields[i].Type}, true
}

// FieldCount returns the number of declared fields.
func (s *Scheme) FieldCount() int { return len(s.fields) }

// Fields returns a copy of the declared fields in registration order.
func (s *Scheme) Fields() []FieldDef {
	out := make([]FieldDef, len(s.fields))
	copy(out, s.fields)
	return out
}

// MarshalJSON encodes the scheme as an ordered array of field
// definitions so that field order survives a round trip.
func (s *Scheme) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.fields)
}

func (s *Scheme) UnmarshalJSON(data []byte) error {
	var fields []FieldDef
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	built, err := NewScheme(fields...)
	if err != nil {
		return err
	}
	*s = *built
	return nil
}
