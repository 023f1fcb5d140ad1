// sieve/pkg/types/types.go

package types

import (
	"fmt"
	"strings"
)

// Kind identifies one of the closed set of field types supported by
// filter expressions.
type Kind uint8

const (
	KindBool Kind = iota
	KindInt
	KindBytes
	KindIp
	KindArray
	KindMap
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "Bool"
	case KindInt:
		return "Int"
	case KindBytes:
		return "Bytes"
	case KindIp:
		return "Ip"
	case KindArray:
		return "Array"
	case KindMap:
		return "Map"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Type describes the declared type of a field or the resolved type of an
// expression node. Array and Map carry a homogeneous element type; the
// other kinds are scalars.
type Type struct {
	kind Kind
	elem *Type
}

func Bool() Type  { return Type{kind: KindBool} }
func Int() Type   { return Type{kind: KindInt} }
func Bytes() Type { return Type{kind: KindBytes} }
func Ip() Type    { return Type{kind: KindIp} }

// Array returns the type of a homogeneous array with the given element type.
func Array(elem Type) Type {
	e := elem
	return Type{kind: KindArray, elem: &e}
}

// Map returns the type of a byte-string-keyed map with the given value type.
func Map(elem Type) Type {
	e := elem
	return Type{kind: KindMap, elem: &e}
}

func (t Type) Kind() Kind { return t.kind }

// Elem returns the element type of an Array or the value type of a Map.
// The second return is false for scalar kinds.
func (t Type) Elem() (Type, bool) {
	if t.elem == nil {
		return Type{}, false
	}
	return *t.elem, true
}

// Equal reports structural equality of two types.
func (t Type) Equal(other Type) bool {
	if t.kind != other.kind {
		return false
	}
	if t.elem == nil && other.elem == nil {
		return true
	}
	if t.elem == nil || other.elem == nil {
		return false
	}
	return t.elem.Equal(*other.elem)
}

func (t Type) String() string {
	switch t.kind {
	case KindArray:
		return fmt.Sprintf("Array(%s)", t.elem)
	case KindMap:
		return fmt.Sprintf("Map(%s)", t.elem)
	default:
		return t.kind.String()
	}
}

// ParseType parses the textual form produced by String, e.g. "Int" or
// "Array(Bytes)". It is the inverse used for scheme serialization.
func ParseType(s string) (Type, error) {
	s = strings.TrimSpace(s)
	switch s {
	case "Bool":
		return Bool(), nil
	case "Int":
		return Int(), nil
	case "Bytes":
		return Bytes(), nil
	case "Ip":
		return Ip(), nil
	}
	for _, outer := range []struct {
		prefix string
		build  func(Type) Type
	}{
		{"Array(", Array},
		{"Map(", Map},
	} {
		if strings.HasPrefix(s, outer.prefix) && strings.HasSuffix(s, ")") {
			inner := s[len(outer.prefix) : len(s)-1]
			elem, err := ParseType(inner)
			if err != nil {
				return Type{}, err
			}
			return outer.build(elem), nil
		}
	}
	return Type{}, fmt.Errorf("unknown type %q", s)
}

// MarshalJSON encodes the type as its textual form, keeping scheme
// documents readable and portable.
func (t Type) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.String() + `"`), nil
}

func (t *Type) UnmarshalJSON(data []byte) error {
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return fmt.Errorf("type must be a JSON string, got %s", string(data))
	}
	parsed, err := ParseType(string(data[1 : len(data)-1]))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
