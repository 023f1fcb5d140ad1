// sieve/pkg/types/value.go

package types

import (
	"bytes"
	"fmt"
	"net/netip"
	"strconv"
	"strings"
)

// Value is a runtime value supplied to an execution context or parsed
// from a filter literal. The set of implementations is closed and
// mirrors the Type kinds exactly; the evaluator switches over them
// exhaustively.
type Value interface {
	Type() Type
	String() string
}

type BoolValue bool

func (v BoolValue) Type() Type     { return Bool() }
func (v BoolValue) String() string { return strconv.FormatBool(bool(v)) }

type IntValue int64

func (v IntValue) Type() Type     { return Int() }
func (v IntValue) String() string { return strconv.FormatInt(int64(v), 10) }

// BytesValue is a raw byte sequence. ASCII strings are a constrained
// view of the same type; the two are interchangeable at runtime.
type BytesValue []byte

func (v BytesValue) Type() Type     { return Bytes() }
func (v BytesValue) String() string { return strconv.Quote(string(v)) }

// IpValue is a normalized IPv4 or IPv6 address. Both families share a
// single type so that interop comparisons are possible.
type IpValue netip.Addr

func (v IpValue) Type() Type     { return Ip() }
func (v IpValue) String() string { return netip.Addr(v).String() }

// Addr returns the underlying address.
func (v IpValue) Addr() netip.Addr { return netip.Addr(v) }

// ArrayValue is a homogeneous array indexed by non-negative integers.
type ArrayValue struct {
	elem  Type
	items []Value
}

// NewArrayValue creates an empty array whose elements must all have the
// given type.
func NewArrayValue(elem Type) *ArrayValue {
	return &ArrayValue{elem: elem}
}

func (v *ArrayValue) Type() Type { return Array(v.elem) }

// Append adds an element, failing with a TypeMismatchError if its type
// differs from the array's element type.
func (v *ArrayValue) Append(item Value) error {
	if !item.Type().Equal(v.elem) {
		return &TypeMismatchError{Expected: v.elem, Actual: item.Type()}
	}
	v.items = append(v.items, item)
	return nil
}

func (v *ArrayValue) Len() int { return len(v.items) }

// Get returns the element at index i, or false if i is out of range.
func (v *ArrayValue) Get(i int) (Value, bool) {
	if i < 0 || i >= len(v.items) {
		return nil, false
	}
	return v.items[i], true
}

// Contains reports whether any element equals item. Linear scan by
// element-type equality.
func (v *ArrayValue) Contains(item Value) bool {
	for _, it := range v.items {
		if Equal(it, item) {
			return true
		}
	}
	return false
}

func (v *ArrayValue) String() string {
	parts := make([]string, len(v.items))
	for i, it := range v.items {
		parts[i] = it.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// MapValue is a homogeneous map keyed by byte strings. Insertion order
// is preserved.
type MapValue struct {
	elem    Type
	keys    []string
	entries map[string]Value
}

// NewMapValue creates an empty map whose values must all have the given
// type.
func NewMapValue(elem Type) *MapValue {
	return &MapValue{elem: elem, entries: make(map[string]Value)}
}

func (v *MapValue) Type() Type { return Map(v.elem) }

// Insert sets key to item, failing with a TypeMismatchError if the item
// type differs from the map's value type. Inserting an existing key
// keeps its original position.
func (v *MapValue) Insert(key string, item Value) error {
	if !item.Type().Equal(v.elem) {
		return &TypeMismatchError{Expected: v.elem, Actual: item.Type()}
	}
	if _, ok := v.entries[key]; !ok {
		v.keys = append(v.keys, key)
	}
	v.entries[key] = item
	return nil
}

func (v *MapValue) Len() int { return len(v.keys) }

// Get returns the value stored under key.
func (v *MapValue) Get(key string) (Value, bool) {
	item, ok := v.entries[key]
	return item, ok
}

// Keys returns the keys in insertion order.
func (v *MapValue) Keys() []string {
	out := make([]string, len(v.keys))
	copy(out, v.keys)
	return out
}

// Contains reports whether any stored value equals item.
func (v *MapValue) Contains(item Value) bool {
	for _, key := range v.keys {
		if Equal(v.entries[key], item) {
			return true
		}
	}
	return false
}

func (v *MapValue) String() string {
	parts := make([]string, len(v.keys))
	for i, key := range v.keys {
		parts[i] = fmt.Sprintf("%q: %s", key, v.entries[key])
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// Equal reports whether two values are equal. Values of different types
// are never equal.
func Equal(a, b Value) bool {
	if !a.Type().Equal(b.Type()) {
		return false
	}
	switch av := a.(type) {
	case BoolValue:
		return av == b.(BoolValue)
	case IntValue:
		return av == b.(IntValue)
	case BytesValue:
		return bytes.Equal(av, b.(BytesValue))
	case IpValue:
		return netip.Addr(av) == netip.Addr(b.(IpValue))
	case *ArrayValue:
		bv := b.(*ArrayValue)
		if len(av.items) != len(bv.items) {
			return false
		}
		for i := range av.items {
			if !Equal(av.items[i], bv.items[i]) {
				return false
			}
		}
		return true
	case *MapValue:
		bv := b.(*MapValue)
		if len(av.keys) != len(bv.keys) {
			return false
		}
		for key, item := range av.entries {
			other, ok := bv.entries[key]
			if !ok || !Equal(item, other) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Compare orders two values of the same type. The second return is
// false when the type has no defined ordering (Bool, Array, Map) or the
// types differ. Int uses signed comparison, Bytes lexicographic byte
// comparison, Ip numeric address comparison.
func Compare(a, b Value) (int, bool) {
	if !a.Type().Equal(b.Type()) {
		return 0, false
	}
	switch av := a.(type) {
	case IntValue:
		bv := b.(IntValue)
		switch {
		case av < bv:
			return -1, true
		case av > bv:
			return 1, true
		default:
			return 0, true
		}
	case BytesValue:
		return bytes.Compare(av, b.(BytesValue)), true
	case IpValue:
		return netip.Addr(av).Compare(netip.Addr(b.(IpValue))), true
	default:
		return 0, false
	}
}
