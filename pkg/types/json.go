// sieve/pkg/types/json.go

package types

import (
	"fmt"
	"math"
	"net/netip"
	"sort"
)

// ValueFromJSON converts a decoded JSON value (as produced by
// encoding/json into interface{}) into a typed Value, driven by the
// declared type. This is how event payloads received over the wire are
// bound into an execution context: the declared type disambiguates
// strings into byte strings or IP addresses.
//
// JSON objects carry no key order, so Map values are built in sorted
// key order to keep conversion deterministic.
func ValueFromJSON(ty Type, raw interface{}) (Value, error) {
	switch ty.Kind() {
	case KindBool:
		b, ok := raw.(bool)
		if !ok {
			return nil, fmt.Errorf("expected JSON bool for %s, got %T", ty, raw)
		}
		return BoolValue(b), nil
	case KindInt:
		f, ok := raw.(float64)
		if !ok {
			return nil, fmt.Errorf("expected JSON number for %s, got %T", ty, raw)
		}
		if f != math.Trunc(f) {
			return nil, fmt.Errorf("expected integer for %s, got %v", ty, f)
		}
		return IntValue(int64(f)), nil
	case KindBytes:
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("expected JSON string for %s, got %T", ty, raw)
		}
		return BytesValue(s), nil
	case KindIp:
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("expected JSON string for %s, got %T", ty, raw)
		}
		addr, err := netip.ParseAddr(s)
		if err != nil {
			return nil, fmt.Errorf("invalid IP address %q: %w", s, err)
		}
		return IpValue(addr), nil
	case KindArray:
		elem, _ := ty.Elem()
		items, ok := raw.([]interface{})
		if !ok {
			return nil, fmt.Errorf("expected JSON array for %s, got %T", ty, raw)
		}
		arr := NewArrayValue(elem)
		for i, item := range items {
			v, err := ValueFromJSON(elem, item)
			if err != nil {
				return nil, fmt.Errorf("array element %d: %w", i, err)
			}
			if err := arr.Append(v); err != nil {
				return nil, err
			}
		}
		return arr, nil
	case KindMap:
		elem, _ := ty.Elem()
		obj, ok := raw.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("expected JSON object for %s, got %T", ty, raw)
		}
		keys := make([]string, 0, len(obj))
		for key := range obj {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		m := NewMapValue(elem)
		for _, key := range keys {
			v, err := ValueFromJSON(elem, obj[key])
			if err != nil {
				return nil, fmt.Errorf("map key %q: %w", key, err)
			}
			if err := m.Insert(key, v); err != nil {
				return nil, err
			}
		}
		return m, nil
	default:
		return nil, fmt.Errorf("unsupported type %s", ty)
	}
}
