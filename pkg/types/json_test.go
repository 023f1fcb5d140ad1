// sieve/pkg/types/json_test.go

package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeJSON(t *testing.T, s string) interface{} {
	t.Helper()
	var raw interface{}
	require.NoError(t, json.Unmarshal([]byte(s), &raw))
	return raw
}

func TestValueFromJSON(t *testing.T) {
	tests := []struct {
		name      string
		ty        Type
		input     string
		expected  string
		expectErr bool
	}{
		{"Bool", Bool(), `true`, "true", false},
		{"Int", Int(), `42`, "42", false},
		{"Int rejects fraction", Int(), `1.5`, "", true},
		{"Int rejects string", Int(), `"42"`, "", true},
		{"Bytes", Bytes(), `"hello"`, `"hello"`, false},
		{"Ip v4", Ip(), `"10.1.2.3"`, "10.1.2.3", false},
		{"Ip v6", Ip(), `"fe80::1"`, "fe80::1", false},
		{"Ip rejects garbage", Ip(), `"not-an-ip"`, "", true},
		{"Array", Array(Int()), `[1, 2, 3]`, "[1, 2, 3]", false},
		{"Array rejects mixed", Array(Int()), `[1, "two"]`, "", true},
		{"Map", Map(Bytes()), `{"b":"bee","a":"ay"}`, `{"a": "ay", "b": "bee"}`, false},
		{"Map rejects non-object", Map(Bytes()), `[1]`, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValueFromJSON(tt.ty, decodeJSON(t, tt.input))
			if tt.expectErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, got.Type().Equal(tt.ty))
			assert.Equal(t, tt.expected, got.String())
		})
	}
}

func TestValueFromJSONMapOrderIsDeterministic(t *testing.T) {
	// JSON objects are unordered, so conversion sorts keys.
	v, err := ValueFromJSON(Map(Int()), decodeJSON(t, `{"z":1,"a":2,"m":3}`))
	require.NoError(t, err)
	m := v.(*MapValue)
	assert.Equal(t, []string{"a", "m", "z"}, m.Keys())
}
