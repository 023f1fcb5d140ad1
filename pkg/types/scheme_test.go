// sieve/pkg/types/scheme_test.go

package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testScheme(t *testing.T) *Scheme {
	t.Helper()
	s, err := NewScheme(
		FieldDef{Name: "http.host", Type: Bytes()},
		FieldDef{Name: "tcp.port", Type: Int()},
		FieldDef{Name: "ip.src", Type: Ip()},
		FieldDef{Name: "ssl", Type: Bool()},
		FieldDef{Name: "http.headers", Type: Map(Bytes())},
		FieldDef{Name: "tags", Type: Array(Bytes())},
	)
	require.NoError(t, err)
	return s
}

func TestNewSchemeRejectsDuplicates(t *testing.T) {
	_, err := NewScheme(
		FieldDef{Name: "port", Type: Int()},
		FieldDef{Name: "port", Type: Bytes()},
	)
	require.Error(t, err)
	var dup *DuplicateFieldError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "port", dup.Name)
}

func TestSchemeFieldLookup(t *testing.T) {
	s := testScheme(t)

	field, ok := s.Field("tcp.port")
	require.True(t, ok)
	assert.Equal(t, "tcp.port", field.Name())
	assert.Equal(t, 1, field.Index())
	assert.True(t, field.Type().Equal(Int()))

	_, ok = s.Field("nonexistent")
	assert.False(t, ok)

	assert.Equal(t, 6, s.FieldCount())
}

func TestSchemeFieldsAreOrdered(t *testing.T) {
	s := testScheme(t)
	fields := s.Fields()
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
	}
	assert.Equal(t, []string{"http.host", "tcp.port", "ip.src", "ssl", "http.headers", "tags"}, names)
}

func TestSchemeJSONRoundTrip(t *testing.T) {
	s := testScheme(t)

	data, err := json.Marshal(s)
	require.NoError(t, err)

	var decoded Scheme
	require.NoError(t, json.Unmarshal(data, &decoded))

	require.Equal(t, s.FieldCount(), decoded.FieldCount())
	for i, f := range s.Fields() {
		got := decoded.Fields()[i]
		assert.Equal(t, f.Name, got.Name)
		assert.True(t, f.Type.Equal(got.Type))
	}
}

func TestSchemeUnmarshalRejectsDuplicates(t *testing.T) {
	var s Scheme
	err := json.Unmarshal([]byte(`[{"name":"a","type":"Int"},{"name":"a","type":"Bool"}]`), &s)
	assert.Error(t, err)
}
