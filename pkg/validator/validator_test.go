// sieve/pkg/validator/validator_test.go

package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rgehrsitz/sieve/pkg/runtime"
)

func TestValidateRule(t *testing.T) {
	tests := []struct {
		name    string
		rule    runtime.Rule
		wantErr string
	}{
		{
			name: "valid rule",
			rule: runtime.Rule{Name: "block-bots", Expression: `http.user_agent contains "bot"`, Priority: 10},
		},
		{
			name:    "blank name",
			rule:    runtime.Rule{Name: "  ", Expression: "tcp.port == 80", Priority: 1},
			wantErr: "must have a name",
		},
		{
			name:    "blank expression",
			rule:    runtime.Rule{Name: "empty", Expression: "   ", Priority: 1},
			wantErr: "must have an expression",
		},
		{
			name:    "negative priority",
			rule:    runtime.Rule{Name: "below", Expression: "ssl", Priority: -3},
			wantErr: "negative priority",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRule(&tt.rule)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateDocument(t *testing.T) {
	doc := []byte(`{
		"name": "edge",
		"scheme": [
			{"name": "http.user_agent", "type": "Bytes"},
			{"name": "tcp.port", "type": "Int"}
		],
		"rules": [
			{"name": "block-bots", "expression": "http.user_agent contains \"bot\"", "priority": 10},
			{"name": "plain-http", "expression": "tcp.port == 80", "priority": 1}
		]
	}`)

	rs, err := ValidateDocument(doc)
	require.NoError(t, err)
	assert.Equal(t, "edge", rs.Name)
	assert.Len(t, rs.Rules, 2)
}

func TestValidateDocumentRejectsBadExpression(t *testing.T) {
	doc := []byte(`{
		"name": "edge",
		"scheme": [{"name": "tcp.port", "type": "Int"}],
		"rules": [{"name": "bad", "expression": "tcp.port == \"http\"", "priority": 1}]
	}`)

	_, err := ValidateDocument(doc)
	assert.Error(t, err)
}

func TestValidateDocumentRejectsNegativePriority(t *testing.T) {
	doc := []byte(`{
		"name": "edge",
		"scheme": [{"name": "tcp.port", "type": "Int"}],
		"rules": [{"name": "below", "expression": "tcp.port == 80", "priority": -1}]
	}`)

	_, err := ValidateDocument(doc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "negative priority")
}
