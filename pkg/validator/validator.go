// sieve/pkg/validator/validator.go

package validator

import (
	"fmt"
	"strings"

	"rgehrsitz/sieve/pkg/runtime"
)

// ValidateRule checks the structural constraints on a single rule that
// the expression compiler does not cover.
func ValidateRule(rule *runtime.Rule) error {
	if strings.TrimSpace(rule.Name) == "" {
		return fmt.Errorf("rule must have a name")
	}
	if strings.TrimSpace(rule.Expression) == "" {
		return fmt.Errorf("rule %q must have an expression", rule.Name)
	}
	if rule.Priority < 0 {
		return fmt.Errorf("rule %q has a negative priority %d", rule.Name, rule.Priority)
	}
	return nil
}

// ValidateDocument fully compiles a ruleset document and applies the
// structural rule checks. A document that validates here loads into the
// engine unchanged.
func ValidateDocument(data []byte) (*runtime.Ruleset, error) {
	rs, err := runtime.ParseRuleset(data)
	if err != nil {
		return nil, err
	}
	for _, rule := range rs.Rules {
		if err := ValidateRule(&rule.Rule); err != nil {
			return nil, err
		}
	}
	return rs, nil
}
