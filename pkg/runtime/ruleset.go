// sieve/pkg/runtime/ruleset.go

package runtime

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"rgehrsitz/sieve/pkg/compiler"
	"rgehrsitz/sieve/pkg/logging"
	"rgehrsitz/sieve/pkg/scripting"
	"rgehrsitz/sieve/pkg/types"
)

// Rule is one named filter in a ruleset document. Higher priority rules
// are evaluated first. OnMatch is an optional script hook run when the
// rule's filter accepts an event.
type Rule struct {
	Name       string            `json:"name"`
	Expression string            `json:"expression"`
	Priority   int               `json:"priority"`
	OnMatch    *scripting.Script `json:"on_match,omitempty"`
}

type rulesetDoc struct {
	Name   string        `json:"name"`
	Scheme *types.Scheme `json:"scheme"`
	Rules  []Rule        `json:"rules"`
}

// CompiledRule pairs a rule with its compiled filter.
type CompiledRule struct {
	Rule
	Filter *compiler.Filter
}

// Ruleset is a fully compiled ruleset document: a scheme plus rules
// sorted by descending priority (document order breaks ties).
type Ruleset struct {
	Name   string
	Scheme *types.Scheme
	Rules  []*CompiledRule
}

// ParseRuleset parses and compiles a JSON ruleset document. Every rule
// expression is type-checked against the document's scheme up front, so
// a ruleset that loads successfully never fails at evaluation time on a
// grammar or type error.
func ParseRuleset(data []byte) (*Ruleset, error) {
	return ParseRulesetWithOptions(data, compiler.DefaultOptions())
}

// ParseRulesetWithOptions is ParseRuleset with explicit parser
// capability options.
func ParseRulesetWithOptions(data []byte, opts compiler.Options) (*Ruleset, error) {
	var doc rulesetDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, logging.NewError(logging.ErrorTypeParse, "invalid ruleset document", err, nil)
	}
	if doc.Scheme == nil {
		return nil, logging.NewError(logging.ErrorTypeParse, "ruleset document has no scheme", nil, nil)
	}
	if len(doc.Rules) == 0 {
		return nil, logging.NewError(logging.ErrorTypeParse, "ruleset document has no rules", nil,
			map[string]interface{}{"ruleset": doc.Name})
	}

	rs := &Ruleset{Name: doc.Name, Scheme: doc.Scheme}
	seen := make(map[string]bool, len(doc.Rules))
	for i, rule := range doc.Rules {
		if rule.Name == "" {
			return nil, logging.NewError(logging.ErrorTypeParse, "rule has no name", nil,
				map[string]interface{}{"ruleset": doc.Name, "index": i})
		}
		if seen[rule.Name] {
			return nil, logging.NewError(logging.ErrorTypeParse,
				fmt.Sprintf("duplicate rule name %q", rule.Name), nil,
				map[string]interface{}{"ruleset": doc.Name})
		}
		seen[rule.Name] = true

		parsed, err := compiler.ParseWithOptions(rule.Expression, doc.Scheme, opts)
		if err != nil {
			return nil, logging.NewError(logging.ErrorTypeCompile,
				fmt.Sprintf("rule %q failed to compile", rule.Name), err,
				map[string]interface{}{"ruleset": doc.Name, "expression": rule.Expression})
		}
		rs.Rules = append(rs.Rules, &CompiledRule{Rule: rule, Filter: compiler.Compile(parsed)})
	}

	sort.SliceStable(rs.Rules, func(i, j int) bool {
		return rs.Rules[i].Priority > rs.Rules[j].Priority
	})

	logging.Logger.Info().
		Str("ruleset", rs.Name).
		Int("rules", len(rs.Rules)).
		Int("fields", rs.Scheme.FieldCount()).
		Msg("Compiled ruleset")
	return rs, nil
}

// LoadRulesetFile reads and compiles a ruleset document from disk.
func LoadRulesetFile(filename string) (*Ruleset, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, logging.NewError(logging.ErrorTypeStore,
			fmt.Sprintf("failed to read ruleset file %s", filename), err, nil)
	}
	return ParseRuleset(data)
}
