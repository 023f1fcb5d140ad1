// sieve/pkg/runtime/engine.go

package runtime

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"rgehrsitz/sieve/pkg/logging"
	"rgehrsitz/sieve/pkg/scripting"
	"rgehrsitz/sieve/pkg/store"
	"rgehrsitz/sieve/pkg/types"
)

// Engine evaluates a compiled ruleset against incoming events. It keeps
// a field-to-rule dependency index so a single field update only
// re-evaluates the rules that can possibly be affected by it.
type Engine struct {
	ruleset           *Ruleset
	store             store.Store
	vm                *scripting.SafeVM
	scriptTimeout     time.Duration
	priorityThreshold int
	fieldRuleIndex    map[string][]*CompiledRule

	mu      sync.Mutex
	current map[string]types.Value
	stats   Stats
}

// Match reports one rule accepting an event.
type Match struct {
	Ruleset  string `json:"ruleset"`
	Rule     string `json:"rule"`
	Priority int    `json:"priority"`
}

// Stats is a snapshot of engine counters, served by the dashboard.
type Stats struct {
	Ruleset     string            `json:"ruleset"`
	Rules       int               `json:"rules"`
	Evaluations uint64            `json:"evaluations"`
	Matches     uint64            `json:"matches"`
	RuleMatches map[string]uint64 `json:"rule_matches"`
	LastEventAt time.Time         `json:"last_event_at"`
}

// NewEngine builds an engine for a compiled ruleset. st may be nil when
// match publication is not wanted; rules below priorityThreshold are
// loaded but never evaluated.
func NewEngine(rs *Ruleset, st store.Store, priorityThreshold int) *Engine {
	e := &Engine{
		ruleset:           rs,
		store:             st,
		vm:                scripting.NewSafeVM(),
		scriptTimeout:     100 * time.Millisecond,
		priorityThreshold: priorityThreshold,
		fieldRuleIndex:    make(map[string][]*CompiledRule),
		current:           make(map[string]types.Value),
		stats: Stats{
			Ruleset:     rs.Name,
			Rules:       len(rs.Rules),
			RuleMatches: make(map[string]uint64),
		},
	}

	for _, rule := range rs.Rules {
		for _, field := range rule.Filter.Fields() {
			e.fieldRuleIndex[field] = append(e.fieldRuleIndex[field], rule)
		}
		if rule.OnMatch != nil {
			if err := e.vm.SetScript(rule.Name, *rule.OnMatch); err != nil {
				logging.Logger.Warn().Err(err).Str("rule", rule.Name).Msg("Failed to register on_match script")
			}
		}
	}

	logging.Logger.Info().
		Str("ruleset", rs.Name).
		Int("rules", len(rs.Rules)).
		Int("indexed_fields", len(e.fieldRuleIndex)).
		Msg("Engine initialized")
	return e
}

// NewEngineFromFile loads, compiles and indexes a ruleset document from
// disk.
func NewEngineFromFile(filename string, st store.Store, priorityThreshold int) (*Engine, error) {
	rs, err := LoadRulesetFile(filename)
	if err != nil {
		return nil, err
	}
	return NewEngine(rs, st, priorityThreshold), nil
}

// NewEngineFromStore loads a named ruleset document from the store.
func NewEngineFromStore(st store.Store, name string, priorityThreshold int) (*Engine, error) {
	data, err := st.LoadRuleset(name)
	if err != nil {
		return nil, logging.NewError(logging.ErrorTypeStore,
			fmt.Sprintf("failed to load ruleset %q", name), err, nil)
	}
	rs, err := ParseRuleset(data)
	if err != nil {
		return nil, err
	}
	return NewEngine(rs, st, priorityThreshold), nil
}

// Ruleset returns the compiled ruleset the engine runs.
func (e *Engine) Ruleset() *Ruleset { return e.ruleset }

// EvaluateEvent binds a decoded JSON event to a fresh execution context
// and runs every candidate rule against it in priority order. Keys
// outside the scheme are ignored; a field a rule needs but the event
// lacks makes that rule a non-match rather than failing the event.
func (e *Engine) EvaluateEvent(event map[string]interface{}) ([]Match, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ctx, bound, err := e.bindEvent(event)
	if err != nil {
		return nil, err
	}
	return e.evaluate(ctx, e.candidateRules(bound), event), nil
}

// ProcessFieldUpdate folds one field update into the engine's retained
// state and re-evaluates only the rules depending on that field, using
// the full retained state as the execution context.
func (e *Engine) ProcessFieldUpdate(name string, raw interface{}) ([]Match, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	field, ok := e.ruleset.Scheme.Field(name)
	if !ok {
		logging.Logger.Debug().Str("field", name).Msg("Update for field outside the scheme, ignoring")
		return nil, nil
	}
	value, err := types.ValueFromJSON(field.Type(), raw)
	if err != nil {
		return nil, logging.NewError(logging.ErrorTypeRuntime,
			fmt.Sprintf("field %q update rejected", name), err, nil)
	}
	e.current[name] = value

	ctx := types.NewExecutionContext(e.ruleset.Scheme)
	for fieldName, v := range e.current {
		if err := ctx.SetFieldValue(fieldName, v); err != nil {
			return nil, logging.NewError(logging.ErrorTypeRuntime, "retained state binding failed", err, nil)
		}
	}

	event := map[string]interface{}{name: raw}
	return e.evaluate(ctx, e.fieldRuleIndex[name], event), nil
}

// bindEvent converts raw JSON values into typed bindings, returning the
// context and the names that were bound.
func (e *Engine) bindEvent(event map[string]interface{}) (*types.ExecutionContext, []string, error) {
	ctx := types.NewExecutionContext(e.ruleset.Scheme)
	bound := make([]string, 0, len(event))
	for name, raw := range event {
		field, ok := e.ruleset.Scheme.Field(name)
		if !ok {
			logging.Logger.Debug().Str("field", name).Msg("Event key outside the scheme, ignoring")
			continue
		}
		value, err := types.ValueFromJSON(field.Type(), raw)
		if err != nil {
			return nil, nil, logging.NewError(logging.ErrorTypeRuntime,
				fmt.Sprintf("field %q binding rejected", name), err, nil)
		}
		if err := ctx.SetFieldValue(name, value); err != nil {
			return nil, nil, logging.NewError(logging.ErrorTypeRuntime, "event binding failed", err, nil)
		}
		bound = append(bound, name)
	}
	return ctx, bound, nil
}

// candidateRules returns the rules depending on any of the given
// fields, in the ruleset's priority order.
func (e *Engine) candidateRules(fields []string) []*CompiledRule {
	wanted := make(map[string]bool)
	for _, field := range fields {
		for _, rule := range e.fieldRuleIndex[field] {
			wanted[rule.Name] = true
		}
	}
	var out []*CompiledRule
	for _, rule := range e.ruleset.Rules {
		if wanted[rule.Name] {
			out = append(out, rule)
		}
	}
	return out
}

func (e *Engine) evaluate(ctx *types.ExecutionContext, rules []*CompiledRule, event map[string]interface{}) []Match {
	e.stats.Evaluations++
	e.stats.LastEventAt = time.Now()

	var matches []Match
	for _, rule := range rules {
		if rule.Priority < e.priorityThreshold {
			continue
		}
		ok, err := rule.Filter.Execute(ctx)
		if err != nil {
			// A rule that needs more fields than this event carries is
			// simply not a match for it.
			logging.Logger.Debug().Err(err).Str("rule", rule.Name).Msg("Rule skipped")
			continue
		}
		if !ok {
			continue
		}

		match := Match{Ruleset: e.ruleset.Name, Rule: rule.Name, Priority: rule.Priority}
		matches = append(matches, match)
		e.stats.Matches++
		e.stats.RuleMatches[rule.Name]++
		logging.Logger.Debug().Str("rule", rule.Name).Int("priority", rule.Priority).Msg("Rule matched")

		e.publishMatch(match)
		e.runOnMatch(rule, event)
	}
	return matches
}

func (e *Engine) publishMatch(match Match) {
	if e.store == nil {
		return
	}
	payload, err := json.Marshal(match)
	if err != nil {
		logging.Logger.Error().Err(err).Str("rule", match.Rule).Msg("Failed to marshal match")
		return
	}
	if err := e.store.PublishMatch(match.Rule, payload); err != nil {
		logging.Logger.Error().Err(err).Str("rule", match.Rule).Msg("Failed to publish match")
	}
}

func (e *Engine) runOnMatch(rule *CompiledRule, event map[string]interface{}) {
	if rule.OnMatch == nil {
		return
	}
	params := make(map[string]interface{}, len(rule.OnMatch.Params))
	for _, param := range rule.OnMatch.Params {
		if param == "rule" {
			params[param] = rule.Name
			continue
		}
		params[param] = event[param]
	}
	if _, err := e.vm.RunScript(rule.Name, params, e.scriptTimeout); err != nil {
		logging.Logger.Error().Err(err).Str("rule", rule.Name).Msg("on_match script failed")
	}
}

// GetStats returns a copy of the engine counters.
func (e *Engine) GetStats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()

	snapshot := e.stats
	snapshot.RuleMatches = make(map[string]uint64, len(e.stats.RuleMatches))
	for name, n := range e.stats.RuleMatches {
		snapshot.RuleMatches[name] = n
	}
	return snapshot
}
