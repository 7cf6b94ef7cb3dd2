package harness

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ruleforge/ucr/internal/rule"
)

// Scenario defines a conformance test scenario: a rule set, a pinned clock,
// and a list of evaluation cases with expected results.
type Scenario struct {
	// Name uniquely identifies this scenario; golden files are keyed by it.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description,omitempty"`

	// Now pins the engine clock, formatted YYYY-MM-DD. Required when any
	// rule does date arithmetic; defaults to 2026-01-05 (a Monday).
	Now string `yaml:"now,omitempty"`

	// Rules holds the rule definitions in their JSON schema shape.
	// Kept as raw maps so scenario files use the same camelCase keys as
	// stored rules and CUE packs.
	Rules []map[string]any `yaml:"rules"`

	// Cases are executed in order against the same loaded rule set.
	Cases []Case `yaml:"cases"`
}

// Case is one ExecuteRules call with its expectations.
type Case struct {
	// Name labels the case in failures and golden output.
	Name string `yaml:"name"`

	// TypeFilter narrows the batch to one rule type; empty means all.
	TypeFilter string `yaml:"typeFilter,omitempty"`

	// Context is the evaluation context for this case.
	Context map[string]any `yaml:"context"`

	// Expect lists expected results, matched by ruleId.
	// If empty, the case only records its results for golden comparison.
	Expect []ExpectedResult `yaml:"expect,omitempty"`
}

// ExpectedResult specifies expected behavior for one rule in a case.
// Data is a subset match: only the listed keys are compared.
type ExpectedResult struct {
	RuleID  string         `yaml:"ruleId"`
	Success *bool          `yaml:"success,omitempty"`
	Skipped *bool          `yaml:"skipped,omitempty"`
	Data    map[string]any `yaml:"data,omitempty"`
	Errors  []string       `yaml:"errors,omitempty"`
}

// DefaultNow is the pinned clock date when a scenario omits now.
const DefaultNow = "2026-01-05"

// LoadScenario reads and parses a scenario YAML file.
// Unknown fields are rejected so typos fail loudly instead of silently
// weakening expectations.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks required fields.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(s.Rules) == 0 {
		return fmt.Errorf("at least one rule is required")
	}
	if len(s.Cases) == 0 {
		return fmt.Errorf("at least one case is required")
	}
	for i, c := range s.Cases {
		if c.Name == "" {
			return fmt.Errorf("cases[%d]: name is required", i)
		}
	}
	return nil
}

// decodeRule converts a raw scenario rule map into a typed rule via its
// JSON representation, reusing the schema the repository and packs share.
func decodeRule(raw map[string]any) (rule.Rule, error) {
	data, err := json.Marshal(raw)
	if err != nil {
		return rule.Rule{}, fmt.Errorf("encode rule definition: %w", err)
	}
	var r rule.Rule
	if err := json.Unmarshal(data, &r); err != nil {
		return rule.Rule{}, fmt.Errorf("decode rule definition: %w", err)
	}
	if r.ID == "" {
		return rule.Rule{}, fmt.Errorf("rule definition needs an id")
	}
	if r.Type == "" {
		return rule.Rule{}, fmt.Errorf("rule %s: type is required", r.ID)
	}
	return r, nil
}
