// Package harness runs declarative conformance scenarios against the real
// engine. A scenario seeds an in-memory repository, pins the clock and
// batch tokens, executes its cases, and checks expected results or a
// golden trace.
package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"reflect"

	"github.com/ruleforge/ucr/internal/engine"
	"github.com/ruleforge/ucr/internal/repository"
	"github.com/ruleforge/ucr/internal/rule"
	"github.com/ruleforge/ucr/internal/testutil"
)

// RunResult captures the outcome of every case in a scenario.
type RunResult struct {
	ScenarioName string       `json:"scenarioName"`
	Cases        []CaseResult `json:"cases"`
}

// CaseResult is the engine output for one case.
type CaseResult struct {
	Name    string          `json:"name"`
	Results []engine.Result `json:"results"`
}

// Run executes a scenario against a freshly built engine.
//
// The engine is real: rules flow through rule.Encode into the in-memory
// repository and back through the loader, so scenarios exercise the same
// parse path production uses. Tokens are fixed (batch-1, batch-2, ...) and
// the clock is pinned to the scenario's now date, making output
// deterministic for golden comparison.
func Run(scenario *Scenario) (*RunResult, error) {
	repo := repository.NewMemory()
	for i, raw := range scenario.Rules {
		r, err := decodeRule(raw)
		if err != nil {
			return nil, fmt.Errorf("rules[%d]: %w", i, err)
		}
		if err := repo.AddRule(r); err != nil {
			return nil, fmt.Errorf("rules[%d]: %w", i, err)
		}
	}

	now := scenario.Now
	if now == "" {
		now = DefaultNow
	}

	tokens := make([]string, len(scenario.Cases))
	for i := range tokens {
		tokens[i] = fmt.Sprintf("batch-%d", i+1)
	}

	eng := engine.New(repo,
		engine.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		engine.WithClock(testutil.NewFixedClock(now)),
		engine.WithTokenGenerator(engine.NewFixedGenerator(tokens...)),
	)

	ctx := context.Background()
	if err := eng.Load(ctx, "harness"); err != nil {
		return nil, fmt.Errorf("load rules: %w", err)
	}

	result := &RunResult{ScenarioName: scenario.Name}
	for _, c := range scenario.Cases {
		results, err := eng.ExecuteRules(ctx, engine.Context(c.Context), rule.Type(c.TypeFilter))
		if err != nil {
			return nil, fmt.Errorf("case %q: %w", c.Name, err)
		}
		result.Cases = append(result.Cases, CaseResult{Name: c.Name, Results: results})
	}

	return result, nil
}

// Check compares a run against the scenario's expectations and returns one
// error per mismatch. An empty slice means the scenario passed.
func Check(scenario *Scenario, run *RunResult) []error {
	var errs []error

	for i, c := range scenario.Cases {
		if i >= len(run.Cases) {
			errs = append(errs, fmt.Errorf("case %q: no results recorded", c.Name))
			continue
		}
		results := run.Cases[i].Results

		byID := make(map[string]engine.Result, len(results))
		for _, res := range results {
			byID[res.RuleID] = res
		}

		for _, want := range c.Expect {
			got, ok := byID[want.RuleID]
			if !ok {
				errs = append(errs, fmt.Errorf("case %q: no result for rule %s", c.Name, want.RuleID))
				continue
			}
			errs = append(errs, checkResult(c.Name, want, got)...)
		}
	}

	return errs
}

// checkResult compares one expected result against the actual one.
// Data is a subset match over the listed keys.
func checkResult(caseName string, want ExpectedResult, got engine.Result) []error {
	var errs []error
	prefix := fmt.Sprintf("case %q rule %s", caseName, want.RuleID)

	if want.Success != nil && got.Success != *want.Success {
		errs = append(errs, fmt.Errorf("%s: success = %v, want %v (errors: %v)",
			prefix, got.Success, *want.Success, got.Errors))
	}
	if want.Skipped != nil && got.Skipped() != *want.Skipped {
		errs = append(errs, fmt.Errorf("%s: skipped = %v, want %v",
			prefix, got.Skipped(), *want.Skipped))
	}

	for key, wantVal := range want.Data {
		gotVal, ok := got.Data[key]
		if !ok {
			errs = append(errs, fmt.Errorf("%s: data has no key %q", prefix, key))
			continue
		}
		if !looselyEqual(gotVal, wantVal) {
			errs = append(errs, fmt.Errorf("%s: data[%q] = %v, want %v",
				prefix, key, gotVal, wantVal))
		}
	}

	for _, wantMsg := range want.Errors {
		if !containsString(got.Errors, wantMsg) {
			errs = append(errs, fmt.Errorf("%s: errors %v missing %q",
				prefix, got.Errors, wantMsg))
		}
	}

	return errs
}

// looselyEqual compares across the numeric type gap between YAML-decoded
// expectations (int) and engine output (float64).
func looselyEqual(got, want any) bool {
	if gf, ok := asFloat(got); ok {
		if wf, ok := asFloat(want); ok {
			return gf == wf
		}
	}
	return reflect.DeepEqual(got, want)
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}
