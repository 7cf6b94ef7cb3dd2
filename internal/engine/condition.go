package engine

import (
	"fmt"
	"strings"

	"github.com/ruleforge/ucr/internal/rule"
)

// DefaultMaxConditionDepth bounds condition-tree recursion. Rule sets are
// data supplied at runtime, so a pathologically nested tree must not be able
// to exhaust the stack; past the cap a node resolves to false.
const DefaultMaxConditionDepth = 32

// evalCondition recursively evaluates a boolean expression tree against the
// context.
//
// Fail-closed: an unrecognized node type or operator, or a malformed node,
// evaluates to false rather than erroring. A malformed rule must gate its
// own action off, never block unrelated business flow.
func (e *Engine) evalCondition(cond *rule.Condition, c Context, depth int) bool {
	if cond == nil {
		return true
	}
	if depth > e.maxDepth {
		e.log.Warn("condition depth cap exceeded, resolving false",
			"depth", depth,
			"max_depth", e.maxDepth,
		)
		return false
	}

	switch strings.ToUpper(cond.Type) {
	case rule.CondAlways:
		return true

	case rule.CondAnd:
		for _, sub := range cond.Conditions {
			if !e.evalCondition(sub, c, depth+1) {
				return false
			}
		}
		return true

	case rule.CondOr:
		for _, sub := range cond.Conditions {
			if e.evalCondition(sub, c, depth+1) {
				return true
			}
		}
		return false

	case rule.CondExists:
		return c.has(cond.Field)

	case "":
		return evalLeaf(cond, c)

	default:
		return false
	}
}

// evalLeaf evaluates an operator predicate against context[field].
// Unknown operators resolve false (fail-closed).
func evalLeaf(cond *rule.Condition, c Context) bool {
	if cond.Operator == "" || cond.Field == "" {
		return false
	}

	switch cond.Operator {
	case rule.OpExists:
		return c.has(cond.Field)

	case rule.OpEquals:
		return c.has(cond.Field) && looseEqual(c[cond.Field], cond.Value)

	case rule.OpNotEquals:
		return !looseEqual(c[cond.Field], cond.Value)

	case rule.OpGreaterThan:
		got, want, ok := numericPair(c, cond)
		return ok && got > want

	case rule.OpLessThan:
		got, want, ok := numericPair(c, cond)
		return ok && got < want

	case rule.OpGreaterThanOrEqual:
		got, want, ok := numericPair(c, cond)
		return ok && got >= want

	case rule.OpLessThanOrEqual:
		got, want, ok := numericPair(c, cond)
		return ok && got <= want

	case rule.OpIn:
		items, ok := cond.Value.([]any)
		if !ok || !c.has(cond.Field) {
			return false
		}
		for _, item := range items {
			if looseEqual(c[cond.Field], item) {
				return true
			}
		}
		return false

	case rule.OpContains:
		return evalContains(c[cond.Field], cond.Value)

	default:
		return false
	}
}

// numericPair coerces both sides of a comparison to float64.
func numericPair(c Context, cond *rule.Condition) (got, want float64, ok bool) {
	got, gotOK := c.float(cond.Field)
	want, wantOK := toFloat(cond.Value)
	return got, want, gotOK && wantOK
}

// evalContains handles both string containment and slice membership,
// depending on the shape of the context value.
func evalContains(haystack, needle any) bool {
	switch h := haystack.(type) {
	case string:
		n, ok := needle.(string)
		return ok && strings.Contains(h, n)
	case []any:
		for _, item := range h {
			if looseEqual(item, needle) {
				return true
			}
		}
		return false
	case []string:
		n, ok := needle.(string)
		if !ok {
			return false
		}
		for _, item := range h {
			if item == n {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// condSummary renders a short description of a condition for debug logs.
func condSummary(cond *rule.Condition) string {
	if cond == nil {
		return "<none>"
	}
	if cond.Type != "" {
		return fmt.Sprintf("%s(%d)", cond.Type, len(cond.Conditions))
	}
	return fmt.Sprintf("%s %s", cond.Field, cond.Operator)
}
