package rulefile

import (
	"testing"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ruleforge/ucr/internal/rule"
)

func compileOne(t *testing.T, src, path string) (*rule.Rule, error) {
	t.Helper()
	ctx := cuecontext.New()
	v := ctx.CompileString(src)
	require.NoError(t, v.Err())
	return CompileRule(v.LookupPath(cue.ParsePath(path)))
}

func TestCompileRuleBasic(t *testing.T) {
	r, err := compileOne(t, `
		rules: "standard-markup": {
			type:     "pricing"
			priority: 150
			scope: {
				entityType:            "order"
				classificationPattern: "ELEC-*"
			}
			condition: {
				field:    "standardCostRate"
				operator: "exists"
			}
			action: {
				operation: "calculate_price"
				roundTo:   true
			}
			parameters: {
				markupMultiplier: 1.5
			}
		}
	`, `rules."standard-markup"`)
	require.NoError(t, err)

	assert.Equal(t, "standard-markup", r.Name)
	assert.Equal(t, rule.TypePricing, r.Type)
	assert.Equal(t, 150, r.Priority)
	assert.Equal(t, rule.StatusActive, r.Status, "status defaults to active")

	require.NotNil(t, r.Scope)
	assert.Equal(t, "order", r.Scope.EntityType)
	assert.Equal(t, "ELEC-*", r.Scope.ClassificationPattern)

	require.NotNil(t, r.Condition)
	assert.Equal(t, rule.OpExists, r.Condition.Operator)

	require.NotNil(t, r.Action)
	assert.Equal(t, "calculate_price", r.Action.Operation)
	assert.True(t, r.Action.RoundTo)

	require.NotNil(t, r.Parameters)
	assert.Equal(t, 1.5, r.Parameters.MarkupMultiplier)
}

func TestCompileRuleDefaults(t *testing.T) {
	r, err := compileOne(t, `
		rules: minimal: {
			type: "validation"
		}
	`, "rules.minimal")
	require.NoError(t, err)

	assert.Equal(t, "minimal", r.Name)
	assert.Equal(t, rule.DefaultPriority, r.Priority)
	assert.Empty(t, r.ID, "the importer assigns IDs, not the pack")
	assert.Nil(t, r.Scope)
	assert.Nil(t, r.Condition)
	assert.Nil(t, r.Action)
	assert.Nil(t, r.Parameters)
}

func TestCompileRuleExplicitNameOverridesLabel(t *testing.T) {
	r, err := compileOne(t, `
		rules: label: {
			type: "sla"
			name: "delivery promise"
			id:   "sla-7"
		}
	`, "rules.label")
	require.NoError(t, err)

	assert.Equal(t, "delivery promise", r.Name)
	assert.Equal(t, "sla-7", r.ID)
}

func TestCompileRuleNestedCondition(t *testing.T) {
	r, err := compileOne(t, `
		rules: gated: {
			type: "approval"
			condition: {
				type: "AND"
				conditions: [
					{field: "discountPercent", operator: "greater_than", value: 0},
					{type: "OR", conditions: [
						{field: "region", operator: "equals", value: "EU"},
						{field: "region", operator: "equals", value: "UK"},
					]},
				]
			}
			action: {
				approvalLevels: [
					{threshold: 10, role: "supervisor", reason: "above 10%"},
				]
			}
		}
	`, "rules.gated")
	require.NoError(t, err)

	require.NotNil(t, r.Condition)
	assert.Equal(t, rule.CondAnd, r.Condition.Type)
	require.Len(t, r.Condition.Conditions, 2)
	assert.Equal(t, rule.CondOr, r.Condition.Conditions[1].Type)

	require.NotNil(t, r.Action)
	require.Len(t, r.Action.ApprovalLevels, 1)
	assert.Equal(t, "supervisor", r.Action.ApprovalLevels[0].Role)
}

func TestCompileRuleMissingType(t *testing.T) {
	_, err := compileOne(t, `
		rules: untyped: {
			priority: 10
		}
	`, "rules.untyped")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "type")
	assert.Contains(t, err.Error(), "required")
}

func TestCompileRuleNonConcreteStruct(t *testing.T) {
	_, err := compileOne(t, `
		rules: open: {
			type: "pricing"
			parameters: {
				markupMultiplier: number
			}
		}
	`, "rules.open")

	require.Error(t, err)
	var compileErr *CompileError
	require.ErrorAs(t, err, &compileErr)
	assert.Equal(t, "parameters", compileErr.Field)
}

func TestCompileRuleBadTypeKind(t *testing.T) {
	_, err := compileOne(t, `
		rules: numeric: {
			type: 42
		}
	`, "rules.numeric")

	require.Error(t, err)
}
