package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ruleforge/ucr/internal/rule"
	"github.com/ruleforge/ucr/internal/testutil"
)

func floatPtr(v float64) *float64 { return &v }

func TestValidationHandler_MinMax(t *testing.T) {
	r := rule.Rule{
		ID:   "val-1",
		Name: "quantity bounds",
		Type: rule.TypeValidation,
		Action: &rule.Action{
			Validations: []rule.FieldCheck{
				{Field: "quantity", Min: floatPtr(1), Max: floatPtr(1000)},
				{Field: "discountPercent", Max: floatPtr(50), Message: "discount too steep"},
			},
		},
	}
	h := ValidationHandler{}

	res := h.Execute(r, Context{"quantity": 10, "discountPercent": 20})
	assert.True(t, res.Success)
	assert.Empty(t, res.Errors)

	res = h.Execute(r, Context{"quantity": 0, "discountPercent": 60})
	assert.False(t, res.Success)
	require.Len(t, res.Errors, 2)
	assert.Contains(t, res.Errors[0], "quantity must be at least 1")
	assert.Equal(t, "discount too steep", res.Errors[1], "custom message wins")
}

func TestValidationHandler_MissingFieldFailsBoundedCheck(t *testing.T) {
	r := rule.Rule{
		ID:   "val-2",
		Type: rule.TypeValidation,
		Action: &rule.Action{
			Validations: []rule.FieldCheck{{Field: "quantity", Min: floatPtr(1)}},
		},
	}

	res := ValidationHandler{}.Execute(r, Context{})
	assert.False(t, res.Success, "a bounded check on an absent field is a violation")
}

func TestPricingHandler_CalculatePrice(t *testing.T) {
	r := rule.Rule{
		ID:         "price-1",
		Name:       "standard markup",
		Type:       rule.TypePricing,
		Action:     &rule.Action{Operation: OpCalculatePrice, RoundTo: true},
		Parameters: &rule.Parameters{MarkupMultiplier: 1.5},
	}

	res := PricingHandler{}.Execute(r, Context{"standardCostRate": 1000.0})
	require.True(t, res.Success)
	assert.Equal(t, 1500.0, res.Data["calculatedPrice"])
	assert.Equal(t, 1.5, res.Data["markupMultiplier"])
}

func TestPricingHandler_CalculatePriceRounding(t *testing.T) {
	r := rule.Rule{
		ID:         "price-2",
		Type:       rule.TypePricing,
		Action:     &rule.Action{Operation: OpCalculatePrice, RoundTo: true},
		Parameters: &rule.Parameters{MarkupMultiplier: 1.333},
	}

	res := PricingHandler{}.Execute(r, Context{"standardCostRate": 10.0})
	require.True(t, res.Success)
	assert.Equal(t, 13.33, res.Data["calculatedPrice"])
}

func TestPricingHandler_CalculatePriceMissingCost(t *testing.T) {
	r := rule.Rule{
		ID:     "price-3",
		Type:   rule.TypePricing,
		Action: &rule.Action{Operation: OpCalculatePrice},
	}

	res := PricingHandler{}.Execute(r, Context{})
	assert.False(t, res.Success)
	require.NotEmpty(t, res.Errors)
	assert.Contains(t, res.Errors[0], "standardCostRate")
}

func TestPricingHandler_VolumeDiscount(t *testing.T) {
	r := rule.Rule{
		ID:   "vol-1",
		Name: "volume tiers",
		Type: rule.TypePricing,
		Action: &rule.Action{
			Operation: OpApplyVolumeDiscount,
			Tiers: []rule.DiscountTier{
				{MinQty: 1, MaxQty: floatPtr(9), DiscountPercent: 0},
				{MinQty: 10, MaxQty: nil, DiscountPercent: 10},
			},
		},
	}
	h := PricingHandler{}

	res := h.Execute(r, Context{"quantity": 10, "basePrice": 100.0})
	require.True(t, res.Success)
	assert.Equal(t, 90.0, res.Data["finalPrice"], "open-ended tier catches qty 10")
	assert.Equal(t, 10.0, res.Data["discountPercent"])
	assert.Equal(t, true, res.Data["tierMatched"])

	res = h.Execute(r, Context{"quantity": 5, "basePrice": 100.0})
	require.True(t, res.Success)
	assert.Equal(t, 100.0, res.Data["finalPrice"])
	assert.Equal(t, 0.0, res.Data["discountPercent"])
}

func TestPricingHandler_VolumeDiscountNoTierMatch(t *testing.T) {
	r := rule.Rule{
		ID:   "vol-2",
		Type: rule.TypePricing,
		Action: &rule.Action{
			Operation: OpApplyVolumeDiscount,
			Tiers: []rule.DiscountTier{
				{MinQty: 100, MaxQty: nil, DiscountPercent: 25},
			},
		},
	}

	res := PricingHandler{}.Execute(r, Context{"quantity": 3, "basePrice": 80.0})
	require.True(t, res.Success)
	assert.Equal(t, 80.0, res.Data["finalPrice"], "no tier means base price unchanged")
	assert.Equal(t, false, res.Data["tierMatched"])
}

func TestPricingHandler_UnknownOperation(t *testing.T) {
	r := rule.Rule{
		ID:     "price-4",
		Type:   rule.TypePricing,
		Action: &rule.Action{Operation: "negotiate"},
	}

	res := PricingHandler{}.Execute(r, Context{"standardCostRate": 1.0})
	assert.False(t, res.Success)
	require.NotEmpty(t, res.Errors)
	assert.Contains(t, res.Errors[0], "negotiate")
}

func TestApprovalHandler_FirstMatchingLevel(t *testing.T) {
	r := rule.Rule{
		ID:   "appr-1",
		Name: "discount ladder",
		Type: rule.TypeApproval,
		Action: &rule.Action{
			ApprovalLevels: []rule.ApprovalLevel{
				{Threshold: 10, Role: "supervisor", Reason: "discount above 10%"},
				{Threshold: 25, Role: "manager", Reason: "discount above 25%"},
			},
		},
	}
	h := ApprovalHandler{}

	res := h.Execute(r, Context{"discountPercent": 20})
	require.True(t, res.Success)
	assert.Equal(t, true, res.Data["approvalRequired"])
	assert.Equal(t, "supervisor", res.Data["approverRole"],
		"first level in list order wins, not the highest threshold")
	assert.Equal(t, "discount above 10%", res.Data["reason"])
}

func TestApprovalHandler_NoApprovalNeeded(t *testing.T) {
	r := rule.Rule{
		ID:   "appr-2",
		Type: rule.TypeApproval,
		Action: &rule.Action{
			ApprovalLevels: []rule.ApprovalLevel{
				{Threshold: 10, Role: "supervisor"},
			},
		},
	}
	h := ApprovalHandler{}

	res := h.Execute(r, Context{"discountPercent": 10})
	require.True(t, res.Success)
	assert.Equal(t, false, res.Data["approvalRequired"],
		"threshold is exclusive; exactly at threshold needs no approval")
	assert.NotContains(t, res.Data, "approverRole")

	res = h.Execute(r, Context{})
	assert.Equal(t, false, res.Data["approvalRequired"], "no discount, no approval")
}

func slaRule(leadTimes map[string]int, buffer int, excludeWeekends bool) rule.Rule {
	return rule.Rule{
		ID:   "sla-1",
		Name: "delivery promise",
		Type: rule.TypeSLA,
		Parameters: &rule.Parameters{
			LeadTimes:       leadTimes,
			BufferDays:      buffer,
			ExcludeWeekends: excludeWeekends,
		},
	}
}

func TestSLAHandler_LeadTimePlusBuffer(t *testing.T) {
	h := NewSLAHandler(testutil.NewFixedClock("2026-01-02"))
	r := slaRule(map[string]int{"make_to_order": 10, "stock": 1}, 2, true)

	// Friday 2026-01-02 plus 12 days is Wednesday 2026-01-14; no roll.
	res := h.Execute(r, Context{
		"orderDate":   "2026-01-02",
		"productType": "make_to_order",
	})
	require.True(t, res.Success)
	assert.Equal(t, "2026-01-14", res.Data["promisedDate"])
	assert.Equal(t, 10, res.Data["leadTimeDays"])
}

func TestSLAHandler_WeekendRollsToMonday(t *testing.T) {
	h := NewSLAHandler(testutil.NewFixedClock("2026-01-02"))
	r := slaRule(map[string]int{"stock": 1}, 0, true)

	// Friday plus one day is Saturday; rolls through Sunday to Monday.
	res := h.Execute(r, Context{
		"orderDate":   "2026-01-02",
		"productType": "stock",
	})
	require.True(t, res.Success)
	assert.Equal(t, "2026-01-05", res.Data["promisedDate"])
}

func TestSLAHandler_WeekendKeptWhenNotExcluded(t *testing.T) {
	h := NewSLAHandler(testutil.NewFixedClock("2026-01-02"))
	r := slaRule(map[string]int{"stock": 1}, 0, false)

	res := h.Execute(r, Context{
		"orderDate":   "2026-01-02",
		"productType": "stock",
	})
	require.True(t, res.Success)
	assert.Equal(t, "2026-01-03", res.Data["promisedDate"])
}

func TestSLAHandler_UnknownProductTypeUsesDefaultLead(t *testing.T) {
	h := NewSLAHandler(testutil.NewFixedClock("2026-01-05"))
	r := slaRule(map[string]int{"make_to_order": 10}, 0, false)

	res := h.Execute(r, Context{
		"orderDate":   "2026-01-05",
		"productType": "exotic",
	})
	require.True(t, res.Success)
	assert.Equal(t, DefaultLeadTimeDays, res.Data["leadTimeDays"])
	assert.Equal(t, "2026-01-08", res.Data["promisedDate"])
}

func TestSLAHandler_DefaultOrderDate(t *testing.T) {
	h := NewSLAHandler(testutil.NewFixedClock("2026-01-05"))
	r := slaRule(map[string]int{"stock": 2}, 0, false)

	res := h.Execute(r, Context{"productType": "stock"})
	require.True(t, res.Success)
	assert.Equal(t, "2026-01-07", res.Data["promisedDate"],
		"missing orderDate means the order is placed now")
}

func TestSLAHandler_OrderDateShapes(t *testing.T) {
	h := NewSLAHandler(testutil.NewFixedClock("2026-01-05"))
	r := slaRule(nil, 0, false)

	res := h.Execute(r, Context{
		"orderDate": time.Date(2026, 1, 5, 9, 30, 0, 0, time.UTC),
	})
	require.True(t, res.Success)
	assert.Equal(t, "2026-01-08", res.Data["promisedDate"])

	res = h.Execute(r, Context{"orderDate": "2026-01-05T09:30:00Z"})
	require.True(t, res.Success)
	assert.Equal(t, "2026-01-08", res.Data["promisedDate"])

	res = h.Execute(r, Context{"orderDate": "yesterday"})
	assert.False(t, res.Success)
	require.NotEmpty(t, res.Errors)
	assert.Contains(t, res.Errors[0], "orderDate")
}
