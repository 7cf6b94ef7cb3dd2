package engine

import (
	"fmt"
	"math"
	"time"

	"github.com/ruleforge/ucr/internal/rule"
)

// Handler executes the action of one family of rule types.
//
// Handlers are pure functions of (rule, context): no persistence, no I/O.
// The registry is open: callers register additional handlers at engine
// construction to support new rule types without touching the dispatcher.
type Handler interface {
	// Handles reports whether this handler covers the rule type.
	Handles(t rule.Type) bool

	// Execute runs the rule's action against the context.
	// The condition has already been checked by the dispatcher.
	Execute(r rule.Rule, c Context) Result
}

// Pricing operations.
const (
	OpCalculatePrice      = "calculate_price"
	OpApplyVolumeDiscount = "apply_volume_discount"
)

// ValidationHandler checks context fields against min/max constraints.
type ValidationHandler struct{}

func (ValidationHandler) Handles(t rule.Type) bool { return t == rule.TypeValidation }

// Execute accumulates one message per violated check. A check with a custom
// message uses it; otherwise a default message names the field and bound.
// Success iff no violations.
func (ValidationHandler) Execute(r rule.Rule, c Context) Result {
	res := Result{RuleID: r.ID, RuleName: r.Name, Success: true}
	if r.Action == nil {
		return res
	}

	for _, check := range r.Action.Validations {
		v, numOK := c.float(check.Field)

		if check.Min != nil && (!numOK || v < *check.Min) {
			res.Errors = append(res.Errors, checkMessage(check,
				fmt.Sprintf("%s must be at least %v", check.Field, *check.Min)))
			continue
		}
		if check.Max != nil && (!numOK || v > *check.Max) {
			res.Errors = append(res.Errors, checkMessage(check,
				fmt.Sprintf("%s must be at most %v", check.Field, *check.Max)))
		}
	}

	res.Success = len(res.Errors) == 0
	return res
}

func checkMessage(check rule.FieldCheck, fallback string) string {
	if check.Message != "" {
		return check.Message
	}
	return fallback
}

// PricingHandler computes prices in two modes: markup calculation and
// volume discounting.
type PricingHandler struct{}

func (PricingHandler) Handles(t rule.Type) bool { return t == rule.TypePricing }

func (PricingHandler) Execute(r rule.Rule, c Context) Result {
	if r.Action == nil {
		return failedResult(r.ID, r.Name, "pricing rule has no action")
	}

	switch r.Action.Operation {
	case OpCalculatePrice:
		return calculatePrice(r, c)
	case OpApplyVolumeDiscount:
		return applyVolumeDiscount(r, c)
	default:
		return failedResult(r.ID, r.Name,
			fmt.Sprintf("unknown pricing operation %q", r.Action.Operation))
	}
}

// calculatePrice multiplies the context's standard cost rate by the rule's
// markup multiplier, optionally rounding to 2 decimal places.
func calculatePrice(r rule.Rule, c Context) Result {
	cost, ok := c.float("standardCostRate")
	if !ok {
		return failedResult(r.ID, r.Name, "context has no numeric standardCostRate")
	}
	markup := 1.0
	if r.Parameters != nil && r.Parameters.MarkupMultiplier != 0 {
		markup = r.Parameters.MarkupMultiplier
	}

	price := cost * markup
	if r.Action.RoundTo {
		price = round2(price)
	}

	return Result{
		RuleID:   r.ID,
		RuleName: r.Name,
		Success:  true,
		Data: map[string]any{
			"calculatedPrice":  price,
			"markupMultiplier": markup,
		},
	}
}

// applyVolumeDiscount selects the FIRST tier in list order (not priority)
// whose quantity bounds contain the context quantity, then discounts the
// base price. No matching tier means the original price comes back.
func applyVolumeDiscount(r rule.Rule, c Context) Result {
	qty, qtyOK := c.float("quantity")
	base, baseOK := c.float("basePrice")
	if !qtyOK || !baseOK {
		return failedResult(r.ID, r.Name, "context needs numeric quantity and basePrice")
	}

	price := base
	discount := 0.0
	matched := false
	for _, tier := range r.Action.Tiers {
		if qty >= tier.MinQty && (tier.MaxQty == nil || qty <= *tier.MaxQty) {
			discount = tier.DiscountPercent
			price = base * (1 - discount/100)
			matched = true
			break
		}
	}

	return Result{
		RuleID:   r.ID,
		RuleName: r.Name,
		Success:  true,
		Data: map[string]any{
			"finalPrice":      round2(price),
			"discountPercent": discount,
			"tierMatched":     matched,
		},
	}
}

// ApprovalHandler walks an approval ladder and reports whether the
// context's discount requires sign-off, and from which role.
type ApprovalHandler struct{}

func (ApprovalHandler) Handles(t rule.Type) bool { return t == rule.TypeApproval }

// Execute selects the first level in list order whose threshold the
// discount exceeds. List order decides, not the highest threshold.
func (ApprovalHandler) Execute(r rule.Rule, c Context) Result {
	discount, _ := c.float("discountPercent")

	res := Result{RuleID: r.ID, RuleName: r.Name, Success: true}
	if r.Action != nil {
		for _, level := range r.Action.ApprovalLevels {
			if discount > level.Threshold {
				res.Data = map[string]any{
					"approvalRequired": true,
					"approverRole":     level.Role,
					"reason":           level.Reason,
				}
				return res
			}
		}
	}

	res.Data = map[string]any{"approvalRequired": false}
	return res
}

// DefaultLeadTimeDays applies when a product type has no configured lead time.
const DefaultLeadTimeDays = 3

// slaDateFormat is the wire format for promised dates in result data.
const slaDateFormat = "2006-01-02"

// SLAHandler computes promised dates from lead times and buffers.
type SLAHandler struct {
	clock Clock
}

// NewSLAHandler creates the handler with the clock used when a context
// carries no order date.
func NewSLAHandler(clock Clock) *SLAHandler {
	return &SLAHandler{clock: clock}
}

func (*SLAHandler) Handles(t rule.Type) bool { return t == rule.TypeSLA }

// Execute promises orderDate + leadTime(productType) + bufferDays. With
// excludeWeekends set, the date rolls forward one day at a time while it
// falls on Saturday or Sunday.
func (h *SLAHandler) Execute(r rule.Rule, c Context) Result {
	orderDate, err := h.orderDate(c)
	if err != nil {
		return failedResult(r.ID, r.Name, err.Error())
	}

	lead := DefaultLeadTimeDays
	buffer := 0
	excludeWeekends := false
	if r.Parameters != nil {
		if days, ok := r.Parameters.LeadTimes[c.str("productType")]; ok {
			lead = days
		}
		buffer = r.Parameters.BufferDays
		excludeWeekends = r.Parameters.ExcludeWeekends
	}

	promised := orderDate.AddDate(0, 0, lead+buffer)
	if excludeWeekends {
		for promised.Weekday() == time.Saturday || promised.Weekday() == time.Sunday {
			promised = promised.AddDate(0, 0, 1)
		}
	}

	return Result{
		RuleID:   r.ID,
		RuleName: r.Name,
		Success:  true,
		Data: map[string]any{
			"promisedDate": promised.Format(slaDateFormat),
			"leadTimeDays": lead,
		},
	}
}

// orderDate reads the order date from the context, accepting time.Time or a
// date/RFC 3339 string. A context without one means the order is being
// placed now, so the clock's current time applies.
func (h *SLAHandler) orderDate(c Context) (time.Time, error) {
	v, ok := c["orderDate"]
	if !ok || v == nil {
		return h.clock.Now(), nil
	}

	switch d := v.(type) {
	case time.Time:
		return d, nil
	case string:
		if t, err := time.Parse(slaDateFormat, d); err == nil {
			return t, nil
		}
		if t, err := time.Parse(time.RFC3339, d); err == nil {
			return t, nil
		}
		return time.Time{}, fmt.Errorf("unparseable orderDate %q", d)
	default:
		return time.Time{}, fmt.Errorf("orderDate has unsupported type %T", v)
	}
}

// round2 rounds to 2 decimal places, half away from zero.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// defaultHandlers builds the built-in registry: validation, pricing,
// approval, SLA.
func defaultHandlers(clock Clock) []Handler {
	return []Handler{
		ValidationHandler{},
		PricingHandler{},
		ApprovalHandler{},
		NewSLAHandler(clock),
	}
}
