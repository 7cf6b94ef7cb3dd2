package rule

import "encoding/json"

// Type categorizes a rule and selects its action handler.
// The set is open: callers may register handlers for types not listed here.
type Type string

const (
	TypeValidation  Type = "validation"
	TypePricing     Type = "pricing"
	TypeApproval    Type = "approval"
	TypeSLA         Type = "sla"
	TypeCalculation Type = "calculation"
	TypeDefaulting  Type = "defaulting"
)

// Status marks whether a rule participates in evaluation.
// Only active rules are ever loaded into an engine.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// DefaultPriority is assigned when a rule record carries no priority.
// Higher priorities evaluate first.
const DefaultPriority = 100

// Rule is a fully parsed, immutable unit of business logic.
//
// Rules are produced by ParseRule from untyped repository records and are
// never mutated afterwards. Scope, Condition, and Action are optional: a nil
// Scope matches every context and a nil Condition is always true.
type Rule struct {
	ID                 string      `json:"id"`
	Name               string      `json:"name"`
	Type               Type        `json:"type"`
	ClassificationCode string      `json:"classificationCode,omitempty"`
	Status             Status      `json:"status"`
	Priority           int         `json:"priority"`
	Scope              *Scope      `json:"scope,omitempty"`
	Condition          *Condition  `json:"condition,omitempty"`
	Action             *Action     `json:"action,omitempty"`
	Parameters         *Parameters `json:"parameters,omitempty"`
}

// BlockOnFailure reports whether a failed execution of this rule should
// stop the remainder of the batch.
func (r Rule) BlockOnFailure() bool {
	return r.Parameters != nil && r.Parameters.BlockOnFailure
}

// Scope restricts which contexts a rule applies to. All present predicates
// must hold (logical AND). Extra holds additional equality predicates keyed
// by context field name; it is populated from any scope keys beyond the two
// declared ones.
type Scope struct {
	EntityType            string
	ClassificationPattern string
	Extra                 map[string]any
}

// scopeKnown mirrors the declared scope fields for JSON decoding.
type scopeKnown struct {
	EntityType            string `json:"entityType,omitempty"`
	ClassificationPattern string `json:"classificationPattern,omitempty"`
}

// UnmarshalJSON splits the declared predicates from the extensible ones.
// Unknown keys become Extra equality predicates.
func (s *Scope) UnmarshalJSON(data []byte) error {
	var known scopeKnown
	if err := json.Unmarshal(data, &known); err != nil {
		return err
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	delete(raw, "entityType")
	delete(raw, "classificationPattern")

	s.EntityType = known.EntityType
	s.ClassificationPattern = known.ClassificationPattern
	if len(raw) > 0 {
		s.Extra = raw
	} else {
		s.Extra = nil
	}
	return nil
}

// MarshalJSON re-merges the declared predicates with Extra.
func (s Scope) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(s.Extra)+2)
	for k, v := range s.Extra {
		out[k] = v
	}
	if s.EntityType != "" {
		out["entityType"] = s.EntityType
	}
	if s.ClassificationPattern != "" {
		out["classificationPattern"] = s.ClassificationPattern
	}
	return json.Marshal(out)
}

// FieldCheck is a single validation constraint on one context field.
type FieldCheck struct {
	Field   string   `json:"field"`
	Min     *float64 `json:"min,omitempty"`
	Max     *float64 `json:"max,omitempty"`
	Message string   `json:"message,omitempty"`
}

// DiscountTier is one row of a volume discount ladder. Tiers are examined
// in list order; MaxQty nil means the tier is open-ended.
type DiscountTier struct {
	MinQty          float64  `json:"minQty"`
	MaxQty          *float64 `json:"maxQty,omitempty"`
	DiscountPercent float64  `json:"discountPercent"`
}

// ApprovalLevel is one rung of an approval ladder, examined in list order.
type ApprovalLevel struct {
	Threshold float64 `json:"threshold"`
	Role      string  `json:"role"`
	Reason    string  `json:"reason,omitempty"`
}

// Action is the type-specific payload a handler consumes when a rule fires.
// Only the fields relevant to the rule's type are populated; Extra retains
// the complete decoded payload so extension handlers can read fields the
// typed model does not declare.
type Action struct {
	Operation      string
	RoundTo        bool
	Validations    []FieldCheck
	Tiers          []DiscountTier
	ApprovalLevels []ApprovalLevel
	Extra          map[string]any
}

type actionKnown struct {
	Operation      string          `json:"operation,omitempty"`
	RoundTo        bool            `json:"roundTo,omitempty"`
	Validations    []FieldCheck    `json:"validations,omitempty"`
	Tiers          []DiscountTier  `json:"tiers,omitempty"`
	ApprovalLevels []ApprovalLevel `json:"approvalLevels,omitempty"`
}

// UnmarshalJSON decodes the declared fields and keeps the raw payload in Extra.
func (a *Action) UnmarshalJSON(data []byte) error {
	var known actionKnown
	if err := json.Unmarshal(data, &known); err != nil {
		return err
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	a.Operation = known.Operation
	a.RoundTo = known.RoundTo
	a.Validations = known.Validations
	a.Tiers = known.Tiers
	a.ApprovalLevels = known.ApprovalLevels
	if len(raw) > 0 {
		a.Extra = raw
	} else {
		a.Extra = nil
	}
	return nil
}

// MarshalJSON emits Extra with the typed fields layered on top, so payloads
// round-trip through storage without losing extension fields.
func (a Action) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(a.Extra)+5)
	for k, v := range a.Extra {
		out[k] = v
	}
	if a.Operation != "" {
		out["operation"] = a.Operation
	}
	if a.RoundTo {
		out["roundTo"] = true
	}
	if a.Validations != nil {
		out["validations"] = a.Validations
	}
	if a.Tiers != nil {
		out["tiers"] = a.Tiers
	}
	if a.ApprovalLevels != nil {
		out["approvalLevels"] = a.ApprovalLevels
	}
	return json.Marshal(out)
}

// Parameters is type-specific configuration that tunes handler behavior,
// plus the cross-cutting blockOnFailure flag read by the orchestrator.
type Parameters struct {
	BlockOnFailure   bool
	MarkupMultiplier float64
	LeadTimes        map[string]int
	BufferDays       int
	ExcludeWeekends  bool
	Extra            map[string]any
}

type parametersKnown struct {
	BlockOnFailure   bool           `json:"blockOnFailure,omitempty"`
	MarkupMultiplier float64        `json:"markupMultiplier,omitempty"`
	LeadTimes        map[string]int `json:"leadTimes,omitempty"`
	BufferDays       int            `json:"bufferDays,omitempty"`
	ExcludeWeekends  bool           `json:"excludeWeekends,omitempty"`
}

// UnmarshalJSON decodes the declared fields and keeps the raw payload in Extra.
func (p *Parameters) UnmarshalJSON(data []byte) error {
	var known parametersKnown
	if err := json.Unmarshal(data, &known); err != nil {
		return err
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	p.BlockOnFailure = known.BlockOnFailure
	p.MarkupMultiplier = known.MarkupMultiplier
	p.LeadTimes = known.LeadTimes
	p.BufferDays = known.BufferDays
	p.ExcludeWeekends = known.ExcludeWeekends
	if len(raw) > 0 {
		p.Extra = raw
	} else {
		p.Extra = nil
	}
	return nil
}

// MarshalJSON emits Extra with the typed fields layered on top.
func (p Parameters) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(p.Extra)+5)
	for k, v := range p.Extra {
		out[k] = v
	}
	if p.BlockOnFailure {
		out["blockOnFailure"] = true
	}
	if p.MarkupMultiplier != 0 {
		out["markupMultiplier"] = p.MarkupMultiplier
	}
	if p.LeadTimes != nil {
		out["leadTimes"] = p.LeadTimes
	}
	if p.BufferDays != 0 {
		out["bufferDays"] = p.BufferDays
	}
	if p.ExcludeWeekends {
		out["excludeWeekends"] = true
	}
	return json.Marshal(out)
}
