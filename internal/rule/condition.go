package rule

// Condition node types. A node with an empty Type is a leaf predicate
// evaluated through its Operator.
const (
	CondAlways = "ALWAYS"
	CondAnd    = "AND"
	CondOr     = "OR"
	CondExists = "EXISTS"
)

// Leaf operators. The set is open; the evaluator resolves anything it does
// not recognize to false rather than failing the rule.
const (
	OpExists             = "exists"
	OpEquals             = "equals"
	OpNotEquals          = "not_equals"
	OpGreaterThan        = "greater_than"
	OpLessThan           = "less_than"
	OpGreaterThanOrEqual = "greater_than_or_equal"
	OpLessThanOrEqual    = "less_than_or_equal"
	OpIn                 = "in"
	OpContains           = "contains"
)

// Condition is a boolean expression tree gating whether a matched rule's
// action executes. A nil Condition is always true.
//
// Composite nodes (AND, OR) use Conditions; EXISTS and leaf predicates use
// Field, and leaves additionally use Operator and Value.
type Condition struct {
	Type       string       `json:"type,omitempty"`
	Field      string       `json:"field,omitempty"`
	Operator   string       `json:"operator,omitempty"`
	Value      any          `json:"value,omitempty"`
	Conditions []*Condition `json:"conditions,omitempty"`
}
