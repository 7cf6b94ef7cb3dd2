package rule

import (
	"encoding/json"
	"fmt"
)

// Attribute names carrying the structured parts of a rule.
const (
	fieldScope      = "scope"
	fieldCondition  = "condition"
	fieldAction     = "action"
	fieldParameters = "parameters"
)

// ParseError reports which attribute of which rule failed to decode.
// The loader treats a ParseError as non-fatal: the rule is skipped.
type ParseError struct {
	RuleID string
	Field  string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("rule %s: parse attribute %q: %v", e.RuleID, e.Field, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ParseRule converts an untyped record plus its attribute fields into a
// typed, immutable Rule. This is the only bridge between the loosely-typed
// storage layer and the typed evaluation layer.
//
// Duplicate attribute names resolve first-match-wins: the first occurrence
// of a name in the field list is authoritative and later ones are ignored.
// An absent or zero priority defaults to DefaultPriority.
func ParseRule(rec Record, fields []Field) (Rule, error) {
	r := Rule{
		ID:                 rec.ID,
		Name:               rec.Name,
		Type:               Type(rec.Type),
		ClassificationCode: rec.ClassificationCode,
		Status:             Status(rec.Status),
		Priority:           rec.Priority,
	}
	if r.Priority == 0 {
		r.Priority = DefaultPriority
	}
	if r.Status == "" {
		r.Status = StatusActive
	}

	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		if seen[f.Name] {
			continue
		}
		seen[f.Name] = true

		switch f.Name {
		case fieldScope:
			s := new(Scope)
			if err := decodeField(f, s); err != nil {
				return Rule{}, &ParseError{RuleID: rec.ID, Field: f.Name, Err: err}
			}
			r.Scope = s
		case fieldCondition:
			c := new(Condition)
			if err := decodeField(f, c); err != nil {
				return Rule{}, &ParseError{RuleID: rec.ID, Field: f.Name, Err: err}
			}
			r.Condition = c
		case fieldAction:
			a := new(Action)
			if err := decodeField(f, a); err != nil {
				return Rule{}, &ParseError{RuleID: rec.ID, Field: f.Name, Err: err}
			}
			r.Action = a
		case fieldParameters:
			p := new(Parameters)
			if err := decodeField(f, p); err != nil {
				return Rule{}, &ParseError{RuleID: rec.ID, Field: f.Name, Err: err}
			}
			r.Parameters = p
		default:
			// Attributes outside the structured four are scoping/UI metadata
			// owned by the repository; the engine does not interpret them.
		}
	}

	return r, nil
}

// decodeField unmarshals a structured attribute into dst.
func decodeField(f Field, dst any) error {
	data, ok := f.rawJSON()
	if !ok {
		return fmt.Errorf("no JSON representation")
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return err
	}
	return nil
}

// Encode is the inverse of ParseRule: it flattens a typed Rule into the
// record-plus-fields shape the repository stores. Used by the importer and
// by in-memory repositories seeded from typed rules.
func Encode(r Rule) (Record, []Field, error) {
	rec := Record{
		ID:                 r.ID,
		Name:               r.Name,
		Type:               string(r.Type),
		ClassificationCode: r.ClassificationCode,
		Status:             string(r.Status),
		Priority:           r.Priority,
	}
	if rec.Status == "" {
		rec.Status = string(StatusActive)
	}

	var fields []Field
	appendJSON := func(name string, v any) error {
		if v == nil {
			return nil
		}
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode %s: %w", name, err)
		}
		fields = append(fields, JSONField(name, string(data)))
		return nil
	}

	if r.Scope != nil {
		if err := appendJSON(fieldScope, r.Scope); err != nil {
			return Record{}, nil, err
		}
	}
	if r.Condition != nil {
		if err := appendJSON(fieldCondition, r.Condition); err != nil {
			return Record{}, nil, err
		}
	}
	if r.Action != nil {
		if err := appendJSON(fieldAction, r.Action); err != nil {
			return Record{}, nil, err
		}
	}
	if r.Parameters != nil {
		if err := appendJSON(fieldParameters, r.Parameters); err != nil {
			return Record{}, nil, err
		}
	}

	return rec, fields, nil
}
