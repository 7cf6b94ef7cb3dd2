// Package rulefile compiles CUE rule packs into typed rules.
//
// A rule pack is a directory of .cue files declaring rules under a
// top-level "rules" struct:
//
//	rules: "standard-markup": {
//		type:     "pricing"
//		priority: 100
//		action: {operation: "calculate_price", roundTo: true}
//		parameters: {markupMultiplier: 1.5}
//	}
//
// Packs are the version-controlled source of truth; the importer flattens
// compiled rules into the repository the engine loads from.
package rulefile

import (
	"encoding/json"
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/ruleforge/ucr/internal/rule"
)

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// CompileRule parses a CUE value into a typed rule.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The CUE value should be the rule struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`rules: "markup": { ... }`)
//	r, err := CompileRule(v.LookupPath(cue.ParsePath(`rules."markup"`)))
func CompileRule(v cue.Value) (*rule.Rule, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	r := &rule.Rule{}

	// Rule name from struct label; the label may be quoted in CUE.
	labels := v.Path().Selectors()
	if len(labels) > 0 {
		r.Name = strings.Trim(labels[len(labels)-1].String(), `"`)
	}

	// type is required
	typeVal := v.LookupPath(cue.ParsePath("type"))
	if !typeVal.Exists() {
		return nil, &CompileError{
			Field:   "type",
			Message: "type is required",
			Pos:     v.Pos(),
		}
	}
	typeStr, err := typeVal.String()
	if err != nil {
		return nil, formatCUEError(err)
	}
	r.Type = rule.Type(typeStr)

	// Scalar fields, all optional
	if s, err := lookupString(v, "id"); err != nil {
		return nil, err
	} else {
		r.ID = s
	}
	if s, err := lookupString(v, "name"); err != nil {
		return nil, err
	} else if s != "" {
		// Explicit name overrides the struct label.
		r.Name = s
	}
	if s, err := lookupString(v, "classificationCode"); err != nil {
		return nil, err
	} else {
		r.ClassificationCode = s
	}
	if s, err := lookupString(v, "status"); err != nil {
		return nil, err
	} else if s != "" {
		r.Status = rule.Status(s)
	} else {
		r.Status = rule.StatusActive
	}

	prioVal := v.LookupPath(cue.ParsePath("priority"))
	if prioVal.Exists() {
		prio, err := prioVal.Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		r.Priority = int(prio)
	} else {
		r.Priority = rule.DefaultPriority
	}

	// Structured fields decode through their JSON representation so the
	// pack format and the repository format share one schema.
	if err := decodeStruct(v, "scope", &r.Scope); err != nil {
		return nil, err
	}
	if err := decodeStruct(v, "condition", &r.Condition); err != nil {
		return nil, err
	}
	if err := decodeStruct(v, "action", &r.Action); err != nil {
		return nil, err
	}
	if err := decodeStruct(v, "parameters", &r.Parameters); err != nil {
		return nil, err
	}

	return r, nil
}

// lookupString reads an optional string field; absent means "".
func lookupString(v cue.Value, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", nil
	}
	s, err := fv.String()
	if err != nil {
		return "", &CompileError{
			Field:   field,
			Message: fmt.Sprintf("must be a string: %v", err),
			Pos:     fv.Pos(),
		}
	}
	return s, nil
}

// decodeStruct unmarshals an optional CUE struct field into dst, which is a
// pointer to a pointer so absence leaves the rule field nil.
func decodeStruct[T any](v cue.Value, field string, dst **T) error {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return nil
	}

	data, err := fv.MarshalJSON()
	if err != nil {
		return &CompileError{
			Field:   field,
			Message: fmt.Sprintf("not a concrete value: %v", err),
			Pos:     fv.Pos(),
		}
	}

	out := new(T)
	if err := json.Unmarshal(data, out); err != nil {
		return &CompileError{
			Field:   field,
			Message: err.Error(),
			Pos:     fv.Pos(),
		}
	}
	*dst = out
	return nil
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
