package engine

import (
	"encoding/json"
	"fmt"
	"reflect"
)

// Context is the ad-hoc key/value data a rule set evaluates against, e.g.
// an order or work item under consideration. Supplied fresh per call; the
// engine never mutates it.
type Context map[string]any

// has reports presence of a non-nil value for the key.
func (c Context) has(key string) bool {
	v, ok := c[key]
	return ok && v != nil
}

// str returns the context value rendered as a string.
// Non-string scalars stringify so classification codes stored as numbers
// still match string patterns.
func (c Context) str(key string) string {
	v, ok := c[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// float returns the context value coerced to float64.
func (c Context) float(key string) (float64, bool) {
	return toFloat(c[key])
}

// toFloat coerces the numeric shapes that reach the engine: native Go
// numbers from callers and json.Number from decoded attributes/documents.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// looseEqual compares a context value against a condition value across the
// representation gap between caller-supplied Go values and JSON-decoded
// attribute values. Numbers compare numerically regardless of concrete type.
func looseEqual(a, b any) bool {
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			return fa == fb
		}
	}
	if sa, ok := a.(string); ok {
		if sb, ok := b.(string); ok {
			return sa == sb
		}
	}
	if ba, ok := a.(bool); ok {
		if bb, ok := b.(bool); ok {
			return ba == bb
		}
	}
	return reflect.DeepEqual(a, b)
}
