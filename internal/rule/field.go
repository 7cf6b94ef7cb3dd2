package rule

import (
	"bytes"
	"encoding/json"
)

// Record is a raw rule row as the repository returns it, before any
// attribute parsing. Priority zero means "not set" and defaults during parse.
type Record struct {
	ID                 string
	Name               string
	Type               string
	ClassificationCode string
	Status             string
	Priority           int
}

// Field is one untyped attribute of a rule. A field carries up to four
// representations; the first non-nil one, in the order JSON, numeric, text,
// boolean, is authoritative.
type Field struct {
	Name    string
	JSON    *string
	Numeric *float64
	Text    *string
	Boolean *bool
}

// Value resolves the field to a Go value. A JSON representation is decoded
// when it parses; otherwise the raw string is returned as-is. Numbers decode
// through json.Number so integer attributes survive without float rounding.
// A field with no representation at all resolves to nil.
func (f Field) Value() any {
	switch {
	case f.JSON != nil:
		dec := json.NewDecoder(bytes.NewReader([]byte(*f.JSON)))
		dec.UseNumber()
		var v any
		if err := dec.Decode(&v); err != nil {
			return *f.JSON
		}
		return v
	case f.Numeric != nil:
		return *f.Numeric
	case f.Text != nil:
		return *f.Text
	case f.Boolean != nil:
		return *f.Boolean
	default:
		return nil
	}
}

// rawJSON returns the field's content as JSON bytes suitable for decoding
// into a typed structure. Structured attributes (scope, condition, action,
// parameters) normally arrive in the JSON slot; a text representation is
// accepted when it holds encoded JSON.
func (f Field) rawJSON() ([]byte, bool) {
	if f.JSON != nil {
		return []byte(*f.JSON), true
	}
	if f.Text != nil && json.Valid([]byte(*f.Text)) {
		return []byte(*f.Text), true
	}
	return nil, false
}

// JSONField builds a Field holding a JSON representation.
func JSONField(name, value string) Field {
	return Field{Name: name, JSON: &value}
}

// TextField builds a Field holding a text representation.
func TextField(name, value string) Field {
	return Field{Name: name, Text: &value}
}

// NumericField builds a Field holding a numeric representation.
func NumericField(name string, value float64) Field {
	return Field{Name: name, Numeric: &value}
}

// BooleanField builds a Field holding a boolean representation.
func BooleanField(name string, value bool) Field {
	return Field{Name: name, Boolean: &value}
}
