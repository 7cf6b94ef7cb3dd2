package repository

import (
	"context"
	"fmt"
	"sync"

	"github.com/ruleforge/ucr/internal/rule"
)

// Memory is an in-process Repository. It backs tests, the conformance
// harness, and CUE rule packs evaluated without a database.
//
// Insertion order is preserved; FetchActiveRules returns it unchanged, which
// makes Memory a faithful stand-in for the SQLite rowid ordering.
type Memory struct {
	mu      sync.RWMutex
	records []rule.Record
	fields  map[string][]rule.Field
}

// NewMemory creates an empty in-memory repository.
func NewMemory() *Memory {
	return &Memory{fields: make(map[string][]rule.Field)}
}

// Add appends a raw record with its attribute fields.
func (m *Memory) Add(rec rule.Record, fields []rule.Field) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	m.fields[rec.ID] = fields
}

// AddRule flattens a typed rule through rule.Encode and appends it.
func (m *Memory) AddRule(r rule.Rule) error {
	rec, fields, err := rule.Encode(r)
	if err != nil {
		return fmt.Errorf("add rule %s: %w", r.ID, err)
	}
	m.Add(rec, fields)
	return nil
}

// FetchActiveRules returns active records in insertion order.
// The tenant argument is accepted for interface compatibility; an in-memory
// repository holds a single tenant's rules.
func (m *Memory) FetchActiveRules(_ context.Context, _ string) ([]rule.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]rule.Record, 0, len(m.records))
	for _, rec := range m.records {
		if rec.Status == "" || rec.Status == string(rule.StatusActive) {
			out = append(out, rec)
		}
	}
	return out, nil
}

// FetchRuleFields returns the fields stored for a rule, in insertion order.
func (m *Memory) FetchRuleFields(_ context.Context, ruleID string) ([]rule.Field, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	fields, ok := m.fields[ruleID]
	if !ok {
		return nil, fmt.Errorf("rule %s not found", ruleID)
	}
	return fields, nil
}
