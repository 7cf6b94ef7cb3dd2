// Package repository supplies raw rule records to the engine.
//
// The engine only depends on the Repository interface; the SQLite
// implementation here exists so the system can be exercised end-to-end and
// seeded by the CLI importer. Rule persistence mechanics stay outside the
// engine core.
package repository

import (
	"context"

	"github.com/ruleforge/ucr/internal/rule"
)

// Repository is the external collaborator the engine loads rules from.
//
// FetchActiveRules returns only active rules for the tenant, in stable load
// order: that order is the engine's tie-break for equal priorities.
// FetchRuleFields returns a rule's untyped attribute fields in stored order.
type Repository interface {
	FetchActiveRules(ctx context.Context, tenant string) ([]rule.Record, error)
	FetchRuleFields(ctx context.Context, ruleID string) ([]rule.Field, error)
}
