// Package engine implements the Universal Configuration Rules interpreter.
//
// An Engine is constructed around an injected rule repository and a handler
// registry. Load fetches and parses the tenant's active rules exactly once
// into an immutable in-memory set; ExecuteRules then matches, condition-gates,
// and dispatches rules in priority order, aggregating per-rule results.
//
// Thread-safety model:
//   - Load: must complete before any evaluation; not safe to call
//     concurrently with itself or with ExecuteRules.
//   - ExecuteRules: safe from any number of goroutines once loaded, because
//     no evaluation path mutates engine state.
//
// Failure policy: evaluation-time failures are isolated per rule. A batch
// stops early only through a rule's explicit blockOnFailure parameter, never
// because an unrelated rule misbehaved.
package engine
