package engine

import (
	"fmt"

	"github.com/ruleforge/ucr/internal/rule"
)

// dispatch runs a single rule against the context.
//
// The rule's condition gates the action: a false condition yields a
// skipped result, not a failure. A rule whose type no registered handler
// covers yields an UnknownRuleType failure for that rule alone.
func (e *Engine) dispatch(r rule.Rule, c Context) Result {
	if !e.evalCondition(r.Condition, c, 0) {
		e.log.Debug("rule skipped, condition not met",
			"rule_id", r.ID,
			"rule_name", r.Name,
			"condition", condSummary(r.Condition),
		)
		e.metrics.ruleSkipped(string(r.Type))
		return skippedResult(r.ID, r.Name)
	}

	h := e.handlerFor(r.Type)
	if h == nil {
		e.log.Warn("no handler registered for rule type",
			"rule_id", r.ID,
			"rule_type", r.Type,
		)
		return failedResult(r.ID, r.Name,
			fmt.Sprintf("%s: no handler for rule type %q", UnknownRuleTypeMessage, r.Type))
	}

	return h.Execute(r, c)
}

// safeDispatch isolates handler panics to the rule that raised them.
// A panicking handler produces a failed result; the batch continues.
func (e *Engine) safeDispatch(r rule.Rule, c Context) (res Result) {
	defer func() {
		if rec := recover(); rec != nil {
			e.log.Error("handler panicked",
				"rule_id", r.ID,
				"rule_name", r.Name,
				"panic", rec,
			)
			res = failedResult(r.ID, r.Name, fmt.Sprintf("handler panic: %v", rec))
		}
	}()
	return e.dispatch(r, c)
}

// handlerFor returns the first registered handler covering the type, in
// registration order.
func (e *Engine) handlerFor(t rule.Type) Handler {
	for _, h := range e.handlers {
		if h.Handles(t) {
			return h
		}
	}
	return nil
}
