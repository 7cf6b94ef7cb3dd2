package engine

import (
	"context"
	"log/slog"

	"github.com/ruleforge/ucr/internal/repository"
	"github.com/ruleforge/ucr/internal/rule"
)

// Engine evaluates configuration rules against execution contexts.
//
// Lifecycle: construct with New, call Load exactly once to populate the
// rule cache, then call ExecuteRules any number of times from any
// goroutine. The cache is immutable after Load; a restart picks up rule
// changes.
type Engine struct {
	repo     repository.Repository
	handlers []Handler
	log      *slog.Logger
	clock    Clock
	tokens   TokenGenerator
	metrics  *Metrics
	maxDepth int

	rules  []rule.Rule
	loaded bool
}

// Option configures an Engine at construction.
type Option func(*Engine)

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// WithClock sets the clock used by date-sensitive handlers. Defaults to
// SystemClock.
func WithClock(clock Clock) Option {
	return func(e *Engine) { e.clock = clock }
}

// WithHandlers replaces the built-in handler registry. Registration order
// decides which handler wins when several cover the same type.
func WithHandlers(handlers ...Handler) Option {
	return func(e *Engine) { e.handlers = handlers }
}

// WithExtraHandlers appends handlers after the built-ins.
func WithExtraHandlers(handlers ...Handler) Option {
	return func(e *Engine) { e.handlers = append(e.handlers, handlers...) }
}

// WithMaxConditionDepth overrides the condition recursion cap.
func WithMaxConditionDepth(depth int) Option {
	return func(e *Engine) { e.maxDepth = depth }
}

// WithTokenGenerator sets the batch token source. Defaults to UUIDv7.
func WithTokenGenerator(gen TokenGenerator) Option {
	return func(e *Engine) { e.tokens = gen }
}

// WithMetrics attaches Prometheus instruments. Without this option the
// engine records nothing.
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// New creates an unloaded engine backed by repo.
func New(repo repository.Repository, opts ...Option) *Engine {
	e := &Engine{
		repo:     repo,
		log:      slog.Default(),
		clock:    SystemClock{},
		tokens:   UUIDv7Generator{},
		maxDepth: DefaultMaxConditionDepth,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.handlers == nil {
		e.handlers = defaultHandlers(e.clock)
	}
	return e
}

// Load fetches the tenant's active rules and parses them into the cache.
//
// Repository unavailability is fatal and returns a LOAD_FAILURE error: an
// engine must not start with a silently empty rule set. An individual rule
// that fails to parse is logged and dropped; the rest of the set loads.
//
// Load must complete before the first ExecuteRules call and must not be
// called again on a loaded engine.
func (e *Engine) Load(ctx context.Context, tenant string) error {
	if e.loaded {
		return newAlreadyLoaded()
	}

	records, err := e.repo.FetchActiveRules(ctx, tenant)
	if err != nil {
		e.metrics.loadFinished("failure")
		return newLoadFailure(tenant, err)
	}

	rules := make([]rule.Rule, 0, len(records))
	for _, rec := range records {
		fields, err := e.repo.FetchRuleFields(ctx, rec.ID)
		if err != nil {
			e.metrics.loadFinished("failure")
			return newLoadFailure(tenant, err)
		}

		r, err := rule.ParseRule(rec, fields)
		if err != nil {
			e.log.Warn("skipping malformed rule",
				"rule_id", rec.ID,
				"rule_name", rec.Name,
				"error", err,
			)
			e.metrics.ruleParseDropped()
			continue
		}
		rules = append(rules, r)
	}

	e.rules = rules
	e.loaded = true
	e.metrics.loadFinished("success")
	e.log.Info("rule cache loaded",
		"tenant", tenant,
		"rules", len(rules),
		"dropped", len(records)-len(rules),
	)
	return nil
}

// Loaded reports whether Load has completed.
func (e *Engine) Loaded() bool { return e.loaded }

// Rules returns a copy of the loaded rule cache in cache order.
func (e *Engine) Rules() []rule.Rule {
	out := make([]rule.Rule, len(e.rules))
	copy(out, e.rules)
	return out
}

// ExecuteRules runs every applicable rule against the context in priority
// order and returns one result per attempted rule.
//
// typeFilter narrows the batch to one rule type; empty means all types.
//
// A failed rule does not stop the batch unless its parameters set
// blockOnFailure, in which case later rules are neither executed nor
// represented in the results. Handler panics are confined to their rule.
//
// Calling before Load returns an ENGINE_NOT_LOADED error.
func (e *Engine) ExecuteRules(ctx context.Context, c Context, typeFilter rule.Type) ([]Result, error) {
	if !e.loaded {
		return nil, newNotLoaded()
	}

	batch := e.tokens.Generate()
	matched := e.applicableRules(c, typeFilter)
	e.log.Debug("batch started",
		"batch", batch,
		"type_filter", typeFilter,
		"matched", len(matched),
	)

	results := make([]Result, 0, len(matched))
	for _, r := range matched {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		res := e.safeDispatch(r, c)
		results = append(results, res)

		if res.Skipped() {
			continue
		}
		if res.Success {
			e.metrics.ruleEvaluated(string(r.Type))
			continue
		}

		e.metrics.ruleFailed(string(r.Type))
		e.log.Warn("rule failed",
			"batch", batch,
			"rule_id", r.ID,
			"rule_name", r.Name,
			"errors", res.Errors,
		)

		if r.BlockOnFailure() {
			e.metrics.batchBlocked()
			e.log.Warn("blocking rule failed, batch short-circuited",
				"batch", batch,
				"rule_id", r.ID,
			)
			break
		}
	}

	return results, nil
}
