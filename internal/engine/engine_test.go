package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ruleforge/ucr/internal/repository"
	"github.com/ruleforge/ucr/internal/rule"
)

// failingRepo simulates an unreachable rule store.
type failingRepo struct{}

func (failingRepo) FetchActiveRules(context.Context, string) ([]rule.Record, error) {
	return nil, errors.New("connection refused")
}

func (failingRepo) FetchRuleFields(context.Context, string) ([]rule.Field, error) {
	return nil, errors.New("connection refused")
}

// countingHandler records how many times it executed and returns a canned
// result per rule ID.
type countingHandler struct {
	ruleType rule.Type
	calls    int
	results  map[string]Result
}

func (h *countingHandler) Handles(t rule.Type) bool { return t == h.ruleType }

func (h *countingHandler) Execute(r rule.Rule, _ Context) Result {
	h.calls++
	if res, ok := h.results[r.ID]; ok {
		return res
	}
	return Result{RuleID: r.ID, RuleName: r.Name, Success: true}
}

// panickingHandler panics on every execution.
type panickingHandler struct{ ruleType rule.Type }

func (h panickingHandler) Handles(t rule.Type) bool { return t == h.ruleType }

func (h panickingHandler) Execute(rule.Rule, Context) Result {
	panic("handler exploded")
}

func loadedEngine(t *testing.T, rules []rule.Rule, opts ...Option) *Engine {
	t.Helper()
	repo := repository.NewMemory()
	for _, r := range rules {
		require.NoError(t, repo.AddRule(r))
	}
	e := New(repo, opts...)
	require.NoError(t, e.Load(context.Background(), "tenant-1"))
	return e
}

func TestExecuteRules_BeforeLoadFails(t *testing.T) {
	e := New(repository.NewMemory())

	results, err := e.ExecuteRules(context.Background(), Context{}, "")
	assert.Nil(t, results)
	require.Error(t, err)
	assert.True(t, IsNotLoaded(err))
}

func TestLoad_RepositoryUnavailableIsFatal(t *testing.T) {
	e := New(failingRepo{})

	err := e.Load(context.Background(), "tenant-1")
	require.Error(t, err)
	assert.True(t, IsLoadFailure(err))
	assert.False(t, e.Loaded(), "a failed load leaves the engine unloaded")
}

func TestLoad_Twice(t *testing.T) {
	e := New(repository.NewMemory())
	require.NoError(t, e.Load(context.Background(), "tenant-1"))

	err := e.Load(context.Background(), "tenant-1")
	require.Error(t, err)
	var ee *Error
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, CodeAlreadyLoaded, ee.Code)
}

func TestLoad_MalformedRuleSkippedOthersSurvive(t *testing.T) {
	repo := repository.NewMemory()
	repo.Add(rule.Record{ID: "bad", Name: "broken", Type: "validation"}, []rule.Field{
		rule.TextField("scope", "{not json"),
	})
	require.NoError(t, repo.AddRule(rule.Rule{
		ID: "good", Name: "fine", Type: rule.TypeValidation,
	}))

	e := New(repo)
	require.NoError(t, e.Load(context.Background(), "tenant-1"))

	rules := e.Rules()
	require.Len(t, rules, 1, "the malformed rule is dropped, the rest load")
	assert.Equal(t, "good", rules[0].ID)
}

func TestExecuteRules_SkippedRuleResult(t *testing.T) {
	e := loadedEngine(t, []rule.Rule{{
		ID:   "gated",
		Name: "rush orders only",
		Type: rule.TypeValidation,
		Condition: &rule.Condition{
			Field: "rush", Operator: rule.OpEquals, Value: true,
		},
		Action: &rule.Action{
			Validations: []rule.FieldCheck{{Field: "quantity", Min: floatPtr(1)}},
		},
	}})

	results, err := e.ExecuteRules(context.Background(), Context{"rush": false}, "")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].Success, "a skipped rule is not a failure")
	assert.True(t, results[0].Skipped())
	assert.Empty(t, results[0].Errors)
}

func TestExecuteRules_UnknownTypeFailsRuleNotBatch(t *testing.T) {
	e := loadedEngine(t, []rule.Rule{
		{ID: "odd", Name: "odd", Type: "telemetry", Priority: 200},
		{ID: "ok", Name: "ok", Type: rule.TypeValidation, Priority: 100},
	})

	results, err := e.ExecuteRules(context.Background(), Context{}, "")
	require.NoError(t, err)
	require.Len(t, results, 2, "the batch continues past the unknown type")

	assert.False(t, results[0].Success)
	require.NotEmpty(t, results[0].Errors)
	assert.Contains(t, results[0].Errors[0], UnknownRuleTypeMessage)

	assert.True(t, results[1].Success)
}

func TestExecuteRules_PriorityOrder(t *testing.T) {
	e := loadedEngine(t, []rule.Rule{
		{ID: "low", Name: "low", Type: rule.TypeValidation, Priority: 10},
		{ID: "high", Name: "high", Type: rule.TypeValidation, Priority: 900},
		{ID: "mid", Name: "mid", Type: rule.TypeValidation, Priority: 100},
	})

	results, err := e.ExecuteRules(context.Background(), Context{}, "")
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "high", results[0].RuleID)
	assert.Equal(t, "mid", results[1].RuleID)
	assert.Equal(t, "low", results[2].RuleID)
}

func TestExecuteRules_BlockOnFailureShortCircuits(t *testing.T) {
	handler := &countingHandler{
		ruleType: rule.TypeValidation,
		results: map[string]Result{
			"blocker": failedResult("blocker", "blocker", "hard stop"),
		},
	}

	e := loadedEngine(t, []rule.Rule{
		{ID: "first", Name: "first", Type: rule.TypeValidation, Priority: 300},
		{
			ID: "blocker", Name: "blocker", Type: rule.TypeValidation, Priority: 200,
			Parameters: &rule.Parameters{BlockOnFailure: true},
		},
		{ID: "never", Name: "never", Type: rule.TypeValidation, Priority: 100},
	}, WithHandlers(handler))

	results, err := e.ExecuteRules(context.Background(), Context{}, "")
	require.NoError(t, err)

	require.Len(t, results, 2, "rules after the blocking failure are omitted entirely")
	assert.Equal(t, "first", results[0].RuleID)
	assert.Equal(t, "blocker", results[1].RuleID)
	assert.False(t, results[1].Success)
	assert.Equal(t, 2, handler.calls, "the third rule never executes")
}

func TestExecuteRules_NonBlockingFailureContinues(t *testing.T) {
	handler := &countingHandler{
		ruleType: rule.TypeValidation,
		results: map[string]Result{
			"soft": failedResult("soft", "soft", "violation"),
		},
	}

	e := loadedEngine(t, []rule.Rule{
		{ID: "soft", Name: "soft", Type: rule.TypeValidation, Priority: 200},
		{ID: "after", Name: "after", Type: rule.TypeValidation, Priority: 100},
	}, WithHandlers(handler))

	results, err := e.ExecuteRules(context.Background(), Context{}, "")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.False(t, results[0].Success)
	assert.True(t, results[1].Success)
}

func TestExecuteRules_PanicIsolatedToRule(t *testing.T) {
	e := loadedEngine(t, []rule.Rule{
		{ID: "boom", Name: "boom", Type: "explosive", Priority: 200},
		{ID: "calm", Name: "calm", Type: rule.TypeValidation, Priority: 100},
	}, WithExtraHandlers(panickingHandler{ruleType: "explosive"}))

	results, err := e.ExecuteRules(context.Background(), Context{}, "")
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.False(t, results[0].Success)
	require.NotEmpty(t, results[0].Errors)
	assert.Contains(t, results[0].Errors[0], "handler exploded")

	assert.True(t, results[1].Success, "a panicking handler must not take down the batch")
}

func TestExecuteRules_TypeFilter(t *testing.T) {
	e := loadedEngine(t, []rule.Rule{
		{ID: "v", Name: "v", Type: rule.TypeValidation},
		{ID: "a", Name: "a", Type: rule.TypeApproval, Action: &rule.Action{}},
	})

	results, err := e.ExecuteRules(context.Background(), Context{}, rule.TypeApproval)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].RuleID)
}

func TestExecuteRules_ContextCancellation(t *testing.T) {
	e := loadedEngine(t, []rule.Rule{
		{ID: "v", Name: "v", Type: rule.TypeValidation},
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := e.ExecuteRules(ctx, Context{}, "")
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, results)
}

func TestExecuteRules_DeterministicTokens(t *testing.T) {
	e := loadedEngine(t, []rule.Rule{
		{ID: "v", Name: "v", Type: rule.TypeValidation},
	}, WithTokenGenerator(NewFixedGenerator("batch-1", "batch-2")))

	_, err := e.ExecuteRules(context.Background(), Context{}, "")
	require.NoError(t, err)
	_, err = e.ExecuteRules(context.Background(), Context{}, "")
	require.NoError(t, err)

	assert.Panics(t, func() {
		_, _ = e.ExecuteRules(context.Background(), Context{}, "")
	}, "a third batch exhausts the declared tokens")
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ruleEvaluated("validation")
		m.ruleSkipped("validation")
		m.ruleFailed("validation")
		m.batchBlocked()
		m.ruleParseDropped()
		m.loadFinished("success")
	})
}
