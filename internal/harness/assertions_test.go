package harness

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intp(n int) *int { return &n }

// resultWithSteps builds a result without running an engine.
func resultWithSteps(steps ...StepResult) *Result {
	r := NewResult()
	r.Steps = steps
	for _, s := range steps {
		r.Trace = append(r.Trace, TraceEvent{Seq: s.Seq, Type: "step", Changed: s.Changed})
	}
	return r
}

func TestAssertChangedContains(t *testing.T) {
	r := resultWithSteps(
		StepResult{Step: 1, Seq: 2, Changed: []string{"Count", "Double"}},
		StepResult{Step: 2, Seq: 3, Changed: []string{"Todos"}},
	)

	assert.NoError(t, assertChangedContains(r, Assertion{Type: AssertChangedContains, Step: 1, IDs: []string{"Double"}}))
	assert.NoError(t, assertChangedContains(r, Assertion{Type: AssertChangedContains, IDs: []string{"Todos"}}))

	err := assertChangedContains(r, Assertion{Type: AssertChangedContains, IDs: []string{"Count"}})
	require.Error(t, err)
	var aerr *AssertionError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, AssertChangedContains, aerr.Type)
	assert.Contains(t, aerr.Actual, "missing Count")
	assert.Len(t, aerr.Trace, 2)
}

func TestAssertChangedExcludes(t *testing.T) {
	r := resultWithSteps(StepResult{Step: 1, Seq: 2, Changed: []string{"Count", "Double"}})

	assert.NoError(t, assertChangedExcludes(r, Assertion{Type: AssertChangedExcludes, IDs: []string{"Todos"}}))

	err := assertChangedExcludes(r, Assertion{Type: AssertChangedExcludes, IDs: []string{"Todos", "Double"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "including Double")
}

func TestAssertChangedCount(t *testing.T) {
	r := resultWithSteps(StepResult{Step: 1, Seq: 2, Changed: []string{"Count", "Double"}})

	assert.NoError(t, assertChangedCount(r, Assertion{Type: AssertChangedCount, Count: intp(2)}))

	err := assertChangedCount(r, Assertion{Type: AssertChangedCount, Count: intp(0)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 id(s)")
}

func TestAssertChanged_NoDispatch(t *testing.T) {
	r := resultWithSteps(StepResult{Step: 2, Seq: 2})

	err := assertChangedCount(r, Assertion{Type: AssertChangedCount, Step: 1, Count: intp(0)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a committed dispatch at step 1")

	err = assertChangedContains(NewResult(), Assertion{Type: AssertChangedContains, IDs: []string{"x"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "last dispatch")
}

func TestAssertFinalState_FromResult(t *testing.T) {
	r := NewResult()
	r.State["Count"] = 3
	r.State["Dash"] = map[string]any{"Count": 3, "Double": 6}

	assert.NoError(t, assertFinalState(r, Assertion{Atom: "Count", Expect: 3}, nil))
	assert.NoError(t, assertFinalState(r, Assertion{Atom: "Dash", Expect: map[string]any{"Double": 6, "Count": 3}}, nil))

	err := assertFinalState(r, Assertion{Atom: "Count", Expect: 4}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Count = 3")

	err = assertFinalState(r, Assertion{Atom: "Todos", Expect: 1}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "atom not in final state")
}

func TestAssertFinalState_LazyAtom(t *testing.T) {
	scenario := counterScenario(t, "Count", Step{Dispatch: "inc"})
	scenario.Assertions = []Assertion{
		{Type: AssertFinalState, Atom: "Todos", Expect: map[string]any{"id#1": false, "id#2": false}},
		{Type: AssertFinalState, Atom: "Count", Expect: 1},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.NotContains(t, result.State, "Todos", "read without attaching")
}

func TestAssertFinalState_UnknownAtom(t *testing.T) {
	scenario := counterScenario(t, "", Step{Dispatch: "inc"})
	scenario.Assertions = []Assertion{{Type: AssertFinalState, Atom: "Nope", Expect: 1}}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Contains(t, result.Errors[0], `unknown atom "Nope"`)
}

func TestAssertDeterministic(t *testing.T) {
	scenario := counterScenario(t, "Dash",
		Step{Dispatch: "setCount", Payload: 7},
		Step{Subscribe: "Todos"},
		Step{Dispatch: "toggleTodo", Key: "id#1"},
		Step{Unsubscribe: "Todos"},
		Step{Dispatch: "inc"},
	)
	scenario.Assertions = []Assertion{{Type: AssertDeterministic}}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestAssertDeterministic_DetectsTamperedJournal(t *testing.T) {
	scenario := counterScenario(t, "Dash", Step{Dispatch: "inc"})
	h, err := newHarness(context.Background(), scenario)
	require.NoError(t, err)
	defer h.Close()

	result, err := h.execute(context.Background())
	require.NoError(t, err)
	result.Records[1].StateHash = "tampered"

	err = assertDeterministic(result, &AssertionContext{Ctx: context.Background(), Harness: h})
	require.Error(t, err)
	var aerr *AssertionError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, AssertDeterministic, aerr.Type)
}

func TestAssertDeterministic_NeedsHarness(t *testing.T) {
	err := assertDeterministic(NewResult(), nil)
	assert.Error(t, err)
}

func TestEvaluateAssertions_UnknownType(t *testing.T) {
	errs := EvaluateAssertions(NewResult(), []Assertion{{Type: "trace_order"}}, nil)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], `unknown assertion type "trace_order"`)
}

func TestAssertionError_Format(t *testing.T) {
	err := &AssertionError{
		Type:     AssertChangedCount,
		Expected: "step 1 changes 1 id(s)",
		Actual:   "2 id(s)",
		Trace:    []TraceEvent{{Seq: 2, Type: "inc", Changed: []string{"Count", "Double"}}},
	}
	msg := err.Error()
	assert.Contains(t, msg, "Assertion failed: changed_count")
	assert.Contains(t, msg, "Expected: step 1 changes 1 id(s)")
	assert.Contains(t, msg, "[2] inc → [Count Double]")
}

func TestValuesEqual(t *testing.T) {
	assert.True(t, valuesEqual(int64(3), 3))
	assert.True(t, valuesEqual(map[string]any{"a": []any{1}}, map[string]any{"a": []any{int64(1)}}))
	assert.False(t, valuesEqual(1, "1"))
	assert.True(t, valuesEqual(nil, nil))
}
