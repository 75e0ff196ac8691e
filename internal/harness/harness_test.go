package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/atomgraph/internal/atom"
	"github.com/roach88/atomgraph/internal/testutil"
)

func counterScenario(t *testing.T, root string, steps ...Step) *Scenario {
	t.Helper()
	return &Scenario{
		Name:  "counter",
		Graph: testutil.WriteGraphDir(t, testutil.CounterGraph),
		Root:  root,
		Steps: steps,
	}
}

func TestRun_SingleDispatch(t *testing.T) {
	scenario := counterScenario(t, "Dash", Step{
		Dispatch: "setCount",
		Payload:  5,
		Expect: &StepExpect{
			Changed: []string{"Count", "Dash", "Double"},
			State:   map[string]any{"Double": 10},
		},
	})

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Empty(t, result.Errors)

	require.Len(t, result.Trace, 2, "init plus one dispatch")
	assert.Equal(t, string(atom.InitType), result.Trace[0].Type)
	assert.Equal(t, int64(1), result.Trace[0].Seq)
	assert.Equal(t, "setCount", result.Trace[1].Type)
	assert.Equal(t, int64(2), result.Trace[1].Seq)
	assert.Equal(t, []string{"Count", "Dash", "Double"}, result.Trace[1].Changed)
	assert.NotEmpty(t, result.Trace[1].Hash)

	require.Len(t, result.Steps, 1)
	assert.Equal(t, 1, result.Steps[0].Step)
	assert.Equal(t, int64(2), result.Steps[0].Seq)

	assert.Equal(t, map[string]any{"Count": 5, "Double": 10}, result.State["Dash"])
	assert.Len(t, result.Records, 2)
}

func TestRun_ChangedMismatch(t *testing.T) {
	scenario := counterScenario(t, "Dash", Step{
		Dispatch: "setCount",
		Payload:  1,
		Expect:   &StepExpect{Changed: []string{"Count"}},
	})

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "steps[1] setCount: changed")
}

func TestRun_StateMismatch(t *testing.T) {
	scenario := counterScenario(t, "Dash", Step{
		Dispatch: "inc",
		Expect:   &StepExpect{State: map[string]any{"Count": 2}},
	})

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "Count = 1, want 2")
}

func TestRun_ExpectedError(t *testing.T) {
	scenario := counterScenario(t, "Dash",
		Step{Dispatch: "setCount", Payload: "abc", Expect: &StepExpect{Error: "type mismatch"}},
		Step{Dispatch: "inc", Expect: &StepExpect{State: map[string]any{"Count": 1}}},
	)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)

	require.Len(t, result.Trace, 2, "the failed dispatch is not journaled")
	assert.Equal(t, "inc", result.Trace[1].Type)
	assert.Equal(t, int64(2), result.Trace[1].Seq)
}

func TestRun_ExpectedErrorMissing(t *testing.T) {
	scenario := counterScenario(t, "Dash",
		Step{Dispatch: "inc", Expect: &StepExpect{Error: "type mismatch"}},
	)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Contains(t, result.Errors[0], "got none")
}

func TestRun_UnexpectedError(t *testing.T) {
	scenario := counterScenario(t, "Dash", Step{Dispatch: "setCount", Payload: "abc"})

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Contains(t, result.Errors[0], "type mismatch")
}

func TestRun_UnknownAction(t *testing.T) {
	scenario := counterScenario(t, "", Step{Dispatch: "nope"})

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Contains(t, result.Errors[0], "steps[1] nope")
}

func TestRun_DefaultRootKeyedDispatch(t *testing.T) {
	scenario := counterScenario(t, "", Step{
		Dispatch: "toggleTodo",
		Key:      "id#1",
		Expect: &StepExpect{
			Changed: []string{"Todos", "Todosid#1", "@@root"},
			State:   map[string]any{"Todos": map[string]any{"id#1": true, "id#2": false}},
		},
	})

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Contains(t, result.State, "@@root")
}

func TestRun_SubscribeAttachesAndDetaches(t *testing.T) {
	scenario := counterScenario(t, "Dash",
		Step{Subscribe: "Todos"},
		Step{Dispatch: "toggleTodo", Key: "id#2"},
		Step{Unsubscribe: "Todos"},
		Step{Dispatch: "setCount", Payload: 3},
	)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)

	require.Len(t, result.Trace, 3)
	assert.Equal(t, []string{"Todos"}, result.Trace[1].Attached)
	assert.Equal(t, []string{"Todos"}, result.Trace[2].Detached)
	assert.NotContains(t, result.State, "Todos", "detached atoms drop their values")

	require.Len(t, result.Steps, 2)
	assert.Equal(t, 2, result.Steps[0].Step)
	assert.Equal(t, 4, result.Steps[1].Step)
}

func TestRun_SubscribeErrors(t *testing.T) {
	scenario := counterScenario(t, "Dash",
		Step{Subscribe: "Nope"},
		Step{Unsubscribe: "Todos"},
	)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], `unknown atom "Nope"`)
	assert.Contains(t, result.Errors[1], `no subscription to "Todos"`)
}

func TestRun_GraphNotFound(t *testing.T) {
	scenario := &Scenario{
		Name:  "missing",
		Graph: "does/not/exist",
		Steps: []Step{{Dispatch: "inc"}},
	}

	_, err := Run(scenario)
	require.Error(t, err)
	var notFound *GraphNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "missing", notFound.Scenario)
	assert.Contains(t, err.Error(), "does/not/exist")
}

func TestRun_InvalidGraph(t *testing.T) {
	scenario := &Scenario{
		Name:  "broken",
		Graph: testutil.WriteGraphDir(t, testutil.InvalidGraph),
		Steps: []Step{{Dispatch: "go"}},
	}

	_, err := Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to build graph")
}

func TestRun_UnknownRoot(t *testing.T) {
	scenario := counterScenario(t, "Nope", Step{Dispatch: "inc"})

	_, err := Run(scenario)
	assert.Error(t, err)
}

func TestRun_SameScenarioSameTrace(t *testing.T) {
	scenario := counterScenario(t, "",
		Step{Dispatch: "inc"},
		Step{Dispatch: "toggleTodo", Key: "id#1"},
	)

	first, err := Run(scenario)
	require.NoError(t, err)
	second, err := Run(scenario)
	require.NoError(t, err)

	assert.Equal(t, first.Trace, second.Trace)
	assert.Equal(t, first.State, second.State)
}

func TestRun_SessionChangesIDsNotHashes(t *testing.T) {
	scenario := counterScenario(t, "Dash", Step{Dispatch: "inc"})
	first, err := Run(scenario)
	require.NoError(t, err)

	scenario.Session = "other-session"
	second, err := Run(scenario)
	require.NoError(t, err)

	assert.Equal(t, first.Trace, second.Trace, "state hashes do not depend on the session")
	assert.NotEqual(t, first.Records[1].ID, second.Records[1].ID)
	assert.Equal(t, "other-session", second.Records[1].Session)
}

func TestResult_StepAt(t *testing.T) {
	r := NewResult()
	_, ok := r.StepAt(0)
	assert.False(t, ok)

	r.Steps = []StepResult{{Step: 1, Seq: 2}, {Step: 3, Seq: 3}}
	last, ok := r.StepAt(0)
	require.True(t, ok)
	assert.Equal(t, 3, last.Step)

	first, ok := r.StepAt(1)
	require.True(t, ok)
	assert.Equal(t, int64(2), first.Seq)

	_, ok = r.StepAt(2)
	assert.False(t, ok, "step 2 was not a dispatch")
}

func TestResult_AddError(t *testing.T) {
	r := NewResult()
	assert.True(t, r.Pass)
	r.AddError("boom")
	assert.False(t, r.Pass)
	assert.Equal(t, []string{"boom"}, r.Errors)
}
