package harness

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/roach88/atomgraph/internal/atom"
	"github.com/roach88/atomgraph/internal/compiler"
	"github.com/roach88/atomgraph/internal/engine"
	"github.com/roach88/atomgraph/internal/ir"
	"github.com/roach88/atomgraph/internal/store"
	"github.com/roach88/atomgraph/internal/testutil"
)

// Harness holds the live objects of one scenario run.
type Harness struct {
	scenario *Scenario
	graph    *compiler.Graph
	engine   *engine.Engine
	store    *store.Store
	clock    *testutil.DeterministicClock
	session  string
	logger   *slog.Logger

	subs map[string][]func()
}

// Run executes a scenario and evaluates its assertions.
//
// Each run gets a fresh in-memory journal, a fixed session token and a
// deterministic clock. An error is returned only when the scenario could
// not be set up (missing graph, invalid graph, unknown root); failed
// expectations are reported in the Result.
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext is Run with a context for journal writes.
func RunContext(ctx context.Context, scenario *Scenario) (*Result, error) {
	h, err := newHarness(ctx, scenario)
	if err != nil {
		return nil, err
	}
	defer h.Close()

	result, err := h.execute(ctx)
	if err != nil {
		return nil, err
	}

	actx := &AssertionContext{
		Ctx:     ctx,
		Harness: h,
	}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}
	return result, nil
}

func newHarness(ctx context.Context, scenario *Scenario) (*Harness, error) {
	if err := checkGraph(scenario); err != nil {
		return nil, err
	}
	g, err := compiler.BuildDir(scenario.Graph)
	if err != nil {
		return nil, fmt.Errorf("failed to build graph: %w", err)
	}
	root, err := g.Root(scenario.Root)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}

	h := &Harness{
		scenario: scenario,
		graph:    g,
		store:    st,
		clock:    testutil.NewDeterministicClock(),
		session:  testutil.NewFixedSessionGenerator(scenario.Session).Generate(),
		logger:   testutil.DiscardLogger(),
		subs:     make(map[string][]func()),
	}

	if err := st.WriteSession(ctx, ir.Session{ID: h.session, GraphHash: g.Hash, Root: string(root.ID())}); err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to write session: %w", err)
	}

	h.engine, err = engine.New(root,
		engine.WithLogger(h.logger),
		engine.WithJournal(st),
		engine.WithSession(h.session),
		engine.WithClock(h.clock),
		engine.WithResolver(g.Lookup),
	)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to start engine: %w", err)
	}
	return h, nil
}

// Close releases subscriptions and the journal.
func (h *Harness) Close() error {
	for _, unsubs := range h.subs {
		for _, unsub := range unsubs {
			unsub()
		}
	}
	h.subs = nil
	return h.store.Close()
}

// execute runs every step and collects the trace and final state. It does
// not evaluate assertions.
func (h *Harness) execute(ctx context.Context) (*Result, error) {
	result := NewResult()

	for i, step := range h.scenario.Steps {
		n := i + 1
		switch {
		case step.Subscribe != "":
			if err := h.subscribe(step.Subscribe); err != nil {
				result.AddError(fmt.Sprintf("steps[%d] subscribe %s: %v", n, step.Subscribe, err))
			}
		case step.Unsubscribe != "":
			if err := h.unsubscribe(step.Unsubscribe); err != nil {
				result.AddError(fmt.Sprintf("steps[%d] unsubscribe %s: %v", n, step.Unsubscribe, err))
			}
		default:
			h.dispatch(ctx, n, step, result)
		}
	}

	recs, err := h.store.ReadDispatches(ctx, h.session)
	if err != nil {
		return nil, fmt.Errorf("failed to read journal: %w", err)
	}
	result.Records = recs
	result.Trace = traceFromRecords(recs)

	state, err := engine.SnapshotIR(h.engine.State())
	if err != nil {
		return nil, fmt.Errorf("failed to encode final state: %w", err)
	}
	if m, ok := ir.ToGo(state).(map[string]any); ok {
		result.State = m
	}
	return result, nil
}

func (h *Harness) dispatch(ctx context.Context, n int, step Step, result *Result) {
	ev, err := h.graph.Event(step.Dispatch, step.Payload, step.Key)
	if err != nil {
		result.AddError(fmt.Sprintf("steps[%d] %s: %v", n, step.Dispatch, err))
		return
	}

	change, err := h.engine.DispatchContext(ctx, ev)
	expect := step.Expect
	if expect != nil && expect.Error != "" {
		switch {
		case err == nil:
			result.AddError(fmt.Sprintf("steps[%d] %s: expected error containing %q, got none", n, step.Dispatch, expect.Error))
		case !strings.Contains(err.Error(), expect.Error):
			result.AddError(fmt.Sprintf("steps[%d] %s: expected error containing %q, got %v", n, step.Dispatch, expect.Error, err))
		}
		return
	}
	if err != nil {
		result.AddError(fmt.Sprintf("steps[%d] %s: %v", n, step.Dispatch, err))
		return
	}

	changed := engine.IDStrings(change.ChangedIDs)
	result.Steps = append(result.Steps, StepResult{Step: n, Seq: change.Seq, Changed: changed})
	h.logger.Debug("step dispatched", "step", n, "type", step.Dispatch, "seq", change.Seq, "changed", changed)

	if expect == nil {
		return
	}
	if expect.Changed != nil && !slices.Equal(expect.Changed, changed) {
		result.AddError(fmt.Sprintf("steps[%d] %s: changed %v, want %v", n, step.Dispatch, changed, expect.Changed))
	}
	for _, name := range sortedKeys(expect.State) {
		got, err := h.value(name)
		if err != nil {
			result.AddError(fmt.Sprintf("steps[%d] %s: %v", n, step.Dispatch, err))
			continue
		}
		if !valuesEqual(expect.State[name], got) {
			result.AddError(fmt.Sprintf("steps[%d] %s: %s = %s, want %s",
				n, step.Dispatch, name, formatValue(got), formatValue(expect.State[name])))
		}
	}
}

func (h *Harness) subscribe(name string) error {
	a, ok := h.graph.Atom(name)
	if !ok {
		return fmt.Errorf("unknown atom %q", name)
	}
	unsub, err := h.engine.SubscribeAtom(a, func(any) {})
	if err != nil {
		return err
	}
	h.subs[name] = append(h.subs[name], unsub)
	return nil
}

func (h *Harness) unsubscribe(name string) error {
	unsubs := h.subs[name]
	if len(unsubs) == 0 {
		return fmt.Errorf("no subscription to %q", name)
	}
	unsubs[0]()
	h.subs[name] = unsubs[1:]
	return nil
}

// value reads an atom's current value by name.
func (h *Harness) value(name string) (any, error) {
	a, ok := h.graph.Lookup(atom.ID(name))
	if !ok {
		return nil, fmt.Errorf("unknown atom %q", name)
	}
	return h.engine.Get(a)
}
