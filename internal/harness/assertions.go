package harness

import (
	"bytes"
	"context"
	"fmt"
	"maps"
	"reflect"
	"slices"
	"strings"

	"github.com/roach88/atomgraph/internal/engine"
	"github.com/roach88/atomgraph/internal/ir"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s → %v\n", event.Seq, event.Type, event.Changed)
		}
	}
	return buf.String()
}

// AssertionContext gives assertions access to the live run.
type AssertionContext struct {
	Ctx     context.Context
	Harness *Harness
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errs []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertFinalState:
			err = assertFinalState(result, assertion, actx)
		case AssertChangedContains:
			err = assertChangedContains(result, assertion)
		case AssertChangedExcludes:
			err = assertChangedExcludes(result, assertion)
		case AssertChangedCount:
			err = assertChangedCount(result, assertion)
		case AssertDeterministic:
			err = assertDeterministic(result, actx)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errs = append(errs, err.Error())
		}
	}
	return errs
}

// assertFinalState compares an atom's value after the last step. The live
// engine is preferred so lazy atoms read their initial value; without it
// the result snapshot is used.
func assertFinalState(result *Result, a Assertion, actx *AssertionContext) error {
	var (
		actual any
		ok     bool
	)
	if actx != nil && actx.Harness != nil {
		v, err := actx.Harness.value(a.Atom)
		if err != nil {
			return &AssertionError{Type: AssertFinalState, Expected: fmt.Sprintf("atom %s", a.Atom), Actual: err.Error()}
		}
		actual, ok = v, true
	} else {
		actual, ok = result.State[a.Atom]
	}

	if !ok {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("%s = %s", a.Atom, formatValue(a.Expect)),
			Actual:   "atom not in final state",
		}
	}
	if !valuesEqual(a.Expect, actual) {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("%s = %s", a.Atom, formatValue(a.Expect)),
			Actual:   fmt.Sprintf("%s = %s", a.Atom, formatValue(actual)),
		}
	}
	return nil
}

func stepFor(result *Result, a Assertion) (StepResult, error) {
	step, ok := result.StepAt(a.Step)
	if !ok {
		which := "last dispatch"
		if a.Step != 0 {
			which = fmt.Sprintf("step %d", a.Step)
		}
		return StepResult{}, &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("a committed dispatch at %s", which),
			Actual:   "no such dispatch",
			Trace:    result.Trace,
		}
	}
	return step, nil
}

func assertChangedContains(result *Result, a Assertion) error {
	step, err := stepFor(result, a)
	if err != nil {
		return err
	}
	for _, id := range a.IDs {
		if !slices.Contains(step.Changed, id) {
			return &AssertionError{
				Type:     AssertChangedContains,
				Expected: fmt.Sprintf("step %d changes %v", step.Step, a.IDs),
				Actual:   fmt.Sprintf("changed %v, missing %s", step.Changed, id),
				Trace:    result.Trace,
			}
		}
	}
	return nil
}

func assertChangedExcludes(result *Result, a Assertion) error {
	step, err := stepFor(result, a)
	if err != nil {
		return err
	}
	for _, id := range a.IDs {
		if slices.Contains(step.Changed, id) {
			return &AssertionError{
				Type:     AssertChangedExcludes,
				Expected: fmt.Sprintf("step %d leaves %v unchanged", step.Step, a.IDs),
				Actual:   fmt.Sprintf("changed %v, including %s", step.Changed, id),
				Trace:    result.Trace,
			}
		}
	}
	return nil
}

func assertChangedCount(result *Result, a Assertion) error {
	step, err := stepFor(result, a)
	if err != nil {
		return err
	}
	if len(step.Changed) != *a.Count {
		return &AssertionError{
			Type:     AssertChangedCount,
			Expected: fmt.Sprintf("step %d changes %d id(s)", step.Step, *a.Count),
			Actual:   fmt.Sprintf("%d id(s): %v", len(step.Changed), step.Changed),
			Trace:    result.Trace,
		}
	}
	return nil
}

// assertDeterministic replays the journal into a fresh engine and runs the
// scenario a second time. Both must reproduce the recorded trace.
func assertDeterministic(result *Result, actx *AssertionContext) error {
	if actx == nil || actx.Harness == nil {
		return fmt.Errorf("deterministic requires a live harness")
	}
	h := actx.Harness

	root, err := h.graph.Root(h.scenario.Root)
	if err != nil {
		return err
	}
	if _, err := engine.Replay(actx.Ctx, root, result.Records,
		engine.WithLogger(h.logger),
		engine.WithResolver(h.graph.Lookup),
	); err != nil {
		return &AssertionError{
			Type:     AssertDeterministic,
			Expected: "journal replays without divergence",
			Actual:   err.Error(),
			Trace:    result.Trace,
		}
	}

	again, err := newHarness(actx.Ctx, h.scenario)
	if err != nil {
		return fmt.Errorf("deterministic: second run: %w", err)
	}
	defer again.Close()
	second, err := again.execute(actx.Ctx)
	if err != nil {
		return fmt.Errorf("deterministic: second run: %w", err)
	}

	first, err := Snapshot(h.scenario, result)
	if err != nil {
		return err
	}
	repeat, err := Snapshot(h.scenario, second)
	if err != nil {
		return err
	}
	if !bytes.Equal(first, repeat) {
		return &AssertionError{
			Type:     AssertDeterministic,
			Expected: string(first),
			Actual:   string(repeat),
		}
	}
	return nil
}

// valuesEqual compares an expected value from YAML with an engine value
// by their canonical JSON, so int widths and map types do not matter.
func valuesEqual(expected, actual any) bool {
	eb, err1 := ir.MarshalCanonical(expected)
	ab, err2 := ir.MarshalCanonical(actual)
	if err1 != nil || err2 != nil {
		return reflect.DeepEqual(expected, actual)
	}
	return bytes.Equal(eb, ab)
}

// formatValue renders a value as canonical JSON when possible.
func formatValue(v any) string {
	data, err := ir.MarshalCanonical(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

func sortedKeys(m map[string]any) []string {
	return slices.Sorted(maps.Keys(m))
}
