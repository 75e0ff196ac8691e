package harness

import "github.com/roach88/atomgraph/internal/ir"

// TraceEvent is one journaled dispatch, reduced to what golden files
// compare.
type TraceEvent struct {
	Seq      int64    `json:"seq"`
	Type     string   `json:"type"`
	Changed  []string `json:"changed"`
	Hash     string   `json:"hash"`
	Attached []string `json:"attached,omitempty"`
	Detached []string `json:"detached,omitempty"`
}

// StepResult records what one dispatch step changed. Subscribe steps have
// no result.
type StepResult struct {
	Step    int // 1-based index into Scenario.Steps
	Seq     int64
	Changed []string
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every step expectation and assertion held.
	Pass bool `json:"pass"`

	// Trace holds every journaled dispatch, init included, in seq order.
	Trace []TraceEvent `json:"trace"`

	// Errors holds failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// State is the final engine snapshot keyed by atom id.
	State map[string]any `json:"state,omitempty"`

	Steps   []StepResult        `json:"-"`
	Records []ir.DispatchRecord `json:"-"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
		State:  make(map[string]any),
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// StepAt returns the result of the dispatch at 1-based step index, or of
// the last dispatch when step is 0.
func (r *Result) StepAt(step int) (StepResult, bool) {
	if step == 0 {
		if len(r.Steps) == 0 {
			return StepResult{}, false
		}
		return r.Steps[len(r.Steps)-1], true
	}
	for _, s := range r.Steps {
		if s.Step == step {
			return s, true
		}
	}
	return StepResult{}, false
}

func traceFromRecords(recs []ir.DispatchRecord) []TraceEvent {
	trace := make([]TraceEvent, len(recs))
	for i, rec := range recs {
		changed := rec.Changed
		if changed == nil {
			changed = []string{}
		}
		trace[i] = TraceEvent{
			Seq:      rec.Seq,
			Type:     rec.Type,
			Changed:  changed,
			Hash:     rec.StateHash,
			Attached: rec.Attached,
			Detached: rec.Detached,
		}
	}
	return trace
}
