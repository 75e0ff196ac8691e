package engine

import "github.com/roach88/atomgraph/internal/atom"

// DefaultMaxCascade bounds how many dispatches one Dispatch call may drain,
// counting the caller's own event and every event queued by listeners while
// the cascade runs.
const DefaultMaxCascade = 1000

// cascadeQuota counts dispatches drained in one cascade. A listener that
// dispatches on every change (A -> B -> A ...) would otherwise never let
// Dispatch return.
type cascadeQuota struct {
	limit   int
	current int
}

func newCascadeQuota(limit int) *cascadeQuota {
	return &cascadeQuota{limit: limit}
}

// Check counts one more dispatch and fails once the limit is passed.
func (q *cascadeQuota) Check(eventType atom.ID) error {
	q.current++
	if q.limit > 0 && q.current > q.limit {
		return NewCascadeError(eventType, q.current, q.limit)
	}
	return nil
}

// Current returns the number of dispatches counted so far.
func (q *cascadeQuota) Current() int {
	return q.current
}
