package store

import (
	"context"
	"fmt"
	"slices"

	"github.com/roach88/atomgraph/internal/ir"
)

// SessionState is everything needed to resume or verify a session.
type SessionState struct {
	Session ir.Session
	Records []ir.DispatchRecord
	LastSeq int64

	// Attached lists atoms still attached by lazy subscriptions after the
	// last record, in attach order.
	Attached []string

	// Gap is the first missing seq, or 0 when seqs run 1..LastSeq.
	Gap int64
}

// GetSessionState loads a session with its records and derives the
// bookkeeping a replay needs.
func (s *Store) GetSessionState(ctx context.Context, sessionID string) (SessionState, error) {
	sess, err := s.ReadSession(ctx, sessionID)
	if err != nil {
		return SessionState{}, fmt.Errorf("get session state: %w", err)
	}

	recs, err := s.ReadDispatches(ctx, sessionID)
	if err != nil {
		return SessionState{}, fmt.Errorf("get session state: %w", err)
	}

	state := SessionState{Session: sess, Records: recs}
	for i, rec := range recs {
		if state.Gap == 0 && rec.Seq != int64(i+1) {
			state.Gap = int64(i + 1)
		}
		state.LastSeq = rec.Seq
		state.Attached = applyTopology(state.Attached, rec)
	}
	return state, nil
}

// applyTopology folds one record's detach and attach lists into the set of
// attached atoms. Detaches apply first, as on replay.
func applyTopology(attached []string, rec ir.DispatchRecord) []string {
	for _, id := range rec.Detached {
		attached = slices.DeleteFunc(attached, func(a string) bool { return a == id })
	}
	for _, id := range rec.Attached {
		if !slices.Contains(attached, id) {
			attached = append(attached, id)
		}
	}
	return attached
}

// LatestSession returns the most recently created session, by id order.
// Returns ErrNotFound when the store has no sessions.
func (s *Store) LatestSession(ctx context.Context) (ir.Session, error) {
	sessions, err := s.ListSessions(ctx)
	if err != nil {
		return ir.Session{}, err
	}
	if len(sessions) == 0 {
		return ir.Session{}, fmt.Errorf("latest session: %w", ErrNotFound)
	}
	return sessions[len(sessions)-1], nil
}
