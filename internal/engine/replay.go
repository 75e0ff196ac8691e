package engine

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/atomgraph/internal/atom"
	"github.com/roach88/atomgraph/internal/ir"
)

// Replay rebuilds an engine from journaled records and verifies each one.
//
// Records must start at the session's first dispatch (the init action) and
// be in seq order. For each record the engine applies its recorded
// attachments, re-dispatches the event and compares seq, changed ids and
// snapshot hash. The first mismatch returns a REPLAY_DIVERGED error.
//
// With no records Replay behaves like New. The journal option, if given,
// only sees dispatches made after the replay.
//
// Payloads and keys come back as plain Go values (int, string, bool, nil,
// []any, map[string]any), so reducers used in journaled sessions must
// accept those types.
func Replay(ctx context.Context, root *atom.Atom, records []ir.DispatchRecord, opts ...Option) (*Engine, error) {
	e, err := build(root, opts...)
	if err != nil {
		return nil, err
	}

	if len(records) == 0 {
		if e.journal != nil && e.session == "" {
			e.session = e.sessions.Generate()
		}
		if _, err := e.DispatchContext(ctx, atom.InitEvent()); err != nil {
			return nil, fmt.Errorf("engine init: %w", err)
		}
		return e, nil
	}

	journal := e.journal
	e.journal = nil
	if e.session == "" {
		e.session = records[0].Session
	}

	for _, rec := range records {
		if err := e.replayOne(ctx, rec); err != nil {
			return nil, err
		}
	}

	e.journal = journal
	e.logger.Debug("replay complete", "session", e.session, "seq", e.clock.Current(), "records", len(records))
	return e, nil
}

func (e *Engine) replayOne(ctx context.Context, rec ir.DispatchRecord) error {
	typ := atom.ID(rec.Type)

	if want := e.clock.Current() + 1; rec.Seq != want {
		return newDivergence(rec.Seq, typ, "seq", fmt.Sprint(rec.Seq), fmt.Sprint(want))
	}

	e.mu.Lock()
	err := e.applyTopology(rec)
	e.mu.Unlock()
	if err != nil {
		return &RuntimeError{
			Code:      ErrCodeReplayDiverged,
			Message:   "cannot restore attached atoms",
			Seq:       rec.Seq,
			EventType: typ,
			Err:       err,
		}
	}

	ev := atom.Event{Type: typ, Payload: ir.ToGo(rec.Payload), Key: ir.ToGo(rec.Key)}
	change, err := e.commit(ctx, ev)
	if err != nil {
		return &RuntimeError{
			Code:      ErrCodeReplayDiverged,
			Message:   "recorded dispatch failed on replay",
			Seq:       rec.Seq,
			EventType: typ,
			Err:       err,
		}
	}

	got := IDStrings(change.ChangedIDs)
	if !slices.Equal(got, rec.Changed) {
		return newDivergence(rec.Seq, typ, "changed",
			"["+strings.Join(rec.Changed, ",")+"]", "["+strings.Join(got, ",")+"]")
	}
	hash, err := HashSnapshot(change.State)
	if err != nil {
		return fmt.Errorf("replay seq %d: %w", rec.Seq, err)
	}
	if hash != rec.StateHash {
		return newDivergence(rec.Seq, typ, "state_hash", rec.StateHash, hash)
	}
	return nil
}

// applyTopology replays the attach and detach operations carried by rec.
// Caller holds e.mu.
func (e *Engine) applyTopology(rec ir.DispatchRecord) error {
	for _, name := range rec.Detached {
		at, ok := e.attached[atom.ID(name)]
		if !ok {
			return fmt.Errorf("detached atom %q was never attached", name)
		}
		if err := e.detachLocked(at.atom); err != nil {
			return err
		}
	}
	for _, name := range rec.Attached {
		if e.resolve == nil {
			return fmt.Errorf("atom %q: no resolver configured", name)
		}
		a, ok := e.resolve(atom.ID(name))
		if !ok {
			return fmt.Errorf("atom %q: not found", name)
		}
		if _, err := e.attachLocked(a); err != nil {
			return err
		}
		// Replay holds the attachment without a subscriber.
		if at, ok := e.attached[a.ID()]; ok {
			at.refs = 0
		}
	}
	e.pendingAttach, e.pendingDetach = nil, nil
	return nil
}
