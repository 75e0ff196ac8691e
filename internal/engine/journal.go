package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/atomgraph/internal/atom"
	"github.com/roach88/atomgraph/internal/ir"
)

// Journal persists committed dispatches. Record is called with the engine
// lock held, before the snapshot is replaced; an error aborts the commit.
type Journal interface {
	Record(ctx context.Context, rec ir.DispatchRecord) error
}

// JournalFunc adapts a function to Journal.
type JournalFunc func(ctx context.Context, rec ir.DispatchRecord) error

// Record implements Journal.
func (f JournalFunc) Record(ctx context.Context, rec ir.DispatchRecord) error {
	return f(ctx, rec)
}

// Metrics receives dispatch outcomes.
type Metrics interface {
	ObserveDispatch(eventType string, changed int, d time.Duration)
	ObserveError(eventType string)
}

// SnapshotIR converts a snapshot into an IR object keyed by node id.
// Every value must be representable in IR (no floats, no structs).
func SnapshotIR(state atom.Snapshot) (ir.IRObject, error) {
	obj := make(ir.IRObject, len(state))
	for id, v := range state {
		iv, err := ir.FromGo(v)
		if err != nil {
			return nil, fmt.Errorf("node %q: %w", id, err)
		}
		obj[string(id)] = iv
	}
	return obj, nil
}

// HashSnapshot returns the content hash of state.
func HashSnapshot(state atom.Snapshot) (string, error) {
	obj, err := SnapshotIR(state)
	if err != nil {
		return "", err
	}
	return ir.SnapshotHash(obj)
}

// IDStrings converts ids for serialization.
func IDStrings(ids []atom.ID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}

// record builds the journal entry for a change.
func (e *Engine) record(ch Change, attached, detached []atom.ID) (ir.DispatchRecord, error) {
	payload, err := ir.FromGo(ch.Payload)
	if err != nil {
		return ir.DispatchRecord{}, fmt.Errorf("payload: %w", err)
	}
	key, err := ir.FromGo(ch.Key)
	if err != nil {
		return ir.DispatchRecord{}, fmt.Errorf("key: %w", err)
	}
	hash, err := HashSnapshot(ch.State)
	if err != nil {
		return ir.DispatchRecord{}, fmt.Errorf("state: %w", err)
	}
	id, err := ir.DispatchID(e.session, ch.Seq, string(ch.Type), payload, key)
	if err != nil {
		return ir.DispatchRecord{}, err
	}

	rec := ir.DispatchRecord{
		ID:            id,
		Session:       e.session,
		Seq:           ch.Seq,
		Type:          string(ch.Type),
		Payload:       payload,
		Key:           key,
		Changed:       IDStrings(ch.ChangedIDs),
		StateHash:     hash,
		EngineVersion: ir.EngineVersion,
		IRVersion:     ir.IRVersion,
	}
	if len(attached) > 0 {
		rec.Attached = IDStrings(attached)
	}
	if len(detached) > 0 {
		rec.Detached = IDStrings(detached)
	}
	return rec, nil
}
