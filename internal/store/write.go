package store

import (
	"context"
	"fmt"

	"github.com/roach88/atomgraph/internal/ir"
)

// WriteSession inserts a session record.
// Uses ON CONFLICT(id) DO NOTHING for idempotency - rewriting the same
// session is silently ignored.
func (s *Store) WriteSession(ctx context.Context, sess ir.Session) error {
	if sess.ID == "" {
		return fmt.Errorf("write session: empty session id")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, graph_hash, root)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, sess.ID, sess.GraphHash, sess.Root)
	if err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return nil
}

// WriteDispatch inserts a dispatch record.
// Uses ON CONFLICT(id) DO NOTHING for idempotency - duplicate IDs are
// silently ignored. A different record at an already used (session, seq)
// still fails on the UNIQUE constraint.
//
// The session referenced by rec.Session must exist (foreign key constraint).
func (s *Store) WriteDispatch(ctx context.Context, rec ir.DispatchRecord) error {
	row, err := encodeDispatch(rec)
	if err != nil {
		return fmt.Errorf("write dispatch: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO dispatches
		(id, session_id, seq, type, payload, key, changed, state_hash, attached, detached, engine_version, ir_version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, row.args()...)
	if err != nil {
		return fmt.Errorf("write dispatch: %w", err)
	}
	return nil
}

// Record implements engine.Journal.
func (s *Store) Record(ctx context.Context, rec ir.DispatchRecord) error {
	return s.WriteDispatch(ctx, rec)
}

// ImportSession writes a session and its records in a single transaction.
// Either everything is written or nothing is.
func (s *Store) ImportSession(ctx context.Context, sess ir.Session, recs []ir.DispatchRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("import session: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO sessions (id, graph_hash, root)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, sess.ID, sess.GraphHash, sess.Root); err != nil {
		return fmt.Errorf("import session: %w", err)
	}

	for _, rec := range recs {
		if rec.Session != sess.ID {
			return fmt.Errorf("import session: record seq %d belongs to session %q", rec.Seq, rec.Session)
		}
		row, err := encodeDispatch(rec)
		if err != nil {
			return fmt.Errorf("import session: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO dispatches
			(id, session_id, seq, type, payload, key, changed, state_hash, attached, detached, engine_version, ir_version)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO NOTHING
		`, row.args()...); err != nil {
			return fmt.Errorf("import session: seq %d: %w", rec.Seq, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("import session: commit: %w", err)
	}
	return nil
}

// dispatchRow is a DispatchRecord with its JSON columns encoded.
type dispatchRow struct {
	rec      ir.DispatchRecord
	payload  string
	key      string
	changed  string
	attached string
	detached string
}

func encodeDispatch(rec ir.DispatchRecord) (dispatchRow, error) {
	row := dispatchRow{rec: rec}
	var err error
	if row.payload, err = marshalValue(rec.Payload); err != nil {
		return row, err
	}
	if row.key, err = marshalValue(rec.Key); err != nil {
		return row, err
	}
	if row.changed, err = marshalIDs(rec.Changed); err != nil {
		return row, err
	}
	if row.attached, err = marshalIDs(rec.Attached); err != nil {
		return row, err
	}
	if row.detached, err = marshalIDs(rec.Detached); err != nil {
		return row, err
	}
	return row, nil
}

func (r dispatchRow) args() []any {
	return []any{
		r.rec.ID,
		r.rec.Session,
		r.rec.Seq,
		r.rec.Type,
		r.payload,
		r.key,
		r.changed,
		r.rec.StateHash,
		r.attached,
		r.detached,
		r.rec.EngineVersion,
		r.rec.IRVersion,
	}
}
