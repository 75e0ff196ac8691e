package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/atomgraph/internal/ir"
	"github.com/roach88/atomgraph/internal/queryir"
	"github.com/roach88/atomgraph/internal/querysql"
)

const dispatchColumns = `id, session_id, seq, type, payload, key, changed, state_hash, attached, detached, engine_version, ir_version`

// ReadSession returns the session with the given id.
// Returns ErrNotFound if it does not exist.
func (s *Store) ReadSession(ctx context.Context, id string) (ir.Session, error) {
	var sess ir.Session
	err := s.db.QueryRowContext(ctx, `
		SELECT id, graph_hash, root FROM sessions WHERE id = ?
	`, id).Scan(&sess.ID, &sess.GraphHash, &sess.Root)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.Session{}, fmt.Errorf("session %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return ir.Session{}, fmt.Errorf("read session: %w", err)
	}
	return sess, nil
}

// ListSessions returns all sessions ordered by id.
// Session ids are UUIDv7 by default, so id order is creation order.
func (s *Store) ListSessions(ctx context.Context) ([]ir.Session, error) {
	query, args, err := querysql.Compile(queryir.Select{From: "sessions"})
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	sessions := []ir.Session{}
	for rows.Next() {
		var sess ir.Session
		if err := rows.Scan(&sess.ID, &sess.GraphHash, &sess.Root); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

// ReadDispatch returns the dispatch with the given id.
// Returns ErrNotFound if it does not exist.
func (s *Store) ReadDispatch(ctx context.Context, id string) (ir.DispatchRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+dispatchColumns+` FROM dispatches WHERE id = ?`, id)
	rec, err := scanDispatch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.DispatchRecord{}, fmt.Errorf("dispatch %q: %w", id, ErrNotFound)
	}
	return rec, err
}

// ReadDispatches returns every dispatch of a session in seq order.
// Returns an empty slice (not nil) if the session has none.
func (s *Store) ReadDispatches(ctx context.Context, sessionID string) ([]ir.DispatchRecord, error) {
	return s.QueryDispatches(ctx, sessionID)
}

// ReadDispatchesByType returns the dispatches of one event type in a
// session, in seq order.
func (s *Store) ReadDispatchesByType(ctx context.Context, sessionID, typ string) ([]ir.DispatchRecord, error) {
	return s.QueryDispatches(ctx, sessionID, queryir.Equals{Field: "type", Value: ir.IRString(typ)})
}

// QueryDispatches returns the dispatches of a session matching every
// filter, in seq order.
func (s *Store) QueryDispatches(ctx context.Context, sessionID string, filters ...queryir.Predicate) ([]ir.DispatchRecord, error) {
	preds := append([]queryir.Predicate{
		queryir.Equals{Field: "session_id", Value: ir.IRString(sessionID)},
	}, filters...)

	query, args, err := querysql.Compile(queryir.Where("dispatches", preds...))
	if err != nil {
		return nil, fmt.Errorf("compile dispatch query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query dispatches: %w", err)
	}
	return collectDispatches(rows)
}

// LastSeq returns the highest seq recorded for a session, or 0.
func (s *Store) LastSeq(ctx context.Context, sessionID string) (int64, error) {
	var seq sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT MAX(seq) FROM dispatches WHERE session_id = ?
	`, sessionID).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("last seq: %w", err)
	}
	return seq.Int64, nil
}

func collectDispatches(rows *sql.Rows) ([]ir.DispatchRecord, error) {
	defer rows.Close()

	recs := []ir.DispatchRecord{}
	for rows.Next() {
		rec, err := scanDispatch(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dispatches: %w", err)
	}
	return recs, nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// scanDispatch scans one row into a DispatchRecord. Empty attached and
// detached lists decode as nil, matching what the engine records.
func scanDispatch(row scanner) (ir.DispatchRecord, error) {
	var (
		rec                                       ir.DispatchRecord
		payload, key, changed, attached, detached string
	)
	if err := row.Scan(
		&rec.ID, &rec.Session, &rec.Seq, &rec.Type,
		&payload, &key, &changed, &rec.StateHash,
		&attached, &detached, &rec.EngineVersion, &rec.IRVersion,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return rec, err
		}
		return rec, fmt.Errorf("scan dispatch: %w", err)
	}

	var err error
	if rec.Payload, err = unmarshalValue(payload); err != nil {
		return rec, fmt.Errorf("dispatch %s payload: %w", rec.ID, err)
	}
	if rec.Key, err = unmarshalValue(key); err != nil {
		return rec, fmt.Errorf("dispatch %s key: %w", rec.ID, err)
	}
	if rec.Changed, err = unmarshalIDs(changed); err != nil {
		return rec, fmt.Errorf("dispatch %s changed: %w", rec.ID, err)
	}
	if rec.Attached, err = unmarshalIDs(attached); err != nil {
		return rec, fmt.Errorf("dispatch %s attached: %w", rec.ID, err)
	}
	if rec.Detached, err = unmarshalIDs(detached); err != nil {
		return rec, fmt.Errorf("dispatch %s detached: %w", rec.ID, err)
	}
	if len(rec.Attached) == 0 {
		rec.Attached = nil
	}
	if len(rec.Detached) == 0 {
		rec.Detached = nil
	}
	return rec, nil
}
