package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/atomgraph/internal/ir"
)

// createTestStore creates a new store in a temp directory for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestSession writes a session and returns it.
func createTestSession(t *testing.T, s *Store, id string) ir.Session {
	t.Helper()
	sess := ir.Session{ID: id, GraphHash: "graph-hash", Root: "root"}
	if err := s.WriteSession(t.Context(), sess); err != nil {
		t.Fatalf("WriteSession() failed: %v", err)
	}
	return sess
}

// createTestDispatch creates a dispatch record with minimal required fields.
func createTestDispatch(session string, seq int64, typ string, payload ir.IRValue) ir.DispatchRecord {
	return ir.DispatchRecord{
		ID:            ir.MustDispatchID(session, seq, typ, payload, nil),
		Session:       session,
		Seq:           seq,
		Type:          typ,
		Payload:       payload,
		Key:           ir.IRNull{},
		Changed:       []string{},
		StateHash:     "state-hash",
		EngineVersion: ir.EngineVersion,
		IRVersion:     ir.IRVersion,
	}
}
