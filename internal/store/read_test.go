package store

import (
	"errors"
	"testing"

	"github.com/roach88/atomgraph/internal/ir"
	"github.com/roach88/atomgraph/internal/queryir"
)

func TestReadSession_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.ReadSession(t.Context(), "nope")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("ReadSession() error = %v, want ErrNotFound", err)
	}
}

func TestReadDispatch_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.ReadDispatch(t.Context(), "nope")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("ReadDispatch() error = %v, want ErrNotFound", err)
	}
}

func TestListSessions_Ordered(t *testing.T) {
	s := createTestStore(t)
	ctx := t.Context()

	for _, id := range []string{"s3", "s1", "s2"} {
		createTestSession(t, s, id)
	}

	sessions, err := s.ListSessions(ctx)
	if err != nil {
		t.Fatalf("ListSessions() failed: %v", err)
	}
	var ids []string
	for _, sess := range sessions {
		ids = append(ids, sess.ID)
	}
	want := []string{"s1", "s2", "s3"}
	if len(ids) != len(want) {
		t.Fatalf("got %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("sessions[%d] = %q, want %q", i, ids[i], want[i])
		}
	}

	latest, err := s.LatestSession(ctx)
	if err != nil {
		t.Fatalf("LatestSession() failed: %v", err)
	}
	if latest.ID != "s3" {
		t.Errorf("LatestSession() = %q, want s3", latest.ID)
	}
}

func TestLatestSession_Empty(t *testing.T) {
	s := createTestStore(t)

	if _, err := s.LatestSession(t.Context()); !errors.Is(err, ErrNotFound) {
		t.Errorf("LatestSession() error = %v, want ErrNotFound", err)
	}
}

func TestReadDispatches_DeterministicOrder(t *testing.T) {
	s := createTestStore(t)
	ctx := t.Context()
	createTestSession(t, s, "s1")
	createTestSession(t, s, "s2")

	for _, seq := range []int64{3, 1, 2} {
		if err := s.WriteDispatch(ctx, createTestDispatch("s1", seq, "inc", ir.IRInt(seq))); err != nil {
			t.Fatalf("WriteDispatch() failed: %v", err)
		}
	}
	if err := s.WriteDispatch(ctx, createTestDispatch("s2", 1, "inc", ir.IRInt(9))); err != nil {
		t.Fatalf("WriteDispatch() failed: %v", err)
	}

	recs, err := s.ReadDispatches(ctx, "s1")
	if err != nil {
		t.Fatalf("ReadDispatches() failed: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("got %d dispatches, want 3", len(recs))
	}
	for i, rec := range recs {
		if rec.Seq != int64(i+1) {
			t.Errorf("recs[%d].Seq = %d, want %d", i, rec.Seq, i+1)
		}
	}
}

func TestReadDispatches_EmptyNotNil(t *testing.T) {
	s := createTestStore(t)

	recs, err := s.ReadDispatches(t.Context(), "none")
	if err != nil {
		t.Fatalf("ReadDispatches() failed: %v", err)
	}
	if recs == nil {
		t.Error("ReadDispatches() returned nil, want empty slice")
	}
}

func TestReadDispatchesByType(t *testing.T) {
	s := createTestStore(t)
	ctx := t.Context()
	createTestSession(t, s, "s1")

	types := []string{"inc", "set", "inc"}
	for i, typ := range types {
		if err := s.WriteDispatch(ctx, createTestDispatch("s1", int64(i+1), typ, ir.IRInt(1))); err != nil {
			t.Fatalf("WriteDispatch() failed: %v", err)
		}
	}

	recs, err := s.ReadDispatchesByType(ctx, "s1", "inc")
	if err != nil {
		t.Fatalf("ReadDispatchesByType() failed: %v", err)
	}
	if len(recs) != 2 || recs[0].Seq != 1 || recs[1].Seq != 3 {
		t.Errorf("ReadDispatchesByType() = %+v, want seqs 1 and 3", recs)
	}
}

func TestLastSeq(t *testing.T) {
	s := createTestStore(t)
	ctx := t.Context()
	createTestSession(t, s, "s1")

	seq, err := s.LastSeq(ctx, "s1")
	if err != nil {
		t.Fatalf("LastSeq() failed: %v", err)
	}
	if seq != 0 {
		t.Errorf("LastSeq() on empty session = %d, want 0", seq)
	}

	for _, n := range []int64{1, 2} {
		if err := s.WriteDispatch(ctx, createTestDispatch("s1", n, "inc", ir.IRInt(1))); err != nil {
			t.Fatalf("WriteDispatch() failed: %v", err)
		}
	}
	if seq, _ = s.LastSeq(ctx, "s1"); seq != 2 {
		t.Errorf("LastSeq() = %d, want 2", seq)
	}
}

func TestQueryDispatches_SinceSeq(t *testing.T) {
	s := createTestStore(t)
	ctx := t.Context()
	createTestSession(t, s, "s1")
	createTestSession(t, s, "s2")

	for i, typ := range []string{"inc", "set", "inc", "inc"} {
		if err := s.WriteDispatch(ctx, createTestDispatch("s1", int64(i+1), typ, ir.IRInt(1))); err != nil {
			t.Fatalf("WriteDispatch() failed: %v", err)
		}
	}
	if err := s.WriteDispatch(ctx, createTestDispatch("s2", 3, "inc", ir.IRInt(1))); err != nil {
		t.Fatalf("WriteDispatch() failed: %v", err)
	}

	recs, err := s.QueryDispatches(ctx, "s1",
		queryir.Equals{Field: "type", Value: ir.IRString("inc")},
		queryir.AtLeast{Field: "seq", Value: 2},
	)
	if err != nil {
		t.Fatalf("QueryDispatches() failed: %v", err)
	}
	if len(recs) != 2 || recs[0].Seq != 3 || recs[1].Seq != 4 {
		t.Errorf("QueryDispatches() = %+v, want seqs 3 and 4", recs)
	}
}

func TestQueryDispatches_InvalidFilter(t *testing.T) {
	s := createTestStore(t)

	_, err := s.QueryDispatches(t.Context(), "s1", queryir.AtLeast{Field: "type", Value: 1})
	if !errors.Is(err, queryir.ErrInvalidQuery) {
		t.Errorf("QueryDispatches() error = %v, want ErrInvalidQuery", err)
	}
}
