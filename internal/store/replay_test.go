package store

import (
	"io"
	"log/slog"
	"reflect"
	"testing"

	"github.com/roach88/atomgraph/internal/atom"
	"github.com/roach88/atomgraph/internal/engine"
	"github.com/roach88/atomgraph/internal/ir"
)

var _ engine.Journal = (*Store)(nil)

func TestGetSessionState_Topology(t *testing.T) {
	s := createTestStore(t)
	ctx := t.Context()
	createTestSession(t, s, "s1")

	recs := []ir.DispatchRecord{
		createTestDispatch("s1", 1, "init", nil),
		createTestDispatch("s1", 2, "init", nil),
		createTestDispatch("s1", 3, "inc", ir.IRInt(1)),
		createTestDispatch("s1", 4, "inc", ir.IRInt(2)),
	}
	recs[1].Attached = []string{"A", "B"}
	recs[3].Detached = []string{"A"}
	for _, rec := range recs {
		if err := s.WriteDispatch(ctx, rec); err != nil {
			t.Fatalf("WriteDispatch() failed: %v", err)
		}
	}

	state, err := s.GetSessionState(ctx, "s1")
	if err != nil {
		t.Fatalf("GetSessionState() failed: %v", err)
	}
	if state.LastSeq != 4 {
		t.Errorf("LastSeq = %d, want 4", state.LastSeq)
	}
	if state.Gap != 0 {
		t.Errorf("Gap = %d, want 0", state.Gap)
	}
	if !reflect.DeepEqual(state.Attached, []string{"B"}) {
		t.Errorf("Attached = %v, want [B]", state.Attached)
	}
	if len(state.Records) != 4 {
		t.Errorf("got %d records, want 4", len(state.Records))
	}
}

func TestGetSessionState_Gap(t *testing.T) {
	s := createTestStore(t)
	ctx := t.Context()
	createTestSession(t, s, "s1")

	for _, seq := range []int64{1, 2, 4} {
		if err := s.WriteDispatch(ctx, createTestDispatch("s1", seq, "inc", ir.IRInt(1))); err != nil {
			t.Fatalf("WriteDispatch() failed: %v", err)
		}
	}

	state, err := s.GetSessionState(ctx, "s1")
	if err != nil {
		t.Fatalf("GetSessionState() failed: %v", err)
	}
	if state.Gap != 3 {
		t.Errorf("Gap = %d, want 3", state.Gap)
	}
}

// TestJournal_EngineRoundTrip journals a live engine into the store and
// replays the stored session into a fresh engine.
func TestJournal_EngineRoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := t.Context()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	g := atom.NewGraph()
	inc, err := g.Action("inc")
	if err != nil {
		t.Fatal(err)
	}
	rename, err := g.Action("rename")
	if err != nil {
		t.Fatal(err)
	}
	count, err := g.Atom("Count", 0, func(d *atom.Decl) {
		d.On(inc, atom.Reduce(func(n, by int) int { return n + by }))
	})
	if err != nil {
		t.Fatal(err)
	}
	names, err := g.Atom("Names", map[string]any{"a": "x"}, func(d *atom.Decl) {
		d.Lens(rename, atom.Reduce(func(_ string, to string) string { return to }))
	})
	if err != nil {
		t.Fatal(err)
	}
	root, err := g.Combine("root", atom.F("count", count), atom.F("names", names))
	if err != nil {
		t.Fatal(err)
	}

	sess := createTestSession(t, s, "s1")
	e, err := engine.New(root, engine.WithJournal(s), engine.WithSession(sess.ID), engine.WithLogger(logger))
	if err != nil {
		t.Fatalf("engine.New() failed: %v", err)
	}
	for _, ev := range []atom.Event{inc.With(2), rename.WithKey("a", "y"), inc.With(3)} {
		if _, err := e.Dispatch(ev); err != nil {
			t.Fatalf("Dispatch(%s) failed: %v", ev.Type, err)
		}
	}

	state, err := s.GetSessionState(ctx, sess.ID)
	if err != nil {
		t.Fatalf("GetSessionState() failed: %v", err)
	}
	if state.LastSeq != e.Seq() {
		t.Errorf("LastSeq = %d, want %d", state.LastSeq, e.Seq())
	}

	replayed, err := engine.Replay(ctx, root, state.Records, engine.WithLogger(logger))
	if err != nil {
		t.Fatalf("Replay() failed: %v", err)
	}
	if !reflect.DeepEqual(replayed.State(), e.State()) {
		t.Errorf("replayed state = %v, want %v", replayed.State(), e.State())
	}
}
