package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/atomgraph/internal/ir"
	"github.com/roach88/atomgraph/internal/store"
)

// importTampered copies session src into a new session whose last record
// carries a wrong state hash.
func importTampered(t *testing.T, db, src, dst string) {
	t.Helper()
	ctx := t.Context()
	st, err := store.Open(db)
	require.NoError(t, err)
	defer st.Close()

	state, err := st.GetSessionState(ctx, src)
	require.NoError(t, err)

	recs := make([]ir.DispatchRecord, len(state.Records))
	for i, rec := range state.Records {
		rec.Session = dst
		rec.ID = rec.ID + "-tampered"
		recs[i] = rec
	}
	recs[len(recs)-1].StateHash = "not-the-hash"

	sess := state.Session
	sess.ID = dst
	require.NoError(t, st.ImportSession(ctx, sess, recs))
}

func TestReplayMissingDatabaseFlag(t *testing.T) {
	_, err := execute(t, NewReplayCommand(&RootOptions{Format: "text"}), counterDir(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
}

func TestReplayEmptyDatabase(t *testing.T) {
	db := filepath.Join(t.TempDir(), "test.db")
	st, err := store.Open(db)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	out, err := execute(t, NewReplayCommand(&RootOptions{Format: "text"}), counterDir(t), "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "No sessions found in database.")
}

func TestReplayDeterministic(t *testing.T) {
	dir := counterDir(t)
	db := recordSession(t, dir, "", "s1", counterEvents)
	recordInto(t, db, dir, "Dash", "s2", "events:\n  - dispatch: setCount\n    payload: 3\n")

	out, err := execute(t, NewReplayCommand(&RootOptions{Format: "text"}), dir, "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "Replay Summary: 2 session(s)")
	assert.Contains(t, out, "✓ Session: s1")
	assert.Contains(t, out, "Dispatches: 4 (root @@root, last seq 4)")
	assert.Contains(t, out, "Dispatches: 2 (root Dash, last seq 2)")
	assert.Contains(t, out, "✓ All sessions verified deterministic")
}

func TestReplayDeterministicJSON(t *testing.T) {
	dir := counterDir(t)
	db := recordSession(t, dir, "", "s1", counterEvents)

	out, err := execute(t, NewReplayCommand(&RootOptions{Format: "json"}), dir, "--db", db)
	require.NoError(t, err)

	var resp struct {
		Status string       `json:"status"`
		Data   ReplayResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.AllDeterministic)
	require.Len(t, resp.Data.Sessions, 1)
	assert.Equal(t, ReplaySessionResult{
		Session:       "s1",
		Root:          "@@root",
		Dispatches:    4,
		LastSeq:       4,
		Deterministic: true,
	}, resp.Data.Sessions[0])
}

func TestReplayAfterDispatch(t *testing.T) {
	dir := counterDir(t)
	db := recordSession(t, dir, "Dash", "s1", counterEvents)

	_, err := execute(t, NewDispatchCommand(&RootOptions{Format: "text"}), dir, "inc", "--db", db)
	require.NoError(t, err)

	out, err := execute(t, NewReplayCommand(&RootOptions{Format: "text"}), dir, "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "Dispatches: 5 (root Dash, last seq 5)")
}

func TestReplayDivergence(t *testing.T) {
	dir := counterDir(t)
	db := recordSession(t, dir, "", "s1", counterEvents)
	importTampered(t, db, "s1", "s2")

	out, err := execute(t, NewReplayCommand(&RootOptions{Format: "text"}), dir, "--db", db)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✓ Session: s1")
	assert.Contains(t, out, "✗ Session: s2")
	assert.Contains(t, out, "Warning:")
	assert.Contains(t, out, "✗ Determinism verification failed")
}

func TestReplaySpecificSession(t *testing.T) {
	dir := counterDir(t)
	db := recordSession(t, dir, "", "s1", counterEvents)
	importTampered(t, db, "s1", "s2")

	out, err := execute(t, NewReplayCommand(&RootOptions{Format: "json"}), dir, "--db", db, "--session", "s1")
	require.NoError(t, err)

	var resp struct {
		Data ReplayResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, 1, resp.Data.TotalSessions)
	assert.True(t, resp.Data.AllDeterministic)
}

func TestReplayDivergenceJSON(t *testing.T) {
	dir := counterDir(t)
	db := recordSession(t, dir, "", "s1", counterEvents)
	importTampered(t, db, "s1", "s2")

	out, err := execute(t, NewReplayCommand(&RootOptions{Format: "json"}), dir, "--db", db, "--session", "s2")
	require.Error(t, err)

	var resp struct {
		Status string       `json:"status"`
		Data   ReplayResult `json:"data"`
		Error  *CLIError    `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E_DETERMINISM", resp.Error.Code)
	require.Len(t, resp.Data.Sessions, 1)
	assert.False(t, resp.Data.Sessions[0].Deterministic)
	assert.Contains(t, resp.Data.Sessions[0].Error, "state_hash")
}

func TestReplayUnknownSession(t *testing.T) {
	dir := counterDir(t)
	db := recordSession(t, dir, "", "s1", counterEvents)

	_, err := execute(t, NewReplayCommand(&RootOptions{Format: "text"}), dir, "--db", db, "--session", "nope")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestReplayHelpText(t *testing.T) {
	cmd := NewReplayCommand(&RootOptions{})
	assert.Contains(t, cmd.Long, "snapshot hash")
	assert.Contains(t, cmd.Long, "Exit codes")
}
