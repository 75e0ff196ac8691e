package cli

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/roach88/atomgraph/internal/testutil"
)

// execute runs cmd with args and returns what it wrote to stdout.
func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func counterDir(t *testing.T) string {
	t.Helper()
	return testutil.WriteGraphDir(t, testutil.CounterGraph)
}

func writeEvents(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "events.yaml")
	testutil.WriteFile(t, path, content)
	return path
}

// recordSession runs events against the counter graph with a journal and
// returns the database path and session id.
func recordSession(t *testing.T, graphDir, root, session, events string) string {
	t.Helper()
	db := filepath.Join(t.TempDir(), "atomgraph.db")
	recordInto(t, db, graphDir, root, session, events)
	return db
}

func recordInto(t *testing.T, db, graphDir, root, session, events string) {
	t.Helper()
	opts := &RunOptions{
		RootOptions: &RootOptions{Format: "text"},
		Sessions:    testutil.NewFixedSessionGenerator(session),
	}
	cmd := newRunCommand(opts)
	args := []string{graphDir, writeEvents(t, events), "--db", db}
	if root != "" {
		args = append(args, "--root", root)
	}
	_, err := execute(t, cmd, args...)
	require.NoError(t, err)
}
