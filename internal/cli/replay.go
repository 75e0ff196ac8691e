package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/atomgraph/internal/compiler"
	"github.com/roach88/atomgraph/internal/engine"
	"github.com/roach88/atomgraph/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	Session  string // optional - specific session only
}

// ReplaySessionResult holds the replay result for a single session.
type ReplaySessionResult struct {
	Session       string `json:"session"`
	Root          string `json:"root"`
	Dispatches    int    `json:"dispatches"`
	LastSeq       int64  `json:"last_seq"`
	Deterministic bool   `json:"deterministic"`
	Error         string `json:"error,omitempty"`
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	Sessions         []ReplaySessionResult `json:"sessions"`
	TotalSessions    int                   `json:"total_sessions"`
	AllDeterministic bool                  `json:"all_deterministic"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay <graph-dir>",
		Short: "Replay journaled sessions and verify determinism",
		Long: `Replay journaled sessions against a graph and verify determinism.

Every recorded dispatch is re-run in seq order. The changed atom ids and
the snapshot hash must match the journal exactly; the first mismatch
marks the session as non-deterministic.

Exit codes:
  0 - All sessions are deterministic
  1 - Determinism verification failed
  2 - Command error (database not found, etc.)

Examples:
  atomgraph replay ./graphs/counter --db ./atomgraph.db
  atomgraph replay ./graphs/counter --db ./atomgraph.db --session <id>
  atomgraph replay ./graphs/counter --db ./atomgraph.db --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Session, "session", "", "replay specific session only")

	return cmd
}

func runReplay(opts *ReplayOptions, graphDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	g, err := BuildGraph(graphDir)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeBuildFailed, "failed to build graph", err)
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeGeneric, "failed to open database", err)
	}
	defer st.Close()

	var ids []string
	if opts.Session != "" {
		ids = []string{opts.Session}
	} else {
		sessions, err := st.ListSessions(ctx)
		if err != nil {
			return formatter.fail(ExitCommandError, ErrCodeGeneric, "failed to list sessions", err)
		}
		for _, s := range sessions {
			ids = append(ids, s.ID)
		}
	}

	result := ReplayResult{
		Sessions:         make([]ReplaySessionResult, 0, len(ids)),
		TotalSessions:    len(ids),
		AllDeterministic: true,
	}

	for _, id := range ids {
		sr, err := replaySession(ctx, st, g, id)
		if err != nil {
			return formatter.fail(ExitCommandError, ErrCodeGeneric, fmt.Sprintf("failed to replay session %s", id), err)
		}
		result.Sessions = append(result.Sessions, sr)
		if !sr.Deterministic {
			result.AllDeterministic = false
		}
	}

	if formatter.JSON() {
		return outputReplayJSON(formatter, result)
	}
	return outputReplayText(formatter, result)
}

// replaySession verifies one session. Divergence is part of the result;
// only failures to read the session are returned as errors.
func replaySession(ctx context.Context, st *store.Store, g *compiler.Graph, id string) (ReplaySessionResult, error) {
	state, err := st.GetSessionState(ctx, id)
	if err != nil {
		return ReplaySessionResult{}, err
	}

	sr := ReplaySessionResult{
		Session:    id,
		Root:       state.Session.Root,
		Dispatches: len(state.Records),
		LastSeq:    state.LastSeq,
	}

	switch {
	case state.Gap != 0:
		sr.Error = fmt.Sprintf("journal is missing seq %d", state.Gap)
	case state.Session.GraphHash != g.Hash:
		sr.Error = fmt.Sprintf("graph hash mismatch: session %s, graph %s", state.Session.GraphHash, g.Hash)
	default:
		root, err := g.Root(state.Session.Root)
		if err != nil {
			sr.Error = err.Error()
			break
		}
		_, err = engine.Replay(ctx, root, state.Records,
			engine.WithLogger(slog.Default()),
			engine.WithResolver(g.Lookup),
		)
		if err != nil {
			sr.Error = err.Error()
			break
		}
		sr.Deterministic = true
	}

	if !sr.Deterministic {
		slog.Warn("session not deterministic", "session", id, "err", sr.Error)
	}
	return sr, nil
}

func outputReplayJSON(formatter *OutputFormatter, result ReplayResult) error {
	response := CLIResponse{Status: "ok", Data: result}
	if !result.AllDeterministic {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    "E_DETERMINISM",
			Message: "determinism verification failed",
		}
	}

	if err := formatter.Encode(response); err != nil {
		return err
	}
	if !result.AllDeterministic {
		return NewExitError(ExitFailure, "determinism verification failed")
	}
	return nil
}

func outputReplayText(formatter *OutputFormatter, result ReplayResult) error {
	w := formatter.Writer

	if result.TotalSessions == 0 {
		fmt.Fprintln(w, "No sessions found in database.")
		return nil
	}

	fmt.Fprintf(w, "Replay Summary: %d session(s)\n", result.TotalSessions)
	fmt.Fprintln(w)

	for _, s := range result.Sessions {
		status := "✓"
		if !s.Deterministic {
			status = "✗"
		}
		fmt.Fprintf(w, "%s Session: %s\n", status, s.Session)
		fmt.Fprintf(w, "  Dispatches: %d (root %s, last seq %d)\n", s.Dispatches, s.Root, s.LastSeq)
		if s.Error != "" {
			fmt.Fprintf(w, "  Warning: %s\n", s.Error)
		}
		fmt.Fprintln(w)
	}

	if result.AllDeterministic {
		fmt.Fprintln(w, "✓ All sessions verified deterministic")
		return nil
	}
	fmt.Fprintln(w, "✗ Determinism verification failed")
	return NewExitError(ExitFailure, "determinism verification failed")
}
