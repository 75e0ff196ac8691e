package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/atomgraph/internal/compiler"
	"github.com/roach88/atomgraph/internal/engine"
	"github.com/roach88/atomgraph/internal/ir"
	"github.com/roach88/atomgraph/internal/store"
)

// DispatchOptions holds flags for the dispatch command.
type DispatchOptions struct {
	*RootOptions
	Database string
	Session  string // defaults to the latest session
	Key      string
}

// DispatchResult holds the outcome of the dispatch command.
type DispatchResult struct {
	Session string         `json:"session"`
	Change  ChangeRow      `json:"change"`
	State   map[string]any `json:"state"`
}

// NewDispatchCommand creates the dispatch command.
func NewDispatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DispatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "dispatch <graph-dir> <action> [payload]",
		Short: "Dispatch one event into a journaled session",
		Long: `Continue a journaled session with one more event.

The session is rebuilt by replaying its journal against the graph (which
must be the graph the session was recorded with), then the event is
dispatched and journaled. The payload and --key are parsed as JSON or
YAML scalars, so 5 is an int and "5" a string.

Examples:
  atomgraph dispatch ./graphs/counter setCount 5 --db ./atomgraph.db
  atomgraph dispatch ./graphs/todos toggleTodo --key 'id#1' --db ./atomgraph.db --session <id>`,
		Args:          cobra.RangeArgs(2, 3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			payload := ""
			if len(args) == 3 {
				payload = args[2]
			}
			return runDispatch(opts, args[0], args[1], payload, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Session, "session", "", "session to continue (defaults to the latest)")
	cmd.Flags().StringVar(&opts.Key, "key", "", "lens key for the event")

	return cmd
}

func runDispatch(opts *DispatchOptions, graphDir, action, payloadArg string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	payload, err := parseScalar(payloadArg)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeGeneric, "invalid payload", err)
	}
	key, err := parseScalar(opts.Key)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeGeneric, "invalid --key", err)
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

	eng, sessionID, err := resumeSession(ctx, st, g, opts.Session)
	if err != nil {
		code := ExitCommandError
		if engine.IsReplayDivergence(err) {
			code = ExitFailure
		}
		return formatter.fail(code, ErrCodeGeneric, "failed to resume session", err)
	}

	ev, err := g.Event(action, payload, key)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeGeneric, "invalid event", err)
	}
	change, err := eng.DispatchContext(ctx, ev)
	if err != nil {
		return formatter.fail(ExitFailure, ErrCodeGeneric, "dispatch failed", err)
	}

	result := DispatchResult{Session: sessionID, Change: changeRow(change)}
	if result.State, err = stateMap(eng); err != nil {
		return formatter.fail(ExitFailure, ErrCodeGeneric, "failed to encode state", err)
	}

	if formatter.JSON() {
		return formatter.Success(result)
	}
	fmt.Fprintf(formatter.Writer, "[%d] %s → %v\n", change.Seq, change.Type, change.ChangedIDs)
	return printState(formatter, result.State)
}

// resumeSession replays a journaled session into an engine that journals
// further dispatches to st. An empty id selects the latest session.
func resumeSession(ctx context.Context, st *store.Store, g *compiler.Graph, id string) (*engine.Engine, string, error) {
	if id == "" {
		sess, err := st.LatestSession(ctx)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, "", errors.New("database has no sessions")
			}
			return nil, "", err
		}
		id = sess.ID
	}

	state, err := st.GetSessionState(ctx, id)
	if err != nil {
		return nil, "", err
	}
	if state.Gap != 0 {
		return nil, "", fmt.Errorf("session %s: journal is missing seq %d", id, state.Gap)
	}
	if state.Session.GraphHash != g.Hash {
		return nil, "", fmt.Errorf("session %s was recorded with a different graph (hash %s, now %s)",
			id, state.Session.GraphHash, g.Hash)
	}

	root, err := g.Root(state.Session.Root)
	if err != nil {
		return nil, "", err
	}

	eng, err := engine.Replay(ctx, root, state.Records,
		engine.WithLogger(slog.Default()),
		engine.WithResolver(g.Lookup),
		engine.WithSession(id),
		engine.WithJournal(st),
	)
	if err != nil {
		return nil, "", err
	}
	slog.Debug("session resumed", "session", id, "seq", eng.Seq())
	return eng, id, nil
}

// parseScalar parses a command-line value as YAML, which accepts JSON.
// Empty input is nil.
func parseScalar(s string) (any, error) {
	if s == "" {
		return nil, nil
	}
	var v any
	if err := yaml.Unmarshal([]byte(s), &v); err != nil {
		return nil, err
	}
	if _, err := ir.FromGo(v); err != nil {
		return nil, err
	}
	return v, nil
}
