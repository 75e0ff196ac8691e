package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/roach88/atomgraph/internal/compiler"
	"github.com/roach88/atomgraph/internal/engine"
	"github.com/roach88/atomgraph/internal/ir"
	"github.com/roach88/atomgraph/internal/metrics"
	"github.com/roach88/atomgraph/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database    string
	Root        string
	MetricsAddr string

	// Sessions overrides the session token generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	Sessions engine.SessionGenerator
}

// ChangeRow is one committed dispatch in command output.
type ChangeRow struct {
	Seq     int64    `json:"seq"`
	Type    string   `json:"type"`
	Changed []string `json:"changed"`
}

// RunResult holds the outcome of the run command.
type RunResult struct {
	Session string         `json:"session,omitempty"`
	Root    string         `json:"root"`
	Changes []ChangeRow    `json:"changes"`
	State   map[string]any `json:"state"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return newRunCommand(&RunOptions{RootOptions: rootOpts})
}

func newRunCommand(opts *RunOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <graph-dir> <events.yaml>",
		Short: "Dispatch a file of events against a graph",
		Long: `Build the graph, dispatch every event in the events file and print
what changed.

With --db the session and each dispatch are journaled to SQLite so the
session can later be traced, replayed or continued with dispatch.
With --metrics-addr the Prometheus metrics of the run are served on
that address until the process is interrupted.

Examples:
  atomgraph run ./graphs/counter events.yaml
  atomgraph run ./graphs/counter events.yaml --db ./atomgraph.db --root Dash
  atomgraph run ./graphs/counter events.yaml --metrics-addr :9090`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEvents(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database for the journal")
	cmd.Flags().StringVar(&opts.Root, "root", "", "root atom (defaults to a combine of every atom)")
	cmd.Flags().StringVar(&opts.MetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address after the run")

	return cmd
}

func runEvents(opts *RunOptions, graphDir, eventsPath string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	slog.Info("building graph", "dir", graphDir)
	g, err := BuildGraph(graphDir)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeBuildFailed, "failed to build graph", err)
	}

	events, err := LoadEvents(eventsPath)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeLoadFailed, "failed to load events", err)
	}

	root, err := g.Root(opts.Root)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeGeneric, "failed to resolve root", err)
	}

	reg := prometheus.NewRegistry()
	collector, err := metrics.New(reg)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeGeneric, "failed to register metrics", err)
	}

	engOpts := []engine.Option{
		engine.WithLogger(slog.Default()),
		engine.WithMetrics(collector),
		engine.WithResolver(g.Lookup),
	}

	result := RunResult{Root: string(root.ID()), Changes: []ChangeRow{}}

	if opts.Database != "" {
		slog.Info("opening database", "path", opts.Database)
		st, err := store.Open(opts.Database)
		if err != nil {
			return formatter.fail(ExitCommandError, ErrCodeGeneric, "failed to open database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				slog.Error("error closing database", "error", closeErr)
			}
		}()

		sessions := opts.Sessions
		if sessions == nil {
			sessions = engine.UUIDv7Generator{}
		}
		result.Session = sessions.Generate()
		if err := st.WriteSession(ctx, ir.Session{
			ID:        result.Session,
			GraphHash: g.Hash,
			Root:      result.Root,
		}); err != nil {
			return formatter.fail(ExitCommandError, ErrCodeGeneric, "failed to write session", err)
		}
		engOpts = append(engOpts, engine.WithJournal(st), engine.WithSession(result.Session))
	}

	eng, err := engine.New(root, engOpts...)
	if err != nil {
		return formatter.fail(ExitFailure, ErrCodeGeneric, "failed to start engine", err)
	}
	slog.Info("engine started", "root", result.Root, "session", result.Session)

	for i, step := range events {
		change, err := dispatchStep(ctx, g, eng, step)
		if err != nil {
			return formatter.fail(ExitFailure, ErrCodeGeneric, fmt.Sprintf("events[%d] %s", i, step.Dispatch), err)
		}
		result.Changes = append(result.Changes, changeRow(change))
		formatter.Printf("[%d] %s → %v\n", change.Seq, change.Type, change.ChangedIDs)
	}

	if result.State, err = stateMap(eng); err != nil {
		return formatter.fail(ExitFailure, ErrCodeGeneric, "failed to encode state", err)
	}

	if formatter.JSON() {
		if err := formatter.Success(result); err != nil {
			return err
		}
	} else {
		if err := printState(formatter, result.State); err != nil {
			return err
		}
		if result.Session != "" {
			fmt.Fprintf(formatter.Writer, "Session: %s\n", result.Session)
		}
	}

	if opts.MetricsAddr != "" {
		return serveMetrics(ctx, opts.MetricsAddr, reg, formatter)
	}
	return nil
}

func dispatchStep(ctx context.Context, g *compiler.Graph, eng *engine.Engine, step EventStep) (engine.Change, error) {
	ev, err := g.Event(step.Dispatch, step.Payload, step.Key)
	if err != nil {
		return engine.Change{}, err
	}
	return eng.DispatchContext(ctx, ev)
}

func changeRow(ch engine.Change) ChangeRow {
	changed := engine.IDStrings(ch.ChangedIDs)
	if changed == nil {
		changed = []string{}
	}
	return ChangeRow{Seq: ch.Seq, Type: string(ch.Type), Changed: changed}
}

// stateMap returns the engine snapshot as plain JSON-ready values.
func stateMap(eng *engine.Engine) (map[string]any, error) {
	obj, err := engine.SnapshotIR(eng.State())
	if err != nil {
		return nil, err
	}
	state, _ := ir.ToGo(obj).(map[string]any)
	return state, nil
}

func printState(formatter *OutputFormatter, state map[string]any) error {
	data, err := ir.MarshalCanonical(state)
	if err != nil {
		return err
	}
	fmt.Fprintf(formatter.Writer, "\nState: %s\n", data)
	return nil
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

func serveMetrics(ctx context.Context, addr string, reg *prometheus.Registry, formatter *OutputFormatter) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeGeneric, "failed to listen for metrics", err)
	}
	srv := &http.Server{Handler: metrics.Handler(reg), ReadHeaderTimeout: 5 * time.Second}

	formatter.Printf("Serving metrics on http://%s/metrics. Press Ctrl-C to stop.\n", ln.Addr())
	slog.Info("serving metrics", "addr", ln.Addr().String())

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		slog.Info("metrics server stopped")
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return WrapExitError(ExitCommandError, "metrics server failed", err)
	}
}
