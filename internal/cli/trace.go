package cli

import (
	"context"
	"fmt"
	"io"
	"maps"
	"slices"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/atomgraph/internal/ir"
	"github.com/roach88/atomgraph/internal/queryir"
	"github.com/roach88/atomgraph/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	Session  string
	Type     string // optional - filter to one event type
	Since    int64  // optional - first seq to show
}

// TraceEvent is one journaled dispatch in the trace timeline.
type TraceEvent struct {
	Seq       int64    `json:"seq"`
	Type      string   `json:"type"`
	ID        string   `json:"id"`
	Payload   any      `json:"payload,omitempty"`
	Key       any      `json:"key,omitempty"`
	Changed   []string `json:"changed"`
	StateHash string   `json:"state_hash"`
	Attached  []string `json:"attached,omitempty"`
	Detached  []string `json:"detached,omitempty"`
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	Session  string       `json:"session"`
	Root     string       `json:"root"`
	Timeline []TraceEvent `json:"timeline"`
	Stats    TraceStats   `json:"stats"`
}

// TraceStats holds summary statistics for the trace.
type TraceStats struct {
	TotalEvents int            `json:"total_events"`
	ByType      map[string]int `json:"by_type"`
	ChangedMost string         `json:"changed_most,omitempty"`
	Attached    []string       `json:"attached,omitempty"`
	Gap         int64          `json:"gap,omitempty"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Print the journaled dispatches of a session",
		Long: `Print the journal of one session.

The output includes:
- Timeline: every dispatch in seq order with the atoms it changed
- Stats: dispatch counts per event type, the atom changed most often and
  the atoms still attached by lazy subscriptions

Examples:
  atomgraph trace --db ./atomgraph.db --session <id>
  atomgraph trace --db ./atomgraph.db --session <id> --type setCount
  atomgraph trace --db ./atomgraph.db --session <id> --since 10
  atomgraph trace --db ./atomgraph.db --session <id> --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Session, "session", "", "session to trace (required)")
	_ = cmd.MarkFlagRequired("session")
	cmd.Flags().StringVar(&opts.Type, "type", "", "filter to one event type")
	cmd.Flags().Int64Var(&opts.Since, "since", 0, "show dispatches from this seq on")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeGeneric, "failed to open database", err)
	}
	defer st.Close()

	state, err := st.GetSessionState(ctx, opts.Session)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeNotFound, "failed to get session state", err)
	}

	recs := state.Records
	if filters := timelineFilters(opts); len(filters) > 0 {
		recs, err = st.QueryDispatches(ctx, opts.Session, filters...)
		if err != nil {
			return formatter.fail(ExitCommandError, ErrCodeGeneric, "failed to query dispatches", err)
		}
	}

	result := TraceResult{
		Session:  state.Session.ID,
		Root:     state.Session.Root,
		Timeline: buildTimeline(recs),
		Stats:    buildStats(state),
	}
	result.Stats.TotalEvents = len(result.Timeline)

	if formatter.JSON() {
		return formatter.Success(result)
	}
	outputTraceText(formatter.Writer, result, opts.Verbose)
	return nil
}

func timelineFilters(opts *TraceOptions) []queryir.Predicate {
	var filters []queryir.Predicate
	if opts.Type != "" {
		filters = append(filters, queryir.Equals{Field: "type", Value: ir.IRString(opts.Type)})
	}
	if opts.Since > 0 {
		filters = append(filters, queryir.AtLeast{Field: "seq", Value: opts.Since})
	}
	return filters
}

// buildTimeline converts journal records to timeline events.
func buildTimeline(recs []ir.DispatchRecord) []TraceEvent {
	timeline := []TraceEvent{}
	for _, rec := range recs {
		changed := rec.Changed
		if changed == nil {
			changed = []string{}
		}
		timeline = append(timeline, TraceEvent{
			Seq:       rec.Seq,
			Type:      rec.Type,
			ID:        rec.ID,
			Payload:   ir.ToGo(rec.Payload),
			Key:       ir.ToGo(rec.Key),
			Changed:   changed,
			StateHash: rec.StateHash,
			Attached:  rec.Attached,
			Detached:  rec.Detached,
		})
	}
	return timeline
}

func buildStats(state store.SessionState) TraceStats {
	stats := TraceStats{
		ByType:   make(map[string]int),
		Attached: state.Attached,
		Gap:      state.Gap,
	}
	counts := make(map[string]int)
	for _, rec := range state.Records {
		stats.ByType[rec.Type]++
		for _, id := range rec.Changed {
			counts[id]++
		}
	}

	// Ties go to the smallest id so the output is stable.
	best := 0
	for _, id := range slices.Sorted(maps.Keys(counts)) {
		if counts[id] > best {
			best = counts[id]
			stats.ChangedMost = id
		}
	}
	return stats
}

func outputTraceText(w io.Writer, result TraceResult, verbose bool) {
	fmt.Fprintf(w, "Trace for Session: %s\n", result.Session)
	fmt.Fprintf(w, "Root: %s\n", result.Root)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Timeline ===")
	if len(result.Timeline) == 0 {
		fmt.Fprintln(w, "  (no events)")
	}
	for _, event := range result.Timeline {
		formatTimelineEvent(w, event, verbose)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Stats ===")
	fmt.Fprintf(w, "  Total Events: %d\n", result.Stats.TotalEvents)
	types := make([]string, 0, len(result.Stats.ByType))
	for t := range result.Stats.ByType {
		types = append(types, t)
	}
	sort.Strings(types)
	for _, t := range types {
		fmt.Fprintf(w, "  %s: %d\n", t, result.Stats.ByType[t])
	}
	if result.Stats.ChangedMost != "" {
		fmt.Fprintf(w, "  Changed Most: %s\n", result.Stats.ChangedMost)
	}
	if len(result.Stats.Attached) > 0 {
		fmt.Fprintf(w, "  Attached: %s\n", strings.Join(result.Stats.Attached, ", "))
	}
	if result.Stats.Gap != 0 {
		fmt.Fprintf(w, "  Warning: journal is missing seq %d\n", result.Stats.Gap)
	}
}

func formatTimelineEvent(w io.Writer, event TraceEvent, verbose bool) {
	fmt.Fprintf(w, "  [%d] %s", event.Seq, event.Type)
	if event.Payload != nil {
		fmt.Fprintf(w, " %s", formatValue(event.Payload))
	}
	if event.Key != nil {
		fmt.Fprintf(w, " key=%s", formatValue(event.Key))
	}
	fmt.Fprintf(w, " → [%s]\n", strings.Join(event.Changed, ", "))

	if len(event.Attached) > 0 {
		fmt.Fprintf(w, "       Attached: %s\n", strings.Join(event.Attached, ", "))
	}
	if len(event.Detached) > 0 {
		fmt.Fprintf(w, "       Detached: %s\n", strings.Join(event.Detached, ", "))
	}
	if verbose {
		fmt.Fprintf(w, "       ID: %s\n", truncateID(event.ID))
		fmt.Fprintf(w, "       State: %s\n", truncateID(event.StateHash))
	}
}

// formatArgs formats a map with sorted keys for deterministic output.
func formatArgs(args map[string]any) string {
	if len(args) == 0 {
		return "{}"
	}
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", k, formatValue(args[k])))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// formatValue formats a single value for display, handling nested structures deterministically.
func formatValue(v any) string {
	switch val := v.(type) {
	case map[string]any:
		return formatArgs(val)
	case []any:
		parts := make([]string, len(val))
		for i, elem := range val {
			parts[i] = formatValue(elem)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case string:
		return val
	default:
		return fmt.Sprintf("%v", v)
	}
}

// truncateID truncates a long ID for display.
func truncateID(id string) string {
	if len(id) <= 16 {
		return id
	}
	return id[:8] + "..." + id[len(id)-8:]
}
