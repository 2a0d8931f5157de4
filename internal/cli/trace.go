package cli

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/sweep/internal/engine"
	"github.com/roach88/sweep/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	RunID    string
	Event    string
}

// TraceResult is the trace of one journaled run.
type TraceResult struct {
	Run      store.Run    `json:"run"`
	Timeline []TraceEvent `json:"timeline"`
	Stats    TraceStats   `json:"stats"`
}

// TraceEvent is one timeline entry.
type TraceEvent struct {
	Seq     int64  `json:"seq"`
	Type    string `json:"type"`
	Pass    int    `json:"pass"`
	Visited int    `json:"visited"`
	Detail  string `json:"detail,omitempty"`
}

// TraceStats summarizes a run's events.
type TraceStats struct {
	TotalEvents int `json:"total_events"`
	Passes      int `json:"passes"`
	Yields      int `json:"yields"`
	Suspensions int `json:"suspensions"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show journaled runs and their events",
		Long: `Read the SQLite journal written by "sweep traverse --journal".

Without --run, lists every journaled run. With --run, prints the run's
event timeline: start, completed passes, yields and suspensions of
cooperative tasks, and the outcome.

Examples:
  sweep trace --db ./sweep.db
  sweep trace --db ./sweep.db --run 0191d7c2-...
  sweep trace --db ./sweep.db --run 0191d7c2-... --event task_yielded --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "run id to trace")
	cmd.Flags().StringVar(&opts.Event, "event", "", "filter the timeline to one event type")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx, stop := signalContext(cmd)
	defer stop()

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	defer st.Close()
	st.SetLogger(opts.logger())

	if opts.RunID == "" {
		runs, err := st.ReadRuns(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read runs", err)
		}
		if opts.Format == "json" {
			return writeJSON(cmd.OutOrStdout(), CLIResponse{Status: "ok", Data: runs})
		}
		return outputRunsText(cmd.OutOrStdout(), runs)
	}

	run, err := st.ReadRun(ctx, opts.RunID)
	if errors.Is(err, sql.ErrNoRows) {
		return NewExitError(ExitFailure, fmt.Sprintf("run not found: %s", opts.RunID))
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read run", err)
	}

	events, err := st.ReadEvents(ctx, opts.RunID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read events", err)
	}

	result := TraceResult{
		Run:      run,
		Timeline: buildTimeline(events, opts.Event),
		Stats:    buildStats(events),
	}

	if opts.Format == "json" {
		return writeJSON(cmd.OutOrStdout(), CLIResponse{Status: "ok", Data: result, RunID: run.ID})
	}
	return outputTraceText(cmd.OutOrStdout(), result, opts.Verbose)
}

// buildTimeline converts journaled events to timeline entries, keeping
// only typeFilter when it is set.
func buildTimeline(events []engine.Event, typeFilter string) []TraceEvent {
	timeline := make([]TraceEvent, 0, len(events))
	for _, ev := range events {
		if typeFilter != "" && string(ev.Type) != typeFilter {
			continue
		}
		timeline = append(timeline, TraceEvent{
			Seq:     ev.Seq,
			Type:    string(ev.Type),
			Pass:    ev.Pass,
			Visited: ev.Visited,
			Detail:  ev.Detail,
		})
	}
	return timeline
}

func buildStats(events []engine.Event) TraceStats {
	stats := TraceStats{TotalEvents: len(events)}
	for _, ev := range events {
		switch ev.Type {
		case engine.EventPassCompleted:
			stats.Passes++
		case engine.EventTaskYielded:
			stats.Yields++
		case engine.EventTaskSuspended:
			stats.Suspensions++
		}
	}
	return stats
}

func outputRunsText(w io.Writer, runs []store.Run) error {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs journaled.")
		return nil
	}
	for _, r := range runs {
		mode := "sync"
		if r.Cooperative {
			mode = "cooperative/" + string(r.Priority)
		}
		fmt.Fprintf(w, "%s  %-9s %-8s %-20s visited=%d passes=%d\n",
			truncateID(r.ID), r.Outcome, r.Kind, mode, r.Visited, r.Passes)
	}
	return nil
}

// outputTraceText outputs the trace result as text.
func outputTraceText(w io.Writer, result TraceResult, verbose bool) error {
	run := result.Run

	fmt.Fprintf(w, "Trace for Run: %s\n", run.ID)
	fmt.Fprintf(w, "Outcome: %s\n", run.Outcome)
	if run.Error != "" {
		fmt.Fprintf(w, "Error: %s\n", run.Error)
	}
	if verbose {
		fmt.Fprintf(w, "Kind: %s  Algorithm: %s  Fingerprint: %s\n", run.Kind, run.Algorithm, truncateID(run.Fingerprint))
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Timeline ===")
	if len(result.Timeline) == 0 {
		fmt.Fprintln(w, "  (no events)")
	}
	for _, ev := range result.Timeline {
		fmt.Fprintf(w, "  [%d] %s pass=%d visited=%d", ev.Seq, ev.Type, ev.Pass, ev.Visited)
		if ev.Detail != "" {
			fmt.Fprintf(w, " (%s)", ev.Detail)
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Stats ===")
	fmt.Fprintf(w, "  Total Events: %d\n", result.Stats.TotalEvents)
	fmt.Fprintf(w, "  Passes:       %d\n", result.Stats.Passes)
	fmt.Fprintf(w, "  Yields:       %d\n", result.Stats.Yields)
	fmt.Fprintf(w, "  Suspensions:  %d\n", result.Stats.Suspensions)
	fmt.Fprintf(w, "  Visited:      %d\n", run.Visited)

	return nil
}

// formatArgs formats a map for display with sorted keys.
func formatArgs(args map[string]any) string {
	if len(args) == 0 {
		return "{}"
	}

	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var parts []string
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
	case engine.Descriptor:
		own := ""
		if !val.Own {
			own = " (inherited)"
		}
		return fmt.Sprintf("%s%s", formatValue(val.Value), own)
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
