package cli

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/sweep/internal/compiler"
	"github.com/roach88/sweep/internal/engine"
	"github.com/roach88/sweep/internal/ir"
	"github.com/roach88/sweep/internal/querysql"
	"github.com/roach88/sweep/internal/store"
)

// SpecFlags holds the traversal options shared by traverse and plan. A
// named CUE traversal (--specs + --use) and the inline flags are mutually
// exclusive.
type SpecFlags struct {
	SpecsDir string
	Use      string

	First       bool
	Reverse     bool
	Inverse     bool
	Live        bool
	Descriptor  bool
	Cooperative bool
	Count       int
	From        int
	Start       int
	End         int
	Own         string
	Priority    string
	Where       string
}

// inlineFlags are the flags that describe a traversal without a spec file.
var inlineFlags = []string{
	"first", "reverse", "inverse", "live", "descriptor", "cooperative",
	"count", "from", "start", "end", "own", "priority", "where",
}

func (f *SpecFlags) bind(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVar(&f.SpecsDir, "specs", "", "directory of CUE traversal definitions")
	fl.StringVar(&f.Use, "use", "", "name of the traversal to use from --specs")
	fl.BoolVar(&f.First, "first", false, "stop at the first selected element")
	fl.BoolVar(&f.Reverse, "reverse", false, "traverse in reverse order")
	fl.BoolVar(&f.Inverse, "inverse", false, "invert the where clause")
	fl.BoolVar(&f.Live, "live", false, "observe mutations made during the traversal")
	fl.BoolVar(&f.Descriptor, "descriptor", false, "hand descriptors instead of values")
	fl.BoolVar(&f.Cooperative, "cooperative", false, "run as a cooperative task")
	fl.IntVar(&f.Count, "count", 0, "maximum number of selected elements")
	fl.IntVar(&f.From, "from", 0, "skip this many selected elements")
	fl.IntVar(&f.Start, "start", 0, "first position of the window")
	fl.IntVar(&f.End, "end", 0, "last position of the window (inclusive)")
	fl.StringVar(&f.Own, "own", "", "mapping key scope (own|all|inherited)")
	fl.StringVar(&f.Priority, "priority", "", "task priority (low|normal|high|critical)")
	fl.StringVar(&f.Where, "where", "", "filter predicate as JSON, e.g. '{\"field\":\"price\",\"op\":\"gt\",\"value\":10}'")
}

// spec resolves the flags into a validated TraversalSpec.
func (f *SpecFlags) spec(cmd *cobra.Command) (ir.TraversalSpec, error) {
	if f.Use != "" {
		for _, name := range inlineFlags {
			if cmd.Flags().Changed(name) {
				return ir.TraversalSpec{}, NewExitError(ExitCommandError,
					fmt.Sprintf("--use cannot be combined with --%s", name))
			}
		}
		return f.lookup()
	}
	if f.SpecsDir != "" {
		return ir.TraversalSpec{}, NewExitError(ExitCommandError, "--specs requires --use")
	}

	spec := ir.TraversalSpec{
		Name:        "inline",
		First:       f.First,
		Reverse:     f.Reverse,
		Inverse:     f.Inverse,
		Live:        f.Live,
		Descriptor:  f.Descriptor,
		Cooperative: f.Cooperative,
		Own:         f.Own,
		Priority:    f.Priority,
	}
	ints := []struct {
		name string
		src  int
		dst  **int
	}{
		{"count", f.Count, &spec.Count},
		{"from", f.From, &spec.From},
		{"start", f.Start, &spec.Start},
		{"end", f.End, &spec.End},
	}
	for _, i := range ints {
		if cmd.Flags().Changed(i.name) {
			v := i.src
			*i.dst = &v
		}
	}
	if f.Where != "" {
		if err := yaml.Unmarshal([]byte(f.Where), &spec.Where); err != nil {
			return ir.TraversalSpec{}, WrapExitError(ExitCommandError, "invalid --where", err)
		}
	}

	if errs := compiler.Validate(spec); len(errs) > 0 {
		return ir.TraversalSpec{}, WrapExitError(ExitCommandError, "invalid traversal options", errs[0])
	}
	return spec, nil
}

func (f *SpecFlags) lookup() (ir.TraversalSpec, error) {
	if f.SpecsDir == "" {
		return ir.TraversalSpec{}, NewExitError(ExitCommandError, "--use requires --specs")
	}
	result, errs := LoadTraversals(f.SpecsDir, compiler.LoadModeFailFast)
	if len(errs) > 0 {
		return ir.TraversalSpec{}, WrapExitError(ExitCommandError, "failed to load specs", errs[0])
	}
	spec, ok := result.Lookup(f.Use)
	if !ok {
		return ir.TraversalSpec{}, NewExitError(ExitCommandError,
			fmt.Sprintf("traversal %q not found in %s", f.Use, f.SpecsDir))
	}
	return spec, nil
}

// TraverseOptions holds flags for the traverse command.
type TraverseOptions struct {
	*RootOptions
	SpecFlags
	Journal   string
	Aggregate string
	Table     string
	Metrics   bool

	// TaskIDs allows overriding the run id generator (for testing).
	// If nil, the engine default (UUIDv7) is used.
	TaskIDs engine.TaskIDGenerator
}

// TraverseResult is the JSON payload of a traversal.
type TraverseResult struct {
	Values    []any `json:"values,omitempty"`
	Keys      []any `json:"keys,omitempty"`
	Positions []int `json:"positions,omitempty"`
	Result    any   `json:"result,omitempty"`

	Metrics []engine.MetricSample `json:"metrics,omitempty"`
}

// NewTraverseCommand creates the traverse command.
func NewTraverseCommand(rootOpts *RootOptions) *cobra.Command {
	return newTraverseCommand(&TraverseOptions{RootOptions: rootOpts})
}

func newTraverseCommand(opts *TraverseOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "traverse <data-file>",
		Short: "Traverse a YAML or JSON collection or a SQLite table",
		Long: `Traverse the collection in a YAML or JSON data file and print the
selected elements.

A top-level list is traversed as a sequence, a top-level mapping as a
mapping with keys in file order. With --table the argument is a SQLite
database and the rows of that table are streamed in rowid order.

Options come from inline flags or from a
named CUE traversal. When a journal is configured (--journal or
journal.path) the run and its events are recorded there.

Examples:
  sweep traverse items.yaml --reverse --count 2
  sweep traverse items.yaml --where '{"field":"price","op":"gt","value":15}'
  sweep traverse items.yaml --specs ./specs --use expensive --journal ./sweep.db
  sweep traverse items.yaml --aggregate count --format json
  sweep traverse shop.db --table items --cooperative --priority low
  sweep traverse items.yaml --metrics`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTraverse(opts, args[0], cmd)
		},
	}

	opts.SpecFlags.bind(cmd)
	cmd.Flags().StringVar(&opts.Journal, "journal", "", "SQLite journal path (overrides journal.path)")
	cmd.Flags().StringVar(&opts.Aggregate, "aggregate", "collect", "aggregator (collect|last|count)")
	cmd.Flags().StringVar(&opts.Table, "table", "", "traverse the rows of this table of a SQLite database")
	cmd.Flags().BoolVar(&opts.Metrics, "metrics", false, "report the engine metrics after the traversal")

	return cmd
}

func runTraverse(opts *TraverseOptions, dataFile string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
	logger := opts.logger()

	agg, err := aggregatorByName(opts.Aggregate)
	if err != nil {
		return err
	}

	ctx, stop := signalContext(cmd)
	defer stop()

	var coll any
	var rows *store.RowSource
	if opts.Table != "" {
		src, db, err := openTable(ctx, dataFile, opts.Table)
		if err != nil {
			return outputLoadError(formatter, err)
		}
		defer db.Close()
		coll, rows = src, src
	} else {
		coll, err = LoadData(dataFile)
		if err != nil {
			return outputLoadError(formatter, err)
		}
	}

	spec, err := opts.SpecFlags.spec(cmd)
	if err != nil {
		return err
	}
	specOpts, err := engine.SpecOptions(spec)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid traversal options", err)
	}
	formatter.VerboseLog("Traversal %q: %s", spec.Name, describeSpec(spec))

	var runID string
	observers := engine.Observers{engine.ObserverFunc(func(ev engine.Event) {
		if ev.Type == engine.EventRunStarted {
			runID = ev.RunID
		}
	})}

	st, err := openJournal(opts.journalPath(), logger)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	if st != nil {
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				logger.Error("error closing journal", "error", closeErr)
			}
		}()
		observers = append(observers, st)
	}

	engineOpts := append(opts.config().EngineOptions(),
		engine.WithLogger(logger),
		engine.WithObserver(observers),
	)
	if opts.TaskIDs != nil {
		engineOpts = append(engineOpts, engine.WithTaskIDs(opts.TaskIDs))
	}
	eng := engine.New(engineOpts...)
	defer eng.Close()

	value, err := eng.Run(ctx, coll, func(el engine.Element, c *engine.Context) (any, error) {
		return el.Value, nil
	}, append(specOpts, engine.Aggregate(agg))...)
	if err == nil && rows != nil {
		err = rows.Err()
	}

	if st != nil {
		if jerr := st.Err(); jerr != nil {
			logger.Warn("journal write failed", "error", jerr)
		}
	}
	if err != nil {
		_ = formatter.Error(ErrCodeTraversal, err.Error(), nil)
		return WrapExitError(ExitFailure, "traversal failed", err)
	}

	result := TraverseResult{Result: value}
	if collected, ok := value.(engine.Collected); ok {
		result = TraverseResult{
			Values:    collected.Values,
			Keys:      collected.Keys,
			Positions: collected.Positions,
		}
	}
	if opts.Metrics {
		result.Metrics, err = engine.GatherMetrics(prometheus.DefaultGatherer)
		if err != nil {
			logger.Warn("gather metrics failed", "error", err)
		}
	}

	if opts.Format == "json" {
		return writeJSON(formatter.Writer, CLIResponse{Status: "ok", Data: result, RunID: runID})
	}
	return outputTraverseText(formatter.Writer, result, value)
}

func outputTraverseText(w io.Writer, result TraverseResult, value any) error {
	switch {
	case !isCollected(value):
		fmt.Fprintf(w, "result: %v\n", formatValue(result.Result))
	case len(result.Values) == 0:
		fmt.Fprintln(w, "(no elements selected)")
	default:
		for i, v := range result.Values {
			fmt.Fprintf(w, "  [%d] %v = %s\n", result.Positions[i], result.Keys[i], formatValue(v))
		}
	}
	if len(result.Metrics) > 0 {
		fmt.Fprintln(w, "metrics:")
		for _, m := range result.Metrics {
			fmt.Fprintf(w, "  %s %g\n", metricName(m), m.Value)
		}
	}
	return nil
}

func isCollected(value any) bool {
	_, ok := value.(engine.Collected)
	return ok
}

// metricName renders a sample in exposition style: name{k="v",...}.
func metricName(m engine.MetricSample) string {
	if len(m.Labels) == 0 {
		return m.Name
	}
	pairs := make([]string, 0, len(m.Labels))
	for _, k := range slices.Sorted(maps.Keys(m.Labels)) {
		pairs = append(pairs, fmt.Sprintf("%s=%q", k, m.Labels[k]))
	}
	return m.Name + "{" + strings.Join(pairs, ",") + "}"
}

// aggregatorByName returns the aggregator selected by --aggregate.
func aggregatorByName(name string) (engine.Aggregator, error) {
	switch name {
	case "", "collect":
		return engine.Collect(), nil
	case "last":
		return engine.Last(), nil
	case "count":
		return engine.Counter(), nil
	default:
		return nil, NewExitError(ExitCommandError,
			fmt.Sprintf("invalid aggregator %q: must be one of [collect last count]", name))
	}
}

// openTable returns a source over every row of table in the SQLite
// database at path. The database is opened read-only.
func openTable(ctx context.Context, path, table string) (*store.RowSource, *sql.DB, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("database not found: %s", path)}
	}
	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, nil, &LoadError{Code: ErrCodeBadData, Message: err.Error()}
	}
	src, err := store.NewQuerySource(ctx, db, querysql.Select{From: table, OrderBy: "rowid"})
	if err != nil {
		db.Close()
		return nil, nil, &LoadError{Code: ErrCodeBadData, Message: err.Error()}
	}
	return src, db, nil
}

// openJournal opens the SQLite journal, or returns nil when path is empty.
func openJournal(path string, logger *slog.Logger) (*store.Store, error) {
	if path == "" {
		return nil, nil
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, err
	}
	st.SetLogger(logger)
	return st, nil
}

func (o *TraverseOptions) journalPath() string {
	if o.Journal != "" {
		return o.Journal
	}
	return o.config().Journal.Path
}

// signalContext cancels on SIGINT/SIGTERM. It uses the command's context
// when one is set (tests).
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// outputLoadError reports a load failure as a command error.
func outputLoadError(formatter *OutputFormatter, err error) error {
	code := ErrCodeGeneric
	if loadErr, ok := err.(*LoadError); ok {
		code = loadErr.Code
		_ = formatter.Error(code, loadErr.Message, nil)
	} else {
		_ = formatter.Error(code, err.Error(), nil)
	}
	return WrapExitError(ExitCommandError, code, err)
}

// describeSpec renders the non-default options of a spec for verbose logs.
func describeSpec(spec ir.TraversalSpec) string {
	obj, err := spec.Object()
	if err != nil {
		return err.Error()
	}
	data, err := ir.MarshalCanonical(obj)
	if err != nil {
		return err.Error()
	}
	return string(data)
}
