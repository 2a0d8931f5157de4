package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/sweep/internal/engine"
	"github.com/roach88/sweep/internal/ir"
)

// PlanOptions holds flags for the plan command.
type PlanOptions struct {
	*RootOptions
	SpecFlags
	Journal string
}

// PlanResult describes the plan a traversal would run.
type PlanResult struct {
	Fingerprint string   `json:"fingerprint"`
	Kind        ir.Kind  `json:"kind"`
	Algorithm   string   `json:"algorithm"`
	Relocatable bool     `json:"relocatable"`
	Shape       ir.Shape `json:"shape"`
}

// NewPlanCommand creates the plan command.
func NewPlanCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PlanOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "plan <data-file>",
		Short: "Show the traversal plan without running it",
		Long: `Resolve the traversal options against the collection in a data file
and print the plan fingerprint, the selected algorithm and the canonical
shape. Nothing is traversed.

With --journal the plan is recorded in the SQLite journal.

Examples:
  sweep plan items.yaml --reverse --live
  sweep plan items.yaml --specs ./specs --use expensive --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlan(opts, args[0], cmd)
		},
	}

	opts.SpecFlags.bind(cmd)
	cmd.Flags().StringVar(&opts.Journal, "journal", "", "SQLite journal to record the plan in")

	return cmd
}

func runPlan(opts *PlanOptions, dataFile string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
	logger := opts.logger()

	coll, err := LoadData(dataFile)
	if err != nil {
		return outputLoadError(formatter, err)
	}
	spec, err := opts.SpecFlags.spec(cmd)
	if err != nil {
		return err
	}
	specOpts, err := engine.SpecOptions(spec)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid traversal options", err)
	}

	conf := opts.config()
	eng := engine.New(append(conf.EngineOptions(), engine.WithLogger(logger))...)
	defer eng.Close()

	fingerprint, kind, err := eng.Fingerprint(coll, specOpts...)
	if err != nil {
		_ = formatter.Error(ErrCodeTraversal, err.Error(), nil)
		return WrapExitError(ExitFailure, "cannot plan traversal", err)
	}
	resolved := engine.Resolve(conf.DefaultOptions(), specOpts...)
	plan, err := eng.Planner().Build(kind, resolved.Shape)
	if err != nil {
		_ = formatter.Error(ErrCodeTraversal, err.Error(), nil)
		return WrapExitError(ExitFailure, "cannot plan traversal", err)
	}
	formatter.VerboseLog("Fingerprint %s, %d cached plan(s)", fingerprint, eng.Planner().Len())

	if opts.Journal != "" {
		st, err := openJournal(opts.Journal, logger)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open journal", err)
		}
		defer st.Close()

		ctx, stop := signalContext(cmd)
		defer stop()
		if err := st.WritePlans(ctx, eng.Planner().Plans()); err != nil {
			_ = formatter.Error(ErrCodeWriteFailed, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to record plan", err)
		}
	}

	result := PlanResult{
		Fingerprint: plan.Fingerprint,
		Kind:        plan.Kind,
		Algorithm:   plan.Algorithm(),
		Relocatable: plan.Relocatable(),
		Shape:       plan.Shape,
	}
	if opts.Format == "json" {
		return writeJSON(formatter.Writer, CLIResponse{Status: "ok", Data: result})
	}
	return outputPlanText(formatter.Writer, result)
}

func outputPlanText(w io.Writer, result PlanResult) error {
	shape, err := ir.MarshalCanonical(result.Shape.Object())
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Fingerprint: %s\n", result.Fingerprint)
	fmt.Fprintf(w, "Kind:        %s\n", result.Kind)
	fmt.Fprintf(w, "Algorithm:   %s\n", result.Algorithm)
	fmt.Fprintf(w, "Relocatable: %t\n", result.Relocatable)
	fmt.Fprintf(w, "Shape:       %s\n", shape)
	return nil
}
