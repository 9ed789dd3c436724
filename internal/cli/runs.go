package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/idlc/internal/diag"
	"github.com/roach88/idlc/internal/store"
)

// RunsOptions holds flags for the runs command.
type RunsOptions struct {
	*RootOptions
	Store string
	Run   string // optional - show one run's routines and diagnostics
}

// RunDetail is one stored run with its routines and diagnostics.
type RunDetail struct {
	store.Run
	Routines    []store.RoutineRow `json:"routines"`
	Diagnostics []diag.Diagnostic  `json:"diagnostics"`
}

// NewRunsCommand creates the runs command.
func NewRunsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded generation runs",
		Long: `List the generation runs recorded in a run store, oldest first.

With --run, show the routines and diagnostics of a single run.

Examples:
  idlc runs --store .idlc/runs.db
  idlc runs --store .idlc/runs.db --run 0190a5c2-...
  idlc runs --store .idlc/runs.db --format json`,
		Args:          usageArgs(cobra.NoArgs),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRuns(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Store, "store", "", "path to the SQLite run store (default from config)")
	cmd.Flags().StringVar(&opts.Run, "run", "", "show one run in detail")

	return cmd
}

// openStore opens an existing run store. A missing file is a command
// error rather than an empty store.
func openStore(opts *RootOptions, path string) (*store.Store, error) {
	if path == "" {
		path = opts.config().Store.Path
	}
	if path == "" {
		return nil, NewExitError(ExitCommandError, "no run store given: use --store or store.path in the config")
	}
	if _, err := os.Stat(path); err != nil {
		return nil, WrapExitError(ExitCommandError, fmt.Sprintf("store not found: %s", path), err)
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open store", err)
	}
	return st, nil
}

func runRuns(opts *RunsOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	ctx := cmd.Context()

	st, err := openStore(opts.RootOptions, opts.Store)
	if err != nil {
		return err
	}
	defer st.Close()

	if opts.Run != "" {
		detail, err := readRunDetail(cmd, st, opts.Run)
		if err != nil {
			_ = formatter.Error(ErrCodeStore, err.Error(), nil)
			return WrapExitError(ExitCommandError, "runs failed", err)
		}
		return outputRunDetail(formatter, detail)
	}

	runs, err := st.ListRuns(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list runs", err)
	}
	if runs == nil {
		runs = []store.Run{}
	}
	if opts.Format == "json" {
		return formatter.Success(runs)
	}
	w := formatter.Writer
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return nil
	}
	for _, r := range runs {
		status := "ok"
		switch {
		case r.Terminal:
			status = "terminal"
		case r.Failed:
			status = "failed"
		}
		fmt.Fprintf(w, "%4d  %s  %-8s  schema %s  generator %s\n",
			r.Seq, r.ID, status, shortDigest(r.SchemaDigest), r.GeneratorVersion)
	}
	return nil
}

func readRunDetail(cmd *cobra.Command, st *store.Store, id string) (*RunDetail, error) {
	ctx := cmd.Context()
	run, err := st.ReadRun(ctx, id)
	if err != nil {
		return nil, err
	}
	routines, err := st.ReadRoutines(ctx, id)
	if err != nil {
		return nil, err
	}
	diags, err := st.ReadDiagnostics(ctx, id)
	if err != nil {
		return nil, err
	}
	d := &RunDetail{Run: run, Routines: routines, Diagnostics: diags}
	if d.Routines == nil {
		d.Routines = []store.RoutineRow{}
	}
	if d.Diagnostics == nil {
		d.Diagnostics = []diag.Diagnostic{}
	}
	return d, nil
}

func outputRunDetail(formatter *OutputFormatter, d *RunDetail) error {
	if formatter.Format == "json" {
		return formatter.Success(d)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "Run %s (seq %d)\n", d.ID, d.Seq)
	fmt.Fprintf(w, "  schema:    %s\n", d.SchemaDigest)
	fmt.Fprintf(w, "  generator: %s (plan %s)\n", d.GeneratorVersion, d.PlanVersion)
	fmt.Fprintf(w, "  routines:  %d\n", len(d.Routines))
	for _, r := range d.Routines {
		fmt.Fprintf(w, "    %s  %s\n", shortDigest(r.Digest), r.Key())
	}
	formatter.Diagnostics(d.Diagnostics)
	return nil
}

func shortDigest(d string) string {
	if len(d) > 12 {
		return d[:12]
	}
	return d
}
