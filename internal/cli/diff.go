package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/idlc/internal/store"
)

// DiffOptions holds flags for the diff command.
type DiffOptions struct {
	*RootOptions
	Store string
}

// DiffResult is the comparison of two runs.
type DiffResult struct {
	*store.Comparison
	Identical bool `json:"identical"`
}

// NewDiffCommand creates the diff command.
func NewDiffCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DiffOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "diff <base-run> <head-run>",
		Short: "Compare the routines of two recorded runs",
		Long: `Compare two runs recorded in a run store routine by routine.

Routines are matched by target and name and compared by digest. Two
runs over the same schema with the same generator version must be
identical; a difference means the schema, the attributes or the
generator changed.

Exit codes:
  0 - Runs are identical
  1 - Runs differ
  2 - Command error (store or run not found)

Examples:
  idlc diff --store .idlc/runs.db <base> <head>
  idlc diff --store .idlc/runs.db <base> <head> --format json`,
		Args:          usageArgs(cobra.ExactArgs(2)),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiff(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Store, "store", "", "path to the SQLite run store (default from config)")

	return cmd
}

func runDiff(opts *DiffOptions, base, head string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	st, err := openStore(opts.RootOptions, opts.Store)
	if err != nil {
		return err
	}
	defer st.Close()

	c, err := st.CompareRuns(cmd.Context(), base, head)
	if err != nil {
		_ = formatter.Error(ErrCodeStore, err.Error(), nil)
		return WrapExitError(ExitCommandError, "diff failed", err)
	}
	result := DiffResult{Comparison: c, Identical: c.Identical()}

	if opts.Format == "json" {
		if err := formatter.Success(result); err != nil {
			return err
		}
	} else {
		outputDiffText(formatter, result)
	}

	if !result.Identical {
		return NewExitError(ExitFailure, fmt.Sprintf("runs differ: %d added, %d removed, %d changed",
			len(c.Added), len(c.Removed), len(c.Changed)))
	}
	return nil
}

func outputDiffText(formatter *OutputFormatter, result DiffResult) {
	w := formatter.Writer
	if result.Identical {
		fmt.Fprintf(w, "✓ Runs identical: %s = %s\n", result.Base, result.Head)
		return
	}
	fmt.Fprintf(w, "✗ Runs differ: %s -> %s\n", result.Base, result.Head)
	for _, k := range result.Added {
		fmt.Fprintf(w, "  + %s\n", k)
	}
	for _, k := range result.Removed {
		fmt.Fprintf(w, "  - %s\n", k)
	}
	for _, ch := range result.Changed {
		fmt.Fprintf(w, "  ~ %s (%s -> %s)\n", ch.Key, shortDigest(ch.Base), shortDigest(ch.Head))
	}
}
