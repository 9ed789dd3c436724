package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/idlc/internal/compiler"
	"github.com/roach88/idlc/internal/diag"
)

// CheckOptions holds flags for the check command.
type CheckOptions struct {
	*RootOptions
	Attrs string
}

// CheckResult holds check results.
type CheckResult struct {
	Valid       bool                       `json:"valid"`
	Forms       int                        `json:"forms"`
	Digest      string                     `json:"digest"`
	Errors      []compiler.ValidationError `json:"errors,omitempty"`
	Diagnostics []diag.Diagnostic          `json:"diagnostics,omitempty"`
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CheckOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "check <schema>",
		Short: "Validate a schema without generating routines",
		Long: `Compile a CUE schema, check its structural rules and lint its
attributes. Unknown or deprecated attribute names are reported as
warnings; warnings never fail the check.

Exit codes:
  0 - Schema valid
  1 - Schema has errors
  2 - Command error (schema not found, unreadable overlay, etc.)

Examples:
  idlc check ./schema
  idlc check ./schema/types.cue --attrs overrides.jsonc
  idlc check ./schema --format json`,
		Args:          usageArgs(cobra.ExactArgs(1)),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Attrs, "attrs", "", "JSONC attribute overlay")

	return cmd
}

func runCheck(opts *CheckOptions, schemaPath string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	project, err := LoadProject(schemaPath, opts.attrsPath(opts.Attrs))
	if err != nil {
		_ = formatter.Error(loadErrorCode(err), err.Error(), nil)
		return WrapExitError(ExitCommandError, "check failed", err)
	}
	formatter.VerboseLog("Loaded %d CUE file(s), %d form(s)", len(project.Files), project.Graph.Len())

	sink := diag.NewSink(0)
	errs := project.Check(sink)
	diags := sink.Diagnostics()

	result := CheckResult{
		Valid:       len(errs) == 0 && !sink.HasErrors(),
		Forms:       project.Graph.Len(),
		Digest:      project.Digest,
		Errors:      errs,
		Diagnostics: diags,
	}

	if opts.Format == "json" {
		if err := formatter.Success(result); err != nil {
			return err
		}
	} else {
		w := formatter.Writer
		for _, e := range errs {
			fmt.Fprintf(w, "✗ %s\n", e.Error())
		}
		formatter.Diagnostics(diags)
		if result.Valid {
			fmt.Fprintf(w, "✓ Schema valid (%d forms, %d warnings)\n", result.Forms, len(diags))
		}
	}

	if !result.Valid {
		return NewExitError(ExitFailure, fmt.Sprintf("schema has %d error(s)", len(errs)+sink.ErrorCount()))
	}
	return nil
}
