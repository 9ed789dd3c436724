package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/idlc/internal/codegen"
	"github.com/roach88/idlc/internal/diag"
	"github.com/roach88/idlc/internal/store"
	"github.com/roach88/idlc/internal/tag"
)

// GenOptions holds flags for the gen command.
type GenOptions struct {
	*RootOptions
	Attrs   string
	Emit    string
	Output  string
	Store   string
	Targets []string
}

// TargetSummary counts one target's output.
type TargetSummary struct {
	Name     string `json:"name"`
	Routines int    `json:"routines"`
	Files    int    `json:"files"`
	Withheld int    `json:"withheld"`
	Error    string `json:"error,omitempty"`
}

// GenResult summarizes a generation run.
type GenResult struct {
	Output      string            `json:"output,omitempty"`
	Emit        string            `json:"emit"`
	RunID       string            `json:"run_id,omitempty"`
	Terminal    bool              `json:"terminal,omitempty"`
	Targets     []TargetSummary   `json:"targets"`
	Diagnostics []diag.Diagnostic `json:"diagnostics,omitempty"`
}

// NewGenCommand creates the gen command.
func NewGenCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &GenOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "gen <schema>",
		Short: "Generate codec routines for the configured targets",
		Long: `Check a CUE schema, then generate pack and parse routines for every
target in the configuration. Targets run concurrently; a configuration
error withholds the output of the file it is located in.

Without --out the plan itself is written to stdout. With --store the run
is recorded in a SQLite run store for later comparison.

Exit codes:
  0 - Generation succeeded
  1 - Schema or configuration errors
  2 - Command error (schema not found, write failure, etc.)

Examples:
  idlc gen ./schema
  idlc gen ./schema --emit cbor -o plan.cbor
  idlc gen ./schema --target go --store .idlc/runs.db`,
		Args:          usageArgs(cobra.ExactArgs(1)),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGen(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Attrs, "attrs", "", "JSONC attribute overlay")
	cmd.Flags().StringVar(&opts.Emit, "emit", "", "plan encoding (json|cbor), default from config")
	cmd.Flags().StringVarP(&opts.Output, "out", "o", "", "write the plan to a file")
	cmd.Flags().StringVar(&opts.Store, "store", "", "record the run in this SQLite store")
	cmd.Flags().StringSliceVar(&opts.Targets, "target", nil, "only generate the named targets")

	return cmd
}

func runGen(opts *GenOptions, schemaPath string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	cfg := opts.config()

	emit := opts.Emit
	if emit == "" {
		emit = cfg.Emit
	}
	if emit != "json" && emit != "cbor" {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid emit %q: must be json or cbor", emit))
	}
	targets, err := selectTargets(cfg.Targets, opts.Targets)
	if err != nil {
		return WrapExitError(ExitCommandError, "gen failed", err)
	}

	project, err := LoadProject(schemaPath, opts.attrsPath(opts.Attrs))
	if err != nil {
		_ = formatter.Error(loadErrorCode(err), err.Error(), nil)
		return WrapExitError(ExitCommandError, "gen failed", err)
	}

	sink := diag.NewSink(cfg.MaxErrors)
	if errs := project.Check(sink); len(errs) > 0 {
		if opts.Format == "json" {
			_ = formatter.Success(CheckResult{Valid: false, Forms: project.Graph.Len(), Digest: project.Digest, Errors: errs})
		} else {
			for _, e := range errs {
				fmt.Fprintf(formatter.Writer, "✗ %s\n", e.Error())
			}
		}
		return NewExitError(ExitFailure, fmt.Sprintf("schema has %d error(s)", len(errs)))
	}

	cache := tag.NewCache()
	r := tag.NewResolver(project.Accessor, sink, tag.WithCache(cache))
	plan := codegen.Run(cmd.Context(), project.Graph, codegen.NewGenerator(r), targets)
	doc := plan.Doc()
	hits, misses := cache.Stats()
	formatter.VerboseLog("Tag cache: %d hit(s), %d miss(es)", hits, misses)

	data, err := encodePlan(doc, emit)
	if err != nil {
		return WrapExitError(ExitCommandError, "encode plan", err)
	}

	result := GenResult{
		Output:      opts.Output,
		Emit:        emit,
		Terminal:    plan.Terminal,
		Targets:     summarize(plan),
		Diagnostics: plan.Diagnostics,
	}

	storePath := opts.Store
	if storePath == "" {
		storePath = cfg.Store.Path
	}
	if storePath != "" {
		run, err := recordRun(cmd, storePath, cfg.Compression(), project.Digest, doc)
		if err != nil {
			_ = formatter.Error(ErrCodeStore, err.Error(), nil)
			return WrapExitError(ExitCommandError, "record run", err)
		}
		result.RunID = run.ID
		formatter.VerboseLog("Recorded run %s (seq %d)", run.ID, run.Seq)
	}

	if opts.Output == "" {
		if _, err := formatter.Writer.Write(data); err != nil {
			return WrapExitError(ExitCommandError, "write plan", err)
		}
		for _, d := range plan.Diagnostics {
			formatter.VerboseLog("%s: %s", d.Severity, d.Error())
		}
	} else {
		if err := os.WriteFile(opts.Output, data, 0o644); err != nil {
			_ = formatter.Error(ErrCodeWriteFailed, err.Error(), nil)
			return WrapExitError(ExitCommandError, "write plan", err)
		}
		if err := outputGen(formatter, result); err != nil {
			return err
		}
	}

	if plan.Failed() {
		return NewExitError(ExitFailure, fmt.Sprintf("generation reported %d error(s)", sink.ErrorCount()))
	}
	return nil
}

// selectTargets filters configured targets by name, keeping config order.
func selectTargets(all []codegen.Target, names []string) ([]codegen.Target, error) {
	if len(names) == 0 {
		return all, nil
	}
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	var out []codegen.Target
	for _, t := range all {
		if want[t.Name] {
			out = append(out, t)
			delete(want, t.Name)
		}
	}
	for n := range want {
		return nil, fmt.Errorf("unknown target %q", n)
	}
	return out, nil
}

func encodePlan(doc *codegen.PlanDoc, emit string) ([]byte, error) {
	if emit == "cbor" {
		return doc.MarshalCBOR()
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

func recordRun(cmd *cobra.Command, path string, c store.Compression, digest string, doc *codegen.PlanDoc) (store.Run, error) {
	st, err := store.Open(path, store.WithCompression(c))
	if err != nil {
		return store.Run{}, err
	}
	defer st.Close()
	return st.WritePlan(cmd.Context(), digest, doc)
}

func summarize(plan *codegen.Plan) []TargetSummary {
	out := make([]TargetSummary, 0, len(plan.Targets))
	for _, t := range plan.Targets {
		s := TargetSummary{Name: t.Target, Files: len(t.Files), Routines: len(t.Routines())}
		for _, f := range t.Files {
			if f.Withheld {
				s.Withheld++
			}
		}
		if t.Err != nil {
			s.Error = t.Err.Error()
		}
		out = append(out, s)
	}
	return out
}

func outputGen(formatter *OutputFormatter, result GenResult) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	w := formatter.Writer
	formatter.Diagnostics(result.Diagnostics)
	for _, t := range result.Targets {
		switch {
		case t.Error != "":
			fmt.Fprintf(w, "✗ %s: %s\n", t.Name, t.Error)
		case t.Withheld > 0:
			fmt.Fprintf(w, "✗ %s: %d routine(s), %d of %d file(s) withheld\n", t.Name, t.Routines, t.Withheld, t.Files)
		default:
			fmt.Fprintf(w, "✓ %s: %d routine(s) in %d file(s)\n", t.Name, t.Routines, t.Files)
		}
	}
	if result.Terminal {
		fmt.Fprintln(w, "Error threshold reached: all output withheld")
	}
	fmt.Fprintf(w, "Plan written to %s (%s)\n", result.Output, result.Emit)
	if result.RunID != "" {
		fmt.Fprintf(w, "Run recorded: %s\n", result.RunID)
	}
	return nil
}
