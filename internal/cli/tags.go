package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/idlc/internal/compiler"
	"github.com/roach88/idlc/internal/diag"
	"github.com/roach88/idlc/internal/ir"
	"github.com/roach88/idlc/internal/tag"
)

// TagsOptions holds flags for the tags command.
type TagsOptions struct {
	*RootOptions
	Attrs   string
	Formats []string
}

// FormatTag is the resolved tag of a type in one format.
type FormatTag struct {
	Format string `json:"format"`
	Tag    string `json:"tag,omitempty"`
	Pack   string `json:"pack,omitempty"`
	Parse  string `json:"parse,omitempty"`
	Error  string `json:"error,omitempty"`
}

// TagsResult holds the tags of one type expression.
type TagsResult struct {
	Type string      `json:"type"`
	Tags []FormatTag `json:"tags"`
}

// NewTagsCommand creates the tags command.
func NewTagsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TagsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "tags <schema> <type>",
		Short: "Show the tag and call expressions of a type",
		Long: `Resolve a type expression against a schema and print its tag in
each format, together with the pack and parse call expressions a
target emits at the use site.

Examples:
  idlc tags ./schema Point
  idlc tags ./schema 'list<Box<Point>>' --formats json,xml
  idlc tags ./schema 'dict<string, Color>' --format json`,
		Args:          usageArgs(cobra.ExactArgs(2)),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTags(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Attrs, "attrs", "", "JSONC attribute overlay")
	cmd.Flags().StringSliceVar(&opts.Formats, "formats", nil, "formats to resolve (default: all)")

	return cmd
}

func runTags(opts *TagsOptions, schemaPath, expr string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	formats := ir.Formats
	if len(opts.Formats) > 0 {
		formats = nil
		for _, name := range opts.Formats {
			f, err := ir.ParseFormat(name)
			if err != nil {
				return WrapExitError(ExitCommandError, "tags failed", err)
			}
			formats = append(formats, f)
		}
	}

	project, err := LoadProject(schemaPath, opts.attrsPath(opts.Attrs))
	if err != nil {
		_ = formatter.Error(loadErrorCode(err), err.Error(), nil)
		return WrapExitError(ExitCommandError, "tags failed", err)
	}
	typ, err := compiler.ParseType(expr, project.Graph, nil)
	if err != nil {
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitCommandError, "tags failed", err)
	}

	sink := diag.NewSink(0)
	r := tag.NewResolver(project.Accessor, sink, tag.WithCache(tag.NewCache()))
	result := TagsResult{Type: expr, Tags: make([]FormatTag, 0, len(formats))}
	failed := 0
	for _, f := range formats {
		ft := FormatTag{Format: string(f)}
		t, err := r.Resolve(typ, f, nil)
		if err != nil {
			ft.Error = err.Error()
			failed++
		} else {
			ft.Tag = tag.Expr(t)
			ft.Pack = tag.CallExpr(t, tag.Pack)
			ft.Parse = tag.CallExpr(t, tag.Parse)
		}
		result.Tags = append(result.Tags, ft)
	}
	for _, d := range sink.Diagnostics() {
		formatter.VerboseLog("%s: %s", d.Severity, d.Error())
	}

	if err := outputTags(formatter, result); err != nil {
		return err
	}
	if failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%s: %d format(s) failed to resolve", expr, failed))
	}
	return nil
}

func outputTags(formatter *OutputFormatter, result TagsResult) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "%s\n", result.Type)
	for _, t := range result.Tags {
		if t.Error != "" {
			fmt.Fprintf(w, "  ✗ %-7s %s\n", t.Format, t.Error)
			continue
		}
		fmt.Fprintf(w, "  %-7s %s\n", t.Format, t.Tag)
		fmt.Fprintf(w, "          pack:  %s\n", t.Pack)
		fmt.Fprintf(w, "          parse: %s\n", t.Parse)
	}
	return nil
}
