package codegen

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/roach88/idlc/internal/diag"
	"github.com/roach88/idlc/internal/ir"
)

// Target is one backend: a name and the formats it generates codecs for.
type Target struct {
	Name    string      `yaml:"name" json:"name"`
	Formats []ir.Format `yaml:"formats" json:"formats"`
}

// FileOutput holds the routines generated for the declarations of one
// source file. Withheld output must not be written.
type FileOutput struct {
	File     string
	Routines []*Routine
	Withheld bool
}

// TargetResult is the outcome of one target's worker. Err is set when an
// internal error aborted the target; Files is then empty.
type TargetResult struct {
	Target string
	Files  []*FileOutput
	Err    error
}

// Plan is the result of a generation run.
type Plan struct {
	Targets     []*TargetResult
	Diagnostics []diag.Diagnostic
	// Terminal is set when the error threshold was reached; every file is
	// withheld.
	Terminal bool
}

// Failed reports whether any configuration or internal error occurred.
func (p *Plan) Failed() bool {
	for _, d := range p.Diagnostics {
		if d.Severity == diag.SeverityError {
			return true
		}
	}
	for _, t := range p.Targets {
		if t.Err != nil {
			return true
		}
	}
	return false
}

// Routines returns every routine of a target that is not withheld.
func (t *TargetResult) Routines() []*Routine {
	var out []*Routine
	for _, f := range t.Files {
		if !f.Withheld {
			out = append(out, f.Routines...)
		}
	}
	return out
}

// Run generates every target concurrently, one worker per target. Forms
// that do not enable a target format are skipped silently. Configuration
// errors withhold the files they are located in; internal errors abort
// only the failing target.
func Run(ctx context.Context, graph *ir.Graph, gen *Generator, targets []Target) *Plan {
	slog.Info("generation starting", "forms", graph.Len(), "targets", len(targets))

	results := make([]*TargetResult, len(targets))
	var wg sync.WaitGroup
	for i, tgt := range targets {
		wg.Add(1)
		go func(i int, tgt Target) {
			defer wg.Done()
			results[i] = runTarget(ctx, graph, gen, tgt)
		}(i, tgt)
	}
	wg.Wait()

	sink := gen.Resolver().Sink()
	plan := &Plan{
		Targets:     results,
		Diagnostics: sink.Diagnostics(),
		Terminal:    sink.Terminal(),
	}

	bad := sink.FilesWithErrors()
	for _, res := range results {
		for _, fo := range res.Files {
			if plan.Terminal || bad[fo.File] {
				fo.Withheld = true
			}
		}
	}
	if plan.Terminal {
		slog.Error("error threshold reached, withholding all output", "errors", sink.ErrorCount())
	}
	slog.Info("generation finished",
		"errors", sink.ErrorCount(),
		"diagnostics", len(plan.Diagnostics),
		"withheld_files", len(bad))
	return plan
}

func runTarget(ctx context.Context, graph *ir.Graph, gen *Generator, tgt Target) *TargetResult {
	res := &TargetResult{Target: tgt.Name}
	sink := gen.Resolver().Sink()
	files := make(map[string]*FileOutput)

	for _, form := range graph.Forms() {
		if err := ctx.Err(); err != nil {
			res.Err = fmt.Errorf("target %s: %w", tgt.Name, err)
			res.Files = nil
			return res
		}
		if sink.Terminal() {
			break
		}
		for _, f := range tgt.Formats {
			if !gen.Resolver().Enabled(form, f) {
				continue
			}
			pair, err := gen.Generate(form, f)
			if err != nil {
				if diag.IsInternal(err) {
					slog.Error("target aborted", "target", tgt.Name, "form", form.Name, "format", f, "error", err)
					res.Err = fmt.Errorf("target %s: %w", tgt.Name, err)
					res.Files = nil
					return res
				}
				if !errors.Is(err, diag.ErrSkipped) {
					res.Err = fmt.Errorf("target %s: unexpected error for %s: %w", tgt.Name, form.Name, err)
					res.Files = nil
					return res
				}
				// The diagnostic may point at another declaration; the
				// file missing this form's routines is withheld too.
				slog.Debug("form skipped", "target", tgt.Name, "form", form.Name, "format", f)
				fileOf(files, form).Withheld = true
				continue
			}
			if pair == nil {
				continue
			}
			fo := fileOf(files, form)
			fo.Routines = append(fo.Routines, pair.Encode, pair.Decode)
		}
	}

	for _, fo := range files {
		res.Files = append(res.Files, fo)
	}
	sort.Slice(res.Files, func(i, j int) bool { return res.Files[i].File < res.Files[j].File })
	slog.Debug("target generated", "target", tgt.Name, "files", len(res.Files))
	return res
}

func fileOf(files map[string]*FileOutput, form *ir.Form) *FileOutput {
	fo, ok := files[form.Pos.File]
	if !ok {
		fo = &FileOutput{File: form.Pos.File}
		files[form.Pos.File] = fo
	}
	return fo
}
