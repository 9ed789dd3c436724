package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/roach88/idlc/internal/codegen"
	"github.com/roach88/idlc/internal/diag"
	"github.com/roach88/idlc/internal/ir"
	"github.com/roach88/idlc/internal/tag"
	"github.com/roach88/idlc/internal/testutil"
)

// createTestStore creates a new store in a temporary directory.
func createTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, opts...)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestRoutine creates a routine description with one operation.
func createTestRoutine(form, format, direction, op string) codegen.RoutineDoc {
	name := form + "." + direction + "_" + format
	return codegen.RoutineDoc{
		Name:      name,
		Signature: name + "()",
		Form:      form,
		Format:    format,
		Direction: direction,
		Ops:       []string{op},
	}
}

// createTestPlan creates a plan with a single target and file.
func createTestPlan(routines ...codegen.RoutineDoc) *codegen.PlanDoc {
	if routines == nil {
		routines = []codegen.RoutineDoc{}
	}
	return &codegen.PlanDoc{
		PlanVersion:      ir.PlanVersion,
		GeneratorVersion: ir.GeneratorVersion,
		Targets: []codegen.TargetDoc{{
			Target: "go",
			Files:  []codegen.FileDoc{{File: "schema.cue", Routines: routines}},
		}},
		Diagnostics: []diag.Diagnostic{},
	}
}

// generateStandardPlan runs the generator over the shared fixture graph.
func generateStandardPlan(t *testing.T) *codegen.PlanDoc {
	t.Helper()
	fx := testutil.Standard()
	r := tag.NewResolver(fx.Attrs, diag.NewSink(0), tag.WithCache(tag.NewCache()))
	plan := codegen.Run(context.Background(), fx.Graph, codegen.NewGenerator(r), []codegen.Target{
		{Name: "go", Formats: []ir.Format{ir.FormatJSON, ir.FormatBinary}},
		{Name: "ts", Formats: []ir.Format{ir.FormatJSON}},
	})
	if plan.Failed() {
		t.Fatalf("standard plan failed: %v", plan.Diagnostics)
	}
	return plan.Doc()
}
