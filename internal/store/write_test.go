package store

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/roach88/idlc/internal/codegen"
	"github.com/roach88/idlc/internal/diag"
	"github.com/roach88/idlc/internal/ir"
)

func TestWritePlan_Basic(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	doc := createTestPlan(
		createTestRoutine("Point", "json", "pack", "field x"),
		createTestRoutine("Point", "json", "parse", "field x"),
	)
	run, err := s.WritePlan(ctx, "schema-1", doc)
	if err != nil {
		t.Fatalf("WritePlan() failed: %v", err)
	}

	id, err := uuid.Parse(run.ID)
	if err != nil {
		t.Fatalf("run ID %q is not a UUID: %v", run.ID, err)
	}
	if id.Version() != 7 {
		t.Errorf("run ID version = %d, want 7", id.Version())
	}
	if run.Seq != 1 {
		t.Errorf("seq = %d, want 1", run.Seq)
	}
	if run.Failed || run.Terminal {
		t.Errorf("run flags = failed:%v terminal:%v, want both false", run.Failed, run.Terminal)
	}
	if run.PlanVersion != ir.PlanVersion {
		t.Errorf("plan_version = %q, want %q", run.PlanVersion, ir.PlanVersion)
	}

	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM routines WHERE run_id = ?`, run.ID).Scan(&count); err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if count != 2 {
		t.Errorf("routine rows = %d, want 2", count)
	}
}

func TestWritePlan_SeqIncrements(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		run, err := s.WritePlan(ctx, "schema-1", createTestPlan())
		if err != nil {
			t.Fatalf("WritePlan() failed: %v", err)
		}
		if run.Seq != want {
			t.Errorf("seq = %d, want %d", run.Seq, want)
		}
	}
}

func TestWritePlan_Idempotent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	doc := createTestPlan(createTestRoutine("R", "json", "pack", "field id"))
	first, err := s.WritePlanWithID(ctx, "run-a", "schema-1", doc)
	if err != nil {
		t.Fatalf("first write failed: %v", err)
	}
	second, err := s.WritePlanWithID(ctx, "run-a", "schema-2", doc)
	if err != nil {
		t.Fatalf("second write failed: %v", err)
	}
	if second.Seq != first.Seq || second.SchemaDigest != "schema-1" {
		t.Errorf("second write = %+v, want the stored run %+v", second, first)
	}

	var runs, routines int
	s.db.QueryRow(`SELECT COUNT(*) FROM runs`).Scan(&runs)
	s.db.QueryRow(`SELECT COUNT(*) FROM routines`).Scan(&routines)
	if runs != 1 || routines != 1 {
		t.Errorf("rows = %d runs, %d routines; want 1 and 1", runs, routines)
	}
}

func TestWritePlan_FailedFlags(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	withError := createTestPlan()
	withError.Diagnostics = []diag.Diagnostic{
		{Severity: diag.SeverityWarning, Code: diag.CodeUnknownAttribute, Message: "unknown"},
		{Severity: diag.SeverityError, Code: diag.CodeDisabledFormat, Message: "disabled",
			Pos: ir.Pos{File: "a.cue", Line: 3, Column: 5}, Decl: "R.x"},
	}
	run, err := s.WritePlan(ctx, "s", withError)
	if err != nil {
		t.Fatalf("WritePlan() failed: %v", err)
	}
	if !run.Failed {
		t.Error("plan with a configuration error should be failed")
	}

	aborted := createTestPlan()
	aborted.Targets[0].Error = "target go: internal error"
	aborted.Terminal = true
	run, err = s.WritePlan(ctx, "s", aborted)
	if err != nil {
		t.Fatalf("WritePlan() failed: %v", err)
	}
	if !run.Failed || !run.Terminal {
		t.Errorf("aborted plan flags = failed:%v terminal:%v, want both true", run.Failed, run.Terminal)
	}
}

func TestWritePlan_StandardPlan(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	doc := generateStandardPlan(t)
	run, err := s.WritePlan(ctx, "standard", doc)
	if err != nil {
		t.Fatalf("WritePlan() failed: %v", err)
	}

	want := 0
	for _, target := range doc.Targets {
		for _, f := range target.Files {
			want += len(f.Routines)
		}
	}
	var got int
	s.db.QueryRow(`SELECT COUNT(*) FROM routines WHERE run_id = ?`, run.ID).Scan(&got)
	if got != want || got == 0 {
		t.Errorf("routine rows = %d, want %d", got, want)
	}

	// Generated plans are text-heavy and must shrink.
	var codec, size int
	var blob []byte
	s.db.QueryRow(`SELECT compression, plan_size, plan FROM runs WHERE id = ?`, run.ID).Scan(&codec, &size, &blob)
	if Compression(codec) != CompressionZstd {
		t.Errorf("compression = %s, want zstd", Compression(codec))
	}
	if len(blob) >= size {
		t.Errorf("stored blob %d bytes, raw %d bytes", len(blob), size)
	}
}

func TestWritePlan_WithheldFilesHaveNoRoutines(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	doc := createTestPlan()
	doc.Targets[0].Files = append(doc.Targets[0].Files, codegen.FileDoc{
		File: "bad.cue", Withheld: true, Routines: []codegen.RoutineDoc{},
	})
	run, err := s.WritePlan(ctx, "s", doc)
	if err != nil {
		t.Fatalf("WritePlan() failed: %v", err)
	}
	rows, err := s.ReadRoutines(ctx, run.ID)
	if err != nil {
		t.Fatalf("ReadRoutines() failed: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("routines = %v, want none", rows)
	}
}

func TestDeleteRun_Cascades(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	doc := createTestPlan(createTestRoutine("R", "json", "pack", "field id"))
	doc.Diagnostics = []diag.Diagnostic{{Severity: diag.SeverityWarning, Code: diag.CodeDeprecatedAttr, Message: "old"}}
	run, err := s.WritePlan(ctx, "s", doc)
	if err != nil {
		t.Fatalf("WritePlan() failed: %v", err)
	}
	if err := s.DeleteRun(ctx, run.ID); err != nil {
		t.Fatalf("DeleteRun() failed: %v", err)
	}

	for _, table := range []string{"runs", "routines", "diagnostics"} {
		var n int
		s.db.QueryRow(`SELECT COUNT(*) FROM ` + table).Scan(&n)
		if n != 0 {
			t.Errorf("%s has %d rows after delete", table, n)
		}
	}
	if err := s.DeleteRun(ctx, "unknown"); err != nil {
		t.Errorf("DeleteRun(unknown) = %v, want nil", err)
	}
}
