package store

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/roach88/idlc/internal/diag"
	"github.com/roach88/idlc/internal/ir"
)

func TestReadRun_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.ReadRun(context.Background(), "missing")
	if !errors.Is(err, ErrRunNotFound) {
		t.Errorf("ReadRun() error = %v, want ErrRunNotFound", err)
	}
	_, err = s.ReadPlan(context.Background(), "missing")
	if !errors.Is(err, ErrRunNotFound) {
		t.Errorf("ReadPlan() error = %v, want ErrRunNotFound", err)
	}
}

func TestReadRun_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	written, err := s.WritePlan(ctx, "schema-1", createTestPlan())
	if err != nil {
		t.Fatalf("WritePlan() failed: %v", err)
	}
	got, err := s.ReadRun(ctx, written.ID)
	if err != nil {
		t.Fatalf("ReadRun() failed: %v", err)
	}
	if got != written {
		t.Errorf("ReadRun() = %+v, want %+v", got, written)
	}
}

func TestReadPlan_EveryCompression(t *testing.T) {
	for _, c := range []Compression{CompressionNone, CompressionLZ4, CompressionZstd} {
		t.Run(c.String(), func(t *testing.T) {
			s := createTestStore(t, WithCompression(c))
			ctx := context.Background()

			doc := generateStandardPlan(t)
			run, err := s.WritePlan(ctx, "standard", doc)
			if err != nil {
				t.Fatalf("WritePlan() failed: %v", err)
			}
			if run.Compression != c {
				t.Errorf("compression = %s, want %s", run.Compression, c)
			}
			back, err := s.ReadPlan(ctx, run.ID)
			if err != nil {
				t.Fatalf("ReadPlan() failed: %v", err)
			}
			if !reflect.DeepEqual(back.Targets, doc.Targets) {
				t.Errorf("targets differ after round trip")
			}
			if back.GeneratorVersion != doc.GeneratorVersion {
				t.Errorf("generator_version = %q, want %q", back.GeneratorVersion, doc.GeneratorVersion)
			}
		})
	}
}

func TestLatestRun(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	if _, err := s.LatestRun(ctx, ""); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("LatestRun() on empty store = %v, want ErrRunNotFound", err)
	}

	a1, _ := s.WritePlan(ctx, "a", createTestPlan())
	b1, _ := s.WritePlan(ctx, "b", createTestPlan())
	a2, _ := s.WritePlan(ctx, "a", createTestPlan())

	got, err := s.LatestRun(ctx, "")
	if err != nil || got.ID != a2.ID {
		t.Errorf("LatestRun(any) = %v, %v; want %s", got.ID, err, a2.ID)
	}
	got, err = s.LatestRun(ctx, "b")
	if err != nil || got.ID != b1.ID {
		t.Errorf("LatestRun(b) = %v, %v; want %s", got.ID, err, b1.ID)
	}
	if a1.Seq >= a2.Seq {
		t.Errorf("seq not increasing: %d then %d", a1.Seq, a2.Seq)
	}
}

func TestListRuns_DeterministicOrdering(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	runs, err := s.ListRuns(ctx)
	if err != nil {
		t.Fatalf("ListRuns() failed: %v", err)
	}
	if runs == nil || len(runs) != 0 {
		t.Errorf("ListRuns() on empty store = %v, want empty slice", runs)
	}

	// IDs sort opposite to seq; seq must win.
	for _, id := range []string{"zz", "mm", "aa"} {
		if _, err := s.WritePlanWithID(ctx, id, "s", createTestPlan()); err != nil {
			t.Fatalf("WritePlanWithID() failed: %v", err)
		}
	}
	runs, err = s.ListRuns(ctx)
	if err != nil {
		t.Fatalf("ListRuns() failed: %v", err)
	}
	var ids []string
	for _, r := range runs {
		ids = append(ids, r.ID)
	}
	if !reflect.DeepEqual(ids, []string{"zz", "mm", "aa"}) {
		t.Errorf("ListRuns() order = %v", ids)
	}
}

func TestReadRoutines_Ordering(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	doc := createTestPlan(
		createTestRoutine("Z", "json", "pack", "a"),
		createTestRoutine("A", "json", "parse", "b"),
		createTestRoutine("A", "json", "pack", "c"),
	)
	run, err := s.WritePlan(ctx, "s", doc)
	if err != nil {
		t.Fatalf("WritePlan() failed: %v", err)
	}
	rows, err := s.ReadRoutines(ctx, run.ID)
	if err != nil {
		t.Fatalf("ReadRoutines() failed: %v", err)
	}
	var names []string
	for _, r := range rows {
		names = append(names, r.Name)
		if r.Target != "go" || r.File != "schema.cue" || len(r.Digest) != 64 {
			t.Errorf("unexpected row %+v", r)
		}
	}
	want := []string{"A.pack_json", "A.parse_json", "Z.pack_json"}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("routine order = %v, want %v", names, want)
	}
}

func TestReadDiagnostics_PreservesOrderAndPositions(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	doc := createTestPlan()
	doc.Diagnostics = []diag.Diagnostic{
		{Severity: diag.SeverityError, Code: diag.CodeAsymmetricCodec, Message: "only pack",
			Pos: ir.Pos{File: "a.cue", Line: 2, Column: 4}, Decl: "Point"},
		{Severity: diag.SeverityWarning, Code: diag.CodeDeprecatedAttr, Message: "use json.key"},
	}
	run, err := s.WritePlan(ctx, "s", doc)
	if err != nil {
		t.Fatalf("WritePlan() failed: %v", err)
	}
	got, err := s.ReadDiagnostics(ctx, run.ID)
	if err != nil {
		t.Fatalf("ReadDiagnostics() failed: %v", err)
	}
	if !reflect.DeepEqual(got, doc.Diagnostics) {
		t.Errorf("ReadDiagnostics() = %+v, want %+v", got, doc.Diagnostics)
	}

	n, err := s.CountDiagnostics(ctx, diag.CodeDeprecatedAttr)
	if err != nil || n != 1 {
		t.Errorf("CountDiagnostics() = %d, %v; want 1", n, err)
	}
}
