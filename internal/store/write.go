package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/roach88/idlc/internal/codegen"
	"github.com/roach88/idlc/internal/diag"
)

// Run is the summary row of one stored generation.
type Run struct {
	ID               string      `json:"id"`
	Seq              int64       `json:"seq"`
	SchemaDigest     string      `json:"schema_digest"`
	PlanVersion      string      `json:"plan_version"`
	GeneratorVersion string      `json:"generator_version"`
	Terminal         bool        `json:"terminal"`
	Failed           bool        `json:"failed"`
	Compression      Compression `json:"-"`
}

// NewRunID returns a fresh UUIDv7 run identifier.
func NewRunID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// WritePlan stores a generation plan as a new run and returns its summary.
// The run gets the next seq; plan, routines and diagnostics are written in
// one transaction.
func (s *Store) WritePlan(ctx context.Context, schemaDigest string, doc *codegen.PlanDoc) (Run, error) {
	return s.WritePlanWithID(ctx, NewRunID(), schemaDigest, doc)
}

// WritePlanWithID is WritePlan with a caller-chosen run ID. Writing an ID
// that already exists is a no-op returning the stored run.
func (s *Store) WritePlanWithID(ctx context.Context, id, schemaDigest string, doc *codegen.PlanDoc) (Run, error) {
	blob, codec, size, err := marshalPlan(doc, s.compression)
	if err != nil {
		return Run{}, fmt.Errorf("write plan: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Run{}, fmt.Errorf("write plan: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	var seq int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) + 1 FROM runs`).Scan(&seq); err != nil {
		return Run{}, fmt.Errorf("write plan: next seq: %w", err)
	}

	run := Run{
		ID:               id,
		Seq:              seq,
		SchemaDigest:     schemaDigest,
		PlanVersion:      doc.PlanVersion,
		GeneratorVersion: doc.GeneratorVersion,
		Terminal:         doc.Terminal,
		Failed:           planFailed(doc),
		Compression:      codec,
	}
	result, err := tx.ExecContext(ctx, `
		INSERT INTO runs
		(id, seq, schema_digest, plan_version, generator_version, terminal, failed, compression, plan_size, plan)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		run.ID,
		run.Seq,
		run.SchemaDigest,
		run.PlanVersion,
		run.GeneratorVersion,
		run.Terminal,
		run.Failed,
		int(codec),
		size,
		blob,
	)
	if err != nil {
		return Run{}, fmt.Errorf("write plan: %w", err)
	}
	if n, err := result.RowsAffected(); err != nil {
		return Run{}, fmt.Errorf("write plan: rows affected: %w", err)
	} else if n == 0 {
		// Already stored; the transaction is rolled back.
		return s.readRun(ctx, tx, id)
	}

	if err := writeRoutines(ctx, tx, run.ID, doc); err != nil {
		return Run{}, err
	}
	if err := writeDiagnostics(ctx, tx, run.ID, doc.Diagnostics); err != nil {
		return Run{}, err
	}
	if err := tx.Commit(); err != nil {
		return Run{}, fmt.Errorf("write plan: commit: %w", err)
	}
	return run, nil
}

func writeRoutines(ctx context.Context, tx *sql.Tx, runID string, doc *codegen.PlanDoc) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO routines
		(run_id, target, file, name, form, format, direction, signature, digest)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("write routines: prepare: %w", err)
	}
	defer stmt.Close()

	for _, t := range doc.Targets {
		for _, f := range t.Files {
			for _, r := range f.Routines {
				digest, err := RoutineDigest(r)
				if err != nil {
					return fmt.Errorf("write routines: %w", err)
				}
				if _, err := stmt.ExecContext(ctx,
					runID, t.Target, f.File, r.Name, r.Form, r.Format, r.Direction, r.Signature, digest,
				); err != nil {
					return fmt.Errorf("write routine %s/%s: %w", t.Target, r.Name, err)
				}
			}
		}
	}
	return nil
}

func writeDiagnostics(ctx context.Context, tx *sql.Tx, runID string, diags []diag.Diagnostic) error {
	for i, d := range diags {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO diagnostics
			(run_id, idx, severity, code, message, file, line, col, decl)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			runID, i, d.Severity.String(), string(d.Code), d.Message,
			d.Pos.File, d.Pos.Line, d.Pos.Column, d.Decl,
		)
		if err != nil {
			return fmt.Errorf("write diagnostic %d: %w", i, err)
		}
	}
	return nil
}

// planFailed mirrors codegen.Plan.Failed on the serialized form.
func planFailed(doc *codegen.PlanDoc) bool {
	for _, d := range doc.Diagnostics {
		if d.Severity == diag.SeverityError {
			return true
		}
	}
	for _, t := range doc.Targets {
		if t.Error != "" {
			return true
		}
	}
	return false
}

// DeleteRun removes a run with its routines and diagnostics.
// Deleting an unknown run is not an error.
func (s *Store) DeleteRun(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	return nil
}
