package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/idlc/internal/codegen"
	"github.com/roach88/idlc/internal/diag"
	"github.com/roach88/idlc/internal/ir"
)

// ErrRunNotFound is returned when no run matches the request.
var ErrRunNotFound = errors.New("run not found")

// RoutineRow is a stored routine summary.
type RoutineRow struct {
	Target    string `json:"target"`
	File      string `json:"file"`
	Name      string `json:"name"`
	Form      string `json:"form"`
	Format    string `json:"format"`
	Direction string `json:"direction"`
	Signature string `json:"signature"`
	Digest    string `json:"digest"`
}

// Key identifies the routine within a run.
func (r RoutineRow) Key() string { return r.Target + "/" + r.Name }

type rowQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const runColumns = `id, seq, schema_digest, plan_version, generator_version, terminal, failed, compression`

func scanRun(row interface{ Scan(...any) error }) (Run, error) {
	var r Run
	var codec int
	if err := row.Scan(&r.ID, &r.Seq, &r.SchemaDigest, &r.PlanVersion, &r.GeneratorVersion,
		&r.Terminal, &r.Failed, &codec); err != nil {
		return Run{}, err
	}
	r.Compression = Compression(codec)
	return r, nil
}

// ReadRun returns the summary of one run.
func (s *Store) ReadRun(ctx context.Context, id string) (Run, error) {
	return s.readRun(ctx, s.db, id)
}

func (s *Store) readRun(ctx context.Context, q rowQuerier, id string) (Run, error) {
	r, err := scanRun(q.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("read run %s: %w", id, ErrRunNotFound)
	}
	if err != nil {
		return Run{}, fmt.Errorf("read run %s: %w", id, err)
	}
	return r, nil
}

// LatestRun returns the run with the highest seq. A non-empty
// schemaDigest restricts the search to runs of that schema.
func (s *Store) LatestRun(ctx context.Context, schemaDigest string) (Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs`
	var args []any
	if schemaDigest != "" {
		query += ` WHERE schema_digest = ?`
		args = append(args, schemaDigest)
	}
	query += ` ORDER BY seq DESC LIMIT 1`

	r, err := scanRun(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("latest run: %w", ErrRunNotFound)
	}
	if err != nil {
		return Run{}, fmt.Errorf("latest run: %w", err)
	}
	return r, nil
}

// ListRuns returns every run ordered by seq.
// Returns an empty slice (not nil) when the store holds no runs.
func (s *Store) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+runColumns+`
		FROM runs
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ReadPlan decodes the full plan document of a run.
func (s *Store) ReadPlan(ctx context.Context, id string) (*codegen.PlanDoc, error) {
	var (
		blob  []byte
		codec int
		size  int
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT plan, compression, plan_size FROM runs WHERE id = ?
	`, id).Scan(&blob, &codec, &size)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("read plan %s: %w", id, ErrRunNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read plan %s: %w", id, err)
	}
	return unmarshalPlan(blob, Compression(codec), size)
}

// ReadRoutines returns the routines of a run ordered by target, then name.
// Returns an empty slice (not nil) if the run has none.
func (s *Store) ReadRoutines(ctx context.Context, runID string) ([]RoutineRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT target, file, name, form, format, direction, signature, digest
		FROM routines
		WHERE run_id = ?
		ORDER BY target COLLATE BINARY ASC, name COLLATE BINARY ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query routines: %w", err)
	}
	defer rows.Close()

	out := []RoutineRow{}
	for rows.Next() {
		var r RoutineRow
		if err := rows.Scan(&r.Target, &r.File, &r.Name, &r.Form, &r.Format, &r.Direction, &r.Signature, &r.Digest); err != nil {
			return nil, fmt.Errorf("scan routine: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate routines: %w", err)
	}
	return out, nil
}

// ReadDiagnostics returns the diagnostics of a run in their stored order.
func (s *Store) ReadDiagnostics(ctx context.Context, runID string) ([]diag.Diagnostic, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT severity, code, message, file, line, col, decl
		FROM diagnostics
		WHERE run_id = ?
		ORDER BY idx ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query diagnostics: %w", err)
	}
	defer rows.Close()

	out := []diag.Diagnostic{}
	for rows.Next() {
		var (
			d        diag.Diagnostic
			severity string
			code     string
			pos      ir.Pos
		)
		if err := rows.Scan(&severity, &code, &d.Message, &pos.File, &pos.Line, &pos.Column, &d.Decl); err != nil {
			return nil, fmt.Errorf("scan diagnostic: %w", err)
		}
		if severity == diag.SeverityError.String() {
			d.Severity = diag.SeverityError
		}
		d.Code = diag.Code(code)
		d.Pos = pos
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate diagnostics: %w", err)
	}
	return out, nil
}

// CountDiagnostics returns how many diagnostics with code were recorded,
// over all runs.
func (s *Store) CountDiagnostics(ctx context.Context, code diag.Code) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM diagnostics WHERE code = ?`, string(code)).Scan(&n); err != nil {
		return 0, fmt.Errorf("count diagnostics: %w", err)
	}
	return n, nil
}
