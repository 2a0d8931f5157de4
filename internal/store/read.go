package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/sweep/internal/engine"
	"github.com/roach88/sweep/internal/ir"
)

// Run is one journaled traversal.
type Run struct {
	ID          string      `json:"id"`
	Kind        ir.Kind     `json:"kind"`
	Fingerprint string      `json:"fingerprint"`
	Priority    ir.Priority `json:"priority"`
	Cooperative bool        `json:"cooperative"`
	Algorithm   string      `json:"algorithm"`
	StartedSeq  int64       `json:"started_seq"`
	FinishedSeq int64       `json:"finished_seq,omitempty"` // 0 while running
	Outcome     string      `json:"outcome"`
	Passes      int         `json:"passes"`
	Visited     int         `json:"visited"`
	Error       string      `json:"error,omitempty"`
}

// PlanRecord is a journaled plan.
type PlanRecord struct {
	Fingerprint string   `json:"fingerprint"`
	Kind        ir.Kind  `json:"kind"`
	Algorithm   string   `json:"algorithm"`
	Relocatable bool     `json:"relocatable"`
	Shape       ir.Shape `json:"shape"`
}

const runColumns = `id, kind, fingerprint, priority, cooperative, algorithm,
	started_seq, finished_seq, outcome, passes, visited, error`

// ReadRun retrieves a single run by ID.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	return scanRun(row)
}

// ReadRuns returns every run ordered by start.
//
// Returns an empty slice (not nil) when the journal is empty.
func (s *Store) ReadRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+runColumns+`
		FROM runs
		ORDER BY started_seq ASC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ReadEvents returns the events of a run in seq order. Kind, fingerprint,
// priority and cooperative are filled from the run row.
//
// Returns an empty slice (not nil) if the run has no events.
func (s *Store) ReadEvents(ctx context.Context, runID string) ([]engine.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT e.seq, e.type, e.run_id, e.pass, e.visited, e.detail,
		       COALESCE(r.kind, ''), COALESCE(r.fingerprint, ''),
		       COALESCE(r.priority, ''), COALESCE(r.cooperative, 0)
		FROM task_events e
		LEFT JOIN runs r ON r.id = e.run_id
		WHERE e.run_id = ?
		ORDER BY e.seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := []engine.Event{}
	for rows.Next() {
		var (
			ev                  engine.Event
			typ, kind, priority string
			cooperative         int
		)
		if err := rows.Scan(&ev.Seq, &typ, &ev.RunID, &ev.Pass, &ev.Visited, &ev.Detail,
			&kind, &ev.Fingerprint, &priority, &cooperative); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.Type = engine.EventType(typ)
		ev.Kind = ir.Kind(kind)
		ev.Priority = ir.Priority(priority)
		ev.Cooperative = cooperative != 0
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// ReadPlan retrieves a journaled plan by fingerprint.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadPlan(ctx context.Context, fingerprint string) (PlanRecord, error) {
	var (
		rec         PlanRecord
		kind, shape string
		relocatable int
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT fingerprint, kind, algorithm, relocatable, shape
		FROM plans WHERE fingerprint = ?
	`, fingerprint).Scan(&rec.Fingerprint, &kind, &rec.Algorithm, &relocatable, &shape)
	if err != nil {
		return PlanRecord{}, err
	}
	rec.Kind = ir.Kind(kind)
	rec.Relocatable = relocatable != 0
	rec.Shape, err = unmarshalShape(shape)
	if err != nil {
		return PlanRecord{}, err
	}
	return rec, nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var (
		r              Run
		kind, priority string
		cooperative    int
		finished       sql.NullInt64
	)
	err := row.Scan(&r.ID, &kind, &r.Fingerprint, &priority, &cooperative, &r.Algorithm,
		&r.StartedSeq, &finished, &r.Outcome, &r.Passes, &r.Visited, &r.Error)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, err
		}
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	r.Kind = ir.Kind(kind)
	r.Priority = ir.Priority(priority)
	r.Cooperative = cooperative != 0
	r.FinishedSeq = finished.Int64
	return r, nil
}
