package store

import (
	"context"
	"fmt"

	"github.com/roach88/sweep/internal/engine"
)

// Observe journals an engine event. It implements engine.Observer.
//
// Every event is appended to task_events. run_started creates the run row
// and terminal events close it. Failures are logged and remembered; the
// first one is returned by Err.
func (s *Store) Observe(ev engine.Event) {
	if err := s.WriteEvent(context.Background(), ev); err != nil {
		s.logger.Error("journal write failed",
			"run", ev.RunID,
			"type", ev.Type,
			"seq", ev.Seq,
			"error", err)
		s.mu.Lock()
		if s.journal == nil {
			s.journal = err
		}
		s.mu.Unlock()
	}
}

// Err returns the first journaling failure seen by Observe.
func (s *Store) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.journal
}

// WriteEvent inserts an event and updates the run it belongs to.
// Uses ON CONFLICT(seq) DO NOTHING for idempotency - replaying the same
// event is silently ignored.
func (s *Store) WriteEvent(ctx context.Context, ev engine.Event) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO task_events (seq, run_id, type, pass, visited, detail)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(seq) DO NOTHING
	`, ev.Seq, ev.RunID, string(ev.Type), ev.Pass, ev.Visited, ev.Detail); err != nil {
		return fmt.Errorf("write event: %w", err)
	}

	switch ev.Type {
	case engine.EventRunStarted:
		_, err = tx.ExecContext(ctx, `
			INSERT INTO runs (id, kind, fingerprint, priority, cooperative, algorithm, started_seq)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO NOTHING
		`, ev.RunID, string(ev.Kind), ev.Fingerprint, string(ev.Priority),
			boolToInt(ev.Cooperative), ev.Detail, ev.Seq)
	case engine.EventPassCompleted:
		_, err = tx.ExecContext(ctx, `
			UPDATE runs SET passes = ?, visited = ? WHERE id = ?
		`, ev.Pass+1, ev.Visited, ev.RunID)
	case engine.EventRunCompleted, engine.EventRunFailed, engine.EventRunCancelled:
		_, err = tx.ExecContext(ctx, `
			UPDATE runs SET outcome = ?, finished_seq = ?, visited = ?, error = ?
			WHERE id = ?
		`, outcomeOf(ev.Type), ev.Seq, ev.Visited, errorDetail(ev), ev.RunID)
	}
	if err != nil {
		return fmt.Errorf("write event: update run: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write event: commit: %w", err)
	}
	return nil
}

// WritePlans stores the plans of a planner's cache. Plans are immutable,
// so existing fingerprints are left untouched.
func (s *Store) WritePlans(ctx context.Context, plans []*engine.Plan) error {
	for _, p := range plans {
		shape, err := marshalShape(p.Shape)
		if err != nil {
			return fmt.Errorf("write plan %s: %w", p.Fingerprint, err)
		}
		_, err = s.db.ExecContext(ctx, `
			INSERT INTO plans (fingerprint, kind, algorithm, relocatable, shape)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(fingerprint) DO NOTHING
		`, p.Fingerprint, string(p.Kind), p.Algorithm(), boolToInt(p.Relocatable()), shape)
		if err != nil {
			return fmt.Errorf("write plan %s: %w", p.Fingerprint, err)
		}
	}
	return nil
}

// Run outcomes stored in runs.outcome.
const (
	OutcomeRunning   = "running"
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
	OutcomeCancelled = "cancelled"
)

func outcomeOf(t engine.EventType) string {
	switch t {
	case engine.EventRunCompleted:
		return OutcomeCompleted
	case engine.EventRunFailed:
		return OutcomeFailed
	case engine.EventRunCancelled:
		return OutcomeCancelled
	}
	return OutcomeRunning
}

func errorDetail(ev engine.Event) string {
	if ev.Type == engine.EventRunCompleted {
		return ""
	}
	return ev.Detail
}
