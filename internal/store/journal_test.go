package store

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sweep/internal/engine"
	"github.com/roach88/sweep/internal/ir"
	"github.com/roach88/sweep/internal/testutil"
)

func newJournaledEngine(t *testing.T, s *Store) *engine.Engine {
	t.Helper()
	e := engine.New(
		engine.WithObserver(s),
		engine.WithTaskIDs(testutil.NewSequentialIDs("run")),
		engine.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	t.Cleanup(e.Close)
	return e
}

func eventTypes(events []engine.Event) []engine.EventType {
	out := make([]engine.EventType, len(events))
	for i, ev := range events {
		out[i] = ev.Type
	}
	return out
}

func TestJournal_CompletedRun(t *testing.T) {
	s := createTestStore(t)
	e := newJournaledEngine(t, s)

	_, err := e.Run(context.Background(), []any{10, 20, 30}, nil, engine.Aggregate(engine.Collect()))
	require.NoError(t, err)
	require.NoError(t, s.Err())

	run, err := s.ReadRun(context.Background(), "run-0001")
	require.NoError(t, err)
	assert.Equal(t, ir.KindSequence, run.Kind)
	assert.Equal(t, OutcomeCompleted, run.Outcome)
	assert.Equal(t, 1, run.Passes)
	assert.Equal(t, 3, run.Visited)
	assert.False(t, run.Cooperative)
	assert.Equal(t, ir.PriorityNormal, run.Priority)
	assert.NotEmpty(t, run.Algorithm)
	assert.Greater(t, run.FinishedSeq, run.StartedSeq)
	assert.Empty(t, run.Error)

	events, err := s.ReadEvents(context.Background(), "run-0001")
	require.NoError(t, err)
	assert.Equal(t, []engine.EventType{
		engine.EventRunStarted,
		engine.EventPassCompleted,
		engine.EventRunCompleted,
	}, eventTypes(events))
	for _, ev := range events {
		assert.Equal(t, run.Fingerprint, ev.Fingerprint)
		assert.Equal(t, ir.KindSequence, ev.Kind)
	}
}

func TestJournal_RestartCountsPasses(t *testing.T) {
	s := createTestStore(t)
	e := newJournaledEngine(t, s)

	restarted := false
	_, err := e.Run(context.Background(), []any{1, 2}, func(el engine.Element, c *engine.Context) (any, error) {
		if !restarted && el.Position == 1 {
			restarted = true
			c.Restart()
		}
		return nil, nil
	})
	require.NoError(t, err)

	run, err := s.ReadRun(context.Background(), "run-0001")
	require.NoError(t, err)
	assert.Equal(t, 2, run.Passes)
}

func TestJournal_FailedRun(t *testing.T) {
	s := createTestStore(t)
	e := newJournaledEngine(t, s)

	_, err := e.Run(context.Background(), []any{1}, func(engine.Element, *engine.Context) (any, error) {
		return nil, errors.New("boom")
	})
	require.Error(t, err)

	run, err := s.ReadRun(context.Background(), "run-0001")
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, run.Outcome)
	assert.Contains(t, run.Error, "boom")
}

func TestJournal_CooperativeRun(t *testing.T) {
	s := createTestStore(t)
	e := newJournaledEngine(t, s)

	_, err := e.Run(context.Background(), []any{1, 2, 3}, func(_ engine.Element, c *engine.Context) (any, error) {
		c.Sleep(0, nil, false)
		return nil, nil
	}, engine.Cooperative(ir.PriorityHigh))
	require.NoError(t, err)

	run, err := s.ReadRun(context.Background(), "run-0001")
	require.NoError(t, err)
	assert.True(t, run.Cooperative)
	assert.Equal(t, ir.PriorityHigh, run.Priority)
	assert.Equal(t, OutcomeCompleted, run.Outcome)

	events, err := s.ReadEvents(context.Background(), "run-0001")
	require.NoError(t, err)
	assert.Contains(t, eventTypes(events), engine.EventTaskYielded)
}

func TestReadRun_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.ReadRun(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestReadRuns_Ordered(t *testing.T) {
	s := createTestStore(t)
	e := newJournaledEngine(t, s)

	for range 3 {
		_, err := e.Run(context.Background(), []any{1}, nil)
		require.NoError(t, err)
	}

	runs, err := s.ReadRuns(context.Background())
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, "run-0001", runs[0].ID)
	assert.Equal(t, "run-0003", runs[2].ID)
}

func TestReadEvents_Empty(t *testing.T) {
	s := createTestStore(t)

	events, err := s.ReadEvents(context.Background(), "nothing")
	require.NoError(t, err)
	assert.NotNil(t, events)
	assert.Empty(t, events)
}

func TestWriteEvent_Idempotent(t *testing.T) {
	s := createTestStore(t)
	ev := engine.Event{Seq: 7, Type: engine.EventRunStarted, RunID: "r", Kind: ir.KindMapping, Priority: ir.PriorityLow, Detail: "mapping/own-keys"}

	require.NoError(t, s.WriteEvent(context.Background(), ev))
	require.NoError(t, s.WriteEvent(context.Background(), ev))

	events, err := s.ReadEvents(context.Background(), "r")
	require.NoError(t, err)
	assert.Len(t, events, 1)

	run, err := s.ReadRun(context.Background(), "r")
	require.NoError(t, err)
	assert.Equal(t, "mapping/own-keys", run.Algorithm)
	assert.Equal(t, OutcomeRunning, run.Outcome)
	assert.Zero(t, run.FinishedSeq)
}

func TestObserve_RecordsFirstFailure(t *testing.T) {
	s := createTestStore(t)
	s.SetLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, s.Close())

	s.Observe(engine.Event{Seq: 1, Type: engine.EventRunStarted, RunID: "r"})
	assert.Error(t, s.Err())
}

func TestWritePlans_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	e := newJournaledEngine(t, s)

	_, err := e.Run(context.Background(), []any{1, 2, 3}, nil, engine.Reverse(), engine.Window(1, 2))
	require.NoError(t, err)

	plans := e.Planner().Plans()
	require.Len(t, plans, 1)
	require.NoError(t, s.WritePlans(context.Background(), plans))
	require.NoError(t, s.WritePlans(context.Background(), plans), "rewriting a plan is a no-op")

	rec, err := s.ReadPlan(context.Background(), plans[0].Fingerprint)
	require.NoError(t, err)
	assert.Equal(t, plans[0].Shape, rec.Shape)
	assert.Equal(t, ir.KindSequence, rec.Kind)
	assert.Equal(t, plans[0].Algorithm(), rec.Algorithm)
	assert.Equal(t, plans[0].Relocatable(), rec.Relocatable)
	assert.Equal(t, plans[0].Fingerprint, ir.Fingerprint(rec.Kind, rec.Shape))
}

func TestReadPlan_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.ReadPlan(context.Background(), "nope")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}
