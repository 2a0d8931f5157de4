package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/roach88/sweep/internal/engine"
	"github.com/roach88/sweep/internal/querysql"
)

// RowSource is an engine.Source over the rows of a SQL query. Each row is
// produced as a map from column name to value; TEXT and BLOB columns
// arrive as string.
//
// The query runs on the first Pull of a pass and its rows stay open until
// the engine closes the source at the end of the pass, so a restarted
// pass re-runs the query. A query or scan failure ends the pass early and
// is reported by Err.
//
// The rows hold a connection for the whole pass. Do not read from the
// store journaling the same traversal: the journal has a single
// connection and would wait on the rows forever.
type RowSource struct {
	ctx   context.Context
	db    *sql.DB
	query string
	args  []any

	mu   sync.Mutex
	rows *sql.Rows
	cols []string
	err  error
}

// RowSource returns a source over query.
func (s *Store) RowSource(ctx context.Context, query string, args ...any) *RowSource {
	return NewRowSource(ctx, s.db, query, args...)
}

// QuerySource returns a source over the rows q selects. The where clause
// runs in SQLite, so only matching rows reach the engine.
func (s *Store) QuerySource(ctx context.Context, q querysql.Select) (*RowSource, error) {
	return NewQuerySource(ctx, s.db, q)
}

// NewQuerySource compiles q and returns a source over its rows in db.
func NewQuerySource(ctx context.Context, db *sql.DB, q querysql.Select) (*RowSource, error) {
	query, args, err := querysql.NewCompiler().Compile(q)
	if err != nil {
		return nil, fmt.Errorf("row source: %w", err)
	}
	return NewRowSource(ctx, db, query, args...), nil
}

// NewRowSource returns a source over query run against db.
func NewRowSource(ctx context.Context, db *sql.DB, query string, args ...any) *RowSource {
	return &RowSource{ctx: ctx, db: db, query: query, args: args}
}

// Protocol implements engine.Source. Rows may legitimately be empty or
// zero, so completion is signalled out of band.
func (r *RowSource) Protocol() engine.Protocol { return engine.ProtocolPair }

// Pull implements engine.Source.
func (r *RowSource) Pull() engine.Step {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.rows == nil {
		if r.err != nil {
			return engine.Step{Done: true}
		}
		rows, err := r.db.QueryContext(r.ctx, r.query, r.args...)
		if err != nil {
			r.err = fmt.Errorf("row source: query: %w", err)
			return engine.Step{Done: true}
		}
		cols, err := rows.Columns()
		if err != nil {
			rows.Close()
			r.err = fmt.Errorf("row source: columns: %w", err)
			return engine.Step{Done: true}
		}
		r.rows, r.cols = rows, cols
	}

	if !r.rows.Next() {
		if err := r.rows.Err(); err != nil {
			r.err = fmt.Errorf("row source: iterate: %w", err)
		}
		return engine.Step{Done: true}
	}

	values := make([]any, len(r.cols))
	ptrs := make([]any, len(r.cols))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := r.rows.Scan(ptrs...); err != nil {
		r.err = fmt.Errorf("row source: scan: %w", err)
		return engine.Step{Done: true}
	}

	row := make(map[string]any, len(r.cols))
	for i, col := range r.cols {
		if b, ok := values[i].([]byte); ok {
			row[col] = string(b)
			continue
		}
		row[col] = values[i]
	}
	return engine.Step{Value: row}
}

// Close releases the rows of the current pass. The engine calls it when a
// pass ends.
func (r *RowSource) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rows == nil {
		return nil
	}
	err := r.rows.Close()
	r.rows, r.cols = nil, nil
	return err
}

// Err returns the failure that ended the last pass, if any.
func (r *RowSource) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}
