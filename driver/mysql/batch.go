package mysql

import (
	"context"
	"database/sql"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"
)

// batchResult is one queued query's materialized outcome. Rows are fully
// scanned into maps before delivery so a consumer never touches the shared
// *sql.Rows cursor the multi-statement round trip produced.
type batchResult struct {
	rows []map[string]any
	err  error
}

type queuedQuery struct {
	query string
	args  []any
	done  chan batchResult
}

// batchQueue implements spec §5's MySQL connection-pool note: read queries
// enqueued within one flush tick coalesce into a single multiStatements
// round trip, demultiplexed by result-set index. A singleflight.Group with
// a constant key ensures concurrently arriving enqueue calls share one
// flush rather than each spawning its own drain goroutine.
type batchQueue struct {
	db *sql.DB

	mu      sync.Mutex
	pending []*queuedQuery
	group   singleflight.Group
}

func newBatchQueue(db *sql.DB) *batchQueue {
	return &batchQueue{db: db}
}

// enqueue submits query/args for the next flush and blocks until its result
// set (or the batch's shared error) is ready.
func (q *batchQueue) enqueue(ctx context.Context, query string, args []any) ([]map[string]any, error) {
	item := &queuedQuery{query: query, args: args, done: make(chan batchResult, 1)}
	q.mu.Lock()
	q.pending = append(q.pending, item)
	q.mu.Unlock()

	go func() {
		_, _, _ = q.group.Do("flush", func() (any, error) {
			q.flush(ctx)
			return nil, nil
		})
	}()

	select {
	case out := <-item.done:
		return out.rows, out.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// flush drains every query pending at the instant it runs, submits them as
// one semicolon-joined multiStatements query, and materializes each item's
// result set in order before waking its caller. Failure of the combined
// statement rejects every pending item with the same error, per spec §5's
// "partial-failure of a batched multi-statement rejects every item
// identically" rule.
func (q *batchQueue) flush(ctx context.Context) {
	q.mu.Lock()
	items := q.pending
	q.pending = nil
	q.mu.Unlock()
	if len(items) == 0 {
		return
	}

	var sb strings.Builder
	var args []any
	for i, it := range items {
		if i > 0 {
			sb.WriteString("; ")
		}
		sb.WriteString(it.query)
		args = append(args, it.args...)
	}

	raw, err := q.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		for _, it := range items {
			it.done <- batchResult{err: err}
		}
		return
	}
	defer raw.Close()

	for i, it := range items {
		if i > 0 && !raw.NextResultSet() {
			it.done <- batchResult{err: raw.Err()}
			continue
		}
		rows, err := materialize(raw)
		it.done <- batchResult{rows: rows, err: err}
	}
}

func materialize(rows *sql.Rows) ([]map[string]any, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out []map[string]any
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(map[string]any, len(cols))
		for i, c := range cols {
			row[c] = vals[i]
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
