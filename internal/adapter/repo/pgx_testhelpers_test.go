package repo

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type simpleRow struct {
	scan func(dest ...any) error
}

func (r simpleRow) Scan(dest ...any) error {
	if r.scan == nil {
		return pgx.ErrNoRows
	}
	return r.scan(dest...)
}

type testRowsBase struct{}

func (testRowsBase) CommandTag() pgconn.CommandTag { return pgconn.CommandTag{} }

func (testRowsBase) Conn() *pgx.Conn { return nil }

func (testRowsBase) FieldDescriptions() []pgconn.FieldDescription { return nil }

func (testRowsBase) Values() ([]any, error) {
	return nil, fmt.Errorf("values not supported in test rows")
}

func (testRowsBase) RawValues() [][]byte { return nil }

// sliceRows serves a fixed set of rows, each a scan function.
type sliceRows struct {
	testRowsBase
	rows   []func(dest ...any) error
	idx    int
	err    error
	closed bool
}

func (r *sliceRows) Close() { r.closed = true }

func (r *sliceRows) Err() error { return r.err }

func (r *sliceRows) Next() bool {
	if r.idx >= len(r.rows) {
		return false
	}
	r.idx++
	return true
}

func (r *sliceRows) Scan(dest ...any) error {
	return r.rows[r.idx-1](dest...)
}

type execCall struct {
	query string
	args  []any
}

type fakeExecutor struct {
	execs   []execCall
	execErr error
	row     pgx.Row
	rows    *sliceRows
	lastArg []any
}

func (f *fakeExecutor) Exec(_ context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	f.execs = append(f.execs, execCall{query: query, args: args})
	return pgconn.CommandTag{}, f.execErr
}

func (f *fakeExecutor) QueryRow(_ context.Context, _ string, args ...any) pgx.Row {
	f.lastArg = args
	if f.row == nil {
		return simpleRow{}
	}
	return f.row
}

func (f *fakeExecutor) Query(_ context.Context, _ string, args ...any) (pgx.Rows, error) {
	f.lastArg = args
	if f.rows == nil {
		return &sliceRows{}, nil
	}
	return f.rows, nil
}
