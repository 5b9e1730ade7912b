package sqlmap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"
)

// Row is one result row with every column surfaced as text. Column values
// are never interpreted: exact numerics and binary columns arrive in the
// string form the driver produces for them, and coercion belongs to the
// RowMapper. When a column name repeats, the last occurrence wins on
// lookup by name.
type Row struct {
	cols  []string
	vals  []sql.NullString
	index map[string]int
}

// RowMapper converts a Row into a T. Returning ErrSkipRow drops the row from
// the result without failing the query.
type RowMapper[T any] func(r Row) (T, error)

func newRow(cols []string, vals []sql.NullString) Row {
	index := make(map[string]int, len(cols))
	for i, c := range cols {
		index[c] = i
	}
	return Row{cols: cols, vals: vals, index: index}
}

// Columns returns the column names in result order.
func (r Row) Columns() []string {
	return r.cols
}

// Lookup returns the text of column col. ok is false when the column is
// absent or NULL.
func (r Row) Lookup(col string) (string, bool) {
	i, ok := r.index[col]
	if !ok || !r.vals[i].Valid {
		return "", false
	}
	return r.vals[i].String, true
}

// String returns the text of column col, or "" when absent or NULL.
func (r Row) String(col string) string {
	s, _ := r.Lookup(col)
	return s
}

// IsNull reports whether column col is present and NULL.
func (r Row) IsNull(col string) bool {
	i, ok := r.index[col]
	return ok && !r.vals[i].Valid
}

// Map returns the row as column name → text, leaving out NULL columns.
func (r Row) Map() map[string]string {
	m := make(map[string]string, len(r.cols))
	for i, c := range r.cols {
		if r.vals[i].Valid {
			m[c] = r.vals[i].String
		}
	}
	return m
}

// Int64 parses column col as a base-10 integer.
func (r Row) Int64(col string) (int64, error) {
	s, ok := r.Lookup(col)
	if !ok {
		return 0, fmt.Errorf("sqlmap: column %q is NULL or missing", col)
	}
	return strconv.ParseInt(s, 10, 64)
}

// Float64 parses column col as a floating-point number.
func (r Row) Float64(col string) (float64, error) {
	s, ok := r.Lookup(col)
	if !ok {
		return 0, fmt.Errorf("sqlmap: column %q is NULL or missing", col)
	}
	return strconv.ParseFloat(s, 64)
}

// Bool parses column col with strconv.ParseBool.
func (r Row) Bool(col string) (bool, error) {
	s, ok := r.Lookup(col)
	if !ok {
		return false, fmt.Errorf("sqlmap: column %q is NULL or missing", col)
	}
	return strconv.ParseBool(s)
}

// QueryList binds args to the positional markers of query and maps every
// result row, in order, with m. An empty result yields a nil slice.
func QueryList[T any](ctx context.Context, e *Executor, query string, m RowMapper[T], args ...any) ([]T, error) {
	st, err := e.binder.Positional(query, args...)
	if err != nil {
		return nil, err
	}
	return queryRows(ctx, e, st, m, false)
}

// QueryListNamed is QueryList for #{name} templates bound from src.
func QueryListNamed[T any](ctx context.Context, e *Executor, query string, src Fields, m RowMapper[T]) ([]T, error) {
	st, err := e.binder.Named(query, src)
	if err != nil {
		return nil, err
	}
	return queryRows(ctx, e, st, m, false)
}

// QueryObject binds args to the positional markers of query and maps the
// first result row only; later rows are never read. It returns
// ErrEmptyResult when the query yields no rows. A first row skipped by m
// also counts as no result.
func QueryObject[T any](ctx context.Context, e *Executor, query string, m RowMapper[T], args ...any) (T, error) {
	st, err := e.binder.Positional(query, args...)
	if err != nil {
		var zero T
		return zero, err
	}
	return queryFirst(ctx, e, st, m)
}

// QueryObjectNamed is QueryObject for #{name} templates bound from src.
func QueryObjectNamed[T any](ctx context.Context, e *Executor, query string, src Fields, m RowMapper[T]) (T, error) {
	st, err := e.binder.Named(query, src)
	if err != nil {
		var zero T
		return zero, err
	}
	return queryFirst(ctx, e, st, m)
}

func queryFirst[T any](ctx context.Context, e *Executor, st Statement, m RowMapper[T]) (T, error) {
	out, err := queryRows(ctx, e, st, m, true)
	if err != nil {
		var zero T
		return zero, err
	}
	if len(out) == 0 {
		var zero T
		return zero, ErrEmptyResult
	}
	return out[0], nil
}

// queryRows runs st and feeds rows to m. With first set it stops after the
// first row.
func queryRows[T any](ctx context.Context, e *Executor, st Statement, m RowMapper[T], first bool) (out []T, err error) {
	start := time.Now()
	seen := 0
	err = e.withStmt(ctx, st, func(stmt *sql.Stmt) (err error) {
		rows, err := stmt.QueryContext(ctx, st.Args()...)
		if err != nil {
			return newExecutionError("query", st.SQL, err)
		}
		// Propagate rows.Close() error if nothing else failed.
		defer func() {
			if cerr := rows.Close(); cerr != nil && err == nil {
				err = newExecutionError("close", st.SQL, cerr)
			}
		}()

		cols, err := rows.Columns()
		if err != nil {
			return newExecutionError("columns", st.SQL, err)
		}
		targets := make([]any, len(cols))

		for rows.Next() {
			seen++
			vals := make([]sql.NullString, len(cols))
			for i := range vals {
				targets[i] = &vals[i]
			}
			if err := rows.Scan(targets...); err != nil {
				return newExecutionError("scan", st.SQL, err)
			}

			v, err := m(newRow(cols, vals))
			switch {
			case errors.Is(err, ErrSkipRow):
			case err != nil:
				return fmt.Errorf("sqlmap: map row %d: %w", seen, err)
			default:
				out = append(out, v)
			}
			if first {
				return nil
			}
		}
		if err := rows.Err(); err != nil {
			return newExecutionError("rows", st.SQL, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.log.DebugContext(ctx, "sqlmap: query",
		slog.String("sql", st.SQL),
		slog.Int("rows", seen),
		slog.Int("mapped", len(out)),
		slog.Duration("elapsed", time.Since(start)),
	)
	return out, nil
}
