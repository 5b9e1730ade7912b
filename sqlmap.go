package sqlmap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Dialect identifies the SQL dialect for positional marker rendering and a
// few dialect-specific parsing behaviors.
type Dialect int

// Executor is the main entry point. It owns the acquire/execute/release
// protocol against a Pool and delegates placeholder binding to a Binder.
// A single Executor is safe for concurrent use.
type Executor struct {
	pool   Pool
	binder *Binder
	log    *slog.Logger
}

// Config defines limits and behavior tweaks for the binder.
type Config struct {
	// MaxParams limits the total number of markers a single statement may
	// carry.
	// If = 0 (or omitted), it uses a sensible per-dialect default.
	// If < 0, it's treated as "unlimited".
	MaxParams int
	// MaxNameLen limits the maximum allowed length of a placeholder name,
	// e.g. "#{thisIsAName}". Longer names cause ErrParamNameTooLong.
	MaxNameLen int
	// Logger receives debug records for every bind and execution.
	// If nil, records are discarded.
	Logger *slog.Logger
}

const (
	Postgres Dialect = iota
	MySQL
	SQLite
	SQLServer
)

var (
	ErrUnsupportedType      = errors.New("sqlmap: unsupported parameter type")
	ErrFieldMissing         = errors.New("sqlmap: no such field")
	ErrArity                = errors.New("sqlmap: parameter count mismatch")
	ErrPlaceholderMalformed = errors.New("sqlmap: malformed #{...} placeholder")
	ErrTooManyParams        = errors.New("sqlmap: too many parameters")
	ErrParamNameTooLong     = errors.New("sqlmap: parameter name too long")
	ErrFieldAmbiguous       = errors.New("sqlmap: ambiguous field name")
	ErrEmptyResult          = fmt.Errorf("sqlmap: empty result: %w", sql.ErrNoRows)
	ErrSkipRow              = errors.New("sqlmap: skip row")
)

// String returns the string representation of the dialect.
func (d Dialect) String() string {
	switch d {
	case Postgres:
		return "postgres"
	case MySQL:
		return "mysql"
	case SQLite:
		return "sqlite"
	case SQLServer:
		return "sqlserver"
	default:
		return "unknown"
	}
}

// New returns an Executor drawing connections from pool. Optionally provide
// a Config; unspecified fields fall back to sensible per-dialect defaults.
func New(pool Pool, dialect Dialect, cfg ...Config) *Executor {
	b := NewBinder(dialect, cfg...)
	return &Executor{
		pool:   pool,
		binder: b,
		log:    b.config.Logger,
	}
}

// Binder returns the binder used by e. Use it to preview the exact SQL and
// params a call would send.
func (e *Executor) Binder() *Binder {
	return e.binder
}

// Exec binds args to the positional markers of query, executes it and
// returns the number of affected rows.
func (e *Executor) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	st, err := e.binder.Positional(query, args...)
	if err != nil {
		return 0, err
	}
	return e.exec(ctx, st)
}

// ExecNamed binds the #{name} placeholders of query from src, executes it and
// returns the number of affected rows.
func (e *Executor) ExecNamed(ctx context.Context, query string, src Fields) (int64, error) {
	st, err := e.binder.Named(query, src)
	if err != nil {
		return 0, err
	}
	return e.exec(ctx, st)
}

// exec runs a bound statement on a freshly acquired connection.
func (e *Executor) exec(ctx context.Context, st Statement) (n int64, err error) {
	start := time.Now()
	err = e.withStmt(ctx, st, func(stmt *sql.Stmt) error {
		res, err := stmt.ExecContext(ctx, st.Args()...)
		if err != nil {
			return newExecutionError("exec", st.SQL, err)
		}
		n, err = res.RowsAffected()
		if err != nil {
			return newExecutionError("rows affected", st.SQL, err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	e.log.DebugContext(ctx, "sqlmap: exec",
		slog.String("sql", st.SQL),
		slog.Int64("rows", n),
		slog.Duration("elapsed", time.Since(start)),
	)
	return n, nil
}

// withStmt acquires a connection, prepares st on it and hands the statement
// to fn. The statement is closed before the connection is released; both
// happen on every exit path.
func (e *Executor) withStmt(ctx context.Context, st Statement, fn func(*sql.Stmt) error) (err error) {
	conn, err := e.pool.Acquire(ctx)
	if err != nil {
		return newExecutionError("acquire", st.SQL, err)
	}
	defer e.pool.Release(conn)

	stmt, err := conn.PrepareContext(ctx, st.SQL)
	if err != nil {
		return newExecutionError("prepare", st.SQL, err)
	}
	defer func() {
		if cerr := stmt.Close(); cerr != nil && err == nil {
			err = newExecutionError("close", st.SQL, cerr)
		}
	}()

	return fn(stmt)
}

// defaultConfig merges user config with per-dialect defaults.
func defaultConfig(dialect Dialect, config ...Config) Config {
	c := Config{}

	if len(config) > 0 {
		c = config[0]
	}

	if c.MaxParams == 0 {
		switch dialect {
		case SQLServer:
			c.MaxParams = 2100
		case SQLite:
			c.MaxParams = 999
		case Postgres, MySQL:
			c.MaxParams = 65535
		}
	}

	if c.MaxNameLen <= 0 {
		c.MaxNameLen = 64
	}

	if c.Logger == nil {
		c.Logger = slog.New(slog.DiscardHandler)
	}

	return c
}
