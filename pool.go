package sqlmap

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
)

// Conn is an exclusive connection handed out by a Pool. *sql.Conn,
// *sqlx.Conn, *sql.DB and *sql.Tx all satisfy it.
type Conn interface {
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

// Pool hands out one exclusive Conn per Acquire. The Executor calls Release
// exactly once for every Conn it acquired, on every exit path. A Pool must
// be safe for concurrent use.
type Pool interface {
	Acquire(ctx context.Context) (Conn, error)
	Release(conn Conn)
}

// PoolConfig tunes the database/sql pool behind a DBPool. Zero values keep
// the database/sql defaults.
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// DBPool is a Pool over a *sqlx.DB. Acquire pins one connection of the
// database/sql pool; Release hands it back.
type DBPool struct {
	db *sqlx.DB
}

var _ Pool = (*DBPool)(nil)

// NewDBPool wraps an open database handle.
func NewDBPool(db *sqlx.DB) *DBPool {
	return &DBPool{db: db}
}

// Open opens driverName/dsn with sqlx, applies cfg and verifies the
// connection with a ping.
func Open(ctx context.Context, driverName, dsn string, cfg PoolConfig) (*DBPool, error) {
	db, err := sqlx.Open(driverName, dsn)
	if err != nil {
		return nil, err
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if cfg.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &DBPool{db: db}, nil
}

// DB returns the underlying handle.
func (p *DBPool) DB() *sqlx.DB {
	return p.db
}

// Acquire blocks until a connection is free or ctx is done.
func (p *DBPool) Acquire(ctx context.Context) (Conn, error) {
	c, err := p.db.Connx(ctx)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Release returns conn to the database/sql pool. Conns not obtained from
// Acquire are ignored.
func (p *DBPool) Release(conn Conn) {
	if c, ok := conn.(*sqlx.Conn); ok {
		_ = c.Close()
	}
}

// Close closes the underlying handle.
func (p *DBPool) Close() error {
	return p.db.Close()
}
