package sqlmap

import (
	"context"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"
)

// TestModule_ProvidesExecutor wires an Executor from a supplied Pool and Dialect.
func TestModule_ProvidesExecutor(t *testing.T) {
	db, mock := newMockDB(t)
	pool := &countingPool{db: db}

	var e *Executor
	app := fxtest.New(t,
		fx.Provide(func() Pool { return pool }),
		fx.Supply(SQLServer, Config{MaxParams: 1}),
		Module,
		fx.Populate(&e),
	)
	app.RequireStart()
	defer app.RequireStop()

	if e == nil {
		t.Fatal("executor not populated")
	}
	if e.Binder().Dialect() != SQLServer {
		t.Fatalf("dialect=%s, want %s", e.Binder().Dialect(), SQLServer)
	}
	if _, err := e.Binder().Positional("SELECT @p1, @p2", 1, 2); err == nil {
		t.Fatal("want ErrTooManyParams from the supplied Config")
	}

	mock.ExpectPrepare("DELETE FROM t WHERE id = @p1").
		ExpectExec().
		WithArgs(7).
		WillReturnResult(sqlmock.NewResult(0, 1))
	n, err := e.Exec(context.Background(), "DELETE FROM t WHERE id = @p1", 7)
	assertNoError(t, err)
	if n != 1 {
		t.Fatalf("rows=%d", n)
	}
	assertNoError(t, mock.ExpectationsWereMet())
	pool.assertBalanced(t, 1)
}

// TestModule_Defaults falls back to Postgres and default limits.
func TestModule_Defaults(t *testing.T) {
	db, _ := newMockDB(t)

	var e *Executor
	app := fxtest.New(t,
		fx.Provide(func() Pool { return &countingPool{db: db} }),
		Module,
		fx.Populate(&e),
	)
	app.RequireStart()
	defer app.RequireStop()

	if e.Binder().Dialect() != Postgres {
		t.Fatalf("dialect=%s, want postgres", e.Binder().Dialect())
	}
	st, err := e.Binder().Named("SELECT #{a}", Map{"a": 1})
	assertNoError(t, err)
	if st.SQL != "SELECT $1" {
		t.Fatalf("sql=%q", st.SQL)
	}
}
