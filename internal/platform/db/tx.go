package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type contextKey string

const ConnKey contextKey = "db_conn"

// Queryable is the subset of pgx operations shared by pools, connections and
// transactions. Repositories resolve their connection through it so the same
// code runs inside and outside an explicit transaction.
type Queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// ConnFromContext retrieves a transaction-scoped connection from context, if
// one was placed there by WithTx.
func ConnFromContext(ctx context.Context) Queryable {
	conn, _ := ctx.Value(ConnKey).(Queryable)
	return conn
}

// WithTx runs fn inside a database transaction. The transaction is stored in
// the context passed to fn, so repository calls made with that context all
// share it. The transaction commits when fn returns nil and rolls back
// otherwise.
func WithTx(ctx context.Context, pool *pgxpool.Pool, fn func(ctx context.Context) error) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	txCtx := context.WithValue(ctx, ConnKey, Queryable(tx))
	if err := fn(txCtx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// IsUniqueViolation reports whether err is a PostgreSQL unique constraint
// violation. Booking and schedule conflicts surface through this check, so
// concurrent duplicate writes are rejected by the store rather than only by
// the application-level pre-check.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
