package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Querier abstracts over *sqlx.DB and *sqlx.Tx so store calls that must be
// atomic with others can take an explicit transaction handle.
type Querier interface {
	sqlx.QueryerContext
	sqlx.ExecerContext
}

var (
	_ Querier = (*sqlx.DB)(nil)
	_ Querier = (*sqlx.Tx)(nil)
)

// TxRunner scopes a function to one transaction: rollback on error or panic,
// commit only on full success.
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(q Querier) error) error
}

// Runner is the Postgres-backed TxRunner.
type Runner struct {
	db *sqlx.DB
}

// NewRunner builds a transaction runner over the database handle.
func NewRunner(db *sqlx.DB) *Runner {
	return &Runner{db: db}
}

// WithinTx runs fn inside a transaction. Every statement that must be atomic
// with the others uses the Querier handed to fn.
func (r *Runner) WithinTx(ctx context.Context, fn func(q Querier) error) (err error) {
	var opts *sql.TxOptions
	tx, err := r.db.BeginTxx(ctx, opts)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback() //nolint:errcheck
			panic(p)
		}
	}()

	if err = fn(tx); err != nil {
		tx.Rollback() //nolint:errcheck
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
