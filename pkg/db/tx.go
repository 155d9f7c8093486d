package db

import (
	"context"
	"database/sql"
	"fmt"
)

// TxRunner wraps a *sql.DB with begin/commit/rollback bookkeeping so callers
// only supply the body of the transaction.
type TxRunner struct {
	db *sql.DB
}

func NewTxRunner(conn *sql.DB) *TxRunner {
	return &TxRunner{db: conn}
}

// RunTx runs fn in a transaction with the given options. The transaction is
// committed when fn returns nil and rolled back otherwise; fn's error is
// returned unwrapped so sentinel checks keep working.
func (r *TxRunner) RunTx(ctx context.Context, opts *sql.TxOptions, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
