package db

import (
	"context"
	"database/sql"
)

// RunInTx runs fn inside a transaction of its own. The transaction is
// always a fresh one: a caller's ambient transaction, if any, is never
// joined, so session-store failures and caller failures stay isolated.
// Rollback happens on error or panic, commit on nil error.
func (d *DB) RunInTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := d.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		} else if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}

	return tx.Commit()
}
