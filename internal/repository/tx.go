package repository

import (
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
)

// Tx wraps a sqlx transaction with a commit-scoped callback list.
// Lock release and cache invalidation for a stock mutation are registered
// here so they run strictly after the mutation is durable; releasing the
// lock before commit would let a second task observe pre-mutation state
// under a freshly acquired lock.
type Tx struct {
	tx          *sqlx.Tx
	afterCommit []func()
	done        bool
}

// AfterCommit registers fn to run after a successful commit.
// Callbacks run in registration order and never run on rollback.
func (t *Tx) AfterCommit(fn func()) {
	t.afterCommit = append(t.afterCommit, fn)
}

// Commit commits the transaction and then runs the registered callbacks
func (t *Tx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	t.done = true

	for _, fn := range t.afterCommit {
		fn()
	}
	return nil
}

// Rollback aborts the transaction, discarding the callback list.
// It is safe to defer alongside a normal Commit.
func (t *Tx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true

	if err := t.tx.Rollback(); err != nil && err != sql.ErrTxDone {
		log.Error().Err(err).Msg("Failed to rollback transaction")
		return fmt.Errorf("failed to rollback transaction: %w", err)
	}
	return nil
}
