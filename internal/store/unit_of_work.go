package store

import (
	"context"
	"database/sql"
)

// Stores groups every store the training engine reads or writes.
type Stores struct {
	Axes        AxeStore
	Selections  SelectionStore
	Sessions    SessionStore
	Attempts    AttemptStore
	Completions CompletionStore
}

// WithTx binds every store to tx.
func (s Stores) WithTx(tx *sql.Tx) Stores {
	return Stores{
		Axes:        s.Axes.WithTx(tx),
		Selections:  s.Selections.WithTx(tx),
		Sessions:    s.Sessions.WithTx(tx),
		Attempts:    s.Attempts.WithTx(tx),
		Completions: s.Completions.WithTx(tx),
	}
}

// StoresFn is a function that runs with every store bound to one transaction.
type StoresFn func(ctx context.Context, tx Stores) error

// UnitOfWork hands out stores and runs groups of writes atomically.
type UnitOfWork interface {
	// Stores returns stores that run outside any transaction.
	Stores() Stores

	// InTx runs fn with all stores bound to a single transaction. The
	// transaction commits when fn returns nil and rolls back otherwise.
	InTx(ctx context.Context, fn StoresFn) error
}

// SQLUnitOfWork implements UnitOfWork on a database/sql connection pool.
type SQLUnitOfWork struct {
	db     *sql.DB
	stores Stores
}

var _ UnitOfWork = (*SQLUnitOfWork)(nil)

// NewSQLUnitOfWork creates a UnitOfWork. stores must be bound to db.
func NewSQLUnitOfWork(db *sql.DB, stores Stores) *SQLUnitOfWork {
	if db == nil {
		panic("db cannot be nil")
	}
	return &SQLUnitOfWork{db: db, stores: stores}
}

// Stores implements UnitOfWork.
func (u *SQLUnitOfWork) Stores() Stores {
	return u.stores
}

// InTx implements UnitOfWork.
func (u *SQLUnitOfWork) InTx(ctx context.Context, fn StoresFn) error {
	return RunInTransaction(ctx, u.db, func(ctx context.Context, tx *sql.Tx) error {
		return fn(ctx, u.stores.WithTx(tx))
	})
}
