package postgres

import (
	"database/sql"
	"log/slog"

	"github.com/phrazzld/renaissance/internal/store"
)

// NewStores creates every training store over db.
func NewStores(db *sql.DB, logger *slog.Logger) store.Stores {
	return store.Stores{
		Axes:        NewPostgresAxeStore(db, logger),
		Selections:  NewPostgresSelectionStore(db, logger),
		Sessions:    NewPostgresSessionStore(db, logger),
		Attempts:    NewPostgresAttemptStore(db, logger),
		Completions: NewPostgresCompletionStore(db, logger),
	}
}

// NewUnitOfWork creates a UnitOfWork whose transactions span every store.
func NewUnitOfWork(db *sql.DB, logger *slog.Logger) *store.SQLUnitOfWork {
	return store.NewSQLUnitOfWork(db, NewStores(db, logger))
}
