package store

import (
	"context"
	"database/sql"

	"github.com/phrazzld/renaissance/internal/domain"
)

// AxeStore defines the interface for the axe catalog.
// Axes and their phrases are seeded reference data; phrases are written
// together with their axe and never individually.
type AxeStore interface {
	// Upsert creates or replaces an axe and its phrases.
	// Returns validation errors from the domain Axe if data is invalid.
	// Must be run within a transaction since it writes several tables.
	Upsert(ctx context.Context, axe *domain.Axe) error

	// Get retrieves an axe with its phrases in ordinal order.
	// Returns ErrAxeNotFound if the axe does not exist.
	Get(ctx context.Context, id string) (*domain.Axe, error)

	// List returns every axe with its phrases, ordered by ID.
	List(ctx context.Context) ([]*domain.Axe, error)

	// WithTx returns a new AxeStore instance that uses the provided transaction.
	WithTx(tx *sql.Tx) AxeStore
}
