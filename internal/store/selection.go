package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/phrazzld/renaissance/internal/domain"
)

// SelectionStore defines the interface for a learner's axe selections.
type SelectionStore interface {
	// Get retrieves the selection of one axe by one user.
	// Returns ErrSelectionNotFound if the user has not selected the axe.
	Get(ctx context.Context, userID uuid.UUID, axeID string) (*domain.UserAxeSelection, error)

	// ListByUser returns the user's selections ordered by Order.
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.UserAxeSelection, error)

	// Upsert creates or updates a selection keyed by (UserID, AxeID).
	// Started and Completed never revert to false once set.
	Upsert(ctx context.Context, selection *domain.UserAxeSelection) error

	// Delete removes a selection.
	// Returns ErrSelectionNotFound if it does not exist.
	Delete(ctx context.Context, userID uuid.UUID, axeID string) error

	// WithTx returns a new SelectionStore instance that uses the provided transaction.
	WithTx(tx *sql.Tx) SelectionStore
}
