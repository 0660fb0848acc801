package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/phrazzld/renaissance/internal/domain"
)

// CompletionStore defines the interface for the stage completion ledger,
// the only source of truth for stage gating.
type CompletionStore interface {
	// Get retrieves the completion record of one stage.
	// Returns ErrCompletionNotFound if none exists.
	Get(ctx context.Context, userID uuid.UUID, axeID string, stage domain.Stage) (*domain.StageCompletion, error)

	// ListByAxe returns every completion record of a user for an axe.
	ListByAxe(ctx context.Context, userID uuid.UUID, axeID string) ([]domain.StageCompletion, error)

	// Upsert writes a completion record. A stored Completed=true is never
	// overwritten by Completed=false. It reports whether the stage went from
	// not completed to completed.
	Upsert(ctx context.Context, completion *domain.StageCompletion) (bool, error)

	// WithTx returns a new CompletionStore instance that uses the provided transaction.
	WithTx(tx *sql.Tx) CompletionStore
}
