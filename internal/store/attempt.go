package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/phrazzld/renaissance/internal/domain"
)

// Tally is the fold of a session's attempt ledger.
type Tally struct {
	Total   int
	Correct int
	// LastOrdinal is the highest attempt ordinal recorded, or -1.
	LastOrdinal int
}

// AttemptStore defines the interface for the append-only attempt ledger.
type AttemptStore interface {
	// Create appends an attempt.
	// Returns ErrAttemptExists if an attempt with the same key was recorded.
	Create(ctx context.Context, attempt *domain.PhraseAttempt) error

	// Get retrieves an attempt by its idempotency key.
	// Returns ErrAttemptNotFound if none exists.
	Get(ctx context.Context, key domain.AttemptKey) (*domain.PhraseAttempt, error)

	// ListBySession returns a session's attempts ordered by attempt ordinal.
	ListBySession(ctx context.Context, sessionID uuid.UUID) ([]*domain.PhraseAttempt, error)

	// Tally folds a session's attempts into counts.
	Tally(ctx context.Context, sessionID uuid.UUID) (Tally, error)

	// WithTx returns a new AttemptStore instance that uses the provided transaction.
	WithTx(tx *sql.Tx) AttemptStore
}
