package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/phrazzld/renaissance/internal/domain"
)

// SessionFilter narrows a session query. Zero fields match everything.
type SessionFilter struct {
	UserID uuid.UUID
	AxeID  string
	Stage  domain.Stage
	// Completed restricts the result to sealed sessions when true.
	Completed bool
}

// SessionStore defines the interface for game session persistence.
type SessionStore interface {
	// Create saves a new session.
	// Returns ErrActiveSessionExists if an active session already exists for
	// the same (user, axe, stage).
	Create(ctx context.Context, session *domain.GameSession) error

	// Get retrieves a session by ID.
	// Returns ErrSessionNotFound if it does not exist.
	Get(ctx context.Context, id uuid.UUID) (*domain.GameSession, error)

	// GetForUpdate retrieves a session with a row-level lock using SELECT FOR UPDATE.
	// This should be used within a transaction when the session will be updated.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.GameSession, error)

	// FindActive returns the active session for (user, axe, stage).
	// Returns ErrSessionNotFound if there is none.
	FindActive(ctx context.Context, userID uuid.UUID, axeID string, stage domain.Stage) (*domain.GameSession, error)

	// List returns sessions matching filter ordered by StartedAt.
	List(ctx context.Context, filter SessionFilter) ([]*domain.GameSession, error)

	// Update persists the mutable fields of a session: counters, index,
	// flags, timestamps and epoch.
	// Returns ErrSessionNotFound if it does not exist.
	Update(ctx context.Context, session *domain.GameSession) error

	// WithTx returns a new SessionStore instance that uses the provided transaction.
	WithTx(tx *sql.Tx) SessionStore
}
