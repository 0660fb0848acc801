package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/renaissance/internal/domain"
	"github.com/phrazzld/renaissance/internal/platform/logger"
	"github.com/phrazzld/renaissance/internal/redact"
	"github.com/phrazzld/renaissance/internal/store"
)

// PostgresAttemptStore implements the store.AttemptStore interface
// using a PostgreSQL database as the storage backend.
type PostgresAttemptStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresAttemptStore creates a new PostgreSQL implementation of the AttemptStore interface.
func NewPostgresAttemptStore(db store.DBTX, logger *slog.Logger) *PostgresAttemptStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresAttemptStore{
		db:     db,
		logger: logger.With(slog.String("component", "attempt_store")),
	}
}

var _ store.AttemptStore = (*PostgresAttemptStore)(nil)

// WithTx implements store.AttemptStore.WithTx.
func (s *PostgresAttemptStore) WithTx(tx *sql.Tx) store.AttemptStore {
	return &PostgresAttemptStore{db: tx, logger: s.logger}
}

const attemptColumns = `id, session_id, phrase_ordinal, attempt_ordinal, recalled_text,
	expected_text, is_correct, differences, response_time_ms, created_at`

// Create implements store.AttemptStore.Create.
func (s *PostgresAttemptStore) Create(ctx context.Context, attempt *domain.PhraseAttempt) error {
	log := logger.FromContextOrDefault(ctx, s.logger).With(
		slog.String("session_id", attempt.SessionID.String()),
		slog.Int("phrase_ordinal", attempt.PhraseOrdinal),
		slog.Int("attempt_ordinal", attempt.AttemptOrdinal))

	if err := attempt.Validate(); err != nil {
		log.Warn("attempt validation failed during create", redact.ErrorAttr(err))
		return fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	}

	diffs := attempt.Differences
	if diffs == nil {
		diffs = []domain.Difference{}
	}
	encoded, err := json.Marshal(diffs)
	if err != nil {
		return fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	}

	// A duplicate key returns no row and leaves the enclosing transaction usable.
	var id uuid.UUID
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO attempts (`+attemptColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT ON CONSTRAINT attempts_idempotency_key DO NOTHING
		RETURNING id
	`,
		attempt.ID, attempt.SessionID, attempt.PhraseOrdinal, attempt.AttemptOrdinal,
		attempt.RecalledText, attempt.ExpectedText, attempt.IsCorrect, encoded,
		attempt.ResponseTimeMs, attempt.CreatedAt,
	).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("attempt already recorded")
			return store.ErrAttemptExists
		}
		if IsUniqueViolation(err) {
			log.Warn("attempt id collision")
			return MapUniqueViolation(err, store.ErrAttemptExists)
		}
		log.Error("failed to create attempt", redact.ErrorAttr(err))
		return MapError(err)
	}

	log.Debug("attempt recorded", slog.Bool("is_correct", attempt.IsCorrect))
	return nil
}

// Get implements store.AttemptStore.Get.
func (s *PostgresAttemptStore) Get(ctx context.Context, key domain.AttemptKey) (*domain.PhraseAttempt, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+attemptColumns+`
		FROM attempts
		WHERE session_id = $1 AND phrase_ordinal = $2 AND attempt_ordinal = $3
	`, key.SessionID, key.PhraseOrdinal, key.AttemptOrdinal)

	attempt, err := scanAttempt(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrAttemptNotFound
		}
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to get attempt",
			slog.String("session_id", key.SessionID.String()),
			redact.ErrorAttr(err))
		return nil, MapError(err)
	}
	return attempt, nil
}

// ListBySession implements store.AttemptStore.ListBySession.
func (s *PostgresAttemptStore) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]*domain.PhraseAttempt, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+attemptColumns+`
		FROM attempts
		WHERE session_id = $1
		ORDER BY attempt_ordinal
	`, sessionID)
	if err != nil {
		log.Error("failed to list attempts",
			slog.String("session_id", sessionID.String()),
			redact.ErrorAttr(err))
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var out []*domain.PhraseAttempt
	for rows.Next() {
		attempt, err := scanAttempt(rows)
		if err != nil {
			return nil, MapError(err)
		}
		out = append(out, attempt)
	}
	return out, MapError(rows.Err())
}

// Tally implements store.AttemptStore.Tally.
func (s *PostgresAttemptStore) Tally(ctx context.Context, sessionID uuid.UUID) (store.Tally, error) {
	var t store.Tally
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE is_correct), COALESCE(MAX(attempt_ordinal), -1)
		FROM attempts
		WHERE session_id = $1
	`, sessionID).Scan(&t.Total, &t.Correct, &t.LastOrdinal)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to tally attempts",
			slog.String("session_id", sessionID.String()),
			redact.ErrorAttr(err))
		return store.Tally{}, MapError(err)
	}
	return t, nil
}

func scanAttempt(row rowScanner) (*domain.PhraseAttempt, error) {
	var (
		a     domain.PhraseAttempt
		diffs []byte
	)
	if err := row.Scan(
		&a.ID, &a.SessionID, &a.PhraseOrdinal, &a.AttemptOrdinal, &a.RecalledText,
		&a.ExpectedText, &a.IsCorrect, &diffs, &a.ResponseTimeMs, &a.CreatedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(diffs, &a.Differences); err != nil {
		return nil, store.InvalidEntity("attempt", err)
	}
	if err := a.Validate(); err != nil {
		return nil, store.InvalidEntity("attempt", err)
	}
	return &a, nil
}
