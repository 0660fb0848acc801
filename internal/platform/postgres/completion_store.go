package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/renaissance/internal/domain"
	"github.com/phrazzld/renaissance/internal/platform/logger"
	"github.com/phrazzld/renaissance/internal/redact"
	"github.com/phrazzld/renaissance/internal/store"
)

// PostgresCompletionStore implements the store.CompletionStore interface
// using a PostgreSQL database as the storage backend.
type PostgresCompletionStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresCompletionStore creates a new PostgreSQL implementation of the CompletionStore interface.
func NewPostgresCompletionStore(db store.DBTX, logger *slog.Logger) *PostgresCompletionStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresCompletionStore{
		db:     db,
		logger: logger.With(slog.String("component", "completion_store")),
	}
}

var _ store.CompletionStore = (*PostgresCompletionStore)(nil)

// WithTx implements store.CompletionStore.WithTx.
func (s *PostgresCompletionStore) WithTx(tx *sql.Tx) store.CompletionStore {
	return &PostgresCompletionStore{db: tx, logger: s.logger}
}

// Get implements store.CompletionStore.Get.
func (s *PostgresCompletionStore) Get(
	ctx context.Context,
	userID uuid.UUID,
	axeID string,
	stage domain.Stage,
) (*domain.StageCompletion, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT user_id, axe_id, stage, completed, completed_at
		FROM stage_completions
		WHERE user_id = $1 AND axe_id = $2 AND stage = $3
	`, userID, axeID, string(stage))

	c, err := scanCompletion(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrCompletionNotFound
		}
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to get completion",
			slog.String("axe_id", axeID),
			slog.String("stage", stage.String()),
			redact.ErrorAttr(err))
		return nil, MapError(err)
	}
	return c, nil
}

// ListByAxe implements store.CompletionStore.ListByAxe.
func (s *PostgresCompletionStore) ListByAxe(ctx context.Context, userID uuid.UUID, axeID string) ([]domain.StageCompletion, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, axe_id, stage, completed, completed_at
		FROM stage_completions
		WHERE user_id = $1 AND axe_id = $2
	`, userID, axeID)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to list completions",
			slog.String("axe_id", axeID),
			redact.ErrorAttr(err))
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var out []domain.StageCompletion
	for rows.Next() {
		c, err := scanCompletion(rows)
		if err != nil {
			return nil, MapError(err)
		}
		out = append(out, *c)
	}
	return out, MapError(rows.Err())
}

// Upsert implements store.CompletionStore.Upsert.
func (s *PostgresCompletionStore) Upsert(ctx context.Context, c *domain.StageCompletion) (bool, error) {
	log := logger.FromContextOrDefault(ctx, s.logger).With(
		slog.String("axe_id", c.AxeID),
		slog.String("stage", c.Stage.String()))

	if !c.Stage.Valid() || c.UserID == uuid.Nil || c.AxeID == "" {
		return false, fmt.Errorf("%w: incomplete stage completion key", store.ErrInvalidEntity)
	}

	// xmax = 0 distinguishes an insert from an update; "previous" carries the
	// completed flag as it was before this statement.
	var (
		previous bool
		inserted bool
	)
	err := s.db.QueryRowContext(ctx, `
		WITH prior AS (
			SELECT completed FROM stage_completions
			WHERE user_id = $1 AND axe_id = $2 AND stage = $3
		)
		INSERT INTO stage_completions (user_id, axe_id, stage, completed, completed_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, axe_id, stage) DO UPDATE SET
			completed = stage_completions.completed OR EXCLUDED.completed,
			completed_at = CASE
				WHEN stage_completions.completed THEN stage_completions.completed_at
				ELSE EXCLUDED.completed_at
			END
		RETURNING COALESCE((SELECT completed FROM prior), FALSE), (xmax = 0)
	`, c.UserID, c.AxeID, string(c.Stage), c.Completed, c.CompletedAt).Scan(&previous, &inserted)
	if err != nil {
		log.Error("failed to upsert completion", redact.ErrorAttr(err))
		return false, MapError(err)
	}

	promoted := c.Completed && !previous
	if promoted {
		log.Info("stage completed", slog.Bool("inserted", inserted))
	}
	return promoted, nil
}

func scanCompletion(row rowScanner) (*domain.StageCompletion, error) {
	var (
		c     domain.StageCompletion
		stage string
	)
	if err := row.Scan(&c.UserID, &c.AxeID, &stage, &c.Completed, &c.CompletedAt); err != nil {
		return nil, err
	}
	parsed, err := domain.ParseStage(stage)
	if err != nil {
		return nil, store.InvalidEntity("stage_completion", err)
	}
	c.Stage = parsed
	return &c, nil
}
