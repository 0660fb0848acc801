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

// PostgresSelectionStore implements the store.SelectionStore interface
// using a PostgreSQL database as the storage backend.
type PostgresSelectionStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresSelectionStore creates a new PostgreSQL implementation of the SelectionStore interface.
func NewPostgresSelectionStore(db store.DBTX, logger *slog.Logger) *PostgresSelectionStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresSelectionStore{
		db:     db,
		logger: logger.With(slog.String("component", "selection_store")),
	}
}

var _ store.SelectionStore = (*PostgresSelectionStore)(nil)

// WithTx implements store.SelectionStore.WithTx.
func (s *PostgresSelectionStore) WithTx(tx *sql.Tx) store.SelectionStore {
	return &PostgresSelectionStore{db: tx, logger: s.logger}
}

const selectionColumns = `user_id, axe_id, sort_order, started, started_at, completed,
	completed_at, custom_name, custom_phrases, created_at`

// Get implements store.SelectionStore.Get.
func (s *PostgresSelectionStore) Get(ctx context.Context, userID uuid.UUID, axeID string) (*domain.UserAxeSelection, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	row := s.db.QueryRowContext(ctx, `
		SELECT `+selectionColumns+`
		FROM axe_selections
		WHERE user_id = $1 AND axe_id = $2
	`, userID, axeID)

	sel, err := scanSelection(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("selection not found",
				slog.String("user_id", userID.String()),
				slog.String("axe_id", axeID))
			return nil, store.ErrSelectionNotFound
		}
		if errors.Is(err, store.ErrInvalidEntity) {
			log.Error("malformed selection row",
				slog.String("user_id", userID.String()),
				slog.String("axe_id", axeID),
				redact.ErrorAttr(err))
			return nil, err
		}
		log.Error("failed to get selection", redact.ErrorAttr(err))
		return nil, MapError(err)
	}
	return sel, nil
}

// ListByUser implements store.SelectionStore.ListByUser.
func (s *PostgresSelectionStore) ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.UserAxeSelection, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+selectionColumns+`
		FROM axe_selections
		WHERE user_id = $1
		ORDER BY sort_order
	`, userID)
	if err != nil {
		log.Error("failed to list selections",
			slog.String("user_id", userID.String()),
			redact.ErrorAttr(err))
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var out []*domain.UserAxeSelection
	for rows.Next() {
		sel, err := scanSelection(rows)
		if err != nil {
			return nil, MapError(err)
		}
		out = append(out, sel)
	}
	return out, MapError(rows.Err())
}

// Upsert implements store.SelectionStore.Upsert.
func (s *PostgresSelectionStore) Upsert(ctx context.Context, sel *domain.UserAxeSelection) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := sel.Validate(); err != nil {
		return fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	}

	var custom []byte
	if sel.IsCustom() {
		var err error
		if custom, err = json.Marshal(sel.CustomPhrases); err != nil {
			return fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
		}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO axe_selections (`+selectionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), $9, $10)
		ON CONFLICT (user_id, axe_id) DO UPDATE SET
			sort_order = EXCLUDED.sort_order,
			started = axe_selections.started OR EXCLUDED.started,
			started_at = COALESCE(axe_selections.started_at, EXCLUDED.started_at),
			completed = axe_selections.completed OR EXCLUDED.completed,
			completed_at = COALESCE(axe_selections.completed_at, EXCLUDED.completed_at),
			custom_name = EXCLUDED.custom_name,
			custom_phrases = EXCLUDED.custom_phrases
	`,
		sel.UserID, sel.AxeID, sel.Order,
		sel.Started, sel.StartedAt, sel.Completed, sel.CompletedAt,
		sel.CustomName, custom, sel.CreatedAt,
	)
	if err != nil {
		log.Error("failed to upsert selection",
			slog.String("user_id", sel.UserID.String()),
			slog.String("axe_id", sel.AxeID),
			redact.ErrorAttr(err))
		return MapError(err)
	}
	return nil
}

// Delete implements store.SelectionStore.Delete.
func (s *PostgresSelectionStore) Delete(ctx context.Context, userID uuid.UUID, axeID string) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	result, err := s.db.ExecContext(ctx,
		`DELETE FROM axe_selections WHERE user_id = $1 AND axe_id = $2`, userID, axeID)
	if err != nil {
		log.Error("failed to delete selection",
			slog.String("user_id", userID.String()),
			slog.String("axe_id", axeID),
			redact.ErrorAttr(err))
		return MapError(err)
	}
	return CheckRowsAffected(result, store.ErrSelectionNotFound)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSelection(row rowScanner) (*domain.UserAxeSelection, error) {
	var (
		sel        domain.UserAxeSelection
		customName sql.NullString
		custom     []byte
	)
	if err := row.Scan(
		&sel.UserID, &sel.AxeID, &sel.Order,
		&sel.Started, &sel.StartedAt, &sel.Completed, &sel.CompletedAt,
		&customName, &custom, &sel.CreatedAt,
	); err != nil {
		return nil, err
	}
	sel.CustomName = customName.String
	if len(custom) > 0 {
		if err := json.Unmarshal(custom, &sel.CustomPhrases); err != nil {
			return nil, store.InvalidEntity("axe_selection", err)
		}
	}
	if err := sel.Validate(); err != nil {
		return nil, store.InvalidEntity("axe_selection", err)
	}
	return &sel, nil
}
