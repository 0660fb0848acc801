package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/phrazzld/renaissance/internal/domain"
	"github.com/phrazzld/renaissance/internal/platform/logger"
	"github.com/phrazzld/renaissance/internal/redact"
	"github.com/phrazzld/renaissance/internal/store"
)

// PostgresAxeStore implements the store.AxeStore interface
// using a PostgreSQL database as the storage backend.
type PostgresAxeStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresAxeStore creates a new PostgreSQL implementation of the AxeStore interface.
// If logger is nil, a default logger will be used.
func NewPostgresAxeStore(db store.DBTX, logger *slog.Logger) *PostgresAxeStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresAxeStore{
		db:     db,
		logger: logger.With(slog.String("component", "axe_store")),
	}
}

var _ store.AxeStore = (*PostgresAxeStore)(nil)

// WithTx implements store.AxeStore.WithTx.
func (s *PostgresAxeStore) WithTx(tx *sql.Tx) store.AxeStore {
	return &PostgresAxeStore{db: tx, logger: s.logger}
}

// Upsert implements store.AxeStore.Upsert.
// Phrases beyond the new phrase count are removed.
func (s *PostgresAxeStore) Upsert(ctx context.Context, axe *domain.Axe) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := axe.Validate(); err != nil {
		log.Warn("axe validation failed during upsert",
			slog.String("axe_id", axe.ID),
			redact.ErrorAttr(err))
		return fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO axes (id, name, customizable, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name, customizable = EXCLUDED.customizable
	`, axe.ID, axe.Name, axe.Customizable, axe.CreatedAt)
	if err != nil {
		log.Error("failed to upsert axe",
			slog.String("axe_id", axe.ID),
			redact.ErrorAttr(err))
		return MapError(err)
	}

	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM phrases WHERE axe_id = $1 AND ordinal >= $2`,
		axe.ID, len(axe.Phrases)); err != nil {
		log.Error("failed to trim phrases",
			slog.String("axe_id", axe.ID),
			redact.ErrorAttr(err))
		return MapError(err)
	}

	for _, p := range axe.Phrases {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO phrases (id, axe_id, ordinal, content)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (axe_id, ordinal) DO UPDATE
			SET id = EXCLUDED.id, content = EXCLUDED.content
		`, p.ID, p.AxeID, p.Ordinal, p.Content)
		if err != nil {
			log.Error("failed to upsert phrase",
				slog.String("axe_id", axe.ID),
				slog.Int("ordinal", p.Ordinal),
				redact.ErrorAttr(err))
			return MapError(err)
		}
	}

	log.Info("axe upserted",
		slog.String("axe_id", axe.ID),
		slog.Int("phrase_count", len(axe.Phrases)))
	return nil
}

// Get implements store.AxeStore.Get.
func (s *PostgresAxeStore) Get(ctx context.Context, id string) (*domain.Axe, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	var axe domain.Axe
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, customizable, created_at
		FROM axes
		WHERE id = $1
	`, id).Scan(&axe.ID, &axe.Name, &axe.Customizable, &axe.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("axe not found", slog.String("axe_id", id))
			return nil, store.ErrAxeNotFound
		}
		log.Error("failed to get axe", slog.String("axe_id", id), redact.ErrorAttr(err))
		return nil, MapError(err)
	}

	phrases, err := s.phrases(ctx, `WHERE axe_id = $1`, id)
	if err != nil {
		log.Error("failed to load phrases", slog.String("axe_id", id), redact.ErrorAttr(err))
		return nil, err
	}
	axe.Phrases = phrases[id]

	if err := axe.Validate(); err != nil {
		return nil, store.InvalidEntity("axe", err)
	}
	return &axe, nil
}

// List implements store.AxeStore.List.
func (s *PostgresAxeStore) List(ctx context.Context) ([]*domain.Axe, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, customizable, created_at
		FROM axes
		ORDER BY id
	`)
	if err != nil {
		log.Error("failed to list axes", redact.ErrorAttr(err))
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var axes []*domain.Axe
	for rows.Next() {
		var axe domain.Axe
		if err := rows.Scan(&axe.ID, &axe.Name, &axe.Customizable, &axe.CreatedAt); err != nil {
			return nil, MapError(err)
		}
		axes = append(axes, &axe)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}

	phrases, err := s.phrases(ctx, "")
	if err != nil {
		return nil, err
	}
	for _, axe := range axes {
		axe.Phrases = phrases[axe.ID]
		if err := axe.Validate(); err != nil {
			return nil, store.InvalidEntity("axe", err)
		}
	}
	return axes, nil
}

func (s *PostgresAxeStore) phrases(ctx context.Context, where string, args ...any) (map[string][]domain.Phrase, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, axe_id, ordinal, content
		FROM phrases `+where+`
		ORDER BY axe_id, ordinal
	`, args...)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	out := make(map[string][]domain.Phrase)
	for rows.Next() {
		var p domain.Phrase
		if err := rows.Scan(&p.ID, &p.AxeID, &p.Ordinal, &p.Content); err != nil {
			return nil, MapError(err)
		}
		out[p.AxeID] = append(out[p.AxeID], p)
	}
	return out, MapError(rows.Err())
}
