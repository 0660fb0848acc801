package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/phrazzld/renaissance/internal/domain"
	"github.com/phrazzld/renaissance/internal/platform/logger"
	"github.com/phrazzld/renaissance/internal/redact"
	"github.com/phrazzld/renaissance/internal/store"
)

// PostgresSessionStore implements the store.SessionStore interface
// using a PostgreSQL database as the storage backend.
type PostgresSessionStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresSessionStore creates a new PostgreSQL implementation of the SessionStore interface.
func NewPostgresSessionStore(db store.DBTX, logger *slog.Logger) *PostgresSessionStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresSessionStore{
		db:     db,
		logger: logger.With(slog.String("component", "session_store")),
	}
}

var _ store.SessionStore = (*PostgresSessionStore)(nil)

// WithTx implements store.SessionStore.WithTx.
func (s *PostgresSessionStore) WithTx(tx *sql.Tx) store.SessionStore {
	return &PostgresSessionStore{db: tx, logger: s.logger}
}

const sessionColumns = `id, user_id, axe_id, stage, flash_duration_ms, phrase_order,
	current_index, correct_count, total_attempts, accuracy, active, completed,
	started_at, completed_at, last_activity_at, epoch`

// Create implements store.SessionStore.Create.
func (s *PostgresSessionStore) Create(ctx context.Context, session *domain.GameSession) error {
	log := logger.FromContextOrDefault(ctx, s.logger).With(
		slog.String("session_id", session.ID.String()),
		slog.String("axe_id", session.AxeID),
		slog.String("stage", session.Stage.String()))

	if err := session.Validate(); err != nil {
		log.Warn("session validation failed during create", redact.ErrorAttr(err))
		return fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	}

	order, err := json.Marshal(session.PhraseOrder)
	if err != nil {
		return fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO game_sessions (`+sessionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`,
		session.ID, session.UserID, session.AxeID, string(session.Stage),
		session.FlashDurationMs, order,
		session.CurrentIndex, session.CorrectCount, session.TotalAttempts, session.Accuracy,
		session.Active, session.Completed,
		session.StartedAt, session.CompletedAt, session.LastActivityAt, session.Epoch,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			log.Warn("active session already exists")
			return MapUniqueViolation(err, store.ErrActiveSessionExists)
		}
		log.Error("failed to create session", redact.ErrorAttr(err))
		return MapError(err)
	}

	log.Info("session created", slog.Int("phrase_count", session.PhraseCount()))
	return nil
}

// Get implements store.SessionStore.Get.
func (s *PostgresSessionStore) Get(ctx context.Context, id uuid.UUID) (*domain.GameSession, error) {
	return s.getOne(ctx, `WHERE id = $1`, id)
}

// GetForUpdate implements store.SessionStore.GetForUpdate.
func (s *PostgresSessionStore) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.GameSession, error) {
	return s.getOne(ctx, `WHERE id = $1 FOR UPDATE`, id)
}

// FindActive implements store.SessionStore.FindActive.
func (s *PostgresSessionStore) FindActive(
	ctx context.Context,
	userID uuid.UUID,
	axeID string,
	stage domain.Stage,
) (*domain.GameSession, error) {
	return s.getOne(ctx,
		`WHERE user_id = $1 AND axe_id = $2 AND stage = $3 AND active`,
		userID, axeID, string(stage))
}

// List implements store.SessionStore.List.
func (s *PostgresSessionStore) List(ctx context.Context, filter store.SessionFilter) ([]*domain.GameSession, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if filter.UserID != uuid.Nil {
		add("user_id = $%d", filter.UserID)
	}
	if filter.AxeID != "" {
		add("axe_id = $%d", filter.AxeID)
	}
	if filter.Stage != "" {
		add("stage = $%d", string(filter.Stage))
	}
	if filter.Completed {
		conds = append(conds, "completed")
	}

	query := `SELECT ` + sessionColumns + ` FROM game_sessions`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY started_at, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to list sessions", redact.ErrorAttr(err))
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var out []*domain.GameSession
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			log.Error("failed to decode session row", redact.ErrorAttr(err))
			return nil, MapError(err)
		}
		out = append(out, session)
	}
	return out, MapError(rows.Err())
}

// Update implements store.SessionStore.Update.
func (s *PostgresSessionStore) Update(ctx context.Context, session *domain.GameSession) error {
	log := logger.FromContextOrDefault(ctx, s.logger).With(slog.String("session_id", session.ID.String()))

	if err := session.Validate(); err != nil {
		log.Warn("session validation failed during update", redact.ErrorAttr(err))
		return fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE game_sessions SET
			current_index = $2,
			correct_count = $3,
			total_attempts = $4,
			accuracy = $5,
			active = $6,
			completed = $7,
			completed_at = $8,
			last_activity_at = $9,
			epoch = $10
		WHERE id = $1
	`,
		session.ID,
		session.CurrentIndex, session.CorrectCount, session.TotalAttempts, session.Accuracy,
		session.Active, session.Completed, session.CompletedAt, session.LastActivityAt, session.Epoch,
	)
	if err != nil {
		log.Error("failed to update session", redact.ErrorAttr(err))
		return MapError(err)
	}
	if err := CheckRowsAffected(result, store.ErrSessionNotFound); err != nil {
		log.Debug("session not found for update")
		return err
	}

	log.Debug("session updated",
		slog.Int("current_index", session.CurrentIndex),
		slog.Int("total_attempts", session.TotalAttempts),
		slog.Bool("completed", session.Completed))
	return nil
}

func (s *PostgresSessionStore) getOne(ctx context.Context, where string, args ...any) (*domain.GameSession, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM game_sessions `+where, args...)
	session, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrSessionNotFound
		}
		log.Error("failed to get session", redact.ErrorAttr(err))
		return nil, MapError(err)
	}
	return session, nil
}

func scanSession(row rowScanner) (*domain.GameSession, error) {
	var (
		session domain.GameSession
		stage   string
		order   []byte
	)
	if err := row.Scan(
		&session.ID, &session.UserID, &session.AxeID, &stage, &session.FlashDurationMs, &order,
		&session.CurrentIndex, &session.CorrectCount, &session.TotalAttempts, &session.Accuracy,
		&session.Active, &session.Completed,
		&session.StartedAt, &session.CompletedAt, &session.LastActivityAt, &session.Epoch,
	); err != nil {
		return nil, err
	}

	parsed, err := domain.ParseStage(stage)
	if err != nil {
		return nil, store.InvalidEntity("game_session", err)
	}
	session.Stage = parsed

	if err := json.Unmarshal(order, &session.PhraseOrder); err != nil {
		return nil, store.InvalidEntity("game_session", err)
	}
	if err := session.Validate(); err != nil {
		return nil, store.InvalidEntity("game_session", err)
	}
	return &session, nil
}
