package training

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/renaissance/internal/domain"
	"github.com/phrazzld/renaissance/internal/events"
	"github.com/phrazzld/renaissance/internal/platform/logger"
	"github.com/phrazzld/renaissance/internal/service/progress"
	"github.com/phrazzld/renaissance/internal/store"
)

// Choice is one axe in a learner's selection.
type Choice struct {
	AxeID         string   `json:"axe_id" validate:"required"`
	Order         int      `json:"order" validate:"gte=1"`
	CustomName    string   `json:"custom_name,omitempty"`
	CustomPhrases []string `json:"custom_phrases,omitempty" validate:"omitempty,min=3,max=10,dive,required"`
}

// Selector manages which axes a learner trains on.
type Selector struct {
	uow    store.UnitOfWork
	cache  *progress.Cache
	events events.EventEmitter
	now    func() time.Time
	logger *slog.Logger
}

// NewSelector creates a Selector. cache may be nil and a nil emitter drops
// events.
func NewSelector(
	uow store.UnitOfWork,
	cache *progress.Cache,
	emitter events.EventEmitter,
	now func() time.Time,
	logger *slog.Logger,
) *Selector {
	if uow == nil {
		panic("uow cannot be nil")
	}
	if emitter == nil {
		emitter = events.NopEmitter{}
	}
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Selector{
		uow:    uow,
		cache:  cache,
		events: emitter,
		now:    now,
		logger: logger.With(slog.String("component", "selection_service")),
	}
}

// List returns the learner's selections ordered by rank.
func (s *Selector) List(ctx context.Context, user uuid.UUID) ([]*domain.UserAxeSelection, error) {
	sels, err := s.uow.Stores().Selections.ListByUser(ctx, user)
	if err != nil {
		return nil, translate("list_selections", err)
	}
	return sels, nil
}

// Replace makes choices the learner's complete selection. Flags of axes that
// stay selected are preserved. An axe with any session can neither be dropped
// nor have its phrases changed.
func (s *Selector) Replace(ctx context.Context, user uuid.UUID, choices []Choice) ([]*domain.UserAxeSelection, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)
	if user == uuid.Nil {
		return nil, invalidInput("replace_selection", "user ID cannot be empty")
	}

	var (
		out     []*domain.UserAxeSelection
		touched []string
	)
	err := s.uow.InTx(ctx, func(ctx context.Context, tx store.Stores) error {
		touched = nil
		existing, err := tx.Selections.ListByUser(ctx, user)
		if err != nil {
			return translate("replace_selection", err)
		}
		current := make(map[string]*domain.UserAxeSelection, len(existing))
		for _, sel := range existing {
			current[sel.AxeID] = sel
			touched = append(touched, sel.AxeID)
		}

		now := s.now()
		next := make([]*domain.UserAxeSelection, 0, len(choices))
		for _, c := range choices {
			sel := &domain.UserAxeSelection{
				UserID:        user,
				AxeID:         c.AxeID,
				Order:         c.Order,
				CustomName:    c.CustomName,
				CustomPhrases: c.CustomPhrases,
				CreatedAt:     now,
			}
			if prev, ok := current[c.AxeID]; ok {
				sel.Started, sel.StartedAt = prev.Started, prev.StartedAt
				sel.Completed, sel.CompletedAt = prev.Completed, prev.CompletedAt
				sel.CreatedAt = prev.CreatedAt
				if prev.CustomName != c.CustomName || !slices.Equal(prev.CustomPhrases, c.CustomPhrases) {
					if err := s.requireNoProgress(ctx, tx, user, c.AxeID); err != nil {
						return err
					}
				}
			}

			axe, err := tx.Axes.Get(ctx, c.AxeID)
			if err != nil {
				return translate("replace_selection", err)
			}
			if err := sel.ValidateFor(axe); err != nil {
				return NewServiceError("replace_selection", "invalid choice for axe "+c.AxeID, ErrInvalidInput, err)
			}
			next = append(next, sel)
			if _, ok := current[c.AxeID]; !ok {
				touched = append(touched, c.AxeID)
			}
		}
		if err := domain.ValidateSelectionSet(next); err != nil {
			return NewServiceError("replace_selection", "invalid selection", ErrInvalidInput, err)
		}

		for axeID := range current {
			if slices.ContainsFunc(next, func(sel *domain.UserAxeSelection) bool { return sel.AxeID == axeID }) {
				continue
			}
			if err := s.requireNoProgress(ctx, tx, user, axeID); err != nil {
				return err
			}
			if err := tx.Selections.Delete(ctx, user, axeID); err != nil {
				return translate("replace_selection", err)
			}
		}
		for _, sel := range next {
			if err := tx.Selections.Upsert(ctx, sel); err != nil {
				return translate("replace_selection", err)
			}
		}

		out, err = tx.Selections.ListByUser(ctx, user)
		if err != nil {
			return translate("replace_selection", err)
		}
		return nil
	})
	if err != nil {
		return nil, translate("replace_selection", err)
	}

	if s.cache != nil {
		s.cache.InvalidateUser(user)
	}
	s.emit(ctx, user, touched)
	log.Info("selection replaced", slog.Int("axes", len(out)))
	return out, nil
}

func (s *Selector) requireNoProgress(ctx context.Context, tx store.Stores, user uuid.UUID, axeID string) error {
	sessions, err := tx.Sessions.List(ctx, store.SessionFilter{UserID: user, AxeID: axeID})
	if err != nil {
		return translate("replace_selection", err)
	}
	if len(sessions) > 0 {
		return invalidInput("replace_selection", "axe "+axeID+" already has training progress")
	}
	return nil
}

func (s *Selector) emit(ctx context.Context, user uuid.UUID, axeIDs []string) {
	log := logger.FromContextOrDefault(ctx, s.logger)
	event, err := events.NewSelectionEvent(user, axeIDs, s.now())
	if err != nil {
		log.Error("failed to build event", slog.String("type", events.SelectionReplaced), slog.String("error", err.Error()))
		return
	}
	if err := s.events.EmitEvent(ctx, event); err != nil {
		log.Error("event handler failed",
			slog.String("type", events.SelectionReplaced),
			slog.String("error", err.Error()))
	}
}
