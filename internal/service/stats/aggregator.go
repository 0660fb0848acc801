// Package stats derives dashboard statistics from the session ledger. Results
// are best-effort: they never gate progression, are cached for a short TTL
// and fall back to the last computed value, flagged stale, when the store
// fails.
package stats

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/renaissance/internal/domain"
	"github.com/phrazzld/renaissance/internal/events"
	"github.com/phrazzld/renaissance/internal/platform/logger"
	"github.com/phrazzld/renaissance/internal/service/training"
	"github.com/phrazzld/renaissance/internal/store"
	"golang.org/x/sync/errgroup"
)

// StageWeights are the shares of overall progress earned by completing each
// stage. They sum to 100.
var StageWeights = map[domain.Stage]int{
	domain.StageDiscovery: 30,
	domain.StageLevel1:    23,
	domain.StageLevel2:    23,
	domain.StageLevel3:    24,
}

// fanOut bounds the concurrent per-axe computations of UserStats.
const fanOut = 4

// AxeStats summarizes one learner's work on one axe.
type AxeStats struct {
	AxeID string `json:"axe_id"`
	// OverallProgress is the sum of StageWeights over completed stages.
	OverallProgress    int                   `json:"overall_progress"`
	PerStageCompletion map[domain.Stage]bool `json:"per_stage_completion"`
	// PerStageAccuracy is the best accuracy of a sealed session per stage.
	PerStageAccuracy map[domain.Stage]int `json:"per_stage_accuracy"`
	TotalAttempts    int                  `json:"total_attempts"`
	CorrectAttempts  int                  `json:"correct_attempts"`
	TimeSpent        time.Duration        `json:"time_spent"`
	// MasteryLevel is the highest completed stage, empty when none is.
	MasteryLevel domain.Stage `json:"mastery_level,omitempty"`
	Stale        bool         `json:"stale"`
}

// UserStats folds AxeStats over a learner's selected axes.
type UserStats struct {
	AxesSelected  int `json:"axes_selected"`
	AxesCompleted int `json:"axes_completed"`
	// AverageAccuracy is weighted by attempts across every session.
	AverageAccuracy int           `json:"average_accuracy"`
	TotalAttempts   int           `json:"total_attempts"`
	TotalTimeSpent  time.Duration `json:"total_time_spent"`
	Axes            []*AxeStats   `json:"axes"`
	Stale           bool          `json:"stale"`
}

// Aggregator computes statistics from the store.
type Aggregator struct {
	stores    store.Stores
	axeCache  *resultCache[*AxeStats]
	userCache *resultCache[*UserStats]
	logger    *slog.Logger
}

var _ events.EventHandler = (*Aggregator)(nil)

// NewAggregator creates an Aggregator whose caches hold at most size entries
// each for ttl.
func NewAggregator(stores store.Stores, size int, ttl time.Duration, logger *slog.Logger) *Aggregator {
	if stores.Sessions == nil || stores.Selections == nil || stores.Completions == nil || stores.Axes == nil {
		panic("stores cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{
		stores:    stores,
		axeCache:  newResultCache[*AxeStats](size, ttl),
		userCache: newResultCache[*UserStats](size, ttl),
		logger:    logger.With(slog.String("component", "stats_aggregator")),
	}
}

// Progress returns the overall progress earned by a set of completions,
// saturating at 100.
func Progress(completions domain.CompletionSet) int {
	total := 0
	for _, s := range domain.Stages {
		if completions.Completed(s) {
			total += StageWeights[s]
		}
	}
	return min(total, 100)
}

// AxeStats returns the learner's statistics for one selected axe.
func (a *Aggregator) AxeStats(ctx context.Context, user uuid.UUID, axeID string) (*AxeStats, error) {
	key := cacheKey{userID: user, axeID: axeID}
	if v, ok := a.axeCache.get(key); ok {
		return v.clone(), nil
	}

	v, err := a.computeAxe(ctx, user, axeID)
	if err != nil {
		return a.fallbackAxe(ctx, key, err)
	}
	a.axeCache.put(key, v)
	return v.clone(), nil
}

func (a *Aggregator) computeAxe(ctx context.Context, user uuid.UUID, axeID string) (*AxeStats, error) {
	if _, err := a.stores.Axes.Get(ctx, axeID); err != nil {
		return nil, err
	}
	if _, err := a.stores.Selections.Get(ctx, user, axeID); err != nil {
		return nil, err
	}
	completions, err := a.stores.Completions.ListByAxe(ctx, user, axeID)
	if err != nil {
		return nil, err
	}
	sessions, err := a.stores.Sessions.List(ctx, store.SessionFilter{UserID: user, AxeID: axeID})
	if err != nil {
		return nil, err
	}
	return fold(axeID, domain.NewCompletionSet(completions), sessions), nil
}

func fold(axeID string, completions domain.CompletionSet, sessions []*domain.GameSession) *AxeStats {
	v := &AxeStats{
		AxeID:              axeID,
		OverallProgress:    Progress(completions),
		PerStageCompletion: make(map[domain.Stage]bool, len(domain.Stages)),
		PerStageAccuracy:   make(map[domain.Stage]int, len(domain.Stages)),
	}
	for _, s := range domain.Stages {
		v.PerStageCompletion[s] = completions.Completed(s)
		v.PerStageAccuracy[s] = 0
	}
	if highest, ok := completions.Highest(); ok {
		v.MasteryLevel = highest
	}
	for _, s := range sessions {
		v.TotalAttempts += s.TotalAttempts
		v.CorrectAttempts += s.CorrectCount
		v.TimeSpent += s.Elapsed()
		if s.Completed && s.Accuracy > v.PerStageAccuracy[s.Stage] {
			v.PerStageAccuracy[s.Stage] = s.Accuracy
		}
	}
	return v
}

func (a *Aggregator) fallbackAxe(ctx context.Context, key cacheKey, err error) (*AxeStats, error) {
	if errors.Is(err, store.ErrNotFound) || errors.Is(err, context.Canceled) {
		return nil, a.translate("axe_stats", err)
	}
	if v, ok := a.axeCache.lastKnown(key); ok {
		logger.FromContextOrDefault(ctx, a.logger).Warn("serving stale axe stats",
			slog.String("axe_id", key.axeID),
			slog.String("error", err.Error()))
		stale := v.clone()
		stale.Stale = true
		return stale, nil
	}
	return nil, a.translate("axe_stats", err)
}

// UserStats returns the learner's statistics across every selected axe.
func (a *Aggregator) UserStats(ctx context.Context, user uuid.UUID) (*UserStats, error) {
	key := cacheKey{userID: user}
	if v, ok := a.userCache.get(key); ok {
		return v.clone(), nil
	}

	v, err := a.computeUser(ctx, user)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		if last, ok := a.userCache.lastKnown(key); ok {
			logger.FromContextOrDefault(ctx, a.logger).Warn("serving stale user stats",
				slog.String("error", err.Error()))
			stale := last.clone()
			stale.Stale = true
			return stale, nil
		}
		return nil, a.translate("user_stats", err)
	}
	if !v.Stale {
		a.userCache.put(key, v)
	}
	return v.clone(), nil
}

func (a *Aggregator) computeUser(ctx context.Context, user uuid.UUID) (*UserStats, error) {
	sels, err := a.stores.Selections.ListByUser(ctx, user)
	if err != nil {
		return nil, err
	}

	perAxe := make([]*AxeStats, len(sels))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fanOut)
	for i, sel := range sels {
		g.Go(func() error {
			v, err := a.AxeStats(gctx, user, sel.AxeID)
			if err != nil {
				return err
			}
			perAxe[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := &UserStats{AxesSelected: len(sels), Axes: perAxe}
	correct := 0
	for _, v := range perAxe {
		if v.PerStageCompletion[domain.StageLevel3] {
			out.AxesCompleted++
		}
		out.TotalAttempts += v.TotalAttempts
		out.TotalTimeSpent += v.TimeSpent
		out.Stale = out.Stale || v.Stale
		correct += v.CorrectAttempts
	}
	out.AverageAccuracy = domain.ComputeAccuracy(correct, out.TotalAttempts)
	return out, nil
}

// Invalidate drops the fresh entries of a learner's axe and user totals.
func (a *Aggregator) Invalidate(user uuid.UUID, axeID string) {
	a.axeCache.invalidate(cacheKey{userID: user, axeID: axeID})
	a.userCache.invalidate(cacheKey{userID: user})
}

// HandleEvent implements events.EventHandler by invalidating the entries a
// session lifecycle or selection event affects.
func (a *Aggregator) HandleEvent(_ context.Context, event *events.Event) error {
	switch event.Type {
	case events.SessionFinalized, events.SessionRestarted, events.StageCompleted:
		p, err := event.SessionPayload()
		if err != nil {
			return err
		}
		a.Invalidate(p.UserID, p.AxeID)
	case events.SelectionReplaced:
		p, err := event.SelectionPayload()
		if err != nil {
			return err
		}
		a.userCache.invalidate(cacheKey{userID: p.UserID})
		for _, axeID := range p.AxeIDs {
			a.axeCache.invalidate(cacheKey{userID: p.UserID, axeID: axeID})
		}
	}
	return nil
}

func (a *Aggregator) translate(op string, err error) error {
	var se *training.ServiceError
	switch {
	case errors.As(err, &se):
		return err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.Is(err, store.ErrSelectionNotFound):
		return training.NewServiceError(op, "axe not selected", training.ErrNotSelected, err)
	case errors.Is(err, store.ErrNotFound):
		return training.NewServiceError(op, "not found", training.ErrNotFound, err)
	case errors.Is(err, store.ErrInvalidEntity):
		return training.NewServiceError(op, "stored data is invalid", training.ErrInconsistentState, err)
	default:
		return training.NewServiceError(op, "store operation failed", training.ErrStorageFailure, err)
	}
}

func (v *AxeStats) clone() *AxeStats {
	c := *v
	c.PerStageCompletion = maps.Clone(v.PerStageCompletion)
	c.PerStageAccuracy = maps.Clone(v.PerStageAccuracy)
	return &c
}

func (v *UserStats) clone() *UserStats {
	c := *v
	c.Axes = make([]*AxeStats, len(v.Axes))
	for i, a := range v.Axes {
		c.Axes[i] = a.clone()
	}
	return &c
}
