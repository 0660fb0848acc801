package training

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/renaissance/internal/domain"
	"github.com/phrazzld/renaissance/internal/domain/progression"
	"github.com/phrazzld/renaissance/internal/domain/recall"
	"github.com/phrazzld/renaissance/internal/events"
	"github.com/phrazzld/renaissance/internal/platform/logger"
	"github.com/phrazzld/renaissance/internal/service/progress"
	"github.com/phrazzld/renaissance/internal/store"
	"github.com/sethvargo/go-retry"
)

// DefaultRetryBase is the first backoff delay of retried store operations.
const DefaultRetryBase = 50 * time.Millisecond

// SessionView is what a client needs to drive a session: its state and the
// phrase to flash next.
type SessionView struct {
	Session *domain.GameSession `json:"session"`
	AxeName string              `json:"axe_name"`
	// Phrase is the text to flash next; empty once the session is exhausted.
	Phrase        string        `json:"phrase,omitempty"`
	PhraseOrdinal int           `json:"phrase_ordinal"`
	FlashDuration time.Duration `json:"flash_duration"`
	// Resumed is true when an existing active session was returned.
	Resumed bool `json:"resumed"`
}

// Submission is one scored recall sent by a client. AttemptOrdinal must be
// the session's current index; resubmitting an already recorded ordinal with
// the same text is a replay.
type Submission struct {
	AttemptOrdinal int           `json:"attempt_ordinal" validate:"gte=0"`
	Recalled       string        `json:"recalled" validate:"required"`
	ResponseTime   time.Duration `json:"response_time" validate:"gte=0"`
}

// AdvanceResult is the outcome of Advance.
type AdvanceResult struct {
	Attempt *domain.PhraseAttempt `json:"attempt"`
	Result  recall.Result         `json:"result"`
	Session *SessionView          `json:"session"`
	// Replayed is true when the submission had already been recorded.
	Replayed bool `json:"replayed"`
	// Finalized is true when this attempt sealed the session.
	Finalized      bool `json:"finalized"`
	Passed         bool `json:"passed"`
	StageCompleted bool `json:"stage_completed"`
}

// Config holds the collaborators and tunables of a Manager. Zero fields take
// defaults, except Retries where zero disables retrying. Lifecycle events are
// published through the Recorder's emitter.
type Config struct {
	Policy    domain.FlashPolicy
	Evaluator *recall.Evaluator
	Cache     *progress.Cache
	Now       func() time.Time
	// Rand shuffles phrase orders. Nil uses the global source.
	Rand      *rand.Rand
	Retries   uint64
	RetryBase time.Duration
}

// Manager drives the lifecycle of game sessions: opening or resuming them,
// recording attempts and restarting stages.
type Manager struct {
	uow       store.UnitOfWork
	recorder  *Recorder
	policy    domain.FlashPolicy
	evaluator *recall.Evaluator
	cache     *progress.Cache
	now       func() time.Time
	retries   uint64
	retryBase time.Duration
	logger    *slog.Logger

	rngMu sync.Mutex
	rng   *rand.Rand
}

// NewManager creates a Manager.
func NewManager(uow store.UnitOfWork, recorder *Recorder, cfg Config, logger *slog.Logger) *Manager {
	if uow == nil {
		panic("uow cannot be nil")
	}
	if recorder == nil {
		panic("recorder cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Policy == (domain.FlashPolicy{}) {
		cfg.Policy = domain.DefaultFlashPolicy()
	}
	if cfg.Evaluator == nil {
		cfg.Evaluator = recall.NewEvaluator(nil)
	}
	if cfg.Cache == nil {
		cfg.Cache = progress.NewCache(0, 0)
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = DefaultRetryBase
	}

	return &Manager{
		uow:       uow,
		recorder:  recorder,
		policy:    cfg.Policy,
		evaluator: cfg.Evaluator,
		cache:     cfg.Cache,
		now:       cfg.Now,
		rng:       cfg.Rand,
		retries:   cfg.Retries,
		retryBase: cfg.RetryBase,
		logger:    logger.With(slog.String("component", "training_service")),
	}
}

// withRetry runs fn, retrying transient store failures with exponential
// backoff. Every retried operation must be idempotent.
func (m *Manager) withRetry(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	log := logger.FromContextOrDefault(ctx, m.logger)
	attempt := 0
	backoff := retry.WithMaxRetries(m.retries, retry.NewExponential(m.retryBase))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		err := fn(ctx)
		if err != nil && transient(err) {
			log.Warn("transient store failure",
				slog.String("operation", op),
				slog.Int("attempt", attempt),
				slog.String("error", err.Error()))
			return retry.RetryableError(err)
		}
		return err
	})
}

func (m *Manager) shuffleSession(
	user uuid.UUID,
	axeID string,
	stage domain.Stage,
	phraseCount int,
) (*domain.GameSession, error) {
	flash, err := m.policy.For(stage)
	if err != nil {
		return nil, err
	}
	if m.rng != nil {
		m.rngMu.Lock()
		defer m.rngMu.Unlock()
	}
	session, err := domain.NewGameSession(user, axeID, stage, flash, phraseCount, m.rng)
	if err != nil {
		return nil, err
	}
	now := m.now()
	session.StartedAt = now
	session.LastActivityAt = now
	return session, nil
}

// gate loads the selection, axe and completion ledger inside tx and checks
// that stage is open. It always reads the ledger, never the cache.
func (m *Manager) gate(
	ctx context.Context,
	tx store.Stores,
	op string,
	user uuid.UUID,
	axeID string,
	stage domain.Stage,
) (*domain.UserAxeSelection, *domain.Axe, map[domain.Stage]bool, error) {
	if !stage.Valid() {
		return nil, nil, nil, invalidInput(op, "unknown stage")
	}
	axe, err := tx.Axes.Get(ctx, axeID)
	if err != nil {
		return nil, nil, nil, translate(op, err)
	}
	sel, err := tx.Selections.Get(ctx, user, axeID)
	if err != nil {
		return nil, nil, nil, translate(op, err)
	}
	completions, err := tx.Completions.ListByAxe(ctx, user, axeID)
	if err != nil {
		return nil, nil, nil, translate(op, err)
	}
	unlocks := progression.Unlocks(true, completions)
	if !unlocks[stage] {
		return nil, nil, nil, NewServiceError(op, "stage "+stage.String()+" is locked", ErrLocked, nil)
	}
	return sel, axe, unlocks, nil
}

func (m *Manager) view(session *domain.GameSession, sel *domain.UserAxeSelection, axe *domain.Axe, resumed bool) *SessionView {
	v := &SessionView{
		Session:       session,
		AxeName:       sel.DisplayName(axe),
		FlashDuration: session.FlashDuration(),
		PhraseOrdinal: -1,
		Resumed:       resumed,
	}
	if ordinal, err := session.CurrentPhraseOrdinal(); err == nil {
		phrases := sel.PhraseTexts(axe)
		if ordinal < len(phrases) {
			v.Phrase = phrases[ordinal]
			v.PhraseOrdinal = ordinal
		}
	}
	return v
}

// ResumeOrCreate returns the learner's active session for (axe, stage),
// opening a new one with a freshly shuffled phrase order when none exists.
func (m *Manager) ResumeOrCreate(ctx context.Context, user uuid.UUID, axeID string, stage domain.Stage) (*SessionView, error) {
	log := logger.FromContextOrDefault(ctx, m.logger)

	var (
		view    *SessionView
		unlocks map[domain.Stage]bool
	)
	err := m.withRetry(ctx, "resume_or_create", func(ctx context.Context) error {
		return m.uow.InTx(ctx, func(ctx context.Context, tx store.Stores) error {
			sel, axe, u, err := m.gate(ctx, tx, "resume_or_create", user, axeID, stage)
			if err != nil {
				return err
			}
			unlocks = u

			active, err := tx.Sessions.FindActive(ctx, user, axeID, stage)
			switch {
			case err == nil:
				if active.PhraseCount() != len(sel.PhraseTexts(axe)) {
					return NewServiceError("resume_or_create", "phrase set changed under an active session", ErrInconsistentState, nil)
				}
				view = m.view(active, sel, axe, true)
				return nil
			case !errors.Is(err, store.ErrSessionNotFound):
				return translate("resume_or_create", err)
			}

			session, err := m.shuffleSession(user, axeID, stage, len(sel.PhraseTexts(axe)))
			if err != nil {
				return NewServiceError("resume_or_create", "cannot open session", ErrInvalidInput, err)
			}
			if err := tx.Sessions.Create(ctx, session); err != nil {
				return translate("resume_or_create", err)
			}
			view = m.view(session, sel, axe, false)
			return nil
		})
	})
	if err != nil {
		err = translate("resume_or_create", err)
		log.Debug("resume or create failed",
			slog.String("axe_id", axeID),
			slog.String("stage", stage.String()),
			slog.String("error", err.Error()))
		return nil, err
	}

	m.cache.Put(user, axeID, unlocks)
	log.Info("session opened",
		slog.String("session_id", view.Session.ID.String()),
		slog.String("axe_id", axeID),
		slog.String("stage", stage.String()),
		slog.Bool("resumed", view.Resumed))
	return view, nil
}

// Advance records one submission against the session's current phrase and
// seals the session after its last phrase.
func (m *Manager) Advance(ctx context.Context, user, sessionID uuid.UUID, sub Submission) (*AdvanceResult, error) {
	log := logger.FromContextOrDefault(ctx, m.logger).With(slog.String("session_id", sessionID.String()))

	if sub.AttemptOrdinal < 0 || sub.ResponseTime < 0 {
		return nil, invalidInput("advance", "attempt ordinal and response time cannot be negative")
	}
	if strings.TrimSpace(sub.Recalled) == "" {
		return nil, invalidInput("advance", "recall cannot be blank")
	}

	var (
		res          *AdvanceResult
		outcome      *Outcome
		sealed       *domain.GameSession
		inconsistent *domain.GameSession
		reason       string
	)
	err := m.withRetry(ctx, "advance", func(ctx context.Context) error {
		res, outcome, sealed, inconsistent, reason = nil, nil, nil, nil, ""
		return m.uow.InTx(ctx, func(ctx context.Context, tx store.Stores) error {
			session, err := tx.Sessions.GetForUpdate(ctx, sessionID)
			if err != nil {
				return translate("advance", err)
			}
			if session.UserID != user {
				return NewServiceError("advance", "session not found", ErrNotFound, nil)
			}

			sel, err := tx.Selections.Get(ctx, user, session.AxeID)
			if err != nil {
				return translate("advance", err)
			}
			axe, err := tx.Axes.Get(ctx, session.AxeID)
			if err != nil {
				return translate("advance", err)
			}
			phrases := sel.PhraseTexts(axe)
			if len(phrases) != session.PhraseCount() {
				inconsistent, reason = session, "phrase set changed under the session"
				return NewServiceError("advance", reason, ErrInconsistentState, nil)
			}

			if sub.AttemptOrdinal < session.CurrentIndex {
				r, err := m.replay(ctx, tx, session, sub, phrases)
				if errors.Is(err, ErrInconsistentState) {
					inconsistent, reason = session, "session index is ahead of the attempt ledger"
				}
				if err != nil {
					return err
				}
				r.Session = m.view(session, sel, axe, true)
				res = r
				return nil
			}
			if sub.AttemptOrdinal > session.CurrentIndex {
				return invalidInput("advance", "attempt ordinal is ahead of the session")
			}
			if !session.Active {
				return invalidInput("advance", "session is not active")
			}
			if err := m.recorder.Verify(ctx, tx, session); err != nil {
				if errors.Is(err, ErrInconsistentState) {
					inconsistent, reason = session, err.Error()
				}
				return err
			}

			ordinal, err := session.CurrentPhraseOrdinal()
			if err != nil {
				return NewServiceError("advance", "session has no phrase left", ErrInvalidInput, err)
			}
			expected := phrases[ordinal]
			result := m.evaluator.Evaluate(sub.Recalled, expected)
			attempt := &domain.PhraseAttempt{
				ID:             uuid.New(),
				SessionID:      session.ID,
				PhraseOrdinal:  ordinal,
				AttemptOrdinal: session.CurrentIndex,
				RecalledText:   sub.Recalled,
				ExpectedText:   expected,
				IsCorrect:      result.IsCorrect,
				Differences:    result.Differences,
				ResponseTimeMs: sub.ResponseTime.Milliseconds(),
				CreatedAt:      m.now(),
			}

			replayed, err := m.recorder.Record(ctx, tx, session, attempt)
			if err != nil {
				return err
			}
			r := &AdvanceResult{Attempt: attempt, Result: result, Replayed: replayed}
			if session.Exhausted() {
				outcome, err = m.recorder.Finalize(ctx, tx, session)
				if err != nil {
					return err
				}
				r.Finalized = true
				r.Passed = outcome.Passed
				r.StageCompleted = outcome.StageCompleted
				sealed = session
			}
			r.Session = m.view(session, sel, axe, false)
			res = r
			return nil
		})
	})
	if inconsistent != nil {
		m.recorder.Report(ctx, inconsistent, reason)
	}
	if err != nil {
		err = translate("advance", err)
		log.Debug("advance failed", slog.String("error", err.Error()))
		return nil, err
	}

	if sealed != nil {
		m.cache.Invalidate(user, sealed.AxeID)
		m.recorder.Publish(ctx, sealed, outcome)
	}
	return res, nil
}

// replay answers a submission whose ordinal was already recorded. The same
// recall returns the recorded result; a different one is rejected.
func (m *Manager) replay(
	ctx context.Context,
	tx store.Stores,
	session *domain.GameSession,
	sub Submission,
	phrases []string,
) (*AdvanceResult, error) {
	key := domain.AttemptKey{
		SessionID:      session.ID,
		PhraseOrdinal:  session.PhraseOrder[sub.AttemptOrdinal],
		AttemptOrdinal: sub.AttemptOrdinal,
	}
	existing, err := tx.Attempts.Get(ctx, key)
	if errors.Is(err, store.ErrAttemptNotFound) {
		return nil, NewServiceError("advance", "no attempt recorded at a consumed ordinal", ErrInconsistentState, err)
	}
	if err != nil {
		return nil, translate("advance", err)
	}
	if existing.RecalledText != sub.Recalled {
		return nil, invalidInput("advance", "a different attempt was already recorded at this ordinal")
	}
	return &AdvanceResult{
		Attempt:  existing,
		Result:   m.evaluator.Evaluate(existing.RecalledText, phrases[key.PhraseOrdinal]),
		Replayed: true,
		Finalized: session.Completed &&
			sub.AttemptOrdinal == session.PhraseCount()-1,
		Passed: session.Completed && Passed(session),
	}, nil
}

// Restart abandons the active session of (axe, stage), if any, and opens a
// fresh one. Attempts of the abandoned session stay in the ledger.
func (m *Manager) Restart(ctx context.Context, user uuid.UUID, axeID string, stage domain.Stage) (*SessionView, error) {
	log := logger.FromContextOrDefault(ctx, m.logger)

	var (
		view      *SessionView
		abandoned *domain.GameSession
	)
	err := m.withRetry(ctx, "restart", func(ctx context.Context) error {
		view, abandoned = nil, nil
		return m.uow.InTx(ctx, func(ctx context.Context, tx store.Stores) error {
			sel, axe, _, err := m.gate(ctx, tx, "restart", user, axeID, stage)
			if err != nil {
				return err
			}

			active, err := tx.Sessions.FindActive(ctx, user, axeID, stage)
			switch {
			case err == nil:
				active.Abandon(m.now())
				if err := tx.Sessions.Update(ctx, active); err != nil {
					return translate("restart", err)
				}
				abandoned = active
			case !errors.Is(err, store.ErrSessionNotFound):
				return translate("restart", err)
			}

			session, err := m.shuffleSession(user, axeID, stage, len(sel.PhraseTexts(axe)))
			if err != nil {
				return NewServiceError("restart", "cannot open session", ErrInvalidInput, err)
			}
			if err := tx.Sessions.Create(ctx, session); err != nil {
				return translate("restart", err)
			}
			view = m.view(session, sel, axe, false)
			return nil
		})
	})
	if err != nil {
		err = translate("restart", err)
		log.Debug("restart failed", slog.String("axe_id", axeID), slog.String("error", err.Error()))
		return nil, err
	}

	m.cache.Invalidate(user, axeID)
	m.recorder.emit(ctx, events.SessionRestarted, view.Session, "")

	attrs := []any{
		slog.String("session_id", view.Session.ID.String()),
		slog.String("axe_id", axeID),
		slog.String("stage", stage.String()),
	}
	if abandoned != nil {
		attrs = append(attrs, slog.String("abandoned_session_id", abandoned.ID.String()))
	}
	log.Info("session restarted", attrs...)
	return view, nil
}

// Session returns the state of one of the learner's sessions and the phrase
// to flash next.
func (m *Manager) Session(ctx context.Context, user, sessionID uuid.UUID) (*SessionView, error) {
	stores := m.uow.Stores()
	session, err := stores.Sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, translate("session", err)
	}
	if session.UserID != user {
		return nil, NewServiceError("session", "session not found", ErrNotFound, nil)
	}
	sel, err := stores.Selections.Get(ctx, user, session.AxeID)
	if err != nil {
		return nil, translate("session", err)
	}
	axe, err := stores.Axes.Get(ctx, session.AxeID)
	if err != nil {
		return nil, translate("session", err)
	}
	return m.view(session, sel, axe, session.Active), nil
}

// Unlocks reports which stages of an axe the learner may open. Results are
// served from the progress cache when possible. On storage failure every
// stage is reported locked alongside the error.
func (m *Manager) Unlocks(ctx context.Context, user uuid.UUID, axeID string) (map[domain.Stage]bool, error) {
	if cached, ok := m.cache.Get(user, axeID); ok {
		return cached, nil
	}

	stores := m.uow.Stores()
	if _, err := stores.Axes.Get(ctx, axeID); err != nil {
		return lockedMap(), translate("unlocks", err)
	}

	selected := true
	if _, err := stores.Selections.Get(ctx, user, axeID); err != nil {
		if !errors.Is(err, store.ErrSelectionNotFound) {
			return m.failClosed(ctx, axeID, err)
		}
		selected = false
	}
	completions, err := stores.Completions.ListByAxe(ctx, user, axeID)
	if err != nil {
		return m.failClosed(ctx, axeID, err)
	}

	unlocks := progression.Unlocks(selected, completions)
	m.cache.Put(user, axeID, unlocks)
	return unlocks, nil
}

func (m *Manager) failClosed(ctx context.Context, axeID string, err error) (map[domain.Stage]bool, error) {
	logger.FromContextOrDefault(ctx, m.logger).Warn("unlock check failed, reporting every stage locked",
		slog.String("axe_id", axeID),
		slog.String("error", err.Error()))
	return lockedMap(), translate("unlocks", err)
}

func lockedMap() map[domain.Stage]bool {
	out := make(map[domain.Stage]bool, len(domain.Stages))
	for _, s := range domain.Stages {
		out[s] = false
	}
	return out
}
