package training

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/renaissance/internal/domain"
	"github.com/phrazzld/renaissance/internal/events"
	"github.com/phrazzld/renaissance/internal/platform/logger"
	"github.com/phrazzld/renaissance/internal/store"
	"github.com/phrazzld/renaissance/internal/task"
)

var _ task.SessionRepairer = (*Recorder)(nil)

// Outcome describes a finalized session.
type Outcome struct {
	// Passed reports whether the session met its stage's completion rule.
	Passed bool
	// StageCompleted reports whether this finalize completed the stage for the
	// first time.
	StageCompleted bool
	// AlreadyFinalized is set when the session had been sealed earlier and
	// nothing was written.
	AlreadyFinalized bool
	Accuracy         int
}

// Recorder owns the attempt ledger writes of a session: appending attempts,
// sealing finished sessions and reconciling counters with the ledger.
type Recorder struct {
	uow    store.UnitOfWork
	events events.EventEmitter
	now    func() time.Time
	logger *slog.Logger
}

// NewRecorder creates a Recorder. A nil emitter drops events and a nil clock
// uses time.Now.
func NewRecorder(
	uow store.UnitOfWork,
	emitter events.EventEmitter,
	now func() time.Time,
	logger *slog.Logger,
) *Recorder {
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
	return &Recorder{
		uow:    uow,
		events: emitter,
		now:    now,
		logger: logger.With(slog.String("component", "attempt_recorder")),
	}
}

// Passed reports whether a session satisfies the completion rule of its
// stage. Encrage stages need every phrase recalled correctly; discovery only
// needs every phrase attempted.
func Passed(session *domain.GameSession) bool {
	if session.Stage.IsEncrage() {
		return session.CorrectCount == session.PhraseCount()
	}
	return session.TotalAttempts == session.PhraseCount()
}

// Record appends attempt to the ledger and folds it into the session
// counters. An attempt already recorded under the same key with the same
// outcome is a replay: nothing is written and replayed is true. A different
// outcome under an existing key is rejected.
func (r *Recorder) Record(
	ctx context.Context,
	tx store.Stores,
	session *domain.GameSession,
	attempt *domain.PhraseAttempt,
) (replayed bool, err error) {
	log := logger.FromContextOrDefault(ctx, r.logger)

	if attempt.SessionID != session.ID {
		return false, invalidInput("record", "attempt belongs to another session")
	}
	if !session.Active {
		return false, invalidInput("record", "session is not active")
	}
	if err := attempt.Validate(); err != nil {
		return false, NewServiceError("record", "invalid attempt", ErrInvalidInput, err)
	}

	err = tx.Attempts.Create(ctx, attempt)
	if errors.Is(err, store.ErrAttemptExists) {
		existing, getErr := tx.Attempts.Get(ctx, attempt.Key())
		if getErr != nil {
			return false, translate("record", getErr)
		}
		if !existing.SameOutcome(attempt) {
			return false, invalidInput("record", "a different attempt was already recorded at this ordinal")
		}
		log.Debug("attempt replayed",
			slog.String("session_id", session.ID.String()),
			slog.Int("attempt_ordinal", attempt.AttemptOrdinal))
		return true, nil
	}
	if err != nil {
		return false, translate("record", err)
	}

	session.Apply(attempt.IsCorrect, attempt.CreatedAt)
	if err := tx.Sessions.Update(ctx, session); err != nil {
		return false, translate("record", err)
	}

	log.Debug("attempt recorded",
		slog.String("session_id", session.ID.String()),
		slog.Int("attempt_ordinal", attempt.AttemptOrdinal),
		slog.Bool("correct", attempt.IsCorrect),
		slog.Int("accuracy", session.Accuracy))
	return false, nil
}

// Finalize seals an exhausted session and writes its stage completion and
// selection flags. It must run inside the transaction that recorded the last
// attempt. Finalizing an already sealed session writes nothing.
func (r *Recorder) Finalize(ctx context.Context, tx store.Stores, session *domain.GameSession) (*Outcome, error) {
	log := logger.FromContextOrDefault(ctx, r.logger)

	if session.Completed {
		return &Outcome{
			Passed:           Passed(session),
			AlreadyFinalized: true,
			Accuracy:         session.Accuracy,
		}, nil
	}
	if !session.Active {
		return nil, invalidInput("finalize", "session was abandoned")
	}
	if !session.Exhausted() {
		return nil, invalidInput("finalize", "session still has phrases to attempt")
	}

	now := r.now()
	passed := Passed(session)
	session.Seal(now)
	if err := tx.Sessions.Update(ctx, session); err != nil {
		return nil, translate("finalize", err)
	}

	completion := &domain.StageCompletion{
		UserID:    session.UserID,
		AxeID:     session.AxeID,
		Stage:     session.Stage,
		Completed: passed,
	}
	if passed {
		completion.CompletedAt = &now
	}
	promoted, err := tx.Completions.Upsert(ctx, completion)
	if err != nil {
		return nil, translate("finalize", err)
	}

	sel, err := tx.Selections.Get(ctx, session.UserID, session.AxeID)
	if err != nil {
		return nil, translate("finalize", err)
	}
	changed := sel.MarkStarted(now)
	if passed && session.Stage == domain.StageLevel3 {
		changed = sel.MarkCompleted(now) || changed
	}
	if changed {
		if err := tx.Selections.Upsert(ctx, sel); err != nil {
			return nil, translate("finalize", err)
		}
	}

	log.Info("session finalized",
		slog.String("session_id", session.ID.String()),
		slog.String("stage", session.Stage.String()),
		slog.Bool("passed", passed),
		slog.Bool("stage_completed", promoted),
		slog.Int("accuracy", session.Accuracy))

	return &Outcome{Passed: passed, StageCompleted: promoted, Accuracy: session.Accuracy}, nil
}

// Verify compares the session counters with the fold of its attempt ledger.
// A mismatch is logged at error level and returned as ErrInconsistentState.
func (r *Recorder) Verify(ctx context.Context, tx store.Stores, session *domain.GameSession) error {
	tally, err := tx.Attempts.Tally(ctx, session.ID)
	if err != nil {
		return translate("verify", err)
	}
	if reason := mismatch(session, tally); reason != "" {
		logger.FromContextOrDefault(ctx, r.logger).Error("session counters disagree with attempt ledger",
			slog.String("session_id", session.ID.String()),
			slog.String("reason", reason),
			slog.Int("total_attempts", session.TotalAttempts),
			slog.Int("ledger_total", tally.Total),
			slog.Int("correct_count", session.CorrectCount),
			slog.Int("ledger_correct", tally.Correct),
			slog.Int("current_index", session.CurrentIndex),
			slog.Int("ledger_last_ordinal", tally.LastOrdinal))
		return NewServiceError("verify", reason, ErrInconsistentState, nil)
	}
	return nil
}

func mismatch(session *domain.GameSession, tally store.Tally) string {
	switch {
	case tally.Total != session.TotalAttempts:
		return fmt.Sprintf("ledger holds %d attempts, session counts %d", tally.Total, session.TotalAttempts)
	case tally.Correct != session.CorrectCount:
		return fmt.Sprintf("ledger holds %d correct attempts, session counts %d", tally.Correct, session.CorrectCount)
	case tally.LastOrdinal+1 != session.CurrentIndex:
		return fmt.Sprintf("ledger ends at ordinal %d, session index is %d", tally.LastOrdinal, session.CurrentIndex)
	}
	return ""
}

// Report publishes a session.inconsistent event so the repair worker can
// reconcile the session.
func (r *Recorder) Report(ctx context.Context, session *domain.GameSession, reason string) {
	r.emit(ctx, events.SessionInconsistent, session, reason)
}

// Repair recomputes a session's counters from its attempt ledger and seals it
// when the ledger shows every phrase attempted. Every call leaves an audit
// record in the log.
func (r *Recorder) Repair(ctx context.Context, sessionID uuid.UUID) error {
	log := logger.FromContextOrDefault(ctx, r.logger).With(slog.String("session_id", sessionID.String()))

	var (
		sealed  *domain.GameSession
		outcome *Outcome
	)
	err := r.uow.InTx(ctx, func(ctx context.Context, tx store.Stores) error {
		session, err := tx.Sessions.GetForUpdate(ctx, sessionID)
		if err != nil {
			return translate("repair", err)
		}
		attempts, err := tx.Attempts.ListBySession(ctx, sessionID)
		if err != nil {
			return translate("repair", err)
		}

		before := *session
		total, correct, next := 0, 0, 0
		for _, a := range attempts {
			total++
			if a.IsCorrect {
				correct++
			}
			next = max(next, a.AttemptOrdinal+1)
		}
		if total > session.PhraseCount() || next > session.PhraseCount() {
			log.Error("attempt ledger exceeds session phrases, manual repair required",
				slog.Int("ledger_total", total),
				slog.Int("phrase_count", session.PhraseCount()))
			return NewServiceError("repair", "ledger exceeds phrase count", ErrInconsistentState, nil)
		}

		if before.TotalAttempts == total && before.CorrectCount == correct && before.CurrentIndex == next &&
			!(session.Active && next == session.PhraseCount()) {
			log.Info("session repair found no drift",
				slog.Int("total_attempts", total),
				slog.Int("correct_count", correct))
			return nil
		}

		session.TotalAttempts = total
		session.CorrectCount = correct
		session.CurrentIndex = next
		session.Accuracy = domain.ComputeAccuracy(correct, total)
		session.LastActivityAt = r.now()
		if err := tx.Sessions.Update(ctx, session); err != nil {
			return translate("repair", err)
		}

		sealed, outcome = nil, nil
		if session.Active && session.Exhausted() {
			if outcome, err = r.Finalize(ctx, tx, session); err != nil {
				return err
			}
			sealed = session
		}

		log.Warn("session repaired from attempt ledger",
			slog.Int("total_attempts_before", before.TotalAttempts),
			slog.Int("total_attempts_after", session.TotalAttempts),
			slog.Int("correct_count_before", before.CorrectCount),
			slog.Int("correct_count_after", session.CorrectCount),
			slog.Int("current_index_before", before.CurrentIndex),
			slog.Int("current_index_after", session.CurrentIndex),
			slog.Bool("sealed", sealed != nil))
		return nil
	})
	if err != nil {
		log.Error("session repair failed", slog.String("error", err.Error()))
		return translate("repair", err)
	}
	if sealed != nil {
		r.Publish(ctx, sealed, outcome)
	}
	return nil
}

// Publish emits the lifecycle events of a committed finalize. Handler
// failures are logged; the finalize itself already committed.
func (r *Recorder) Publish(ctx context.Context, session *domain.GameSession, outcome *Outcome) {
	if outcome == nil || outcome.AlreadyFinalized {
		return
	}
	r.emit(ctx, events.SessionFinalized, session, "")
	if outcome.StageCompleted {
		r.emit(ctx, events.StageCompleted, session, "")
	}
}

func (r *Recorder) emit(ctx context.Context, eventType string, session *domain.GameSession, reason string) {
	log := logger.FromContextOrDefault(ctx, r.logger)
	event, err := events.NewSessionEvent(eventType, session, reason, r.now())
	if err != nil {
		log.Error("failed to build event", slog.String("type", eventType), slog.String("error", err.Error()))
		return
	}
	if err := r.events.EmitEvent(ctx, event); err != nil {
		log.Error("event handler failed",
			slog.String("type", eventType),
			slog.String("session_id", session.ID.String()),
			slog.String("error", err.Error()))
	}
}
