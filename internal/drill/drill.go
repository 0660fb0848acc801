// Package drill runs a training session for a single in-process learner. A
// Drill binds a flash.Sequencer to the training service: it flashes the
// current phrase, records each scored recall and only starts the next
// countdown once the recall is stored.
package drill

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/renaissance/internal/domain"
	"github.com/phrazzld/renaissance/internal/domain/recall"
	"github.com/phrazzld/renaissance/internal/flash"
	"github.com/phrazzld/renaissance/internal/identity"
	"github.com/phrazzld/renaissance/internal/platform/logger"
	"github.com/phrazzld/renaissance/internal/service/training"
)

// Drill errors
var (
	ErrNoSession      = errors.New("no session in progress")
	ErrPending        = errors.New("previous recall is not recorded yet, retry it first")
	ErrNothingPending = errors.New("no recall is waiting to be recorded")
)

// Trainer is the part of the training service a Drill drives.
type Trainer interface {
	ResumeOrCreate(ctx context.Context, user uuid.UUID, axeID string, stage domain.Stage) (*training.SessionView, error)
	Advance(ctx context.Context, user, sessionID uuid.UUID, sub training.Submission) (*training.AdvanceResult, error)
	Restart(ctx context.Context, user uuid.UUID, axeID string, stage domain.Stage) (*training.SessionView, error)
}

var _ Trainer = (*training.Manager)(nil)

// Config tunes the sequencer of a Drill. Zero values select the flash
// package defaults.
type Config struct {
	Clock          flash.Clock
	Evaluator      *recall.Evaluator
	CountdownTicks int
	TickInterval   time.Duration
	Listener       flash.Listener
}

// Drill is one learner's training loop. Its methods serialize on a mutex, so
// a recall is always stored (or has failed) before the next phrase starts.
type Drill struct {
	mu      sync.Mutex
	trainer Trainer
	ids     identity.Provider
	seq     *flash.Sequencer
	logger  *slog.Logger

	view    *training.SessionView
	pending *training.Submission
}

// New creates a Drill.
func New(trainer Trainer, ids identity.Provider, cfg Config, logger *slog.Logger) *Drill {
	if trainer == nil {
		panic("trainer cannot be nil")
	}
	if ids == nil {
		panic("identity provider cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Drill{
		trainer: trainer,
		ids:     ids,
		seq: flash.NewSequencer(flash.Config{
			Clock:          cfg.Clock,
			Evaluator:      cfg.Evaluator,
			CountdownTicks: cfg.CountdownTicks,
			TickInterval:   cfg.TickInterval,
			Listener:       cfg.Listener,
		}),
		logger: logger.With(slog.String("component", "drill")),
	}
}

// Sequencer exposes the underlying state machine for display.
func (d *Drill) Sequencer() *flash.Sequencer { return d.seq }

// View returns the session as last reported by the training service.
func (d *Drill) View() *training.SessionView {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.view
}

// Start resumes or opens the session of (axe, stage) and begins the
// countdown of its current phrase.
func (d *Drill) Start(ctx context.Context, axeID string, stage domain.Stage) (*training.SessionView, error) {
	return d.open(ctx, axeID, stage, false)
}

// Restart abandons the active session of (axe, stage), opens a new one and
// begins its first phrase.
func (d *Drill) Restart(ctx context.Context, axeID string, stage domain.Stage) (*training.SessionView, error) {
	return d.open(ctx, axeID, stage, true)
}

func (d *Drill) open(ctx context.Context, axeID string, stage domain.Stage, restart bool) (*training.SessionView, error) {
	user, err := d.ids.CurrentUserID(ctx)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.seq.Cancel()
	d.seq.Reset()
	d.pending = nil

	var view *training.SessionView
	if restart {
		view, err = d.trainer.Restart(ctx, user, axeID, stage)
	} else {
		view, err = d.trainer.ResumeOrCreate(ctx, user, axeID, stage)
	}
	if err != nil {
		d.view = nil
		return nil, err
	}
	d.view = view

	if view.Session.Exhausted() {
		return view, nil
	}
	if err := d.seq.BeginPhrase(view.Phrase, view.FlashDuration); err != nil {
		return nil, err
	}
	logger.FromContextOrDefault(ctx, d.logger).Debug("drill started",
		slog.String("session_id", view.Session.ID.String()),
		slog.Int("current_index", view.Session.CurrentIndex),
		slog.Bool("resumed", view.Resumed))
	return view, nil
}

// Submit scores input for the hidden phrase and records it. When recording
// fails the scored recall is kept and Retry stores it under the same ordinal.
func (d *Drill) Submit(ctx context.Context, input string) (*training.AdvanceResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.view == nil {
		return nil, ErrNoSession
	}
	if d.pending != nil {
		return nil, ErrPending
	}

	attempt, err := d.seq.Submit(input)
	if err != nil {
		return nil, err
	}
	d.pending = &training.Submission{
		AttemptOrdinal: d.view.Session.CurrentIndex,
		Recalled:       attempt.Recalled,
		ResponseTime:   attempt.ResponseTime,
	}
	return d.advanceLocked(ctx)
}

// Retry records the recall whose earlier recording failed.
func (d *Drill) Retry(ctx context.Context) (*training.AdvanceResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.pending == nil {
		return nil, ErrNothingPending
	}
	return d.advanceLocked(ctx)
}

// Pending reports whether a scored recall awaits Retry.
func (d *Drill) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending != nil
}

func (d *Drill) advanceLocked(ctx context.Context) (*training.AdvanceResult, error) {
	log := logger.FromContextOrDefault(ctx, d.logger)

	user, err := d.ids.CurrentUserID(ctx)
	if err != nil {
		return nil, err
	}
	res, err := d.trainer.Advance(ctx, user, d.view.Session.ID, *d.pending)
	if err != nil {
		log.Warn("recall not recorded, waiting for retry",
			slog.String("session_id", d.view.Session.ID.String()),
			slog.Int("attempt_ordinal", d.pending.AttemptOrdinal),
			slog.String("error", err.Error()))
		return nil, err
	}

	d.pending = nil
	d.view = res.Session
	if res.Finalized || res.Session.Session.Exhausted() {
		if err := d.seq.Finish(); err != nil {
			return nil, err
		}
		return res, nil
	}
	if err := d.seq.BeginPhrase(res.Session.Phrase, res.Session.FlashDuration); err != nil {
		return nil, err
	}
	return res, nil
}

// Abort stops the phrase in flight without writing anything. Any recall
// waiting for Retry is dropped; the session stays active and a later Start
// resumes it at its current index.
func (d *Drill) Abort() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.seq.Cancel()
	d.seq.Reset()
	d.pending = nil
	d.view = nil
}
