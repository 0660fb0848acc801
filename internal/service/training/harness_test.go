package training_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/renaissance/internal/domain"
	"github.com/phrazzld/renaissance/internal/events"
	"github.com/phrazzld/renaissance/internal/service/progress"
	"github.com/phrazzld/renaissance/internal/service/training"
	"github.com/phrazzld/renaissance/internal/store"
	"github.com/phrazzld/renaissance/internal/testutils"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

// eventLog records every emitted event type.
type eventLog struct {
	mu     sync.Mutex
	events []*events.Event
}

func (l *eventLog) HandleEvent(_ context.Context, e *events.Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
	return nil
}

func (l *eventLog) Types() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, 0, len(l.events))
	for _, e := range l.events {
		out = append(out, e.Type)
	}
	return out
}

func (l *eventLog) Last() *events.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.events) == 0 {
		return nil
	}
	return l.events[len(l.events)-1]
}

type harness struct {
	mem      *testutils.MemStore
	cache    *progress.Cache
	events   *eventLog
	recorder *training.Recorder
	manager  *training.Manager
	selector *training.Selector
	user     uuid.UUID
	axe      *domain.Axe
}

func silentLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newHarness seeds three axes and selects them for a fresh learner. The
// first axe is the one under test.
func newHarness(t *testing.T) *harness {
	t.Helper()

	mem := testutils.NewMemStore()
	axe := testutils.SeedAxe(t, mem, "calm", true, "je suis calme", "je respire", "tout va bien")
	testutils.SeedAxe(t, mem, "focus", false)
	testutils.SeedAxe(t, mem, "joy", false)
	user := uuid.New()
	testutils.SelectAxes(t, mem, user, "calm", "focus", "joy")

	log := silentLogger()
	emitter := events.NewInMemoryEventEmitter(log)
	recorded := &eventLog{}
	emitter.RegisterHandler(recorded)

	clock := testutils.FixedClock(epoch, time.Second)
	cache := progress.NewCache(16, time.Minute)
	recorder := training.NewRecorder(mem, emitter, clock, log)
	manager := training.NewManager(mem, recorder, training.Config{
		Cache:     cache,
		Now:       clock,
		Retries:   3,
		RetryBase: time.Millisecond,
	}, log)

	return &harness{
		mem:      mem,
		cache:    cache,
		events:   recorded,
		recorder: recorder,
		manager:  manager,
		selector: training.NewSelector(mem, cache, emitter, clock, log),
		user:     user,
		axe:      axe,
	}
}

// answer submits the current phrase, or a wrong recall when correct is false.
func (h *harness) answer(t *testing.T, view *training.SessionView, correct bool) *training.AdvanceResult {
	t.Helper()
	text := view.Phrase
	if !correct {
		text = "rien du tout"
	}
	res, err := h.manager.Advance(context.Background(), h.user, view.Session.ID, training.Submission{
		AttemptOrdinal: view.Session.CurrentIndex,
		Recalled:       text,
		ResponseTime:   1500 * time.Millisecond,
	})
	require.NoError(t, err)
	return res
}

// play opens the stage and answers every phrase, correct or not per pattern.
func (h *harness) play(t *testing.T, stage domain.Stage, pattern ...bool) *training.AdvanceResult {
	t.Helper()
	view, err := h.manager.ResumeOrCreate(context.Background(), h.user, h.axe.ID, stage)
	require.NoError(t, err)
	require.Len(t, pattern, view.Session.PhraseCount())

	var res *training.AdvanceResult
	for _, correct := range pattern {
		res = h.answer(t, view, correct)
		view = res.Session
	}
	return res
}

func (h *harness) sessions(t *testing.T, stage domain.Stage) []*domain.GameSession {
	t.Helper()
	all, err := h.mem.Stores().Sessions.List(context.Background(), store.SessionFilter{UserID: h.user, AxeID: h.axe.ID, Stage: stage})
	require.NoError(t, err)
	return all
}
