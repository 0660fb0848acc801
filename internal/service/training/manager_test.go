package training_test

import (
	"context"
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/google/uuid"
	"github.com/phrazzld/renaissance/internal/domain"
	"github.com/phrazzld/renaissance/internal/events"
	"github.com/phrazzld/renaissance/internal/service/training"
	"github.com/phrazzld/renaissance/internal/store"
	"github.com/phrazzld/renaissance/internal/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewManager_PanicsOnNilDependencies(t *testing.T) {
	t.Parallel()

	mem := testutils.NewMemStore()
	recorder := training.NewRecorder(mem, nil, nil, nil)

	assert.Panics(t, func() { training.NewManager(nil, recorder, training.Config{}, nil) })
	assert.Panics(t, func() { training.NewManager(mem, nil, training.Config{}, nil) })
	assert.NotPanics(t, func() { training.NewManager(mem, recorder, training.Config{}, nil) })
}

func TestResumeOrCreate_OpensShuffledSession(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := context.Background()

	view, err := h.manager.ResumeOrCreate(ctx, h.user, h.axe.ID, domain.StageDiscovery)
	require.NoError(t, err)

	s := view.Session
	assert.False(t, view.Resumed)
	assert.True(t, s.Active)
	assert.Equal(t, 3, s.PhraseCount())
	assert.True(t, domain.IsPermutation(s.PhraseOrder))
	assert.Zero(t, s.CurrentIndex)
	assert.Equal(t, domain.DefaultFlashPolicy().Discovery, view.FlashDuration)
	assert.Equal(t, h.axe.Phrases[s.PhraseOrder[0]].Content, view.Phrase)
	assert.Equal(t, s.PhraseOrder[0], view.PhraseOrdinal)
	assert.Equal(t, h.axe.Name, view.AxeName)

	again, err := h.manager.ResumeOrCreate(ctx, h.user, h.axe.ID, domain.StageDiscovery)
	require.NoError(t, err)
	assert.True(t, again.Resumed)
	assert.Equal(t, s.ID, again.Session.ID)
	assert.Len(t, h.sessions(t, domain.StageDiscovery), 1)
}

func TestResumeOrCreate_Gating(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		user    uuid.UUID
		axeID   string
		stage   domain.Stage
		wantErr error
	}{
		{"level1 locked", h.user, h.axe.ID, domain.StageLevel1, training.ErrLocked},
		{"level3 locked", h.user, h.axe.ID, domain.StageLevel3, training.ErrLocked},
		{"unknown axe", h.user, "missing", domain.StageDiscovery, training.ErrNotFound},
		{"unselected axe", uuid.New(), h.axe.ID, domain.StageDiscovery, training.ErrNotSelected},
		{"unknown stage", h.user, h.axe.ID, domain.Stage("level9"), training.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.manager.ResumeOrCreate(ctx, tt.user, tt.axeID, tt.stage)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestResumeOrCreate_UsesCustomPhrases(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := context.Background()

	custom := []string{"un", "deux", "trois", "quatre"}
	_, err := h.selector.Replace(ctx, h.user, []training.Choice{
		{AxeID: "calm", Order: 1, CustomName: "Mes phrases", CustomPhrases: custom},
		{AxeID: "focus", Order: 2},
		{AxeID: "joy", Order: 3},
	})
	require.NoError(t, err)

	view, err := h.manager.ResumeOrCreate(ctx, h.user, "calm", domain.StageDiscovery)
	require.NoError(t, err)
	assert.Equal(t, 4, view.Session.PhraseCount())
	assert.Equal(t, "Mes phrases", view.AxeName)
	assert.Contains(t, custom, view.Phrase)
}

// Property 6: discovery with 2 of 3 correct completes at 67% and opens level1.
func TestAdvance_DiscoveryCompletesOnAttempts(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := context.Background()

	res := h.play(t, domain.StageDiscovery, true, false, true)

	assert.True(t, res.Finalized)
	assert.True(t, res.Passed)
	assert.True(t, res.StageCompleted)
	assert.Equal(t, 67, res.Session.Session.Accuracy)
	assert.True(t, res.Session.Session.Completed)
	assert.False(t, res.Session.Session.Active)
	assert.Empty(t, res.Session.Phrase)

	c, err := h.mem.Stores().Completions.Get(ctx, h.user, h.axe.ID, domain.StageDiscovery)
	require.NoError(t, err)
	assert.True(t, c.Completed)

	sel, err := h.mem.Stores().Selections.Get(ctx, h.user, h.axe.ID)
	require.NoError(t, err)
	assert.True(t, sel.Started)
	assert.False(t, sel.Completed)

	unlocks, err := h.manager.Unlocks(ctx, h.user, h.axe.ID)
	require.NoError(t, err)
	assert.True(t, unlocks[domain.StageLevel1])
	assert.False(t, unlocks[domain.StageLevel2])

	assert.Equal(t, []string{events.SessionFinalized, events.StageCompleted}, h.events.Types())
}

// Property 7: level1 fails at 2/3, passes after restart at 3/3, opens level2.
func TestAdvance_EncrageNeedsEveryPhrase(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := context.Background()
	testutils.CompleteStage(t, h.mem, h.user, h.axe.ID, domain.StageDiscovery)

	res := h.play(t, domain.StageLevel1, true, true, false)
	assert.True(t, res.Finalized)
	assert.False(t, res.Passed)
	assert.False(t, res.StageCompleted)

	c, err := h.mem.Stores().Completions.Get(ctx, h.user, h.axe.ID, domain.StageLevel1)
	require.NoError(t, err)
	assert.False(t, c.Completed)

	_, err = h.manager.ResumeOrCreate(ctx, h.user, h.axe.ID, domain.StageLevel2)
	assert.ErrorIs(t, err, training.ErrLocked)

	view, err := h.manager.Restart(ctx, h.user, h.axe.ID, domain.StageLevel1)
	require.NoError(t, err)
	for range 3 {
		res = h.answer(t, view, true)
		view = res.Session
	}
	assert.True(t, res.Passed)
	assert.True(t, res.StageCompleted)
	assert.Equal(t, 100, res.Session.Session.Accuracy)

	unlocks, err := h.manager.Unlocks(ctx, h.user, h.axe.ID)
	require.NoError(t, err)
	assert.True(t, unlocks[domain.StageLevel2])

	_, err = h.manager.ResumeOrCreate(ctx, h.user, h.axe.ID, domain.StageLevel2)
	assert.NoError(t, err)
}

func TestAdvance_Level3CompletesSelection(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := context.Background()
	testutils.CompleteStage(t, h.mem, h.user, h.axe.ID, domain.StageLevel2)

	res := h.play(t, domain.StageLevel3, true, true, true)
	require.True(t, res.Passed)

	sel, err := h.mem.Stores().Selections.Get(ctx, h.user, h.axe.ID)
	require.NoError(t, err)
	assert.True(t, sel.Started)
	assert.True(t, sel.Completed)
	assert.NotNil(t, sel.CompletedAt)
}

// Property 2: CorrectCount <= TotalAttempts <= phraseCount after every step.
func TestAdvance_CountersStayBounded(t *testing.T) {
	t.Parallel()
	rng := rand.New(rand.NewPCG(7, 11))

	for round := range 20 {
		h := newHarness(t)
		stage := domain.StageDiscovery
		if round%2 == 1 {
			testutils.CompleteStage(t, h.mem, h.user, h.axe.ID, domain.StageDiscovery)
			stage = domain.StageLevel1
		}
		view, err := h.manager.ResumeOrCreate(context.Background(), h.user, h.axe.ID, stage)
		require.NoError(t, err)

		for !view.Session.Exhausted() {
			res := h.answer(t, view, rng.IntN(2) == 0)
			s := res.Session.Session
			assert.LessOrEqual(t, s.CorrectCount, s.TotalAttempts)
			assert.LessOrEqual(t, s.TotalAttempts, s.PhraseCount())
			assert.Equal(t, s.TotalAttempts, s.CurrentIndex)
			assert.Equal(t, domain.ComputeAccuracy(s.CorrectCount, s.TotalAttempts), s.Accuracy)
			view = res.Session
		}
	}
}

func TestAdvance_RecordsAttempt(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := context.Background()

	view, err := h.manager.ResumeOrCreate(ctx, h.user, h.axe.ID, domain.StageDiscovery)
	require.NoError(t, err)

	res, err := h.manager.Advance(ctx, h.user, view.Session.ID, training.Submission{
		AttemptOrdinal: 0,
		Recalled:       "  " + view.Phrase + "!",
		ResponseTime:   2345_000_000,
	})
	require.NoError(t, err)
	assert.True(t, res.Result.IsCorrect)
	assert.Empty(t, res.Result.Differences)
	assert.False(t, res.Replayed)
	assert.False(t, res.Finalized)

	attempts, err := h.mem.Stores().Attempts.ListBySession(ctx, view.Session.ID)
	require.NoError(t, err)
	require.Len(t, attempts, 1)
	a := attempts[0]
	assert.Equal(t, view.PhraseOrdinal, a.PhraseOrdinal)
	assert.Equal(t, 0, a.AttemptOrdinal)
	assert.Equal(t, view.Phrase, a.ExpectedText)
	assert.Equal(t, int64(2345), a.ResponseTimeMs)
	assert.True(t, a.IsCorrect)

	assert.Equal(t, 1, res.Session.Session.CurrentIndex)
	assert.Equal(t, res.Session.Session.PhraseOrder[1], res.Session.PhraseOrdinal)
}

func TestAdvance_ReplayIsIdempotent(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := context.Background()

	view, err := h.manager.ResumeOrCreate(ctx, h.user, h.axe.ID, domain.StageDiscovery)
	require.NoError(t, err)
	sub := training.Submission{AttemptOrdinal: 0, Recalled: "quelque chose"}

	first, err := h.manager.Advance(ctx, h.user, view.Session.ID, sub)
	require.NoError(t, err)
	second, err := h.manager.Advance(ctx, h.user, view.Session.ID, sub)
	require.NoError(t, err)

	assert.True(t, second.Replayed)
	assert.Equal(t, first.Attempt.ID, second.Attempt.ID)
	assert.Equal(t, first.Result, second.Result)
	assert.Equal(t, 1, second.Session.Session.TotalAttempts)

	tally, err := h.mem.Stores().Attempts.Tally(ctx, view.Session.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, tally.Total)

	_, err = h.manager.Advance(ctx, h.user, view.Session.ID, training.Submission{AttemptOrdinal: 0, Recalled: "autre chose"})
	assert.ErrorIs(t, err, training.ErrInvalidInput)
}

func TestAdvance_RejectsBadRequests(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := context.Background()

	view, err := h.manager.ResumeOrCreate(ctx, h.user, h.axe.ID, domain.StageDiscovery)
	require.NoError(t, err)
	id := view.Session.ID

	_, err = h.manager.Advance(ctx, h.user, id, training.Submission{AttemptOrdinal: 2, Recalled: "x"})
	assert.ErrorIs(t, err, training.ErrInvalidInput)

	_, err = h.manager.Advance(ctx, h.user, id, training.Submission{AttemptOrdinal: -1, Recalled: "x"})
	assert.ErrorIs(t, err, training.ErrInvalidInput)

	for _, blank := range []string{"", "   \t ", "\n"} {
		_, err = h.manager.Advance(ctx, h.user, id, training.Submission{AttemptOrdinal: 0, Recalled: blank})
		assert.ErrorIs(t, err, training.ErrInvalidInput, "recall %q", blank)
	}
	current, err := h.manager.Session(ctx, h.user, id)
	require.NoError(t, err)
	assert.Zero(t, current.Session.TotalAttempts)
	assert.Zero(t, current.Session.CurrentIndex)

	_, err = h.manager.Advance(ctx, uuid.New(), id, training.Submission{Recalled: "x"})
	assert.ErrorIs(t, err, training.ErrNotFound)

	_, err = h.manager.Advance(ctx, h.user, uuid.New(), training.Submission{Recalled: "x"})
	assert.ErrorIs(t, err, training.ErrNotFound)

	res := h.play(t, domain.StageDiscovery, true, true, true)
	require.True(t, res.Finalized)
	_, err = h.manager.Advance(ctx, h.user, id, training.Submission{AttemptOrdinal: 3, Recalled: "x"})
	assert.ErrorIs(t, err, training.ErrInvalidInput)
}

func TestAdvance_RetriesTransientFailures(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := context.Background()

	view, err := h.manager.ResumeOrCreate(ctx, h.user, h.axe.ID, domain.StageDiscovery)
	require.NoError(t, err)

	h.mem.FailOn(testutils.FaultCommit, errors.New("connection reset"), 1)
	h.mem.FailOn(testutils.FaultAttemptCreate, store.ErrUnavailable, 1)

	res, err := h.manager.Advance(ctx, h.user, view.Session.ID, training.Submission{Recalled: view.Phrase})
	require.NoError(t, err)
	assert.False(t, res.Replayed)
	assert.Equal(t, 1, res.Session.Session.TotalAttempts)

	tally, err := h.mem.Stores().Attempts.Tally(ctx, view.Session.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, tally.Total)
	assert.Equal(t, 3, h.mem.Calls(testutils.FaultAttemptCreate))
}

func TestAdvance_StorageFailureLeavesNoPartialWrite(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := context.Background()

	view, err := h.manager.ResumeOrCreate(ctx, h.user, h.axe.ID, domain.StageDiscovery)
	require.NoError(t, err)

	h.mem.FailOn(testutils.FaultSessionUpdate, store.ErrUnavailable, 0)
	_, err = h.manager.Advance(ctx, h.user, view.Session.ID, training.Submission{Recalled: view.Phrase})
	require.ErrorIs(t, err, training.ErrStorageFailure)
	assert.Equal(t, 4, h.mem.Calls(testutils.FaultSessionUpdate))
	h.mem.ClearFaults()

	tally, err := h.mem.Stores().Attempts.Tally(ctx, view.Session.ID)
	require.NoError(t, err)
	assert.Zero(t, tally.Total)

	again, err := h.manager.Session(ctx, h.user, view.Session.ID)
	require.NoError(t, err)
	assert.Zero(t, again.Session.CurrentIndex)

	// The same ordinal can be retried once the store recovers.
	res, err := h.manager.Advance(ctx, h.user, view.Session.ID, training.Submission{Recalled: view.Phrase})
	require.NoError(t, err)
	assert.True(t, res.Result.IsCorrect)
}

func TestAdvance_FinalizeFailureRollsBackLastAttempt(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := context.Background()

	view, err := h.manager.ResumeOrCreate(ctx, h.user, h.axe.ID, domain.StageDiscovery)
	require.NoError(t, err)
	view = h.answer(t, view, true).Session
	view = h.answer(t, view, true).Session

	h.mem.FailOn(testutils.FaultCompletionUpsert, errors.New("disk full"), 0)
	_, err = h.manager.Advance(ctx, h.user, view.Session.ID, training.Submission{AttemptOrdinal: 2, Recalled: view.Phrase})
	require.ErrorIs(t, err, training.ErrStorageFailure)
	h.mem.ClearFaults()

	current, err := h.manager.Session(ctx, h.user, view.Session.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, current.Session.CurrentIndex)
	assert.True(t, current.Session.Active)

	_, err = h.mem.Stores().Completions.Get(ctx, h.user, h.axe.ID, domain.StageDiscovery)
	assert.ErrorIs(t, err, store.ErrCompletionNotFound)
}

func TestAdvance_InconsistentCountersAreReported(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := context.Background()

	view, err := h.manager.ResumeOrCreate(ctx, h.user, h.axe.ID, domain.StageDiscovery)
	require.NoError(t, err)

	drifted := view.Session
	drifted.CurrentIndex = 1
	drifted.TotalAttempts = 1
	drifted.CorrectCount = 1
	require.NoError(t, h.mem.Stores().Sessions.Update(ctx, drifted))

	_, err = h.manager.Advance(ctx, h.user, drifted.ID, training.Submission{AttemptOrdinal: 1, Recalled: "x"})
	require.ErrorIs(t, err, training.ErrInconsistentState)
	assert.Contains(t, h.events.Types(), events.SessionInconsistent)

	// Replaying a consumed ordinal with no ledger entry is also inconsistent.
	_, err = h.manager.Advance(ctx, h.user, drifted.ID, training.Submission{AttemptOrdinal: 0, Recalled: "x"})
	require.ErrorIs(t, err, training.ErrInconsistentState)

	require.NoError(t, h.recorder.Repair(ctx, drifted.ID))
	repaired, err := h.manager.Session(ctx, h.user, drifted.ID)
	require.NoError(t, err)
	assert.Zero(t, repaired.Session.CurrentIndex)
	assert.Zero(t, repaired.Session.TotalAttempts)

	_, err = h.manager.Advance(ctx, h.user, drifted.ID, training.Submission{AttemptOrdinal: 0, Recalled: repaired.Phrase})
	assert.NoError(t, err)
}

// Property 4: restart adds a session, zeroes counters, keeps old attempts.
func TestRestart_AbandonsAndKeepsHistory(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := context.Background()

	view, err := h.manager.ResumeOrCreate(ctx, h.user, h.axe.ID, domain.StageDiscovery)
	require.NoError(t, err)
	old := view.Session.ID
	h.answer(t, view, true)

	before := len(h.sessions(t, domain.StageDiscovery))
	fresh, err := h.manager.Restart(ctx, h.user, h.axe.ID, domain.StageDiscovery)
	require.NoError(t, err)
	after := h.sessions(t, domain.StageDiscovery)

	assert.Greater(t, len(after), before)
	assert.NotEqual(t, old, fresh.Session.ID)
	assert.Zero(t, fresh.Session.CurrentIndex)
	assert.Zero(t, fresh.Session.TotalAttempts)
	assert.Zero(t, fresh.Session.CorrectCount)
	assert.True(t, fresh.Session.Active)

	abandoned, err := h.mem.Stores().Sessions.Get(ctx, old)
	require.NoError(t, err)
	assert.False(t, abandoned.Active)
	assert.False(t, abandoned.Completed)
	assert.Equal(t, int64(1), abandoned.Epoch)

	attempts, err := h.mem.Stores().Attempts.ListBySession(ctx, old)
	require.NoError(t, err)
	assert.Len(t, attempts, 1)

	_, err = h.manager.Advance(ctx, h.user, old, training.Submission{AttemptOrdinal: 1, Recalled: "x"})
	assert.ErrorIs(t, err, training.ErrInvalidInput)

	resumed, err := h.manager.ResumeOrCreate(ctx, h.user, h.axe.ID, domain.StageDiscovery)
	require.NoError(t, err)
	assert.Equal(t, fresh.Session.ID, resumed.Session.ID)
	assert.Contains(t, h.events.Types(), events.SessionRestarted)
}

func TestRestart_RespectsGate(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	_, err := h.manager.Restart(context.Background(), h.user, h.axe.ID, domain.StageLevel2)
	assert.ErrorIs(t, err, training.ErrLocked)
	assert.Empty(t, h.sessions(t, domain.StageLevel2))
}

func TestSession_ChecksOwnership(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := context.Background()

	view, err := h.manager.ResumeOrCreate(ctx, h.user, h.axe.ID, domain.StageDiscovery)
	require.NoError(t, err)

	got, err := h.manager.Session(ctx, h.user, view.Session.ID)
	require.NoError(t, err)
	assert.Equal(t, view.Phrase, got.Phrase)

	_, err = h.manager.Session(ctx, uuid.New(), view.Session.ID)
	assert.ErrorIs(t, err, training.ErrNotFound)
}

func TestUnlocks_FailsClosed(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	testutils.CompleteStage(t, h.mem, h.user, h.axe.ID, domain.StageDiscovery)
	h.mem.FailOn(testutils.FaultCompletionList, store.ErrUnavailable, 0)

	unlocks, err := h.manager.Unlocks(context.Background(), h.user, h.axe.ID)
	require.ErrorIs(t, err, training.ErrStorageFailure)
	require.Len(t, unlocks, len(domain.Stages))
	for stage, open := range unlocks {
		assert.False(t, open, stage)
	}
	assert.Zero(t, h.cache.Len())
}

func TestUnlocks_UnselectedAxe(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	unlocks, err := h.manager.Unlocks(context.Background(), uuid.New(), h.axe.ID)
	require.NoError(t, err)
	assert.False(t, unlocks[domain.StageDiscovery])

	_, err = h.manager.Unlocks(context.Background(), h.user, "missing")
	assert.ErrorIs(t, err, training.ErrNotFound)
}

func TestUnlocks_CacheInvalidatedByFinalize(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := context.Background()

	unlocks, err := h.manager.Unlocks(ctx, h.user, h.axe.ID)
	require.NoError(t, err)
	require.True(t, unlocks[domain.StageDiscovery])
	require.False(t, unlocks[domain.StageLevel1])

	h.play(t, domain.StageDiscovery, false, false, false)

	// Served from the ledger again, not from the entry cached above.
	h.mem.FailOn(testutils.FaultCompletionList, store.ErrUnavailable, 1)
	_, err = h.manager.Unlocks(ctx, h.user, h.axe.ID)
	require.Error(t, err)

	unlocks, err = h.manager.Unlocks(ctx, h.user, h.axe.ID)
	require.NoError(t, err)
	assert.True(t, unlocks[domain.StageLevel1])
}
