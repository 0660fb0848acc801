package testutils

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/renaissance/internal/domain"
	"github.com/phrazzld/renaissance/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemStore_TransactionRollback(t *testing.T) {
	t.Parallel()

	m := NewMemStore()
	axe := SeedAxe(t, m, "calm", false)
	user := uuid.New()
	ctx := context.Background()

	session, err := domain.NewGameSession(user, axe.ID, domain.StageDiscovery, 3*time.Second, 3, nil)
	require.NoError(t, err)

	boom := errors.New("boom")
	err = m.InTx(ctx, func(ctx context.Context, tx store.Stores) error {
		require.NoError(t, tx.Sessions.Create(ctx, session))
		_, err := tx.Sessions.Get(ctx, session.ID)
		require.NoError(t, err, "writes are visible inside the transaction")
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = m.Stores().Sessions.Get(ctx, session.ID)
	assert.ErrorIs(t, err, store.ErrSessionNotFound)
}

func TestMemStore_CommitFault(t *testing.T) {
	t.Parallel()

	m := NewMemStore()
	SeedAxe(t, m, "calm", false)
	m.FailOn(FaultCommit, store.ErrUnavailable, 1)

	sel := &domain.UserAxeSelection{UserID: uuid.New(), AxeID: "calm", Order: 1}
	err := m.InTx(context.Background(), func(ctx context.Context, tx store.Stores) error {
		return tx.Selections.Upsert(ctx, sel)
	})
	assert.ErrorIs(t, err, store.ErrTransactionFailed)
	assert.ErrorIs(t, err, store.ErrUnavailable)

	_, err = m.Stores().Selections.Get(context.Background(), sel.UserID, "calm")
	assert.ErrorIs(t, err, store.ErrSelectionNotFound)

	// The fault was single-shot.
	require.NoError(t, m.InTx(context.Background(), func(ctx context.Context, tx store.Stores) error {
		return tx.Selections.Upsert(ctx, sel)
	}))
	assert.Equal(t, 2, m.Calls(FaultCommit))
}

func TestMemStore_OneActiveSession(t *testing.T) {
	t.Parallel()

	m := NewMemStore()
	SeedAxe(t, m, "calm", false)
	user := uuid.New()
	ctx := context.Background()

	first, _ := domain.NewGameSession(user, "calm", domain.StageLevel1, time.Second, 3, nil)
	second, _ := domain.NewGameSession(user, "calm", domain.StageLevel1, time.Second, 3, nil)
	require.NoError(t, m.Stores().Sessions.Create(ctx, first))
	assert.ErrorIs(t, m.Stores().Sessions.Create(ctx, second), store.ErrActiveSessionExists)

	otherStage, _ := domain.NewGameSession(user, "calm", domain.StageLevel2, time.Second, 3, nil)
	assert.NoError(t, m.Stores().Sessions.Create(ctx, otherStage))
}

func TestMemStore_ReadsAreCopies(t *testing.T) {
	t.Parallel()

	m := NewMemStore()
	SeedAxe(t, m, "calm", false)
	ctx := context.Background()
	session, _ := domain.NewGameSession(uuid.New(), "calm", domain.StageLevel1, time.Second, 3, nil)
	require.NoError(t, m.Stores().Sessions.Create(ctx, session))

	got, err := m.Stores().Sessions.Get(ctx, session.ID)
	require.NoError(t, err)
	got.PhraseOrder[0], got.PhraseOrder[1] = got.PhraseOrder[1], got.PhraseOrder[0]
	got.CorrectCount = 99

	again, err := m.Stores().Sessions.Get(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, session.PhraseOrder, again.PhraseOrder)
	assert.Zero(t, again.CorrectCount)
}

func TestMemStore_CompletionNeverDowngrades(t *testing.T) {
	t.Parallel()

	m := NewMemStore()
	user := uuid.New()
	ctx := context.Background()
	completions := m.Stores().Completions

	promoted, err := completions.Upsert(ctx, &domain.StageCompletion{UserID: user, AxeID: "a", Stage: domain.StageLevel1})
	require.NoError(t, err)
	assert.False(t, promoted)

	now := time.Now()
	promoted, err = completions.Upsert(ctx, &domain.StageCompletion{
		UserID: user, AxeID: "a", Stage: domain.StageLevel1, Completed: true, CompletedAt: &now,
	})
	require.NoError(t, err)
	assert.True(t, promoted)

	promoted, err = completions.Upsert(ctx, &domain.StageCompletion{UserID: user, AxeID: "a", Stage: domain.StageLevel1})
	require.NoError(t, err)
	assert.False(t, promoted)

	got, err := completions.Get(ctx, user, "a", domain.StageLevel1)
	require.NoError(t, err)
	assert.True(t, got.Completed)
}

func TestMemStore_FailOnRepeats(t *testing.T) {
	t.Parallel()

	m := NewMemStore()
	m.FailOn(FaultAxeList, store.ErrUnavailable, 0)
	for i := 0; i < 3; i++ {
		_, err := m.Stores().Axes.List(context.Background())
		assert.ErrorIs(t, err, store.ErrUnavailable)
	}
	m.ClearFaults()
	_, err := m.Stores().Axes.List(context.Background())
	assert.NoError(t, err)
}
