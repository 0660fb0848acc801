package training_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/phrazzld/renaissance/internal/domain"
	"github.com/phrazzld/renaissance/internal/events"
	"github.com/phrazzld/renaissance/internal/service/training"
	"github.com/phrazzld/renaissance/internal/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectorReplace_Validation(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	testutils.SeedAxe(t, h.mem, "sleep", false)
	ctx := context.Background()

	tests := []struct {
		name    string
		choices []training.Choice
		wantErr error
	}{
		{
			name:    "too few axes",
			choices: []training.Choice{{AxeID: "calm", Order: 1}, {AxeID: "focus", Order: 2}},
			wantErr: training.ErrInvalidInput,
		},
		{
			name: "duplicate order",
			choices: []training.Choice{
				{AxeID: "calm", Order: 1}, {AxeID: "focus", Order: 1}, {AxeID: "joy", Order: 2},
			},
			wantErr: training.ErrInvalidInput,
		},
		{
			name: "custom phrases on fixed axe",
			choices: []training.Choice{
				{AxeID: "calm", Order: 1},
				{AxeID: "focus", Order: 2, CustomName: "Mine", CustomPhrases: []string{"a", "b", "c"}},
				{AxeID: "joy", Order: 3},
			},
			wantErr: training.ErrInvalidInput,
		},
		{
			name: "too few custom phrases",
			choices: []training.Choice{
				{AxeID: "calm", Order: 1, CustomName: "Mine", CustomPhrases: []string{"a", "b"}},
				{AxeID: "focus", Order: 2},
				{AxeID: "joy", Order: 3},
			},
			wantErr: training.ErrInvalidInput,
		},
		{
			name: "unknown axe",
			choices: []training.Choice{
				{AxeID: "calm", Order: 1}, {AxeID: "focus", Order: 2}, {AxeID: "nope", Order: 3},
			},
			wantErr: training.ErrNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.selector.Replace(ctx, h.user, tt.choices)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	sels, err := h.selector.List(ctx, h.user)
	require.NoError(t, err)
	assert.Len(t, sels, 3)
}

func TestSelectorReplace_SwapsAxesWithoutProgress(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	testutils.SeedAxe(t, h.mem, "sleep", false)
	ctx := context.Background()

	sels, err := h.selector.Replace(ctx, h.user, []training.Choice{
		{AxeID: "sleep", Order: 1},
		{AxeID: "calm", Order: 2},
		{AxeID: "focus", Order: 3},
	})
	require.NoError(t, err)
	require.Len(t, sels, 3)
	assert.Equal(t, "sleep", sels[0].AxeID)
	assert.Equal(t, "calm", sels[1].AxeID)

	_, err = h.mem.Stores().Selections.Get(ctx, h.user, "joy")
	assert.Error(t, err)
}

func TestSelectorReplace_KeepsAxesWithProgress(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	testutils.SeedAxe(t, h.mem, "sleep", false)
	ctx := context.Background()

	h.play(t, domain.StageDiscovery, true, true, true)

	_, err := h.selector.Replace(ctx, h.user, []training.Choice{
		{AxeID: "sleep", Order: 1}, {AxeID: "focus", Order: 2}, {AxeID: "joy", Order: 3},
	})
	assert.ErrorIs(t, err, training.ErrInvalidInput)

	_, err = h.selector.Replace(ctx, h.user, []training.Choice{
		{AxeID: "calm", Order: 1, CustomName: "Mine", CustomPhrases: []string{"a", "b", "c"}},
		{AxeID: "focus", Order: 2},
		{AxeID: "joy", Order: 3},
	})
	assert.ErrorIs(t, err, training.ErrInvalidInput)

	// Reordering keeps the flags earned so far.
	sels, err := h.selector.Replace(ctx, h.user, []training.Choice{
		{AxeID: "focus", Order: 1}, {AxeID: "joy", Order: 2}, {AxeID: "calm", Order: 3},
	})
	require.NoError(t, err)
	calm := sels[2]
	assert.Equal(t, "calm", calm.AxeID)
	assert.True(t, calm.Started)
}

func TestSelectorReplace_InvalidatesUnlockCache(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.manager.Unlocks(ctx, h.user, h.axe.ID)
	require.NoError(t, err)
	require.Equal(t, 1, h.cache.Len())

	_, err = h.selector.Replace(ctx, h.user, []training.Choice{
		{AxeID: "calm", Order: 3}, {AxeID: "focus", Order: 1}, {AxeID: "joy", Order: 2},
	})
	require.NoError(t, err)
	assert.Zero(t, h.cache.Len())
}

func TestSelectorReplace_EmitsTouchedAxes(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	testutils.SeedAxe(t, h.mem, "sleep", false)
	ctx := context.Background()

	_, err := h.selector.Replace(ctx, h.user, []training.Choice{
		{AxeID: "sleep", Order: 1}, {AxeID: "calm", Order: 2}, {AxeID: "focus", Order: 3},
	})
	require.NoError(t, err)
	require.Equal(t, []string{events.SelectionReplaced}, h.events.Types())

	p, err := h.events.Last().SelectionPayload()
	require.NoError(t, err)
	assert.Equal(t, h.user, p.UserID)
	assert.ElementsMatch(t, []string{"calm", "focus", "joy", "sleep"}, p.AxeIDs)

	// A rejected replacement emits nothing.
	_, err = h.selector.Replace(ctx, h.user, []training.Choice{{AxeID: "missing", Order: 1}})
	require.Error(t, err)
	assert.Len(t, h.events.Types(), 1)
}

func TestSelectorReplace_RejectsNilUser(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	_, err := h.selector.Replace(context.Background(), uuid.Nil, nil)
	assert.ErrorIs(t, err, training.ErrInvalidInput)
}
