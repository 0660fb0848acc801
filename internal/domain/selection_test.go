package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectionValidateFor(t *testing.T) {
	t.Parallel()

	fixed, err := NewAxe("fixed", "Fixed", false, []string{"a", "b", "c"})
	require.NoError(t, err)
	open, err := NewAxe("open", "Open", true, []string{"a", "b", "c"})
	require.NoError(t, err)

	userID := uuid.New()
	custom := []string{"un", "deux", "trois"}

	tests := []struct {
		name string
		axe  *Axe
		sel  UserAxeSelection
		want error
	}{
		{"canonical", fixed, UserAxeSelection{UserID: userID, AxeID: "fixed", Order: 1}, nil},
		{"custom on customizable", open, UserAxeSelection{UserID: userID, AxeID: "open", Order: 2, CustomName: "Mine", CustomPhrases: custom}, nil},
		{"custom on fixed", fixed, UserAxeSelection{UserID: userID, AxeID: "fixed", Order: 1, CustomName: "Mine", CustomPhrases: custom}, ErrCustomNotAllowed},
		{"too few custom", open, UserAxeSelection{UserID: userID, AxeID: "open", Order: 1, CustomName: "Mine", CustomPhrases: custom[:2]}, ErrCustomPhraseCount},
		{"custom without name", open, UserAxeSelection{UserID: userID, AxeID: "open", Order: 1, CustomPhrases: custom}, ErrCustomNameEmpty},
		{"blank custom phrase", open, UserAxeSelection{UserID: userID, AxeID: "open", Order: 1, CustomName: "Mine", CustomPhrases: []string{"a", " ", "c"}}, ErrEmptyContent},
		{"missing user", fixed, UserAxeSelection{AxeID: "fixed", Order: 1}, ErrSelectionUserIDEmpty},
		{"zero order", fixed, UserAxeSelection{UserID: userID, AxeID: "fixed"}, ErrSelectionOrder},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.sel.ValidateFor(tt.axe)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestSelectionPhraseTexts(t *testing.T) {
	t.Parallel()

	axe, err := NewAxe("open", "Open", true, []string{"a", "b", "c"})
	require.NoError(t, err)

	canonical := UserAxeSelection{UserID: uuid.New(), AxeID: "open", Order: 1}
	assert.Equal(t, []string{"a", "b", "c"}, canonical.PhraseTexts(axe))
	assert.Equal(t, "Open", canonical.DisplayName(axe))

	custom := UserAxeSelection{UserID: uuid.New(), AxeID: "open", Order: 1, CustomName: "Mine", CustomPhrases: []string{"x", "y", "z"}}
	assert.Equal(t, []string{"x", "y", "z"}, custom.PhraseTexts(axe))
	assert.Equal(t, "Mine", custom.DisplayName(axe))
}

func TestSelectionFlagsFlipOnce(t *testing.T) {
	t.Parallel()

	sel := UserAxeSelection{UserID: uuid.New(), AxeID: "a", Order: 1}
	first := time.Now().UTC()

	assert.True(t, sel.MarkStarted(first))
	assert.False(t, sel.MarkStarted(first.Add(time.Hour)))
	assert.Equal(t, first, *sel.StartedAt)

	assert.True(t, sel.MarkCompleted(first))
	assert.False(t, sel.MarkCompleted(first.Add(time.Hour)))
	assert.Equal(t, first, *sel.CompletedAt)
}

func TestValidateSelectionSet(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	mk := func(ids ...string) []*UserAxeSelection {
		out := make([]*UserAxeSelection, len(ids))
		for i, id := range ids {
			out[i] = &UserAxeSelection{UserID: userID, AxeID: id, Order: i + 1}
		}
		return out
	}

	assert.NoError(t, ValidateSelectionSet(mk("a", "b", "c")))
	assert.NoError(t, ValidateSelectionSet(mk("a", "b", "c", "d", "e", "f")))
	assert.ErrorIs(t, ValidateSelectionSet(mk("a", "b")), ErrSelectionCount)
	assert.ErrorIs(t, ValidateSelectionSet(mk("a", "b", "c", "d", "e", "f", "g")), ErrSelectionCount)
	assert.ErrorIs(t, ValidateSelectionSet(mk("a", "b", "a")), ErrSelectionDuplicateAxe)

	dup := mk("a", "b", "c")
	dup[2].Order = 1
	assert.ErrorIs(t, ValidateSelectionSet(dup), ErrSelectionDuplicateRank)
}
