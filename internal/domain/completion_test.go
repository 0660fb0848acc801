package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestCompletionMergeNeverDowngrades(t *testing.T) {
	t.Parallel()

	at := time.Now().UTC()
	c := StageCompletion{UserID: uuid.New(), AxeID: "a", Stage: StageLevel1, Completed: true, CompletedAt: &at}
	c.Merge(StageCompletion{Stage: StageLevel1, Completed: false})

	assert.True(t, c.Completed)
	assert.Equal(t, &at, c.CompletedAt)

	pending := StageCompletion{Stage: StageLevel2}
	pending.Merge(StageCompletion{Stage: StageLevel2, Completed: true, CompletedAt: &at})
	assert.True(t, pending.Completed)
}

func TestCompletionSet(t *testing.T) {
	t.Parallel()

	set := NewCompletionSet([]StageCompletion{
		{Stage: StageDiscovery, Completed: true},
		{Stage: StageLevel1, Completed: false},
		{Stage: StageLevel1, Completed: true},
	})

	assert.True(t, set.Completed(StageDiscovery))
	assert.True(t, set.Completed(StageLevel1))
	assert.False(t, set.Completed(StageLevel2))

	highest, ok := set.Highest()
	assert.True(t, ok)
	assert.Equal(t, StageLevel1, highest)

	_, ok = NewCompletionSet(nil).Highest()
	assert.False(t, ok)
}
