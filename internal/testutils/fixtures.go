package testutils

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/renaissance/internal/domain"
	"github.com/stretchr/testify/require"
)

// SeedAxe stores an axe with the given phrases. With no phrases, three
// numbered phrases are generated.
func SeedAxe(t *testing.T, m *MemStore, id string, customizable bool, phrases ...string) *domain.Axe {
	t.Helper()
	if len(phrases) == 0 {
		for i := 1; i <= 3; i++ {
			phrases = append(phrases, fmt.Sprintf("%s phrase %d", id, i))
		}
	}
	axe, err := domain.NewAxe(id, "Axe "+id, customizable, phrases)
	require.NoError(t, err)
	require.NoError(t, m.Stores().Axes.Upsert(context.Background(), axe))
	return axe
}

// SelectAxes records selections for userID in the given order. Axes must
// already be seeded.
func SelectAxes(t *testing.T, m *MemStore, userID uuid.UUID, axeIDs ...string) {
	t.Helper()
	for i, id := range axeIDs {
		require.NoError(t, m.Stores().Selections.Upsert(context.Background(), &domain.UserAxeSelection{
			UserID:    userID,
			AxeID:     id,
			Order:     i + 1,
			CreatedAt: time.Now().UTC(),
		}))
	}
}

// CompleteStage writes a completed StageCompletion record.
func CompleteStage(t *testing.T, m *MemStore, userID uuid.UUID, axeID string, stage domain.Stage) {
	t.Helper()
	now := time.Now().UTC()
	_, err := m.Stores().Completions.Upsert(context.Background(), &domain.StageCompletion{
		UserID:      userID,
		AxeID:       axeID,
		Stage:       stage,
		Completed:   true,
		CompletedAt: &now,
	})
	require.NoError(t, err)
}

// FixedClock returns a clock function that advances by step on every call,
// starting at start.
func FixedClock(start time.Time, step time.Duration) func() time.Time {
	var (
		mu  sync.Mutex
		cur = start
	)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now := cur
		cur = cur.Add(step)
		return now
	}
}
