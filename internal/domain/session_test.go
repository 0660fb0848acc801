package domain

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGameSession(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	rng := rand.New(rand.NewPCG(1, 2))

	session, err := NewGameSession(userID, "confiance", StageLevel1, 4*time.Second, 5, rng)
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, session.ID)
	assert.Equal(t, userID, session.UserID)
	assert.Equal(t, int64(4000), session.FlashDurationMs)
	assert.True(t, session.Active)
	assert.False(t, session.Completed)
	assert.Len(t, session.PhraseOrder, 5)
	assert.True(t, IsPermutation(session.PhraseOrder))
	assert.Zero(t, session.CurrentIndex)
	assert.Zero(t, session.TotalAttempts)

	_, err = NewGameSession(uuid.Nil, "confiance", StageLevel1, time.Second, 5, rng)
	assert.ErrorIs(t, err, ErrSessionUserIDEmpty)

	_, err = NewGameSession(userID, "confiance", StageLevel1, time.Second, 0, rng)
	assert.ErrorIs(t, err, ErrSessionNoPhrases)

	_, err = NewGameSession(userID, "confiance", Stage("nope"), time.Second, 3, rng)
	assert.ErrorIs(t, err, ErrInvalidStage)
}

func TestShuffleIsUniformPermutation(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewPCG(42, 7))
	const n, rounds = 4, 24000
	firstCounts := make([]int, n)

	for i := 0; i < rounds; i++ {
		order := Shuffle(n, rng)
		require.True(t, IsPermutation(order))
		firstCounts[order[0]]++
	}

	// Each ordinal should lead roughly a quarter of the time.
	for v, c := range firstCounts {
		assert.InDelta(t, rounds/n, c, rounds/n*0.1, "ordinal %d led %d times", v, c)
	}
}

func TestIsPermutation(t *testing.T) {
	t.Parallel()

	assert.True(t, IsPermutation([]int{2, 0, 1}))
	assert.True(t, IsPermutation([]int{}))
	assert.False(t, IsPermutation([]int{0, 0, 1}))
	assert.False(t, IsPermutation([]int{0, 3, 1}))
	assert.False(t, IsPermutation([]int{-1, 0, 1}))
}

func TestGameSessionApplyAndSeal(t *testing.T) {
	t.Parallel()

	session, err := NewGameSession(uuid.New(), "a", StageDiscovery, 3*time.Second, 3, nil)
	require.NoError(t, err)

	now := time.Now().UTC()
	for i, correct := range []bool{true, false, true} {
		ordinal, err := session.CurrentPhraseOrdinal()
		require.NoError(t, err)
		assert.Equal(t, session.PhraseOrder[i], ordinal)

		session.Apply(correct, now.Add(time.Duration(i+1)*time.Second))
		require.NoError(t, session.Validate())
		assert.LessOrEqual(t, session.CorrectCount, session.TotalAttempts)
		assert.LessOrEqual(t, session.TotalAttempts, session.PhraseCount())
	}

	assert.True(t, session.Exhausted())
	assert.Equal(t, 67, session.Accuracy)
	_, err = session.CurrentPhraseOrdinal()
	assert.ErrorIs(t, err, ErrSessionExhausted)

	epoch := session.Epoch
	session.Seal(now.Add(5 * time.Second))
	assert.False(t, session.Active)
	assert.True(t, session.Completed)
	assert.NotNil(t, session.CompletedAt)
	assert.Equal(t, epoch+1, session.Epoch)
	assert.Equal(t, 5*time.Second, session.Elapsed())
}

func TestGameSessionValidateRejectsBadRows(t *testing.T) {
	t.Parallel()

	base := func() GameSession {
		return GameSession{
			ID:              uuid.New(),
			UserID:          uuid.New(),
			AxeID:           "a",
			Stage:           StageLevel2,
			FlashDurationMs: 2500,
			PhraseOrder:     []int{1, 0, 2},
			Active:          true,
		}
	}

	tests := []struct {
		name   string
		mutate func(*GameSession)
		want   error
	}{
		{"valid", func(*GameSession) {}, nil},
		{"duplicate ordinal", func(s *GameSession) { s.PhraseOrder = []int{0, 0, 2} }, ErrPhraseOrderInvalid},
		{"index past end", func(s *GameSession) { s.CurrentIndex = 4 }, ErrSessionIndexRange},
		{"correct above total", func(s *GameSession) { s.CorrectCount = 2; s.TotalAttempts = 1 }, ErrSessionCounters},
		{"total above phrases", func(s *GameSession) { s.TotalAttempts = 4 }, ErrSessionCounters},
		{"active and completed", func(s *GameSession) { s.Completed = true }, ErrSessionState},
		{"unknown stage", func(s *GameSession) { s.Stage = "level9" }, ErrInvalidStage},
		{"zero flash", func(s *GameSession) { s.FlashDurationMs = 0 }, ErrSessionFlashDuration},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := base()
			tt.mutate(&s)
			err := s.Validate()
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestComputeAccuracy(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0, ComputeAccuracy(0, 0))
	assert.Equal(t, 67, ComputeAccuracy(2, 3))
	assert.Equal(t, 33, ComputeAccuracy(1, 3))
	assert.Equal(t, 100, ComputeAccuracy(3, 3))
	assert.Equal(t, 50, ComputeAccuracy(1, 2))
}
