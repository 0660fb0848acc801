package domain

import (
	"errors"
	"math"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
)

// Session validation errors
var (
	ErrSessionIDEmpty       = errors.New("session ID cannot be empty")
	ErrSessionUserIDEmpty   = errors.New("session user ID cannot be empty")
	ErrSessionAxeIDEmpty    = errors.New("session axe ID cannot be empty")
	ErrSessionNoPhrases     = errors.New("session must train at least one phrase")
	ErrPhraseOrderInvalid   = errors.New("phrase order is not a permutation")
	ErrSessionIndexRange    = errors.New("current index outside phrase order")
	ErrSessionCounters      = errors.New("session counters out of range")
	ErrSessionFlashDuration = errors.New("flash duration must be positive")
	ErrSessionState         = errors.New("session cannot be both active and completed")
	ErrSessionExhausted     = errors.New("session has no remaining phrases")
)

// GameSession is one pass of a learner through an axe at a given stage.
//
// Counters are a fold over the session's attempts; CurrentIndex points into
// PhraseOrder and reaching len(PhraseOrder) means every phrase was attempted.
// Epoch increases whenever the session is reopened or sealed so clients can
// discard work armed against an older state.
type GameSession struct {
	ID              uuid.UUID  `json:"id"`
	UserID          uuid.UUID  `json:"user_id"`
	AxeID           string     `json:"axe_id"`
	Stage           Stage      `json:"stage"`
	FlashDurationMs int64      `json:"flash_duration_ms"`
	PhraseOrder     []int      `json:"phrase_order"`
	CurrentIndex    int        `json:"current_index"`
	CorrectCount    int        `json:"correct_count"`
	TotalAttempts   int        `json:"total_attempts"`
	Accuracy        int        `json:"accuracy"`
	Active          bool       `json:"active"`
	Completed       bool       `json:"completed"`
	StartedAt       time.Time  `json:"started_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	LastActivityAt  time.Time  `json:"last_activity_at"`
	Epoch           int64      `json:"epoch"`
}

// NewGameSession opens a session over phraseCount phrases in a uniformly
// shuffled order. rng may be nil, in which case the global source is used.
func NewGameSession(
	userID uuid.UUID,
	axeID string,
	stage Stage,
	flash time.Duration,
	phraseCount int,
	rng *rand.Rand,
) (*GameSession, error) {
	now := time.Now().UTC()
	session := &GameSession{
		ID:              uuid.New(),
		UserID:          userID,
		AxeID:           axeID,
		Stage:           stage,
		FlashDurationMs: flash.Milliseconds(),
		PhraseOrder:     Shuffle(phraseCount, rng),
		Active:          true,
		StartedAt:       now,
		LastActivityAt:  now,
	}

	if err := session.Validate(); err != nil {
		return nil, err
	}
	return session, nil
}

// Shuffle returns a uniform random permutation of 0..n-1 (Fisher-Yates).
func Shuffle(n int, rng *rand.Rand) []int {
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	for i := n - 1; i > 0; i-- {
		var j int
		if rng != nil {
			j = rng.IntN(i + 1)
		} else {
			j = rand.IntN(i + 1)
		}
		order[i], order[j] = order[j], order[i]
	}
	return order
}

// IsPermutation reports whether order holds each of 0..len(order)-1 exactly once.
func IsPermutation(order []int) bool {
	seen := make([]bool, len(order))
	for _, v := range order {
		if v < 0 || v >= len(order) || seen[v] {
			return false
		}
		seen[v] = true
	}
	return true
}

// Validate checks if the GameSession has valid data.
func (s *GameSession) Validate() error {
	if s.ID == uuid.Nil {
		return ErrSessionIDEmpty
	}
	if s.UserID == uuid.Nil {
		return ErrSessionUserIDEmpty
	}
	if s.AxeID == "" {
		return ErrSessionAxeIDEmpty
	}
	if !s.Stage.Valid() {
		return ErrInvalidStage
	}
	if s.FlashDurationMs <= 0 {
		return ErrSessionFlashDuration
	}
	if len(s.PhraseOrder) == 0 {
		return ErrSessionNoPhrases
	}
	if !IsPermutation(s.PhraseOrder) {
		return ErrPhraseOrderInvalid
	}
	if s.CurrentIndex < 0 || s.CurrentIndex > len(s.PhraseOrder) {
		return ErrSessionIndexRange
	}
	if s.CorrectCount < 0 || s.CorrectCount > s.TotalAttempts || s.TotalAttempts > len(s.PhraseOrder) {
		return ErrSessionCounters
	}
	if s.Active && s.Completed {
		return ErrSessionState
	}
	return nil
}

// PhraseCount is the number of phrases the session trains.
func (s *GameSession) PhraseCount() int {
	return len(s.PhraseOrder)
}

// Exhausted reports whether every phrase has been attempted.
func (s *GameSession) Exhausted() bool {
	return s.CurrentIndex >= len(s.PhraseOrder)
}

// CurrentPhraseOrdinal returns the ordinal of the phrase to display next.
func (s *GameSession) CurrentPhraseOrdinal() (int, error) {
	if s.Exhausted() {
		return 0, ErrSessionExhausted
	}
	return s.PhraseOrder[s.CurrentIndex], nil
}

// FlashDuration returns the flash duration as a time.Duration.
func (s *GameSession) FlashDuration() time.Duration {
	return time.Duration(s.FlashDurationMs) * time.Millisecond
}

// Apply folds one attempt into the counters and moves to the next phrase.
func (s *GameSession) Apply(correct bool, at time.Time) {
	s.TotalAttempts++
	if correct {
		s.CorrectCount++
	}
	s.Accuracy = ComputeAccuracy(s.CorrectCount, s.TotalAttempts)
	s.CurrentIndex++
	s.LastActivityAt = at
}

// Seal marks the session finished.
func (s *GameSession) Seal(at time.Time) {
	s.Active = false
	s.Completed = true
	s.CompletedAt = &at
	s.LastActivityAt = at
	s.Epoch++
}

// Abandon deactivates the session without completing it. Its attempts stay
// in the ledger for history.
func (s *GameSession) Abandon(at time.Time) {
	s.Active = false
	s.LastActivityAt = at
	s.Epoch++
}

// Elapsed returns the time between the session start and its last activity.
func (s *GameSession) Elapsed() time.Duration {
	if s.LastActivityAt.Before(s.StartedAt) {
		return 0
	}
	return s.LastActivityAt.Sub(s.StartedAt)
}

// ComputeAccuracy returns round(100*correct/total), or 0 with no attempts.
func ComputeAccuracy(correct, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(correct) / float64(total)))
}
