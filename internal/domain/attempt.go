package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// DifferenceKind classifies one token-level mismatch.
type DifferenceKind string

// Difference kinds.
const (
	DifferenceMissing   DifferenceKind = "missing"
	DifferenceExtra     DifferenceKind = "extra"
	DifferenceIncorrect DifferenceKind = "incorrect"
)

// Valid reports whether k is a known kind.
func (k DifferenceKind) Valid() bool {
	switch k {
	case DifferenceMissing, DifferenceExtra, DifferenceIncorrect:
		return true
	}
	return false
}

// Difference is one token-level mismatch between a recall and its expected
// phrase. Position is the zero-based token index.
type Difference struct {
	Kind     DifferenceKind `json:"kind"`
	Position int            `json:"position"`
	Expected string         `json:"expected,omitempty"`
	Actual   string         `json:"actual,omitempty"`
}

// Attempt validation errors
var (
	ErrAttemptSessionIDEmpty = errors.New("attempt session ID cannot be empty")
	ErrAttemptOrdinal        = errors.New("attempt ordinals cannot be negative")
	ErrAttemptResponseTime   = errors.New("response time cannot be negative")
	ErrAttemptDifferences    = errors.New("correct attempts carry no differences")
	ErrDifferenceKind        = errors.New("unknown difference kind")
)

// PhraseAttempt is the immutable record of one recall. AttemptOrdinal is the
// session index the attempt was made at, which makes (SessionID,
// PhraseOrdinal, AttemptOrdinal) a natural idempotency key.
type PhraseAttempt struct {
	ID             uuid.UUID    `json:"id"`
	SessionID      uuid.UUID    `json:"session_id"`
	PhraseOrdinal  int          `json:"phrase_ordinal"`
	AttemptOrdinal int          `json:"attempt_ordinal"`
	RecalledText   string       `json:"recalled_text"`
	ExpectedText   string       `json:"expected_text"`
	IsCorrect      bool         `json:"is_correct"`
	Differences    []Difference `json:"differences"`
	ResponseTimeMs int64        `json:"response_time_ms"`
	CreatedAt      time.Time    `json:"created_at"`
}

// AttemptKey identifies an attempt for idempotent writes.
type AttemptKey struct {
	SessionID      uuid.UUID
	PhraseOrdinal  int
	AttemptOrdinal int
}

// Key returns the attempt's idempotency key.
func (a *PhraseAttempt) Key() AttemptKey {
	return AttemptKey{
		SessionID:      a.SessionID,
		PhraseOrdinal:  a.PhraseOrdinal,
		AttemptOrdinal: a.AttemptOrdinal,
	}
}

// Validate checks if the PhraseAttempt has valid data.
func (a *PhraseAttempt) Validate() error {
	if a.SessionID == uuid.Nil {
		return ErrAttemptSessionIDEmpty
	}
	if a.PhraseOrdinal < 0 || a.AttemptOrdinal < 0 {
		return ErrAttemptOrdinal
	}
	if a.ResponseTimeMs < 0 {
		return ErrAttemptResponseTime
	}
	if a.IsCorrect && len(a.Differences) > 0 {
		return ErrAttemptDifferences
	}
	for _, d := range a.Differences {
		if !d.Kind.Valid() {
			return ErrDifferenceKind
		}
	}
	return nil
}

// SameOutcome reports whether b records the same recall as a. Used to tell an
// idempotent replay from a conflicting write under the same key.
func (a *PhraseAttempt) SameOutcome(b *PhraseAttempt) bool {
	return a.Key() == b.Key() &&
		a.RecalledText == b.RecalledText &&
		a.IsCorrect == b.IsCorrect
}
