package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Selection size limits.
const (
	MinSelectedAxes  = 3
	MaxSelectedAxes  = 6
	MinCustomPhrases = 3
	MaxCustomPhrases = 10
)

// Selection validation errors
var (
	ErrSelectionUserIDEmpty   = errors.New("selection user ID cannot be empty")
	ErrSelectionAxeIDEmpty    = errors.New("selection axe ID cannot be empty")
	ErrSelectionOrder         = errors.New("selection order must be at least 1")
	ErrSelectionCount         = errors.New("a learner must select between 3 and 6 axes")
	ErrCustomNotAllowed       = errors.New("axe does not accept custom phrases")
	ErrCustomPhraseCount      = errors.New("custom axes need between 3 and 10 phrases")
	ErrCustomNameEmpty        = errors.New("custom axes need a name")
	ErrSelectionDuplicateAxe  = errors.New("axe selected more than once")
	ErrSelectionDuplicateRank = errors.New("selection order used more than once")
)

// UserAxeSelection records that a learner trains on an axe. Only the started
// and completed flags change after creation.
type UserAxeSelection struct {
	UserID        uuid.UUID  `json:"user_id"`
	AxeID         string     `json:"axe_id"`
	Order         int        `json:"order"`
	Started       bool       `json:"started"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
	Completed     bool       `json:"completed"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	CustomName    string     `json:"custom_name,omitempty"`
	CustomPhrases []string   `json:"custom_phrases,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// Validate checks the selection fields that do not depend on the axe.
func (s *UserAxeSelection) Validate() error {
	if s.UserID == uuid.Nil {
		return ErrSelectionUserIDEmpty
	}
	if s.AxeID == "" {
		return ErrSelectionAxeIDEmpty
	}
	if s.Order < 1 {
		return ErrSelectionOrder
	}
	return nil
}

// ValidateFor checks the selection against the axe it refers to: custom
// content is only accepted on customizable axes and must hold 3 to 10 phrases.
func (s *UserAxeSelection) ValidateFor(axe *Axe) error {
	if err := s.Validate(); err != nil {
		return err
	}
	if s.AxeID != axe.ID {
		return ErrPhraseAxeMismatch
	}
	if !s.IsCustom() {
		return nil
	}
	if !axe.Customizable {
		return ErrCustomNotAllowed
	}
	if strings.TrimSpace(s.CustomName) == "" {
		return ErrCustomNameEmpty
	}
	if n := len(s.CustomPhrases); n < MinCustomPhrases || n > MaxCustomPhrases {
		return ErrCustomPhraseCount
	}
	for _, p := range s.CustomPhrases {
		if strings.TrimSpace(p) == "" {
			return ErrEmptyContent
		}
	}
	return nil
}

// IsCustom reports whether the learner supplied their own phrases.
func (s *UserAxeSelection) IsCustom() bool {
	return len(s.CustomPhrases) > 0
}

// PhraseTexts returns the phrases trained for this selection: the custom
// phrases when present, the axe's canonical phrases otherwise.
func (s *UserAxeSelection) PhraseTexts(axe *Axe) []string {
	if s.IsCustom() {
		out := make([]string, len(s.CustomPhrases))
		copy(out, s.CustomPhrases)
		return out
	}
	return axe.PhraseTexts()
}

// DisplayName returns the custom name if any, the axe name otherwise.
func (s *UserAxeSelection) DisplayName(axe *Axe) string {
	if s.CustomName != "" {
		return s.CustomName
	}
	return axe.Name
}

// MarkStarted flips the started flag once.
func (s *UserAxeSelection) MarkStarted(now time.Time) bool {
	if s.Started {
		return false
	}
	s.Started = true
	s.StartedAt = &now
	return true
}

// MarkCompleted flips the completed flag once.
func (s *UserAxeSelection) MarkCompleted(now time.Time) bool {
	if s.Completed {
		return false
	}
	s.Completed = true
	s.CompletedAt = &now
	return true
}

// ValidateSelectionSet checks a full set of selections for one learner.
func ValidateSelectionSet(selections []*UserAxeSelection) error {
	if n := len(selections); n < MinSelectedAxes || n > MaxSelectedAxes {
		return ErrSelectionCount
	}
	axes := make(map[string]bool, len(selections))
	orders := make(map[int]bool, len(selections))
	for _, s := range selections {
		if err := s.Validate(); err != nil {
			return err
		}
		if axes[s.AxeID] {
			return ErrSelectionDuplicateAxe
		}
		if orders[s.Order] {
			return ErrSelectionDuplicateRank
		}
		axes[s.AxeID] = true
		orders[s.Order] = true
	}
	return nil
}
