package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Axe-specific validation errors
var (
	ErrAxeIDEmpty        = errors.New("axe ID cannot be empty")
	ErrAxeIDTooLong      = errors.New("axe ID must be at most 64 characters long")
	ErrAxeNameEmpty      = errors.New("axe name cannot be empty")
	ErrAxeNoPhrases      = errors.New("axe must contain at least one phrase")
	ErrPhraseOrdinal     = errors.New("phrase ordinals must be contiguous starting at 0")
	ErrPhraseAxeMismatch = errors.New("phrase does not belong to axe")
)

// phraseNamespace scopes the name-based UUIDs generated for seeded phrases so
// that re-seeding the same catalog yields the same phrase IDs.
var phraseNamespace = uuid.MustParse("6f1f3c3e-5a1d-4c55-9a43-2d4f0f7e1b2a")

// Axe is a topic a learner trains on. Its phrases are ordered by Ordinal and
// immutable once seeded.
type Axe struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Customizable bool      `json:"customizable"`
	Phrases      []Phrase  `json:"phrases"`
	CreatedAt    time.Time `json:"created_at"`
}

// Phrase is one canonical sentence of an axe.
type Phrase struct {
	ID      uuid.UUID `json:"id"`
	AxeID   string    `json:"axe_id"`
	Ordinal int       `json:"ordinal"`
	Content string    `json:"content"`
}

// PhraseID returns the deterministic ID of the phrase at ordinal within axeID.
func PhraseID(axeID string, ordinal int) uuid.UUID {
	return uuid.NewSHA1(phraseNamespace, []byte(fmt.Sprintf("%s/%d", axeID, ordinal)))
}

// NewAxe builds an axe from its ordered phrase texts.
// Returns an error if validation fails.
func NewAxe(id, name string, customizable bool, phrases []string) (*Axe, error) {
	axe := &Axe{
		ID:           strings.TrimSpace(id),
		Name:         strings.TrimSpace(name),
		Customizable: customizable,
		CreatedAt:    time.Now().UTC(),
	}
	for i, content := range phrases {
		axe.Phrases = append(axe.Phrases, Phrase{
			ID:      PhraseID(axe.ID, i),
			AxeID:   axe.ID,
			Ordinal: i,
			Content: strings.TrimSpace(content),
		})
	}

	if err := axe.Validate(); err != nil {
		return nil, err
	}
	return axe, nil
}

// Validate checks if the Axe has valid data.
func (a *Axe) Validate() error {
	if a.ID == "" {
		return ErrAxeIDEmpty
	}
	if len(a.ID) > 64 {
		return ErrAxeIDTooLong
	}
	if a.Name == "" {
		return ErrAxeNameEmpty
	}
	if len(a.Phrases) == 0 {
		return ErrAxeNoPhrases
	}
	for i, p := range a.Phrases {
		if p.AxeID != a.ID {
			return ErrPhraseAxeMismatch
		}
		if p.Ordinal != i {
			return ErrPhraseOrdinal
		}
		if p.Content == "" {
			return fmt.Errorf("phrase %d: %w", i, ErrEmptyContent)
		}
	}
	return nil
}

// PhraseTexts returns the content of every phrase in ordinal order.
func (a *Axe) PhraseTexts() []string {
	out := make([]string, len(a.Phrases))
	for i, p := range a.Phrases {
		out[i] = p.Content
	}
	return out
}
