package testutils

import (
	"slices"
	"time"

	"github.com/phrazzld/renaissance/internal/domain"
)

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func copyAxe(a *domain.Axe) *domain.Axe {
	c := *a
	c.Phrases = slices.Clone(a.Phrases)
	return &c
}

func copySelection(s *domain.UserAxeSelection) *domain.UserAxeSelection {
	c := *s
	c.StartedAt = copyTime(s.StartedAt)
	c.CompletedAt = copyTime(s.CompletedAt)
	c.CustomPhrases = slices.Clone(s.CustomPhrases)
	return &c
}

func copySession(s *domain.GameSession) *domain.GameSession {
	c := *s
	c.PhraseOrder = slices.Clone(s.PhraseOrder)
	c.CompletedAt = copyTime(s.CompletedAt)
	return &c
}

func copyAttempt(a *domain.PhraseAttempt) *domain.PhraseAttempt {
	c := *a
	c.Differences = slices.Clone(a.Differences)
	return &c
}

func copyCompletion(c domain.StageCompletion) domain.StageCompletion {
	c.CompletedAt = copyTime(c.CompletedAt)
	return c
}
