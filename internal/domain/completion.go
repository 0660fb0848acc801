package domain

import (
	"time"

	"github.com/google/uuid"
)

// StageCompletion is the ledger entry that gates the next stage. Once
// Completed is true it never flips back.
type StageCompletion struct {
	UserID      uuid.UUID  `json:"user_id"`
	AxeID       string     `json:"axe_id"`
	Stage       Stage      `json:"stage"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Merge folds next into c without ever downgrading a completed stage.
func (c *StageCompletion) Merge(next StageCompletion) {
	if c.Completed {
		return
	}
	c.Completed = next.Completed
	c.CompletedAt = next.CompletedAt
}

// CompletionSet indexes a learner's completions for one axe by stage.
type CompletionSet map[Stage]StageCompletion

// NewCompletionSet indexes completions by stage. Later duplicates merge into
// earlier ones.
func NewCompletionSet(completions []StageCompletion) CompletionSet {
	set := make(CompletionSet, len(completions))
	for _, c := range completions {
		if existing, ok := set[c.Stage]; ok {
			existing.Merge(c)
			set[c.Stage] = existing
			continue
		}
		set[c.Stage] = c
	}
	return set
}

// Completed reports whether stage has a completed record.
func (s CompletionSet) Completed(stage Stage) bool {
	c, ok := s[stage]
	return ok && c.Completed
}

// Highest returns the highest completed stage, if any.
func (s CompletionSet) Highest() (Stage, bool) {
	for i := len(Stages) - 1; i >= 0; i-- {
		if s.Completed(Stages[i]) {
			return Stages[i], true
		}
	}
	return "", false
}
