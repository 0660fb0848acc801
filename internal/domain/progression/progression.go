// Package progression decides which stages of an axe a learner may open.
//
// The decision is derived only from the stage completion ledger. Sessions,
// accuracy and cached progress never unlock a stage on their own.
package progression

import "github.com/phrazzld/renaissance/internal/domain"

// IsUnlocked reports whether stage is open for a learner.
//
// Discovery is open iff the axe is selected. Every later stage is open iff the
// axe is selected and the previous stage has a completion record with
// Completed set.
func IsUnlocked(stage domain.Stage, selected bool, completions []domain.StageCompletion) bool {
	return IsUnlockedIn(stage, selected, domain.NewCompletionSet(completions))
}

// IsUnlockedIn is IsUnlocked over an already indexed completion set.
func IsUnlockedIn(stage domain.Stage, selected bool, completions domain.CompletionSet) bool {
	if !selected || !stage.Valid() {
		return false
	}
	prev, ok := stage.Previous()
	if !ok {
		return true
	}
	return completions.Completed(prev)
}

// Unlocks evaluates every stage at once.
func Unlocks(selected bool, completions []domain.StageCompletion) map[domain.Stage]bool {
	set := domain.NewCompletionSet(completions)
	out := make(map[domain.Stage]bool, len(domain.Stages))
	for _, s := range domain.Stages {
		out[s] = IsUnlockedIn(s, selected, set)
	}
	return out
}
