// Package recall scores a learner's recalled text against the phrase that was
// flashed. Scoring is pure: the same inputs always give the same Result.
package recall

import "github.com/phrazzld/renaissance/internal/domain"

// Result is the outcome of comparing one recall with its expected phrase.
type Result struct {
	IsCorrect   bool                `json:"is_correct"`
	Differences []domain.Difference `json:"differences"`
	Recalled    string              `json:"recalled"`
	Expected    string              `json:"expected"`
}

// Evaluator scores recalls with a configurable token aligner.
type Evaluator struct {
	differ Differ
}

// NewEvaluator creates an Evaluator. A nil differ selects PositionalDiffer.
func NewEvaluator(differ Differ) *Evaluator {
	if differ == nil {
		differ = PositionalDiffer{}
	}
	return &Evaluator{differ: differ}
}

// Evaluate normalizes both texts and compares them. Texts that normalize to
// the same string are correct and carry no differences.
func (e *Evaluator) Evaluate(recalled, expected string) Result {
	r := Normalize(recalled)
	x := Normalize(expected)
	if r == x {
		return Result{
			IsCorrect:   true,
			Differences: []domain.Difference{},
			Recalled:    r,
			Expected:    x,
		}
	}
	return Result{
		IsCorrect:   false,
		Differences: e.differ.Diff(Tokens(x), Tokens(r)),
		Recalled:    r,
		Expected:    x,
	}
}

var defaultEvaluator = NewEvaluator(nil)

// Evaluate scores recalled against expected with the positional differ.
func Evaluate(recalled, expected string) Result {
	return defaultEvaluator.Evaluate(recalled, expected)
}
