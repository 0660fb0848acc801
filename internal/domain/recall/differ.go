package recall

import "github.com/phrazzld/renaissance/internal/domain"

// Differ aligns expected and recalled tokens and reports their differences.
// Positions are indexes into the token slices.
type Differ interface {
	Diff(expected, recalled []string) []domain.Difference
}

// PositionalDiffer compares tokens index by index up to the longer of the two
// slices. It does not realign after an insertion or deletion, so a single
// inserted word turns every later position into a mismatch.
type PositionalDiffer struct{}

// Diff implements Differ.
func (PositionalDiffer) Diff(expected, recalled []string) []domain.Difference {
	n := max(len(expected), len(recalled))
	diffs := make([]domain.Difference, 0)
	for i := 0; i < n; i++ {
		switch {
		case i >= len(recalled):
			diffs = append(diffs, domain.Difference{
				Kind:     domain.DifferenceMissing,
				Position: i,
				Expected: expected[i],
			})
		case i >= len(expected):
			diffs = append(diffs, domain.Difference{
				Kind:     domain.DifferenceExtra,
				Position: i,
				Actual:   recalled[i],
			})
		case expected[i] != recalled[i]:
			diffs = append(diffs, domain.Difference{
				Kind:     domain.DifferenceIncorrect,
				Position: i,
				Expected: expected[i],
				Actual:   recalled[i],
			})
		}
	}
	return diffs
}

// AlignedDiffer aligns tokens on their longest common subsequence before
// reporting, so an inserted word yields one extra entry instead of a cascade.
// Adjacent deletions and insertions are paired up as incorrect tokens.
// Positions refer to the recalled text for extra and incorrect entries and to
// the expected text for missing ones.
type AlignedDiffer struct{}

// Diff implements Differ.
func (AlignedDiffer) Diff(expected, recalled []string) []domain.Difference {
	m, n := len(expected), len(recalled)

	// lcs[i][j] is the LCS length of expected[i:] and recalled[j:].
	lcs := make([][]int, m+1)
	for i := range lcs {
		lcs[i] = make([]int, n+1)
	}
	for i := m - 1; i >= 0; i-- {
		for j := n - 1; j >= 0; j-- {
			if expected[i] == recalled[j] {
				lcs[i][j] = lcs[i+1][j+1] + 1
			} else {
				lcs[i][j] = max(lcs[i+1][j], lcs[i][j+1])
			}
		}
	}

	diffs := make([]domain.Difference, 0)
	var missing, extra []domain.Difference
	flush := func() {
		k := min(len(missing), len(extra))
		for x := 0; x < k; x++ {
			diffs = append(diffs, domain.Difference{
				Kind:     domain.DifferenceIncorrect,
				Position: extra[x].Position,
				Expected: missing[x].Expected,
				Actual:   extra[x].Actual,
			})
		}
		diffs = append(diffs, missing[k:]...)
		diffs = append(diffs, extra[k:]...)
		missing, extra = missing[:0], extra[:0]
	}

	i, j := 0, 0
	for i < m || j < n {
		switch {
		case i < m && j < n && expected[i] == recalled[j]:
			flush()
			i++
			j++
		case j < n && (i == m || lcs[i][j+1] >= lcs[i+1][j]):
			extra = append(extra, domain.Difference{Kind: domain.DifferenceExtra, Position: j, Actual: recalled[j]})
			j++
		default:
			missing = append(missing, domain.Difference{Kind: domain.DifferenceMissing, Position: i, Expected: expected[i]})
			i++
		}
	}
	flush()
	return diffs
}
