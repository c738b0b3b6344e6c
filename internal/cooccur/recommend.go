package cooccur

import (
	"cmp"
	"slices"

	"github.com/MrWong99/ordervox/internal/vocab"
)

// DefaultTopN is the number of recommendations returned when the caller asks
// for a non-positive count.
const DefaultTopN = 3

// Recommend ranks items that were historically ordered together with the
// items in current.
//
// Each phrase of current that folds to a phrase of v contributes its matrix row to a
// per-item score. Items already in current and items with a zero score are
// excluded. The remaining candidates are sorted by descending score; equal
// scores keep vocabulary order. At most topN phrases are returned
// ([DefaultTopN] when topN <= 0). The result is empty, never an error, when no
// candidate scores.
//
// The matrix must have been built from v. A size mismatch yields an empty
// result.
func Recommend(current []vocab.Phrase, m *Matrix, v *vocab.Vocabulary, topN int) []vocab.Phrase {
	if topN <= 0 {
		topN = DefaultTopN
	}
	if m == nil || v == nil || m.Size() != v.Len() || m.Size() == 0 {
		return []vocab.Phrase{}
	}

	n := m.Size()
	scores := make([]int, n)
	inOrder := make([]bool, n)
	for _, p := range current {
		_, i, ok := v.Lookup(string(p))
		if !ok || inOrder[i] {
			continue
		}
		inOrder[i] = true
		for j, c := range m.row(i) {
			scores[j] += c
		}
	}

	candidates := make([]int, 0, n)
	for i, s := range scores {
		if s > 0 && !inOrder[i] {
			candidates = append(candidates, i)
		}
	}
	slices.SortStableFunc(candidates, func(a, b int) int {
		return cmp.Compare(scores[b], scores[a])
	})
	if len(candidates) > topN {
		candidates = candidates[:topN]
	}

	out := make([]vocab.Phrase, len(candidates))
	for k, i := range candidates {
		out[k] = v.At(i)
	}
	return out
}
