// Package cooccur counts how often menu items are ordered together and ranks
// recommendation candidates from those counts.
//
// Both the matrix build and the ranking are pure, deterministic computations.
// A [Matrix] is rebuilt from the full order history every time
// recommendations are requested; it is never updated incrementally.
package cooccur

import (
	"github.com/MrWong99/ordervox/internal/order"
	"github.com/MrWong99/ordervox/internal/vocab"
)

// Matrix is a square, symmetric item×item count matrix indexed by vocabulary
// position. At(i, j) is the number of historical orders containing both item
// i and item j. The diagonal is always zero.
//
// Matrix is immutable after [BuildMatrix] returns and safe for concurrent
// reads.
type Matrix struct {
	n      int
	counts []int // row-major, n*n
}

// BuildMatrix counts pairwise co-occurrences over history.
//
// Items not present in v are skipped silently, since historical orders may
// reference dishes that have since left the menu. An item repeated within a
// single order counts once.
func BuildMatrix(history order.History, v *vocab.Vocabulary) *Matrix {
	n := 0
	if v != nil {
		n = v.Len()
	}
	m := &Matrix{n: n, counts: make([]int, n*n)}
	if n == 0 {
		return m
	}

	seen := make([]bool, n)
	idx := make([]int, 0, 8)
	for _, items := range history {
		idx = idx[:0]
		for _, item := range items {
			_, i, ok := v.Lookup(item)
			if !ok || seen[i] {
				continue
			}
			seen[i] = true
			idx = append(idx, i)
		}
		for a := 0; a < len(idx); a++ {
			for b := a + 1; b < len(idx); b++ {
				i, j := idx[a], idx[b]
				m.counts[i*n+j]++
				m.counts[j*n+i]++
			}
		}
		for _, i := range idx {
			seen[i] = false
		}
	}
	return m
}

// Size returns the matrix dimension, equal to the vocabulary length it was
// built from.
func (m *Matrix) Size() int { return m.n }

// At returns the co-occurrence count of items i and j. It panics if either
// index is out of range.
func (m *Matrix) At(i, j int) int {
	m.check(i)
	m.check(j)
	return m.counts[i*m.n+j]
}

// Row returns a copy of row i.
func (m *Matrix) Row(i int) []int {
	m.check(i)
	out := make([]int, m.n)
	copy(out, m.counts[i*m.n:(i+1)*m.n])
	return out
}

// row returns row i without copying.
func (m *Matrix) row(i int) []int { return m.counts[i*m.n : (i+1)*m.n] }

func (m *Matrix) check(i int) {
	if i < 0 || i >= m.n {
		panic("cooccur: index out of range")
	}
}
