// Package matcher implements multi-pattern phrase recognition over free-form
// transcribed speech.
//
// [Build] compiles a [vocab.Vocabulary] into an [Automaton]: a rune-level trie
// of phrase prefixes plus failure links (the classic Aho-Corasick
// construction). [Automaton.Scan] then walks arbitrary text exactly once and
// reports every vocabulary phrase occurring in it, so scan cost is linear in
// the text length and independent of how many phrases the menu holds.
//
// Matching is substring-based and does not require word-boundary alignment:
// "cheeseburgers please" contains "cheeseburger". Input text is folded on
// the fly with the same rules as [vocab.Fold] (lowercase, whitespace runs
// collapsed to one space), so "PIZZA   SLICE" and "pizza slice" scan
// identically.
//
// An Automaton is immutable after Build and safe for concurrent use; every
// piece of per-scan state lives on the caller's stack.
package matcher

import (
	"fmt"
	"slices"
	"unicode"

	"github.com/MrWong99/ordervox/internal/vocab"
)

// root is the index of the trie root in Automaton.nodes.
const root int32 = 0

// node is one trie state. Children are owned through the nodes arena and
// referenced by index; fail is a non-owning back-edge used only during
// traversal.
type node struct {
	next  map[rune]int32
	fail  int32
	depth int32

	// out lists the vocabulary indices of every phrase that ends at this
	// state, including phrases that are proper suffixes of the path (unioned
	// from the failure chain at build time).
	out []int32
}

// Automaton is a compiled multi-pattern matcher for one vocabulary.
type Automaton struct {
	nodes []node
	vocab *vocab.Vocabulary
}

// Build compiles v into an [Automaton]. The build runs in time proportional to
// the total number of runes across all phrases.
//
// Build returns an error wrapping [vocab.ErrEmptyPattern] if any phrase is
// empty. [vocab.Load] already rejects such entries, so in practice this only
// guards hand-constructed vocabularies.
func Build(v *vocab.Vocabulary) (*Automaton, error) {
	if v == nil || v.Len() == 0 {
		return nil, vocab.ErrEmptyVocabulary
	}

	a := &Automaton{
		nodes: make([]node, 1, v.Len()*8),
		vocab: v,
	}
	a.nodes[root] = node{next: make(map[rune]int32)}

	for i := 0; i < v.Len(); i++ {
		p := v.At(i)
		if p == "" {
			return nil, fmt.Errorf("matcher: phrase %d: %w", i, vocab.ErrEmptyPattern)
		}
		a.insert(p, int32(i))
	}
	a.link()
	return a, nil
}

// insert adds the trie path for p and records idx as an output of its final
// state.
func (a *Automaton) insert(p vocab.Phrase, idx int32) {
	cur := root
	for _, r := range string(p) {
		child, ok := a.nodes[cur].next[r]
		if !ok {
			child = int32(len(a.nodes))
			a.nodes = append(a.nodes, node{
				next:  make(map[rune]int32),
				depth: a.nodes[cur].depth + 1,
			})
			a.nodes[cur].next[r] = child
		}
		cur = child
	}
	a.nodes[cur].out = append(a.nodes[cur].out, idx)
}

// link computes failure links breadth-first from the root and unions output
// sets along the failure chains. BFS order guarantees that a node's failure
// target (always shallower) is fully linked before the node itself.
func (a *Automaton) link() {
	queue := make([]int32, 0, len(a.nodes))
	for _, child := range a.nodes[root].next {
		a.nodes[child].fail = root
		queue = append(queue, child)
	}

	for head := 0; head < len(queue); head++ {
		u := queue[head]
		for r, v := range a.nodes[u].next {
			f := a.nodes[u].fail
			for {
				if c, ok := a.nodes[f].next[r]; ok {
					a.nodes[v].fail = c
					break
				}
				if f == root {
					a.nodes[v].fail = root
					break
				}
				f = a.nodes[f].fail
			}
			if inherited := a.nodes[a.nodes[v].fail].out; len(inherited) > 0 {
				a.nodes[v].out = append(a.nodes[v].out, inherited...)
			}
			queue = append(queue, v)
		}
	}
}

// step returns the state reached from s on rune r, following failure links
// until a transition exists or the root is reached.
func (a *Automaton) step(s int32, r rune) int32 {
	for {
		if c, ok := a.nodes[s].next[r]; ok {
			return c
		}
		if s == root {
			return root
		}
		s = a.nodes[s].fail
	}
}

// walk folds text on the fly and feeds it through the automaton, calling
// visit with the output list of every state reached. walk stops early when
// visit returns false.
func (a *Automaton) walk(text string, visit func(out []int32) bool) {
	state := root
	prevSpace := true
	for _, r := range text {
		if unicode.IsSpace(r) {
			if prevSpace {
				continue
			}
			r = ' '
			prevSpace = true
		} else {
			r = unicode.ToLower(r)
			prevSpace = false
		}

		state = a.step(state, r)
		if out := a.nodes[state].out; len(out) > 0 {
			if !visit(out) {
				return
			}
		}
	}
}

// Scan returns the distinct vocabulary phrases occurring anywhere in text,
// ordered by vocabulary index. Positions and repeat counts are not reported.
// The result is nil when nothing matches.
func (a *Automaton) Scan(text string) []vocab.Phrase {
	var seen map[int32]struct{}
	a.walk(text, func(out []int32) bool {
		if seen == nil {
			seen = make(map[int32]struct{}, 4)
		}
		for _, idx := range out {
			seen[idx] = struct{}{}
		}
		return true
	})
	if len(seen) == 0 {
		return nil
	}

	idxs := make([]int32, 0, len(seen))
	for idx := range seen {
		idxs = append(idxs, idx)
	}
	slices.Sort(idxs)

	out := make([]vocab.Phrase, len(idxs))
	for i, idx := range idxs {
		out[i] = a.vocab.At(int(idx))
	}
	return out
}

// ScanAll scans each text in turn and returns the union of matches, ordered
// by vocabulary index. Used when a single listening round yields several
// transcription alternatives or utterances.
func (a *Automaton) ScanAll(texts []string) []vocab.Phrase {
	switch len(texts) {
	case 0:
		return nil
	case 1:
		return a.Scan(texts[0])
	}

	seen := make(map[vocab.Phrase]struct{})
	for _, t := range texts {
		for _, p := range a.Scan(t) {
			seen[p] = struct{}{}
		}
	}
	if len(seen) == 0 {
		return nil
	}
	out := make([]vocab.Phrase, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	slices.SortFunc(out, func(x, y vocab.Phrase) int {
		ix, _ := a.vocab.IndexOf(x)
		iy, _ := a.vocab.IndexOf(y)
		return ix - iy
	})
	return out
}

// Contains reports whether text contains at least one vocabulary phrase. It
// stops at the first match.
func (a *Automaton) Contains(text string) bool {
	found := false
	a.walk(text, func([]int32) bool {
		found = true
		return false
	})
	return found
}

// Vocabulary returns the vocabulary the automaton was built from.
func (a *Automaton) Vocabulary() *vocab.Vocabulary { return a.vocab }

// States returns the number of trie states, including the root.
func (a *Automaton) States() int { return len(a.nodes) }
