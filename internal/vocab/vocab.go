// Package vocab holds the fixed set of recognisable menu phrases.
//
// A [Vocabulary] is built once from an external source (a menu file, a
// database, a test literal) and is read-only afterwards. Each entry is folded
// into a canonical [Phrase] key at load time: lowercased, trimmed, and with
// internal whitespace runs collapsed to a single space. Every downstream
// comparison (automaton scans, co-occurrence indexing, order membership) uses
// the folded key, which makes the whole recognition path case-insensitive.
//
// The index position of a phrase is stable for the lifetime of the
// vocabulary and doubles as the row/column index of the co-occurrence matrix.
package vocab

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// ErrConfiguration is the parent of every vocabulary error. These errors are
// fatal at startup: a process without a valid vocabulary cannot recognise
// anything.
var ErrConfiguration = errors.New("vocab: configuration error")

var (
	// ErrEmptyVocabulary is returned by [Load] when no phrases are supplied.
	ErrEmptyVocabulary = fmt.Errorf("%w: empty vocabulary", ErrConfiguration)

	// ErrDuplicatePhrase is returned by [Load] when two entries fold to the
	// same key (e.g. "Cheese Burger" and "cheese  burger").
	ErrDuplicatePhrase = fmt.Errorf("%w: duplicate phrase", ErrConfiguration)

	// ErrEmptyPattern is returned when an entry folds to the empty string.
	ErrEmptyPattern = fmt.Errorf("%w: empty pattern", ErrConfiguration)
)

// Phrase is the folded, canonical text of a vocabulary entry. Its identity is
// its text.
type Phrase string

// String returns the phrase text.
func (p Phrase) String() string { return string(p) }

// Vocabulary is an ordered, duplicate-free sequence of phrases.
// It is immutable after [Load] and safe for concurrent use.
type Vocabulary struct {
	phrases []Phrase
	display []string
	index   map[Phrase]int
}

// Load folds every entry of phrases and returns the resulting [Vocabulary].
// Input order is preserved and becomes the index order.
func Load(phrases []string) (*Vocabulary, error) {
	if len(phrases) == 0 {
		return nil, ErrEmptyVocabulary
	}

	v := &Vocabulary{
		phrases: make([]Phrase, 0, len(phrases)),
		display: make([]string, 0, len(phrases)),
		index:   make(map[Phrase]int, len(phrases)),
	}
	for i, raw := range phrases {
		p := Fold(raw)
		if p == "" {
			return nil, fmt.Errorf("%w: entry %d (%q)", ErrEmptyPattern, i, raw)
		}
		if prev, ok := v.index[p]; ok {
			return nil, fmt.Errorf("%w: %q at %d repeats %q at %d", ErrDuplicatePhrase, raw, i, v.display[prev], prev)
		}
		v.index[p] = len(v.phrases)
		v.phrases = append(v.phrases, p)
		v.display = append(v.display, strings.TrimSpace(raw))
	}
	return v, nil
}

// MustLoad is like [Load] but panics on error. Intended for tests and
// package-level literals.
func MustLoad(phrases ...string) *Vocabulary {
	v, err := Load(phrases)
	if err != nil {
		panic(err)
	}
	return v
}

// Len returns the number of phrases.
func (v *Vocabulary) Len() int { return len(v.phrases) }

// At returns the phrase at index i. It panics if i is out of range.
func (v *Vocabulary) At(i int) Phrase { return v.phrases[i] }

// Phrases returns a copy of all phrases in index order.
func (v *Vocabulary) Phrases() []Phrase {
	out := make([]Phrase, len(v.phrases))
	copy(out, v.phrases)
	return out
}

// IndexOf returns the stable index of p. The boolean is false when p is not
// part of the vocabulary.
func (v *Vocabulary) IndexOf(p Phrase) (int, bool) {
	i, ok := v.index[p]
	return i, ok
}

// Lookup folds s and returns the matching phrase and its index.
func (v *Vocabulary) Lookup(s string) (Phrase, int, bool) {
	p := Fold(s)
	i, ok := v.index[p]
	if !ok {
		return "", -1, false
	}
	return p, i, true
}

// Display returns the original (trimmed) spelling of p as it appeared in the
// source, suitable for speech output. Unknown phrases are returned verbatim.
func (v *Vocabulary) Display(p Phrase) string {
	if i, ok := v.index[p]; ok {
		return v.display[i]
	}
	return string(p)
}

// DisplayAll maps ps through [Vocabulary.Display].
func (v *Vocabulary) DisplayAll(ps []Phrase) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = v.Display(p)
	}
	return out
}

// Fold returns the canonical form of s: lowercase, no leading or trailing
// whitespace, and every internal whitespace run replaced by one space.
func Fold(s string) Phrase {
	var b strings.Builder
	b.Grow(len(s))
	pendingSpace := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			pendingSpace = b.Len() > 0
			continue
		}
		if pendingSpace {
			b.WriteByte(' ')
			pendingSpace = false
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return Phrase(b.String())
}
