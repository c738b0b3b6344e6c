// Package phonetic matches misheard words against menu phrases by
// pronunciation.
//
// Matching runs in two passes. First, Double Metaphone codes of the spoken
// words are intersected with the codes of each phrase; phrases that share a
// code are phonetic candidates and are ranked by Jaro-Winkler similarity
// against the phonetic threshold. When no phonetic candidate qualifies, every
// phrase is ranked by Jaro-Winkler alone against the stricter fuzzy
// threshold.
//
// Phrase codes are computed once per vocabulary in an [Index].
package phonetic

import (
	"strings"
	"unicode/utf8"

	"github.com/antzucaro/matchr"
)

const (
	defaultPhoneticThreshold = 0.70
	defaultFuzzyThreshold    = 0.85
	defaultMinRunes          = 3
)

// Option configures a [Matcher].
type Option func(*Matcher)

// WithPhoneticThreshold sets the minimum Jaro-Winkler score for a phrase that
// shares a Double Metaphone code with the input. Default: 0.70.
func WithPhoneticThreshold(threshold float64) Option {
	return func(m *Matcher) {
		if threshold > 0 {
			m.phoneticThreshold = threshold
		}
	}
}

// WithFuzzyThreshold sets the minimum Jaro-Winkler score for a phrase that
// shares no phonetic code with the input. Default: 0.85.
func WithFuzzyThreshold(threshold float64) Option {
	return func(m *Matcher) {
		if threshold > 0 {
			m.fuzzyThreshold = threshold
		}
	}
}

// WithMinRunes sets the shortest input, in runes with spaces removed, that
// is considered for matching. Shorter inputs such as "a" or "to" never match.
// Default: 3.
func WithMinRunes(n int) Option {
	return func(m *Matcher) {
		if n > 0 {
			m.minRunes = n
		}
	}
}

// Matcher is read-only after construction and safe for concurrent use.
type Matcher struct {
	phoneticThreshold float64
	fuzzyThreshold    float64
	minRunes          int
}

// New returns a [Matcher] configured by opts.
func New(opts ...Option) *Matcher {
	m := &Matcher{
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
		minRunes:          defaultMinRunes,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Index holds the precomputed tokens and phonetic codes of a phrase list.
// It is immutable and safe to share.
type Index struct {
	terms    []term
	maxWords int
}

type term struct {
	phrase string
	lower  string
	concat string
	tokens []string
	codes  map[string]struct{}
}

// NewIndex prepares phrases for matching. Blank phrases are ignored.
func NewIndex(phrases []string) *Index {
	idx := &Index{terms: make([]term, 0, len(phrases))}
	for _, p := range phrases {
		lower := strings.ToLower(strings.TrimSpace(p))
		if lower == "" {
			continue
		}
		tokens := strings.Fields(lower)
		idx.terms = append(idx.terms, term{
			phrase: p,
			lower:  strings.Join(tokens, " "),
			concat: strings.Join(tokens, ""),
			tokens: tokens,
			codes:  codesForTokens(tokens),
		})
		if len(tokens) > idx.maxWords {
			idx.maxWords = len(tokens)
		}
	}
	return idx
}

// Len returns the number of indexed phrases.
func (idx *Index) Len() int { return len(idx.terms) }

// MaxWords returns the word count of the longest indexed phrase.
func (idx *Index) MaxWords() int { return idx.maxWords }

// Match finds the phrase most similar to word among phrases. It prepares a
// throwaway [Index]; callers matching many windows against the same phrases
// should use [Matcher.MatchIndex].
//
// When matched is false, corrected equals word and confidence is 0.
func (m *Matcher) Match(word string, phrases []string) (corrected string, confidence float64, matched bool) {
	return m.MatchIndex(word, NewIndex(phrases))
}

// MatchIndex finds the indexed phrase most similar to word, which may be a
// single word or a space-separated window of words.
//
// When matched is false, corrected equals word and confidence is 0.
func (m *Matcher) MatchIndex(word string, idx *Index) (corrected string, confidence float64, matched bool) {
	if idx == nil || len(idx.terms) == 0 {
		return word, 0, false
	}
	tokens := strings.Fields(strings.ToLower(word))
	if len(tokens) == 0 {
		return word, 0, false
	}
	joined := strings.Join(tokens, "")
	if utf8.RuneCountInString(joined) < m.minRunes {
		return word, 0, false
	}
	full := strings.Join(tokens, " ")
	codes := codesForTokens(tokens)

	var (
		best         *term
		bestScore    float64
		bestPhonetic bool
	)
	for i := range idx.terms {
		t := &idx.terms[i]
		if len(tokens) > 1 && !aligned(tokens, t) {
			continue
		}
		if len(t.tokens) > 1 && !covers(tokens, joined, t) {
			continue
		}
		score := similarity(tokens, t.tokens, full, t.lower)
		if codesOverlap(codes, t.codes) {
			if score < m.phoneticThreshold {
				continue
			}
			if !bestPhonetic || score > bestScore {
				best, bestScore, bestPhonetic = t, score, true
			}
			continue
		}
		if bestPhonetic || score < m.fuzzyThreshold {
			continue
		}
		if score > bestScore {
			best, bestScore = t, score
		}
	}

	if best == nil {
		return word, 0, false
	}
	return best.phrase, bestScore, true
}

// codesForTokens returns the union of the Double Metaphone codes of tokens.
// Empty codes, produced for tokens without consonants, are dropped.
func codesForTokens(tokens []string) map[string]struct{} {
	codes := make(map[string]struct{}, len(tokens)*2)
	for _, t := range tokens {
		p, s := matchr.DoubleMetaphone(t)
		if p != "" {
			codes[p] = struct{}{}
		}
		if s != "" {
			codes[s] = struct{}{}
		}
	}
	return codes
}

func codesOverlap(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}

// aligned reports whether every token of a multi-word window resembles part
// of t. It keeps filler words next to a dish name ("get fries", "two
// cheese") from being swallowed into the correction.
func aligned(tokens []string, t *term) bool {
	for _, tok := range tokens {
		if utf8.RuneCountInString(tok) >= 3 && strings.Contains(t.concat, tok) {
			continue
		}
		if codesOverlap(codesForTokens([]string{tok}), t.codes) {
			continue
		}
		if matchr.JaroWinkler(tok, t.concat, false) >= defaultPhoneticThreshold {
			continue
		}
		near := false
		for _, pt := range t.tokens {
			if matchr.JaroWinkler(tok, pt, false) >= defaultPhoneticThreshold {
				near = true
				break
			}
		}
		if !near {
			return false
		}
	}
	return true
}

// covers reports whether every token of t is heard somewhere in the window.
// A phrase token counts as heard when the joined window contains it, or when
// a window token shares a phonetic code with it or scores above the phonetic
// threshold against it. Without this a lone "fish" would grow into
// "fish burger" on the strength of the shared prefix.
func covers(tokens []string, joined string, t *term) bool {
	for _, pt := range t.tokens {
		if strings.Contains(joined, pt) {
			continue
		}
		ptCodes := codesForTokens([]string{pt})
		heard := false
		for _, tok := range tokens {
			if matchr.JaroWinkler(tok, pt, false) >= defaultPhoneticThreshold ||
				codesOverlap(codesForTokens([]string{tok}), ptCodes) {
				heard = true
				break
			}
		}
		if !heard {
			return false
		}
	}
	return true
}

// similarity is the best Jaro-Winkler score over the full strings and the
// space-stripped strings. Partial matches against multi-word phrases are
// filtered earlier by [covers].
func similarity(inTokens, phraseTokens []string, inFull, phraseFull string) float64 {
	score := matchr.JaroWinkler(inFull, phraseFull, false)

	if len(inTokens) > 1 || len(phraseTokens) > 1 {
		a := strings.Join(inTokens, "")
		b := strings.Join(phraseTokens, "")
		if s := matchr.JaroWinkler(a, b, false); s > score {
			score = s
		}
	}
	return score
}
